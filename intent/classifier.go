package intent

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/c360studio/irta/element"
	"github.com/c360studio/irta/failure"
	"github.com/c360studio/irta/schema"
)

var (
	whitespace    = regexp.MustCompile(`\s+`)
	quotedPattern = regexp.MustCompile(`"([^"]+)"|'([^']+)'`)
	leadingThe    = regexp.MustCompile(`(?i)^the(?:\s+|$)`)
)

type compiledRule struct {
	Rule
	nouns *regexp.Regexp
}

// Classifier maps command text to an Intent. It is stateless after
// construction and may be shared.
type Classifier struct {
	schema *schema.Schema
	ids    *regexp.Regexp
	rules  []compiledRule
}

// New builds a classifier over the given rules, or DefaultRules when none
// are given. It panics on a malformed rule, as rule tables are static.
func New(sch *schema.Schema, rules ...Rule) *Classifier {
	if sch == nil {
		sch = schema.Default()
	}
	if len(rules) == 0 {
		rules = DefaultRules()
	}

	c := &Classifier{
		schema: sch,
		ids:    regexp.MustCompile(`(?i)\b` + sch.IDPattern() + `\b`),
		rules:  make([]compiledRule, 0, len(rules)),
	}
	for _, r := range rules {
		cr := compiledRule{Rule: r}
		switch r.Kind {
		case KindCreate:
			if !r.Variant.IsValid() || len(r.Nouns) == 0 {
				panic(fmt.Sprintf("intent: create rule %q needs a variant and nouns", r.Name))
			}
			cr.nouns = nounPattern(r.Nouns)
		case KindUpdate, KindInteract:
			if r.Pattern == nil || r.Build == nil || r.Pattern.SubexpIndex("ref") < 0 {
				panic(fmt.Sprintf("intent: rule %q needs a pattern with a ref group and a build func", r.Name))
			}
		default:
			panic(fmt.Sprintf("intent: rule %q has unsupported kind %q", r.Name, r.Kind))
		}
		c.rules = append(c.rules, cr)
	}
	return c
}

// Normalize trims the command, collapses internal whitespace and strips one
// trailing sentence mark. Any further marks belong to the command.
func Normalize(text string) string {
	text = whitespace.ReplaceAllString(strings.TrimSpace(text), " ")
	if n := len(text); n > 0 && (text[n-1] == '.' || text[n-1] == '!') {
		text = strings.TrimSpace(text[:n-1])
	}
	return text
}

// Classify returns the intent of the first matching rule. Blank input yields
// failure.ErrEmptyCommand; unmatched input yields an Unrecognized intent and
// a *failure.ParseError.
func (c *Classifier) Classify(text string) (Intent, error) {
	norm := Normalize(text)
	if norm == "" {
		return Intent{Kind: KindUnrecognized}, failure.ErrEmptyCommand
	}

	for _, r := range c.rules {
		var (
			in Intent
			ok bool
		)
		if r.Kind == KindCreate {
			in, ok = c.matchCreate(r, norm)
		} else {
			in, ok = c.matchMutation(r, norm)
		}
		if ok {
			in.Rule = r.Name
			return in, nil
		}
	}
	return Intent{Kind: KindUnrecognized}, &failure.ParseError{Text: norm}
}

func (c *Classifier) matchCreate(r compiledRule, text string) (Intent, bool) {
	if addItemPattern.MatchString(text) {
		return Intent{}, false
	}
	m := createPattern.FindStringSubmatch(text)
	if m == nil {
		return Intent{}, false
	}
	head := m[createPattern.SubexpIndex("head")]
	if !r.nouns.MatchString(head) {
		return Intent{}, false
	}

	return Intent{
		Kind:    KindCreate,
		Variant: r.Variant,
		Label:   c.label(m[createPattern.SubexpIndex("label")], text, r.Variant),
	}, true
}

// label picks the text after the label keyword, else the first quoted
// string, else the variant title. ID tokens never end up in a label.
func (c *Classifier) label(afterKeyword, text string, v element.Variant) string {
	if l := c.cleanLabel(unquote(afterKeyword)); l != "" {
		return l
	}
	if q := quotedPattern.FindStringSubmatch(text); q != nil {
		if l := c.cleanLabel(q[1] + q[2]); l != "" {
			return l
		}
	}
	return v.Title()
}

func (c *Classifier) cleanLabel(s string) string {
	s = c.ids.ReplaceAllString(s, "")
	return whitespace.ReplaceAllString(strings.TrimSpace(s), " ")
}

func (c *Classifier) matchMutation(r compiledRule, text string) (Intent, bool) {
	m := r.Pattern.FindStringSubmatch(text)
	if m == nil {
		return Intent{}, false
	}

	groups := make(map[string]string, len(m))
	for i, name := range r.Pattern.SubexpNames() {
		if name != "" {
			groups[name] = m[i]
		}
	}

	ref, ok := c.ParseRef(groups["ref"])
	if !ok {
		return Intent{}, false
	}
	return Intent{
		Kind:      r.Kind,
		Target:    ref,
		Operation: r.Build(groups),
	}, true
}

// ParseRef turns reference text into a Ref. Any token shaped like an element
// ID makes the reference explicit; otherwise the text, without quotes and a
// leading "the", is a label fragment. Blank text is not a reference.
func (c *Classifier) ParseRef(text string) (Ref, bool) {
	if id, ok := c.schema.FindID(text); ok {
		return Ref{Text: id, Explicit: true}, true
	}
	frag := strings.TrimSpace(leadingThe.ReplaceAllString(unquote(text), ""))
	if frag == "" {
		return Ref{}, false
	}
	return Ref{Text: frag}, true
}
