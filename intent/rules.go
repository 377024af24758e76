package intent

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/c360studio/irta/element"
)

// Rule is one entry of the classifier table.
//
// Mutation rules (KindUpdate, KindInteract) match Pattern against the
// normalised command and must capture a "ref" group; Build turns the named
// groups into an operation.
//
// Create rules (KindCreate) need no Pattern of their own. They match when the
// command starts with a create verb and one of Nouns appears before the label
// keyword (called, named, for).
type Rule struct {
	Name    string
	Kind    Kind
	Pattern *regexp.Regexp
	Build   func(groups map[string]string) element.Operation

	Variant element.Variant
	Nouns   []string
}

// createPattern splits a create command into the part holding the element
// noun and the label after the first label keyword.
var createPattern = regexp.MustCompile(
	`(?i)^(?:please\s+)?(?:create|add|make|new)\b(?P<head>.*?)(?:\b(?:called|named|for)\b(?P<label>.*))?$`)

// addItemPattern marks an append command. One that failed the append rule is
// malformed, never a create.
var addItemPattern = regexp.MustCompile(`(?i)^(?:please\s+)?add\s+items?\b`)

// DefaultRules returns the stock rule table in priority order: the more
// specific interact patterns first, then update, then create.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:    "append-item",
			Kind:    KindInteract,
			Pattern: regexp.MustCompile(`(?i)^(?:add\s+item|append|insert|put)\s+(?P<item>"[^"]*"|'[^']*'|.+?)\s+(?:to|into)\s+(?P<ref>.+)$`),
			Build: func(g map[string]string) element.Operation {
				return element.AppendItem{Item: unquote(g["item"])}
			},
		},
		{
			Name:    "toggle",
			Kind:    KindInteract,
			Pattern: regexp.MustCompile(`(?i)^(?:toggle|switch|flip)\s+(?P<ref>.+)$`),
			Build: func(map[string]string) element.Operation {
				return element.Toggle{}
			},
		},
		{
			Name:    "set-value",
			Kind:    KindUpdate,
			Pattern: regexp.MustCompile(`(?i)^(?:set|update|change|push)\s+(?P<ref>.+?)\s+to\s+(?P<value>[-+]?\d+)\s*%?$`),
			Build: func(g map[string]string) element.Operation {
				return element.SetValue{Value: parseValue(g["value"])}
			},
		},
		{
			Name:    "create-metric",
			Kind:    KindCreate,
			Variant: element.VariantMetric,
			Nouns:   []string{"metric", "progress", "percent", "gauge", "bar"},
		},
		{
			Name:    "create-data-view",
			Kind:    KindCreate,
			Variant: element.VariantDataView,
			Nouns:   []string{"data view", "dataview", "data", "view", "log", "logs", "list", "feed"},
		},
		{
			Name:    "create-status",
			Kind:    KindCreate,
			Variant: element.VariantStatus,
			Nouns:   []string{"status", "indicator", "light", "toggle"},
		},
	}
}

// parseValue reads a decimal integer. Out-of-range input saturates so that
// the schema reports it as a range violation.
func parseValue(s string) int {
	v, err := strconv.Atoi(s)
	if err == nil {
		return v
	}
	if strings.HasPrefix(s, "-") {
		return math.MinInt
	}
	return math.MaxInt
}

// unquote strips one pair of matching surrounding quotes.
func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '"' || first == '\'') && first == last {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// nounPattern compiles a whole-word alternation over nouns.
func nounPattern(nouns []string) *regexp.Regexp {
	quoted := make([]string, len(nouns))
	for i, n := range nouns {
		quoted[i] = strings.ReplaceAll(regexp.QuoteMeta(strings.ToLower(n)), " ", `\s+`)
	}
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`)
}
