// Package schema holds the constraint schema: the static table of bounds that
// every element mutation is validated against. A Schema is immutable; changing
// a limit means building a new Schema.
package schema

import (
	"fmt"
	"regexp"
	"strings"
)

// Limits is the plain-data form of a schema, as read from configuration.
type Limits struct {
	// MetricMin and MetricMax bound a metric's value, inclusive.
	MetricMin int `json:"metric_min"`
	MetricMax int `json:"metric_max"`

	// MaxLabelLen is the maximum label length in characters.
	MaxLabelLen int `json:"max_label_len"`

	// MaxListItems is the data view capacity; the oldest item is evicted past it.
	MaxListItems int `json:"max_list_items"`

	// MaxItemLen is the maximum length of one data view item.
	MaxItemLen int `json:"max_item_len"`

	// IDPrefix and IDHexDigits define the element ID format:
	// prefix followed by IDHexDigits lowercase hex characters.
	IDPrefix    string `json:"id_prefix"`
	IDHexDigits int    `json:"id_hex_digits"`
}

// DefaultLimits returns the stock limits.
func DefaultLimits() Limits {
	return Limits{
		MetricMin:    0,
		MetricMax:    100,
		MaxLabelLen:  32,
		MaxListItems: 50,
		MaxItemLen:   256,
		IDPrefix:     "node-",
		IDHexDigits:  4,
	}
}

// maxHexDigits keeps 16^digits below 2^31 so IDSpace fits a 32-bit int.
const maxHexDigits = 7

// Schema is a validated, immutable set of limits.
type Schema struct {
	limits    Limits
	idPattern *regexp.Regexp
}

// New validates the limits and builds a Schema.
func New(l Limits) (*Schema, error) {
	if l.MetricMin > l.MetricMax {
		return nil, fmt.Errorf("metric range [%d,%d] is empty", l.MetricMin, l.MetricMax)
	}
	if l.MaxLabelLen < 1 {
		return nil, fmt.Errorf("max_label_len must be positive, got %d", l.MaxLabelLen)
	}
	if l.MaxListItems < 1 {
		return nil, fmt.Errorf("max_list_items must be positive, got %d", l.MaxListItems)
	}
	if l.MaxItemLen < 1 {
		return nil, fmt.Errorf("max_item_len must be positive, got %d", l.MaxItemLen)
	}
	if l.IDPrefix == "" || strings.ContainsAny(l.IDPrefix, " \t\r\n") {
		return nil, fmt.Errorf("id_prefix must be a non-empty token, got %q", l.IDPrefix)
	}
	if l.IDPrefix != strings.ToLower(l.IDPrefix) {
		return nil, fmt.Errorf("id_prefix must be lowercase, got %q", l.IDPrefix)
	}
	if l.IDHexDigits < 1 || l.IDHexDigits > maxHexDigits {
		return nil, fmt.Errorf("id_hex_digits must be between 1 and %d, got %d", maxHexDigits, l.IDHexDigits)
	}

	return &Schema{
		limits:    l,
		idPattern: regexp.MustCompile("^" + idPatternSource(l) + "$"),
	}, nil
}

// MustNew is like New but panics on invalid limits.
func MustNew(l Limits) *Schema {
	s, err := New(l)
	if err != nil {
		panic(err)
	}
	return s
}

// Default returns a Schema built from DefaultLimits.
func Default() *Schema {
	return MustNew(DefaultLimits())
}

func idPatternSource(l Limits) string {
	return fmt.Sprintf("%s[0-9a-f]{%d}", regexp.QuoteMeta(l.IDPrefix), l.IDHexDigits)
}

// Limits returns a copy of the underlying limits.
func (s *Schema) Limits() Limits {
	return s.limits
}

// MetricRange returns the inclusive metric bounds.
func (s *Schema) MetricRange() (lo, hi int) {
	return s.limits.MetricMin, s.limits.MetricMax
}

// MaxLabelLen returns the maximum label length.
func (s *Schema) MaxLabelLen() int {
	return s.limits.MaxLabelLen
}

// MaxListItems returns the data view capacity.
func (s *Schema) MaxListItems() int {
	return s.limits.MaxListItems
}

// MaxItemLen returns the maximum data view item length.
func (s *Schema) MaxItemLen() int {
	return s.limits.MaxItemLen
}

// IDPrefix returns the element ID prefix.
func (s *Schema) IDPrefix() string {
	return s.limits.IDPrefix
}

// IDHexDigits returns how many hex characters follow the prefix.
func (s *Schema) IDHexDigits() int {
	return s.limits.IDHexDigits
}

// IDPattern returns the unanchored ID regular expression, e.g. node-[0-9a-f]{4}.
func (s *Schema) IDPattern() string {
	return idPatternSource(s.limits)
}

// IDSpace returns the number of distinct IDs the format allows.
func (s *Schema) IDSpace() int {
	return 1 << (4 * s.limits.IDHexDigits)
}

// MatchID reports whether id is a well-formed element ID.
func (s *Schema) MatchID(id string) bool {
	return s.idPattern.MatchString(id)
}

// FormatID joins the prefix with a hex suffix.
func (s *Schema) FormatID(hex string) string {
	return s.limits.IDPrefix + hex
}

// FindID returns the first whitespace-separated token of text that is a
// well-formed ID once lower-cased and stripped of quotes and punctuation.
func (s *Schema) FindID(text string) (string, bool) {
	for _, tok := range strings.Fields(text) {
		tok = strings.ToLower(strings.Trim(tok, `"'.,;:!?()[]{}`))
		if s.MatchID(tok) {
			return tok, true
		}
	}
	return "", false
}
