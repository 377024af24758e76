package schema

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/c360studio/irta/failure"
)

// ValidateMetric checks a metric value against the metric range.
// Out-of-range values are rejected, never clamped.
func (s *Schema) ValidateMetric(v int) error {
	lo, hi := s.MetricRange()
	if v < lo || v > hi {
		return &failure.ConstraintViolationError{
			Bound:  failure.BoundMetricRange,
			Value:  strconv.Itoa(v),
			Detail: fmt.Sprintf("value must be within [%d,%d]", lo, hi),
		}
	}
	return nil
}

// ValidateLabel checks that a label is non-blank and within MaxLabelLen characters.
func (s *Schema) ValidateLabel(label string) error {
	if strings.TrimSpace(label) == "" {
		return &failure.ConstraintViolationError{
			Bound:  failure.BoundLabelLength,
			Value:  strconv.Quote(label),
			Detail: "label must not be empty",
		}
	}
	if n := utf8.RuneCountInString(label); n > s.limits.MaxLabelLen {
		return &failure.ConstraintViolationError{
			Bound:  failure.BoundLabelLength,
			Value:  strconv.Quote(label),
			Detail: fmt.Sprintf("label is %d characters, limit is %d", n, s.limits.MaxLabelLen),
		}
	}
	return nil
}

// ValidateItem checks that a data view item is non-blank and within MaxItemLen characters.
func (s *Schema) ValidateItem(item string) error {
	if strings.TrimSpace(item) == "" {
		return &failure.ConstraintViolationError{
			Bound:  failure.BoundItemLength,
			Value:  strconv.Quote(item),
			Detail: "item must not be empty",
		}
	}
	if n := utf8.RuneCountInString(item); n > s.limits.MaxItemLen {
		return &failure.ConstraintViolationError{
			Bound:  failure.BoundItemLength,
			Value:  strconv.Quote(truncate(item, 24)),
			Detail: fmt.Sprintf("item is %d characters, limit is %d", n, s.limits.MaxItemLen),
		}
	}
	return nil
}

// ValidateID checks an element ID against the ID pattern.
func (s *Schema) ValidateID(id string) error {
	if !s.MatchID(id) {
		return &failure.ConstraintViolationError{
			Bound:  failure.BoundIDFormat,
			Value:  strconv.Quote(id),
			Detail: "id must match " + s.IDPattern(),
		}
	}
	return nil
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}
