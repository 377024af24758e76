// Package element models the closed set of UI-element variants, their
// capabilities and their self-validating state transitions.
package element

import (
	"fmt"
	"strings"
)

// Variant identifies which kind of element an Element is.
type Variant uint8

const (
	// VariantMetric is an integer percentage display.
	VariantMetric Variant = iota + 1

	// VariantDataView is a bounded, ordered list of text items.
	VariantDataView

	// VariantStatus is an on/off indicator.
	VariantStatus
)

type variantInfo struct {
	name  string
	title string
	caps  CapabilitySet
}

// variants is the capability table. Capabilities are fixed per variant.
var variants = map[Variant]variantInfo{
	VariantMetric:   {name: "metric", title: "Metric", caps: NewCapabilitySet(CapabilityNumericUpdate)},
	VariantDataView: {name: "data_view", title: "Data View", caps: NewCapabilitySet(CapabilityListAppend)},
	VariantStatus:   {name: "status", title: "Status", caps: NewCapabilitySet(CapabilityToggleStatus)},
}

// AllVariants lists the variants in declaration order.
func AllVariants() []Variant {
	return []Variant{VariantMetric, VariantDataView, VariantStatus}
}

// IsValid reports whether v is a known variant.
func (v Variant) IsValid() bool {
	_, ok := variants[v]
	return ok
}

// String returns the machine name, e.g. data_view.
func (v Variant) String() string {
	if info, ok := variants[v]; ok {
		return info.name
	}
	return fmt.Sprintf("variant(%d)", uint8(v))
}

// Title returns the display name, e.g. Data View.
func (v Variant) Title() string {
	if info, ok := variants[v]; ok {
		return info.title
	}
	return v.String()
}

// Capabilities returns the variant's fixed capability set.
func (v Variant) Capabilities() CapabilitySet {
	return variants[v].caps
}

// MarshalText implements encoding.TextMarshaler.
func (v Variant) MarshalText() ([]byte, error) {
	if !v.IsValid() {
		return nil, fmt.Errorf("invalid variant %d", uint8(v))
	}
	return []byte(v.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *Variant) UnmarshalText(text []byte) error {
	parsed := ParseVariant(string(text))
	if parsed == 0 {
		return fmt.Errorf("unknown variant %q", text)
	}
	*v = parsed
	return nil
}

// ParseVariant converts a machine name to a Variant, returning zero if unknown.
func ParseVariant(s string) Variant {
	s = strings.ToLower(strings.TrimSpace(s))
	for v, info := range variants {
		if info.name == s {
			return v
		}
	}
	return 0
}

func initialState(v Variant) State {
	switch v {
	case VariantMetric:
		return MetricState{}
	case VariantDataView:
		return DataViewState{Items: []string{}}
	case VariantStatus:
		return StatusState{}
	}
	return nil
}
