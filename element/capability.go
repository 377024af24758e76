package element

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Capability is an operation tag an element declares support for.
// Routing is gated on capabilities, never on element variants.
type Capability uint8

const (
	// CapabilityNumericUpdate allows SetValue.
	CapabilityNumericUpdate Capability = iota + 1

	// CapabilityListAppend allows AppendItem.
	CapabilityListAppend

	// CapabilityToggleStatus allows Toggle.
	CapabilityToggleStatus
)

var capabilityNames = map[Capability]string{
	CapabilityNumericUpdate: "numeric_update",
	CapabilityListAppend:    "list_append",
	CapabilityToggleStatus:  "toggle_status",
}

// AllCapabilities lists the capability vocabulary in declaration order.
func AllCapabilities() []Capability {
	return []Capability{CapabilityNumericUpdate, CapabilityListAppend, CapabilityToggleStatus}
}

// IsValid checks if a capability is part of the vocabulary.
func (c Capability) IsValid() bool {
	_, ok := capabilityNames[c]
	return ok
}

// String returns the string representation of the capability.
func (c Capability) String() string {
	if name, ok := capabilityNames[c]; ok {
		return name
	}
	return fmt.Sprintf("capability(%d)", uint8(c))
}

// MarshalText implements encoding.TextMarshaler.
func (c Capability) MarshalText() ([]byte, error) {
	if !c.IsValid() {
		return nil, fmt.Errorf("invalid capability %d", uint8(c))
	}
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Capability) UnmarshalText(text []byte) error {
	parsed := ParseCapability(string(text))
	if parsed == 0 {
		return fmt.Errorf("unknown capability %q", text)
	}
	*c = parsed
	return nil
}

// ParseCapability converts a string to a Capability, returning zero for invalid values.
func ParseCapability(s string) Capability {
	s = strings.ToLower(strings.TrimSpace(s))
	for c, name := range capabilityNames {
		if name == s {
			return c
		}
	}
	return 0
}

// CapabilitySet is a fixed-size set of capabilities. The zero value is empty.
type CapabilitySet uint8

// NewCapabilitySet builds a set from the given capabilities. Invalid
// capabilities are ignored.
func NewCapabilitySet(caps ...Capability) CapabilitySet {
	var s CapabilitySet
	for _, c := range caps {
		if c.IsValid() {
			s |= 1 << c
		}
	}
	return s
}

// Has reports whether c is in the set.
func (s CapabilitySet) Has(c Capability) bool {
	return c.IsValid() && s&(1<<c) != 0
}

// Len returns the number of capabilities in the set.
func (s CapabilitySet) Len() int {
	return len(s.List())
}

// List returns the members in vocabulary order.
func (s CapabilitySet) List() []Capability {
	var out []Capability
	for _, c := range AllCapabilities() {
		if s.Has(c) {
			out = append(out, c)
		}
	}
	return out
}

// String renders the set as {a, b}.
func (s CapabilitySet) String() string {
	names := make([]string, 0, 3)
	for _, c := range s.List() {
		names = append(names, c.String())
	}
	return "{" + strings.Join(names, ", ") + "}"
}

// MarshalJSON encodes the set as a list of capability names.
func (s CapabilitySet) MarshalJSON() ([]byte, error) {
	list := s.List()
	if list == nil {
		list = []Capability{}
	}
	return json.Marshal(list)
}

// UnmarshalJSON decodes a list of capability names.
func (s *CapabilitySet) UnmarshalJSON(data []byte) error {
	var list []Capability
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	*s = NewCapabilitySet(list...)
	return nil
}
