package element

import "fmt"

// Snapshot is a detached copy of an element. Mutating it never affects the
// element it was taken from.
type Snapshot struct {
	ID           string        `json:"id"`
	Variant      Variant       `json:"variant"`
	Label        string        `json:"label"`
	Capabilities CapabilitySet `json:"capabilities"`
	Revision     uint64        `json:"revision"`
	State        State         `json:"state"`
}

// Snapshot returns a deep copy of the element.
func (e *Element) Snapshot() Snapshot {
	return Snapshot{
		ID:           e.id,
		Variant:      e.variant,
		Label:        e.label,
		Capabilities: e.caps,
		Revision:     e.revision,
		State:        e.state.clone(),
	}
}

// Summary renders the element caption, e.g. "CPU Usage (42%)".
func (s Snapshot) Summary() string {
	switch st := s.State.(type) {
	case MetricState:
		return fmt.Sprintf("%s (%d%%)", s.Label, st.Value)
	case DataViewState:
		return fmt.Sprintf("%s [%s]", s.Label, Describe(st))
	case StatusState:
		return fmt.Sprintf("%s %s", s.Label, Describe(st))
	}
	return s.Label
}
