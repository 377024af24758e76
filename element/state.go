package element

import (
	"fmt"
	"strings"
)

// State is a variant-specific state payload. Values are immutable once
// committed; transitions build new values.
type State interface {
	Variant() Variant
	clone() State
}

// MetricState is the state of a metric.
type MetricState struct {
	Value int `json:"value"`
}

func (MetricState) Variant() Variant { return VariantMetric }
func (s MetricState) clone() State { return s }

// DataViewState is the state of a data view, oldest item first.
type DataViewState struct {
	Items []string `json:"items"`
}

func (DataViewState) Variant() Variant { return VariantDataView }

func (s DataViewState) clone() State {
	items := make([]string, len(s.Items))
	copy(items, s.Items)
	return DataViewState{Items: items}
}

// appended returns a new state with item at the end, evicting from the front
// so that the result never holds more than capacity items.
func (s DataViewState) appended(item string, capacity int) DataViewState {
	drop := len(s.Items) + 1 - capacity
	if drop < 0 {
		drop = 0
	}
	items := make([]string, 0, len(s.Items)-drop+1)
	items = append(items, s.Items[drop:]...)
	items = append(items, item)
	return DataViewState{Items: items}
}

// StatusState is the state of a status indicator.
type StatusState struct {
	Active bool `json:"active"`
}

func (StatusState) Variant() Variant { return VariantStatus }
func (s StatusState) clone() State { return s }

// Describe renders a state the way the element's caption shows it.
func Describe(st State) string {
	switch st := st.(type) {
	case MetricState:
		return fmt.Sprintf("%d%%", st.Value)
	case DataViewState:
		if len(st.Items) == 1 {
			return "1 item"
		}
		return fmt.Sprintf("%d items", len(st.Items))
	case StatusState:
		if st.Active {
			return "ONLINE"
		}
		return "OFFLINE"
	}
	return "?"
}

// Preview lists the newest n items of a data view, newest last.
func Preview(st DataViewState, n int) string {
	items := st.Items
	if len(items) > n {
		items = items[len(items)-n:]
	}
	return strings.Join(items, " | ")
}
