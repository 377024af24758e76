package element

import (
	"errors"
	"fmt"

	"github.com/c360studio/irta/failure"
	"github.com/c360studio/irta/schema"
)

// Element is a typed, stateful UI-element model. Its capability set is fixed
// at construction; its state only changes through Apply.
type Element struct {
	id       string
	label    string
	variant  Variant
	caps     CapabilitySet
	revision uint64
	state    State
	schema   *schema.Schema
}

// New constructs an element in its variant's default state at revision 0.
func New(sch *schema.Schema, id string, v Variant, label string) (*Element, error) {
	if sch == nil {
		return nil, errors.New("element: nil schema")
	}
	if !v.IsValid() {
		return nil, fmt.Errorf("element: unknown variant %d", uint8(v))
	}
	if err := sch.ValidateID(id); err != nil {
		return nil, err
	}
	if err := sch.ValidateLabel(label); err != nil {
		return nil, err
	}

	return &Element{
		id:      id,
		label:   label,
		variant: v,
		caps:    v.Capabilities(),
		state:   initialState(v),
		schema:  sch,
	}, nil
}

// ID returns the element ID.
func (e *Element) ID() string { return e.id }

// Label returns the element label.
func (e *Element) Label() string { return e.label }

// Variant returns the element variant.
func (e *Element) Variant() Variant { return e.variant }

// Capabilities returns the element's capability set.
func (e *Element) Capabilities() CapabilitySet { return e.caps }

// Revision returns the number of committed mutations.
func (e *Element) Revision() uint64 { return e.revision }

// State returns a copy of the current state.
func (e *Element) State() State { return e.state.clone() }

// Supports reports whether the element declares the capability op requires.
func (e *Element) Supports(op Operation) bool {
	return op != nil && e.caps.Has(op.Required())
}

// Apply validates op against the schema and commits it. On failure the state
// and revision are left untouched.
func (e *Element) Apply(op Operation) error {
	if op == nil {
		return errors.New("element: nil operation")
	}
	if !e.Supports(op) {
		return e.mismatch(op)
	}

	next, err := e.transition(op)
	if err != nil {
		return err
	}

	e.state = next
	e.revision++
	return nil
}

// transition computes the successor state. Every (state, operation) pair is
// listed; anything else is a capability mismatch.
func (e *Element) transition(op Operation) (State, error) {
	switch st := e.state.(type) {
	case MetricState:
		switch op := op.(type) {
		case SetValue:
			if err := e.schema.ValidateMetric(op.Value); err != nil {
				return nil, err
			}
			return MetricState{Value: op.Value}, nil
		case AppendItem, Toggle:
			return nil, e.mismatch(op)
		}
	case DataViewState:
		switch op := op.(type) {
		case AppendItem:
			if err := e.schema.ValidateItem(op.Item); err != nil {
				return nil, err
			}
			return st.appended(op.Item, e.schema.MaxListItems()), nil
		case SetValue, Toggle:
			return nil, e.mismatch(op)
		}
	case StatusState:
		switch op.(type) {
		case Toggle:
			return StatusState{Active: !st.Active}, nil
		case SetValue, AppendItem:
			return nil, e.mismatch(op)
		}
	}
	return nil, e.mismatch(op)
}

func (e *Element) mismatch(op Operation) error {
	return &failure.CapabilityMismatchError{
		ID:         e.id,
		Variant:    e.variant.String(),
		Operation:  op.Name(),
		Capability: op.Required().String(),
	}
}
