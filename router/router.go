// Package router gates operations on the target element's capabilities
// before handing them to the registry.
package router

import (
	"errors"

	"github.com/c360studio/irta/element"
	"github.com/c360studio/irta/failure"
)

// Mutator is the write side of the registry.
type Mutator interface {
	ApplyMutation(id string, op element.Operation) error
}

var errNilOperation = errors.New("router: nil operation")

// RequiredCapability returns the capability op needs.
func RequiredCapability(op element.Operation) element.Capability {
	return op.Required()
}

// Route forwards op to the registry if target declares the capability op
// requires. A mismatch is reported without touching the element.
func Route(m Mutator, target element.Snapshot, op element.Operation) error {
	if op == nil {
		return errNilOperation
	}
	required := RequiredCapability(op)
	if !target.Capabilities.Has(required) {
		return &failure.CapabilityMismatchError{
			ID:         target.ID,
			Variant:    target.Variant.String(),
			Operation:  op.Name(),
			Capability: required.String(),
		}
	}
	return m.ApplyMutation(target.ID, op)
}
