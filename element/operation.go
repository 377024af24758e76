package element

import "fmt"

// Operation is a typed mutation request. The set of operations is closed.
type Operation interface {
	// Name is the operation's stable identifier, e.g. set_value.
	Name() string
	// Required is the capability an element must declare to accept the operation.
	Required() Capability
	isOperation()
}

// SetValue sets a metric's value.
type SetValue struct {
	Value int
}

func (SetValue) Name() string { return "set_value" }
func (SetValue) Required() Capability { return CapabilityNumericUpdate }
func (SetValue) isOperation() {}
func (o SetValue) String() string { return fmt.Sprintf("set_value(%d)", o.Value) }

// AppendItem appends one item to a data view.
type AppendItem struct {
	Item string
}

func (AppendItem) Name() string { return "append_item" }
func (AppendItem) Required() Capability { return CapabilityListAppend }
func (AppendItem) isOperation() {}
func (o AppendItem) String() string { return fmt.Sprintf("append_item(%q)", o.Item) }

// Toggle flips a status indicator.
type Toggle struct{}

func (Toggle) Name() string { return "toggle" }
func (Toggle) Required() Capability { return CapabilityToggleStatus }
func (Toggle) isOperation() {}
func (Toggle) String() string { return "toggle" }
