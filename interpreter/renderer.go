package interpreter

import (
	"time"

	"github.com/c360studio/irta/element"
	"github.com/c360studio/irta/failure"
	"github.com/c360studio/irta/registry"
)

// Renderer is the downstream collaborator: it hears about every committed
// creation and mutation, and about every rejected command.
type Renderer interface {
	registry.Observer
	OnCommandRejected(text string, kind failure.Kind, detail string)
}

// CommandObserver is told about every executed command, accepted or not.
type CommandObserver interface {
	ObserveCommand(out Outcome, elapsed time.Duration)
}

// Fanout broadcasts notifications to several renderers in order.
type Fanout []Renderer

// OnElementCreated implements registry.Observer.
func (f Fanout) OnElementCreated(snap element.Snapshot) {
	for _, r := range f {
		r.OnElementCreated(snap)
	}
}

// OnElementUpdated implements registry.Observer.
func (f Fanout) OnElementUpdated(id string, revision uint64, state element.State) {
	for _, r := range f {
		r.OnElementUpdated(id, revision, state)
	}
}

// OnCommandRejected implements Renderer.
func (f Fanout) OnCommandRejected(text string, kind failure.Kind, detail string) {
	for _, r := range f {
		r.OnCommandRejected(text, kind, detail)
	}
}
