// Package console renders element notifications as colored status lines on
// a terminal.
package console

import (
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"

	"github.com/c360studio/irta/element"
	"github.com/c360studio/irta/failure"
)

// previewItems is how many of the newest data view items an update shows.
const previewItems = 3

// Renderer writes one "System: ..." line per notification.
type Renderer struct {
	mu     sync.Mutex
	out    io.Writer
	labels map[string]string

	created  *color.Color
	updated  *color.Color
	rejected *color.Color
	warning  *color.Color
	dim      *color.Color
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithColor forces color output on or off. By default fatih/color decides
// based on the terminal.
func WithColor(enabled bool) Option {
	return func(r *Renderer) {
		for _, c := range r.palette() {
			if enabled {
				c.EnableColor()
			} else {
				c.DisableColor()
			}
		}
	}
}

// New creates a renderer writing to out.
func New(out io.Writer, opts ...Option) *Renderer {
	r := &Renderer{
		out:      out,
		labels:   make(map[string]string),
		created:  color.New(color.FgGreen),
		updated:  color.New(color.FgCyan),
		rejected: color.New(color.FgRed),
		warning:  color.New(color.FgYellow),
		dim:      color.New(color.Faint),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Renderer) palette() []*color.Color {
	return []*color.Color{r.created, r.updated, r.rejected, r.warning, r.dim}
}

// OnElementCreated implements registry.Observer.
func (r *Renderer) OnElementCreated(snap element.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.labels[snap.ID] = snap.Label
	r.created.Fprintf(r.out, "System: Created %s %s %q with %s\n",
		snap.Variant.Title(), snap.ID, snap.Label, snap.Capabilities)
}

// OnElementUpdated implements registry.Observer.
func (r *Renderer) OnElementUpdated(id string, revision uint64, state element.State) {
	r.mu.Lock()
	defer r.mu.Unlock()

	label := r.labels[id]
	if label == "" {
		label = id
	}
	r.updated.Fprintf(r.out, "System: %s %s -> %s", id, label, element.Describe(state))
	r.dim.Fprintf(r.out, " (rev %d)", revision)
	if dv, ok := state.(element.DataViewState); ok && len(dv.Items) > 0 {
		r.dim.Fprintf(r.out, " [%s]", element.Preview(dv, previewItems))
	}
	fmt.Fprintln(r.out)
}

// OnCommandRejected implements interpreter.Renderer.
func (r *Renderer) OnCommandRejected(text string, kind failure.Kind, detail string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := r.rejected
	if kind == failure.KindAmbiguousReference || kind == failure.KindUnknownElement {
		c = r.warning
	}
	c.Fprintf(r.out, "System: Rejected %q: %s (%s)\n", text, detail, kind)
}

// PrintList writes one summary line per element.
func (r *Renderer) PrintList(snaps []element.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(snaps) == 0 {
		r.dim.Fprintln(r.out, "No elements.")
		return
	}
	for _, s := range snaps {
		fmt.Fprintf(r.out, "  %s  %-9s %s\n", s.ID, s.Variant, s.Summary())
	}
}

// PrintElement writes the full detail of one element.
func (r *Renderer) PrintElement(s element.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fmt.Fprintf(r.out, "ID:           %s\n", s.ID)
	fmt.Fprintf(r.out, "Variant:      %s\n", s.Variant.Title())
	fmt.Fprintf(r.out, "Label:        %s\n", s.Label)
	fmt.Fprintf(r.out, "Capabilities: %s\n", s.Capabilities)
	fmt.Fprintf(r.out, "Revision:     %d\n", s.Revision)
	fmt.Fprintf(r.out, "State:        %s\n", element.Describe(s.State))
	if dv, ok := s.State.(element.DataViewState); ok {
		for i, item := range dv.Items {
			fmt.Fprintf(r.out, "  %2d. %s\n", i+1, item)
		}
	}
}
