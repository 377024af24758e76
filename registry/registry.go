// Package registry owns every element instance. It allocates IDs, resolves
// exact and fuzzy lookups, applies mutations and notifies observers of
// creations and updates.
package registry

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/c360studio/irta/element"
	"github.com/c360studio/irta/failure"
	"github.com/c360studio/irta/schema"
)

// DefaultMaxAttempts bounds ID sampling before allocation gives up.
const DefaultMaxAttempts = 64

// Observer receives change notifications for committed changes only.
type Observer interface {
	OnElementCreated(snap element.Snapshot)
	OnElementUpdated(id string, revision uint64, state element.State)
}

// IDSource returns a string of random lowercase hex digits. The registry
// uses as many leading digits as the schema's ID format requires.
type IDSource func() string

// UUIDSource draws hex digits from a random (v4) UUID.
func UUIDSource() string {
	u := uuid.New()
	return hex.EncodeToString(u[:])
}

// Registry is an ordered mapping from element ID to element. Callers only
// ever see snapshots; elements are mutated through ApplyMutation.
//
// A Registry is not safe for concurrent use. Hosts serialise commands.
type Registry struct {
	schema      *schema.Schema
	elements    map[string]*element.Element
	order       []string
	observers   []Observer
	idSource    IDSource
	maxAttempts int
	logger      *slog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithObserver adds observers notified on creation and mutation.
func WithObserver(obs ...Observer) Option {
	return func(r *Registry) {
		for _, o := range obs {
			if o != nil {
				r.observers = append(r.observers, o)
			}
		}
	}
}

// WithIDSource replaces the random ID source.
func WithIDSource(src IDSource) Option {
	return func(r *Registry) {
		if src != nil {
			r.idSource = src
		}
	}
}

// WithMaxAttempts sets how many sampled IDs may collide before allocation fails.
func WithMaxAttempts(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.maxAttempts = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New creates an empty registry validating against sch.
func New(sch *schema.Schema, opts ...Option) *Registry {
	if sch == nil {
		sch = schema.Default()
	}
	r := &Registry{
		schema:      sch,
		elements:    make(map[string]*element.Element),
		idSource:    UUIDSource,
		maxAttempts: DefaultMaxAttempts,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Schema returns the schema elements are validated against.
func (r *Registry) Schema() *schema.Schema {
	return r.schema
}

// Allocate creates an element of the given variant, inserts it and returns
// its new ID. The label is validated before an ID is drawn.
func (r *Registry) Allocate(v element.Variant, label string) (string, error) {
	if !v.IsValid() {
		return "", fmt.Errorf("registry: unknown variant %d", uint8(v))
	}
	if err := r.schema.ValidateLabel(label); err != nil {
		return "", err
	}

	id, err := r.newID()
	if err != nil {
		return "", err
	}

	el, err := element.New(r.schema, id, v, label)
	if err != nil {
		return "", err
	}

	r.elements[id] = el
	r.order = append(r.order, id)

	r.logger.Debug("Element allocated",
		slog.String("id", id),
		slog.String("variant", v.String()),
		slog.String("label", label))

	snap := el.Snapshot()
	for _, obs := range r.observers {
		obs.OnElementCreated(snap)
	}
	return id, nil
}

// newID samples the ID space, retrying on collision.
func (r *Registry) newID() (string, error) {
	space := r.schema.IDSpace()
	if len(r.elements) >= space {
		return "", &failure.AllocationError{Space: space}
	}

	digits := r.schema.IDHexDigits()
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		raw := strings.ToLower(r.idSource())
		if len(raw) < digits {
			continue
		}
		id := r.schema.FormatID(raw[:digits])
		if !r.schema.MatchID(id) {
			continue
		}
		if _, taken := r.elements[id]; taken {
			r.logger.Debug("Element ID collision", slog.String("id", id), slog.Int("attempt", attempt))
			continue
		}
		return id, nil
	}

	r.logger.Warn("Element ID allocation failed",
		slog.Int("attempts", r.maxAttempts),
		slog.Int("in_use", len(r.elements)),
		slog.Int("space", space))
	return "", &failure.AllocationError{Attempts: r.maxAttempts, Space: space}
}

// Lookup returns a snapshot of the element with the exact ID.
func (r *Registry) Lookup(id string) (element.Snapshot, bool) {
	el, ok := r.elements[id]
	if !ok {
		return element.Snapshot{}, false
	}
	return el.Snapshot(), true
}

// Contains reports whether an element with the exact ID exists.
func (r *Registry) Contains(id string) bool {
	_, ok := r.elements[id]
	return ok
}

// FindByLabelFragment returns the IDs of elements whose label contains text,
// case-insensitively, in insertion order. A blank fragment matches nothing.
func (r *Registry) FindByLabelFragment(text string) []string {
	needle := strings.ToLower(strings.TrimSpace(text))
	if needle == "" {
		return nil
	}

	var ids []string
	for _, id := range r.order {
		if strings.Contains(strings.ToLower(r.elements[id].Label()), needle) {
			ids = append(ids, id)
		}
	}
	return ids
}

// ApplyMutation applies op to the element with the given ID and notifies
// observers on success.
func (r *Registry) ApplyMutation(id string, op element.Operation) error {
	el, ok := r.elements[id]
	if !ok {
		return &failure.UnknownElementError{Ref: id}
	}

	if err := el.Apply(op); err != nil {
		return err
	}

	r.logger.Debug("Element mutated",
		slog.String("id", id),
		slog.String("operation", op.Name()),
		slog.Uint64("revision", el.Revision()))

	revision, state := el.Revision(), el.State()
	for _, obs := range r.observers {
		obs.OnElementUpdated(id, revision, state)
	}
	return nil
}

// Len returns the number of elements.
func (r *Registry) Len() int {
	return len(r.order)
}

// List returns snapshots of all elements in insertion order.
func (r *Registry) List() []element.Snapshot {
	snaps := make([]element.Snapshot, 0, len(r.order))
	for _, id := range r.order {
		snaps = append(snaps, r.elements[id].Snapshot())
	}
	return snaps
}

// MarshalJSON implements json.Marshaler for the registry.
func (r *Registry) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Schema   schema.Limits      `json:"schema"`
		Elements []element.Snapshot `json:"elements"`
	}{
		Schema:   r.schema.Limits(),
		Elements: r.List(),
	})
}
