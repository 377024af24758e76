// Package interpreter is the command handler: it classifies text, resolves
// the target, routes the operation and reports the outcome to renderers.
package interpreter

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/c360studio/irta/failure"
	"github.com/c360studio/irta/intent"
	"github.com/c360studio/irta/registry"
	"github.com/c360studio/irta/resolve"
	"github.com/c360studio/irta/router"
	"github.com/c360studio/irta/schema"
)

// Outcome describes what one command did.
type Outcome struct {
	Text   string
	Intent intent.Intent

	// ElementID is the created or targeted element, when one was identified.
	ElementID string
	Revision  uint64

	Err error
}

// OK reports whether the command was accepted.
func (o Outcome) OK() bool {
	return o.Err == nil
}

// Kind returns the failure kind of a rejected command, or "" when accepted.
func (o Outcome) Kind() failure.Kind {
	if o.Err == nil {
		return ""
	}
	kind, _ := failure.KindOf(o.Err)
	return kind
}

// Interpreter owns a registry and executes commands against it one at a
// time. It is not safe for concurrent use.
type Interpreter struct {
	schema     *schema.Schema
	registry   *registry.Registry
	classifier *intent.Classifier
	renderers  Fanout
	observers  []CommandObserver
	rules      []intent.Rule
	regOpts    []registry.Option
	logger     *slog.Logger
}

// Option configures an Interpreter.
type Option func(*Interpreter)

// WithRenderer adds renderers. They are also registered as registry observers.
func WithRenderer(rs ...Renderer) Option {
	return func(it *Interpreter) {
		for _, r := range rs {
			if r != nil {
				it.renderers = append(it.renderers, r)
			}
		}
	}
}

// WithCommandObserver adds observers of every executed command.
func WithCommandObserver(obs ...CommandObserver) Option {
	return func(it *Interpreter) {
		for _, o := range obs {
			if o != nil {
				it.observers = append(it.observers, o)
			}
		}
	}
}

// WithRules replaces the classifier rule table.
func WithRules(rules ...intent.Rule) Option {
	return func(it *Interpreter) {
		it.rules = rules
	}
}

// WithRegistryOptions passes options through to the owned registry.
func WithRegistryOptions(opts ...registry.Option) Option {
	return func(it *Interpreter) {
		it.regOpts = append(it.regOpts, opts...)
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(it *Interpreter) {
		if logger != nil {
			it.logger = logger
		}
	}
}

// New creates an interpreter with an empty registry validating against sch.
func New(sch *schema.Schema, opts ...Option) *Interpreter {
	if sch == nil {
		sch = schema.Default()
	}
	it := &Interpreter{
		schema: sch,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(it)
	}

	regOpts := append([]registry.Option{registry.WithLogger(it.logger)}, it.regOpts...)
	regOpts = append(regOpts, registry.WithObserver(it.renderers))
	it.registry = registry.New(sch, regOpts...)
	it.classifier = intent.New(sch, it.rules...)
	return it
}

// Registry returns the owned registry for read access.
func (it *Interpreter) Registry() *registry.Registry {
	return it.registry
}

// Schema returns the schema in force.
func (it *Interpreter) Schema() *schema.Schema {
	return it.schema
}

// Execute runs one command. Rejections are reported to every renderer and
// returned in the outcome; nothing is retried. Blank input is ignored.
func (it *Interpreter) Execute(text string) Outcome {
	start := time.Now()
	out := it.execute(text)
	if errors.Is(out.Err, failure.ErrEmptyCommand) {
		return out
	}

	if out.Err != nil {
		kind := out.Kind()
		it.logger.Debug("Command rejected",
			slog.String("command", out.Text),
			slog.String("kind", kind.String()),
			slog.String("error", out.Err.Error()))
		it.renderers.OnCommandRejected(out.Text, kind, out.Err.Error())
	} else {
		it.logger.Debug("Command accepted",
			slog.String("command", out.Text),
			slog.String("intent", out.Intent.String()),
			slog.String("element", out.ElementID),
			slog.Uint64("revision", out.Revision))
	}

	elapsed := time.Since(start)
	for _, obs := range it.observers {
		obs.ObserveCommand(out, elapsed)
	}
	return out
}

func (it *Interpreter) execute(text string) Outcome {
	out := Outcome{Text: strings.TrimSpace(text)}

	in, err := it.classifier.Classify(text)
	out.Intent = in
	if err != nil {
		out.Err = err
		return out
	}

	if in.Kind == intent.KindCreate {
		out.ElementID, out.Err = it.registry.Allocate(in.Variant, in.Label)
		return out
	}

	target, err := resolve.Resolve(it.registry, in.Target)
	if err != nil {
		out.Err = err
		return out
	}
	out.ElementID = target.ID
	out.Revision = target.Revision

	if err := router.Route(it.registry, target, in.Operation); err != nil {
		out.Err = err
		return out
	}
	if snap, ok := it.registry.Lookup(target.ID); ok {
		out.Revision = snap.Revision
	}
	return out
}
