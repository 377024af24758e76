// Package natsbus connects the interpreter to NATS: a renderer that publishes
// element notifications, and an intake that executes commands received on a
// subject.
package natsbus

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/c360studio/irta/element"
	"github.com/c360studio/irta/failure"
)

// DefaultPrefix is the subject prefix used when none is configured.
const DefaultPrefix = "irta"

// Conn is the subset of *nats.Conn the package publishes with.
type Conn interface {
	Publish(subject string, data []byte) error
}

// SubjectCreated is where creation events are published.
func SubjectCreated(prefix string) string {
	return prefix + ".element.created"
}

// SubjectUpdated is where mutation events are published.
func SubjectUpdated(prefix string) string {
	return prefix + ".element.updated"
}

// SubjectRejected is where rejected commands are published.
func SubjectRejected(prefix string) string {
	return prefix + ".command.rejected"
}

// SubjectCommand is where the intake listens for command text.
func SubjectCommand(prefix string) string {
	return prefix + ".command"
}

// CreatedEvent is published when an element is created.
type CreatedEvent struct {
	Element   element.Snapshot `json:"element"`
	Timestamp time.Time        `json:"timestamp"`
}

// UpdatedEvent is published when a mutation is committed.
type UpdatedEvent struct {
	ID        string        `json:"id"`
	Revision  uint64        `json:"revision"`
	State     element.State `json:"state"`
	Timestamp time.Time     `json:"timestamp"`
}

// RejectedEvent is published when a command is rejected.
type RejectedEvent struct {
	Command   string       `json:"command"`
	Kind      failure.Kind `json:"kind"`
	Detail    string       `json:"detail"`
	Timestamp time.Time    `json:"timestamp"`
}

// Publisher is a renderer that publishes JSON events. With a nil connection
// it does nothing.
type Publisher struct {
	conn   Conn
	prefix string
	logger *slog.Logger
	now    func() time.Time
}

// NewPublisher creates a publisher. An empty prefix means DefaultPrefix.
func NewPublisher(conn Conn, prefix string, logger *slog.Logger) *Publisher {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{conn: conn, prefix: prefix, logger: logger, now: time.Now}
}

// OnElementCreated implements registry.Observer.
func (p *Publisher) OnElementCreated(snap element.Snapshot) {
	p.publish(SubjectCreated(p.prefix), CreatedEvent{Element: snap, Timestamp: p.now()})
}

// OnElementUpdated implements registry.Observer.
func (p *Publisher) OnElementUpdated(id string, revision uint64, state element.State) {
	p.publish(SubjectUpdated(p.prefix), UpdatedEvent{ID: id, Revision: revision, State: state, Timestamp: p.now()})
}

// OnCommandRejected implements interpreter.Renderer.
func (p *Publisher) OnCommandRejected(text string, kind failure.Kind, detail string) {
	p.publish(SubjectRejected(p.prefix), RejectedEvent{Command: text, Kind: kind, Detail: detail, Timestamp: p.now()})
}

// publish never fails the command; delivery problems are logged.
func (p *Publisher) publish(subject string, event any) {
	if p.conn == nil {
		return
	}
	if err := p.send(subject, event); err != nil {
		p.logger.Warn("Failed to publish event", slog.String("subject", subject), slog.String("error", err.Error()))
	}
}

func (p *Publisher) send(subject string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}
