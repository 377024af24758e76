package natsbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/c360studio/irta/interpreter"
)

// DefaultQueueSize is the intake channel buffer.
const DefaultQueueSize = 64

// Executor runs one command.
type Executor interface {
	Execute(text string) interpreter.Outcome
}

// Reply is sent back to requests that carry a reply subject.
type Reply struct {
	OK        bool   `json:"ok"`
	ElementID string `json:"element_id,omitempty"`
	Revision  uint64 `json:"revision"`
	Kind      string `json:"kind,omitempty"`
	Error     string `json:"error,omitempty"`
}

// NewReply summarises an outcome.
func NewReply(out interpreter.Outcome) Reply {
	r := Reply{
		OK:        out.OK(),
		ElementID: out.ElementID,
		Revision:  out.Revision,
	}
	if out.Err != nil {
		r.Kind = out.Kind().String()
		r.Error = out.Err.Error()
	}
	return r
}

// Intake executes commands arriving on a subject strictly one at a time.
// Messages are funnelled through a buffered channel consumed by a single
// goroutine, which serialises access to the interpreter.
type Intake struct {
	conn      Conn
	exec      Executor
	subject   string
	queueSize int
	logger    *slog.Logger
}

// NewIntake creates an intake. conn is used to publish replies.
func NewIntake(conn Conn, exec Executor, subject string, logger *slog.Logger) *Intake {
	if logger == nil {
		logger = slog.Default()
	}
	return &Intake{
		conn:      conn,
		exec:      exec,
		subject:   subject,
		queueSize: DefaultQueueSize,
		logger:    logger,
	}
}

// Serve subscribes to the command subject on nc and processes messages until
// ctx is cancelled.
func (in *Intake) Serve(ctx context.Context, nc *nats.Conn) error {
	if nc == nil {
		return errors.New("natsbus: serve requires a NATS connection")
	}

	msgs := make(chan *nats.Msg, in.queueSize)
	sub, err := nc.ChanSubscribe(in.subject, msgs)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", in.subject, err)
	}
	defer func() {
		if err := sub.Unsubscribe(); err != nil {
			in.logger.Debug("Unsubscribe failed", slog.String("error", err.Error()))
		}
	}()

	in.logger.Info("Command intake listening", slog.String("subject", in.subject))
	return in.Run(ctx, msgs)
}

// Run consumes msgs until ctx is cancelled or msgs is closed.
func (in *Intake) Run(ctx context.Context, msgs <-chan *nats.Msg) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			in.handle(msg)
		}
	}
}

func (in *Intake) handle(msg *nats.Msg) {
	out := in.exec.Execute(string(msg.Data))
	if msg.Reply == "" || in.conn == nil {
		return
	}

	data, err := json.Marshal(NewReply(out))
	if err != nil {
		in.logger.Error("Failed to marshal reply", slog.String("error", err.Error()))
		return
	}
	if err := in.conn.Publish(msg.Reply, data); err != nil {
		in.logger.Warn("Failed to send reply",
			slog.String("reply", msg.Reply),
			slog.String("error", err.Error()))
	}
}
