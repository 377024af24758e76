package natsbus

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

// EventStreamConfig describes a JetStream stream that retains element
// events and rejections published under prefix.
func EventStreamConfig(name, prefix string, maxAge time.Duration) jetstream.StreamConfig {
	return jetstream.StreamConfig{
		Name:        name,
		Description: "IRTA element events",
		Subjects:    []string{prefix + ".element.>", SubjectRejected(prefix)},
		Storage:     jetstream.FileStorage,
		MaxAge:      maxAge,
	}
}

// EnsureStream creates or updates the event stream.
func EnsureStream(ctx context.Context, js jetstream.JetStream, cfg jetstream.StreamConfig) error {
	if _, err := js.CreateOrUpdateStream(ctx, cfg); err != nil {
		return fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
	}
	return nil
}
