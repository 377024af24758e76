package script

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

const (
	// lineChannelBuffer is the size of the tail line channel.
	lineChannelBuffer = 500
)

// TailConfig configures command file tailing.
type TailConfig struct {
	// DebounceDelay is how long to wait for more writes before reading.
	DebounceDelay string `yaml:"debounce_delay" json:"debounce_delay"`

	// FromStart executes the commands already in the file before following it.
	FromStart bool `yaml:"from_start" json:"from_start"`
}

// DefaultTailConfig returns default tail configuration.
func DefaultTailConfig() TailConfig {
	return TailConfig{
		DebounceDelay: "200ms",
	}
}

// GetDebounceDelay returns the debounce delay as a duration.
func (c *TailConfig) GetDebounceDelay() time.Duration {
	if c.DebounceDelay == "" {
		return 200 * time.Millisecond
	}
	d, err := time.ParseDuration(c.DebounceDelay)
	if err != nil || d <= 0 {
		return 200 * time.Millisecond
	}
	return d
}

// Tailer follows a command file and emits each complete line appended to it.
// The parent directory is watched, so editors that replace the file and
// truncation both work: reading restarts from the top.
type Tailer struct {
	config  TailConfig
	path    string
	watcher *fsnotify.Watcher
	logger  *slog.Logger

	// Owned by the processEvents goroutine once started.
	offset  int64
	partial string
	number  int
	dirty   bool

	lines chan Line
}

// NewTailer creates a tailer for path.
func NewTailer(config TailConfig, path string, logger *slog.Logger) (*Tailer, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Tailer{
		config:  config,
		path:    absPath,
		watcher: fsw,
		logger:  logger,
		lines:   make(chan Line, lineChannelBuffer),
	}, nil
}

// Lines returns the channel of appended command lines. It is closed when the
// tailer stops.
func (t *Tailer) Lines() <-chan Line {
	return t.lines
}

// Path returns the absolute path being followed.
func (t *Tailer) Path() string {
	return t.path
}

// Start begins following the file, creating it if it does not exist.
func (t *Tailer) Start(ctx context.Context) error {
	f, err := os.OpenFile(t.path, os.O_RDONLY|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	info, err := f.Stat()
	f.Close()
	if err != nil {
		return err
	}

	if t.config.FromStart {
		t.dirty = true
	} else {
		t.offset = info.Size()
	}

	if err := t.watcher.Add(filepath.Dir(t.path)); err != nil {
		return err
	}

	go t.processEvents(ctx)

	t.logger.Info("Command file tail started",
		"path", t.path,
		"debounce", t.config.GetDebounceDelay(),
		"from_start", t.config.FromStart)

	return nil
}

// Stop stops the tailer. The lines channel is closed by processEvents when
// it exits.
func (t *Tailer) Stop() error {
	return t.watcher.Close()
}

// processEvents handles fsnotify events with debouncing.
func (t *Tailer) processEvents(ctx context.Context) {
	defer close(t.lines)
	ticker := time.NewTicker(t.config.GetDebounceDelay())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-t.watcher.Events:
			if !ok {
				return
			}
			t.handleFSEvent(event)

		case err, ok := <-t.watcher.Errors:
			if !ok {
				return
			}
			t.logger.Error("Watcher error", "error", err)

		case <-ticker.C:
			if t.dirty {
				t.dirty = false
				t.readAppended(ctx)
			}
		}
	}
}

func (t *Tailer) handleFSEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != t.path {
		return
	}

	if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		t.logger.Debug("Command file replaced", "path", t.path, "op", event.Op.String())
		t.reset()
		return
	}
	if event.Has(fsnotify.Create) {
		t.reset()
	}
	if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
		t.dirty = true
	}
}

func (t *Tailer) reset() {
	t.offset = 0
	t.partial = ""
}

// readAppended reads everything past the last offset and emits the complete
// lines. An unterminated last line is held until its newline arrives.
func (t *Tailer) readAppended(ctx context.Context) {
	f, err := os.Open(t.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			t.logger.Warn("Failed to open command file", "path", t.path, "error", err)
		}
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		t.logger.Warn("Failed to stat command file", "path", t.path, "error", err)
		return
	}
	if info.Size() < t.offset {
		t.logger.Debug("Command file truncated", "path", t.path)
		t.reset()
	}

	if _, err := f.Seek(t.offset, io.SeekStart); err != nil {
		t.logger.Warn("Failed to seek command file", "path", t.path, "error", err)
		return
	}
	chunk, err := io.ReadAll(f)
	if err != nil {
		t.logger.Warn("Failed to read command file", "path", t.path, "error", err)
		return
	}
	t.offset += int64(len(chunk))

	parts := strings.Split(t.partial+string(chunk), "\n")
	t.partial = parts[len(parts)-1]
	for _, raw := range parts[:len(parts)-1] {
		t.number++
		if !IsCommand(raw) {
			continue
		}
		if !t.sendLine(ctx, Line{Path: t.path, Number: t.number, Text: strings.TrimSpace(raw)}) {
			return
		}
	}
}

// sendLine blocks until the consumer takes the line. It reports false when
// ctx ends first.
func (t *Tailer) sendLine(ctx context.Context, line Line) bool {
	select {
	case t.lines <- line:
		t.logger.Debug("Sent command line", "line", line.Number)
		return true
	case <-ctx.Done():
		return false
	}
}
