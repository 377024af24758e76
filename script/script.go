// Package script runs files of commands, one command per line. Blank lines
// and lines starting with # are skipped.
package script

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/c360studio/irta/interpreter"
)

// Line is one command from a script.
type Line struct {
	Path   string
	Number int
	Text   string
}

// Executor runs one command.
type Executor interface {
	Execute(text string) interpreter.Outcome
}

// IsCommand reports whether a raw script line carries a command.
func IsCommand(text string) bool {
	text = strings.TrimSpace(text)
	return text != "" && !strings.HasPrefix(text, "#")
}

// Parse reads commands from r.
func Parse(r io.Reader, path string) ([]Line, error) {
	var lines []Line
	scanner := bufio.NewScanner(r)
	n := 0
	for scanner.Scan() {
		n++
		if text := scanner.Text(); IsCommand(text) {
			lines = append(lines, Line{Path: path, Number: n, Text: strings.TrimSpace(text)})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read script %s: %w", path, err)
	}
	return lines, nil
}

// Load reads the commands in the file at path.
func Load(path string) ([]Line, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open script: %w", err)
	}
	defer f.Close()
	return Parse(f, path)
}

// Result counts what a run did.
type Result struct {
	Executed int
	Rejected int
}

// Add accumulates another result.
func (r *Result) Add(other Result) {
	r.Executed += other.Executed
	r.Rejected += other.Rejected
}

// Runner executes script lines in order through one executor.
type Runner struct {
	exec        Executor
	stopOnError bool
	logger      *slog.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithStopOnError stops a run at the first rejected command.
func WithStopOnError(stop bool) RunnerOption {
	return func(r *Runner) {
		r.stopOnError = stop
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRunner creates a runner.
func NewRunner(exec Executor, opts ...RunnerOption) *Runner {
	r := &Runner{exec: exec, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RejectedError is returned when a run stops at a rejected command.
type RejectedError struct {
	Line Line
	Err  error
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("%s:%d: %v", e.Line.Path, e.Line.Number, e.Err)
}

func (e *RejectedError) Unwrap() error {
	return e.Err
}

// RunLines executes lines until done, ctx is cancelled, or, with
// WithStopOnError, a command is rejected.
func (r *Runner) RunLines(ctx context.Context, lines []Line) (Result, error) {
	var res Result
	for _, line := range lines {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if stop, err := r.runLine(&res, line); stop {
			return res, err
		}
	}
	return res, nil
}

func (r *Runner) runLine(res *Result, line Line) (bool, error) {
	out := r.exec.Execute(line.Text)
	res.Executed++
	if out.OK() {
		return false, nil
	}

	res.Rejected++
	r.logger.Debug("Script command rejected",
		slog.String("path", line.Path),
		slog.Int("line", line.Number),
		slog.String("kind", out.Kind().String()))
	if r.stopOnError {
		return true, &RejectedError{Line: line, Err: out.Err}
	}
	return false, nil
}

// RunFiles loads and executes each file in order.
func (r *Runner) RunFiles(ctx context.Context, paths []string) (Result, error) {
	var total Result
	for _, path := range paths {
		lines, err := Load(path)
		if err != nil {
			return total, err
		}
		r.logger.Info("Running script", slog.String("path", path), slog.Int("commands", len(lines)))

		res, err := r.RunLines(ctx, lines)
		total.Add(res)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// Follow executes lines from a tailer as they arrive, until ctx is cancelled
// or the tailer stops.
func (r *Runner) Follow(ctx context.Context, t *Tailer) (Result, error) {
	var res Result
	for {
		select {
		case <-ctx.Done():
			return res, nil
		case line, ok := <-t.Lines():
			if !ok {
				return res, nil
			}
			if stop, err := r.runLine(&res, line); stop {
				return res, err
			}
		}
	}
}
