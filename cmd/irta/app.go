package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"gopkg.in/yaml.v3"

	"github.com/c360studio/irta/config"
	"github.com/c360studio/irta/console"
	"github.com/c360studio/irta/element"
	"github.com/c360studio/irta/interpreter"
	"github.com/c360studio/irta/journal"
	"github.com/c360studio/irta/metrics"
	"github.com/c360studio/irta/natsbus"
	"github.com/c360studio/irta/registry"
	"github.com/c360studio/irta/schema"
	"github.com/c360studio/irta/script"
)

// App is the main application that wires together all components.
type App struct {
	cfg    *config.Config
	out    io.Writer
	logger *slog.Logger

	// NATS
	natsConn *nats.Conn
	js       jetstream.JetStream

	// Renderers
	console   *console.Renderer
	collector *metrics.Collector
	journal   *journal.Journal
	publisher *natsbus.Publisher

	interp *interpreter.Interpreter

	// idSource overrides random ID sampling when set.
	idSource registry.IDSource

	cancel      context.CancelFunc
	metricsDone chan struct{}
	stopOnce    sync.Once
}

// NewApp creates a new application instance. Nothing is connected until
// Start.
func NewApp(cfg *config.Config, out io.Writer, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.Default()
	}
	return &App{
		cfg:    cfg,
		out:    out,
		logger: logger,
	}
}

// Start initializes and starts all components.
func (a *App) Start(ctx context.Context) error {
	sch, err := a.cfg.Schema.Build()
	if err != nil {
		return err
	}

	ctx, a.cancel = context.WithCancel(ctx)

	if a.cfg.NATS.URL != "" {
		if err := a.startNATS(ctx); err != nil {
			return fmt.Errorf("start NATS: %w", err)
		}
	}

	a.console = console.New(a.out, colorOption(a.cfg.Console.Color)...)
	renderers := []interpreter.Renderer{a.console}
	var observers []interpreter.CommandObserver

	if a.natsConn != nil {
		a.publisher = natsbus.NewPublisher(a.natsConn, a.cfg.NATS.Prefix, a.logger)
		renderers = append(renderers, a.publisher)
	}

	if a.cfg.Metrics.Enabled {
		a.collector = metrics.New()
		renderers = append(renderers, a.collector)
		observers = append(observers, a.collector)

		a.metricsDone = make(chan struct{})
		go func() {
			defer close(a.metricsDone)
			if err := a.collector.Serve(ctx, a.cfg.Metrics.Addr, a.cfg.Metrics.Path, a.logger); err != nil {
				a.logger.Error("Metrics endpoint failed", slog.String("error", err.Error()))
			}
		}()
	}

	if a.cfg.Journal.Enabled {
		j, err := journal.Open(a.cfg.Journal.Path, a.logger)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		a.journal = j
		renderers = append(renderers, j)
	}

	a.interp = interpreter.New(sch,
		interpreter.WithRenderer(renderers...),
		interpreter.WithCommandObserver(observers...),
		interpreter.WithRegistryOptions(
			registry.WithMaxAttempts(a.cfg.Schema.MaxAttempts),
			registry.WithIDSource(a.idSource),
		),
		interpreter.WithLogger(a.logger),
	)

	a.logger.Debug("Components initialized",
		slog.Int("renderers", len(renderers)),
		slog.Bool("nats", a.natsConn != nil),
		slog.Bool("metrics", a.collector != nil),
		slog.Bool("journal", a.journal != nil))
	return nil
}

func colorOption(mode string) []console.Option {
	switch strings.ToLower(mode) {
	case "always":
		return []console.Option{console.WithColor(true)}
	case "never":
		return []console.Option{console.WithColor(false)}
	}
	return nil
}

func (a *App) startNATS(ctx context.Context) error {
	url := a.cfg.NATS.URL
	a.logger.Info("Connecting to NATS", slog.String("url", url))

	conn, err := nats.Connect(url,
		nats.Name(a.cfg.NATS.Name),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				a.logger.Warn("NATS disconnected", slog.String("error", err.Error()))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			a.logger.Info("NATS reconnected", slog.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return wrapNATSError(err, url)
	}
	a.natsConn = conn

	if a.cfg.NATS.Stream == "" {
		return nil
	}

	// Get JetStream context
	js, err := jetstream.New(conn)
	if err != nil {
		return fmt.Errorf("create JetStream context: %w", err)
	}
	a.js = js

	streamCfg := natsbus.EventStreamConfig(a.cfg.NATS.Stream, a.cfg.NATS.Prefix, a.cfg.NATS.StreamMaxAge)
	if err := natsbus.EnsureStream(ctx, js, streamCfg); err != nil {
		return err
	}
	a.logger.Debug("JetStream stream ready", slog.String("stream", streamCfg.Name))
	return nil
}

// wrapNATSError provides helpful guidance when NATS connection fails.
func wrapNATSError(err error, url string) error {
	if errors.Is(err, nats.ErrNoServers) ||
		strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "timeout") {
		return fmt.Errorf(`NATS connection failed: %w

NATS is not running at %s.

To start NATS:
  docker run -p 4222:4222 nats -js

Or set IRTA_NATS_URL to point to your NATS server.`, err, url)
	}
	return fmt.Errorf("NATS connection failed: %w", err)
}

// Shutdown gracefully stops all components. It is safe to call more than
// once.
func (a *App) Shutdown() {
	a.stopOnce.Do(func() {
		if a.cancel != nil {
			a.cancel()
		}
		if a.metricsDone != nil {
			<-a.metricsDone
		}
		if a.journal != nil {
			if err := a.journal.Close(); err != nil {
				a.logger.Warn("Failed to close journal", slog.String("error", err.Error()))
			}
		}
		// Close NATS connection
		if a.natsConn != nil {
			if err := a.natsConn.Drain(); err != nil {
				a.natsConn.Close()
			}
		}
	})
}

// Interpreter returns the running interpreter.
func (a *App) Interpreter() *interpreter.Interpreter {
	return a.interp
}

// Execute runs one command.
func (a *App) Execute(text string) interpreter.Outcome {
	return a.interp.Execute(text)
}

func (a *App) runner(stopOnError bool) *script.Runner {
	return script.NewRunner(a.interp,
		script.WithStopOnError(stopOnError),
		script.WithLogger(a.logger))
}

// RunScripts executes every file matching the patterns, in order.
func (a *App) RunScripts(ctx context.Context, patterns []string, stopOnError bool) (script.Result, error) {
	paths, err := script.ResolvePaths(patterns)
	if err != nil {
		return script.Result{}, fmt.Errorf("resolve scripts: %w", err)
	}
	if len(paths) == 0 {
		return script.Result{}, fmt.Errorf("no script files match %s", strings.Join(patterns, ", "))
	}
	return a.runner(stopOnError).RunFiles(ctx, paths)
}

// Watch follows a command file, executing appended lines until ctx is
// cancelled.
func (a *App) Watch(ctx context.Context, path string, stopOnError bool) (script.Result, error) {
	tailCfg := script.TailConfig{
		DebounceDelay: a.cfg.Watch.DebounceDelay,
		FromStart:     a.cfg.Watch.FromStart,
	}
	t, err := script.NewTailer(tailCfg, path, a.logger)
	if err != nil {
		return script.Result{}, fmt.Errorf("create tailer: %w", err)
	}
	if err := t.Start(ctx); err != nil {
		_ = t.Stop()
		return script.Result{}, fmt.Errorf("start tailer: %w", err)
	}
	defer t.Stop()

	return a.runner(stopOnError).Follow(ctx, t)
}

// Serve executes commands received on the NATS command subject until ctx is
// cancelled.
func (a *App) Serve(ctx context.Context) error {
	if a.natsConn == nil {
		return fmt.Errorf("serve requires nats.url (or IRTA_NATS_URL)")
	}
	subject := natsbus.SubjectCommand(a.cfg.NATS.Prefix)
	intake := natsbus.NewIntake(a.natsConn, a.interp, subject, a.logger)
	return intake.Serve(ctx, a.natsConn)
}

// RunREPL runs the interactive REPL loop.
func (a *App) RunREPL(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)

	for {
		if ctx.Err() != nil {
			return nil
		}
		fmt.Fprint(a.out, a.cfg.Console.Prompt)

		if !scanner.Scan() {
			// EOF (Ctrl+D)
			fmt.Fprintln(a.out)
			return scanner.Err()
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		// Check for exit commands
		if input == "quit" || input == "exit" {
			return nil
		}

		// Check for built-in commands
		if strings.HasPrefix(input, "/") {
			a.handleCommand(ctx, input)
			continue
		}

		a.interp.Execute(input)
	}
}

func (a *App) handleCommand(ctx context.Context, input string) {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return
	}

	cmd := parts[0]
	switch cmd {
	case "/help":
		printHelp(a.out)

	case "/list":
		a.console.PrintList(a.interp.Registry().List())

	case "/show":
		if len(parts) < 2 {
			fmt.Fprintln(a.out, "Usage: /show <id>")
			return
		}
		snap, ok := a.interp.Registry().Lookup(strings.ToLower(parts[1]))
		if !ok {
			fmt.Fprintf(a.out, "Unknown element: %s\n", parts[1])
			return
		}
		a.console.PrintElement(snap)

	case "/schema":
		printSchema(a.out, a.interp.Schema())

	case "/config":
		if err := printConfig(a.out, a.cfg); err != nil {
			fmt.Fprintf(a.out, "Error: %v\n", err)
		}

	case "/journal":
		a.printJournal(ctx, parts[1:])

	default:
		fmt.Fprintf(a.out, "Unknown command: %s\n", cmd)
		fmt.Fprintln(a.out, "Type /help for available commands.")
	}
}

func (a *App) printJournal(ctx context.Context, args []string) {
	if a.journal == nil {
		fmt.Fprintln(a.out, "Journal is disabled (set journal.enabled).")
		return
	}
	limit := 20
	if len(args) > 0 {
		if n, err := strconv.Atoi(args[0]); err == nil && n > 0 {
			limit = n
		}
	}
	entries, err := a.journal.Recent(ctx, limit)
	if err != nil {
		fmt.Fprintf(a.out, "Error: %v\n", err)
		return
	}
	printEntries(a.out, entries)
}

func printHelp(w io.Writer) {
	fmt.Fprintln(w, "Available commands:")
	fmt.Fprintln(w, "  /help          - Show this help")
	fmt.Fprintln(w, "  /list          - List elements")
	fmt.Fprintln(w, "  /show <id>     - Show one element")
	fmt.Fprintln(w, "  /schema        - Show the constraint schema")
	fmt.Fprintln(w, "  /config        - Show current configuration")
	fmt.Fprintln(w, "  /journal [n]   - Show the last n journal entries")
	fmt.Fprintln(w, "  quit/exit      - Exit the REPL")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Or type a command, for example:")
	fmt.Fprintln(w, "  create a metric called CPU Usage")
	fmt.Fprintln(w, "  set CPU Usage to 42")
	fmt.Fprintln(w, "  add item \"disk full\" to System Logs")
	fmt.Fprintln(w, "  toggle node-a3f2")
}

func printSchema(w io.Writer, sch *schema.Schema) {
	lo, hi := sch.MetricRange()
	fmt.Fprintf(w, "Metric range:   %d..%d\n", lo, hi)
	fmt.Fprintf(w, "Label length:   1..%d\n", sch.MaxLabelLen())
	fmt.Fprintf(w, "List capacity:  %d items of up to %d characters\n", sch.MaxListItems(), sch.MaxItemLen())
	fmt.Fprintf(w, "Element IDs:    %s + %d hex digits (%d possible)\n", sch.IDPrefix(), sch.IDHexDigits(), sch.IDSpace())
	fmt.Fprintln(w, "Variants:")
	for _, v := range element.AllVariants() {
		fmt.Fprintf(w, "  %-9s %s\n", v, v.Capabilities())
	}
}

func printConfig(w io.Writer, cfg *config.Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	_, err = w.Write(data)
	return err
}

func printEntries(w io.Writer, entries []journal.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No journal entries.")
		return
	}
	dim := color.New(color.Faint)
	for _, e := range entries {
		ts := dim.Sprint(e.CreatedAt.Local().Format("15:04:05.000"))
		switch e.Event {
		case journal.EventRejected:
			fmt.Fprintf(w, "%5d %s %-8s %q (%s)\n", e.Seq, ts, e.Event, e.Command, e.Kind)
		default:
			fmt.Fprintf(w, "%5d %s %-8s %s rev %d %s\n", e.Seq, ts, e.Event, e.ElementID, e.Revision, e.Payload)
		}
	}
}
