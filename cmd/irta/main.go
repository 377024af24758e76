// Package main provides the irta binary entry point.
// IRTA turns short natural-language commands into typed, validated state
// changes on a registry of interface elements.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/c360studio/irta/config"
	"github.com/c360studio/irta/journal"
	"github.com/c360studio/irta/logging"
	"github.com/c360studio/irta/script"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "irta"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd(os.Stdin, os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	logLevel   string
	natsURL    string
	metrics    bool
	journal    string
	noColor    bool
	fromStart  bool
}

// overrides turns flags into a sparse config for Merge.
func (f *globalFlags) overrides() *config.Config {
	o := &config.Config{
		Log:  config.LogConfig{Level: f.logLevel},
		NATS: config.NATSConfig{URL: f.natsURL},
	}
	o.Metrics.Enabled = f.metrics
	if f.journal != "" {
		o.Journal.Enabled = true
		o.Journal.Path = f.journal
	}
	if f.noColor {
		o.Console.Color = "never"
	}
	return o
}

// session bundles what a subcommand needs once config and logging are set
// up.
type session struct {
	cfg     *config.Config
	logger  *slog.Logger
	closeFn func() error
}

func (s *session) close() {
	if s.closeFn != nil {
		_ = s.closeFn()
	}
}

func openSession(f *globalFlags, stderr io.Writer) (*session, error) {
	// Bootstrap logger for the loader itself
	bootstrap, _, err := logging.New(config.LogConfig{Level: f.logLevel}, stderr)
	if err != nil {
		return nil, err
	}

	cfg, err := config.NewLoader(bootstrap).LoadWithFile(f.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg.Merge(f.overrides())
	if f.fromStart {
		cfg.Watch.FromStart = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger, closeFn, err := logging.New(cfg.Log, stderr)
	if err != nil {
		return nil, fmt.Errorf("configure logging: %w", err)
	}
	slog.SetDefault(logger)

	return &session{cfg: cfg, logger: logger, closeFn: closeFn}, nil
}

// withApp loads config, starts the app, runs fn and shuts down. Signals
// cancel the context passed to fn.
func withApp(cmd *cobra.Command, f *globalFlags, fn func(ctx context.Context, app *App) error) error {
	s, err := openSession(f, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer s.close()

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	app := NewApp(s.cfg, cmd.OutOrStdout(), s.logger)
	defer app.Shutdown()
	if err := app.Start(ctx); err != nil {
		return err
	}
	return fn(ctx, app)
}

func rootCmd(in io.Reader, out, errOut io.Writer) *cobra.Command {
	flags := &globalFlags{}

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Natural-language interface runtime",
		Long: `IRTA interprets short natural-language commands and applies them as
validated state changes to a registry of interface elements:

- metrics hold a bounded integer value
- data views hold a bounded list of text items
- status indicators hold an on/off flag

Commands are typed at the REPL, read from script files, followed from a
watched file, or received over NATS.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runREPL(cmd, flags, in)
		},
	}
	cmd.SetIn(in)
	cmd.SetOut(out)
	cmd.SetErr(errOut)

	pf := cmd.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "", "Config file path (YAML); replaces user and project config")
	pf.StringVar(&flags.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	pf.StringVar(&flags.natsURL, "nats", "", "NATS server URL")
	pf.BoolVar(&flags.metrics, "metrics", false, "Expose Prometheus metrics")
	pf.StringVar(&flags.journal, "journal", "", "Record events to this SQLite journal")
	pf.BoolVar(&flags.noColor, "no-color", false, "Disable colored output")

	cmd.AddCommand(
		replCmd(flags, in),
		execCmd(flags),
		runCmd(flags),
		watchCmd(flags),
		serveCmd(flags),
		journalCmd(flags),
		schemaCmd(flags),
		configCmd(flags),
		versionCmd(),
	)
	return cmd
}

func replCmd(flags *globalFlags, in io.Reader) *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Start the interactive prompt (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runREPL(cmd, flags, in)
		},
	}
}

func runREPL(cmd *cobra.Command, flags *globalFlags, in io.Reader) error {
	return withApp(cmd, flags, func(ctx context.Context, app *App) error {
		printBanner(cmd.OutOrStdout())
		return app.RunREPL(ctx, in)
	})
}

func execCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "exec <command>...",
		Short:   "Execute one command per argument",
		Example: `  irta exec "create a metric called CPU" "set CPU to 42"`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, app *App) error {
				lines := make([]script.Line, 0, len(args))
				for i, a := range args {
					lines = append(lines, script.Line{Path: "<args>", Number: i + 1, Text: a})
				}
				res, err := app.runner(true).RunLines(ctx, lines)
				if err != nil {
					return err
				}
				app.logger.Debug("Executed commands", slog.Int("executed", res.Executed))
				return nil
			})
		},
	}
}

func runCmd(flags *globalFlags) *cobra.Command {
	var keepGoing bool
	cmd := &cobra.Command{
		Use:   "run <script|glob>...",
		Short: "Execute command script files",
		Long: `Execute command script files in order. Each non-blank line not starting
with # is one command. Patterns support ** globs, e.g. 'scripts/**/*.irta'.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, app *App) error {
				res, err := app.RunScripts(ctx, args, !keepGoing)
				fmt.Fprintf(cmd.OutOrStdout(), "%d commands executed, %d rejected\n", res.Executed, res.Rejected)
				return err
			})
		},
	}
	cmd.Flags().BoolVarP(&keepGoing, "keep-going", "k", false, "Continue after a rejected command")
	return cmd
}

func watchCmd(flags *globalFlags) *cobra.Command {
	var stopOnErr bool
	cmd := &cobra.Command{
		Use:   "watch <file>",
		Short: "Follow a command file and execute appended lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, app *App) error {
				res, err := app.Watch(ctx, args[0], stopOnErr)
				app.logger.Info("Watch stopped",
					slog.Int("executed", res.Executed),
					slog.Int("rejected", res.Rejected))
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&flags.fromStart, "from-start", false, "Execute existing lines before following")
	cmd.Flags().BoolVar(&stopOnErr, "stop-on-error", false, "Stop at the first rejected command")
	return cmd
}

func serveCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Execute commands received over NATS",
		Long: `Subscribe to <prefix>.command and execute each message body as a command,
one at a time. Requests with a reply subject get a JSON result. Element
events are published to <prefix>.element.created and .updated.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, app *App) error {
				printBanner(cmd.OutOrStdout())
				err := app.Serve(ctx)
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			})
		},
	}
}

func journalCmd(flags *globalFlags) *cobra.Command {
	var (
		limit     int
		elementID string
	)
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Show recorded journal entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(flags, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer s.close()

			if _, err := os.Stat(s.cfg.Journal.Path); err != nil {
				return fmt.Errorf("journal %s: %w", s.cfg.Journal.Path, err)
			}
			j, err := journal.Open(s.cfg.Journal.Path, s.logger)
			if err != nil {
				return fmt.Errorf("open journal: %w", err)
			}
			defer j.Close()

			var entries []journal.Entry
			if elementID != "" {
				entries, err = j.ForElement(cmd.Context(), strings.ToLower(elementID))
			} else {
				entries, err = j.Recent(cmd.Context(), limit)
			}
			if err != nil {
				return err
			}
			printEntries(cmd.OutOrStdout(), entries)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Number of entries to show")
	cmd.Flags().StringVar(&elementID, "element", "", "Only show entries for this element ID")
	return cmd
}

func schemaCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the constraint schema in force",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(flags, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer s.close()

			sch, err := s.cfg.Schema.Build()
			if err != nil {
				return err
			}
			printSchema(cmd.OutOrStdout(), sch)
			return nil
		},
	}
}

func configCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(flags, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer s.close()
			return printConfig(cmd.OutOrStdout(), s.cfg)
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write a default user config if none exists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.NewLoader(nil).EnsureUserConfig()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	})
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	}
}

func printBanner(w io.Writer) {
	banner := color.New(color.FgCyan, color.Bold)
	banner.Fprintf(w, "IRTA v%s", Version)
	fmt.Fprintln(w, " - type /help for commands, quit to exit")
}
