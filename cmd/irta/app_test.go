package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/irta/config"
	"github.com/c360studio/irta/failure"
	"github.com/c360studio/irta/journal"
	"github.com/c360studio/irta/script"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Console.Color = "never"
	cfg.Journal.Path = filepath.Join(t.TempDir(), "journal.db")
	return cfg
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startApp(t *testing.T, cfg *config.Config) (*App, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	app := NewApp(cfg, &out, quietLogger())
	require.NoError(t, app.Start(context.Background()))
	t.Cleanup(app.Shutdown)
	return app, &out
}

func TestAppStartStop(t *testing.T) {
	app, _ := startApp(t, testConfig(t))

	assert.NotNil(t, app.Interpreter())
	assert.Nil(t, app.natsConn, "no NATS without a URL")
	assert.Nil(t, app.collector)
	assert.Nil(t, app.journal)

	// Idempotent
	app.Shutdown()
	app.Shutdown()
}

func TestAppStartInvalidSchema(t *testing.T) {
	cfg := testConfig(t)
	cfg.Schema.MetricMin = 10
	cfg.Schema.MetricMax = 1

	app := NewApp(cfg, io.Discard, quietLogger())
	assert.Error(t, app.Start(context.Background()))
	app.Shutdown()
}

func TestAppExecute(t *testing.T) {
	app, out := startApp(t, testConfig(t))

	created := app.Execute("create a metric called CPU Usage")
	require.True(t, created.OK())

	updated := app.Execute("set CPU Usage to 42")
	require.True(t, updated.OK())
	assert.Equal(t, created.ElementID, updated.ElementID)
	assert.Equal(t, uint64(1), updated.Revision)

	rejected := app.Execute("set CPU Usage to 150")
	assert.False(t, rejected.OK())

	text := out.String()
	assert.Contains(t, text, `System: Created Metric `+created.ElementID+` "CPU Usage"`)
	assert.Contains(t, text, created.ElementID+" CPU Usage -> 42% (rev 1)")
	assert.Contains(t, text, `System: Rejected "set CPU Usage to 150"`)
}

func TestAppMaxAttempts(t *testing.T) {
	cfg := testConfig(t)
	cfg.Schema.MaxAttempts = 3

	var calls int
	app := NewApp(cfg, io.Discard, quietLogger())
	app.idSource = func() string {
		calls++
		return "abcd"
	}
	require.NoError(t, app.Start(context.Background()))
	t.Cleanup(app.Shutdown)

	require.True(t, app.Execute("create metric called First").OK())
	calls = 0

	second := app.Execute("create metric called Second")
	assert.Equal(t, failure.KindAllocation, second.Kind())
	assert.Equal(t, 3, calls)

	var alloc *failure.AllocationError
	require.ErrorAs(t, second.Err, &alloc)
	assert.Equal(t, 3, alloc.Attempts)
}

func TestAppREPL(t *testing.T) {
	app, out := startApp(t, testConfig(t))

	input := strings.Join([]string{
		"/help",
		"/list",
		"create a status light for Database",
		"toggle Database",
		"/list",
		"/show",
		"/show node-zzzz",
		"/schema",
		"/config",
		"/journal",
		"/bogus",
		"",
		"hello there",
		"quit",
		"create metric called Never Runs",
	}, "\n")

	require.NoError(t, app.RunREPL(context.Background(), strings.NewReader(input)))

	text := out.String()
	assert.Contains(t, text, "Available commands:")
	assert.Contains(t, text, "No elements.")
	assert.Contains(t, text, "Database ONLINE")
	assert.Contains(t, text, "Usage: /show <id>")
	assert.Contains(t, text, "Unknown element: node-zzzz")
	assert.Contains(t, text, "Metric range:   0..100")
	assert.Contains(t, text, "id_prefix: node-")
	assert.Contains(t, text, "Journal is disabled")
	assert.Contains(t, text, "Unknown command: /bogus")
	assert.Contains(t, text, `Rejected "hello there"`)
	assert.NotContains(t, text, "Never Runs")
	assert.Equal(t, 1, app.Interpreter().Registry().Len())
}

func TestAppREPLShowElement(t *testing.T) {
	app, out := startApp(t, testConfig(t))

	created := app.Execute("create data view called Logs")
	require.True(t, created.OK())
	app.Execute("add item boot to Logs")

	input := "/show " + strings.ToUpper(created.ElementID) + "\n"
	require.NoError(t, app.RunREPL(context.Background(), strings.NewReader(input)))

	assert.Contains(t, out.String(), "Label:        Logs")
	assert.Contains(t, out.String(), "   1. boot")
}

func TestAppREPLEOF(t *testing.T) {
	app, _ := startApp(t, testConfig(t))
	assert.NoError(t, app.RunREPL(context.Background(), strings.NewReader("")))
}

func TestAppJournal(t *testing.T) {
	cfg := testConfig(t)
	cfg.Journal.Enabled = true
	app, out := startApp(t, cfg)

	created := app.Execute("create metric called Load")
	require.True(t, created.OK())
	app.Execute("set Load to 7")
	app.Execute("toggle Load")

	require.NoError(t, app.RunREPL(context.Background(), strings.NewReader("/journal 2\n")))
	text := out.String()
	assert.Contains(t, text, "updated")
	assert.Contains(t, text, `"toggle Load" (capability_mismatch)`)

	entries, err := app.journal.ForElement(context.Background(), created.ElementID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, journal.EventCreated, entries[0].Event)
	assert.Equal(t, journal.EventUpdated, entries[1].Event)
}

func TestAppRunScripts(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "a.irta")
	second := filepath.Join(dir, "b.irta")
	require.NoError(t, os.WriteFile(first, []byte("# setup\ncreate metric called Temp\n"), 0644))
	require.NoError(t, os.WriteFile(second, []byte("set Temp to 20\nset Temp to 500\nset Temp to 30\n"), 0644))

	app, _ := startApp(t, testConfig(t))

	res, err := app.RunScripts(context.Background(), []string{filepath.Join(dir, "*.irta")}, false)
	require.NoError(t, err)
	assert.Equal(t, script.Result{Executed: 4, Rejected: 1}, res)

	snaps := app.Interpreter().Registry().List()
	require.Len(t, snaps, 1)
	assert.Equal(t, "Temp (30%)", snaps[0].Summary())
}

func TestAppRunScriptsStopOnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.irta")
	require.NoError(t, os.WriteFile(path, []byte("create metric called Temp\nflip the table\nset Temp to 9\n"), 0644))

	app, _ := startApp(t, testConfig(t))

	res, err := app.RunScripts(context.Background(), []string{path}, true)
	var rejected *script.RejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, 2, rejected.Line.Number)
	assert.Equal(t, 2, res.Executed)
}

func TestAppRunScriptsNoMatch(t *testing.T) {
	app, _ := startApp(t, testConfig(t))

	_, err := app.RunScripts(context.Background(), []string{filepath.Join(t.TempDir(), "*.irta")}, false)
	assert.ErrorContains(t, err, "no script files match")
}

func TestAppServeRequiresNATS(t *testing.T) {
	app, _ := startApp(t, testConfig(t))
	assert.ErrorContains(t, app.Serve(context.Background()), "nats.url")
}

func TestAppBadNATSURL(t *testing.T) {
	cfg := testConfig(t)
	cfg.NATS.URL = "nats://127.0.0.1:1"

	app := NewApp(cfg, io.Discard, quietLogger())
	defer app.Shutdown()
	err := app.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NATS connection failed")
}

func TestColorOption(t *testing.T) {
	assert.Len(t, colorOption("always"), 1)
	assert.Len(t, colorOption("NEVER"), 1)
	assert.Empty(t, colorOption("auto"))
}
