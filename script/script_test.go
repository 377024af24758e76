package script

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/c360studio/irta/failure"
	"github.com/c360studio/irta/interpreter"
	"github.com/c360studio/irta/schema"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestParse(t *testing.T) {
	src := `# dashboard
create metric called CPU Usage

   set cpu to 40   
# done
`
	lines, err := Parse(strings.NewReader(src), "dash.irta")
	require.NoError(t, err)
	assert.Equal(t, []Line{
		{Path: "dash.irta", Number: 2, Text: "create metric called CPU Usage"},
		{Path: "dash.irta", Number: 4, Text: "set cpu to 40"},
	}, lines)
}

func TestRunFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.irta"), "create metric called CPU Usage\nset cpu to 40\n")
	writeFile(t, filepath.Join(dir, "b.irta"), "set cpu to 400\ncreate status called Database\n")

	it := interpreter.New(schema.Default())
	res, err := NewRunner(it).RunFiles(context.Background(), []string{
		filepath.Join(dir, "a.irta"),
		filepath.Join(dir, "b.irta"),
	})
	require.NoError(t, err)
	assert.Equal(t, Result{Executed: 4, Rejected: 1}, res)
	assert.Equal(t, 2, it.Registry().Len())
}

func TestRunStopOnError(t *testing.T) {
	it := interpreter.New(schema.Default())
	lines := []Line{
		{Path: "x.irta", Number: 1, Text: "create metric called Load"},
		{Path: "x.irta", Number: 2, Text: "toggle load"},
		{Path: "x.irta", Number: 3, Text: "set load to 5"},
	}

	res, err := NewRunner(it, WithStopOnError(true)).RunLines(context.Background(), lines)
	var rejected *RejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, 2, rejected.Line.Number)
	assert.Equal(t, "x.irta:2: "+rejected.Err.Error(), err.Error())

	kind, _ := failure.KindOf(err)
	assert.Equal(t, failure.KindCapabilityMismatch, kind)
	assert.Equal(t, Result{Executed: 2, Rejected: 1}, res)
}

func TestRunLinesHonoursCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := NewRunner(interpreter.New(nil)).RunLines(ctx, []Line{{Text: "create feed"}})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, res.Executed)
}

func TestResolvePaths(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "scripts", "b.irta"), "")
	writeFile(t, filepath.Join(dir, "scripts", "a.irta"), "")
	writeFile(t, filepath.Join(dir, "scripts", "nested", "c.irta"), "")
	writeFile(t, filepath.Join(dir, "scripts", "notes.txt"), "")

	paths, err := ResolvePaths([]string{
		filepath.Join(dir, "scripts", "**", "*.irta"),
		filepath.Join(dir, "scripts", "a.irta"),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "scripts", "a.irta"),
		filepath.Join(dir, "scripts", "b.irta"),
		filepath.Join(dir, "scripts", "nested", "c.irta"),
	}, paths)

	_, err = ResolvePaths([]string{filepath.Join(dir, "scripts", "*.none")})
	assert.Error(t, err)

	_, err = ResolvePaths([]string{filepath.Join(dir, "scripts")})
	assert.Error(t, err, "directories are not scripts")
}

func TestMakeAbsolutePattern(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)

	got, err := makeAbsolutePattern("*.irta")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(wd, "*.irta"), got)

	got, err = makeAbsolutePattern("scripts/**/*.irta")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(wd, "scripts")+string(filepath.Separator)+filepath.FromSlash("**/*.irta"), got)
}

func collect(t *testing.T, tl *Tailer, n int) []Line {
	t.Helper()
	var got []Line
	deadline := time.After(5 * time.Second)
	for len(got) < n {
		select {
		case line, ok := <-tl.Lines():
			require.True(t, ok, "tailer closed early")
			got = append(got, line)
		case <-deadline:
			t.Fatalf("timed out after %d of %d lines", len(got), n)
		}
	}
	return got
}

func appendTo(t *testing.T, path, text string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(text)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func TestTailerFollowsAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "commands.irta")
	writeFile(t, path, "create metric called Old\n")

	tl, err := NewTailer(TailConfig{DebounceDelay: "10ms"}, path, nil)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, tl.Start(ctx))

	appendTo(t, path, "# comment\ncreate status called Database\ntoggle data")
	got := collect(t, tl, 1)
	assert.Equal(t, "create status called Database", got[0].Text)

	appendTo(t, path, "base\n")
	got = collect(t, tl, 1)
	assert.Equal(t, "toggle database", got[0].Text)

	require.NoError(t, tl.Stop())
	for range tl.Lines() {
	}
}

func TestTailerFromStart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "commands.irta")
	writeFile(t, path, "create metric called CPU\nset cpu to 10\n")

	tl, err := NewTailer(TailConfig{DebounceDelay: "10ms", FromStart: true}, path, nil)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, tl.Start(ctx))

	got := collect(t, tl, 2)
	assert.Equal(t, 1, got[0].Number)
	assert.Equal(t, "set cpu to 10", got[1].Text)

	cancel()
	for range tl.Lines() {
	}
	require.NoError(t, tl.Stop())
}

func TestTailerKeepsEveryLineWhenConsumerLags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "burst.irta")
	writeFile(t, path, "")

	tl, err := NewTailer(TailConfig{DebounceDelay: "10ms"}, path, nil)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, tl.Start(ctx))

	total := lineChannelBuffer + 100
	var b strings.Builder
	for i := 0; i < total; i++ {
		fmt.Fprintf(&b, "toggle node-%04x\n", i)
	}
	appendTo(t, path, b.String())

	// Let the reader fill the channel before draining.
	time.Sleep(100 * time.Millisecond)

	got := collect(t, tl, total)
	for i, line := range got {
		assert.Equal(t, i+1, line.Number)
	}
	assert.Equal(t, fmt.Sprintf("toggle node-%04x", total-1), got[total-1].Text)

	cancel()
	for range tl.Lines() {
	}
	require.NoError(t, tl.Stop())
}

type commandCounter struct {
	n atomic.Int64
}

func (c *commandCounter) ObserveCommand(interpreter.Outcome, time.Duration) {
	c.n.Add(1)
}

func TestFollowExecutes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "live.irta")

	tl, err := NewTailer(TailConfig{DebounceDelay: "10ms"}, path, nil)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, tl.Start(ctx))

	counter := &commandCounter{}
	it := interpreter.New(schema.Default(), interpreter.WithCommandObserver(counter))
	done := make(chan Result, 1)
	go func() {
		res, _ := NewRunner(it).Follow(ctx, tl)
		done <- res
	}()

	appendTo(t, path, "create gauge called Load\nset load to 75\n")
	require.Eventually(t, func() bool {
		return counter.n.Load() == 2
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	res := <-done
	assert.Equal(t, Result{Executed: 2}, res)
	snaps := it.Registry().List()
	require.Len(t, snaps, 1)
	assert.Equal(t, "Load (75%)", snaps[0].Summary())
	require.NoError(t, tl.Stop())
	for range tl.Lines() {
	}
}

func TestTailConfigDebounce(t *testing.T) {
	assert.Equal(t, 200*time.Millisecond, (&TailConfig{}).GetDebounceDelay())
	assert.Equal(t, 200*time.Millisecond, (&TailConfig{DebounceDelay: "soon"}).GetDebounceDelay())
	assert.Equal(t, time.Second, (&TailConfig{DebounceDelay: "1s"}).GetDebounceDelay())
}
