package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/irta/element"
	"github.com/c360studio/irta/failure"
	"github.com/c360studio/irta/intent"
	"github.com/c360studio/irta/registry"
	"github.com/c360studio/irta/schema"
)

func ids(values ...string) registry.IDSource {
	i := 0
	return func() string {
		if i >= len(values) {
			return ""
		}
		i++
		return values[i-1]
	}
}

func newRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg := registry.New(schema.Default(), registry.WithIDSource(ids("0001", "0002", "0003")))
	for _, c := range []struct {
		v     element.Variant
		label string
	}{
		{element.VariantDataView, "System Logs"},
		{element.VariantMetric, "CPU Usage"},
		{element.VariantDataView, "System Log Archive"},
	} {
		_, err := reg.Allocate(c.v, c.label)
		require.NoError(t, err)
	}
	return reg
}

func TestResolveExplicit(t *testing.T) {
	reg := newRegistry(t)

	snap, err := Resolve(reg, intent.Ref{Text: "node-0002", Explicit: true})
	require.NoError(t, err)
	assert.Equal(t, "CPU Usage", snap.Label)

	_, err = Resolve(reg, intent.Ref{Text: "node-ffff", Explicit: true})
	var unknown *failure.UnknownElementError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "node-ffff", unknown.Ref)
}

func TestResolveFragment(t *testing.T) {
	reg := newRegistry(t)

	snap, err := Resolve(reg, intent.Ref{Text: "cpu"})
	require.NoError(t, err)
	assert.Equal(t, "node-0002", snap.ID)

	snap, err = Resolve(reg, intent.Ref{Text: "archive"})
	require.NoError(t, err)
	assert.Equal(t, "node-0003", snap.ID)

	_, err = Resolve(reg, intent.Ref{Text: "Memory"})
	kind, _ := failure.KindOf(err)
	assert.Equal(t, failure.KindUnknownElement, kind)
}

func TestResolveAmbiguous(t *testing.T) {
	reg := newRegistry(t)

	_, err := Resolve(reg, intent.Ref{Text: "System Log"})
	var ambiguous *failure.AmbiguousReferenceError
	require.ErrorAs(t, err, &ambiguous)
	assert.Equal(t, []failure.Candidate{
		{ID: "node-0001", Label: "System Logs"},
		{ID: "node-0003", Label: "System Log Archive"},
	}, ambiguous.Candidates)
	assert.Equal(t, "System Log", ambiguous.Ref)
}

func TestResolveExplicitDoesNotFallBackToLabels(t *testing.T) {
	reg := registry.New(schema.Default(), registry.WithIDSource(ids("0001")))
	_, err := reg.Allocate(element.VariantStatus, "node-beef")
	require.NoError(t, err)

	_, err = Resolve(reg, intent.Ref{Text: "node-beef", Explicit: true})
	var unknown *failure.UnknownElementError
	assert.ErrorAs(t, err, &unknown)

	snap, err := Resolve(reg, intent.Ref{Text: "node-beef"})
	require.NoError(t, err)
	assert.Equal(t, "node-0001", snap.ID)
}
