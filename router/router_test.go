package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/irta/element"
	"github.com/c360studio/irta/failure"
	"github.com/c360studio/irta/registry"
	"github.com/c360studio/irta/schema"
)

type spyMutator struct {
	calls []string
	err   error
}

func (s *spyMutator) ApplyMutation(id string, op element.Operation) error {
	s.calls = append(s.calls, id+":"+op.Name())
	return s.err
}

func snapshotOf(v element.Variant) element.Snapshot {
	return element.Snapshot{
		ID:           "node-c4d9",
		Variant:      v,
		Label:        "Target",
		Capabilities: v.Capabilities(),
	}
}

func TestRequiredCapability(t *testing.T) {
	assert.Equal(t, element.CapabilityNumericUpdate, RequiredCapability(element.SetValue{Value: 1}))
	assert.Equal(t, element.CapabilityListAppend, RequiredCapability(element.AppendItem{Item: "x"}))
	assert.Equal(t, element.CapabilityToggleStatus, RequiredCapability(element.Toggle{}))
}

func TestRouteMismatchNeverApplies(t *testing.T) {
	ops := []element.Operation{element.SetValue{Value: 50}, element.AppendItem{Item: "x"}, element.Toggle{}}

	for _, v := range element.AllVariants() {
		for _, op := range ops {
			t.Run(v.String()+"/"+op.Name(), func(t *testing.T) {
				spy := &spyMutator{}
				err := Route(spy, snapshotOf(v), op)

				if v.Capabilities().Has(op.Required()) {
					require.NoError(t, err)
					assert.Equal(t, []string{"node-c4d9:" + op.Name()}, spy.calls)
					return
				}

				var mismatch *failure.CapabilityMismatchError
				require.ErrorAs(t, err, &mismatch)
				assert.Equal(t, "node-c4d9", mismatch.ID)
				assert.Empty(t, spy.calls)
			})
		}
	}
}

func TestRouteToggleOnDataView(t *testing.T) {
	reg := registry.New(schema.Default(), registry.WithIDSource(func() string { return "c4d9" }))
	id, err := reg.Allocate(element.VariantDataView, "System Logs")
	require.NoError(t, err)
	target, _ := reg.Lookup(id)

	err = Route(reg, target, element.Toggle{})
	kind, _ := failure.KindOf(err)
	assert.Equal(t, failure.KindCapabilityMismatch, kind)

	after, _ := reg.Lookup(id)
	assert.Equal(t, target, after)
}

func TestRoutePropagatesMutationErrors(t *testing.T) {
	reg := registry.New(schema.Default())
	id, err := reg.Allocate(element.VariantMetric, "CPU Usage")
	require.NoError(t, err)
	target, _ := reg.Lookup(id)

	err = Route(reg, target, element.SetValue{Value: 150})
	var cv *failure.ConstraintViolationError
	require.ErrorAs(t, err, &cv)
	assert.Equal(t, failure.BoundMetricRange, cv.Bound)
}
