package element

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCapabilityIsValid(t *testing.T) {
	tests := []struct {
		cap      Capability
		expected bool
	}{
		{CapabilityNumericUpdate, true},
		{CapabilityListAppend, true},
		{CapabilityToggleStatus, true},
		{Capability(0), false},
		{Capability(42), false},
	}

	for _, tt := range tests {
		t.Run(tt.cap.String(), func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.cap.IsValid())
		})
	}
}

func TestParseCapability(t *testing.T) {
	tests := []struct {
		input    string
		expected Capability
	}{
		{"numeric_update", CapabilityNumericUpdate},
		{"list_append", CapabilityListAppend},
		{" TOGGLE_STATUS ", CapabilityToggleStatus},
		{"color_change", 0},
		{"", 0},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseCapability(tt.input))
		})
	}
}

func TestCapabilitySet(t *testing.T) {
	s := NewCapabilitySet(CapabilityListAppend, CapabilityNumericUpdate, Capability(99))

	assert.True(t, s.Has(CapabilityNumericUpdate))
	assert.True(t, s.Has(CapabilityListAppend))
	assert.False(t, s.Has(CapabilityToggleStatus))
	assert.False(t, s.Has(Capability(99)), "invalid capabilities are never members")
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, []Capability{CapabilityNumericUpdate, CapabilityListAppend}, s.List())
	assert.Equal(t, "{numeric_update, list_append}", s.String())

	var empty CapabilitySet
	assert.Equal(t, 0, empty.Len())
	assert.Equal(t, "{}", empty.String())
}

func TestCapabilitySetJSON(t *testing.T) {
	s := NewCapabilitySet(CapabilityToggleStatus)

	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `["toggle_status"]`, string(data))

	var decoded CapabilitySet
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, s, decoded)

	assert.Error(t, json.Unmarshal([]byte(`["teleport"]`), &decoded))

	data, err = json.Marshal(CapabilitySet(0))
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))
}

func TestVariantCapabilities(t *testing.T) {
	tests := []struct {
		variant Variant
		name    string
		title   string
		caps    []Capability
	}{
		{VariantMetric, "metric", "Metric", []Capability{CapabilityNumericUpdate}},
		{VariantDataView, "data_view", "Data View", []Capability{CapabilityListAppend}},
		{VariantStatus, "status", "Status", []Capability{CapabilityToggleStatus}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.name, tt.variant.String())
			assert.Equal(t, tt.title, tt.variant.Title())
			assert.Equal(t, tt.caps, tt.variant.Capabilities().List())
			assert.Equal(t, tt.variant, ParseVariant(tt.name))
		})
	}

	assert.Equal(t, Variant(0), ParseVariant("button"))
	assert.False(t, Variant(0).IsValid())
}
