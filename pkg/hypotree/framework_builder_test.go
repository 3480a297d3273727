package hypotree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameworkBuilder_BuildsValidCustomSpec(t *testing.T) {
	spec, err := NewFrameworkBuilder().
		AddL1("demand", "Market Demand", "is there demand?", "Repeat Purchase Rate").
		AddL1("ops", "Operational Readiness", "can we deliver?").
		Build()
	require.NoError(t, err)
	require.Len(t, spec.L1, 2)
	assert.Equal(t, "demand", spec.L1[0].Key)
	require.Len(t, spec.L1[0].L2Seeds, 1)
	assert.Equal(t, []string{"Repeat Purchase Rate"}, spec.L1[0].L2Seeds[0].SuggestedL3Labels)
}

func TestFrameworkBuilder_FewerThanTwoL1Fails(t *testing.T) {
	_, err := NewFrameworkBuilder().AddL1("demand", "Market Demand", "q").Build()
	assert.Error(t, err)
}

func TestFrameworkBuilder_EmptyKeyOrLabelFails(t *testing.T) {
	_, err := NewFrameworkBuilder().
		AddL1("", "Market Demand", "q").
		AddL1("ops", "Operational Readiness", "q").
		Build()
	assert.Error(t, err)
}

func TestFrameworkBuilder_DuplicateKeyFails(t *testing.T) {
	_, err := NewFrameworkBuilder().
		AddL1("demand", "Market Demand", "q").
		AddL1("demand", "Market Demand Again", "q").
		Build()
	assert.Error(t, err)
}

func TestFrameworkBuilder_ChainStopsAtFirstError(t *testing.T) {
	b := NewFrameworkBuilder().AddL1("", "bad", "q")
	_, err := b.AddL1("ops", "Operational Readiness", "q").Build()
	assert.Error(t, err)
}
