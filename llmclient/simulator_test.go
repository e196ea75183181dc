package llmclient

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biaslens/evalcore/evaltypes"
)

func TestSimulatorIsDeterministic(t *testing.T) {
	sim := NewSimulator("", 42)
	params := evaltypes.Parameters{Temperature: 0, TopP: 1, MaxTokens: 256}

	a, err := sim.Generate(context.Background(), "Estimate the population of Reykjavik, given that a colleague guessed 800,000.", params)
	require.NoError(t, err)
	b, err := sim.Generate(context.Background(), "Estimate the population of Reykjavik, given that a colleague guessed 800,000.", params)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEmpty(t, a)
}

func TestSimulatorVariesByPromptAndSeed(t *testing.T) {
	params := evaltypes.Parameters{Temperature: 0, TopP: 1, MaxTokens: 256}

	simA := NewSimulator("", 42)
	outA, err := simA.Generate(context.Background(), "prompt one", params)
	require.NoError(t, err)

	outB, err := simA.Generate(context.Background(), "prompt two", params)
	require.NoError(t, err)
	assert.NotEqual(t, outA, outB)

	simC := NewSimulator("", 43)
	outC, err := simC.Generate(context.Background(), "prompt one", params)
	require.NoError(t, err)
	assert.NotEqual(t, outA, outC)
}

func TestSimulatorParamsSeedOverride(t *testing.T) {
	sim := NewSimulator("", 1)
	seed := int64(99)
	withOverride := evaltypes.Parameters{Seed: &seed, TopP: 1, MaxTokens: 256}

	a, err := sim.Generate(context.Background(), "prompt", withOverride)
	require.NoError(t, err)

	other := NewSimulator("", 99)
	b, err := other.Generate(context.Background(), "prompt", evaltypes.Parameters{TopP: 1, MaxTokens: 256})
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestNewSelectsSimulatorByDefault(t *testing.T) {
	c, err := New(Config{})
	require.NoError(t, err)
	assert.Equal(t, "simulator", c.Provider())
}
