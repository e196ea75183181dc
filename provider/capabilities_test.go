package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/biaslens/evalcore/evaltypes"
)

func TestCapabilitiesForUnknownProvider(t *testing.T) {
	caps := CapabilitiesFor("acme-inference")
	assert.Equal(t, SeedPartial, caps.SeedSupport)
	assert.Equal(t, DecodingTopP, caps.DecodingSupport)
}

func TestResolveAchievedLevel(t *testing.T) {
	topK := 40

	tests := []struct {
		name    string
		caps    Capabilities
		enabled bool
		temp    float64
		topK    *int
		want    string
	}{
		{
			name:    "not deterministic",
			caps:    CapabilitiesFor("openai"),
			enabled: false,
			want:    "standard",
		},
		{
			name:    "no seed support",
			caps:    Capabilities{SeedSupport: SeedNone},
			enabled: true,
			want:    "standard:no_seed_support",
		},
		{
			name:    "full seed",
			caps:    Capabilities{SeedSupport: SeedFull, DecodingSupport: DecodingTopPTopK},
			enabled: true,
			want:    "seeded",
		},
		{
			name:    "partial seed with temp floor",
			caps:    Capabilities{SeedSupport: SeedPartial, MinTemperature: 0.1, DecodingSupport: DecodingTopPTopK},
			enabled: true,
			temp:    0,
			want:    "seeded_best_effort|temp_floor_0.1",
		},
		{
			name:    "temperature-only decoding",
			caps:    Capabilities{SeedSupport: SeedFull, DecodingSupport: DecodingTemperatureOnly},
			enabled: true,
			want:    "seeded|decoding_temperature_only",
		},
		{
			name:    "top-p only when top_k requested",
			caps:    Capabilities{SeedSupport: SeedFull, DecodingSupport: DecodingTopP},
			enabled: true,
			topK:    &topK,
			want:    "seeded|decoding_top_p_only",
		},
		{
			name:    "top-p without top_k request stays plain",
			caps:    Capabilities{SeedSupport: SeedFull, DecodingSupport: DecodingTopP},
			enabled: true,
			want:    "seeded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveAchievedLevel(tt.caps, tt.enabled, tt.temp, tt.topK)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveModeRefusesWithoutFallback(t *testing.T) {
	caps := Capabilities{SeedSupport: SeedNone}

	_, ok := ResolveMode(caps, &evaltypes.DeterministicOptions{Enabled: true})
	assert.False(t, ok)

	mode, ok := ResolveMode(caps, &evaltypes.DeterministicOptions{Enabled: true, AllowNondeterministicFallback: true})
	assert.True(t, ok)
	assert.Equal(t, evaltypes.ModeStandard, mode)
}

func TestResolveModeLevels(t *testing.T) {
	caps := CapabilitiesFor("openai")

	mode, ok := ResolveMode(caps, &evaltypes.DeterministicOptions{Enabled: true, Level: evaltypes.DeterminismFull})
	assert.True(t, ok)
	assert.Equal(t, evaltypes.ModeFull, mode)

	mode, ok = ResolveMode(caps, &evaltypes.DeterministicOptions{Enabled: true})
	assert.True(t, ok)
	assert.Equal(t, evaltypes.ModeAdaptive, mode)

	mode, ok = ResolveMode(caps, nil)
	assert.True(t, ok)
	assert.Equal(t, evaltypes.ModeStandard, mode)
}
