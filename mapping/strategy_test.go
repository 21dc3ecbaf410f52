package mapping

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStrategyPlans(t *testing.T) {
	tests := []struct {
		strategy Strategy
		want     Plan
	}{
		{ContentByID, Plan{WritesContent: true, ID: Extracted}},
		{ContentByCounter, Plan{WritesContent: true, ID: Synthesized}},
		{MappingByIDAndSlot, Plan{WritesMappings: true, ID: Extracted, Slot: Extracted}},
		{MappingSynthesized, Plan{WritesMappings: true, ID: Synthesized, Slot: Synthesized}},
		{MappingByID, Plan{WritesMappings: true, ID: Extracted, Slot: Synthesized}},
		{ContentAndMappingByIDAndSlot, Plan{WritesContent: true, WritesMappings: true, ID: Extracted, Slot: Extracted}},
		{ContentAndMappingBySlot, Plan{WritesContent: true, WritesMappings: true, ID: Synthesized, Slot: Extracted}},
		{ContentAndMappingByID, Plan{WritesContent: true, WritesMappings: true, ID: Extracted, Slot: Synthesized}},
		{ContentAndMappingSynthesized, Plan{WritesContent: true, WritesMappings: true, ID: Synthesized, Slot: Synthesized}},
	}

	require.Len(t, Strategies(), len(tests))
	for _, tt := range tests {
		t.Run(tt.strategy.String(), func(t *testing.T) {
			got, err := tt.strategy.Plan()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseStrategy(t *testing.T) {
	s, err := ParseStrategy(" 6 ")
	require.NoError(t, err)
	assert.Equal(t, ContentAndMappingByIDAndSlot, s)

	for _, text := range []string{"0", "10", "six", ""} {
		_, err := ParseStrategy(text)
		assert.ErrorIs(t, err, ErrInvalidStrategy, text)
	}
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "1: writes content; id extracted", ContentByID.Describe())
	assert.Equal(t, "9: writes content+mappings; id synthesized; slot synthesized", ContentAndMappingSynthesized.Describe())
	assert.Equal(t, "0: invalid", Strategy(0).Describe())

	assert.Equal(t, "MappingByID", MappingByID.Name())
	assert.Equal(t, "Invalid", Strategy(10).Name())
}

func TestKeyGenerators(t *testing.T) {
	counter, err := NewKeyGenerator("counter", "")
	require.NoError(t, err)
	assert.Equal(t, "slot-1", counter.NextKey())
	assert.Equal(t, "slot-2", counter.NextKey())

	gen, err := NewKeyGenerator("uuid", "s-")
	require.NoError(t, err)
	key := gen.NextKey()
	require.True(t, strings.HasPrefix(key, "s-"))
	_, err = uuid.Parse(strings.TrimPrefix(key, "s-"))
	assert.NoError(t, err)
	assert.NotEqual(t, key, gen.NextKey())

	_, err = NewKeyGenerator("random", "")
	assert.Error(t, err)
}
