package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordAndLookupRecordedIO(t *testing.T) {
	rec, err := RecordIO("path-1", "lookup", EffectToolCall, 0,
		map[string]any{"city": "Lisbon"}, map[string]any{"forecast": "sunny"})
	require.NoError(t, err)
	assert.NotEmpty(t, rec.Hash)

	found, ok := LookupRecordedIO([]RecordedIO{rec}, "path-1", "lookup", EffectToolCall, 0)
	require.True(t, ok)
	assert.Equal(t, rec.Hash, found.Hash)

	_, ok = LookupRecordedIO([]RecordedIO{rec}, "path-1", "lookup", EffectModelCall, 0)
	assert.False(t, ok)

	_, ok = LookupRecordedIO([]RecordedIO{rec}, "path-2", "lookup", EffectToolCall, 0)
	assert.False(t, ok)
}

func TestVerifyReplayHashMatchAndMismatch(t *testing.T) {
	rec, err := RecordIO("path-1", "lookup", EffectToolCall, 0,
		map[string]any{"city": "Lisbon"}, map[string]any{"forecast": "sunny"})
	require.NoError(t, err)

	assert.NoError(t, VerifyReplayHash(rec, map[string]any{"forecast": "sunny"}))

	err = VerifyReplayHash(rec, map[string]any{"forecast": "rainy"})
	assert.ErrorIs(t, err, ErrReplayMismatch)
}
