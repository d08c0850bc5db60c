package predict

import (
	"testing"

	"github.com/Brownie44l1/dept-classifier/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	p, err := Decode([]float32{0.1, 0.7, 0.2}, testutil.Labels("A", "B", "C"), DefaultFallback)
	require.NoError(t, err)

	assert.Equal(t, "B", p.Department)
	assert.Equal(t, float32(0.7), p.Confidence)
	assert.Equal(t, 1, p.Index)
	assert.Equal(t, map[string]float32{"A": 0.1, "B": 0.7, "C": 0.2}, p.Probabilities)
}

func TestDecode_UnmappedWinner(t *testing.T) {
	p, err := Decode([]float32{0.1, 0.2, 0.05, 0.65}, testutil.Labels("A", "B", "C"), DefaultFallback)
	require.NoError(t, err)

	assert.Equal(t, "Manual", p.Department)
	assert.Equal(t, float32(0.65), p.Confidence)
	assert.Equal(t, 3, p.Index)
	assert.Equal(t, map[string]float32{"A": 0.1, "B": 0.2, "C": 0.05, "Unknown_3": 0.65}, p.Probabilities)
}

func TestDecode_TiesPickFirst(t *testing.T) {
	p, err := Decode([]float32{0.4, 0.4, 0.2}, testutil.Labels("A", "B", "C"), DefaultFallback)
	require.NoError(t, err)
	assert.Equal(t, "A", p.Department)
}

func TestDecode_FewerScoresThanLabels(t *testing.T) {
	p, err := Decode([]float32{0.3, 0.7}, testutil.Labels("A", "B", "C"), DefaultFallback)
	require.NoError(t, err)
	assert.Equal(t, "B", p.Department)
	assert.Len(t, p.Probabilities, 2)
}

func TestDecode_CustomFallback(t *testing.T) {
	p, err := Decode([]float32{0.9}, testutil.Labels(), "Unassigned")
	require.NoError(t, err)
	assert.Equal(t, "Unassigned", p.Department)
	assert.Equal(t, map[string]float32{"Unknown_0": 0.9}, p.Probabilities)
}

func TestDecode_Empty(t *testing.T) {
	_, err := Decode(nil, testutil.Labels("A"), DefaultFallback)
	assert.ErrorIs(t, err, ErrEmptyScores)
}
