package race

import (
	"testing"

	"github.com/keysprint/core/internal/ids"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackerAssignsContiguousMonotonicRanks(t *testing.T) {
	tr := NewTracker()
	a, b, c := ids.NewPlayerId(), ids.NewPlayerId(), ids.NewPlayerId()

	rankA, firstA := tr.RecordFinish(a)
	rankB, firstB := tr.RecordFinish(b)
	rankC, firstC := tr.RecordFinish(c)

	require.True(t, firstA)
	require.True(t, firstB)
	require.True(t, firstC)
	assert.Equal(t, 1, rankA)
	assert.Equal(t, 2, rankB)
	assert.Equal(t, 3, rankC)
	assert.Equal(t, 3, tr.FinishedCount())
}

func TestTrackerDuplicateFinishIsIdempotent(t *testing.T) {
	tr := NewTracker()
	a := ids.NewPlayerId()

	rank1, first1 := tr.RecordFinish(a)
	rank2, first2 := tr.RecordFinish(a)

	require.True(t, first1)
	require.False(t, first2)
	assert.Equal(t, rank1, rank2)
	assert.Equal(t, 1, tr.FinishedCount())
}

func TestTrackerReset(t *testing.T) {
	tr := NewTracker()
	a := ids.NewPlayerId()
	tr.RecordFinish(a)
	tr.Reset()

	assert.Equal(t, 0, tr.FinishedCount())
	rank, first := tr.RecordFinish(a)
	assert.Equal(t, 1, rank)
	assert.True(t, first)
}
