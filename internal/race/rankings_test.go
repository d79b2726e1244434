package race

import (
	"testing"

	"github.com/keysprint/core/internal/ids"
	"github.com/stretchr/testify/assert"
)

func TestBuildRankingsSortsByRankAscending(t *testing.T) {
	a, b := ids.NewPlayerId(), ids.NewPlayerId()
	entries := []PlayerFinish{
		{ID: b, Name: "Bob", WPM: 40, Accuracy: 100.0, Rank: 2},
		{ID: a, Name: "Alice", WPM: 60, Accuracy: 100.0, Rank: 1},
	}

	rows := BuildRankings(entries)

	assert.Equal(t, "Alice", rows[0].Name)
	assert.Equal(t, 1, rows[0].Position)
	assert.Equal(t, "Bob", rows[1].Name)
	assert.Equal(t, 2, rows[1].Position)
}

func TestBuildRankingsDoesNotMutateInput(t *testing.T) {
	a, b := ids.NewPlayerId(), ids.NewPlayerId()
	entries := []PlayerFinish{
		{ID: a, Rank: 2},
		{ID: b, Rank: 1},
	}
	_ = BuildRankings(entries)
	assert.Equal(t, 2, entries[0].Rank)
}
