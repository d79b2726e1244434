package race

import (
	"sort"

	"github.com/keysprint/core/internal/ids"
	"github.com/keysprint/core/internal/protocol"
)

// PlayerFinish is the finished-player data a RACE_RESULTS row needs,
// gathered from the session's roster (name, wpm, accuracy) and this
// package's Tracker (rank).
type PlayerFinish struct {
	ID       ids.PlayerId
	Name     string
	WPM      int
	Accuracy float64
	Rank     int
}

// BuildRankings sorts finished players by rank ascending and renders
// them as the wire rows of a RACE_RESULTS payload (spec §4.6: "sorts
// players by finish-rank ascending, builds a ranking list").
func BuildRankings(entries []PlayerFinish) []protocol.RankingEntry {
	sorted := make([]PlayerFinish, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Rank < sorted[j].Rank })

	out := make([]protocol.RankingEntry, len(sorted))
	for i, e := range sorted {
		out[i] = protocol.RankingEntry{
			ID:       e.ID.String(),
			Name:     e.Name,
			WPM:      e.WPM,
			Accuracy: e.Accuracy,
			Position: e.Rank,
		}
	}
	return out
}
