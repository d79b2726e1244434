// Package race implements the pure, testable pieces of race-result
// aggregation described in spec §4.6/§8: idempotent first-past-the-post
// rank assignment, ready-check bookkeeping, and ranking construction.
// Timer orchestration (ready-check/countdown deadlines) lives in
// internal/session, which composes these primitives with the mesh and
// event surface.
package race

import (
	"sync"

	"github.com/keysprint/core/internal/ids"
)

// Tracker assigns finish ranks on first receipt only, per node
// (spec §4.6 "first-past-the-post... on first receipt only (idempotent)").
// Ranks form a contiguous prefix {1..finished-count} with no duplicates
// (spec §8 rank contiguity) because they are handed out strictly in
// increment order.
type Tracker struct {
	mu    sync.Mutex
	count int
	ranks map[ids.PlayerId]int
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{ranks: make(map[ids.PlayerId]int)}
}

// RecordFinish assigns the next rank to id if this is its first finish
// at this node. firstTime is false on any repeat call for the same id,
// in which case rank is the rank assigned the first time (spec:
// "the first-assigned rank stands").
func (t *Tracker) RecordFinish(id ids.PlayerId) (rank int, firstTime bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if existing, ok := t.ranks[id]; ok {
		return existing, false
	}
	t.count++
	t.ranks[id] = t.count
	return t.count, true
}

// FinishedCount returns how many distinct ids have finished so far.
func (t *Tracker) FinishedCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.count
}

// RankOf returns the rank assigned to id, or (0, false) if it has not
// finished yet.
func (t *Tracker) RankOf(id ids.PlayerId) (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.ranks[id]
	return r, ok
}

// Reset clears all recorded finishes, for a new race after play-again.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.count = 0
	t.ranks = make(map[ids.PlayerId]int)
}
