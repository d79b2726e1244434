package race

import (
	"sync"

	"github.com/keysprint/core/internal/ids"
)

// ReadySet tracks which roster members have replied READY_RESPONSE
// during one ready-check (spec §4.6). The authority advances to
// counting-down as soon as every current player has responded or the
// 5s timer fires, whichever comes first. Both paths are driven by the
// session: on each response it calls AllResponded against the roster
// size it captured when the ready-check began, and the timer advances
// without consulting this set.
type ReadySet struct {
	mu        sync.Mutex
	responded map[ids.PlayerId]bool
}

// NewReadySet returns an empty set.
func NewReadySet() *ReadySet {
	return &ReadySet{responded: make(map[ids.PlayerId]bool)}
}

// MarkResponded records id's READY_RESPONSE. wasNew is false if id had
// already responded (duplicate response, ignored per §7).
func (r *ReadySet) MarkResponded(id ids.PlayerId) (wasNew bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.responded[id] {
		return false
	}
	r.responded[id] = true
	return true
}

// Count returns how many distinct ids have responded.
func (r *ReadySet) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.responded)
}

// AllResponded reports whether Count has reached total.
func (r *ReadySet) AllResponded(total int) bool {
	return r.Count() >= total
}

// Reset clears all recorded responses, for the next ready-check.
func (r *ReadySet) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responded = make(map[ids.PlayerId]bool)
}
