package session

import (
	"sync"

	"github.com/keysprint/core/internal/events"
	"github.com/keysprint/core/internal/ids"
)

// Player is one roster entry (spec §3): identity plus the per-race
// progress fields mutated only by packets bearing that player's id.
// Mirrors the teacher's Player (internal/game/player.go): a mutex-
// protected struct with a GetState-style read snapshot, generalized
// from car telemetry to typing-race telemetry.
type Player struct {
	mu sync.RWMutex

	id      ids.PlayerId
	name    string
	isLocal bool

	position int
	total    int
	wpm      int
	accuracy float64
	finished bool
	rank     int
	finishAt int64
}

// NewPlayer creates a roster entry for id, freshly connected.
func NewPlayer(id ids.PlayerId, name string, isLocal bool) *Player {
	return &Player{id: id, name: name, isLocal: isLocal}
}

// ID returns the player's identifier.
func (p *Player) ID() ids.PlayerId { return p.id }

// Name returns the player's display name (thread-safe).
func (p *Player) Name() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.name
}

// SetName updates the display name.
func (p *Player) SetName(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.name = name
}

// IsLocal reports whether this roster entry represents the local node.
func (p *Player) IsLocal() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.isLocal
}

// SetProgress records a PROGRESS_UPDATE (spec §4.6).
func (p *Player) SetProgress(position, total, wpm int, finished bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.position = position
	p.total = total
	p.wpm = wpm
	if finished {
		p.finished = true
	}
}

// MarkFinished records the stable outcome of a FINISH packet: wpm,
// accuracy, and the rank assigned by the tracker. The FINISH path calls
// it once per id (the tracker enforces idempotence upstream); a
// RACE_RESULTS packet calls it again to apply the authority's ranking.
func (p *Player) MarkFinished(wpm int, accuracy float64, rank int, finishAt int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.finished = true
	p.wpm = wpm
	p.accuracy = accuracy
	p.rank = rank
	p.finishAt = finishAt
}

// ResetRace clears per-race fields for a play-again cycle.
func (p *Player) ResetRace() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.position = 0
	p.total = 0
	p.wpm = 0
	p.accuracy = 0
	p.finished = false
	p.rank = 0
	p.finishAt = 0
}

// Finished reports whether this player has finished the current race.
func (p *Player) Finished() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.finished
}

// Rank returns the finish rank assigned to this player, 0 if unfinished.
func (p *Player) Rank() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.rank
}

// WPM returns the player's most recently reported words-per-minute.
func (p *Player) WPM() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.wpm
}

// Accuracy returns the player's reported accuracy percentage.
func (p *Player) Accuracy() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.accuracy
}

// View renders a snapshot suitable for the event surface.
func (p *Player) View() events.PlayerView {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return events.PlayerView{
		ID:         p.id,
		Name:       p.name,
		IsLocal:    p.isLocal,
		Position:   p.position,
		Total:      p.total,
		WPM:        p.wpm,
		Accuracy:   p.accuracy,
		Finished:   p.finished,
		FinishRank: p.rank,
	}
}

// Roster is the map PlayerId→Player described in spec §3, guarded by
// its own lock (the Peer that backs a given id lives exclusively in
// the mesh manager; the roster never reaches into it, per the
// "no back-reference from Player to Peer" design note).
type Roster struct {
	mu      sync.RWMutex
	players map[ids.PlayerId]*Player
}

// NewRoster returns an empty roster.
func NewRoster() *Roster {
	return &Roster{players: make(map[ids.PlayerId]*Player)}
}

// Upsert inserts a new Player or returns the existing one for id.
func (r *Roster) Upsert(id ids.PlayerId, name string, isLocal bool) (*Player, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.players[id]; ok {
		return p, false
	}
	p := NewPlayer(id, name, isLocal)
	r.players[id] = p
	return p, true
}

// Get returns the Player for id, if present.
func (r *Roster) Get(id ids.PlayerId) (*Player, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.players[id]
	return p, ok
}

// Remove deletes id from the roster, returning the removed Player.
func (r *Roster) Remove(id ids.PlayerId) (*Player, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.players[id]
	if ok {
		delete(r.players, id)
	}
	return p, ok
}

// Len returns the current roster size.
func (r *Roster) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.players)
}

// Snapshot returns every current Player, in no particular order.
func (r *Roster) Snapshot() []*Player {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Player, 0, len(r.players))
	for _, p := range r.players {
		out = append(out, p)
	}
	return out
}

// IDs returns every current id, in no particular order.
func (r *Roster) IDs() []ids.PlayerId {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ids.PlayerId, 0, len(r.players))
	for id := range r.players {
		out = append(out, id)
	}
	return out
}

// AllFinished reports whether every roster member has finished. An
// empty roster counts as not-finished to avoid spuriously completing
// a race before anyone exists.
func (r *Roster) AllFinished() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.players) == 0 {
		return false
	}
	for _, p := range r.players {
		if !p.Finished() {
			return false
		}
	}
	return true
}

// ResetRace clears per-race fields on every roster member.
func (r *Roster) ResetRace() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.players {
		p.ResetRace()
	}
}

// Views renders every roster member for the event surface.
func (r *Roster) Views() []events.PlayerView {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]events.PlayerView, 0, len(r.players))
	for _, p := range r.players {
		out = append(out, p.View())
	}
	return out
}
