package discovery

import (
	"net"
	"sync"
	"time"

	"github.com/keysprint/core/internal/ids"
)

// Status values mirrored on the wire (spec §4.3/§6).
const (
	StatusWaiting = "waiting"
	StatusRacing  = "racing"
)

// Entry is one room directory row (spec §3): lives only in the
// discovery layer, pruned by staleness.
type Entry struct {
	HostID      ids.PlayerId
	HostName    string
	HostIP      net.IP
	HostPort    int
	PlayerCount int
	Status      string
	LastSeen    time.Time
}

// Directory is the time-windowed view of currently announcing hosts.
// Safe for concurrent use.
type Directory struct {
	mu      sync.RWMutex
	entries map[ids.PlayerId]Entry
}

// NewDirectory returns an empty directory.
func NewDirectory() *Directory {
	return &Directory{entries: make(map[ids.PlayerId]Entry)}
}

// Upsert inserts or refreshes an entry keyed by host id, returning true
// if this is the first time this host has been seen (room-found vs.
// rooms-changed, spec §4.3).
func (d *Directory) Upsert(e Entry) (isNew bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	_, exists := d.entries[e.HostID]
	d.entries[e.HostID] = e
	return !exists
}

// Prune evicts entries whose last-seen is older than timeout relative
// to now, returning the ids removed.
func (d *Directory) Prune(now time.Time, timeout time.Duration) []ids.PlayerId {
	d.mu.Lock()
	defer d.mu.Unlock()

	var removed []ids.PlayerId
	for id, e := range d.entries {
		if now.Sub(e.LastSeen) > timeout {
			delete(d.entries, id)
			removed = append(removed, id)
		}
	}
	return removed
}

// Snapshot returns every current entry, in no particular order.
func (d *Directory) Snapshot() []Entry {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]Entry, 0, len(d.entries))
	for _, e := range d.entries {
		out = append(out, e)
	}
	return out
}

// Len reports the current entry count.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.entries)
}
