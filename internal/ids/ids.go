// Package ids defines the opaque identifiers used across the mesh core.
// A PlayerId is deliberately not a network address: it survives
// reconnection-free for the life of a process and is compared as an
// opaque byte string wherever the spec calls for lexicographic ordering
// (duplicate-connection resolution, §4.4).
package ids

import (
	"github.com/google/uuid"
)

// PlayerId is a stable 128-bit identifier for a participant, distinct
// from any socket address it happens to be reachable at.
type PlayerId uuid.UUID

// Nil is the zero-value id, used where the spec calls for "empty"
// (e.g. the session's host id before the first HELLO is received).
var Nil PlayerId

// NewPlayerId generates a fresh random id for a new local session.
func NewPlayerId() PlayerId {
	return PlayerId(uuid.New())
}

// ParsePlayerId parses the wire representation of an id (a UUID string).
func ParsePlayerId(s string) (PlayerId, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return Nil, err
	}
	return PlayerId(u), nil
}

// String returns the canonical UUID text form used on the wire.
func (id PlayerId) String() string {
	return uuid.UUID(id).String()
}

// IsNil reports whether this is the zero-value id.
func (id PlayerId) IsNil() bool {
	return id == Nil
}

// Less implements the comparison the spec requires for duplicate
// connection resolution: "compare ids as opaque byte strings;
// lexicographic ordering suffices" (§9 Design Notes).
func (id PlayerId) Less(other PlayerId) bool {
	for i := range id {
		if id[i] != other[i] {
			return id[i] < other[i]
		}
	}
	return false
}
