// Package guard implements the protocol-level flood guard described in
// spec §7: a peer that sends packets faster than the configured budget
// is disconnected. This is deliberately not a gameplay anti-cheat check
// over typing content (the spec's Non-goals exclude that) — it is
// adapted from the teacher's per-tick input-rate check
// (internal/game/anticheat.go's ValidateInputRate) narrowed to count
// wire packets instead of game inputs.
package guard

import (
	"time"

	"github.com/keysprint/core/config"
)

// Window is a per-connection packet-rate budget. It is touched from
// exactly one goroutine — the peer's own read loop — so it carries no
// lock of its own.
type Window struct {
	start time.Time
	count int
}

// Allow records one packet arriving at now and reports whether the
// connection remains within its per-window budget. Once a window is
// exceeded every subsequent call in that window also reports false,
// until the window rolls over.
func (w *Window) Allow(now time.Time) bool {
	if w.start.IsZero() || now.Sub(w.start) >= config.PacketRateWindow {
		w.start = now
		w.count = 0
	}
	w.count++
	return w.count <= config.MaxPacketsPerWindow
}
