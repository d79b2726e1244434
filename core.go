// Package core is the public entry point of the mesh core: a Core
// value wires together the session state machine, the mesh transport,
// and the discovery service behind the operations spec.md §6 lists "by
// semantics, not signature," and dispatches every call onto its own
// session's coarse lock rather than a hand-rolled reactor (spec §5
// option (b), matching the teacher's Room locking style).
package core

import (
	"context"
	"net"

	"github.com/keysprint/core/internal/capability"
	"github.com/keysprint/core/internal/discovery"
	"github.com/keysprint/core/internal/events"
	"github.com/keysprint/core/internal/ids"
	"github.com/keysprint/core/internal/mesh"
	"github.com/keysprint/core/internal/netiface"
	"github.com/keysprint/core/internal/session"
	"go.uber.org/zap"
)

// Core is the embeddable handle a UI or demo binary holds. One Core is
// one mesh identity for the life of a process; rooms are created and
// left through it, never reconstructed.
type Core struct {
	id      ids.PlayerId
	session *session.Session
	mesh    *mesh.Manager
	disc    *discovery.Service
	log     *zap.SugaredLogger
}

// Options configures a Core at construction time. ListenPort of 0 lets
// the OS choose (retrievable afterward via ListenPort).
type Options struct {
	PlayerName   string
	ListenPort   int
	TextProvider capability.TextProvider
	Clock        capability.Clock
	Events       events.Sink
	Logger       *zap.SugaredLogger
}

// New constructs a Core with a fresh random identity. Start must be
// called before any network I/O happens.
func New(opts Options) *Core {
	id := ids.NewPlayerId()
	log := opts.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	clock := opts.Clock
	if clock == nil {
		clock = capability.SystemClock{}
	}

	m := mesh.NewManager(id, opts.PlayerName, opts.ListenPort, clock, log)
	disc := discovery.NewService(id, opts.PlayerName, opts.ListenPort, clock, opts.Events, log)
	sess := session.New(id, opts.PlayerName, m, disc, opts.TextProvider, clock, opts.Events, log)

	return &Core{id: id, session: sess, mesh: m, disc: disc, log: log}
}

// Start binds the mesh and discovery sockets and begins serving.
func (c *Core) Start(ctx context.Context) error {
	ifaces, _ := netiface.NewEnumerator().Candidates()
	ips := make([]net.IP, 0, len(ifaces))
	for _, cand := range ifaces {
		ips = append(ips, cand.IP)
	}
	c.mesh.SetLocalAddrs(ips)

	return c.session.Start(ctx)
}

// Stop tears down every socket and timer.
func (c *Core) Stop() { c.session.Stop() }

// ID returns this node's stable identity.
func (c *Core) ID() ids.PlayerId { return c.id }

// ListenPort returns the TCP mesh port this node accepts connections on.
func (c *Core) ListenPort() int { return c.mesh.ListenPort() }

// Interfaces lists the usable network interfaces for manual selection,
// alongside the highest-scoring default (spec §4.2).
func (c *Core) Interfaces() (all []netiface.Candidate, best netiface.Candidate) {
	return netiface.NewEnumerator().Candidates()
}

// Rooms returns the current discovery directory snapshot.
func (c *Core) Rooms() []events.RoomEntry {
	entries := c.disc.Directory().Snapshot()
	out := make([]events.RoomEntry, len(entries))
	for i, e := range entries {
		out[i] = events.RoomEntry{
			HostID: e.HostID, HostName: e.HostName, HostIP: e.HostIP.String(),
			HostPort: e.HostPort, PlayerCount: e.PlayerCount, Status: e.Status,
		}
	}
	return out
}

// State returns the current room state.
func (c *Core) State() session.RoomState { return c.session.State() }

// Players returns the current roster snapshot.
func (c *Core) Players() []events.PlayerView { return c.session.Players() }

// GameText returns the currently synchronized race text and language.
func (c *Core) GameText() (string, string) { return c.session.GameText() }

// CreateRoom becomes the authority of a new room (spec §6 createRoom).
func (c *Core) CreateRoom() bool { return c.session.CreateRoom() }

// JoinRoom dials a discovered or manually supplied host (spec §6 joinRoom).
func (c *Core) JoinRoom(ip string, port int) bool { return c.session.JoinRoom(ip, port) }

// LeaveRoom tears the current room down and returns to idle.
func (c *Core) LeaveRoom() { c.session.LeaveRoom() }

// SetPlayerName updates the local display name (idle or lobby only).
func (c *Core) SetPlayerName(name string) { c.session.SetPlayerName(name) }

// SetSelectedInterface pins discovery broadcasts to one interface.
func (c *Core) SetSelectedInterface(candidate *netiface.Candidate) {
	c.session.SetSelectedInterface(candidate)
}

// SetGameLanguage is authority-only; it also refreshes the shared text.
func (c *Core) SetGameLanguage(tag string) { c.session.SetGameLanguage(tag) }

// SetGameText is authority-only.
func (c *Core) SetGameText(text string) { c.session.SetGameText(text) }

// RefreshGameText is authority-only.
func (c *Core) RefreshGameText() { c.session.RefreshGameText() }

// StartCountdown is authority-only; begins the ready-check/countdown
// sequence toward a race.
func (c *Core) StartCountdown() { c.session.StartCountdown() }

// KickPlayer is authority-only.
func (c *Core) KickPlayer(id ids.PlayerId) { c.session.KickPlayer(id) }

// UpdateProgress stages the local player's progress for the next tick
// (racing state only).
func (c *Core) UpdateProgress(position, total, wpm int) {
	c.session.UpdateProgress(position, total, wpm)
}

// FinishRace is racing-only and idempotent.
func (c *Core) FinishRace(wpm int, accuracy float64) { c.session.FinishRace(wpm, accuracy) }

// SendPlayAgainInvite is authority-only, valid from the finished state.
func (c *Core) SendPlayAgainInvite() { c.session.SendPlayAgainInvite() }

// AcceptPlayAgain returns a guest to the lobby after an invite.
func (c *Core) AcceptPlayAgain() { c.session.AcceptPlayAgain() }

// DeclinePlayAgain leaves the room after an invite.
func (c *Core) DeclinePlayAgain() { c.session.DeclinePlayAgain() }
