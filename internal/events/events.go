// Package events defines the typed notifications the core emits for UI
// binding, per spec §1/§6. The core never imports a UI package; callers
// register Go func values instead, the same callback-surface shape the
// discovery and gossip examples in the corpus use (p2pchat's
// SetPeerEventHandlers, tutu's SWIM OnJoin/OnLeave).
package events

import "github.com/keysprint/core/internal/ids"

// RoomEntry mirrors the discovery directory's view of one announcing host.
type RoomEntry struct {
	HostID      ids.PlayerId
	HostName    string
	HostIP      string
	HostPort    int
	PlayerCount int
	Status      string
}

// PlayerView is the read-only projection of a roster entry handed to the UI.
type PlayerView struct {
	ID         ids.PlayerId
	Name       string
	IsLocal    bool
	Position   int
	Total      int
	WPM        int
	Accuracy   float64
	Finished   bool
	FinishRank int
}

// RankingRow is one line of a final results broadcast.
type RankingRow struct {
	ID       ids.PlayerId
	Name     string
	WPM      int
	Accuracy float64
	Position int
}

// Sink is the full set of callbacks the core will invoke. Every field is
// optional — a nil field is simply never called, so embedders only wire
// what they use (the demo binary in cmd/keysprintd wires all of them to
// log lines; a real UI would wire them to view-model updates).
type Sink struct {
	OnRoomFound       func(RoomEntry)
	OnRoomsChanged    func([]RoomEntry)
	OnPlayerJoined    func(PlayerView)
	OnPlayerLeft      func(name string)
	OnPlayersChanged  func([]PlayerView)
	OnCountdownStarted func(seconds int)
	OnProgressUpdated func(PlayerView)
	OnRaceFinished    func([]RankingRow)
	OnJoinFailed      func(reason string)
	OnJoinSucceeded   func()
	OnInviteReceived  func()
}

func (s Sink) roomFound(e RoomEntry) {
	if s.OnRoomFound != nil {
		s.OnRoomFound(e)
	}
}

func (s Sink) roomsChanged(all []RoomEntry) {
	if s.OnRoomsChanged != nil {
		s.OnRoomsChanged(all)
	}
}

// Emit methods below are thin nil-checked dispatchers; kept as exported
// wrappers so callers outside this package (session, race, discovery)
// never need a nil check of their own.

// EmitRoomFound notifies the UI a new room appeared in the directory.
func (s Sink) EmitRoomFound(e RoomEntry) { s.roomFound(e) }

// EmitRoomsChanged notifies the UI the directory snapshot changed.
func (s Sink) EmitRoomsChanged(all []RoomEntry) { s.roomsChanged(all) }

// EmitPlayerJoined notifies the UI a player joined the roster.
func (s Sink) EmitPlayerJoined(p PlayerView) {
	if s.OnPlayerJoined != nil {
		s.OnPlayerJoined(p)
	}
}

// EmitPlayerLeft notifies the UI a player left the roster.
func (s Sink) EmitPlayerLeft(name string) {
	if s.OnPlayerLeft != nil {
		s.OnPlayerLeft(name)
	}
}

// EmitPlayersChanged notifies the UI of a full roster snapshot.
func (s Sink) EmitPlayersChanged(all []PlayerView) {
	if s.OnPlayersChanged != nil {
		s.OnPlayersChanged(all)
	}
}

// EmitCountdownStarted notifies the UI the countdown has begun.
func (s Sink) EmitCountdownStarted(seconds int) {
	if s.OnCountdownStarted != nil {
		s.OnCountdownStarted(seconds)
	}
}

// EmitProgressUpdated notifies the UI of one player's new progress.
func (s Sink) EmitProgressUpdated(p PlayerView) {
	if s.OnProgressUpdated != nil {
		s.OnProgressUpdated(p)
	}
}

// EmitRaceFinished notifies the UI the race concluded with these rankings.
func (s Sink) EmitRaceFinished(rows []RankingRow) {
	if s.OnRaceFinished != nil {
		s.OnRaceFinished(rows)
	}
}

// EmitJoinFailed notifies the UI a joinRoom attempt did not complete.
func (s Sink) EmitJoinFailed(reason string) {
	if s.OnJoinFailed != nil {
		s.OnJoinFailed(reason)
	}
}

// EmitJoinSucceeded notifies the UI a joinRoom attempt completed.
func (s Sink) EmitJoinSucceeded() {
	if s.OnJoinSucceeded != nil {
		s.OnJoinSucceeded()
	}
}

// EmitInviteReceived notifies the UI a PLAY_AGAIN_INVITE arrived.
func (s Sink) EmitInviteReceived() {
	if s.OnInviteReceived != nil {
		s.OnInviteReceived()
	}
}
