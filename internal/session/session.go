// Package session implements the room lifecycle and race orchestration
// of spec §4.5/§4.6: the state machine, the player roster, authority
// binding, and the first-class timers (connect, ready-check, countdown
// and progress here; announce and cleanup run in internal/discovery).
// It composes internal/mesh for transport and internal/race
// for the pure finish/ranking primitives.
package session

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/keysprint/core/config"
	"github.com/keysprint/core/internal/capability"
	"github.com/keysprint/core/internal/discovery"
	"github.com/keysprint/core/internal/events"
	"github.com/keysprint/core/internal/ids"
	"github.com/keysprint/core/internal/mesh"
	"github.com/keysprint/core/internal/netiface"
	"github.com/keysprint/core/internal/protocol"
	"github.com/keysprint/core/internal/race"
	"go.uber.org/zap"
)

// Session owns the room state machine and drives it from both local
// API calls and received packets, per the design note preferring a
// coarse lock over a hand-rolled reactor.
type Session struct {
	mu sync.Mutex

	selfID        ids.PlayerId
	selfName      string
	isRoomCreator bool
	hostID        ids.PlayerId
	state         RoomState

	sharedText     string
	sharedLanguage string

	readySetTotal int

	roster   *Roster
	tracker  *race.Tracker
	readySet *race.ReadySet

	mesh      *mesh.Manager
	discovery *discovery.Service
	textProvider capability.TextProvider
	clock        capability.Clock
	events       events.Sink
	log          *zap.SugaredLogger

	connectTimer    *time.Timer
	readyCheckTimer *time.Timer
	countdownTimer  *time.Timer
	progressTicker  *time.Ticker
	progressStop    chan struct{}
}

// New constructs a session for the local identity, wiring the already-
// constructed mesh manager and discovery service. Start must be called
// before any socket I/O happens.
func New(selfID ids.PlayerId, selfName string, m *mesh.Manager, disc *discovery.Service, tp capability.TextProvider, clock capability.Clock, sink events.Sink, log *zap.SugaredLogger) *Session {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	s := &Session{
		selfID:       selfID,
		selfName:     selfName,
		state:        StateIdle,
		roster:       NewRoster(),
		tracker:      race.NewTracker(),
		readySet:     race.NewReadySet(),
		mesh:         m,
		discovery:    disc,
		textProvider: tp,
		clock:        clock,
		events:       sink,
		log:          log,
	}
	s.roster.Upsert(selfID, selfName, true)
	return s
}

// Start wires the mesh manager's hooks and starts the mesh and
// discovery services.
func (s *Session) Start(ctx context.Context) error {
	s.mesh.SetHooks(mesh.Hooks{
		AllowNewPeer:        s.allowNewPeer,
		IsRoomCreator:       s.IsAuthority,
		HostID:              s.hostIDForHello,
		GameText:            s.gameTextForHello,
		OnHandshakeComplete: s.onHandshakeComplete,
		OnPeerLost:          s.onPeerLost,
		OnPacket:            s.onPacket,
	})
	if err := s.mesh.Start(ctx); err != nil {
		return err
	}
	return s.discovery.Start(ctx)
}

// Stop tears down the mesh and discovery services and every timer.
func (s *Session) Stop() {
	s.cancelAllTimers()
	s.discovery.Stop()
	s.mesh.Stop()
}

// --- Observable properties ---

// State returns the current room state.
func (s *Session) State() RoomState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// IsAuthority reports whether this node is the room's authority. Bound
// to is-room-creator: set by CreateRoom, cleared only by LeaveRoom, and
// never changed by a received packet (spec §3).
func (s *Session) IsAuthority() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRoomCreator
}

// Players returns a roster snapshot for the UI.
func (s *Session) Players() []events.PlayerView { return s.roster.Views() }

// GameText returns the currently synchronized race text and language.
func (s *Session) GameText() (string, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sharedText, s.sharedLanguage
}

// --- Public operations (spec §6) ---

// CreateRoom transitions idle→lobby as authority.
func (s *Session) CreateRoom() bool {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return false
	}
	s.isRoomCreator = true
	s.hostID = s.selfID
	s.state = StateLobby
	s.mu.Unlock()

	s.discovery.SetAnnouncing(true, func() discovery.RoomInfo {
		return discovery.RoomInfo{PlayerCount: s.roster.Len(), Status: s.roomStatus()}
	})
	s.events.EmitPlayersChanged(s.roster.Views())
	return true
}

func (s *Session) roomStatus() string {
	if s.State() == StateRacing {
		return discovery.StatusRacing
	}
	return discovery.StatusWaiting
}

// JoinRoom initiates a dial to a discovered or manually supplied
// address. Success/failure is reported asynchronously via
// join-succeeded/join-failed.
func (s *Session) JoinRoom(ip string, port int) bool {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return false
	}
	s.state = StateConnecting
	s.mu.Unlock()

	if err := s.mesh.Dial(ip, port, ids.Nil); err != nil {
		s.mu.Lock()
		s.state = StateIdle
		s.mu.Unlock()
		s.events.EmitJoinFailed(err.Error())
		return false
	}

	s.mu.Lock()
	s.connectTimer = time.AfterFunc(config.ConnectTimeout, s.onConnectTimeout)
	s.mu.Unlock()
	return true
}

func (s *Session) onConnectTimeout() {
	s.mu.Lock()
	if s.state != StateConnecting {
		s.mu.Unlock()
		return
	}
	s.state = StateIdle
	s.mu.Unlock()
	s.events.EmitJoinFailed("timeout waiting for host")
}

// LeaveRoom tears down every peer and timer and resets to idle,
// synchronously from the caller's perspective.
func (s *Session) LeaveRoom() {
	s.cancelAllTimers()
	s.discovery.SetAnnouncing(false, nil)

	for _, id := range s.roster.IDs() {
		if id != s.selfID {
			s.mesh.Kick(id)
			s.roster.Remove(id)
		}
	}
	s.tracker.Reset()
	s.readySet.Reset()

	s.mu.Lock()
	s.state = StateIdle
	s.isRoomCreator = false
	s.hostID = ids.Nil
	s.sharedText = ""
	s.sharedLanguage = ""
	s.mu.Unlock()

	s.events.EmitPlayersChanged(s.roster.Views())
}

// SetPlayerName updates the local display name. Valid in idle or lobby.
func (s *Session) SetPlayerName(name string) {
	s.mu.Lock()
	st := s.state
	s.mu.Unlock()
	if st != StateIdle && st != StateLobby {
		return
	}
	s.selfName = name
	if p, ok := s.roster.Get(s.selfID); ok {
		p.SetName(name)
	}
}

// SetSelectedInterface pins subsequent UDP broadcasts to one interface.
func (s *Session) SetSelectedInterface(c *netiface.Candidate) {
	s.discovery.SetSelectedInterface(c)
}

// SetGameLanguage is authority-only; changing the language refreshes
// the shared text from the text provider and broadcasts GAME_TEXT.
func (s *Session) SetGameLanguage(tag string) {
	if !s.IsAuthority() {
		return
	}
	s.mu.Lock()
	s.sharedLanguage = tag
	s.mu.Unlock()
	s.refreshGameTextLocked(tag)
}

// SetGameText is authority-only.
func (s *Session) SetGameText(text string) {
	if !s.IsAuthority() {
		return
	}
	s.mu.Lock()
	s.sharedText = text
	lang := s.sharedLanguage
	s.mu.Unlock()
	s.broadcastGameText(text, lang)
}

// RefreshGameText is authority-only; re-consults the text provider for
// the current language.
func (s *Session) RefreshGameText() {
	if !s.IsAuthority() {
		return
	}
	s.mu.Lock()
	lang := s.sharedLanguage
	s.mu.Unlock()
	s.refreshGameTextLocked(lang)
}

func (s *Session) refreshGameTextLocked(language string) {
	if s.textProvider == nil {
		return
	}
	text, err := s.textProvider.Words(language, config.DefaultDifficulty, config.DefaultWordCount)
	if err != nil {
		s.log.Warnw("session: text provider failed", "error", err)
		return
	}
	s.mu.Lock()
	s.sharedText = text
	s.mu.Unlock()
	s.broadcastGameText(text, language)
}

func (s *Session) broadcastGameText(text, language string) {
	pkt, err := protocol.NewPacket(protocol.KindGameText, s.selfID.String(), s.now(), protocol.GameTextPayload{Text: text, Language: language})
	if err != nil {
		return
	}
	s.mesh.Broadcast(pkt)
}

// StartCountdown is authority-only; begins a ready-check (or skips
// straight to the countdown when the room has no peers, spec scenario 1).
func (s *Session) StartCountdown() {
	s.mu.Lock()
	if !s.isRoomCreator || s.state != StateLobby {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	s.roster.ResetRace()
	s.tracker.Reset()
	s.readySet.Reset()

	total := s.roster.Len()
	if total <= 1 {
		s.beginCountdown()
		return
	}

	s.readySet.MarkResponded(s.selfID)
	s.mu.Lock()
	s.readySetTotal = total
	s.state = StateReadyCheck
	text, lang := s.sharedText, s.sharedLanguage
	s.mu.Unlock()

	pkt, err := protocol.NewPacket(protocol.KindReadyCheck, s.selfID.String(), s.now(), protocol.ReadyCheckPayload{Text: text, Language: lang})
	if err == nil {
		s.mesh.Broadcast(pkt)
	}

	s.mu.Lock()
	s.readyCheckTimer = time.AfterFunc(config.ReadyCheckTimeout, s.onReadyCheckTimeout)
	s.mu.Unlock()
}

func (s *Session) onReadyCheckTimeout() {
	s.mu.Lock()
	if s.state != StateReadyCheck {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	s.beginCountdown()
}

func (s *Session) maybeAdvanceReadyCheck() {
	s.mu.Lock()
	total := s.readySetTotal
	s.mu.Unlock()
	if s.readySet.AllResponded(total) {
		s.beginCountdown()
	}
}

func (s *Session) beginCountdown() {
	s.mu.Lock()
	if s.state != StateLobby && s.state != StateReadyCheck {
		s.mu.Unlock()
		return
	}
	if s.readyCheckTimer != nil {
		s.readyCheckTimer.Stop()
	}
	s.state = StateCountingDown
	s.mu.Unlock()

	pkt, err := protocol.NewPacket(protocol.KindCountdown, s.selfID.String(), s.now(), protocol.CountdownPayload{Seconds: config.CountdownSeconds})
	if err == nil {
		s.mesh.Broadcast(pkt)
	}
	s.events.EmitCountdownStarted(config.CountdownSeconds)

	s.mu.Lock()
	s.countdownTimer = time.AfterFunc(time.Duration(config.CountdownSeconds)*time.Second, s.beginRacing)
	s.mu.Unlock()
}

func (s *Session) beginRacing() {
	s.mu.Lock()
	if s.state != StateCountingDown {
		s.mu.Unlock()
		return
	}
	s.state = StateRacing
	s.mu.Unlock()

	pkt, err := protocol.NewPacket(protocol.KindGameStart, s.selfID.String(), s.now(), protocol.GameStartPayload{})
	if err == nil {
		s.mesh.Broadcast(pkt)
	}
	s.startProgressTicker()
}

func (s *Session) startProgressTicker() {
	s.mu.Lock()
	if s.progressTicker != nil {
		s.mu.Unlock()
		return
	}
	s.progressTicker = time.NewTicker(config.ProgressTickInterval)
	s.progressStop = make(chan struct{})
	ticker := s.progressTicker
	stop := s.progressStop
	s.mu.Unlock()

	go func() {
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				s.tickProgress()
			}
		}
	}()
}

func (s *Session) stopProgressTicker() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.progressTicker != nil {
		s.progressTicker.Stop()
		close(s.progressStop)
		s.progressTicker = nil
	}
}

func (s *Session) tickProgress() {
	local, ok := s.roster.Get(s.selfID)
	if !ok {
		return
	}
	view := local.View()
	pkt, err := protocol.NewPacket(protocol.KindProgressUpdate, s.selfID.String(), s.now(), protocol.ProgressUpdatePayload{
		Position: view.Position, Total: view.Total, WPM: view.WPM, Finished: view.Finished,
	})
	if err != nil {
		return
	}
	s.mesh.Broadcast(pkt)
}

// KickPlayer is authority-only: announces PLAYER_LEFT and closes the peer.
func (s *Session) KickPlayer(id ids.PlayerId) {
	if !s.IsAuthority() {
		return
	}
	p, ok := s.roster.Get(id)
	if !ok {
		return
	}
	name := p.Name()
	pkt, err := protocol.NewPacket(protocol.KindPlayerLeft, s.selfID.String(), s.now(), protocol.PlayerLeftPayload{ID: id.String(), Name: name})
	if err == nil {
		s.mesh.Broadcast(pkt)
	}
	s.mesh.Kick(id)
}

// UpdateProgress is racing-only; stages the local player's latest
// progress for the next progress-ticker broadcast.
func (s *Session) UpdateProgress(position, total, wpm int) {
	if s.State() != StateRacing {
		return
	}
	if p, ok := s.roster.Get(s.selfID); ok {
		p.SetProgress(position, total, wpm, false)
	}
}

// FinishRace is racing-only and idempotent: a second call is a no-op.
func (s *Session) FinishRace(wpm int, accuracy float64) {
	if s.State() != StateRacing {
		return
	}
	rank, first := s.tracker.RecordFinish(s.selfID)
	if !first {
		return
	}
	if p, ok := s.roster.Get(s.selfID); ok {
		p.MarkFinished(wpm, accuracy, rank, s.now())
	}
	pkt, err := protocol.NewPacket(protocol.KindFinish, s.selfID.String(), s.now(), protocol.FinishPayload{WPM: wpm, Accuracy: accuracy, Position: rank})
	if err == nil {
		s.mesh.Broadcast(pkt)
	}
	s.checkRaceCompletion()
}

// SendPlayAgainInvite is authority-only, valid from finished.
func (s *Session) SendPlayAgainInvite() {
	s.mu.Lock()
	if !s.isRoomCreator || s.state != StateFinished {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	pkt, err := protocol.NewPacket(protocol.KindPlayAgainInvite, s.selfID.String(), s.now(), protocol.PlayAgainInvitePayload{})
	if err == nil {
		s.mesh.Broadcast(pkt)
	}
	s.returnToLobby()
}

// AcceptPlayAgain, for a guest in finished state, returns to lobby.
func (s *Session) AcceptPlayAgain() {
	if s.State() != StateFinished {
		return
	}
	s.returnToLobby()
}

// DeclinePlayAgain leaves the room.
func (s *Session) DeclinePlayAgain() {
	if s.State() != StateFinished {
		return
	}
	s.LeaveRoom()
}

func (s *Session) returnToLobby() {
	s.stopProgressTicker()
	s.roster.ResetRace()
	s.mu.Lock()
	s.state = StateLobby
	s.mu.Unlock()
	s.events.EmitPlayersChanged(s.roster.Views())
}

func (s *Session) now() int64 {
	if s.clock == nil {
		return 0
	}
	return s.clock.NowMillis()
}

func (s *Session) cancelAllTimers() {
	s.mu.Lock()
	if s.connectTimer != nil {
		s.connectTimer.Stop()
	}
	if s.readyCheckTimer != nil {
		s.readyCheckTimer.Stop()
	}
	if s.countdownTimer != nil {
		s.countdownTimer.Stop()
	}
	s.mu.Unlock()
	s.stopProgressTicker()
}

// --- Mesh hooks ---

func (s *Session) allowNewPeer() bool {
	return s.roster.Len() < config.MaxPlayersPerRoom
}

func (s *Session) hostIDForHello() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRoomCreator {
		return s.selfID.String()
	}
	if s.hostID.IsNil() {
		return ""
	}
	return s.hostID.String()
}

func (s *Session) gameTextForHello() (string, string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isRoomCreator || s.sharedText == "" {
		return "", "", false
	}
	return s.sharedText, s.sharedLanguage, true
}

func (s *Session) onHandshakeComplete(peerID ids.PlayerId, name string, ip net.IP, port int, hostUUID string) {
	_, isNew := s.roster.Upsert(peerID, name, false)

	s.mu.Lock()
	wasConnecting := s.state == StateConnecting
	if wasConnecting {
		if s.hostID.IsNil() && hostUUID != "" {
			if parsed, err := ids.ParsePlayerId(hostUUID); err == nil {
				s.hostID = parsed
			}
		}
		s.state = StateLobby
	}
	s.mu.Unlock()

	if wasConnecting {
		if s.connectTimer != nil {
			s.connectTimer.Stop()
		}
		s.events.EmitJoinSucceeded()
	}
	if isNew {
		s.events.EmitPlayerJoined(events.PlayerView{ID: peerID, Name: name})
	}
	s.events.EmitPlayersChanged(s.roster.Views())
}

func (s *Session) onPeerLost(id ids.PlayerId, name string) {
	s.roster.Remove(id)
	s.events.EmitPlayerLeft(name)
	s.events.EmitPlayersChanged(s.roster.Views())
	s.checkRaceCompletion()
}

func (s *Session) onPacket(senderID ids.PlayerId, pkt protocol.Packet) {
	if protocol.IsAuthorityOnly(pkt.Kind) {
		s.mu.Lock()
		host := s.hostID
		s.mu.Unlock()
		if host.IsNil() || senderID != host {
			return
		}
	}

	switch pkt.Kind {
	case protocol.KindGameText:
		s.handleGameText(pkt)
	case protocol.KindCountdown:
		s.handleCountdown(pkt)
	case protocol.KindReadyCheck:
		s.handleReadyCheck(senderID, pkt)
	case protocol.KindReadyResponse:
		s.handleReadyResponse(senderID)
	case protocol.KindGameStart:
		s.handleGameStart()
	case protocol.KindProgressUpdate:
		s.handleProgressUpdate(senderID, pkt)
	case protocol.KindFinish:
		s.handleFinish(senderID, pkt)
	case protocol.KindRaceResults:
		s.handleRaceResults(pkt)
	case protocol.KindPlayerLeft:
		s.handlePlayerLeft(pkt)
	case protocol.KindPlayAgainInvite:
		s.handlePlayAgainInvite()
	}
}

func (s *Session) handleGameText(pkt protocol.Packet) {
	var payload protocol.GameTextPayload
	if err := pkt.Decode(&payload); err != nil {
		return
	}
	s.mu.Lock()
	s.sharedText = payload.Text
	s.sharedLanguage = payload.Language
	s.mu.Unlock()
}

func (s *Session) handleCountdown(pkt protocol.Packet) {
	if s.IsAuthority() {
		return
	}
	var payload protocol.CountdownPayload
	if err := pkt.Decode(&payload); err != nil {
		return
	}
	s.mu.Lock()
	s.state = StateCountingDown
	s.mu.Unlock()
	s.events.EmitCountdownStarted(payload.Seconds)
}

func (s *Session) handleReadyCheck(senderID ids.PlayerId, pkt protocol.Packet) {
	if s.IsAuthority() {
		return
	}
	var payload protocol.ReadyCheckPayload
	if err := pkt.Decode(&payload); err != nil {
		return
	}
	s.mu.Lock()
	s.sharedText = payload.Text
	s.sharedLanguage = payload.Language
	s.state = StateReadyCheck
	s.mu.Unlock()

	resp, err := protocol.NewPacket(protocol.KindReadyResponse, s.selfID.String(), s.now(), protocol.ReadyResponsePayload{})
	if err == nil {
		s.mesh.SendTo(senderID, resp)
	}
}

func (s *Session) handleReadyResponse(senderID ids.PlayerId) {
	if !s.IsAuthority() {
		return
	}
	if s.State() != StateReadyCheck {
		return
	}
	if s.readySet.MarkResponded(senderID) {
		s.maybeAdvanceReadyCheck()
	}
}

func (s *Session) handleGameStart() {
	if s.IsAuthority() {
		return
	}
	s.mu.Lock()
	s.state = StateRacing
	s.mu.Unlock()
	s.startProgressTicker()
}

func (s *Session) handleProgressUpdate(senderID ids.PlayerId, pkt protocol.Packet) {
	if s.State() != StateRacing {
		return
	}
	p, ok := s.roster.Get(senderID)
	if !ok {
		return
	}
	var payload protocol.ProgressUpdatePayload
	if err := pkt.Decode(&payload); err != nil {
		return
	}
	p.SetProgress(payload.Position, payload.Total, payload.WPM, payload.Finished)
	s.events.EmitProgressUpdated(p.View())
}

func (s *Session) handleFinish(senderID ids.PlayerId, pkt protocol.Packet) {
	p, ok := s.roster.Get(senderID)
	if !ok {
		return
	}
	var payload protocol.FinishPayload
	if err := pkt.Decode(&payload); err != nil {
		return
	}
	rank, first := s.tracker.RecordFinish(senderID)
	if !first {
		return
	}
	p.MarkFinished(payload.WPM, payload.Accuracy, rank, s.now())
	s.checkRaceCompletion()
}

func (s *Session) handleRaceResults(pkt protocol.Packet) {
	var payload protocol.RaceResultsPayload
	if err := pkt.Decode(&payload); err != nil {
		return
	}
	rows := make([]events.RankingRow, 0, len(payload.Rankings))
	for _, r := range payload.Rankings {
		id, err := ids.ParsePlayerId(r.ID)
		if err != nil {
			continue
		}
		if p, ok := s.roster.Get(id); ok {
			p.MarkFinished(r.WPM, r.Accuracy, r.Position, s.now())
		}
		rows = append(rows, events.RankingRow{ID: id, Name: r.Name, WPM: r.WPM, Accuracy: r.Accuracy, Position: r.Position})
	}
	s.stopProgressTicker()
	s.mu.Lock()
	s.state = StateFinished
	s.mu.Unlock()
	s.events.EmitRaceFinished(rows)
}

func (s *Session) handlePlayerLeft(pkt protocol.Packet) {
	var payload protocol.PlayerLeftPayload
	if err := pkt.Decode(&payload); err != nil {
		return
	}
	id, err := ids.ParsePlayerId(payload.ID)
	if err != nil {
		return
	}
	if _, ok := s.roster.Remove(id); ok {
		s.events.EmitPlayerLeft(payload.Name)
		s.events.EmitPlayersChanged(s.roster.Views())
		s.checkRaceCompletion()
	}
}

func (s *Session) handlePlayAgainInvite() {
	if s.IsAuthority() {
		return
	}
	s.events.EmitInviteReceived()
}

func (s *Session) checkRaceCompletion() {
	if !s.IsAuthority() {
		return
	}
	if s.State() != StateRacing {
		return
	}
	if !s.roster.AllFinished() {
		return
	}

	entries := make([]race.PlayerFinish, 0)
	for _, p := range s.roster.Snapshot() {
		if !p.Finished() {
			continue
		}
		entries = append(entries, race.PlayerFinish{ID: p.ID(), Name: p.Name(), WPM: p.WPM(), Accuracy: p.Accuracy(), Rank: p.Rank()})
	}
	rankings := race.BuildRankings(entries)

	pkt, err := protocol.NewPacket(protocol.KindRaceResults, s.selfID.String(), s.now(), protocol.RaceResultsPayload{Rankings: rankings})
	if err == nil {
		s.mesh.Broadcast(pkt)
	}

	s.stopProgressTicker()
	s.mu.Lock()
	s.state = StateFinished
	s.mu.Unlock()

	rows := make([]events.RankingRow, len(rankings))
	for i, r := range rankings {
		id, _ := ids.ParsePlayerId(r.ID)
		rows[i] = events.RankingRow{ID: id, Name: r.Name, WPM: r.WPM, Accuracy: r.Accuracy, Position: r.Position}
	}
	s.events.EmitRaceFinished(rows)
}
