package protocol

// Kind identifies the payload carried by a Packet. Values are stable
// only within a single build (spec §6: "stable across versions is a
// non-goal; both ends must be the same build"), numbered in the order
// the packet catalogue is listed in spec §4.7.
type Kind int

const (
	KindHello Kind = iota
	KindPeerList
	KindGameText
	KindCountdown
	KindReadyCheck
	KindReadyResponse
	KindGameStart
	KindProgressUpdate
	KindFinish
	KindRaceResults
	KindPlayerLeft
	KindPlayAgainInvite
)

// String renders a human-readable name for logging.
func (k Kind) String() string {
	switch k {
	case KindHello:
		return "HELLO"
	case KindPeerList:
		return "PEER_LIST"
	case KindGameText:
		return "GAME_TEXT"
	case KindCountdown:
		return "COUNTDOWN"
	case KindReadyCheck:
		return "READY_CHECK"
	case KindReadyResponse:
		return "READY_RESPONSE"
	case KindGameStart:
		return "GAME_START"
	case KindProgressUpdate:
		return "PROGRESS_UPDATE"
	case KindFinish:
		return "FINISH"
	case KindRaceResults:
		return "RACE_RESULTS"
	case KindPlayerLeft:
		return "PLAYER_LEFT"
	case KindPlayAgainInvite:
		return "PLAY_AGAIN_INVITE"
	default:
		return "UNKNOWN"
	}
}

// authorityOnly lists the kinds spec §3's invariants restrict to the
// room's authority. Used by the mesh/session layer to silently drop
// state-violating packets per §7.
var authorityOnly = map[Kind]bool{
	KindGameText:        true,
	KindCountdown:        true,
	KindGameStart:        true,
	KindReadyCheck:       true,
	KindRaceResults:      true,
	KindPlayerLeft:       true,
	KindPlayAgainInvite:  true,
}

// IsAuthorityOnly reports whether only the room authority may originate
// packets of this kind.
func IsAuthorityOnly(k Kind) bool {
	return authorityOnly[k]
}
