package protocol

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// Packet is the envelope carried over every TCP mesh connection, per
// spec §3/§6: { kind, sender id, timestamp (ms), payload }.
type Packet struct {
	Kind    Kind            `json:"type"`
	Sender  string          `json:"sender"`
	Ts      int64           `json:"ts"`
	Payload json.RawMessage `json:"payload"`
}

// NewPacket marshals payload into a Packet ready for Codec.Encode.
func NewPacket(kind Kind, sender string, ts int64, payload interface{}) (Packet, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Packet{}, errors.Wrap(err, "protocol: marshal payload")
	}
	return Packet{Kind: kind, Sender: sender, Ts: ts, Payload: raw}, nil
}

// Decode unmarshals the packet's payload into dst.
func (p Packet) Decode(dst interface{}) error {
	if len(p.Payload) == 0 {
		return errors.New("protocol: empty payload")
	}
	if err := json.Unmarshal(p.Payload, dst); err != nil {
		return errors.Wrap(err, "protocol: decode payload")
	}
	return nil
}

// HelloPayload is exchanged on connect so both ends learn the other's
// identity, listening port, and authority claim (spec §4.4).
type HelloPayload struct {
	Name          string `json:"name"`
	Port          int    `json:"port"`
	IsRoomCreator bool   `json:"isRoomCreator"`
	HostUUID      string `json:"hostUuid"`
}

// PeerListEntry is one element of a PEER_LIST payload.
type PeerListEntry struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	IP   string `json:"ip"`
	Port int    `json:"port"`
}

// PeerListPayload floods knowledge of the mesh to a newcomer; it never
// includes the recipient or the sender itself (spec §9, load-bearing).
type PeerListPayload struct {
	Peers []PeerListEntry `json:"peers"`
}

// GameTextPayload carries the shared race text and language tag.
type GameTextPayload struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

// CountdownPayload announces the countdown length in seconds.
type CountdownPayload struct {
	Seconds int `json:"seconds"`
}

// ReadyCheckPayload is GameTextPayload broadcast at ready-check time so
// a late joiner resynchronizes before the countdown (spec §4.6).
type ReadyCheckPayload = GameTextPayload

// ReadyResponsePayload carries no data; its arrival is the signal.
type ReadyResponsePayload struct{}

// GameStartPayload carries no data; its arrival transitions to racing.
type GameStartPayload struct{}

// ProgressUpdatePayload is the fixed-cadence race tick (spec §4.6).
type ProgressUpdatePayload struct {
	Position int  `json:"position"`
	Total    int  `json:"total"`
	WPM      int  `json:"wpm"`
	Finished bool `json:"finished"`
}

// FinishPayload announces a player's completion of the race.
type FinishPayload struct {
	WPM      int     `json:"wpm"`
	Accuracy float64 `json:"accuracy"`
	Position int     `json:"position"`
}

// RankingEntry is one row of a RACE_RESULTS payload.
type RankingEntry struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	WPM      int     `json:"wpm"`
	Accuracy float64 `json:"accuracy"`
	Position int     `json:"position"`
}

// RaceResultsPayload is the authority's canonical final ranking.
type RaceResultsPayload struct {
	Rankings []RankingEntry `json:"rankings"`
}

// PlayerLeftPayload announces removal of a player from the roster.
type PlayerLeftPayload struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// PlayAgainInvitePayload carries no data; its arrival invites a replay.
type PlayAgainInvitePayload struct{}
