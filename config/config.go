// Package config holds the timing, sizing, and network constants shared
// by every layer of the mesh core. Values here must match across every
// peer on the LAN — there is no negotiation, both ends must be the same
// build (see spec §6).
package config

import "time"

const (
	// AppID tags discovery datagrams so unrelated broadcast traffic on
	// the same subnet is ignored.
	AppID = "keysprint"

	// DiscoveryPort is the fixed well-known UDP port for room announce/scan.
	DiscoveryPort = 45454

	// MaxPlayersPerRoom bounds mesh size; the accept path rejects beyond it.
	MaxPlayersPerRoom = 8

	// MaxFrameSize is the largest payload the framed codec will accept
	// before disconnecting the offending peer.
	MaxFrameSize = 1 << 20 // 1 MiB

	// AnnounceInterval is how often a room creator broadcasts its presence.
	AnnounceInterval = 2 * time.Second

	// RoomTimeout is the staleness window for discovery directory entries.
	RoomTimeout = 5 * time.Second

	// CleanupInterval is how often the discovery directory is swept for
	// stale entries; spec says RoomTimeout/2.
	CleanupInterval = RoomTimeout / 2

	// ConnectTimeout bounds joinRoom(): if HELLO hasn't arrived by then,
	// the dial is abandoned.
	ConnectTimeout = 5 * time.Second

	// ReadyCheckTimeout bounds how long the authority waits for
	// READY_RESPONSE from every guest before starting the countdown anyway.
	ReadyCheckTimeout = 5 * time.Second

	// CountdownSeconds is broadcast in the COUNTDOWN packet and is how
	// long the authority waits before GAME_START.
	CountdownSeconds = 3

	// ProgressTickInterval is the cadence of local PROGRESS_UPDATE broadcasts.
	ProgressTickInterval = 50 * time.Millisecond

	// DefaultDifficulty and DefaultWordCount are the policy used when the
	// authority refreshes text after a language change (spec §4.6).
	DefaultDifficulty = "medium"
	DefaultWordCount  = 20

	// PacketRateWindow and MaxPacketsPerWindow bound how many packets a
	// single peer connection may send per window before the mesh layer
	// disconnects it (spec §7, protocol-level flood guard — not a
	// content-level anti-cheat check).
	PacketRateWindow    = 1 * time.Second
	MaxPacketsPerWindow = 200
)
