package session

import (
	"context"
	"testing"
	"time"

	"github.com/keysprint/core/config"
	"github.com/keysprint/core/internal/discovery"
	"github.com/keysprint/core/internal/events"
	"github.com/keysprint/core/internal/ids"
	"github.com/keysprint/core/internal/mesh"
	"github.com/stretchr/testify/require"
)

type fixedClock struct{ ms int64 }

func (c fixedClock) NowMillis() int64 { return c.ms }

type fixedText struct{ text string }

func (f fixedText) Words(language, difficulty string, wordCount int) (string, error) {
	return f.text, nil
}

func newTestSession(t *testing.T, name string) (*Session, *events.Sink) {
	t.Helper()
	id := ids.NewPlayerId()
	m := mesh.NewManager(id, name, 0, fixedClock{}, nil)
	// discovery.NewService binds nothing until Start; Start then binds the
	// fixed discovery port with SO_REUSEADDR, so several test sessions
	// can run on one machine at once.
	disc := discovery.NewService(id, name, 0, fixedClock{}, events.Sink{}, nil)

	s := New(id, name, m, disc, fixedText{text: "the quick brown fox"}, fixedClock{}, events.Sink{}, nil)
	// New stores the Sink by value, so return the session's own copy:
	// callbacks the test assigns through this pointer are the ones it fires.
	return s, &s.events
}

func waitForState(t *testing.T, s *Session, want RoomState, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if s.State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for state %s, got %s", want, s.State())
}

func TestSessionCreateRoomBecomesAuthorityInLobby(t *testing.T) {
	s, _ := newTestSession(t, "host")
	require.True(t, s.CreateRoom())
	require.Equal(t, StateLobby, s.State())
	require.True(t, s.IsAuthority())
	require.False(t, s.CreateRoom(), "createRoom from non-idle must fail")
}

func TestSessionStartCountdownWithNoPeersSkipsReadyCheck(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s, _ := newTestSession(t, "host")
	require.NoError(t, s.Start(ctx))
	defer s.Stop()

	require.True(t, s.CreateRoom())
	s.StartCountdown()

	waitForState(t, s, StateCountingDown, time.Second)
}

func TestSessionFinishRaceIsIdempotent(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s, sink := newTestSession(t, "host")
	finishes := 0
	sink.OnRaceFinished = func(rows []events.RankingRow) { finishes++ }

	require.NoError(t, s.Start(ctx))
	defer s.Stop()

	require.True(t, s.CreateRoom())
	s.StartCountdown()
	waitForState(t, s, StateCountingDown, time.Second)

	s.mu.Lock()
	s.state = StateRacing
	s.mu.Unlock()

	s.FinishRace(80, 97.5)
	s.FinishRace(90, 99.0)

	require.Equal(t, 1, finishes, "finishRace must emit race-finished exactly once for a single-player room")
	require.Equal(t, StateFinished, s.State())
}

func TestTwoSessionsJoinAndRace(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	host, hostSink := newTestSession(t, "host")
	guest, guestSink := newTestSession(t, "guest")

	var joined []events.PlayerView
	hostSink.OnPlayerJoined = func(p events.PlayerView) { joined = append(joined, p) }

	var guestJoinedOK bool
	guestSink.OnJoinSucceeded = func() { guestJoinedOK = true }

	require.NoError(t, host.Start(ctx))
	defer host.Stop()
	require.NoError(t, guest.Start(ctx))
	defer guest.Stop()

	require.True(t, host.CreateRoom())
	require.True(t, guest.JoinRoom("127.0.0.1", host.mesh.ListenPort()))

	waitForState(t, guest, StateLobby, 2*time.Second)
	require.True(t, guestJoinedOK)
	require.Len(t, joined, 1)
	require.Equal(t, 2, host.roster.Len())
	require.Equal(t, 2, guest.roster.Len())

	host.StartCountdown()
	waitForState(t, host, StateCountingDown, 2*time.Second)
	waitForState(t, guest, StateCountingDown, 2*time.Second)

	waitForState(t, host, StateRacing, time.Duration(config.CountdownSeconds+2)*time.Second)
	waitForState(t, guest, StateRacing, 2*time.Second)

	var finalRows []events.RankingRow
	hostSink.OnRaceFinished = func(rows []events.RankingRow) { finalRows = rows }

	host.FinishRace(100, 98.0)
	guest.FinishRace(80, 95.0)

	waitForState(t, host, StateFinished, 2*time.Second)
	waitForState(t, guest, StateFinished, 2*time.Second)

	require.Len(t, finalRows, 2)
	require.Equal(t, 1, finalRows[0].Position)
}


func TestSessionKickPlayerRequiresAuthority(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	guest, _ := newTestSession(t, "guest")
	require.NoError(t, guest.Start(ctx))
	defer guest.Stop()

	someone := ids.NewPlayerId()
	guest.roster.Upsert(someone, "x", false)
	guest.KickPlayer(someone)

	_, stillThere := guest.roster.Get(someone)
	require.True(t, stillThere, "a non-authority kick must be a no-op")
}
