package mesh

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/keysprint/core/internal/ids"
	"github.com/stretchr/testify/require"
)

type fixedClock struct{ ms int64 }

func (c fixedClock) NowMillis() int64 { return c.ms }

func newTestManager(t *testing.T, name string) *Manager {
	t.Helper()
	return NewManager(ids.NewPlayerId(), name, 0, fixedClock{}, nil)
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestManagerHandshakeEstablishesBidirectionalPeer(t *testing.T) {
	ctx := context.Background()
	a := newTestManager(t, "alice")
	b := newTestManager(t, "bob")

	var mu sync.Mutex
	var aCompleted, bCompleted []ids.PlayerId

	a.SetHooks(Hooks{OnHandshakeComplete: func(id ids.PlayerId, name string, ip net.IP, port int, hostUUID string) {
		mu.Lock()
		aCompleted = append(aCompleted, id)
		mu.Unlock()
	}})
	b.SetHooks(Hooks{OnHandshakeComplete: func(id ids.PlayerId, name string, ip net.IP, port int, hostUUID string) {
		mu.Lock()
		bCompleted = append(bCompleted, id)
		mu.Unlock()
	}})

	require.NoError(t, a.Start(ctx))
	require.NoError(t, b.Start(ctx))
	defer a.Stop()
	defer b.Stop()

	require.NoError(t, a.Dial("127.0.0.1", b.ListenPort(), ids.Nil))

	waitFor(t, time.Second, func() bool {
		return a.PeerCount() == 1 && b.PeerCount() == 1
	})

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, aCompleted, 1)
	require.Len(t, bCompleted, 1)
	require.Equal(t, b.selfID, aCompleted[0])
	require.Equal(t, a.selfID, bCompleted[0])
}

// TestManagerDuplicateDialResolvesToOneConnection simulates two nodes
// dialing each other at roughly the same time: each ends up with
// exactly one Peer for the other, and OnHandshakeComplete fires only
// once per side, never for the loser of the race (spec §4.4 scenario 3).
func TestManagerDuplicateDialResolvesToOneConnection(t *testing.T) {
	ctx := context.Background()
	a := newTestManager(t, "alice")
	b := newTestManager(t, "bob")

	var mu sync.Mutex
	var aCompletes, bCompletes int

	a.SetHooks(Hooks{OnHandshakeComplete: func(ids.PlayerId, string, net.IP, int, string) {
		mu.Lock()
		aCompletes++
		mu.Unlock()
	}})
	b.SetHooks(Hooks{OnHandshakeComplete: func(ids.PlayerId, string, net.IP, int, string) {
		mu.Lock()
		bCompletes++
		mu.Unlock()
	}})

	require.NoError(t, a.Start(ctx))
	require.NoError(t, b.Start(ctx))
	defer a.Stop()
	defer b.Stop()

	require.NoError(t, a.Dial("127.0.0.1", b.ListenPort(), ids.Nil))
	require.NoError(t, b.Dial("127.0.0.1", a.ListenPort(), ids.Nil))

	waitFor(t, time.Second, func() bool {
		return a.PeerCount() == 1 && b.PeerCount() == 1
	})

	// Give any loser-side teardown time to settle before asserting counts stay at one.
	time.Sleep(100 * time.Millisecond)

	require.Equal(t, 1, a.PeerCount())
	require.Equal(t, 1, b.PeerCount())

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 1, aCompletes)
	require.Equal(t, 1, bCompletes)
}

func TestManagerDialRefusesOwnListeningEndpoint(t *testing.T) {
	a := newTestManager(t, "alice")
	require.NoError(t, a.Start(context.Background()))
	defer a.Stop()

	err := a.Dial("127.0.0.1", a.ListenPort(), ids.Nil)
	require.Error(t, err)
}

func TestManagerDialRefusesConcurrentDialToSameAddr(t *testing.T) {
	ctx := context.Background()
	a := newTestManager(t, "alice")
	b := newTestManager(t, "bob")
	require.NoError(t, a.Start(ctx))
	require.NoError(t, b.Start(ctx))
	defer a.Stop()
	defer b.Stop()

	require.NoError(t, a.Dial("127.0.0.1", b.ListenPort(), ids.Nil))
	err := a.Dial("127.0.0.1", b.ListenPort(), ids.Nil)
	require.Error(t, err)
}
