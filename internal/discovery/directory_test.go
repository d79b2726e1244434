package discovery

import (
	"net"
	"testing"
	"time"

	"github.com/keysprint/core/internal/ids"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirectoryUpsertReportsNewOnlyOnce(t *testing.T) {
	d := NewDirectory()
	host := ids.NewPlayerId()

	isNew := d.Upsert(Entry{HostID: host, HostName: "A", HostIP: net.IPv4(10, 0, 0, 1), LastSeen: time.Now()})
	assert.True(t, isNew)

	isNew = d.Upsert(Entry{HostID: host, HostName: "A", HostIP: net.IPv4(10, 0, 0, 1), LastSeen: time.Now()})
	assert.False(t, isNew)

	require.Equal(t, 1, d.Len())
}

func TestDirectoryPruneEvictsStaleEntries(t *testing.T) {
	d := NewDirectory()
	fresh := ids.NewPlayerId()
	stale := ids.NewPlayerId()

	now := time.Now()
	d.Upsert(Entry{HostID: fresh, LastSeen: now})
	d.Upsert(Entry{HostID: stale, LastSeen: now.Add(-10 * time.Second)})

	removed := d.Prune(now, 5*time.Second)
	require.Len(t, removed, 1)
	assert.Equal(t, stale, removed[0])
	assert.Equal(t, 1, d.Len())
}
