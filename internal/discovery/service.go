// Package discovery implements the UDP broadcast announce/listen layer
// of spec §4.3: a shared socket that both announces this node's room
// (when it is a lobby authority) and scans for others, maintaining a
// room directory with staleness eviction.
package discovery

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/keysprint/core/config"
	"github.com/keysprint/core/internal/capability"
	"github.com/keysprint/core/internal/events"
	"github.com/keysprint/core/internal/ids"
	"github.com/keysprint/core/internal/netiface"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"golang.org/x/net/ipv4"
	"golang.org/x/sync/errgroup"
)

// RoomInfo is the live lobby state the announce loop reads each tick.
type RoomInfo struct {
	PlayerCount int
	Status      string
}

// RoomInfoFunc supplies the current RoomInfo to announce; set via
// SetAnnouncing when this node becomes a lobby authority.
type RoomInfoFunc func() RoomInfo

// Service owns the shared discovery UDP socket and the room directory
// it maintains from inbound announcements (spec §4.3).
type Service struct {
	localID   ids.PlayerId
	localName string
	localPort int

	directory *Directory
	clock     capability.Clock
	events    events.Sink
	log       *zap.SugaredLogger

	conn  *net.UDPConn
	pconn *ipv4.PacketConn

	announcing    atomic.Bool
	roomInfoFn    atomic.Value // RoomInfoFunc
	selectedIface atomic.Value // *netiface.Candidate, nil means "use global broadcast"

	cancel context.CancelFunc
	group  *errgroup.Group
}

// NewService constructs a discovery service for the given local
// identity. Start must be called before it does anything.
func NewService(localID ids.PlayerId, localName string, localPort int, clock capability.Clock, sink events.Sink, log *zap.SugaredLogger) *Service {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	s := &Service{
		localID:   localID,
		localName: localName,
		localPort: localPort,
		directory: NewDirectory(),
		clock:     clock,
		events:    sink,
		log:       log,
	}
	s.roomInfoFn.Store(RoomInfoFunc(func() RoomInfo { return RoomInfo{} }))
	s.selectedIface.Store((*netiface.Candidate)(nil))
	return s
}

// Directory exposes the live room directory for read access.
func (s *Service) Directory() *Directory { return s.directory }

// Start binds the shared discovery socket and launches the scan and
// cleanup loops (announce only runs once SetAnnouncing(true, ...) is
// called). Returns once the socket is bound; loops run in background
// goroutines tracked by an errgroup so Stop can wait for clean exit.
func (s *Service) Start(ctx context.Context) error {
	lc := net.ListenConfig{Control: reuseAddrControl}
	conn, err := lc.ListenPacket(ctx, "udp4", ":"+strconv.Itoa(config.DiscoveryPort))
	if err != nil {
		return errors.Wrap(err, "discovery: bind socket")
	}
	udpConn := conn.(*net.UDPConn)
	udpConn.SetWriteBuffer(64 * 1024)

	s.conn = udpConn
	s.pconn = ipv4.NewPacketConn(udpConn)

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	g, gctx := errgroup.WithContext(runCtx)
	s.group = g

	g.Go(func() error { s.scanLoop(gctx); return nil })
	g.Go(func() error { s.cleanupLoop(gctx); return nil })
	g.Go(func() error { s.announceLoop(gctx); return nil })

	s.log.Infow("discovery started", "port", config.DiscoveryPort)
	return nil
}

// Stop cancels every loop, waits for them to exit, and closes the
// socket. Safe to call even if Start failed or was never called.
func (s *Service) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.group != nil {
		s.group.Wait()
	}
	if s.conn != nil {
		s.conn.Close()
	}
}

// SetAnnouncing toggles announce mode. fn is consulted every announce
// tick for the current player count and status (spec §4.3: "active
// while this node is in a lobby as room creator").
func (s *Service) SetAnnouncing(enabled bool, fn RoomInfoFunc) {
	if fn == nil {
		fn = func() RoomInfo { return RoomInfo{} }
	}
	s.roomInfoFn.Store(fn)
	s.announcing.Store(enabled)
}

// SetSelectedInterface pins subsequent announcements to one interface's
// directed broadcast address, or clears the pin with nil (spec §4.3,
// §6 setSelectedInterface).
func (s *Service) SetSelectedInterface(c *netiface.Candidate) {
	s.selectedIface.Store(c)
}

func (s *Service) announceLoop(ctx context.Context) {
	ticker := time.NewTicker(config.AnnounceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !s.announcing.Load() {
				continue
			}
			if err := s.sendAnnouncement(); err != nil {
				s.log.Warnw("discovery: announce failed", "error", err)
			}
		}
	}
}

func (s *Service) sendAnnouncement() error {
	info := s.roomInfoFn.Load().(RoomInfoFunc)()

	body, err := encodeWireMessage(wireMessage{
		App:         config.AppID,
		UUID:        s.localID.String(),
		Name:        s.localName,
		Port:        s.localPort,
		PlayerCount: info.PlayerCount,
		Status:      info.Status,
	})
	if err != nil {
		return errors.Wrap(err, "discovery: encode announcement")
	}

	dst := &net.UDPAddr{IP: net.IPv4bcast, Port: config.DiscoveryPort}
	var cm *ipv4.ControlMessage

	if iface, _ := s.selectedIface.Load().(*netiface.Candidate); iface != nil {
		dst = &net.UDPAddr{IP: iface.BroadcastAddr(), Port: config.DiscoveryPort}
		cm = &ipv4.ControlMessage{IfIndex: iface.Index}
	}

	_, err = s.pconn.WriteTo(body, cm, dst)
	return err
}

func (s *Service) scanLoop(ctx context.Context) {
	buf := make([]byte, 4096)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		s.conn.SetReadDeadline(time.Now().Add(1 * time.Second))
		n, addr, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			s.log.Debugw("discovery: read error", "error", err)
			continue
		}

		s.handleDatagram(buf[:n], addr)
	}
}

func (s *Service) handleDatagram(data []byte, from *net.UDPAddr) {
	msg, err := decodeWireMessage(data)
	if err != nil {
		return // malformed; silently ignored per spec §7
	}
	if msg.App != config.AppID || msg.Type != wireType {
		return
	}

	hostID, err := ids.ParsePlayerId(msg.UUID)
	if err != nil || hostID == s.localID {
		return
	}

	entry := Entry{
		HostID:      hostID,
		HostName:    msg.Name,
		HostIP:      from.IP,
		HostPort:    msg.Port,
		PlayerCount: msg.PlayerCount,
		Status:      msg.Status,
		LastSeen:    time.UnixMilli(s.clock.NowMillis()),
	}

	isNew := s.directory.Upsert(entry)
	e := events.RoomEntry{
		HostID: hostID, HostName: entry.HostName, HostIP: entry.HostIP.String(),
		HostPort: entry.HostPort, PlayerCount: entry.PlayerCount, Status: entry.Status,
	}
	if isNew {
		s.events.EmitRoomFound(e)
	}
	s.events.EmitRoomsChanged(s.snapshotAsEvents())
}

func (s *Service) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.UnixMilli(s.clock.NowMillis())
			removed := s.directory.Prune(now, config.RoomTimeout)
			if len(removed) > 0 {
				s.events.EmitRoomsChanged(s.snapshotAsEvents())
			}
		}
	}
}

func (s *Service) snapshotAsEvents() []events.RoomEntry {
	entries := s.directory.Snapshot()
	out := make([]events.RoomEntry, len(entries))
	for i, e := range entries {
		out[i] = events.RoomEntry{
			HostID: e.HostID, HostName: e.HostName, HostIP: e.HostIP.String(),
			HostPort: e.HostPort, PlayerCount: e.PlayerCount, Status: e.Status,
		}
	}
	return out
}
