// Package mesh implements the TCP mesh transport of spec §4.4: an
// accept+dial socket pair per node, a HELLO handshake with
// duplicate-connection resolution, and PEER_LIST flooding so every
// node ends up directly connected to every other node in a room.
package mesh

import (
	"context"
	"net"
	"strconv"
	"sync"

	"github.com/keysprint/core/config"
	"github.com/keysprint/core/internal/capability"
	"github.com/keysprint/core/internal/ids"
	"github.com/keysprint/core/internal/protocol"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Hooks are the callbacks Manager fires into its owner (the session
// layer). Manager itself never touches roster or room state; it only
// resolves which Peer represents which id (spec §4.4/§9).
type Hooks struct {
	// AllowNewPeer gates inbound connections before HELLO (roster
	// capacity check, spec §4.4 "Reject immediately if roster would
	// exceed the configured maximum").
	AllowNewPeer func() bool

	// IsRoomCreator reports whether this node is the current room's
	// authority, echoed in HELLO.
	IsRoomCreator func() bool

	// HostID returns this node's best-known host id ("" if unknown).
	HostID func() string

	// GameText supplies the current synchronized text when this node
	// is authority, so newcomers receive it immediately after HELLO.
	GameText func() (text, language string, ok bool)

	// OnHandshakeComplete fires exactly once per id, the first time a
	// Peer for that id is established (never again on duplicate-
	// connection supersession, spec §4.4 scenario 3).
	OnHandshakeComplete func(peerID ids.PlayerId, name string, ip net.IP, listenPort int, hostUUID string)

	// OnPeerLost fires when a Peer that had completed handshake and
	// was never superseded disconnects.
	OnPeerLost func(id ids.PlayerId, name string)

	// OnPacket receives every packet other than HELLO/PEER_LIST, for
	// the session/race layers to interpret.
	OnPacket func(senderID ids.PlayerId, pkt protocol.Packet)
}

// Manager owns every live Peer for the local node.
type Manager struct {
	selfID         ids.PlayerId
	selfName       string
	selfListenPort int
	localAddrs     map[string]bool // ip strings considered "this host"

	hooks Hooks
	log   *zap.SugaredLogger
	clock capability.Clock

	mu      sync.Mutex
	pending map[string]*Peer        // keyed by tempKey, pre-handshake
	peers   map[ids.PlayerId]*Peer  // keyed by resolved id
	dialing map[string]bool         // addr keys with an in-flight dial

	listener net.Listener
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewManager constructs a mesh manager for the local identity.
// listenPort is the TCP port this node accepts connections on.
func NewManager(selfID ids.PlayerId, selfName string, listenPort int, clock capability.Clock, log *zap.SugaredLogger) *Manager {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Manager{
		selfID:         selfID,
		selfName:       selfName,
		selfListenPort: listenPort,
		localAddrs:     map[string]bool{"127.0.0.1": true, "localhost": true},
		log:            log,
		clock:          clock,
		pending:        make(map[string]*Peer),
		peers:          make(map[ids.PlayerId]*Peer),
		dialing:        make(map[string]bool),
	}
}

func (m *Manager) now() int64 {
	if m.clock == nil {
		return 0
	}
	return m.clock.NowMillis()
}

// SetHooks installs the callback set. Must be called before Start.
func (m *Manager) SetHooks(h Hooks) { m.hooks = h }

// SetLocalAddrs records additional local interface IPs so Dial can
// refuse connecting to this node's own listening endpoint.
func (m *Manager) SetLocalAddrs(ips []net.IP) {
	for _, ip := range ips {
		m.localAddrs[ip.String()] = true
	}
}

// Start binds the accept socket and begins accepting inbound peers. A
// configured port of 0 lets the OS pick one, retrievable via ListenPort.
func (m *Manager) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", ":"+strconv.Itoa(m.selfListenPort))
	if err != nil {
		return errors.Wrap(err, "mesh: listen")
	}
	m.listener = ln
	if tcpAddr, ok := ln.Addr().(*net.TCPAddr); ok {
		m.selfListenPort = tcpAddr.Port
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	m.wg.Add(1)
	go m.acceptLoop(runCtx)

	m.log.Infow("mesh listening", "port", m.selfListenPort)
	return nil
}

// Stop closes the listener and every peer connection, then waits for
// the accept loop and all read loops to finish.
func (m *Manager) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	if m.listener != nil {
		m.listener.Close()
	}

	m.mu.Lock()
	all := make([]*Peer, 0, len(m.peers)+len(m.pending))
	for _, p := range m.peers {
		all = append(all, p)
	}
	for _, p := range m.pending {
		all = append(all, p)
	}
	m.mu.Unlock()

	for _, p := range all {
		p.Close()
	}
	m.wg.Wait()
}

func (m *Manager) acceptLoop(ctx context.Context) {
	defer m.wg.Done()
	for {
		conn, err := m.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			m.log.Debugw("mesh: accept error", "error", err)
			continue
		}

		if m.hooks.AllowNewPeer != nil && !m.hooks.AllowNewPeer() {
			conn.Close()
			continue
		}

		tempKey := "pending:" + conn.RemoteAddr().String()
		peer := newPeer(conn, false, tempKey)

		m.mu.Lock()
		m.pending[tempKey] = peer
		m.mu.Unlock()

		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			peer.readLoop(m.handlePacket, m.handlePeerClosed)
		}()

		if err := m.sendHello(peer); err != nil {
			m.log.Debugw("mesh: send hello failed", "error", err)
		}
	}
}

// Dial connects to a remote node's listening endpoint. expectedID may
// be ids.Nil when the id isn't known yet (the first connection a
// joining guest makes). Refusal rules are spec §4.4's: self-endpoint,
// already-dialing, already-connected.
func (m *Manager) Dial(ip string, port int, expectedID ids.PlayerId) error {
	if m.localAddrs[ip] && port == m.selfListenPort {
		return errors.New("mesh: refusing to dial own listening endpoint")
	}

	addrKey := net.JoinHostPort(ip, strconv.Itoa(port))

	m.mu.Lock()
	if m.dialing[addrKey] {
		m.mu.Unlock()
		return errors.New("mesh: dial already in flight for " + addrKey)
	}
	if !expectedID.IsNil() {
		if _, ok := m.peers[expectedID]; ok {
			m.mu.Unlock()
			return errors.New("mesh: already connected to " + expectedID.String())
		}
	}
	m.dialing[addrKey] = true
	m.mu.Unlock()

	go m.dial(addrKey)
	return nil
}

func (m *Manager) dial(addrKey string) {
	conn, err := net.DialTimeout("tcp", addrKey, config.ConnectTimeout)

	m.mu.Lock()
	delete(m.dialing, addrKey)
	m.mu.Unlock()

	if err != nil {
		m.log.Debugw("mesh: dial failed", "addr", addrKey, "error", err)
		return
	}

	tempKey := "pending:" + addrKey
	peer := newPeer(conn, true, tempKey)

	m.mu.Lock()
	m.pending[tempKey] = peer
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		peer.readLoop(m.handlePacket, m.handlePeerClosed)
	}()

	if err := m.sendHello(peer); err != nil {
		m.log.Debugw("mesh: send hello failed", "error", err)
	}
}

func (m *Manager) sendHello(p *Peer) error {
	hostUUID := ""
	if m.hooks.HostID != nil {
		hostUUID = m.hooks.HostID()
	}
	isCreator := false
	if m.hooks.IsRoomCreator != nil {
		isCreator = m.hooks.IsRoomCreator()
	}

	pkt, err := protocol.NewPacket(protocol.KindHello, m.selfID.String(), m.now(), protocol.HelloPayload{
		Name:          m.selfName,
		Port:          m.selfListenPort,
		IsRoomCreator: isCreator,
		HostUUID:      hostUUID,
	})
	if err != nil {
		return err
	}
	return p.Send(pkt)
}

func (m *Manager) handlePacket(p *Peer, pkt protocol.Packet) {
	switch pkt.Kind {
	case protocol.KindHello:
		m.handleHello(p, pkt)
	case protocol.KindPeerList:
		m.handlePeerList(pkt)
	default:
		senderID, err := ids.ParsePlayerId(pkt.Sender)
		if err != nil {
			return
		}
		if m.hooks.OnPacket != nil {
			m.hooks.OnPacket(senderID, pkt)
		}
	}
}

func (m *Manager) handleHello(p *Peer, pkt protocol.Packet) {
	var payload protocol.HelloPayload
	if err := pkt.Decode(&payload); err != nil {
		return
	}
	senderID, err := ids.ParsePlayerId(pkt.Sender)
	if err != nil || senderID.IsNil() {
		return
	}

	p.id = senderID
	p.name = payload.Name
	p.remoteListenPort = payload.Port
	if tcp, ok := p.conn.RemoteAddr().(*net.TCPAddr); ok {
		p.remoteIP = tcp.IP
	}

	survivor, firstTime := m.resolveHandshake(p, senderID)
	if survivor != p {
		// Lost the duplicate-connection race; close quietly, no
		// player was ever created for this socket.
		p.Close()
		return
	}

	p.handshakeComplete.Store(true)

	if firstTime && m.hooks.OnHandshakeComplete != nil {
		m.hooks.OnHandshakeComplete(senderID, payload.Name, p.remoteIP, payload.Port, payload.HostUUID)
	}

	m.sendPeerList(p, senderID)

	if text, lang, ok := m.gameTextOrEmpty(); ok {
		gtPkt, err := protocol.NewPacket(protocol.KindGameText, m.selfID.String(), m.now(), protocol.GameTextPayload{Text: text, Language: lang})
		if err == nil {
			p.Send(gtPkt)
		}
	}
}

func (m *Manager) gameTextOrEmpty() (string, string, bool) {
	if m.hooks.GameText == nil {
		return "", "", false
	}
	return m.hooks.GameText()
}

// resolveHandshake rekeys p from its pending tempKey to senderID,
// applying the duplicate-connection rule from spec §4.4: keep the
// connection this node dialed iff its own id is lexicographically
// smaller than the remote id, otherwise keep the accepted connection.
// firstTime is true only the very first time senderID is established,
// so the caller invokes OnHandshakeComplete at most once per id.
func (m *Manager) resolveHandshake(p *Peer, senderID ids.PlayerId) (survivor *Peer, firstTime bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.pending, p.tempKey)

	existing, ok := m.peers[senderID]
	if !ok {
		m.peers[senderID] = p
		return p, true
	}
	if existing == p {
		return p, false
	}

	keepOutbound := m.selfID.Less(senderID)
	var loser *Peer
	switch {
	case keepOutbound && p.outbound:
		survivor, loser = p, existing
	case keepOutbound && !p.outbound:
		survivor, loser = existing, p
	case !keepOutbound && p.outbound:
		survivor, loser = existing, p
	default: // !keepOutbound && !p.outbound
		survivor, loser = p, existing
	}

	m.peers[senderID] = survivor
	go loser.Close()
	return survivor, false
}

func (m *Manager) sendPeerList(to *Peer, excludeID ids.PlayerId) {
	m.mu.Lock()
	entries := make([]protocol.PeerListEntry, 0, len(m.peers))
	for id, peer := range m.peers {
		if id == excludeID || !peer.HandshakeComplete() {
			continue
		}
		entries = append(entries, protocol.PeerListEntry{
			ID:   id.String(),
			Name: peer.Name(),
			IP:   ipString(peer.remoteIP),
			Port: peer.remoteListenPort,
		})
	}
	m.mu.Unlock()

	if len(entries) == 0 {
		return
	}
	pkt, err := protocol.NewPacket(protocol.KindPeerList, m.selfID.String(), m.now(), protocol.PeerListPayload{Peers: entries})
	if err != nil {
		return
	}
	to.Send(pkt)
}

func (m *Manager) handlePeerList(pkt protocol.Packet) {
	var payload protocol.PeerListPayload
	if err := pkt.Decode(&payload); err != nil {
		return
	}
	for _, e := range payload.Peers {
		id, err := ids.ParsePlayerId(e.ID)
		if err != nil || id.IsNil() || id == m.selfID {
			continue
		}
		if err := m.Dial(e.IP, e.Port, id); err != nil {
			m.log.Debugw("mesh: peer-list dial skipped", "id", id.String(), "reason", err)
		}
	}
}

func (m *Manager) handlePeerClosed(p *Peer) {
	m.mu.Lock()
	var hadID bool
	var id ids.PlayerId
	var name string

	if !p.id.IsNil() {
		if cur, ok := m.peers[p.id]; ok && cur == p {
			delete(m.peers, p.id)
			hadID = true
			id = p.id
			name = p.name
		}
	} else {
		delete(m.pending, p.tempKey)
	}
	m.mu.Unlock()

	if hadID && m.hooks.OnPeerLost != nil {
		m.hooks.OnPeerLost(id, name)
	}
}

// Broadcast sends a packet to every peer with a completed handshake.
func (m *Manager) Broadcast(pkt protocol.Packet) {
	m.mu.Lock()
	peers := make([]*Peer, 0, len(m.peers))
	for _, p := range m.peers {
		peers = append(peers, p)
	}
	m.mu.Unlock()

	for _, p := range peers {
		if err := p.Send(pkt); err != nil {
			m.log.Debugw("mesh: broadcast write failed", "peer", p.ID().String(), "error", err)
		}
	}
}

// SendTo sends a packet to exactly one peer by id.
func (m *Manager) SendTo(id ids.PlayerId, pkt protocol.Packet) error {
	m.mu.Lock()
	p, ok := m.peers[id]
	m.mu.Unlock()
	if !ok {
		return errors.New("mesh: no peer for id " + id.String())
	}
	return p.Send(pkt)
}

// Kick forcibly disconnects a peer by id. Authority is checked by the
// caller; Manager only tears down the socket.
func (m *Manager) Kick(id ids.PlayerId) {
	m.mu.Lock()
	p, ok := m.peers[id]
	m.mu.Unlock()
	if ok {
		p.Close()
	}
}

// ListenPort returns the TCP port this node accepts connections on,
// resolved by the OS if the manager was started with port 0.
func (m *Manager) ListenPort() int { return m.selfListenPort }

// PeerCount returns the number of peers with a completed handshake.
func (m *Manager) PeerCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.peers)
}

func ipString(ip net.IP) string {
	if ip == nil {
		return ""
	}
	return ip.String()
}
