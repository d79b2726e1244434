package mesh

import (
	"net"
	"sync"
	"time"

	"github.com/keysprint/core/internal/guard"
	"github.com/keysprint/core/internal/ids"
	"github.com/keysprint/core/internal/protocol"
	"go.uber.org/atomic"
)

const writeTimeout = 3 * time.Second

// Peer is one TCP socket plus its read buffer and handshake state,
// owned exclusively by Manager (spec §3/§9: "no back-reference from
// Player to Peer is needed — all outbound traffic goes through the
// mesh manager by id").
type Peer struct {
	conn net.Conn

	codec *protocol.Codec

	writeMu sync.Mutex

	id               ids.PlayerId // filled after HELLO
	name             string
	remoteIP         net.IP
	remoteListenPort int

	outbound bool   // true if this node dialed; false if accepted
	tempKey  string // "pending:ip:port" before handshake completes

	handshakeComplete atomic.Bool
	closeOnce         sync.Once

	rateGuard guard.Window
}

func newPeer(conn net.Conn, outbound bool, tempKey string) *Peer {
	return &Peer{
		conn:     conn,
		codec:    protocol.NewCodec(),
		outbound: outbound,
		tempKey:  tempKey,
	}
}

// Send frames and writes a packet. Best-effort, with no outbound queue
// beyond the OS socket buffer (spec §4.4): a write that cannot complete
// within writeTimeout fails, and a failed write closes the connection,
// so a slow peer is disconnected through the normal read-loop teardown
// rather than blocking the mesh manager.
func (p *Peer) Send(pkt protocol.Packet) error {
	frame, err := p.codec.Encode(pkt)
	if err != nil {
		return err
	}

	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	p.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	_, err = p.conn.Write(frame)
	if err != nil {
		p.Close()
	}
	return err
}

// Close shuts down the underlying socket. Safe to call more than once.
func (p *Peer) Close() {
	p.closeOnce.Do(func() {
		p.conn.Close()
	})
}

// ID returns the peer's identifier, zero until HELLO completes.
func (p *Peer) ID() ids.PlayerId { return p.id }

// Name returns the peer's advertised display name.
func (p *Peer) Name() string { return p.name }

// HandshakeComplete reports whether HELLO has been processed for this peer.
func (p *Peer) HandshakeComplete() bool { return p.handshakeComplete.Load() }

// readLoop feeds incoming bytes to the codec and dispatches every
// decoded packet to onPacket, in arrival order (spec §5: "within one
// TCP connection, packets arrive in send order and are processed in
// that order"). A malformed or oversize frame (§4.1/§7) ends the loop,
// disconnecting only this peer — as does a peer that floods packets
// past its rate budget (spec §7).
func (p *Peer) readLoop(onPacket func(*Peer, protocol.Packet), onClosed func(*Peer)) {
	defer onClosed(p)
	defer p.Close()

	buf := make([]byte, 4096)
	for {
		n, err := p.conn.Read(buf)
		if n > 0 {
			packets, feedErr := p.codec.Feed(buf[:n])
			for _, pkt := range packets {
				if !p.rateGuard.Allow(time.Now()) {
					return
				}
				onPacket(p, pkt)
			}
			if feedErr != nil {
				return
			}
		}
		if err != nil {
			return
		}
	}
}
