package protocol

import (
	"encoding/binary"
	"encoding/json"

	"github.com/keysprint/core/config"
	"github.com/pkg/errors"
)

// ErrFrameTooLarge is returned (and causes the owning peer to be
// disconnected, per spec §4.1/§7) when a declared frame length exceeds
// config.MaxFrameSize.
var ErrFrameTooLarge = errors.New("protocol: frame exceeds maximum size")

// ErrMalformedFrame wraps a payload that failed to structurally parse.
var ErrMalformedFrame = errors.New("protocol: malformed frame")

const lengthPrefixSize = 4

// Codec implements the wire format described in spec §4.1/§6: repeated
// records of a 4-byte big-endian length followed by a JSON payload.
//
// Feed is stateful: it accumulates bytes across calls and returns every
// complete packet it can assemble, preserving any partial trailing
// bytes for the next call.
type Codec struct {
	buf []byte
}

// NewCodec returns a ready-to-use codec with an empty accumulator.
func NewCodec() *Codec {
	return &Codec{}
}

// Encode serializes a packet into a length-prefixed frame.
func (c *Codec) Encode(p Packet) ([]byte, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return nil, errors.Wrap(err, "protocol: encode packet")
	}
	if len(body) > config.MaxFrameSize {
		return nil, ErrFrameTooLarge
	}

	out := make([]byte, lengthPrefixSize+len(body))
	binary.BigEndian.PutUint32(out[:lengthPrefixSize], uint32(len(body)))
	copy(out[lengthPrefixSize:], body)
	return out, nil
}

// Feed appends data to the internal accumulator and extracts every
// complete frame now available. Partial trailing bytes are preserved
// across calls, so feeding any byte-split of a concatenation of valid
// frames yields exactly that sequence of packets (spec §8).
func (c *Codec) Feed(data []byte) ([]Packet, error) {
	c.buf = append(c.buf, data...)

	var packets []Packet
	for {
		if len(c.buf) < lengthPrefixSize {
			return packets, nil
		}

		length := binary.BigEndian.Uint32(c.buf[:lengthPrefixSize])
		if length > config.MaxFrameSize {
			return packets, ErrFrameTooLarge
		}

		frameEnd := lengthPrefixSize + int(length)
		if len(c.buf) < frameEnd {
			// Wait for more bytes; what we have is a valid partial prefix.
			return packets, nil
		}

		var p Packet
		if err := json.Unmarshal(c.buf[lengthPrefixSize:frameEnd], &p); err != nil {
			return packets, errors.Wrap(ErrMalformedFrame, err.Error())
		}
		packets = append(packets, p)

		c.buf = c.buf[frameEnd:]
	}
}

// Reset discards any buffered partial frame so a reused Codec starts
// clean. Production peers never call it: each connection gets a fresh
// Codec, and peer teardown leaves the old one to be collected.
func (c *Codec) Reset() {
	c.buf = nil
}
