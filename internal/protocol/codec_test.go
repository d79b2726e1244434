package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustPacket(t *testing.T, kind Kind, sender string, ts int64, payload interface{}) Packet {
	t.Helper()
	p, err := NewPacket(kind, sender, ts, payload)
	require.NoError(t, err)
	return p
}

func TestCodecRoundTrip(t *testing.T) {
	c := NewCodec()
	p := mustPacket(t, KindHello, "peer-a", 1234, HelloPayload{
		Name: "Ada", Port: 9001, IsRoomCreator: true, HostUUID: "peer-a",
	})

	frame, err := c.Encode(p)
	require.NoError(t, err)

	got, err := c.Feed(frame)
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.Equal(t, p.Kind, got[0].Kind)
	assert.Equal(t, p.Sender, got[0].Sender)
	assert.Equal(t, p.Ts, got[0].Ts)

	var hello HelloPayload
	require.NoError(t, got[0].Decode(&hello))
	assert.Equal(t, "Ada", hello.Name)
	assert.Equal(t, 9001, hello.Port)
	assert.True(t, hello.IsRoomCreator)
}

func TestCodecFeedAcrossByteSplits(t *testing.T) {
	enc := NewCodec()
	p1 := mustPacket(t, KindReadyResponse, "a", 1, ReadyResponsePayload{})
	p2 := mustPacket(t, KindFinish, "b", 2, FinishPayload{WPM: 80, Accuracy: 99.5, Position: 1})

	f1, err := enc.Encode(p1)
	require.NoError(t, err)
	f2, err := enc.Encode(p2)
	require.NoError(t, err)

	concatenated := append(append([]byte{}, f1...), f2...)

	// Try every possible split point; every split must yield exactly
	// the same two packets in order (spec §8 frame boundary safety).
	for split := 0; split <= len(concatenated); split++ {
		dec := NewCodec()
		var got []Packet

		part1, err := dec.Feed(concatenated[:split])
		require.NoError(t, err)
		got = append(got, part1...)

		part2, err := dec.Feed(concatenated[split:])
		require.NoError(t, err)
		got = append(got, part2...)

		require.Lenf(t, got, 2, "split at %d produced %d packets", split, len(got))
		assert.Equal(t, KindReadyResponse, got[0].Kind)
		assert.Equal(t, KindFinish, got[1].Kind)
	}
}

func TestCodecOversizeFrameRejected(t *testing.T) {
	c := NewCodec()
	huge := make([]byte, 0, 8)
	huge = append(huge, 0xFF, 0xFF, 0xFF, 0xFF) // length prefix claiming ~4GiB
	_, err := c.Feed(huge)
	require.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestCodecMalformedPayloadRejected(t *testing.T) {
	c := NewCodec()
	body := []byte("not json")
	frame := make([]byte, 4+len(body))
	frame[3] = byte(len(body))
	copy(frame[4:], body)

	_, err := c.Feed(frame)
	require.Error(t, err)
}

func TestCodecResetDropsPartialFrame(t *testing.T) {
	c := NewCodec()
	_, err := c.Feed([]byte{0, 0, 0, 10, 1, 2, 3})
	require.NoError(t, err)

	c.Reset()
	got, err := c.Feed([]byte{})
	require.NoError(t, err)
	assert.Empty(t, got)
}
