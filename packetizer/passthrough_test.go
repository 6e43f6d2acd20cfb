package packetizer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nmaier/mkvengine/packet"
)

func TestPassthroughPacketizerEmitsOneUnreferencedKeyframePacket(t *testing.T) {
	track := &packet.Track{CodecID: "A_PCM/INT/LIT"}
	p := NewPassthroughPacketizer(track)

	pkts, err := p.Process(Frame{Data: []byte{1, 2, 3, 4}, Timecode: 5_000_000})
	require.NoError(t, err)
	require.Len(t, pkts, 1)
	require.False(t, pkts[0].ReferencesValid)
	require.NotZero(t, pkts[0].Flags&packet.FlagKeyframe)
	require.Equal(t, [][]byte{{1, 2, 3, 4}}, pkts[0].Data)

	flushed, err := p.Flush()
	require.NoError(t, err)
	require.Nil(t, flushed)
}
