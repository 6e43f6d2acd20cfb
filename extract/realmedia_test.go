package extract

import (
	"bytes"
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nmaier/mkvengine/packet"
	"github.com/nmaier/mkvengine/reader"
)

// buildRealVideoTypeSpecific encodes a minimal real_video_props_t blob
// (size/fourcc1/fourcc2/width/height), enough for reader.RealMediaSource's
// parseMDPR to recover the codec fourcc and frame dimensions.
func buildRealVideoTypeSpecific(fourcc string, width, height uint16) []byte {
	buf := make([]byte, 16)
	copy(buf[0:4], "SIZE")
	copy(buf[4:8], "VIDO")
	copy(buf[8:12], fourcc)
	binary.BigEndian.PutUint16(buf[12:14], width)
	binary.BigEndian.PutUint16(buf[14:16], height)
	return buf
}

func TestRealMediaSinkRoundTripsWithReader(t *testing.T) {
	var buf bufferWriteSeeker
	video := &packet.Track{
		Number:       1,
		Type:         1,
		CodecID:      "V_REAL/RV40",
		CodecPrivate: buildRealVideoTypeSpecific("RV40", 320, 240),
		Video:        &packet.VideoTrack{PixelWidth: 320, PixelHeight: 240},
	}

	sink, err := NewRealMediaSink(&buf, []*packet.Track{video})
	require.NoError(t, err)

	require.NoError(t, sink.WritePacket(&packet.Packet{
		Track:    1,
		Timecode: 0,
		Flags:    packet.FlagKeyframe,
		Data:     [][]byte{[]byte("frame-one")},
	}))
	require.NoError(t, sink.WritePacket(&packet.Packet{
		Track:    1,
		Timecode: 40 * time.Millisecond,
		Data:     [][]byte{[]byte("frame-two")},
	}))
	require.NoError(t, sink.Close())

	require.Equal(t, ".RMF", string(buf.b[0:4]))

	src, err := reader.OpenRealMedia(bytes.NewReader(buf.b))
	require.NoError(t, err)
	tracks := src.Tracks()
	require.Len(t, tracks, 1)
	require.Equal(t, "V_REAL/RV40", tracks[0].CodecID)
	require.EqualValues(t, 320, tracks[0].Video.PixelWidth)
	require.EqualValues(t, 240, tracks[0].Video.PixelHeight)

	f1, err := src.ReadFrame(0)
	require.NoError(t, err)
	require.Equal(t, "frame-one", string(f1.Data))
	require.True(t, f1.Keyframe)

	f2, err := src.ReadFrame(0)
	require.NoError(t, err)
	require.Equal(t, "frame-two", string(f2.Data))
	require.Equal(t, int64(40*time.Millisecond), f2.Timecode)
}
