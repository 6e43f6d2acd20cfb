package extract

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nmaier/mkvengine/packet"
)

func TestSRTSinkFormatsSequentialEntries(t *testing.T) {
	var buf bytes.Buffer
	sink := NewSRTSink(&buf)

	require.NoError(t, sink.WritePacket(&packet.Packet{
		Timecode: 1500 * time.Millisecond,
		Duration: 2 * time.Second,
		Data:     [][]byte{[]byte("Hello")},
	}))
	require.NoError(t, sink.WritePacket(&packet.Packet{
		Timecode: 5 * time.Second,
		Duration: time.Second,
		Data:     [][]byte{[]byte("World")},
	}))
	require.NoError(t, sink.Close())

	got := buf.String()
	require.Contains(t, got, "1\n00:00:01,500 --> 00:00:03,500\nHello\n\n")
	require.Contains(t, got, "2\n00:00:05,000 --> 00:00:06,000\nWorld\n\n")
}

func TestWAVSinkPatchesSizesAtClose(t *testing.T) {
	var buf bufferWriteSeeker
	sink, err := NewWAVSink(&buf, 2, 44100, 16)
	require.NoError(t, err)

	pcm := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	require.NoError(t, sink.WritePacket(&packet.Packet{Data: [][]byte{pcm}}))
	require.NoError(t, sink.Close())

	require.Equal(t, "RIFF", string(buf.b[0:4]))
	require.Equal(t, "WAVE", string(buf.b[8:12]))
	require.Equal(t, "data", string(buf.b[36:40]))
	require.Len(t, buf.b, 44+len(pcm))
}

func TestRawSinkFullRawPrependsCodecPrivate(t *testing.T) {
	var buf bytes.Buffer
	sink := NewRawSink(&buf, []byte("CPD"), true)

	require.NoError(t, sink.WritePacket(&packet.Packet{Data: [][]byte{[]byte("frame1")}}))
	require.NoError(t, sink.WritePacket(&packet.Packet{Data: [][]byte{[]byte("frame2")}}))
	require.NoError(t, sink.Close())

	require.Equal(t, "CPDframe1frame2", buf.String())
}

// bufferWriteSeeker is a minimal io.WriteSeeker over a growable []byte, for
// sinks (WAVSink, CAFSink, AVISink) that reserve-and-patch a header in
// place rather than buffering it, matching the shape of mux/orchestrator.go's
// own memBuffer (which assembles the SeekHead in memory).
type bufferWriteSeeker struct {
	b   []byte
	pos int64
}

func (m *bufferWriteSeeker) Write(p []byte) (int, error) {
	end := m.pos + int64(len(p))
	if end > int64(len(m.b)) {
		grown := make([]byte, end)
		copy(grown, m.b)
		m.b = grown
	}
	copy(m.b[m.pos:end], p)
	m.pos = end
	return len(p), nil
}

func (m *bufferWriteSeeker) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case 0:
		m.pos = offset
	case 1:
		m.pos += offset
	case 2:
		m.pos = int64(len(m.b)) + offset
	}
	return m.pos, nil
}
