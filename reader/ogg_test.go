package reader

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nmaier/mkvengine/packet"
)

// buildOggPage encodes one Ogg page (RFC 3533 §6) carrying packets, each
// packet's bytes split into as many 255-byte segments as needed plus a
// final terminating segment (possibly zero-length, for a packet whose
// length is an exact multiple of 255).
func buildOggPage(t *testing.T, headerType byte, granule int64, serial, sequence uint32, packets [][]byte) []byte {
	t.Helper()
	var segTable []byte
	var payload bytes.Buffer
	for _, p := range packets {
		n := len(p)
		for n >= 255 {
			segTable = append(segTable, 255)
			n -= 255
		}
		segTable = append(segTable, byte(n))
		payload.Write(p)
	}

	var buf bytes.Buffer
	buf.WriteString("OggS")
	buf.WriteByte(0) // version
	buf.WriteByte(headerType)
	var granuleBuf [8]byte
	binary.LittleEndian.PutUint64(granuleBuf[:], uint64(granule))
	buf.Write(granuleBuf[:])
	var u32 [4]byte
	binary.LittleEndian.PutUint32(u32[:], serial)
	buf.Write(u32[:])
	binary.LittleEndian.PutUint32(u32[:], sequence)
	buf.Write(u32[:])
	binary.LittleEndian.PutUint32(u32[:], 0) // checksum, unchecked by readOggPage
	buf.Write(u32[:])
	buf.WriteByte(byte(len(segTable)))
	buf.Write(segTable)
	buf.Write(payload.Bytes())
	return buf.Bytes()
}

func TestOggSourceDrainsAllPacketsFromOnePage(t *testing.T) {
	// A single page holding three distinct packets, as Vorbis groups its
	// identification/comment/setup headers onto one page.
	page := buildOggPage(t, 0x02, 0, 1, 0, [][]byte{
		[]byte("identification-header"),
		[]byte("comment-header"),
		[]byte("setup-header"),
	})

	src := OpenOgg(bytes.NewReader(page), &packet.Track{}, 0)

	f1, err := src.ReadFrame(0)
	require.NoError(t, err)
	require.Equal(t, "identification-header", string(f1.Data))

	f2, err := src.ReadFrame(0)
	require.NoError(t, err)
	require.Equal(t, "comment-header", string(f2.Data))

	f3, err := src.ReadFrame(0)
	require.NoError(t, err)
	require.Equal(t, "setup-header", string(f3.Data))

	_, err = src.ReadFrame(0)
	require.ErrorIs(t, err, io.EOF)
}

func TestOggSourceDrainsMultiplePagesAndReportsEOS(t *testing.T) {
	page1 := buildOggPage(t, 0x02, 0, 1, 0, [][]byte{[]byte("header-a"), []byte("header-b")})
	page2 := buildOggPage(t, 0x04, 4096, 1, 1, [][]byte{[]byte("audio-packet")})

	var stream bytes.Buffer
	stream.Write(page1)
	stream.Write(page2)

	src := OpenOgg(&stream, &packet.Track{}, 44100)

	got := make([]string, 0, 3)
	for {
		f, err := src.ReadFrame(0)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		got = append(got, string(f.Data))
	}
	require.Equal(t, []string{"header-a", "header-b", "audio-packet"}, got)
}

func TestOggSourceReassemblesPacketSpanningSegmentBoundary(t *testing.T) {
	big := bytes.Repeat([]byte("x"), 300) // spans two segments within the table
	page := buildOggPage(t, 0x00, 0, 1, 0, [][]byte{big, []byte("next")})

	src := OpenOgg(bytes.NewReader(page), &packet.Track{}, 0)

	f1, err := src.ReadFrame(0)
	require.NoError(t, err)
	require.Len(t, f1.Data, 300)

	f2, err := src.ReadFrame(0)
	require.NoError(t, err)
	require.Equal(t, "next", string(f2.Data))
}
