package packetizer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nmaier/mkvengine/packet"
)

func TestXiphLaceSizesRoundTrip(t *testing.T) {
	sizes := []int{0, 1, 254, 255, 256, 510, 511}
	enc := EncodeXiphLaceSizes(sizes)
	got, consumed := DecodeXiphLaceSizes(enc, len(sizes)+1)
	require.Equal(t, sizes, got)
	require.Equal(t, len(enc), consumed)
}

func TestXiphCodecPrivateRoundTrip(t *testing.T) {
	packets := [][]byte{
		{0xDE, 0xAD, 0xBE, 0xEF},
		[]byte("comment header blob"),
		make([]byte, 300), // exercises the 255-run encoding path
	}
	blob := BuildXiphCodecPrivate(packets)
	got, err := ParseXiphCodecPrivate(blob)
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, packets[0], got[0])
	require.Equal(t, packets[1], got[1])
	require.Equal(t, packets[2], got[2])
}

func TestAACAdtsHeaderLength(t *testing.T) {
	track := &packet.Track{CodecID: "A_AAC/MPEG4/LC"}
	p := NewAACPacketizer(track, 44100, 2)
	pkts, err := p.Process(Frame{Data: []byte{1, 2, 3, 4}})
	require.NoError(t, err)
	require.Len(t, pkts, 1)
	require.Len(t, pkts[0].Data, 1)
	require.Equal(t, 0xFF, int(pkts[0].Data[0][0]))
	require.Equal(t, 4+7, len(pkts[0].Data[0]))
}

func TestParseAVCDecoderConfig(t *testing.T) {
	sps := []byte{0x67, 0x42, 0x00, 0x1e}
	pps := []byte{0x68, 0xce, 0x3c, 0x80}
	data := []byte{1, 0x42, 0x00, 0x1e, 0xFF, 0xE1}
	data = append(data, byte(len(sps)>>8), byte(len(sps)))
	data = append(data, sps...)
	data = append(data, 1)
	data = append(data, byte(len(pps)>>8), byte(len(pps)))
	data = append(data, pps...)

	cfg, err := ParseAVCDecoderConfig(data)
	require.NoError(t, err)
	require.Equal(t, 4, cfg.NALSizeLength)
	require.Len(t, cfg.SPS, 1)
	require.Equal(t, sps, cfg.SPS[0])
	require.Len(t, cfg.PPS, 1)
	require.Equal(t, pps, cfg.PPS[0])
}

func TestSSAPacketizerReadOrderIncrements(t *testing.T) {
	track := &packet.Track{CodecID: "S_TEXT/ASS"}
	p := NewSSAPacketizer(track)
	first, err := p.Process(Frame{Data: []byte("0,Default,,0,0,0,,Hello")})
	require.NoError(t, err)
	second, err := p.Process(Frame{Data: []byte("0,Default,,0,0,0,,World")})
	require.NoError(t, err)
	require.Equal(t, "0,0,Default,,0,0,0,,Hello", string(first[0].Data[0]))
	require.Equal(t, "1,0,Default,,0,0,0,,World", string(second[0].Data[0]))
}

func TestALACNormalizeMagicCookieBare(t *testing.T) {
	cookie := make([]byte, ALACSpecificConfigSize)
	got, err := NormalizeALACMagicCookie(cookie)
	require.NoError(t, err)
	require.Equal(t, cookie, got)
}

func TestALACNormalizeMagicCookieWrapped(t *testing.T) {
	inner := make([]byte, ALACSpecificConfigSize)
	inner[0] = 0x42
	wrapped := append([]byte("alac"), inner...)
	got, err := NormalizeALACMagicCookie(wrapped)
	require.NoError(t, err)
	require.Equal(t, inner, got)
}
