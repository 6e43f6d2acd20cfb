package reader

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func buildTestWAV(t *testing.T, sampleRate uint32, channels, bits uint16, samples []int16) []byte {
	t.Helper()
	var buf bytes.Buffer
	blockAlign := channels * bits / 8
	byteRate := sampleRate * uint32(blockAlign)
	dataBytes := len(samples) * 2

	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+dataBytes))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, channels)
	binary.Write(&buf, binary.LittleEndian, sampleRate)
	binary.Write(&buf, binary.LittleEndian, byteRate)
	binary.Write(&buf, binary.LittleEndian, blockAlign)
	binary.Write(&buf, binary.LittleEndian, bits)

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(dataBytes))
	for _, s := range samples {
		binary.Write(&buf, binary.LittleEndian, s)
	}
	return buf.Bytes()
}

func TestWAVSourceParsesHeaderAndFrames(t *testing.T) {
	samples := make([]int16, 4410) // 0.1s @ 44100 mono-ish sized buffer
	data := buildTestWAV(t, 44100, 1, 16, samples)

	src, err := OpenWAV(bytes.NewReader(data))
	require.NoError(t, err)
	tracks := src.Tracks()
	require.Len(t, tracks, 1)
	require.Equal(t, "A_PCM/INT/LIT", tracks[0].CodecID)
	require.EqualValues(t, 44100, tracks[0].Audio.SamplingFrequency)

	total := 0
	for {
		f, err := src.ReadFrame(0)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		total += len(f.Data)
	}
	require.Equal(t, len(samples)*2, total)
}

func TestVobSubTimecodeParsing(t *testing.T) {
	tc, err := parseVobSubTimecode("00:01:02:345")
	require.NoError(t, err)
	require.Equal(t, int64(62_345_000_000), tc)
}

func TestVobSubExtractDurationFindsStopDisplayCommand(t *testing.T) {
	// A minimal SPU packet: a data area of 4 bytes, followed by one
	// control block (pointing at itself) whose command is STP_DCSQT
	// (0x02) with delay t=90 (i.e. 90 * 1024 / 90 = 1024ms).
	dataSize := 6  // header(4) + 2 dummy data bytes
	ctrlBlk := []byte{
		0, 90, // t = 90 (90kHz units)
		byte(dataSize >> 8), byte(dataSize), // next_ctrlblk points at itself
		0x02, // STP_DCSQT
	}
	packetSize := dataSize + len(ctrlBlk)
	buf := make([]byte, 0, packetSize)
	buf = append(buf, byte(packetSize>>8), byte(packetSize))
	buf = append(buf, byte(dataSize>>8), byte(dataSize))
	buf = append(buf, 0, 0) // 2 dummy data bytes
	buf = append(buf, ctrlBlk...)

	durationNS, ok := vobSubExtractDuration(buf)
	require.True(t, ok)
	require.Equal(t, int64(1024*time.Millisecond), durationNS)
}

func TestVobSubExtractDurationReportsUnknownWhenNoStopCommand(t *testing.T) {
	// A control block whose command (0x00, FSTA_DSP) is never
	// STP_DCSQT, and whose next pointer loops back on itself so the
	// do/while condition terminates the scan.
	dataSize := 6
	ctrlBlk := []byte{
		0, 10,
		byte(dataSize >> 8), byte(dataSize),
		0x00,
	}
	packetSize := dataSize + len(ctrlBlk)
	buf := make([]byte, 0, packetSize)
	buf = append(buf, byte(packetSize>>8), byte(packetSize))
	buf = append(buf, byte(dataSize>>8), byte(dataSize))
	buf = append(buf, 0, 0)
	buf = append(buf, ctrlBlk...)

	_, ok := vobSubExtractDuration(buf)
	require.False(t, ok)
}

func TestAVIFourCCMapping(t *testing.T) {
	require.Equal(t, "V_MPEG4/ISO/AVC", aviFourCCToCodecID("H264"))
	require.Equal(t, "V_MS/VFW/FOURCC", aviFourCCToCodecID("MJPG"))
}
