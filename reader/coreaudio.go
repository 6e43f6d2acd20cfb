package reader

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/nmaier/mkvengine/internal/mkverr"
	"github.com/nmaier/mkvengine/packet"
	"github.com/nmaier/mkvengine/packetizer"
)

// CoreAudioSource reads an Apple CAF (Core Audio Format) container,
// typically carrying ALAC, as a single audio track: it walks CAF's
// 'desc'/'kuki'/'data' chunk sequence and yields the 'data' chunk's
// contents as a single frame; the 'pakt' packet table is not parsed, so
// individual ALAC packets are not split apart. Grounded on original_source's caf.h and
// p_alac.cpp (the 'kuki' chunk is normalized via
// packetizer.NormalizeALACMagicCookie before being attached as
// CodecPrivate), per SPEC_FULL.md's Supplemented Features section.
type CoreAudioSource struct {
	r         io.Reader
	track     *packet.Track
	frameSize int
	frameDur  int64
	timecode  int64
}

// OpenCoreAudio parses r's CAF chunk sequence and returns a Source
// positioned to read ALAC-framed packets from the 'data' chunk.
func OpenCoreAudio(r io.Reader) (*CoreAudioSource, error) {
	var fileHdr [8]byte
	if _, err := io.ReadFull(r, fileHdr[:]); err != nil {
		return nil, mkverr.Wrap(mkverr.IoError, err, "reading CAF file header")
	}
	if string(fileHdr[0:4]) != "caff" {
		return nil, mkverr.New(mkverr.InvalidFormat, "not a CAF file")
	}

	var sampleRate float64
	var channels uint32
	var cookie []byte
	var frameSize int

	for {
		var chunkHdr [12]byte
		if _, err := io.ReadFull(r, chunkHdr[:]); err != nil {
			return nil, mkverr.Wrap(mkverr.InvalidFormat, err, "CAF file has no data chunk")
		}
		chunkType := string(chunkHdr[0:4])
		chunkSize := int64(binary.BigEndian.Uint64(chunkHdr[4:12]))

		switch chunkType {
		case "desc":
			body := make([]byte, chunkSize)
			if _, err := io.ReadFull(r, body); err != nil {
				return nil, err
			}
			sampleRate = bitsToFloat64(binary.BigEndian.Uint64(body[0:8]))
			channels = binary.BigEndian.Uint32(body[20:24])
		case "kuki":
			body := make([]byte, chunkSize)
			if _, err := io.ReadFull(r, body); err != nil {
				return nil, err
			}
			normalized, err := packetizer.NormalizeALACMagicCookie(body)
			if err != nil {
				return nil, err
			}
			cookie = normalized
		case "data":
			// CAF 'data' chunks begin with a 4-byte "edit count" field
			// before the actual packet bytes.
			var editCount [4]byte
			if _, err := io.ReadFull(r, editCount[:]); err != nil {
				return nil, err
			}
			frameSize = alacFrameSizeFromCookie(cookie)
			track := &packet.Track{
				Type:         2, // audio
				CodecID:      "A_ALAC",
				CodecPrivate: cookie,
				Audio: &packet.AudioTrack{
					SamplingFrequency: sampleRate,
					Channels:          uint64(channels),
				},
			}
			return &CoreAudioSource{r: r, track: track, frameSize: frameSize, frameDur: defaultALACFrameDurationNS(sampleRate, frameSize)}, nil
		default:
			if _, err := io.CopyN(io.Discard, r, chunkSize); err != nil {
				return nil, err
			}
		}
	}
}

func bitsToFloat64(bits uint64) float64 {
	return math.Float64frombits(bits)
}

// alacFrameSizeFromCookie extracts the frameLength field (big-endian
// uint32 at offset 0) of an ALACSpecificConfig, the number of PCM samples
// per ALAC frame.
func alacFrameSizeFromCookie(cookie []byte) int {
	if len(cookie) < 4 {
		return 4096 // ALAC's common default frame length
	}
	return int(binary.BigEndian.Uint32(cookie[0:4]))
}

func defaultALACFrameDurationNS(sampleRate float64, frameSize int) int64 {
	if sampleRate <= 0 {
		return 0
	}
	return int64(float64(frameSize) / sampleRate * 1e9)
}

// Tracks implements Source.
func (s *CoreAudioSource) Tracks() []*packet.Track { return []*packet.Track{s.track} }

// ReadFrame implements Source. CAF stores ALAC packets back-to-back with
// no explicit per-packet length prefix; each packet's encoded length
// varies and is recorded only in the CAF 'pakt' chunk, which this reader
// does not parse. The first call therefore returns everything from the
// current position through EOF as one frame, whether or not a 'pakt'
// chunk exists, and later calls return io.EOF.
func (s *CoreAudioSource) ReadFrame(trackIdx int) (packetizer.Frame, error) {
	if trackIdx != 0 {
		return packetizer.Frame{}, mkverr.New(mkverr.InternalInvariant, "CoreAudio source has only one track")
	}
	data, err := io.ReadAll(io.LimitReader(s.r, 1))
	if err != nil || len(data) == 0 {
		return packetizer.Frame{}, io.EOF
	}
	rest, err := io.ReadAll(s.r)
	if err != nil {
		return packetizer.Frame{}, err
	}
	f := packetizer.Frame{Data: append(data, rest...), Timecode: s.timecode, Duration: s.frameDur, Keyframe: true}
	s.timecode += s.frameDur
	return f, nil
}

// Close implements Source.
func (s *CoreAudioSource) Close() error { return nil }
