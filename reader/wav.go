package reader

import (
	"encoding/binary"
	"io"

	"github.com/nmaier/mkvengine/internal/mkverr"
	"github.com/nmaier/mkvengine/packet"
	"github.com/nmaier/mkvengine/packetizer"
)

// WAVSource reads a RIFF/WAVE PCM file as a single audio track, chunking
// samples into fixed-duration frames (20ms, matching mkvmerge's default
// WAV packetizer chunk size per original_source's common WAV handling).
type WAVSource struct {
	r         io.Reader
	track     *packet.Track
	frameSize int
	frameDur  int64
	timecode  int64
}

const wavFrameDurationNS = 20_000_000 // 20ms

// OpenWAV parses a RIFF/WAVE header from r and returns a Source over its
// PCM data, positioned at the start of the "data" chunk.
func OpenWAV(r io.Reader) (*WAVSource, error) {
	var riffHdr [12]byte
	if _, err := io.ReadFull(r, riffHdr[:]); err != nil {
		return nil, mkverr.Wrap(mkverr.IoError, err, "reading RIFF header")
	}
	if string(riffHdr[0:4]) != "RIFF" || string(riffHdr[8:12]) != "WAVE" {
		return nil, mkverr.New(mkverr.InvalidFormat, "not a RIFF/WAVE file")
	}

	var channels, bitsPerSample uint16
	var sampleRate uint32
	var blockAlign uint16
	for {
		var chunkHdr [8]byte
		if _, err := io.ReadFull(r, chunkHdr[:]); err != nil {
			return nil, mkverr.Wrap(mkverr.InvalidFormat, err, "WAVE file has no data chunk")
		}
		id := string(chunkHdr[0:4])
		size := binary.LittleEndian.Uint32(chunkHdr[4:8])
		if id == "fmt " {
			fmtBody := make([]byte, size)
			if _, err := io.ReadFull(r, fmtBody); err != nil {
				return nil, mkverr.Wrap(mkverr.IoError, err, "reading fmt chunk")
			}
			channels = binary.LittleEndian.Uint16(fmtBody[2:4])
			sampleRate = binary.LittleEndian.Uint32(fmtBody[4:8])
			blockAlign = binary.LittleEndian.Uint16(fmtBody[12:14])
			bitsPerSample = binary.LittleEndian.Uint16(fmtBody[14:16])
			continue
		}
		if id == "data" {
			break
		}
		// Skip any other chunk (LIST, fact, ...), respecting RIFF's
		// even-alignment padding rule.
		skip := int64(size)
		if size%2 == 1 {
			skip++
		}
		if _, err := io.CopyN(io.Discard, r, skip); err != nil {
			return nil, mkverr.Wrap(mkverr.IoError, err, "skipping WAVE chunk %q", id)
		}
	}

	const trackTypeAudio = 2 // matches ebml.TrackTypeAudio; kept as a literal to avoid an ebml import here
	track := &packet.Track{
		Type:    trackTypeAudio,
		CodecID: "A_PCM/INT/LIT",
		Audio: &packet.AudioTrack{
			SamplingFrequency: float64(sampleRate),
			Channels:          uint64(channels),
			BitDepth:          uint64(bitsPerSample),
		},
	}
	frameSize := int(blockAlign) * int(sampleRate) * wavFrameDurationNS / 1_000_000_000
	if frameSize < int(blockAlign) {
		frameSize = int(blockAlign)
	}
	frameSize -= frameSize % int(blockAlign)

	return &WAVSource{r: r, track: track, frameSize: frameSize, frameDur: wavFrameDurationNS}, nil
}

// Tracks implements Source.
func (s *WAVSource) Tracks() []*packet.Track { return []*packet.Track{s.track} }

// ReadFrame implements Source.
func (s *WAVSource) ReadFrame(trackIdx int) (packetizer.Frame, error) {
	if trackIdx != 0 {
		return packetizer.Frame{}, mkverr.New(mkverr.InternalInvariant, "WAV source has only one track")
	}
	buf := make([]byte, s.frameSize)
	n, err := io.ReadFull(s.r, buf)
	if n == 0 && (err == io.EOF || err == io.ErrUnexpectedEOF) {
		return packetizer.Frame{}, io.EOF
	}
	if err == io.ErrUnexpectedEOF {
		buf = buf[:n] // final partial frame
	} else if err != nil {
		return packetizer.Frame{}, err
	}
	f := packetizer.Frame{Data: buf, Timecode: s.timecode, Duration: s.frameDur, Keyframe: true}
	s.timecode += s.frameDur
	return f, nil
}

// Close implements Source.
func (s *WAVSource) Close() error { return nil }
