package reader

import (
	"encoding/binary"
	"io"

	"github.com/nmaier/mkvengine/internal/mkverr"
	"github.com/nmaier/mkvengine/packet"
	"github.com/nmaier/mkvengine/packetizer"
)

// AVISource reads a RIFF AVI container's 'movi' chunk list as a set of
// interleaved video/audio tracks, keyed by the two-character stream number
// prefix AVI uses on its '00dc'/'01wb'-style chunk IDs. Grounded on
// other_examples' RIFF/AVI format reference material and
// original_source's r_avi.h (this engine limits itself to the single-
// video-stream-plus-optional-single-audio-stream case AVI overwhelmingly
// carries, per spec.md's Non-goals around exotic multi-stream containers).
type AVISource struct {
	r      io.Reader
	tracks []*packet.Track
	// streamTimecodes tracks each stream's running presentation time,
	// advanced by its nominal frame duration on every chunk read.
	streamTimecodes []int64
	streamFrameDur  []int64
}

// aviStreamHeader captures the subset of a 'strh' chunk this reader needs.
type aviStreamHeader struct {
	fccType       string
	fccHandler    string
	scale, rate   uint32
	sampleRate    uint32
	channels      uint16
	bitsPerSample uint16
}

// OpenAVI walks r's RIFF/AVI chunk tree ('hdrl' > 'strl'* each containing
// 'strh'+'strf') to discover tracks, then positions the reader at the
// start of the 'movi' list for ReadFrame to consume sequentially.
func OpenAVI(r io.Reader) (*AVISource, error) {
	var riffHdr [12]byte
	if _, err := io.ReadFull(r, riffHdr[:]); err != nil {
		return nil, mkverr.Wrap(mkverr.IoError, err, "reading RIFF header")
	}
	if string(riffHdr[0:4]) != "RIFF" || string(riffHdr[8:12]) != "AVI " {
		return nil, mkverr.New(mkverr.InvalidFormat, "not a RIFF/AVI file")
	}

	src := &AVISource{r: r}
	var headers []aviStreamHeader

	for {
		var chunkHdr [8]byte
		if _, err := io.ReadFull(r, chunkHdr[:]); err != nil {
			return nil, mkverr.Wrap(mkverr.InvalidFormat, err, "AVI file has no movi list")
		}
		id := string(chunkHdr[0:4])
		size := binary.LittleEndian.Uint32(chunkHdr[4:8])

		if id == "LIST" {
			var listType [4]byte
			if _, err := io.ReadFull(r, listType[:]); err != nil {
				return nil, err
			}
			switch string(listType[:]) {
			case "hdrl":
				hdrs, err := parseAVIHdrl(r, int64(size)-4)
				if err != nil {
					return nil, err
				}
				headers = hdrs
			case "movi":
				// Position is now at the first interleaved chunk; stop
				// scanning and let ReadFrame consume sequentially.
				src.tracks, src.streamFrameDur = buildAVITracks(headers)
				src.streamTimecodes = make([]int64, len(src.tracks))
				return src, nil
			default:
				if _, err := io.CopyN(io.Discard, r, int64(size)-4); err != nil {
					return nil, err
				}
			}
			if size%2 == 1 {
				io.CopyN(io.Discard, r, 1)
			}
			continue
		}
		skip := int64(size)
		if size%2 == 1 {
			skip++
		}
		if _, err := io.CopyN(io.Discard, r, skip); err != nil {
			return nil, err
		}
	}
}

func parseAVIHdrl(r io.Reader, remaining int64) ([]aviStreamHeader, error) {
	var headers []aviStreamHeader
	for remaining > 0 {
		var chunkHdr [8]byte
		if _, err := io.ReadFull(r, chunkHdr[:]); err != nil {
			return nil, err
		}
		remaining -= 8
		id := string(chunkHdr[0:4])
		size := int64(binary.LittleEndian.Uint32(chunkHdr[4:8]))

		if id == "LIST" {
			var listType [4]byte
			io.ReadFull(r, listType[:])
			remaining -= 4
			if string(listType[:]) == "strl" {
				h, consumed, err := parseAVIStrl(r, size-4)
				if err != nil {
					return nil, err
				}
				headers = append(headers, h)
				remaining -= consumed
				continue
			}
			if _, err := io.CopyN(io.Discard, r, size-4); err != nil {
				return nil, err
			}
			remaining -= size - 4
			continue
		}
		padded := size
		if size%2 == 1 {
			padded++
		}
		if _, err := io.CopyN(io.Discard, r, padded); err != nil {
			return nil, err
		}
		remaining -= padded
	}
	return headers, nil
}

func parseAVIStrl(r io.Reader, size int64) (aviStreamHeader, int64, error) {
	var h aviStreamHeader
	var consumed int64
	for consumed < size {
		var chunkHdr [8]byte
		if _, err := io.ReadFull(r, chunkHdr[:]); err != nil {
			return h, consumed, err
		}
		consumed += 8
		id := string(chunkHdr[0:4])
		chunkSize := int64(binary.LittleEndian.Uint32(chunkHdr[4:8]))
		padded := chunkSize
		if chunkSize%2 == 1 {
			padded++
		}
		body := make([]byte, chunkSize)
		if _, err := io.ReadFull(r, body); err != nil {
			return h, consumed, err
		}
		if padded > chunkSize {
			io.CopyN(io.Discard, r, 1)
		}
		consumed += padded

		switch id {
		case "strh":
			if len(body) >= 40 {
				h.fccType = string(body[0:4])
				h.fccHandler = string(body[4:8])
				h.scale = binary.LittleEndian.Uint32(body[20:24])
				h.rate = binary.LittleEndian.Uint32(body[24:28])
			}
		case "strf":
			if h.fccType == "auds" && len(body) >= 16 {
				h.channels = binary.LittleEndian.Uint16(body[2:4])
				h.sampleRate = binary.LittleEndian.Uint32(body[4:8])
				h.bitsPerSample = binary.LittleEndian.Uint16(body[14:16])
			}
		}
	}
	return h, consumed, nil
}

func buildAVITracks(headers []aviStreamHeader) ([]*packet.Track, []int64) {
	tracks := make([]*packet.Track, 0, len(headers))
	frameDur := make([]int64, 0, len(headers))
	for i, h := range headers {
		switch h.fccType {
		case "vids":
			dur := int64(0)
			if h.rate > 0 {
				dur = int64(float64(h.scale) / float64(h.rate) * 1e9)
			}
			tracks = append(tracks, &packet.Track{
				Number:  uint64(i + 1),
				Type:    1, // video
				CodecID: aviFourCCToCodecID(h.fccHandler),
				Video:   &packet.VideoTrack{},
			})
			frameDur = append(frameDur, dur)
		case "auds":
			tracks = append(tracks, &packet.Track{
				Number:  uint64(i + 1),
				Type:    2, // audio
				CodecID: "A_PCM/INT/LIT",
				Audio: &packet.AudioTrack{
					SamplingFrequency: float64(h.sampleRate),
					Channels:          uint64(h.channels),
					BitDepth:          uint64(h.bitsPerSample),
				},
			})
			frameDur = append(frameDur, 0)
		}
	}
	return tracks, frameDur
}

// aviFourCCToCodecID maps a handful of common AVI video FourCCs to their
// Matroska CodecID, matching original_source's tracks.cpp translation
// table for the subset this engine targets (H.264/HEVC via AVCC/HVCC
// CodecPrivate are handled at the packetizer layer, not here).
func aviFourCCToCodecID(fourCC string) string {
	switch fourCC {
	case "H264", "h264", "X264", "x264":
		return "V_MPEG4/ISO/AVC"
	case "HEVC", "hev1", "hvc1":
		return "V_MPEGH/ISO/HEVC"
	case "XVID", "DIVX", "DX50", "FMP4":
		return "V_MPEG4/ISO/ASP"
	default:
		return "V_MS/VFW/FOURCC"
	}
}

// Tracks implements Source.
func (s *AVISource) Tracks() []*packet.Track { return s.tracks }

// ReadFrame implements Source, reading the next 'movi' chunk belonging to
// the given track index's AVI stream number.
func (s *AVISource) ReadFrame(trackIdx int) (packetizer.Frame, error) {
	for {
		var chunkHdr [8]byte
		if _, err := io.ReadFull(s.r, chunkHdr[:]); err != nil {
			return packetizer.Frame{}, io.EOF
		}
		id := string(chunkHdr[0:4])
		size := binary.LittleEndian.Uint32(chunkHdr[4:8])
		streamNum := aviStreamNumberFromChunkID(id)

		body := make([]byte, size)
		if _, err := io.ReadFull(s.r, body); err != nil {
			return packetizer.Frame{}, err
		}
		if size%2 == 1 {
			io.CopyN(io.Discard, s.r, 1)
		}
		if streamNum != trackIdx {
			continue
		}
		tc := s.streamTimecodes[trackIdx]
		s.streamTimecodes[trackIdx] += s.streamFrameDur[trackIdx]
		return packetizer.Frame{Data: body, Timecode: tc, Duration: s.streamFrameDur[trackIdx], Keyframe: true}, nil
	}
}

func aviStreamNumberFromChunkID(id string) int {
	if len(id) != 4 {
		return -1
	}
	n := 0
	for _, c := range id[0:2] {
		if c < '0' || c > '9' {
			return -1
		}
		n = n*10 + int(c-'0')
	}
	return n
}

// Close implements Source.
func (s *AVISource) Close() error { return nil }
