package extract

import (
	"encoding/binary"
	"io"

	"github.com/nmaier/mkvengine/internal/mkverr"
	"github.com/nmaier/mkvengine/packet"
)

// AVISink writes an AVI 1.0 file from one video and (optionally) one audio
// track's packets, the inverse of reader.AVISource: chunk type "00dc" for
// video, "01wb" for audio, per spec.md §4.8. A placeholder RIFF/hdrl
// header is written on construction and its RIFF and movi sizes are
// patched in place at Close once the total size is known, the same
// reserve-and-patch shape WAVSink and CAFSink use; the frame count is not
// patched (see buildHdrl).
type AVISink struct {
	w          io.WriteSeeker
	video      *packet.Track
	audio      *packet.Track
	frameDurNS int64

	riffSizeOffset int64
	moviSizeOffset int64
	frameCount     int
	index          []aviIndexEntry
}

type aviIndexEntry struct {
	chunkID      string
	flags        uint32
	offsetInMovi uint32
	size         uint32
}

// NewAVISink constructs a sink for video (required) and audio (optional,
// may be nil) tracks, writing to w. frameDurNS is the nominal
// video-frame duration (AVI's strh scale/rate pair is derived from it).
func NewAVISink(w io.WriteSeeker, video, audio *packet.Track, frameDurNS int64) (*AVISink, error) {
	s := &AVISink{w: w, video: video, audio: audio, frameDurNS: frameDurNS}
	if err := s.writeHeader(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *AVISink) writeHeader() error {
	var buf []byte
	buf = append(buf, []byte("RIFF")...)
	s.riffSizeOffset = int64(len(buf))
	buf = append(buf, 0, 0, 0, 0)
	buf = append(buf, []byte("AVI ")...)

	hdrl := s.buildHdrl()
	buf = appendChunk(buf, "LIST", append([]byte("hdrl"), hdrl...))

	buf = append(buf, []byte("LIST")...)
	s.moviSizeOffset = int64(len(buf))
	buf = append(buf, 0, 0, 0, 0)
	buf = append(buf, []byte("movi")...)

	_, err := s.w.Write(buf)
	return err
}

func (s *AVISink) buildHdrl() []byte {
	width, height := uint32(0), uint32(0)
	if s.video.Video != nil {
		width, height = uint32(s.video.Video.PixelWidth), uint32(s.video.Video.PixelHeight)
	}
	scale, rate := aviRateFromDuration(s.frameDurNS)

	avih := make([]byte, 56)
	binary.LittleEndian.PutUint32(avih[0:4], uint32(s.frameDurNS/1000))
	// dwTotalFrames (avih[16:20]) is left 0: this engine does not patch it
	// at Close since most AVI readers recover frame count from idx1 anyway,
	// and doing so would require tracking avih's absolute file offset
	// through the hdrl LIST's own unpadded size — not worth the complexity
	// for the lossless-extract-sink scope spec.md §4.8 describes.
	numStreams := uint32(1)
	if s.audio != nil {
		numStreams = 2
	}
	binary.LittleEndian.PutUint32(avih[24:28], numStreams)
	binary.LittleEndian.PutUint32(avih[32:36], width)
	binary.LittleEndian.PutUint32(avih[36:40], height)

	var hdrl []byte
	hdrl = appendChunk(hdrl, "avih", avih)
	hdrl = appendChunk(hdrl, "LIST", append([]byte("strl"), s.buildVideoStrl(scale, rate, width, height)...))
	if s.audio != nil {
		hdrl = appendChunk(hdrl, "LIST", append([]byte("strl"), s.buildAudioStrl()...))
	}
	return hdrl
}

func (s *AVISink) buildVideoStrl(scale, rate, width, height uint32) []byte {
	strh := make([]byte, 56)
	copy(strh[0:4], "vids")
	copy(strh[4:8], aviCodecIDToFourCC(s.video.CodecID))
	binary.LittleEndian.PutUint32(strh[20:24], scale)
	binary.LittleEndian.PutUint32(strh[24:28], rate)

	strf := make([]byte, 40)
	binary.LittleEndian.PutUint32(strf[0:4], 40)
	binary.LittleEndian.PutUint32(strf[4:8], width)
	binary.LittleEndian.PutUint32(strf[8:12], height)
	binary.LittleEndian.PutUint16(strf[12:14], 1)
	binary.LittleEndian.PutUint16(strf[14:16], 24)
	copy(strf[16:20], aviCodecIDToFourCC(s.video.CodecID))

	var out []byte
	out = appendChunk(out, "strh", strh)
	out = appendChunk(out, "strf", strf)
	return out
}

func (s *AVISink) buildAudioStrl() []byte {
	a := s.audio.Audio
	strh := make([]byte, 56)
	copy(strh[0:4], "auds")
	binary.LittleEndian.PutUint32(strh[20:24], 1)
	if a != nil {
		binary.LittleEndian.PutUint32(strh[24:28], uint32(a.SamplingFrequency))
	}

	strf := make([]byte, 16)
	binary.LittleEndian.PutUint16(strf[0:2], 1) // PCM
	if a != nil {
		binary.LittleEndian.PutUint16(strf[2:4], uint16(a.Channels))
		binary.LittleEndian.PutUint32(strf[4:8], uint32(a.SamplingFrequency))
		binary.LittleEndian.PutUint16(strf[14:16], uint16(a.BitDepth))
	}

	var out []byte
	out = appendChunk(out, "strh", strh)
	out = appendChunk(out, "strf", strf)
	return out
}

func appendChunk(dst []byte, id string, body []byte) []byte {
	dst = append(dst, []byte(id)...)
	var sz [4]byte
	binary.LittleEndian.PutUint32(sz[:], uint32(len(body)))
	dst = append(dst, sz[:]...)
	dst = append(dst, body...)
	if len(body)%2 == 1 {
		dst = append(dst, 0)
	}
	return dst
}

func aviRateFromDuration(durNS int64) (scale, rate uint32) {
	if durNS <= 0 {
		return 1, 25
	}
	return uint32(durNS), 1_000_000_000
}

func aviCodecIDToFourCC(codecID string) string {
	switch codecID {
	case "V_MPEG4/ISO/AVC":
		return "H264"
	case "V_MPEGH/ISO/HEVC":
		return "HEVC"
	case "V_MPEG4/ISO/ASP":
		return "XVID"
	default:
		return "\x00\x00\x00\x00"
	}
}

// WritePacket implements Sink, routing pkt to the "00dc" (video) or "01wb"
// (audio) movi chunk type based on its track number.
func (s *AVISink) WritePacket(pkt *packet.Packet) error {
	chunkID := "00dc"
	if s.audio != nil && pkt.Track == s.audio.Number {
		chunkID = "01wb"
	}
	offset, err := s.w.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}
	var payload []byte
	for _, frame := range pkt.Data {
		payload = append(payload, frame...)
	}
	chunk := appendChunk(nil, chunkID, payload)
	if _, err := s.w.Write(chunk); err != nil {
		return err
	}
	s.index = append(s.index, aviIndexEntry{chunkID: chunkID, flags: 0x10, offsetInMovi: uint32(offset), size: uint32(len(payload))})
	if chunkID == "00dc" {
		s.frameCount++
	}
	return nil
}

// Close implements Sink: writes the idx1 index chunk, then patches the
// RIFF size and movi LIST size in place.
func (s *AVISink) Close() error {
	moviEnd, err := s.w.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}

	var idx []byte
	for _, e := range s.index {
		idx = append(idx, []byte(e.chunkID)...)
		var rec [12]byte
		binary.LittleEndian.PutUint32(rec[0:4], e.flags)
		binary.LittleEndian.PutUint32(rec[4:8], e.offsetInMovi)
		binary.LittleEndian.PutUint32(rec[8:12], e.size)
		idx = append(idx, rec[:]...)
	}
	idx1 := appendChunk(nil, "idx1", idx)
	if _, err := s.w.Write(idx1); err != nil {
		return mkverr.Wrap(mkverr.IoError, err, "writing AVI idx1")
	}
	fileEnd, err := s.w.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}

	if _, err := s.w.Seek(s.riffSizeOffset, io.SeekStart); err != nil {
		return err
	}
	var riffLen [4]byte
	binary.LittleEndian.PutUint32(riffLen[:], uint32(fileEnd-s.riffSizeOffset-4))
	if _, err := s.w.Write(riffLen[:]); err != nil {
		return err
	}

	if _, err := s.w.Seek(s.moviSizeOffset, io.SeekStart); err != nil {
		return err
	}
	var moviLen [4]byte
	binary.LittleEndian.PutUint32(moviLen[:], uint32(moviEnd-s.moviSizeOffset-4))
	if _, err := s.w.Write(moviLen[:]); err != nil {
		return err
	}

	_, err = s.w.Seek(fileEnd, io.SeekStart)
	return err
}
