package extract

import (
	"encoding/binary"
	"io"

	"github.com/nmaier/mkvengine/packet"
)

// WAVSink writes a RIFF/WAVE PCM file: a placeholder header on create,
// then rewinds and overwrites the RIFF and data chunk sizes at Close once
// the total byte count is known, matching spec.md §4.8's Wav writer
// behavior and reader.WAVSource's header layout inverted.
type WAVSink struct {
	w          io.Writer
	channels   uint16
	sampleRate uint32
	bitDepth   uint16
	dataBytes  int64
}

// NewWAVSink constructs a sink for a PCM track with the given format.
func NewWAVSink(w io.Writer, channels uint16, sampleRate uint32, bitDepth uint16) (*WAVSink, error) {
	s := &WAVSink{w: w, channels: channels, sampleRate: sampleRate, bitDepth: bitDepth}
	if err := s.writeHeader(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *WAVSink) writeHeader() error {
	blockAlign := s.channels * (s.bitDepth / 8)
	byteRate := s.sampleRate * uint32(blockAlign)

	var hdr [44]byte
	copy(hdr[0:4], "RIFF")
	binary.LittleEndian.PutUint32(hdr[4:8], 36) // patched at Close
	copy(hdr[8:12], "WAVE")
	copy(hdr[12:16], "fmt ")
	binary.LittleEndian.PutUint32(hdr[16:20], 16)
	binary.LittleEndian.PutUint16(hdr[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(hdr[22:24], s.channels)
	binary.LittleEndian.PutUint32(hdr[24:28], s.sampleRate)
	binary.LittleEndian.PutUint32(hdr[28:32], byteRate)
	binary.LittleEndian.PutUint16(hdr[32:34], blockAlign)
	binary.LittleEndian.PutUint16(hdr[34:36], s.bitDepth)
	copy(hdr[36:40], "data")
	binary.LittleEndian.PutUint32(hdr[40:44], 0) // patched at Close
	_, err := s.w.Write(hdr[:])
	return err
}

// WritePacket implements Sink.
func (s *WAVSink) WritePacket(pkt *packet.Packet) error {
	for _, frame := range pkt.Data {
		if _, err := s.w.Write(frame); err != nil {
			return err
		}
		s.dataBytes += int64(len(frame))
	}
	return nil
}

// Close implements Sink, rewriting riff.len and data.len when w supports
// seeking; a non-seekable w leaves the placeholder lengths (riff.len 36,
// data.len 0), which
// most players tolerate for streamed WAV but is not spec-conformant.
func (s *WAVSink) Close() error {
	ws, ok := s.w.(io.WriteSeeker)
	if !ok {
		return nil
	}
	var riffLen [4]byte
	binary.LittleEndian.PutUint32(riffLen[:], uint32(36+s.dataBytes))
	if _, err := ws.Seek(4, io.SeekStart); err != nil {
		return err
	}
	if _, err := ws.Write(riffLen[:]); err != nil {
		return err
	}
	var dataLen [4]byte
	binary.LittleEndian.PutUint32(dataLen[:], uint32(s.dataBytes))
	if _, err := ws.Seek(40, io.SeekStart); err != nil {
		return err
	}
	if _, err := ws.Write(dataLen[:]); err != nil {
		return err
	}
	_, err := ws.Seek(0, io.SeekEnd)
	return err
}
