package extract

import (
	"io"

	"github.com/nmaier/mkvengine/packet"
)

// RawSink emits packet payloads verbatim, the inverse of reader.RawSource.
// In FullRaw mode it additionally prepends the track's CodecPrivate once
// at the start, and re-emits CodecState bytes inline whenever a packet
// carries a mid-stream codec-state change, matching original_source's
// xtr_*.cpp "fullraw" output mode.
type RawSink struct {
	w             io.Writer
	codecPrivate  []byte
	fullRaw       bool
	wroteCPD      bool
}

// NewRawSink constructs a sink writing raw elementary-stream bytes to w.
// codecPrivate is the track's CodecPrivate, written once up front only
// when fullRaw is true.
func NewRawSink(w io.Writer, codecPrivate []byte, fullRaw bool) *RawSink {
	return &RawSink{w: w, codecPrivate: codecPrivate, fullRaw: fullRaw}
}

// WritePacket implements Sink.
func (s *RawSink) WritePacket(pkt *packet.Packet) error {
	if s.fullRaw && !s.wroteCPD {
		if len(s.codecPrivate) > 0 {
			if _, err := s.w.Write(s.codecPrivate); err != nil {
				return err
			}
		}
		s.wroteCPD = true
	}
	if s.fullRaw && len(pkt.CodecState) > 0 {
		if _, err := s.w.Write(pkt.CodecState); err != nil {
			return err
		}
	}
	for _, frame := range pkt.Data {
		if _, err := s.w.Write(frame); err != nil {
			return err
		}
	}
	return nil
}

// Close implements Sink; raw output needs no finalization.
func (s *RawSink) Close() error { return nil }
