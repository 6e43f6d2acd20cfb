package extract

import (
	"fmt"
	"io"
	"time"

	"github.com/nmaier/mkvengine/packet"
)

// SRTSink writes SubRip (.srt) subtitle files: sequentially numbered
// entries of "HH:MM:SS,mmm --> HH:MM:SS,mmm" followed by the text and a
// blank line, matching original_source's xtr_srt.cpp (textsubs.cpp's
// inverse).
type SRTSink struct {
	w     io.Writer
	index int
}

// NewSRTSink constructs a sink writing SRT entries to w.
func NewSRTSink(w io.Writer) *SRTSink {
	return &SRTSink{w: w}
}

// WritePacket implements Sink.
func (s *SRTSink) WritePacket(pkt *packet.Packet) error {
	s.index++
	start := formatSRTTimecode(pkt.Timecode)
	end := formatSRTTimecode(pkt.Timecode + pkt.Duration)
	text := packetText(pkt)
	_, err := fmt.Fprintf(s.w, "%d\n%s --> %s\n%s\n\n", s.index, start, end, text)
	return err
}

// Close implements Sink; SRT has no trailing footer to finalize.
func (s *SRTSink) Close() error { return nil }

func packetText(pkt *packet.Packet) string {
	if len(pkt.Data) == 0 {
		return ""
	}
	return string(pkt.Data[0])
}

func formatSRTTimecode(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	ms := d.Milliseconds()
	hours := ms / 3_600_000
	ms %= 3_600_000
	minutes := ms / 60_000
	ms %= 60_000
	seconds := ms / 1_000
	millis := ms % 1_000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, seconds, millis)
}
