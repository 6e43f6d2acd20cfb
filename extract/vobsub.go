package extract

import (
	"fmt"
	"io"
	"time"

	"github.com/nmaier/mkvengine/packet"
)

// VobSubSink writes the MPEG-PES .sub stream plus a companion .idx index
// file, the inverse of reader.VobSubSource: each index line is
// "timestamp: HH:MM:SS:mmm, filepos: %09x" per spec.md §4.8.
type VobSubSink struct {
	sub    io.Writer
	idx    io.Writer
	subPos int64
}

// NewVobSubSink constructs a sink writing the .sub payload to sub and the
// .idx index lines to idx.
func NewVobSubSink(sub, idx io.Writer) *VobSubSink {
	return &VobSubSink{sub: sub, idx: idx}
}

// WritePacket implements Sink.
func (s *VobSubSink) WritePacket(pkt *packet.Packet) error {
	line := fmt.Sprintf("timestamp: %s, filepos: %09x\n", formatVobSubTimecode(pkt.Timecode), s.subPos)
	if _, err := io.WriteString(s.idx, line); err != nil {
		return err
	}
	for _, frame := range pkt.Data {
		n, err := s.sub.Write(frame)
		s.subPos += int64(n)
		if err != nil {
			return err
		}
	}
	return nil
}

// Close implements Sink; both streams are append-only with no footer.
func (s *VobSubSink) Close() error { return nil }

func formatVobSubTimecode(d time.Duration) string {
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
	return fmt.Sprintf("%02d:%02d:%02d:%03d", hours, minutes, seconds, millis)
}
