package extract

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/nmaier/mkvengine/internal/mkverr"
	"github.com/nmaier/mkvengine/packet"
)

// ssaEvent is one buffered SSA/ASS Dialogue line keyed by its ReadOrder
// field, the presentation-independent authoring order packetizer.SSAPacketizer
// stamps onto every packet on the way in.
type ssaEvent struct {
	readOrder int
	start     time.Duration
	end       time.Duration
	rest      string // "Layer,Style,Name,...,Text" tail, ReadOrder already stripped
}

// SSASink buffers every Events line in memory, keyed by ReadOrder, and
// writes them out in ReadOrder at Close — mirroring spec.md Scenario F and
// original_source's xtr_textsubs.cpp, which does the same ReadOrder
// restoration because Matroska packets may arrive reordered by timecode
// relative to the script's authoring order.
type SSASink struct {
	w      io.Writer
	header string
	events []ssaEvent
}

// NewSSASink constructs a sink that prepends header (typically the
// "[Script Info]"..."[Events]\nFormat: ..." preamble recovered from the
// track's CodecPrivate) before the sorted Dialogue lines.
func NewSSASink(w io.Writer, header string) *SSASink {
	return &SSASink{w: w, header: header}
}

// WritePacket implements Sink. pkt.Data[0] is expected to be the
// "ReadOrder,Layer,Style,..." line SSAPacketizer produces.
func (s *SSASink) WritePacket(pkt *packet.Packet) error {
	if len(pkt.Data) == 0 {
		return mkverr.New(mkverr.InvalidFormat, "empty SSA/ASS packet")
	}
	line := string(pkt.Data[0])
	parts := strings.SplitN(line, ",", 2)
	if len(parts) != 2 {
		return mkverr.New(mkverr.InvalidFormat, "malformed SSA/ASS event line %q", line)
	}
	ro, err := strconv.Atoi(parts[0])
	if err != nil {
		return mkverr.Wrap(mkverr.InvalidFormat, err, "malformed ReadOrder in %q", line)
	}
	s.events = append(s.events, ssaEvent{readOrder: ro, start: pkt.Timecode, end: pkt.Timecode + pkt.Duration, rest: parts[1]})
	return nil
}

// Close implements Sink: stable-sorts by ReadOrder and writes the
// [Events] section, prepending the header recovered from CodecPrivate.
func (s *SSASink) Close() error {
	sort.SliceStable(s.events, func(i, j int) bool { return s.events[i].readOrder < s.events[j].readOrder })
	bw := bufio.NewWriter(s.w)
	if s.header != "" {
		if _, err := bw.WriteString(s.header); err != nil {
			return err
		}
		if !strings.HasSuffix(s.header, "\n") {
			if _, err := bw.WriteString("\n"); err != nil {
				return err
			}
		}
	}
	for _, e := range s.events {
		line := fmt.Sprintf("Dialogue: %s,%s,%s\n", formatASSTimecode(e.start), formatASSTimecode(e.end), e.rest)
		if _, err := bw.WriteString(line); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func formatASSTimecode(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	cs := d.Milliseconds() / 10 // ASS timestamps are centisecond-precision
	hours := cs / 360000
	cs %= 360000
	minutes := cs / 6000
	cs %= 6000
	seconds := cs / 100
	centis := cs % 100
	return fmt.Sprintf("%d:%02d:%02d.%02d", hours, minutes, seconds, centis)
}
