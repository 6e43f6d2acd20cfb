// Package extract implements extract_sink: the per-codec inverse of
// packetizer, turning a Matroska track's packet stream back into an
// appropriate container or elementary-stream file (§4.8).
//
// The Sink interface mirrors packetizer.Packetizer's shape (construct once
// from track metadata, feed packets one at a time, Close to finalize),
// grounded on luispater-matroska-go/parser.go's packet-consuming call
// sites generalized to the write (demux-out) direction, enriched per
// format from original_source/src/extract/xtr_*.cpp where spec.md §4.8 is
// silent on exact framing.
package extract

import "github.com/nmaier/mkvengine/packet"

// Sink consumes a single track's packets, in presentation-timecode order,
// and writes them to an output file in the format appropriate for the
// track's codec.
type Sink interface {
	// WritePacket consumes one packet. Packets arrive already in
	// presentation order (the segment walker/orchestrator is responsible
	// for timecode ordering; a Sink never reorders).
	WritePacket(pkt *packet.Packet) error

	// Close finalizes the output (rewriting any placeholder header
	// fields that depended on the full packet count/size) and releases
	// resources.
	Close() error
}
