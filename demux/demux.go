// Package demux implements the read half of the Matroska container: parsing
// a Segment's EBML structure back into packet.Track/packet.Packet values,
// the inverse of mux.Mux. Grounded on luispater-matroska-go/parser.go's
// MatroskaParser (the only complete Matroska-reading loop in the retrieved
// pack), adapted from that teacher's hand-rolled element decode helpers to
// this engine's own ebml.Reader/Element, and scoped to exactly what
// mkvextract needs: Tracks and every Cluster's Block/SimpleBlock payloads.
// SeekHead, Cues, Chapters, Attachments and Tags are skipped on read, since
// none of them are required to reconstruct a track's packet stream.
package demux

import (
	"io"
	"sort"
	"time"

	"github.com/nmaier/mkvengine/ebml"
	"github.com/nmaier/mkvengine/internal/mkverr"
	"github.com/nmaier/mkvengine/packet"
)

// Segment holds everything mkvextract needs from a parsed Matroska file:
// the track list and every packet decoded from its clusters, already
// sorted into presentation order.
type Segment struct {
	tracks  []*packet.Track
	packets []*packet.Packet
}

// Open parses r, which must be positioned at (or before) the start of an
// EBML stream, into a Segment.
func Open(r io.ReadSeeker) (*Segment, error) {
	rd := ebml.NewReader(r)

	hdr, err := rd.ReadElementHeader()
	if err != nil {
		return nil, mkverr.Wrap(mkverr.IoError, err, "reading EBML header")
	}
	if hdr.ID != ebml.IDEBMLHeader {
		return nil, mkverr.New(mkverr.InvalidFormat, "not an EBML stream (leading element 0x%X)", hdr.ID)
	}
	if err := rd.Seek(hdr.EndOffset()); err != nil {
		return nil, err
	}

	seg, err := rd.ReadElementHeader()
	if err != nil {
		return nil, mkverr.Wrap(mkverr.IoError, err, "reading Segment header")
	}
	if seg.ID != ebml.IDSegment {
		return nil, mkverr.New(mkverr.InvalidFormat, "expected Segment, got element 0x%X", seg.ID)
	}

	s := &Segment{}
	pos := seg.Offset + seg.HeaderSize
	segEnd := seg.EndOffset()
	for seg.UnknownSize || pos < segEnd {
		if err := rd.Seek(pos); err != nil {
			return nil, err
		}
		child, err := rd.ReadElementHeader()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, mkverr.Wrap(mkverr.InvalidFormat, err, "reading Segment child element")
		}
		if child.UnknownSize {
			return nil, mkverr.New(mkverr.Unsupported, "unexpected unknown-size element 0x%X inside Segment", child.ID)
		}

		switch child.ID {
		case ebml.IDTracks:
			full, err := readFullElement(rd, child)
			if err != nil {
				return nil, err
			}
			tracks, err := parseTracks(full)
			if err != nil {
				return nil, err
			}
			s.tracks = tracks
		case ebml.IDCluster:
			full, err := readFullElement(rd, child)
			if err != nil {
				return nil, err
			}
			pkts, err := parseCluster(full)
			if err != nil {
				return nil, err
			}
			s.packets = append(s.packets, pkts...)
		}
		pos = child.EndOffset()
	}

	sort.SliceStable(s.packets, func(i, j int) bool {
		if s.packets[i].Timecode != s.packets[j].Timecode {
			return s.packets[i].Timecode < s.packets[j].Timecode
		}
		return s.packets[i].Track < s.packets[j].Track
	})
	return s, nil
}

// Tracks returns the Segment's track list, in TrackEntry order.
func (s *Segment) Tracks() []*packet.Track { return s.tracks }

// Packets returns every decoded packet across every track, sorted by
// timecode (tie-break: track number).
func (s *Segment) Packets() []*packet.Packet { return s.packets }

// PacketsForTrack filters Packets to a single track number, preserving
// order, the shape mkvextract's per-track Sink loop needs.
func (s *Segment) PacketsForTrack(track uint64) []*packet.Packet {
	var out []*packet.Packet
	for _, p := range s.packets {
		if p.Track == track {
			out = append(out, p)
		}
	}
	return out
}

// readFullElement re-reads el (previously seen via ReadElementHeader) as a
// full header+payload Element, for masters small enough to buffer whole
// (Tracks, Cluster — spec.md §3.1 bounds Cluster to 20MB).
func readFullElement(rd *ebml.Reader, el *ebml.Element) (*ebml.Element, error) {
	if err := rd.Seek(el.Offset); err != nil {
		return nil, err
	}
	return rd.ReadElement()
}

// nsPerBlockUnit is the block-timecode unit that mux/block.go's
// writeBlockPayload and mux/orchestrator.go's renderCluster (Cluster
// Timecode) hardcode (milliseconds), independent of Config.TimecodeScale.
const nsPerBlockUnit = time.Millisecond
