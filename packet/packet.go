// Package packet defines the in-memory unit of work shared by every other
// component: a single Matroska Block's worth of payload together with the
// timing and reference metadata cluster_helper needs to decide lacing and
// emit ReferenceBlock elements.
//
// The struct shape is grounded on
// other_examples/33f57fc9_luispater-gemini-srt-translator-go__pkg-matroska-packet.go.go's
// Packet{Track uint8; StartTime,EndTime uint64; FilePos uint64; Flags
// uint32; Data []byte} — the only place in the retrieved pack that shows a
// concrete Matroska packet struct body, since luispater-matroska-go itself
// never exposes one. It is generalized here to carry bref/fref reference
// timecodes and multi-frame laced data per spec.md §3.1.
package packet

import "time"

// Flag bits, generalizing the teacher-adjacent KF ("keyframe") flag into
// the full set spec.md §3.1 requires.
const (
	FlagKeyframe    uint32 = 1 << iota // KF: no reference needed to decode
	FlagDiscardable                    // may be dropped without affecting later frames
	FlagInvisible                      // decode but do not display (B-frame lacing artifact)
)

// Packet is one Block's payload plus the bookkeeping cluster_helper needs.
type Packet struct {
	// Track is the Matroska track number (not a zero-based index).
	Track uint64

	// Timecode is the packet's presentation time, relative to the
	// segment's TimecodeScale=1 (i.e. in nanoseconds), matching spec.md's
	// "Packet.timecode: int64 nanoseconds" data model entry.
	Timecode time.Duration

	// Duration is the block's explicit duration, if known (BlockDuration).
	// Zero means "use the track's DefaultDuration, if any."
	Duration time.Duration

	// BRef and FRef are backward/forward reference timecodes for
	// predictive frames (P/B), resolved by cluster_helper into
	// ReferenceBlock elements. ReferencesValid distinguishes "no
	// references" (keyframe) from "references not yet resolved."
	BRef, FRef      []time.Duration
	ReferencesValid bool

	// Flags carries the FlagX bits above.
	Flags uint32

	// CodecState is a codec-private-data snapshot (rare; used when a
	// stream's codec configuration changes mid-track) emitted as a
	// CodecState element alongside this block.
	CodecState []byte

	// Data holds one or more frames: more than one entry means this
	// packet must be laced (Xiph/EBML/fixed-size) into a single Block.
	Data [][]byte

	// BlockAdditions carries extra per-block payloads keyed by
	// BlockAddID (WavPack correction data, VobSub SPU extras, ...).
	BlockAdditions map[uint64][]byte

	// FilePos is the source file offset this packet was read from,
	// preserved for diagnostics; zero for synthesized packets.
	FilePos int64
}

// Keyframe reports whether this packet requires no reference to decode.
func (p *Packet) Keyframe() bool { return p.Flags&FlagKeyframe != 0 }

// Discardable reports whether this packet may be dropped without breaking
// later frames' decodability.
func (p *Packet) Discardable() bool { return p.Flags&FlagDiscardable != 0 }

// Laced reports whether this packet bundles more than one frame.
func (p *Packet) Laced() bool { return len(p.Data) > 1 }

// Size returns the total payload size across all laced frames.
func (p *Packet) Size() int {
	n := 0
	for _, f := range p.Data {
		n += len(f)
	}
	return n
}
