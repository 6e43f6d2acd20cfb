// Package cluster implements cluster_helper: it buffers packets destined
// for the current Matroska Cluster, decides when a cluster must close
// (timecode span or byte-size budget exceeded), resolves bref/fref
// reference timecodes into ReferenceBlock elements, and frees clusters
// once nothing still references them.
//
// Grounded on luispater-matroska-go/parser.go's cluster/timecode
// bookkeeping (parseClusterInfo, the Timecode-relative-to-cluster block
// math in parseSimpleBlock), generalized from read-only parsing to the
// write-side open/fill/close/free lifecycle spec.md §4.5 describes. No
// pack library implements Matroska cluster scheduling — this is the
// engine's own core logic, written in the teacher's small-cooperating-
// structs idiom.
package cluster

import (
	"sort"
	"time"

	"github.com/nmaier/mkvengine/internal/mkverr"
	"github.com/nmaier/mkvengine/packet"
)

// Default bounds for an open cluster. maxClusterTimecode matches spec.md
// §3.1/§4.5's 32767ms signed-16-bit block-timecode limit (a Block's
// timecode is a signed i16 relative to its Cluster's Timecode, so no block
// in a cluster may drift more than ±32767ms from the cluster's own
// timecode). maxClusterSize is resolved per DESIGN.md's Open Question
// entry to 20MB: spec.md §3.1 states the Cluster data-model invariant as
// 20MB, and that invariant governs the in-memory structure; the CLI
// contract table's 5MB appears there only as an example --cluster-length
// option value, not as the compiled-in default.
const (
	maxClusterTimecode = 32767 * time.Millisecond
	maxClusterSize     = 20 * 1024 * 1024
)

// content is one packet buffered for the current cluster, annotated with
// whether it has been rendered (written out) yet and whether any other
// buffered packet still references it.
type content struct {
	pkt          *packet.Packet
	rendered     bool
	isReferenced bool
}

// Helper accumulates packets into clusters, exactly mirroring spec.md
// §4.5's ch_contents record and open/close cycle.
type Helper struct {
	maxTimecode time.Duration
	maxSize     int

	open      bool
	clusterTC time.Duration
	size      int
	contents  []*content

	// freeRefs is, per track, the highest timecode whose backward
	// reference never needs to be kept again: spec.md §4.5/§4.6's
	// free_refs watermark, advanced to a packet's own timecode whenever
	// that packet is emitted as a key frame (bref == 0). Callers use it
	// to prune bookkeeping for timecodes below the watermark once they
	// can no longer be a referent.
	freeRefs map[uint64]time.Duration
}

// New constructs a Helper with spec.md's default bounds.
func New() *Helper {
	return &Helper{maxTimecode: maxClusterTimecode, maxSize: maxClusterSize}
}

// WithBounds overrides the default timecode/size bounds (exposed for CLI
// --cluster-length style overrides spec.md documents as consumed-not-
// implemented at this layer, but configurable by embedders of the core).
func (h *Helper) WithBounds(maxTimecode time.Duration, maxSize int) *Helper {
	h.maxTimecode = maxTimecode
	h.maxSize = maxSize
	return h
}

// Add buffers pkt into the current cluster, opening one if none is open.
// It returns true if the caller must close the current cluster (via
// Render+Close) before this packet can be added, because adding it would
// violate the timecode span or size budget.
func (h *Helper) Add(pkt *packet.Packet) (mustCloseFirst bool) {
	if !h.open {
		h.open = true
		h.clusterTC = pkt.Timecode
		h.size = 0
		h.contents = nil
	}
	delta := pkt.Timecode - h.clusterTC
	if delta > h.maxTimecode || delta < -h.maxTimecode {
		return true
	}
	if h.size+pkt.Size() > h.maxSize && len(h.contents) > 0 {
		return true
	}
	h.contents = append(h.contents, &content{pkt: pkt})
	h.size += pkt.Size()
	h.markReferenced(pkt)
	return false
}

// markReferenced flags every buffered packet that pkt's bref/fref point
// at, via a linear scan matching spec.md §4.5's reference-resolution
// algorithm (packet counts in a cluster are small enough that this is not
// a hot path).
func (h *Helper) markReferenced(pkt *packet.Packet) {
	if !pkt.ReferencesValid {
		return
	}
	targets := append(append([]time.Duration{}, pkt.BRef...), pkt.FRef...)
	for _, t := range targets {
		for _, c := range h.contents {
			if c.pkt.Track == pkt.Track && c.pkt.Timecode == t {
				c.isReferenced = true
			}
		}
	}
}

// ResolveReferences computes, for each buffered packet with
// ReferencesValid set, the relative (to its own timecode) reference
// offsets to emit as ReferenceBlock elements. Packets whose bref/fref
// target a timecode not present in this cluster's buffer are reported via
// unresolved, since their target may have already been rendered and freed
// (resolved against the caller-supplied renderedTimecodes instead).
func (h *Helper) ResolveReferences(renderedTimecodes map[uint64]map[time.Duration]bool) (refs map[*packet.Packet][]time.Duration, unresolved []*packet.Packet) {
	refs = make(map[*packet.Packet][]time.Duration)
	for _, c := range h.contents {
		pkt := c.pkt
		if !pkt.ReferencesValid {
			// A key frame: nothing before it will ever need to
			// reference further back than this, so free_ref(p.timecode,
			// p.source) advances the track's watermark.
			h.setFreeRef(pkt.Track, pkt.Timecode)
			continue
		}
		var rel []time.Duration
		ok := true
		for _, t := range pkt.BRef {
			if !referenceExists(h, renderedTimecodes, pkt.Track, t) {
				ok = false
				break
			}
			rel = append(rel, t-pkt.Timecode)
		}
		if ok {
			for _, t := range pkt.FRef {
				if !referenceExists(h, renderedTimecodes, pkt.Track, t) {
					ok = false
					break
				}
				rel = append(rel, t-pkt.Timecode)
			}
		}
		if !ok {
			unresolved = append(unresolved, pkt)
			continue
		}
		refs[pkt] = rel
	}
	return refs, unresolved
}

// setFreeRef advances track's free_refs watermark to tc, never moving it
// backward (clusters are rendered in timecode order, but guard against it
// regardless).
func (h *Helper) setFreeRef(track uint64, tc time.Duration) {
	if h.freeRefs == nil {
		h.freeRefs = make(map[uint64]time.Duration)
	}
	if tc > h.freeRefs[track] {
		h.freeRefs[track] = tc
	}
}

// FreeRefsWatermark returns track's current free_refs watermark: the
// highest timecode whose backward reference need never be kept again.
func (h *Helper) FreeRefsWatermark(track uint64) time.Duration {
	return h.freeRefs[track]
}

// PruneReferenced drops entries from rendered (the mux_orchestrator's
// already-rendered-timecode bookkeeping, this implementation's stand-in
// for spec.md §4.6's held-cluster list) whose timecode falls below that
// track's free_refs watermark, per the release protocol's step 1
// ("mark every packet whose timecode < source.free_refs as superseded").
// The watermark timecode itself is kept, since a later B-frame may still
// reference the key frame that set it.
func (h *Helper) PruneReferenced(rendered map[uint64]map[time.Duration]bool) {
	for track, watermark := range h.freeRefs {
		byTrack, ok := rendered[track]
		if !ok {
			continue
		}
		for tc := range byTrack {
			if tc < watermark {
				delete(byTrack, tc)
			}
		}
	}
}

func referenceExists(h *Helper, rendered map[uint64]map[time.Duration]bool, track uint64, tc time.Duration) bool {
	for _, c := range h.contents {
		if c.pkt.Track == track && c.pkt.Timecode == tc {
			return true
		}
	}
	if byTrack, ok := rendered[track]; ok {
		return byTrack[tc]
	}
	return false
}

// ClusterTimecode returns the currently open cluster's base timecode.
func (h *Helper) ClusterTimecode() time.Duration { return h.clusterTC }

// Packets returns the buffered packets for the currently open cluster, in
// timecode-then-track order (ties on timecode broken by track number),
// ready for the mux_orchestrator to render.
func (h *Helper) Packets() []*packet.Packet {
	sorted := make([]*content, len(h.contents))
	copy(sorted, h.contents)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].pkt.Timecode != sorted[j].pkt.Timecode {
			return sorted[i].pkt.Timecode < sorted[j].pkt.Timecode
		}
		return sorted[i].pkt.Track < sorted[j].pkt.Track
	})
	out := make([]*packet.Packet, len(sorted))
	for i, c := range sorted {
		out[i] = c.pkt
	}
	return out
}

// MarkRendered records that every currently buffered packet has been
// written out, so FreeClusters can release them.
func (h *Helper) MarkRendered() {
	for _, c := range h.contents {
		c.rendered = true
	}
}

// Close ends the current cluster, returning its final packet count and
// size for SeekHead/Cues bookkeeping, and readies the Helper for the next
// Add call to open a new cluster.
func (h *Helper) Close() (packetCount int, size int) {
	packetCount, size = len(h.contents), h.size
	h.open = false
	return
}

// FreeClusters drops buffered content that has been rendered and is no
// longer referenced by anything still pending, per spec.md §4.5's
// free_clusters protocol. It must be called after MarkRendered+Close once
// a subsequent cluster's references have also been resolved, to avoid
// releasing a packet another cluster's B-frame still points at.
func (h *Helper) FreeClusters() {
	kept := h.contents[:0]
	for _, c := range h.contents {
		if c.rendered && !c.isReferenced {
			continue
		}
		kept = append(kept, c)
	}
	h.contents = kept
}

// ValidateBlockTimecode reports an InternalInvariant error if a candidate
// per-block relative timecode would overflow the signed 16-bit Block
// timecode field, matching spec.md §8's quantified invariant.
func ValidateBlockTimecode(clusterTC, blockTC time.Duration) error {
	rel := blockTC - clusterTC
	ms := rel.Milliseconds()
	if ms < -32768 || ms > 32767 {
		return mkverr.New(mkverr.InternalInvariant, "block timecode %dms out of signed-16-bit range relative to cluster %s", ms, clusterTC)
	}
	return nil
}
