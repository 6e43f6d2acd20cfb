package mux

import (
	"io"
	"sort"
	"time"

	"github.com/nmaier/mkvengine/cluster"
	"github.com/nmaier/mkvengine/ebml"
	"github.com/nmaier/mkvengine/internal/mkverr"
	"github.com/nmaier/mkvengine/internal/mkvlog"
	"github.com/nmaier/mkvengine/packet"
	"github.com/nmaier/mkvengine/packetizer"
	"github.com/nmaier/mkvengine/reader"
)

// TrackInput pairs a reader's source track with the packetizer that turns
// its raw frames into Matroska packets, the unit mux_orchestrator schedules
// across per spec.md §4.7.
type TrackInput struct {
	Source      reader.Source
	SourceTrack int
	Packetizer  packetizer.Packetizer
}

// trackState is the orchestrator's per-input bookkeeping: a FIFO queue of
// packets the packetizer has already produced but the scheduler has not yet
// handed to cluster_helper, plus whether the underlying reader is exhausted.
type trackState struct {
	input       TrackInput
	queue       []*packet.Packet
	queuedBytes int64
	readerDone  bool // ReadFrame returned io.EOF and Flush has drained
}

func (st *trackState) finished() bool {
	return st.readerDone && len(st.queue) == 0
}

func (st *trackState) enqueue(pkts []*packet.Packet) {
	for _, p := range pkts {
		st.queue = append(st.queue, p)
		st.queuedBytes += int64(p.Size())
	}
}

// Mux runs the mux_orchestrator pull-scheduler loop described in spec.md
// §4.7 over inputs, writing a complete Matroska file to w. The loop is
// single-threaded and cooperative: it only suspends at Source.ReadFrame,
// cluster_helper cluster renders, and file I/O, matching §5's concurrency
// model. cancel, if non-nil, is polled once per iteration; when it returns
// true the loop finalizes the current cluster and headers instead of
// continuing, so the output remains a valid (if short) Matroska file.
//
// Grounded on spec.md §4.7's pseudocode and cluster.Helper's Add/
// ResolveReferences contract (cluster/cluster.go); the top-level element
// ordering follows spec.md §6.1's "SeekHead, Info, Tracks, clusters, Cues,
// Chapters, Attachments, Tags" list. No pack example implements a Matroska
// writer loop end to end, so this scheduler is the engine's own logic,
// written in the teacher's explicit-error-return, no-goroutine style.
func Mux(w io.Writer, inputs []TrackInput, cfg Config, cancel func() bool) error {
	if len(inputs) == 0 {
		return mkverr.New(mkverr.ConfigError, "mux: no tracks to write")
	}
	if cfg.TimecodeScale == 0 {
		cfg = DefaultConfig()
	}

	ew := ebml.NewWriter(w)
	if err := writeEBMLHeader(ew); err != nil {
		return mkverr.Wrap(mkverr.IoError, err, "writing EBML header")
	}

	segSizeOffset, err := ew.OpenMaster(ebml.IDSegment, 8)
	if err != nil {
		return mkverr.Wrap(mkverr.IoError, err, "opening Segment")
	}
	segmentDataStart := ew.Position()

	// Reserve a fixed-size placeholder for the meta-seek head near the
	// front of the Segment, per spec.md §6.1 ("SeekHead (placeholder Void
	// first, real head at end)"). The real SeekHead, built once every
	// top-level element's offset is known, is patched into this same
	// region at Close so a seeking reader never has to scan past Cues.
	const seekHeadReserve = 160
	seekHeadOffset := ew.Position()
	if err := ew.WriteVoid(seekHeadReserve); err != nil {
		return mkverr.Wrap(mkverr.IoError, err, "reserving SeekHead placeholder")
	}

	infoOffset := ew.Position()
	durationOffset, err := writeSegmentInfo(ew, cfg)
	if err != nil {
		return mkverr.Wrap(mkverr.IoError, err, "writing SegmentInfo")
	}

	tracksOffset := ew.Position()
	if err := writeTracksElement(ew, inputs); err != nil {
		return mkverr.Wrap(mkverr.IoError, err, "writing Tracks")
	}

	states := make([]*trackState, len(inputs))
	for i, in := range inputs {
		states[i] = &trackState{input: in}
	}

	maxTimecode, maxSize := cfg.MaxClusterDuration, cfg.MaxClusterSize
	ch := cluster.New()
	if maxTimecode > 0 || maxSize > 0 {
		if maxTimecode == 0 {
			maxTimecode = 32767 * time.Millisecond
		}
		if maxSize == 0 {
			maxSize = 20 * 1024 * 1024
		}
		ch.WithBounds(maxTimecode, maxSize)
	}

	rendered := make(map[uint64]map[time.Duration]bool)
	var cues []cuePoint
	var maxEndTimecode time.Duration
	capWarned := false

	flushPending := func() error {
		if err := renderCluster(ew, ch, rendered, &cues, segmentDataStart, &maxEndTimecode); err != nil {
			return err
		}
		return nil
	}

loop:
	for {
		if cancel != nil && cancel() {
			break
		}

		winner := pickWinner(states, true)
		if winner < 0 {
			idx := pickWinner(states, false)
			if idx < 0 {
				break loop
			}
			if err := refill(states[idx]); err != nil {
				return err
			}
			if cfg.SoftMemoryCapBytes > 0 && !capWarned {
				var total int64
				for _, st := range states {
					total += st.queuedBytes
				}
				if total > cfg.SoftMemoryCapBytes {
					capWarned = true
					mkvlog.Warning("queued packet memory exceeds soft cap, scheduler now favors draining", "bytes", total, "cap", cfg.SoftMemoryCapBytes)
				}
			}
			continue
		}

		st := states[winner]
		pkt := st.queue[0]
		st.queue = st.queue[1:]
		st.queuedBytes -= int64(pkt.Size())

		if mustCloseFirst := ch.Add(pkt); mustCloseFirst {
			if err := flushPending(); err != nil {
				return err
			}
			ch.Add(pkt)
		}
	}

	// End of stream for every track: render whatever the final cluster
	// holds, even if it never hit a close boundary.
	if err := flushPending(); err != nil {
		return err
	}

	cuesOffset := ew.Position()
	if err := writeCues(ew, cues); err != nil {
		return mkverr.Wrap(mkverr.IoError, err, "writing Cues")
	}

	segmentEnd := ew.Position()
	if err := patchIfSeekable(ew, segSizeOffset, uint64(segmentEnd-segmentDataStart), 8); err != nil {
		return mkverr.Wrap(mkverr.IoError, err, "patching Segment size")
	}
	durationTicks := float64(maxEndTimecode.Nanoseconds()) / float64(cfg.TimecodeScale)
	if err := patchDuration(ew, durationOffset, durationTicks); err != nil {
		return mkverr.Wrap(mkverr.IoError, err, "patching Segment Duration")
	}

	entries := []seekEntry{
		{ebml.IDSegmentInfo, infoOffset - segmentDataStart},
		{ebml.IDTracks, tracksOffset - segmentDataStart},
		{ebml.IDCues, cuesOffset - segmentDataStart},
	}
	if err := patchSeekHead(ew, seekHeadOffset, seekHeadReserve, entries); err != nil {
		// A SeekHead that doesn't fit is a diagnostics-only regression
		// (readers fall back to a linear scan); warn rather than abort.
		mkvlog.Warning("meta-seek head did not fit its reserved budget, left as Void", "err", err.Error())
	}

	return nil
}

// pickWinner returns the index of the track whose head-of-queue packet has
// the smallest timecode (ties broken by ascending track number, per
// spec.md §4.7's ordering guarantee). When requireQueued is true, only
// tracks with an already-queued packet are considered — the scheduler's
// "prefer draining over refilling" policy from spec.md §5's memory bound
// falls directly out of always trying this call before a refill. Returns
// -1 if no eligible, not-yet-finished track exists.
func pickWinner(states []*trackState, requireQueued bool) int {
	winner := -1
	for i, st := range states {
		if st.finished() {
			continue
		}
		if requireQueued && len(st.queue) == 0 {
			continue
		}
		if !requireQueued && len(st.queue) > 0 {
			continue
		}
		if winner < 0 {
			winner = i
			continue
		}
		a, b := st, states[winner]
		if requireQueued {
			switch {
			case a.queue[0].Timecode < b.queue[0].Timecode:
				winner = i
			case a.queue[0].Timecode == b.queue[0].Timecode &&
				a.input.Packetizer.Track().Number < b.input.Packetizer.Track().Number:
				winner = i
			}
		}
	}
	return winner
}

// refill pulls one frame from st's reader and runs it through the
// packetizer, or — on io.EOF — flushes the packetizer's final packets and
// marks st done once nothing more is pending.
func refill(st *trackState) error {
	frame, err := st.input.Source.ReadFrame(st.input.SourceTrack)
	if err == io.EOF {
		pkts, ferr := st.input.Packetizer.Flush()
		if ferr != nil {
			return mkverr.Wrap(mkverr.IoError, ferr, "flushing packetizer for track %d", st.input.Packetizer.Track().Number)
		}
		st.enqueue(pkts)
		st.readerDone = true
		return nil
	}
	if err != nil {
		return mkverr.Wrap(mkverr.IoError, err, "reading frame for track %d", st.input.Packetizer.Track().Number)
	}
	pkts, err := st.input.Packetizer.Process(frame)
	if err != nil {
		return mkverr.Wrap(mkverr.InvalidFormat, err, "packetizing frame for track %d", st.input.Packetizer.Track().Number)
	}
	st.enqueue(pkts)
	return nil
}

// cuePoint records one seek-index entry: a keyframe's timecode plus
// the byte offsets needed to rebuild a CuePoint element, per spec.md §4.6's
// "register the new group in the Cues index" step.
type cuePoint struct {
	timecode         time.Duration
	track            uint64
	clusterPosition  int64 // Cluster element offset, relative to Segment data start
	relativePosition int64 // Block offset, relative to the Cluster element start
}

// renderCluster resolves references for the cluster currently buffered in
// ch, writes it to ew, records a Cues entry for every keyframe it contains
// on any track (audio and subtitle keyframes are not filtered out), and
// updates rendered/maxEndTimecode for subsequent clusters and
// the final Segment Duration. A no-op if ch has nothing buffered.
func renderCluster(ew *ebml.Writer, ch *cluster.Helper, rendered map[uint64]map[time.Duration]bool, cues *[]cuePoint, segmentDataStart int64, maxEndTimecode *time.Duration) error {
	packets := ch.Packets()
	if len(packets) == 0 {
		return nil
	}
	clusterTC := ch.ClusterTimecode()

	refs, unresolved := ch.ResolveReferences(rendered)
	if len(unresolved) > 0 {
		p := unresolved[0]
		return mkverr.New(mkverr.ReferenceUnresolved,
			"backward reference could not be resolved: track %d block at %s references %v/%v",
			p.Track, p.Timecode, p.BRef, p.FRef)
	}

	clusterElementStart := ew.Position()
	sizeOffset, err := ew.OpenMaster(ebml.IDCluster, 8)
	if err != nil {
		return err
	}
	if err := ew.WriteUInt(ebml.IDTimecode, uint64(clusterTC.Milliseconds())); err != nil {
		return err
	}

	for _, pkt := range packets {
		if err := cluster.ValidateBlockTimecode(clusterTC, pkt.Timecode); err != nil {
			mkvlog.Warning("block timecode drift exceeds cluster span", "err", err.Error())
		}

		blockOffset := ew.Position()
		if err := WriteBlockForPacket(ew, pkt, clusterTC, refs[pkt]); err != nil {
			return err
		}

		if pkt.Keyframe() {
			*cues = append(*cues, cuePoint{
				timecode:         pkt.Timecode,
				track:            pkt.Track,
				clusterPosition:  clusterElementStart - segmentDataStart,
				relativePosition: blockOffset - clusterElementStart,
			})
		}

		if byTrack, ok := rendered[pkt.Track]; ok {
			byTrack[pkt.Timecode] = true
		} else {
			rendered[pkt.Track] = map[time.Duration]bool{pkt.Timecode: true}
		}
		end := pkt.Timecode + pkt.Duration
		if end > *maxEndTimecode {
			*maxEndTimecode = end
		}
	}

	end := ew.Position()
	if err := patchIfSeekable(ew, sizeOffset, uint64(end-sizeOffset-8), 8); err != nil {
		return err
	}

	ch.MarkRendered()
	ch.Close()
	ch.FreeClusters()
	ch.PruneReferenced(rendered)
	return nil
}

// writeTracksElement writes the Tracks master wrapping one TrackEntry per
// input, in input order.
func writeTracksElement(w *ebml.Writer, inputs []TrackInput) error {
	sizeOffset, err := w.OpenMaster(ebml.IDTracks, 4)
	if err != nil {
		return err
	}
	for _, in := range inputs {
		if err := writeTrackEntry(w, in.Packetizer.Track()); err != nil {
			return err
		}
	}
	end := w.Position()
	return patchIfSeekable(w, sizeOffset, uint64(end-sizeOffset-4), 4)
}

// writeCues writes the Cues master, one CuePoint per recorded keyframe,
// sorted by timecode (ties by track number) as a well-formed index requires.
func writeCues(w *ebml.Writer, cues []cuePoint) error {
	if len(cues) == 0 {
		return nil
	}
	sort.SliceStable(cues, func(i, j int) bool {
		if cues[i].timecode != cues[j].timecode {
			return cues[i].timecode < cues[j].timecode
		}
		return cues[i].track < cues[j].track
	})

	sizeOffset, err := w.OpenMaster(ebml.IDCues, 4)
	if err != nil {
		return err
	}
	for _, c := range cues {
		pointOffset, err := w.OpenMaster(ebml.IDCuePoint, 2)
		if err != nil {
			return err
		}
		if err := w.WriteUInt(ebml.IDCueTime, uint64(c.timecode.Milliseconds())); err != nil {
			return err
		}
		posOffset, err := w.OpenMaster(ebml.IDCueTrackPositions, 2)
		if err != nil {
			return err
		}
		if err := w.WriteUInt(ebml.IDCueTrack, c.track); err != nil {
			return err
		}
		if err := w.WriteUInt(ebml.IDCueClusterPosition, uint64(c.clusterPosition)); err != nil {
			return err
		}
		if err := w.WriteUInt(ebml.IDCueRelativePosition, uint64(c.relativePosition)); err != nil {
			return err
		}
		posEnd := w.Position()
		if err := patchIfSeekable(w, posOffset, uint64(posEnd-posOffset-2), 2); err != nil {
			return err
		}
		pointEnd := w.Position()
		if err := patchIfSeekable(w, pointOffset, uint64(pointEnd-pointOffset-2), 2); err != nil {
			return err
		}
	}
	end := w.Position()
	return patchIfSeekable(w, sizeOffset, uint64(end-sizeOffset-4), 4)
}

// seekEntry is one SeekHead/Seek pair: the ID of a top-level element and
// its byte offset relative to the Segment's data start.
type seekEntry struct {
	id     uint32
	offset int64
}

// patchSeekHead builds the real SeekHead element for entries in an
// in-memory buffer (so its total size is known before anything touches the
// output file) and, if it fits within the reserve bytes set aside at offset
// by the initial WriteVoid call, overwrites that region in place: the real
// SeekHead followed by a trailing Void padding the region back out to
// exactly reserve bytes, so no later element's offset shifts. If it does
// not fit, the placeholder Void is left untouched and an error is returned
// so the caller can warn rather than corrupt the file; a leftover of exactly
// one byte counts as not fitting, since no Void element is that small.
func patchSeekHead(w *ebml.Writer, offset int64, reserve int, entries []seekEntry) error {
	ws, ok := underlyingWriteSeeker(w)
	if !ok {
		return nil
	}

	mem := &memBuffer{}
	sw := ebml.NewWriter(mem)
	headSizeOffset, err := sw.OpenMaster(ebml.IDSeekHead, 1)
	if err != nil {
		return err
	}
	for _, e := range entries {
		seekSizeOffset, err := sw.OpenMaster(ebml.IDSeek, 1)
		if err != nil {
			return err
		}
		if err := sw.WriteBinary(ebml.IDSeekID, idToBinary(e.id)); err != nil {
			return err
		}
		if err := sw.WriteUInt(ebml.IDSeekPos, uint64(e.offset)); err != nil {
			return err
		}
		end := sw.Position()
		if err := ebml.PatchSize(mem, seekSizeOffset, uint64(end-seekSizeOffset-1), 1); err != nil {
			return err
		}
	}
	end := sw.Position()
	if err := ebml.PatchSize(mem, headSizeOffset, uint64(end-headSizeOffset-1), 1); err != nil {
		return err
	}

	head := mem.buf
	if len(head) > reserve {
		return mkverr.New(mkverr.InternalInvariant, "seekhead needs %d bytes, only %d reserved", len(head), reserve)
	}
	leftover := reserve - len(head)
	if leftover == 1 {
		return mkverr.New(mkverr.InternalInvariant, "seekhead of %d bytes leaves 1 byte of %d reserved, too small for a Void", len(head), reserve)
	}

	if _, err := ws.Seek(offset, io.SeekStart); err != nil {
		return err
	}
	if _, err := ws.Write(head); err != nil {
		return err
	}
	if leftover == 0 {
		return nil
	}
	return ebml.NewWriter(ws).WriteVoid(leftover)
}

// memBuffer is a minimal io.WriteSeeker backed by a growable []byte, used to
// assemble the SeekHead in memory (so ebml.Writer's OpenMaster/PatchSize
// pair can measure and patch its nested Seek sizes) before it is ever
// written to the real, possibly non-seekable-at-this-offset output.
type memBuffer struct {
	buf []byte
	pos int64
}

func (m *memBuffer) Write(p []byte) (int, error) {
	end := m.pos + int64(len(p))
	if end > int64(len(m.buf)) {
		grown := make([]byte, end)
		copy(grown, m.buf)
		m.buf = grown
	}
	copy(m.buf[m.pos:end], p)
	m.pos = end
	return len(p), nil
}

func (m *memBuffer) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
		m.pos = offset
	case io.SeekCurrent:
		m.pos += offset
	case io.SeekEnd:
		m.pos = int64(len(m.buf)) + offset
	}
	return m.pos, nil
}

// idToBinary returns id's raw on-wire byte representation (the same width
// rule ebml.appendID uses internally, duplicated here since that helper is
// unexported).
func idToBinary(id uint32) []byte {
	switch {
	case id&0xFF000000 != 0:
		return []byte{byte(id >> 24), byte(id >> 16), byte(id >> 8), byte(id)}
	case id&0x00FF0000 != 0:
		return []byte{byte(id >> 16), byte(id >> 8), byte(id)}
	case id&0x0000FF00 != 0:
		return []byte{byte(id >> 8), byte(id)}
	default:
		return []byte{byte(id)}
	}
}
