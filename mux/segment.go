package mux

import (
	"io"
	"math"

	"github.com/google/uuid"

	"github.com/nmaier/mkvengine/ebml"
	"github.com/nmaier/mkvengine/packet"
)

// NewSegmentUID generates a random 16-byte SegmentUID using
// github.com/google/uuid, the way petervdpas-goop2 and USA-RedDragon-DMRHub
// both lean on uuid.New() for random identifiers, replacing the original
// tool's hand-rolled RNG per SPEC_FULL.md's Supplemented Features section.
func NewSegmentUID() []byte {
	id := uuid.New()
	return id[:]
}

// writeEBMLHeader writes the fixed EBML header all Matroska files begin
// with. Per SPEC_FULL.md's Supplemented Features (resolving spec.md §9's
// open question), this engine always writes EBMLVersion/EBMLReadVersion=1;
// demux.Open skips the EBML header without checking these fields, so
// files declaring 0 or 1 are both read.
func writeEBMLHeader(w *ebml.Writer) error {
	sizeOffset, err := w.OpenMaster(ebml.IDEBMLHeader, 1)
	if err != nil {
		return err
	}
	if err := w.WriteUInt(ebml.IDEBMLVersion, 1); err != nil {
		return err
	}
	if err := w.WriteUInt(ebml.IDEBMLReadVersion, 1); err != nil {
		return err
	}
	if err := w.WriteUInt(ebml.IDEBMLMaxIDLength, 4); err != nil {
		return err
	}
	if err := w.WriteUInt(ebml.IDEBMLMaxSizeLength, 8); err != nil {
		return err
	}
	if err := w.WriteString(ebml.IDDocType, "matroska"); err != nil {
		return err
	}
	if err := w.WriteUInt(ebml.IDDocTypeVersion, 4); err != nil {
		return err
	}
	if err := w.WriteUInt(ebml.IDDocTypeReadVersion, 2); err != nil {
		return err
	}
	headerEnd := w.Position()
	return patchIfSeekable(w, sizeOffset, uint64(headerEnd-sizeOffset-1), 1)
}

// patchIfSeekable patches a reserved size field if the underlying writer
// supports seeking; non-seekable (streaming) outputs keep the unknown-size
// sentinel, which is legal EBML per spec.md §6.1.
func patchIfSeekable(w *ebml.Writer, offset int64, size uint64, width int) error {
	if ws, ok := underlyingWriteSeeker(w); ok {
		return ebml.PatchSize(ws, offset, size, width)
	}
	return nil
}

func underlyingWriteSeeker(w *ebml.Writer) (io.WriteSeeker, bool) {
	ws, ok := w.Underlying().(io.WriteSeeker)
	return ws, ok
}

// writeSegmentInfo writes the Info master with the fields SPEC_FULL.md and
// spec.md's data model both require: TimecodeScale, MuxingApp/WritingApp,
// Title, a fresh SegmentUID, and a placeholder Duration. Duration is not
// known until the orchestrator has rendered every cluster, so it is written
// as a fixed-width 8-byte float now and the returned offset is patched with
// the real value once muxing finishes (patchDuration).
func writeSegmentInfo(w *ebml.Writer, cfg Config) (durationOffset int64, err error) {
	sizeOffset, err := w.OpenMaster(ebml.IDSegmentInfo, 4)
	if err != nil {
		return 0, err
	}
	if err := w.WriteBinary(ebml.IDSegmentUID, NewSegmentUID()); err != nil {
		return 0, err
	}
	if err := w.WriteUInt(ebml.IDTimecodeScale, cfg.TimecodeScale); err != nil {
		return 0, err
	}
	durationOffset = w.Position() + 3 // past Duration's 2-byte ID + 1-byte size VINT
	if err := w.WriteFloat64(ebml.IDDuration, 0); err != nil {
		return 0, err
	}
	if cfg.Title != "" {
		if err := w.WriteString(ebml.IDTitle, cfg.Title); err != nil {
			return 0, err
		}
	}
	if err := w.WriteString(ebml.IDMuxingApp, cfg.MuxingApp); err != nil {
		return 0, err
	}
	if err := w.WriteString(ebml.IDWritingApp, cfg.WritingApp); err != nil {
		return 0, err
	}
	end := w.Position()
	return durationOffset, patchIfSeekable(w, sizeOffset, uint64(end-sizeOffset-4), 4)
}

// patchDuration overwrites the 8-byte Duration payload reserved by
// writeSegmentInfo once the real value is known; a no-op when the
// underlying writer is not seekable.
func patchDuration(w *ebml.Writer, durationOffset int64, durationTicks float64) error {
	ws, ok := underlyingWriteSeeker(w)
	if !ok {
		return nil
	}
	bits := math.Float64bits(durationTicks)
	var buf [8]byte
	for i := 7; i >= 0; i-- {
		buf[i] = byte(bits)
		bits >>= 8
	}
	if _, err := ws.Seek(durationOffset, io.SeekStart); err != nil {
		return err
	}
	_, err := ws.Write(buf[:])
	return err
}

// writeTrackEntry writes one TrackEntry master for t.
func writeTrackEntry(w *ebml.Writer, t *packet.Track) error {
	sizeOffset, err := w.OpenMaster(ebml.IDTrackEntry, 4)
	if err != nil {
		return err
	}
	if err := w.WriteUInt(ebml.IDTrackNumber, t.Number); err != nil {
		return err
	}
	if err := w.WriteUInt(ebml.IDTrackUID, t.UID); err != nil {
		return err
	}
	if err := w.WriteUInt(ebml.IDTrackType, uint64(t.Type)); err != nil {
		return err
	}
	if err := w.WriteUInt(ebml.IDFlagLacing, boolU64(t.FlagLacing)); err != nil {
		return err
	}
	if t.Name != "" {
		if err := w.WriteString(ebml.IDName, t.Name); err != nil {
			return err
		}
	}
	if t.Language != "" {
		if err := w.WriteString(ebml.IDLanguage, t.Language); err != nil {
			return err
		}
	}
	if err := w.WriteString(ebml.IDCodecID, t.CodecID); err != nil {
		return err
	}
	if len(t.CodecPrivate) > 0 {
		if err := w.WriteBinary(ebml.IDCodecPrivate, t.CodecPrivate); err != nil {
			return err
		}
	}
	if t.DefaultDuration > 0 {
		if err := w.WriteUInt(ebml.IDDefaultDuration, t.DefaultDuration); err != nil {
			return err
		}
	}
	if t.Video != nil {
		if err := writeVideoSettings(w, t.Video); err != nil {
			return err
		}
	}
	if t.Audio != nil {
		if err := writeAudioSettings(w, t.Audio); err != nil {
			return err
		}
	}
	end := w.Position()
	return patchIfSeekable(w, sizeOffset, uint64(end-sizeOffset-4), 4)
}

func writeVideoSettings(w *ebml.Writer, v *packet.VideoTrack) error {
	sizeOffset, err := w.OpenMaster(ebml.IDVideo, 2)
	if err != nil {
		return err
	}
	if err := w.WriteUInt(ebml.IDPixelWidth, v.PixelWidth); err != nil {
		return err
	}
	if err := w.WriteUInt(ebml.IDPixelHeight, v.PixelHeight); err != nil {
		return err
	}
	if v.DisplayWidth > 0 {
		if err := w.WriteUInt(ebml.IDDisplayWidth, v.DisplayWidth); err != nil {
			return err
		}
	}
	if v.DisplayHeight > 0 {
		if err := w.WriteUInt(ebml.IDDisplayHeight, v.DisplayHeight); err != nil {
			return err
		}
	}
	end := w.Position()
	return patchIfSeekable(w, sizeOffset, uint64(end-sizeOffset-2), 2)
}

func writeAudioSettings(w *ebml.Writer, a *packet.AudioTrack) error {
	sizeOffset, err := w.OpenMaster(ebml.IDAudio, 2)
	if err != nil {
		return err
	}
	if err := w.WriteFloat64(ebml.IDSamplingFrequency, a.SamplingFrequency); err != nil {
		return err
	}
	if a.Channels > 0 {
		if err := w.WriteUInt(ebml.IDChannels, a.Channels); err != nil {
			return err
		}
	}
	if a.BitDepth > 0 {
		if err := w.WriteUInt(ebml.IDBitDepth, a.BitDepth); err != nil {
			return err
		}
	}
	end := w.Position()
	return patchIfSeekable(w, sizeOffset, uint64(end-sizeOffset-2), 2)
}

func boolU64(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}
