package packet

// Track describes one Matroska TrackEntry: the subset of fields the
// packetizer, cluster_helper and mux_orchestrator need to make lacing,
// clustering and ordering decisions. Field names are reverse-engineered
// from luispater-matroska-go/parser.go's parseTrackEntry call sites (the
// struct body itself is absent from the retrieval pack) and cross-checked
// against pixelbender-go-matroska/matroska/matroska.go's struct-tag Track
// definition for completeness.
type Track struct {
	Number uint64
	UID    uint64
	Type   uint8 // one of ebml.TrackType*

	CodecID      string
	CodecPrivate []byte
	Name         string
	Language     string

	// DefaultDuration is the nominal per-frame duration in nanoseconds
	// (video: 1/framerate; audio: usually left at 0, relying on
	// BlockDuration instead).
	DefaultDuration uint64

	FlagEnabled bool
	FlagDefault bool
	FlagForced  bool
	FlagLacing  bool

	MinCache uint64
	MaxCache uint64

	// Video/Audio holds format-specific fields; exactly one is non-nil
	// for Type == TrackTypeVideo / TrackTypeAudio respectively.
	Video *VideoTrack
	Audio *AudioTrack

	// ContentEncodings lists zlib/header-removal transforms applied to
	// every block on this track, outermost first.
	ContentEncodings []ContentEncoding
}

// VideoTrack carries Matroska's Video sub-element fields.
type VideoTrack struct {
	PixelWidth, PixelHeight   uint64
	DisplayWidth, DisplayHeight uint64
	DisplayUnit               uint64
	CropLeft, CropRight       uint64
	CropTop, CropBottom       uint64
	Interlaced                bool
	StereoMode                uint64
}

// AudioTrack carries Matroska's Audio sub-element fields.
type AudioTrack struct {
	SamplingFrequency       float64
	OutputSamplingFrequency float64
	Channels                uint64
	BitDepth                uint64
}

// ContentEncoding describes one entry of a track's ContentEncodings list.
// Scope is a bitmask (1=block, 2=private data, 4=next); Type 0=compression.
type ContentEncoding struct {
	Order     uint64
	Scope     uint64
	Type      uint64
	CompAlgo  uint64 // 0=zlib, 1=bzip2 (decode-only), 2=lzo1x (unsupported), 3=header-strip
	CompSetting []byte
}

// Compression algorithm IDs for ContentCompAlgo, per the Matroska spec.
const (
	CompAlgoZlib        = 0
	CompAlgoBzip2       = 1
	CompAlgoLZO1X       = 2
	CompAlgoHeaderStrip = 3
)
