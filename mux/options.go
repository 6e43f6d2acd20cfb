package mux

import "time"

// Config configures one mux_orchestrator run. The CLI layer (cmd/mkvmerge)
// is responsible for turning command-line flags into this struct; per
// spec.md §1/§6.2 the flag grammar itself is out of scope here.
type Config struct {
	// MuxingApp/WritingApp populate SegmentInfo's MuxingApp/WritingApp.
	MuxingApp  string
	WritingApp string

	Title string

	// TimecodeScale is SegmentInfo's TimecodeScale; spec.md's packet
	// timecodes are always nanoseconds regardless of this value, which
	// only affects the on-wire Block timecode unit. 1,000,000 (1ms) is
	// mkvmerge's long-standing default.
	TimecodeScale uint64

	// MaxClusterDuration/MaxClusterSize override cluster.Helper's default
	// bounds; zero means "use cluster package defaults."
	MaxClusterDuration time.Duration
	MaxClusterSize     int

	// SoftMemoryCapBytes bounds in-flight packet memory per spec.md §5's
	// 128MB soft cap; the scheduler favors draining over refilling once
	// exceeded rather than erroring.
	SoftMemoryCapBytes int64
}

// DefaultConfig returns spec.md's documented defaults.
func DefaultConfig() Config {
	return Config{
		MuxingApp:          "mkvengine",
		WritingApp:         "mkvengine",
		TimecodeScale:      1_000_000,
		SoftMemoryCapBytes: 128 * 1024 * 1024,
	}
}
