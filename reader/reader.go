// Package reader implements the reader component: source-format demuxers
// that hand the packetizer a stream of raw Frame-shaped input, abstracting
// away AVI/Ogg/WAV/VobSub/WavPack/CoreAudio/raw container differences.
//
// The Source interface and the per-format readers below are grounded on
// luispater-matroska-go/parser.go's MatroskaParser (the only complete
// container-reader loop in the retrieved pack), generalized from a single
// fixed (Matroska) container format to the variety spec.md §4.3 names,
// and enriched per-format from original_source/src/input/*.cpp where the
// distilled spec is silent on exact framing.
package reader

import (
	"io"

	"github.com/nmaier/mkvengine/packet"
	"github.com/nmaier/mkvengine/packetizer"
)

// Source produces one packetizer.Frame at a time from a source-format
// byte stream, alongside the Track metadata the packetizer needs to
// construct a Matroska TrackEntry.
type Source interface {
	// Tracks returns the source's track list, discovered during Open.
	Tracks() []*packet.Track

	// ReadFrame returns the next raw frame for the given track index
	// (0-based, matching the Tracks() slice), or io.EOF when that
	// track's frames are exhausted.
	ReadFrame(trackIdx int) (packetizer.Frame, error)

	// Close releases any resources (open files, buffers) held by the
	// source.
	Close() error
}

// ErrEOF re-exports io.EOF for readers that want to avoid importing io
// directly in call sites that only check for end-of-stream.
var ErrEOF = io.EOF
