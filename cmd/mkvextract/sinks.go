package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/nmaier/mkvengine/extract"
	"github.com/nmaier/mkvengine/internal/mkverr"
	"github.com/nmaier/mkvengine/packet"
	"github.com/nmaier/mkvengine/packetizer"
)

// openedSink bundles a Sink with every file handle it opened, so the
// caller can Close them all in one place regardless of how many output
// files a given codec needed (VobSub needs two; everything else needs
// one).
type openedSink struct {
	sink    extract.Sink
	closers []io.Closer
}

func (o *openedSink) Close() error {
	err := o.sink.Close()
	for _, c := range o.closers {
		if cerr := c.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// sinkForTrack picks the extract.Sink appropriate to t's CodecID and
// creates the output file(s) at basePath plus the codec's natural
// extension, the extract-side counterpart of
// cmd/mkvmerge/sources.go's packetizerForTrack dispatch.
func sinkForTrack(t *packet.Track, basePath string) (*openedSink, error) {
	if strings.HasPrefix(t.CodecID, "V_REAL/") || strings.HasPrefix(t.CodecID, "A_REAL/") {
		return realMediaSink(t, basePath)
	}

	switch t.CodecID {
	case "V_MPEG4/ISO/AVC":
		f, err := create(basePath + ".264")
		if err != nil {
			return nil, err
		}
		sink, err := extract.NewAVCSink(f, t.CodecPrivate)
		if err != nil {
			f.Close()
			return nil, err
		}
		return &openedSink{sink: sink, closers: []io.Closer{f}}, nil

	case "V_MPEGH/ISO/HEVC":
		f, err := create(basePath + ".265")
		if err != nil {
			return nil, err
		}
		sink, err := extract.NewHEVCSink(f, t.CodecPrivate)
		if err != nil {
			f.Close()
			return nil, err
		}
		return &openedSink{sink: sink, closers: []io.Closer{f}}, nil

	case "V_MPEG4/ISO/ASP":
		f, err := create(basePath + ".avi")
		if err != nil {
			return nil, err
		}
		frameDurNS := int64(t.DefaultDuration)
		sink, err := extract.NewAVISink(f, t, nil, frameDurNS)
		if err != nil {
			f.Close()
			return nil, err
		}
		return &openedSink{sink: sink, closers: []io.Closer{f}}, nil

	case "A_PCM/INT/LIT":
		f, err := create(basePath + ".wav")
		if err != nil {
			return nil, err
		}
		channels, rate, depth := audioFormat(t)
		sink, err := extract.NewWAVSink(f, uint16(channels), uint32(rate), uint16(depth))
		if err != nil {
			f.Close()
			return nil, err
		}
		return &openedSink{sink: sink, closers: []io.Closer{f}}, nil

	case "A_ALAC":
		f, err := create(basePath + ".caf")
		if err != nil {
			return nil, err
		}
		channels, rate, _ := audioFormat(t)
		sink := extract.NewCAFSink(f, rate, uint32(channels), t.CodecPrivate)
		return &openedSink{sink: sink, closers: []io.Closer{f}}, nil

	case "S_TEXT/UTF8":
		f, err := create(basePath + ".srt")
		if err != nil {
			return nil, err
		}
		sink := extract.NewSRTSink(f)
		return &openedSink{sink: sink, closers: []io.Closer{f}}, nil

	case "S_TEXT/ASS", "S_TEXT/SSA":
		f, err := create(basePath + ".ass")
		if err != nil {
			return nil, err
		}
		sink := extract.NewSSASink(f, string(t.CodecPrivate))
		return &openedSink{sink: sink, closers: []io.Closer{f}}, nil

	case "S_VOBSUB":
		sub, err := create(basePath + ".sub")
		if err != nil {
			return nil, err
		}
		idx, err := create(basePath + ".idx")
		if err != nil {
			sub.Close()
			return nil, err
		}
		sink := extract.NewVobSubSink(sub, idx)
		return &openedSink{sink: sink, closers: []io.Closer{sub, idx}}, nil

	case "A_VORBIS", "V_THEORA":
		f, err := create(basePath + ".ogg")
		if err != nil {
			return nil, err
		}
		sink := extract.NewOggSink(f, extract.DeterministicOggSerial)
		if len(t.CodecPrivate) > 0 {
			headers, err := packetizer.ParseXiphCodecPrivate(t.CodecPrivate)
			if err != nil {
				f.Close()
				return nil, err
			}
			if err := sink.WriteHeaders(headers); err != nil {
				f.Close()
				return nil, err
			}
		}
		return &openedSink{sink: sink, closers: []io.Closer{f}}, nil

	case "A_WAVPACK4":
		f, err := create(basePath + ".wv")
		if err != nil {
			return nil, err
		}
		sink := extract.NewRawSink(f, t.CodecPrivate, true)
		return &openedSink{sink: sink, closers: []io.Closer{f}}, nil

	default:
		f, err := create(basePath + ".raw")
		if err != nil {
			return nil, err
		}
		sink := extract.NewRawSink(f, t.CodecPrivate, true)
		return &openedSink{sink: sink, closers: []io.Closer{f}}, nil
	}
}

// realMediaSink extracts a single RealMedia track to its own .rm file.
// extract.NewRealMediaSink's constructor takes every track destined for
// one container at once (RealMedia interleaves all tracks' frames into a
// shared DATA chunk), but mkvextract's contract is one track in, one
// output file out; this wraps each track in a single-track RealMediaSink
// rather than reworking sinkForTrack's per-track dispatch to group
// RealMedia tracks by their original container.
func realMediaSink(t *packet.Track, basePath string) (*openedSink, error) {
	f, err := create(basePath + ".rm")
	if err != nil {
		return nil, err
	}
	sink, err := extract.NewRealMediaSink(f, []*packet.Track{t})
	if err != nil {
		f.Close()
		return nil, err
	}
	return &openedSink{sink: sink, closers: []io.Closer{f}}, nil
}

func audioFormat(t *packet.Track) (channels uint64, rate float64, bitDepth uint64) {
	if t.Audio == nil {
		return 2, 44100, 16
	}
	channels = t.Audio.Channels
	if channels == 0 {
		channels = 2
	}
	rate = t.Audio.SamplingFrequency
	if rate == 0 {
		rate = 44100
	}
	bitDepth = t.Audio.BitDepth
	if bitDepth == 0 {
		bitDepth = 16
	}
	return channels, rate, bitDepth
}

func create(path string) (*os.File, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, mkverr.Wrap(mkverr.IoError, err, "creating output %q", path)
	}
	return f, nil
}

func outputBasePath(outDir string, track *packet.Track) string {
	return fmt.Sprintf("%s/track%d", outDir, track.Number)
}
