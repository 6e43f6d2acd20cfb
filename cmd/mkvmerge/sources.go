package main

import (
	"bytes"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/nmaier/mkvengine/internal/mkverr"
	"github.com/nmaier/mkvengine/packet"
	"github.com/nmaier/mkvengine/packetizer"
	"github.com/nmaier/mkvengine/reader"
)

// openSource opens path's reader.Source based on its file extension,
// matching the handful of container formats this engine's reader package
// implements. Flag-driven format override is Non-goal per spec.md §1/§6.2
// (the CLI flag grammar itself is out of scope); detection by extension is
// the thin assembly this layer is responsible for.
func openSource(path string) (reader.Source, func() error, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, mkverr.Wrap(mkverr.IoError, err, "opening input %q", path)
	}
	closeFile := f.Close

	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		src, err := reader.OpenWAV(f)
		if err != nil {
			closeFile()
			return nil, nil, err
		}
		return src, closeFile, nil
	case ".avi":
		src, err := reader.OpenAVI(f)
		if err != nil {
			closeFile()
			return nil, nil, err
		}
		return src, closeFile, nil
	case ".caf":
		src, err := reader.OpenCoreAudio(f)
		if err != nil {
			closeFile()
			return nil, nil, err
		}
		return src, closeFile, nil
	case ".wv":
		src, err := reader.OpenWavPack(f, nil)
		if err != nil {
			closeFile()
			return nil, nil, err
		}
		return src, closeFile, nil
	case ".rm":
		src, err := reader.OpenRealMedia(f)
		if err != nil {
			closeFile()
			return nil, nil, err
		}
		return src, closeFile, nil
	case ".ogg", ".ogv", ".oga":
		data, err := io.ReadAll(f)
		if err != nil {
			closeFile()
			return nil, nil, mkverr.Wrap(mkverr.IoError, err, "reading input %q", path)
		}
		closeFile()
		track, granuleRate, err := sniffOggVorbis(data)
		if err != nil {
			return nil, nil, err
		}
		src := reader.OpenOgg(bytes.NewReader(data), track, granuleRate)
		return src, func() error { return nil }, nil
	case ".idx":
		subPath := strings.TrimSuffix(path, filepath.Ext(path)) + ".sub"
		subFile, err := os.Open(subPath)
		if err != nil {
			closeFile()
			return nil, nil, mkverr.Wrap(mkverr.IoError, err, "opening VobSub companion %q", subPath)
		}
		src, err := reader.OpenVobSub(f, subFile, reader.VobSubOptions{SkipBigVobSubs: true})
		if err != nil {
			closeFile()
			subFile.Close()
			return nil, nil, err
		}
		return src, func() error {
			err1 := closeFile()
			err2 := subFile.Close()
			if err1 != nil {
				return err1
			}
			return err2
		}, nil
	default:
		closeFile()
		return nil, nil, mkverr.New(mkverr.Unsupported, "no reader for input %q (unrecognized extension)", path)
	}
}

// packetizerForTrack selects the packetizer appropriate to t's CodecID, the
// mux-side counterpart of extract's per-CodecID Sink dispatch
// (cmd/mkvextract/sinks.go).
func packetizerForTrack(t *packet.Track) (packetizer.Packetizer, error) {
	switch t.CodecID {
	case "A_PCM/INT/LIT":
		return packetizer.NewPassthroughPacketizer(t), nil
	case "A_ALAC":
		return packetizer.NewALACPacketizer(t), nil
	case "A_WAVPACK4":
		return packetizer.NewWavPackPacketizer(t), nil
	case "V_MPEG4/ISO/AVC":
		return packetizer.NewAVCPacketizer(t, 4, false), nil
	case "V_MPEGH/ISO/HEVC":
		return packetizer.NewAVCPacketizer(t, 4, true), nil
	case "V_MPEG4/ISO/ASP":
		return packetizer.NewMPEG4Part2Packetizer(t, packetizer.MPEG4Part2Config{}), nil
	default:
		return packetizer.NewPassthroughPacketizer(t), nil
	}
}

// sniffOggVorbis reads the first Ogg page out of data and decodes its
// three Vorbis header packets (identification, comment, setup) into a
// Track, since reader.OpenOgg requires the caller to identify the codec
// and build CodecPrivate itself before constructing a Source — "identifying
// a codec from its first packet's magic bytes is itself codec-specific".
// Only Vorbis is auto-detected here: Theora/Kate/FLAC-in-Ogg inputs still
// work through reader.OggSource for callers (or a future CLI flag) that
// supply their own Track, but this thin CLI assembly layer only guesses
// the one codec that accounts for the overwhelming majority of plain .ogg
// audio inputs.
func sniffOggVorbis(data []byte) (*packet.Track, float64, error) {
	segTable, payload, err := parseOggFirstPage(data)
	if err != nil {
		return nil, 0, err
	}
	packets := splitOggPackets(segTable, payload)
	if len(packets) < 3 || len(packets[0]) < 16 || packets[0][0] != 1 || string(packets[0][1:7]) != "vorbis" {
		return nil, 0, mkverr.New(mkverr.Unsupported, "only Vorbis-in-Ogg is auto-detected by mkvmerge's input sniffer")
	}
	ident := packets[0]
	sampleRate := float64(binary.LittleEndian.Uint32(ident[12:16]))
	channels := uint64(ident[11])
	track := &packet.Track{
		Type:         2, // ebml.TrackTypeAudio
		CodecID:      "A_VORBIS",
		CodecPrivate: packetizer.BuildXiphCodecPrivate(packets[:3]),
		Audio:        &packet.AudioTrack{SamplingFrequency: sampleRate, Channels: channels},
	}
	return track, sampleRate, nil
}

// parseOggFirstPage extracts the segment table and payload bytes of the
// very first Ogg page in data (RFC 3533 §6), enough to decode a grouped
// header page without depending on reader.OggSource's own page cursor.
func parseOggFirstPage(data []byte) (segTable, payload []byte, err error) {
	if len(data) < 27 || string(data[0:4]) != "OggS" {
		return nil, nil, mkverr.New(mkverr.InvalidFormat, "not an Ogg bitstream (missing OggS capture pattern)")
	}
	segCount := int(data[26])
	tableEnd := 27 + segCount
	if len(data) < tableEnd {
		return nil, nil, mkverr.New(mkverr.InvalidFormat, "truncated Ogg page segment table")
	}
	segTable = data[27:tableEnd]
	total := 0
	for _, b := range segTable {
		total += int(b)
	}
	if len(data) < tableEnd+total {
		return nil, nil, mkverr.New(mkverr.InvalidFormat, "truncated Ogg page payload")
	}
	return segTable, data[tableEnd : tableEnd+total], nil
}

// splitOggPackets reassembles payload into its constituent packets per
// segTable's lacing values, per-page (no continuation across pages, which
// a grouped Vorbis header page never needs).
func splitOggPackets(segTable, payload []byte) [][]byte {
	var packets [][]byte
	var cur []byte
	pos := 0
	for _, segLen := range segTable {
		cur = append(cur, payload[pos:pos+int(segLen)]...)
		pos += int(segLen)
		if segLen < 255 {
			packets = append(packets, cur)
			cur = nil
		}
	}
	return packets
}
