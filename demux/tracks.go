package demux

import (
	"io"

	"github.com/nmaier/mkvengine/ebml"
	"github.com/nmaier/mkvengine/internal/mkverr"
	"github.com/nmaier/mkvengine/packet"
)

// parseTracks decodes a Tracks master's payload into a Track slice,
// reading every field mux/segment.go's writeTrackEntry writes plus further
// TrackEntry fields that writer does not emit (see parseTrackEntry).
func parseTracks(tracksEl *ebml.Element) ([]*packet.Track, error) {
	br := ebml.NewBytesReader(tracksEl.Data)
	var tracks []*packet.Track
	for {
		el, err := br.ReadElement()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, mkverr.Wrap(mkverr.InvalidFormat, err, "reading TrackEntry")
		}
		if el.ID != ebml.IDTrackEntry {
			continue
		}
		t, err := parseTrackEntry(el.Data)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, t)
	}
	return tracks, nil
}

func parseTrackEntry(data []byte) (*packet.Track, error) {
	t := &packet.Track{}
	br := ebml.NewBytesReader(data)
	for {
		el, err := br.ReadElement()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, mkverr.Wrap(mkverr.InvalidFormat, err, "reading TrackEntry child")
		}
		switch el.ID {
		case ebml.IDTrackNumber:
			v, err := el.ReadUInt()
			if err != nil {
				return nil, err
			}
			t.Number = v
		case ebml.IDTrackUID:
			v, err := el.ReadUInt()
			if err != nil {
				return nil, err
			}
			t.UID = v
		case ebml.IDTrackType:
			v, err := el.ReadUInt()
			if err != nil {
				return nil, err
			}
			t.Type = uint8(v)
		case ebml.IDFlagEnabled:
			v, _ := el.ReadUInt()
			t.FlagEnabled = v != 0
		case ebml.IDFlagDefault:
			v, _ := el.ReadUInt()
			t.FlagDefault = v != 0
		case ebml.IDFlagForced:
			v, _ := el.ReadUInt()
			t.FlagForced = v != 0
		case ebml.IDFlagLacing:
			v, _ := el.ReadUInt()
			t.FlagLacing = v != 0
		case ebml.IDMinCache:
			v, _ := el.ReadUInt()
			t.MinCache = v
		case ebml.IDMaxCache:
			v, _ := el.ReadUInt()
			t.MaxCache = v
		case ebml.IDName:
			t.Name = el.ReadUTF8()
		case ebml.IDLanguage:
			t.Language = el.ReadString()
		case ebml.IDCodecID:
			t.CodecID = el.ReadString()
		case ebml.IDCodecPrivate:
			t.CodecPrivate = el.ReadBytes()
		case ebml.IDDefaultDuration:
			v, err := el.ReadUInt()
			if err != nil {
				return nil, err
			}
			t.DefaultDuration = v
		case ebml.IDVideo:
			v, err := parseVideo(el.Data)
			if err != nil {
				return nil, err
			}
			t.Video = v
		case ebml.IDAudio:
			a, err := parseAudio(el.Data)
			if err != nil {
				return nil, err
			}
			t.Audio = a
		case ebml.IDContentEncodings:
			encs, err := parseContentEncodings(el.Data)
			if err != nil {
				return nil, err
			}
			t.ContentEncodings = encs
		}
	}
	return t, nil
}

func parseVideo(data []byte) (*packet.VideoTrack, error) {
	v := &packet.VideoTrack{}
	br := ebml.NewBytesReader(data)
	for {
		el, err := br.ReadElement()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		switch el.ID {
		case ebml.IDPixelWidth:
			v.PixelWidth, _ = el.ReadUInt()
		case ebml.IDPixelHeight:
			v.PixelHeight, _ = el.ReadUInt()
		case ebml.IDDisplayWidth:
			v.DisplayWidth, _ = el.ReadUInt()
		case ebml.IDDisplayHeight:
			v.DisplayHeight, _ = el.ReadUInt()
		case ebml.IDDisplayUnit:
			v.DisplayUnit, _ = el.ReadUInt()
		case ebml.IDPixelCropLeft:
			v.CropLeft, _ = el.ReadUInt()
		case ebml.IDPixelCropRight:
			v.CropRight, _ = el.ReadUInt()
		case ebml.IDPixelCropTop:
			v.CropTop, _ = el.ReadUInt()
		case ebml.IDPixelCropBottom:
			v.CropBottom, _ = el.ReadUInt()
		case ebml.IDFlagInterlaced:
			n, _ := el.ReadUInt()
			v.Interlaced = n != 0
		case ebml.IDStereoMode:
			v.StereoMode, _ = el.ReadUInt()
		}
	}
	return v, nil
}

func parseAudio(data []byte) (*packet.AudioTrack, error) {
	a := &packet.AudioTrack{}
	br := ebml.NewBytesReader(data)
	for {
		el, err := br.ReadElement()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		switch el.ID {
		case ebml.IDSamplingFrequency:
			a.SamplingFrequency, _ = el.ReadFloat()
		case ebml.IDOutputSampFreq:
			a.OutputSamplingFrequency, _ = el.ReadFloat()
		case ebml.IDChannels:
			a.Channels, _ = el.ReadUInt()
		case ebml.IDBitDepth:
			a.BitDepth, _ = el.ReadUInt()
		}
	}
	return a, nil
}

func parseContentEncodings(data []byte) ([]packet.ContentEncoding, error) {
	var out []packet.ContentEncoding
	br := ebml.NewBytesReader(data)
	for {
		el, err := br.ReadElement()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if el.ID != ebml.IDContentEncoding {
			continue
		}
		enc, err := parseContentEncoding(el.Data)
		if err != nil {
			return nil, err
		}
		out = append(out, enc)
	}
	return out, nil
}

func parseContentEncoding(data []byte) (packet.ContentEncoding, error) {
	var enc packet.ContentEncoding
	br := ebml.NewBytesReader(data)
	for {
		el, err := br.ReadElement()
		if err == io.EOF {
			break
		}
		if err != nil {
			return enc, err
		}
		switch el.ID {
		case ebml.IDContentEncOrder:
			enc.Order, _ = el.ReadUInt()
		case ebml.IDContentEncScope:
			enc.Scope, _ = el.ReadUInt()
		case ebml.IDContentEncType:
			enc.Type, _ = el.ReadUInt()
		case ebml.IDContentCompression:
			cbr := ebml.NewBytesReader(el.Data)
			for {
				cel, err := cbr.ReadElement()
				if err == io.EOF {
					break
				}
				if err != nil {
					return enc, err
				}
				switch cel.ID {
				case ebml.IDContentCompAlgo:
					enc.CompAlgo, _ = cel.ReadUInt()
				case ebml.IDContentCompSetting:
					enc.CompSetting = cel.ReadBytes()
				}
			}
		}
	}
	return enc, nil
}
