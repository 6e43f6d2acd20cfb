package packetizer

// EncodeXiphLaceSizes encodes the Xiph lacing size-prefix for all but the
// last frame of a laced block: each size is expressed as a run of 255
// bytes followed by a final byte less than 255, exactly as Ogg/Vorbis
// headers and Matroska's XiphLace Block lacing both do it. Grounded on
// original_source's Vorbis packetizer (p_vorbis.cpp) header-lacing
// handling, per SPEC_FULL.md's Supplemented Features section.
func EncodeXiphLaceSizes(frameSizes []int) []byte {
	var out []byte
	for _, size := range frameSizes {
		for size >= 255 {
			out = append(out, 255)
			size -= 255
		}
		out = append(out, byte(size))
	}
	return out
}

// DecodeXiphLaceSizes reverses EncodeXiphLaceSizes for n-1 of n laced
// frames (the final frame's size is implicit: total payload minus the sum
// of the preceding sizes), returning the decoded sizes and the number of
// prefix bytes consumed.
func DecodeXiphLaceSizes(data []byte, frameCount int) (sizes []int, consumed int) {
	sizes = make([]int, 0, frameCount-1)
	for i := 0; i < frameCount-1; i++ {
		size := 0
		for consumed < len(data) {
			b := data[consumed]
			consumed++
			size += int(b)
			if b != 255 {
				break
			}
		}
		sizes = append(sizes, size)
	}
	return sizes, consumed
}

// BuildXiphCodecPrivate packs multiple header packets (e.g. Vorbis
// identification/comment/setup, or Theora's three headers) into a single
// CodecPrivate blob using the same lacing convention: a leading packet
// count byte, Xiph-style size prefixes for all but the last packet, then
// the concatenated packet bytes.
func BuildXiphCodecPrivate(packets [][]byte) []byte {
	out := []byte{byte(len(packets) - 1)}
	sizes := make([]int, len(packets)-1)
	for i := 0; i < len(packets)-1; i++ {
		sizes[i] = len(packets[i])
	}
	out = append(out, EncodeXiphLaceSizes(sizes)...)
	for _, p := range packets {
		out = append(out, p...)
	}
	return out
}

// ParseXiphCodecPrivate reverses BuildXiphCodecPrivate.
func ParseXiphCodecPrivate(data []byte) ([][]byte, error) {
	if len(data) == 0 {
		return nil, errShortCodecPrivate
	}
	count := int(data[0]) + 1
	rest := data[1:]
	sizes, consumed := DecodeXiphLaceSizes(rest, count)
	rest = rest[consumed:]
	out := make([][]byte, 0, count)
	for _, size := range sizes {
		if size > len(rest) {
			return nil, errShortCodecPrivate
		}
		out = append(out, rest[:size])
		rest = rest[size:]
	}
	out = append(out, rest) // last packet takes whatever remains
	return out, nil
}
