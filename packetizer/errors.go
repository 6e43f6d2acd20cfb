package packetizer

import "github.com/nmaier/mkvengine/internal/mkverr"

var errShortCodecPrivate = mkverr.New(mkverr.InvalidFormat, "codec-private blob truncated")
