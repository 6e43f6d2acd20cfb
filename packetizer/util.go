package packetizer

import "time"

func nsToDuration(ns int64) time.Duration { return time.Duration(ns) }
