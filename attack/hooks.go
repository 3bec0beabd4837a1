package attack

import "github.com/sarchlab/cacheleak/hooking"

// HookPosRoundEnd fires after every sampling pass. The detail is a RoundInfo.
var HookPosRoundEnd = &hooking.HookPos{Name: "RoundEnd"}

// HookPosByteDecided fires when an offset is decided. The detail is a
// ByteResult.
var HookPosByteDecided = &hooking.HookPos{Name: "ByteDecided"}

// HookPosDone fires once when every offset is decided. The detail is the
// Result.
var HookPosDone = &hooking.HookPos{Name: "Done"}

// RoundInfo describes a finished round.
type RoundInfo struct {
	Offset int
	Round  int
	Hits   []uint64
}
