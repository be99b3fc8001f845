package block

// DEFLATE-style token alphabet. Literals occupy symbols 0-255, symbol 256
// ends a block, symbols 257-285 are match lengths 3-258 and the separate
// distance alphabet covers 1-32768. The bit layout is our own; only the
// alphabet shape is shared with RFC 1951.

const (
	numLitLenSymbols = 286
	numDistSymbols   = 30

	symEndOfBlock  = 256
	firstLengthSym = 257

	// MinMatch is the shortest back-reference the compressor will emit.
	MinMatch = 4
	// MaxMatch is the longest representable back-reference.
	MaxMatch = 258
	// MaxDistance is the longest representable back-reference distance.
	// It also caps the match-search window inside a block.
	MaxDistance = 32768
)

var lengthBase = [29]uint16{
	3, 4, 5, 6, 7, 8, 9, 10, 11, 13, 15, 17, 19, 23, 27, 31,
	35, 43, 51, 59, 67, 83, 99, 115, 131, 163, 195, 227, 258,
}

var lengthExtraBits = [29]uint8{
	0, 0, 0, 0, 0, 0, 0, 0, 1, 1, 1, 1, 2, 2, 2, 2,
	3, 3, 3, 3, 4, 4, 4, 4, 5, 5, 5, 5, 0,
}

var distBase = [30]uint16{
	1, 2, 3, 4, 5, 7, 9, 13, 17, 25, 33, 49, 65, 97, 129, 193,
	257, 385, 513, 769, 1025, 1537, 2049, 3073, 4097, 6145, 8193, 12289, 16385, 24577,
}

var distExtraBits = [30]uint8{
	0, 0, 0, 0, 1, 1, 2, 2, 3, 3, 4, 4, 5, 5, 6, 6,
	7, 7, 8, 8, 9, 9, 10, 10, 11, 11, 12, 12, 13, 13,
}

// lengthSlot maps (length - 3) to its symbol index; distSlot maps
// (distance - 1) to its symbol index.
var (
	lengthSlot [MaxMatch - 2]uint8
	distSlot   [MaxDistance]uint8
)

func init() {
	for slot := 0; slot < len(lengthBase); slot++ {
		lo := int(lengthBase[slot])
		hi := lo + 1<<lengthExtraBits[slot] - 1
		if hi > MaxMatch {
			hi = MaxMatch
		}
		for l := lo; l <= hi; l++ {
			lengthSlot[l-3] = uint8(slot)
		}
	}
	// Length 258 gets its dedicated zero-extra-bits symbol.
	lengthSlot[MaxMatch-3] = 28

	for slot := 0; slot < len(distBase); slot++ {
		lo := int(distBase[slot])
		hi := lo + 1<<distExtraBits[slot] - 1
		if hi > MaxDistance {
			hi = MaxDistance
		}
		for d := lo; d <= hi; d++ {
			distSlot[d-1] = uint8(slot)
		}
	}
}
