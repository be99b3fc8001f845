// Package huffman implements canonical Huffman coding over small symbol
// alphabets. Code lengths are limited to MaxCodeLen bits so they can be
// serialized in four bits per symbol.
package huffman

import (
	"errors"
	"math/bits"
	"sort"

	"github.com/parflate/parflate/pkg/bitstream"
)

// MaxCodeLen is the longest code the coder will ever assign.
const MaxCodeLen = 15

var (
	// ErrInvalidLengths is returned for an over-subscribed or otherwise
	// impossible code length set.
	ErrInvalidLengths = errors.New("huffman: invalid code lengths")
	// ErrInvalidCode is returned when the bitstream holds no valid code.
	ErrInvalidCode = errors.New("huffman: invalid code")
)

// BuildLengths computes canonical code lengths for the given symbol
// frequencies, limited to MaxCodeLen bits. Symbols with zero frequency get
// length zero. When the optimal tree would exceed the limit, frequencies
// are halved and the tree rebuilt until it fits; this costs a negligible
// amount of compression on pathological inputs.
func BuildLengths(freq []int) []uint8 {
	lengths := make([]uint8, len(freq))

	type leaf struct {
		sym    int
		weight int
	}
	leaves := make([]leaf, 0, len(freq))
	for sym, f := range freq {
		if f > 0 {
			leaves = append(leaves, leaf{sym: sym, weight: f})
		}
	}

	switch len(leaves) {
	case 0:
		return lengths
	case 1:
		lengths[leaves[0].sym] = 1
		return lengths
	}

	for {
		sort.Slice(leaves, func(i, j int) bool { return leaves[i].weight < leaves[j].weight })

		// Two-queue Huffman construction: sorted leaves in one queue,
		// freshly merged nodes (produced in nondecreasing weight order)
		// in the other.
		n := len(leaves)
		weights := make([]int, n, 2*n-1)
		parents := make([]int32, n, 2*n-1)
		for i, l := range leaves {
			weights[i] = l.weight
			parents[i] = -1
		}

		leafNext, nodeNext := 0, n
		pick := func() int {
			if leafNext < n && (nodeNext >= len(weights) || weights[leafNext] <= weights[nodeNext]) {
				leafNext++
				return leafNext - 1
			}
			nodeNext++
			return nodeNext - 1
		}

		for len(weights) < 2*n-1 {
			a := pick()
			b := pick()
			weights = append(weights, weights[a]+weights[b])
			parents = append(parents, -1)
			parents[a] = int32(len(weights) - 1)
			parents[b] = int32(len(weights) - 1)
		}

		overflow := false
		for i := 0; i < n; i++ {
			depth := uint8(0)
			for p := parents[i]; p >= 0; p = parents[p] {
				depth++
			}
			if depth > MaxCodeLen {
				overflow = true
				break
			}
			lengths[leaves[i].sym] = depth
		}
		if !overflow {
			return lengths
		}

		// Flatten the distribution and retry.
		for i := range leaves {
			leaves[i].weight = (leaves[i].weight + 1) / 2
		}
	}
}

// Codes assigns canonical codes for the given lengths. The returned codes
// are bit-reversed, ready to be written LSB-first so that a reader pulling
// single bits sees them most significant bit first.
func Codes(lengths []uint8) []uint16 {
	var count [MaxCodeLen + 1]uint16
	for _, l := range lengths {
		count[l]++
	}
	count[0] = 0

	var nextCode [MaxCodeLen + 1]uint16
	code := uint16(0)
	for l := 1; l <= MaxCodeLen; l++ {
		code = (code + count[l-1]) << 1
		nextCode[l] = code
	}

	codes := make([]uint16, len(lengths))
	for sym, l := range lengths {
		if l == 0 {
			continue
		}
		codes[sym] = reverseBits(nextCode[l], l)
		nextCode[l]++
	}
	return codes
}

func reverseBits(v uint16, n uint8) uint16 {
	return bits.Reverse16(v) >> (16 - n)
}

// Decoder decodes canonical Huffman codes one symbol at a time using the
// counts-and-offsets method.
type Decoder struct {
	count   [MaxCodeLen + 1]uint16
	symbols []uint16
}

// NewDecoder builds a Decoder from canonical code lengths. Over-subscribed
// length sets are rejected; incomplete sets are allowed (unused bit
// patterns simply decode to ErrInvalidCode).
func NewDecoder(lengths []uint8) (*Decoder, error) {
	d := &Decoder{}
	total := 0
	for _, l := range lengths {
		if l > MaxCodeLen {
			return nil, ErrInvalidLengths
		}
		if l > 0 {
			d.count[l]++
			total++
		}
	}
	if total == 0 {
		return d, nil
	}

	left := 1
	for l := 1; l <= MaxCodeLen; l++ {
		left <<= 1
		left -= int(d.count[l])
		if left < 0 {
			return nil, ErrInvalidLengths
		}
	}

	var offs [MaxCodeLen + 2]uint16
	for l := 1; l <= MaxCodeLen; l++ {
		offs[l+1] = offs[l] + d.count[l]
	}
	d.symbols = make([]uint16, total)
	for sym, l := range lengths {
		if l > 0 {
			d.symbols[offs[l]] = uint16(sym)
			offs[l]++
		}
	}
	return d, nil
}

// Empty reports whether the decoder has no symbols at all.
func (d *Decoder) Empty() bool {
	return len(d.symbols) == 0
}

// Decode reads one symbol from r.
func (d *Decoder) Decode(r *bitstream.Reader) (int, error) {
	code, first, index := 0, 0, 0
	for l := 1; l <= MaxCodeLen; l++ {
		b, err := r.ReadBit()
		if err != nil {
			return 0, err
		}
		code |= int(b)
		cnt := int(d.count[l])
		if code-cnt < first {
			return int(d.symbols[index+code-first]), nil
		}
		index += cnt
		first = (first + cnt) << 1
		code <<= 1
	}
	return 0, ErrInvalidCode
}
