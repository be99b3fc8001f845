// Package block implements the per-block token coder: LZ77 match search
// feeding a canonical-Huffman bitstream, with a stored fallback that
// bounds the worst case at one marker byte over the raw block size.
//
// A block is fully self-contained. Decoding needs nothing but the block's
// own payload and its declared uncompressed size.
package block

import (
	"errors"
	"fmt"

	"github.com/parflate/parflate/pkg/bitstream"
	"github.com/parflate/parflate/pkg/huffman"
)

// Payload marker bytes.
const (
	markerStored  = 0x00
	markerHuffman = 0x01
)

var (
	// ErrCorruption is returned when a block payload cannot be decoded
	// back to its declared uncompressed size.
	ErrCorruption = errors.New("parflate: corrupted block data")
	// ErrShortBuffer is returned when the destination cannot hold even a
	// stored rendition of the block.
	ErrShortBuffer = errors.New("parflate: block output buffer too small")
)

// MaxEncodedLen returns the worst-case payload size for an n-byte block.
func MaxEncodedLen(n int) int {
	return n + 1
}

// Encode compresses one block of src into dst and returns the payload
// size. dst must hold at least MaxEncodedLen(len(src)) bytes. When the
// entropy-coded form would not beat a stored block, the block is stored
// raw so incompressible data costs exactly one byte of overhead.
func Encode(dst, src []byte, level int) (int, error) {
	if level < 1 {
		level = 1
	} else if level > 9 {
		level = 9
	}
	if len(dst) < MaxEncodedLen(len(src)) {
		return 0, ErrShortBuffer
	}
	if len(src) == 0 {
		dst[0] = markerStored
		return 1, nil
	}

	if n, ok := encodeHuffman(dst, src, level); ok {
		return n, nil
	}

	dst[0] = markerStored
	copy(dst[1:], src)
	return 1 + len(src), nil
}

// encodeHuffman attempts the entropy-coded form. It reports ok=false when
// the result would be at least as large as a stored block.
func encodeHuffman(dst, src []byte, level int) (int, bool) {
	toks := tokenize(src, level)

	var litLenFreq [numLitLenSymbols]int
	var distFreq [numDistSymbols]int
	litLenFreq[symEndOfBlock] = 1
	for _, t := range toks {
		if t.dist == 0 {
			litLenFreq[t.length]++
		} else {
			litLenFreq[firstLengthSym+int(lengthSlot[t.length-3])]++
			distFreq[distSlot[t.dist-1]]++
		}
	}

	litLenLengths := huffman.BuildLengths(litLenFreq[:])
	distLengths := huffman.BuildLengths(distFreq[:])
	litLenCodes := huffman.Codes(litLenLengths)
	distCodes := huffman.Codes(distLengths)

	// The bit writer is bounded one byte short of the stored size, so an
	// encoding that merely ties falls back to stored.
	w := bitstream.NewWriter(dst[1:len(src)])

	for _, l := range litLenLengths {
		w.WriteBits(uint32(l), 4)
	}
	for _, l := range distLengths {
		w.WriteBits(uint32(l), 4)
	}

	for _, t := range toks {
		if t.dist == 0 {
			sym := int(t.length)
			w.WriteBits(uint32(litLenCodes[sym]), uint(litLenLengths[sym]))
			continue
		}
		lSlot := int(lengthSlot[t.length-3])
		sym := firstLengthSym + lSlot
		w.WriteBits(uint32(litLenCodes[sym]), uint(litLenLengths[sym]))
		if eb := lengthExtraBits[lSlot]; eb > 0 {
			w.WriteBits(uint32(t.length-lengthBase[lSlot]), uint(eb))
		}
		dSlot := int(distSlot[t.dist-1])
		w.WriteBits(uint32(distCodes[dSlot]), uint(distLengths[dSlot]))
		if eb := distExtraBits[dSlot]; eb > 0 {
			w.WriteBits(uint32(t.dist-distBase[dSlot]), uint(eb))
		}
	}
	w.WriteBits(uint32(litLenCodes[symEndOfBlock]), uint(litLenLengths[symEndOfBlock]))
	w.Flush()

	if w.Overflowed() {
		return 0, false
	}
	dst[0] = markerHuffman
	return 1 + w.Len(), true
}

// Decode expands one block payload into dst, which must be exactly the
// block's declared uncompressed size. Any structural problem — an unknown
// marker, an invalid code, a back-reference running ahead of the output
// cursor, or a decoded length that misses the declared size — fails the
// block with ErrCorruption.
func Decode(src, dst []byte) error {
	if len(src) < 1 {
		return fmt.Errorf("%w: empty payload", ErrCorruption)
	}
	switch src[0] {
	case markerStored:
		if len(src)-1 != len(dst) {
			return fmt.Errorf("%w: stored block is %d bytes, declared %d", ErrCorruption, len(src)-1, len(dst))
		}
		copy(dst, src[1:])
		return nil
	case markerHuffman:
		return decodeHuffman(src[1:], dst)
	default:
		return fmt.Errorf("%w: unknown block marker 0x%02x", ErrCorruption, src[0])
	}
}

func decodeHuffman(src, dst []byte) error {
	r := bitstream.NewReader(src)

	litLenLengths := make([]uint8, numLitLenSymbols)
	for i := range litLenLengths {
		v, err := r.ReadBits(4)
		if err != nil {
			return fmt.Errorf("%w: truncated code lengths", ErrCorruption)
		}
		litLenLengths[i] = uint8(v)
	}
	distLengths := make([]uint8, numDistSymbols)
	for i := range distLengths {
		v, err := r.ReadBits(4)
		if err != nil {
			return fmt.Errorf("%w: truncated code lengths", ErrCorruption)
		}
		distLengths[i] = uint8(v)
	}

	litLenDec, err := huffman.NewDecoder(litLenLengths)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCorruption, err)
	}
	distDec, err := huffman.NewDecoder(distLengths)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCorruption, err)
	}

	pos := 0
	for {
		sym, err := litLenDec.Decode(r)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrCorruption, err)
		}
		switch {
		case sym < symEndOfBlock:
			if pos >= len(dst) {
				return fmt.Errorf("%w: output overrun", ErrCorruption)
			}
			dst[pos] = byte(sym)
			pos++
		case sym == symEndOfBlock:
			if pos != len(dst) {
				return fmt.Errorf("%w: decoded %d bytes, declared %d", ErrCorruption, pos, len(dst))
			}
			return nil
		default:
			lSlot := sym - firstLengthSym
			if lSlot >= len(lengthBase) {
				return fmt.Errorf("%w: invalid length symbol %d", ErrCorruption, sym)
			}
			length := int(lengthBase[lSlot])
			if eb := lengthExtraBits[lSlot]; eb > 0 {
				extra, err := r.ReadBits(uint(eb))
				if err != nil {
					return fmt.Errorf("%w: truncated match length", ErrCorruption)
				}
				length += int(extra)
			}

			if distDec.Empty() {
				return fmt.Errorf("%w: match with empty distance alphabet", ErrCorruption)
			}
			dSlot, err := distDec.Decode(r)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrCorruption, err)
			}
			dist := int(distBase[dSlot])
			if eb := distExtraBits[dSlot]; eb > 0 {
				extra, err := r.ReadBits(uint(eb))
				if err != nil {
					return fmt.Errorf("%w: truncated match distance", ErrCorruption)
				}
				dist += int(extra)
			}

			if dist > pos {
				return fmt.Errorf("%w: distance %d exceeds block progress %d", ErrCorruption, dist, pos)
			}
			if length > len(dst)-pos {
				return fmt.Errorf("%w: output overrun", ErrCorruption)
			}
			// Byte-at-a-time copy: source and destination may overlap
			// when dist < length.
			for i := 0; i < length; i++ {
				dst[pos] = dst[pos-dist]
				pos++
			}
		}
	}
}
