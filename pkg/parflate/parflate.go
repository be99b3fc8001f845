// Package parflate is a block-structured, parallel-decodable compression
// codec. Input is segmented into fixed-size blocks which are compressed
// independently — LZ77 match search never crosses a block boundary — so a
// decoder can hand every block to a different worker and write each result
// into a precomputed, disjoint slice of the output buffer.
//
// The whole surface is three operations: CompressBound, Compress and
// Decompress, all synchronous and stateless. A compressed stream is
// produced by one Compress call and consumed by one Decompress call; there
// is no streaming mutation across calls.
package parflate

import (
	"errors"
	"fmt"

	"github.com/cespare/xxhash/v2"

	"github.com/parflate/parflate/pkg/block"
	"github.com/parflate/parflate/pkg/format"
)

// Level selects match-search effort. Higher levels search harder and
// compress smaller but slower; the compressed format is identical at every
// level. Out-of-range values are clamped.
type Level int

const (
	// Fastest does the minimum match search.
	Fastest Level = 1
	// Default balances speed and ratio.
	Default Level = 6
	// Best searches exhaustively.
	Best Level = 9
)

// Flags is re-exported from the format package for callers that never
// touch headers directly.
type Flags = format.Flags

// FlagChecksum adds an xxhash64 digest of the uncompressed data to the
// stream, verified on decompression.
const FlagChecksum = format.FlagChecksum

// Block size bounds. Compress uses DefaultBlockSize; the block size is
// recorded in the stream header, so decompression needs no configuration.
const (
	MinBlockSize     = 1 << format.MinBlockLog
	MaxBlockSize     = 1 << format.MaxBlockLog
	DefaultBlockSize = MinBlockSize
)

var (
	// ErrCapacity is returned when the destination buffer cannot hold the
	// compressed stream. Size the buffer with CompressBound to rule it out.
	ErrCapacity = errors.New("parflate: output buffer too small")
	// ErrFormat is returned for a malformed stream header.
	ErrFormat = format.ErrFormat
	// ErrCorruption is returned when a block payload does not decode back
	// to its declared size, or the stream checksum does not match.
	ErrCorruption = block.ErrCorruption
)

// CompressBound returns the worst-case compressed size for n input bytes.
// The bound holds for every level, flag combination and block size: it is
// computed for the smallest block size (the most header overhead) with the
// checksum present and every block stored raw.
func CompressBound(n int) int {
	if n < 0 {
		n = 0
	}
	numBlocks := (n + MinBlockSize - 1) / MinBlockSize
	// One stored-fallback marker byte per block on top of the raw bytes.
	return format.HeaderSize(numBlocks, FlagChecksum) + numBlocks + n
}

// Compress compresses src into dst using DefaultBlockSize and returns the
// compressed size. Size dst with CompressBound; a smaller buffer may work
// on compressible data but the encoder demands worst-case headroom for
// each block as it goes, returning ErrCapacity when it runs out. On error
// dst contents are unspecified. A zero-length src produces a minimal
// header with zero blocks.
func Compress(src, dst []byte, level Level, flags Flags) (int, error) {
	return CompressWithBlockSize(src, dst, level, flags, DefaultBlockSize)
}

// CompressWithBlockSize is Compress with a caller-chosen block size, which
// must be a power of two in [MinBlockSize, MaxBlockSize]. Larger blocks
// trade decode parallelism for ratio.
func CompressWithBlockSize(src, dst []byte, level Level, flags Flags, blockSize int) (int, error) {
	blockLog, err := format.BlockLogFor(blockSize)
	if err != nil {
		return 0, err
	}
	if flags != flags&(FlagChecksum) {
		return 0, fmt.Errorf("%w: unknown flags 0x%02x", ErrFormat, uint8(flags))
	}
	if level < Fastest {
		level = Fastest
	} else if level > Best {
		level = Best
	}

	numBlocks := (len(src) + blockSize - 1) / blockSize
	header := &format.Header{
		Flags:    flags,
		BlockLog: blockLog,
		Blocks:   make([]format.BlockRecord, 0, numBlocks),
	}

	headerSize := format.HeaderSize(numBlocks, flags)
	if len(dst) < headerSize {
		return 0, fmt.Errorf("%w: need %d header bytes, have %d", ErrCapacity, headerSize, len(dst))
	}

	off := headerSize
	for start := 0; start < len(src); start += blockSize {
		end := start + blockSize
		if end > len(src) {
			end = len(src)
		}
		bsrc := src[start:end]

		if len(dst)-off < block.MaxEncodedLen(len(bsrc)) {
			return 0, fmt.Errorf("%w: block %d needs up to %d bytes, have %d",
				ErrCapacity, len(header.Blocks), block.MaxEncodedLen(len(bsrc)), len(dst)-off)
		}
		n, err := block.Encode(dst[off:], bsrc, int(level))
		if err != nil {
			return 0, err
		}
		header.Blocks = append(header.Blocks, format.BlockRecord{
			UncompressedSize: uint32(len(bsrc)),
			CompressedSize:   uint32(n),
		})
		off += n
	}

	if flags&FlagChecksum != 0 {
		header.Checksum = xxhash.Sum64(src)
	}
	if _, err := header.EncodeTo(dst[:headerSize]); err != nil {
		return 0, err
	}
	return off, nil
}
