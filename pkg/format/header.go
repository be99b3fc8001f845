// Package format defines the compressed stream layout: a fixed header
// carrying the block table, followed by the concatenated block payloads.
//
// Everything a decoder needs to locate any block — payload offset, payload
// size, output offset, output size — is derivable from the header alone,
// without scanning payload bytes. That property is what lets the
// decompressor hand each block to a different worker up front.
package format

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/bits"
)

// Magic identifies a parflate stream.
var Magic = [4]byte{'P', 'F', 'L', 'T'}

// Version is the current format version.
const Version = 1

// Flags is the stream-level option bit-set. Unknown bits are rejected on
// both the compress and decompress paths.
type Flags uint8

const (
	// FlagChecksum stores an xxhash64 digest of the uncompressed data in
	// the header; decompression verifies it after all blocks decode.
	FlagChecksum Flags = 1 << 0

	flagsKnown = FlagChecksum
)

// Block size limits. Sizes must be powers of two so the header can carry
// the exponent in one byte.
const (
	MinBlockLog = 16 // 64 KiB
	MaxBlockLog = 18 // 256 KiB
)

const (
	fixedSize = 12 // magic(4) version(1) flags(1) blockLog(1) reserved(1) numBlocks(4)

	// BlockRecordSize is the encoded size of one block table entry.
	BlockRecordSize = 8
	// ChecksumSize is the encoded size of the optional digest.
	ChecksumSize = 8
)

// ErrFormat is returned for a malformed or inconsistent stream header.
var ErrFormat = errors.New("parflate: malformed stream")

// BlockRecord describes one block in the table.
type BlockRecord struct {
	UncompressedSize uint32
	CompressedSize   uint32
}

// Header is the parsed stream header.
type Header struct {
	Flags    Flags
	BlockLog uint8
	Checksum uint64 // meaningful only when FlagChecksum is set
	Blocks   []BlockRecord
}

// HeaderSize returns the encoded header size for a stream with the given
// block count and flags.
func HeaderSize(numBlocks int, flags Flags) int {
	n := fixedSize + numBlocks*BlockRecordSize
	if flags&FlagChecksum != 0 {
		n += ChecksumSize
	}
	return n
}

// Size returns the encoded size of h.
func (h *Header) Size() int {
	return HeaderSize(len(h.Blocks), h.Flags)
}

// TotalUncompressed sums the per-block uncompressed sizes.
func (h *Header) TotalUncompressed() int {
	total := 0
	for _, b := range h.Blocks {
		total += int(b.UncompressedSize)
	}
	return total
}

// TotalCompressed sums the per-block payload sizes.
func (h *Header) TotalCompressed() int {
	total := 0
	for _, b := range h.Blocks {
		total += int(b.CompressedSize)
	}
	return total
}

// EncodeTo writes the header into dst and returns the encoded size.
func (h *Header) EncodeTo(dst []byte) (int, error) {
	size := h.Size()
	if len(dst) < size {
		return 0, fmt.Errorf("%w: header needs %d bytes, have %d", ErrFormat, size, len(dst))
	}
	copy(dst[0:4], Magic[:])
	dst[4] = Version
	dst[5] = byte(h.Flags)
	dst[6] = h.BlockLog
	dst[7] = 0
	binary.LittleEndian.PutUint32(dst[8:12], uint32(len(h.Blocks)))
	off := fixedSize
	if h.Flags&FlagChecksum != 0 {
		binary.LittleEndian.PutUint64(dst[off:off+8], h.Checksum)
		off += ChecksumSize
	}
	for _, b := range h.Blocks {
		binary.LittleEndian.PutUint32(dst[off:off+4], b.UncompressedSize)
		binary.LittleEndian.PutUint32(dst[off+4:off+8], b.CompressedSize)
		off += BlockRecordSize
	}
	return off, nil
}

// Parse reads and validates a stream header from src, returning the header
// and its encoded size. The whole of src must be accounted for: header
// plus the payload bytes the block table declares, nothing more and
// nothing less.
func Parse(src []byte) (*Header, int, error) {
	if len(src) < fixedSize {
		return nil, 0, fmt.Errorf("%w: truncated header (%d bytes)", ErrFormat, len(src))
	}
	if src[0] != Magic[0] || src[1] != Magic[1] || src[2] != Magic[2] || src[3] != Magic[3] {
		return nil, 0, fmt.Errorf("%w: bad magic", ErrFormat)
	}
	if src[4] != Version {
		return nil, 0, fmt.Errorf("%w: unsupported version %d", ErrFormat, src[4])
	}
	flags := Flags(src[5])
	if flags&^flagsKnown != 0 {
		return nil, 0, fmt.Errorf("%w: unknown flags 0x%02x", ErrFormat, src[5])
	}
	blockLog := src[6]
	if blockLog < MinBlockLog || blockLog > MaxBlockLog {
		return nil, 0, fmt.Errorf("%w: block size log %d out of range", ErrFormat, blockLog)
	}
	if src[7] != 0 {
		return nil, 0, fmt.Errorf("%w: nonzero reserved byte", ErrFormat)
	}
	numBlocks := int(binary.LittleEndian.Uint32(src[8:12]))

	headerSize := HeaderSize(numBlocks, flags)
	if headerSize > len(src) {
		return nil, 0, fmt.Errorf("%w: truncated block table", ErrFormat)
	}

	h := &Header{
		Flags:    flags,
		BlockLog: blockLog,
		Blocks:   make([]BlockRecord, numBlocks),
	}
	off := fixedSize
	if flags&FlagChecksum != 0 {
		h.Checksum = binary.LittleEndian.Uint64(src[off : off+8])
		off += ChecksumSize
	}

	blockSize := uint32(1) << blockLog
	payload := 0
	for i := range h.Blocks {
		u := binary.LittleEndian.Uint32(src[off : off+4])
		c := binary.LittleEndian.Uint32(src[off+4 : off+8])
		off += BlockRecordSize

		if u == 0 || u > blockSize {
			return nil, 0, fmt.Errorf("%w: block %d declares %d uncompressed bytes (block size %d)", ErrFormat, i, u, blockSize)
		}
		if i < len(h.Blocks)-1 && u != blockSize {
			return nil, 0, fmt.Errorf("%w: non-final block %d is short (%d of %d bytes)", ErrFormat, i, u, blockSize)
		}
		if c == 0 || c > u+1 {
			return nil, 0, fmt.Errorf("%w: block %d declares %d compressed bytes for %d uncompressed", ErrFormat, i, c, u)
		}
		h.Blocks[i] = BlockRecord{UncompressedSize: u, CompressedSize: c}
		payload += int(c)
	}

	if headerSize+payload != len(src) {
		return nil, 0, fmt.Errorf("%w: stream is %d bytes, header declares %d", ErrFormat, len(src), headerSize+payload)
	}
	return h, headerSize, nil
}

// BlockLogFor returns the header exponent for a power-of-two block size.
func BlockLogFor(blockSize int) (uint8, error) {
	if blockSize <= 0 || bits.OnesCount(uint(blockSize)) != 1 {
		return 0, fmt.Errorf("parflate: block size %d is not a power of two", blockSize)
	}
	log := uint8(bits.TrailingZeros(uint(blockSize)))
	if log < MinBlockLog || log > MaxBlockLog {
		return 0, fmt.Errorf("parflate: block size %d outside [%d, %d]", blockSize, 1<<MinBlockLog, 1<<MaxBlockLog)
	}
	return log, nil
}
