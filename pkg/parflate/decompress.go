package parflate

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"

	"github.com/parflate/parflate/pkg/block"
	"github.com/parflate/parflate/pkg/format"
)

// extent is one block's slice of the compressed input and its disjoint
// slice of the output buffer.
type extent struct {
	in  []byte
	out []byte
}

// Decompress expands src into dst and returns the number of bytes written,
// which is always len(dst) on success. dst must be exactly the total
// uncompressed size (the caller knows it out-of-band, or reads it from the
// block table via format.Parse).
//
// numWorkers sets the decode parallelism: 0 or 1 decodes sequentially,
// larger values decode up to that many blocks concurrently. Every worker
// writes into its own precomputed, disjoint slice of dst, so workers never
// synchronize with each other. The call returns only after all blocks are
// done. On failure some disjoint regions of dst may have been written; the
// output must not be treated as valid.
func Decompress(src, dst []byte, numWorkers int) (int, error) {
	header, headerSize, err := format.Parse(src)
	if err != nil {
		return 0, err
	}
	if header.TotalUncompressed() != len(dst) {
		return 0, fmt.Errorf("%w: stream holds %d uncompressed bytes, output buffer is %d",
			ErrFormat, header.TotalUncompressed(), len(dst))
	}

	numBlocks := len(header.Blocks)
	if numBlocks == 0 {
		return 0, nil
	}

	// Precompute each block's input and output extents. Offsets derive
	// from the header alone, which is what makes the blocks independently
	// decodable with no sequential pre-pass.
	extents := make([]extent, numBlocks)
	inOff, outOff := headerSize, 0
	for i, b := range header.Blocks {
		extents[i] = extent{
			in:  src[inOff : inOff+int(b.CompressedSize)],
			out: dst[outOff : outOff+int(b.UncompressedSize)],
		}
		inOff += int(b.CompressedSize)
		outOff += int(b.UncompressedSize)
	}

	if numWorkers > numBlocks {
		numWorkers = numBlocks
	}

	if numWorkers <= 1 {
		for i := range extents {
			if err := block.Decode(extents[i].in, extents[i].out); err != nil {
				return 0, fmt.Errorf("block %d: %w", i, err)
			}
		}
	} else if err := decodeParallel(extents, numWorkers); err != nil {
		return 0, err
	}

	if header.Flags&format.FlagChecksum != 0 {
		if sum := xxhash.Sum64(dst); sum != header.Checksum {
			return 0, fmt.Errorf("%w: checksum mismatch (got %016x, want %016x)",
				ErrCorruption, sum, header.Checksum)
		}
	}
	return len(dst), nil
}

// decodeParallel fans block decode tasks out over a per-call worker pool
// and joins before returning. The first failure wins; once a failure is
// recorded the remaining tasks are skipped so the call returns promptly.
func decodeParallel(extents []extent, numWorkers int) error {
	jobs := make(chan int, len(extents))
	for i := range extents {
		jobs <- i
	}
	close(jobs)

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
		failed   atomic.Bool
	)
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if failed.Load() {
					continue
				}
				if err := block.Decode(extents[i].in, extents[i].out); err != nil {
					failed.Store(true)
					errOnce.Do(func() {
						firstErr = fmt.Errorf("block %d: %w", i, err)
					})
				}
			}
		}()
	}
	wg.Wait()
	return firstErr
}
