// Package pipeline orchestrates the multi-stage flows the CLI exposes:
// compress-then-scatter on the way out, gather-then-decompress on the way
// back. The codec itself stays buffer-in/buffer-out; this package owns the
// glue between stages.
package pipeline

import (
	"fmt"
	"io"

	"github.com/parflate/parflate/pkg/format"
	"github.com/parflate/parflate/pkg/parflate"
	"github.com/parflate/parflate/pkg/sharding"
)

// Config holds the parameters for the scatter flow.
type Config struct {
	Level     parflate.Level
	Flags     parflate.Flags
	BlockSize int
	Total     int
	Threshold int
}

// Scatter reads the input, compresses it, and erasure-codes the compressed
// stream into shards. It returns the shards and the exact compressed
// stream size, which gather needs to strip the erasure-coding padding.
func Scatter(input io.Reader, cfg Config) ([]sharding.Shard, int64, error) {
	raw, err := io.ReadAll(input)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read input: %w", err)
	}

	buf := make([]byte, parflate.CompressBound(len(raw)))
	n, err := parflate.CompressWithBlockSize(raw, buf, cfg.Level, cfg.Flags, cfg.BlockSize)
	if err != nil {
		return nil, 0, fmt.Errorf("compression failed: %w", err)
	}
	stream := buf[:n]

	scatterer, err := sharding.NewScatterer(cfg.Total, cfg.Threshold)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to initialize scatterer: %w", err)
	}
	shards, err := scatterer.Scatter(stream)
	if err != nil {
		return nil, 0, fmt.Errorf("sharding failed: %w", err)
	}
	return shards, int64(n), nil
}

// Gather reconstructs the compressed stream from shards and decompresses
// it with the requested worker count. The uncompressed size comes from the
// stream's own block table.
func Gather(shards map[int][]byte, streamSize int64, total, threshold, workers int) ([]byte, error) {
	scatterer, err := sharding.NewScatterer(total, threshold)
	if err != nil {
		return nil, err
	}
	stream, err := scatterer.Gather(shards, int(streamSize))
	if err != nil {
		return nil, fmt.Errorf("reconstruction failed: %w", err)
	}

	header, _, err := format.Parse(stream)
	if err != nil {
		return nil, fmt.Errorf("reconstructed stream is invalid: %w", err)
	}

	out := make([]byte, header.TotalUncompressed())
	if _, err := parflate.Decompress(stream, out, workers); err != nil {
		return nil, fmt.Errorf("decompression failed: %w", err)
	}
	return out, nil
}
