// Package sharding distributes a compressed stream across N shard files of
// which any T reconstruct it, using Reed-Solomon erasure coding. It sits
// outside the codec proper: shards carry an already-compressed parflate
// stream, and gathering yields that stream back byte-for-byte.
package sharding

import (
	"bytes"
	"fmt"

	"github.com/klauspost/reedsolomon"
)

// Shard is one erasure-coded fragment of a compressed stream.
type Shard struct {
	Index int // 0-based
	Data  []byte
}

// Scatterer splits streams into Total shards, any Threshold of which
// reconstruct the original.
type Scatterer struct {
	Total     int
	Threshold int
}

// NewScatterer validates the shard geometry. At least one parity shard is
// required, so Threshold must be strictly below Total.
func NewScatterer(total, threshold int) (*Scatterer, error) {
	if threshold < 2 {
		return nil, fmt.Errorf("sharding: threshold %d must be at least 2", threshold)
	}
	if threshold >= total {
		return nil, fmt.Errorf("sharding: threshold %d must be below total %d", threshold, total)
	}
	if total > 256 {
		return nil, fmt.Errorf("sharding: total %d exceeds 256 shards", total)
	}
	return &Scatterer{Total: total, Threshold: threshold}, nil
}

// Scatter erasure-codes stream into Total shards. The stream is padded to
// equal shard sizes by the encoder; Gather trims it back using the stream
// size recorded in the shard metadata.
func (s *Scatterer) Scatter(stream []byte) ([]Shard, error) {
	enc, err := reedsolomon.New(s.Threshold, s.Total-s.Threshold)
	if err != nil {
		return nil, fmt.Errorf("sharding: %w", err)
	}

	parts, err := enc.Split(stream)
	if err != nil {
		return nil, fmt.Errorf("sharding: split: %w", err)
	}
	if err := enc.Encode(parts); err != nil {
		return nil, fmt.Errorf("sharding: encode parity: %w", err)
	}

	shards := make([]Shard, len(parts))
	for i, data := range parts {
		shards[i] = Shard{Index: i, Data: data}
	}
	return shards, nil
}

// Gather reconstructs the stream from at least Threshold shards, keyed by
// 0-based shard index. streamSize trims the reconstruction back to the
// exact pre-padding length.
func (s *Scatterer) Gather(shards map[int][]byte, streamSize int) ([]byte, error) {
	enc, err := reedsolomon.New(s.Threshold, s.Total-s.Threshold)
	if err != nil {
		return nil, fmt.Errorf("sharding: %w", err)
	}

	parts := make([][]byte, s.Total)
	have := 0
	for i := 0; i < s.Total; i++ {
		if data, ok := shards[i]; ok {
			parts[i] = data
			have++
		}
	}
	if have < s.Threshold {
		return nil, fmt.Errorf("sharding: have %d shards, need %d", have, s.Threshold)
	}

	if err := enc.Reconstruct(parts); err != nil {
		return nil, fmt.Errorf("sharding: reconstruct: %w", err)
	}

	var buf bytes.Buffer
	for i := 0; i < s.Threshold; i++ {
		if len(parts[i]) == 0 {
			return nil, fmt.Errorf("sharding: empty data shard %d after reconstruction", i)
		}
		buf.Write(parts[i])
	}

	joined := buf.Bytes()
	if streamSize < 0 || streamSize > len(joined) {
		return nil, fmt.Errorf("sharding: stream size %d inconsistent with %d reconstructed bytes", streamSize, len(joined))
	}
	return joined[:streamSize], nil
}
