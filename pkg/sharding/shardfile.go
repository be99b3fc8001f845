package sharding

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Shard file layout: a 4-byte magic, a uint32 LE metadata length, the JSON
// metadata, then the shard payload until EOF.
var shardMagic = [4]byte{'P', 'F', 'L', 'S'}

const maxMetaSize = 64 * 1024 // sanity cap for the JSON header

// Meta describes one shard file. All shards of one scatter share the same
// (OriginalName, Timestamp) pair, which gather uses to group loose files.
type Meta struct {
	OriginalName string `json:"originalName"`
	Timestamp    int64  `json:"timestamp"`
	Index        int    `json:"index"` // 0-based shard index
	Total        int    `json:"total"`
	Threshold    int    `json:"threshold"`
	StreamSize   int64  `json:"streamSize"` // compressed stream size before padding
}

// Validate checks the metadata for sane values.
func (m *Meta) Validate() error {
	if m.OriginalName == "" {
		return errors.New("sharding: metadata missing original name")
	}
	if m.Index < 0 || m.Index >= m.Total {
		return fmt.Errorf("sharding: invalid shard index %d for total %d", m.Index, m.Total)
	}
	if m.Threshold < 2 || m.Threshold >= m.Total {
		return fmt.Errorf("sharding: invalid threshold %d for total %d", m.Threshold, m.Total)
	}
	if m.StreamSize <= 0 {
		return fmt.Errorf("sharding: invalid stream size %d", m.StreamSize)
	}
	return nil
}

// WriteShard serializes one shard file.
func WriteShard(w io.Writer, meta *Meta, data []byte) error {
	if err := meta.Validate(); err != nil {
		return err
	}
	metaBytes, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("sharding: marshal metadata: %w", err)
	}

	if _, err := w.Write(shardMagic[:]); err != nil {
		return fmt.Errorf("sharding: write magic: %w", err)
	}
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(metaBytes)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("sharding: write metadata length: %w", err)
	}
	if _, err := w.Write(metaBytes); err != nil {
		return fmt.Errorf("sharding: write metadata: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("sharding: write payload: %w", err)
	}
	return nil
}

// ReadShard parses one shard file.
func ReadShard(r io.Reader) (*Meta, []byte, error) {
	var head [8]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return nil, nil, fmt.Errorf("sharding: read shard header: %w", err)
	}
	if !bytes.Equal(head[:4], shardMagic[:]) {
		return nil, nil, errors.New("sharding: not a shard file (bad magic)")
	}
	metaLen := binary.LittleEndian.Uint32(head[4:8])
	if metaLen == 0 || metaLen > maxMetaSize {
		return nil, nil, fmt.Errorf("sharding: implausible metadata length %d", metaLen)
	}

	metaBytes := make([]byte, metaLen)
	if _, err := io.ReadFull(r, metaBytes); err != nil {
		return nil, nil, fmt.Errorf("sharding: read metadata: %w", err)
	}
	meta := &Meta{}
	if err := json.Unmarshal(metaBytes, meta); err != nil {
		return nil, nil, fmt.Errorf("sharding: parse metadata: %w", err)
	}
	if err := meta.Validate(); err != nil {
		return nil, nil, err
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, fmt.Errorf("sharding: read payload: %w", err)
	}
	return meta, data, nil
}
