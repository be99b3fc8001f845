package parflate

import (
	"bytes"
	"errors"
	"math/rand"
	"testing"

	"github.com/parflate/parflate/pkg/format"
)

// makeCorpus builds a test payload of the given size mixing repetitive
// text with some noise, so both the huffman and stored paths get exercised.
func makeCorpus(size int, seed int64) []byte {
	rng := rand.New(rand.NewSource(seed))
	phrase := []byte("the quick brown fox jumps over the lazy dog. ")
	out := make([]byte, 0, size)
	for len(out) < size {
		if rng.Intn(4) == 0 {
			out = append(out, byte(rng.Intn(256)))
		} else {
			out = append(out, phrase...)
		}
	}
	return out[:size]
}

func roundTrip(t *testing.T, src []byte, level Level, flags Flags, workers int) {
	t.Helper()
	packed := make([]byte, CompressBound(len(src)))
	n, err := Compress(src, packed, level, flags)
	if err != nil {
		t.Fatalf("compress (level %d): %v", level, err)
	}
	packed = packed[:n]

	out := make([]byte, len(src))
	m, err := Decompress(packed, out, workers)
	if err != nil {
		t.Fatalf("decompress (workers %d): %v", workers, err)
	}
	if m != len(src) {
		t.Fatalf("decompressed %d bytes, want %d", m, len(src))
	}
	if !bytes.Equal(out, src) {
		t.Fatal("round trip changed the data")
	}
}

func TestRoundTripSizes(t *testing.T) {
	sizes := []int{0, 1, 2, 3, 63, 64, 65, 4096, 65535, 65536, 65537, 200000, 300001}
	for _, size := range sizes {
		src := makeCorpus(size, int64(size))
		for _, level := range []Level{Fastest, Default, Best} {
			for _, workers := range []int{1, 4} {
				roundTrip(t, src, level, FlagChecksum, workers)
			}
		}
	}
}

func TestRoundTripWithoutChecksum(t *testing.T) {
	roundTrip(t, makeCorpus(150000, 7), Default, 0, 4)
}

func TestRoundTripLargerBlocks(t *testing.T) {
	src := makeCorpus(500000, 9)
	for _, blockSize := range []int{MinBlockSize, 131072, MaxBlockSize} {
		packed := make([]byte, CompressBound(len(src)))
		n, err := CompressWithBlockSize(src, packed, Default, FlagChecksum, blockSize)
		if err != nil {
			t.Fatalf("block size %d: %v", blockSize, err)
		}
		out := make([]byte, len(src))
		if _, err := Decompress(packed[:n], out, 4); err != nil {
			t.Fatalf("block size %d: decompress: %v", blockSize, err)
		}
		if !bytes.Equal(out, src) {
			t.Fatalf("block size %d: data mismatch", blockSize)
		}
	}
}

func TestCompressBound(t *testing.T) {
	// Monotonic, and always enough for Compress to succeed.
	prev := CompressBound(0)
	for _, n := range []int{0, 1, 100, 65535, 65536, 65537, 200000, 1 << 20} {
		b := CompressBound(n)
		if b < prev {
			t.Errorf("CompressBound(%d)=%d below previous %d", n, b, prev)
		}
		if b < n {
			t.Errorf("CompressBound(%d)=%d smaller than input", n, b)
		}
		prev = b
	}

	// Worst case: incompressible data must still fit.
	rng := rand.New(rand.NewSource(42))
	src := make([]byte, 200000)
	rng.Read(src)
	dst := make([]byte, CompressBound(len(src)))
	if _, err := Compress(src, dst, Best, FlagChecksum); err != nil {
		t.Fatalf("compress at exact bound failed: %v", err)
	}
}

func TestWorkerCountInvariance(t *testing.T) {
	src := makeCorpus(300000, 3)
	packed := make([]byte, CompressBound(len(src)))
	n, err := Compress(src, packed, Default, FlagChecksum)
	if err != nil {
		t.Fatal(err)
	}
	packed = packed[:n]

	var outputs [][]byte
	for _, workers := range []int{1, 2, 8, 0, -1} {
		out := make([]byte, len(src))
		if _, err := Decompress(packed, out, workers); err != nil {
			t.Fatalf("workers=%d: %v", workers, err)
		}
		outputs = append(outputs, out)
	}
	for i := 1; i < len(outputs); i++ {
		if !bytes.Equal(outputs[0], outputs[i]) {
			t.Fatalf("output differs between worker counts")
		}
	}
}

func TestIncompressibleInput(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	src := make([]byte, 130000)
	rng.Read(src)

	packed := make([]byte, CompressBound(len(src)))
	n, err := Compress(src, packed, Best, FlagChecksum)
	if err != nil {
		t.Fatal(err)
	}
	if n > CompressBound(len(src)) {
		t.Fatalf("compressed size %d exceeds bound %d", n, CompressBound(len(src)))
	}
	roundTrip(t, src, Best, FlagChecksum, 4)
}

func TestZeroRuns(t *testing.T) {
	// 200000 zero bytes at the default 64 KiB block size: three full
	// blocks plus one 3392-byte tail, each compressing to almost nothing.
	src := make([]byte, 200000)
	packed := make([]byte, CompressBound(len(src)))
	n, err := Compress(src, packed, Default, FlagChecksum)
	if err != nil {
		t.Fatal(err)
	}
	packed = packed[:n]

	header, _, err := format.Parse(packed)
	if err != nil {
		t.Fatal(err)
	}
	if len(header.Blocks) != 4 {
		t.Fatalf("got %d blocks, want 4", len(header.Blocks))
	}
	for i := 0; i < 3; i++ {
		if header.Blocks[i].UncompressedSize != 65536 {
			t.Errorf("block %d uncompressed size %d", i, header.Blocks[i].UncompressedSize)
		}
	}
	if header.Blocks[3].UncompressedSize != 200000-3*65536 {
		t.Errorf("tail block size %d", header.Blocks[3].UncompressedSize)
	}
	if n > 4096 {
		t.Errorf("200000 zeros compressed to %d bytes, expected far less", n)
	}

	out := make([]byte, len(src))
	if _, err := Decompress(packed, out, 4); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, src) {
		t.Fatal("zeros round trip mismatch")
	}
}

func TestCompressCapacityErrors(t *testing.T) {
	src := makeCorpus(100000, 5)

	if _, err := Compress(src, nil, Default, 0); !errors.Is(err, ErrCapacity) {
		t.Errorf("nil dst: got %v, want ErrCapacity", err)
	}
	small := make([]byte, 10)
	if _, err := Compress(src, small, Default, 0); !errors.Is(err, ErrCapacity) {
		t.Errorf("tiny dst: got %v, want ErrCapacity", err)
	}

	// Random data needs nearly the full bound; one block short must fail.
	rng := rand.New(rand.NewSource(17))
	rng.Read(src)
	short := make([]byte, len(src)/2)
	if _, err := Compress(src, short, Default, 0); !errors.Is(err, ErrCapacity) {
		t.Errorf("half dst on random data: got %v, want ErrCapacity", err)
	}
}

func TestCompressRejectsBadParameters(t *testing.T) {
	src := []byte("data")
	dst := make([]byte, CompressBound(len(src)))

	for _, bad := range []int{0, 1, 1000, 65537, MaxBlockSize * 2} {
		if _, err := CompressWithBlockSize(src, dst, Default, 0, bad); err == nil {
			t.Errorf("block size %d accepted", bad)
		}
	}
	if _, err := Compress(src, dst, Default, Flags(0x80)); !errors.Is(err, ErrFormat) {
		t.Errorf("unknown flag: got %v, want ErrFormat", err)
	}
}

func TestDecompressErrors(t *testing.T) {
	src := makeCorpus(70000, 11)
	packed := make([]byte, CompressBound(len(src)))
	n, err := Compress(src, packed, Default, FlagChecksum)
	if err != nil {
		t.Fatal(err)
	}
	packed = packed[:n]

	// Output buffer of the wrong size.
	if _, err := Decompress(packed, make([]byte, len(src)-1), 1); !errors.Is(err, ErrFormat) {
		t.Errorf("short output: got %v, want ErrFormat", err)
	}
	if _, err := Decompress(packed, make([]byte, len(src)+1), 1); !errors.Is(err, ErrFormat) {
		t.Errorf("long output: got %v, want ErrFormat", err)
	}

	// Garbage stream.
	if _, err := Decompress([]byte("not a parflate stream"), make([]byte, 10), 1); !errors.Is(err, ErrFormat) {
		t.Errorf("garbage stream: got %v, want ErrFormat", err)
	}
}

func TestCorruptionDetection(t *testing.T) {
	// With the checksum flag set, a byte flip must never yield silently
	// wrong output: either the decode errors or the data survives intact.
	src := makeCorpus(120000, 13)
	packed := make([]byte, CompressBound(len(src)))
	n, err := Compress(src, packed, Default, FlagChecksum)
	if err != nil {
		t.Fatal(err)
	}
	packed = packed[:n]

	rng := rand.New(rand.NewSource(29))
	for trial := 0; trial < 200; trial++ {
		corrupt := make([]byte, len(packed))
		copy(corrupt, packed)
		pos := rng.Intn(len(corrupt))
		corrupt[pos] ^= 1 << uint(rng.Intn(8))

		out := make([]byte, len(src))
		_, err := Decompress(corrupt, out, 4)
		if err == nil && !bytes.Equal(out, src) {
			// A flip in unused padding bits can decode to the original,
			// which is fine. Decoding to anything else must error.
			t.Errorf("trial %d: flipped byte %d produced silently wrong output", trial, pos)
		}
	}
}

func TestEmptyInput(t *testing.T) {
	packed := make([]byte, CompressBound(0))
	n, err := Compress(nil, packed, Default, FlagChecksum)
	if err != nil {
		t.Fatal(err)
	}
	header, _, err := format.Parse(packed[:n])
	if err != nil {
		t.Fatal(err)
	}
	if len(header.Blocks) != 0 {
		t.Errorf("empty input produced %d blocks", len(header.Blocks))
	}
	m, err := Decompress(packed[:n], nil, 4)
	if err != nil || m != 0 {
		t.Errorf("empty decompress: n=%d err=%v", m, err)
	}
}

func TestLevelClamping(t *testing.T) {
	src := makeCorpus(1000, 1)
	dst := make([]byte, CompressBound(len(src)))
	for _, level := range []Level{-5, 0, 100} {
		if _, err := Compress(src, dst, level, 0); err != nil {
			t.Errorf("level %d rejected: %v", level, err)
		}
	}
}
