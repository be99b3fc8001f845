package format_test

import (
	"testing"

	"github.com/parflate/parflate/pkg/format"
)

// FuzzParse feeds random byte streams into the header parser.
// We don't care IF it fails (garbage in, garbage out),
// we only care that it fails GRACEFULLY (returns error, doesn't panic).
func FuzzParse(f *testing.F) {
	// 1. Seed with a minimal valid stream: empty header, no blocks.
	empty := &format.Header{BlockLog: 16}
	stream := make([]byte, empty.Size())
	if _, err := empty.EncodeTo(stream); err != nil {
		f.Fatal(err)
	}
	f.Add(stream)

	// 2. Add a real one-block stream.
	one := &format.Header{
		Flags:    format.FlagChecksum,
		BlockLog: 16,
		Blocks:   []format.BlockRecord{{UncompressedSize: 3, CompressedSize: 4}},
	}
	full := make([]byte, one.Size()+4)
	if _, err := one.EncodeTo(full); err != nil {
		f.Fatal(err)
	}
	f.Add(full)

	// 3. Add completely random seeds.
	f.Add([]byte("random garbage"))
	f.Add([]byte("PFLT"))
	f.Add([]byte{})

	f.Fuzz(func(t *testing.T, data []byte) {
		// If Parse panics, the fuzzer will catch it and report a failure.
		h, _, err := format.Parse(data)
		if err != nil {
			return
		}
		// Accepted streams must be internally consistent.
		if h.Size()+h.TotalCompressed() != len(data) {
			t.Errorf("accepted stream with mismatched sizes: %d+%d vs %d",
				h.Size(), h.TotalCompressed(), len(data))
		}
	})
}
