// Package bitstream provides LSB-first bit-level access to byte buffers.
// Both the writer and the reader operate on caller-provided slices and
// report overruns instead of growing or panicking, so the callers can
// bound their output precisely.
package bitstream

import "errors"

// ErrExhausted is returned when a read runs past the end of the buffer.
var ErrExhausted = errors.New("bitstream: no bits left")

// Writer packs bits into a fixed byte slice, least significant bit first.
type Writer struct {
	buf      []byte
	off      int
	bitBuf   uint64
	bitCount uint
	overflow bool
}

// NewWriter returns a Writer that fills buf from the start.
func NewWriter(buf []byte) *Writer {
	return &Writer{buf: buf}
}

// WriteBits appends the low `width` bits of v. width must be <= 32.
// Once the buffer is full the writer goes into overflow mode and
// silently drops further writes; check Overflowed after flushing.
func (w *Writer) WriteBits(v uint32, width uint) {
	if w.overflow {
		return
	}
	w.bitBuf |= (uint64(v) & (1<<width - 1)) << w.bitCount
	w.bitCount += width
	for w.bitCount >= 8 {
		if w.off >= len(w.buf) {
			w.overflow = true
			w.bitBuf = 0
			w.bitCount = 0
			return
		}
		w.buf[w.off] = byte(w.bitBuf)
		w.off++
		w.bitBuf >>= 8
		w.bitCount -= 8
	}
}

// Flush pads the pending bits with zeros up to a byte boundary.
func (w *Writer) Flush() {
	if w.overflow || w.bitCount == 0 {
		return
	}
	if w.off >= len(w.buf) {
		w.overflow = true
		return
	}
	w.buf[w.off] = byte(w.bitBuf)
	w.off++
	w.bitBuf = 0
	w.bitCount = 0
}

// Len reports the number of whole bytes written so far.
func (w *Writer) Len() int {
	return w.off
}

// Overflowed reports whether any write did not fit in the buffer.
func (w *Writer) Overflowed() bool {
	return w.overflow
}

// Reader consumes bits from a byte slice, least significant bit first.
type Reader struct {
	buf      []byte
	off      int
	bitBuf   uint64
	bitCount uint
}

// NewReader returns a Reader positioned at the start of buf.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// ReadBits returns the next `width` bits. width must be <= 32.
func (r *Reader) ReadBits(width uint) (uint32, error) {
	for r.bitCount < width {
		if r.off >= len(r.buf) {
			return 0, ErrExhausted
		}
		r.bitBuf |= uint64(r.buf[r.off]) << r.bitCount
		r.off++
		r.bitCount += 8
	}
	v := uint32(r.bitBuf & (1<<width - 1))
	r.bitBuf >>= width
	r.bitCount -= width
	return v, nil
}

// ReadBit returns a single bit.
func (r *Reader) ReadBit() (uint32, error) {
	return r.ReadBits(1)
}
