// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package bitpack packs and unpacks fixed-width unsigned integers
// at arbitrary bit offsets within a byte buffer.
//
// Fields are laid out MSB-first: the most-significant bit of a field
// occupies the most-significant free bit of the byte at the field's
// offset. Since every multi-byte quantity passes through this layout,
// files built from these buffers are byte-identical regardless of
// host endianness.
package bitpack

import "fmt"

// MaxWidth is the widest field Pack and Unpack accept.
const MaxWidth = 32

func checkWidth(width int) {
	if width < 1 || width > MaxWidth {
		panic(fmt.Sprintf("bitpack: field width %d out of range [1, %d]", width, MaxWidth))
	}
}

// Pack writes the low [width] bits of v into buf at bit offset off,
// MSB-first. Bits of v above [width] are ignored. Pack panics if
// width is outside [1, MaxWidth] or the field does not fit in buf.
func Pack(buf []byte, off, width int, v uint32) {
	checkWidth(width)
	for width > 0 {
		byt := off >> 3
		bit := off & 7
		n := 8 - bit
		if n > width {
			n = width
		}
		// n bits of v, left-aligned within the free
		// bits of buf[byt]
		chunk := byte(v>>uint(width-n)) & (1<<n - 1)
		shift := uint(8 - bit - n)
		buf[byt] &^= (1<<n - 1) << shift
		buf[byt] |= chunk << shift
		off += n
		width -= n
	}
}

// Unpack reads a [width]-bit unsigned integer from buf at bit offset
// off, inverting Pack. It panics under the same conditions as Pack.
func Unpack(buf []byte, off, width int) uint32 {
	checkWidth(width)
	var v uint32
	for width > 0 {
		byt := off >> 3
		bit := off & 7
		n := 8 - bit
		if n > width {
			n = width
		}
		shift := uint(8 - bit - n)
		chunk := (buf[byt] >> shift) & (1<<n - 1)
		v = v<<uint(n) | uint32(chunk)
		off += n
		width -= n
	}
	return v
}

// Writer is a positioned bit cursor over a byte slice.
// The zero value writes to a nil buffer; use Reset to attach one.
type Writer struct {
	buf []byte
	off int
}

// Reset attaches w to buf and rewinds the cursor to bit zero.
func (w *Writer) Reset(buf []byte) {
	w.buf = buf
	w.off = 0
}

// Put packs the low [width] bits of v at the cursor
// and advances the cursor by [width] bits.
func (w *Writer) Put(width int, v uint32) {
	Pack(w.buf, w.off, width, v)
	w.off += width
}

// Offset returns the cursor position in bits.
func (w *Writer) Offset() int { return w.off }

// Reader is the read-side counterpart of Writer.
type Reader struct {
	buf []byte
	off int
}

// Reset attaches r to buf and rewinds the cursor to bit zero.
func (r *Reader) Reset(buf []byte) {
	r.buf = buf
	r.off = 0
}

// Get unpacks a [width]-bit value at the cursor
// and advances the cursor by [width] bits.
func (r *Reader) Get(width int) uint32 {
	v := Unpack(r.buf, r.off, width)
	r.off += width
	return v
}

// Offset returns the cursor position in bits.
func (r *Reader) Offset() int { return r.off }
