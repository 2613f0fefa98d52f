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

package bitpack

import (
	"bytes"
	"math/rand"
	"testing"
)

func TestPackLayout(t *testing.T) {
	// fields written MSB-first should produce
	// a predictable byte image
	buf := make([]byte, 4)
	Pack(buf, 0, 5, 0x15)  // 10101
	Pack(buf, 5, 5, 0x0a)  // 01010
	Pack(buf, 10, 6, 0x3f) // 111111
	want := []byte{0xaa, 0xbf, 0x00, 0x00}
	if !bytes.Equal(buf, want) {
		t.Errorf("got % x, want % x", buf, want)
	}
	if got := Unpack(buf, 0, 5); got != 0x15 {
		t.Errorf("field 0: got %#x", got)
	}
	if got := Unpack(buf, 5, 5); got != 0x0a {
		t.Errorf("field 1: got %#x", got)
	}
	if got := Unpack(buf, 10, 6); got != 0x3f {
		t.Errorf("field 2: got %#x", got)
	}
}

func TestPackByteSpan(t *testing.T) {
	// a 32-bit field at a misaligned offset
	// spans five bytes
	buf := make([]byte, 8)
	Pack(buf, 3, 32, 0xdeadbeef)
	if got := Unpack(buf, 3, 32); got != 0xdeadbeef {
		t.Errorf("got %#x, want 0xdeadbeef", got)
	}
	// leading bits untouched
	if buf[0]&0xe0 != 0 {
		t.Errorf("leading bits clobbered: %#x", buf[0])
	}
}

func TestPackMasksValue(t *testing.T) {
	buf := make([]byte, 2)
	Pack(buf, 0, 3, 0xff) // only low 3 bits land
	if got := Unpack(buf, 0, 3); got != 7 {
		t.Errorf("got %d, want 7", got)
	}
	if got := Unpack(buf, 3, 5); got != 0 {
		t.Errorf("trailing bits clobbered: %d", got)
	}
}

func TestPackRandom(t *testing.T) {
	rn := rand.New(rand.NewSource(0x5eed))
	for iter := 0; iter < 1000; iter++ {
		buf := make([]byte, 64)
		type field struct {
			off, width int
			val        uint32
		}
		var fields []field
		off := rn.Intn(7)
		for off+32 < 8*len(buf) {
			w := 1 + rn.Intn(32)
			v := rn.Uint32()
			if w < 32 {
				v &= 1<<w - 1
			}
			Pack(buf, off, w, v)
			fields = append(fields, field{off, w, v})
			off += w
		}
		for i := range fields {
			f := &fields[i]
			if got := Unpack(buf, f.off, f.width); got != f.val {
				t.Fatalf("iter %d: field %d (off %d width %d): got %#x want %#x",
					iter, i, f.off, f.width, got, f.val)
			}
		}
	}
}

func TestWriterReader(t *testing.T) {
	buf := make([]byte, 16)
	var w Writer
	w.Reset(buf)
	w.Put(5, 21)
	w.Put(18, 131071)
	w.Put(26, 1812345)
	w.Put(1, 1)
	if w.Offset() != 50 {
		t.Fatalf("writer offset %d, want 50", w.Offset())
	}
	var r Reader
	r.Reset(buf)
	for _, want := range []struct {
		width int
		val   uint32
	}{
		{5, 21},
		{18, 131071},
		{26, 1812345},
		{1, 1},
	} {
		if got := r.Get(want.width); got != want.val {
			t.Errorf("width %d: got %d, want %d", want.width, got, want.val)
		}
	}
	if r.Offset() != w.Offset() {
		t.Errorf("reader offset %d != writer offset %d", r.Offset(), w.Offset())
	}
}

func TestBadWidth(t *testing.T) {
	for _, width := range []int{0, -1, 33} {
		func() {
			defer func() {
				if recover() == nil {
					t.Errorf("width %d: no panic", width)
				}
			}()
			Pack(make([]byte, 8), 0, width, 0)
		}()
	}
}
