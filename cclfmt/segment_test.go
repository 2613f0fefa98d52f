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

package cclfmt

import (
	"errors"
	"math/rand"
	"testing"

	"golang.org/x/exp/slices"
)

func TestFieldWidth(t *testing.T) {
	// nearest-integer log2, not a strict ceiling;
	// the boundary sits between 181 and 182
	cases := []struct {
		n    int32
		want int
	}{
		{1, 1},
		{2, 2},
		{3, 3},
		{4, 3},
		{5, 3},
		{7, 4},
		{8, 4},
		{11, 4},
		{12, 5},
		{181, 8},
		{182, 9},
		{131071, 18},
	}
	for _, c := range cases {
		if got := fieldWidth(c.n); got != c.want {
			t.Errorf("fieldWidth(%d) = %d, want %d", c.n, got, c.want)
		}
	}
}

func testCell() Cell { return Cell{Lat: 100, Lon: 190} }

func testSegment() []Vertex {
	return []Vertex{
		{X: 19000000, Y: 10000000},
		{X: 19000005, Y: 10000010},
		{X: 19000003, Y: 10000007},
	}
}

func TestEncodeLayout(t *testing.T) {
	blk, err := EncodeSegment(nil, testCell(), testSegment())
	if err != nil {
		t.Fatal(err)
	}
	// widths: count=3 -> 3 bits, range_x=7 -> 4 bits,
	// range_y=13 -> 5 bits; 132 bits total -> 17 bytes
	if len(blk) != 17 {
		t.Fatalf("block is %d bytes, want 17", len(blk))
	}
	// leading fields, assembled by hand:
	// 00011|00100|00101|011|100000... -> 0x19 0x0a 0xe0
	if blk[0] != 0x19 || blk[1] != 0x0a || blk[2] != 0xe0 {
		t.Errorf("block head % x, want 19 0a e0", blk[:3])
	}
}

func TestRoundTrip(t *testing.T) {
	want := testSegment()
	blk, err := EncodeSegment(nil, testCell(), want)
	if err != nil {
		t.Fatal(err)
	}
	got, n, err := DecodeSegment(nil, blk)
	if err != nil {
		t.Fatal(err)
	}
	if n != len(blk) {
		t.Errorf("decoded %d bytes, block is %d", n, len(blk))
	}
	if !slices.Equal(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestRoundTripRandom(t *testing.T) {
	rn := rand.New(rand.NewSource(1))
	cell := Cell{Lat: 90, Lon: 180}
	for iter := 0; iter < 500; iter++ {
		count := 1 + rn.Intn(200)
		verts := make([]Vertex, count)
		// random walk within the cell
		x := int32(cell.Lon*Scale) + rn.Int31n(Scale)
		y := int32(cell.Lat*Scale) + rn.Int31n(Scale)
		for i := range verts {
			verts[i] = Vertex{X: x, Y: y}
			x += rn.Int31n(2001) - 1000
			y += rn.Int31n(2001) - 1000
		}
		blk, err := EncodeSegment(nil, cell, verts)
		if err != nil {
			t.Fatal(err)
		}
		got, n, err := DecodeSegment(nil, blk)
		if err != nil {
			t.Fatalf("iter %d: %s", iter, err)
		}
		if n != len(blk) {
			t.Fatalf("iter %d: decoded %d of %d bytes", iter, n, len(blk))
		}
		if !slices.Equal(got, verts) {
			t.Fatalf("iter %d: round trip mismatch", iter)
		}
	}
}

func TestSingleVertex(t *testing.T) {
	// no deltas: range=1, bias=0 by convention
	verts := []Vertex{{X: 35999999, Y: 17999999}}
	blk, err := EncodeSegment(nil, Cell{Lat: 179, Lon: 359}, verts)
	if err != nil {
		t.Fatal(err)
	}
	// 15+1+1+1+36+51 = 105 bits -> 14 bytes
	if len(blk) != 14 {
		t.Errorf("block is %d bytes, want 14", len(blk))
	}
	got, _, err := DecodeSegment(nil, blk)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(got, verts) {
		t.Errorf("got %v, want %v", got, verts)
	}
}

func TestAppendReuse(t *testing.T) {
	// appending into a dirty buffer must still
	// produce deterministic pad bits
	dirty := make([]byte, 0, 256)
	dirty = append(dirty, make([]byte, 256)...)
	for i := range dirty {
		dirty[i] = 0xff
	}
	dirty = dirty[:0]
	a, err := EncodeSegment(dirty, testCell(), testSegment())
	if err != nil {
		t.Fatal(err)
	}
	b, err := EncodeSegment(nil, testCell(), testSegment())
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(a, b) {
		t.Errorf("dirty buffer changed encoding:\n% x\n% x", a, b)
	}
}

func TestBiasOutOfRange(t *testing.T) {
	base := Vertex{X: 19000000, Y: 10000000}
	cases := []struct {
		name string
		next Vertex
		axis string
	}{
		{"lon+", Vertex{X: base.X + 131072, Y: base.Y}, "lon"},
		{"lon-", Vertex{X: base.X - 131072, Y: base.Y}, "lon"},
		{"lat+", Vertex{X: base.X, Y: base.Y + 131072}, "lat"},
		{"lat-", Vertex{X: base.X, Y: base.Y - 131072}, "lat"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			blk, err := EncodeSegment(nil, testCell(), []Vertex{base, c.next})
			if err == nil {
				t.Fatal("no error for out-of-range bias")
			}
			var be *BiasError
			if !errors.As(err, &be) {
				t.Fatalf("got %T, want *BiasError", err)
			}
			if be.Axis != c.axis {
				t.Errorf("axis %q, want %q", be.Axis, c.axis)
			}
			if be.Cell != testCell() {
				t.Errorf("cell %v, want %v", be.Cell, testCell())
			}
			if len(blk) != 0 {
				t.Errorf("error left %d bytes in dst", len(blk))
			}
		})
	}
}

func TestBiasLimit(t *testing.T) {
	// exactly MaxBias is still legal
	base := Vertex{X: 19000000, Y: 10000000}
	verts := []Vertex{base, {X: base.X - MaxBias, Y: base.Y}}
	blk, err := EncodeSegment(nil, testCell(), verts)
	if err != nil {
		t.Fatal(err)
	}
	got, _, err := DecodeSegment(nil, blk)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(got, verts) {
		t.Errorf("got %v, want %v", got, verts)
	}
}

func TestDecodeTruncated(t *testing.T) {
	blk, err := EncodeSegment(nil, testCell(), testSegment())
	if err != nil {
		t.Fatal(err)
	}
	for n := 0; n < len(blk); n++ {
		if _, _, err := DecodeSegment(nil, blk[:n]); err == nil {
			t.Errorf("no error decoding %d of %d bytes", n, len(blk))
		}
	}
}
