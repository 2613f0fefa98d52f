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
	"fmt"
	"math"

	"github.com/SnellerInc/ccl/bitpack"

	"golang.org/x/exp/slices"
)

// BiasError is returned when a segment's delta bias exceeds MaxBias,
// which means the segment spans well over one degree.
type BiasError struct {
	Cell Cell
	Axis string // "lon" or "lat"
	Bias int32
}

func (e *BiasError) Error() string {
	return fmt.Sprintf("ccl: %s bias %d out of range in cell (lat %d, lon %d)",
		e.Axis, e.Bias, e.Cell.Lat, e.Cell.Lon)
}

// WidthError is returned when a computed field width
// exceeds the 32-bit packing limit.
type WidthError struct {
	Cell  Cell
	Field string
	Width int
}

func (e *WidthError) Error() string {
	return fmt.Sprintf("ccl: %s width %d exceeds %d bits in cell (lat %d, lon %d)",
		e.Field, e.Width, bitpack.MaxWidth, e.Cell.Lat, e.Cell.Lon)
}

// fieldWidth returns the bit width the format assigns to values
// with range n: round(log2(n)) + 1, nearest integer.
//
// This is not the minimal width for every n (for some values it
// allocates one bit more than a strict ceiling would); it is the
// arithmetic the original encoder used and every existing decoder
// expects, so it is reproduced exactly.
func fieldWidth(n int32) int {
	return int(math.Round(math.Log2(float64(n)))) + 1
}

// EncodeSegment appends the encoded block for one segment to dst
// and returns the extended slice. verts must be nonempty and lie
// entirely within cell; cell is used to annotate range errors.
//
// The block layout, MSB-first:
//
//	5 bits              count field width
//	5 bits              lon offset field width
//	5 bits              lat offset field width
//	count bits          vertex count
//	18 bits             lon bias + MaxBias
//	18 bits             lat bias + MaxBias
//	26 bits             first vertex x
//	25 bits             first vertex y
//	(count-1) pairs     per-vertex (dx+bias, dy+bias)
//
// The block occupies bits/8 + 1 bytes; trailing pad bits are zero.
func EncodeSegment(dst []byte, cell Cell, verts []Vertex) ([]byte, error) {
	count := len(verts)
	if count == 0 {
		return dst, errors.New("ccl: encoding empty segment")
	}

	// delta ranges; a single-vertex segment has no deltas
	// and uses the degenerate convention range=1, bias=0
	var biasX, biasY, rangeX, rangeY int32 = 0, 0, 1, 1
	var dx, dy []int32
	if count > 1 {
		dx = make([]int32, count-1)
		dy = make([]int32, count-1)
		for k := 1; k < count; k++ {
			dx[k-1] = verts[k].X - verts[k-1].X
			dy[k-1] = verts[k].Y - verts[k-1].Y
		}
		minX, maxX := slices.Min(dx), slices.Max(dx)
		minY, maxY := slices.Min(dy), slices.Max(dy)
		biasX, biasY = -minX, -minY
		if biasX > MaxBias || biasX < -MaxBias {
			return dst, &BiasError{Cell: cell, Axis: "lon", Bias: biasX}
		}
		if biasY > MaxBias || biasY < -MaxBias {
			return dst, &BiasError{Cell: cell, Axis: "lat", Bias: biasY}
		}
		rangeX = maxX - minX
		rangeY = maxY - minY
		if rangeX == 0 {
			rangeX = 1
		}
		if rangeY == 0 {
			rangeY = 1
		}
	}

	countBits := fieldWidth(int32(count))
	lonBits := fieldWidth(rangeX)
	latBits := fieldWidth(rangeY)
	if countBits > bitpack.MaxWidth {
		return dst, &WidthError{Cell: cell, Field: "count", Width: countBits}
	}
	if lonBits > bitpack.MaxWidth {
		return dst, &WidthError{Cell: cell, Field: "lon offset", Width: lonBits}
	}
	if latBits > bitpack.MaxWidth {
		return dst, &WidthError{Cell: cell, Field: "lat offset", Width: latBits}
	}

	bits := 3*widthBits + countBits + lonBits + latBits +
		2*biasBits + startLonBits + startLatBits +
		(count-1)*(lonBits+latBits)
	size := bits/8 + 1

	// append a zeroed region so pad bits are
	// deterministic even when dst has spare capacity
	base := len(dst)
	dst = append(dst, make([]byte, size)...)

	var w bitpack.Writer
	w.Reset(dst[base:])
	w.Put(widthBits, uint32(countBits))
	w.Put(widthBits, uint32(lonBits))
	w.Put(widthBits, uint32(latBits))
	w.Put(countBits, uint32(count))
	w.Put(biasBits, uint32(biasX+MaxBias))
	w.Put(biasBits, uint32(biasY+MaxBias))
	w.Put(startLonBits, uint32(verts[0].X))
	w.Put(startLatBits, uint32(verts[0].Y))
	for k := range dx {
		w.Put(lonBits, uint32(dx[k]+biasX))
		w.Put(latBits, uint32(dy[k]+biasY))
	}
	return dst, nil
}

// ErrTruncated is returned by DecodeSegment when src ends
// before the block it describes.
var ErrTruncated = errors.New("ccl: truncated segment block")

// DecodeSegment decodes one segment block from the front of src,
// inverting EncodeSegment. It returns the vertices appended to
// verts and the number of bytes the block occupied.
func DecodeSegment(verts []Vertex, src []byte) ([]Vertex, int, error) {
	if len(src) < 2 {
		return verts, 0, ErrTruncated
	}
	var r bitpack.Reader
	r.Reset(src)
	countBits := int(r.Get(widthBits))
	lonBits := int(r.Get(widthBits))
	latBits := int(r.Get(widthBits))
	if countBits < 1 || lonBits < 1 || latBits < 1 {
		return verts, 0, fmt.Errorf("ccl: corrupt segment block: widths %d/%d/%d",
			countBits, lonBits, latBits)
	}
	// enough bytes for the fixed-width head?
	head := 3*widthBits + countBits + 2*biasBits + startLonBits + startLatBits
	if len(src)*8 < head {
		return verts, 0, ErrTruncated
	}
	count := int(r.Get(countBits))
	if count < 1 {
		return verts, 0, fmt.Errorf("ccl: corrupt segment block: count %d", count)
	}
	bits := head + (count-1)*(lonBits+latBits)
	size := bits/8 + 1
	if len(src) < size {
		return verts, 0, ErrTruncated
	}
	biasX := int32(r.Get(biasBits)) - MaxBias
	biasY := int32(r.Get(biasBits)) - MaxBias
	v := Vertex{
		X: int32(r.Get(startLonBits)),
		Y: int32(r.Get(startLatBits)),
	}
	verts = append(verts, v)
	for k := 1; k < count; k++ {
		v.X += int32(r.Get(lonBits)) - biasX
		v.Y += int32(r.Get(latBits)) - biasY
		verts = append(verts, v)
	}
	return verts, size, nil
}
