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

// Package cclfmt implements the compressed coastline (CCL)
// file format.
//
// A CCL file stores world-scale vector shoreline data partitioned
// into one-degree cells so that any cell can be addressed and
// decoded without touching the rest of the file. The layout is:
//
//	bytes [0, 128):   ASCII version tag, null-padded
//	bytes [128, 128+64800*12): dense index, one 12-byte entry
//	                  per cell, row-major from lat -90, lon -180
//	remainder:        concatenated segment blocks, in the same
//	                  row-major cell order as the index
//
// Each segment block is self-describing: it begins with three 5-bit
// field widths, and every subsequent field is bit-packed MSB-first
// (see EncodeSegment). All multi-byte integers in the file pass
// through the MSB-first bit packer, so the format is byte-identical
// across hosts of either endianness.
package cclfmt

// Version is the 128-byte file tag, before null padding.
// It is part of the on-disk format and must not change.
const Version = "PFM Software - Compressed Coastline file V1.0 - 07/10/06\n"

const (
	// VersionSize is the byte size of the null-padded version tag.
	VersionSize = 128

	// CellsLat and CellsLon are the index table dimensions.
	CellsLat = 180
	CellsLon = 360

	// IndexEntrySize is the encoded size of one IndexEntry.
	IndexEntrySize = 12

	// IndexSize is the byte size of the dense index table.
	IndexSize = CellsLat * CellsLon * IndexEntrySize

	// DataStart is the file offset of the first segment block.
	DataStart = VersionSize + IndexSize

	// Scale converts normalized degrees to integer
	// vertex units (about 1 meter at the equator).
	Scale = 100000

	// MaxBias bounds the per-segment delta bias; a segment
	// whose bias exceeds it spans over a degree and is
	// rejected as bogus.
	MaxBias = 1<<17 - 1

	// MaxX and MaxY are the largest legal vertex coordinates:
	// normalized longitude in [0, 360) and latitude in [0, 180)
	// scaled by Scale.
	MaxX = 360*Scale - 1
	MaxY = 180*Scale - 1
)

// fixed field widths within a segment block
const (
	widthBits    = 5  // the three leading field-width fields
	biasBits     = 18 // bias + MaxBias
	startLonBits = 26 // absolute first-vertex x
	startLatBits = 25 // absolute first-vertex y
)

// Vertex is one point of a segment, in scaled normalized
// coordinates: X = round((lon+180)*Scale), Y = round((lat+90)*Scale).
type Vertex struct {
	X, Y int32
}

// Lon returns the vertex longitude in degrees.
func (v Vertex) Lon() float64 { return float64(v.X)/Scale - 180 }

// Lat returns the vertex latitude in degrees.
func (v Vertex) Lat() float64 { return float64(v.Y)/Scale - 90 }

// Cell identifies a one-degree cell by truncated
// normalized coordinates: Lat in [0, CellsLat),
// Lon in [0, CellsLon).
type Cell struct {
	Lat, Lon int
}

// CellOf returns the cell containing v.
func CellOf(v Vertex) Cell {
	return Cell{Lat: int(v.Y) / Scale, Lon: int(v.X) / Scale}
}

// Valid reports whether c lies inside the index table.
func (c Cell) Valid() bool {
	return c.Lat >= 0 && c.Lat < CellsLat && c.Lon >= 0 && c.Lon < CellsLon
}

// IndexOffset returns the file offset of the cell's index entry.
func (c Cell) IndexOffset() int64 {
	return VersionSize + int64(c.Lat*CellsLon+c.Lon)*IndexEntrySize
}

// IndexEntry is one slot of the dense index table.
// An all-zero entry denotes a cell with no data.
type IndexEntry struct {
	Addr     uint32 // file offset of the cell's first block
	Segments uint32 // number of segment blocks
	Vertices uint32 // total vertices across those blocks
}

// Zero reports whether e denotes an empty cell.
func (e IndexEntry) Zero() bool {
	return e == IndexEntry{}
}

// encode packs e into 12 bytes, MSB-first like every
// other multi-byte field in the file.
func (e IndexEntry) encode(dst []byte) {
	putU32(dst[0:], e.Addr)
	putU32(dst[4:], e.Segments)
	putU32(dst[8:], e.Vertices)
}

func decodeIndexEntry(src []byte) IndexEntry {
	return IndexEntry{
		Addr:     getU32(src[0:]),
		Segments: getU32(src[4:]),
		Vertices: getU32(src[8:]),
	}
}

func putU32(dst []byte, v uint32) {
	dst[0] = byte(v >> 24)
	dst[1] = byte(v >> 16)
	dst[2] = byte(v >> 8)
	dst[3] = byte(v)
}

func getU32(src []byte) uint32 {
	return uint32(src[0])<<24 | uint32(src[1])<<16 | uint32(src[2])<<8 | uint32(src[3])
}
