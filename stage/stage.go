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

// Package stage implements the between-pass staging store for
// coastline segments.
//
// The store keeps one logical append-only stream per one-degree
// cell. Pass one (ingestion) appends variable-length vertex runs;
// pass two (packing) drains each cell's runs in append order and
// discards the stream. Stores are always constructed empty: any
// staging data left over from an earlier run is cleared before the
// first append.
//
// Three backends are provided: an in-memory map (small inputs), a
// directory of compressed spool files (world-scale inputs), and a
// bbolt database (single staging file). All of them behave
// identically through the Store interface.
package stage

import (
	"encoding/binary"
	"fmt"

	"github.com/SnellerInc/ccl/cclfmt"
)

// Store is a keyed append/drain staging store.
//
// Append and Drain are not safe for concurrent use; the build is
// strictly two sequential passes and the store relies on that.
type Store interface {
	// Append appends one vertex run to the cell's stream.
	// A zero-length run is a legal no-op record.
	// The caller may reuse verts after Append returns.
	Append(c cclfmt.Cell, verts []cclfmt.Vertex) error

	// Drain replays every nonempty run appended to the cell, in
	// append order, and then deletes the cell's stream. The slice
	// passed to fn is only valid for the duration of the call.
	// A cell that was never appended to yields no calls.
	Drain(c cclfmt.Cell, fn func(verts []cclfmt.Vertex) error) error

	// Close releases the store's resources. Streams that were
	// never drained are discarded.
	Close() error
}

// record payload: count u32 | count x (x i32, y i32), little-endian
const recHeadSize = 4

func appendRecord(dst []byte, verts []cclfmt.Vertex) []byte {
	dst = binary.LittleEndian.AppendUint32(dst, uint32(len(verts)))
	for i := range verts {
		dst = binary.LittleEndian.AppendUint32(dst, uint32(verts[i].X))
		dst = binary.LittleEndian.AppendUint32(dst, uint32(verts[i].Y))
	}
	return dst
}

func parseRecord(dst []cclfmt.Vertex, src []byte) ([]cclfmt.Vertex, []byte, error) {
	if len(src) < recHeadSize {
		return nil, nil, fmt.Errorf("stage: record header: %d stray bytes", len(src))
	}
	count := binary.LittleEndian.Uint32(src)
	src = src[recHeadSize:]
	if uint64(len(src)) < 8*uint64(count) {
		return nil, nil, fmt.Errorf("stage: record of %d vertices truncated at %d bytes", count, len(src))
	}
	for i := uint32(0); i < count; i++ {
		dst = append(dst, cclfmt.Vertex{
			X: int32(binary.LittleEndian.Uint32(src[0:])),
			Y: int32(binary.LittleEndian.Uint32(src[4:])),
		})
		src = src[8:]
	}
	return dst, src, nil
}

// streamName is the per-cell stream key; it deliberately matches
// the cell_LON_LAT temporary files of the original builder.
func streamName(c cclfmt.Cell) string {
	return fmt.Sprintf("cell_%03d_%03d", c.Lon, c.Lat)
}
