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

// Package pack runs the second pass of a coastline build: it
// drains staged segments cell by cell in the index table's
// row-major order, bit-packs each segment, and patches the
// cell's index entry once its blocks are written.
package pack

import (
	"github.com/SnellerInc/ccl/cclfmt"
)

// Store is the drain side of the staging store.
type Store interface {
	Drain(c cclfmt.Cell, fn func(verts []cclfmt.Vertex) error) error
}

// Stats summarizes a completed packing pass.
type Stats struct {
	Cells    int   // cells with at least one segment
	Segments int64 // segment blocks written
	Vertices int64 // vertices packed, boundary duplicates included
}

// Run drains every cell of st into out. Cells are visited in
// row-major index order, so blocks land in the file in the same
// order as their index entries. A cell whose stream yields no
// nonempty segments keeps its all-zero index entry.
//
// Progress, when non-nil, is called after each row of 360 cells.
// Any error is fatal to the whole pass; the output file is
// unusable after a failed Run.
func Run(out *cclfmt.Writer, st Store, progress func(rowsDone int)) (Stats, error) {
	var stats Stats
	var blk []byte
	for lat := 0; lat < cclfmt.CellsLat; lat++ {
		for lon := 0; lon < cclfmt.CellsLon; lon++ {
			c := cclfmt.Cell{Lat: lat, Lon: lon}
			addr := out.Offset()
			segs := uint32(0)
			verts := uint32(0)
			err := st.Drain(c, func(run []cclfmt.Vertex) error {
				var err error
				blk, err = cclfmt.EncodeSegment(blk[:0], c, run)
				if err != nil {
					return err
				}
				if err := out.Append(blk); err != nil {
					return err
				}
				segs++
				verts += uint32(len(run))
				return nil
			})
			if err != nil {
				return stats, err
			}
			if segs == 0 {
				continue
			}
			err = out.SetIndex(c, cclfmt.IndexEntry{
				Addr:     uint32(addr),
				Segments: segs,
				Vertices: verts,
			})
			if err != nil {
				return stats, err
			}
			stats.Cells++
			stats.Segments += int64(segs)
			stats.Vertices += int64(verts)
		}
		if progress != nil {
			progress(lat + 1)
		}
	}
	return stats, nil
}
