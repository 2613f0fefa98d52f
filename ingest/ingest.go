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

// Package ingest splits input shapes into per-cell polyline
// segments and stages them for the packing pass.
//
// A shape's vertex stream is cut into segments at two kinds of
// boundary: the start of a new part (ring) within the shape, and
// any vertex whose one-degree cell differs from its predecessor's.
// A mid-part cell crossing duplicates the boundary vertex into
// both cells so that a renderer drawing one cell at a time still
// draws the connecting stroke.
package ingest

import (
	"github.com/SnellerInc/ccl/cclfmt"
)

// Store is the staging sink for finished segments.
type Store interface {
	Append(c cclfmt.Cell, verts []cclfmt.Vertex) error
}

// Ingester runs pass one: it consumes shapes from one or more
// sources and appends per-cell segments to Store.
//
// The segment splitter is a two-state machine: either no segment
// is open, or one segment is open and bound to a cell. Vertices
// arrive one at a time and are classified by whether they start a
// ring and whether they left the open segment's cell.
type Ingester struct {
	// Store receives finished segments. It must be set.
	Store Store

	// Logf, when non-nil, receives diagnostics for non-fatal
	// anomalies (the 180/-180 longitude seam clamp).
	Logf func(f string, args ...interface{})

	// Progress, when non-nil, is called after every shape with
	// the number of shapes consumed from the current source and
	// the source's total (-1 when unknown).
	Progress func(done, total int)

	seg     []cclfmt.Vertex // open segment, valid when active
	segCell cclfmt.Cell
	active  bool

	prev     cclfmt.Vertex // previous vertex, valid when havePrev
	prevCell cclfmt.Cell
	havePrev bool

	total int64
}

// Total returns the number of raw input vertices consumed so far,
// including those of skipped degenerate shapes.
func (in *Ingester) Total() int64 { return in.total }

// nint rounds half away from zero, matching the arithmetic the
// format was built with.
func nint(x float64) int32 {
	if x < 0 {
		return int32(x - 0.5)
	}
	return int32(x + 0.5)
}

// Run consumes every shape of src and stages its segments.
// The open segment is flushed when the source is exhausted, so
// segments never span sources; src is not closed.
func (in *Ingester) Run(src Source) error {
	info := src.Info()
	done := 0
	for src.Next() {
		shape := src.Shape()
		in.total += int64(len(shape.X))
		if len(shape.X) >= 2 {
			if err := in.shape(&shape); err != nil {
				return err
			}
		}
		done++
		if in.Progress != nil {
			in.Progress(done, info.Shapes)
		}
	}
	if err := src.Err(); err != nil {
		return err
	}
	// flush the open segment and forget the previous vertex:
	// the next source starts a fresh segment no matter where
	// its first vertex lands
	if in.active {
		if err := in.flush(); err != nil {
			return err
		}
		in.active = false
	}
	in.havePrev = false
	return nil
}

func (in *Ingester) shape(s *Shape) error {
	ring := 1 // next part index to watch for
	for j := range s.X {
		start := j == 0
		if ring < len(s.Parts) && int(s.Parts[ring]) == j {
			start = true
			ring++
		}
		if err := in.vertex(start, s.X[j], s.Y[j]); err != nil {
			return err
		}
	}
	return nil
}

// vertex advances the splitter by one input vertex.
func (in *Ingester) vertex(start bool, lon, lat float64) error {
	// shift to positive degrees: lon in [0,360), lat in [0,180)
	lon += 180
	lat += 90

	// both antimeridian cases collapse onto the same cell edge
	if lon == 360.0 {
		if in.Logf != nil {
			in.Logf("clamping longitude seam point %.11f %.11f", lon-180, lat-90)
		}
		lon = 180.0
	}

	// the cell comes from truncating the degree value; the vertex
	// from rounding the scaled value. Keep both exactly as the
	// format has always computed them.
	c := cclfmt.Cell{Lat: int(lat), Lon: int(lon)}
	v := cclfmt.Vertex{X: nint(lon * cclfmt.Scale), Y: nint(lat * cclfmt.Scale)}

	switch {
	case in.havePrev && c != in.prevCell:
		if start {
			// ring boundary coincides with the cell change:
			// close out the old cell, nothing carries over
			if err := in.flush(); err != nil {
				return err
			}
			in.open(c)
		} else {
			// mid-ring crossing: the previous vertex ends the
			// old segment and seeds the new one, so adjacency
			// survives cell-by-cell decoding
			in.seg = append(in.seg, in.prev)
			if err := in.flush(); err != nil {
				return err
			}
			in.open(c)
			in.seg = append(in.seg, in.prev)
		}
	case start && in.active:
		if err := in.flush(); err != nil {
			return err
		}
		in.open(c)
	case !in.active:
		in.open(c)
	}

	in.seg = append(in.seg, v)
	in.prev, in.prevCell, in.havePrev = v, c, true
	return nil
}

// open begins an empty segment bound to cell c.
func (in *Ingester) open(c cclfmt.Cell) {
	in.seg = in.seg[:0]
	in.segCell = c
	in.active = true
}

// flush stages the open segment under its cell and empties it.
func (in *Ingester) flush() error {
	err := in.Store.Append(in.segCell, in.seg)
	in.seg = in.seg[:0]
	return err
}
