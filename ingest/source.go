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

package ingest

import (
	"fmt"
	"os"
	"strings"

	shp "github.com/jonas-p/go-shp"
)

// Shape is one multi-part shape from an input source: parallel
// coordinate arrays in degrees plus the indices at which each
// part (ring) starts.
type Shape struct {
	Parts []int32 // part start vertex indices; may be empty
	X, Y  []float64
}

// Info describes an open source.
type Info struct {
	Shapes   int // shape count, or -1 when unknown
	Geometry string
	MinX     float64
	MinY     float64
	MaxX     float64
	MaxY     float64
}

// Source is a sequential reader of input shapes.
type Source interface {
	Info() Info

	// Next advances to the next shape; it returns false at the
	// end of the source or on error (see Err).
	Next() bool

	// Shape returns the current shape. The returned arrays are
	// only valid until the next call to Next.
	Shape() Shape

	// Err returns the first error encountered by Next.
	Err() error

	Close() error
}

// ShapeFile is a Source reading an ESRI shapefile.
type ShapeFile struct {
	r    *shp.Reader
	info Info
	cur  Shape
}

// OpenShapeFile opens the .shp file at path. When the .shx sidecar
// is present it supplies the shape count for progress reporting;
// without it the count is unknown.
func OpenShapeFile(path string) (*ShapeFile, error) {
	r, err := shp.Open(path)
	if err != nil {
		return nil, err
	}
	box := r.BBox()
	info := Info{
		Shapes:   -1,
		Geometry: fmt.Sprintf("type %d", r.GeometryType),
		MinX:     box.MinX,
		MinY:     box.MinY,
		MaxX:     box.MaxX,
		MaxY:     box.MaxY,
	}
	// the .shx index is 100 header bytes plus 8 per shape
	shx := strings.TrimSuffix(path, ".shp") + ".shx"
	if fi, err := os.Stat(shx); err == nil && fi.Size() >= 100 {
		info.Shapes = int((fi.Size() - 100) / 8)
	}
	return &ShapeFile{r: r, info: info}, nil
}

// Info implements Source.Info.
func (s *ShapeFile) Info() Info { return s.info }

// Next implements Source.Next. Shapes of unsupported geometry
// types yield empty coordinate arrays, which the ingester skips
// like any other degenerate shape.
func (s *ShapeFile) Next() bool {
	if !s.r.Next() {
		return false
	}
	_, raw := s.r.Shape()
	var parts []int32
	var points []shp.Point
	switch p := raw.(type) {
	case *shp.PolyLine:
		parts, points = p.Parts, p.Points
	case *shp.Polygon:
		parts, points = p.Parts, p.Points
	case *shp.PolyLineZ:
		parts, points = p.Parts, p.Points
	case *shp.PolygonZ:
		parts, points = p.Parts, p.Points
	case *shp.MultiPoint:
		points = p.Points
	}
	s.cur.Parts = parts
	if cap(s.cur.X) < len(points) {
		s.cur.X = make([]float64, len(points))
		s.cur.Y = make([]float64, len(points))
	}
	s.cur.X = s.cur.X[:len(points)]
	s.cur.Y = s.cur.Y[:len(points)]
	for i := range points {
		s.cur.X[i] = points[i].X
		s.cur.Y[i] = points[i].Y
	}
	return true
}

// Shape implements Source.Shape.
func (s *ShapeFile) Shape() Shape { return s.cur }

// Err implements Source.Err.
func (s *ShapeFile) Err() error {
	if err := s.r.Err(); err != nil {
		return fmt.Errorf("reading shapefile: %w", err)
	}
	return nil
}

// Close implements Source.Close.
func (s *ShapeFile) Close() error { return s.r.Close() }
