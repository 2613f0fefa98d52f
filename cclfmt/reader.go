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
	"bytes"
	"fmt"
	"io"
	"os"
)

// Reader opens a CCL file for random cell access.
type Reader struct {
	f       *os.File
	size    int64
	version string
	index   []IndexEntry // CellsLat*CellsLon entries, row-major
}

// Open opens the CCL file at path and reads its
// version tag and index table.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if fi.Size() < DataStart {
		f.Close()
		return nil, fmt.Errorf("ccl: %s: %d bytes is too small to hold a header", path, fi.Size())
	}
	head := make([]byte, DataStart)
	if _, err := io.ReadFull(f, head); err != nil {
		f.Close()
		return nil, err
	}
	version := head[:VersionSize]
	if i := bytes.IndexByte(version, 0); i >= 0 {
		version = version[:i]
	}
	index := make([]IndexEntry, CellsLat*CellsLon)
	for i := range index {
		index[i] = decodeIndexEntry(head[VersionSize+i*IndexEntrySize:])
	}
	return &Reader{
		f:       f,
		size:    fi.Size(),
		version: string(bytes.TrimRight(version, "\n")),
		index:   index,
	}, nil
}

// Version returns the file's version tag with
// padding and the trailing newline stripped.
func (r *Reader) Version() string { return r.version }

// Index returns the index entry for cell c.
func (r *Reader) Index(c Cell) IndexEntry {
	if !c.Valid() {
		return IndexEntry{}
	}
	return r.index[c.Lat*CellsLon+c.Lon]
}

// end returns the file offset one past the last block of the cell
// at row-major position i: blocks are written in index order, so a
// cell's blocks run up to the next nonempty cell's address (or EOF).
func (r *Reader) end(i int) int64 {
	for j := i + 1; j < len(r.index); j++ {
		if !r.index[j].Zero() {
			return int64(r.index[j].Addr)
		}
	}
	return r.size
}

// Segments reads and decodes every segment of cell c.
// An empty cell yields a nil slice.
func (r *Reader) Segments(c Cell) ([][]Vertex, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("ccl: cell (lat %d, lon %d) out of range", c.Lat, c.Lon)
	}
	i := c.Lat*CellsLon + c.Lon
	e := r.index[i]
	if e.Zero() {
		return nil, nil
	}
	buf := make([]byte, r.end(i)-int64(e.Addr))
	if _, err := r.f.ReadAt(buf, int64(e.Addr)); err != nil {
		return nil, err
	}
	segs := make([][]Vertex, 0, e.Segments)
	total := 0
	for s := uint32(0); s < e.Segments; s++ {
		verts, n, err := DecodeSegment(nil, buf)
		if err != nil {
			return nil, fmt.Errorf("cell (lat %d, lon %d) segment %d: %w", c.Lat, c.Lon, s, err)
		}
		segs = append(segs, verts)
		total += len(verts)
		buf = buf[n:]
	}
	if total != int(e.Vertices) {
		return nil, fmt.Errorf("cell (lat %d, lon %d): index says %d vertices, decoded %d",
			c.Lat, c.Lon, e.Vertices, total)
	}
	return segs, nil
}

// Close closes the underlying file.
func (r *Reader) Close() error { return r.f.Close() }
