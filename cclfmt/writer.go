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
	"bufio"
	"fmt"
	"os"
)

// Writer assembles a CCL file: the version tag and zeroed index
// are laid down at creation, segment blocks are appended through
// a buffered cursor, and index entries are patched in place with
// positioned writes that never disturb the append cursor.
type Writer struct {
	f   *os.File
	buf *bufio.Writer
	off int64 // append cursor
}

// Create creates (or truncates) a CCL file at path and writes the
// version tag and the all-zero index table. The append cursor is
// left at DataStart.
func Create(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w := &Writer{f: f, buf: bufio.NewWriterSize(f, 1<<16)}
	if err := preallocate(f, DataStart); err != nil {
		f.Close()
		return nil, fmt.Errorf("preallocating %s: %w", path, err)
	}
	var version [VersionSize]byte
	copy(version[:], Version)
	if _, err := w.buf.Write(version[:]); err != nil {
		f.Close()
		return nil, err
	}
	var zeros [IndexEntrySize * CellsLon]byte
	for i := 0; i < CellsLat; i++ {
		if _, err := w.buf.Write(zeros[:]); err != nil {
			f.Close()
			return nil, err
		}
	}
	// the index region must hit the file before the first
	// SetIndex patches it behind the buffer's back
	if err := w.buf.Flush(); err != nil {
		f.Close()
		return nil, err
	}
	w.off = DataStart
	return w, nil
}

// Offset returns the append cursor, i.e. the address
// the next appended block will occupy.
func (w *Writer) Offset() int64 { return w.off }

// Append appends block bytes at the cursor.
func (w *Writer) Append(p []byte) error {
	n, err := w.buf.Write(p)
	w.off += int64(n)
	return err
}

// SetIndex patches the index entry for cell c.
// The append cursor is unaffected.
func (w *Writer) SetIndex(c Cell, e IndexEntry) error {
	if !c.Valid() {
		return fmt.Errorf("ccl: index patch for cell (lat %d, lon %d) out of range", c.Lat, c.Lon)
	}
	var buf [IndexEntrySize]byte
	e.encode(buf[:])
	_, err := w.f.WriteAt(buf[:], c.IndexOffset())
	return err
}

// Close flushes appended blocks and closes the file.
func (w *Writer) Close() error {
	if err := w.buf.Flush(); err != nil {
		w.f.Close()
		return err
	}
	return w.f.Close()
}
