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
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/exp/slices"
)

func TestIndexEntryBytes(t *testing.T) {
	e := IndexEntry{Addr: 0x01020304, Segments: 7, Vertices: 300}
	var buf [IndexEntrySize]byte
	e.encode(buf[:])
	want := []byte{
		0x01, 0x02, 0x03, 0x04,
		0x00, 0x00, 0x00, 0x07,
		0x00, 0x00, 0x01, 0x2c,
	}
	if !bytes.Equal(buf[:], want) {
		t.Errorf("got % x, want % x", buf, want)
	}
	if got := decodeIndexEntry(buf[:]); got != e {
		t.Errorf("decode: got %+v, want %+v", got, e)
	}
}

func TestWriterLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.ccl")
	w, err := Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if w.Offset() != DataStart {
		t.Fatalf("fresh writer offset %d, want %d", w.Offset(), DataStart)
	}

	cell := Cell{Lat: 100, Lon: 190}
	seg := testSegment()
	addr := w.Offset()
	blk, err := EncodeSegment(nil, cell, seg)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Append(blk); err != nil {
		t.Fatal(err)
	}
	err = w.SetIndex(cell, IndexEntry{
		Addr:     uint32(addr),
		Segments: 1,
		Vertices: uint32(len(seg)),
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	fi, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if want := int64(DataStart + len(blk)); fi.Size() != want {
		t.Errorf("file size %d, want %d", fi.Size(), want)
	}

	r, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	if !strings.HasPrefix(Version, r.Version()) || r.Version() == "" {
		t.Errorf("version %q does not match tag %q", r.Version(), Version)
	}
	if got := r.Index(cell); got.Addr != uint32(addr) || got.Segments != 1 || got.Vertices != 3 {
		t.Errorf("index entry %+v", got)
	}
	// every other cell is all-zero
	for lat := 0; lat < CellsLat; lat++ {
		for lon := 0; lon < CellsLon; lon++ {
			c := Cell{Lat: lat, Lon: lon}
			if c == cell {
				continue
			}
			if e := r.Index(c); !e.Zero() {
				t.Fatalf("cell %v has nonzero entry %+v", c, e)
			}
		}
	}
	segs, err := r.Segments(cell)
	if err != nil {
		t.Fatal(err)
	}
	if len(segs) != 1 || !slices.Equal(segs[0], seg) {
		t.Errorf("got %v, want [%v]", segs, seg)
	}
	empty, err := r.Segments(Cell{Lat: 0, Lon: 0})
	if err != nil {
		t.Fatal(err)
	}
	if empty != nil {
		t.Errorf("empty cell returned %v", empty)
	}
}

func TestWriterPatchKeepsCursor(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.ccl")
	w, err := Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Append([]byte{1, 2, 3}); err != nil {
		t.Fatal(err)
	}
	before := w.Offset()
	err = w.SetIndex(Cell{Lat: 5, Lon: 6}, IndexEntry{Addr: 1, Segments: 2, Vertices: 3})
	if err != nil {
		t.Fatal(err)
	}
	if w.Offset() != before {
		t.Errorf("patch moved append cursor from %d to %d", before, w.Offset())
	}
	if err := w.Append([]byte{4}); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := data[DataStart:]; !bytes.Equal(got, []byte{1, 2, 3, 4}) {
		t.Errorf("body % x, want 01 02 03 04", got)
	}
}
