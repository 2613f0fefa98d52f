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

package stage

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/SnellerInc/ccl/cclfmt"

	"github.com/dchest/siphash"
)

// spool frame checksum key; arbitrary but fixed, since frames
// are written and read within a single run
const (
	spoolK0 = 0x70666d636f617374
	spoolK1 = 0x63636c73706f6f6c
)

// frame header: raw size u32 | stored size u32 | siphash u64
const frameHeadSize = 16

// Spool is a disk-backed Store: one append-only file per cell
// under a private directory, each record framed with its sizes
// and a siphash of the stored bytes, optionally compressed.
//
// At most one spool file is held open for writing at a time;
// ingestion touches cells in long same-cell runs, so open/close
// churn only happens at cell boundaries.
type Spool struct {
	dir   string
	enc   Compressor
	dec   Decompressor
	cur   cclfmt.Cell
	f     *os.File
	cells map[cclfmt.Cell]struct{}
	raw   []byte // record scratch
	frame []byte // frame scratch
}

// NewSpool returns a Spool staging under dir using the named
// compression ("zstd", "s2", "none"). dir is cleared first:
// staging data from a previous run never survives.
func NewSpool(dir, compression string) (*Spool, error) {
	enc, err := Compression(compression)
	if err != nil {
		return nil, err
	}
	dec, err := Decompression(compression)
	if err != nil {
		return nil, err
	}
	if err := os.RemoveAll(dir); err != nil {
		return nil, fmt.Errorf("stage: clearing %s: %w", dir, err)
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, err
	}
	return &Spool{
		dir:   dir,
		enc:   enc,
		dec:   dec,
		cells: make(map[cclfmt.Cell]struct{}),
	}, nil
}

func (s *Spool) path(c cclfmt.Cell) string {
	return filepath.Join(s.dir, streamName(c))
}

func (s *Spool) closeCurrent() error {
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}

// Append implements Store.Append.
func (s *Spool) Append(c cclfmt.Cell, verts []cclfmt.Vertex) error {
	if s.f != nil && c != s.cur {
		if err := s.closeCurrent(); err != nil {
			return err
		}
	}
	if s.f == nil {
		f, err := os.OpenFile(s.path(c), os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0640)
		if err != nil {
			return err
		}
		s.f = f
		s.cur = c
		s.cells[c] = struct{}{}
	}

	s.raw = appendRecord(s.raw[:0], verts)
	stored := s.raw
	if s.enc != nil {
		s.frame = s.enc.Compress(s.raw, s.frame[:0])
		stored = s.frame
	}
	var head [frameHeadSize]byte
	binary.LittleEndian.PutUint32(head[0:], uint32(len(s.raw)))
	binary.LittleEndian.PutUint32(head[4:], uint32(len(stored)))
	binary.LittleEndian.PutUint64(head[8:], siphash.Hash(spoolK0, spoolK1, stored))
	if _, err := s.f.Write(head[:]); err != nil {
		return err
	}
	_, err := s.f.Write(stored)
	return err
}

// Drain implements Store.Drain.
func (s *Spool) Drain(c cclfmt.Cell, fn func(verts []cclfmt.Vertex) error) error {
	if _, ok := s.cells[c]; !ok {
		return nil
	}
	// the writer must not straddle a stream being drained
	if s.f != nil && s.cur == c {
		if err := s.closeCurrent(); err != nil {
			return err
		}
	}
	path := s.path(c)
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var verts []cclfmt.Vertex
	for len(data) > 0 {
		if len(data) < frameHeadSize {
			return fmt.Errorf("stage: %s: %d stray trailing bytes", path, len(data))
		}
		rawLen := binary.LittleEndian.Uint32(data[0:])
		storedLen := binary.LittleEndian.Uint32(data[4:])
		sum := binary.LittleEndian.Uint64(data[8:])
		data = data[frameHeadSize:]
		if uint64(len(data)) < uint64(storedLen) {
			return fmt.Errorf("stage: %s: frame of %d bytes truncated at %d", path, storedLen, len(data))
		}
		stored := data[:storedLen]
		data = data[storedLen:]
		if got := siphash.Hash(spoolK0, spoolK1, stored); got != sum {
			return fmt.Errorf("stage: %s: frame checksum mismatch", path)
		}
		raw := stored
		if s.dec != nil {
			raw, err = s.dec.Decompress(stored, int(rawLen))
			if err != nil {
				return fmt.Errorf("stage: %s: %w", path, err)
			}
		} else if rawLen != storedLen {
			return fmt.Errorf("stage: %s: frame sizes %d != %d without compression", path, rawLen, storedLen)
		}
		var rest []byte
		verts, rest, err = parseRecord(verts[:0], raw)
		if err != nil {
			return fmt.Errorf("stage: %s: %w", path, err)
		}
		if len(rest) != 0 {
			return fmt.Errorf("stage: %s: %d stray bytes after record", path, len(rest))
		}
		if len(verts) == 0 {
			continue // no-op record
		}
		if err := fn(verts); err != nil {
			return err
		}
	}
	delete(s.cells, c)
	return os.Remove(path)
}

// Close implements Store.Close; it discards the
// spool directory and everything under it.
func (s *Spool) Close() error {
	err := s.closeCurrent()
	if rmerr := os.RemoveAll(s.dir); err == nil {
		err = rmerr
	}
	return err
}
