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

	"github.com/SnellerInc/ccl/cclfmt"

	bolt "go.etcd.io/bbolt"
)

// Bolt is a Store backed by a single bbolt database file: one
// bucket per cell, records keyed by the bucket sequence number so
// cursor order is append order. It trades the spool's open/close
// churn (and its tens of thousands of staging files) for one file.
type Bolt struct {
	db *bolt.DB
}

// NewBolt returns a Bolt store staging in the database file at
// path. An existing file at path is removed first: staging data
// from a previous run never survives.
func NewBolt(path string) (*Bolt, error) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("stage: clearing %s: %w", path, err)
	}
	db, err := bolt.Open(path, 0640, nil)
	if err != nil {
		return nil, err
	}
	return &Bolt{db: db}, nil
}

// Append implements Store.Append.
func (b *Bolt) Append(c cclfmt.Cell, verts []cclfmt.Vertex) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bk, err := tx.CreateBucketIfNotExists([]byte(streamName(c)))
		if err != nil {
			return err
		}
		seq, err := bk.NextSequence()
		if err != nil {
			return err
		}
		var key [8]byte
		binary.BigEndian.PutUint64(key[:], seq)
		return bk.Put(key[:], appendRecord(nil, verts))
	})
}

// Drain implements Store.Drain.
func (b *Bolt) Drain(c cclfmt.Cell, fn func(verts []cclfmt.Vertex) error) error {
	name := []byte(streamName(c))
	return b.db.Update(func(tx *bolt.Tx) error {
		bk := tx.Bucket(name)
		if bk == nil {
			return nil
		}
		var verts []cclfmt.Vertex
		err := bk.ForEach(func(k, v []byte) error {
			var rest []byte
			var err error
			verts, rest, err = parseRecord(verts[:0], v)
			if err != nil {
				return fmt.Errorf("stage: %s: %w", name, err)
			}
			if len(rest) != 0 {
				return fmt.Errorf("stage: %s: %d stray bytes after record", name, len(rest))
			}
			if len(verts) == 0 {
				return nil // no-op record
			}
			return fn(verts)
		})
		if err != nil {
			return err
		}
		return tx.DeleteBucket(name)
	})
}

// Close implements Store.Close; it closes and
// removes the database file.
func (b *Bolt) Close() error {
	path := b.db.Path()
	err := b.db.Close()
	if rmerr := os.Remove(path); err == nil && rmerr != nil && !os.IsNotExist(rmerr) {
		err = rmerr
	}
	return err
}
