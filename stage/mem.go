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
	"github.com/SnellerInc/ccl/cclfmt"

	"golang.org/x/exp/slices"
)

// Mem is an in-memory Store. It holds every staged vertex
// resident, so it is only suitable for regional extracts;
// use Spool or Bolt for whole-world inputs.
type Mem struct {
	cells map[cclfmt.Cell][][]cclfmt.Vertex
}

// NewMem returns an empty in-memory store.
func NewMem() *Mem {
	return &Mem{cells: make(map[cclfmt.Cell][][]cclfmt.Vertex)}
}

// Append implements Store.Append.
func (m *Mem) Append(c cclfmt.Cell, verts []cclfmt.Vertex) error {
	if len(verts) == 0 {
		// empty records are invisible to Drain anyway
		return nil
	}
	m.cells[c] = append(m.cells[c], slices.Clone(verts))
	return nil
}

// Drain implements Store.Drain.
func (m *Mem) Drain(c cclfmt.Cell, fn func(verts []cclfmt.Vertex) error) error {
	runs := m.cells[c]
	delete(m.cells, c)
	for _, verts := range runs {
		if err := fn(verts); err != nil {
			return err
		}
	}
	return nil
}

// Close implements Store.Close.
func (m *Mem) Close() error {
	m.cells = nil
	return nil
}
