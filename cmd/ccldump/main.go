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

// Command ccldump inspects compressed coastline (.ccl) files:
// it prints the version tag and index summary, and decodes the
// segments of one cell (or all of them) back to degrees.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"

	"github.com/SnellerInc/ccl/cclfmt"
)

var (
	dashcell  string
	dashindex bool
	dashverts bool
)

func init() {
	flag.StringVar(&dashcell, "cell", "", "dump one cell, given as LAT,LON in whole degrees (e.g. 42,-75)")
	flag.BoolVar(&dashindex, "index", false, "list every nonempty index entry")
	flag.BoolVar(&dashverts, "p", false, "print segment vertices, not just counts")
}

func exitf(f string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, f, args...)
	os.Exit(1)
}

func dumpCell(o *bufio.Writer, r *cclfmt.Reader, c cclfmt.Cell) {
	segs, err := r.Segments(c)
	if err != nil {
		exitf("%s\n", err)
	}
	if segs == nil {
		return
	}
	e := r.Index(c)
	fmt.Fprintf(o, "cell lat %d lon %d: addr %d, %d segments, %d vertices\n",
		c.Lat-90, c.Lon-180, e.Addr, e.Segments, e.Vertices)
	for i, seg := range segs {
		fmt.Fprintf(o, "  segment %d: %d vertices\n", i, len(seg))
		if !dashverts {
			continue
		}
		for _, v := range seg {
			fmt.Fprintf(o, "    %.5f %.5f\n", v.Lon(), v.Lat())
		}
	}
}

func main() {
	flag.Parse()
	if flag.NArg() != 1 {
		exitf("usage: ccldump [-index] [-cell LAT,LON] [-p] FILE.ccl\n")
	}
	r, err := cclfmt.Open(flag.Arg(0))
	if err != nil {
		exitf("%s\n", err)
	}
	defer r.Close()

	o := bufio.NewWriter(os.Stdout)
	defer o.Flush()
	fmt.Fprintf(o, "%s\n", r.Version())

	if dashcell != "" {
		var lat, lon int
		if _, err := fmt.Sscanf(dashcell, "%d,%d", &lat, &lon); err != nil {
			exitf("bad -cell %q: %s\n", dashcell, err)
		}
		c := cclfmt.Cell{Lat: lat + 90, Lon: lon + 180}
		if !c.Valid() {
			exitf("cell %d,%d out of range\n", lat, lon)
		}
		dumpCell(o, r, c)
		return
	}

	var cells, segments, vertices int64
	for lat := 0; lat < cclfmt.CellsLat; lat++ {
		for lon := 0; lon < cclfmt.CellsLon; lon++ {
			c := cclfmt.Cell{Lat: lat, Lon: lon}
			e := r.Index(c)
			if e.Zero() {
				continue
			}
			cells++
			segments += int64(e.Segments)
			vertices += int64(e.Vertices)
			if dashindex {
				dumpCell(o, r, c)
			}
		}
	}
	fmt.Fprintf(o, "%d cells, %d segments, %d vertices\n", cells, segments, vertices)
}
