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

// Command buildccl converts vector shoreline shapefiles into one
// compressed coastline (.ccl) file, ordered and indexed by
// one-degree cell:
//
//	buildccl gshhs_land.shp gshhs_lake.shp gshhs_isle.shp world.ccl
//
// The build is two sequential passes: every input is split into
// per-cell segments and staged, then the staging store is drained
// cell by cell into the bit-packed output.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/SnellerInc/ccl/cclfmt"
	"github.com/SnellerInc/ccl/ingest"
	"github.com/SnellerInc/ccl/pack"
	"github.com/SnellerInc/ccl/stage"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"
	"sigs.k8s.io/yaml"
)

var (
	dashv    bool
	dashf    string
	store    string
	comp     string
	spooldir string
)

func init() {
	flag.BoolVar(&dashv, "v", false, "verbose")
	flag.StringVar(&dashf, "f", "", "build definition file (json or yaml)")
	flag.StringVar(&store, "store", "spool", "staging store backend (mem, spool, bolt)")
	flag.StringVar(&comp, "c", "s2", "spool compression (s2, zstd, none)")
	flag.StringVar(&spooldir, "spooldir", "", "spool directory (default: under the system temp dir)")
}

func exitf(f string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, f, args...)
	os.Exit(1)
}

func logf(f string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, f+"\n", args...)
}

func usage() {
	exitf(`usage: buildccl [options] INPUT.shp [INPUT2.shp ...] OUTPUT
If the output file name does not have a .ccl extension it will be added.
options:
  -f FILE        read inputs, output, and options from a definition file
  -store KIND    staging backend: mem, spool, or bolt (default spool)
  -c NAME        spool compression: s2, zstd, or none (default s2)
  -spooldir DIR  spool directory
  -v             verbose
`)
}

// definition mirrors the command line for batch use.
type definition struct {
	Inputs      []string `json:"inputs"`
	Output      string   `json:"output"`
	Store       string   `json:"store,omitempty"`
	Compression string   `json:"compression,omitempty"`
	SpoolDir    string   `json:"spool-dir,omitempty"`
}

func load(path string) *definition {
	buf, err := os.ReadFile(path)
	if err != nil {
		exitf("%s\n", err)
	}
	d := new(definition)
	if err := yaml.Unmarshal(buf, d); err != nil {
		exitf("parsing %s: %s\n", path, err)
	}
	return d
}

func openStore() stage.Store {
	switch store {
	case "mem":
		return stage.NewMem()
	case "spool":
		dir := spooldir
		if dir == "" {
			dir = filepath.Join(os.TempDir(), "buildccl-"+uuid.NewString())
		}
		st, err := stage.NewSpool(dir, comp)
		if err != nil {
			exitf("%s\n", err)
		}
		if dashv {
			logf("staging in %s (%s)", dir, comp)
		}
		return st
	case "bolt":
		dir := spooldir
		if dir == "" {
			dir = os.TempDir()
		}
		st, err := stage.NewBolt(filepath.Join(dir, "buildccl-"+uuid.NewString()+".db"))
		if err != nil {
			exitf("%s\n", err)
		}
		return st
	default:
		exitf("no staging backend named %q\n", store)
	}
	return nil
}

// percent prints N%-style progress on one rewritten stderr line,
// only when the value changes.
type percent struct {
	last int
	verb string
}

func (p *percent) step(done, total int) {
	if total <= 0 {
		return
	}
	pct := done * 100 / total
	if pct != p.last {
		fmt.Fprintf(os.Stderr, "%03d%% %s\r", pct, p.verb)
		p.last = pct
	}
}

func (p *percent) finish() {
	fmt.Fprintf(os.Stderr, "100%% %s\n", p.verb)
}

func checksum(path string) string {
	f, err := os.Open(path)
	if err != nil {
		exitf("%s\n", err)
	}
	defer f.Close()
	h, _ := blake2b.New256(nil)
	if _, err := io.Copy(h, f); err != nil {
		exitf("%s\n", err)
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

func main() {
	flag.Usage = usage
	flag.Parse()

	var inputs []string
	var output string
	if dashf != "" {
		d := load(dashf)
		inputs, output = d.Inputs, d.Output
		if d.Store != "" {
			store = d.Store
		}
		if d.Compression != "" {
			comp = d.Compression
		}
		if d.SpoolDir != "" {
			spooldir = d.SpoolDir
		}
		if flag.NArg() != 0 {
			usage()
		}
	} else {
		args := flag.Args()
		if len(args) < 2 {
			usage()
		}
		inputs, output = args[:len(args)-1], args[len(args)-1]
	}
	if len(inputs) == 0 || output == "" {
		usage()
	}
	if !strings.HasSuffix(output, ".ccl") {
		output += ".ccl"
	}

	st := openStore()
	defer st.Close()

	ing := &ingest.Ingester{
		Store: st,
		Logf:  logf,
	}
	for _, path := range inputs {
		src, err := ingest.OpenShapeFile(path)
		if err != nil {
			exitf("%s\n", err)
		}
		info := src.Info()
		if info.Shapes >= 0 {
			logf("reading %s: %d shapes", path, info.Shapes)
		} else {
			logf("reading %s", path)
		}
		if dashv {
			logf("  %s, bounds %.5f %.5f to %.5f %.5f",
				info.Geometry, info.MinX, info.MinY, info.MaxX, info.MaxY)
		}
		prog := &percent{last: -1, verb: "processed"}
		ing.Progress = prog.step
		err = ing.Run(src)
		src.Close()
		if err != nil {
			exitf("%s: %s\n", path, err)
		}
		prog.finish()
	}
	logf("total points processed = %d", ing.Total())

	logf("writing %s", output)
	out, err := cclfmt.Create(output)
	if err != nil {
		exitf("%s\n", err)
	}
	prog := &percent{last: -1, verb: "packed"}
	stats, err := pack.Run(out, st, func(rows int) {
		prog.step(rows, cclfmt.CellsLat+1)
	})
	if err != nil {
		out.Close()
		exitf("%s\n", err)
	}
	if err := out.Close(); err != nil {
		exitf("%s: %s\n", output, err)
	}
	prog.finish()
	logf("total points packed = %d", stats.Vertices)
	if dashv {
		logf("%d cells, %d segments", stats.Cells, stats.Segments)
	}
	logf("blake2b %s", checksum(output))
}
