/*
Copyright © 2019 the WQNet authors.
This file is part of WQNet.

WQNet is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

WQNet is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with WQNet.  If not, see <http://www.gnu.org/licenses/>.
*/

package wqnetutil

import (
	"bytes"
	"io/ioutil"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ctessum/cdf"
	"github.com/spatialmodel/wqnet/wqout"
	"github.com/tealeg/xlsx"
)

// setupPipeline points the command configuration at the test data and
// returns the directory where outputs are written.
func setupPipeline(t *testing.T) (dir string, cleanup func()) {
	dir, err := ioutil.TempDir("", "wqnetutil")
	if err != nil {
		t.Fatal(err)
	}
	testdata, err := filepath.Abs("testdata")
	if err != nil {
		t.Fatal(err)
	}
	os.Setenv("WQNET_TESTDATA", testdata)
	os.Setenv("WQNET_TESTOUT", dir)
	Cfg.Set("config", "testdata/config.toml")
	return dir, func() { os.RemoveAll(dir) }
}

func execute(t *testing.T, args ...string) string {
	var b bytes.Buffer
	Root.SetOutput(&b)
	Root.SetArgs(args)
	if err := Root.Execute(); err != nil {
		t.Fatalf("%s: %v\n%s", strings.Join(args, " "), err, b.String())
	}
	return b.String()
}

func TestVersion(t *testing.T) {
	out := execute(t, "version")
	if !strings.HasPrefix(out, "WQNet v") {
		t.Errorf("version output: %q", out)
	}
}

func TestPipeline(t *testing.T) {
	dir, cleanup := setupPipeline(t)
	defer cleanup()

	execute(t, "hydraulics", "steady")
	execute(t, "run")

	results := filepath.Join(dir, "results.wqo")
	t.Run("results", func(t *testing.T) {
		f, err := wqout.Open(results)
		if err != nil {
			t.Fatal(err)
		}
		defer f.Close()
		if f.Periods() != 7 {
			t.Fatalf("periods: have %d, want 7", f.Periods())
		}
		first, err := f.Period(0)
		if err != nil {
			t.Fatal(err)
		}
		if first.Nodes[0] != 0 || math.Abs(float64(first.Nodes[2])-1) > 1e-5 {
			t.Errorf("initial node qualities: %v", first.Nodes)
		}
		last, err := f.Period(6)
		if err != nil {
			t.Fatal(err)
		}
		wantNodes := []float64{1, 1, 1, 0.5}
		for i, w := range wantNodes {
			if math.Abs(float64(last.Nodes[i])-w) > 1e-4 {
				t.Errorf("node %d: have %g, want %g", i, last.Nodes[i], w)
			}
		}
		wantLinks := []float64{1, 1, 0.5}
		for i, w := range wantLinks {
			if math.Abs(float64(last.Links[i])-w) > 1e-4 {
				t.Errorf("link %d: have %g, want %g", i, last.Links[i], w)
			}
		}
	})

	t.Run("log", func(t *testing.T) {
		b, err := ioutil.ReadFile(filepath.Join(dir, "results.log"))
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(string(b), "run complete") {
			t.Errorf("log file is missing the completion message:\n%s", b)
		}
	})

	t.Run("read", func(t *testing.T) {
		Cfg.Set("stats", true)
		defer Cfg.Set("stats", false)
		out := execute(t, "read")
		if !strings.Contains(out, "4 nodes, 3 links, 7 reporting periods") {
			t.Errorf("read output: %s", out)
		}
		if n := strings.Count(out, "\n"); n != 9 {
			t.Errorf("read output has %d lines, want 9:\n%s", n, out)
		}
	})

	t.Run("netcdf", func(t *testing.T) {
		Cfg.Set("ExportFormat", "netcdf")
		execute(t, "export")
		f, err := os.Open(filepath.Join(dir, "results.nc"))
		if err != nil {
			t.Fatal(err)
		}
		defer f.Close()
		nc, err := cdf.Open(f)
		if err != nil {
			t.Fatal(err)
		}
		if ids := nc.Header.GetAttribute("", "node_ids"); ids != "J1,J2,R,T" {
			t.Errorf("node ids: %v", ids)
		}
		dims := nc.Header.Lengths("Doubled_node")
		if len(dims) != 2 || dims[0] != 7 || dims[1] != 4 {
			t.Fatalf("dims: %v", dims)
		}
		data := make([]float32, 7*4)
		if _, err := nc.Reader("Doubled_node", nil, nil).Read(data); err != nil {
			t.Fatal(err)
		}
		if v := data[6*4+3]; math.Abs(float64(v)-1) > 1e-4 {
			t.Errorf("doubled tank quality: %g", v)
		}
	})

	t.Run("xlsx", func(t *testing.T) {
		out := filepath.Join(dir, "results.xlsx")
		Cfg.Set("ExportFormat", "xlsx")
		Cfg.Set("ExportFile", out)
		defer Cfg.Set("ExportFormat", "netcdf")
		execute(t, "export")
		f, err := xlsx.OpenFile(out)
		if err != nil {
			t.Fatal(err)
		}
		s, ok := f.Sheet["Quality links"]
		if !ok {
			t.Fatalf("missing sheet; have %v", f.Sheets)
		}
		if v := s.Cell(0, 1).Value; v != "P1" {
			t.Errorf("header: %s", v)
		}
		if v := s.Cell(7, 3).Value; !strings.HasPrefix(v, "0.5") {
			t.Errorf("P3 quality: %s", v)
		}
	})

	t.Run("plot", func(t *testing.T) {
		Cfg.Set("PlotNodes", []string{"J2", "T"})
		execute(t, "plot")
		fi, err := os.Stat(filepath.Join(dir, "results.png"))
		if err != nil {
			t.Fatal(err)
		}
		if fi.Size() == 0 {
			t.Error("empty plot")
		}
	})
}

func TestRunOverrides(t *testing.T) {
	dir, cleanup := setupPipeline(t)
	defer cleanup()

	execute(t, "hydraulics", "steady")
	Cfg.Set("Quality", "trace")
	Cfg.Set("TraceNode", "R")
	Cfg.Set("ReportStep", "2h")
	defer func() {
		Cfg.Set("Quality", "")
		Cfg.Set("TraceNode", "")
		Cfg.Set("ReportStep", "")
	}()
	execute(t, "run")

	f, err := wqout.Open(filepath.Join(dir, "results.wqo"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if f.Periods() != 4 {
		t.Fatalf("periods: have %d, want 4", f.Periods())
	}
	series, err := f.NodeSeries(1)
	if err != nil {
		t.Fatal(err)
	}
	if series[0] != 0 || math.Abs(float64(series[3])-100) > 1e-3 {
		t.Errorf("trace at J2: %v", series)
	}
}

func TestHydraulicsEndEarly(t *testing.T) {
	_, cleanup := setupPipeline(t)
	defer cleanup()

	Cfg.Set("Duration", "2h")
	defer Cfg.Set("Duration", "6h")
	execute(t, "hydraulics", "steady")

	Root.SetOutput(ioutil.Discard)
	Root.SetArgs([]string{"run"})
	if err := Root.Execute(); err == nil {
		t.Error("expected an error for hydraulics that end early")
	}
}
