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
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/Knetic/govaluate"
	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"
	"github.com/spatialmodel/wqnet/wqout"
	"github.com/spf13/cast"
	"github.com/tealeg/xlsx"
)

// exportVar is a variable calculated from the reported qualities.
type exportVar struct {
	name, expr string

	// nodes and links have dimensions [period, element].
	nodes, links *sparse.DenseArray
}

// exportFuncs are the functions available to export expressions.
var exportFuncs = map[string]govaluate.ExpressionFunction{
	"exp": func(arg ...interface{}) (interface{}, error) {
		if len(arg) != 1 {
			return nil, fmt.Errorf("wqnetutil: got %d arguments for function 'exp', but needs 1", len(arg))
		}
		return math.Exp(arg[0].(float64)), nil
	},
	"log": func(arg ...interface{}) (interface{}, error) {
		if len(arg) != 1 {
			return nil, fmt.Errorf("wqnetutil: got %d arguments for function 'log', but needs 1", len(arg))
		}
		return math.Log(arg[0].(float64)), nil
	},
	"min": func(arg ...interface{}) (interface{}, error) {
		if len(arg) != 2 {
			return nil, fmt.Errorf("wqnetutil: got %d arguments for function 'min', but needs 2", len(arg))
		}
		return math.Min(arg[0].(float64), arg[1].(float64)), nil
	},
	"max": func(arg ...interface{}) (interface{}, error) {
		if len(arg) != 2 {
			return nil, fmt.Errorf("wqnetutil: got %d arguments for function 'max', but needs 2", len(arg))
		}
		return math.Max(arg[0].(float64), arg[1].(float64)), nil
	},
}

// evalExportVars calculates the variables in vars, which map variable
// names to expressions, for every period and element in r. Expressions
// can use the reported quality 'C' and the period index 'Period'.
func evalExportVars(r *wqout.Reader, vars map[string]string) ([]*exportVar, error) {
	names := make([]string, 0, len(vars))
	for n := range vars {
		names = append(names, n)
	}
	// Sort the names so they write in the same order every time.
	sort.Strings(names)

	nn, nl := r.Counts()
	np := r.Periods()
	o := make([]*exportVar, len(names))
	exprs := make([]*govaluate.EvaluableExpression, len(names))
	for i, n := range names {
		expr, err := govaluate.NewEvaluableExpressionWithFunctions(vars[n], exportFuncs)
		if err != nil {
			return nil, fmt.Errorf("wqnetutil: parsing export variable %s: %v", n, err)
		}
		exprs[i] = expr
		o[i] = &exportVar{
			name:  n,
			expr:  vars[n],
			nodes: sparse.ZerosDense(np, nn),
			links: sparse.ZerosDense(np, nl),
		}
	}
	params := make(map[string]interface{}, 2)
	eval := func(expr *govaluate.EvaluableExpression, name string, c float32) (float64, error) {
		params["C"] = float64(c)
		v, err := expr.Evaluate(params)
		if err != nil {
			return 0, fmt.Errorf("wqnetutil: calculating export variable %s: %v", name, err)
		}
		f, err := cast.ToFloat64E(v)
		if err != nil {
			return 0, fmt.Errorf("wqnetutil: export variable %s: %v", name, err)
		}
		return f, nil
	}
	for p := 0; p < np; p++ {
		period, err := r.Period(p)
		if err != nil {
			return nil, err
		}
		params["Period"] = float64(p)
		for i, v := range o {
			for j, c := range period.Nodes {
				f, err := eval(exprs[i], v.name, c)
				if err != nil {
					return nil, err
				}
				v.nodes.Set(f, p, j)
			}
			for j, c := range period.Links {
				f, err := eval(exprs[i], v.name, c)
				if err != nil {
					return nil, err
				}
				v.links.Set(f, p, j)
			}
		}
	}
	return o, nil
}

// Export converts the result file at resultsPath to the given format
// ('netcdf' or 'xlsx') and saves it at exportPath. vars maps the names of
// the variables to export to expressions of the reported quality. nodeIDs
// and linkIDs label the elements and may be nil.
func Export(resultsPath, exportPath, format string, vars map[string]string, nodeIDs, linkIDs []string) error {
	f, err := wqout.Open(resultsPath)
	if err != nil {
		return err
	}
	defer f.Close()
	if f.Periods() == 0 {
		return fmt.Errorf("wqnetutil: %s has no reporting periods to export", resultsPath)
	}
	nn, nl := f.Counts()
	if nodeIDs != nil && len(nodeIDs) != nn {
		return fmt.Errorf("wqnetutil: export has %d node IDs but the results have %d nodes", len(nodeIDs), nn)
	}
	if linkIDs != nil && len(linkIDs) != nl {
		return fmt.Errorf("wqnetutil: export has %d link IDs but the results have %d links", len(linkIDs), nl)
	}
	data, err := evalExportVars(f.Reader, vars)
	if err != nil {
		return err
	}
	switch strings.ToLower(format) {
	case "netcdf", "nc":
		return exportNetCDF(exportPath, data, nodeIDs, linkIDs)
	case "xlsx", "excel":
		return exportXLSX(exportPath, data, nodeIDs, linkIDs)
	default:
		return fmt.Errorf("wqnetutil: invalid export format '%s'", format)
	}
}

// exportNetCDF writes data to a NetCDF file at path.
func exportNetCDF(path string, data []*exportVar, nodeIDs, linkIDs []string) error {
	shape := data[0].nodes.Shape
	nl := data[0].links.Shape[1]
	dims := []string{"period", "node"}
	lengths := []int{shape[0], shape[1]}
	if nl > 0 {
		dims = append(dims, "link")
		lengths = append(lengths, nl)
	}
	h := cdf.NewHeader(dims, lengths)
	h.AddAttribute("", "comment", "WQNet water quality results")
	if nodeIDs != nil {
		h.AddAttribute("", "node_ids", strings.Join(nodeIDs, ","))
	}
	if linkIDs != nil && nl > 0 {
		h.AddAttribute("", "link_ids", strings.Join(linkIDs, ","))
	}
	for _, v := range data {
		h.AddVariable(v.name+"_node", []string{"period", "node"}, []float32{0})
		h.AddAttribute(v.name+"_node", "description", v.expr)
		if nl > 0 {
			h.AddVariable(v.name+"_link", []string{"period", "link"}, []float32{0})
			h.AddAttribute(v.name+"_link", "description", v.expr)
		}
	}
	h.Define()

	w, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("wqnetutil: creating export file: %v", err)
	}
	f, err := cdf.Create(w, h)
	if err != nil {
		w.Close()
		return err
	}
	for _, v := range data {
		if err = writeNCF(f, v.name+"_node", v.nodes); err != nil {
			w.Close()
			return fmt.Errorf("wqnetutil: writing variable %s to netcdf file: %v", v.name, err)
		}
		if nl > 0 {
			if err = writeNCF(f, v.name+"_link", v.links); err != nil {
				w.Close()
				return fmt.Errorf("wqnetutil: writing variable %s to netcdf file: %v", v.name, err)
			}
		}
	}
	if err = cdf.UpdateNumRecs(w); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

func writeNCF(f *cdf.File, Var string, data *sparse.DenseArray) error {
	data32 := make([]float32, len(data.Elements))
	for i, e := range data.Elements {
		data32[i] = float32(e)
	}
	end := f.Header.Lengths(Var)
	start := make([]int, len(end))
	w := f.Writer(Var, start, end)
	_, err := w.Write(data32)
	return err
}

// exportXLSX writes data to a Microsoft Excel file at path, with one sheet
// per variable and element kind.
func exportXLSX(path string, data []*exportVar, nodeIDs, linkIDs []string) error {
	f := xlsx.NewFile()
	for _, v := range data {
		if err := addSheet(f, v.name+" nodes", v.nodes, nodeIDs); err != nil {
			return err
		}
		if v.links.Shape[1] > 0 {
			if err := addSheet(f, v.name+" links", v.links, linkIDs); err != nil {
				return err
			}
		}
	}
	if err := f.Save(path); err != nil {
		return fmt.Errorf("wqnetutil: saving export file: %v", err)
	}
	return nil
}

// addSheet adds a sheet holding d, with one row per period and one column
// per element. The first row holds the element IDs.
func addSheet(f *xlsx.File, name string, d *sparse.DenseArray, ids []string) error {
	// Excel limits sheet names to 31 characters.
	if len(name) > 31 {
		name = name[:31]
	}
	s, err := f.AddSheet(name)
	if err != nil {
		return fmt.Errorf("wqnetutil: adding sheet %s: %v", name, err)
	}
	header := s.AddRow()
	header.AddCell().SetString("Period")
	for j := 0; j < d.Shape[1]; j++ {
		id := strconv.Itoa(j)
		if ids != nil {
			id = ids[j]
		}
		header.AddCell().SetString(id)
	}
	for p := 0; p < d.Shape[0]; p++ {
		row := s.AddRow()
		row.AddCell().SetInt(p)
		for j := 0; j < d.Shape[1]; j++ {
			row.AddCell().SetFloat(d.Get(p, j))
		}
	}
	return nil
}
