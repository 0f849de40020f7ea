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
	"io"

	"github.com/spatialmodel/wqnet/wqout"
	"gonum.org/v1/gonum/stat"
)

// Read writes a summary of the result file at path to w. If stats is
// true, the mean and standard deviation of the node and link qualities
// in every reporting period are included.
func Read(w io.Writer, path string, stats bool) error {
	f, err := wqout.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	nodes, links := f.Counts()
	fmt.Fprintf(w, "%s: %d nodes, %d links, %d reporting periods\n", path, nodes, links, f.Periods())
	if !stats {
		return nil
	}
	fmt.Fprintf(w, "%8s %14s %14s %14s %14s\n", "period", "node mean", "node std", "link mean", "link std")
	for i := 0; i < f.Periods(); i++ {
		p, err := f.Period(i)
		if err != nil {
			return err
		}
		nm, ns := meanStdDev(p.Nodes)
		lm, ls := meanStdDev(p.Links)
		fmt.Fprintf(w, "%8d %14.6g %14.6g %14.6g %14.6g\n", i, nm, ns, lm, ls)
	}
	return nil
}

// meanStdDev returns the mean and unbiased standard deviation of x.
// The standard deviation is zero when x has fewer than two values.
func meanStdDev(x []float32) (mean, std float64) {
	if len(x) == 0 {
		return 0, 0
	}
	v := make([]float64, len(x))
	for i, xi := range x {
		v[i] = float64(xi)
	}
	if len(v) == 1 {
		return v[0], 0
	}
	return stat.MeanStdDev(v, nil)
}
