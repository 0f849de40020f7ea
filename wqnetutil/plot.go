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

	"github.com/spatialmodel/wqnet"
	"github.com/spatialmodel/wqnet/wqout"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// Plot saves a plot of the quality over time at the nodes with the given
// IDs to plotPath, using the results in the file at resultsPath for
// network net. If ids is empty, all nodes are plotted. The image format
// is chosen from the extension of plotPath.
func Plot(resultsPath, plotPath string, net *wqnet.Network, ids []string) error {
	f, err := wqout.Open(resultsPath)
	if err != nil {
		return err
	}
	defer f.Close()
	nn, _ := f.Counts()
	if nn != len(net.Nodes) {
		return fmt.Errorf("wqnetutil: %s has %d nodes but the network has %d", resultsPath, nn, len(net.Nodes))
	}
	if len(ids) == 0 {
		for _, n := range net.Nodes {
			ids = append(ids, n.ID)
		}
	}

	o := &net.Options
	p, err := plot.New()
	if err != nil {
		return err
	}
	p.Title.Text = "Water quality"
	p.X.Label.Text = "Time (hours)"
	p.Y.Label.Text = qualityLabel(o)

	for i, id := range ids {
		j, ok := net.NodeIndex(id)
		if !ok {
			return fmt.Errorf("wqnetutil: plot node '%s' is not in the network", id)
		}
		series, err := f.NodeSeries(j)
		if err != nil {
			return err
		}
		xy := make(plotter.XYs, len(series))
		for k, c := range series {
			xy[k].X = float64(o.ReportStart+int64(k)*o.ReportStep) / 3600
			xy[k].Y = float64(c)
		}
		l, err := plotter.NewLine(xy)
		if err != nil {
			return err
		}
		l.Color = plotutil.Color(i)
		l.Dashes = plotutil.Dashes(i)
		p.Add(l)
		p.Legend.Add(id, l)
	}
	return p.Save(6*vg.Inch, 4*vg.Inch, plotPath)
}

// qualityLabel returns the axis label for the reported quality.
func qualityLabel(o *wqnet.Options) string {
	switch o.Quality {
	case wqnet.Chem:
		return fmt.Sprintf("%s (%s)", o.ChemName, o.ChemUnits)
	case wqnet.Age:
		return "Age (hours)"
	case wqnet.Trace:
		return fmt.Sprintf("Trace from %s (%%)", o.TraceNode)
	}
	return "Quality"
}
