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

package wqnet

import (
	"math"

	"github.com/spatialmodel/wqnet/science/reaction"
)

const secPerDay = 86400.

// NetworkManipulator is a function that advances the state of a
// simulation by a quality time step of dt seconds.
type NetworkManipulator func(s *Simulation, dt int64) error

// DefaultTransport returns the quality transport steps, in the order
// they must be run.
func DefaultTransport() []NetworkManipulator {
	return []NetworkManipulator{
		React(),
		Accumulate(),
		UpdateNodes(),
		InjectSources(),
		Release(),
	}
}

// React returns a function that reacts the water in every pipe segment.
func React() NetworkManipulator {
	return func(s *Simulation, dt int64) error {
		if !s.Params.Enabled {
			return nil
		}
		report := s.htime >= s.Network.Options.ReportStart
		chem := s.Network.Options.Quality == Chem
		for _, l := range s.Graph.Links {
			if l.Link.Length == 0 {
				continue
			}
			k := reaction.Pipe{
				Kb:       l.Link.Kb,
				Kw:       l.Link.Kw,
				Diameter: l.Link.Diameter,
				Kf:       l.FlowResistance,
			}
			var rsum, vsum float64
			l.Segments.Each(func(seg *Segment) {
				c := reaction.PipeReact(&s.Params, k, seg.C, seg.V, dt, report, &s.Totals)
				rsum += math.Abs(c-seg.C) * seg.V
				vsum += seg.V
				seg.C = c
			})
			if chem && vsum > 0 {
				l.ReactionRate = rsum / vsum / float64(dt) * secPerDay
			} else {
				l.ReactionRate = 0
			}
		}
		return nil
	}
}

func (g *Graph) zeroAccumulators() {
	for _, n := range g.Nodes {
		st := n.State()
		st.VolumeIn = 0
		st.MassIn = 0
	}
}

// Accumulate returns a function that moves water from the downstream end
// of each link into the link's downstream node.
//
// Before the transfer, the quality of the segments adjacent to each node
// is averaged and stored as the node's SourceContribution. Nodes that
// receive no water during the step take this estimate as their quality,
// which is zero for nodes without adjacent segments.
func Accumulate() NetworkManipulator {
	return func(s *Simulation, dt int64) error {
		g := s.Graph

		g.zeroAccumulators()
		for _, n := range g.Nodes {
			n.State().SourceContribution = 0
		}
		for _, l := range g.Links {
			if l.Segments.Len() == 0 {
				continue
			}
			dn := l.Downstream().State()
			dn.MassIn += l.Segments.Front().C
			dn.VolumeIn++
			up := l.Upstream().State()
			up.MassIn += l.Segments.Back().C
			up.VolumeIn++
		}
		for _, n := range g.Nodes {
			st := n.State()
			if st.VolumeIn > 0 {
				st.SourceContribution = st.MassIn / st.VolumeIn
			}
		}

		g.zeroAccumulators()
		for _, l := range g.Links {
			dn := l.Downstream().State()
			v := math.Abs(l.Flow) * float64(dt)
			for v > 0 {
				seg := l.Segments.Front()
				if seg == nil {
					break
				}
				vseg := math.Min(seg.V, v)
				if l.Segments.Len() == 1 {
					vseg = v
				}
				dn.VolumeIn += vseg
				dn.MassIn += vseg * seg.C
				v -= vseg
				if vseg >= seg.V {
					l.Segments.PopFront()
				} else {
					seg.V -= vseg
				}
			}
		}
		return nil
	}
}

// UpdateNodes returns a function that mixes the water arriving at each
// node.
func UpdateNodes() NetworkManipulator {
	return func(s *Simulation, dt int64) error {
		for _, n := range s.Graph.Nodes {
			switch n := n.(type) {
			case *Junction:
				if n.Demand < 0 {
					n.VolumeIn -= n.Demand * float64(dt)
				}
				if n.VolumeIn > 0 {
					n.Quality = n.MassIn / n.VolumeIn
				} else {
					n.Quality = n.SourceContribution
				}
			case *Tank:
				s.mixTank(n, dt)
			}
		}
		if s.traceNode != nil {
			s.traceNode.State().Quality = 100
		}
		return nil
	}
}

// Release returns a function that releases water from the upstream node of
// each link into the upstream end of the link.
func Release() NetworkManipulator {
	return func(s *Simulation, dt int64) error {
		for _, l := range s.Graph.Links {
			if l.Flow == 0 {
				continue
			}
			up := l.Upstream().State()
			c := up.Quality + up.SourceContribution
			v := math.Abs(l.Flow) * float64(dt)

			seg := l.Segments.Back()
			switch {
			case seg == nil:
				l.Segments.PushBack(&Segment{V: l.Volume(), C: c})
			case math.Abs(seg.C-c) < s.ctol:
				seg.C = (seg.C*seg.V + c*v) / (seg.V + v)
				seg.V += v
			default:
				l.Segments.PushBack(&Segment{V: v, C: c})
			}
		}
		return nil
	}
}

// initSegments fills every link with a single segment at the quality of
// its downstream node, and fills tanks that are not completely mixed.
func (s *Simulation) initSegments() {
	for _, l := range s.Graph.Links {
		l.FlowDir = l.Flow >= 0
		l.Segments.Clear()
		var c float64
		switch dn := l.Downstream().(type) {
		case *Tank:
			c = dn.Concentration
		case *Junction:
			c = dn.Quality
		}
		l.Segments.PushBack(&Segment{V: l.Volume(), C: c})
	}
	for _, n := range s.Graph.Nodes {
		t, ok := n.(*Tank)
		if !ok || t.Reservoir() {
			continue
		}
		t.Segments.Clear()
		c := t.Concentration
		switch t.Node.Tank.Mix {
		case TwoCompartment:
			ambient := math.Max(0, t.Volume-t.Node.Tank.V1Max)
			t.Segments.PushBack(&Segment{V: ambient, C: c})
			t.Segments.PushBack(&Segment{V: t.Volume - ambient, C: c})
		case FIFO, LIFO:
			t.Segments.PushBack(&Segment{V: t.Volume, C: c})
		}
	}
}

// reorientSegments reverses the segments of links whose flow direction
// has changed.
func (s *Simulation) reorientSegments() {
	for _, l := range s.Graph.Links {
		var dir bool
		switch {
		case l.Flow > 0:
			dir = true
		case l.Flow < 0:
			dir = false
		default:
			continue
		}
		if dir != l.FlowDir {
			l.Segments.Reverse()
			l.FlowDir = dir
		}
	}
}

// rateCoeffs calculates the wall reaction coefficient of every link for
// the current flows.
func (s *Simulation) rateCoeffs() {
	for _, l := range s.Graph.Links {
		kw := l.Link.Kw
		if kw != 0 && l.Link.Diameter > 0 {
			kw = reaction.PipeRate(&s.Params, l.Flow, l.Link.Diameter, l.Link.Length, kw)
		}
		l.FlowResistance = kw
		l.ReactionRate = 0
	}
}
