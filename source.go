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

import "github.com/spatialmodel/wqnet/science/reaction"

// SourceQuality returns the strength of source src at simulation time t
// [s], in internal units: mass per second for mass sources and mass per
// cubic foot otherwise. It returns zero if src is nil.
func (s *Simulation) SourceQuality(src *Source, t int64) float64 {
	if src == nil {
		return 0
	}
	var c float64
	if src.Type == Mass {
		c = src.C0 / 60 // mass/min to mass/s
	} else {
		c = src.C0 / s.qualityUcf
	}
	o := &s.Network.Options
	return c * s.Network.Patterns[src.Pattern].Multiplier(t, o.PatternStart, o.PatternStep)
}

// InjectSources returns a function that adds the mass from each node's
// water quality source to the water leaving the node. Sources only act in
// chemical analyses. Reservoir outflows are counted as injected mass.
func InjectSources() NetworkManipulator {
	// qcutoff is the outflow rate under which a node is considered to
	// have no outflow.
	const qcutoff = 10 * reaction.Tiny

	return func(s *Simulation, dt int64) error {
		for _, n := range s.Graph.Nodes {
			n.State().SourceContribution = 0
		}
		if s.Network.Options.Quality != Chem {
			return nil
		}
		report := s.htime >= s.Network.Options.ReportStart
		fdt := float64(dt)
		for _, n := range s.Graph.Nodes {
			st := n.State()
			src := st.Node.Source
			if src == nil || src.C0 == 0 {
				continue
			}
			volout := st.VolumeIn
			tank, isTank := n.(*Tank)
			if isTank {
				volout = st.VolumeIn - st.Demand*fdt
			}
			if volout/fdt <= qcutoff {
				continue
			}
			c := s.SourceQuality(src, s.qtime)
			var mass float64
			switch src.Type {
			case Concen:
				if st.Demand < 0 {
					mass = -c * st.Demand * fdt
					if isTank {
						// The tank's quality is restored the next
						// time it is mixed.
						tank.Quality = 0
					}
				}
			case Mass:
				mass = c * fdt
			case Setpoint:
				if c > st.Quality {
					mass = (c - st.Quality) * volout
				}
			case FlowPaced:
				mass = c * volout
			}
			st.SourceContribution = mass / volout
			st.MassRate += mass
			if report {
				s.Totals.Source += mass
			}
		}

		if !report {
			return nil
		}
		for _, n := range s.Graph.Nodes {
			t, ok := n.(*Tank)
			if !ok || !t.Reservoir() {
				continue
			}
			if volout := t.VolumeIn - t.Demand*fdt; volout > 0 {
				s.Totals.Source += volout * t.Quality
			}
		}
		return nil
	}
}
