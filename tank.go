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
	"fmt"
	"math"

	"github.com/spatialmodel/wqnet/science/reaction"
)

// mixTank updates the volume and quality of tank t over a time step of
// dt seconds using the tank's mixing model.
func (s *Simulation) mixTank(t *Tank, dt int64) {
	if t.Reservoir() {
		t.Quality = t.Node.C0
		if s.Network.Options.Quality != Chem {
			t.Quality = 0
		}
		t.Concentration = t.Quality
		return
	}
	switch t.Node.Tank.Mix {
	case CompleteMix:
		s.mixComplete(t, dt)
	case TwoCompartment:
		s.mixTwoCompartment(t, dt)
	case FIFO:
		s.mixFIFO(t, dt)
	case LIFO:
		s.mixLIFO(t, dt)
	default:
		panic(fmt.Errorf("wqnet: invalid mixing model %v for tank '%s'", t.Node.Tank.Mix, t.Node.ID))
	}
	t.Quality = t.Concentration
}

func (s *Simulation) tankReact(t *Tank, c, v float64, dt int64) float64 {
	report := s.htime >= s.Network.Options.ReportStart
	return reaction.TankReact(&s.Params, c, v, t.Node.Tank.Kb, dt, report, &s.Totals)
}

// inflow returns the volume and quality of the water that entered the
// tank during the current step.
func (t *Tank) inflow() (vin, cin float64) {
	vin = t.VolumeIn
	if vin > 0 {
		cin = t.MassIn / vin
	}
	return
}

// mixComplete updates a tank whose contents are completely mixed.
func (s *Simulation) mixComplete(t *Tank, dt int64) {
	c := s.tankReact(t, t.Concentration, t.Volume, dt)

	vold := t.Volume
	t.Volume += t.Demand * float64(dt)
	vin, cin := t.inflow()
	cmax := math.Max(c, cin)
	if vin > 0 && vold+vin > 0 {
		c = (c*vold + cin*vin) / (vold + vin)
	}
	c = math.Min(c, cmax)
	t.Concentration = math.Max(c, 0)
}

// mixTwoCompartment updates a tank with a mixing zone at its inlet and
// outlet and an ambient zone behind it. The back segment of the tank is
// the mixing zone and the front segment is the ambient zone.
func (s *Simulation) mixTwoCompartment(t *Tank, dt int64) {
	if t.Segments.Len() < 2 {
		return
	}
	mix := t.Segments.Back()
	amb := t.Segments.Front()

	mix.C = s.tankReact(t, mix.C, mix.V, dt)
	amb.C = s.tankReact(t, amb.C, amb.V, dt)

	vnet := t.Demand * float64(dt)
	vin, cin := t.inflow()
	vmax := t.Node.Tank.V1Max

	if vnet >= 0 { // filling
		// Overflow from the mixing zone into the ambient zone.
		vt := math.Max(0, mix.V+vnet-vmax)
		if vin > 0 {
			mix.C = (mix.C*mix.V + cin*vin) / (mix.V + vin)
		}
		if vt > 0 {
			amb.C = (amb.C*amb.V + mix.C*vt) / (amb.V + vt)
		}
		mix.V = math.Min(mix.V+vnet, vmax)
		amb.V += vt
	} else { // emptying
		// Water drawn from the ambient zone into the mixing zone.
		vt := math.Min(amb.V, -vnet)
		if vin+vt > 0 {
			mix.C = (mix.C*mix.V + cin*vin + amb.C*vt) / (mix.V + vin + vt)
		}
		amb.V -= vt
		mix.V = math.Max(0, mix.V+vnet+vt)
	}

	t.Volume = math.Max(0, t.Volume+vnet)
	t.Concentration = mix.C
}

// mixFIFO updates a tank where the oldest water leaves first.
func (s *Simulation) mixFIFO(t *Tank, dt int64) {
	if t.Segments.Len() == 0 {
		return
	}
	t.Segments.Each(func(seg *Segment) {
		seg.C = s.tankReact(t, seg.C, seg.V, dt)
	})

	vnet := t.Demand * float64(dt)
	vin, cin := t.inflow()
	vout := vin - vnet
	t.Volume = math.Max(0, t.Volume+vnet)

	// Withdraw the outflow from the front of the tank.
	var vsum, csum float64
	for vout > 0 {
		seg := t.Segments.Front()
		vseg := math.Min(seg.V, vout)
		last := t.Segments.Len() == 1
		if last {
			vseg = vout
		}
		vsum += vseg
		csum += seg.C * vseg
		vout -= vseg
		switch {
		case last:
			seg.V = math.Max(0, seg.V-vseg)
		case vseg >= seg.V:
			t.Segments.PopFront()
		default:
			seg.V -= vseg
		}
	}
	if vsum > 0 {
		t.Concentration = csum / vsum
	} else {
		t.Concentration = t.Segments.Front().C
	}

	// Add the inflow to the back of the tank.
	if vin > 0 {
		if seg := t.Segments.Back(); math.Abs(seg.C-cin) < s.ctol {
			seg.C = (seg.C*seg.V + cin*vin) / (seg.V + vin)
			seg.V += vin
		} else {
			t.Segments.PushBack(&Segment{V: vin, C: cin})
		}
	}
}

// mixLIFO updates a tank where the newest water leaves first.
func (s *Simulation) mixLIFO(t *Tank, dt int64) {
	if t.Segments.Len() == 0 {
		return
	}
	t.Segments.Each(func(seg *Segment) {
		seg.C = s.tankReact(t, seg.C, seg.V, dt)
	})

	vnet := t.Demand * float64(dt)
	vin, cin := t.inflow()
	t.Volume = math.Max(0, t.Volume+vnet)
	t.Concentration = t.Segments.Back().C

	switch {
	case vnet > 0: // filling
		if seg := t.Segments.Back(); math.Abs(seg.C-cin) < s.ctol {
			seg.C = (seg.C*seg.V + cin*vnet) / (seg.V + vnet)
			seg.V += vnet
		} else {
			t.Segments.PushBack(&Segment{V: vnet, C: cin})
		}
		t.Concentration = t.Segments.Back().C

	case vnet < 0: // emptying
		var vsum, csum float64
		vout := -vnet
		for vout > 0 {
			seg := t.Segments.Back()
			vseg := math.Min(seg.V, vout)
			last := t.Segments.Len() == 1
			if last {
				vseg = vout
			}
			vsum += vseg
			csum += seg.C * vseg
			vout -= vseg
			switch {
			case last:
				seg.V = math.Max(0, seg.V-vseg)
			case vseg >= seg.V:
				t.Segments.PopBack()
			default:
				seg.V -= vseg
			}
		}
		t.Concentration = (csum + t.MassIn) / (vsum + vin)
	}
}
