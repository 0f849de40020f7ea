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

// Package reaction provides bulk, pipe wall, and tank reaction kinetics
// for a single dissolved constituent.
package reaction

import "math"

const (
	// Tiny is the threshold under which denominators are treated as zero.
	Tiny = 1.e-6

	// Big stands in for an infinite mass transfer coefficient.
	Big = 1.e10
)

// Params holds the network-wide reaction parameters.
type Params struct {
	// Enabled specifies whether any reactions occur in this simulation.
	Enabled bool

	// Age specifies that quality is water age [h] rather than
	// a concentration.
	Age bool

	BulkOrder float64
	WallOrder float64
	TankOrder float64

	// CLimit is the limiting concentration for growth or decay reactions.
	CLimit float64

	Diffusivity float64 // [ft²/s]
	Viscosity   float64 // [ft²/s]

	// ElevUcf converts internal lengths to reporting lengths.
	ElevUcf float64

	// BulkUcf and TankUcf convert bulk and tank reaction
	// coefficients to internal concentration units.
	BulkUcf, TankUcf float64
}

// Schmidt returns the Schmidt number, or zero if no diffusivity is
// specified.
func (p *Params) Schmidt() float64 {
	if p.Diffusivity > 0 {
		return p.Viscosity / p.Diffusivity
	}
	return 0
}

// Totals accumulates the mass reacted and injected over a simulation.
type Totals struct {
	Bulk   float64 // mass reacted in pipe bulk flow
	Wall   float64 // mass reacted at pipe walls
	Tank   float64 // mass reacted in tanks
	Source float64 // mass injected by sources
}

// Reacted returns the total mass reacted.
func (t Totals) Reacted() float64 { return t.Bulk + t.Wall + t.Tank }

func sgn(x float64) float64 {
	if x < 0 {
		return -1
	}
	return 1
}

// BulkRate returns the bulk reaction rate [mass/ft³/s] for concentration c,
// bulk coefficient kb, reaction order, and limiting concentration climit.
// Negative orders are Michaelis-Menten kinetics and positive orders are
// n-th order kinetics.
func BulkRate(c, kb, order, climit float64) float64 {
	switch {
	case order == 0:
		c = 1
	case order < 0:
		c1 := climit + sgn(kb)*c
		if math.Abs(c1) < Tiny {
			c1 = sgn(c1) * Tiny
		}
		c = c / c1
	default:
		var c1 float64
		if climit == 0 {
			c1 = c
		} else {
			c1 = math.Max(0, sgn(kb)*(climit-c))
		}
		switch order {
		case 1:
			c = c1
		case 2:
			c = c1 * c
		default:
			c = c1 * math.Pow(math.Max(0, c), order-1)
		}
	}
	if c < 0 {
		c = 0
	}
	return kb * c
}

// WallRate returns the pipe wall reaction rate [mass/ft³/s] for
// concentration c in a pipe of diameter d [ft] with wall coefficient kw
// and mass transfer coefficient kf.
func WallRate(c, d, kw, kf, wallOrder, elevUcf float64) float64 {
	if kw == 0 || d == 0 {
		return 0
	}
	if wallOrder == 0 {
		kf = sgn(kw) * c * kf       // mass transfer rate [mass/ft²/s]
		kw = kw * elevUcf * elevUcf // wall reaction rate [mass/ft²/s]
		if math.Abs(kf) < math.Abs(kw) {
			kw = kf
		}
		return kw * 4 / d
	}
	return c * kf
}

// PipeRate returns the wall reaction rate coefficient of a pipe with
// the given flow [ft³/s], diameter [ft], length [ft], and wall
// coefficient kw. For zero-order wall reactions the result is the
// mass transfer coefficient alone.
func PipeRate(p *Params, flow, d, length, kw float64) float64 {
	sc := p.Schmidt()
	if sc == 0 {
		if p.WallOrder == 0 {
			return Big
		}
		return kw * (4 / d) / p.ElevUcf
	}

	a := math.Pi * d * d / 4
	u := math.Abs(flow) / a
	re := u * d / p.Viscosity

	// Sherwood number
	var sh float64
	switch {
	case re < 1:
		sh = 2
	case re >= 2300:
		sh = 0.0149 * math.Pow(re, 0.88) * math.Pow(sc, 0.333)
	default:
		var y float64
		if length > 0 {
			y = d / length * re * sc
		}
		sh = 3.65 + 0.0668*y/(1+0.04*math.Pow(y, 0.667))
	}

	kf := sh * p.Diffusivity / d
	if p.WallOrder == 0 {
		return kf
	}
	kw /= p.ElevUcf
	return (4 / d) * kw * kf / (kf + math.Abs(kw))
}

// Pipe holds the reaction properties of a single pipe.
type Pipe struct {
	Kb, Kw   float64
	Diameter float64

	// Kf is the wall rate coefficient calculated by PipeRate.
	Kf float64
}

// PipeReact returns the quality of a parcel of volume v and quality c
// after reacting for dt seconds in pipe k. If report is true, the
// reacted mass is added to t.
func PipeReact(p *Params, k Pipe, c, v float64, dt int64, report bool, t *Totals) float64 {
	if p.Age {
		return c + float64(dt)/3600
	}
	rbulk := BulkRate(c, k.Kb, p.BulkOrder, p.CLimit) * p.BulkUcf
	rwall := WallRate(c, k.Diameter, k.Kw, k.Kf, p.WallOrder, p.ElevUcf)

	dcbulk := rbulk * float64(dt)
	dcwall := rwall * float64(dt)
	if report && t != nil {
		t.Bulk += math.Abs(dcbulk) * v
		t.Wall += math.Abs(dcwall) * v
	}
	return math.Max(0, c+dcbulk+dcwall)
}

// TankReact returns the quality of a parcel of volume v and quality c
// after reacting for dt seconds in a tank with bulk coefficient kb.
// If report is true, the reacted mass is added to t.
func TankReact(p *Params, c, v, kb float64, dt int64, report bool, t *Totals) float64 {
	if !p.Enabled {
		return c
	}
	if p.Age {
		return c + float64(dt)/3600
	}
	dc := BulkRate(c, kb, p.TankOrder, p.CLimit) * p.TankUcf * float64(dt)
	if report && t != nil {
		t.Tank += math.Abs(dc) * v
	}
	return math.Max(0, c+dc)
}
