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

// Package wqnetutil contains the command-line interface and supporting
// functions for WQNet.
package wqnetutil

import (
	"fmt"
	"math"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/ctessum/unit"
	"github.com/spatialmodel/wqnet"
)

const secPerDay = 86400.

// duration is a time.Duration that can be read from TOML strings
// like "5m" or "1h30m".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d duration) seconds() int64 { return int64(d.Duration / time.Second) }

// converter converts values in the units of a network file to internal
// units, checking their dimensions on the way. The first error is kept.
type converter struct {
	fields *wqnet.Fields

	// m is meters per network file length unit.
	m   float64
	err error
}

func newConverter(o *wqnet.Options) *converter {
	f := wqnet.NewFields(o)
	return &converter{fields: f, m: wqnet.MperFT / f.MustUnits(wqnet.Length)}
}

func (c *converter) convert(t wqnet.FieldType, v *unit.Unit) float64 {
	x, err := c.fields.ToInternal(t, v)
	if err != nil && c.err == nil {
		c.err = err
	}
	return x
}

func (c *converter) length(t wqnet.FieldType, v float64) float64 {
	return c.convert(t, unit.New(v*c.m, unit.Meter))
}

func (c *converter) flow(v float64) float64 {
	return c.convert(wqnet.Flow, unit.New(v*c.m*c.m*c.m, unit.Meter3PerSecond))
}

// NetworkFile is the TOML description of a network. Lengths and
// diameters are in feet (US) or meters (SI), flows are in ft³/s (US) or
// m³/s (SI), qualities are in reporting units, and reaction coefficients
// are per day.
type NetworkFile struct {
	Options    OptionsFile
	Patterns   map[string][]float64
	Junctions  []NodeFile
	Reservoirs []NodeFile
	Tanks      []TankFile
	Pipes      []PipeFile
}

// OptionsFile holds the analysis options of a NetworkFile.
type OptionsFile struct {
	Quality   wqnet.QualityType
	TraceNode string
	ChemName  string
	ChemUnits string
	Units     wqnet.UnitSystem

	QualityStep  duration
	ReportStep   duration
	ReportStart  duration
	PatternStep  duration
	PatternStart duration
	Duration     duration

	BulkOrder, WallOrder, TankOrder float64
	CLimit                          float64

	// Diffusivity is relative to that of chlorine.
	Diffusivity float64
	Tolerance   float64
}

// NodeFile describes a junction or reservoir.
type NodeFile struct {
	ID          string
	InitQuality float64
	Source      *SourceFile

	// Demand is the demand used by 'hydraulics steady'. Negative
	// values are inflows.
	Demand float64
}

// TankFile describes a cylindrical storage tank.
type TankFile struct {
	ID          string
	InitQuality float64
	Source      *SourceFile
	Demand      float64

	Diameter  float64
	InitLevel float64
	MaxLevel  float64
	Kb        float64
	MixModel  wqnet.MixModel

	// MixFraction is the fraction of the tank's maximum volume taken
	// by the mixing zone of a two-compartment tank.
	MixFraction float64
}

// SourceFile describes a water quality source.
type SourceFile struct {
	Type     wqnet.SourceType
	Strength float64
	Pattern  string
}

// PipeFile describes a pipe.
type PipeFile struct {
	ID, From, To     string
	Length, Diameter float64
	Kb, Kw           float64

	// Flow is the flow used by 'hydraulics steady'.
	Flow float64
}

// chlorineDiffusivity is the molecular diffusivity of chlorine at
// 20 °C [ft²/s].
const chlorineDiffusivity = 1.3e-8

func defaultOptionsFile() OptionsFile {
	o := wqnet.DefaultOptions()
	return OptionsFile{
		ChemName:    o.ChemName,
		ChemUnits:   o.ChemUnits,
		QualityStep: duration{time.Duration(o.QualityStep) * time.Second},
		ReportStep:  duration{time.Duration(o.ReportStep) * time.Second},
		PatternStep: duration{time.Duration(o.PatternStep) * time.Second},
		BulkOrder:   o.BulkOrder,
		WallOrder:   o.WallOrder,
		TankOrder:   o.TankOrder,
		Diffusivity: 1,
		Tolerance:   o.Ctol,
	}
}

// ReadNetworkFile reads a TOML network description from path.
func ReadNetworkFile(path string) (*NetworkFile, error) {
	f := &NetworkFile{Options: defaultOptionsFile()}
	if _, err := toml.DecodeFile(os.ExpandEnv(path), f); err != nil {
		return nil, fmt.Errorf("wqnetutil: reading network file: %v", err)
	}
	return f, nil
}

// LoadNetwork reads a TOML network description from path, converts it to
// internal units, and validates it.
func LoadNetwork(path string) (*wqnet.Network, error) {
	f, err := ReadNetworkFile(path)
	if err != nil {
		return nil, err
	}
	return f.Network()
}

// Network converts f to internal units.
func (f *NetworkFile) Network() (*wqnet.Network, error) {
	fo := f.Options
	o := wqnet.DefaultOptions()
	o.Quality = fo.Quality
	o.TraceNode = fo.TraceNode
	o.ChemName = fo.ChemName
	o.ChemUnits = fo.ChemUnits
	o.Units = fo.Units
	o.QualityStep = fo.QualityStep.seconds()
	o.ReportStep = fo.ReportStep.seconds()
	o.ReportStart = fo.ReportStart.seconds()
	o.PatternStep = fo.PatternStep.seconds()
	o.PatternStart = fo.PatternStart.seconds()
	o.Duration = fo.Duration.seconds()
	o.BulkOrder = fo.BulkOrder
	o.WallOrder = fo.WallOrder
	o.TankOrder = fo.TankOrder
	o.CLimit = fo.CLimit
	o.Diffusivity = fo.Diffusivity * chlorineDiffusivity
	o.Ctol = fo.Tolerance

	conv := newConverter(&o)
	quality := conv.fields.MustUnits(wqnet.Quality)
	// Initial qualities only apply to chemicals.
	c0 := func(q float64) float64 {
		if o.Quality != wqnet.Chem {
			return 0
		}
		return q / quality
	}

	n := &wqnet.Network{
		Patterns: make(map[string]*wqnet.Pattern, len(f.Patterns)),
		Options:  o,
	}
	for id, factors := range f.Patterns {
		n.Patterns[id] = &wqnet.Pattern{ID: id, Factors: factors}
	}
	source := func(s *SourceFile) *wqnet.Source {
		if s == nil {
			return nil
		}
		return &wqnet.Source{Type: s.Type, C0: s.Strength, Pattern: s.Pattern}
	}
	for _, j := range f.Junctions {
		n.Nodes = append(n.Nodes, &wqnet.Node{
			ID:     j.ID,
			Type:   wqnet.JunctionNode,
			C0:     c0(j.InitQuality),
			Source: source(j.Source),
		})
	}
	for _, r := range f.Reservoirs {
		n.Nodes = append(n.Nodes, &wqnet.Node{
			ID:     r.ID,
			Type:   wqnet.ReservoirNode,
			C0:     c0(r.InitQuality),
			Source: source(r.Source),
			Tank:   &wqnet.TankData{},
		})
	}
	for _, t := range f.Tanks {
		if t.Diameter <= 0 {
			return nil, fmt.Errorf("wqnetutil: tank '%s' must have a diameter > 0", t.ID)
		}
		d := conv.length(wqnet.Diameter, t.Diameter)
		area := math.Pi / 4 * d * d
		vmax := area * conv.length(wqnet.Elevation, t.MaxLevel)
		mixFrac := t.MixFraction
		if mixFrac <= 0 || mixFrac > 1 {
			mixFrac = 1
		}
		n.Nodes = append(n.Nodes, &wqnet.Node{
			ID:     t.ID,
			Type:   wqnet.TankNode,
			C0:     c0(t.InitQuality),
			Source: source(t.Source),
			Tank: &wqnet.TankData{
				Area:  area,
				V0:    area * conv.length(wqnet.Elevation, t.InitLevel),
				VMax:  vmax,
				V1Max: mixFrac * vmax,
				Kb:    t.Kb / secPerDay,
				Mix:   t.MixModel,
			},
		})
	}
	for _, p := range f.Pipes {
		kw := p.Kw / secPerDay
		if o.WallOrder == 1 {
			// First order wall coefficients are velocities.
			kw = conv.length(wqnet.Length, p.Kw) / secPerDay
		}
		n.Links = append(n.Links, &wqnet.Link{
			ID:       p.ID,
			From:     p.From,
			To:       p.To,
			Length:   conv.length(wqnet.Length, p.Length),
			Diameter: conv.length(wqnet.Diameter, p.Diameter),
			Kb:       p.Kb / secPerDay,
			Kw:       kw,
		})
	}
	if conv.err != nil {
		return nil, conv.err
	}
	if err := n.Validate(); err != nil {
		return nil, err
	}
	return n, nil
}

// SteadyHydraulics returns the demands and flows [ft³/s] given in f, in
// the order of the network's nodes and links.
func (f *NetworkFile) SteadyHydraulics() (demands, flows []float64, err error) {
	o := wqnet.DefaultOptions()
	o.Units = f.Options.Units
	conv := newConverter(&o)
	for _, j := range f.Junctions {
		demands = append(demands, conv.flow(j.Demand))
	}
	for _, r := range f.Reservoirs {
		demands = append(demands, conv.flow(r.Demand))
	}
	for _, t := range f.Tanks {
		demands = append(demands, conv.flow(t.Demand))
	}
	for _, p := range f.Pipes {
		flows = append(flows, conv.flow(p.Flow))
	}
	if conv.err != nil {
		return nil, nil, conv.err
	}
	return demands, flows, nil
}
