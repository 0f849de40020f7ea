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

// Package wqnet simulates the transport and reaction of a dissolved
// constituent through a pressurized pipe network, given flows and demands
// computed by a separate hydraulic solver.
package wqnet

import (
	"fmt"
	"strings"
)

// Version gives the version number.
const Version = "0.3.0"

// NodeType is the kind of a network node.
type NodeType int

// Node kinds.
const (
	JunctionNode NodeType = iota
	TankNode
	ReservoirNode
)

// QualityType is the kind of water quality analysis.
type QualityType int

// Analysis kinds.
const (
	NoQuality QualityType = iota
	Chem
	Age
	Trace
)

func (q QualityType) String() string {
	switch q {
	case NoQuality:
		return "none"
	case Chem:
		return "chemical"
	case Age:
		return "age"
	case Trace:
		return "trace"
	}
	return fmt.Sprintf("QualityType(%d)", int(q))
}

// ParseQualityType converts a string to a QualityType.
func ParseQualityType(s string) (QualityType, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return NoQuality, nil
	case "chem", "chemical":
		return Chem, nil
	case "age":
		return Age, nil
	case "trace":
		return Trace, nil
	}
	return NoQuality, fmt.Errorf("wqnet: invalid quality type '%s'", s)
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (q *QualityType) UnmarshalText(b []byte) error {
	v, err := ParseQualityType(string(b))
	*q = v
	return err
}

// MixModel is a tank mixing regime.
type MixModel int

// Tank mixing regimes.
const (
	CompleteMix MixModel = iota
	TwoCompartment
	FIFO
	LIFO
)

func (m MixModel) String() string {
	switch m {
	case CompleteMix:
		return "MIXED"
	case TwoCompartment:
		return "2COMP"
	case FIFO:
		return "FIFO"
	case LIFO:
		return "LIFO"
	}
	return fmt.Sprintf("MixModel(%d)", int(m))
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *MixModel) UnmarshalText(b []byte) error {
	switch strings.ToUpper(string(b)) {
	case "", "MIXED", "MIX1":
		*m = CompleteMix
	case "2COMP", "MIX2":
		*m = TwoCompartment
	case "FIFO":
		*m = FIFO
	case "LIFO":
		*m = LIFO
	default:
		return fmt.Errorf("wqnet: invalid tank mixing model '%s'", b)
	}
	return nil
}

// SourceType is the kind of a water quality source.
type SourceType int

// Source kinds.
const (
	Concen SourceType = iota
	Mass
	Setpoint
	FlowPaced
)

func (s SourceType) String() string {
	switch s {
	case Concen:
		return "CONCEN"
	case Mass:
		return "MASS"
	case Setpoint:
		return "SETPOINT"
	case FlowPaced:
		return "FLOWPACED"
	}
	return fmt.Sprintf("SourceType(%d)", int(s))
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *SourceType) UnmarshalText(b []byte) error {
	switch strings.ToUpper(string(b)) {
	case "", "CONCEN":
		*s = Concen
	case "MASS":
		*s = Mass
	case "SETPOINT":
		*s = Setpoint
	case "FLOWPACED":
		*s = FlowPaced
	default:
		return fmt.Errorf("wqnet: invalid source type '%s'", b)
	}
	return nil
}

// UnitSystem is the system of units that results are reported in.
type UnitSystem int

// Unit systems.
const (
	US UnitSystem = iota
	SI
)

// UnmarshalText implements encoding.TextUnmarshaler.
func (u *UnitSystem) UnmarshalText(b []byte) error {
	switch strings.ToUpper(string(b)) {
	case "", "US":
		*u = US
	case "SI":
		*u = SI
	default:
		return fmt.Errorf("wqnet: invalid unit system '%s'", b)
	}
	return nil
}

// Source is a water quality source at a node.
type Source struct {
	Type SourceType

	// C0 is the base source strength, in reporting concentration
	// units or mass per minute for mass sources.
	C0 float64

	// Pattern is the ID of the time pattern that multiplies C0.
	// It may be empty.
	Pattern string
}

// Pattern is a cyclic series of multipliers.
type Pattern struct {
	ID      string
	Factors []float64
}

// Multiplier returns the pattern multiplier at simulation time t [s].
// A pattern with no factors always returns 1.
func (p *Pattern) Multiplier(t, start, step int64) float64 {
	if p == nil || len(p.Factors) == 0 || step <= 0 {
		return 1
	}
	i := ((t + start) / step) % int64(len(p.Factors))
	return p.Factors[i]
}

// TankData holds the properties of tanks and reservoirs.
type TankData struct {
	// Area is the cross-sectional area [ft²]. Reservoirs have
	// zero area.
	Area float64

	V0    float64 // initial volume [ft³]
	VMax  float64 // maximum volume [ft³]
	V1Max float64 // mixing zone volume of two-compartment tanks [ft³]
	Kb    float64 // bulk reaction coefficient
	Mix   MixModel
}

// Node is a static network node.
type Node struct {
	ID   string
	Type NodeType

	// C0 is the initial quality, in internal units.
	C0 float64

	Source *Source
	Tank   *TankData
}

// Link is a static network link.
type Link struct {
	ID       string
	From, To string

	Length   float64 // [ft]
	Diameter float64 // [ft]
	Kb       float64 // bulk reaction coefficient
	Kw       float64 // wall reaction coefficient
}

// Options holds the analysis options.
type Options struct {
	Quality   QualityType
	TraceNode string
	ChemName  string
	ChemUnits string
	Units     UnitSystem

	// Time steps [s].
	QualityStep  int64
	ReportStep   int64
	ReportStart  int64
	PatternStep  int64
	PatternStart int64
	Duration     int64

	BulkOrder float64
	WallOrder float64
	TankOrder float64

	// CLimit is the limiting concentration for growth or decay
	// reactions.
	CLimit float64

	// Diffusivity is the molecular diffusivity of the constituent
	// [ft²/s]. Zero disables mass transfer limitation.
	Diffusivity float64

	// Viscosity is the kinematic viscosity of water [ft²/s].
	Viscosity float64

	// Ctol is the concentration tolerance under which adjacent
	// segments are merged.
	Ctol float64
}

// DefaultOptions returns the default analysis options.
func DefaultOptions() Options {
	return Options{
		Quality:     NoQuality,
		ChemName:    "Chemical",
		ChemUnits:   "mg/L",
		QualityStep: 300,
		ReportStep:  3600,
		PatternStep: 3600,
		Duration:    0,
		BulkOrder:   1,
		WallOrder:   1,
		TankOrder:   1,
		Diffusivity: 1.3e-8,
		Viscosity:   1.1e-5,
		Ctol:        0.01,
	}
}

// Network is a static pipe network description.
type Network struct {
	Nodes    []*Node
	Links    []*Link
	Patterns map[string]*Pattern
	Options  Options
}

// NodeIndex returns the index of the node with the given ID.
func (n *Network) NodeIndex(id string) (int, bool) {
	for i, nd := range n.Nodes {
		if nd.ID == id {
			return i, true
		}
	}
	return -1, false
}

// Validate checks the network for internal consistency.
func (n *Network) Validate() error {
	if len(n.Nodes) == 0 {
		return fmt.Errorf("wqnet: network has no nodes")
	}
	nodes := make(map[string]struct{}, len(n.Nodes))
	for _, nd := range n.Nodes {
		if _, ok := nodes[nd.ID]; ok {
			return fmt.Errorf("wqnet: duplicate node ID '%s'", nd.ID)
		}
		nodes[nd.ID] = struct{}{}
		if (nd.Type == TankNode || nd.Type == ReservoirNode) && nd.Tank == nil {
			return fmt.Errorf("wqnet: node '%s' is a tank or reservoir but has no tank data", nd.ID)
		}
		if nd.Type == ReservoirNode && nd.Tank.Area != 0 {
			return fmt.Errorf("wqnet: reservoir '%s' has non-zero area", nd.ID)
		}
		if nd.Type == TankNode {
			if nd.Tank.Area <= 0 {
				return fmt.Errorf("wqnet: tank '%s' must have an area > 0", nd.ID)
			}
			if nd.Tank.Mix < CompleteMix || nd.Tank.Mix > LIFO {
				return fmt.Errorf("wqnet: tank '%s' has invalid mixing model %v", nd.ID, nd.Tank.Mix)
			}
		}
		if nd.Source != nil && nd.Source.Pattern != "" {
			if _, ok := n.Patterns[nd.Source.Pattern]; !ok {
				return fmt.Errorf("wqnet: node '%s' references undefined pattern '%s'", nd.ID, nd.Source.Pattern)
			}
		}
	}
	links := make(map[string]struct{}, len(n.Links))
	for _, l := range n.Links {
		if _, ok := links[l.ID]; ok {
			return fmt.Errorf("wqnet: duplicate link ID '%s'", l.ID)
		}
		links[l.ID] = struct{}{}
		for _, id := range []string{l.From, l.To} {
			if _, ok := nodes[id]; !ok {
				return fmt.Errorf("wqnet: link '%s' references undefined node '%s'", l.ID, id)
			}
		}
		if l.Length < 0 || l.Diameter < 0 {
			return fmt.Errorf("wqnet: link '%s' has negative length or diameter", l.ID)
		}
	}
	o := n.Options
	if o.Quality == Trace {
		if _, ok := nodes[o.TraceNode]; !ok {
			return fmt.Errorf("wqnet: trace node '%s' is not in the network", o.TraceNode)
		}
	}
	if o.QualityStep <= 0 {
		return fmt.Errorf("wqnet: quality time step must be > 0 but is %d", o.QualityStep)
	}
	if o.ReportStep <= 0 {
		return fmt.Errorf("wqnet: report time step must be > 0 but is %d", o.ReportStep)
	}
	if o.Ctol < 0 {
		return fmt.Errorf("wqnet: concentration tolerance must be >= 0 but is %g", o.Ctol)
	}
	return nil
}
