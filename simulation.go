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
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/wqnet/science/reaction"
	"github.com/spatialmodel/wqnet/wqout"
)

// Simulation holds the state of a water quality simulation.
type Simulation struct {
	Network *Network
	Graph   *Graph
	Fields  *Fields

	// Params holds the reaction parameters.
	Params reaction.Params

	// Totals holds the mass reacted and injected since the start of the
	// reporting period.
	Totals reaction.Totals

	// TransportFuncs are run in order every quality time step.
	TransportFuncs []NetworkManipulator

	// Log receives status messages.
	Log logrus.FieldLogger

	qtime, htime, rtime int64
	periods             int
	initialized         bool

	qualityUcf  float64
	ctol        float64
	traceNode   QualityNode
	initialMass float64
}

// NewSimulation prepares a water quality simulation of net.
func NewSimulation(net *Network) (*Simulation, error) {
	if err := net.Validate(); err != nil {
		return nil, err
	}
	g, err := NewGraph(net)
	if err != nil {
		return nil, err
	}
	o := &net.Options
	f := NewFields(o)
	s := &Simulation{
		Network:        net,
		Graph:          g,
		Fields:         f,
		TransportFuncs: DefaultTransport(),
		Log:            logrus.StandardLogger(),
		rtime:          o.ReportStart,
	}
	if s.qualityUcf, err = f.Units(Quality); err != nil {
		return nil, err
	}
	s.ctol = o.Ctol / s.qualityUcf
	s.Params = reaction.Params{
		Enabled:     reactFlag(net),
		Age:         o.Quality == Age,
		BulkOrder:   o.BulkOrder,
		WallOrder:   o.WallOrder,
		TankOrder:   o.TankOrder,
		CLimit:      o.CLimit / s.qualityUcf,
		Diffusivity: o.Diffusivity,
		Viscosity:   o.Viscosity,
		ElevUcf:     f.MustUnits(Elevation),
		BulkUcf:     f.MustUnits(BulkReactionRate),
		TankUcf:     f.MustUnits(TankReactionRate),
	}
	if o.Quality == Trace {
		i, _ := net.NodeIndex(o.TraceNode)
		s.traceNode = g.Nodes[i]
	}
	s.initQuality()
	return s, nil
}

// reactFlag returns whether any reactions occur in the network.
func reactFlag(net *Network) bool {
	switch net.Options.Quality {
	case Age:
		return true
	case Chem:
		for _, l := range net.Links {
			if l.Kb != 0 || l.Kw != 0 {
				return true
			}
		}
		for _, n := range net.Nodes {
			if n.Tank != nil && n.Tank.Area > 0 && n.Tank.Kb != 0 {
				return true
			}
		}
	}
	return false
}

// initQuality sets the initial quality and volume of every node.
func (s *Simulation) initQuality() {
	chem := s.Network.Options.Quality == Chem
	for _, n := range s.Graph.Nodes {
		st := n.State()
		st.Quality = 0
		if chem {
			st.Quality = st.Node.C0
		}
		st.MassRate = 0
		if t, ok := n.(*Tank); ok {
			t.Volume = t.Node.Tank.V0
			t.Concentration = st.Quality
		}
	}
	if s.traceNode != nil {
		s.traceNode.State().Quality = 100
	}
}

// Time returns the current simulation time [s].
func (s *Simulation) Time() int64 { return s.qtime }

// Periods returns the number of reporting periods written.
func (s *Simulation) Periods() int { return s.periods }

// InitialMass returns the mass stored in links and tanks when the first
// hydraulic step was loaded.
func (s *Simulation) InitialMass() float64 { return s.initialMass }

// hydraulics loads a hydraulic solution and prepares the links for
// transport.
func (s *Simulation) hydraulics(demands, flows []float64) error {
	if err := s.Graph.SetHydraulics(demands, flows); err != nil {
		return err
	}
	if s.Params.Enabled && !s.Params.Age {
		s.rateCoeffs()
	}
	if !s.initialized {
		s.initSegments()
		s.initialized = true
		s.initialMass = s.Graph.Mass()
	} else {
		s.reorientSegments()
	}
	return nil
}

// transport advances the simulation by tstep seconds. If snapshot is not
// nil, time steps are shortened to end on reporting times, and snapshot is
// called after each time step.
func (s *Simulation) transport(tstep int64, snapshot func() error) error {
	funcs := s.TransportFuncs
	if s.Network.Options.Quality == NoQuality {
		funcs = nil
	}
	end := s.qtime + tstep
	for s.qtime < end {
		dt := min64(s.Network.Options.QualityStep, end-s.qtime)
		if snapshot != nil && s.rtime > s.qtime {
			dt = min64(dt, s.rtime-s.qtime)
		}
		for _, f := range funcs {
			if err := f(s, dt); err != nil {
				return err
			}
		}
		s.qtime += dt
		if snapshot != nil {
			if err := snapshot(); err != nil {
				return err
			}
		}
	}
	return nil
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

// NodeQualities returns the current quality of every node, in reporting
// units.
func (s *Simulation) NodeQualities() []float64 {
	o := make([]float64, len(s.Graph.Nodes))
	if s.Network.Options.Quality == NoQuality {
		return o
	}
	chem := s.Network.Options.Quality == Chem
	for i, n := range s.Graph.Nodes {
		st := n.State()
		q := st.Quality
		if t, ok := n.(*Tank); ok && !t.Reservoir() && n != s.traceNode {
			q = t.Concentration
		} else if chem && st.Node.Source != nil {
			q += st.SourceContribution
		}
		o[i] = q * s.qualityUcf
	}
	return o
}

// LinkQualities returns the current average quality in every link, in
// reporting units.
func (s *Simulation) LinkQualities() []float64 {
	o := make([]float64, len(s.Graph.Links))
	for i, l := range s.Graph.Links {
		o[i] = l.AverageQuality(s.Network.Options.Quality) * s.qualityUcf
	}
	return o
}

// SourceMassRates returns the average rate at which each node's source
// has injected mass since the start of the simulation [mass/s].
func (s *Simulation) SourceMassRates() []float64 {
	o := make([]float64, len(s.Graph.Nodes))
	if s.qtime == 0 {
		return o
	}
	for i, n := range s.Graph.Nodes {
		o[i] = n.State().MassRate / float64(s.qtime)
	}
	return o
}

// HydraulicsEndedError is returned when the hydraulic results end before
// the end of the simulation.
type HydraulicsEndedError struct {
	Time, Duration int64
}

func (e *HydraulicsEndedError) Error() string {
	return fmt.Sprintf("wqnet: hydraulic results end at %d s but the simulation duration is %d s",
		e.Time, e.Duration)
}

// Simulate runs the simulation using the hydraulic results in the file at
// hydPath and writes the results to the file at outPath.
func (s *Simulation) Simulate(hydPath, outPath string) error {
	hf, err := os.Open(hydPath)
	if err != nil {
		return fmt.Errorf("wqnet: opening hydraulics file: %v", err)
	}
	defer hf.Close()
	h, err := NewHydraulicReader(hf)
	if err != nil {
		return err
	}
	of, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("wqnet: creating output file: %v", err)
	}
	if err := s.SimulateStreams(h, of); err != nil {
		of.Close()
		return err
	}
	return of.Close()
}

// SimulateStreams runs the simulation using the hydraulic results from h
// and writes the results to w.
func (s *Simulation) SimulateStreams(h HydraulicSource, w io.Writer) error {
	nn, nl := h.Counts()
	if nn != len(s.Graph.Nodes) {
		return &CountMismatchError{Kind: "node", Have: nn, Want: len(s.Graph.Nodes)}
	}
	if nl != len(s.Graph.Links) {
		return &CountMismatchError{Kind: "link", Have: nl, Want: len(s.Graph.Links)}
	}
	out, err := wqout.NewWriter(w, nn, nl)
	if err != nil {
		return err
	}
	o := &s.Network.Options
	snapshot := func() error {
		if s.qtime < s.rtime {
			return nil
		}
		s.rtime += o.ReportStep
		s.periods++
		s.Log.WithFields(logrus.Fields{"time": s.qtime, "period": s.periods}).Debug("wqnet: writing results")
		return out.WritePeriod(s.NodeQualities(), s.LinkQualities())
	}

	s.Log.WithFields(logrus.Fields{
		"nodes":   nn,
		"links":   nl,
		"quality": o.Quality,
	}).Info("wqnet: starting water quality simulation")

	for {
		step, err := h.Next()
		if err == io.EOF {
			break
		} else if err != nil {
			return err
		}
		if step.Time != s.qtime {
			return fmt.Errorf("wqnet: hydraulic step starts at %d s but the simulation is at %d s",
				step.Time, s.qtime)
		}
		if err := s.hydraulics(step.Demands, step.Flows); err != nil {
			return err
		}
		if err := snapshot(); err != nil {
			return err
		}
		tstep := step.Step
		if o.Duration > 0 && s.qtime+tstep > o.Duration {
			tstep = o.Duration - s.qtime
		}
		if tstep <= 0 {
			break
		}
		s.htime = s.qtime + tstep
		if err := s.transport(tstep, snapshot); err != nil {
			return err
		}
		s.Log.WithField("time", s.qtime).Debug("wqnet: finished hydraulic step")
		if o.Duration > 0 && s.qtime >= o.Duration {
			break
		}
	}
	if o.Duration > 0 && s.qtime < o.Duration {
		return &HydraulicsEndedError{Time: s.qtime, Duration: o.Duration}
	}
	if err := out.Close(); err != nil {
		return err
	}
	s.logMassBalance()
	return nil
}

// SimulationNode is the hydraulic state of a node supplied by a
// hydraulic simulation running alongside the water quality simulation.
type SimulationNode struct {
	Demand float64 // [ft³/s]
}

// SimulationLink is the hydraulic state of a link supplied by a
// hydraulic simulation running alongside the water quality simulation.
type SimulationLink struct {
	Flow   float64 // [ft³/s]
	Closed bool
}

// Step advances the simulation by one hydraulic time step of hydStep
// seconds using the given hydraulic state. Closed links carry no flow.
// It returns whether the simulation advanced.
func (s *Simulation) Step(nodes []SimulationNode, links []SimulationLink, hydStep int64) (bool, error) {
	demands := make([]float64, len(nodes))
	for i, n := range nodes {
		demands[i] = n.Demand
	}
	flows := make([]float64, len(links))
	for i, l := range links {
		if !l.Closed {
			flows[i] = l.Flow
		}
	}
	if err := s.hydraulics(demands, flows); err != nil {
		return false, err
	}
	if hydStep <= 0 {
		return false, nil
	}
	before := s.qtime
	s.htime = s.qtime + hydStep
	if err := s.transport(hydStep, nil); err != nil {
		return false, err
	}
	return s.qtime > before, nil
}

func (s *Simulation) logMassBalance() {
	t := s.Totals
	s.Log.WithFields(logrus.Fields{
		"periods":  s.periods,
		"initial":  s.initialMass,
		"final":    s.Graph.Mass(),
		"injected": t.Source,
		"bulk":     t.Bulk,
		"wall":     t.Wall,
		"tank":     t.Tank,
	}).Info("wqnet: simulation complete")
}
