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
	"bytes"
	"fmt"
	"io/ioutil"
	"math"
	"testing"

	"github.com/kr/pretty"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/wqnet/wqout"
)

func quietLog() logrus.FieldLogger {
	l := logrus.New()
	l.Out = ioutil.Discard
	return l
}

func different(a, b, tolerance float64) bool {
	if 2*math.Abs(a-b)/math.Abs(a+b) > tolerance || math.IsNaN(a) || math.IsNaN(b) {
		return true
	}
	return false
}

// traceNetwork is a reservoir feeding a junction through a 10 ft³ pipe.
func traceNetwork() *Network {
	o := DefaultOptions()
	o.Quality = Trace
	o.TraceNode = "R"
	o.QualityStep = 1
	o.ReportStep = 1
	o.Duration = 20
	return &Network{
		Nodes: []*Node{
			{ID: "R", Type: ReservoirNode, Tank: &TankData{}},
			{ID: "J", Type: JunctionNode},
		},
		Links: []*Link{
			{ID: "L", From: "R", To: "J", Length: 40 / math.Pi, Diameter: 1},
		},
		Options: o,
	}
}

func TestTraceFront(t *testing.T) {
	s, err := NewSimulation(traceNetwork())
	if err != nil {
		t.Fatal(err)
	}
	s.Log = quietLog()
	h := &HydraulicSeries{Nodes: 2, Links: 1, Steps: []*HydraulicStep{
		{Time: 0, Step: 3600, Demands: []float64{-1, 1}, Flows: []float64{1}},
	}}
	var b bytes.Buffer
	if err := s.SimulateStreams(h, &b); err != nil {
		t.Fatal(err)
	}
	r, err := wqout.NewReader(bytes.NewReader(b.Bytes()), int64(b.Len()))
	if err != nil {
		t.Fatal(err)
	}
	if r.Periods() != 21 {
		t.Fatalf("periods: have %d, want 21", r.Periods())
	}
	if s.Periods() != 21 || s.Time() != 20 {
		t.Errorf("simulation ended at %d s after %d periods", s.Time(), s.Periods())
	}
	tests := []struct {
		period     int
		node, link float64
	}{
		{period: 0, node: 0, link: 0},
		{period: 5, node: 0, link: 50},
		// The front reaches the end of the pipe at 10 s and the
		// junction one step later.
		{period: 10, node: 0, link: 100},
		{period: 11, node: 100, link: 100},
		{period: 20, node: 100, link: 100},
	}
	for _, test := range tests {
		p, err := r.Period(test.period)
		if err != nil {
			t.Fatal(err)
		}
		if p.Nodes[0] != 100 {
			t.Errorf("period %d: trace node quality %g", test.period, p.Nodes[0])
		}
		if math.Abs(float64(p.Nodes[1])-test.node) > 1e-4 {
			t.Errorf("period %d: junction quality have %g, want %g", test.period, p.Nodes[1], test.node)
		}
		if math.Abs(float64(p.Links[0])-test.link) > 1e-4 {
			t.Errorf("period %d: link quality have %g, want %g", test.period, p.Links[0], test.link)
		}
	}
}

// TestConcenFlush follows a concentration source through a 10 ft³ pipe.
// Water released at the source during a step reaches the downstream
// junction in the step after the pipe has been flushed.
func TestConcenFlush(t *testing.T) {
	o := DefaultOptions()
	o.Quality = Chem
	o.QualityStep = 1
	n := &Network{
		Nodes: []*Node{
			{ID: "A", Type: JunctionNode, Source: &Source{Type: Concen, C0: 5}},
			{ID: "B", Type: JunctionNode},
		},
		Links: []*Link{
			{ID: "L", From: "A", To: "B", Length: 40 / math.Pi, Diameter: 1},
		},
		Options: o,
	}
	s, err := NewSimulation(n)
	if err != nil {
		t.Fatal(err)
	}
	if v := s.Graph.Links[0].Volume(); different(v, 10, 1e-12) {
		t.Fatalf("link volume: have %g, want 10", v)
	}
	nodes := []SimulationNode{{Demand: -1}, {Demand: 1}}
	links := []SimulationLink{{Flow: 1}}
	tests := []struct {
		time       int64
		down, link float64
	}{
		{time: 1, down: 0, link: 0.5},
		{time: 5, down: 0, link: 2.5},
		{time: 10, down: 0, link: 5},
		{time: 11, down: 5, link: 5},
		{time: 15, down: 5, link: 5},
	}
	for _, test := range tests {
		for s.Time() < test.time {
			if _, err := s.Step(nodes, links, 1); err != nil {
				t.Fatal(err)
			}
		}
		q := s.NodeQualities()
		if math.Abs(q[0]-5) > 1e-9 {
			t.Errorf("t=%d: source quality have %g, want 5", test.time, q[0])
		}
		if math.Abs(q[1]-test.down) > 1e-9 {
			t.Errorf("t=%d: downstream quality have %g, want %g", test.time, q[1], test.down)
		}
		if l := s.LinkQualities()[0]; math.Abs(l-test.link) > 1e-9 {
			t.Errorf("t=%d: link quality have %g, want %g", test.time, l, test.link)
		}
	}
	if different(s.Totals.Source, 15*5/LperFT3, 1e-12) {
		t.Errorf("injected mass: have %g, want %g", s.Totals.Source, 15*5/LperFT3)
	}
}

func TestHydraulicsEnded(t *testing.T) {
	s, err := NewSimulation(traceNetwork())
	if err != nil {
		t.Fatal(err)
	}
	s.Log = quietLog()
	h := &HydraulicSeries{Nodes: 2, Links: 1, Steps: []*HydraulicStep{
		{Time: 0, Step: 10, Demands: []float64{-1, 1}, Flows: []float64{1}},
	}}
	err = s.SimulateStreams(h, ioutil.Discard)
	if e, ok := err.(*HydraulicsEndedError); !ok || e.Time != 10 || e.Duration != 20 {
		t.Errorf("expected *HydraulicsEndedError, got %#v", err)
	}
}

func TestSimulateCountMismatch(t *testing.T) {
	s, err := NewSimulation(traceNetwork())
	if err != nil {
		t.Fatal(err)
	}
	err = s.SimulateStreams(&HydraulicSeries{Nodes: 3, Links: 1}, ioutil.Discard)
	if _, ok := err.(*CountMismatchError); !ok {
		t.Errorf("expected *CountMismatchError, got %#v", err)
	}
}

// tankNetwork is a reservoir feeding a tank through two junctions. The
// last junction has a demand.
func tankNetwork(mix MixModel) *Network {
	o := DefaultOptions()
	o.Quality = Chem
	o.QualityStep = 10
	o.Ctol = 0
	return &Network{
		Nodes: []*Node{
			{ID: "R", Type: ReservoirNode, C0: 1, Tank: &TankData{}},
			{ID: "J1", Type: JunctionNode},
			{ID: "J2", Type: JunctionNode},
			{ID: "T", Type: TankNode, C0: 0.5, Tank: &TankData{
				Area: 10, V0: 500, VMax: 1000, V1Max: 200, Mix: mix}},
		},
		Links: []*Link{
			{ID: "L1", From: "R", To: "J1", Length: 100, Diameter: 1},
			{ID: "L2", From: "J1", To: "J2", Length: 100, Diameter: 1},
			{ID: "L3", From: "J2", To: "T", Length: 100, Diameter: 1},
		},
		Options: o,
	}
}

// fillDrain returns the hydraulic states of tankNetwork while the tank
// fills and while it drains. While draining, water flows back into the
// reservoir.
func fillDrain() (fillNodes []SimulationNode, fillLinks []SimulationLink, drainNodes []SimulationNode, drainLinks []SimulationLink) {
	fillNodes = []SimulationNode{{Demand: -2}, {Demand: 0}, {Demand: 1}, {Demand: 1}}
	fillLinks = []SimulationLink{{Flow: 2}, {Flow: 2}, {Flow: 1}}
	drainNodes = []SimulationNode{{Demand: 0.5}, {Demand: 0}, {Demand: 1}, {Demand: -1.5}}
	drainLinks = []SimulationLink{{Flow: -0.5}, {Flow: -0.5}, {Flow: -1.5}}
	return
}

func TestMassBalance(t *testing.T) {
	for _, mix := range []MixModel{CompleteMix, TwoCompartment, FIFO, LIFO} {
		t.Run(mix.String(), func(t *testing.T) {
			s, err := NewSimulation(tankNetwork(mix))
			if err != nil {
				t.Fatal(err)
			}
			var released, received, withdrawn float64
			tally := func(s *Simulation, dt int64) error {
				fdt := float64(dt)
				for _, n := range s.Graph.Nodes {
					switch n := n.(type) {
					case *Junction:
						if n.Demand > 0 {
							withdrawn += n.Quality * n.Demand * fdt
						}
					case *Tank:
						if !n.Reservoir() {
							continue
						}
						received += n.MassIn
						for _, l := range s.Graph.Links {
							if l.Flow != 0 && l.Upstream() == QualityNode(n) {
								released += n.Quality * math.Abs(l.Flow) * fdt
							}
						}
					}
				}
				return nil
			}
			s.TransportFuncs = []NetworkManipulator{
				React(), Accumulate(), UpdateNodes(), tally, InjectSources(), Release(),
			}

			fn, fl, dn, dl := fillDrain()
			for i := 0; i < 6; i++ {
				nodes, links := fn, fl
				if i%2 == 1 {
					nodes, links = dn, dl
				}
				ok, err := s.Step(nodes, links, 60)
				if err != nil {
					t.Fatal(err)
				}
				if !ok {
					t.Fatalf("step %d did not advance", i)
				}
				for _, l := range s.Graph.Links {
					if v := l.Segments.Volume(); math.Abs(v-l.Volume()) > 1e-9 {
						t.Errorf("step %d: link %s holds %g ft³ but its volume is %g", i, l.Link.ID, v, l.Volume())
					}
				}
				tank := s.Graph.Nodes[3].(*Tank)
				if mix != CompleteMix {
					if v := tank.Segments.Volume(); math.Abs(v-tank.Volume) > 1e-9 {
						t.Errorf("step %d: tank segments hold %g ft³ but the tank holds %g", i, v, tank.Volume)
					}
				}
			}
			if s.Time() != 360 {
				t.Errorf("time: have %d, want 360", s.Time())
			}
			if tank := s.Graph.Nodes[3].(*Tank); tank.Volume != 410 {
				t.Errorf("tank volume: have %g, want 410", tank.Volume)
			}
			if different(s.Totals.Source, released, 1e-12) {
				t.Errorf("reservoir outflow mass: have %g, want %g", s.Totals.Source, released)
			}
			want := s.InitialMass() + released - received - withdrawn
			if have := s.Graph.Mass(); different(have, want, 1e-9) {
				t.Errorf("stored mass: have %g, want %g", have, want)
			}
		})
	}
}

// TestTankNoFlow checks that tanks without flow or reactions keep their
// quality regardless of their mixing model.
func TestTankNoFlow(t *testing.T) {
	for _, mix := range []MixModel{CompleteMix, TwoCompartment, FIFO, LIFO} {
		s, err := NewSimulation(tankNetwork(mix))
		if err != nil {
			t.Fatal(err)
		}
		nodes := make([]SimulationNode, 4)
		links := make([]SimulationLink, 3)
		for i := 0; i < 3; i++ {
			if _, err := s.Step(nodes, links, 3600); err != nil {
				t.Fatal(err)
			}
		}
		q := s.NodeQualities()[3]
		if different(q, 0.5*LperFT3, 1e-12) {
			t.Errorf("%v: tank quality have %g, want %g", mix, q, 0.5*LperFT3)
		}
		if tank := s.Graph.Nodes[3].(*Tank); tank.Volume != 500 {
			t.Errorf("%v: tank volume have %g, want 500", mix, tank.Volume)
		}
	}
}

// sourceNetwork is a reservoir feeding a junction with a demand through
// a second junction.
func sourceNetwork(node int, src *Source) *Network {
	o := DefaultOptions()
	o.Quality = Chem
	o.QualityStep = 10
	n := &Network{
		Nodes: []*Node{
			{ID: "R", Type: ReservoirNode, Tank: &TankData{}},
			{ID: "J", Type: JunctionNode},
			{ID: "K", Type: JunctionNode},
		},
		Links: []*Link{
			{ID: "L1", From: "R", To: "J", Length: 100, Diameter: 1},
			{ID: "L2", From: "J", To: "K", Length: 100, Diameter: 1},
		},
		Patterns: map[string]*Pattern{"p": {ID: "p", Factors: []float64{3, 1}}},
		Options:  o,
	}
	n.Nodes[node].Source = src
	return n
}

func TestSources(t *testing.T) {
	tests := []struct {
		node          int
		src           *Source
		quality, rate float64
	}{
		{node: 1, src: &Source{Type: FlowPaced, C0: 2}, quality: 2, rate: 2 / LperFT3},
		{node: 1, src: &Source{Type: Setpoint, C0: 2}, quality: 2, rate: 2 / LperFT3},
		{node: 1, src: &Source{Type: Mass, C0: 60}, quality: LperFT3, rate: 1},
		{node: 1, src: &Source{Type: Concen, C0: 2}, quality: 0, rate: 0},
		{node: 0, src: &Source{Type: Concen, C0: 2}, quality: 2, rate: 2 / LperFT3},
		{node: 1, src: &Source{Type: FlowPaced, C0: 2, Pattern: "p"}, quality: 6, rate: 6 / LperFT3},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("%v_%d", test.src.Type, test.node), func(t *testing.T) {
			s, err := NewSimulation(sourceNetwork(test.node, test.src))
			if err != nil {
				t.Fatal(err)
			}
			nodes := []SimulationNode{{Demand: -1}, {Demand: 0}, {Demand: 1}}
			links := []SimulationLink{{Flow: 1}, {Flow: 1}}
			if _, err := s.Step(nodes, links, 10); err != nil {
				t.Fatal(err)
			}
			q := s.NodeQualities()[test.node]
			if math.Abs(q-test.quality) > 1e-9 {
				t.Errorf("quality: have %g, want %g", q, test.quality)
			}
			r := s.SourceMassRates()[test.node]
			if math.Abs(r-test.rate) > 1e-9 {
				t.Errorf("mass rate: have %g, want %g", r, test.rate)
			}
			if math.Abs(s.Totals.Source-test.rate*10) > 1e-9 {
				t.Errorf("injected mass: have %g, want %g", s.Totals.Source, test.rate*10)
			}
		})
	}
}

func TestWaterAge(t *testing.T) {
	n := traceNetwork()
	n.Options.Quality = Age
	n.Options.QualityStep = 3600
	s, err := NewSimulation(n)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Step(make([]SimulationNode, 2), make([]SimulationLink, 1), 7200); err != nil {
		t.Fatal(err)
	}
	if q := s.LinkQualities()[0]; different(q, 2, 1e-12) {
		t.Errorf("link age: have %g h, want 2 h", q)
	}
	// A junction without inflow takes the quality of the water next to it.
	if q := s.NodeQualities()[1]; different(q, 2, 1e-12) {
		t.Errorf("junction age: have %g h, want 2 h", q)
	}
}

func TestBulkDecay(t *testing.T) {
	n := traceNetwork()
	n.Options.Quality = Chem
	n.Options.QualityStep = 100
	n.Nodes[1].C0 = 1
	n.Links[0].Kb = -1e-5
	s, err := NewSimulation(n)
	if err != nil {
		t.Fatal(err)
	}
	if !s.Params.Enabled {
		t.Fatal("reactions should be enabled")
	}
	if _, err := s.Step(make([]SimulationNode, 2), make([]SimulationLink, 1), 100); err != nil {
		t.Fatal(err)
	}
	l := s.Graph.Links[0]
	if q := s.LinkQualities()[0]; different(q, 0.999*LperFT3, 1e-12) {
		t.Errorf("link quality: have %g, want %g", q, 0.999*LperFT3)
	}
	if different(l.ReactionRate, 0.864, 1e-9) {
		t.Errorf("reaction rate: have %g, want 0.864", l.ReactionRate)
	}
	if different(s.Totals.Bulk, 1e-3*l.Volume(), 1e-9) {
		t.Errorf("bulk reaction mass: have %g, want %g", s.Totals.Bulk, 1e-3*l.Volume())
	}
}

func TestFlowReversal(t *testing.T) {
	n := traceNetwork()
	s, err := NewSimulation(n)
	if err != nil {
		t.Fatal(err)
	}
	nodes := []SimulationNode{{Demand: -1}, {Demand: 1}}
	if _, err := s.Step(nodes, []SimulationLink{{Flow: 1}}, 4); err != nil {
		t.Fatal(err)
	}
	l := s.Graph.Links[0]
	if c := l.Segments.Back().C; c != 100 {
		t.Fatalf("upstream segment quality: have %g, want 100", c)
	}
	l.Segments.Clear()
	l.Segments.PushBack(&Segment{V: 2, C: 0})
	l.Segments.PushBack(&Segment{V: 3, C: 50})
	l.Segments.PushBack(&Segment{V: 5, C: 100})
	before := l.Segments.Slice()
	if err := s.hydraulics([]float64{1, -1}, []float64{-1}); err != nil {
		t.Fatal(err)
	}
	after := l.Segments.Slice()
	want := make([]Segment, len(before))
	for i, seg := range before {
		want[len(before)-1-i] = seg
	}
	if diff := pretty.Diff(after, want); len(diff) != 0 {
		t.Errorf("segments were not reversed: %v", diff)
	}

	nodes = []SimulationNode{{Demand: 1}, {Demand: -1}}
	if _, err := s.Step(nodes, []SimulationLink{{Flow: -1}}, 1); err != nil {
		t.Fatal(err)
	}
	if l.FlowDir || l.Downstream() != QualityNode(s.Graph.Nodes[0]) {
		t.Fatal("flow direction was not reversed")
	}
	// The junction now supplies the link with water of zero quality.
	if c := l.Segments.Back().C; c != 0 {
		t.Errorf("upstream segment quality: have %g, want 0", c)
	}
	if v := l.Segments.Volume(); math.Abs(v-l.Volume()) > 1e-9 {
		t.Errorf("link holds %g ft³ but its volume is %g", v, l.Volume())
	}
	if s.Graph.Nodes[0].State().Quality != 100 {
		t.Error("trace node quality changed")
	}
}

func TestClosedLink(t *testing.T) {
	s, err := NewSimulation(traceNetwork())
	if err != nil {
		t.Fatal(err)
	}
	nodes := []SimulationNode{{Demand: 0}, {Demand: 0}}
	if _, err := s.Step(nodes, []SimulationLink{{Flow: 5, Closed: true}}, 10); err != nil {
		t.Fatal(err)
	}
	if f := s.Graph.Links[0].Flow; f != 0 {
		t.Errorf("closed link flow: have %g, want 0", f)
	}
	if q := s.LinkQualities()[0]; q != 0 {
		t.Errorf("closed link quality: have %g, want 0", q)
	}
}

func TestNoQuality(t *testing.T) {
	n := traceNetwork()
	n.Options.Quality = NoQuality
	s, err := NewSimulation(n)
	if err != nil {
		t.Fatal(err)
	}
	s.Log = quietLog()
	h := &HydraulicSeries{Nodes: 2, Links: 1, Steps: []*HydraulicStep{
		{Time: 0, Step: 20, Demands: []float64{-1, 1}, Flows: []float64{1}},
	}}
	var b bytes.Buffer
	if err := s.SimulateStreams(h, &b); err != nil {
		t.Fatal(err)
	}
	r, err := wqout.NewReader(bytes.NewReader(b.Bytes()), int64(b.Len()))
	if err != nil {
		t.Fatal(err)
	}
	series, err := r.NodeSeries(0)
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range series {
		if v != 0 {
			t.Errorf("period %d: have %g, want 0", i, v)
		}
	}
}

// TestIsolatedNode checks that a junction without adjacent pipe segments
// does not keep the estimate from an earlier step.
func TestIsolatedNode(t *testing.T) {
	n := traceNetwork()
	n.Options.Quality = Chem
	n.Nodes = append(n.Nodes, &Node{ID: "K", Type: JunctionNode})
	s, err := NewSimulation(n)
	if err != nil {
		t.Fatal(err)
	}
	nodes := make([]SimulationNode, 3)
	links := make([]SimulationLink, 1)
	if _, err := s.Step(nodes, links, 10); err != nil {
		t.Fatal(err)
	}
	k := s.Graph.Nodes[2].State()
	k.SourceContribution = 7
	for _, f := range []NetworkManipulator{Accumulate(), UpdateNodes()} {
		if err := f(s, 10); err != nil {
			t.Fatal(err)
		}
	}
	if k.Quality != 0 {
		t.Errorf("isolated junction quality: have %g, want 0", k.Quality)
	}
}

// TestClosedLoop circulates water around a loop of three junctions with
// no sources or reactions. The stored mass must not change.
func TestClosedLoop(t *testing.T) {
	o := DefaultOptions()
	o.Quality = Chem
	o.QualityStep = 10
	n := &Network{
		Nodes: []*Node{
			{ID: "A", Type: JunctionNode, C0: 1},
			{ID: "B", Type: JunctionNode, C0: 2},
			{ID: "C", Type: JunctionNode, C0: 3},
		},
		Links: []*Link{
			{ID: "AB", From: "A", To: "B", Length: 43, Diameter: 1},
			{ID: "BC", From: "B", To: "C", Length: 43, Diameter: 1},
			{ID: "CA", From: "C", To: "A", Length: 43, Diameter: 1},
		},
		Options: o,
	}
	s, err := NewSimulation(n)
	if err != nil {
		t.Fatal(err)
	}
	if s.Params.Enabled {
		t.Fatal("reactions should be disabled")
	}
	nodes := make([]SimulationNode, 3)
	links := []SimulationLink{{Flow: 1}, {Flow: 1}, {Flow: 1}}
	var volume float64
	for _, l := range s.Graph.Links {
		volume += l.Volume()
	}
	var average float64
	for i := 0; i < 50; i++ {
		if _, err := s.Step(nodes, links, 10); err != nil {
			t.Fatal(err)
		}
		if i == 0 {
			average = s.InitialMass() / volume
			if different(average, 2, 1e-12) {
				t.Fatalf("initial average quality: have %g, want 2", average)
			}
		}
		if have := s.Graph.Mass() / volume; different(have, average, 1e-9) {
			t.Errorf("step %d: average quality have %g, want %g", i, have, average)
		}
	}
	if s.Totals.Source != 0 {
		t.Errorf("injected mass: have %g, want 0", s.Totals.Source)
	}
	for _, r := range s.SourceMassRates() {
		if r != 0 {
			t.Errorf("source mass rate: have %g, want 0", r)
		}
	}
}
