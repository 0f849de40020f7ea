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
)

// QualityNode is a network node together with its water quality state.
// It is either a *Junction or a *Tank.
type QualityNode interface {
	// State returns the quality state shared by all node kinds.
	State() *NodeState

	isQualityNode()
}

// NodeState is the water quality state of a node.
type NodeState struct {
	Node  *Node
	Index int

	// Demand is the current demand [ft³/s]. Negative values are inflows
	// into the network from outside, for example at a supply point. For
	// tanks, Demand is the net flow into the tank.
	Demand float64

	// Quality is the current quality, in internal units.
	Quality float64

	// VolumeIn and MassIn accumulate the volume and mass flowing into the
	// node during a substep.
	VolumeIn, MassIn float64

	// SourceContribution is the quality added to the node's outflow by
	// its source during the current substep.
	SourceContribution float64

	// MassRate is the total mass injected by the node's source.
	MassRate float64
}

// State implements QualityNode.
func (n *NodeState) State() *NodeState { return n }

func (n *NodeState) isQualityNode() {}

// Junction is a node without storage.
type Junction struct {
	NodeState
}

// Tank is a storage node. Reservoirs are tanks with zero area.
type Tank struct {
	NodeState

	// Volume is the current stored volume [ft³].
	Volume float64

	// Concentration is the quality of the water leaving the tank.
	Concentration float64

	// Segments holds the water parcels of tanks that are not
	// completely mixed. For two-compartment tanks, the front segment
	// is the ambient zone and the back segment is the mixing zone.
	Segments SegmentQueue
}

// Reservoir returns whether t is a fixed-grade reservoir.
func (t *Tank) Reservoir() bool {
	return t.Node.Tank.Area == 0
}

// QualityLink is a network link together with its water quality state.
type QualityLink struct {
	Link  *Link
	Index int

	// First and Second are the link's declared end nodes.
	First, Second QualityNode

	// Flow is the current flow rate [ft³/s]. Positive values flow from
	// First to Second.
	Flow float64

	// FlowDir is the last known flow direction; true is from First
	// to Second.
	FlowDir bool

	// FlowResistance holds the wall mass transfer coefficient for the
	// current hydraulic step.
	FlowResistance float64

	// ReactionRate is the volume-averaged reaction rate in the link
	// [internal quality units/day].
	ReactionRate float64

	// Segments is ordered from the downstream end to the upstream end.
	Segments SegmentQueue
}

// Volume returns the physical volume of the link [ft³].
func (l *QualityLink) Volume() float64 {
	return math.Pi / 4 * l.Link.Diameter * l.Link.Diameter * l.Link.Length
}

// Upstream returns the node that water currently enters the link from.
func (l *QualityLink) Upstream() QualityNode {
	if l.FlowDir {
		return l.First
	}
	return l.Second
}

// Downstream returns the node that water currently leaves the link to.
func (l *QualityLink) Downstream() QualityNode {
	if l.FlowDir {
		return l.Second
	}
	return l.First
}

// AverageQuality returns the volume-weighted average quality of the
// water in the link, in internal units. Links whose segments hold no
// volume report the average of their end node qualities.
func (l *QualityLink) AverageQuality(qt QualityType) float64 {
	if qt == NoQuality {
		return 0
	}
	if v := l.Segments.Volume(); v > 0 {
		return l.Segments.Mass() / v
	}
	return (l.First.State().Quality + l.Second.State().Quality) / 2
}

// Graph holds the water quality state of every node and link in a
// network, in the same order as the network's nodes and links.
type Graph struct {
	Nodes []QualityNode
	Links []*QualityLink
}

// NewGraph creates the water quality state for net.
func NewGraph(net *Network) (*Graph, error) {
	g := &Graph{
		Nodes: make([]QualityNode, len(net.Nodes)),
		Links: make([]*QualityLink, len(net.Links)),
	}
	index := make(map[string]int, len(net.Nodes))
	for i, n := range net.Nodes {
		index[n.ID] = i
		st := NodeState{Node: n, Index: i}
		switch n.Type {
		case TankNode, ReservoirNode:
			if n.Tank == nil {
				return nil, fmt.Errorf("wqnet: node '%s' has no tank data", n.ID)
			}
			g.Nodes[i] = &Tank{NodeState: st, Volume: n.Tank.V0}
		default:
			g.Nodes[i] = &Junction{NodeState: st}
		}
	}
	for i, l := range net.Links {
		from, ok := index[l.From]
		if !ok {
			return nil, fmt.Errorf("wqnet: link '%s' references undefined node '%s'", l.ID, l.From)
		}
		to, ok := index[l.To]
		if !ok {
			return nil, fmt.Errorf("wqnet: link '%s' references undefined node '%s'", l.ID, l.To)
		}
		g.Links[i] = &QualityLink{
			Link:    l,
			Index:   i,
			First:   g.Nodes[from],
			Second:  g.Nodes[to],
			FlowDir: true,
		}
	}
	return g, nil
}

// CountMismatchError is returned when the number of elements in a
// hydraulic snapshot does not match the network.
type CountMismatchError struct {
	Kind       string
	Have, Want int
}

func (e *CountMismatchError) Error() string {
	return fmt.Sprintf("wqnet: hydraulic data has %d %ss but the network has %d", e.Have, e.Kind, e.Want)
}

// SetHydraulics loads node demands and link flows [ft³/s] into the graph.
func (g *Graph) SetHydraulics(demands, flows []float64) error {
	if len(demands) != len(g.Nodes) {
		return &CountMismatchError{Kind: "node", Have: len(demands), Want: len(g.Nodes)}
	}
	if len(flows) != len(g.Links) {
		return &CountMismatchError{Kind: "link", Have: len(flows), Want: len(g.Links)}
	}
	for i, n := range g.Nodes {
		n.State().Demand = demands[i]
	}
	for i, l := range g.Links {
		l.Flow = flows[i]
	}
	return nil
}

// Tanks returns the tanks and reservoirs in the graph.
func (g *Graph) Tanks() []*Tank {
	var o []*Tank
	for _, n := range g.Nodes {
		if t, ok := n.(*Tank); ok {
			o = append(o, t)
		}
	}
	return o
}

// Mass returns the total mass stored in links and tanks, in internal
// units.
func (g *Graph) Mass() float64 {
	var m float64
	for _, l := range g.Links {
		m += l.Segments.Mass()
	}
	for _, n := range g.Nodes {
		t, ok := n.(*Tank)
		if !ok || t.Reservoir() {
			continue
		}
		if t.Node.Tank.Mix == CompleteMix {
			m += t.Concentration * t.Volume
		} else {
			m += t.Segments.Mass()
		}
	}
	return m
}
