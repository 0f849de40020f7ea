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
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// HydraulicStep holds the hydraulic solution for one hydraulic time step.
type HydraulicStep struct {
	// Time is the start of the step and Step is its duration [s].
	// A Step of zero marks the end of the series.
	Time, Step int64

	Demands  []float64 // node demands [ft³/s]
	Heads    []float64 // node heads [ft]
	Flows    []float64 // link flows [ft³/s]
	Headloss []float64 // link head losses [ft]
}

// HydraulicSource is a sequence of hydraulic solutions.
type HydraulicSource interface {
	// Counts returns the number of nodes and links in each step.
	Counts() (nodes, links int)

	// Next returns the next step, or io.EOF if there are no more steps.
	Next() (*HydraulicStep, error)
}

// HydraulicSeries is an in-memory HydraulicSource.
type HydraulicSeries struct {
	Nodes, Links int
	Steps        []*HydraulicStep
	i            int
}

// Counts implements HydraulicSource.
func (h *HydraulicSeries) Counts() (nodes, links int) { return h.Nodes, h.Links }

// Next implements HydraulicSource.
func (h *HydraulicSeries) Next() (*HydraulicStep, error) {
	if h.i >= len(h.Steps) {
		return nil, io.EOF
	}
	s := h.Steps[h.i]
	h.i++
	return s, nil
}

// HydraulicReader reads hydraulic steps from a binary stream.
//
// The stream starts with the int32 node and link counts and is followed by
// one record per step: int64 time and step duration, then float32 node
// demands, node heads, link flows, and link head losses. Values are
// little-endian.
type HydraulicReader struct {
	r            io.Reader
	nodes, links int
	buf          []byte
}

// NewHydraulicReader reads the header from r and returns a reader for the
// steps that follow.
func NewHydraulicReader(r io.Reader) (*HydraulicReader, error) {
	br := bufio.NewReader(r)
	var h [8]byte
	if _, err := io.ReadFull(br, h[:]); err != nil {
		return nil, fmt.Errorf("wqnet: reading hydraulic header: %v", err)
	}
	nodes := int(int32(binary.LittleEndian.Uint32(h[0:4])))
	links := int(int32(binary.LittleEndian.Uint32(h[4:8])))
	if nodes < 0 || links < 0 {
		return nil, fmt.Errorf("wqnet: invalid hydraulic header: %d nodes, %d links", nodes, links)
	}
	return &HydraulicReader{r: br, nodes: nodes, links: links}, nil
}

// Counts implements HydraulicSource.
func (h *HydraulicReader) Counts() (nodes, links int) { return h.nodes, h.links }

// Next implements HydraulicSource. It returns io.EOF at the end of the
// stream and an error wrapping io.ErrUnexpectedEOF if the stream ends
// within a record. The record buffer is allocated on the first call.
func (h *HydraulicReader) Next() (*HydraulicStep, error) {
	if h.buf == nil {
		h.buf = make([]byte, 16+4*2*(h.nodes+h.links))
	}
	if _, err := io.ReadFull(h.r, h.buf); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("wqnet: reading hydraulic step: %v", err)
	}
	s := &HydraulicStep{
		Time: int64(binary.LittleEndian.Uint64(h.buf[0:8])),
		Step: int64(binary.LittleEndian.Uint64(h.buf[8:16])),
	}
	off := 16
	read := func(n int) []float64 {
		o := make([]float64, n)
		for i := range o {
			o[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(h.buf[off:])))
			off += 4
		}
		return o
	}
	s.Demands = read(h.nodes)
	s.Heads = read(h.nodes)
	s.Flows = read(h.links)
	s.Headloss = read(h.links)
	return s, nil
}

// HydraulicWriter writes hydraulic steps in the format read by
// HydraulicReader.
type HydraulicWriter struct {
	w            io.Writer
	nodes, links int
	buf          []byte
}

// NewHydraulicWriter writes the stream header to w.
func NewHydraulicWriter(w io.Writer, nodes, links int) (*HydraulicWriter, error) {
	var h [8]byte
	binary.LittleEndian.PutUint32(h[0:4], uint32(int32(nodes)))
	binary.LittleEndian.PutUint32(h[4:8], uint32(int32(links)))
	if _, err := w.Write(h[:]); err != nil {
		return nil, fmt.Errorf("wqnet: writing hydraulic header: %v", err)
	}
	return &HydraulicWriter{w: w, nodes: nodes, links: links}, nil
}

// Write writes one step. Missing head and head loss values are written
// as zeros.
func (h *HydraulicWriter) Write(s *HydraulicStep) error {
	if len(s.Demands) != h.nodes {
		return &CountMismatchError{Kind: "node", Have: len(s.Demands), Want: h.nodes}
	}
	if len(s.Flows) != h.links {
		return &CountMismatchError{Kind: "link", Have: len(s.Flows), Want: h.links}
	}
	if h.buf == nil {
		h.buf = make([]byte, 16+4*2*(h.nodes+h.links))
	}
	binary.LittleEndian.PutUint64(h.buf[0:8], uint64(s.Time))
	binary.LittleEndian.PutUint64(h.buf[8:16], uint64(s.Step))
	off := 16
	write := func(v []float64, n int) {
		for i := 0; i < n; i++ {
			var x float64
			if i < len(v) {
				x = v[i]
			}
			binary.LittleEndian.PutUint32(h.buf[off:], math.Float32bits(float32(x)))
			off += 4
		}
	}
	write(s.Demands, h.nodes)
	write(s.Heads, h.nodes)
	write(s.Flows, h.links)
	write(s.Headloss, h.links)
	if _, err := h.w.Write(h.buf); err != nil {
		return fmt.Errorf("wqnet: writing hydraulic step: %v", err)
	}
	return nil
}
