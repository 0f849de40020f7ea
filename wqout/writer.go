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

// Package wqout reads and writes water quality simulation results.
//
// A result file holds a header with the number of nodes and links, one
// record of float32 values per reporting period (node qualities followed by
// link average qualities), and a trailer holding the number of periods.
// All values are little-endian.
package wqout

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

const (
	headerSize  = 8
	trailerSize = 4
)

// Writer writes simulation results.
type Writer struct {
	w            io.Writer
	nodes, links int
	periods      int
	buf          []byte
	closed       bool
}

// NewWriter writes the result file header to w and returns a Writer for
// writing result periods.
func NewWriter(w io.Writer, nodes, links int) (*Writer, error) {
	if nodes < 0 || links < 0 {
		return nil, fmt.Errorf("wqout: invalid element counts %d nodes, %d links", nodes, links)
	}
	var h [headerSize]byte
	binary.LittleEndian.PutUint32(h[0:4], uint32(int32(nodes)))
	binary.LittleEndian.PutUint32(h[4:8], uint32(int32(links)))
	if _, err := w.Write(h[:]); err != nil {
		return nil, fmt.Errorf("wqout: writing header: %v", err)
	}
	return &Writer{
		w:     w,
		nodes: nodes,
		links: links,
		buf:   make([]byte, 4*(nodes+links)),
	}, nil
}

// WritePeriod writes the node and link qualities for one reporting period.
func (w *Writer) WritePeriod(nodeQ, linkQ []float64) error {
	if w.closed {
		return fmt.Errorf("wqout: write to closed writer")
	}
	if len(nodeQ) != w.nodes || len(linkQ) != w.links {
		return fmt.Errorf("wqout: period has %d nodes and %d links but should have %d and %d",
			len(nodeQ), len(linkQ), w.nodes, w.links)
	}
	for i, v := range nodeQ {
		binary.LittleEndian.PutUint32(w.buf[4*i:], math.Float32bits(float32(v)))
	}
	for i, v := range linkQ {
		binary.LittleEndian.PutUint32(w.buf[4*(w.nodes+i):], math.Float32bits(float32(v)))
	}
	if _, err := w.w.Write(w.buf); err != nil {
		return fmt.Errorf("wqout: writing period %d: %v", w.periods, err)
	}
	w.periods++
	return nil
}

// Periods returns the number of periods written so far.
func (w *Writer) Periods() int { return w.periods }

// Close writes the trailer. It does not close the underlying writer.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	var t [trailerSize]byte
	binary.LittleEndian.PutUint32(t[:], uint32(int32(w.periods)))
	if _, err := w.w.Write(t[:]); err != nil {
		return fmt.Errorf("wqout: writing trailer: %v", err)
	}
	return nil
}
