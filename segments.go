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

	"gonum.org/v1/gonum/floats"
)

// Segment is a parcel of water with uniform quality.
type Segment struct {
	V float64 // volume [ft³]
	C float64 // quality, internal units
}

// SegmentQueue is a double-ended queue of segments. For links, the
// front of the queue is the downstream-most segment and the back is the
// upstream-most segment.
// The zero value is an empty queue.
type SegmentQueue struct {
	buf   []*Segment
	head  int
	count int
}

// Len returns the number of segments in the queue.
func (q *SegmentQueue) Len() int { return q.count }

func (q *SegmentQueue) index(i int) int {
	return (q.head + i) % len(q.buf)
}

func (q *SegmentQueue) grow() {
	if q.count < len(q.buf) {
		return
	}
	n := 2 * len(q.buf)
	if n == 0 {
		n = 4
	}
	buf := make([]*Segment, n)
	for i := 0; i < q.count; i++ {
		buf[i] = q.buf[q.index(i)]
	}
	q.buf = buf
	q.head = 0
}

// PushBack adds a segment to the back of the queue.
func (q *SegmentQueue) PushBack(s *Segment) {
	q.grow()
	q.buf[q.index(q.count)] = s
	q.count++
}

// PushFront adds a segment to the front of the queue.
func (q *SegmentQueue) PushFront(s *Segment) {
	q.grow()
	q.head = (q.head - 1 + len(q.buf)) % len(q.buf)
	q.buf[q.head] = s
	q.count++
}

// PopFront removes and returns the front segment, or nil if the
// queue is empty.
func (q *SegmentQueue) PopFront() *Segment {
	if q.count == 0 {
		return nil
	}
	s := q.buf[q.head]
	q.buf[q.head] = nil
	q.head = (q.head + 1) % len(q.buf)
	q.count--
	return s
}

// PopBack removes and returns the back segment, or nil if the
// queue is empty.
func (q *SegmentQueue) PopBack() *Segment {
	if q.count == 0 {
		return nil
	}
	i := q.index(q.count - 1)
	s := q.buf[i]
	q.buf[i] = nil
	q.count--
	return s
}

// Front returns the front segment, or nil if the queue is empty.
func (q *SegmentQueue) Front() *Segment {
	if q.count == 0 {
		return nil
	}
	return q.buf[q.head]
}

// Back returns the back segment, or nil if the queue is empty.
func (q *SegmentQueue) Back() *Segment {
	if q.count == 0 {
		return nil
	}
	return q.buf[q.index(q.count-1)]
}

// At returns the i-th segment counting from the front.
func (q *SegmentQueue) At(i int) *Segment {
	if i < 0 || i >= q.count {
		panic(fmt.Errorf("wqnet: segment index %d out of range [0,%d)", i, q.count))
	}
	return q.buf[q.index(i)]
}

// Reverse reverses the order of the segments in place.
func (q *SegmentQueue) Reverse() {
	for i, j := 0, q.count-1; i < j; i, j = i+1, j-1 {
		ii, jj := q.index(i), q.index(j)
		q.buf[ii], q.buf[jj] = q.buf[jj], q.buf[ii]
	}
}

// Clear removes all segments.
func (q *SegmentQueue) Clear() {
	for i := range q.buf {
		q.buf[i] = nil
	}
	q.head = 0
	q.count = 0
}

// Each calls f on every segment from front to back.
func (q *SegmentQueue) Each(f func(s *Segment)) {
	for i := 0; i < q.count; i++ {
		f(q.buf[q.index(i)])
	}
}

// Volume returns the total volume of the segments.
func (q *SegmentQueue) Volume() float64 {
	v := make([]float64, q.count)
	for i := range v {
		v[i] = q.buf[q.index(i)].V
	}
	return floats.Sum(v)
}

// Mass returns the total mass in the segments.
func (q *SegmentQueue) Mass() float64 {
	v := make([]float64, q.count)
	c := make([]float64, q.count)
	for i := range v {
		s := q.buf[q.index(i)]
		v[i], c[i] = s.V, s.C
	}
	return floats.Dot(v, c)
}

// Slice returns a copy of the segments from front to back.
func (q *SegmentQueue) Slice() []Segment {
	o := make([]Segment, q.count)
	for i := range o {
		o[i] = *q.buf[q.index(i)]
	}
	return o
}

func (q *SegmentQueue) String() string {
	s := ""
	for i := 0; i < q.count; i++ {
		if i != 0 {
			s += " "
		}
		seg := q.buf[q.index(i)]
		s += fmt.Sprintf("{%g %g}", seg.V, seg.C)
	}
	return "[" + s + "]"
}
