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

package wqout

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"runtime"
	"strconv"
	"sync"

	"github.com/ctessum/requestcache"
)

// PeriodRangeError is returned when a requested period is not in a
// result file.
type PeriodRangeError struct {
	Period, Periods int
}

func (e *PeriodRangeError) Error() string {
	return fmt.Sprintf("wqout: period %d is out of range [0,%d)", e.Period, e.Periods)
}

// Period holds the results for one reporting period.
type Period struct {
	Nodes []float32
	Links []float32
}

// Reader provides random access to a result file.
type Reader struct {
	r            io.ReaderAt
	nodes, links int
	periods      int

	// CacheSize specifies the number of periods to be held in the memory
	// cache. The default is 100. CacheSize can only be changed before
	// the Reader has been used to read periods for the first time.
	CacheSize int

	cache     *requestcache.Cache
	cacheInit sync.Once
}

// NewReader creates a reader for the result file in r, which is size
// bytes long.
func NewReader(r io.ReaderAt, size int64) (*Reader, error) {
	if size < headerSize+trailerSize {
		return nil, fmt.Errorf("wqout: file of %d bytes is too short to hold results", size)
	}
	var b [headerSize]byte
	if _, err := r.ReadAt(b[:], 0); err != nil {
		return nil, fmt.Errorf("wqout: reading header: %v", err)
	}
	rr := &Reader{
		r:         r,
		nodes:     int(int32(binary.LittleEndian.Uint32(b[0:4]))),
		links:     int(int32(binary.LittleEndian.Uint32(b[4:8]))),
		CacheSize: 100,
	}
	if rr.nodes < 0 || rr.links < 0 {
		return nil, fmt.Errorf("wqout: invalid header: %d nodes, %d links", rr.nodes, rr.links)
	}
	if _, err := r.ReadAt(b[0:trailerSize], size-trailerSize); err != nil {
		return nil, fmt.Errorf("wqout: reading trailer: %v", err)
	}
	rr.periods = int(int32(binary.LittleEndian.Uint32(b[0:trailerSize])))
	if rr.periods < 0 {
		return nil, fmt.Errorf("wqout: invalid period count %d", rr.periods)
	}
	if want := rr.offset(rr.periods) + trailerSize; want != size {
		return nil, fmt.Errorf("wqout: file is %d bytes but %d periods of %d nodes and %d links require %d bytes",
			size, rr.periods, rr.nodes, rr.links, want)
	}
	return rr, nil
}

// Counts returns the number of nodes and links in the file.
func (r *Reader) Counts() (nodes, links int) { return r.nodes, r.links }

// Periods returns the number of reporting periods in the file.
func (r *Reader) Periods() int { return r.periods }

func (r *Reader) recordSize() int64 { return int64(r.nodes+r.links) * 4 }

// offset returns the byte offset of period i.
func (r *Reader) offset(i int) int64 {
	return headerSize + int64(i)*r.recordSize()
}

// Period returns the results for period i. Results are cached, so
// callers should not modify the returned values.
func (r *Reader) Period(i int) (*Period, error) {
	if i < 0 || i >= r.periods {
		return nil, &PeriodRangeError{Period: i, Periods: r.periods}
	}
	r.cacheInit.Do(func() {
		r.cache = requestcache.NewCache(func(ctx context.Context, request interface{}) (interface{}, error) {
			return r.period(request.(int))
		}, runtime.GOMAXPROCS(-1),
			requestcache.Deduplicate(), requestcache.Memory(r.CacheSize))
	})
	req := r.cache.NewRequest(context.TODO(), i, strconv.Itoa(i))
	result, err := req.Result()
	if err != nil {
		return nil, err
	}
	return result.(*Period), nil
}

// period reads period i from the file.
func (r *Reader) period(i int) (*Period, error) {
	b := make([]byte, r.recordSize())
	if _, err := r.r.ReadAt(b, r.offset(i)); err != nil {
		return nil, fmt.Errorf("wqout: reading period %d: %v", i, err)
	}
	p := &Period{
		Nodes: make([]float32, r.nodes),
		Links: make([]float32, r.links),
	}
	for j := range p.Nodes {
		p.Nodes[j] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*j:]))
	}
	for j := range p.Links {
		p.Links[j] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*(r.nodes+j):]))
	}
	return p, nil
}

// NodeSeries returns the quality at node j in every period.
func (r *Reader) NodeSeries(j int) ([]float32, error) {
	if j < 0 || j >= r.nodes {
		return nil, fmt.Errorf("wqout: node index %d is out of range [0,%d)", j, r.nodes)
	}
	return r.series(func(p *Period) float32 { return p.Nodes[j] })
}

// LinkSeries returns the average quality in link j in every period.
func (r *Reader) LinkSeries(j int) ([]float32, error) {
	if j < 0 || j >= r.links {
		return nil, fmt.Errorf("wqout: link index %d is out of range [0,%d)", j, r.links)
	}
	return r.series(func(p *Period) float32 { return p.Links[j] })
}

func (r *Reader) series(f func(*Period) float32) ([]float32, error) {
	o := make([]float32, r.periods)
	for i := range o {
		p, err := r.Period(i)
		if err != nil {
			return nil, err
		}
		o[i] = f(p)
	}
	return o, nil
}

// File is a Reader for a result file on disk.
type File struct {
	*Reader
	f *os.File
}

// Open opens the result file at path.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("wqout: %v", err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("wqout: %v", err)
	}
	r, err := NewReader(f, fi.Size())
	if err != nil {
		f.Close()
		return nil, err
	}
	return &File{Reader: r, f: f}, nil
}

// Close closes the underlying file.
func (f *File) Close() error { return f.f.Close() }
