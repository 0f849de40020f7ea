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

package hash

import (
	"math"
	"testing"
)

type pipe struct {
	ID     string
	Length float64
	Next   *pipe
}

func TestOf(t *testing.T) {
	a := map[string]*pipe{
		"P1": {ID: "P1", Length: 100, Next: &pipe{ID: "P2", Length: 50}},
		"P2": {ID: "P2", Length: 50},
	}
	b := map[string]*pipe{
		"P2": {ID: "P2", Length: 50},
		"P1": {ID: "P1", Length: 100, Next: &pipe{ID: "P2", Length: 50}},
	}
	if Of(a) != Of(b) {
		t.Errorf("equal values have different fingerprints: %s != %s", Of(a), Of(b))
	}
	b["P2"].Length = 51
	if Of(a) == Of(b) {
		t.Error("different values have the same fingerprint")
	}
	if h := Of(pipe{Length: math.NaN()}); len(h) != 16 {
		t.Errorf("fingerprint %q should have 16 characters", h)
	}
}
