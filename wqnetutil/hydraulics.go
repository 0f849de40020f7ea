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

package wqnetutil

import (
	"fmt"
	"os"
	"time"

	"github.com/spatialmodel/wqnet"
)

// SteadyHydraulics writes hydraulic results to hydPath in which the
// demands and flows given in the network file at networkPath stay
// constant for dur, divided into steps of length step.
func SteadyHydraulics(networkPath, hydPath string, dur, step time.Duration) error {
	if step < time.Second {
		return fmt.Errorf("wqnetutil: hydraulic step must be at least 1s but is %v", step)
	}
	nf, err := ReadNetworkFile(networkPath)
	if err != nil {
		return err
	}
	net, err := nf.Network()
	if err != nil {
		return err
	}
	demands, flows, err := nf.SteadyHydraulics()
	if err != nil {
		return err
	}

	f, err := os.Create(hydPath)
	if err != nil {
		return fmt.Errorf("wqnetutil: creating hydraulics file: %v", err)
	}
	w, err := wqnet.NewHydraulicWriter(f, len(net.Nodes), len(net.Links))
	if err != nil {
		f.Close()
		return err
	}
	end := int64(dur / time.Second)
	dt := int64(step / time.Second)
	for t := int64(0); ; {
		s := &wqnet.HydraulicStep{
			Time:    t,
			Step:    min64(dt, end-t),
			Demands: demands,
			Flows:   flows,
		}
		if err := w.Write(s); err != nil {
			f.Close()
			return err
		}
		if s.Step == 0 {
			break
		}
		t += s.Step
	}
	return f.Close()
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
