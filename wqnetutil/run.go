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
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/wqnet"
	"github.com/spatialmodel/wqnet/internal/hash"
	"github.com/spf13/cobra"
)

// Run runs a water quality simulation.
//
// CobraCommand is the cobra.Command instance where Run is called from.
// Log messages are written to its output as well as to LogFile.
//
// LogFile is the path to the desired logfile location.
//
// net is the network to simulate, HydraulicsFile is the local path to
// the hydraulic results that drive the simulation, and OutputFile is the
// path where the results should be written. If OutputFile or LogFile
// is a blob storage address, the file is uploaded when the simulation
// finishes.
func Run(CobraCommand *cobra.Command, LogFile string, net *wqnet.Network, HydraulicsFile, OutputFile string) error {
	startTime := time.Now()

	var upload uploader

	logfile, err := os.Create(upload.maybeUpload(LogFile))
	if err != nil {
		return fmt.Errorf("wqnet: problem creating log file: %v", err)
	}
	log := logrus.New()
	log.Out = io.MultiWriter(CobraCommand.OutOrStdout(), logfile)
	log.Formatter = &logrus.TextFormatter{FullTimestamp: true, DisableColors: true}

	sim, err := wqnet.NewSimulation(net)
	if err != nil {
		logfile.Close()
		return err
	}
	sim.Log = log
	log.WithFields(logrus.Fields{
		"network":    hash.Of(net),
		"hydraulics": HydraulicsFile,
		"output":     OutputFile,
	}).Info("wqnetutil: loaded network")

	if err = sim.Simulate(HydraulicsFile, upload.maybeUpload(OutputFile)); err != nil {
		log.Error(err)
		logfile.Close()
		return err
	}
	log.WithFields(logrus.Fields{
		"periods": sim.Periods(),
		"elapsed": time.Since(startTime).String(),
	}).Info("wqnetutil: run complete")

	// Close the log file before it is uploaded.
	log.Out = CobraCommand.OutOrStdout()
	if err = logfile.Close(); err != nil {
		return err
	}
	return upload.uploadOutput(context.TODO(), log)
}
