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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lnashier/viper"
	"github.com/spatialmodel/wqnet/cloud"
	"github.com/spf13/cast"
)

// checkExportVars removes end lines and expands environment
// variables in the export variables.
func checkExportVars(vars map[string]string) (map[string]string, error) {
	if len(vars) == 0 {
		return nil, fmt.Errorf("there are no variables specified for export. Please fill in " +
			"the ExportVariables configuration and try again.")
	}
	o := make(map[string]string, len(vars))
	for k, v := range vars {
		v = strings.Replace(v, "\r\n", " ", -1)
		v = strings.Replace(v, "\n", " ", -1)
		o[os.ExpandEnv(k)] = os.ExpandEnv(v)
	}
	return o, nil
}

// expandStringSlice expands the environment variables in a slice of strings.
func expandStringSlice(s []string) []string {
	for i := 0; i < len(s); i++ {
		s[i] = os.ExpandEnv(s[i])
	}
	return s
}

// checkOutputFile makes sure that the output file is specified and its
// directory exists, and expand any environment variables.
func checkOutputFile(f string) (string, error) {
	if f == "" {
		return "", fmt.Errorf(`you need to specify an output file configuration variable (for example: OutputFile="output.wqo"`)
	}
	f = os.ExpandEnv(f)
	if cloud.IsBlob(f) {
		bucketName, _, err := cloud.SplitURL(f)
		if err != nil {
			return f, err
		}
		if _, err = cloud.OpenBucket(context.TODO(), bucketName); err != nil {
			return f, fmt.Errorf("wqnet: error when checking OutputFile location: %v", err)
		}
		return f, nil
	}
	outdir := filepath.Dir(f)
	if _, err := os.Stat(outdir); err != nil {
		return f, fmt.Errorf("wqnet: the OutputFile directory doesn't exist: %v", err)
	}
	return f, nil
}

// checkLogFile fills in a default value for the log file path if one isn't
// specified.
func checkLogFile(logFile, outputFile string) string {
	if logFile == "" {
		logFile = strings.TrimSuffix(outputFile, filepath.Ext(outputFile)) + ".log"
	}
	return os.ExpandEnv(logFile)
}

// parseDuration parses the duration configuration variable name.
func parseDuration(name, value string) (time.Duration, error) {
	d, err := time.ParseDuration(os.ExpandEnv(value))
	if err != nil {
		return 0, fmt.Errorf("wqnetutil: parsing %s: %v", name, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("wqnetutil: %s=%s but should be >= 0", name, value)
	}
	return d, nil
}

// applyOverrides replaces the analysis options in o with any that are
// set in cfg. Empty configuration values leave o unchanged.
func applyOverrides(o *OptionsFile, cfg *viper.Viper) error {
	if q := os.ExpandEnv(cfg.GetString("Quality")); q != "" {
		if err := o.Quality.UnmarshalText([]byte(q)); err != nil {
			return fmt.Errorf("wqnetutil: parsing Quality: %v", err)
		}
	}
	if t := os.ExpandEnv(cfg.GetString("TraceNode")); t != "" {
		o.TraceNode = t
	}
	durations := []struct {
		name string
		d    *duration
	}{
		{"QualityStep", &o.QualityStep},
		{"ReportStep", &o.ReportStep},
		{"ReportStart", &o.ReportStart},
	}
	for _, v := range durations {
		s := cfg.GetString(v.name)
		if s == "" {
			continue
		}
		d, err := parseDuration(v.name, s)
		if err != nil {
			return err
		}
		v.d.Duration = d
	}
	return nil
}

// elementIDs returns the node and link IDs of the network in the file at
// path, or nil if the file cannot be read.
func elementIDs(ctx context.Context, path string) (nodes, links []string) {
	if path == "" {
		return nil, nil
	}
	f, err := cloud.Download(ctx, os.ExpandEnv(path))
	if err != nil {
		return nil, nil
	}
	net, err := LoadNetwork(f)
	if err != nil {
		return nil, nil
	}
	for _, n := range net.Nodes {
		nodes = append(nodes, n.ID)
	}
	for _, l := range net.Links {
		links = append(links, l.ID)
	}
	return nodes, links
}

// GetStringMapString returns a map[string]string from a viper configuration,
// accounting for the fact that it might be a json object if it was set
// from a command line argument.
func GetStringMapString(varName string, cfg *viper.Viper) map[string]string {
	i := cfg.Get(varName)
	switch i.(type) {
	case map[string]string:
		return i.(map[string]string)
	case map[string]interface{}:
		return cast.ToStringMapString(i)
	case string:
		b := bytes.NewBuffer(([]byte)(i.(string)))
		d := json.NewDecoder(b)
		o := make(map[string]string)
		if err := d.Decode(&o); err != nil {
			panic(err)
		}
		return o
	default:
		panic(fmt.Errorf("invalid type for GetStringMapString variable %s: %#v", varName, i))
	}
}
