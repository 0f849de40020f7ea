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

	"github.com/lnashier/viper"
	"github.com/skratchdot/open-golang/open"
	"github.com/spatialmodel/wqnet"
	"github.com/spatialmodel/wqnet/cloud"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	// Options are the configuration options available to WQNet.
	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "NetworkFile",
			usage: `
              NetworkFile is the path to the TOML network description. It can
              include environment variables and can be a blob storage address
              (for example 's3://bucket/network.toml').`,
			defaultVal: "network.toml",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), steadyCmd.Flags(), plotCmd.Flags(), exportCmd.Flags()},
		},
		{
			name: "HydraulicsFile",
			usage: `
              HydraulicsFile is the path to the binary hydraulic results file
              that drives the simulation. It can include environment variables
              and can be a blob storage address.`,
			defaultVal: "hydraulics.hyd",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), steadyCmd.Flags()},
		},
		{
			name: "OutputFile",
			usage: `
              OutputFile is the path to the binary water quality results file.
              It can include environment variables and can be a blob storage
              address, in which case the file is uploaded at the end of the run.`,
			defaultVal: "wqnet_output.wqo",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), readCmd.Flags(), exportCmd.Flags(), plotCmd.Flags()},
		},
		{
			name: "LogFile",
			usage: `
              LogFile is the path to the desired logfile location. It can include
              environment variables. If LogFile is left blank, the logfile will be saved in
              the same location as the OutputFile.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Quality",
			usage: `
              Quality overrides the type of water quality analysis given in the
              network file. Valid values are 'none', 'chem', 'age', and 'trace'.
              If it is blank the network file value is used.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "TraceNode",
			usage: `
              TraceNode overrides the ID of the node whose flow is traced in
              trace analyses.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "QualityStep",
			usage: `
              QualityStep overrides the water quality time step, for example '5m'.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "ReportStep",
			usage: `
              ReportStep overrides the time between reporting periods, for example '1h'.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "ReportStart",
			usage: `
              ReportStart overrides the time of the first reporting period, for example '0s'.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "stats",
			usage: `
              stats specifies whether to print the mean and standard deviation of
              the node and link qualities in each reporting period.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{readCmd.Flags()},
		},
		{
			name: "ExportFormat",
			usage: `
              ExportFormat is the format of exported results. Valid values are
              'netcdf' and 'xlsx'.`,
			defaultVal: "netcdf",
			flagsets:   []*pflag.FlagSet{exportCmd.Flags()},
		},
		{
			name: "ExportFile",
			usage: `
              ExportFile is the path to the exported results. It can include
              environment variables.`,
			defaultVal: "wqnet_output.nc",
			flagsets:   []*pflag.FlagSet{exportCmd.Flags()},
		},
		{
			name: "ExportVariables",
			usage: `
              ExportVariables specifies the variables to export as expressions of
              the reported quality 'C' and the reporting period 'Period'.
              The functions 'exp', 'log', 'min', and 'max' are available.`,
			defaultVal: map[string]string{
				"Quality": "C",
			},
			flagsets: []*pflag.FlagSet{exportCmd.Flags()},
		},
		{
			name: "PlotNodes",
			usage: `
              PlotNodes are the IDs of the nodes whose quality should be plotted.
              If it is empty, all nodes are plotted.`,
			defaultVal: []string{},
			flagsets:   []*pflag.FlagSet{plotCmd.Flags()},
		},
		{
			name: "PlotFile",
			usage: `
              PlotFile is the path where the plot image should be saved. The
              image format is chosen by the file extension.`,
			defaultVal: "wqnet_plot.png",
			flagsets:   []*pflag.FlagSet{plotCmd.Flags()},
		},
		{
			name: "open",
			usage: `
              open specifies whether to open the plot after it is created.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{plotCmd.Flags()},
		},
		{
			name: "Duration",
			usage: `
              Duration is the length of the hydraulic results to create.`,
			defaultVal: "24h",
			flagsets:   []*pflag.FlagSet{steadyCmd.Flags()},
		},
		{
			name: "HydraulicStep",
			usage: `
              HydraulicStep is the length of each hydraulic time step.`,
			defaultVal: "1h",
			flagsets:   []*pflag.FlagSet{steadyCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("WQNET")
	Cfg.AutomaticEnv()

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch option.defaultVal.(type) {
			case string:
				if option.shorthand == "" {
					set.String(option.name, option.defaultVal.(string), option.usage)
				} else {
					set.StringP(option.name, option.shorthand, option.defaultVal.(string), option.usage)
				}
			case []string:
				if option.shorthand == "" {
					set.StringSlice(option.name, option.defaultVal.([]string), option.usage)
				} else {
					set.StringSliceP(option.name, option.shorthand, option.defaultVal.([]string), option.usage)
				}
			case bool:
				if option.shorthand == "" {
					set.Bool(option.name, option.defaultVal.(bool), option.usage)
				} else {
					set.BoolP(option.name, option.shorthand, option.defaultVal.(bool), option.usage)
				}
			case map[string]string:
				b := bytes.NewBuffer(nil)
				e := json.NewEncoder(b)
				e.Encode(option.defaultVal)
				s := string(b.Bytes())
				if option.shorthand == "" {
					set.String(option.name, s, option.usage)
				} else {
					set.StringP(option.name, option.shorthand, s, option.usage)
				}
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
}

func init() {
	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(runCmd)
	Root.AddCommand(readCmd)
	Root.AddCommand(exportCmd)
	Root.AddCommand(plotCmd)
	Root.AddCommand(hydraulicsCmd)
	hydraulicsCmd.AddCommand(steadyCmd)
}

// setConfig finds and reads in the configuration file, if there is one.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(cfgpath)
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("wqnet: problem reading configuration file: %v", err)
		}
	}
	return nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "wqnet",
	Short: "A water quality model for pipe networks.",
	Long: `WQNet simulates the transport and reaction of a dissolved constituent
through a pressurized pipe network, using hydraulic results computed by
a separate hydraulic solver. Use the subcommands specified below to access
the model functionality.

Refer to the subcommand documentation for configuration options and default settings.
Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'WQNET_var' where 'var' is the
name of the variable to be set. Many configuration variables are additionally
allowed to contain environment variables within them.
Refer to https://github.com/spf13/viper for additional configuration information.`,
	DisableAutoGenTag: true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of WQNet.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("WQNet v%s\n", wqnet.Version)
	},
	DisableAutoGenTag: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a water quality simulation.",
	Long: `run runs a water quality simulation of the network in NetworkFile
driven by the hydraulic results in HydraulicsFile, and saves the results
to OutputFile.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		outputFile, err := checkOutputFile(Cfg.GetString("OutputFile"))
		if err != nil {
			return err
		}
		netFile, err := cloud.Download(ctx, os.ExpandEnv(Cfg.GetString("NetworkFile")))
		if err != nil {
			return err
		}
		f, err := ReadNetworkFile(netFile)
		if err != nil {
			return err
		}
		if err := applyOverrides(&f.Options, Cfg); err != nil {
			return err
		}
		net, err := f.Network()
		if err != nil {
			return err
		}
		hydFile, err := cloud.Download(ctx, os.ExpandEnv(Cfg.GetString("HydraulicsFile")))
		if err != nil {
			return err
		}
		return Run(cmd, checkLogFile(Cfg.GetString("LogFile"), outputFile), net, hydFile, outputFile)
	},
	DisableAutoGenTag: true,
}

var readCmd = &cobra.Command{
	Use:   "read",
	Short: "Summarize a results file.",
	Long: `read prints a summary of the water quality results in OutputFile.
If --stats is set, summary statistics for each reporting period are
printed as well.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := cloud.Download(context.Background(), os.ExpandEnv(Cfg.GetString("OutputFile")))
		if err != nil {
			return err
		}
		return Read(cmd.OutOrStdout(), f, Cfg.GetBool("stats"))
	},
	DisableAutoGenTag: true,
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export results to another format.",
	Long: `export converts the water quality results in OutputFile to
NetCDF or Microsoft Excel format. Exported variables are calculated
from the reported qualities as specified by ExportVariables. Element
IDs are read from NetworkFile if it exists.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		f, err := cloud.Download(ctx, os.ExpandEnv(Cfg.GetString("OutputFile")))
		if err != nil {
			return err
		}
		vars, err := checkExportVars(GetStringMapString("ExportVariables", Cfg))
		if err != nil {
			return err
		}
		nodeIDs, linkIDs := elementIDs(ctx, Cfg.GetString("NetworkFile"))
		return Export(f, os.ExpandEnv(Cfg.GetString("ExportFile")), Cfg.GetString("ExportFormat"),
			vars, nodeIDs, linkIDs)
	},
	DisableAutoGenTag: true,
}

var plotCmd = &cobra.Command{
	Use:   "plot",
	Short: "Plot node quality over time.",
	Long: `plot creates a time series plot of the quality at the nodes in
PlotNodes, using the network in NetworkFile for node IDs and reporting
times.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		netFile, err := cloud.Download(ctx, os.ExpandEnv(Cfg.GetString("NetworkFile")))
		if err != nil {
			return err
		}
		net, err := LoadNetwork(netFile)
		if err != nil {
			return err
		}
		f, err := cloud.Download(ctx, os.ExpandEnv(Cfg.GetString("OutputFile")))
		if err != nil {
			return err
		}
		plotFile := os.ExpandEnv(Cfg.GetString("PlotFile"))
		if err := Plot(f, plotFile, net, expandStringSlice(Cfg.GetStringSlice("PlotNodes"))); err != nil {
			return err
		}
		cmd.Printf("saved plot to %s\n", plotFile)
		if Cfg.GetBool("open") {
			return open.Run(plotFile)
		}
		return nil
	},
	DisableAutoGenTag: true,
}

var hydraulicsCmd = &cobra.Command{
	Use:   "hydraulics",
	Short: "Create hydraulic results files.",
	Long: `hydraulics creates hydraulic results files that can drive water
quality simulations. Use the subcommands specified below to choose how
the results are created. (Currently 'steady' is the only available mode.)`,
	DisableAutoGenTag: true,
}

var steadyCmd = &cobra.Command{
	Use:   "steady",
	Short: "Create constant hydraulic results.",
	Long: `steady writes hydraulic results to HydraulicsFile in which the
demands and flows given in NetworkFile stay constant for Duration.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dur, err := parseDuration("Duration", Cfg.GetString("Duration"))
		if err != nil {
			return err
		}
		step, err := parseDuration("HydraulicStep", Cfg.GetString("HydraulicStep"))
		if err != nil {
			return err
		}
		netFile, err := cloud.Download(context.Background(), os.ExpandEnv(Cfg.GetString("NetworkFile")))
		if err != nil {
			return err
		}
		return SteadyHydraulics(netFile, os.ExpandEnv(Cfg.GetString("HydraulicsFile")), dur, step)
	},
	DisableAutoGenTag: true,
}
