/*


Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"flag"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap/zapcore"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"

	"github.com/AMDEPYC/cpufreq-spsa/internal/config"
	"github.com/AMDEPYC/cpufreq-spsa/internal/governor"
	"github.com/AMDEPYC/cpufreq-spsa/internal/spsa"
)

var (
	setupLog = ctrl.Log.WithName("setup")
)

type globalOpts struct {
	configPath string
	traceRate  float64
	traceBurst int
}

func main() {
	var opts globalOpts
	logOpts := zap.Options{}
	goFlags := flag.NewFlagSet("zap", flag.ExitOnError)
	logOpts.BindFlags(goFlags)

	root := &cobra.Command{
		Use:   "spsa-governor",
		Short: "SPSA based CPU frequency governor for big.LITTLE clusters",
		Long: `spsa-governor picks the next cpufreq step of every CPU cluster once per
sampling period. Each decision is a single-shot SPSA update over the cluster's
table of frequencies and energy costs, steering the load towards the target.

Examples:
  spsa-governor run --config /etc/spsa-governor.yaml
  spsa-governor simulate --cluster 1 --ticks 2000 --demand 100000000`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			ctrl.SetLogger(zap.New(
				zap.UseDevMode(true),
				func(o *zap.Options) {
					o.TimeEncoder = zapcore.ISO8601TimeEncoder
				},
				zap.UseFlagOptions(&logOpts),
			))
		},
	}
	root.PersistentFlags().AddGoFlagSet(goFlags)
	bindGlobalFlags(root.PersistentFlags(), &opts)

	root.AddCommand(newRunCommand(&opts), newSimulateCommand(&opts))

	if err := root.ExecuteContext(ctrl.SetupSignalHandler()); err != nil {
		setupLog.Error(err, "command failed")
		os.Exit(1)
	}
}

func bindGlobalFlags(fs *pflag.FlagSet, opts *globalOpts) {
	fs.StringVar(&opts.configPath, "config", "",
		"YAML config file, built-in defaults are used when empty")
	fs.Float64Var(&opts.traceRate, "trace-rate", 10,
		"max diagnostic trace lines per second when diagnostics are enabled, 0 means unlimited")
	fs.IntVar(&opts.traceBurst, "trace-burst", 20, "diagnostic trace burst size")
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

// newGovernor builds the controller and tunables described by cfg.
func newGovernor(cfg *config.Config, opts *globalOpts, extra ...governor.Option) (*governor.Controller, error) {
	tunables := spsa.NewTunables()
	if err := cfg.Apply(tunables); err != nil {
		return nil, err
	}
	tables, err := cfg.Tables()
	if err != nil {
		return nil, err
	}
	for id, table := range tables {
		setupLog.V(4).Info("frequency table", "cluster", id, "table", table.String(),
			"min", table.FrequencyOf(0), "max", table.FrequencyOf(table.MaxIndex()))
	}

	governorOpts := []governor.Option{
		governor.WithLogger(ctrl.Log.WithName("governor")),
		governor.WithTraceSink(spsa.NewLogTraceSink(ctrl.Log.WithName("trace"), opts.traceRate, opts.traceBurst)),
	}
	return governor.NewController(tables, tunables, append(governorOpts, extra...)...), nil
}
