package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	ctrl "sigs.k8s.io/controller-runtime"

	"github.com/AMDEPYC/cpufreq-spsa/internal/simulation"
)

type simulateOpts struct {
	cluster   int
	ticks     int
	load      uint
	demand    uint64
	startFreq uint
	perTick   bool
}

func newSimulateCommand(opts *globalOpts) *cobra.Command {
	var o simulateOpts

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run the governor in a closed loop against a synthetic load",
		RunE: func(cmd *cobra.Command, args []string) error {
			return simulate(cmd.Context(), cmd.OutOrStdout(), opts, o)
		},
	}
	cmd.Flags().IntVar(&o.cluster, "cluster", 0, "cluster id to simulate")
	cmd.Flags().IntVar(&o.ticks, "ticks", 1000, "number of sampling periods")
	cmd.Flags().UintVar(&o.load, "load", 70, "constant load percent reported every tick")
	cmd.Flags().Uint64Var(&o.demand, "demand", 0,
		"work per tick as load percent times kHz, the load then follows the frequency; overrides --load")
	cmd.Flags().UintVar(&o.startFreq, "start-frequency", 0, "frequency in kHz before the first tick, defaults to the table midpoint")
	cmd.Flags().BoolVar(&o.perTick, "per-tick", false, "print every tick")

	return cmd
}

func simulate(_ context.Context, out io.Writer, opts *globalOpts, o simulateOpts) error {
	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}
	controller, err := newGovernor(cfg, opts)
	if err != nil {
		return err
	}

	profile := simulation.Constant(o.load)
	if o.demand > 0 {
		profile = simulation.Demand(o.demand)
	}
	result, err := simulation.Run(controller, simulation.Options{
		ClusterID:      o.cluster,
		Ticks:          o.ticks,
		StartFrequency: o.startFreq,
		Profile:        profile,
	}, ctrl.Log.WithName("simulation"))
	if err != nil {
		return err
	}

	return printResult(out, result, o.perTick)
}

func printResult(out io.Writer, result *simulation.Result, perTick bool) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	if perTick {
		fmt.Fprintln(w, "TICK\tLOAD\tINDEX\tFREQUENCY_KHZ")
		for i := range result.Indices {
			fmt.Fprintf(w, "%d\t%d\t%d\t%d\n", i, result.Loads[i], result.Indices[i], result.Frequencies[i])
		}
		fmt.Fprintln(w)
	}

	s := result.Summary
	fmt.Fprintf(w, "cluster\t%d\n", result.ClusterID)
	fmt.Fprintf(w, "ticks\t%d\n", s.Ticks)
	fmt.Fprintf(w, "index mean\t%.2f\n", s.MeanIndex)
	fmt.Fprintf(w, "index stddev\t%.2f\n", s.StdDevIndex)
	fmt.Fprintf(w, "index min/max/final\t%d/%d/%d\n", s.MinIndex, s.MaxIndex, s.FinalIndex)
	fmt.Fprintf(w, "load mean\t%.2f\n", s.MeanLoad)
	fmt.Fprintf(w, "load p90\t%.2f\n", s.P90Load)
	fmt.Fprintf(w, "frequency changes\t%d\n", s.FrequencyChanges)
	for _, index := range s.VisitedIndices() {
		fmt.Fprintf(w, "time at index %d\t%.1f%%\n", index, 100*s.TimeAtIndex[index])
	}

	return w.Flush()
}
