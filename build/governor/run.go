package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/healthz"

	"github.com/AMDEPYC/cpufreq-spsa/internal/config"
	"github.com/AMDEPYC/cpufreq-spsa/internal/governor"
	"github.com/AMDEPYC/cpufreq-spsa/internal/metrics"
	"github.com/AMDEPYC/cpufreq-spsa/internal/monitoring"
	"github.com/AMDEPYC/cpufreq-spsa/internal/scaling"
)

func newRunCommand(opts *globalOpts) *cobra.Command {
	var bindAddress string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Drive cpufreq of the configured clusters until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts, bindAddress)
		},
	}
	cmd.Flags().StringVar(&bindAddress, "bind-address", ":10001",
		"The address the metric and probe endpoints bind to.")

	return cmd
}

func run(ctx context.Context, opts *globalOpts, bindAddress string) error {
	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}
	controller, err := newGovernor(cfg, opts)
	if err != nil {
		return err
	}

	loads, err := metrics.NewCPULoadClient(ctrl.Log.WithName("metrics").WithName("load"), cfg.ProcfsPath, cfg.SysfsCPUPath)
	if err != nil {
		return fmt.Errorf("unable to create load client: %w", err)
	}
	driver := scaling.NewSysfsFrequencyDriver(cfg.SysfsCPUPath)

	scalingOpts, err := cfg.ScalingOpts()
	if err != nil {
		return err
	}
	scalingMgr := scaling.NewClusterScalingManager(controller, loads, driver)
	scalingMgr.UpdateConfig(scalingOpts)

	monitoring.RegisterGovernorCollectors(controller, ctrl.Log.WithName(monitoring.LogTopName))
	server := monitoring.NewServer(bindAddress, ctrl.Log.WithName("server"), map[string]healthz.Checker{
		"workers": func(_ *http.Request) error {
			if len(scalingMgr.ManagedClusters()) == 0 {
				return errors.New("no cluster workers running")
			}
			return nil
		},
	})

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return scalingMgr.Start(ctx)
	})
	group.Go(func() error {
		return server.Start(ctx)
	})
	if opts.configPath != "" {
		group.Go(func() error {
			return config.Watch(ctx, opts.configPath, ctrl.Log.WithName("config"), func(next *config.Config) {
				reload(controller, scalingMgr, len(cfg.Clusters), next)
			})
		})
	}

	setupLog.Info("starting governor", "clusters", len(scalingOpts), "samplePeriod", cfg.SamplePeriod)
	return group.Wait()
}

// reload applies tunables, sample period and CPU lists at runtime. The set
// of clusters and their tables are fixed for the process lifetime.
func reload(controller *governor.Controller, scalingMgr scaling.ClusterScalingManager, clusters int, next *config.Config) {
	if err := next.Apply(controller.Tunables()); err != nil {
		setupLog.Error(err, "unable to apply tunables")
		return
	}
	if len(next.Clusters) != clusters {
		setupLog.Info("cluster layout changes need a restart, keeping workers", "configured", len(next.Clusters), "running", clusters)
		return
	}
	scalingOpts, err := next.ScalingOpts()
	if err != nil {
		setupLog.Error(err, "unable to update workers")
		return
	}
	scalingMgr.UpdateConfig(scalingOpts)
	setupLog.Info("config applied", "tunables", controller.Tunables().Snapshot(), "samplePeriod", next.SamplePeriod)
}
