package monitoring

import (
	"github.com/go-logr/logr"
	prom "github.com/prometheus/client_golang/prometheus"
	ctrlMetrics "sigs.k8s.io/controller-runtime/pkg/metrics"

	"github.com/AMDEPYC/cpufreq-spsa/internal/governor"
)

func RegisterGovernorCollectors(controller *governor.Controller, logger logr.Logger) {
	ctrlMetrics.Registry.MustRegister(newGovernorCollectors(controller, logger)...)
}

func newGovernorCollectors(controller *governor.Controller, logger logr.Logger) []prom.Collector {
	logger = logger.WithName(governorSubsystem)
	clusters := controller.Clusters()
	tunables := controller.Tunables()

	return []prom.Collector{
		newPerClusterCollector(
			prom.BuildFQName(promNamespace, governorSubsystem, "current_index"),
			"Gauge of the frequency table index the cluster state points at",
			prom.GaugeValue,
			clusters,
			func(c *governor.Cluster) (int, error) { return c.State().CurrentIndex, nil },
			logger.WithValues(logNameKey, "current_index"),
		),
		newPerClusterCollector(
			prom.BuildFQName(promNamespace, governorSubsystem, "requested_frequency_khz"),
			"Gauge of the last frequency requested for the cluster in kHz",
			prom.GaugeValue,
			clusters,
			func(c *governor.Cluster) (uint, error) { return c.State().RequestedFrequency, nil },
			logger.WithValues(logNameKey, "requested_frequency_khz"),
		),
		newPerClusterCollector(
			prom.BuildFQName(promNamespace, governorSubsystem, "decisions_total"),
			"Counter of frequency decisions taken for the cluster",
			prom.CounterValue,
			clusters,
			func(c *governor.Cluster) (uint64, error) { return c.Decisions(), nil },
			logger.WithValues(logNameKey, "decisions_total"),
		),
		newPerClusterCollector(
			prom.BuildFQName(promNamespace, governorSubsystem, "unknown_frequency_total"),
			"Counter of decisions whose current frequency was missing from the table",
			prom.CounterValue,
			clusters,
			func(c *governor.Cluster) (uint64, error) { return c.UnknownFrequencies(), nil },
			logger.WithValues(logNameKey, "unknown_frequency_total"),
		),
		newPerClusterCollector(
			prom.BuildFQName(promNamespace, governorSubsystem, "table_entries"),
			"Gauge of the number of frequency steps available to the cluster",
			prom.GaugeValue,
			clusters,
			func(c *governor.Cluster) (int, error) { return c.Table().Len(), nil },
			logger.WithValues(logNameKey, "table_entries"),
		),
		newLabeledCollector(
			prom.BuildFQName(promNamespace, governorSubsystem, "tunable"),
			"Gauge of the current value of each governor tunable",
			tunableLabel,
			prom.GaugeValue,
			map[string]func() int64{
				"alpha":       func() int64 { return int64(tunables.Snapshot().Alpha) },
				"beta":        func() int64 { return int64(tunables.Snapshot().Beta) },
				"target_load": func() int64 { return int64(tunables.Snapshot().TargetLoad) },
			},
			logger.WithValues(logNameKey, "tunable"),
		),
	}
}
