package monitoring

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/go-logr/logr"
	prom "github.com/prometheus/client_golang/prometheus"
	"golang.org/x/exp/constraints"

	"github.com/AMDEPYC/cpufreq-spsa/internal/governor"
	"github.com/AMDEPYC/cpufreq-spsa/internal/metrics"
)

// Helper constants for prom Collectors
const (
	promNamespace string = "spsa"

	LogTopName        string = "monitoring"
	governorSubsystem string = "governor"

	logNameKey    string = "name"
	clusterLabel  string = "cluster"
	tunableLabel  string = "tunable"
	clusterLogKey string = "cluster"
)

type collectorImpl struct {
	collectFunc  func(ch chan<- prom.Metric)
	describeFunc func(ch chan<- *prom.Desc)
}

func (c collectorImpl) Collect(ch chan<- prom.Metric) {
	c.collectFunc(ch)
}

func (c collectorImpl) Describe(ch chan<- *prom.Desc) {
	c.describeFunc(ch)
}

type number interface {
	constraints.Integer | constraints.Float
}

// newPerClusterCollector is generic factory of prometheus Collectors for metrics that are cluster bound.
// readFunc is called on every scrape, clusters whose first read returns ErrMetricMissing are skipped.
// log is Logger that should have all Names, KeysValues and other... already attached.
// return prometheus Collector that is ready for registration
func newPerClusterCollector[T number](metricName, metricDesc string, metricType prom.ValueType,
	clusters []*governor.Cluster, readFunc func(*governor.Cluster) (T, error), log logr.Logger,
) prom.Collector {
	desc := prom.NewDesc(
		metricName,
		metricDesc,
		[]string{clusterLabel},
		nil,
	)

	collectorFuncs := make([]func(ch chan<- prom.Metric), 0, len(clusters))
	for _, cluster := range clusters {
		cluster := cluster
		if _, err := readFunc(cluster); errors.Is(err, metrics.ErrMetricMissing) {
			log.Info("Not registering collection, this metric can not be read",
				"error", err.Error(), clusterLogKey, cluster.ID())
			continue
		}
		collectorFuncs = append(collectorFuncs, func(ch chan<- prom.Metric) {
			log.V(5).Info("Collecting metrics for prometheus", clusterLogKey, cluster.ID())
			if val, err := readFunc(cluster); err == nil {
				ch <- prom.MustNewConstMetric(
					desc,
					metricType,
					float64(val),
					strconv.Itoa(cluster.ID()),
				)
			} else {
				log.V(5).Info(fmt.Sprintf("error reading metric value, err: %v", err), clusterLogKey, cluster.ID())
			}
		})
	}
	log.V(4).Info("New perCluster prometheus Collector created")

	return collectorImpl{
		describeFunc: func(ch chan<- *prom.Desc) {
			ch <- desc
		},
		collectFunc: func(ch chan<- prom.Metric) {
			for _, collectFunc := range collectorFuncs {
				collectFunc(ch)
			}
		},
	}
}

// newLabeledCollector exposes a fixed set of named values under one metric,
// each value labeled by its key.
func newLabeledCollector[T number](metricName, metricDesc, label string, metricType prom.ValueType,
	readFuncs map[string]func() T, log logr.Logger,
) prom.Collector {
	desc := prom.NewDesc(
		metricName,
		metricDesc,
		[]string{label},
		nil,
	)
	log.V(4).Info("New labeled prometheus Collector created", "values", len(readFuncs))

	return collectorImpl{
		describeFunc: func(ch chan<- *prom.Desc) {
			ch <- desc
		},
		collectFunc: func(ch chan<- prom.Metric) {
			for name, readFunc := range readFuncs {
				ch <- prom.MustNewConstMetric(desc, metricType, float64(readFunc()), name)
			}
		},
	}
}
