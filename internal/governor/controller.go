package governor

import (
	"fmt"

	"github.com/go-logr/logr"

	"github.com/AMDEPYC/cpufreq-spsa/internal/freqtable"
	"github.com/AMDEPYC/cpufreq-spsa/internal/spsa"
)

// Controller picks the next frequency of each cluster once per sampling
// tick. Decide never blocks on I/O, never allocates and never fails.
type Controller struct {
	clusters []*Cluster
	tunables *spsa.Tunables
	signs    spsa.SignSource
	sink     spsa.TraceSink
	log      logr.Logger
}

type Option func(*Controller)

// WithSignSource replaces the random perturbation source.
func WithSignSource(signs spsa.SignSource) Option {
	return func(c *Controller) {
		c.signs = signs
	}
}

// WithTraceSink sets where per-tick diagnostics go when enabled.
func WithTraceSink(sink spsa.TraceSink) Option {
	return func(c *Controller) {
		c.sink = sink
	}
}

func WithLogger(log logr.Logger) Option {
	return func(c *Controller) {
		c.log = log
	}
}

// NewController provisions one cluster per table; the cluster id is the
// position in tables.
func NewController(tables []*freqtable.Table, tunables *spsa.Tunables, opts ...Option) *Controller {
	c := &Controller{
		clusters: make([]*Cluster, 0, len(tables)),
		tunables: tunables,
		signs:    spsa.NewRandomSign(),
		log:      logr.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.sink == nil {
		c.sink = spsa.NewLogTraceSink(c.log.WithName("trace"), 0, 1)
	}

	for id, table := range tables {
		c.clusters = append(c.clusters, newCluster(id, table))
		c.log.V(4).Info("cluster provisioned", "cluster", id, "table", table.String(),
			"startFrequency", table.FrequencyOf(table.Midpoint()))
	}

	return c
}

// Decide runs one SPSA tick for clusterID and returns the frequency to
// request. clusterID must be one of the provisioned clusters.
func (c *Controller) Decide(clusterID int, load, currentFrequency uint) uint {
	if clusterID < 0 || clusterID >= len(c.clusters) {
		panic(fmt.Sprintf("governor: cluster %d is not provisioned (have %d)", clusterID, len(c.clusters)))
	}
	return c.decide(c.clusters[clusterID], load, currentFrequency)
}

// DecideCluster is Decide for callers already holding the cluster handle.
func (c *Controller) DecideCluster(cluster *Cluster, load, currentFrequency uint) uint {
	return c.decide(cluster, load, currentFrequency)
}

func (c *Controller) decide(cluster *Cluster, load, currentFrequency uint) uint {
	tr := cluster.step(load, currentFrequency, c.tunables.Snapshot(), c.signs)
	if c.tunables.Diagnostics() {
		c.sink.Trace(tr)
	}
	return tr.RequestedFrequency
}

// Cluster returns the handle of clusterID.
func (c *Controller) Cluster(clusterID int) (*Cluster, bool) {
	if clusterID < 0 || clusterID >= len(c.clusters) {
		return nil, false
	}
	return c.clusters[clusterID], true
}

func (c *Controller) Clusters() []*Cluster {
	out := make([]*Cluster, len(c.clusters))
	copy(out, c.clusters)
	return out
}

func (c *Controller) Tunables() *spsa.Tunables {
	return c.tunables
}

// Reset puts every cluster back to its table midpoint.
func (c *Controller) Reset() {
	for _, cluster := range c.clusters {
		cluster.reset()
	}
	c.log.V(4).Info("all clusters reset to table midpoint")
}
