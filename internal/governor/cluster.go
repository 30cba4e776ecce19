package governor

import (
	"sync"

	"go.uber.org/atomic"

	"github.com/AMDEPYC/cpufreq-spsa/internal/freqtable"
	"github.com/AMDEPYC/cpufreq-spsa/internal/spsa"
)

// Cluster is the handle of one frequency domain: its immutable table and the
// SPSA state that every CPU of the domain shares.
type Cluster struct {
	id    int
	table *freqtable.Table

	mu    sync.Mutex
	state spsa.ClusterState

	decisions        atomic.Uint64
	unknownFrequency atomic.Uint64
}

func newCluster(id int, table *freqtable.Table) *Cluster {
	return &Cluster{
		id:    id,
		table: table,
		state: spsa.NewClusterState(table),
	}
}

func (c *Cluster) ID() int {
	return c.id
}

func (c *Cluster) Table() *freqtable.Table {
	return c.table
}

// State returns a copy of the cluster state.
func (c *Cluster) State() spsa.ClusterState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Decisions is the number of completed ticks.
func (c *Cluster) Decisions() uint64 {
	return c.decisions.Load()
}

// UnknownFrequencies counts ticks whose current frequency was not in the table.
func (c *Cluster) UnknownFrequencies() uint64 {
	return c.unknownFrequency.Load()
}

// step serializes Step against other CPUs of the same cluster.
func (c *Cluster) step(load, currentFrequency uint, p spsa.Params, signs spsa.SignSource) spsa.Trace {
	c.mu.Lock()
	tr := spsa.Step(&c.state, c.table, load, currentFrequency, p, signs)
	c.mu.Unlock()

	tr.ClusterID = c.id
	c.decisions.Inc()
	if !tr.FrequencyFound {
		c.unknownFrequency.Inc()
	}

	return tr
}

func (c *Cluster) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = spsa.NewClusterState(c.table)
}
