package spsa

import "github.com/AMDEPYC/cpufreq-spsa/internal/freqtable"

// Phase selects what the next Step does with a cluster.
type Phase uint8

const (
	// PhaseEstimate runs one single-shot SPSA update.
	PhaseEstimate Phase = iota
	// PhaseSettle is reserved for a split plus/minus estimator. It requests
	// the observed operating point and re-arms PhaseEstimate.
	PhaseSettle
)

// ClusterState is the per-cluster memory carried between ticks. It is not
// safe for concurrent use; the owner serializes Step calls.
type ClusterState struct {
	// CurrentIndex is the last chosen table index.
	CurrentIndex int
	Phase        Phase
	// RequestedFrequency is diagnostic only.
	RequestedFrequency uint

	// Reserved for load averaging, not consumed by Step.
	LoadSum   uint
	LoadCount uint
}

// NewClusterState starts a cluster at the midpoint of its table.
func NewClusterState(table *freqtable.Table) ClusterState {
	mid := table.Midpoint()
	return ClusterState{
		CurrentIndex:       mid,
		Phase:              PhaseEstimate,
		RequestedFrequency: table.FrequencyOf(mid),
	}
}
