package scaling

import "time"

// ClusterScalingOpts describe one frequency domain driven by a worker.
// CPUs[0] is the policy CPU used for cpufreq reads and writes.
type ClusterScalingOpts struct {
	ClusterID    int
	CPUs         []int
	SamplePeriod time.Duration
}

// LoadSampler measures the load of a cluster since its previous sample.
type LoadSampler interface {
	ClusterLoad(cpus []int) (uint, error)
}

// FrequencyDriver reads and requests CPU frequencies in kHz.
type FrequencyDriver interface {
	CurrentFrequency(cpu int) (uint, error)
	SetFrequency(cpu int, frequency uint) error
}

// Internal helper constants for logging
const (
	clusterLogKey = "cluster"
	cpuLogKey     = "cpu"
)
