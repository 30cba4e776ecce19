package simulation

import (
	"errors"
	"fmt"
	"slices"

	"github.com/go-logr/logr"
	"github.com/montanaflynn/stats"

	"github.com/AMDEPYC/cpufreq-spsa/internal/governor"
)

var (
	ErrUnknownCluster = errors.New("cluster is not provisioned")
	ErrNoTicks        = errors.New("simulation needs at least one tick")
	ErrNoProfile      = errors.New("simulation needs a load profile")
)

type Options struct {
	ClusterID int
	Ticks     int
	// StartFrequency is the frequency the cluster runs at before the first
	// decision. Zero means the frequency of the current cluster state.
	StartFrequency uint
	Profile        LoadProfile
}

// Result holds one entry per tick: the load observed and the decision taken.
type Result struct {
	ClusterID   int
	Loads       []uint
	Indices     []int
	Frequencies []uint
	Summary     Summary
}

type Summary struct {
	Ticks            int
	MeanIndex        float64
	StdDevIndex      float64
	MinIndex         int
	MaxIndex         int
	FinalIndex       int
	MeanLoad         float64
	P90Load          float64
	FrequencyChanges int
	// TimeAtIndex is the share of ticks spent at each visited index.
	TimeAtIndex map[int]float64
}

// Run closes the loop around the controller: every tick the profile turns
// the previously requested frequency into a load, which is fed back to the
// controller.
func Run(controller *governor.Controller, opts Options, logger logr.Logger) (*Result, error) {
	cluster, found := controller.Cluster(opts.ClusterID)
	if !found {
		return nil, fmt.Errorf("%w: %d", ErrUnknownCluster, opts.ClusterID)
	}
	if opts.Ticks <= 0 {
		return nil, ErrNoTicks
	}
	if opts.Profile == nil {
		return nil, ErrNoProfile
	}

	frequency := opts.StartFrequency
	if frequency == 0 {
		frequency = cluster.State().RequestedFrequency
	}

	result := &Result{
		ClusterID:   opts.ClusterID,
		Loads:       make([]uint, 0, opts.Ticks),
		Indices:     make([]int, 0, opts.Ticks),
		Frequencies: make([]uint, 0, opts.Ticks),
	}
	changes := 0
	for tick := 0; tick < opts.Ticks; tick++ {
		load := opts.Profile(tick, frequency)
		next := controller.DecideCluster(cluster, load, frequency)
		if next != frequency {
			changes++
		}

		result.Loads = append(result.Loads, load)
		result.Indices = append(result.Indices, cluster.State().CurrentIndex)
		result.Frequencies = append(result.Frequencies, next)
		frequency = next
	}

	summary, err := summarize(result.Indices, result.Loads)
	if err != nil {
		return nil, err
	}
	summary.FrequencyChanges = changes
	result.Summary = summary
	logger.V(4).Info("simulation finished", "cluster", opts.ClusterID, "ticks", opts.Ticks,
		"meanIndex", summary.MeanIndex, "finalIndex", summary.FinalIndex)

	return result, nil
}

func summarize(indices []int, loads []uint) (Summary, error) {
	indexData := stats.LoadRawData(indices)
	loadData := stats.LoadRawData(loads)

	meanIndex, err := indexData.Mean()
	if err != nil {
		return Summary{}, fmt.Errorf("failed to compute mean index: %w", err)
	}
	stdDevIndex, err := indexData.StandardDeviation()
	if err != nil {
		return Summary{}, fmt.Errorf("failed to compute index deviation: %w", err)
	}
	minIndex, err := indexData.Min()
	if err != nil {
		return Summary{}, fmt.Errorf("failed to compute min index: %w", err)
	}
	maxIndex, err := indexData.Max()
	if err != nil {
		return Summary{}, fmt.Errorf("failed to compute max index: %w", err)
	}
	meanLoad, err := loadData.Mean()
	if err != nil {
		return Summary{}, fmt.Errorf("failed to compute mean load: %w", err)
	}
	p90Load, err := loadData.Percentile(90)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to compute p90 load: %w", err)
	}

	timeAt := make(map[int]float64)
	for _, index := range indices {
		timeAt[index]++
	}
	for index := range timeAt {
		timeAt[index] /= float64(len(indices))
	}

	return Summary{
		Ticks:       len(indices),
		MeanIndex:   meanIndex,
		StdDevIndex: stdDevIndex,
		MinIndex:    int(minIndex),
		MaxIndex:    int(maxIndex),
		FinalIndex:  indices[len(indices)-1],
		MeanLoad:    meanLoad,
		P90Load:     p90Load,
		TimeAtIndex: timeAt,
	}, nil
}

// VisitedIndices returns the indices with a non-zero share, ascending.
func (s Summary) VisitedIndices() []int {
	visited := make([]int, 0, len(s.TimeAtIndex))
	for index := range s.TimeAtIndex {
		visited = append(visited, index)
	}
	slices.Sort(visited)
	return visited
}
