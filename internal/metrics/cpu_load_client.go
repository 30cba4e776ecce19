package metrics

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/go-logr/logr"
	"github.com/prometheus/procfs"

	"github.com/AMDEPYC/cpufreq-spsa/internal/governor"
)

const (
	DefaultProcfsPath = procfs.DefaultMountPoint
	DefaultSysfsPath  = "/sys/devices/system/cpu"

	cpuCapacityFile = "cpu_capacity"
)

// ErrLoadNotYetCalculated is returned for the first sample of a CPU, a load
// needs two /proc/stat readings.
var ErrLoadNotYetCalculated error = fmt.Errorf("not yet calculated CPU load: %w", ErrMetricMissing)

// Func definitions for unit testing
var (
	readCPUCapacityFunc = readCPUCapacity
)

// CPULoadClient turns /proc/stat busy time deltas into cluster load
// percentages. Each call to ClusterLoad measures the interval since the
// previous call for the same CPUs. Safe for concurrent use as long as
// clusters do not share CPUs.
type CPULoadClient struct {
	fs        procfs.FS
	sysfsPath string
	log       logr.Logger

	previous   sync.Map // cpu id -> procfs.CPUStat
	capacities sync.Map // cpu id -> uint64
}

// NewCPULoadClient reads /proc/stat under procfsPath and cpu_capacity files
// under sysfsPath.
func NewCPULoadClient(log logr.Logger, procfsPath, sysfsPath string) (*CPULoadClient, error) {
	fs, err := procfs.NewFS(procfsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open procfs at %s: %w", procfsPath, err)
	}

	client := &CPULoadClient{
		fs:        fs,
		sysfsPath: sysfsPath,
		log:       log,
	}
	client.log.V(4).Info("New CPULoadClient created", "procfs", procfsPath, "sysfs", sysfsPath)

	return client, nil
}

// ClusterLoad samples every CPU of a cluster and returns the load of its
// busiest CPU relative to the smallest capacity, as a percentage.
func (c *CPULoadClient) ClusterLoad(cpus []int) (uint, error) {
	utils, capacities, err := c.sample(cpus)
	if err != nil {
		return 0, err
	}

	return governor.ClusterLoad(utils, capacities)
}

// GetCPUUtilization returns the capacity scaled utilization of one CPU since
// its previous sample.
func (c *CPULoadClient) GetCPUUtilization(cpu int) (uint64, error) {
	utils, _, err := c.sample([]int{cpu})
	if err != nil {
		return 0, err
	}
	return utils[0], nil
}

func (c *CPULoadClient) sample(cpus []int) ([]uint64, []uint64, error) {
	if len(cpus) == 0 {
		return nil, nil, fmt.Errorf("no CPUs to sample: %w", ErrMetricMissing)
	}

	stat, err := c.fs.Stat()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read CPU statistics: %w", err)
	}

	utils := make([]uint64, len(cpus))
	capacities := make([]uint64, len(cpus))
	var notYetCalculated bool
	for i, cpu := range cpus {
		logger := c.log.WithValues(cpuLogKey, cpu)

		current, ok := stat.CPU[int64(cpu)]
		if !ok {
			logger.V(5).Info(fmt.Sprintf("CPU not present in /proc/stat, err: %v", ErrMetricMissing))
			return nil, nil, fmt.Errorf("cpu %d: %w", cpu, ErrMetricMissing)
		}
		capacities[i] = c.getCPUCapacity(cpu)

		prev, seen := c.previous.Swap(cpu, current)
		if !seen {
			notYetCalculated = true
			continue
		}
		utils[i] = utilization(prev.(procfs.CPUStat), current, capacities[i])
	}
	if notYetCalculated {
		return nil, nil, ErrLoadNotYetCalculated
	}

	return utils, capacities, nil
}

func (c *CPULoadClient) getCPUCapacity(cpu int) uint64 {
	if capacity, ok := c.capacities.Load(cpu); ok {
		return capacity.(uint64)
	}

	capacity, err := readCPUCapacityFunc(c.sysfsPath, cpu)
	if err != nil {
		c.log.V(5).Info(fmt.Sprintf("using default capacity, err: %v", err), cpuLogKey, cpu)
		capacity = defaultCPUCapacity
	}
	c.capacities.Store(cpu, capacity)

	return capacity
}

// utilization scales the busy share of the interval by capacity. Counter
// resets or an empty interval count as idle.
func utilization(prev, current procfs.CPUStat, capacity uint64) uint64 {
	busy := busyTime(current) - busyTime(prev)
	total := busy + idleTime(current) - idleTime(prev)
	if busy <= 0 || total <= 0 {
		return 0
	}

	return uint64(math.Round(float64(capacity) * busy / total))
}

func busyTime(s procfs.CPUStat) float64 {
	return s.User + s.Nice + s.System + s.IRQ + s.SoftIRQ + s.Steal
}

func idleTime(s procfs.CPUStat) float64 {
	return s.Idle + s.Iowait
}

func readCPUCapacity(sysfsPath string, cpu int) (uint64, error) {
	path := filepath.Join(sysfsPath, fmt.Sprintf("cpu%d", cpu), cpuCapacityFile)

	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read capacity of CPU %d: %w", cpu, err)
	}
	capacity, err := strconv.ParseUint(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to convert capacity of CPU %d to uint: %w", cpu, err)
	}
	if capacity == 0 {
		return 0, fmt.Errorf("zero capacity reported for CPU %d", cpu)
	}

	return capacity, nil
}
