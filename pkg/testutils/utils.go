package testutils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// ScriptedSign replays a fixed sequence of perturbation signs, wrapping
// around at the end. Safe for concurrent use.
type ScriptedSign struct {
	mu    sync.Mutex
	signs []int
	next  int
}

func NewScriptedSign(signs ...int) *ScriptedSign {
	if len(signs) == 0 {
		signs = []int{1}
	}
	return &ScriptedSign{signs: signs}
}

func (s *ScriptedSign) Sign() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	sign := s.signs[s.next%len(s.signs)]
	s.next++
	return sign
}

// Recorder collects everything passed to its Trace method. Instantiated with
// the trace type it satisfies the governor's trace sink interface.
type Recorder[T any] struct {
	mu      sync.Mutex
	records []T
}

func (r *Recorder[T]) Trace(record T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, record)
}

func (r *Recorder[T]) Records() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]T, len(r.records))
	copy(out, r.records)
	return out
}

func (r *Recorder[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

// MockLoadSampler mocks the cluster load source of the scaling workers.
type MockLoadSampler struct {
	mock.Mock
}

func (m *MockLoadSampler) ClusterLoad(cpus []int) (uint, error) {
	args := m.Called(cpus)
	return args.Get(0).(uint), args.Error(1)
}

// MockFrequencyDriver mocks the cpufreq backend of the scaling workers.
type MockFrequencyDriver struct {
	mock.Mock
}

func (m *MockFrequencyDriver) CurrentFrequency(cpu int) (uint, error) {
	args := m.Called(cpu)
	return args.Get(0).(uint), args.Error(1)
}

func (m *MockFrequencyDriver) SetFrequency(cpu int, frequency uint) error {
	return m.Called(cpu, frequency).Error(0)
}

// SetupDummyFiles builds a fake /sys/devices/system/cpu tree with cpus
// entries under a temporary directory and returns its root. Recognised
// cpufiles keys: "governor", "cur_freq", "setspeed", "capacity".
func SetupDummyFiles(t *testing.T, cpus int, cpufiles map[string]string) string {
	root := filepath.Join(t.TempDir(), "cpus")

	for i := 0; i < cpus; i++ {
		cpudir := filepath.Join(root, "cpu"+fmt.Sprint(i))
		require.NoError(t, os.MkdirAll(filepath.Join(cpudir, "cpufreq"), os.ModePerm))

		for prop, value := range cpufiles {
			var file string
			switch prop {
			case "governor":
				file = filepath.Join(cpudir, "cpufreq", "scaling_governor")
			case "cur_freq":
				file = filepath.Join(cpudir, "cpufreq", "scaling_cur_freq")
			case "setspeed":
				file = filepath.Join(cpudir, "cpufreq", "scaling_setspeed")
			case "capacity":
				file = filepath.Join(cpudir, "cpu_capacity")
			default:
				require.Failf(t, "unexpected dummy file", "property %q", prop)
			}
			require.NoError(t, os.WriteFile(file, []byte(value+"\n"), 0644))
		}
	}

	return root
}

// CPUTimes is one /proc/stat cpu line in USER_HZ ticks.
type CPUTimes struct {
	User, Nice, System, Idle, Iowait, IRQ, SoftIRQ uint64
}

// WriteProcStat writes a minimal /proc/stat under dir/proc and returns the
// proc mount point. Calling it again overwrites the previous sample.
func WriteProcStat(t *testing.T, dir string, cpus []CPUTimes) string {
	procDir := filepath.Join(dir, "proc")
	require.NoError(t, os.MkdirAll(procDir, os.ModePerm))

	var total CPUTimes
	lines := make([]string, 0, len(cpus)+1)
	for i, c := range cpus {
		total.User += c.User
		total.Nice += c.Nice
		total.System += c.System
		total.Idle += c.Idle
		total.Iowait += c.Iowait
		total.IRQ += c.IRQ
		total.SoftIRQ += c.SoftIRQ
		lines = append(lines, formatCPULine(fmt.Sprintf("cpu%d", i), c))
	}
	lines = append([]string{formatCPULine("cpu", total)}, lines...)
	lines = append(lines,
		"intr 0",
		"ctxt 0",
		"btime 1700000000",
		"processes 1",
		"procs_running 1",
		"procs_blocked 0",
		"softirq 0 0 0 0 0 0 0 0 0 0 0",
	)

	stat := strings.Join(lines, "\n") + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(procDir, "stat"), []byte(stat), 0644))

	return procDir
}

func formatCPULine(name string, c CPUTimes) string {
	return fmt.Sprintf("%s %d %d %d %d %d %d %d 0 0 0",
		name, c.User, c.Nice, c.System, c.Idle, c.Iowait, c.IRQ, c.SoftIRQ)
}
