package scaling

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	userspaceGovernor = "userspace"
	DefaultSysfsPath  = "/sys/devices/system/cpu"
)

func getCPUFreqPath(basePath string, cpu int, resource string) string {
	return filepath.Join(basePath, fmt.Sprintf("cpu%d", cpu), "cpufreq", resource)
}

// Func definitions for unit testing
var (
	getCPUFreqPathFunction = getCPUFreqPath
)

// sysfsFrequencyDriver talks to the cpufreq sysfs interface. Writes need the
// userspace governor on the policy.
type sysfsFrequencyDriver struct {
	basePath string
}

func NewSysfsFrequencyDriver(basePath string) FrequencyDriver {
	if basePath == "" {
		basePath = DefaultSysfsPath
	}
	return &sysfsFrequencyDriver{basePath: basePath}
}

func (d *sysfsFrequencyDriver) CurrentFrequency(cpu int) (uint, error) {
	return getCPUFrequency(d.basePath, cpu)
}

func (d *sysfsFrequencyDriver) SetFrequency(cpu int, frequency uint) error {
	return setCPUFrequency(d.basePath, cpu, frequency)
}

// get current governor
func getCurrentGovernor(basePath string, cpu int) (string, error) {
	governorPath := getCPUFreqPathFunction(basePath, cpu, "scaling_governor")

	currentGovernor, err := os.ReadFile(governorPath)
	if err != nil {
		return "", fmt.Errorf("failed to read current governor for cpu %d: %w", cpu, err)
	}
	return strings.TrimSpace(string(currentGovernor)), nil
}

func isUserspaceGovernor(basePath string, cpu int) (bool, error) {
	governor, err := getCurrentGovernor(basePath, cpu)
	if err != nil {
		return false, err
	}
	return governor == userspaceGovernor, nil
}

// setCPUFrequency requests frequency in kHz for the policy of cpu.
func setCPUFrequency(basePath string, cpu int, frequency uint) error {
	isUserspace, err := isUserspaceGovernor(basePath, cpu)
	if err != nil {
		return fmt.Errorf("failed to get userspace governor for CPU %d: %w", cpu, err)
	}

	if !isUserspace {
		return fmt.Errorf("userspace governor not set for CPU %d", cpu)
	}

	scalingSetspeedPath := getCPUFreqPathFunction(basePath, cpu, "scaling_setspeed")
	err = os.WriteFile(scalingSetspeedPath, []byte(strconv.FormatUint(uint64(frequency), 10)), 0644)
	if err != nil {
		return fmt.Errorf("failed to set frequency for CPU %d: %w", cpu, err)
	}

	return nil
}

// getCPUFrequency returns the CPU frequency in kHz for the specified CPU.
func getCPUFrequency(basePath string, cpu int) (uint, error) {
	scalingGetFreqPath := getCPUFreqPathFunction(basePath, cpu, "scaling_cur_freq")

	freqData, err := os.ReadFile(scalingGetFreqPath)
	if err != nil {
		return 0, fmt.Errorf("failed to read current frequency for CPU %d: %w", cpu, err)
	}

	freq, err := strconv.ParseUint(strings.TrimSpace(string(freqData)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to convert frequency for CPU %d to uint: %w", cpu, err)
	}

	return uint(freq), nil
}
