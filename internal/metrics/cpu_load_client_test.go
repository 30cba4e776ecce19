package metrics

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"

	"github.com/AMDEPYC/cpufreq-spsa/pkg/testutils"
)

func setupLogger() {
	log.SetLogger(zap.New(zap.UseDevMode(true), func(opts *zap.Options) {
		opts.TimeEncoder = zapcore.ISO8601TimeEncoder
	}))
}

func TestCPULoadClient_ClusterLoad(t *testing.T) {
	setupLogger()
	tcases := []struct {
		testCase string
		capacity string
		first    []testutils.CPUTimes
		second   []testutils.CPUTimes
		cpus     []int
		expected uint
	}{
		{
			testCase: "Test Case 1 - single CPU with capacity file",
			capacity: "1000",
			first:    []testutils.CPUTimes{{User: 100, Idle: 100}},
			second:   []testutils.CPUTimes{{User: 160, Idle: 140}},
			cpus:     []int{0},
			expected: 60,
		},
		{
			testCase: "Test Case 2 - default capacity",
			first:    []testutils.CPUTimes{{User: 100, Idle: 100}},
			second:   []testutils.CPUTimes{{User: 125, System: 25, Idle: 150}},
			cpus:     []int{0},
			expected: 50,
		},
		{
			testCase: "Test Case 3 - busiest CPU of the cluster wins",
			capacity: "1000",
			first: []testutils.CPUTimes{
				{User: 100, Idle: 100},
				{User: 100, Idle: 100},
			},
			second: []testutils.CPUTimes{
				{User: 120, Idle: 180},
				{User: 160, IRQ: 10, SoftIRQ: 10, Idle: 120},
			},
			cpus:     []int{0, 1},
			expected: 80,
		},
		{
			testCase: "Test Case 4 - iowait counts as idle",
			capacity: "1024",
			first:    []testutils.CPUTimes{{User: 100, Idle: 100}},
			second:   []testutils.CPUTimes{{User: 125, Idle: 150, Iowait: 25}},
			cpus:     []int{0},
			expected: 25,
		},
		{
			testCase: "Test Case 5 - no time elapsed",
			capacity: "1024",
			first:    []testutils.CPUTimes{{User: 100, Idle: 100}},
			second:   []testutils.CPUTimes{{User: 100, Idle: 100}},
			cpus:     []int{0},
			expected: 0,
		},
	}

	for _, tc := range tcases {
		t.Log(tc.testCase)
		dir := t.TempDir()
		files := map[string]string{}
		if tc.capacity != "" {
			files["capacity"] = tc.capacity
		}
		sysfs := testutils.SetupDummyFiles(t, len(tc.first), files)
		procfsPath := testutils.WriteProcStat(t, dir, tc.first)

		client, err := NewCPULoadClient(ctrl.Log.WithName("testing"), procfsPath, sysfs)
		require.NoError(t, err)

		_, err = client.ClusterLoad(tc.cpus)
		assert.ErrorIs(t, err, ErrLoadNotYetCalculated)
		assert.ErrorIs(t, err, ErrMetricMissing)

		testutils.WriteProcStat(t, dir, tc.second)
		load, err := client.ClusterLoad(tc.cpus)
		assert.NoError(t, err)
		assert.Equal(t, tc.expected, load)
	}
}

func TestCPULoadClient_Errors(t *testing.T) {
	setupLogger()
	dir := t.TempDir()
	procfsPath := testutils.WriteProcStat(t, dir, []testutils.CPUTimes{{User: 1, Idle: 1}})
	sysfs := testutils.SetupDummyFiles(t, 1, nil)

	client, err := NewCPULoadClient(ctrl.Log.WithName("testing"), procfsPath, sysfs)
	require.NoError(t, err)

	_, err = client.ClusterLoad(nil)
	assert.ErrorIs(t, err, ErrMetricMissing)

	_, err = client.ClusterLoad([]int{0, 5})
	assert.ErrorIs(t, err, ErrMetricMissing)
	assert.NotErrorIs(t, err, ErrLoadNotYetCalculated)

	_, err = NewCPULoadClient(ctrl.Log.WithName("testing"), dir+"/missing", sysfs)
	assert.Error(t, err)
}

func TestCPULoadClient_GetCPUUtilization(t *testing.T) {
	setupLogger()
	origFunc := readCPUCapacityFunc
	defer func() {
		readCPUCapacityFunc = origFunc
	}()
	reads := 0
	readCPUCapacityFunc = func(_ string, cpu int) (uint64, error) {
		reads++
		if cpu == 1 {
			return 0, errors.New("no capacity")
		}
		return 512, nil
	}

	dir := t.TempDir()
	procfsPath := testutils.WriteProcStat(t, dir, []testutils.CPUTimes{
		{User: 100, Idle: 100},
		{User: 100, Idle: 100},
	})
	client, err := NewCPULoadClient(ctrl.Log.WithName("testing"), procfsPath, "")
	require.NoError(t, err)

	_, err = client.GetCPUUtilization(0)
	assert.ErrorIs(t, err, ErrLoadNotYetCalculated)
	_, err = client.GetCPUUtilization(1)
	assert.ErrorIs(t, err, ErrLoadNotYetCalculated)

	testutils.WriteProcStat(t, dir, []testutils.CPUTimes{
		{User: 150, Idle: 150},
		{User: 175, Idle: 125},
	})
	util, err := client.GetCPUUtilization(0)
	assert.NoError(t, err)
	assert.Equal(t, uint64(256), util)

	util, err = client.GetCPUUtilization(1)
	assert.NoError(t, err)
	assert.Equal(t, uint64(768), util)

	// capacities are cached after the first lookup
	assert.Equal(t, 2, reads)
}

func TestReadCPUCapacity(t *testing.T) {
	tcases := []struct {
		testCase  string
		value     string
		expected  uint64
		expectErr bool
	}{
		{testCase: "Test Case 1 - valid capacity", value: "446", expected: 446},
		{testCase: "Test Case 2 - zero capacity", value: "0", expectErr: true},
		{testCase: "Test Case 3 - garbage", value: "big", expectErr: true},
	}
	for _, tc := range tcases {
		t.Log(tc.testCase)
		sysfs := testutils.SetupDummyFiles(t, 1, map[string]string{"capacity": tc.value})
		capacity, err := readCPUCapacity(sysfs, 0)
		if tc.expectErr {
			assert.Error(t, err)
			continue
		}
		assert.NoError(t, err)
		assert.Equal(t, tc.expected, capacity)
	}

	_, err := readCPUCapacity(t.TempDir(), 3)
	assert.Error(t, err)
}
