package spsa

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AMDEPYC/cpufreq-spsa/internal/freqtable"
	"github.com/AMDEPYC/cpufreq-spsa/pkg/testutils"
)

func TestStep(t *testing.T) {
	little := freqtable.Little()
	big := freqtable.Big()

	tcases := []struct {
		testCase         string
		table            *freqtable.Table
		storedIndex      int
		load             uint
		currentFrequency uint
		params           Params
		sign             int
		expectedIndex    int
		expectedGradient int
	}{
		{
			testCase:         "Test Case 1 - load at target holds the midpoint",
			table:            little,
			storedIndex:      6,
			load:             70,
			currentFrequency: 962000,
			params:           DefaultParams(),
			sign:             1,
			expectedIndex:    6,
			expectedGradient: 0,
		},
		{
			testCase:         "Test Case 2 - load at target holds the midpoint, negative delta",
			table:            little,
			storedIndex:      6,
			load:             70,
			currentFrequency: 962000,
			params:           DefaultParams(),
			sign:             -1,
			expectedIndex:    6,
			expectedGradient: 0,
		},
		{
			testCase:         "Test Case 3 - low load steps down",
			table:            little,
			storedIndex:      6,
			load:             10,
			currentFrequency: 962000,
			params:           DefaultParams(),
			sign:             1,
			expectedIndex:    4,
			expectedGradient: 2,
		},
		{
			testCase:         "Test Case 4 - low load steps down, negative delta",
			table:            little,
			storedIndex:      6,
			load:             10,
			currentFrequency: 962000,
			params:           DefaultParams(),
			sign:             -1,
			expectedIndex:    4,
			expectedGradient: 2,
		},
		{
			testCase:         "Test Case 5 - high load steps up",
			table:            little,
			storedIndex:      6,
			load:             90,
			currentFrequency: 962000,
			params:           DefaultParams(),
			sign:             1,
			expectedIndex:    9,
			expectedGradient: -3,
		},
		{
			testCase:         "Test Case 6 - saturated big cluster",
			table:            big,
			storedIndex:      10,
			load:             100,
			currentFrequency: 1560000,
			params:           DefaultParams(),
			sign:             -1,
			expectedIndex:    13,
			expectedGradient: -3,
		},
		{
			testCase:         "Test Case 7 - gradient applies to the stored index",
			table:            little,
			storedIndex:      2,
			load:             10,
			currentFrequency: 1170000,
			params:           DefaultParams(),
			sign:             1,
			expectedIndex:    0,
			expectedGradient: 2,
		},
		{
			testCase:         "Test Case 8 - larger alpha and beta",
			table:            little,
			storedIndex:      6,
			load:             10,
			currentFrequency: 962000,
			params:           Params{Alpha: 5, Beta: 2, TargetLoad: 70},
			sign:             -1,
			expectedIndex:    1,
			expectedGradient: 5,
		},
		{
			testCase:         "Test Case 9 - alpha 1 with a doubled single step",
			table:            little,
			storedIndex:      6,
			load:             10,
			currentFrequency: 962000,
			params:           Params{Alpha: 1, Beta: 1, TargetLoad: 70},
			sign:             1,
			expectedIndex:    5,
			expectedGradient: 1,
		},
		{
			testCase:         "Test Case 10 - alpha 0 freezes the index",
			table:            little,
			storedIndex:      6,
			load:             10,
			currentFrequency: 962000,
			params:           Params{Alpha: 0, Beta: 1, TargetLoad: 70},
			sign:             1,
			expectedIndex:    6,
			expectedGradient: 0,
		},
	}

	for _, tc := range tcases {
		t.Log(tc.testCase)

		state := ClusterState{CurrentIndex: tc.storedIndex}
		tr := Step(&state, tc.table, tc.load, tc.currentFrequency, tc.params, testutils.NewScriptedSign(tc.sign))

		assert.Equal(t, tc.expectedIndex, tr.NewIndex)
		assert.Equal(t, tc.expectedGradient, tr.Gradient)
		assert.Equal(t, tc.storedIndex, tr.OldIndex)
		assert.True(t, tr.FrequencyFound)
		assert.Equal(t, tc.expectedIndex, state.CurrentIndex)
		assert.Equal(t, tc.table.FrequencyOf(tc.expectedIndex), state.RequestedFrequency)
		assert.Equal(t, state.RequestedFrequency, tr.RequestedFrequency)
	}
}

func TestStepScenarioA(t *testing.T) {
	little := freqtable.Little()
	p := Params{Alpha: 2, Beta: 1, TargetLoad: 70}

	for _, sign := range []int{1, -1} {
		state := NewClusterState(little)
		require.Equal(t, 6, state.CurrentIndex)

		tr := Step(&state, little, 70, 962000, p, testutils.NewScriptedSign(sign))

		_, member := little.IndexOf(tr.RequestedFrequency)
		assert.True(t, member)
		assert.LessOrEqual(t, freqtable.Abs(tr.NewIndex-tr.OldIndex), p.Alpha)
		assert.Equal(t, 1, tr.PlusCost)
		assert.Equal(t, 1, tr.MinusCost)
	}
}

func TestStepProbesAroundObservedIndex(t *testing.T) {
	little := freqtable.Little()
	state := ClusterState{CurrentIndex: 2}

	tr := Step(&state, little, 10, 1170000, DefaultParams(), testutils.NewScriptedSign(-1))

	assert.Equal(t, 7, tr.PlusIndex)
	assert.Equal(t, 9, tr.MinusIndex)
	assert.Equal(t, -1, tr.Delta)
}

func TestStepUnknownFrequency(t *testing.T) {
	little := freqtable.Little()

	for _, tc := range []struct {
		sign          int
		expectedPlus  int
		expectedMinus int
	}{
		{sign: 1, expectedPlus: 1, expectedMinus: 0},
		{sign: -1, expectedPlus: 0, expectedMinus: 1},
	} {
		state := NewClusterState(little)
		tr := Step(&state, little, 70, 123, DefaultParams(), testutils.NewScriptedSign(tc.sign))

		assert.False(t, tr.FrequencyFound)
		assert.Equal(t, tc.expectedPlus, tr.PlusIndex)
		assert.Equal(t, tc.expectedMinus, tr.MinusIndex)
		assert.Equal(t, 4, tr.NewIndex)
		assert.Equal(t, uint(754000), state.RequestedFrequency)
	}
}

func TestStepUnknownFrequencyWithStaleState(t *testing.T) {
	little := freqtable.Little()
	state := ClusterState{CurrentIndex: 42}

	tr := Step(&state, little, 70, 1, DefaultParams(), testutils.NewScriptedSign(1))

	assert.False(t, tr.FrequencyFound)
	assert.Equal(t, 0, tr.OldIndex)
	assert.GreaterOrEqual(t, tr.NewIndex, 0)
	assert.LessOrEqual(t, tr.NewIndex, little.MaxIndex())
}

func TestStepReseedsStaleIndex(t *testing.T) {
	little := freqtable.Little()

	for _, tc := range []struct {
		stored        int
		load          uint
		expectedIndex int
	}{
		{stored: -1, load: 70, expectedIndex: 3},
		{stored: 99, load: 10, expectedIndex: 1},
	} {
		state := ClusterState{CurrentIndex: tc.stored}
		tr := Step(&state, little, tc.load, 650000, DefaultParams(), testutils.NewScriptedSign(1))

		assert.Equal(t, 3, tr.OldIndex)
		assert.Equal(t, tc.expectedIndex, tr.NewIndex)
	}
}

func TestStepHugeBeta(t *testing.T) {
	little := freqtable.Little()

	for _, load := range []uint{10, 70, 90, 100} {
		for _, sign := range []int{1, -1} {
			state := NewClusterState(little)
			p := Params{Alpha: 2, Beta: 50, TargetLoad: 70}

			tr := Step(&state, little, load, 962000, p, testutils.NewScriptedSign(sign))

			assert.Contains(t, []int{0, 12}, tr.PlusIndex)
			assert.Contains(t, []int{0, 12}, tr.MinusIndex)
			assert.NotEqual(t, tr.PlusIndex, tr.MinusIndex)
			assert.GreaterOrEqual(t, tr.NewIndex, 0)
			assert.LessOrEqual(t, tr.NewIndex, little.MaxIndex())
		}
	}
}

func TestStepBreaksFlatGradientOverTarget(t *testing.T) {
	little := freqtable.Little()
	state := ClusterState{CurrentIndex: 4}

	tr := Step(&state, little, 71, 754000, DefaultParams(), testutils.NewScriptedSign(-1))

	assert.Equal(t, tr.PlusCost, tr.MinusCost)
	assert.Equal(t, -2, tr.Difference)
	assert.Equal(t, 1, tr.Delta)
	assert.Equal(t, -2, tr.Gradient)
	assert.Equal(t, 6, tr.NewIndex)
}

func TestStepSettlePhase(t *testing.T) {
	little := freqtable.Little()
	state := ClusterState{CurrentIndex: 2, Phase: PhaseSettle}
	signs := testutils.NewScriptedSign(1)

	tr := Step(&state, little, 10, 1170000, DefaultParams(), signs)

	assert.Equal(t, PhaseSettle, tr.Phase)
	assert.Equal(t, 8, tr.NewIndex)
	assert.Equal(t, PhaseEstimate, state.Phase)
	assert.Equal(t, uint(1170000), state.RequestedFrequency)

	tr = Step(&state, little, 10, 1170000, DefaultParams(), signs)
	assert.Equal(t, PhaseEstimate, tr.Phase)
	assert.Equal(t, 6, tr.NewIndex)
}

func TestStepDoesNotAllocate(t *testing.T) {
	little := freqtable.Little()
	state := NewClusterState(little)
	signs := NewRandomSign()
	p := DefaultParams()

	allocs := testing.AllocsPerRun(100, func() {
		Step(&state, little, 55, little.FrequencyOf(state.CurrentIndex), p, signs)
	})
	assert.Zero(t, allocs)
}

func TestNewClusterState(t *testing.T) {
	big := freqtable.Big()
	state := NewClusterState(big)

	assert.Equal(t, 10, state.CurrentIndex)
	assert.Equal(t, PhaseEstimate, state.Phase)
	assert.Equal(t, uint(1560000), state.RequestedFrequency)
	assert.Zero(t, state.LoadSum)
	assert.Zero(t, state.LoadCount)
}

func TestRandomSign(t *testing.T) {
	signs := NewRandomSign()
	seen := map[int]int{}

	for i := 0; i < 1000; i++ {
		seen[signs.Sign()]++
	}

	assert.Len(t, seen, 2)
	assert.Greater(t, seen[1], 0)
	assert.Greater(t, seen[-1], 0)
}
