package spsa

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/AMDEPYC/cpufreq-spsa/internal/freqtable"
)

func evaluateAll(load uint, table *freqtable.Table, targetLoad uint) []int {
	out := make([]int, table.Len())
	for i := range out {
		out[i] = Evaluate(load, i, table, targetLoad)
	}
	return out
}

func TestEvaluate(t *testing.T) {
	little := freqtable.Little()
	big := freqtable.Big()

	tcases := []struct {
		testCase string
		table    *freqtable.Table
		load     uint
		expected []int
	}{
		{
			testCase: "Test Case 1 - load at target keeps every candidate in place",
			table:    little,
			load:     70,
			expected: []int{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
		},
		{
			testCase: "Test Case 2 - low load points at the cheapest entry",
			table:    little,
			load:     10,
			expected: []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12},
		},
		{
			testCase: "Test Case 3 - idle load behaves like low load",
			table:    little,
			load:     0,
			expected: []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12},
		},
		{
			testCase: "Test Case 4 - slightly over target",
			table:    little,
			load:     80,
			expected: []int{0, 1, 1, 1, 1, 1, 1, 1, 2, 2, 2, 1, 0},
		},
		{
			testCase: "Test Case 5 - saturated little cluster",
			table:    little,
			load:     100,
			expected: []int{2, 3, 3, 4, 4, 5, 5, 4, 4, 3, 2, 1, 0},
		},
		{
			testCase: "Test Case 6 - big cluster under target",
			table:    big,
			load:     50,
			expected: []int{0, 1, 2, 2, 2, 2, 3, 3, 3, 4, 4, 4, 5, 5, 5, 5, 6, 6, 6, 7, 7},
		},
		{
			testCase: "Test Case 7 - big cluster just below saturation",
			table:    big,
			load:     99,
			expected: []int{2, 2, 3, 3, 4, 4, 5, 5, 5, 6, 6, 7, 7, 7, 6, 5, 4, 3, 2, 1, 0},
		},
		{
			testCase: "Test Case 8 - saturated big cluster gets one step of headroom",
			table:    big,
			load:     100,
			expected: []int{3, 4, 4, 4, 5, 5, 6, 6, 7, 7, 7, 8, 7, 7, 6, 5, 4, 3, 2, 1, 0},
		},
	}

	for _, tc := range tcases {
		t.Log(tc.testCase)
		assert.Equal(t, tc.expected, evaluateAll(tc.load, tc.table, 70))
	}
}

func TestEvaluateSaturationBump(t *testing.T) {
	big := freqtable.Big()

	// 1560000 * 100 / 70 = 2228571 kHz is closest to index 16; saturation
	// bumps the ideal index to 17.
	assert.Equal(t, 16, big.Closest(uint64(big.FrequencyOf(10))*100/70))
	assert.Equal(t, 7, Evaluate(100, 10, big, 70))

	// the ideal index is already within the top two entries: no bump
	assert.Equal(t, 20, big.Closest(uint64(big.FrequencyOf(19))*100/70))
	assert.Equal(t, 1, Evaluate(100, 19, big, 70))
	assert.Equal(t, 2, Evaluate(100, 18, big, 70))
}

func TestEvaluateClampsCandidate(t *testing.T) {
	little := freqtable.Little()

	assert.Equal(t, Evaluate(10, 0, little, 70), Evaluate(10, -5, little, 70))
	assert.Equal(t, Evaluate(10, 12, little, 70), Evaluate(10, 40, little, 70))
}

func TestEvaluateCostTieKeepsLowestIndex(t *testing.T) {
	table := freqtable.MustNew([]uint{100, 200, 300, 400}, []uint{5, 2, 2, 9})

	// indices 1 and 2 share the lowest cost, the first one wins
	assert.Equal(t, 1, Evaluate(50, 0, table, 70))
	assert.Equal(t, 1, Evaluate(50, 2, table, 70))
}

func TestEvaluateDefaultsToTopIndex(t *testing.T) {
	// costs fall with frequency, the last entry is cheapest and also the default
	table := freqtable.MustNew([]uint{100, 200, 300}, []uint{9, 5, 1})

	assert.Equal(t, 2, Evaluate(10, 0, table, 70))
	assert.Equal(t, 0, Evaluate(10, 2, table, 70))
}

func TestEvaluateRange(t *testing.T) {
	for _, table := range freqtable.Builtin() {
		for target := uint(1); target <= MaxTargetLoad; target += 9 {
			for load := uint(0); load <= 150; load++ {
				for candidate := -2; candidate < table.Len()+2; candidate++ {
					d := Evaluate(load, candidate, table, target)
					if d < 0 || d > table.MaxIndex() {
						t.Fatalf("distance %d out of range for load %d, candidate %d, target %d",
							d, load, candidate, target)
					}
				}
			}
		}
	}
}
