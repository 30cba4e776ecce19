package freqtable

import (
	"errors"
	"fmt"

	"golang.org/x/exp/constraints"
)

var (
	ErrEmptyTable       = errors.New("frequency table is empty")
	ErrLengthMismatch   = errors.New("frequency and cost tables differ in length")
	ErrNotIncreasing    = errors.New("frequencies are not strictly increasing")
	ErrNonPositiveValue = errors.New("frequency table entries must be positive")
)

// Table is an immutable, index aligned list of achievable frequencies (kHz)
// and their relative energy cost. Safe for concurrent use.
type Table struct {
	frequencies []uint
	costs       []uint
}

// New validates and copies the given slices into a Table.
func New(frequencies, costs []uint) (*Table, error) {
	if len(frequencies) == 0 {
		return nil, ErrEmptyTable
	}
	if len(frequencies) != len(costs) {
		return nil, fmt.Errorf("%w: %d frequencies, %d costs", ErrLengthMismatch, len(frequencies), len(costs))
	}
	for i := range frequencies {
		if frequencies[i] == 0 || costs[i] == 0 {
			return nil, fmt.Errorf("%w: index %d", ErrNonPositiveValue, i)
		}
		if i > 0 && frequencies[i] <= frequencies[i-1] {
			return nil, fmt.Errorf("%w: %d after %d", ErrNotIncreasing, frequencies[i], frequencies[i-1])
		}
	}

	t := &Table{
		frequencies: make([]uint, len(frequencies)),
		costs:       make([]uint, len(costs)),
	}
	copy(t.frequencies, frequencies)
	copy(t.costs, costs)

	return t, nil
}

// MustNew is New for statically known tables.
func MustNew(frequencies, costs []uint) *Table {
	t, err := New(frequencies, costs)
	if err != nil {
		panic(err)
	}
	return t
}

func (t *Table) Len() int {
	return len(t.frequencies)
}

// Midpoint is the index every cluster starts from.
func (t *Table) Midpoint() int {
	return len(t.frequencies) / 2
}

func (t *Table) MaxIndex() int {
	return len(t.frequencies) - 1
}

// Clamp forces i into [0, Len()-1].
func (t *Table) Clamp(i int) int {
	return Clamp(i, 0, t.MaxIndex())
}

// IndexOf returns the index holding exactly freq.
func (t *Table) IndexOf(freq uint) (int, bool) {
	for i, f := range t.frequencies {
		if f == freq {
			return i, true
		}
	}
	return -1, false
}

// FrequencyOf returns the frequency at the clamped index i.
func (t *Table) FrequencyOf(i int) uint {
	return t.frequencies[t.Clamp(i)]
}

// CostOf returns the cost at the clamped index i.
func (t *Table) CostOf(i int) uint {
	return t.costs[t.Clamp(i)]
}

// Closest returns the index whose frequency has the smallest absolute
// distance to freq. On a tie the lower index wins.
func (t *Table) Closest(freq uint64) int {
	closest := 0
	for i, f := range t.frequencies {
		if absDiff(uint64(f), freq) < absDiff(uint64(t.frequencies[closest]), freq) {
			closest = i
		}
	}
	return closest
}

// Frequencies returns a copy of the frequency column.
func (t *Table) Frequencies() []uint {
	out := make([]uint, len(t.frequencies))
	copy(out, t.frequencies)
	return out
}

// Costs returns a copy of the cost column.
func (t *Table) Costs() []uint {
	out := make([]uint, len(t.costs))
	copy(out, t.costs)
	return out
}

func (t *Table) String() string {
	return fmt.Sprintf("Table{len: %d, min: %d kHz, max: %d kHz}",
		t.Len(), t.frequencies[0], t.frequencies[t.MaxIndex()])
}

// Clamp bounds v to [lo, hi].
func Clamp[T constraints.Integer](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Abs is the absolute value of a signed integer.
func Abs[T constraints.Signed](v T) T {
	if v < 0 {
		return -v
	}
	return v
}

func absDiff(a, b uint64) uint64 {
	if a > b {
		return a - b
	}
	return b - a
}
