package spsa

import "github.com/AMDEPYC/cpufreq-spsa/internal/freqtable"

// Step performs one single-shot SPSA update of state and returns the trace
// of the decision. The new index is stored in state.CurrentIndex and the
// matching frequency in state.RequestedFrequency.
//
// Step never fails: an unknown currentFrequency probes from index 0 and a
// stale state index is reseeded from the observed one. p must satisfy
// Params.Validate.
func Step(
	state *ClusterState,
	table *freqtable.Table,
	load, currentFrequency uint,
	p Params,
	signs SignSource,
) Trace {
	tr := Trace{
		Load:             load,
		TargetLoad:       p.TargetLoad,
		CurrentFrequency: currentFrequency,
		Phase:            state.Phase,
		Alpha:            p.Alpha,
		Beta:             p.Beta,
	}

	index, found := table.IndexOf(currentFrequency)
	if !found {
		index = 0
	}
	tr.FrequencyFound = found

	if state.CurrentIndex < 0 || state.CurrentIndex > table.MaxIndex() {
		state.CurrentIndex = index
	}
	tr.OldIndex = state.CurrentIndex

	newIndex := index
	if state.Phase == PhaseEstimate {
		newIndex = estimate(state.CurrentIndex, index, table, load, currentFrequency, p, signs, &tr)
	} else {
		state.Phase = PhaseEstimate
	}

	state.CurrentIndex = newIndex
	state.RequestedFrequency = table.FrequencyOf(newIndex)

	tr.NewIndex = newIndex
	tr.RequestedFrequency = state.RequestedFrequency

	return tr
}

func estimate(
	storedIndex, index int,
	table *freqtable.Table,
	load, currentFrequency uint,
	p Params,
	signs SignSource,
	tr *Trace,
) int {
	volume := uint64(currentFrequency) * uint64(load)
	delta := signs.Sign()

	plusIndex := table.Clamp(index + delta*p.Beta)
	minusIndex := table.Clamp(index - delta*p.Beta)

	plus := Evaluate(probeLoad(volume, table, plusIndex), plusIndex, table, p.TargetLoad)
	minus := Evaluate(probeLoad(volume, table, minusIndex), minusIndex, table, p.TargetLoad)

	difference := plus - minus
	// a single step comes from quantizing the distances, double it
	if freqtable.Abs(difference) == 1 {
		difference *= 2
	}
	// over target with a flat gradient: push upwards instead of stalling
	if load > p.TargetLoad && difference == 0 {
		difference = -2
		delta = 1
	}

	gradient := (p.Alpha * difference) / (2 * delta * p.Beta)

	tr.Delta = delta
	tr.PlusIndex = plusIndex
	tr.MinusIndex = minusIndex
	tr.PlusCost = plus
	tr.MinusCost = minus
	tr.Difference = difference
	tr.Gradient = gradient

	return table.Clamp(storedIndex - gradient)
}

// probeLoad is the load the measured work would produce at index i.
func probeLoad(volume uint64, table *freqtable.Table, i int) uint {
	return uint(volume / uint64(table.FrequencyOf(i)))
}
