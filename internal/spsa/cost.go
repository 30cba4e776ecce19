package spsa

import "github.com/AMDEPYC/cpufreq-spsa/internal/freqtable"

// saturatedLoad is the load at which the over target branch asks for one
// extra step of headroom.
const saturatedLoad = 100

// Evaluate scores how many table steps candidate is away from the operating
// point this load asks for. Under target the cheapest index that keeps the
// projected load at or below target is ideal; over target it is the index
// closest to the frequency that would bring the load back to target.
// The result is always within [0, table.Len()-1].
func Evaluate(load uint, candidate int, table *freqtable.Table, targetLoad uint) int {
	candidate = table.Clamp(candidate)
	volume := uint64(table.FrequencyOf(candidate)) * uint64(load)

	var ideal int
	if load <= targetLoad {
		ideal = cheapestUnderTarget(volume, table, targetLoad)
	} else {
		ideal = table.Closest(volume / uint64(targetLoad))
		if load >= saturatedLoad && ideal < table.Len()-2 {
			ideal++
		}
	}

	return freqtable.Abs(candidate - ideal)
}

// cheapestUnderTarget scans in ascending order and keeps the first strictly
// cheaper entry, starting from the top of the table.
func cheapestUnderTarget(volume uint64, table *freqtable.Table, targetLoad uint) int {
	best := table.MaxIndex()
	for i := 0; i < table.Len(); i++ {
		projected := volume / uint64(table.FrequencyOf(i))
		if projected <= uint64(targetLoad) && table.CostOf(i) < table.CostOf(best) {
			best = i
		}
	}
	return best
}
