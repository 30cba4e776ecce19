package simulation

// LoadProfile returns the load a cluster reports on tick when it ran at
// frequency (kHz) during that tick.
type LoadProfile func(tick int, frequency uint) uint

// Constant reports the same load whatever the frequency.
func Constant(load uint) LoadProfile {
	return func(int, uint) uint {
		return load
	}
}

// Demand models a fixed amount of work per tick, expressed as load percent
// times kHz. Running slower raises the load, capped at 100.
func Demand(volume uint64) LoadProfile {
	return func(_ int, frequency uint) uint {
		if frequency == 0 {
			return 100
		}
		load := volume / uint64(frequency)
		if load > 100 {
			return 100
		}
		return uint(load)
	}
}

// Steps switches to the next profile at each boundary tick. boundaries must
// be ascending and one shorter than profiles.
func Steps(boundaries []int, profiles ...LoadProfile) LoadProfile {
	return func(tick int, frequency uint) uint {
		i := 0
		for i < len(boundaries) && tick >= boundaries[i] {
			i++
		}
		if i >= len(profiles) {
			i = len(profiles) - 1
		}
		return profiles[i](tick, frequency)
	}
}
