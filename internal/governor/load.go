package governor

import (
	"errors"
	"fmt"
)

var ErrInvalidLoadSample = errors.New("invalid cluster load sample")

// ClusterLoad folds per-CPU utilization into the cluster load percentage:
// the busiest CPU relative to the smallest capacity in the cluster.
// utils and capacities are index aligned and in the same units.
func ClusterLoad(utils, capacities []uint64) (uint, error) {
	if len(utils) == 0 || len(utils) != len(capacities) {
		return 0, fmt.Errorf("%w: %d utils, %d capacities", ErrInvalidLoadSample, len(utils), len(capacities))
	}

	var maxUtil uint64
	minCapacity := capacities[0]
	for i := range utils {
		if utils[i] > maxUtil {
			maxUtil = utils[i]
		}
		if capacities[i] < minCapacity {
			minCapacity = capacities[i]
		}
	}
	if minCapacity == 0 {
		return 0, fmt.Errorf("%w: zero capacity", ErrInvalidLoadSample)
	}

	return uint(maxUtil * 100 / minCapacity), nil
}
