package scaling

import (
	"fmt"

	"github.com/go-logr/logr"

	"github.com/AMDEPYC/cpufreq-spsa/internal/governor"
)

type ClusterScalingUpdater interface {
	Update(opts *ClusterScalingOpts)
}

type clusterScalingUpdaterImpl struct {
	controller *governor.Controller
	loads      LoadSampler
	driver     FrequencyDriver
	logger     logr.Logger
}

func NewClusterScalingUpdater(
	controller *governor.Controller,
	loads LoadSampler,
	driver FrequencyDriver,
	logger logr.Logger,
) ClusterScalingUpdater {
	updater := &clusterScalingUpdaterImpl{
		controller: controller,
		loads:      loads,
		driver:     driver,
		logger:     logger,
	}

	return updater
}

// Update runs one sampling tick: measure, decide, and write the new
// frequency when it differs from the current one. Failures skip the tick.
func (u *clusterScalingUpdaterImpl) Update(opts *ClusterScalingOpts) {
	logger := u.logger.WithValues(clusterLogKey, opts.ClusterID)

	cluster, found := u.controller.Cluster(opts.ClusterID)
	if !found {
		logger.Error(fmt.Errorf("cluster %d is not provisioned", opts.ClusterID), "skipping update")
		return
	}
	if len(opts.CPUs) == 0 {
		logger.V(5).Info("no CPUs assigned, skipping update")
		return
	}
	policyCPU := opts.CPUs[0]

	load, err := u.loads.ClusterLoad(opts.CPUs)
	if err != nil {
		logger.V(5).Info(fmt.Sprintf("load sample not available, err: %v", err))
		return
	}

	currentFrequency, err := u.driver.CurrentFrequency(policyCPU)
	if err != nil {
		logger.V(5).Info(fmt.Sprintf("current frequency not available, err: %v", err), cpuLogKey, policyCPU)
		return
	}

	targetFrequency := u.controller.DecideCluster(cluster, load, currentFrequency)
	if targetFrequency == currentFrequency {
		return
	}

	if err := u.driver.SetFrequency(policyCPU, targetFrequency); err != nil {
		logger.Error(err, "failed to request frequency", cpuLogKey, policyCPU, "frequency", targetFrequency)
		return
	}
	logger.V(5).Info("frequency requested", "load", load, "from", currentFrequency, "to", targetFrequency)
}
