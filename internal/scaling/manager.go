package scaling

import (
	"context"
	"slices"
	"sync"

	"github.com/go-logr/logr"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/manager"

	"github.com/AMDEPYC/cpufreq-spsa/internal/governor"
)

// Func definitions for unit testing
var (
	newClusterScalingWorkerFunc = NewClusterScalingWorker
)

type ClusterScalingManager interface {
	manager.Runnable
	UpdateConfig(optList []ClusterScalingOpts)
	ManagedClusters() []int
}

type clusterScalingManagerImpl struct {
	updater ClusterScalingUpdater
	workers sync.Map
	logger  logr.Logger
}

func NewClusterScalingManager(
	controller *governor.Controller,
	loads LoadSampler,
	driver FrequencyDriver,
) ClusterScalingManager {
	logger := ctrl.Log.WithName("ClusterScalingManager")

	mgr := &clusterScalingManagerImpl{
		updater: NewClusterScalingUpdater(controller, loads, driver, logger.WithName("updater")),
		logger:  logger,
	}

	return mgr
}

func (s *clusterScalingManagerImpl) Start(ctx context.Context) error {
	<-ctx.Done()
	s.stop()
	return nil
}

func (s *clusterScalingManagerImpl) stop() {
	s.logger.V(5).Info("stopping all workers")

	for _, clusterID := range s.ManagedClusters() {
		s.stopWorker(clusterID)
	}

	s.logger.V(5).Info("successfully stopped all")
}

func (s *clusterScalingManagerImpl) UpdateConfig(optsList []ClusterScalingOpts) {
	incomingClusters := map[int]struct{}{}
	currentClusters := s.ManagedClusters()

	// create or update workers as per new config
	for i := range optsList {
		opts := &optsList[i]
		incomingClusters[opts.ClusterID] = struct{}{}

		worker, found := s.getClusterScalingWorker(opts.ClusterID)
		if !found {
			s.logger.V(5).Info("creating worker", clusterLogKey, opts.ClusterID, "cpus", opts.CPUs)

			s.workers.Store(
				opts.ClusterID,
				newClusterScalingWorkerFunc(opts.ClusterID, s.updater, opts),
			)
		} else {
			worker.UpdateOpts(opts)
		}
	}

	// stop workers of clusters that are no longer managed
	for _, clusterID := range currentClusters {
		if _, contains := incomingClusters[clusterID]; !contains {
			s.stopWorker(clusterID)
		}
	}
}

func (s *clusterScalingManagerImpl) stopWorker(clusterID int) {
	worker, found := s.workers.LoadAndDelete(clusterID)
	if !found {
		s.logger.V(5).Info("worker already stopped", clusterLogKey, clusterID)
		return
	}
	worker.(ClusterScalingWorker).Stop()
	s.logger.V(5).Info("worker stopped successfully", clusterLogKey, clusterID)
}

// ManagedClusters returns the ids of clusters with a running worker, sorted.
func (s *clusterScalingManagerImpl) ManagedClusters() []int {
	managed := make([]int, 0)
	s.workers.Range(func(key, value any) bool {
		managed = append(managed, key.(int))
		return true
	})
	slices.Sort(managed)

	return managed
}

func (s *clusterScalingManagerImpl) getClusterScalingWorker(clusterID int) (ClusterScalingWorker, bool) {
	if value, found := s.workers.Load(clusterID); found {
		return value.(ClusterScalingWorker), true
	}

	return nil, false
}
