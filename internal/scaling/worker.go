package scaling

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

var (
	testHookStopLoop func() bool
)

type ClusterScalingWorker interface {
	UpdateOpts(opts *ClusterScalingOpts)
	Stop()
}

type clusterScalingWorkerImpl struct {
	clusterID  int
	opts       atomic.Pointer[ClusterScalingOpts]
	cancelFunc func()
	waitGroup  sync.WaitGroup
	updater    ClusterScalingUpdater
}

func NewClusterScalingWorker(
	clusterID int,
	updater ClusterScalingUpdater,
	opts *ClusterScalingOpts,
) ClusterScalingWorker {
	ctx, cancelFunc := context.WithCancel(context.Background())

	worker := &clusterScalingWorkerImpl{
		clusterID:  clusterID,
		cancelFunc: cancelFunc,
		waitGroup:  sync.WaitGroup{},
		updater:    updater,
	}

	worker.opts.Store(opts)
	worker.waitGroup.Add(1)

	go worker.runLoop(ctx)

	return worker
}

// UpdateOpts takes effect from the next tick.
func (w *clusterScalingWorkerImpl) UpdateOpts(opts *ClusterScalingOpts) {
	w.opts.Store(opts)
}

func (w *clusterScalingWorkerImpl) Stop() {
	w.cancelFunc()
	w.waitGroup.Wait()
}

func (w *clusterScalingWorkerImpl) runLoop(ctx context.Context) {
	defer w.waitGroup.Done()

	for {
		if testHookStopLoop != nil {
			if testHookStopLoop() {
				return
			}
		}

		opts := w.opts.Load()
		select {
		case <-ctx.Done():
			return
		case <-time.After(opts.SamplePeriod):
			w.updater.Update(opts)
		}
	}
}
