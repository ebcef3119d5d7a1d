// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package parkrt

import (
	"sync/atomic"
	"testing"
	"time"
)

// TestWorkerSamplesGlobalQueue checks that a task that keeps
// rescheduling itself onto a worker's own next-slot never starves a task
// sitting in the pool's global queue, because poll periodically samples
// the global queue regardless of local backlog.
func TestWorkerSamplesGlobalQueue(t *testing.T) {
	pool := NewPoolBuilder().MaxThreads(1).Build()
	defer func() {
		pool.Shutdown()
		pool.Wait()
	}()

	const floodIterations = globalSamplePeriod * 4
	var floodRan atomic.Int64
	globalRan := make(chan struct{})

	var flood func(h *Handle)
	flood = func(h *Handle) {
		if floodRan.Add(1) >= floodIterations {
			return
		}
		h.Schedule(HintNext, NewSelfSchedulingTask(flood))
	}

	if err := pool.Schedule(NewSelfSchedulingTask(flood)); err != nil {
		t.Fatalf("schedule flood: %v", err)
	}
	if err := pool.Schedule(NewTask(func() { close(globalRan) })); err != nil {
		t.Fatalf("schedule global marker: %v", err)
	}

	select {
	case <-globalRan:
	case <-time.After(5 * time.Second):
		t.Fatalf("global-queue task starved behind local next-slot flood (flood ran %d times)", floodRan.Load())
	}
}
