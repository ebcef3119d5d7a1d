// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package parkrt

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func waitTimeout(t *testing.T, wg *sync.WaitGroup, d time.Duration) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(d):
		t.Fatalf("timed out after %v", d)
	}
}

func TestPoolScheduleRunsTask(t *testing.T) {
	pool := NewPoolBuilder().MaxThreads(2).Build()
	defer func() {
		pool.Shutdown()
		pool.Wait()
	}()

	done := make(chan struct{})
	if err := pool.Schedule(NewTask(func() { close(done) })); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("task never ran")
	}
}

// TestPoolTaskConservation checks that every scheduled task
// runs exactly once.
func TestPoolTaskConservation(t *testing.T) {
	pool := NewPoolBuilder().MaxThreads(4).Build()
	defer func() {
		pool.Shutdown()
		pool.Wait()
	}()

	const n = 5000
	var ran atomic.Int64
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		if err := pool.Schedule(NewTask(func() {
			ran.Add(1)
			wg.Done()
		})); err != nil {
			t.Fatalf("schedule %d: %v", i, err)
		}
	}
	waitTimeout(t, &wg, 10*time.Second)
	if got := ran.Load(); got != n {
		t.Fatalf("ran %d tasks, want %d", got, n)
	}
}

// TestPoolCountdownChain: each task schedules its successor
// via HintFIFO until a shared counter reaches zero.
func TestPoolCountdownChain(t *testing.T) {
	pool := NewPoolBuilder().MaxThreads(4).Build()
	defer func() {
		pool.Shutdown()
		pool.Wait()
	}()

	const start = 5000
	var remaining atomic.Int64
	remaining.Store(start)
	done := make(chan struct{})

	var countDown func(h *Handle)
	countDown = func(h *Handle) {
		if remaining.Add(-1) == 0 {
			close(done)
			return
		}
		h.Schedule(HintFIFO, NewSelfSchedulingTask(countDown))
	}

	if err := pool.Schedule(NewSelfSchedulingTask(countDown)); err != nil {
		t.Fatalf("schedule: %v", err)
	}

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatalf("countdown stalled at %d", remaining.Load())
	}
}

// TestPoolShutdownCompletion checks that after shutdown, every
// worker exits and Pool.Wait returns; scheduling afterward is rejected.
func TestPoolShutdownCompletion(t *testing.T) {
	pool := NewPoolBuilder().MaxThreads(4).Build()

	var ran atomic.Int64
	for i := 0; i < 50; i++ {
		_ = pool.Schedule(NewTask(func() { ran.Add(1) }))
	}

	pool.Shutdown()
	done := make(chan struct{})
	go func() {
		pool.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("pool did not quiesce after shutdown")
	}

	if err := pool.Schedule(NewTask(func() {})); err != ErrShutdown {
		t.Fatalf("schedule after shutdown: got %v, want ErrShutdown", err)
	}
}

// TestPoolShutdownWithNoWorkersEverSpawned covers the degenerate case
// where Shutdown is called before any task was ever scheduled.
func TestPoolShutdownWithNoWorkersEverSpawned(t *testing.T) {
	pool := NewPoolBuilder().MaxThreads(4).Build()
	pool.Shutdown()
	done := make(chan struct{})
	go func() {
		pool.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Wait never returned with zero workers spawned")
	}
}

// TestPoolDoesNotExceedMaxThreads saturates every worker on a blocking
// task, then schedules one more: the extra task must queue rather than
// push the pool's spawned count past MaxThreads.
func TestPoolDoesNotExceedMaxThreads(t *testing.T) {
	const max = 4
	pool := NewPoolBuilder().MaxThreads(max).Build()
	defer func() {
		pool.Shutdown()
		pool.Wait()
	}()

	release := make(chan struct{})
	var started sync.WaitGroup
	started.Add(max)
	for i := 0; i < max; i++ {
		if err := pool.Schedule(NewTask(func() {
			started.Done()
			<-release
		})); err != nil {
			t.Fatalf("schedule %d: %v", i, err)
		}
	}
	waitTimeout(t, &started, 5*time.Second)

	extraDone := make(chan struct{})
	if err := pool.Schedule(NewTask(func() { close(extraDone) })); err != nil {
		t.Fatalf("schedule extra: %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	_, _, _, spawned := unpackIdleWord(pool.idle.LoadAcquire())
	if spawned > max {
		t.Fatalf("spawned = %d, want <= %d", spawned, max)
	}

	close(release)
	select {
	case <-extraDone:
	case <-time.After(5 * time.Second):
		t.Fatalf("extra task never ran after release")
	}
}

// TestPoolStealingDrainsOverloadedWorker pushes more work through a single
// schedule burst than fits any one worker's bounded queue, relying on
// stealing and the overflow queue to let other workers help finish it.
func TestPoolStealingDrainsOverloadedWorker(t *testing.T) {
	pool := NewPoolBuilder().MaxThreads(4).Build()
	defer func() {
		pool.Shutdown()
		pool.Wait()
	}()

	const n = 2000
	var wg sync.WaitGroup
	wg.Add(n)
	tasks := make([]*Task, n)
	for i := range tasks {
		tasks[i] = NewTask(func() { wg.Done() })
	}
	if err := pool.ScheduleBatch(NewBatch(tasks...)); err != nil {
		t.Fatalf("schedule batch: %v", err)
	}
	waitTimeout(t, &wg, 10*time.Second)
}

// TestPoolIdleWakeNoSpawn: with the pool at its thread
// ceiling, all but one worker busy and one parked idle, a schedule call
// must wake the idle worker rather than spawn a new one.
func TestPoolIdleWakeNoSpawn(t *testing.T) {
	const max = 2
	pool := NewPoolBuilder().MaxThreads(max).Build()
	release := make(chan struct{})
	defer func() {
		pool.Shutdown()
		pool.Wait()
	}()

	// One blocking task: its worker promotes a second worker before
	// running, and the second finds nothing and parks idle.
	started := make(chan struct{})
	if err := pool.Schedule(NewTask(func() {
		close(started)
		<-release
	})); err != nil {
		t.Fatalf("schedule blocker: %v", err)
	}
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatalf("blocker never started")
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		_, _, idle, spawned := unpackIdleWord(pool.idle.LoadAcquire())
		if idle == 1 && spawned == max {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("pool never reached 1 idle / %d spawned (idle=%d, spawned=%d)", max, idle, spawned)
		}
		time.Sleep(time.Millisecond)
	}

	second := make(chan struct{})
	if err := pool.Schedule(NewTask(func() { close(second) })); err != nil {
		t.Fatalf("schedule second: %v", err)
	}
	select {
	case <-second:
	case <-time.After(2 * time.Second):
		t.Fatalf("second task never ran")
	}
	close(release)

	_, _, _, spawnedAfter := unpackIdleWord(pool.idle.LoadAcquire())
	if spawnedAfter > max {
		t.Fatalf("spawned = %d after wake, want <= %d: idle worker should have been woken, not replaced", spawnedAfter, max)
	}
}
