// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package parkrt provides a user-space concurrency runtime built from two
// tightly coupled subsystems: a generic address-keyed parking lot and a
// multi-threaded work-stealing task scheduler.
//
// # Parking lot
//
// The parking lot associates goroutines with arbitrary machine addresses.
// Callers block on an address with [ParkConditionally] and are released by
// [UnparkOne] or [UnparkAll]. It is the building block every higher-level
// mutex, condition variable, or event is built on top of — parkrt itself
// ships none of those; only the parking primitive.
//
//	var addr int32 // any stable address works as a key
//	address := uintptr(unsafe.Pointer(&addr))
//	result, err := parkrt.ParkConditionally(address, parkrt.NoDeadline, ctx)
//	switch {
//	case err == nil:
//	    use(result.Token)
//	case errors.Is(err, parkrt.ErrInvalidated):
//	    // predicate failed before parking; proceed without blocking
//	case errors.Is(err, parkrt.ErrTimedOut):
//	    // deadline elapsed with no wake
//	}
//
//	result := parkrt.UnparkOne(address, unparkerCtx)
//
// # Task scheduler
//
// [Pool] multiplexes [Task] batches onto a bounded set of worker goroutines.
// Workers maintain a three-tier local run-queue (next-slot, LIFO slot,
// bounded FIFO ring) plus an unbounded overflow queue, and steal from each
// other when idle. The pool uses the parking lot internally to suspend and
// wake idle workers without busy-waiting.
//
//	pool := parkrt.NewPoolBuilder().MaxThreads(8).Build()
//	pool.Schedule(parkrt.NewTask(func() { fmt.Println("hello") }))
//	pool.Shutdown()
//
// # Scope
//
// parkrt does not implement client-level synchronization types (mutex,
// once-flag, condition variable) — those are built on top of the parking
// lot by callers. It does not do priority scheduling, preemption, NUMA
// placement, deadline scheduling, or persistent state. Tasks are expected
// to run to completion or voluntarily reschedule themselves; parkrt never
// interrupts a running task.
package parkrt
