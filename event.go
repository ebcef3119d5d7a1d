// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package parkrt

import (
	"sync"
	"time"
)

// waitContext is passed to [event.wait] so the bucket lock can be dropped
// exactly once, after insertion, before the event actually blocks.
type waitContext interface {
	// beforeBlock runs after the waiter is queued but before the event
	// blocks. Exactly one call per park.
	beforeBlock()
}

// event is a one-shot blocking primitive: [event.wait] blocks until
// [event.notify] is called or deadline elapses, and may only be waited on
// once in its lifetime.
//
// Built on sync.Mutex+sync.Cond rather than a raw futex — see DESIGN.md's
// standard-library justification for this file.
type event struct {
	mu       sync.Mutex
	cond     *sync.Cond
	notified bool
}

// init prepares the event for use. Must be called before [event.wait] or
// [event.notify].
func (e *event) init() {
	e.cond = sync.NewCond(&e.mu)
}

// deinit releases any resources held by the event. A no-op over sync.Cond,
// kept so callers following an init/deinit lifecycle discipline have
// something to call.
func (e *event) deinit() {}

// wait blocks until notify is called or deadline (absolute nanoseconds on
// some [Clock]) passes; a nil deadline blocks indefinitely. Returns true if
// notified, false if the deadline passed first. Calls ctx.beforeBlock()
// exactly once, after acquiring the internal lock and before the first
// blocking wait — satisfying the "drop the bucket lock after insertion"
// handoff the parking protocol requires.
func (e *event) wait(clock Clock, deadline *uint64, ctx waitContext) bool {
	e.mu.Lock()
	ctx.beforeBlock()

	if deadline == nil {
		for !e.notified {
			e.cond.Wait()
		}
		e.mu.Unlock()
		return true
	}

	// sync.Cond has no deadline-aware Wait; emulate it with a timer that
	// broadcasts this event's Cond, waking the waiter to recheck.
	now := clock.Nanotime()
	if *deadline <= now {
		notified := e.notified
		e.mu.Unlock()
		return notified
	}
	timer := time.AfterFunc(time.Duration(*deadline-now)*time.Nanosecond, func() {
		e.mu.Lock()
		e.cond.Broadcast()
		e.mu.Unlock()
	})
	defer timer.Stop()

	for !e.notified && clock.Nanotime() < *deadline {
		e.cond.Wait()
	}
	notified := e.notified
	e.mu.Unlock()
	return notified
}

// notify wakes the (single) waiter blocked in wait. Safe to call before
// wait is entered; the notification is latched.
func (e *event) notify() {
	e.mu.Lock()
	e.notified = true
	e.cond.Broadcast()
	e.mu.Unlock()
}
