// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package parkrt

// ParkResult is returned by a successful (unparked) [ParkConditionally]
// call. Token is whatever the unparker stored on the waiter via
// [UnparkerContext.OnUnpark] — it may differ from the token the parker's
// own [ParkerContext.OnValidate] produced.
type ParkResult struct {
	Token any
}

// UnparkResult describes the waiter (if any) an unparker dequeued, passed
// to [UnparkerContext.OnUnpark] while the bucket lock is still held so the
// caller can atomically drop or transfer ownership alongside the dequeue.
type UnparkResult struct {
	// Token is the dequeued waiter's park-time token. Valid only if
	// HasToken is true.
	Token any
	// HasToken is true iff a waiter was actually dequeued.
	HasToken bool
	// BeFair is true if the eventually-fair deadline had elapsed for this
	// address. Advisory: it is the caller's responsibility to honor it by
	// not letting a racing arrival barge ahead of the dequeued waiter.
	BeFair bool
	// HasMore is true if the address's sub-queue is non-empty after this
	// dequeue.
	HasMore bool
}

// ParkerContext is supplied to [ParkConditionally]. Its three callbacks run
// at the validate, pre-block, and timeout points of one park call.
type ParkerContext interface {
	// OnValidate runs under the bucket lock before the waiter is
	// inserted. Returning ok=false aborts the park with [ErrInvalidated]
	// and no insertion occurs. The returned token becomes the waiter's
	// park-time token.
	OnValidate() (token any, ok bool)
	// OnBeforeWait runs after insertion, before the bucket lock is
	// released and the caller actually blocks.
	OnBeforeWait()
	// OnTimeout runs under the bucket lock after a timed-out waiter has
	// been removed from its sub-queue. hasMore reports whether the
	// sub-queue is still non-empty.
	OnTimeout(token any, hasMore bool)
}

// UnparkerContext is supplied to [UnparkOne]. Its callback runs after the
// dequeue and before the wake, still under the bucket lock.
type UnparkerContext interface {
	// OnUnpark runs under the bucket lock, after the dequeue (if any) but
	// before wake is invoked. Its return value becomes the token
	// delivered to the woken waiter, allowing atomic ownership transfer.
	OnUnpark(result UnparkResult) (token any)
}

// ParkingLot is the address-keyed blocking primitive that every
// higher-level mutex, condition variable, or event is built on top of.
// The zero value is not usable — construct with [NewParkingLot].
type ParkingLot struct {
	buckets *bucketTable
	clock   Clock
}

// NewParkingLot creates a parking lot using clock for deadline comparisons
// and fairness windows. A nil clock defaults to [SystemClock].
func NewParkingLot(clock Clock) *ParkingLot {
	if clock == nil {
		clock = SystemClock{}
	}
	return &ParkingLot{buckets: newBucketTable(), clock: clock}
}

// defaultLot backs the package-level ParkConditionally/UnparkOne/UnparkAll
// convenience functions, for callers that don't need a custom Clock.
var defaultLot = NewParkingLot(SystemClock{})

// bucketUnlockCtx adapts a [ParkerContext] into the [waitContext] the event
// prologue calls exactly once: run the caller's OnBeforeWait, then drop the
// bucket lock.
type bucketUnlockCtx struct {
	b   *bucket
	ctx ParkerContext
}

func (u *bucketUnlockCtx) beforeBlock() {
	u.ctx.OnBeforeWait()
	u.b.mu.Unlock()
}

// noWaitCtx is used for the second, unconditional wait that resolves the
// timeout/unpark race: the bucket lock is already released by then, so
// there is nothing left to drop.
type noWaitCtx struct{}

func (noWaitCtx) beforeBlock() {}

// ParkConditionally validates under the bucket lock, inserts, drops the
// lock, blocks until unparked or deadline, and resolves the unpark/timeout
// race if the deadline and an unpark land concurrently.
//
// deadline is an absolute nanosecond timestamp on lot's Clock, or nil for
// [NoDeadline] (block indefinitely).
func (lot *ParkingLot) ParkConditionally(address Address, deadline *uint64, ctx ParkerContext) (ParkResult, error) {
	b := lot.buckets.bucketFor(address)
	b.mu.Lock()

	token, ok := ctx.OnValidate()
	if !ok {
		b.mu.Unlock()
		return ParkResult{}, ErrInvalidated
	}

	w := &waiter{token: token, address: address}
	var ev event
	ev.init()
	defer ev.deinit()
	w.wake = ev.notify

	sq := b.subQueueFor(address)
	sq.insert(w)

	notified := ev.wait(lot.clock, deadline, &bucketUnlockCtx{b: b, ctx: ctx})
	if notified {
		return ParkResult{Token: w.token}, nil
	}

	// Deadline elapsed. Re-acquire the lock and attempt to remove the
	// waiter ourselves.
	b.mu.Lock()
	if waiterStillQueued(sq, w) {
		sq.remove(w)
		hasMore := !sq.empty()
		ctx.OnTimeout(w.token, hasMore)
		b.mu.Unlock()
		return ParkResult{}, ErrTimedOut
	}
	// Lost the race: an unparker already dequeued w concurrently with the
	// timeout. Its wake is guaranteed to fire (or may already have), so
	// one more unconditional wait always completes.
	b.mu.Unlock()
	ev.wait(lot.clock, nil, noWaitCtx{})
	return ParkResult{Token: w.token}, nil
}

// waiterStillQueued reports whether w is still linked into sq's FIFO.
func waiterStillQueued(sq *subQueue, w *waiter) bool {
	return sq.head == w || w.prev != nil || w.next != nil
}

// UnparkOne dequeues at most one waiter parked on address and wakes it.
// ctx.OnUnpark runs under the bucket lock even when no waiter was
// dequeued, so callers can unconditionally release whatever invariant
// they were guarding.
func (lot *ParkingLot) UnparkOne(address Address, ctx UnparkerContext) UnparkResult {
	b := lot.buckets.bucketFor(address)
	b.mu.Lock()

	sq, ok := b.queues[address]
	if !ok || sq.empty() {
		result := UnparkResult{}
		ctx.OnUnpark(result)
		b.mu.Unlock()
		return result
	}

	beFair := sq.shouldBeFair(lot.clock.Nanotime())
	w := sq.head
	sq.remove(w)
	hasMore := !sq.empty()

	result := UnparkResult{Token: w.token, HasToken: true, BeFair: beFair, HasMore: hasMore}
	w.token = ctx.OnUnpark(result)
	b.mu.Unlock()

	w.wake()
	return result
}

// UnparkAll wakes every waiter currently parked on address and reports how
// many were woken.
func (lot *ParkingLot) UnparkAll(address Address) int {
	b := lot.buckets.bucketFor(address)
	b.mu.Lock()

	sq, ok := b.queues[address]
	if !ok || sq.empty() {
		b.mu.Unlock()
		return 0
	}

	// Unlink every waiter while the lock is still held, so a concurrently
	// timing-out waiter observes itself dequeued and takes the
	// guaranteed-wake path instead of splicing itself out of a list it is
	// no longer on.
	var woken []*waiter
	for w := sq.head; w != nil; {
		next := w.next
		w.prev = nil
		w.next = nil
		woken = append(woken, w)
		w = next
	}
	sq.head = nil
	sq.tail = nil
	b.mu.Unlock()

	for _, w := range woken {
		w.wake()
	}
	return len(woken)
}

// ParkConditionally calls [ParkingLot.ParkConditionally] on the package's
// default parking lot (backed by [SystemClock]).
func ParkConditionally(address Address, deadline *uint64, ctx ParkerContext) (ParkResult, error) {
	return defaultLot.ParkConditionally(address, deadline, ctx)
}

// UnparkOne calls [ParkingLot.UnparkOne] on the package's default parking
// lot.
func UnparkOne(address Address, ctx UnparkerContext) UnparkResult {
	return defaultLot.UnparkOne(address, ctx)
}

// UnparkAll calls [ParkingLot.UnparkAll] on the package's default parking
// lot.
func UnparkAll(address Address) int {
	return defaultLot.UnparkAll(address)
}

// NoDeadline is the nil *uint64 sentinel meaning "block indefinitely".
var NoDeadline *uint64
