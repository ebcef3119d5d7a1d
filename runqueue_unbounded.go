// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package parkrt

import (
	"sync/atomic"

	"code.hybscloud.com/atomix"
)

// unboundedRunQueue is the pool-wide overflow and global queue: an
// intrusive MPSC linked list using [Task]'s own next link, so pushing
// never allocates. It is Dmitry Vyukov's classic non-blocking MPSC
// queue — multiple producers push concurrently via CAS-free Swap-then-link;
// exactly one consumer (enforced by consuming, not by the algorithm itself)
// pops.
//
// The stub node keeps the list non-empty: when pop takes the last node it
// re-pushes stub first. pop does not wait for a producer that has swapped
// tail but not yet linked its node: it returns nil in that window, and the
// task is returned by a later pop.
type unboundedRunQueue struct {
	head      atomic.Pointer[Task]
	tail      atomic.Pointer[Task]
	stub      Task
	consuming atomix.Uint64
}

const consumerHeld = 1

// newUnboundedRunQueue returns an empty unbounded run queue.
func newUnboundedRunQueue() *unboundedRunQueue {
	q := &unboundedRunQueue{}
	q.head.Store(&q.stub)
	q.tail.Store(&q.stub)
	return q
}

// push adds t to the queue. Safe for any number of concurrent producers.
func (q *unboundedRunQueue) push(t *Task) {
	t.next.Store(nil)
	prev := q.tail.Swap(t)
	prev.next.Store(t)
}

// pushBatch pushes batch's tasks onto the queue one at a time, in order,
// each with its own tail swap, so tasks pushed concurrently by other
// producers may interleave with the batch's. Safe for any number of
// concurrent producers.
func (q *unboundedRunQueue) pushBatch(batch *Batch) {
	for !batch.empty() {
		q.push(batch.popFront())
	}
}

// pop removes and returns the queue's next task, or nil if empty or if a
// producer is observed mid-push (the caller should retry later; this is
// not a fatal condition). Callers MUST serialize pop via
// tryAcquireConsumer/releaseConsumer — this queue enforces no consumer
// exclusion of its own.
func (q *unboundedRunQueue) pop() *Task {
	head := q.head.Load()
	next := head.next.Load()

	if head == &q.stub {
		if next == nil {
			return nil
		}
		q.head.Store(next)
		head = next
		next = next.next.Load()
	}

	if next != nil {
		q.head.Store(next)
		return head
	}

	tail := q.tail.Load()
	if head != tail {
		// A producer has Swapped tail but hasn't yet linked prev.next.
		// The queue is not actually empty; tell the caller to back off
		// and retry rather than spin here.
		return nil
	}

	// head == tail == the only node: re-push stub so the list never goes
	// fully empty mid-traversal, then see if a task landed after head
	// while we were working.
	q.push(&q.stub)
	next = head.next.Load()
	if next != nil {
		q.head.Store(next)
		return head
	}
	return nil
}

// tryAcquireConsumer attempts to become the queue's sole consumer for this
// poll cycle: a single-consumer requirement layered on top of what is
// otherwise an MPSC (not MPMC) structure.
func (q *unboundedRunQueue) tryAcquireConsumer() bool {
	return q.consuming.CompareAndSwapAcqRel(0, consumerHeld)
}

// releaseConsumer relinquishes the consumer token acquired by
// tryAcquireConsumer.
func (q *unboundedRunQueue) releaseConsumer() {
	q.consuming.StoreRelease(0)
}
