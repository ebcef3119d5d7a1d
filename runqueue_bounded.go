// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package parkrt

import (
	"sync/atomic"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

// boundedRunQueueCapacity is the per-worker ring size: a compile-time
// power of two, 256 slots.
const boundedRunQueueCapacity = 256

const boundedRunQueueMask = boundedRunQueueCapacity - 1

// boundedRunQueue is a single-producer (owner), multi-consumer (owner pop +
// stealers) bounded ring of tasks: the owner writes tail with a plain
// store-release, and every consumer — including the owner's own pop —
// claims slots by CAS'ing head, so a stealer mid-steal never races the
// owner's pop for the same slot. Index arithmetic is
// wrap-safe unsigned subtraction, so head/tail counters may wrap freely
// without corrupting occupancy math.
type boundedRunQueue struct {
	_      pad
	head   atomix.Uint64 // CAS'd by owner-pop and stealers
	_      pad
	tail   atomix.Uint64 // producer (owner) only
	_      pad
	buffer [boundedRunQueueCapacity]atomic.Pointer[Task]
}

// push adds batch's tasks to the queue. When the ring fills, it migrates
// half the queue out via CAS on head, splices the remaining in-flight
// batch onto that migrated chunk, and returns the combined overflow for
// the caller to forward to the unbounded overflow queue. A nil overflow
// with ok=false means every task fit.
func (q *boundedRunQueue) push(batch *Batch) (overflow Batch, ok bool) {
	sw := spin.Wait{}
	for !batch.empty() {
		head := q.head.LoadAcquire()
		tail := q.tail.LoadRelaxed()

		if tail-head < boundedRunQueueCapacity {
			t := batch.popFront()
			q.buffer[tail&boundedRunQueueMask].Store(t)
			q.tail.StoreRelease(tail + 1)
			continue
		}

		n := tail - head
		half := n / 2
		if half == 0 {
			half = 1
		}
		// Claim the chunk before touching the tasks: linking them into the
		// migrated batch mutates their next pointers, which must not happen
		// while a stealer may still own them.
		if !q.head.CompareAndSwapAcqRel(head, head+half) {
			sw.Once()
			continue
		}
		var migrated Batch
		for i := uint64(0); i < half; i++ {
			migrated.push(q.buffer[(head+i)&boundedRunQueueMask].Load())
		}
		migrated.appendBatch(*batch)
		*batch = Batch{}
		return migrated, true
	}
	return Batch{}, false
}

// pop removes and returns the owner's next task, or nil if the queue is
// empty. Owner-only; races against stealers via CAS on head.
func (q *boundedRunQueue) pop() *Task {
	sw := spin.Wait{}
	for {
		head := q.head.LoadAcquire()
		tail := q.tail.LoadRelaxed()
		if head == tail {
			return nil
		}
		t := q.buffer[head&boundedRunQueueMask].Load()
		if q.head.CompareAndSwapAcqRel(head, head+1) {
			return t
		}
		sw.Once()
	}
}

// popAndStealBounded steals up to half of target's tasks into q's own
// buffer, capped at half of q's local capacity, and returns the first
// stolen task directly without round-tripping it through q's buffer.
func (q *boundedRunQueue) popAndStealBounded(target *boundedRunQueue) *Task {
	sw := spin.Wait{}
	for {
		srcHead := target.head.LoadAcquire()
		srcTail := target.tail.LoadAcquire()
		n := srcTail - srcHead
		if int64(n) <= 0 {
			return nil
		}

		steal := n / 2
		if steal == 0 {
			steal = 1
		}
		if steal > boundedRunQueueCapacity/2 {
			steal = boundedRunQueueCapacity / 2
		}

		stolen := make([]*Task, steal)
		for i := uint64(0); i < steal; i++ {
			stolen[i] = target.buffer[(srcHead+i)&boundedRunQueueMask].Load()
		}

		if !target.head.CompareAndSwapAcqRel(srcHead, srcHead+steal) {
			sw.Once()
			continue
		}

		first := stolen[0]
		if steal > 1 {
			tail := q.tail.LoadRelaxed()
			for i := uint64(1); i < steal; i++ {
				q.buffer[(tail+i-1)&boundedRunQueueMask].Store(stolen[i])
			}
			q.tail.StoreRelease(tail + steal - 1)
		}
		return first
	}
}

// popAndStealUnbounded acquires target's single-consumer token, drains up
// to q's free local space into q's buffer, and returns the first popped
// task.
func (q *boundedRunQueue) popAndStealUnbounded(target *unboundedRunQueue) *Task {
	if !target.tryAcquireConsumer() {
		return nil
	}
	defer target.releaseConsumer()

	first := target.pop()
	if first == nil {
		return nil
	}

	tail := q.tail.LoadRelaxed()
	head := q.head.LoadAcquire()
	free := uint64(boundedRunQueueCapacity) - (tail - head)

	n := uint64(0)
	for n < free {
		t := target.pop()
		if t == nil {
			break
		}
		q.buffer[(tail+n)&boundedRunQueueMask].Store(t)
		n++
	}
	if n > 0 {
		q.tail.StoreRelease(tail + n)
	}
	return first
}

// len reports the queue's current occupancy (approximate: may be stale the
// instant it's read under concurrent push/steal).
func (q *boundedRunQueue) len() uint64 {
	return q.tail.LoadAcquire() - q.head.LoadAcquire()
}
