// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package parkrt

import "sync"

// numBuckets is the fixed bucket-table size.
const numBuckets = 256

// bucketHashMultiplier is the spreading multiplicative constant used for
// address -> bucket hashing.
const bucketHashMultiplier = 0x9E3779B97F4A7C15

// subQueue is the FIFO of waiters parked on one address, plus the fairness
// state that belongs to the sub-queue rather than any individual waiter. A
// subQueue is created the first time an address is parked on within a
// bucket and is kept (even once its FIFO empties) so its PRNG seed and
// fairness deadline survive for the address's next arrival — realized
// per-address instead of bucket-wide. See SPEC_FULL.md §3.
type subQueue struct {
	head, tail *waiter
	prng       uint16
	timesOut   uint64
}

// empty reports whether the sub-queue currently has no parked waiters.
func (sq *subQueue) empty() bool { return sq.head == nil }

// insert appends w to the sub-queue's FIFO tail.
func (sq *subQueue) insert(w *waiter) {
	w.next = nil
	if sq.tail == nil {
		w.prev = nil
		sq.head = w
		sq.tail = w
		return
	}
	w.prev = sq.tail
	sq.tail.next = w
	sq.tail = w
}

// remove splices w out of the sub-queue's FIFO. w must currently be linked
// into this sub-queue.
func (sq *subQueue) remove(w *waiter) {
	if w.prev != nil {
		w.prev.next = w.next
	} else {
		sq.head = w.next
	}
	if w.next != nil {
		w.next.prev = w.prev
	} else {
		sq.tail = w.prev
	}
	w.prev = nil
	w.next = nil
}

// shouldBeFair implements the eventually-fair hand-off: compares now
// against the sub-queue's remembered deadline, and on expiry advances the
// PRNG twice (producing a 32-bit draw) to pick the next ~1ms window.
func (sq *subQueue) shouldBeFair(now uint64) bool {
	if sq.empty() {
		return false
	}
	if now < sq.timesOut {
		return false
	}
	sq.prng = xorshift16(sq.prng)
	hi := sq.prng
	sq.prng = xorshift16(sq.prng)
	lo := sq.prng
	r := uint32(hi)<<16 | uint32(lo)
	sq.timesOut = now + uint64(r%1_000_000)
	return true
}

// bucket is one shard of the parking lot: a short-term lock guarding the
// set of per-address sub-queues that hash into it. No operation blocks
// while b.mu is held.
type bucket struct {
	mu     sync.Mutex
	queues map[Address]*subQueue
}

// bucketTable is the parking lot's fixed array of 256 buckets.
type bucketTable [numBuckets]bucket

// newBucketTable allocates and initializes a fresh bucket table.
func newBucketTable() *bucketTable {
	bt := &bucketTable{}
	for i := range bt {
		bt[i].queues = make(map[Address]*subQueue)
	}
	return bt
}

// bucketFor hashes addr to its owning bucket via the spreading
// multiplicative hash: (addr * constant) >> (64-8).
func (bt *bucketTable) bucketFor(addr Address) *bucket {
	h := (uint64(addr) * bucketHashMultiplier) >> (64 - 8)
	return &bt[h]
}

// subQueueFor returns addr's sub-queue within b, creating it (seeded from
// addr) if this is the first waiter ever parked on addr in this bucket.
// Must be called with b.mu held.
func (b *bucket) subQueueFor(addr Address) *subQueue {
	sq, ok := b.queues[addr]
	if !ok {
		sq = &subQueue{prng: seedFromAddress(addr)}
		b.queues[addr] = sq
	}
	return sq
}

// Per-address lookup within a bucket goes through the bucket's queues map
// rather than a linear scan, so many distinct addresses colliding in one
// bucket do not lengthen the lookup. Sub-queues are never removed from the
// map once created.
