// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package parkrt

import "sync/atomic"

// Task is an opaque runnable scheduled onto a [Pool]. It carries its own
// intrusive next link so it can be spliced into a run-queue without a
// separate allocation.
//
// Go goroutines are already runtime-managed resumable stacks, so there is
// no second "resumable coroutine handle" variant for Task to tag — every
// Task simply wraps a runnable.
type Task struct {
	next atomic.Pointer[Task]
	run  func(*Handle)
}

// NewTask wraps fn as a schedulable [Task] with no access to the worker
// running it.
func NewTask(fn func()) *Task {
	return &Task{run: func(*Handle) { fn() }}
}

// NewSelfSchedulingTask wraps fn as a schedulable [Task] that receives a
// [Handle] to the worker currently running it, so it can reschedule its
// own successor (e.g. via Handle.Schedule(FIFO, next)) without going
// through the pool's global queue.
func NewSelfSchedulingTask(fn func(h *Handle)) *Task {
	return &Task{run: fn}
}

// Batch is an internal (head, tail) pair used to splice task runs in O(1).
type Batch struct {
	head, tail *Task
	n          int
}

// NewBatch builds a Batch from the given tasks, in order.
func NewBatch(tasks ...*Task) Batch {
	var b Batch
	for _, t := range tasks {
		b.push(t)
	}
	return b
}

// empty reports whether the batch has no tasks.
func (b *Batch) empty() bool { return b.head == nil }

// len reports the number of tasks currently in the batch.
func (b *Batch) len() int { return b.n }

// push appends t to the batch's tail.
func (b *Batch) push(t *Task) {
	t.next.Store(nil)
	if b.tail == nil {
		b.head = t
		b.tail = t
	} else {
		b.tail.next.Store(t)
		b.tail = t
	}
	b.n++
}

// popFront removes and returns the batch's first task, or nil if empty.
func (b *Batch) popFront() *Task {
	t := b.head
	if t == nil {
		return nil
	}
	b.head = t.next.Load()
	if b.head == nil {
		b.tail = nil
	}
	t.next.Store(nil)
	b.n--
	return t
}

// appendBatch splices other onto b's tail in O(1).
func (b *Batch) appendBatch(other Batch) {
	if other.empty() {
		return
	}
	if b.empty() {
		*b = other
		return
	}
	b.tail.next.Store(other.head)
	b.tail = other.tail
	b.n += other.n
}
