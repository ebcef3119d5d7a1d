// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package parkrt

import (
	"sync"
	"sync/atomic"
	"unsafe"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/iox"
)

// poolState is the idle-queue's five-way state, packed alongside the
// notified flag and the idle/spawned counters into one word so the whole
// FSM transitions with a single CAS.
type poolState uint32

const (
	statePending poolState = iota
	stateNotified
	stateWaking
	stateWakerNotified
	stateShutdown
)

const (
	idleBits     = 14
	idleMask     = 1<<idleBits - 1
	spawnedShift = idleBits
	stateShift   = idleBits * 2
	stateMask    = 0x7
	notifiedBit  = 31
)

func packIdleWord(state poolState, notified bool, idle, spawned uint16) uint64 {
	w := uint64(idle)&idleMask | uint64(spawned)&idleMask<<spawnedShift | uint64(state)&stateMask<<stateShift
	if notified {
		w |= 1 << notifiedBit
	}
	return w
}

func unpackIdleWord(w uint64) (state poolState, notified bool, idle, spawned uint16) {
	idle = uint16(w & idleMask)
	spawned = uint16((w >> spawnedShift) & idleMask)
	state = poolState((w >> stateShift) & stateMask)
	notified = w&(1<<notifiedBit) != 0
	return
}

// Pool multiplexes [Task]s onto a bounded set of worker goroutines, using
// an internal [ParkingLot] to suspend and wake idle workers without
// busy-waiting. Construct with [NewPoolBuilder].
//
// The idle word is the sole authority on worker lifecycle. The notified
// flag within it is the wake token handed from a resumer to exactly one
// suspending or parked worker: tryResume sets it in the same CAS that
// claims an idle slot, and the target consumes it either on wakeup or,
// when the wake races the park, inside the park's validation under the
// bucket lock. During shutdown the same flag doubles as the quiescence
// release signal; no auxiliary coordination flag exists.
type Pool struct {
	cfg    PoolConfig
	idle   atomix.Uint64
	lot    *ParkingLot
	global *unboundedRunQueue

	activeHead atomic.Pointer[worker]

	doneCh   chan struct{}
	doneOnce sync.Once
}

func newPool(cfg PoolConfig) *Pool {
	return &Pool{
		cfg:    cfg,
		lot:    NewParkingLot(cfg.clock),
		global: newUnboundedRunQueue(),
		doneCh: make(chan struct{}),
	}
}

// idleAddress is the parking-lot key shared by idle-wait and the shutdown
// quiescence barrier: both block on &pool.idle so a single UnparkAll wakes
// both kinds of waiter.
func (p *Pool) idleAddress() Address {
	return uintptr(unsafe.Pointer(&p.idle))
}

// Schedule submits t to the pool's global queue and ensures at least one
// worker is running to pick it up. Returns [ErrShutdown] if the pool has
// already been shut down.
func (p *Pool) Schedule(t *Task) error {
	return p.schedule(func() { p.global.push(t) })
}

// ScheduleBatch submits an entire batch at once, pushing its tasks onto the
// global queue one at a time, in order.
func (p *Pool) ScheduleBatch(b Batch) error {
	return p.schedule(func() { p.global.pushBatch(&b) })
}

func (p *Pool) schedule(push func()) error {
	if p.isShutdown() {
		return ErrShutdown
	}
	push()
	if !p.tryResume(nil) {
		return ErrShutdown
	}
	return nil
}

func (p *Pool) isShutdown() bool {
	state, _, _, _ := unpackIdleWord(p.idle.LoadAcquire())
	return state == stateShutdown
}

// Shutdown transitions the pool to its shutdown state and wakes every
// parked worker. It does not block until workers have fully unwound; call
// [Pool.Wait] for that.
func (p *Pool) Shutdown() {
	var spawnedAtShutdown uint16
	for {
		word := p.idle.LoadAcquire()
		state, _, idle, spawned := unpackIdleWord(word)
		if state == stateShutdown {
			return
		}
		newWord := packIdleWord(stateShutdown, false, idle, spawned)
		if p.idle.CompareAndSwapAcqRel(word, newWord) {
			spawnedAtShutdown = spawned
			break
		}
	}
	p.lot.UnparkAll(p.idleAddress())
	if spawnedAtShutdown == 0 {
		p.closeDone()
	}
}

// Wait blocks until every worker spawned by the pool has exited following
// [Pool.Shutdown].
func (p *Pool) Wait() {
	<-p.doneCh
}

func (p *Pool) closeDone() {
	p.doneOnce.Do(func() { close(p.doneCh) })
}

// tryResume wakes an idle worker, spawns a fresh one, or merely annotates
// the state as notified for whichever worker is already awake to consume.
// self is the calling worker, or nil when called from outside any worker
// (e.g. [Pool.Schedule]). Only the caller holding the waking role (or a
// caller seeing a quiescent pending state) may take the wake branch; all
// other callers leave a mark and return, so at most one wake is ever in
// flight.
func (p *Pool) tryResume(self *worker) bool {
	attempts := 5
	var backoff iox.Backoff
	selfWaking := self != nil && self.isWaking
	for {
		word := p.idle.LoadAcquire()
		state, notified, idle, spawned := unpackIdleWord(word)
		if state == stateShutdown {
			return false
		}

		canWake := idle > 0 || spawned < p.cfg.maxThreads
		wakeBranch := canWake && ((selfWaking && attempts > 0) || (!selfWaking && state == statePending))

		if !wakeBranch {
			var newState poolState
			switch state {
			case statePending:
				newState = stateNotified
			case stateWaking:
				newState = stateWakerNotified
			default:
				return true
			}
			if !p.idle.CompareAndSwapAcqRel(word, packIdleWord(newState, notified, idle, spawned)) {
				continue
			}
			return true
		}

		willWakeIdle := idle > 0
		var newWord uint64
		if willWakeIdle {
			newWord = packIdleWord(stateWaking, true, idle-1, spawned)
		} else {
			newWord = packIdleWord(stateWaking, notified, idle, spawned+1)
		}
		if !p.idle.CompareAndSwapAcqRel(word, newWord) {
			continue
		}

		if willWakeIdle {
			// Either a parked worker is dequeued and woken here, or the
			// notified bit set by the CAS above aborts an in-flight park
			// under the same bucket lock; the wake is consumed exactly
			// once either way.
			p.lot.UnparkOne(p.idleAddress(), idleUnparkCtx{})
			if self != nil {
				self.isWaking = false
			}
			return true
		}

		w := p.newWorker()
		if err := p.cfg.thread.Spawn(p.cfg.stackSize, w.run); err != nil {
			attempts--
			p.cfg.logger.Warn("parkrt: worker spawn failed", "error", err, "attemptsLeft", attempts)
			p.adjustSpawned(-1)
			if attempts <= 0 {
				// The submitted task stays in the global queue; a later
				// successful schedule call will retry. Give up the waking
				// role claimed above so that call can take the wake branch.
				for {
					word := p.idle.LoadAcquire()
					state, notified, idle, spawned := unpackIdleWord(word)
					if state != stateWaking && state != stateWakerNotified {
						break
					}
					if p.idle.CompareAndSwapAcqRel(word, packIdleWord(statePending, notified, idle, spawned)) {
						break
					}
				}
				if self != nil {
					self.isWaking = false
				}
				return true
			}
			selfWaking = true
			backoff.Wait()
			continue
		}
		if self != nil {
			self.isWaking = false
		}
		return true
	}
}

// adjustSpawned applies delta to the spawned counter, retrying under CAS
// contention. Used to roll back the claim a failed spawn left behind.
func (p *Pool) adjustSpawned(delta int32) {
	for {
		word := p.idle.LoadAcquire()
		state, notified, idle, spawned := unpackIdleWord(word)
		next := int32(spawned) + delta
		if next < 0 {
			next = 0
		}
		newWord := packIdleWord(state, notified, idle, uint16(next))
		if p.idle.CompareAndSwapAcqRel(word, newWord) {
			return
		}
	}
}

// trySuspend consumes a pending notification if one landed for this worker,
// otherwise registers the worker idle and parks it on the idle-queue
// address. Returns (stillWaking, ok); ok is false once the pool has shut
// down and this worker should exit its run loop.
func (p *Pool) trySuspend(w *worker) (bool, bool) {
	for {
		word := p.idle.LoadAcquire()
		state, notified, idle, spawned := unpackIdleWord(word)

		if state == stateShutdown {
			newWord := packIdleWord(stateShutdown, notified, idle, spawned-1)
			if !p.idle.CompareAndSwapAcqRel(word, newWord) {
				continue
			}
			p.lot.UnparkAll(p.idleAddress())
			p.quiesce(w)
			return false, false
		}

		isNotified := state == stateNotified || (state == stateWakerNotified && w.isWaking)
		if isNotified {
			var newState poolState
			if w.isWaking {
				newState = stateWaking
			} else {
				newState = statePending
			}
			newWord := packIdleWord(newState, notified, idle, spawned)
			if !p.idle.CompareAndSwapAcqRel(word, newWord) {
				continue
			}
			return w.isWaking, true
		}

		newState := state
		if w.isWaking {
			// The waking role is being given up, and the idle slot this
			// worker is about to occupy re-arms the wake path, so the
			// state returns to pending.
			newState = statePending
		}
		newWord := packIdleWord(newState, notified, idle+1, spawned)
		if !p.idle.CompareAndSwapAcqRel(word, newWord) {
			continue
		}

		w.isWaking = false
		if !p.idleWait() {
			continue
		}
		// A resume targeted this worker: it returns holding the waking
		// role the resumer's CAS installed on its behalf.
		return true, true
	}
}

// idleWait parks the calling worker on the pool's idle-queue address until
// a resume posts the notified bit, consuming the bit on the way out.
// Returns false once shutdown is observed instead of a notification.
func (p *Pool) idleWait() bool {
	for {
		word := p.idle.LoadAcquire()
		state, notified, idle, spawned := unpackIdleWord(word)
		if state == stateShutdown {
			return false
		}
		if notified {
			if !p.idle.CompareAndSwapAcqRel(word, packIdleWord(state, false, idle, spawned)) {
				continue
			}
			return true
		}
		p.lot.ParkConditionally(p.idleAddress(), NoDeadline, idleWaitCtx{p: p})
	}
}

// idleWaitCtx validates an idle park: abort rather than sleep when the pool
// has shut down or a wake was posted before this worker finished queueing.
// The validation runs under the same bucket lock tryResume's UnparkOne
// takes, so a resumer that found nobody parked is guaranteed this worker
// sees its notified bit.
type idleWaitCtx struct{ p *Pool }

func (c idleWaitCtx) OnValidate() (any, bool) {
	state, notified, _, _ := unpackIdleWord(c.p.idle.LoadAcquire())
	return nil, state != stateShutdown && !notified
}
func (idleWaitCtx) OnBeforeWait()       {}
func (idleWaitCtx) OnTimeout(any, bool) {}

// quiesce is the two-phase shutdown barrier: the root worker (the one
// registered first, at the tail of the active list) waits for every worker
// to retire, then posts the notified bit and broadcasts, releasing the
// non-root workers still parked on the idle address. The last worker to
// decrement spawned has already broadcast from trySuspend, so the waiting
// root cannot miss the final retirement. This keeps the pool reachable
// until no worker goroutine references it.
func (p *Pool) quiesce(w *worker) {
	addr := p.idleAddress()
	if w.activeNext.Load() != nil {
		for {
			_, notified, _, _ := unpackIdleWord(p.idle.LoadAcquire())
			if notified {
				return
			}
			p.lot.ParkConditionally(addr, NoDeadline, quiesceReleaseCtx{p: p})
		}
	}

	for {
		_, _, _, spawned := unpackIdleWord(p.idle.LoadAcquire())
		if spawned == 0 {
			break
		}
		p.lot.ParkConditionally(addr, NoDeadline, quiesceRootCtx{p: p})
	}
	p.postQuiesceRelease()
	p.lot.UnparkAll(addr)
	p.closeDone()
}

// postQuiesceRelease sets the notified bit after the root worker has seen
// every worker retire. Past this point the bit means "quiescence complete",
// never a wake: tryResume stopped setting it the moment the state became
// shutdown.
func (p *Pool) postQuiesceRelease() {
	for {
		word := p.idle.LoadAcquire()
		state, _, idle, spawned := unpackIdleWord(word)
		if p.idle.CompareAndSwapAcqRel(word, packIdleWord(state, true, idle, spawned)) {
			return
		}
	}
}

// quiesceRootCtx parks the root worker until the spawned count drains.
type quiesceRootCtx struct{ p *Pool }

func (c quiesceRootCtx) OnValidate() (any, bool) {
	_, _, _, spawned := unpackIdleWord(c.p.idle.LoadAcquire())
	return nil, spawned != 0
}
func (quiesceRootCtx) OnBeforeWait()       {}
func (quiesceRootCtx) OnTimeout(any, bool) {}

// quiesceReleaseCtx parks a non-root worker until the root posts the
// release notification.
type quiesceReleaseCtx struct{ p *Pool }

func (c quiesceReleaseCtx) OnValidate() (any, bool) {
	_, notified, _, _ := unpackIdleWord(c.p.idle.LoadAcquire())
	return nil, !notified
}
func (quiesceReleaseCtx) OnBeforeWait()       {}
func (quiesceReleaseCtx) OnTimeout(any, bool) {}

// newWorker allocates a worker holding the waking role its spawner's CAS
// already claimed. The worker registers itself on the active list from its
// own goroutine, so a spawn that fails never leaves a dead node there.
func (p *Pool) newWorker() *worker {
	return &worker{pool: p, isWaking: true, overflow: newUnboundedRunQueue()}
}

// register prepends w to the pool's active list. No node is ever removed
// during normal operation, so the first worker ever registered ends up last
// when walking activeNext, identifying it as the quiescence root.
func (p *Pool) register(w *worker) {
	for {
		head := p.activeHead.Load()
		w.activeNext.Store(head)
		if p.activeHead.CompareAndSwap(head, w) {
			return
		}
	}
}

type idleUnparkCtx struct{}

func (idleUnparkCtx) OnUnpark(UnparkResult) any { return nil }
