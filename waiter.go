// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package parkrt

// Address is the parking lot's key type: an opaque machine word, typically
// the address of a synchronization object. Any stable, distinct value
// works — callers commonly pass uintptr(unsafe.Pointer(&obj)).
type Address = uintptr

// waiter is an intrusive FIFO node, live only for the duration of one
// [ParkConditionally] call: constructed on the caller's stack-equivalent
// (a local variable) at entry, inserted under the bucket lock, and unlinked
// before the call returns. No waiter outlives its park call — insertion
// happens-before dequeue or timeout-removal, and the call does not return
// until one of those occurs.
//
// prev/next link the waiter into its address's FIFO sub-queue; there is no
// separate per-waiter PRNG/timeout field because, in this module, those
// belong to the subQueue object itself rather than migrating between
// waiters on head rotation — see SPEC_FULL.md §3 for why that is an equivalent,
// simpler rendering of the same invariant.
type waiter struct {
	token   any
	address Address
	prev    *waiter
	next    *waiter
	wake    func()
}

// xorshift16 advances a 16-bit xorshift generator. Used by subQueue's
// fairness PRNG.
func xorshift16(x uint16) uint16 {
	x ^= x << 7
	x ^= x >> 9
	x ^= x << 8
	return x
}

// seedFromAddress derives an initial PRNG seed from an address's low 16
// bits, forced odd so distinct bucket sub-queues start from different,
// non-degenerate xorshift states.
func seedFromAddress(addr Address) uint16 {
	s := uint16(addr) | 1
	return s
}
