// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package parkrt

import "time"

// Clock is the monotonic nanosecond time source the parking lot's fairness
// logic and deadline waits are built on. Implementations must be
// non-decreasing and initialized before the first call.
//
// Clock is an external collaborator: the scheduler and parking lot only
// ever call Nanotime, never construct a Clock themselves beyond the
// [SystemClock] default, so callers may substitute a fake for deterministic
// tests via [PoolBuilder.WithClock].
type Clock interface {
	// Nanotime returns a non-decreasing, monotonic nanosecond timestamp.
	Nanotime() uint64
}

// SystemClock is the default [Clock], backed by the Go runtime's monotonic
// clock reading (itself clock_gettime(CLOCK_MONOTONIC) on Linux, and the
// platform-appropriate monotonic source elsewhere). See DESIGN.md for why
// this is preferred over a direct syscall.
type SystemClock struct{}

// epoch anchors SystemClock's readings; time.Since keeps Go's monotonic
// reading intact as long as both operands came from time.Now().
var epoch = time.Now()

// Nanotime implements [Clock].
func (SystemClock) Nanotime() uint64 {
	return uint64(time.Since(epoch).Nanoseconds())
}
