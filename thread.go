// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package parkrt

import "runtime"

// Thread is the execution-context-spawn and CPU-count collaborator the
// pool is built against. The default [DefaultThread] implementation
// spawns a goroutine rather than a raw OS thread — see DESIGN.md for why
// that is the idiomatic Go rendering of this contract.
type Thread interface {
	// Spawn starts entry running on a new execution context. stackSize is
	// a hint, honored only by implementations that manage their own
	// stacks; [DefaultThread] accepts but ignores it.
	Spawn(stackSize uint32, entry func()) error
	// CPUCount reports the number of logical CPUs available, used as the
	// default for [PoolConfig.maxThreads].
	CPUCount() uint16
}

// DefaultThread spawns entries as goroutines and reports CPU count via
// runtime.GOMAXPROCS. Goroutines are already an M:N scheduling abstraction
// over OS threads, so there is no separate "OS thread" knob to expose.
type DefaultThread struct{}

// Spawn implements [Thread]. stackSize is accepted for interface parity
// but intentionally inert: goroutine stacks grow and shrink dynamically,
// so there is no fixed-size knob to wire it to.
func (DefaultThread) Spawn(stackSize uint32, entry func()) error {
	go entry()
	return nil
}

// CPUCount implements [Thread].
func (DefaultThread) CPUCount() uint16 {
	n := runtime.GOMAXPROCS(0)
	if n < 1 {
		n = 1
	}
	if n > 1<<16-1 {
		n = 1<<16 - 1
	}
	return uint16(n)
}
