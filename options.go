// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package parkrt

// PoolConfig configures a [Pool]'s worker lifecycle.
//
//   - MaxThreads defaults to the host CPU count ([DefaultThread.CPUCount]),
//     clamped to at least 1.
//   - StackSize defaults to 1 MiB, clamped to at least 16 KiB. It is
//     forwarded to [Thread.Spawn] as a hint; the default [Thread]
//     implementation ignores it (see thread.go).
type PoolConfig struct {
	maxThreads uint16
	stackSize  uint32
	clock      Clock
	thread     Thread
	logger     logger
}

const (
	minStackSize = 16 * 1024
	defaultStack = 1024 * 1024

	// maxPoolThreads is the largest value the pool's packed idle-queue
	// word can track: idle and spawned are each 14-bit fields.
	maxPoolThreads = 1<<14 - 1
)

// PoolBuilder creates [Pool]s with fluent configuration, mirroring the
// producer/consumer-constraint builder pattern used elsewhere in this
// ecosystem for algorithm selection — here the "algorithm" is fixed
// (work-stealing scheduler) and the builder only gathers sizing knobs and
// optional collaborator overrides.
type PoolBuilder struct {
	cfg PoolConfig
}

// NewPoolBuilder creates a builder seeded with the package defaults:
// MaxThreads = CPU count, StackSize = 1 MiB.
func NewPoolBuilder() *PoolBuilder {
	return &PoolBuilder{cfg: PoolConfig{
		maxThreads: 0, // resolved against CPUCount() in Build
		stackSize:  defaultStack,
		clock:      SystemClock{},
		thread:     DefaultThread{},
		logger:     defaultLogger(),
	}}
}

// MaxThreads sets the maximum number of worker goroutines the pool may
// spawn. 0 selects the default (the [Thread] collaborator's CPU count,
// at least 1); values above 16383 are clamped to 16383.
func (b *PoolBuilder) MaxThreads(n uint16) *PoolBuilder {
	b.cfg.maxThreads = n
	return b
}

// StackSize sets the stack-size hint forwarded to [Thread.Spawn]. Values
// below 16 KiB are clamped up to 16 KiB.
func (b *PoolBuilder) StackSize(n uint32) *PoolBuilder {
	b.cfg.stackSize = n
	return b
}

// WithClock overrides the [Clock] used for fairness deadlines and park
// timeouts. Intended for tests that need deterministic time.
func (b *PoolBuilder) WithClock(c Clock) *PoolBuilder {
	b.cfg.clock = c
	return b
}

// WithThread overrides the [Thread] collaborator used to spawn workers and
// report CPU count. Intended for tests that want synchronous, deterministic
// worker dispatch.
func (b *PoolBuilder) WithThread(t Thread) *PoolBuilder {
	b.cfg.thread = t
	return b
}

// WithLogger overrides the cold-path diagnostic logger. Defaults to
// slog.Default().
func (b *PoolBuilder) WithLogger(l logger) *PoolBuilder {
	b.cfg.logger = l
	return b
}

// Build constructs a [Pool] and starts it with zero initial tasks. The pool
// spawns workers lazily, as [Pool.Schedule] calls arrive.
func (b *PoolBuilder) Build() *Pool {
	cfg := b.cfg
	if cfg.clock == nil {
		cfg.clock = SystemClock{}
	}
	if cfg.thread == nil {
		cfg.thread = DefaultThread{}
	}
	if cfg.logger == nil {
		cfg.logger = defaultLogger()
	}
	if cfg.maxThreads < 1 {
		cfg.maxThreads = uint16(cfg.thread.CPUCount())
		if cfg.maxThreads < 1 {
			cfg.maxThreads = 1
		}
	}
	if cfg.maxThreads > maxPoolThreads {
		cfg.maxThreads = maxPoolThreads
	}
	if cfg.stackSize < minStackSize {
		cfg.stackSize = minStackSize
	}
	return newPool(cfg)
}
