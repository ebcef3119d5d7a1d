// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package parkrt

import (
	"errors"

	"code.hybscloud.com/iox"
)

// ErrInvalidated is returned by [ParkConditionally] when the caller's
// onValidate predicate fails before the waiter is inserted under the
// bucket lock. The caller proceeds without having blocked.
var ErrInvalidated = errors.New("parkrt: park invalidated")

// ErrTimedOut is returned by [ParkConditionally] when the deadline elapses
// and no unparker dequeued the waiter in the interim.
//
// ErrTimedOut is a control flow signal, not a failure — exactly one of
// ErrTimedOut or a successful unpark occurs per call; see [IsSemantic].
var ErrTimedOut = errors.New("parkrt: park timed out")

// ErrShutdown is returned by [Pool.Schedule] and [Pool.ScheduleBatch] once
// the pool has observed [Pool.Shutdown]. Callers should discard the
// notification rather than treat it as a failure.
var ErrShutdown = errors.New("parkrt: pool shut down")

// IsSemantic reports whether err is a control flow signal rather than a
// failure: [ErrInvalidated], [ErrTimedOut], [ErrShutdown], or anything
// [iox.IsSemantic] already recognizes.
//
// Delegates to [iox.IsSemantic] outside parkrt's own three sentinels, for
// ecosystem consistency with code.hybscloud.com libraries.
func IsSemantic(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidated), errors.Is(err, ErrTimedOut), errors.Is(err, ErrShutdown):
		return true
	default:
		return iox.IsSemantic(err)
	}
}

// IsNonFailure reports whether err represents a non-failure condition: nil,
// one of this package's control flow sentinels, or anything
// [iox.IsNonFailure] already recognizes.
func IsNonFailure(err error) bool {
	return IsSemantic(err) || iox.IsNonFailure(err)
}
