// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package parkrt

import (
	"sync"
	"testing"
	"time"
)

// timeoutRecordingCtx records the arguments OnTimeout was called with.
type timeoutRecordingCtx struct {
	mu       sync.Mutex
	token    any
	hasMore  bool
	timedOut bool
}

func (c *timeoutRecordingCtx) OnValidate() (any, bool) { return "park-token", true }
func (c *timeoutRecordingCtx) OnBeforeWait()           {}
func (c *timeoutRecordingCtx) OnTimeout(token any, hasMore bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
	c.hasMore = hasMore
	c.timedOut = true
}

// TestParkTimeout: a lone parker with a short deadline and
// no unparker times out, with onTimeout observing has_more=false.
func TestParkTimeout(t *testing.T) {
	lot := NewParkingLot(SystemClock{})
	address := Address(1)

	ctx := &timeoutRecordingCtx{}
	start := time.Now()
	deadline := lot.clock.Nanotime() + uint64(time.Millisecond)
	_, err := lot.ParkConditionally(address, &deadline, ctx)
	elapsed := time.Since(start)

	if err != ErrTimedOut {
		t.Fatalf("got err %v, want ErrTimedOut", err)
	}
	if elapsed < time.Millisecond {
		t.Fatalf("returned after %v, want >= 1ms", elapsed)
	}

	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	if !ctx.timedOut {
		t.Fatalf("OnTimeout was never called")
	}
	if ctx.token != "park-token" {
		t.Fatalf("OnTimeout token = %v, want park-token", ctx.token)
	}
	if ctx.hasMore {
		t.Fatalf("OnTimeout hasMore = true, want false (lone waiter)")
	}
}

// TestTimeoutUnparkRaceReturnsUnparked checks that if an
// unparker wins the race against an expiring deadline, the park call
// returns unparked with the unparker's token rather than timed out.
func TestTimeoutUnparkRaceReturnsUnparked(t *testing.T) {
	lot := NewParkingLot(SystemClock{})
	address := Address(2)

	for i := 0; i < 50; i++ {
		queued := make(chan struct{})
		resultCh := make(chan struct {
			res ParkResult
			err error
		}, 1)

		deadline := lot.clock.Nanotime() + uint64(500*time.Microsecond)
		go func() {
			ctx := orderedParkerCtx{onInsert: func() { close(queued) }}
			r, err := lot.ParkConditionally(address, &deadline, ctx)
			resultCh <- struct {
				res ParkResult
				err error
			}{r, err}
		}()
		<-queued

		// Race an unpark against the deadline; whichever wins, the
		// contract must hold: either timed_out (no token delivered to
		// this unparker), or unparked with exactly this token.
		result := lot.UnparkOne(address, fixedUnparkerCtx{token: 42})

		out := <-resultCh
		if result.HasToken {
			if out.err != nil {
				t.Fatalf("iteration %d: unparker dequeued a waiter but park returned err %v", i, out.err)
			}
			if out.res.Token != 42 {
				t.Fatalf("iteration %d: park returned token %v, want 42", i, out.res.Token)
			}
		} else if out.err != ErrTimedOut {
			t.Fatalf("iteration %d: unparker found nobody but park returned %v, %v", i, out.res, out.err)
		}
	}
}
