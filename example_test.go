// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package parkrt_test

import (
	"fmt"
	"unsafe"

	"code.hybscloud.com/parkrt"
)

// alwaysValidCtx is a minimal ParkerContext for examples that don't need
// validation or timeout behavior.
type alwaysValidCtx struct{ token any }

func (c alwaysValidCtx) OnValidate() (any, bool) { return c.token, true }
func (c alwaysValidCtx) OnBeforeWait()           {}
func (c alwaysValidCtx) OnTimeout(any, bool)     {}

type fixedTokenCtx struct{ token any }

func (c fixedTokenCtx) OnUnpark(parkrt.UnparkResult) any { return c.token }

// ExampleParkConditionally demonstrates a single park/unpark round trip,
// including the token hand-off from unparker to parker.
func ExampleParkConditionally() {
	var addr int32
	address := uintptr(unsafe.Pointer(&addr))

	queued := make(chan struct{})
	resultCh := make(chan parkrt.ParkResult, 1)
	go func() {
		ctx := queuedCtx{onInsert: func() { close(queued) }}
		result, err := parkrt.ParkConditionally(address, parkrt.NoDeadline, ctx)
		if err != nil {
			fmt.Println("park error:", err)
			return
		}
		resultCh <- result
	}()
	<-queued

	parkrt.UnparkOne(address, fixedTokenCtx{token: "delivered"})
	result := <-resultCh
	fmt.Println(result.Token)
	// Output:
	// delivered
}

type queuedCtx struct{ onInsert func() }

func (c queuedCtx) OnValidate() (any, bool) { return nil, true }
func (c queuedCtx) OnBeforeWait()           { c.onInsert() }
func (c queuedCtx) OnTimeout(any, bool)     {}

// ExamplePool demonstrates submitting a task and waiting for it to finish.
func ExamplePool() {
	pool := parkrt.NewPoolBuilder().MaxThreads(2).Build()
	done := make(chan struct{})

	err := pool.Schedule(parkrt.NewTask(func() {
		fmt.Println("hello from a worker")
		close(done)
	}))
	if err != nil {
		fmt.Println("schedule error:", err)
		return
	}

	<-done
	pool.Shutdown()
	pool.Wait()
	// Output:
	// hello from a worker
}
