// Package devctx implements the device-context capability: a single
// dedicated thread that owns device-BO lifecycle and GPU-side uploads,
// reached from the application thread only through a single
// dispatch(context, fn, obj) primitive rather than ad-hoc queues. An
// OS-thread-locked goroutine drains a function channel, with a dedicated
// async Dispatch entry point for the destroy-job use case.
package devctx

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// Context is a dedicated OS thread that serializes all device-BO lifecycle
// and GPU-side upload work. The application thread (residency, backend)
// reaches it only through Call/CallVoid (synchronous) or Dispatch
// (fire-and-forget), never by touching device state directly.
type Context struct {
	funcs   chan func()
	done    chan struct{}
	running atomic.Bool
}

// New starts a Context on a freshly locked OS thread.
func New() *Context {
	c := &Context{
		funcs: make(chan func(), 64),
		done:  make(chan struct{}),
	}
	c.running.Store(true)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		wg.Done()
		for {
			select {
			case f := <-c.funcs:
				f()
			case <-c.done:
				return
			}
		}
	}()
	wg.Wait()
	return c
}

// Call runs f on the context thread and blocks for its result, so the
// caller observes a happens-before relation with everything previously
// dispatched.
func (c *Context) Call(f func() any) any {
	if !c.running.Load() {
		return nil
	}
	result := make(chan any, 1)
	c.funcs <- func() { result <- f() }
	return <-result
}

// CallVoid is Call without a return value.
func (c *Context) CallVoid(f func()) {
	if !c.running.Load() {
		return
	}
	done := make(chan struct{})
	c.funcs <- func() {
		f()
		close(done)
	}
	<-done
}

// Dispatch enqueues fn(obj) onto the context thread without waiting for
// it to run: the message-passing primitive used for deferred cross-thread
// destruction (the owner is notified first, then the device BO is
// destroyed on the device-context thread). If the queue is momentarily
// full, it falls back to a blocking CallVoid rather than dropping the job
// or deadlocking the caller.
func (c *Context) Dispatch(fn func(obj any), obj any) {
	if !c.running.Load() {
		return
	}
	job := func() { fn(obj) }
	select {
	case c.funcs <- job:
	default:
		c.CallVoid(job)
	}
}

// Stop halts the context thread and stops accepting work; jobs still
// queued when it stops are not guaranteed to run. Safe to call more than
// once.
func (c *Context) Stop() {
	if c.running.Swap(false) {
		close(c.done)
	}
}

// Running reports whether the context thread is still accepting work.
func (c *Context) Running() bool {
	return c.running.Load()
}
