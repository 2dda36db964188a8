// Package instance implements the FunctionInstance contract of spec.md
// §5: instantiate/init/cast/call/stop, dispatched one task at a time per
// instance and concurrently across instances, adapted from the teacher's
// supervisor package (one goroutine per run, ticker-driven lifecycle).
package instance

import (
	"context"

	"github.com/edgeless-project/edgeless/internal/ids"
	"github.com/edgeless-project/edgeless/internal/model"
)

// FunctionInstance is the contract every sandboxed function must satisfy.
// Concrete sandbox technologies (WASM, container, native) are out of scope
// (spec.md §1 Non-goals); this package only defines and dispatches the
// contract.
type FunctionInstance interface {
	// Instantiate prepares the instance from its class spec, before Init.
	Instantiate(ctx context.Context, spec model.FunctionClassSpec) error
	// Init runs the guest's init entrypoint with the payload from the
	// workflow's function spec.
	Init(ctx context.Context, payload []byte) error
	// Cast delivers a fire-and-forget message on the given source channel.
	Cast(ctx context.Context, source string, data []byte) error
	// Call delivers a request/reply message and returns the guest's reply.
	Call(ctx context.Context, source string, data []byte) ([]byte, error)
	// Stop tears the instance down; ExitStatus records why.
	Stop(ctx context.Context) error
}

type task func() (data []byte, err error)

type job struct {
	run   task
	reply chan jobResult
}

type jobResult struct {
	data []byte
	err  error
}

// Runner serializes all work for one FunctionInstance onto a single
// goroutine (spec.md §9 "Coroutine control flow": one task per component),
// while distinct Runners proceed concurrently.
type Runner struct {
	id       ids.InstanceId
	instance FunctionInstance
	inbox    chan job
	emit     func(model.TelemetryEvent)
	done     chan struct{}
}

// NewRunner starts a Runner for instance id, emitting telemetry via emit.
func NewRunner(id ids.InstanceId, inst FunctionInstance, emit func(model.TelemetryEvent)) *Runner {
	r := &Runner{
		id:       id,
		instance: inst,
		inbox:    make(chan job, 64),
		emit:     emit,
		done:     make(chan struct{}),
	}
	go r.loop()
	return r
}

func (r *Runner) loop() {
	defer close(r.done)
	for j := range r.inbox {
		data, err := j.run()
		r.reportExit(err)
		j.reply <- jobResult{data: data, err: err}
	}
}

func (r *Runner) reportExit(err error) {
	if err == nil || r.emit == nil {
		return
	}
	r.emit(model.TelemetryEvent{
		Type:       model.FunctionExit,
		InstanceId: r.id,
		Detail: map[string]any{
			"status": model.ExitCodeError,
			"error":  err.Error(),
		},
	})
}

// enqueue submits run to the serial loop and waits for its result, honoring
// ctx on both the submit and the wait side.
func (r *Runner) enqueue(ctx context.Context, run task) ([]byte, error) {
	j := job{run: run, reply: make(chan jobResult, 1)}
	select {
	case r.inbox <- j:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case res := <-j.reply:
		return res.data, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Cast enqueues a cast and waits for it to be dispatched serially.
func (r *Runner) Cast(ctx context.Context, source string, data []byte) error {
	_, err := r.enqueue(ctx, func() ([]byte, error) {
		return nil, r.instance.Cast(context.Background(), source, data)
	})
	return err
}

// Call enqueues a call and returns the guest's reply once dispatched.
func (r *Runner) Call(ctx context.Context, source string, data []byte) ([]byte, error) {
	return r.enqueue(ctx, func() ([]byte, error) {
		return r.instance.Call(context.Background(), source, data)
	})
}

// Stop requests a graceful shutdown, then closes the inbox so the loop
// goroutine exits once the stop job has run.
func (r *Runner) Stop(ctx context.Context) error {
	_, err := r.enqueue(ctx, func() ([]byte, error) {
		return nil, r.instance.Stop(context.Background())
	})
	close(r.inbox)
	<-r.done
	return err
}
