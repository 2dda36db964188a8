package dataplane

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/edgeless-project/edgeless/internal/ids"
	"github.com/edgeless-project/edgeless/internal/model"
	"github.com/edgeless-project/edgeless/internal/obs/logger"
)

// Router implements the three dataplane operations in spec.md §4.1 on top
// of a Chain: cast (fire-and-forget), call (request/reply over a one-shot
// slot) and delayed_cast (timer-scheduled cast). One Router exists per node.
type Router struct {
	self ids.NodeId
	log  *logger.Logger

	chain *Chain

	mu     sync.Mutex
	slots  map[replyKey]*ReplySlot
	nextID uint64

	timerMu sync.Mutex
	timers  []*time.Timer
}

// NewRouter creates a Router for node self, dispatching through chain.
func NewRouter(self ids.NodeId, chain *Chain, log *logger.Logger) *Router {
	return &Router{
		self:  self,
		log:   log,
		chain: chain,
		slots: make(map[replyKey]*ReplySlot),
	}
}

// Cast is fire-and-forget delivery: it returns once some link in the chain
// reports Final, or Error/Ignored if none accepted the event.
func (r *Router) Cast(ctx context.Context, target ids.InstanceId, data []byte) model.LinkProcessingResult {
	ev := model.Event{
		Source: ids.InstanceId{NodeId: r.self},
		Target: target,
		Kind:   model.EventCast,
		Data:   data,
	}
	return r.chain.Offer(ctx, ev)
}

// Call delivers a request event and blocks until a matching reply arrives on
// the (peer, stream_id) slot or the context deadline elapses. A timeout (or
// context cancellation) surfaces as a synthetic EventErr reply carrying the
// context's error text, returned together with ctx.Err(), per spec.md §4.1
// "call" semantics — the caller never blocks forever.
func (r *Router) Call(ctx context.Context, target ids.InstanceId, data []byte) (model.Event, error) {
	streamID := atomic.AddUint64(&r.nextID, 1)
	key := replyKey{peer: target.NodeId, streamID: streamID}

	slot := newReplySlot()
	r.mu.Lock()
	r.slots[key] = slot
	r.mu.Unlock()
	defer r.releaseSlot(key)

	ev := model.Event{
		Source:   ids.InstanceId{NodeId: r.self},
		Target:   target,
		StreamId: streamID,
		Kind:     model.EventCall,
		Data:     data,
	}

	switch result := r.chain.Offer(ctx, ev); result {
	case model.LinkFinal:
		// fall through to wait for reply
	default:
		return model.Event{}, fmt.Errorf("dataplane: call not delivered, chain result %s", result)
	}

	select {
	case reply := <-slot.ch:
		return reply, nil
	case <-ctx.Done():
		return model.Event{
			Source:   target,
			StreamId: streamID,
			Kind:     model.EventErr,
			Data:     []byte(ctx.Err().Error()),
		}, ctx.Err()
	}
}

// DeliverReply routes an inbound CallRet/CallNoRet/Err event to its waiting
// slot, if one is still outstanding. Called by a node's InvocationClient
// server handler when a remote peer replies.
func (r *Router) DeliverReply(ev model.Event) bool {
	key := replyKey{peer: ev.Source.NodeId, streamID: ev.StreamId}
	r.mu.Lock()
	slot, ok := r.slots[key]
	r.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case slot.ch <- ev:
	default:
		// slot already fulfilled or abandoned; drop.
	}
	return true
}

func (r *Router) releaseSlot(key replyKey) {
	r.mu.Lock()
	delete(r.slots, key)
	r.mu.Unlock()
}

// DelayedCast schedules a cast to fire after delay, with no ordering
// guarantee relative to concurrent casts (spec.md §4.1 "delayed_cast").
// Cancelling ctx before the timer fires drops the event silently.
func (r *Router) DelayedCast(ctx context.Context, delay time.Duration, target ids.InstanceId, data []byte) {
	timer := time.AfterFunc(delay, func() {
		if ctx.Err() != nil {
			return
		}
		if result := r.Cast(ctx, target, data); result != model.LinkFinal {
			r.log.Warn("delayed cast not delivered", "target", target.String(), "result", result.String())
		}
	})

	r.timerMu.Lock()
	r.timers = append(r.timers, timer)
	r.timerMu.Unlock()
}

// Close stops all pending delayed_cast timers, ending in-flight obligations
// per spec.md §9 "Coroutine control flow" cancellation semantics.
func (r *Router) Close() {
	r.timerMu.Lock()
	defer r.timerMu.Unlock()
	for _, t := range r.timers {
		t.Stop()
	}
	r.timers = nil

	r.mu.Lock()
	defer r.mu.Unlock()
	for key, slot := range r.slots {
		close(slot.ch)
		delete(r.slots, key)
	}
}
