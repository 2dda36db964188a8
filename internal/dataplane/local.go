package dataplane

import (
	"context"
	"sync"

	"github.com/edgeless-project/edgeless/internal/ids"
	"github.com/edgeless-project/edgeless/internal/model"
	"github.com/edgeless-project/edgeless/internal/obs/logger"
)

// LocalLink routes an event to a component resident on this node. It
// generalizes the teacher's common/queue.MemoryQueue: topics become
// ComponentIds and messages become dataplane Events, but the
// per-topic-buffered-channel-plus-mutex shape is unchanged.
type LocalLink struct {
	mu     sync.RWMutex
	queues map[ids.ComponentId]chan model.Event
	self   ids.NodeId
	log    *logger.Logger
}

// NewLocalLink creates a LocalLink for the given node.
func NewLocalLink(self ids.NodeId, log *logger.Logger) *LocalLink {
	return &LocalLink{
		queues: make(map[ids.ComponentId]chan model.Event),
		self:   self,
		log:    log,
	}
}

// Register creates (or returns the existing) inbound queue for a local
// component instance, with the fixed 1000-deep buffer the teacher used for
// its topic channels.
func (l *LocalLink) Register(id ids.ComponentId) <-chan model.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.queues[id]
	if !ok {
		ch = make(chan model.Event, 1000)
		l.queues[id] = ch
	}
	return ch
}

// Deregister removes a component's inbound queue and closes it. Per
// spec.md §4.1 "Failure", dead writer channels are evicted lazily on a
// failed send elsewhere, but an explicit stop always removes eagerly.
func (l *LocalLink) Deregister(id ids.ComponentId) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if ch, ok := l.queues[id]; ok {
		close(ch)
		delete(l.queues, id)
	}
}

// HandleCast implements Link: delivers to a local queue if target.NodeId is
// this node and the component is registered, otherwise Passed.
func (l *LocalLink) HandleCast(ctx context.Context, ev model.Event) model.LinkProcessingResult {
	if ev.Target.NodeId != l.self {
		return model.LinkPassed
	}

	l.mu.RLock()
	ch, ok := l.queues[ev.Target.ComponentId]
	l.mu.RUnlock()

	if !ok {
		return model.LinkIgnored
	}

	select {
	case ch <- ev:
		return model.LinkFinal
	case <-ctx.Done():
		return model.LinkError
	default:
		// Channel full and closed-writer eviction: treat as dead and evict.
		l.mu.Lock()
		delete(l.queues, ev.Target.ComponentId)
		l.mu.Unlock()
		l.log.Warn("local dataplane queue full, evicting", "component_id", ev.Target.ComponentId.String())
		return model.LinkError
	}
}
