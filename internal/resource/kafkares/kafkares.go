// Package kafkares registers the kafka-egress class type without shipping a
// broker client: every delivered event is logged with its configured topic
// instead of being published, matching the teacher's own
// queue.Type == "kafka" case in common/queue, which is also unimplemented.
// No Kafka client library is available in the retrieved example corpus
// (SPEC_FULL.md §12); wiring one in is future work.
package kafkares

import (
	"context"
	"fmt"
	"sync"

	"github.com/edgeless-project/edgeless/internal/dataplane"
	"github.com/edgeless-project/edgeless/internal/ids"
	"github.com/edgeless-project/edgeless/internal/model"
	"github.com/edgeless-project/edgeless/internal/obs/logger"
	"github.com/edgeless-project/edgeless/internal/resource"
)

// Provider implements resource.Provider for the kafka-egress class.
type Provider struct {
	mu         sync.Mutex
	local      *dataplane.LocalLink
	router     *dataplane.Router
	providerID ids.InstanceId
	log        *logger.Logger
	instances  map[ids.InstanceId]context.CancelFunc
}

// New creates a kafkares Provider.
func New(local *dataplane.LocalLink, router *dataplane.Router, providerID ids.InstanceId, log *logger.Logger) *Provider {
	return &Provider{
		local:      local,
		router:     router,
		providerID: providerID,
		log:        log,
		instances:  make(map[ids.InstanceId]context.CancelFunc),
	}
}

func (p *Provider) ClassType() model.ClassType { return model.ClassKafkaEgress }

// Start begins logging every delivered event's payload under the
// configured topic in lieu of publishing it to a broker.
func (p *Provider) Start(ctx context.Context, lid ids.ComponentId, spec resource.InstanceSpec) (ids.InstanceId, error) {
	topic, hasTopic := spec.Configuration["topic"]
	if !hasTopic {
		return ids.InstanceId{}, fmt.Errorf("kafkares: 'topic' is missing")
	}

	id := ids.InstanceId{NodeId: p.providerID.NodeId, ComponentId: lid}
	inbox := p.local.Register(lid)

	runCtx, cancel := context.WithCancel(context.Background())
	go func() {
		for {
			select {
			case <-runCtx.Done():
				return
			case ev, ok := <-inbox:
				if !ok {
					return
				}
				p.log.Warn("kafkares: no broker configured, dropping message", "topic", topic, "bytes", len(ev.Data))
				if ev.Kind == model.EventCall {
					p.router.DeliverReply(model.Event{
						Source:   id,
						StreamId: ev.StreamId,
						Kind:     model.EventCallRet,
						Data:     []byte(""),
					})
				}
			}
		}
	}()

	p.mu.Lock()
	p.instances[id] = cancel
	p.mu.Unlock()

	return id, nil
}

// Patch is a no-op: a kafka-egress resource exposes no output channels.
func (p *Provider) Patch(ctx context.Context, instance ids.InstanceId, outputMapping map[string]ids.InstanceId) error {
	return nil
}

// Stop cancels the instance's logging goroutine and deregisters its queue.
func (p *Provider) Stop(ctx context.Context, id ids.InstanceId) error {
	p.mu.Lock()
	cancel, ok := p.instances[id]
	delete(p.instances, id)
	p.mu.Unlock()
	if !ok {
		return nil
	}
	cancel()
	p.local.Deregister(id.ComponentId)
	return nil
}
