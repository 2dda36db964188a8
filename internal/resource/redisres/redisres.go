// Package redisres implements a Redis-backed resource, ported from
// original_source/edgeless_node/src/resources/redis.rs: every event
// delivered to an instance is SET under its configured key, replying with
// an empty payload for calls.
package redisres

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/edgeless-project/edgeless/internal/dataplane"
	"github.com/edgeless-project/edgeless/internal/ids"
	"github.com/edgeless-project/edgeless/internal/model"
	"github.com/edgeless-project/edgeless/internal/obs/logger"
	"github.com/edgeless-project/edgeless/internal/resource"
)

// Provider implements resource.Provider for the redis class.
type Provider struct {
	mu         sync.Mutex
	local      *dataplane.LocalLink
	router     *dataplane.Router
	providerID ids.InstanceId
	log        *logger.Logger
	instances  map[ids.InstanceId]context.CancelFunc
}

// New creates a redis Provider. router is used to send call replies back
// through the normal dataplane path.
func New(local *dataplane.LocalLink, router *dataplane.Router, providerID ids.InstanceId, log *logger.Logger) *Provider {
	return &Provider{
		local:      local,
		router:     router,
		providerID: providerID,
		log:        log,
		instances:  make(map[ids.InstanceId]context.CancelFunc),
	}
}

func (p *Provider) ClassType() model.ClassType { return model.ClassRedis }

// Start opens a connection to the configured URL and begins SETting every
// delivered event's payload under the configured key.
func (p *Provider) Start(ctx context.Context, lid ids.ComponentId, spec resource.InstanceSpec) (ids.InstanceId, error) {
	url, hasURL := spec.Configuration["url"]
	key, hasKey := spec.Configuration["key"]
	if !hasURL || !hasKey {
		return ids.InstanceId{}, fmt.Errorf("redisres: one of 'url' or 'key' is missing")
	}

	opts, err := redis.ParseURL(url)
	if err != nil {
		return ids.InstanceId{}, fmt.Errorf("redisres: invalid url: %w", err)
	}
	client := redis.NewClient(opts)

	id := ids.InstanceId{NodeId: p.providerID.NodeId, ComponentId: lid}
	inbox := p.local.Register(lid)

	runCtx, cancel := context.WithCancel(context.Background())
	go func() {
		defer client.Close()
		for {
			select {
			case <-runCtx.Done():
				return
			case ev, ok := <-inbox:
				if !ok {
					return
				}
				if err := client.Set(runCtx, key, string(ev.Data), 0).Err(); err != nil {
					p.log.Error("redisres: SET failed", "key", key, "error", err)
				}
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

// Patch is a no-op: a redis resource exposes no output channels.
func (p *Provider) Patch(ctx context.Context, instance ids.InstanceId, outputMapping map[string]ids.InstanceId) error {
	return nil
}

// Stop cancels the instance's connection goroutine and deregisters its queue.
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
