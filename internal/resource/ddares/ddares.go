// Package ddares implements a thin resource wrapping a DDA (Dynamic Data
// Acquisition) sidecar, ported from the function-level DDA demos under
// original_source/examples/dda_demo and functions/dda_com_test: a resource
// instance forwards cast/call payloads to the sidecar's HTTP endpoint and,
// for calls, returns its response body. No DDA client library is available
// in the example corpus, so the sidecar is addressed over plain HTTP rather
// than its native pub/sub transport.
package ddares

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/edgeless-project/edgeless/internal/dataplane"
	"github.com/edgeless-project/edgeless/internal/ids"
	"github.com/edgeless-project/edgeless/internal/model"
	"github.com/edgeless-project/edgeless/internal/obs/logger"
	"github.com/edgeless-project/edgeless/internal/resource"
)

// Provider implements resource.Provider for the dda class.
type Provider struct {
	mu         sync.Mutex
	local      *dataplane.LocalLink
	router     *dataplane.Router
	providerID ids.InstanceId
	log        *logger.Logger
	client     *http.Client
	instances  map[ids.InstanceId]context.CancelFunc
}

// New creates a dda Provider addressing a sidecar over HTTP.
func New(local *dataplane.LocalLink, router *dataplane.Router, providerID ids.InstanceId, log *logger.Logger) *Provider {
	return &Provider{
		local:      local,
		router:     router,
		providerID: providerID,
		log:        log,
		client:     &http.Client{Timeout: 10 * time.Second},
		instances:  make(map[ids.InstanceId]context.CancelFunc),
	}
}

func (p *Provider) ClassType() model.ClassType { return model.ClassDDA }

// Start begins forwarding every delivered event to the sidecar endpoint
// configured under "com_endpoint".
func (p *Provider) Start(ctx context.Context, lid ids.ComponentId, spec resource.InstanceSpec) (ids.InstanceId, error) {
	endpoint, ok := spec.Configuration["com_endpoint"]
	if !ok || endpoint == "" {
		return ids.InstanceId{}, fmt.Errorf("ddares: missing 'com_endpoint' configuration")
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
				body, err := p.forward(runCtx, endpoint, ev.Data)
				if err != nil {
					p.log.Error("ddares: forward failed", "endpoint", endpoint, "error", err)
				}
				if ev.Kind == model.EventCall {
					reply := body
					if err != nil {
						reply = []byte(err.Error())
					}
					p.router.DeliverReply(model.Event{
						Source:   id,
						StreamId: ev.StreamId,
						Kind:     model.EventCallRet,
						Data:     reply,
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

func (p *Provider) forward(ctx context.Context, endpoint string, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// Patch is a no-op: output channels are not exposed by this resource.
func (p *Provider) Patch(ctx context.Context, instance ids.InstanceId, outputMapping map[string]ids.InstanceId) error {
	return nil
}

// Stop cancels the forwarding loop and deregisters the instance's queue.
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
