// Package httpres implements an HTTP-egress resource, ported from
// original_source/edgeless_node/src/resources/http_poster.rs: a call/cast
// delivered to an instance is forwarded as an outbound HTTP request,
// reusing the SSRF/protocol/path validators the teacher wrote for its own
// HTTP worker.
package httpres

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/edgeless-project/edgeless/cmd/http-worker/security"
	"github.com/edgeless-project/edgeless/internal/dataplane"
	"github.com/edgeless-project/edgeless/internal/ids"
	"github.com/edgeless-project/edgeless/internal/model"
	"github.com/edgeless-project/edgeless/internal/obs/logger"
	"github.com/edgeless-project/edgeless/internal/resource"
)

// Provider implements resource.Provider for the http-egress class.
type Provider struct {
	mu         sync.Mutex
	local      *dataplane.LocalLink
	router     *dataplane.Router
	providerID ids.InstanceId
	log        *logger.Logger
	validator  *security.URLValidator
	client     *http.Client
	instances  map[ids.InstanceId]context.CancelFunc
}

// New creates an http-egress Provider.
func New(local *dataplane.LocalLink, router *dataplane.Router, providerID ids.InstanceId, log *logger.Logger) *Provider {
	return &Provider{
		local:      local,
		router:     router,
		providerID: providerID,
		log:        log,
		validator:  security.NewURLValidator(),
		client:     &http.Client{Timeout: 30 * time.Second},
		instances:  make(map[ids.InstanceId]context.CancelFunc),
	}
}

func (p *Provider) ClassType() model.ClassType { return model.ClassHTTPEgress }

// Start validates the configured target URL/method up front and begins
// posting every delivered event's payload to it.
func (p *Provider) Start(ctx context.Context, lid ids.ComponentId, spec resource.InstanceSpec) (ids.InstanceId, error) {
	url, ok := spec.Configuration["url"]
	if !ok || url == "" {
		return ids.InstanceId{}, fmt.Errorf("httpres: missing 'url' configuration")
	}
	if err := p.validator.Validate(url); err != nil {
		return ids.InstanceId{}, fmt.Errorf("httpres: %w", err)
	}
	method := spec.Configuration["method"]
	if method == "" {
		method = http.MethodPost
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
				status, body, err := p.post(runCtx, method, url, ev.Data)
				if err != nil {
					p.log.Error("httpres: request failed", "url", url, "error", err)
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
				_ = status
			}
		}
	}()

	p.mu.Lock()
	p.instances[id] = cancel
	p.mu.Unlock()

	return id, nil
}

func (p *Provider) post(ctx context.Context, method, url string, payload []byte) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, body, nil
}

// Patch is a no-op: an http-egress resource exposes no output channels.
func (p *Provider) Patch(ctx context.Context, instance ids.InstanceId, outputMapping map[string]ids.InstanceId) error {
	return nil
}

// Stop cancels the instance's request loop and deregisters its queue.
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
