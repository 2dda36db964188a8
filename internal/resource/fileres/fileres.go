// Package fileres implements a file-log resource, ported from
// original_source/edgeless_node/src/resources/file_log.rs: every cast/call
// payload delivered to an instance is appended to its configured file.
package fileres

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/edgeless-project/edgeless/internal/dataplane"
	"github.com/edgeless-project/edgeless/internal/ids"
	"github.com/edgeless-project/edgeless/internal/model"
	"github.com/edgeless-project/edgeless/internal/obs/logger"
	"github.com/edgeless-project/edgeless/internal/resource"
)

// Provider implements resource.Provider for the file-log class.
type Provider struct {
	mu        sync.Mutex
	chain     *dataplane.LocalLink
	providerID ids.InstanceId
	log       *logger.Logger
	instances map[ids.InstanceId]*instance
}

type instance struct {
	cancel context.CancelFunc
}

// New creates a file-log Provider that registers its instances' inbound
// queues on local.
func New(local *dataplane.LocalLink, providerID ids.InstanceId, log *logger.Logger) *Provider {
	return &Provider{
		chain:      local,
		providerID: providerID,
		log:        log,
		instances:  make(map[ids.InstanceId]*instance),
	}
}

func (p *Provider) ClassType() model.ClassType { return model.ClassFileLog }

// Start opens (creating if absent) the file named by spec.Configuration["file"]
// and begins appending every event delivered to the new instance.
func (p *Provider) Start(ctx context.Context, lid ids.ComponentId, spec resource.InstanceSpec) (ids.InstanceId, error) {
	path, ok := spec.Configuration["file"]
	if !ok || path == "" {
		return ids.InstanceId{}, fmt.Errorf("fileres: missing 'file' configuration")
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return ids.InstanceId{}, fmt.Errorf("fileres: open %s: %w", path, err)
	}

	id := ids.InstanceId{NodeId: p.providerID.NodeId, ComponentId: lid}
	inbox := p.chain.Register(lid)

	runCtx, cancel := context.WithCancel(context.Background())
	go func() {
		defer f.Close()
		for {
			select {
			case <-runCtx.Done():
				return
			case ev, ok := <-inbox:
				if !ok {
					return
				}
				if _, err := f.Write(append(ev.Data, '\n')); err != nil {
					p.log.Error("fileres: write failed", "path", path, "error", err)
				}
			}
		}
	}()

	p.mu.Lock()
	p.instances[id] = &instance{cancel: cancel}
	p.mu.Unlock()

	return id, nil
}

// Patch is a no-op: a file-log resource exposes no output channels.
func (p *Provider) Patch(ctx context.Context, instance ids.InstanceId, outputMapping map[string]ids.InstanceId) error {
	return nil
}

// Stop cancels the writer goroutine and deregisters the instance's queue.
func (p *Provider) Stop(ctx context.Context, id ids.InstanceId) error {
	p.mu.Lock()
	inst, ok := p.instances[id]
	delete(p.instances, id)
	p.mu.Unlock()
	if !ok {
		return nil
	}
	inst.cancel()
	p.chain.Deregister(id.ComponentId)
	return nil
}
