// Package node implements the node register of spec.md §6: the domain
// orchestrator's view of which nodes are alive, fed by each agent's
// periodic UpdateNodeRequest and swept for nodes that stop refreshing.
// Adapted from the teacher's common/cache.MemoryCache (mutex-guarded map
// with a background cleanup goroutine) and its
// cmd/workflow-runner/supervisor.TimeoutDetector (ticker-driven sweep).
package node

import (
	"context"
	"sync"
	"time"

	"github.com/edgeless-project/edgeless/internal/ids"
	"github.com/edgeless-project/edgeless/internal/model"
	"github.com/edgeless-project/edgeless/internal/obs/logger"
)

type entry struct {
	reg            model.NodeRegistration
	refreshDeadline time.Time
}

// Register tracks live nodes, rejecting stale (nonce, counter) updates and
// evicting nodes whose refresh deadline has passed.
type Register struct {
	mu      sync.RWMutex
	nodes   map[ids.NodeId]*entry
	ttl     time.Duration
	log     *logger.Logger
	onEvict func(ids.NodeId)
}

// New creates a Register. ttl is how long a node's last update remains
// valid before it is considered gone; onEvict, if non-nil, is called (off
// the sweeper goroutine's own lock) whenever a node is evicted.
func New(ttl time.Duration, log *logger.Logger, onEvict func(ids.NodeId)) *Register {
	return &Register{
		nodes:   make(map[ids.NodeId]*entry),
		ttl:     ttl,
		log:     log,
		onEvict: onEvict,
	}
}

// Update applies an agent's periodic registration report. It rejects
// updates whose nonce is lower than the remembered one (an old agent
// process still chattering after a restart), and within a nonce, updates
// whose counter does not strictly increase.
func (r *Register) Update(reg model.NodeRegistration) model.NodeRegistrationResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.nodes[reg.NodeId]
	if ok {
		if reg.Nonce < existing.reg.Nonce {
			return model.RegistrationStale
		}
		if reg.Nonce == existing.reg.Nonce && reg.Counter <= existing.reg.Counter {
			return model.RegistrationStale
		}
		if reg.Nonce > existing.reg.Nonce {
			// New agent lifetime: the register's subscribers must treat
			// this as a full reset of what they know about the node.
			r.nodes[reg.NodeId] = &entry{reg: reg, refreshDeadline: time.Now().Add(r.ttl)}
			return model.RegistrationResetRequired
		}
	}

	r.nodes[reg.NodeId] = &entry{reg: reg, refreshDeadline: time.Now().Add(r.ttl)}
	return model.RegistrationAccepted
}

// Get returns the current registration for a node, if live.
func (r *Register) Get(id ids.NodeId) (model.NodeRegistration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.nodes[id]
	if !ok {
		return model.NodeRegistration{}, false
	}
	return e.reg, true
}

// List returns every currently live node's registration.
func (r *Register) List() []model.NodeRegistration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.NodeRegistration, 0, len(r.nodes))
	for _, e := range r.nodes {
		out = append(out, e.reg)
	}
	return out
}

// Remove explicitly drops a node, e.g. on a clean agent shutdown.
func (r *Register) Remove(id ids.NodeId) {
	r.mu.Lock()
	delete(r.nodes, id)
	r.mu.Unlock()
}

// Sweep runs a background loop evicting nodes whose refresh deadline has
// passed, until ctx is cancelled.
func (r *Register) Sweep(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweepOnce()
		}
	}
}

func (r *Register) sweepOnce() {
	now := time.Now()
	var evicted []ids.NodeId

	r.mu.Lock()
	for id, e := range r.nodes {
		if now.After(e.refreshDeadline) {
			delete(r.nodes, id)
			evicted = append(evicted, id)
		}
	}
	r.mu.Unlock()

	for _, id := range evicted {
		r.log.Warn("node register: evicting stale node", "node_id", id.String())
		if r.onEvict != nil {
			r.onEvict(id)
		}
	}
}
