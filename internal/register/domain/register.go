// Package domain implements the controller's domain register: the set of
// domain orchestrators currently subscribed, fed by periodic
// DomainRegistration reports. Structurally identical to register/node's
// nonce/counter/sweep machinery, applied one level up the hierarchy
// (spec.md §7).
package domain

import (
	"context"
	"sync"
	"time"

	"github.com/edgeless-project/edgeless/internal/ids"
	"github.com/edgeless-project/edgeless/internal/model"
	"github.com/edgeless-project/edgeless/internal/obs/logger"
)

type entry struct {
	reg             model.DomainRegistration
	refreshDeadline time.Time
}

// Register tracks live domains.
type Register struct {
	mu      sync.RWMutex
	domains map[ids.DomainId]*entry
	ttl     time.Duration
	log     *logger.Logger
	onLoss  func(ids.DomainId)
}

// New creates a Register. onLoss is invoked (per evicted domain) when a
// domain's refresh deadline passes — the controller's orphan-repair
// trigger (spec.md §7 "domain loss").
func New(ttl time.Duration, log *logger.Logger, onLoss func(ids.DomainId)) *Register {
	return &Register{
		domains: make(map[ids.DomainId]*entry),
		ttl:     ttl,
		log:     log,
		onLoss:  onLoss,
	}
}

// Update applies a domain orchestrator's periodic report, identical
// staleness semantics to register/node.Register.Update.
func (r *Register) Update(reg model.DomainRegistration) model.NodeRegistrationResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.domains[reg.DomainId]
	if ok {
		if reg.Nonce < existing.reg.Nonce {
			return model.RegistrationStale
		}
		if reg.Nonce == existing.reg.Nonce && reg.Counter <= existing.reg.Counter {
			return model.RegistrationStale
		}
		if reg.Nonce > existing.reg.Nonce {
			r.domains[reg.DomainId] = &entry{reg: reg, refreshDeadline: time.Now().Add(r.ttl)}
			return model.RegistrationResetRequired
		}
	}

	r.domains[reg.DomainId] = &entry{reg: reg, refreshDeadline: time.Now().Add(r.ttl)}
	return model.RegistrationAccepted
}

// Get returns the current registration for a domain, if live.
func (r *Register) Get(id ids.DomainId) (model.DomainRegistration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.domains[id]
	if !ok {
		return model.DomainRegistration{}, false
	}
	return e.reg, true
}

// List returns every currently live domain's registration.
func (r *Register) List() []model.DomainRegistration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.DomainRegistration, 0, len(r.domains))
	for _, e := range r.domains {
		out = append(out, e.reg)
	}
	return out
}

// Remove explicitly drops a domain.
func (r *Register) Remove(id ids.DomainId) {
	r.mu.Lock()
	delete(r.domains, id)
	r.mu.Unlock()
}

// Sweep runs a background loop evicting domains past their refresh
// deadline, until ctx is cancelled.
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
	var lost []ids.DomainId

	r.mu.Lock()
	for id, e := range r.domains {
		if now.After(e.refreshDeadline) {
			delete(r.domains, id)
			lost = append(lost, id)
		}
	}
	r.mu.Unlock()

	for _, id := range lost {
		r.log.Warn("domain register: evicting stale domain", "domain_id", string(id))
		if r.onLoss != nil {
			r.onLoss(id)
		}
	}
}
