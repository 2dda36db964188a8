// Package guestapi implements the GuestAPIHost contract of spec.md §5: the
// callback surface a running function instance uses to talk back to its
// node's dataplane, keyed by output channel alias rather than raw
// InstanceId, adapted from the teacher's cmd/fanout hub (a per-client
// registration table guarding concurrent broadcast).
package guestapi

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/edgeless-project/edgeless/internal/dataplane"
	"github.com/edgeless-project/edgeless/internal/ids"
	"github.com/edgeless-project/edgeless/internal/model"
)

// SelfAlias is the reserved output alias every function may cast/call on to
// reach itself, per spec.md §5.
const SelfAlias = "self"

// ErrUnknownAlias is returned when a function references an output alias
// that has no binding in its alias table.
var ErrUnknownAlias = fmt.Errorf("guestapi: unknown alias")

// Host bundles the router and state access a single function instance needs
// to satisfy GuestAPIHost, resolving its own output aliases to InstanceIds.
type Host struct {
	mu      sync.RWMutex
	self    ids.InstanceId
	aliases map[string]ids.InstanceId
	router  *dataplane.Router
	emit    func(model.TelemetryEvent)
	sync    StateSyncer
}

// StateSyncer persists a guest's `sync` writes; see runtime/state.
type StateSyncer interface {
	Sync(ctx context.Context, instance ids.InstanceId, state []byte) error
}

// NewHost creates a Host for a function instance with its initial output
// alias table (the resolved mapping from SpawnRequest output_mapping, per
// spec.md §3).
func NewHost(self ids.InstanceId, router *dataplane.Router, emit func(model.TelemetryEvent), sync StateSyncer) *Host {
	return &Host{
		self:    self,
		aliases: make(map[string]ids.InstanceId),
		router:  router,
		emit:    emit,
		sync:    sync,
	}
}

// Bind registers or updates the InstanceId an alias resolves to, used by
// the agent when the orchestrator patches this instance's output_mapping.
func (h *Host) Bind(alias string, target ids.InstanceId) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.aliases[alias] = target
}

// Unbind drops an alias, e.g. when a patch removes an output edge.
func (h *Host) Unbind(alias string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.aliases, alias)
}

func (h *Host) resolve(alias string) (ids.InstanceId, error) {
	if alias == SelfAlias {
		return h.self, nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	target, ok := h.aliases[alias]
	if !ok {
		return ids.InstanceId{}, fmt.Errorf("%w: %q", ErrUnknownAlias, alias)
	}
	return target, nil
}

// CastAlias sends a fire-and-forget message to the instance bound to alias.
func (h *Host) CastAlias(ctx context.Context, alias string, data []byte) error {
	target, err := h.resolve(alias)
	if err != nil {
		return err
	}
	return h.CastRaw(ctx, target, data)
}

// CallAlias sends a request/reply message to the instance bound to alias.
func (h *Host) CallAlias(ctx context.Context, alias string, data []byte) ([]byte, error) {
	target, err := h.resolve(alias)
	if err != nil {
		return nil, err
	}
	return h.CallRaw(ctx, target, data)
}

// CastRaw sends a fire-and-forget message directly to an InstanceId,
// bypassing alias resolution (used by resources addressing a known peer).
func (h *Host) CastRaw(ctx context.Context, target ids.InstanceId, data []byte) error {
	result := h.router.Cast(ctx, target, data)
	if result != model.LinkFinal {
		return fmt.Errorf("guestapi: cast not delivered, result %s", result.String())
	}
	return nil
}

// CallRaw sends a request/reply message directly to an InstanceId.
func (h *Host) CallRaw(ctx context.Context, target ids.InstanceId, data []byte) ([]byte, error) {
	reply, err := h.router.Call(ctx, target, data)
	if err != nil {
		return nil, err
	}
	return reply.Data, nil
}

// DelayedCast schedules a cast to alias after delay, with no ordering
// guarantee relative to other casts (spec.md §4.1).
func (h *Host) DelayedCast(ctx context.Context, delay time.Duration, alias string, data []byte) error {
	target, err := h.resolve(alias)
	if err != nil {
		return err
	}
	h.router.DelayedCast(ctx, delay, target, data)
	return nil
}

// TelemetryLog emits a FunctionLogEntry telemetry event on behalf of the
// guest, per spec.md §6.
func (h *Host) TelemetryLog(level, target, msg string) {
	if h.emit == nil {
		return
	}
	h.emit(model.TelemetryEvent{
		Type:       model.FunctionLogEntry,
		InstanceId: h.self,
		Detail: map[string]any{
			"level":  level,
			"target": target,
			"msg":    msg,
		},
	})
}

// Sync persists the guest's current state under its own instance id.
func (h *Host) Sync(ctx context.Context, state []byte) error {
	if h.sync == nil {
		return fmt.Errorf("guestapi: no state syncer configured")
	}
	return h.sync.Sync(ctx, h.self, state)
}

// Slf returns this instance's own InstanceId, per spec.md §5 `slf()`.
func (h *Host) Slf() ids.InstanceId {
	return h.self
}
