// Package state implements the StateManagerAPI of spec.md §5: a handle per
// (state_policy, state_id) backing a guest's `sync` calls, adapted from the
// teacher's common/cache.MemoryCache (mutex-guarded map, RWMutex reads) and
// grounded on original_source/edgeless_node/src/state_management/mod.rs for
// the NodeLocal/Global/Transient policy split.
package state

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/edgeless-project/edgeless/internal/ids"
	"github.com/edgeless-project/edgeless/internal/model"
	"github.com/edgeless-project/edgeless/internal/obs/logger"
)

// Provider persists serialized state keyed by state_id.
type Provider interface {
	Get(ctx context.Context, stateID string) ([]byte, bool, error)
	Set(ctx context.Context, stateID string, value []byte) error
}

// FileProvider persists each state_id as one file under a base directory,
// mirroring FileStateProvider in the original implementation.
type FileProvider struct {
	mu       sync.Mutex
	basePath string
}

// NewFileProvider creates a FileProvider rooted at basePath, creating it if
// necessary.
func NewFileProvider(basePath string) (*FileProvider, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("state: create base dir: %w", err)
	}
	return &FileProvider{basePath: basePath}, nil
}

func (f *FileProvider) path(stateID string) string {
	return filepath.Join(f.basePath, stateID)
}

// Get reads the state file for stateID, returning (nil, false, nil) if absent.
func (f *FileProvider) Get(ctx context.Context, stateID string) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, err := os.ReadFile(f.path(stateID))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("state: read %s: %w", stateID, err)
	}
	return data, true, nil
}

// Set overwrites the state file for stateID.
func (f *FileProvider) Set(ctx context.Context, stateID string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.WriteFile(f.path(stateID), value, 0o644); err != nil {
		return fmt.Errorf("state: write %s: %w", stateID, err)
	}
	return nil
}

// Manager resolves a (StatePolicy, state_id) pair to the Provider backing
// it. Transient carries no provider: its Handle is a no-op, consistent with
// the original implementation's `_ => {}` fallthrough.
type Manager struct {
	nodeLocal Provider
	global    Provider
	log       *logger.Logger
}

// NewManager creates a Manager. global may be nil until a global state
// backend is configured; nodeLocal is typically a FileProvider.
func NewManager(nodeLocal, global Provider, log *logger.Logger) *Manager {
	return &Manager{nodeLocal: nodeLocal, global: global, log: log}
}

// Handle returns the StateHandle for one function instance's state.
func (m *Manager) Handle(policy model.StatePolicy, stateID string) *Handle {
	return &Handle{manager: m, policy: policy, stateID: stateID}
}

// Handle is a per-instance view onto its own persisted state, implementing
// the guest-facing get/set pair behind GuestAPIHost's `sync`.
type Handle struct {
	manager *Manager
	policy  model.StatePolicy
	stateID string
}

func (h *Handle) provider() Provider {
	switch h.policy {
	case model.StateNodeLocal:
		return h.manager.nodeLocal
	case model.StateGlobal:
		return h.manager.global
	default:
		return nil
	}
}

// Get returns the last synced state, or (nil, false) if none exists or the
// policy is Transient/unconfigured.
func (h *Handle) Get(ctx context.Context) ([]byte, bool, error) {
	p := h.provider()
	if p == nil {
		return nil, false, nil
	}
	return p.Get(ctx, h.stateID)
}

// Set persists state under this handle's policy. Transient silently drops
// the write, matching the original's behaviour of never installing a
// transient provider.
func (h *Handle) Set(ctx context.Context, value []byte) error {
	p := h.provider()
	if p == nil {
		return nil
	}
	return p.Set(ctx, h.stateID, value)
}

// InstanceSyncer binds a Manager and a fixed StatePolicy to satisfy
// guestapi.StateSyncer, which addresses state by ids.InstanceId rather than
// a bare state_id string.
type InstanceSyncer struct {
	manager *Manager
	policy  model.StatePolicy
}

// NewInstanceSyncer creates a StateSyncer for instances spawned under policy.
func NewInstanceSyncer(manager *Manager, policy model.StatePolicy) *InstanceSyncer {
	return &InstanceSyncer{manager: manager, policy: policy}
}

// Sync persists state under the instance's own InstanceId as the state_id,
// matching the original implementation's use of the function instance's
// uuid as its state key.
func (s *InstanceSyncer) Sync(ctx context.Context, instance ids.InstanceId, value []byte) error {
	return s.manager.Handle(s.policy, instance.String()).Set(ctx, value)
}
