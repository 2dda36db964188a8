package state

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/edgeless-project/edgeless/internal/ids"
	"github.com/edgeless-project/edgeless/internal/model"
)

func TestFileProviderRoundTrip(t *testing.T) {
	dir := t.TempDir()
	p, err := NewFileProvider(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx := context.Background()
	if _, ok, err := p.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("expected absent, got ok=%v err=%v", ok, err)
	}

	if err := p.Set(ctx, "key1", []byte("value1")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, ok, err := p.Get(ctx, "key1")
	if err != nil || !ok {
		t.Fatalf("expected present, got ok=%v err=%v", ok, err)
	}
	if string(data) != "value1" {
		t.Fatalf("unexpected value %q", data)
	}

	if _, err := NewFileProvider(filepath.Join(dir, "nested")); err != nil {
		t.Fatalf("nested dir creation should succeed: %v", err)
	}
}

func TestHandleTransientPolicyDropsWrites(t *testing.T) {
	dir := t.TempDir()
	fp, err := NewFileProvider(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	mgr := NewManager(fp, nil, nil)

	h := mgr.Handle(model.StateTransient, "state-1")
	if err := h.Set(context.Background(), []byte("x")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok, _ := h.Get(context.Background()); ok {
		t.Fatal("transient state should never be readable")
	}
}

func TestHandleNodeLocalPolicyPersists(t *testing.T) {
	dir := t.TempDir()
	fp, err := NewFileProvider(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	mgr := NewManager(fp, nil, nil)

	h := mgr.Handle(model.StateNodeLocal, "state-2")
	if err := h.Set(context.Background(), []byte("y")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, ok, err := h.Get(context.Background())
	if err != nil || !ok {
		t.Fatalf("expected present, got ok=%v err=%v", ok, err)
	}
	if string(data) != "y" {
		t.Fatalf("unexpected value %q", data)
	}
}

func TestHandleGlobalPolicyUnconfiguredIsNoop(t *testing.T) {
	mgr := NewManager(nil, nil, nil)
	h := mgr.Handle(model.StateGlobal, "state-3")
	if err := h.Set(context.Background(), []byte("z")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok, _ := h.Get(context.Background()); ok {
		t.Fatal("unconfigured global provider should never return state")
	}
}

func TestInstanceSyncerWritesUnderInstanceId(t *testing.T) {
	dir := t.TempDir()
	fp, err := NewFileProvider(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	mgr := NewManager(fp, nil, nil)
	syncer := NewInstanceSyncer(mgr, model.StateNodeLocal)

	instance := ids.InstanceId{NodeId: ids.NewNodeId(), ComponentId: ids.NewComponentId()}
	if err := syncer.Sync(context.Background(), instance, []byte("synced")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, ok, err := fp.Get(context.Background(), instance.String())
	if err != nil || !ok {
		t.Fatalf("expected present, got ok=%v err=%v", ok, err)
	}
	if string(data) != "synced" {
		t.Fatalf("unexpected value %q", data)
	}
}
