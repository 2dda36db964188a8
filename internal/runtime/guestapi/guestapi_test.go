package guestapi

import (
	"context"
	"errors"
	"testing"

	"github.com/edgeless-project/edgeless/internal/dataplane"
	"github.com/edgeless-project/edgeless/internal/ids"
	"github.com/edgeless-project/edgeless/internal/obs/logger"
)

func testLogger() *logger.Logger {
	return logger.New("error", "text")
}

func TestCastAliasUnknownAlias(t *testing.T) {
	node := ids.NewNodeId()
	local := dataplane.NewLocalLink(node, testLogger())
	chain := dataplane.NewChain(local)
	router := dataplane.NewRouter(node, chain, testLogger())

	self := ids.InstanceId{NodeId: node, ComponentId: ids.NewComponentId()}
	host := NewHost(self, router, nil, nil)

	err := host.CastAlias(context.Background(), "out", []byte("x"))
	if !errors.Is(err, ErrUnknownAlias) {
		t.Fatalf("expected ErrUnknownAlias, got %v", err)
	}
}

func TestCastAliasResolvesAndDelivers(t *testing.T) {
	node := ids.NewNodeId()
	local := dataplane.NewLocalLink(node, testLogger())
	chain := dataplane.NewChain(local)
	router := dataplane.NewRouter(node, chain, testLogger())

	self := ids.InstanceId{NodeId: node, ComponentId: ids.NewComponentId()}
	target := ids.InstanceId{NodeId: node, ComponentId: ids.NewComponentId()}
	ch := local.Register(target.ComponentId)

	host := NewHost(self, router, nil, nil)
	host.Bind("out", target)

	if err := host.CastAlias(context.Background(), "out", []byte("payload")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ev := <-ch
	if string(ev.Data) != "payload" {
		t.Fatalf("unexpected payload %q", ev.Data)
	}
}

func TestSelfAliasResolvesToOwnId(t *testing.T) {
	node := ids.NewNodeId()
	local := dataplane.NewLocalLink(node, testLogger())
	ch := local.Register(ids.ComponentId{})
	_ = ch
	chain := dataplane.NewChain(local)
	router := dataplane.NewRouter(node, chain, testLogger())

	self := ids.InstanceId{NodeId: node, ComponentId: ids.NewComponentId()}
	selfCh := local.Register(self.ComponentId)
	host := NewHost(self, router, nil, nil)

	if err := host.CastAlias(context.Background(), SelfAlias, []byte("loop")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ev := <-selfCh
	if string(ev.Data) != "loop" {
		t.Fatalf("unexpected payload %q", ev.Data)
	}
}

func TestSyncWithoutSyncerErrors(t *testing.T) {
	node := ids.NewNodeId()
	local := dataplane.NewLocalLink(node, testLogger())
	chain := dataplane.NewChain(local)
	router := dataplane.NewRouter(node, chain, testLogger())
	self := ids.InstanceId{NodeId: node, ComponentId: ids.NewComponentId()}
	host := NewHost(self, router, nil, nil)

	if err := host.Sync(context.Background(), []byte("state")); err == nil {
		t.Fatal("expected error when no syncer configured")
	}
}
