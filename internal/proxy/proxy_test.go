package proxy

import (
	"context"
	"testing"

	"github.com/edgeless-project/edgeless/internal/ids"
	"github.com/edgeless-project/edgeless/internal/model"
)

func TestProxyTestRoundTripsNode(t *testing.T) {
	p := NewProxyTest()
	node := ids.NewNodeId()
	reg := model.NodeRegistration{NodeId: node, AgentURL: "http://node-a"}

	if err := p.PutNode(context.Background(), reg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, ok := p.Node(node)
	if !ok || got.AgentURL != "http://node-a" {
		t.Fatalf("expected stored node registration, got %+v, ok=%v", got, ok)
	}
}

func TestProxyTestMigrateIntentConsumedOnRead(t *testing.T) {
	p := NewProxyTest()
	lid := ids.NewComponentId()
	target := ids.NewNodeId()

	if err := p.WriteMigrateIntent(context.Background(), lid, []ids.NodeId{target}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	first, err := p.PendingMigrations(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(first) != 1 || first[0].Lid != lid {
		t.Fatalf("expected one pending migrate intent, got %+v", first)
	}

	second, err := p.PendingMigrations(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(second) != 0 {
		t.Fatalf("expected intent to be consumed on first read, got %+v", second)
	}
}

func TestProxyTestStoresActiveInstance(t *testing.T) {
	p := NewProxyTest()
	instanceID := ids.InstanceId{NodeId: ids.NewNodeId(), ComponentId: ids.NewComponentId()}
	active := model.ActiveInstance{Kind: model.InstanceFunction}

	if err := p.PutInstance(context.Background(), instanceID, active); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, ok := p.Instance(instanceID)
	if !ok || got.Kind != model.InstanceFunction {
		t.Fatalf("expected stored active instance, got %+v, ok=%v", got, ok)
	}
}
