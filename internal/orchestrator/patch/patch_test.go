package patch

import (
	"testing"

	"github.com/edgeless-project/edgeless/internal/ids"
	"github.com/edgeless-project/edgeless/internal/model"
)

func TestResolveDropsUnboundNames(t *testing.T) {
	node := ids.NewNodeId()
	present := ids.NewComponentId()
	bindings := map[string]model.ActiveInstance{
		"sink": {
			Kind: model.InstanceFunction,
			Replicas: []model.FunctionReplica{
				{InstanceId: ids.InstanceId{NodeId: node, ComponentId: present}},
			},
		},
	}
	table := Resolve(map[string]string{"out": "sink", "missing": "ghost"}, bindings)
	if len(table) != 1 {
		t.Fatalf("expected 1 resolved entry, got %d", len(table))
	}
	if table["out"].ComponentId != present {
		t.Fatalf("unexpected resolved instance")
	}
}

func TestResolvePicksLowestReplica(t *testing.T) {
	node := ids.NewNodeId()
	a := ids.InstanceId{NodeId: node, ComponentId: ids.NewComponentId()}
	b := ids.InstanceId{NodeId: node, ComponentId: ids.NewComponentId()}
	lowest := a
	if b.Less(a) {
		lowest = b
	}

	bindings := map[string]model.ActiveInstance{
		"sink": {
			Kind:     model.InstanceFunction,
			Replicas: []model.FunctionReplica{{InstanceId: a}, {InstanceId: b}},
		},
	}
	table := Resolve(map[string]string{"out": "sink"}, bindings)
	if table["out"] != lowest {
		t.Fatalf("expected deterministic lowest replica to be picked")
	}
}

func TestDiffNoChangeYieldsNilPatch(t *testing.T) {
	node := ids.NewNodeId()
	id := ids.InstanceId{NodeId: node, ComponentId: ids.NewComponentId()}
	table := Table{"out": id}

	p, err := Diff(table, table)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p != nil {
		t.Fatalf("expected nil patch for unchanged table, got %s", p)
	}
}

func TestDiffDetectsChange(t *testing.T) {
	node := ids.NewNodeId()
	a := ids.InstanceId{NodeId: node, ComponentId: ids.NewComponentId()}
	b := ids.InstanceId{NodeId: node, ComponentId: ids.NewComponentId()}

	p, err := Diff(Table{"out": a}, Table{"out": b})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p == nil {
		t.Fatal("expected non-nil patch for changed table")
	}
}

func TestResolveResourceUsesSingleInstance(t *testing.T) {
	node := ids.NewNodeId()
	resInstance := ids.InstanceId{NodeId: node, ComponentId: ids.NewComponentId()}
	bindings := map[string]model.ActiveInstance{
		"logger": {Kind: model.InstanceResource, ResourceInstance: resInstance},
	}
	table := Resolve(map[string]string{"out": "logger"}, bindings)
	if table["out"] != resInstance {
		t.Fatalf("expected resource instance to be resolved directly")
	}
}
