package reconcile

import (
	"testing"

	"github.com/edgeless-project/edgeless/internal/ids"
	"github.com/edgeless-project/edgeless/internal/model"
)

func TestNodeLossOrphansWhenNoHotStandby(t *testing.T) {
	lost := ids.NewNodeId()

	active := map[string]*model.ActiveInstance{
		"worker": {
			Kind: model.InstanceFunction,
			Replicas: []model.FunctionReplica{
				{InstanceId: ids.InstanceId{NodeId: lost, ComponentId: ids.NewComponentId()}},
			},
		},
	}

	actions := NodeLoss(active, lost)
	if len(actions) != 1 || actions[0].Kind != ActionOrphaned {
		t.Fatalf("expected single orphaned action, got %+v", actions)
	}
	if len(active["worker"].Replicas) != 0 {
		t.Fatalf("expected replicas cleared")
	}
}

func TestNodeLossPromotesHotStandby(t *testing.T) {
	lost := ids.NewNodeId()
	survivor := ids.NewNodeId()
	hotID := ids.InstanceId{NodeId: survivor, ComponentId: ids.NewComponentId()}

	active := map[string]*model.ActiveInstance{
		"worker": {
			Kind: model.InstanceFunction,
			Replicas: []model.FunctionReplica{
				{InstanceId: ids.InstanceId{NodeId: lost, ComponentId: ids.NewComponentId()}},
				{InstanceId: hotID, IsHot: true},
			},
		},
	}

	actions := NodeLoss(active, lost)
	if len(actions) != 1 || actions[0].Kind != ActionPromote || actions[0].InstanceId != hotID {
		t.Fatalf("expected promote action for hot standby, got %+v", actions)
	}
	if active["worker"].Replicas[0].IsHot {
		t.Fatalf("expected promoted replica to no longer be marked hot")
	}
}

func TestNodeLossIgnoresUnaffectedComponents(t *testing.T) {
	lost := ids.NewNodeId()
	other := ids.NewNodeId()

	active := map[string]*model.ActiveInstance{
		"worker": {
			Kind: model.InstanceFunction,
			Replicas: []model.FunctionReplica{
				{InstanceId: ids.InstanceId{NodeId: other, ComponentId: ids.NewComponentId()}},
			},
		},
	}

	actions := NodeLoss(active, lost)
	if len(actions) != 0 {
		t.Fatalf("expected no actions, got %+v", actions)
	}
}

func TestNodeLossOrphansResource(t *testing.T) {
	lost := ids.NewNodeId()
	active := map[string]*model.ActiveInstance{
		"logger": {
			Kind:             model.InstanceResource,
			ResourceInstance: ids.InstanceId{NodeId: lost, ComponentId: ids.NewComponentId()},
		},
	}

	actions := NodeLoss(active, lost)
	if len(actions) != 1 || actions[0].Kind != ActionOrphaned {
		t.Fatalf("expected orphaned resource action, got %+v", actions)
	}
	if !active["logger"].ResourceInstance.IsNone() {
		t.Fatalf("expected resource instance cleared to none sentinel")
	}
}

func TestSurplusStopsExcessReplicas(t *testing.T) {
	node := ids.NewNodeId()
	a := model.FunctionReplica{InstanceId: ids.InstanceId{NodeId: node, ComponentId: ids.NewComponentId()}}
	b := model.FunctionReplica{InstanceId: ids.InstanceId{NodeId: node, ComponentId: ids.NewComponentId()}}
	c := model.FunctionReplica{InstanceId: ids.InstanceId{NodeId: node, ComponentId: ids.NewComponentId()}}

	inst := &model.ActiveInstance{Kind: model.InstanceFunction, Replicas: []model.FunctionReplica{a, b, c}}
	actions := Surplus(inst, 2)

	if len(actions) != 1 {
		t.Fatalf("expected exactly one replica stopped, got %d", len(actions))
	}
	if len(inst.Replicas) != 2 {
		t.Fatalf("expected 2 replicas to remain, got %d", len(inst.Replicas))
	}
}

func TestSurplusNoOpWithinTarget(t *testing.T) {
	node := ids.NewNodeId()
	inst := &model.ActiveInstance{
		Kind: model.InstanceFunction,
		Replicas: []model.FunctionReplica{
			{InstanceId: ids.InstanceId{NodeId: node, ComponentId: ids.NewComponentId()}},
		},
	}
	actions := Surplus(inst, 2)
	if actions != nil {
		t.Fatalf("expected no surplus actions, got %+v", actions)
	}
}
