// Package reconcile implements the domain orchestrator's response to node
// churn (spec.md §4.4 "reconciliation"): when a node disappears, its
// hosted replicas become orphans; when hot-standby replicas exist
// elsewhere, one is promoted; replicas beyond a component's redundancy
// target are stopped as surplus. Adapted from the teacher's
// cmd/workflow-runner/supervisor pattern of a periodic sweep reacting to
// externally-observed state change.
package reconcile

import (
	"github.com/edgeless-project/edgeless/internal/ids"
	"github.com/edgeless-project/edgeless/internal/model"
)

// Action is one instruction produced by a reconciliation pass, to be
// carried out by the caller against the owning agent.
type Action struct {
	Kind       ActionKind
	Component  string
	InstanceId ids.InstanceId
}

type ActionKind int

const (
	// ActionPromote marks a hot-standby replica as the new primary; no
	// agent call is needed, only a bookkeeping update (the replica was
	// already running).
	ActionPromote ActionKind = iota
	// ActionStopSurplus tells the owning agent to stop a replica beyond
	// the component's redundancy target.
	ActionStopSurplus
	// ActionOrphaned records a component with no live replica left after a
	// node loss; it needs a fresh placement, not an in-place fix.
	ActionOrphaned
)

// NodeLoss computes the actions needed when lostNode stops being reachable:
// every ActiveInstance with a replica on lostNode loses that replica; if a
// hot standby remains elsewhere it is promoted, otherwise the component
// becomes orphaned. active is mutated in place to drop the lost replicas.
func NodeLoss(active map[string]*model.ActiveInstance, lostNode ids.NodeId) []Action {
	var actions []Action

	for name, inst := range active {
		if inst.Kind != model.InstanceFunction {
			if inst.Kind == model.InstanceResource && inst.ResourceInstance.NodeId == lostNode {
				inst.ResourceInstance = ids.InstanceIdNone
				actions = append(actions, Action{Kind: ActionOrphaned, Component: name})
			}
			continue
		}

		remaining := inst.Replicas[:0:0]
		lostAny := false
		for _, r := range inst.Replicas {
			if r.InstanceId.NodeId == lostNode {
				lostAny = true
				continue
			}
			remaining = append(remaining, r)
		}
		if !lostAny {
			continue
		}
		inst.Replicas = remaining

		if len(inst.Replicas) == 0 {
			actions = append(actions, Action{Kind: ActionOrphaned, Component: name})
			continue
		}

		for i, r := range inst.Replicas {
			if r.IsHot {
				inst.Replicas[i].IsHot = false
				actions = append(actions, Action{Kind: ActionPromote, Component: name, InstanceId: r.InstanceId})
				break
			}
		}
	}

	return actions
}

// Surplus computes which replicas to stop when a component's live replica
// count exceeds target: it keeps the target replicas with the lowest
// InstanceIds and stops the rest, without regard to IsHot (symmetric with
// patch.Resolve's lowest-first pick, so the surviving set is the same one
// future patches will address).
func Surplus(inst *model.ActiveInstance, target int) []Action {
	if inst.Kind != model.InstanceFunction || len(inst.Replicas) <= target {
		return nil
	}

	keep := make([]model.FunctionReplica, 0, target)
	var drop []model.FunctionReplica

	ordered := append([]model.FunctionReplica(nil), inst.Replicas...)
	for i := 0; i < len(ordered); i++ {
		for j := i + 1; j < len(ordered); j++ {
			if ordered[j].InstanceId.Less(ordered[i].InstanceId) {
				ordered[i], ordered[j] = ordered[j], ordered[i]
			}
		}
	}

	for _, r := range ordered {
		if len(keep) < target {
			keep = append(keep, r)
		} else {
			drop = append(drop, r)
		}
	}

	inst.Replicas = keep

	actions := make([]Action, 0, len(drop))
	for _, r := range drop {
		actions = append(actions, Action{Kind: ActionStopSurplus, InstanceId: r.InstanceId})
	}
	return actions
}
