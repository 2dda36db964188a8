// Package intent implements the domain orchestrator's consumption of
// proxy-sourced deployment intents (spec.md §4.4, §4.7). The only intent
// kind defined is Migrate: move a component onto one of a set of candidate
// nodes if feasible, patch dependents, then stop the old instance. Intent
// processing never blocks the orchestrator's main reconcile loop on proxy
// availability, mirroring the teacher's supervisor pattern of treating a
// side-channel read as best-effort.
package intent

import (
	"context"
	"fmt"

	"github.com/edgeless-project/edgeless/internal/ids"
	"github.com/edgeless-project/edgeless/internal/model"
	"github.com/edgeless-project/edgeless/internal/orchestrator/placement"
)

// Source is the subset of the proxy client the orchestrator needs: a
// best-effort, consume-on-read queue of pending migrate intents.
type Source interface {
	PendingMigrations(ctx context.Context) ([]model.MigrateIntent, error)
}

// Plan is the result of resolving one Migrate intent against the current
// node register: the chosen target and the instance to retire once the new
// one is up and patched in.
type Plan struct {
	Lid    ids.ComponentId
	Target ids.NodeId
	Retire []ids.InstanceId
}

// ErrNoCandidateFeasible means every node named in the intent failed the
// component's deployment requirements; the intent is dropped non-fatally
// per spec.md §4.4.
var ErrNoCandidateFeasible = fmt.Errorf("intent: no candidate node is feasible")

// Resolve picks a feasible target among a Migrate intent's candidate nodes
// for the given component's class and requirements. known holds the full
// node register so candidates can be matched to their advertised
// capabilities; a candidate absent from known is skipped.
func Resolve(mi model.MigrateIntent, class model.ClassType, req model.DeploymentRequirements, known map[ids.NodeId]model.NodeCapabilities, evaluator *placement.CelEvaluator) (ids.NodeId, error) {
	var candidates []placement.Candidate
	for _, n := range mi.CandidateNodes {
		caps, ok := known[n]
		if !ok {
			continue
		}
		candidates = append(candidates, placement.Candidate{NodeId: n, Capabilities: caps})
	}

	feasible, err := placement.Feasible(candidates, class, req, evaluator)
	if err != nil {
		return ids.NodeId{}, err
	}
	if len(feasible) == 0 {
		return ids.NodeId{}, ErrNoCandidateFeasible
	}

	// spec.md §4.4 names no tie-break among multiple feasible candidates;
	// the first in the intent's own candidate order wins, so the operator's
	// listed preference order is honored when more than one node qualifies.
	return feasible[0].NodeId, nil
}

// BuildPlan assembles the retire set for a resolved migration: every
// existing replica of the component becomes stale once the new instance on
// target is placed and dependents are patched to it.
func BuildPlan(mi model.MigrateIntent, target ids.NodeId, existing []ids.InstanceId) Plan {
	return Plan{Lid: mi.Lid, Target: target, Retire: existing}
}
