package model

import (
	"github.com/edgeless-project/edgeless/internal/ids"
)

// SpawnRequest is what the orchestrator hands the agent to create a function
// instance: the class plus the resolved deployment requirements and the
// logical component id it is being instantiated for.
type SpawnRequest struct {
	Lid         ids.ComponentId   `json:"lid"`
	ClassSpec   FunctionClassSpec `json:"class_spec"`
	Annotations map[string]string `json:"annotations"`
	StatePolicy StatePolicy       `json:"state_policy"`
}

// StatePolicy controls how a function instance's guest `sync` writes are
// persisted. See SPEC_FULL.md §12 (ported from original_source/edgeless_state).
type StatePolicy string

const (
	StateTransient StatePolicy = "Transient"
	StateNodeLocal StatePolicy = "NodeLocal"
	StateGlobal    StatePolicy = "Global"
)

// ResourceSpawnRequest is the resource analogue of SpawnRequest: resources
// carry an opaque configuration bag instead of code.
type ResourceSpawnRequest struct {
	Lid            ids.ComponentId   `json:"lid"`
	ClassType      ClassType         `json:"class_type"`
	Configurations map[string]string `json:"configurations"`
}

// InstanceKind discriminates the ActiveInstance tagged union.
type InstanceKind int

const (
	InstanceFunction InstanceKind = iota
	InstanceResource
)

// FunctionReplica is one physical replica of a logical function instance;
// hot-standbys share a ComponentId but carry distinct InstanceIds.
type FunctionReplica struct {
	InstanceId ids.InstanceId
	IsHot      bool
}

// ActiveInstance is the orchestrator's record of a placed function or
// resource (spec.md §3). Exactly one of Function/Resource fields is
// meaningful, selected by Kind.
type ActiveInstance struct {
	Kind InstanceKind

	// Function fields.
	Spawn     SpawnRequest
	Replicas  []FunctionReplica

	// Resource fields (never redundant: at most one InstanceId).
	ResourceConfig ResourceSpawnRequest
	ResourceInstance ids.InstanceId

	// Requirements is the deployment requirements used at the last
	// placement, kept so a later re-placement (node loss, orphan repair)
	// can re-run feasibility without the caller resupplying them. Functions
	// can re-derive this from Spawn.Annotations, but resources have no
	// annotation bag of their own, so it is recorded for both kinds.
	Requirements DeploymentRequirements
}

// IsOrphan reports whether a function instance currently has no live replica.
func (a *ActiveInstance) IsOrphan() bool {
	return a.Kind == InstanceFunction && len(a.Replicas) == 0
}

// HotReplicas returns only the hot-standby replicas.
func (a *ActiveInstance) HotReplicas() []FunctionReplica {
	var hot []FunctionReplica
	for _, r := range a.Replicas {
		if r.IsHot {
			hot = append(hot, r)
		}
	}
	return hot
}
