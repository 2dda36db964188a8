// Package resource implements the ResourceConfigurationAPI contract of
// spec.md §5 and SPEC_FULL.md §12 (ported from
// original_source/edgeless_api/src/resource_configuration.rs): resources
// are started with a configuration bag and an output_mapping, patched when
// the orchestrator resolves new outputs, and stopped.
package resource

import (
	"context"

	"github.com/edgeless-project/edgeless/internal/ids"
	"github.com/edgeless-project/edgeless/internal/model"
)

// InstanceSpec mirrors ResourceInstanceSpecification: the class type, the
// resolved output channel table, and a free-form configuration bag.
type InstanceSpec struct {
	ClassType      model.ClassType
	OutputMapping  map[string]ids.InstanceId
	Configuration  map[string]string
}

// Provider is one resource implementation (file, redis, http, kafka, ...).
// Every call is addressed to a single resource instance identified by the
// ComponentId it was started with.
type Provider interface {
	// ClassType reports the class this provider implements, for registry
	// lookup against a node's advertised capabilities.
	ClassType() model.ClassType
	// Start creates one resource instance from spec, returning its assigned
	// InstanceId.
	Start(ctx context.Context, lid ids.ComponentId, spec InstanceSpec) (ids.InstanceId, error)
	// Patch updates an existing instance's output_mapping.
	Patch(ctx context.Context, instance ids.InstanceId, outputMapping map[string]ids.InstanceId) error
	// Stop tears an instance down.
	Stop(ctx context.Context, instance ids.InstanceId) error
}

// Registry looks providers up by the class type they implement, the way an
// agent selects a provider when the orchestrator asks it to spawn a
// resource.
type Registry struct {
	providers map[model.ClassType]Provider
}

// NewRegistry builds a Registry from a set of providers, keyed by their own
// ClassType().
func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[model.ClassType]Provider)}
	for _, p := range providers {
		r.providers[p.ClassType()] = p
	}
	return r
}

// Lookup returns the provider for a class type, if registered.
func (r *Registry) Lookup(class model.ClassType) (Provider, bool) {
	p, ok := r.providers[class]
	return p, ok
}

// ClassTypes lists every class type this registry can instantiate, for the
// agent's capability advertisement.
func (r *Registry) ClassTypes() []model.ClassType {
	out := make([]model.ClassType, 0, len(r.providers))
	for class := range r.providers {
		out = append(out, class)
	}
	return out
}
