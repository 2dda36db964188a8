package model

import "github.com/edgeless-project/edgeless/internal/ids"

// ComponentBinding is one entry of an ActiveWorkflow's domain_mapping: which
// domain (and which logical id within that domain) a named component
// currently resolves to. An empty DomainId means the component is orphaned.
type ComponentBinding struct {
	ComponentType string // "function" or "resource"
	DomainId      ids.DomainId
	Lid           ids.ComponentId
}

// ActiveWorkflow is the controller's record of one admitted workflow
// (spec.md §3, §4.5).
type ActiveWorkflow struct {
	Id ids.WorkflowId

	// Request is the original client-submitted spec.
	Request WorkflowRequest

	// AugmentedSpec is Request with inter-domain bridge resources spliced
	// in, once the workflow has been split across domains (§4.5 step 4).
	// It is nil until a split has actually happened.
	AugmentedSpec *WorkflowRequest

	// DomainMapping maps component name -> binding.
	DomainMapping map[string]ComponentBinding
}

// IsOrphan reports whether any component of the workflow currently has no
// assigned domain (invariant: domain_mapping covers exactly the union of
// declared names; orphan means some entry's DomainId is empty).
func (w *ActiveWorkflow) IsOrphan() bool {
	for _, b := range w.DomainMapping {
		if b.DomainId == "" {
			return true
		}
	}
	return false
}

// OrphanComponents returns the names of components with no assigned domain.
func (w *ActiveWorkflow) OrphanComponents() []string {
	var names []string
	for name, b := range w.DomainMapping {
		if b.DomainId == "" {
			names = append(names, name)
		}
	}
	return names
}

// ClearDomain marks every component bound to the given domain as orphaned,
// used when a domain's subscription expires (§4.5 "Domain loss").
func (w *ActiveWorkflow) ClearDomain(domain ids.DomainId) {
	for name, b := range w.DomainMapping {
		if b.DomainId == domain {
			b.DomainId = ""
			w.DomainMapping[name] = b
		}
	}
}
