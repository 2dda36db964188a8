// Package controller implements spec.md §4.5: accepts workflow
// specifications, places every component of a workflow in the first
// healthy domain (no cross-domain splitting, so no bridge resources), and
// keeps each ActiveWorkflow's domain_mapping correct under domain loss. Adapted from the teacher's
// cmd/orchestrator/service admission/validation layer, generalized from
// CAS-artifact runs to EDGELESS workflows.
package controller

import (
	"context"
	"fmt"
	"sync"

	"github.com/edgeless-project/edgeless/internal/ids"
	"github.com/edgeless-project/edgeless/internal/model"
	"github.com/edgeless-project/edgeless/internal/obs/logger"
)

// DomainClient is the controller's view of one domain orchestrator's API.
type DomainClient interface {
	StartFunction(ctx context.Context, name string, fn model.WorkflowFunction, lid ids.ComponentId) error
	StartResource(ctx context.Context, name string, res model.WorkflowResource, lid ids.ComponentId) error
	StopFunction(ctx context.Context, lid ids.ComponentId) error
	StopResource(ctx context.Context, lid ids.ComponentId) error
}

// DomainDirectory resolves a domain id to its orchestrator client and lists
// currently subscribed domains, for the "all to the first healthy domain"
// placement policy (spec.md §4.5 step 3, MVP).
type DomainDirectory interface {
	Healthy() []ids.DomainId
	Client(domain ids.DomainId) (DomainClient, error)
}

// ErrNameNotUnique, ErrDanglingOutput, ErrNoHealthyDomain are admission
// validation failures (spec.md §4.5 step 1).
var (
	ErrNameNotUnique   = fmt.Errorf("controller: component names are not unique")
	ErrDanglingOutput  = fmt.Errorf("controller: output_mapping targets an undeclared component")
	ErrNoHealthyDomain = fmt.Errorf("controller: no healthy domain available")
)

// Controller holds the live ActiveWorkflow records.
type Controller struct {
	mu        sync.Mutex
	workflows map[ids.WorkflowId]*model.ActiveWorkflow
	domains   DomainDirectory
	log       *logger.Logger
}

// New creates a Controller backed by the given domain directory.
func New(domains DomainDirectory, log *logger.Logger) *Controller {
	return &Controller{
		workflows: make(map[ids.WorkflowId]*model.ActiveWorkflow),
		domains:   domains,
		log:       log,
	}
}

// validate checks invariant 2 of spec.md §3: names unique, every
// output_mapping target declared.
func validate(req model.WorkflowRequest) error {
	seen := make(map[string]struct{}, len(req.Functions)+len(req.Resources))
	for _, f := range req.Functions {
		if _, dup := seen[f.Name]; dup {
			return ErrNameNotUnique
		}
		seen[f.Name] = struct{}{}
	}
	for _, r := range req.Resources {
		if _, dup := seen[r.Name]; dup {
			return ErrNameNotUnique
		}
		seen[r.Name] = struct{}{}
	}

	names := req.ComponentNames()
	for _, f := range req.Functions {
		for _, target := range f.OutputMapping {
			if _, ok := names[target]; !ok {
				return ErrDanglingOutput
			}
		}
	}
	for _, r := range req.Resources {
		for _, target := range r.OutputMapping {
			if _, ok := names[target]; !ok {
				return ErrDanglingOutput
			}
		}
	}
	return nil
}

// StartWorkflow admits req per spec.md §4.5 steps 1-6: validate, assign
// lids, pick a domain (MVP: the first healthy one for every component, so
// no bridge splicing is needed yet — see DESIGN.md Controller section),
// start every component, and on any failure tear down what was already
// started.
func (c *Controller) StartWorkflow(ctx context.Context, req model.WorkflowRequest) (ids.WorkflowId, error) {
	if err := validate(req); err != nil {
		return ids.WorkflowId{}, err
	}

	healthy := c.domains.Healthy()
	if len(healthy) == 0 {
		return ids.WorkflowId{}, ErrNoHealthyDomain
	}
	domain := healthy[0]
	client, err := c.domains.Client(domain)
	if err != nil {
		return ids.WorkflowId{}, fmt.Errorf("controller: dial domain %s: %w", domain, err)
	}

	mapping := make(map[string]model.ComponentBinding, len(req.Functions)+len(req.Resources))
	started := make([]model.ComponentBinding, 0, len(mapping))

	rollback := func() {
		for _, b := range started {
			if b.ComponentType == "function" {
				_ = client.StopFunction(ctx, b.Lid)
			} else {
				_ = client.StopResource(ctx, b.Lid)
			}
		}
	}

	for _, fn := range req.Functions {
		lid := ids.NewComponentId()
		if err := client.StartFunction(ctx, fn.Name, fn, lid); err != nil {
			rollback()
			return ids.WorkflowId{}, fmt.Errorf("controller: start function %s: %w", fn.Name, err)
		}
		b := model.ComponentBinding{ComponentType: "function", DomainId: domain, Lid: lid}
		mapping[fn.Name] = b
		started = append(started, b)
	}
	for _, res := range req.Resources {
		lid := ids.NewComponentId()
		if err := client.StartResource(ctx, res.Name, res, lid); err != nil {
			rollback()
			return ids.WorkflowId{}, fmt.Errorf("controller: start resource %s: %w", res.Name, err)
		}
		b := model.ComponentBinding{ComponentType: "resource", DomainId: domain, Lid: lid}
		mapping[res.Name] = b
		started = append(started, b)
	}

	workflowID := ids.NewWorkflowId()
	wf := &model.ActiveWorkflow{Id: workflowID, Request: req, DomainMapping: mapping}

	c.mu.Lock()
	c.workflows[workflowID] = wf
	c.mu.Unlock()

	return workflowID, nil
}

// StopWorkflow calls stop_function/stop_resource on every domain currently
// hosting a piece of id, dropping the ActiveWorkflow regardless of whether
// any individual stop call failed (spec.md §4.5 "Stop").
func (c *Controller) StopWorkflow(ctx context.Context, id ids.WorkflowId) error {
	c.mu.Lock()
	wf, ok := c.workflows[id]
	delete(c.workflows, id)
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("controller: unknown workflow %s", id)
	}

	for _, b := range wf.DomainMapping {
		if b.DomainId == "" {
			continue
		}
		client, err := c.domains.Client(b.DomainId)
		if err != nil {
			c.log.Warn("controller: dial domain for stop failed", "workflow", id, "domain", b.DomainId, "error", err)
			continue
		}
		if b.ComponentType == "function" {
			err = client.StopFunction(ctx, b.Lid)
		} else {
			err = client.StopResource(ctx, b.Lid)
		}
		if err != nil {
			c.log.Warn("controller: stop component failed", "workflow", id, "error", err)
		}
	}
	return nil
}

// OnDomainLoss clears every workflow's bindings to the lost domain,
// transitioning them to orphan (spec.md §4.5 "Domain loss"). Repair is left
// to RepairOrphans, run separately so a register-driven loss notification
// never blocks on re-admission RPCs.
func (c *Controller) OnDomainLoss(domain ids.DomainId) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, wf := range c.workflows {
		wf.ClearDomain(domain)
	}
}

// RepairOrphans retries admission of every orphaned component on any
// surviving healthy domain. A component that still cannot be placed stays
// orphan; its workflow is left as-is rather than torn down, matching the
// original's tolerance for partially-placed workflows.
func (c *Controller) RepairOrphans(ctx context.Context) {
	healthy := c.domains.Healthy()
	if len(healthy) == 0 {
		return
	}
	domain := healthy[0]
	client, err := c.domains.Client(domain)
	if err != nil {
		c.log.Warn("controller: repair dial failed", "domain", domain, "error", err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, wf := range c.workflows {
		if !wf.IsOrphan() {
			continue
		}
		for _, name := range wf.OrphanComponents() {
			binding, ok := wf.DomainMapping[name]
			if !ok {
				continue
			}
			if err := c.repairComponent(ctx, client, domain, wf, name, binding); err != nil {
				c.log.Warn("controller: repair component failed", "workflow", wf.Id, "component", name, "error", err)
			}
		}
	}
}

func (c *Controller) repairComponent(ctx context.Context, client DomainClient, domain ids.DomainId, wf *model.ActiveWorkflow, name string, binding model.ComponentBinding) error {
	lid := ids.NewComponentId()

	if binding.ComponentType == "function" {
		fn, ok := findFunction(wf.Request, name)
		if !ok {
			return fmt.Errorf("controller: component %s no longer declared", name)
		}
		if err := client.StartFunction(ctx, name, fn, lid); err != nil {
			return err
		}
	} else {
		res, ok := findResource(wf.Request, name)
		if !ok {
			return fmt.Errorf("controller: component %s no longer declared", name)
		}
		if err := client.StartResource(ctx, name, res, lid); err != nil {
			return err
		}
	}

	binding.DomainId = domain
	binding.Lid = lid
	wf.DomainMapping[name] = binding
	return nil
}

func findFunction(req model.WorkflowRequest, name string) (model.WorkflowFunction, bool) {
	for _, f := range req.Functions {
		if f.Name == name {
			return f, true
		}
	}
	return model.WorkflowFunction{}, false
}

func findResource(req model.WorkflowRequest, name string) (model.WorkflowResource, bool) {
	for _, r := range req.Resources {
		if r.Name == name {
			return r, true
		}
	}
	return model.WorkflowResource{}, false
}

// Get returns the ActiveWorkflow record for id, for read-only inspection
// (e.g. by the proxy's HTTP operator surface).
func (c *Controller) Get(id ids.WorkflowId) (model.ActiveWorkflow, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	wf, ok := c.workflows[id]
	if !ok {
		return model.ActiveWorkflow{}, false
	}
	return *wf, true
}
