// Package orchestrator implements the domain orchestrator of spec.md §4.4:
// it holds the domain's desired state (one ActiveInstance per component),
// places new components onto feasible nodes, pushes resolved output-table
// patches to the agents hosting their dependents, and reconciles that state
// against node churn and operator intents on each cycle. Adapted from the
// teacher's cmd/workflow-runner/supervisor ticker-driven reconcile loop,
// fanning agent RPCs out concurrently with golang.org/x/sync/errgroup the
// way cmd/executor's Invoke pipeline parallelizes its pre-fetch stage.
package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/edgeless-project/edgeless/internal/ids"
	"github.com/edgeless-project/edgeless/internal/model"
	"github.com/edgeless-project/edgeless/internal/obs/logger"
	"github.com/edgeless-project/edgeless/internal/orchestrator/intent"
	"github.com/edgeless-project/edgeless/internal/orchestrator/patch"
	"github.com/edgeless-project/edgeless/internal/orchestrator/placement"
	"github.com/edgeless-project/edgeless/internal/orchestrator/reconcile"
)

// NodeRegister is the orchestrator's view of the domain's node register:
// enough to build placement candidates.
type NodeRegister interface {
	List() []model.NodeRegistration
}

// AgentClient is the orchestrator's view of one node's AgentAPI, over
// whatever transport internal/wire/httpapi provides.
type AgentClient interface {
	SpawnFunction(ctx context.Context, node ids.NodeId, spawn model.SpawnRequest) (ids.InstanceId, error)
	SpawnResource(ctx context.Context, node ids.NodeId, req model.ResourceSpawnRequest, outputMapping patch.Table) (ids.InstanceId, error)
	Patch(ctx context.Context, node ids.NodeId, instance ids.InstanceId, mergePatch []byte) error
	Stop(ctx context.Context, node ids.NodeId, instance ids.InstanceId) error
	StopResource(ctx context.Context, node ids.NodeId, instance ids.InstanceId, class model.ClassType) error
}

// AgentClientFactory resolves the AgentClient for a node, so the
// orchestrator doesn't need to know the transport's dial/connect details.
type AgentClientFactory func(node ids.NodeId) (AgentClient, error)

// ProxyWriter is the orchestrator's view of the proxy's write surface
// (spec.md §4.7): current nodes, resource providers, active instances and
// their resolved dependency tables. A failure here is logged and never
// propagated, matching proxy.Store's own best-effort contract.
type ProxyWriter interface {
	PutNode(ctx context.Context, reg model.NodeRegistration) error
	PutProvider(ctx context.Context, providerID ids.InstanceId, classType model.ClassType) error
	PutInstance(ctx context.Context, instanceID ids.InstanceId, active model.ActiveInstance) error
	PutDependency(ctx context.Context, lid ids.ComponentId, outputMapping map[string]ids.InstanceId) error
}

// Orchestrator holds one domain's desired state and reconciles it.
type Orchestrator struct {
	mu             sync.Mutex
	active         map[string]*model.ActiveInstance
	tables         map[string]patch.Table
	names          map[ids.ComponentId]string
	outputMappings map[string]map[string]string

	register  NodeRegister
	clients   AgentClientFactory
	strategy  placement.Strategy
	evaluator *placement.CelEvaluator
	intents   intent.Source

	// proxyWriter is the optional proxy.Store write side (spec.md §4.7);
	// nil means this domain runs without a proxy and SyncProxy is a no-op.
	proxyWriter ProxyWriter

	// redundancyTarget is how many live replicas a function component
	// should keep (spec.md §4.4 hot-standby reconciliation); replicas
	// beyond it are stopped as surplus by ReconcileSurplus.
	redundancyTarget int

	log *logger.Logger
}

// New creates an Orchestrator for one domain. proxyWriter may be nil, in
// which case SyncProxy is a no-op.
func New(register NodeRegister, clients AgentClientFactory, strategy placement.Strategy, evaluator *placement.CelEvaluator, intents intent.Source, proxyWriter ProxyWriter, redundancyTarget int, log *logger.Logger) *Orchestrator {
	if redundancyTarget < 1 {
		redundancyTarget = 1
	}
	return &Orchestrator{
		active:           make(map[string]*model.ActiveInstance),
		tables:           make(map[string]patch.Table),
		names:            make(map[ids.ComponentId]string),
		outputMappings:   make(map[string]map[string]string),
		register:         register,
		clients:          clients,
		strategy:         strategy,
		evaluator:        evaluator,
		intents:          intents,
		proxyWriter:      proxyWriter,
		redundancyTarget: redundancyTarget,
		log:              log,
	}
}

func (o *Orchestrator) candidates() []placement.Candidate {
	regs := o.register.List()
	out := make([]placement.Candidate, 0, len(regs))
	for _, r := range regs {
		out = append(out, placement.Candidate{NodeId: r.NodeId, Capabilities: r.Capabilities})
	}
	return out
}

// Place chooses a feasible node for a new function component and spawns it
// there, recording the replica as the component's sole (non-hot) instance.
// outputMapping is the component's declared channel->target wiring, kept so
// PushAllPatches can resolve and push it once dependents are known.
func (o *Orchestrator) Place(ctx context.Context, name string, spawn model.SpawnRequest, class model.ClassType, req model.DeploymentRequirements, outputMapping map[string]string) (ids.InstanceId, error) {
	feasible, err := placement.Feasible(o.candidates(), class, req, o.evaluator)
	if err != nil {
		return ids.InstanceId{}, fmt.Errorf("orchestrator: feasibility: %w", err)
	}
	chosen, err := o.strategy.Choose(feasible)
	if err != nil {
		return ids.InstanceId{}, fmt.Errorf("orchestrator: placement: %w", err)
	}

	client, err := o.clients(chosen.NodeId)
	if err != nil {
		return ids.InstanceId{}, fmt.Errorf("orchestrator: dial agent %s: %w", chosen.NodeId, err)
	}
	instanceID, err := client.SpawnFunction(ctx, chosen.NodeId, spawn)
	if err != nil {
		return ids.InstanceId{}, fmt.Errorf("orchestrator: spawn on %s: %w", chosen.NodeId, err)
	}

	o.mu.Lock()
	o.active[name] = &model.ActiveInstance{
		Kind:         model.InstanceFunction,
		Spawn:        spawn,
		Replicas:     []model.FunctionReplica{{InstanceId: instanceID}},
		Requirements: req,
	}
	o.names[spawn.Lid] = name
	if outputMapping != nil {
		o.outputMappings[name] = outputMapping
	}
	o.mu.Unlock()

	return instanceID, nil
}

// PlaceResource is the resource analogue of Place: it chooses a feasible
// node for a resource component and starts it there. The output table is
// resolved and pushed separately by PushAllPatches once dependents are known.
func (o *Orchestrator) PlaceResource(ctx context.Context, name string, req model.ResourceSpawnRequest, class model.ClassType, deploymentReq model.DeploymentRequirements, outputMapping map[string]string) (ids.InstanceId, error) {
	feasible, err := placement.Feasible(o.candidates(), class, deploymentReq, o.evaluator)
	if err != nil {
		return ids.InstanceId{}, fmt.Errorf("orchestrator: feasibility: %w", err)
	}
	chosen, err := o.strategy.Choose(feasible)
	if err != nil {
		return ids.InstanceId{}, fmt.Errorf("orchestrator: placement: %w", err)
	}

	client, err := o.clients(chosen.NodeId)
	if err != nil {
		return ids.InstanceId{}, fmt.Errorf("orchestrator: dial agent %s: %w", chosen.NodeId, err)
	}
	instanceID, err := client.SpawnResource(ctx, chosen.NodeId, req, nil)
	if err != nil {
		return ids.InstanceId{}, fmt.Errorf("orchestrator: spawn resource on %s: %w", chosen.NodeId, err)
	}

	o.mu.Lock()
	o.active[name] = &model.ActiveInstance{
		Kind:             model.InstanceResource,
		ResourceConfig:   req,
		ResourceInstance: instanceID,
		Requirements:     deploymentReq,
	}
	o.names[req.Lid] = name
	if outputMapping != nil {
		o.outputMappings[name] = outputMapping
	}
	o.mu.Unlock()

	return instanceID, nil
}

// ClassOf resolves a tracked component's class type and deployment
// requirements by lid, the classOf callback ConsumeIntents needs to
// evaluate migrate-intent feasibility.
func (o *Orchestrator) ClassOf(lid ids.ComponentId) (model.ClassType, model.DeploymentRequirements, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	name, ok := o.names[lid]
	if !ok {
		return "", model.DeploymentRequirements{}, false
	}
	inst, ok := o.active[name]
	if !ok {
		return "", model.DeploymentRequirements{}, false
	}
	if inst.Kind == model.InstanceResource {
		return inst.ResourceConfig.ClassType, model.DeploymentRequirements{}, true
	}
	return inst.Spawn.ClassSpec.ClassType, model.FromAnnotations(inst.Spawn.Annotations), true
}

// StopByLid removes and tears down the component named by the controller's
// lid, function or resource alike, dispatching the stop call appropriate to
// its kind.
func (o *Orchestrator) StopByLid(ctx context.Context, lid ids.ComponentId) error {
	o.mu.Lock()
	name, ok := o.names[lid]
	if !ok {
		o.mu.Unlock()
		return fmt.Errorf("orchestrator: no component for lid %s", lid)
	}
	inst := o.active[name]
	delete(o.names, lid)
	delete(o.active, name)
	delete(o.tables, name)
	delete(o.outputMappings, name)
	o.mu.Unlock()

	if inst == nil {
		return nil
	}

	if inst.Kind == model.InstanceResource {
		if inst.ResourceInstance.IsNone() {
			return nil
		}
		client, err := o.clients(inst.ResourceInstance.NodeId)
		if err != nil {
			return fmt.Errorf("orchestrator: dial agent %s: %w", inst.ResourceInstance.NodeId, err)
		}
		return client.StopResource(ctx, inst.ResourceInstance.NodeId, inst.ResourceInstance, inst.ResourceConfig.ClassType)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, r := range inst.Replicas {
		r := r
		g.Go(func() error {
			client, err := o.clients(r.InstanceId.NodeId)
			if err != nil {
				o.log.Warn("orchestrator: dial agent for stop failed", "instance", r.InstanceId, "error", err)
				return nil
			}
			if err := client.Stop(gctx, r.InstanceId.NodeId, r.InstanceId); err != nil {
				o.log.Warn("orchestrator: stop failed", "instance", r.InstanceId, "error", err)
			}
			return nil
		})
	}
	return g.Wait()
}

// PushAllPatches re-resolves every component's declared output_mapping
// against current bindings and pushes the ones that changed, using the
// mappings recorded at Place/PlaceResource time. This is the reconcile
// loop's periodic call; no caller needs to track output mappings itself.
func (o *Orchestrator) PushAllPatches(ctx context.Context) error {
	o.mu.Lock()
	outputMappings := make(map[string]map[string]string, len(o.outputMappings))
	for name, m := range o.outputMappings {
		outputMappings[name] = m
	}
	o.mu.Unlock()
	return o.PushPatches(ctx, outputMappings)
}

// PushPatches resolves every tracked component's output table against the
// current bindings and concurrently pushes only the ones that changed since
// the last push, fanning agent calls out with errgroup so one slow agent
// doesn't stall the others.
func (o *Orchestrator) PushPatches(ctx context.Context, outputMappings map[string]map[string]string) error {
	o.mu.Lock()
	bindings := make(map[string]model.ActiveInstance, len(o.active))
	for name, inst := range o.active {
		bindings[name] = *inst
	}
	o.mu.Unlock()

	type pending struct {
		name       string
		instanceID ids.InstanceId
		table      patch.Table
		mergePatch []byte
	}
	var toPush []pending

	o.mu.Lock()
	for name, mapping := range outputMappings {
		inst, ok := o.active[name]
		if !ok {
			continue
		}
		instanceID, ok := instanceAddress(inst)
		if !ok {
			continue
		}
		table := patch.Resolve(mapping, bindings)
		mergePatch, err := patch.Diff(o.tables[name], table)
		if err != nil {
			o.mu.Unlock()
			return fmt.Errorf("orchestrator: diff patch for %s: %w", name, err)
		}
		if mergePatch == nil {
			continue
		}
		o.tables[name] = table
		toPush = append(toPush, pending{name: name, instanceID: instanceID, table: table, mergePatch: mergePatch})
	}
	o.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, p := range toPush {
		p := p
		g.Go(func() error {
			client, err := o.clients(p.instanceID.NodeId)
			if err != nil {
				o.log.Warn("orchestrator: dial agent for patch failed", "component", p.name, "error", err)
				return nil
			}
			if err := client.Patch(gctx, p.instanceID.NodeId, p.instanceID, p.mergePatch); err != nil {
				o.log.Warn("orchestrator: push patch failed", "component", p.name, "error", err)
			}
			return nil
		})
	}
	return g.Wait()
}

func instanceAddress(inst *model.ActiveInstance) (ids.InstanceId, bool) {
	if inst.Kind == model.InstanceResource {
		if inst.ResourceInstance.IsNone() {
			return ids.InstanceId{}, false
		}
		return inst.ResourceInstance, true
	}
	if len(inst.Replicas) == 0 {
		return ids.InstanceId{}, false
	}
	return inst.Replicas[0].InstanceId, true
}

// HandleNodeLoss applies reconcile.NodeLoss to the tracked state (dropping
// replicas on lost and promoting a surviving hot standby) and fans out a
// Stop call for any ActionStopSurplus in the result; NodeLoss itself emits
// none. Components left with no replica are returned to the caller for
// re-placement (cmd/orchestrator passes them to RePlaceOrphans).
func (o *Orchestrator) HandleNodeLoss(ctx context.Context, lost ids.NodeId) []string {
	o.mu.Lock()
	actions := reconcile.NodeLoss(o.active, lost)
	o.mu.Unlock()

	var orphaned []string
	g, gctx := errgroup.WithContext(ctx)
	for _, a := range actions {
		switch a.Kind {
		case reconcile.ActionOrphaned:
			orphaned = append(orphaned, a.Component)
		case reconcile.ActionStopSurplus:
			a := a
			g.Go(func() error {
				client, err := o.clients(a.InstanceId.NodeId)
				if err != nil {
					return nil
				}
				if err := client.Stop(gctx, a.InstanceId.NodeId, a.InstanceId); err != nil {
					o.log.Warn("orchestrator: stop surplus replica failed", "instance", a.InstanceId, "error", err)
				}
				return nil
			})
		}
	}
	_ = g.Wait()
	return orphaned
}

// RePlaceOrphans retries placement for every component name HandleNodeLoss
// returned, reusing the SpawnRequest/ResourceSpawnRequest and deployment
// requirements recorded at the last placement. It returns the names that
// still could not be placed (no feasible node right now), which stay
// orphan until the next call. Per spec.md §4.4 "Reconciliation".
func (o *Orchestrator) RePlaceOrphans(ctx context.Context, names []string) []string {
	var stillOrphan []string
	for _, name := range names {
		o.mu.Lock()
		inst, ok := o.active[name]
		o.mu.Unlock()
		if !ok {
			continue
		}

		var err error
		if inst.Kind == model.InstanceResource {
			err = o.rePlaceOrphanResource(ctx, name)
		} else {
			err = o.rePlaceOrphanFunction(ctx, name)
		}
		if err != nil {
			o.log.Warn("orchestrator: re-place orphan failed", "component", name, "error", err)
			stillOrphan = append(stillOrphan, name)
		}
	}
	return stillOrphan
}

func (o *Orchestrator) rePlaceOrphanFunction(ctx context.Context, name string) error {
	o.mu.Lock()
	inst, ok := o.active[name]
	if !ok {
		o.mu.Unlock()
		return fmt.Errorf("orchestrator: %s is no longer tracked", name)
	}
	spawn := inst.Spawn
	req := inst.Requirements
	o.mu.Unlock()

	feasible, err := placement.Feasible(o.candidates(), spawn.ClassSpec.ClassType, req, o.evaluator)
	if err != nil {
		return fmt.Errorf("orchestrator: feasibility: %w", err)
	}
	chosen, err := o.strategy.Choose(feasible)
	if err != nil {
		return fmt.Errorf("orchestrator: placement: %w", err)
	}
	client, err := o.clients(chosen.NodeId)
	if err != nil {
		return fmt.Errorf("orchestrator: dial agent %s: %w", chosen.NodeId, err)
	}
	instanceID, err := client.SpawnFunction(ctx, chosen.NodeId, spawn)
	if err != nil {
		return fmt.Errorf("orchestrator: spawn on %s: %w", chosen.NodeId, err)
	}

	o.mu.Lock()
	if inst, ok := o.active[name]; ok {
		inst.Replicas = []model.FunctionReplica{{InstanceId: instanceID}}
	}
	o.mu.Unlock()
	return nil
}

func (o *Orchestrator) rePlaceOrphanResource(ctx context.Context, name string) error {
	o.mu.Lock()
	inst, ok := o.active[name]
	if !ok {
		o.mu.Unlock()
		return fmt.Errorf("orchestrator: %s is no longer tracked", name)
	}
	req := inst.ResourceConfig
	deploymentReq := inst.Requirements
	o.mu.Unlock()

	feasible, err := placement.Feasible(o.candidates(), req.ClassType, deploymentReq, o.evaluator)
	if err != nil {
		return fmt.Errorf("orchestrator: feasibility: %w", err)
	}
	chosen, err := o.strategy.Choose(feasible)
	if err != nil {
		return fmt.Errorf("orchestrator: placement: %w", err)
	}
	client, err := o.clients(chosen.NodeId)
	if err != nil {
		return fmt.Errorf("orchestrator: dial agent %s: %w", chosen.NodeId, err)
	}
	instanceID, err := client.SpawnResource(ctx, chosen.NodeId, req, nil)
	if err != nil {
		return fmt.Errorf("orchestrator: spawn resource on %s: %w", chosen.NodeId, err)
	}

	o.mu.Lock()
	if inst, ok := o.active[name]; ok {
		inst.ResourceInstance = instanceID
	}
	o.mu.Unlock()
	return nil
}

// ReconcileSurplus stops replicas beyond redundancyTarget for every tracked
// function component, the other half of spec.md §4.4 "Reconciliation"
// alongside RePlaceOrphans. Uses reconcile.Surplus, which keeps the
// replicas with the lowest InstanceIds and stops the rest, hot or not.
func (o *Orchestrator) ReconcileSurplus(ctx context.Context) {
	o.mu.Lock()
	var actions []reconcile.Action
	for _, inst := range o.active {
		actions = append(actions, reconcile.Surplus(inst, o.redundancyTarget)...)
	}
	o.mu.Unlock()

	if len(actions) == 0 {
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, a := range actions {
		a := a
		g.Go(func() error {
			client, err := o.clients(a.InstanceId.NodeId)
			if err != nil {
				return nil
			}
			if err := client.Stop(gctx, a.InstanceId.NodeId, a.InstanceId); err != nil {
				o.log.Warn("orchestrator: stop surplus replica failed", "instance", a.InstanceId, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// SyncProxy pushes the orchestrator's current view of the domain into the
// proxy's write keyspace (spec.md §4.7: "current nodes, providers, active
// instances, dependency graph"), so the operator read surface
// (ListNodes/ListInstances, internal/wire/httpapi/proxy_server.go) reflects
// live state instead of staying empty. Called from the reconcile loop; a
// Store failure is logged and never propagated, same as every other
// best-effort agent call here.
func (o *Orchestrator) SyncProxy(ctx context.Context) {
	if o.proxyWriter == nil {
		return
	}

	for _, reg := range o.register.List() {
		if err := o.proxyWriter.PutNode(ctx, reg); err != nil {
			o.log.Warn("orchestrator: proxy PutNode failed", "node", reg.NodeId, "error", err)
		}
	}

	o.mu.Lock()
	active := make(map[string]model.ActiveInstance, len(o.active))
	for name, inst := range o.active {
		active[name] = *inst
	}
	tables := make(map[string]patch.Table, len(o.tables))
	for name, t := range o.tables {
		tables[name] = t
	}
	o.mu.Unlock()

	for name, inst := range active {
		instanceID, ok := instanceAddress(&inst)
		if !ok {
			continue
		}
		if err := o.proxyWriter.PutInstance(ctx, instanceID, inst); err != nil {
			o.log.Warn("orchestrator: proxy PutInstance failed", "component", name, "error", err)
		}

		lid := inst.Spawn.Lid
		if inst.Kind == model.InstanceResource {
			lid = inst.ResourceConfig.Lid
			if err := o.proxyWriter.PutProvider(ctx, instanceID, inst.ResourceConfig.ClassType); err != nil {
				o.log.Warn("orchestrator: proxy PutProvider failed", "component", name, "error", err)
			}
		}
		if table, ok := tables[name]; ok {
			if err := o.proxyWriter.PutDependency(ctx, lid, table); err != nil {
				o.log.Warn("orchestrator: proxy PutDependency failed", "component", name, "error", err)
			}
		}
	}
}

// ConsumeIntents drains pending Migrate intents from the proxy and applies
// each: resolve a feasible target among its candidates, spawn there, and
// return the old instances the caller should retire once dependents have
// been repatched. A proxy read failure or an unsatisfiable intent is
// logged and skipped, never propagated (spec.md §4.7).
func (o *Orchestrator) ConsumeIntents(ctx context.Context, classOf func(lid ids.ComponentId) (model.ClassType, model.DeploymentRequirements, bool)) []intent.Plan {
	if o.intents == nil {
		return nil
	}
	pending, err := o.intents.PendingMigrations(ctx)
	if err != nil {
		o.log.Warn("orchestrator: proxy read failed", "error", err)
		return nil
	}

	known := make(map[ids.NodeId]model.NodeCapabilities)
	for _, r := range o.register.List() {
		known[r.NodeId] = r.Capabilities
	}

	var plans []intent.Plan
	for _, mi := range pending {
		class, req, ok := classOf(mi.Lid)
		if !ok {
			continue
		}
		target, err := intent.Resolve(mi, class, req, known, o.evaluator)
		if err != nil {
			o.log.Info("orchestrator: migrate intent not satisfiable", "lid", mi.Lid, "error", err)
			continue
		}

		existing := o.existingInstances(mi.Lid)

		client, err := o.clients(target)
		if err != nil {
			o.log.Warn("orchestrator: dial agent for migrate failed", "node", target, "error", err)
			continue
		}
		if _, err := client.SpawnFunction(ctx, target, model.SpawnRequest{Lid: mi.Lid}); err != nil {
			o.log.Warn("orchestrator: migrate spawn failed", "node", target, "error", err)
			continue
		}

		plans = append(plans, intent.BuildPlan(mi, target, existing))
	}
	return plans
}

func (o *Orchestrator) existingInstances(lid ids.ComponentId) []ids.InstanceId {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []ids.InstanceId
	for _, inst := range o.active {
		if inst.Kind != model.InstanceFunction {
			continue
		}
		for _, r := range inst.Replicas {
			if r.InstanceId.ComponentId == lid {
				out = append(out, r.InstanceId)
			}
		}
	}
	return out
}
