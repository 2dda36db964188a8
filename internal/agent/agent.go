// Package agent implements the AgentAPI of spec.md §5-§6: the node-local
// service bundling function runners and resource providers, periodically
// reporting capabilities to its domain's node register and accepting
// NodeManagementAPI peer updates for the dataplane's RemoteLink. Adapted
// from the teacher's cmd/workflow-runner/supervisor (ticker-driven
// background loop reporting status upstream).
package agent

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/edgeless-project/edgeless/internal/dataplane"
	"github.com/edgeless-project/edgeless/internal/ids"
	"github.com/edgeless-project/edgeless/internal/model"
	"github.com/edgeless-project/edgeless/internal/obs/logger"
	"github.com/edgeless-project/edgeless/internal/resource"
	"github.com/edgeless-project/edgeless/internal/runtime/instance"
)

// RegisterClient is the agent's view of the node register: send a
// registration report, get back whether it was accepted.
type RegisterClient interface {
	UpdateNode(ctx context.Context, reg model.NodeRegistration) (model.NodeRegistrationResult, error)
}

// CapabilityProbe reports this node's current hardware/runtime capabilities.
// Concrete probing (cpuid, /proc, tee attestation) is out of scope (spec.md
// §1 Non-goals); callers supply a probe function appropriate to their node.
type CapabilityProbe func() model.NodeCapabilities

// Agent is the node-local runtime: it owns the function Runners and
// resource Providers actually hosted here, and keeps the domain's register
// informed of its liveness and capabilities.
type Agent struct {
	self ids.NodeId

	mu              sync.RWMutex
	runners         map[ids.ComponentId]*instance.Runner
	resourceClasses map[ids.ComponentId]model.ClassType
	resources       *resource.Registry

	local  *dataplane.LocalLink
	router *dataplane.Router

	register RegisterClient
	probe    CapabilityProbe
	nonce    uint64
	counter  uint64

	agentURL      string
	invocationURL string

	log *logger.Logger
}

// New creates an Agent for node self.
func New(self ids.NodeId, local *dataplane.LocalLink, router *dataplane.Router, resources *resource.Registry, register RegisterClient, probe CapabilityProbe, agentURL, invocationURL string, log *logger.Logger) *Agent {
	return &Agent{
		self:            self,
		runners:         make(map[ids.ComponentId]*instance.Runner),
		resourceClasses: make(map[ids.ComponentId]model.ClassType),
		resources:       resources,
		local:         local,
		router:        router,
		register:      register,
		probe:         probe,
		nonce:         newNonce(),
		agentURL:      agentURL,
		invocationURL: invocationURL,
		log:           log,
	}
}

// Spawn creates a function instance runner for spawn, wiring it into the
// local dataplane queue so casts/calls addressed to its ComponentId reach
// it. The caller supplies the already-instantiated FunctionInstance (the
// concrete sandbox is out of scope, per spec.md §1).
func (a *Agent) Spawn(ctx context.Context, spawn model.SpawnRequest, fi instance.FunctionInstance, emit func(model.TelemetryEvent)) (ids.InstanceId, error) {
	if err := fi.Instantiate(ctx, spawn.ClassSpec); err != nil {
		return ids.InstanceId{}, fmt.Errorf("agent: instantiate: %w", err)
	}

	id := ids.InstanceId{NodeId: a.self, ComponentId: spawn.Lid}
	runner := instance.NewRunner(id, fi, emit)

	inbox := a.local.Register(spawn.Lid)
	go a.pump(id, inbox, runner)

	a.mu.Lock()
	a.runners[spawn.Lid] = runner
	a.mu.Unlock()

	if emit != nil {
		emit(model.TelemetryEvent{Type: model.FunctionInstantiate, InstanceId: id})
	}
	return id, nil
}

// pump forwards every event delivered to id's local queue into runner's
// Cast/Call, the same pattern every resource.Provider uses to drain its own
// inbox (e.g. fileres.Start, httpres.Start). It exits once Stop closes
// inbox via a.local.Deregister.
func (a *Agent) pump(id ids.InstanceId, inbox <-chan model.Event, runner *instance.Runner) {
	for ev := range inbox {
		switch ev.Kind {
		case model.EventCall:
			reply, err := runner.Call(context.Background(), ev.Source.String(), ev.Data)
			if err != nil {
				reply = []byte(err.Error())
			}
			a.router.DeliverReply(model.Event{
				Source:   id,
				StreamId: ev.StreamId,
				Kind:     model.EventCallRet,
				Data:     reply,
			})
		default:
			if err := runner.Cast(context.Background(), ev.Source.String(), ev.Data); err != nil {
				a.log.Error("agent: cast delivery failed", "instance_id", id.String(), "error", err)
			}
		}
	}
}

// SpawnResource delegates to the resource provider registered for the
// requested class type.
func (a *Agent) SpawnResource(ctx context.Context, req model.ResourceSpawnRequest, outputMapping map[string]ids.InstanceId) (ids.InstanceId, error) {
	provider, ok := a.resources.Lookup(req.ClassType)
	if !ok {
		return ids.InstanceId{}, fmt.Errorf("agent: no provider for class type %q", req.ClassType)
	}
	instanceID, err := provider.Start(ctx, req.Lid, resource.InstanceSpec{
		ClassType:     req.ClassType,
		OutputMapping: outputMapping,
		Configuration: req.Configurations,
	})
	if err != nil {
		return ids.InstanceId{}, err
	}
	a.mu.Lock()
	a.resourceClasses[req.Lid] = req.ClassType
	a.mu.Unlock()
	return instanceID, nil
}

// Patch pushes a freshly resolved output table to the component identified
// by lid. Only resources support this today: they carry their output
// mapping as live provider state (resource.Provider.Patch). Function
// instances resolve their output mapping through the guest's own cast/call
// addressing and have no patch hook yet, so lid naming a function fails.
func (a *Agent) Patch(ctx context.Context, lid ids.ComponentId, table map[string]ids.InstanceId) error {
	a.mu.RLock()
	class, ok := a.resourceClasses[lid]
	a.mu.RUnlock()
	if !ok {
		return fmt.Errorf("agent: component %s does not accept patches", lid.String())
	}
	provider, ok := a.resources.Lookup(class)
	if !ok {
		return fmt.Errorf("agent: no provider for class type %q", class)
	}
	instanceID := ids.InstanceId{NodeId: a.self, ComponentId: lid}
	return provider.Patch(ctx, instanceID, table)
}

// Stop tears down a function instance runner.
func (a *Agent) Stop(ctx context.Context, lid ids.ComponentId) error {
	a.mu.Lock()
	runner, ok := a.runners[lid]
	delete(a.runners, lid)
	a.mu.Unlock()
	if !ok {
		return fmt.Errorf("agent: no instance for component %s", lid.String())
	}
	a.local.Deregister(lid)
	return runner.Stop(ctx)
}

// StopResource tears down a resource instance via its provider.
func (a *Agent) StopResource(ctx context.Context, class model.ClassType, instanceID ids.InstanceId) error {
	provider, ok := a.resources.Lookup(class)
	if !ok {
		return fmt.Errorf("agent: no provider for class type %q", class)
	}
	return provider.Stop(ctx, instanceID)
}

// Register sends one UpdateNodeRequest with the current capability probe
// and a strictly-increasing counter, per spec.md §6.
func (a *Agent) Register(ctx context.Context) (model.NodeRegistrationResult, error) {
	a.mu.Lock()
	a.counter++
	counter := a.counter
	a.mu.Unlock()

	reg := model.NodeRegistration{
		NodeId:        a.self,
		AgentURL:      a.agentURL,
		InvocationURL: a.invocationURL,
		Capabilities:  a.probe(),
		Nonce:         a.nonce,
		Counter:       counter,
	}
	return a.register.UpdateNode(ctx, reg)
}

// RunRegistrationLoop periodically re-registers at period, per spec.md §6
// REFRESH_PERIOD, until ctx is cancelled.
func (a *Agent) RunRegistrationLoop(ctx context.Context, period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	if _, err := a.Register(ctx); err != nil {
		a.log.Error("agent: initial registration failed", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := a.Register(ctx); err != nil {
				a.log.Error("agent: registration failed", "error", err)
			}
		}
	}
}

// UpdatePeersAdd registers the given peer's InvocationClient with the
// RemoteLink, mirroring NodeManagementAPI::update_peers(Add) in spec.md §6.
func (a *Agent) UpdatePeersAdd(remote *dataplane.RemoteLink, peer ids.NodeId, client dataplane.InvocationClient) {
	remote.AddPeer(peer, client)
}

// UpdatePeersDel mirrors update_peers(Del).
func (a *Agent) UpdatePeersDel(remote *dataplane.RemoteLink, peer ids.NodeId) {
	remote.RemovePeer(peer)
}

// UpdatePeersClear mirrors update_peers(Clear).
func (a *Agent) UpdatePeersClear(remote *dataplane.RemoteLink) {
	remote.Clear()
}

// newNonce derives a process-lifetime nonce from a fresh random UUID,
// never zero so a brand-new process always outranks an absent prior nonce.
func newNonce() uint64 {
	id := uuid.New()
	n := binary.BigEndian.Uint64(id[:8])
	if n == 0 {
		return 1
	}
	return n
}
