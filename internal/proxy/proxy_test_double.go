package proxy

import (
	"context"
	"sync"

	"github.com/edgeless-project/edgeless/internal/ids"
	"github.com/edgeless-project/edgeless/internal/model"
)

// ProxyTest is an in-memory Store, used by orchestrator/controller tests
// that need a Store without a live Redis instance, mirroring spec.md §4.7's
// own "in-memory ProxyTest for testing" requirement.
type ProxyTest struct {
	mu           sync.Mutex
	nodes        map[ids.NodeId]model.NodeRegistration
	providers    map[ids.InstanceId]model.ClassType
	instances    map[ids.InstanceId]model.ActiveInstance
	dependencies map[ids.ComponentId]map[string]ids.InstanceId
	performance  map[string][]performanceSample
	intents      map[ids.ComponentId][]ids.NodeId
}

type performanceSample struct {
	timestamp int64
	value     float64
}

// NewProxyTest creates an empty in-memory proxy double.
func NewProxyTest() *ProxyTest {
	return &ProxyTest{
		nodes:        make(map[ids.NodeId]model.NodeRegistration),
		providers:    make(map[ids.InstanceId]model.ClassType),
		instances:    make(map[ids.InstanceId]model.ActiveInstance),
		dependencies: make(map[ids.ComponentId]map[string]ids.InstanceId),
		performance:  make(map[string][]performanceSample),
		intents:      make(map[ids.ComponentId][]ids.NodeId),
	}
}

func (p *ProxyTest) PutNode(ctx context.Context, reg model.NodeRegistration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nodes[reg.NodeId] = reg
	return nil
}

func (p *ProxyTest) PutProvider(ctx context.Context, providerID ids.InstanceId, classType model.ClassType) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.providers[providerID] = classType
	return nil
}

func (p *ProxyTest) PutInstance(ctx context.Context, instanceID ids.InstanceId, active model.ActiveInstance) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.instances[instanceID] = active
	return nil
}

func (p *ProxyTest) PutDependency(ctx context.Context, lid ids.ComponentId, outputMapping map[string]ids.InstanceId) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dependencies[lid] = outputMapping
	return nil
}

func (p *ProxyTest) PutPerformanceSample(ctx context.Context, category, name string, timestamp int64, value float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	key := category + ":" + name
	p.performance[key] = append(p.performance[key], performanceSample{timestamp: timestamp, value: value})
	return nil
}

func (p *ProxyTest) WriteMigrateIntent(ctx context.Context, lid ids.ComponentId, candidateNodes []ids.NodeId) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.intents[lid] = candidateNodes
	return nil
}

func (p *ProxyTest) PendingMigrations(ctx context.Context) ([]model.MigrateIntent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]model.MigrateIntent, 0, len(p.intents))
	for lid, nodes := range p.intents {
		out = append(out, model.MigrateIntent{Lid: lid, CandidateNodes: nodes})
	}
	p.intents = make(map[ids.ComponentId][]ids.NodeId)
	return out, nil
}

func (p *ProxyTest) ListNodes(ctx context.Context) ([]model.NodeRegistration, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]model.NodeRegistration, 0, len(p.nodes))
	for _, reg := range p.nodes {
		out = append(out, reg)
	}
	return out, nil
}

func (p *ProxyTest) ListInstances(ctx context.Context) (map[ids.InstanceId]model.ActiveInstance, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[ids.InstanceId]model.ActiveInstance, len(p.instances))
	for id, inst := range p.instances {
		out[id] = inst
	}
	return out, nil
}

func (p *ProxyTest) PerformanceSamples(ctx context.Context, category, name string) ([]model.PerformanceSample, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	key := category + ":" + name
	samples := p.performance[key]
	out := make([]model.PerformanceSample, len(samples))
	for i, s := range samples {
		out[i] = model.PerformanceSample{Timestamp: s.timestamp, Value: s.value}
	}
	return out, nil
}

// Node returns a stored node registration, for test assertions.
func (p *ProxyTest) Node(id ids.NodeId) (model.NodeRegistration, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	reg, ok := p.nodes[id]
	return reg, ok
}

// Instance returns a stored active instance, for test assertions.
func (p *ProxyTest) Instance(id ids.InstanceId) (model.ActiveInstance, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	inst, ok := p.instances[id]
	return inst, ok
}
