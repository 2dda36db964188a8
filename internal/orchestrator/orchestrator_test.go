package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/edgeless-project/edgeless/internal/ids"
	"github.com/edgeless-project/edgeless/internal/model"
	"github.com/edgeless-project/edgeless/internal/obs/logger"
	"github.com/edgeless-project/edgeless/internal/orchestrator/patch"
	"github.com/edgeless-project/edgeless/internal/orchestrator/placement"
)

type fakeRegister struct {
	nodes []model.NodeRegistration
}

func (f *fakeRegister) List() []model.NodeRegistration { return f.nodes }

type fakeClient struct {
	mu       sync.Mutex
	spawned  int
	patched  int
	stopped  int
	failNext bool
}

func (f *fakeClient) SpawnFunction(ctx context.Context, node ids.NodeId, spawn model.SpawnRequest) (ids.InstanceId, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext {
		return ids.InstanceId{}, fmt.Errorf("spawn failed")
	}
	f.spawned++
	return ids.InstanceId{NodeId: node, ComponentId: spawn.Lid}, nil
}

func (f *fakeClient) SpawnResource(ctx context.Context, node ids.NodeId, req model.ResourceSpawnRequest, outputMapping patch.Table) (ids.InstanceId, error) {
	return ids.InstanceId{NodeId: node, ComponentId: req.Lid}, nil
}

func (f *fakeClient) Patch(ctx context.Context, node ids.NodeId, instance ids.InstanceId, mergePatch []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.patched++
	return nil
}

func (f *fakeClient) Stop(ctx context.Context, node ids.NodeId, instance ids.InstanceId) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped++
	return nil
}

func (f *fakeClient) StopResource(ctx context.Context, node ids.NodeId, instance ids.InstanceId, class model.ClassType) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped++
	return nil
}

func testOrchestrator(t *testing.T, nodes []model.NodeRegistration, client *fakeClient) *Orchestrator {
	t.Helper()
	factory := func(ids.NodeId) (AgentClient, error) { return client, nil }
	return New(&fakeRegister{nodes: nodes}, factory, placement.RandomStrategy{}, nil, nil, nil, 1, logger.New("error", "text"))
}

type fakeProxyWriter struct {
	mu           sync.Mutex
	nodes        int
	providers    int
	instances    int
	dependencies int
}

func (f *fakeProxyWriter) PutNode(ctx context.Context, reg model.NodeRegistration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nodes++
	return nil
}

func (f *fakeProxyWriter) PutProvider(ctx context.Context, providerID ids.InstanceId, classType model.ClassType) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.providers++
	return nil
}

func (f *fakeProxyWriter) PutInstance(ctx context.Context, instanceID ids.InstanceId, active model.ActiveInstance) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.instances++
	return nil
}

func (f *fakeProxyWriter) PutDependency(ctx context.Context, lid ids.ComponentId, outputMapping map[string]ids.InstanceId) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dependencies++
	return nil
}

func TestPlaceChoosesFeasibleNodeAndSpawns(t *testing.T) {
	node := ids.NewNodeId()
	nodes := []model.NodeRegistration{
		{NodeId: node, Capabilities: model.NodeCapabilities{NumCpus: 1, NumCores: 1, Runtimes: []model.ClassType{model.ClassContainer}}},
	}
	client := &fakeClient{}
	o := testOrchestrator(t, nodes, client)

	lid := ids.NewComponentId()
	instanceID, err := o.Place(context.Background(), "worker", model.SpawnRequest{Lid: lid}, model.ClassContainer, model.DeploymentRequirements{}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if instanceID.NodeId != node || instanceID.ComponentId != lid {
		t.Fatalf("unexpected instance id: %+v", instanceID)
	}
	if client.spawned != 1 {
		t.Fatalf("expected exactly one spawn call")
	}
}

func TestPlaceNoFeasibleNodeErrors(t *testing.T) {
	client := &fakeClient{}
	o := testOrchestrator(t, nil, client)

	_, err := o.Place(context.Background(), "worker", model.SpawnRequest{Lid: ids.NewComponentId()}, model.ClassContainer, model.DeploymentRequirements{}, nil)
	if err == nil {
		t.Fatal("expected an error when no node is feasible")
	}
}

func TestPushPatchesOnlyPushesChangedTables(t *testing.T) {
	nodeA := ids.NewNodeId()
	client := &fakeClient{}
	o := testOrchestrator(t, nil, client)

	sinkID := ids.InstanceId{NodeId: nodeA, ComponentId: ids.NewComponentId()}
	sourceID := ids.InstanceId{NodeId: nodeA, ComponentId: ids.NewComponentId()}

	o.active["sink"] = &model.ActiveInstance{Kind: model.InstanceFunction, Replicas: []model.FunctionReplica{{InstanceId: sinkID}}}
	o.active["source"] = &model.ActiveInstance{Kind: model.InstanceFunction, Replicas: []model.FunctionReplica{{InstanceId: sourceID}}}

	mappings := map[string]map[string]string{"source": {"out": "sink"}}

	if err := o.PushPatches(context.Background(), mappings); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.patched != 1 {
		t.Fatalf("expected one patch push, got %d", client.patched)
	}

	// Second call with identical bindings must be a no-op (diff is nil).
	if err := o.PushPatches(context.Background(), mappings); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.patched != 1 {
		t.Fatalf("expected no additional patch push, got %d", client.patched)
	}
}

func TestHandleNodeLossReturnsOnlyOrphans(t *testing.T) {
	lost := ids.NewNodeId()
	survivor := ids.NewNodeId()
	client := &fakeClient{}
	o := testOrchestrator(t, nil, client)

	o.active["orphan"] = &model.ActiveInstance{
		Kind:     model.InstanceFunction,
		Replicas: []model.FunctionReplica{{InstanceId: ids.InstanceId{NodeId: lost, ComponentId: ids.NewComponentId()}}},
	}
	o.active["promoted"] = &model.ActiveInstance{
		Kind: model.InstanceFunction,
		Replicas: []model.FunctionReplica{
			{InstanceId: ids.InstanceId{NodeId: lost, ComponentId: ids.NewComponentId()}},
			{InstanceId: ids.InstanceId{NodeId: survivor, ComponentId: ids.NewComponentId()}, IsHot: true},
		},
	}

	orphaned := o.HandleNodeLoss(context.Background(), lost)
	if len(orphaned) != 1 || orphaned[0] != "orphan" {
		t.Fatalf("expected exactly the orphaned component, got %+v", orphaned)
	}
}

func TestRePlaceOrphansRestoresFunctionOnSurvivingNode(t *testing.T) {
	survivor := ids.NewNodeId()
	nodes := []model.NodeRegistration{
		{NodeId: survivor, Capabilities: model.NodeCapabilities{NumCpus: 1, NumCores: 1, Runtimes: []model.ClassType{model.ClassContainer}}},
	}
	client := &fakeClient{}
	o := testOrchestrator(t, nodes, client)

	lid := ids.NewComponentId()
	o.active["worker"] = &model.ActiveInstance{
		Kind:     model.InstanceFunction,
		Spawn:    model.SpawnRequest{Lid: lid, ClassSpec: model.FunctionClassSpec{ClassType: model.ClassContainer}},
		Replicas: nil,
	}

	stillOrphan := o.RePlaceOrphans(context.Background(), []string{"worker"})
	if len(stillOrphan) != 0 {
		t.Fatalf("expected worker to be re-placed, still orphan: %+v", stillOrphan)
	}
	if client.spawned != 1 {
		t.Fatalf("expected one spawn call, got %d", client.spawned)
	}
	if len(o.active["worker"].Replicas) != 1 || o.active["worker"].Replicas[0].InstanceId.NodeId != survivor {
		t.Fatalf("expected worker re-placed on survivor, got %+v", o.active["worker"].Replicas)
	}
}

func TestRePlaceOrphansReturnsStillOrphanWhenNoFeasibleNode(t *testing.T) {
	client := &fakeClient{}
	o := testOrchestrator(t, nil, client)

	o.active["worker"] = &model.ActiveInstance{
		Kind:  model.InstanceFunction,
		Spawn: model.SpawnRequest{Lid: ids.NewComponentId(), ClassSpec: model.FunctionClassSpec{ClassType: model.ClassContainer}},
	}

	stillOrphan := o.RePlaceOrphans(context.Background(), []string{"worker"})
	if len(stillOrphan) != 1 || stillOrphan[0] != "worker" {
		t.Fatalf("expected worker to remain orphan, got %+v", stillOrphan)
	}
}

func TestReconcileSurplusStopsReplicasBeyondTarget(t *testing.T) {
	nodeA := ids.NewNodeId()
	nodeB := ids.NewNodeId()
	client := &fakeClient{}
	o := testOrchestrator(t, nil, client)

	o.active["worker"] = &model.ActiveInstance{
		Kind: model.InstanceFunction,
		Replicas: []model.FunctionReplica{
			{InstanceId: ids.InstanceId{NodeId: nodeA, ComponentId: ids.NewComponentId()}},
			{InstanceId: ids.InstanceId{NodeId: nodeB, ComponentId: ids.NewComponentId()}},
		},
	}

	o.ReconcileSurplus(context.Background())
	if client.stopped != 1 {
		t.Fatalf("expected exactly one surplus stop, got %d", client.stopped)
	}
	if len(o.active["worker"].Replicas) != 1 {
		t.Fatalf("expected one surviving replica, got %+v", o.active["worker"].Replicas)
	}
}

func TestSyncProxyPushesNodesInstancesAndDependencies(t *testing.T) {
	node := ids.NewNodeId()
	nodes := []model.NodeRegistration{
		{NodeId: node, Capabilities: model.NodeCapabilities{NumCpus: 1, NumCores: 1, Runtimes: []model.ClassType{model.ClassContainer}}},
	}
	client := &fakeClient{}
	o := testOrchestrator(t, nodes, client)
	writer := &fakeProxyWriter{}
	o.proxyWriter = writer

	lid := ids.NewComponentId()
	if _, err := o.Place(context.Background(), "worker", model.SpawnRequest{Lid: lid}, model.ClassContainer, model.DeploymentRequirements{}, map[string]string{"out": "worker"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := o.PushAllPatches(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	o.SyncProxy(context.Background())

	writer.mu.Lock()
	defer writer.mu.Unlock()
	if writer.nodes != 1 {
		t.Fatalf("expected one PutNode call, got %d", writer.nodes)
	}
	if writer.instances != 1 {
		t.Fatalf("expected one PutInstance call, got %d", writer.instances)
	}
	if writer.dependencies != 1 {
		t.Fatalf("expected one PutDependency call, got %d", writer.dependencies)
	}
}

func TestSyncProxyNilWriterIsNoop(t *testing.T) {
	client := &fakeClient{}
	o := testOrchestrator(t, nil, client)
	o.SyncProxy(context.Background())
}

func TestStopByLidTearsDownFunctionReplicas(t *testing.T) {
	node := ids.NewNodeId()
	nodes := []model.NodeRegistration{
		{NodeId: node, Capabilities: model.NodeCapabilities{NumCpus: 1, NumCores: 1, Runtimes: []model.ClassType{model.ClassContainer}}},
	}
	client := &fakeClient{}
	o := testOrchestrator(t, nodes, client)

	lid := ids.NewComponentId()
	if _, err := o.Place(context.Background(), "worker", model.SpawnRequest{Lid: lid}, model.ClassContainer, model.DeploymentRequirements{}, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := o.StopByLid(context.Background(), lid); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.stopped != 1 {
		t.Fatalf("expected one stop call, got %d", client.stopped)
	}
	if _, ok := o.active["worker"]; ok {
		t.Fatal("expected component to be removed from active state")
	}

	if err := o.StopByLid(context.Background(), lid); err == nil {
		t.Fatal("expected an error stopping an already-removed lid")
	}
}

func TestPlaceResourceChoosesFeasibleNodeAndSpawns(t *testing.T) {
	node := ids.NewNodeId()
	nodes := []model.NodeRegistration{
		{NodeId: node, Capabilities: model.NodeCapabilities{NumCpus: 1, NumCores: 1, Runtimes: []model.ClassType{model.ClassFileLog}}},
	}
	client := &fakeClient{}
	o := testOrchestrator(t, nodes, client)

	lid := ids.NewComponentId()
	instanceID, err := o.PlaceResource(context.Background(), "logger", model.ResourceSpawnRequest{Lid: lid, ClassType: model.ClassFileLog}, model.ClassFileLog, model.DeploymentRequirements{}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if instanceID.NodeId != node || instanceID.ComponentId != lid {
		t.Fatalf("unexpected instance id: %+v", instanceID)
	}

	if err := o.StopByLid(context.Background(), lid); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.stopped != 1 {
		t.Fatalf("expected one stop call, got %d", client.stopped)
	}
}
