package agent

import (
	"context"
	"testing"

	"github.com/edgeless-project/edgeless/internal/dataplane"
	"github.com/edgeless-project/edgeless/internal/ids"
	"github.com/edgeless-project/edgeless/internal/model"
	"github.com/edgeless-project/edgeless/internal/obs/logger"
	"github.com/edgeless-project/edgeless/internal/resource"
)

type fakeInstance struct{ stopped bool }

func (f *fakeInstance) Instantiate(ctx context.Context, spec model.FunctionClassSpec) error { return nil }
func (f *fakeInstance) Init(ctx context.Context, payload []byte) error                      { return nil }
func (f *fakeInstance) Cast(ctx context.Context, source string, data []byte) error           { return nil }
func (f *fakeInstance) Call(ctx context.Context, source string, data []byte) ([]byte, error) {
	return nil, nil
}
func (f *fakeInstance) Stop(ctx context.Context) error { f.stopped = true; return nil }

type fakeRegisterClient struct {
	lastReg model.NodeRegistration
	result  model.NodeRegistrationResult
}

func (f *fakeRegisterClient) UpdateNode(ctx context.Context, reg model.NodeRegistration) (model.NodeRegistrationResult, error) {
	f.lastReg = reg
	return f.result, nil
}

func testAgent(t *testing.T) (*Agent, *fakeRegisterClient) {
	t.Helper()
	node := ids.NewNodeId()
	log := logger.New("error", "text")
	local := dataplane.NewLocalLink(node, log)
	chain := dataplane.NewChain(local)
	router := dataplane.NewRouter(node, chain, log)
	registry := resource.NewRegistry()
	rc := &fakeRegisterClient{result: model.RegistrationAccepted}
	probe := func() model.NodeCapabilities {
		return model.NodeCapabilities{NumCpus: 1, NumCores: 4, Runtimes: []model.ClassType{model.ClassContainer}}
	}
	a := New(node, local, router, registry, rc, probe, "http://agent", "http://invoke", log)
	return a, rc
}

func TestSpawnAndStop(t *testing.T) {
	a, _ := testAgent(t)
	fi := &fakeInstance{}
	lid := ids.NewComponentId()

	id, err := a.Spawn(context.Background(), model.SpawnRequest{Lid: lid}, fi, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id.ComponentId != lid {
		t.Fatalf("unexpected component id in returned instance id")
	}

	if err := a.Stop(context.Background(), lid); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !fi.stopped {
		t.Fatal("expected instance to be stopped")
	}
}

func TestStopUnknownInstance(t *testing.T) {
	a, _ := testAgent(t)
	if err := a.Stop(context.Background(), ids.NewComponentId()); err == nil {
		t.Fatal("expected error stopping unknown instance")
	}
}

func TestRegisterSendsIncreasingCounter(t *testing.T) {
	a, rc := testAgent(t)

	if _, err := a.Register(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	firstCounter := rc.lastReg.Counter

	if _, err := a.Register(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rc.lastReg.Counter <= firstCounter {
		t.Fatalf("expected counter to increase, got %d then %d", firstCounter, rc.lastReg.Counter)
	}
}

func TestSpawnResourceUnknownClass(t *testing.T) {
	a, _ := testAgent(t)
	_, err := a.SpawnResource(context.Background(), model.ResourceSpawnRequest{ClassType: model.ClassRedis}, nil)
	if err == nil {
		t.Fatal("expected error for unregistered class type")
	}
}
