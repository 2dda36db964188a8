package controller

import (
	"context"
	"fmt"
	"testing"

	"github.com/edgeless-project/edgeless/internal/ids"
	"github.com/edgeless-project/edgeless/internal/model"
	"github.com/edgeless-project/edgeless/internal/obs/logger"
)

type fakeDomainClient struct {
	startFnErr  error
	startResErr error
	stopped     []ids.ComponentId
}

func (f *fakeDomainClient) StartFunction(ctx context.Context, name string, fn model.WorkflowFunction, lid ids.ComponentId) error {
	return f.startFnErr
}
func (f *fakeDomainClient) StartResource(ctx context.Context, name string, res model.WorkflowResource, lid ids.ComponentId) error {
	return f.startResErr
}
func (f *fakeDomainClient) StopFunction(ctx context.Context, lid ids.ComponentId) error {
	f.stopped = append(f.stopped, lid)
	return nil
}
func (f *fakeDomainClient) StopResource(ctx context.Context, lid ids.ComponentId) error {
	f.stopped = append(f.stopped, lid)
	return nil
}

type fakeDirectory struct {
	domain ids.DomainId
	client *fakeDomainClient
	down   bool
}

func (d *fakeDirectory) Healthy() []ids.DomainId {
	if d.down {
		return nil
	}
	return []ids.DomainId{d.domain}
}
func (d *fakeDirectory) Client(domain ids.DomainId) (DomainClient, error) {
	if domain != d.domain {
		return nil, fmt.Errorf("unknown domain")
	}
	return d.client, nil
}

func testController(t *testing.T) (*Controller, *fakeDirectory) {
	t.Helper()
	dir := &fakeDirectory{domain: "domain-a", client: &fakeDomainClient{}}
	return New(dir, logger.New("error", "text")), dir
}

func validRequest() model.WorkflowRequest {
	return model.WorkflowRequest{
		Name: "wf",
		Functions: []model.WorkflowFunction{
			{Name: "source", OutputMapping: map[string]string{"out": "sink"}},
		},
		Resources: []model.WorkflowResource{
			{Name: "sink"},
		},
	}
}

func TestStartWorkflowAdmitsAndBindsAllComponents(t *testing.T) {
	c, _ := testController(t)
	id, err := c.StartWorkflow(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wf, ok := c.Get(id)
	if !ok {
		t.Fatal("expected workflow to be persisted")
	}
	if wf.IsOrphan() {
		t.Fatal("expected no orphan components after successful admission")
	}
}

func TestStartWorkflowRejectsDuplicateNames(t *testing.T) {
	c, _ := testController(t)
	req := validRequest()
	req.Resources = append(req.Resources, model.WorkflowResource{Name: "source"})
	if _, err := c.StartWorkflow(context.Background(), req); err != ErrNameNotUnique {
		t.Fatalf("expected ErrNameNotUnique, got %v", err)
	}
}

func TestStartWorkflowRejectsDanglingOutput(t *testing.T) {
	c, _ := testController(t)
	req := validRequest()
	req.Functions[0].OutputMapping["out"] = "ghost"
	if _, err := c.StartWorkflow(context.Background(), req); err != ErrDanglingOutput {
		t.Fatalf("expected ErrDanglingOutput, got %v", err)
	}
}

func TestStartWorkflowRollsBackOnPartialFailure(t *testing.T) {
	dir := &fakeDirectory{domain: "domain-a", client: &fakeDomainClient{startResErr: fmt.Errorf("boom")}}
	c := New(dir, logger.New("error", "text"))

	_, err := c.StartWorkflow(context.Background(), validRequest())
	if err == nil {
		t.Fatal("expected error from failed resource start")
	}
	if len(dir.client.stopped) != 1 {
		t.Fatalf("expected the already-started function to be rolled back, got %d stops", len(dir.client.stopped))
	}
}

func TestStartWorkflowNoHealthyDomain(t *testing.T) {
	dir := &fakeDirectory{domain: "domain-a", client: &fakeDomainClient{}, down: true}
	c := New(dir, logger.New("error", "text"))
	if _, err := c.StartWorkflow(context.Background(), validRequest()); err != ErrNoHealthyDomain {
		t.Fatalf("expected ErrNoHealthyDomain, got %v", err)
	}
}

func TestOnDomainLossOrphansWorkflow(t *testing.T) {
	c, dir := testController(t)
	id, err := c.StartWorkflow(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	c.OnDomainLoss(dir.domain)

	wf, _ := c.Get(id)
	if !wf.IsOrphan() {
		t.Fatal("expected workflow to become orphan after domain loss")
	}
}

func TestRepairOrphansRebindsComponents(t *testing.T) {
	c, dir := testController(t)
	id, err := c.StartWorkflow(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c.OnDomainLoss(dir.domain)

	c.RepairOrphans(context.Background())

	wf, _ := c.Get(id)
	if wf.IsOrphan() {
		t.Fatal("expected repair to rebind all orphaned components")
	}
}

func TestStopWorkflowDropsRecordEvenOnPartialFailure(t *testing.T) {
	c, dir := testController(t)
	id, err := c.StartWorkflow(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// The domain the workflow was placed in can no longer be dialed.
	dir.domain = "domain-b"
	if err := c.StopWorkflow(context.Background(), id); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := c.Get(id); ok {
		t.Fatal("expected workflow record to be dropped after stop")
	}
}
