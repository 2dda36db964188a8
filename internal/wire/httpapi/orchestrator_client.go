package httpapi

import (
	"context"
	"net/http"

	"github.com/edgeless-project/edgeless/internal/ids"
	"github.com/edgeless-project/edgeless/internal/model"
)

// OrchestratorClient is the HTTP implementation of controller.DomainClient:
// it talks to one domain's OrchestratorAPI server (RegisterOrchestratorRoutes).
type OrchestratorClient struct {
	baseURL string
	http    *http.Client
}

// NewOrchestratorClient builds a client bound to one domain's orchestrator
// base URL.
func NewOrchestratorClient(baseURL string, hc *http.Client) *OrchestratorClient {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &OrchestratorClient{baseURL: baseURL, http: hc}
}

func (c *OrchestratorClient) do(ctx context.Context, method, path string, body interface{}) error {
	return doJSON(ctx, c.http, method, c.baseURL, path, body, nil)
}

// StartFunction admits a function component into the domain.
func (c *OrchestratorClient) StartFunction(ctx context.Context, name string, fn model.WorkflowFunction, lid ids.ComponentId) error {
	return c.do(ctx, http.MethodPost, "/orchestrator/functions", startFunctionRequest{Name: name, Function: fn, Lid: lid})
}

// StartResource admits a resource component into the domain.
func (c *OrchestratorClient) StartResource(ctx context.Context, name string, res model.WorkflowResource, lid ids.ComponentId) error {
	return c.do(ctx, http.MethodPost, "/orchestrator/resources", startResourceRequest{Name: name, Resource: res, Lid: lid})
}

// StopFunction tears a function component down.
func (c *OrchestratorClient) StopFunction(ctx context.Context, lid ids.ComponentId) error {
	return c.do(ctx, http.MethodDelete, "/orchestrator/functions/"+lid.String(), nil)
}

// StopResource tears a resource component down.
func (c *OrchestratorClient) StopResource(ctx context.Context, lid ids.ComponentId) error {
	return c.do(ctx, http.MethodDelete, "/orchestrator/resources/"+lid.String(), nil)
}
