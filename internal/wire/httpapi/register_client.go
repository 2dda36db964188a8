package httpapi

import (
	"context"
	"net/http"

	"github.com/edgeless-project/edgeless/internal/model"
)

// NodeRegisterClient is the HTTP implementation of agent.RegisterClient: it
// reports a node's periodic registration to its domain orchestrator.
type NodeRegisterClient struct {
	baseURL string
	http    *http.Client
}

// NewNodeRegisterClient builds a client bound to one domain orchestrator's
// base URL.
func NewNodeRegisterClient(baseURL string, hc *http.Client) *NodeRegisterClient {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &NodeRegisterClient{baseURL: baseURL, http: hc}
}

// UpdateNode sends reg and reports whether it was accepted.
func (c *NodeRegisterClient) UpdateNode(ctx context.Context, reg model.NodeRegistration) (model.NodeRegistrationResult, error) {
	var resp registrationResultResponse
	if err := doJSON(ctx, c.http, http.MethodPost, c.baseURL, "/register/node", reg, &resp); err != nil {
		return model.RegistrationStale, err
	}
	return resp.Result, nil
}

// DomainRegisterClient is the domain orchestrator's analogous client,
// reporting its own periodic registration to the controller.
type DomainRegisterClient struct {
	baseURL string
	http    *http.Client
}

// NewDomainRegisterClient builds a client bound to the controller's base URL.
func NewDomainRegisterClient(baseURL string, hc *http.Client) *DomainRegisterClient {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &DomainRegisterClient{baseURL: baseURL, http: hc}
}

// UpdateDomain sends reg and reports whether it was accepted.
func (c *DomainRegisterClient) UpdateDomain(ctx context.Context, reg model.DomainRegistration) (model.NodeRegistrationResult, error) {
	var resp registrationResultResponse
	if err := doJSON(ctx, c.http, http.MethodPost, c.baseURL, "/register/domain", reg, &resp); err != nil {
		return model.RegistrationStale, err
	}
	return resp.Result, nil
}
