package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	jsonpatch "github.com/evanphx/json-patch/v5"

	"github.com/edgeless-project/edgeless/internal/ids"
	"github.com/edgeless-project/edgeless/internal/model"
	"github.com/edgeless-project/edgeless/internal/orchestrator/patch"
)

// AgentClient is the HTTP implementation of orchestrator.AgentClient: it
// talks to one node's AgentAPI server (RegisterAgentRoutes) over the base
// URL the node register advertises as AgentURL.
type AgentClient struct {
	baseURL string
	http    *http.Client

	mu     sync.Mutex
	tables map[ids.ComponentId][]byte
}

// NewAgentClient builds a client bound to one node's agent base URL.
func NewAgentClient(baseURL string, hc *http.Client) *AgentClient {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &AgentClient{baseURL: baseURL, http: hc, tables: make(map[ids.ComponentId][]byte)}
}

func (c *AgentClient) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	return doJSON(ctx, c.http, method, c.baseURL, path, body, out)
}

// SpawnFunction asks the node to instantiate a function component.
// spawn_function always fails with NotImplemented server-side today (the
// sandbox factory is out of scope); this client still exercises the real
// wire round trip.
func (c *AgentClient) SpawnFunction(ctx context.Context, node ids.NodeId, spawn model.SpawnRequest) (ids.InstanceId, error) {
	var resp spawnResponse
	if err := c.do(ctx, http.MethodPost, "/agent/functions", spawnFunctionWireRequest{Spawn: spawn}, &resp); err != nil {
		return ids.InstanceId{}, err
	}
	return resp.InstanceId, nil
}

type spawnFunctionWireRequest struct {
	Spawn model.SpawnRequest `json:"spawn"`
}

// SpawnResource asks the node to start a resource instance bound to the
// given resolved output table.
func (c *AgentClient) SpawnResource(ctx context.Context, node ids.NodeId, req model.ResourceSpawnRequest, outputMapping patch.Table) (ids.InstanceId, error) {
	wire := spawnResourceRequest{Request: req, OutputMapping: map[string]ids.InstanceId(outputMapping)}
	var resp spawnResponse
	if err := c.do(ctx, http.MethodPost, "/agent/resources", wire, &resp); err != nil {
		return ids.InstanceId{}, err
	}
	return resp.InstanceId, nil
}

// Patch applies a JSON Merge Patch computed by internal/orchestrator/patch
// against this client's last-known table for instance, then ships the
// resulting full table to the agent (resource.Provider.Patch replaces the
// whole output_mapping rather than applying a delta).
func (c *AgentClient) Patch(ctx context.Context, node ids.NodeId, instance ids.InstanceId, mergePatch []byte) error {
	c.mu.Lock()
	previous, ok := c.tables[instance.ComponentId]
	if !ok {
		previous = []byte("{}")
	}
	merged, err := jsonpatch.MergePatch(previous, mergePatch)
	if err != nil {
		c.mu.Unlock()
		return fmt.Errorf("httpapi: apply merge patch: %w", err)
	}
	c.tables[instance.ComponentId] = merged
	c.mu.Unlock()

	var table map[string]ids.InstanceId
	if err := json.Unmarshal(merged, &table); err != nil {
		return fmt.Errorf("httpapi: decode merged table: %w", err)
	}

	path := fmt.Sprintf("/agent/instances/%s/%s", instance.NodeId, instance.ComponentId)
	return c.do(ctx, http.MethodPatch, path, patchRequest{Table: table}, nil)
}

// Stop tears down the function replica identified by instance. Resource
// teardown goes through StopResource's class-scoped route instead.
func (c *AgentClient) Stop(ctx context.Context, node ids.NodeId, instance ids.InstanceId) error {
	path := fmt.Sprintf("/agent/functions/%s", instance.ComponentId)
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// StopResource tears down the resource instance identified by instance and
// class, via the class-scoped resource route.
func (c *AgentClient) StopResource(ctx context.Context, node ids.NodeId, instance ids.InstanceId, class model.ClassType) error {
	path := fmt.Sprintf("/agent/resources/%s/%s/%s", class, instance.NodeId, instance.ComponentId)
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}
