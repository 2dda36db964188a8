package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/edgeless-project/edgeless/internal/agent"
	"github.com/edgeless-project/edgeless/internal/ids"
	"github.com/edgeless-project/edgeless/internal/model"
)

// RegisterAgentRoutes mounts AgentAPI under /agent on e. Spawning a
// function instance needs a sandbox-specific FunctionInstance, which is out
// of scope (spec.md §1); spawn_function therefore responds NotImplemented
// here, while spawn_resource (backed entirely by internal/resource
// providers) is fully wired.
func RegisterAgentRoutes(e *echo.Echo, a *agent.Agent, emit func(model.TelemetryEvent)) {
	h := &agentHandler{agent: a, emit: emit}
	g := e.Group("/agent")
	g.POST("/functions", h.spawnFunction)
	g.POST("/resources", h.spawnResource)
	g.DELETE("/functions/:lid", h.stopFunction)
	g.DELETE("/resources/:class/:node/:component", h.stopResource)
	g.PATCH("/instances/:node/:component", h.patch)
}

type agentHandler struct {
	agent *agent.Agent
	emit  func(model.TelemetryEvent)
}

type spawnResponse struct {
	InstanceId ids.InstanceId `json:"instance_id"`
}

func (h *agentHandler) spawnFunction(c echo.Context) error {
	return respondError(c, http.StatusNotImplemented, "spawn_function requires a sandbox-specific FunctionInstance factory", nil)
}

type spawnResourceRequest struct {
	Request       model.ResourceSpawnRequest `json:"request"`
	OutputMapping map[string]ids.InstanceId  `json:"output_mapping"`
}

func (h *agentHandler) spawnResource(c echo.Context) error {
	var req spawnResourceRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, http.StatusBadRequest, "malformed spawn_resource request", err)
	}
	instanceID, err := h.agent.SpawnResource(c.Request().Context(), req.Request, req.OutputMapping)
	if err != nil {
		return respondError(c, http.StatusUnprocessableEntity, "spawn_resource failed", err)
	}
	return c.JSON(http.StatusOK, spawnResponse{InstanceId: instanceID})
}

func (h *agentHandler) stopFunction(c echo.Context) error {
	var lid ids.ComponentId
	if err := lid.UnmarshalText([]byte(c.Param("lid"))); err != nil {
		return respondError(c, http.StatusBadRequest, "malformed component id", err)
	}
	if err := h.agent.Stop(c.Request().Context(), lid); err != nil {
		return respondError(c, http.StatusNotFound, "stop_function failed", err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *agentHandler) stopResource(c echo.Context) error {
	class := model.ClassType(c.Param("class"))
	var node ids.NodeId
	if err := node.UnmarshalText([]byte(c.Param("node"))); err != nil {
		return respondError(c, http.StatusBadRequest, "malformed node id", err)
	}
	var component ids.ComponentId
	if err := component.UnmarshalText([]byte(c.Param("component"))); err != nil {
		return respondError(c, http.StatusBadRequest, "malformed component id", err)
	}
	instanceID := ids.InstanceId{NodeId: node, ComponentId: component}
	if err := h.agent.StopResource(c.Request().Context(), class, instanceID); err != nil {
		return respondError(c, http.StatusNotFound, "stop_resource failed", err)
	}
	return c.NoContent(http.StatusNoContent)
}

type patchRequest struct {
	Table map[string]ids.InstanceId `json:"table"`
}

// patch applies a fully resolved output table to the target component. The
// wire client reconstructs this full table from the JSON Merge Patch the
// orchestrator computed (internal/orchestrator/patch.Diff) before sending it
// here, since resource.Provider.Patch replaces the whole output_mapping
// rather than applying a delta.
func (h *agentHandler) patch(c echo.Context) error {
	var component ids.ComponentId
	if err := component.UnmarshalText([]byte(c.Param("component"))); err != nil {
		return respondError(c, http.StatusBadRequest, "malformed component id", err)
	}
	var req patchRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, http.StatusBadRequest, "malformed patch request", err)
	}
	if err := h.agent.Patch(c.Request().Context(), component, req.Table); err != nil {
		return respondError(c, http.StatusNotFound, "patch failed", err)
	}
	return c.NoContent(http.StatusNoContent)
}
