package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/edgeless-project/edgeless/internal/ids"
	"github.com/edgeless-project/edgeless/internal/model"
	"github.com/edgeless-project/edgeless/internal/orchestrator"
)

// RegisterOrchestratorRoutes mounts OrchestratorAPI under /orchestrator on
// e: the controller's admission calls (start/stop function/resource) that
// drive one domain's Orchestrator.
func RegisterOrchestratorRoutes(e *echo.Echo, o *orchestrator.Orchestrator) {
	h := &orchestratorHandler{orchestrator: o}
	g := e.Group("/orchestrator")
	g.POST("/functions", h.startFunction)
	g.POST("/resources", h.startResource)
	g.DELETE("/functions/:lid", h.stopFunction)
	g.DELETE("/resources/:lid", h.stopResource)
}

type orchestratorHandler struct {
	orchestrator *orchestrator.Orchestrator
}

type startFunctionRequest struct {
	Name     string                  `json:"name"`
	Function model.WorkflowFunction  `json:"function"`
	Lid      ids.ComponentId         `json:"lid"`
}

func (h *orchestratorHandler) startFunction(c echo.Context) error {
	var req startFunctionRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, http.StatusBadRequest, "malformed start_function request", err)
	}
	spawn := model.SpawnRequest{
		Lid:         req.Lid,
		ClassSpec:   req.Function.ClassSpec,
		Annotations: req.Function.Annotations,
	}
	deploymentReq := model.FromAnnotations(req.Function.Annotations)
	if _, err := h.orchestrator.Place(c.Request().Context(), req.Name, spawn, req.Function.ClassSpec.ClassType, deploymentReq, req.Function.OutputMapping); err != nil {
		return respondError(c, http.StatusUnprocessableEntity, "start_function failed", err)
	}
	return c.NoContent(http.StatusCreated)
}

type startResourceRequest struct {
	Name     string                 `json:"name"`
	Resource model.WorkflowResource `json:"resource"`
	Lid      ids.ComponentId        `json:"lid"`
}

func (h *orchestratorHandler) startResource(c echo.Context) error {
	var req startResourceRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, http.StatusBadRequest, "malformed start_resource request", err)
	}
	spawn := model.ResourceSpawnRequest{
		Lid:            req.Lid,
		ClassType:      req.Resource.ClassType,
		Configurations: req.Resource.Configurations,
	}
	deploymentReq := model.FromAnnotations(req.Resource.Annotations)
	if _, err := h.orchestrator.PlaceResource(c.Request().Context(), req.Name, spawn, req.Resource.ClassType, deploymentReq, req.Resource.OutputMapping); err != nil {
		return respondError(c, http.StatusUnprocessableEntity, "start_resource failed", err)
	}
	return c.NoContent(http.StatusCreated)
}

func (h *orchestratorHandler) stopFunction(c echo.Context) error {
	return h.stopByLid(c)
}

func (h *orchestratorHandler) stopResource(c echo.Context) error {
	return h.stopByLid(c)
}

func (h *orchestratorHandler) stopByLid(c echo.Context) error {
	var lid ids.ComponentId
	if err := lid.UnmarshalText([]byte(c.Param("lid"))); err != nil {
		return respondError(c, http.StatusBadRequest, "malformed component id", err)
	}
	if err := h.orchestrator.StopByLid(c.Request().Context(), lid); err != nil {
		return respondError(c, http.StatusNotFound, "stop failed", err)
	}
	return c.NoContent(http.StatusNoContent)
}
