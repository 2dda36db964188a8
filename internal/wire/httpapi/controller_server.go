package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/edgeless-project/edgeless/internal/controller"
	"github.com/edgeless-project/edgeless/internal/ids"
	"github.com/edgeless-project/edgeless/internal/model"
)

// RegisterControllerRoutes mounts the client-facing workflow submission API
// under /workflows on e: spec.md §4.5's admit/stop/inspect surface.
func RegisterControllerRoutes(e *echo.Echo, ctl *controller.Controller) {
	h := &controllerHandler{controller: ctl}
	g := e.Group("/workflows")
	g.POST("", h.startWorkflow)
	g.DELETE("/:id", h.stopWorkflow)
	g.GET("/:id", h.getWorkflow)
}

type controllerHandler struct {
	controller *controller.Controller
}

type startWorkflowResponse struct {
	Id ids.WorkflowId `json:"id"`
}

func (h *controllerHandler) startWorkflow(c echo.Context) error {
	var req model.WorkflowRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, http.StatusBadRequest, "malformed workflow request", err)
	}
	id, err := h.controller.StartWorkflow(c.Request().Context(), req)
	if err != nil {
		return respondError(c, http.StatusUnprocessableEntity, "start_workflow failed", err)
	}
	return c.JSON(http.StatusCreated, startWorkflowResponse{Id: id})
}

func (h *controllerHandler) stopWorkflow(c echo.Context) error {
	var id ids.WorkflowId
	if err := id.UnmarshalText([]byte(c.Param("id"))); err != nil {
		return respondError(c, http.StatusBadRequest, "malformed workflow id", err)
	}
	if err := h.controller.StopWorkflow(c.Request().Context(), id); err != nil {
		return respondError(c, http.StatusNotFound, "stop_workflow failed", err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *controllerHandler) getWorkflow(c echo.Context) error {
	var id ids.WorkflowId
	if err := id.UnmarshalText([]byte(c.Param("id"))); err != nil {
		return respondError(c, http.StatusBadRequest, "malformed workflow id", err)
	}
	wf, ok := h.controller.Get(id)
	if !ok {
		return respondError(c, http.StatusNotFound, "no such workflow", nil)
	}
	return c.JSON(http.StatusOK, wf)
}
