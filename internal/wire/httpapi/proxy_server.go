package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/edgeless-project/edgeless/internal/ids"
	"github.com/edgeless-project/edgeless/internal/proxy"
)

// RegisterProxyRoutes mounts the operator-facing read/write surface spec.md
// §4.7 calls out: reads of live cluster state, and the migrate intent write.
func RegisterProxyRoutes(e *echo.Echo, store proxy.Store) {
	h := &proxyHandler{store: store}
	g := e.Group("/proxy")
	g.GET("/nodes", h.listNodes)
	g.GET("/instances", h.listInstances)
	g.GET("/performance/:category/:name", h.performanceSamples)
	g.POST("/intents/migrate/:lid", h.writeMigrateIntent)
}

type proxyHandler struct {
	store proxy.Store
}

func (h *proxyHandler) listNodes(c echo.Context) error {
	nodes, err := h.store.ListNodes(c.Request().Context())
	if err != nil {
		return respondError(c, http.StatusInternalServerError, "list nodes failed", err)
	}
	return c.JSON(http.StatusOK, nodes)
}

func (h *proxyHandler) listInstances(c echo.Context) error {
	instances, err := h.store.ListInstances(c.Request().Context())
	if err != nil {
		return respondError(c, http.StatusInternalServerError, "list instances failed", err)
	}
	return c.JSON(http.StatusOK, instances)
}

func (h *proxyHandler) performanceSamples(c echo.Context) error {
	samples, err := h.store.PerformanceSamples(c.Request().Context(), c.Param("category"), c.Param("name"))
	if err != nil {
		return respondError(c, http.StatusInternalServerError, "read performance samples failed", err)
	}
	return c.JSON(http.StatusOK, samples)
}

type migrateIntentRequest struct {
	CandidateNodes []ids.NodeId `json:"candidate_nodes"`
}

func (h *proxyHandler) writeMigrateIntent(c echo.Context) error {
	var lid ids.ComponentId
	if err := lid.UnmarshalText([]byte(c.Param("lid"))); err != nil {
		return respondError(c, http.StatusBadRequest, "malformed component id", err)
	}
	var req migrateIntentRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, http.StatusBadRequest, "malformed migrate intent", err)
	}
	if err := h.store.WriteMigrateIntent(c.Request().Context(), lid, req.CandidateNodes); err != nil {
		return respondError(c, http.StatusInternalServerError, "write migrate intent failed", err)
	}
	return c.NoContent(http.StatusAccepted)
}
