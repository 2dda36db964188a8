package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/edgeless-project/edgeless/internal/model"
)

// NodeRegisterUpdater is the node register's write side, satisfied by
// register/node.Register.
type NodeRegisterUpdater interface {
	Update(reg model.NodeRegistration) model.NodeRegistrationResult
}

// RegisterNodeRegisterRoutes mounts the node register's UpdateNode endpoint,
// the wire side of spec.md §6's periodic agent report.
func RegisterNodeRegisterRoutes(e *echo.Echo, reg NodeRegisterUpdater) {
	e.POST("/register/node", func(c echo.Context) error {
		var body model.NodeRegistration
		if err := c.Bind(&body); err != nil {
			return respondError(c, http.StatusBadRequest, "malformed node registration", err)
		}
		result := reg.Update(body)
		return c.JSON(http.StatusOK, registrationResultResponse{Result: result})
	})
}

// DomainRegisterUpdater is the domain register's write side, satisfied by
// register/domain.Register.
type DomainRegisterUpdater interface {
	Update(reg model.DomainRegistration) model.NodeRegistrationResult
}

// RegisterDomainRegisterRoutes mounts the controller's UpdateDomain
// endpoint, the wire side of spec.md §7's periodic domain report.
func RegisterDomainRegisterRoutes(e *echo.Echo, reg DomainRegisterUpdater) {
	e.POST("/register/domain", func(c echo.Context) error {
		var body model.DomainRegistration
		if err := c.Bind(&body); err != nil {
			return respondError(c, http.StatusBadRequest, "malformed domain registration", err)
		}
		result := reg.Update(body)
		return c.JSON(http.StatusOK, registrationResultResponse{Result: result})
	})
}

type registrationResultResponse struct {
	Result model.NodeRegistrationResult `json:"result"`
}
