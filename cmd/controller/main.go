package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/edgeless-project/edgeless/internal/bootstrap"
	"github.com/edgeless-project/edgeless/internal/controller"
	"github.com/edgeless-project/edgeless/internal/ids"
	"github.com/edgeless-project/edgeless/internal/obs/server"
	domainregister "github.com/edgeless-project/edgeless/internal/register/domain"
	"github.com/edgeless-project/edgeless/internal/wire/httpapi"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	components, err := bootstrap.Setup(ctx, "controller")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to bootstrap controller: %v\n", err)
		os.Exit(1)
	}
	defer components.Shutdown(ctx)

	cfg := components.Config
	log := components.Logger

	// ctl is assigned once the controller is constructed below; the domain
	// register is built first since onLoss must close over it, but loss
	// callbacks only ever fire from Sweep, started after ctl is set.
	var ctl *controller.Controller
	ttl := cfg.Register.SweepInterval * 3
	domains := domainregister.New(ttl, log, func(domain ids.DomainId) {
		if ctl != nil {
			ctl.OnDomainLoss(domain)
		}
	})

	httpClient := &http.Client{Timeout: cfg.Node.CallTimeout}
	directory := httpapi.NewDomainDirectory(domains, httpClient)
	ctl = controller.New(directory, log)

	go domains.Sweep(ctx, cfg.Register.SweepInterval)
	go runRepairLoop(ctx, ctl, cfg.Node.ReconcileInterval)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "ok", "service": "controller"})
	})
	components.MountTelemetryWS(e)

	httpapi.RegisterControllerRoutes(e, ctl)
	httpapi.RegisterDomainRegisterRoutes(e, domains)

	srv := server.New("controller", cfg.Service.Port, e, log)
	log.Info("controller listening", "port", cfg.Service.Port)
	if err := srv.Start(); err != nil {
		log.Error("controller stopped", "error", err)
		os.Exit(1)
	}
}

// runRepairLoop retries admission of orphaned workflow components on every
// tick, the polling half of domain-loss recovery (spec.md §4.5, paired with
// the OnDomainLoss push path triggered by register/domain's Sweep).
func runRepairLoop(ctx context.Context, ctl *controller.Controller, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ctl.RepairOrphans(ctx)
		}
	}
}
