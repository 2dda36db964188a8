package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"runtime"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/edgeless-project/edgeless/internal/agent"
	"github.com/edgeless-project/edgeless/internal/bootstrap"
	"github.com/edgeless-project/edgeless/internal/dataplane"
	"github.com/edgeless-project/edgeless/internal/ids"
	"github.com/edgeless-project/edgeless/internal/model"
	"github.com/edgeless-project/edgeless/internal/obs/server"
	"github.com/edgeless-project/edgeless/internal/resource"
	"github.com/edgeless-project/edgeless/internal/resource/ddares"
	"github.com/edgeless-project/edgeless/internal/resource/fileres"
	"github.com/edgeless-project/edgeless/internal/resource/httpres"
	"github.com/edgeless-project/edgeless/internal/resource/kafkares"
	"github.com/edgeless-project/edgeless/internal/resource/redisres"
	"github.com/edgeless-project/edgeless/internal/wire/coap"
	"github.com/edgeless-project/edgeless/internal/wire/httpapi"
)

// capabilityProbe builds a static agent.CapabilityProbe. Hardware/tee/tpm
// probing is out of scope (spec.md §1 Non-goals); num_cpus is fixed at 1
// and num_cores comes from the Go runtime (runtime.NumCPU), everything
// else from environment overrides.
// resourceProviders is this node's provider catalog (spec.md §4.3
// resource_providers), reported separately from runtimes even though every
// resource class type is also a member of runtimes (step 1's feasibility
// check and step 2's resource_match_all check are distinct).
func capabilityProbe(runtimes, resourceProviders []model.ClassType, memMiB, diskMiB int) agent.CapabilityProbe {
	return func() model.NodeCapabilities {
		return model.NodeCapabilities{
			NumCpus:           1,
			NumCores:          runtime.NumCPU(),
			MemSizeMiB:        memMiB,
			DiskSizeMiB:       diskMiB,
			Runtimes:          runtimes,
			ResourceProviders: resourceProviders,
		}
	}
}

func main() {
	ctx := context.Background()

	components, err := bootstrap.Setup(ctx, "node")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to bootstrap node agent: %v\n", err)
		os.Exit(1)
	}
	defer components.Shutdown(ctx)

	cfg := components.Config
	log := components.Logger

	self := ids.NewNodeId()
	local := dataplane.NewLocalLink(self, log)
	chain := dataplane.NewChain(local)
	router := dataplane.NewRouter(self, chain, log)
	remote := dataplane.NewRemoteLink(log)
	chain.Append(remote)

	providerID := ids.InstanceId{NodeId: self, ComponentId: ids.ComponentId(ids.FunctionIdNone)}
	providers := []resource.Provider{
		fileres.New(local, providerID, log),
		redisres.New(local, router, providerID, log),
		httpres.New(local, router, providerID, log),
		ddares.New(local, router, providerID, log),
		kafkares.New(local, router, providerID, log),
	}
	registry := resource.NewRegistry(providers...)

	resourceProviders := registry.ClassTypes()
	runtimes := append([]model.ClassType{model.ClassContainer}, resourceProviders...)
	probe := capabilityProbe(runtimes, resourceProviders, cfg.Node.MemSizeMiB, cfg.Node.DiskSizeMiB)

	agentURL := fmt.Sprintf("http://localhost:%d", cfg.Service.Port)
	invocationURL := agentURL
	registerClient := httpapi.NewNodeRegisterClient(orchestratorURL(), &http.Client{Timeout: cfg.Node.CallTimeout})

	a := agent.New(self, local, router, registry, registerClient, probe, agentURL, invocationURL, log)
	go a.RunRegistrationLoop(ctx, cfg.Node.RefreshPeriod)

	if cfg.Node.EnableCoap {
		coapServer, err := coap.NewServer(cfg.Node.CoapAddr, chain, log)
		if err != nil {
			log.Error("failed to start coap transport", "error", err)
			os.Exit(1)
		}
		go func() {
			if err := coapServer.Serve(ctx); err != nil {
				log.Error("coap transport stopped", "error", err)
			}
		}()
		log.Info("coap transport listening", "addr", cfg.Node.CoapAddr)
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.GET("/health", func(c echo.Context) error { return c.JSON(200, map[string]string{"status": "ok", "service": "node"}) })
	components.MountTelemetryWS(e)

	httpapi.RegisterAgentRoutes(e, a, components.Telemetry.Emit)

	srv := server.New("node", cfg.Service.Port, e, log)
	log.Info("node agent listening", "node_id", self.String(), "port", cfg.Service.Port)
	if err := srv.Start(); err != nil {
		log.Error("node agent stopped", "error", err)
		os.Exit(1)
	}
}

// orchestratorURL is the domain orchestrator base URL this node reports to.
// Cluster bootstrapping/discovery is out of scope (spec.md §1 Non-goals);
// operators point a node at its domain via ORCHESTRATOR_URL.
func orchestratorURL() string {
	if v := os.Getenv("ORCHESTRATOR_URL"); v != "" {
		return v
	}
	return "http://localhost:8081"
}
