package main

import (
	"context"
	"encoding/binary"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/edgeless-project/edgeless/internal/bootstrap"
	"github.com/edgeless-project/edgeless/internal/ids"
	"github.com/edgeless-project/edgeless/internal/model"
	"github.com/edgeless-project/edgeless/internal/obs/server"
	"github.com/edgeless-project/edgeless/internal/orchestrator"
	"github.com/edgeless-project/edgeless/internal/orchestrator/placement"
	"github.com/edgeless-project/edgeless/internal/proxy"
	nodeRegister "github.com/edgeless-project/edgeless/internal/register/node"
	"github.com/edgeless-project/edgeless/internal/wire/httpapi"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	components, err := bootstrap.Setup(ctx, "orchestrator")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to bootstrap orchestrator: %v\n", err)
		os.Exit(1)
	}
	defer components.Shutdown(ctx)

	cfg := components.Config
	log := components.Logger
	self := domainID()

	httpClient := &http.Client{Timeout: cfg.Node.CallTimeout}
	raw := redis.NewClient(&redis.Options{Addr: cfg.Proxy.RedisAddr, DB: cfg.Proxy.RedisDB})
	store := proxy.NewRedisStore(raw, log)

	evaluator, err := placement.NewCelEvaluator()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build placement evaluator: %v\n", err)
		os.Exit(1)
	}

	// o is assigned once the orchestrator is constructed below; the node
	// register's onEvict must close over it, but loss callbacks only ever
	// fire from Sweep, started after o is set.
	var o *orchestrator.Orchestrator
	ttl := cfg.Register.SweepInterval * 3
	nodes := nodeRegister.New(ttl, log, func(lost ids.NodeId) {
		if o != nil {
			orphaned := o.HandleNodeLoss(ctx, lost)
			if len(orphaned) > 0 {
				o.RePlaceOrphans(ctx, orphaned)
			}
		}
	})

	agents := httpapi.NewAgentDirectory(nodes, httpClient)
	strategy := strategyFor(cfg.Node.PlacementStrategy)
	o = orchestrator.New(nodes, agents.Factory(), strategy, evaluator, store, store, cfg.Node.RedundancyTarget, log)

	go nodes.Sweep(ctx, cfg.Register.SweepInterval)
	go runReconcileLoop(ctx, o, cfg.Node.ReconcileInterval)

	registrar := newDomainRegistrar(self, fmt.Sprintf("http://localhost:%d", cfg.Service.Port),
		httpapi.NewDomainRegisterClient(controllerURL(), httpClient))
	go registrar.Run(ctx, cfg.Node.RefreshPeriod)

	e := setupEcho()
	setupMiddleware(e)
	setupHealthCheck(e)
	components.MountTelemetryWS(e)
	registerRoutes(e, o, nodes)

	srv := server.New("orchestrator", cfg.Service.Port, e, log)
	log.Info("orchestrator listening", "domain_id", self, "port", cfg.Service.Port)
	if err := srv.Start(); err != nil {
		log.Error("orchestrator stopped", "error", err)
		os.Exit(1)
	}
}

// setupEcho initializes the Echo server with basic configuration.
func setupEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	return e
}

// setupMiddleware configures all middleware for the Echo server.
func setupMiddleware(e *echo.Echo) {
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
}

// setupHealthCheck registers the health check endpoint.
func setupHealthCheck(e *echo.Echo) {
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{
			"status":  "ok",
			"service": "orchestrator",
		})
	})
}

// registerRoutes mounts the domain orchestrator's API surface: the
// controller-facing OrchestratorAPI and the node agents' NodeRegisterAPI.
func registerRoutes(e *echo.Echo, o *orchestrator.Orchestrator, nodes *nodeRegister.Register) {
	httpapi.RegisterOrchestratorRoutes(e, o)
	httpapi.RegisterNodeRegisterRoutes(e, nodes)
}

// domainID reads this domain's id from the environment. Domain identity is
// operator-assigned, not generated, since it names a deployment unit rather
// than a transient process (spec.md §1 Non-goals: no cluster auto-discovery).
func domainID() ids.DomainId {
	if v := os.Getenv("DOMAIN_ID"); v != "" {
		return ids.DomainId(v)
	}
	return ids.DomainId("default")
}

// controllerURL is the controller base URL this domain reports to.
func controllerURL() string {
	if v := os.Getenv("CONTROLLER_URL"); v != "" {
		return v
	}
	return "http://localhost:8082"
}

func strategyFor(name string) placement.Strategy {
	switch name {
	case "random":
		return placement.RandomStrategy{}
	case "weighted_random":
		return placement.WeightedRandomStrategy{}
	default:
		return &placement.RoundRobinStrategy{}
	}
}

// runReconcileLoop drives spec.md §4.4's scheduling loop: consume pending
// migrate intents, stop surplus hot standbys, push any output_mapping
// changes to dependents, then sync the resulting state to the proxy
// (spec.md §4.7).
func runReconcileLoop(ctx context.Context, o *orchestrator.Orchestrator, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.ConsumeIntents(ctx, o.ClassOf)
			o.ReconcileSurplus(ctx)
			_ = o.PushAllPatches(ctx)
			o.SyncProxy(ctx)
		}
	}
}

// domainRegistrar sends this domain's periodic UpdateDomainRequest to the
// controller, the domain-level analogue of agent.Agent.Register.
type domainRegistrar struct {
	mu      sync.Mutex
	counter uint64
	nonce   uint64

	domainID ids.DomainId
	url      string
	client   *httpapi.DomainRegisterClient
}

func newDomainRegistrar(domainID ids.DomainId, url string, client *httpapi.DomainRegisterClient) *domainRegistrar {
	return &domainRegistrar{domainID: domainID, url: url, client: client, nonce: newNonce()}
}

func (r *domainRegistrar) Run(ctx context.Context, period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	r.register(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.register(ctx)
		}
	}
}

func (r *domainRegistrar) register(ctx context.Context) {
	r.mu.Lock()
	r.counter++
	reg := model.DomainRegistration{
		DomainId:        r.domainID,
		OrchestratorURL: r.url,
		Nonce:           r.nonce,
		Counter:         r.counter,
	}
	r.mu.Unlock()
	_, _ = r.client.UpdateDomain(ctx, reg)
}

func newNonce() uint64 {
	id := uuid.New()
	n := binary.BigEndian.Uint64(id[:8])
	if n == 0 {
		return 1
	}
	return n
}
