// Package bootstrap wires the ambient stack (config, logger, telemetry) for
// one EDGELESS process, ported from the teacher's common/bootstrap. Unlike
// the teacher, no process here owns a SQL database or a message queue —
// cluster state lives in the proxy (Redis) and each component's own
// in-memory tables (SPEC_FULL.md §10).
package bootstrap

import (
	"context"
	"fmt"

	"github.com/labstack/echo/v4"

	"github.com/edgeless-project/edgeless/internal/obs/config"
	"github.com/edgeless-project/edgeless/internal/obs/logger"
	"github.com/edgeless-project/edgeless/internal/telemetry"
	"github.com/edgeless-project/edgeless/internal/telemetry/fanout"
)

// Components holds all initialized process dependencies.
type Components struct {
	Config       *config.Config
	Logger       *logger.Logger
	Telemetry    *telemetry.Bus
	TelemetryHub *fanout.Hub

	cleanupFuncs []func() error
}

// MountTelemetryWS registers the operator-console websocket endpoint that
// streams this process's telemetry events, backed by TelemetryHub.
func (c *Components) MountTelemetryWS(e *echo.Echo) {
	e.GET("/telemetry/ws", func(ctx echo.Context) error {
		return fanout.Serve(c.TelemetryHub, ctx.Response().Writer, ctx.Request())
	})
}

// Setup initializes the ambient stack for one process.
func Setup(ctx context.Context, serviceName string, opts ...Option) (*Components, error) {
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	components := &Components{
		cleanupFuncs: make([]func() error, 0),
	}

	var err error
	if options.customConfig != nil {
		components.Config = options.customConfig
	} else {
		components.Config, err = config.Load(serviceName)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	if options.customLogger != nil {
		components.Logger = options.customLogger
	} else {
		components.Logger = logger.New(components.Config.Service.LogLevel, components.Config.Service.LogFormat)
	}

	components.Logger.Info("initializing service",
		"service", serviceName,
		"environment", components.Config.Service.Environment,
	)

	components.Telemetry = telemetry.NewBus(components.Logger)
	components.addCleanup(func() error {
		components.Telemetry.Close()
		return nil
	})

	if components.Config.Telemetry.EnableMetrics {
		components.Telemetry.Use(telemetry.NewMetricsSink())
	}

	components.TelemetryHub = fanout.NewHub(components.Logger)
	go components.TelemetryHub.Run()
	components.Telemetry.Use(components.TelemetryHub)
	components.addCleanup(func() error {
		components.TelemetryHub.Close()
		return nil
	})

	if !options.skipTelemetry && components.Config.Telemetry.EnablePprof {
		components.Logger.Info("initializing telemetry endpoints")
		if err := telemetry.StartDebugEndpoints(ctx, components.Config.Telemetry, components.Logger); err != nil {
			components.Logger.Warn("failed to start telemetry endpoints", "error", err)
		}
	}

	components.Logger.Info("service initialization complete", "service", serviceName)

	return components, nil
}

// MustSetup is like Setup but panics on error.
func MustSetup(ctx context.Context, serviceName string, opts ...Option) *Components {
	components, err := Setup(ctx, serviceName, opts...)
	if err != nil {
		panic(fmt.Sprintf("failed to setup service %s: %v", serviceName, err))
	}
	return components
}

// Shutdown performs graceful shutdown of all components, in reverse
// registration order, same as the teacher's Components.Shutdown.
func (c *Components) Shutdown(ctx context.Context) error {
	c.Logger.Info("shutting down components")

	var errs []error
	for i := len(c.cleanupFuncs) - 1; i >= 0; i-- {
		if err := c.cleanupFuncs[i](); err != nil {
			errs = append(errs, err)
			c.Logger.Error("cleanup error", "error", err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}

	c.Logger.Info("shutdown complete")
	return nil
}

func (c *Components) addCleanup(fn func() error) {
	c.cleanupFuncs = append(c.cleanupFuncs, fn)
}
