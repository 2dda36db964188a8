// Package telemetry is the process-wide telemetry fan-out (spec.md §2, §6):
// an in-process event bus whose handlers form an ordered chain — log sink,
// Prometheus gauge/histogram sink, and a websocket fan-out for connected
// operator consoles. Each handler returns Processed | Final | Passed; Final
// stops propagation down the chain, the same semantics as the dataplane's
// link chain in internal/dataplane.
package telemetry

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"sync"

	"github.com/edgeless-project/edgeless/internal/model"
	"github.com/edgeless-project/edgeless/internal/obs/config"
	"github.com/edgeless-project/edgeless/internal/obs/logger"
)

// Handler processes one telemetry event and reports how it was handled.
type Handler interface {
	Handle(ev model.TelemetryEvent) model.TelemetryHandlerResult
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ev model.TelemetryEvent) model.TelemetryHandlerResult

func (f HandlerFunc) Handle(ev model.TelemetryEvent) model.TelemetryHandlerResult { return f(ev) }

// Bus is the ordered chain of telemetry handlers for one process.
type Bus struct {
	mu       sync.RWMutex
	handlers []Handler
	log      *logger.Logger
}

// NewBus creates an empty bus with a log sink pre-installed — every
// EDGELESS process logs telemetry at minimum, matching the teacher's
// RecordEvent behavior in common/telemetry.
func NewBus(log *logger.Logger) *Bus {
	b := &Bus{log: log}
	b.Use(newLogSink(log))
	return b
}

// Use appends a handler to the end of the chain.
func (b *Bus) Use(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

// Emit runs an event through the chain in order, stopping at the first
// Final verdict.
func (b *Bus) Emit(ev model.TelemetryEvent) {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.handlers...)
	b.mu.RUnlock()

	for _, h := range handlers {
		switch h.Handle(ev) {
		case model.TelemetryFinal:
			return
		case model.TelemetryProcessed, model.TelemetryPassed:
			continue
		}
	}
}

// Close releases any resources held by installed handlers that need it.
func (b *Bus) Close() {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, h := range b.handlers {
		if closer, ok := h.(interface{ Close() }); ok {
			closer.Close()
		}
	}
}

func newLogSink(log *logger.Logger) Handler {
	return HandlerFunc(func(ev model.TelemetryEvent) model.TelemetryHandlerResult {
		log.Debug("telemetry_event",
			"type", string(ev.Type),
			"instance_id", ev.InstanceId.String(),
			"detail", ev.Detail,
		)
		return model.TelemetryPassed
	})
}

// StartDebugEndpoints starts the pprof server and, when enabled, the
// Prometheus metrics HTTP endpoint, ported from the teacher's
// common/telemetry.Telemetry.Start.
func StartDebugEndpoints(ctx context.Context, cfg config.TelemetryConfig, log *logger.Logger) error {
	pprofAddr := fmt.Sprintf("localhost:%d", cfg.PprofPort)
	go func() {
		log.Info("pprof server starting", "addr", pprofAddr)
		if err := http.ListenAndServe(pprofAddr, nil); err != nil {
			log.Error("pprof server error", "error", err)
		}
	}()

	if cfg.EnableMetrics {
		metricsAddr := fmt.Sprintf(":%d", cfg.MetricsPort)
		go func() {
			log.Info("metrics server starting", "addr", metricsAddr)
			if err := serveMetrics(metricsAddr); err != nil {
				log.Error("metrics server error", "error", err)
			}
		}()
	}

	return nil
}
