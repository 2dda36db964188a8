package telemetry

import (
	"net/http"

	"github.com/edgeless-project/edgeless/internal/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsSink is the Prometheus gauge/histogram handler in the fan-out
// chain (SPEC_FULL.md §11 — the teacher only stubs a pprof port; the
// metrics sink itself is grounded on the pack's prometheus/client_golang
// usage in dshills-langgraph-go and jordigilh-kubernaut).
type MetricsSink struct {
	instantiations   *prometheus.CounterVec
	invocations      *prometheus.CounterVec
	invocationLength *prometheus.HistogramVec
	liveInstances    *prometheus.GaugeVec
	exits            *prometheus.CounterVec
}

// NewMetricsSink registers EDGELESS's metrics with the default registerer
// and returns a Handler ready to be installed on a Bus.
func NewMetricsSink() *MetricsSink {
	s := &MetricsSink{
		instantiations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "edgeless",
			Name:      "function_instantiations_total",
			Help:      "Total function instance creations observed on this node.",
		}, []string{"node_id"}),
		invocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "edgeless",
			Name:      "function_invocations_total",
			Help:      "Total function invocation completions observed on this node.",
		}, []string{"node_id"}),
		invocationLength: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "edgeless",
			Name:      "function_invocation_seconds",
			Help:      "Function invocation duration, from dispatch to completion.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"node_id"}),
		liveInstances: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "edgeless",
			Name:      "live_instances",
			Help:      "Live function instances per node.",
		}, []string{"node_id"}),
		exits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "edgeless",
			Name:      "function_exits_total",
			Help:      "Function instance exits, partitioned by exit status.",
		}, []string{"node_id", "status"}),
	}

	prometheus.MustRegister(s.instantiations, s.invocations, s.invocationLength, s.liveInstances, s.exits)
	return s
}

// Handle implements telemetry.Handler.
func (s *MetricsSink) Handle(ev model.TelemetryEvent) model.TelemetryHandlerResult {
	nodeID := ev.InstanceId.NodeId.String()

	switch ev.Type {
	case model.FunctionInstantiate:
		s.instantiations.WithLabelValues(nodeID).Inc()
		s.liveInstances.WithLabelValues(nodeID).Inc()
	case model.FunctionInvocationCompleted:
		s.invocations.WithLabelValues(nodeID).Inc()
		if seconds, ok := ev.Detail["duration_seconds"].(float64); ok {
			s.invocationLength.WithLabelValues(nodeID).Observe(seconds)
		}
	case model.FunctionExit:
		status := "Ok"
		switch v := ev.Detail["status"].(type) {
		case model.ExitStatus:
			status = string(v)
		case string:
			status = v
		}
		s.exits.WithLabelValues(nodeID, status).Inc()
		s.liveInstances.WithLabelValues(nodeID).Dec()
	case model.FunctionStop:
		s.liveInstances.WithLabelValues(nodeID).Dec()
	}

	return model.TelemetryPassed
}

func serveMetrics(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(addr, mux)
}
