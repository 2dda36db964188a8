// Package proxy implements the side-channel state surface of spec.md §4.7:
// a pluggable read/write keyspace the orchestrator pushes its view of the
// cluster into, and operators read from or write deployment intents to.
// The Redis-backed Store is adapted from the teacher's
// common/clients.RedisCASClient over common/redis.Client; ProxyTest is an
// in-memory double for tests, the same role the teacher's in-memory CAS
// stub plays in cmd/workflow-runner's test suite.
package proxy

import (
	"context"

	"github.com/edgeless-project/edgeless/internal/ids"
	"github.com/edgeless-project/edgeless/internal/model"
)

// Store is the keyspace contract spec.md §4.7 names. Every write is
// best-effort from the orchestrator's point of view: a Store failure is
// logged by the caller and never propagated further (§7 "Proxy failure").
type Store interface {
	PutNode(ctx context.Context, reg model.NodeRegistration) error
	PutProvider(ctx context.Context, providerID ids.InstanceId, classType model.ClassType) error
	PutInstance(ctx context.Context, instanceID ids.InstanceId, active model.ActiveInstance) error
	PutDependency(ctx context.Context, lid ids.ComponentId, outputMapping map[string]ids.InstanceId) error
	PutPerformanceSample(ctx context.Context, category, name string, timestamp int64, value float64) error

	// WriteMigrateIntent is the operator-facing write; key-prefixed per
	// spec.md §4.7 as intent:migrate:<component_id>.
	WriteMigrateIntent(ctx context.Context, lid ids.ComponentId, candidateNodes []ids.NodeId) error

	// PendingMigrations satisfies orchestrator/intent.Source: it both reads
	// and consumes (deletes) every currently queued migrate intent.
	PendingMigrations(ctx context.Context) ([]model.MigrateIntent, error)

	// ListNodes, ListInstances and PerformanceSamples back the operator
	// read surface spec.md §4.7 calls out ("exposes live cluster state").
	ListNodes(ctx context.Context) ([]model.NodeRegistration, error)
	ListInstances(ctx context.Context) (map[ids.InstanceId]model.ActiveInstance, error)
	PerformanceSamples(ctx context.Context, category, name string) ([]model.PerformanceSample, error)
}
