package proxy

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	redisclient "github.com/edgeless-project/edgeless/common/redis"
	"github.com/edgeless-project/edgeless/internal/ids"
	"github.com/edgeless-project/edgeless/internal/model"
)

// RedisStore implements Store against Redis, per the keyspace fixed in
// spec.md §6. It wraps the teacher's common/redis.Client rather than the
// raw *redis.Client, inheriting its structured logging on every command.
type RedisStore struct {
	client *redisclient.Client
	raw    *redis.Client
}

// NewRedisStore wraps an already-connected redis.Client.
func NewRedisStore(raw *redis.Client, log redisclient.Logger) *RedisStore {
	return &RedisStore{client: redisclient.NewClient(raw, log), raw: raw}
}

func (s *RedisStore) PutNode(ctx context.Context, reg model.NodeRegistration) error {
	data, err := json.Marshal(reg)
	if err != nil {
		return fmt.Errorf("proxy: marshal node registration: %w", err)
	}
	return s.client.Set(ctx, fmt.Sprintf("node:%s", reg.NodeId), string(data), 0)
}

func (s *RedisStore) PutProvider(ctx context.Context, providerID ids.InstanceId, classType model.ClassType) error {
	data, err := json.Marshal(struct {
		ClassType model.ClassType `json:"class_type"`
	}{classType})
	if err != nil {
		return fmt.Errorf("proxy: marshal provider spec: %w", err)
	}
	return s.client.Set(ctx, fmt.Sprintf("provider:%s", providerID), string(data), 0)
}

func (s *RedisStore) PutInstance(ctx context.Context, instanceID ids.InstanceId, active model.ActiveInstance) error {
	data, err := json.Marshal(active)
	if err != nil {
		return fmt.Errorf("proxy: marshal active instance: %w", err)
	}
	return s.client.Set(ctx, fmt.Sprintf("instance:%s", instanceID), string(data), 0)
}

func (s *RedisStore) PutDependency(ctx context.Context, lid ids.ComponentId, outputMapping map[string]ids.InstanceId) error {
	data, err := json.Marshal(outputMapping)
	if err != nil {
		return fmt.Errorf("proxy: marshal dependency map: %w", err)
	}
	return s.client.Set(ctx, fmt.Sprintf("dependency:%s", lid), string(data), 0)
}

func (s *RedisStore) PutPerformanceSample(ctx context.Context, category, name string, timestamp int64, value float64) error {
	key := fmt.Sprintf("performance:%s:%s", category, name)
	sample := fmt.Sprintf("%d:%f", timestamp, value)
	return s.client.PushToList(ctx, key, sample)
}

func (s *RedisStore) WriteMigrateIntent(ctx context.Context, lid ids.ComponentId, candidateNodes []ids.NodeId) error {
	nodeStrs := make([]string, len(candidateNodes))
	for i, n := range candidateNodes {
		nodeStrs[i] = n.String()
	}
	key := fmt.Sprintf("intent:migrate:%s", lid)
	return s.client.Set(ctx, key, strings.Join(nodeStrs, ","), 0)
}

// PendingMigrations scans the intent:migrate:* keyspace, parses each entry
// and deletes it, so every call consumes exactly the intents it returns
// (spec.md §4.7 "Reads by the orchestrator: pending intents (consumed on
// read)").
func (s *RedisStore) PendingMigrations(ctx context.Context) ([]model.MigrateIntent, error) {
	var cursor uint64
	var keys []string
	for {
		batch, next, err := s.raw.Scan(ctx, cursor, "intent:migrate:*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("proxy: scan migrate intents: %w", err)
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			break
		}
	}
	if len(keys) == 0 {
		return nil, nil
	}

	values, err := s.client.GetMultiple(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("proxy: read migrate intents: %w", err)
	}

	intents := make([]model.MigrateIntent, 0, len(values))
	for key, value := range values {
		lidStr := strings.TrimPrefix(key, "intent:migrate:")
		lid, err := parseComponentId(lidStr)
		if err != nil {
			continue
		}
		var nodes []ids.NodeId
		for _, part := range strings.Split(value, ",") {
			if part == "" {
				continue
			}
			n, err := parseNodeId(part)
			if err != nil {
				continue
			}
			nodes = append(nodes, n)
		}
		intents = append(intents, model.MigrateIntent{Lid: lid, CandidateNodes: nodes})
	}

	if err := s.client.Delete(ctx, keys...); err != nil {
		return nil, fmt.Errorf("proxy: consume migrate intents: %w", err)
	}
	return intents, nil
}

// ListNodes scans the node:* keyspace and decodes every registration.
func (s *RedisStore) ListNodes(ctx context.Context) ([]model.NodeRegistration, error) {
	keys, err := s.scanKeys(ctx, "node:*")
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, nil
	}
	values, err := s.client.GetMultiple(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("proxy: read nodes: %w", err)
	}
	out := make([]model.NodeRegistration, 0, len(values))
	for _, v := range values {
		var reg model.NodeRegistration
		if err := json.Unmarshal([]byte(v), &reg); err != nil {
			continue
		}
		out = append(out, reg)
	}
	return out, nil
}

// ListInstances scans the instance:* keyspace and decodes every entry.
func (s *RedisStore) ListInstances(ctx context.Context) (map[ids.InstanceId]model.ActiveInstance, error) {
	keys, err := s.scanKeys(ctx, "instance:*")
	if err != nil {
		return nil, err
	}
	out := make(map[ids.InstanceId]model.ActiveInstance, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	values, err := s.client.GetMultiple(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("proxy: read instances: %w", err)
	}
	for key, v := range values {
		var instanceID ids.InstanceId
		if err := instanceID.UnmarshalText([]byte(strings.TrimPrefix(key, "instance:"))); err != nil {
			continue
		}
		var active model.ActiveInstance
		if err := json.Unmarshal([]byte(v), &active); err != nil {
			continue
		}
		out[instanceID] = active
	}
	return out, nil
}

// PerformanceSamples reads every (timestamp, value) pair recorded under
// performance:<category>:<name>.
func (s *RedisStore) PerformanceSamples(ctx context.Context, category, name string) ([]model.PerformanceSample, error) {
	key := fmt.Sprintf("performance:%s:%s", category, name)
	raw, err := s.raw.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("proxy: read performance samples: %w", err)
	}
	out := make([]model.PerformanceSample, 0, len(raw))
	for _, entry := range raw {
		parts := strings.SplitN(entry, ":", 2)
		if len(parts) != 2 {
			continue
		}
		var sample model.PerformanceSample
		if _, err := fmt.Sscanf(parts[0], "%d", &sample.Timestamp); err != nil {
			continue
		}
		if _, err := fmt.Sscanf(parts[1], "%f", &sample.Value); err != nil {
			continue
		}
		out = append(out, sample)
	}
	return out, nil
}

func (s *RedisStore) scanKeys(ctx context.Context, pattern string) ([]string, error) {
	var cursor uint64
	var keys []string
	for {
		batch, next, err := s.raw.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, fmt.Errorf("proxy: scan %s: %w", pattern, err)
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return keys, nil
}

func parseComponentId(s string) (ids.ComponentId, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return ids.ComponentId{}, err
	}
	return ids.ComponentId(u), nil
}

func parseNodeId(s string) (ids.NodeId, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return ids.NodeId{}, err
	}
	return ids.NodeId(u), nil
}
