package resource

import (
	"context"
	"testing"

	"github.com/edgeless-project/edgeless/internal/ids"
	"github.com/edgeless-project/edgeless/internal/model"
)

type fakeProvider struct {
	class model.ClassType
}

func (f *fakeProvider) ClassType() model.ClassType { return f.class }
func (f *fakeProvider) Start(ctx context.Context, lid ids.ComponentId, spec InstanceSpec) (ids.InstanceId, error) {
	return ids.InstanceId{ComponentId: lid}, nil
}
func (f *fakeProvider) Patch(ctx context.Context, instance ids.InstanceId, outputMapping map[string]ids.InstanceId) error {
	return nil
}
func (f *fakeProvider) Stop(ctx context.Context, instance ids.InstanceId) error { return nil }

func TestRegistryLookup(t *testing.T) {
	fileProvider := &fakeProvider{class: model.ClassFileLog}
	redisProvider := &fakeProvider{class: model.ClassRedis}
	reg := NewRegistry(fileProvider, redisProvider)

	if p, ok := reg.Lookup(model.ClassFileLog); !ok || p != fileProvider {
		t.Fatal("expected file-log provider to be found")
	}
	if _, ok := reg.Lookup(model.ClassKafkaEgress); ok {
		t.Fatal("expected kafka-egress provider to be absent")
	}

	classes := reg.ClassTypes()
	if len(classes) != 2 {
		t.Fatalf("expected 2 class types, got %d", len(classes))
	}
}
