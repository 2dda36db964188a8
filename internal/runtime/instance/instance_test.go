package instance

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/edgeless-project/edgeless/internal/ids"
	"github.com/edgeless-project/edgeless/internal/model"
)

type fakeInstance struct {
	mu      sync.Mutex
	casts   []string
	callErr error
}

func (f *fakeInstance) Instantiate(ctx context.Context, spec model.FunctionClassSpec) error { return nil }
func (f *fakeInstance) Init(ctx context.Context, payload []byte) error                      { return nil }

func (f *fakeInstance) Cast(ctx context.Context, source string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.casts = append(f.casts, source)
	return nil
}

func (f *fakeInstance) Call(ctx context.Context, source string, data []byte) ([]byte, error) {
	if f.callErr != nil {
		return nil, f.callErr
	}
	return append([]byte("echo:"), data...), nil
}

func (f *fakeInstance) Stop(ctx context.Context) error { return nil }

func TestRunnerSerializesCasts(t *testing.T) {
	fi := &fakeInstance{}
	id := ids.InstanceId{NodeId: ids.NewNodeId(), ComponentId: ids.NewComponentId()}
	r := NewRunner(id, fi, nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_ = r.Cast(context.Background(), fmt.Sprintf("src-%d", n), nil)
		}(i)
	}
	wg.Wait()

	fi.mu.Lock()
	defer fi.mu.Unlock()
	if len(fi.casts) != 20 {
		t.Fatalf("expected 20 casts recorded, got %d", len(fi.casts))
	}
}

func TestRunnerCallReturnsReply(t *testing.T) {
	fi := &fakeInstance{}
	id := ids.InstanceId{NodeId: ids.NewNodeId(), ComponentId: ids.NewComponentId()}
	r := NewRunner(id, fi, nil)

	reply, err := r.Call(context.Background(), "src", []byte("hi"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(reply) != "echo:hi" {
		t.Fatalf("unexpected reply %q", reply)
	}
}

func TestRunnerEmitsExitOnError(t *testing.T) {
	fi := &fakeInstance{callErr: fmt.Errorf("boom")}
	id := ids.InstanceId{NodeId: ids.NewNodeId(), ComponentId: ids.NewComponentId()}

	var got model.TelemetryEvent
	done := make(chan struct{})
	r := NewRunner(id, fi, func(ev model.TelemetryEvent) {
		got = ev
		close(done)
	})

	_, err := r.Call(context.Background(), "src", nil)
	if err == nil {
		t.Fatal("expected error")
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for exit telemetry")
	}

	if got.Type != model.FunctionExit {
		t.Fatalf("expected FunctionExit, got %s", got.Type)
	}
	if got.InstanceId != id {
		t.Fatalf("unexpected instance id in telemetry event")
	}
}

func TestRunnerStopEndsLoop(t *testing.T) {
	fi := &fakeInstance{}
	id := ids.InstanceId{NodeId: ids.NewNodeId(), ComponentId: ids.NewComponentId()}
	r := NewRunner(id, fi, nil)

	if err := r.Stop(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
