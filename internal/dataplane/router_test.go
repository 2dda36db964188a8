package dataplane

import (
	"context"
	"testing"
	"time"

	"github.com/edgeless-project/edgeless/internal/ids"
	"github.com/edgeless-project/edgeless/internal/model"
	"github.com/edgeless-project/edgeless/internal/obs/logger"
)

func testLogger() *logger.Logger {
	return logger.New("error", "text")
}

func TestLocalLinkCastDelivers(t *testing.T) {
	node := ids.NewNodeId()
	local := NewLocalLink(node, testLogger())
	comp := ids.NewComponentId()
	ch := local.Register(comp)

	chain := NewChain(local)
	router := NewRouter(node, chain, testLogger())

	target := ids.InstanceId{NodeId: node, ComponentId: comp}
	result := router.Cast(context.Background(), target, []byte("hello"))
	if result != model.LinkFinal {
		t.Fatalf("expected Final, got %s", result.String())
	}

	select {
	case ev := <-ch:
		if string(ev.Data) != "hello" {
			t.Fatalf("unexpected payload %q", ev.Data)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for delivery")
	}
}

func TestRouterCastUnknownTargetIgnored(t *testing.T) {
	node := ids.NewNodeId()
	local := NewLocalLink(node, testLogger())
	chain := NewChain(local)
	router := NewRouter(node, chain, testLogger())

	target := ids.InstanceId{NodeId: node, ComponentId: ids.NewComponentId()}
	result := router.Cast(context.Background(), target, nil)
	if result != model.LinkIgnored {
		t.Fatalf("expected Ignored, got %s", result.String())
	}
}

func TestRouterCallTimesOutWithoutReply(t *testing.T) {
	node := ids.NewNodeId()
	local := NewLocalLink(node, testLogger())
	comp := ids.NewComponentId()
	local.Register(comp)
	chain := NewChain(local)
	router := NewRouter(node, chain, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	target := ids.InstanceId{NodeId: node, ComponentId: comp}
	_, err := router.Call(ctx, target, []byte("ping"))
	if err == nil {
		t.Fatal("expected timeout error, got nil")
	}
}

func TestRouterCallDeliversReply(t *testing.T) {
	node := ids.NewNodeId()
	local := NewLocalLink(node, testLogger())
	comp := ids.NewComponentId()
	local.Register(comp)
	chain := NewChain(local)
	router := NewRouter(node, chain, testLogger())

	target := ids.InstanceId{NodeId: node, ComponentId: comp}

	done := make(chan struct{})
	var callErr error
	var reply model.Event
	go func() {
		defer close(done)
		reply, callErr = router.Call(context.Background(), target, []byte("ping"))
	}()

	// Simulate the callee: drain the local queue then deliver the reply.
	ch := local.Register(comp)
	req := <-ch
	router.DeliverReply(model.Event{
		Source:   req.Target,
		StreamId: req.StreamId,
		Kind:     model.EventCallRet,
		Data:     []byte("pong"),
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for call to complete")
	}

	if callErr != nil {
		t.Fatalf("unexpected error: %v", callErr)
	}
	if string(reply.Data) != "pong" {
		t.Fatalf("unexpected reply payload %q", reply.Data)
	}
}

func TestRouterDelayedCastFires(t *testing.T) {
	node := ids.NewNodeId()
	local := NewLocalLink(node, testLogger())
	comp := ids.NewComponentId()
	ch := local.Register(comp)
	chain := NewChain(local)
	router := NewRouter(node, chain, testLogger())
	defer router.Close()

	target := ids.InstanceId{NodeId: node, ComponentId: comp}
	router.DelayedCast(context.Background(), 10*time.Millisecond, target, []byte("later"))

	select {
	case ev := <-ch:
		if string(ev.Data) != "later" {
			t.Fatalf("unexpected payload %q", ev.Data)
		}
	case <-time.After(time.Second):
		t.Fatal("delayed cast never fired")
	}
}

func TestDuplicateSuppressorZeroAlwaysPasses(t *testing.T) {
	d := NewDuplicateSuppressor()
	if !d.Admit("10.0.0.1", 5) {
		t.Fatal("first admit should pass")
	}
	if d.Admit("10.0.0.1", 5) {
		t.Fatal("equal token should be suppressed")
	}
	if d.Admit("10.0.0.1", 3) {
		t.Fatal("lower token should be suppressed")
	}
	if !d.Admit("10.0.0.1", 0) {
		t.Fatal("token 0 must always pass")
	}
	if !d.Admit("10.0.0.1", 1) {
		t.Fatal("token after a 0 reset should pass")
	}
}
