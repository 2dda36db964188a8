package node

import (
	"context"
	"testing"
	"time"

	"github.com/edgeless-project/edgeless/internal/ids"
	"github.com/edgeless-project/edgeless/internal/model"
	"github.com/edgeless-project/edgeless/internal/obs/logger"
)

func TestUpdateAcceptsIncreasingCounter(t *testing.T) {
	r := New(time.Minute, logger.New("error", "text"), nil)
	node := ids.NewNodeId()

	if got := r.Update(model.NodeRegistration{NodeId: node, Nonce: 1, Counter: 1}); got != model.RegistrationAccepted {
		t.Fatalf("expected Accepted, got %v", got)
	}
	if got := r.Update(model.NodeRegistration{NodeId: node, Nonce: 1, Counter: 2}); got != model.RegistrationAccepted {
		t.Fatalf("expected Accepted, got %v", got)
	}
}

func TestUpdateRejectsStaleCounter(t *testing.T) {
	r := New(time.Minute, logger.New("error", "text"), nil)
	node := ids.NewNodeId()

	r.Update(model.NodeRegistration{NodeId: node, Nonce: 1, Counter: 5})
	if got := r.Update(model.NodeRegistration{NodeId: node, Nonce: 1, Counter: 3}); got != model.RegistrationStale {
		t.Fatalf("expected Stale, got %v", got)
	}
	if got := r.Update(model.NodeRegistration{NodeId: node, Nonce: 1, Counter: 5}); got != model.RegistrationStale {
		t.Fatalf("expected Stale on equal counter, got %v", got)
	}
}

func TestUpdateHigherNonceForcesReset(t *testing.T) {
	r := New(time.Minute, logger.New("error", "text"), nil)
	node := ids.NewNodeId()

	r.Update(model.NodeRegistration{NodeId: node, Nonce: 1, Counter: 10})
	if got := r.Update(model.NodeRegistration{NodeId: node, Nonce: 2, Counter: 0}); got != model.RegistrationResetRequired {
		t.Fatalf("expected ResetRequired, got %v", got)
	}
}

func TestSweepEvictsExpiredNodes(t *testing.T) {
	evicted := make(chan ids.NodeId, 1)
	r := New(10*time.Millisecond, logger.New("error", "text"), func(id ids.NodeId) {
		evicted <- id
	})
	node := ids.NewNodeId()
	r.Update(model.NodeRegistration{NodeId: node, Nonce: 1, Counter: 1})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	go r.Sweep(ctx, 5*time.Millisecond)

	select {
	case id := <-evicted:
		if id != node {
			t.Fatalf("unexpected evicted node")
		}
	case <-time.After(time.Second):
		t.Fatal("expected eviction, got none")
	}

	if _, ok := r.Get(node); ok {
		t.Fatal("expected node to be removed from register")
	}
}
