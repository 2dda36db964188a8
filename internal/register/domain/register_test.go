package domain

import (
	"testing"
	"time"

	"github.com/edgeless-project/edgeless/internal/ids"
	"github.com/edgeless-project/edgeless/internal/model"
	"github.com/edgeless-project/edgeless/internal/obs/logger"
)

func TestDomainUpdateAcceptsIncreasingCounter(t *testing.T) {
	r := New(time.Minute, logger.New("error", "text"), nil)
	id := ids.DomainId("domain-a")

	if got := r.Update(model.DomainRegistration{DomainId: id, Nonce: 1, Counter: 1}); got != model.RegistrationAccepted {
		t.Fatalf("expected Accepted, got %v", got)
	}
	if got := r.Update(model.DomainRegistration{DomainId: id, Nonce: 1, Counter: 2}); got != model.RegistrationAccepted {
		t.Fatalf("expected Accepted, got %v", got)
	}
}

func TestDomainUpdateRejectsStale(t *testing.T) {
	r := New(time.Minute, logger.New("error", "text"), nil)
	id := ids.DomainId("domain-b")

	r.Update(model.DomainRegistration{DomainId: id, Nonce: 1, Counter: 5})
	if got := r.Update(model.DomainRegistration{DomainId: id, Nonce: 1, Counter: 1}); got != model.RegistrationStale {
		t.Fatalf("expected Stale, got %v", got)
	}
}

func TestDomainLossCallback(t *testing.T) {
	lost := make(chan ids.DomainId, 1)
	r := New(10*time.Millisecond, logger.New("error", "text"), func(id ids.DomainId) {
		lost <- id
	})
	id := ids.DomainId("domain-c")
	r.Update(model.DomainRegistration{DomainId: id, Nonce: 1, Counter: 1})
	r.sweepOnce()
	time.Sleep(20 * time.Millisecond)
	r.sweepOnce()

	select {
	case got := <-lost:
		if got != id {
			t.Fatalf("unexpected domain id")
		}
	default:
		t.Fatal("expected domain loss callback to fire")
	}
}
