package httpapi

import (
	"net/http"
	"sync"

	"github.com/edgeless-project/edgeless/internal/controller"
	"github.com/edgeless-project/edgeless/internal/ids"
	"github.com/edgeless-project/edgeless/internal/model"
)

// DomainLister is the controller's view of the domain register's read side,
// satisfied by register/domain.Register.
type DomainLister interface {
	List() []model.DomainRegistration
}

// DomainDirectory implements controller.DomainDirectory over HTTP,
// dialing each live domain's OrchestratorAPI lazily and caching the client
// by DomainId. A cached client is never dropped, so it keeps the URL seen
// on first dial even if the domain re-registers elsewhere.
type DomainDirectory struct {
	domains DomainLister
	http    *http.Client

	mu      sync.Mutex
	clients map[ids.DomainId]*OrchestratorClient
}

// NewDomainDirectory builds a DomainDirectory over a live domain register.
func NewDomainDirectory(domains DomainLister, hc *http.Client) *DomainDirectory {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &DomainDirectory{domains: domains, http: hc, clients: make(map[ids.DomainId]*OrchestratorClient)}
}

// Healthy lists every domain currently reporting into the register.
func (d *DomainDirectory) Healthy() []ids.DomainId {
	regs := d.domains.List()
	out := make([]ids.DomainId, 0, len(regs))
	for _, r := range regs {
		out = append(out, r.DomainId)
	}
	return out
}

// Client resolves the OrchestratorClient for domain, caching it per
// DomainId so a repeated admission doesn't redial.
func (d *DomainDirectory) Client(domain ids.DomainId) (controller.DomainClient, error) {
	regs := d.domains.List()
	var url string
	found := false
	for _, r := range regs {
		if r.DomainId == domain {
			url = r.OrchestratorURL
			found = true
			break
		}
	}
	if !found {
		return nil, controller.ErrNoHealthyDomain
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if c, ok := d.clients[domain]; ok {
		return c, nil
	}
	c := NewOrchestratorClient(url, d.http)
	d.clients[domain] = c
	return c, nil
}
