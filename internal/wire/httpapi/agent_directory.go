package httpapi

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/edgeless-project/edgeless/internal/ids"
	"github.com/edgeless-project/edgeless/internal/model"
	"github.com/edgeless-project/edgeless/internal/orchestrator"
)

// NodeLister is the domain orchestrator's view of the node register's read
// side, satisfied by register/node.Register.
type NodeLister interface {
	Get(id ids.NodeId) (model.NodeRegistration, bool)
}

// AgentDirectory resolves an orchestrator.AgentClient for a node id,
// dialing its advertised AgentURL lazily and caching the client per node.
// A cached client is never dropped, so it keeps the AgentURL seen on first
// dial even if the node re-registers with another one.
type AgentDirectory struct {
	nodes NodeLister
	http  *http.Client

	mu      sync.Mutex
	clients map[ids.NodeId]*AgentClient
}

// NewAgentDirectory builds an AgentDirectory over a live node register.
func NewAgentDirectory(nodes NodeLister, hc *http.Client) *AgentDirectory {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &AgentDirectory{nodes: nodes, http: hc, clients: make(map[ids.NodeId]*AgentClient)}
}

// Factory returns an orchestrator.AgentClientFactory bound to this directory.
func (d *AgentDirectory) Factory() orchestrator.AgentClientFactory {
	return d.clientFor
}

func (d *AgentDirectory) clientFor(node ids.NodeId) (orchestrator.AgentClient, error) {
	reg, ok := d.nodes.Get(node)
	if !ok {
		return nil, fmt.Errorf("httpapi: no registration for node %s", node)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if c, ok := d.clients[node]; ok {
		return c, nil
	}
	c := NewAgentClient(reg.AgentURL, d.http)
	d.clients[node] = c
	return c, nil
}
