package dataplane

import (
	"context"
	"fmt"
	"sync"

	"github.com/edgeless-project/edgeless/internal/ids"
	"github.com/edgeless-project/edgeless/internal/model"
	"github.com/edgeless-project/edgeless/internal/obs/logger"
)

// InvocationClient is the node-to-node data plane client contract
// (InvocationAPI in spec.md §6): deliver one event to a peer node and
// report how that peer's own chain processed it.
type InvocationClient interface {
	Handle(ctx context.Context, ev model.Event) (model.LinkProcessingResult, error)
}

// RemoteLink routes events whose target lives on another node to that
// node's InvocationClient, adapted from the teacher's
// coordinator/node_router.go (which picked a Redis stream per node type;
// here the routing key is simply the target's NodeId).
type RemoteLink struct {
	mu    sync.RWMutex
	peers map[ids.NodeId]InvocationClient
	log   *logger.Logger
}

// NewRemoteLink creates an empty RemoteLink.
func NewRemoteLink(log *logger.Logger) *RemoteLink {
	return &RemoteLink{peers: make(map[ids.NodeId]InvocationClient), log: log}
}

// AddPeer registers (or replaces) the client used to reach a peer node,
// mirroring AgentAPI's NodeManagementAPI::update_peers(Add) in spec.md §6.
func (r *RemoteLink) AddPeer(node ids.NodeId, client InvocationClient) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.peers[node] = client
}

// RemovePeer drops a peer, mirroring update_peers(Del).
func (r *RemoteLink) RemovePeer(node ids.NodeId) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.peers, node)
}

// Clear drops all peers, mirroring update_peers(Clear).
func (r *RemoteLink) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.peers = make(map[ids.NodeId]InvocationClient)
}

// HandleCast implements Link: forwards to the peer's InvocationClient if
// one is registered for the target node.
func (r *RemoteLink) HandleCast(ctx context.Context, ev model.Event) model.LinkProcessingResult {
	r.mu.RLock()
	client, ok := r.peers[ev.Target.NodeId]
	r.mu.RUnlock()

	if !ok {
		return model.LinkIgnored
	}

	result, err := client.Handle(ctx, ev)
	if err != nil {
		r.log.Error("remote dataplane delivery failed", "target", ev.Target.String(), "error", err)
		return model.LinkError
	}
	if result == model.LinkPassed || result == model.LinkIgnored {
		return result
	}
	return model.LinkFinal
}

// ErrNoRoute is returned when a remote target has no registered peer client.
var ErrNoRoute = fmt.Errorf("dataplane: no route to target node")
