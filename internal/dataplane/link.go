// Package dataplane implements the per-node event router described in
// spec.md §4.1: a fixed ordered chain of Links an event is offered to in
// turn, stopping at the first Final. Local delivery is adapted from the
// teacher's common/queue.MemoryQueue (one channel per topic); remote
// delivery is adapted from the teacher's coordinator/node_router.go (route
// a token to the stream/peer that owns its destination node).
package dataplane

import (
	"context"

	"github.com/edgeless-project/edgeless/internal/ids"
	"github.com/edgeless-project/edgeless/internal/model"
)

// Link is anything that can attempt to deliver a cast event.
type Link interface {
	HandleCast(ctx context.Context, ev model.Event) model.LinkProcessingResult
}

// Chain is the node's fixed, ordered [LocalLink, (optional) MulticastLink...,
// RemoteLink] dataplane, per spec.md §4.1.
type Chain struct {
	links []Link
}

// NewChain builds a chain from an ordered list of links. Pass a nil
// MulticastLink or omit it entirely — Open Question 3 in SPEC_FULL.md §14
// leaves wire-level multicast optional.
func NewChain(links ...Link) *Chain {
	return &Chain{links: links}
}

// Offer runs ev through the chain in order, returning the result of the
// first link that does not return Passed/Ignored.
func (c *Chain) Offer(ctx context.Context, ev model.Event) model.LinkProcessingResult {
	for _, l := range c.links {
		switch r := l.HandleCast(ctx, ev); r {
		case model.LinkFinal, model.LinkError:
			return r
		case model.LinkPassed, model.LinkIgnored:
			continue
		}
	}
	return model.LinkIgnored
}

// ReplySlot is a one-shot channel the dataplane installs for an in-flight
// call, keyed by (peer, stream_id) per spec.md §4.1.
type ReplySlot struct {
	ch chan model.Event
}

func newReplySlot() *ReplySlot {
	return &ReplySlot{ch: make(chan model.Event, 1)}
}

// replyKey identifies one outstanding call.
type replyKey struct {
	peer     ids.NodeId
	streamID uint64
}
