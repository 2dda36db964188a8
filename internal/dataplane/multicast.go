package dataplane

import (
	"context"

	"github.com/edgeless-project/edgeless/internal/model"
)

// MulticastLink is the optional third link in the chain (SPEC_FULL.md §12,
// Open Question 3): in-scope behaviour is limited to the LinkProvider
// contract below; no concrete multicast transport ships with this module.
// A node that has no multicast provider configured simply omits this link
// from its Chain.
type LinkProvider interface {
	Link
	// Readers lists the component ids currently subscribed to multicast
	// delivery on this link, for diagnostics.
	Readers() []string
}

// NopMulticastLink always reports Ignored; it exists so a node can still
// build a three-element Chain in configurations that expect one, without
// requiring a real multicast transport.
type NopMulticastLink struct{}

func (NopMulticastLink) HandleCast(ctx context.Context, ev model.Event) model.LinkProcessingResult {
	return model.LinkIgnored
}

func (NopMulticastLink) Readers() []string { return nil }
