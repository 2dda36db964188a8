package dataplane

import "sync"

// DuplicateSuppressor implements the CoAP/CoAP-over-UDP duplicate
// suppression rule in spec.md §4.1: per peer IP, remember the last seen
// 8-bit token; drop an incoming event iff
// received_token <= remembered_token && received_token != 0. A token of
// zero always passes — this wraparound rule is intentional (testable
// property 5, scenario S6) and must not be "fixed" into a strictly
// monotonic check.
type DuplicateSuppressor struct {
	mu      sync.Mutex
	lastSeen map[string]uint8
}

// NewDuplicateSuppressor creates an empty suppressor.
func NewDuplicateSuppressor() *DuplicateSuppressor {
	return &DuplicateSuppressor{lastSeen: make(map[string]uint8)}
}

// Admit reports whether an event with the given token from peerIP should be
// delivered (true) or dropped as a duplicate (false), updating the
// remembered token as a side effect when admitted.
func (d *DuplicateSuppressor) Admit(peerIP string, token uint8) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	remembered, seen := d.lastSeen[peerIP]
	if token == 0 {
		d.lastSeen[peerIP] = token
		return true
	}
	if seen && token <= remembered {
		return false
	}
	d.lastSeen[peerIP] = token
	return true
}

// Forget drops the remembered token for a peer, e.g. when its session resets.
func (d *DuplicateSuppressor) Forget(peerIP string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.lastSeen, peerIP)
}
