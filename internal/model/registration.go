package model

import "github.com/edgeless-project/edgeless/internal/ids"

// NodeRegistration is what an agent reports about itself to its node
// register, periodically re-sent at REFRESH_PERIOD (spec.md §6).
type NodeRegistration struct {
	NodeId       ids.NodeId
	AgentURL     string
	InvocationURL string
	Capabilities NodeCapabilities
	// Nonce identifies one agent process lifetime; Counter increases
	// monotonically within a nonce. A register rejects an update whose
	// (nonce, counter) regresses what it has already accepted, per spec.md
	// §6 "staleness rejection".
	Nonce   uint64
	Counter uint64
}

// NodeRegistrationResult reports whether an update was accepted.
type NodeRegistrationResult int

const (
	RegistrationAccepted NodeRegistrationResult = iota
	RegistrationStale
	RegistrationResetRequired
)

// DomainRegistration is the domain orchestrator's analogous periodic report
// to the controller's domain register.
type DomainRegistration struct {
	DomainId ids.DomainId
	OrchestratorURL string
	Nonce    uint64
	Counter  uint64
}
