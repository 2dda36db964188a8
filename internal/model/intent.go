package model

import "github.com/edgeless-project/edgeless/internal/ids"

// MigrateIntent is an operator-authored deployment directive (spec.md §4.4,
// §4.7): move the component identified by Lid onto one of CandidateNodes.
// It is the only intent kind the proxy keyspace defines.
type MigrateIntent struct {
	Lid            ids.ComponentId
	CandidateNodes []ids.NodeId
}

// PerformanceSample is one (timestamp, value) point from the proxy's
// performance:<category>:<name> keyspace (spec.md §6).
type PerformanceSample struct {
	Timestamp int64   `json:"timestamp"`
	Value     float64 `json:"value"`
}
