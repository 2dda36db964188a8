// Package model holds the EDGELESS data model: the wire-adjacent structs
// every component (dataplane, runner, agent, orchestrator, controller,
// proxy) shares, per spec.md §3.
package model

// ClassType enumerates sandbox/runtime technologies a function or resource
// can target. The sandbox implementations themselves are out of scope
// (spec.md §1); this is only the tag nodes advertise capability for.
type ClassType string

const (
	ClassRustWASM    ClassType = "RUST_WASM"
	ClassRustX86_64  ClassType = "RUST_x86_64"
	ClassRustAarch64 ClassType = "RUST_aarch64"
	ClassContainer   ClassType = "CONTAINER"
)

// Resource class types, ported from original_source/edgeless_node/src/resources/*.
const (
	ClassFileLog     ClassType = "file-log"
	ClassRedis       ClassType = "redis"
	ClassHTTPEgress  ClassType = "http-egress"
	ClassKafkaEgress ClassType = "kafka-egress"
	ClassDDA         ClassType = "dda"
)

// FunctionClassSpec describes the code and output alphabet of a function.
type FunctionClassSpec struct {
	ClassId   string    `json:"class_id"`
	ClassType ClassType `json:"class_type"`
	Version   string    `json:"version"`
	// Code may be bytecode, an image reference, or empty if the class is
	// pre-installed on the node.
	Code []byte `json:"code,omitempty"`
	// Outputs fixes the alphabet of channel names this function may emit on.
	Outputs []string `json:"outputs"`
}

// HasOutput reports whether ch is a declared output channel of the class.
func (c *FunctionClassSpec) HasOutput(ch string) bool {
	for _, o := range c.Outputs {
		if o == ch {
			return true
		}
	}
	return false
}
