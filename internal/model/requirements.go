package model

import (
	"strings"

	"github.com/tidwall/gjson"
)

// Requirement mirrors the Rust enum used for the TEE and TPM requirements
// in original_source/edgeless_orc: a capability is either Required or
// NotRequired, there is no "Preferred" tier.
type Requirement string

const (
	Required    Requirement = "Required"
	NotRequired Requirement = "NotRequired"
)

// DeploymentRequirements is parsed from a function's annotation bag
// (spec.md §3). Annotations are an opaque string->string map; the fields
// below are the subset the orchestrator's feasibility filter understands.
//
// The "cel_filter" annotation (SPEC_FULL.md §11) is an additional,
// EDGELESS-Go-specific extension: an arbitrary CEL boolean expression over
// NodeCapabilities, evaluated in internal/orchestrator/placement, that lets
// an annotation express predicates label_match_all/resource_match_all can't.
type DeploymentRequirements struct {
	MaxInstances      int
	NodeIdMatchAny    []string
	LabelMatchAll     []string
	ResourceMatchAll  []string
	Tee               Requirement
	Tpm               Requirement
	CelFilter         string
}

// FromAnnotations parses a DeploymentRequirements out of a function's
// annotation bag. Annotations carry a single JSON-encoded "deployment" key
// (gjson reads only the paths we need, the same way the teacher's
// resolver.Resolver reads "$nodes.*" paths without a full struct decode);
// unknown or absent fields default to their zero value (no requirement).
func FromAnnotations(annotations map[string]string) DeploymentRequirements {
	reqs := DeploymentRequirements{
		Tee: NotRequired,
		Tpm: NotRequired,
	}

	raw, ok := annotations["deployment"]
	if !ok || raw == "" {
		return reqs
	}

	result := gjson.Parse(raw)

	if v := result.Get("max_instances"); v.Exists() {
		reqs.MaxInstances = int(v.Int())
	}
	reqs.NodeIdMatchAny = stringArray(result.Get("node_id_match_any"))
	reqs.LabelMatchAll = stringArray(result.Get("label_match_all"))
	reqs.ResourceMatchAll = stringArray(result.Get("resource_match_all"))

	if v := result.Get("tee"); v.Exists() && strings.EqualFold(v.String(), "required") {
		reqs.Tee = Required
	}
	if v := result.Get("tpm"); v.Exists() && strings.EqualFold(v.String(), "required") {
		reqs.Tpm = Required
	}
	if v := result.Get("cel_filter"); v.Exists() {
		reqs.CelFilter = v.String()
	}

	return reqs
}

func stringArray(v gjson.Result) []string {
	if !v.Exists() || !v.IsArray() {
		return nil
	}
	out := make([]string, 0, len(v.Array()))
	for _, item := range v.Array() {
		out = append(out, item.String())
	}
	return out
}
