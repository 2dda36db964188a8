// Package patch implements the domain orchestrator's output-table
// computation of spec.md §4.4: resolve each component's output_mapping
// names to concrete InstanceIds and diff successive tables so only changed
// entries are re-pushed to agents. Diffing is ported from the teacher's
// service.MaterializerService use of evanphx/json-patch for patch-chain
// reconciliation; here it is used in the opposite direction, to compute a
// patch from two resolved states rather than apply one.
package patch

import (
	"encoding/json"
	"fmt"

	jsonpatch "github.com/evanphx/json-patch/v5"

	"github.com/edgeless-project/edgeless/internal/ids"
	"github.com/edgeless-project/edgeless/internal/model"
)

// Table is one component's fully resolved output_mapping: channel name to
// concrete InstanceId, ready to push to the owning agent as a PatchRequest.
type Table map[string]ids.InstanceId

// Resolve computes the output table for one component of a workflow given
// the domain's current name->InstanceId bindings. A name present in
// output_mapping but absent from bindings is dropped (its edge targets an
// orphaned or not-yet-placed component) rather than erroring, matching the
// original's tolerance for partially-placed workflows during a split.
func Resolve(outputMapping map[string]string, bindings map[string]model.ActiveInstance) Table {
	table := make(Table, len(outputMapping))
	for channel, targetName := range outputMapping {
		active, ok := bindings[targetName]
		if !ok {
			continue
		}
		instanceID, ok := pickInstance(active)
		if !ok {
			continue
		}
		table[channel] = instanceID
	}
	return table
}

// pickInstance chooses the InstanceId an output edge should address: for a
// resource, its single instance; for a function, the lowest InstanceId
// among its replicas by the Less() tie-break (SPEC_FULL.md §14 Open
// Question 1), so repeated Resolve calls over an unchanged replica set are
// idempotent regardless of map iteration order upstream.
func pickInstance(active model.ActiveInstance) (ids.InstanceId, bool) {
	if active.Kind == model.InstanceResource {
		if active.ResourceInstance.IsNone() {
			return ids.InstanceIdNone, false
		}
		return active.ResourceInstance, true
	}

	if len(active.Replicas) == 0 {
		return ids.InstanceIdNone, false
	}
	best := active.Replicas[0].InstanceId
	for _, r := range active.Replicas[1:] {
		if r.InstanceId.Less(best) {
			best = r.InstanceId
		}
	}
	return best, true
}

// Diff reports whether table changed relative to previous, and the JSON
// Merge Patch (RFC 7386) needed to bring previous up to date with it.
// An unchanged table yields a nil patch, so callers can skip re-pushing it
// to an agent (spec.md §4.4 "patch computation ... idempotent").
func Diff(previous, current Table) ([]byte, error) {
	prevJSON, err := marshalTable(previous)
	if err != nil {
		return nil, fmt.Errorf("patch: marshal previous: %w", err)
	}
	currJSON, err := marshalTable(current)
	if err != nil {
		return nil, fmt.Errorf("patch: marshal current: %w", err)
	}
	if string(prevJSON) == string(currJSON) {
		return nil, nil
	}
	mergePatch, err := jsonpatch.CreateMergePatch(prevJSON, currJSON)
	if err != nil {
		return nil, fmt.Errorf("patch: create merge patch: %w", err)
	}
	return mergePatch, nil
}

// marshalTable serializes a Table to JSON; encoding/json sorts map keys by
// default, so two maps with identical content always produce byte-identical
// output regardless of iteration order upstream.
func marshalTable(t Table) ([]byte, error) {
	ordered := make(map[string]string, len(t))
	for ch, id := range t {
		ordered[ch] = id.String()
	}
	return json.Marshal(ordered)
}
