// Package coap implements the constrained-node wire path of spec.md §6: a
// fixed CBOR encoding for InstanceId, EncodedNodeRegistration,
// ResourceProviderSpec and EncodedPatchRequest, plus the 1-byte-token
// duplicate suppression rule of §4.1. This is the path
// original_source/edgeless_embedded* nodes speak instead of the
// httpapi/JSON transport; no pack repo imports a CBOR library directly, so
// fxamacker/cbor/v2 is adopted as the ecosystem's standard Go CBOR codec
// (SPEC_FULL.md §11).
package coap

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"

	"github.com/edgeless-project/edgeless/internal/ids"
	"github.com/edgeless-project/edgeless/internal/model"
)

// wireInstanceId is the 32-byte encoding of an InstanceId: bytes(node_id:16)
// || bytes(function_id:16), carried as a CBOR byte string.
type wireInstanceId []byte

// EncodeInstanceId produces the fixed wire form of an InstanceId.
func EncodeInstanceId(id ids.InstanceId) ([]byte, error) {
	return cbor.Marshal(wireInstanceId(id.Bytes()))
}

// DecodeInstanceId parses the wire form of an InstanceId.
func DecodeInstanceId(b []byte) (ids.InstanceId, error) {
	var w wireInstanceId
	if err := cbor.Unmarshal(b, &w); err != nil {
		return ids.InstanceId{}, fmt.Errorf("coap: decode InstanceId: %w", err)
	}
	return ids.InstanceIdFromBytes(w)
}

// ResourceProviderSpec describes one resource provider a node advertises in
// its registration, per spec.md §6: `{provider_id, class_type, array<output>}`.
type ResourceProviderSpec struct {
	ProviderId ids.InstanceId
	ClassType  model.ClassType
	Outputs    []string
}

// wireResourceProviderSpec is ResourceProviderSpec with ProviderId lowered
// to its fixed byte encoding, since ids.InstanceId has no native CBOR
// mapping.
type wireResourceProviderSpec struct {
	ProviderId []byte   `cbor:"provider_id"`
	ClassType  string   `cbor:"class_type"`
	Outputs    []string `cbor:"outputs"`
}

func (s ResourceProviderSpec) toWire() wireResourceProviderSpec {
	return wireResourceProviderSpec{
		ProviderId: s.ProviderId.Bytes(),
		ClassType:  string(s.ClassType),
		Outputs:    s.Outputs,
	}
}

func (w wireResourceProviderSpec) fromWire() (ResourceProviderSpec, error) {
	id, err := ids.InstanceIdFromBytes(w.ProviderId)
	if err != nil {
		return ResourceProviderSpec{}, err
	}
	return ResourceProviderSpec{
		ProviderId: id,
		ClassType:  model.ClassType(w.ClassType),
		Outputs:    w.Outputs,
	}, nil
}

// EncodedNodeRegistration is the CoAP-path equivalent of model.NodeRegistration,
// per spec.md §6: `{node_id, agent_url, invocation_url, array<ResourceProviderSpec>}`.
type EncodedNodeRegistration struct {
	NodeId        ids.NodeId
	AgentURL      string
	InvocationURL string
	Providers     []ResourceProviderSpec
}

type wireNodeRegistration struct {
	NodeId        []byte                     `cbor:"node_id"`
	AgentURL      string                     `cbor:"agent_url"`
	InvocationURL string                     `cbor:"invocation_url"`
	Providers     []wireResourceProviderSpec `cbor:"providers"`
}

// EncodeNodeRegistration serializes a registration for the CoAP transport.
func EncodeNodeRegistration(reg EncodedNodeRegistration) ([]byte, error) {
	w := wireNodeRegistration{
		NodeId:        uuidBytes(reg.NodeId),
		AgentURL:      reg.AgentURL,
		InvocationURL: reg.InvocationURL,
		Providers:     make([]wireResourceProviderSpec, len(reg.Providers)),
	}
	for i, p := range reg.Providers {
		w.Providers[i] = p.toWire()
	}
	return cbor.Marshal(w)
}

// DecodeNodeRegistration parses a CoAP-transport registration.
func DecodeNodeRegistration(b []byte) (EncodedNodeRegistration, error) {
	var w wireNodeRegistration
	if err := cbor.Unmarshal(b, &w); err != nil {
		return EncodedNodeRegistration{}, fmt.Errorf("coap: decode EncodedNodeRegistration: %w", err)
	}
	nodeID, err := nodeIdFromBytes(w.NodeId)
	if err != nil {
		return EncodedNodeRegistration{}, err
	}
	reg := EncodedNodeRegistration{
		NodeId:        nodeID,
		AgentURL:      w.AgentURL,
		InvocationURL: w.InvocationURL,
		Providers:     make([]ResourceProviderSpec, len(w.Providers)),
	}
	for i, p := range w.Providers {
		spec, err := p.fromWire()
		if err != nil {
			return EncodedNodeRegistration{}, err
		}
		reg.Providers[i] = spec
	}
	return reg, nil
}

// EncodedPatchRequest is the CoAP-path equivalent of the httpapi patchRequest:
// the full resolved output_mapping table for one component, keyed by output
// channel alias.
type EncodedPatchRequest struct {
	ComponentId ids.ComponentId
	Table       map[string]ids.InstanceId
}

type wirePatchRequest struct {
	ComponentId []byte            `cbor:"component_id"`
	Table       map[string][]byte `cbor:"table"`
}

// EncodePatchRequest serializes a patch push for the CoAP transport.
func EncodePatchRequest(req EncodedPatchRequest) ([]byte, error) {
	w := wirePatchRequest{
		ComponentId: uuidBytes(req.ComponentId),
		Table:       make(map[string][]byte, len(req.Table)),
	}
	for alias, instanceID := range req.Table {
		w.Table[alias] = instanceID.Bytes()
	}
	return cbor.Marshal(w)
}

// DecodePatchRequest parses a CoAP-transport patch push.
func DecodePatchRequest(b []byte) (EncodedPatchRequest, error) {
	var w wirePatchRequest
	if err := cbor.Unmarshal(b, &w); err != nil {
		return EncodedPatchRequest{}, fmt.Errorf("coap: decode EncodedPatchRequest: %w", err)
	}
	componentID, err := componentIdFromBytes(w.ComponentId)
	if err != nil {
		return EncodedPatchRequest{}, err
	}
	req := EncodedPatchRequest{ComponentId: componentID, Table: make(map[string]ids.InstanceId, len(w.Table))}
	for alias, raw := range w.Table {
		instanceID, err := ids.InstanceIdFromBytes(raw)
		if err != nil {
			return EncodedPatchRequest{}, err
		}
		req.Table[alias] = instanceID
	}
	return req, nil
}

func uuidBytes[T ids.NodeId | ids.ComponentId](id T) []byte {
	u := uuid.UUID(id)
	return u[:]
}

func nodeIdFromBytes(b []byte) (ids.NodeId, error) {
	if len(b) != 16 {
		return ids.NodeId{}, fmt.Errorf("coap: invalid node_id encoding: want 16 bytes, got %d", len(b))
	}
	var u uuid.UUID
	copy(u[:], b)
	return ids.NodeId(u), nil
}

func componentIdFromBytes(b []byte) (ids.ComponentId, error) {
	if len(b) != 16 {
		return ids.ComponentId{}, fmt.Errorf("coap: invalid component_id encoding: want 16 bytes, got %d", len(b))
	}
	var u uuid.UUID
	copy(u[:], b)
	return ids.ComponentId(u), nil
}
