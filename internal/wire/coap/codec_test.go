package coap

import (
	"testing"

	"github.com/edgeless-project/edgeless/internal/ids"
	"github.com/edgeless-project/edgeless/internal/model"
)

func TestInstanceIdRoundTrip(t *testing.T) {
	want := ids.InstanceId{NodeId: ids.NewNodeId(), ComponentId: ids.NewComponentId()}
	encoded, err := EncodeInstanceId(want)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := DecodeInstanceId(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !got.Equal(want) {
		t.Fatalf("round trip mismatch: got %v, want %v", got, want)
	}
}

func TestNodeRegistrationRoundTrip(t *testing.T) {
	want := EncodedNodeRegistration{
		NodeId:        ids.NewNodeId(),
		AgentURL:      "coap://10.0.0.1:7780",
		InvocationURL: "coap://10.0.0.1:7780",
		Providers: []ResourceProviderSpec{
			{
				ProviderId: ids.InstanceId{NodeId: ids.NewNodeId(), ComponentId: ids.NewComponentId()},
				ClassType:  model.ClassFileLog,
				Outputs:    []string{"out1", "out2"},
			},
		},
	}
	encoded, err := EncodeNodeRegistration(want)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := DecodeNodeRegistration(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.NodeId != want.NodeId || got.AgentURL != want.AgentURL || got.InvocationURL != want.InvocationURL {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, want)
	}
	if len(got.Providers) != 1 || got.Providers[0].ClassType != model.ClassFileLog {
		t.Fatalf("providers round trip mismatch: got %+v", got.Providers)
	}
}

func TestPatchRequestRoundTrip(t *testing.T) {
	lid := ids.NewComponentId()
	want := EncodedPatchRequest{
		ComponentId: lid,
		Table: map[string]ids.InstanceId{
			"out1": {NodeId: ids.NewNodeId(), ComponentId: ids.NewComponentId()},
		},
	}
	encoded, err := EncodePatchRequest(want)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := DecodePatchRequest(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ComponentId != want.ComponentId {
		t.Fatalf("component id mismatch: got %v, want %v", got.ComponentId, want.ComponentId)
	}
	if !got.Table["out1"].Equal(want.Table["out1"]) {
		t.Fatalf("table mismatch: got %+v, want %+v", got.Table, want.Table)
	}
}

func TestEventRoundTrip(t *testing.T) {
	ev := model.Event{
		Source:   ids.InstanceId{NodeId: ids.NewNodeId(), ComponentId: ids.NewComponentId()},
		Target:   ids.InstanceId{NodeId: ids.NewNodeId(), ComponentId: ids.NewComponentId()},
		StreamId: 42,
		Kind:     model.EventCall,
		Data:     []byte("payload"),
	}
	encoded, err := EncodeEvent(ev, 7)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, token, err := DecodeEvent(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if token != 7 {
		t.Fatalf("token mismatch: got %d", token)
	}
	if !got.Source.Equal(ev.Source) || !got.Target.Equal(ev.Target) || got.StreamId != ev.StreamId || got.Kind != ev.Kind || string(got.Data) != string(ev.Data) {
		t.Fatalf("event round trip mismatch: got %+v, want %+v", got, ev)
	}
}
