// Package ids defines the 128-bit UUID identifiers that every EDGELESS
// component refers to other components by, plus their reserved sentinels.
package ids

import (
	"bytes"
	"fmt"

	"github.com/google/uuid"
)

// NodeId identifies one node process.
type NodeId uuid.UUID

// ComponentId (LID, logical id) is a domain-issued handle for a
// function/resource within a workflow; it survives migration across nodes.
type ComponentId uuid.UUID

// WorkflowId is controller-issued.
type WorkflowId uuid.UUID

// DomainId is a free-form string, unique per controller.
type DomainId string

// InstanceId is the physical address of a running function or resource on a
// specific node.
type InstanceId struct {
	NodeId      NodeId
	ComponentId ComponentId
}

// Sentinel identifiers, reserved per §6. They must not collide with any
// user-generated id.
var (
	NodeIdNone     = mustParse("00000000-0000-0000-fffe-000000000000")
	FunctionIdNone = mustParse("00000000-0000-0000-fffd-000000000000")
	WorkflowIdNone = mustParse("00000000-0000-0000-ffff-000000000000")
)

// InstanceIdNone is the sentinel InstanceId for "no instance assigned",
// used e.g. to mark a resource orphaned after its node is lost.
var InstanceIdNone = InstanceId{NodeId: NodeId(NodeIdNone), ComponentId: ComponentId(FunctionIdNone)}

func mustParse(s string) uuid.UUID {
	u, err := uuid.Parse(s)
	if err != nil {
		panic(err)
	}
	return u
}

// NewNodeId generates a fresh random NodeId.
func NewNodeId() NodeId { return NodeId(uuid.New()) }

// NewComponentId generates a fresh random ComponentId (LID).
func NewComponentId() ComponentId { return ComponentId(uuid.New()) }

// NewWorkflowId generates a fresh random WorkflowId.
func NewWorkflowId() WorkflowId { return WorkflowId(uuid.New()) }

// IsNone reports whether n is the NODE_ID_NONE sentinel.
func (n NodeId) IsNone() bool { return uuid.UUID(n) == NodeIdNone }

// IsNone reports whether c is the FUNCTION_ID_NONE sentinel.
func (c ComponentId) IsNone() bool { return uuid.UUID(c) == FunctionIdNone }

// IsNone reports whether w is the WORKFLOW_ID_NONE sentinel.
func (w WorkflowId) IsNone() bool { return uuid.UUID(w) == WorkflowIdNone }

func (n NodeId) String() string      { return uuid.UUID(n).String() }
func (c ComponentId) String() string { return uuid.UUID(c).String() }
func (w WorkflowId) String() string  { return uuid.UUID(w).String() }

// MarshalText/UnmarshalText let NodeId, ComponentId and WorkflowId round-trip
// through encoding/json and URL path params as their UUID text form; the
// named types don't inherit uuid.UUID's own methods, so each needs its own.
func (n NodeId) MarshalText() ([]byte, error) { return []byte(n.String()), nil }
func (n *NodeId) UnmarshalText(text []byte) error {
	u, err := uuid.Parse(string(text))
	if err != nil {
		return err
	}
	*n = NodeId(u)
	return nil
}

func (c ComponentId) MarshalText() ([]byte, error) { return []byte(c.String()), nil }
func (c *ComponentId) UnmarshalText(text []byte) error {
	u, err := uuid.Parse(string(text))
	if err != nil {
		return err
	}
	*c = ComponentId(u)
	return nil
}

func (w WorkflowId) MarshalText() ([]byte, error) { return []byte(w.String()), nil }
func (w *WorkflowId) UnmarshalText(text []byte) error {
	u, err := uuid.Parse(string(text))
	if err != nil {
		return err
	}
	*w = WorkflowId(u)
	return nil
}

// String renders an InstanceId as "<node>/<component>".
func (i InstanceId) String() string {
	return fmt.Sprintf("%s/%s", i.NodeId, i.ComponentId)
}

// IsNone reports whether either half of the instance id is a sentinel.
func (i InstanceId) IsNone() bool {
	return i.NodeId.IsNone() || i.ComponentId.IsNone()
}

// Bytes encodes an InstanceId per §6: bytes(node_id:16) || bytes(function_id:16).
func (i InstanceId) Bytes() []byte {
	out := make([]byte, 32)
	n := uuid.UUID(i.NodeId)
	c := uuid.UUID(i.ComponentId)
	copy(out[0:16], n[:])
	copy(out[16:32], c[:])
	return out
}

// InstanceIdFromBytes decodes the 32-byte wire form of an InstanceId.
func InstanceIdFromBytes(b []byte) (InstanceId, error) {
	if len(b) != 32 {
		return InstanceId{}, fmt.Errorf("ids: invalid InstanceId encoding: want 32 bytes, got %d", len(b))
	}
	var n, c uuid.UUID
	copy(n[:], b[0:16])
	copy(c[:], b[16:32])
	return InstanceId{NodeId: NodeId(n), ComponentId: ComponentId(c)}, nil
}

// Less implements the tie-break documented for Open Question 1 in
// SPEC_FULL.md §14: byte-lexicographic order over node_id||component_id.
func (i InstanceId) Less(other InstanceId) bool {
	return bytes.Compare(i.Bytes(), other.Bytes()) < 0
}

// Equal reports whether two InstanceIds address the same (node, component).
func (i InstanceId) Equal(other InstanceId) bool {
	return i.NodeId == other.NodeId && i.ComponentId == other.ComponentId
}

// MarshalText lets InstanceId round-trip through encoding/json as a single
// string key, matching how the proxy keyspace and CoAP codec both need it.
func (i InstanceId) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

// UnmarshalText parses the "<node>/<component>" text form back into an InstanceId.
func (i *InstanceId) UnmarshalText(text []byte) error {
	s := string(text)
	for idx := 0; idx < len(s); idx++ {
		if s[idx] == '/' {
			n, err := uuid.Parse(s[:idx])
			if err != nil {
				return err
			}
			c, err := uuid.Parse(s[idx+1:])
			if err != nil {
				return err
			}
			i.NodeId = NodeId(n)
			i.ComponentId = ComponentId(c)
			return nil
		}
	}
	return fmt.Errorf("ids: malformed InstanceId text %q", s)
}
