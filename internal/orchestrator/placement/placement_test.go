package placement

import (
	"testing"

	"github.com/edgeless-project/edgeless/internal/ids"
	"github.com/edgeless-project/edgeless/internal/model"
)

func mkCandidate(labels []string, cpus int) Candidate {
	return Candidate{
		NodeId: ids.NewNodeId(),
		Capabilities: model.NodeCapabilities{
			NumCpus:  cpus,
			NumCores: 1,
			Labels:   labels,
			Runtimes: []model.ClassType{model.ClassContainer},
		},
	}
}

func TestFeasibleFiltersByRuntime(t *testing.T) {
	c := Candidate{NodeId: ids.NewNodeId(), Capabilities: model.NodeCapabilities{NumCpus: 1, NumCores: 1, Runtimes: []model.ClassType{model.ClassRustWASM}}}
	out, err := Feasible([]Candidate{c}, model.ClassContainer, model.DeploymentRequirements{}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("expected 0 feasible nodes, got %d", len(out))
	}
}

func TestFeasibleFiltersByLabels(t *testing.T) {
	withLabel := mkCandidate([]string{"zone-a"}, 1)
	withoutLabel := mkCandidate(nil, 1)

	out, err := Feasible([]Candidate{withLabel, withoutLabel}, model.ClassContainer, model.DeploymentRequirements{LabelMatchAll: []string{"zone-a"}}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 || out[0].NodeId != withLabel.NodeId {
		t.Fatalf("expected only the labeled candidate, got %d results", len(out))
	}
}

func TestFeasibleFiltersByResourceProviders(t *testing.T) {
	withRedis := Candidate{NodeId: ids.NewNodeId(), Capabilities: model.NodeCapabilities{
		NumCpus: 1, NumCores: 1,
		Runtimes:          []model.ClassType{model.ClassContainer},
		ResourceProviders: []model.ClassType{model.ClassRedis},
	}}
	withoutRedis := Candidate{NodeId: ids.NewNodeId(), Capabilities: model.NodeCapabilities{
		NumCpus: 1, NumCores: 1,
		Runtimes: []model.ClassType{model.ClassContainer},
	}}

	out, err := Feasible([]Candidate{withRedis, withoutRedis}, model.ClassContainer, model.DeploymentRequirements{ResourceMatchAll: []string{"redis"}}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 || out[0].NodeId != withRedis.NodeId {
		t.Fatalf("expected only the node with a redis provider, got %d results", len(out))
	}
}

func TestFeasibleUnusableNodeExcluded(t *testing.T) {
	unusable := Candidate{NodeId: ids.NewNodeId(), Capabilities: model.NodeCapabilities{NumCpus: 0, NumCores: 0, Runtimes: []model.ClassType{model.ClassContainer}}}
	out, err := Feasible([]Candidate{unusable}, model.ClassContainer, model.DeploymentRequirements{}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("expected unusable node to be excluded, got %d", len(out))
	}
}

func TestCelFilterMatches(t *testing.T) {
	ev, err := NewCelEvaluator()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c := mkCandidate([]string{"gpu-node"}, 4)
	out, err := Feasible([]Candidate{c}, model.ClassContainer, model.DeploymentRequirements{CelFilter: `node.num_cpus >= 4`}, ev)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected cel_filter to match, got %d results", len(out))
	}

	out, err = Feasible([]Candidate{c}, model.ClassContainer, model.DeploymentRequirements{CelFilter: `node.num_cpus >= 8`}, ev)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("expected cel_filter to exclude, got %d results", len(out))
	}
}

func TestRoundRobinCycles(t *testing.T) {
	a := mkCandidate(nil, 1)
	b := mkCandidate(nil, 1)
	candidates := []Candidate{a, b}

	s := &RoundRobinStrategy{}
	first, _ := s.Choose(candidates)
	second, _ := s.Choose(candidates)
	third, _ := s.Choose(candidates)

	if first.NodeId != a.NodeId || second.NodeId != b.NodeId || third.NodeId != a.NodeId {
		t.Fatal("expected round robin to cycle through candidates in order")
	}
}

func TestRandomStrategyNoFeasibleNode(t *testing.T) {
	s := RandomStrategy{}
	if _, err := s.Choose(nil); err != ErrNoFeasibleNode {
		t.Fatalf("expected ErrNoFeasibleNode, got %v", err)
	}
}
