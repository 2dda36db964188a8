// Package placement implements the domain orchestrator's node selection
// (spec.md §4.4): filter the node register down to the feasible set for a
// deployment requirement, then rank/choose among it with a configurable
// strategy. The CEL filter stage is ported from the teacher's
// cmd/workflow-runner/condition.Evaluator (compiled-program cache keyed by
// expression text).
package placement

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/edgeless-project/edgeless/internal/ids"
	"github.com/edgeless-project/edgeless/internal/model"
)

// Candidate is one node under consideration for placement.
type Candidate struct {
	NodeId       ids.NodeId
	Capabilities model.NodeCapabilities
}

// Strategy picks one candidate from an already-feasible set.
type Strategy interface {
	Choose(candidates []Candidate) (Candidate, error)
}

// ErrNoFeasibleNode is returned when no node satisfies a requirement.
var ErrNoFeasibleNode = fmt.Errorf("placement: no feasible node")

// CelEvaluator compiles and caches CEL programs for DeploymentRequirements'
// cel_filter, adapted from the teacher's condition.Evaluator.
type CelEvaluator struct {
	mu    sync.RWMutex
	cache map[string]cel.Program
	env   *cel.Env
}

// NewCelEvaluator builds an evaluator whose programs see a single `node`
// variable: the candidate's labels and capability fields (see Matches for
// the exact keys).
func NewCelEvaluator() (*CelEvaluator, error) {
	env, err := cel.NewEnv(cel.Variable("node", cel.DynType))
	if err != nil {
		return nil, fmt.Errorf("placement: create CEL env: %w", err)
	}
	return &CelEvaluator{cache: make(map[string]cel.Program), env: env}, nil
}

func (e *CelEvaluator) program(expr string) (cel.Program, error) {
	e.mu.RLock()
	prg, ok := e.cache[expr]
	e.mu.RUnlock()
	if ok {
		return prg, nil
	}

	ast, issues := e.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("placement: compile cel_filter: %w", issues.Err())
	}
	prg, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("placement: build cel_filter program: %w", err)
	}

	e.mu.Lock()
	e.cache[expr] = prg
	e.mu.Unlock()
	return prg, nil
}

// Matches evaluates expr against a candidate's capabilities, exposed to CEL
// as `node.labels`, `node.num_cpus`, `node.num_cores`, `node.mem_size_mib`,
// `node.is_tee_running`, `node.has_tpm`, `node.has_gpu`.
func (e *CelEvaluator) Matches(expr string, caps model.NodeCapabilities) (bool, error) {
	prg, err := e.program(expr)
	if err != nil {
		return false, err
	}
	out, _, err := prg.Eval(map[string]interface{}{
		"node": map[string]interface{}{
			"labels":          caps.Labels,
			"num_cpus":        caps.NumCpus,
			"num_cores":       caps.NumCores,
			"mem_size_mib":    caps.MemSizeMiB,
			"is_tee_running":  caps.IsTeeRunning,
			"has_tpm":         caps.HasTpm,
			"has_gpu":         caps.HasGpu,
		},
	})
	if err != nil {
		return false, fmt.Errorf("placement: eval cel_filter: %w", err)
	}
	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("placement: cel_filter did not return bool, got %T", out.Value())
	}
	return result, nil
}

func matchesRequirement(req model.Requirement, has bool) bool {
	switch req {
	case model.Required:
		return has
	default:
		return true
	}
}

func containsAllResources(have, want []string) bool {
	set := make(map[string]struct{}, len(have))
	for _, r := range have {
		set[r] = struct{}{}
	}
	for _, r := range want {
		if _, ok := set[r]; !ok {
			return false
		}
	}
	return true
}

// Feasible filters candidates down to those satisfying req's structural
// constraints (runtime support, node id allowlist, labels, resources,
// tee/tpm), per spec.md §4.4. The cel_filter, if present, is applied
// separately via evaluator since it needs compilation state.
func Feasible(candidates []Candidate, class model.ClassType, req model.DeploymentRequirements, evaluator *CelEvaluator) ([]Candidate, error) {
	var out []Candidate
	for _, c := range candidates {
		if !c.Capabilities.Usable() {
			continue
		}
		if !c.Capabilities.SupportsRuntime(class) {
			continue
		}
		if len(req.NodeIdMatchAny) > 0 {
			matched := false
			for _, allowed := range req.NodeIdMatchAny {
				if c.NodeId.String() == allowed {
					matched = true
					break
				}
			}
			if !matched {
				continue
			}
		}
		if !c.Capabilities.HasAllLabels(req.LabelMatchAll) {
			continue
		}
		if !containsAllResources(resourceTags(c.Capabilities), req.ResourceMatchAll) {
			continue
		}
		if !matchesRequirement(req.Tee, c.Capabilities.IsTeeRunning) {
			continue
		}
		if !matchesRequirement(req.Tpm, c.Capabilities.HasTpm) {
			continue
		}
		if req.CelFilter != "" {
			if evaluator == nil {
				return nil, fmt.Errorf("placement: cel_filter set but no evaluator configured")
			}
			ok, err := evaluator.Matches(req.CelFilter, c.Capabilities)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}
		out = append(out, c)
	}
	return out, nil
}

// resourceTags is the domain's provider catalog for one node: the class
// types its resource.Registry actually hosts (spec.md §4.3
// `resource_providers`, §4.4 step 2 "present in the domain's provider
// catalog"), not its generic labels.
func resourceTags(caps model.NodeCapabilities) []string {
	tags := make([]string, len(caps.ResourceProviders))
	for i, c := range caps.ResourceProviders {
		tags[i] = string(c)
	}
	return tags
}

// RandomStrategy picks uniformly among the feasible set.
type RandomStrategy struct{}

func (RandomStrategy) Choose(candidates []Candidate) (Candidate, error) {
	if len(candidates) == 0 {
		return Candidate{}, ErrNoFeasibleNode
	}
	return candidates[rand.Intn(len(candidates))], nil
}

// WeightedRandomStrategy picks randomly, weighted by advertised memory size
// (MemSizeMiB; a node reporting none weighs 1), favoring larger nodes
// without strictly ordering them.
type WeightedRandomStrategy struct{}

func (WeightedRandomStrategy) Choose(candidates []Candidate) (Candidate, error) {
	if len(candidates) == 0 {
		return Candidate{}, ErrNoFeasibleNode
	}
	total := 0
	for _, c := range candidates {
		total += weight(c)
	}
	if total == 0 {
		return candidates[rand.Intn(len(candidates))], nil
	}
	pick := rand.Intn(total)
	for _, c := range candidates {
		pick -= weight(c)
		if pick < 0 {
			return c, nil
		}
	}
	return candidates[len(candidates)-1], nil
}

func weight(c Candidate) int {
	if c.Capabilities.MemSizeMiB <= 0 {
		return 1
	}
	return c.Capabilities.MemSizeMiB
}

// RoundRobinStrategy cycles deterministically through the feasible set in
// the order it is given, independent across calls via an internal cursor.
type RoundRobinStrategy struct {
	mu     sync.Mutex
	cursor int
}

func (s *RoundRobinStrategy) Choose(candidates []Candidate) (Candidate, error) {
	if len(candidates) == 0 {
		return Candidate{}, ErrNoFeasibleNode
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c := candidates[s.cursor%len(candidates)]
	s.cursor++
	return c, nil
}
