package model

// WorkflowFunction is a function node in a workflow graph.
type WorkflowFunction struct {
	Name           string            `json:"name"`
	ClassSpec      FunctionClassSpec `json:"class_spec"`
	OutputMapping  map[string]string `json:"output_mapping"`
	Annotations    map[string]string `json:"annotations"`
}

// WorkflowResource is a resource node in a workflow graph.
type WorkflowResource struct {
	Name          string            `json:"name"`
	ClassType     ClassType         `json:"class_type"`
	OutputMapping map[string]string `json:"output_mapping"`
	Annotations   map[string]string `json:"annotations"`
	Configurations map[string]string `json:"configurations"`
}

// WorkflowRequest is the client-submitted workflow specification, §4.5
// admission step 1.
type WorkflowRequest struct {
	Name      string             `json:"name"`
	Functions []WorkflowFunction `json:"functions"`
	Resources []WorkflowResource `json:"resources"`
}

// ComponentNames returns the union of function and resource names declared
// by the request, used to check invariant 2 (domain_mapping coverage).
func (r *WorkflowRequest) ComponentNames() map[string]struct{} {
	names := make(map[string]struct{}, len(r.Functions)+len(r.Resources))
	for _, f := range r.Functions {
		names[f.Name] = struct{}{}
	}
	for _, res := range r.Resources {
		names[res.Name] = struct{}{}
	}
	return names
}

// OutputMappingOf returns the output_mapping of the named component, or nil
// if the name is not present.
func (r *WorkflowRequest) OutputMappingOf(name string) map[string]string {
	for _, f := range r.Functions {
		if f.Name == name {
			return f.OutputMapping
		}
	}
	for _, res := range r.Resources {
		if res.Name == name {
			return res.OutputMapping
		}
	}
	return nil
}
