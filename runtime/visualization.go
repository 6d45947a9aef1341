package runtime

// VisualizationState is a read-only projection of an ExecutionState
// intended for UIs/debuggers: per-path current position plus the
// machine's static shape, without the internal bookkeeping fields
// (invocation counts, clock) a renderer has no use for.
type VisualizationState struct {
	Title      string                `json:"title"`
	Nodes      []string              `json:"nodes"`
	Edges      []VisualizationEdge   `json:"edges"`
	Paths      []VisualizationPath   `json:"paths"`
	StepCount  int                   `json:"stepCount"`
}

type VisualizationEdge struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Label  string `json:"label,omitempty"`
}

type VisualizationPath struct {
	ID           string   `json:"id"`
	CurrentNode  string   `json:"currentNode"`
	Status       PathStatus `json:"status"`
	VisitedNodes []string `json:"visitedNodes"`
}

// GetVisualizationState projects state into its renderer-facing view.
func GetVisualizationState(state ExecutionState) VisualizationState {
	nodes := make([]string, 0, len(state.MachineSnapshot.Nodes))
	for _, n := range state.MachineSnapshot.Nodes {
		nodes = append(nodes, n.Name)
	}

	edges := make([]VisualizationEdge, 0, len(state.MachineSnapshot.Edges))
	for _, e := range state.MachineSnapshot.Edges {
		edges = append(edges, VisualizationEdge{Source: e.Source, Target: e.Target, Label: e.Type})
	}

	paths := make([]VisualizationPath, 0, len(state.Paths))
	for _, p := range state.Paths {
		paths = append(paths, VisualizationPath{
			ID:           p.ID,
			CurrentNode:  p.CurrentNode,
			Status:       p.Status,
			VisitedNodes: append([]string(nil), p.VisitedNodes...),
		})
	}

	return VisualizationState{
		Title:     state.Title,
		Nodes:     nodes,
		Edges:     edges,
		Paths:     paths,
		StepCount: state.StepCount,
	}
}
