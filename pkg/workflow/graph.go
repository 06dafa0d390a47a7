package workflow

// Graph is a validated workflow DAG. Its topology is immutable; node status
// fields are mutated by the scheduler under the owning run's lock, so a Graph
// is not safe for concurrent use on its own.
type Graph struct {
	id    string
	nodes []*TaskNode // registration order
	index map[string]int

	deps       [][]int // node index -> dependency indices
	dependents [][]int // node index -> dependent indices
	order      []int   // topological order, ties broken by registration order
}

// NewGraph validates specs and builds a Graph. All nodes start pending.
//
// Validation rejects:
//   - an empty workflow id, empty node ids or nil payloads
//   - duplicate node ids
//   - dependencies on unknown node ids
//   - any cycle, including a node depending on itself
//
// Duplicate entries within one node's dependency list collapse into one.
func NewGraph(id string, specs []NodeSpec) (*Graph, error) {
	if id == "" {
		return nil, invalidf("", "", "workflow id is required")
	}

	g := &Graph{
		id:    id,
		nodes: make([]*TaskNode, 0, len(specs)),
		index: make(map[string]int, len(specs)),
	}

	for _, spec := range specs {
		if spec.ID == "" {
			return nil, invalidf(id, "", "node id is required")
		}
		if _, exists := g.index[spec.ID]; exists {
			return nil, invalidf(id, spec.ID, "duplicate node id %q", spec.ID)
		}
		if spec.Payload == nil {
			return nil, invalidf(id, spec.ID, "node %q has no payload", spec.ID)
		}
		g.index[spec.ID] = len(g.nodes)
		g.nodes = append(g.nodes, &TaskNode{
			ID:      spec.ID,
			Payload: spec.Payload,
			Status:  StatusPending,
		})
	}

	g.deps = make([][]int, len(g.nodes))
	g.dependents = make([][]int, len(g.nodes))
	for i, spec := range specs {
		seen := make(map[string]struct{}, len(spec.Dependencies))
		for _, dep := range spec.Dependencies {
			if _, dup := seen[dep]; dup {
				continue
			}
			seen[dep] = struct{}{}

			j, ok := g.index[dep]
			if !ok {
				return nil, invalidf(id, spec.ID, "node %q depends on unknown node %q", spec.ID, dep)
			}
			g.nodes[i].Dependencies = append(g.nodes[i].Dependencies, dep)
			g.deps[i] = append(g.deps[i], j)
			g.dependents[j] = append(g.dependents[j], i)
		}
	}

	if err := g.validateAcyclic(); err != nil {
		return nil, err
	}
	return g, nil
}

// ID returns the workflow id.
func (g *Graph) ID() string { return g.id }

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.nodes) }

// TopologicalOrder returns node ids such that every node follows its dependencies.
func (g *Graph) TopologicalOrder() []string {
	ids := make([]string, 0, len(g.order))
	for _, i := range g.order {
		ids = append(ids, g.nodes[i].ID)
	}
	return ids
}

// validateAcyclic runs Kahn's algorithm and, if some nodes are never freed,
// extracts one cycle for the error.
func (g *Graph) validateAcyclic() error {
	indeg := make([]int, len(g.nodes))
	for i := range g.nodes {
		indeg[i] = len(g.deps[i])
	}

	queue := make([]int, 0, len(g.nodes))
	for i, d := range indeg {
		if d == 0 {
			queue = append(queue, i)
		}
	}

	order := make([]int, 0, len(g.nodes))
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		order = append(order, n)
		for _, m := range g.dependents[n] {
			indeg[m]--
			if indeg[m] == 0 {
				queue = append(queue, m)
			}
		}
	}

	if len(order) == len(g.nodes) {
		g.order = order
		return nil
	}

	cycle := g.findCycle()
	err := invalidf(g.id, "", "dependency cycle detected")
	err.Cycle = cycle
	if len(cycle) > 0 {
		err.NodeID = cycle[0]
	}
	return err
}

// findCycle walks dependency edges depth-first in registration order and
// returns the first cycle found as ids, e.g. [a b c a] for a -> b -> c -> a
// where "->" reads "depends on".
func (g *Graph) findCycle() []string {
	const (
		white = iota
		gray
		black
	)

	color := make([]int, len(g.nodes))
	stack := make([]int, 0, len(g.nodes))
	var cycle []int

	var visit func(u int) bool
	visit = func(u int) bool {
		color[u] = gray
		stack = append(stack, u)
		for _, v := range g.deps[u] {
			switch color[v] {
			case white:
				if visit(v) {
					return true
				}
			case gray:
				for k := len(stack) - 1; k >= 0; k-- {
					if stack[k] == v {
						cycle = append(append(cycle, stack[k:]...), v)
						return true
					}
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[u] = black
		return false
	}

	for i := range g.nodes {
		if color[i] == white && visit(i) {
			break
		}
	}

	ids := make([]string, 0, len(cycle))
	for _, i := range cycle {
		ids = append(ids, g.nodes[i].ID)
	}
	return ids
}
