package netlist

import "fmt"

type visitState int

const (
	notVisited visitState = iota
	inProgress
	visited
)

// Sort orders the combinational definitions so that every wire is computed
// after its dependencies. A combinational cycle is fatal; registers and
// memories break cycles because they carry no same-tick dependencies.
func Sort(g *Graph) (*OpsList, error) {
	states := make([]visitState, len(g.edges))
	sorted := make([]SortedOp, 0, len(g.edges))

	var visit func(id int) error
	visit = func(id int) error {
		switch states[id] {
		case visited:
			return nil
		case inProgress:
			return fmt.Errorf("netlist: circular dependency through variable %q", g.edges[id].name)
		}
		states[id] = inProgress
		for _, dep := range g.edges[id].deps {
			if err := visit(dep); err != nil {
				return err
			}
		}
		states[id] = visited
		sorted = append(sorted, SortedOp{Address: g.edges[id].address, Def: g.edges[id].def})
		return nil
	}

	for id := range g.edges {
		if err := visit(id); err != nil {
			return nil, err
		}
	}

	return &OpsList{
		MemSize: g.MemSize,
		Inputs:  g.Inputs,
		Outputs: g.Outputs,
		Mems:    g.Mems,
		Ops:     sorted,
		MemOps:  g.MemOps,
	}, nil
}
