// Package typing implements the static pass over the surface AST: the
// global environment, bottom-up expression typing with field-access
// narrowing, multi-method ambiguity detection, scope resolution and return
// verification. The AST is mutated in place (type slots and scopes); after
// the pass it is read-only for the lowering stages.
package typing

import "pjulia/pkg/lang"

// CollectAssigned performs a syntactic DFS for assignment targets. Bare-name
// targets are collected; field-assignment targets are not. The walk is
// pruned at for/while bodies (their assignments stay local to the loop) but
// not at if branches.
func CollectAssigned(e *lang.Exp) []string {
	switch v := e.Val.(type) {
	case lang.ReturnExp:
		if v.E != nil {
			return CollectAssigned(v.E)
		}
		return nil
	case lang.AssignExp:
		out := CollectAssigned(v.E)
		if v.LV.In == nil {
			out = append(out, v.LV.Name)
		}
		return out
	case lang.BinExp:
		return append(CollectAssigned(v.L), CollectAssigned(v.R)...)
	case lang.UnaryExp:
		return CollectAssigned(v.E)
	case lang.CallExp:
		return CollectAssignedExps(v.Args)
	case lang.BlockExp:
		return CollectAssignedExps(v.B.Exps)
	case lang.LMulExp:
		return CollectAssignedExps(v.B.Exps)
	case lang.RMulExp:
		return CollectAssigned(v.E)
	case lang.IfExp:
		out := CollectAssigned(v.Cond)
		out = append(out, CollectAssignedExps(v.Then.Exps)...)
		return append(out, collectElse(v.Else)...)
	case lang.LValueExp:
		if v.LV.In != nil {
			return CollectAssigned(v.LV.In)
		}
		return nil
	default:
		// For and While keep their assignments local; literals have none.
		return nil
	}
}

// CollectAssignedExps collects over an expression sequence.
func CollectAssignedExps(exps []*lang.Exp) []string {
	var out []string
	for _, e := range exps {
		out = append(out, CollectAssigned(e)...)
	}
	return out
}

func collectElse(e *lang.Else) []string {
	switch v := e.Val.(type) {
	case lang.ElseBlock:
		return CollectAssignedExps(v.B.Exps)
	case lang.ElseIf:
		out := CollectAssigned(v.Cond)
		out = append(out, CollectAssignedExps(v.Then.Exps)...)
		return append(out, collectElse(v.Else)...)
	default:
		return nil
	}
}
