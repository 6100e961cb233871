package automata

import "fmt"

// Symbol is a terminal or nonterminal index. Terminal 0 is end-of-input;
// nonterminal 0 is the augmented start symbol.
type Symbol struct {
	NonTerm bool
	Index   int
}

func T(k int) Symbol { return Symbol{Index: k} }
func N(k int) Symbol { return Symbol{NonTerm: true, Index: k} }

func (s Symbol) less(t Symbol) bool {
	if s.NonTerm != t.NonTerm {
		return !s.NonTerm
	}
	return s.Index < t.Index
}

// Production is one grammar rule: lhs nonterminal index and the symbol
// sequence it expands to. Production 0 is always the synthetic
// S' -> start $.
type Production struct {
	LHS int
	RHS []Symbol
}

// NamedProd is a rule written with symbol names, before index resolution.
type NamedProd struct {
	LHS string
	RHS []string
}

// Grammar holds the resolved rule set. Terms and NonTerms both reserve
// index 0 ($ and the augmented start, respectively), so the name slices
// passed to NewGrammar start at index 1.
type Grammar struct {
	Terms    []string
	NonTerms []string
	Prods    []Production
}

// NewGrammar resolves named rules into the index-based representation and
// prepends the augmented start production. A right-hand-side name that is
// neither a declared terminal nor nonterminal is an error.
func NewGrammar(terms, nterms []string, prods []NamedProd, start string) (*Grammar, error) {
	termIndex := make(map[string]int, len(terms))
	for i, name := range terms {
		termIndex[name] = i + 1
	}
	ntermIndex := make(map[string]int, len(nterms))
	for i, name := range nterms {
		ntermIndex[name] = i + 1
	}

	startID, ok := ntermIndex[start]
	if !ok {
		return nil, fmt.Errorf("automata: can't find the non-terminal %q", start)
	}

	g := &Grammar{
		Terms:    append([]string{"$"}, terms...),
		NonTerms: append([]string{"S'"}, nterms...),
		Prods:    make([]Production, 0, len(prods)+1),
	}
	g.Prods = append(g.Prods, Production{LHS: 0, RHS: []Symbol{N(startID), T(0)}})

	for _, p := range prods {
		lhs, ok := ntermIndex[p.LHS]
		if !ok {
			return nil, fmt.Errorf("automata: can't find the non-terminal %q", p.LHS)
		}
		rhs := make([]Symbol, 0, len(p.RHS))
		for _, name := range p.RHS {
			if k, ok := termIndex[name]; ok {
				rhs = append(rhs, T(k))
			} else if k, ok := ntermIndex[name]; ok {
				rhs = append(rhs, N(k))
			} else {
				return nil, fmt.Errorf("automata: unknown symbol %q in production for %q", name, p.LHS)
			}
		}
		g.Prods = append(g.Prods, Production{LHS: lhs, RHS: rhs})
	}

	return g, nil
}

// firstOf collects the terminals that can begin a derivation of sym. The
// grammar has no epsilon productions, so the recursion only ever looks at
// the first symbol of each rule; the visited set terminates left recursion.
func (g *Grammar) firstOf(sym Symbol) []int {
	found := make(map[int]bool)
	visited := make(map[int]bool)

	var visit func(s Symbol)
	visit = func(s Symbol) {
		if !s.NonTerm {
			found[s.Index] = true
			return
		}
		if visited[s.Index] {
			return
		}
		visited[s.Index] = true
		for _, p := range g.Prods {
			if p.LHS == s.Index && len(p.RHS) != 0 {
				visit(p.RHS[0])
			}
		}
	}
	visit(sym)

	out := make([]int, 0, len(found))
	for k := range found {
		out = append(out, k)
	}
	sortInts(out)
	return out
}

func sortInts(v []int) {
	for i := 1; i < len(v); i++ {
		for j := i; j > 0 && v[j] < v[j-1]; j-- {
			v[j], v[j-1] = v[j-1], v[j]
		}
	}
}
