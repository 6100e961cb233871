package automata

import "sort"

// item is an LR(1) item: a production, the bullet position inside its
// right-hand side, and one lookahead terminal. The root item (0, 0, 0) has
// the bullet at the start of the augmented production with $ lookahead.
type item struct {
	Prod int
	Pos  int
	Look int
}

func (i item) less(j item) bool {
	if i.Prod != j.Prod {
		return i.Prod < j.Prod
	}
	if i.Pos != j.Pos {
		return i.Pos < j.Pos
	}
	return i.Look < j.Look
}

// itemSet is kept sorted and duplicate-free so that state identity is
// structural equality.
type itemSet []item

func (s itemSet) contains(i item) bool {
	k := sort.Search(len(s), func(k int) bool { return !s[k].less(i) })
	return k < len(s) && s[k] == i
}

func (s itemSet) insert(i item) itemSet {
	k := sort.Search(len(s), func(k int) bool { return !s[k].less(i) })
	if k < len(s) && s[k] == i {
		return s
	}
	s = append(s, item{})
	copy(s[k+1:], s[k:])
	s[k] = i
	return s
}

func (s itemSet) equal(t itemSet) bool {
	if len(s) != len(t) {
		return false
	}
	for i := range s {
		if s[i] != t[i] {
			return false
		}
	}
	return true
}

// nextSymbol returns the symbol immediately after the bullet, if any.
func (g *Grammar) nextSymbol(i item) (Symbol, bool) {
	rhs := g.Prods[i.Prod].RHS
	if i.Pos < len(rhs) {
		return rhs[i.Pos], true
	}
	return Symbol{}, false
}

// neighborItems expands one closure step: for an item with a nonterminal
// after the bullet, every production of that nonterminal contributes fresh
// items whose lookaheads come from FIRST of what follows the nonterminal
// (or the current lookahead when nothing follows).
func (g *Grammar) neighborItems(i item, ruleID int) []item {
	rhs := g.Prods[i.Prod].RHS
	if i.Pos+1 < len(rhs) {
		firsts := g.firstOf(rhs[i.Pos+1])
		out := make([]item, 0, len(firsts))
		for _, t := range firsts {
			out = append(out, item{Prod: ruleID, Pos: 0, Look: t})
		}
		return out
	}
	return []item{{Prod: ruleID, Pos: 0, Look: i.Look}}
}

// closure saturates the set under the neighbor relation.
func (g *Grammar) closure(set itemSet) itemSet {
	for {
		grew := false
		for _, it := range set {
			sym, ok := g.nextSymbol(it)
			if !ok || !sym.NonTerm {
				continue
			}
			for ruleID, p := range g.Prods {
				if p.LHS != sym.Index {
					continue
				}
				for _, n := range g.neighborItems(it, ruleID) {
					if !set.contains(n) {
						set = set.insert(n)
						grew = true
					}
				}
			}
		}
		if !grew {
			return set
		}
	}
}
