package automata

import (
	"fmt"
	"strings"
)

// ActionKind tags one action-table entry.
type ActionKind int

const (
	ActionNone ActionKind = iota
	ActionShift
	ActionReduce
)

// Action is one entry of a state's action row.
type Action struct {
	Kind   ActionKind
	Target int // shift: state id; reduce: production id
}

// TableRow holds the action array (indexed by terminal) and the goto array
// (indexed by nonterminal, -1 for none) of one state.
type TableRow struct {
	Actions []Action
	Gotos   []int
}

// Table is the LR(1) machine table. Row 0 is the start state.
type Table struct {
	Rows []TableRow
}

type lrBuilder struct {
	g      *Grammar
	states []itemSet
	trans  []map[Symbol]int
}

// stateID finds the state represented by the given closed set, if built.
func (b *lrBuilder) stateID(set itemSet) (int, bool) {
	for id, s := range b.states {
		if s.equal(set) {
			return id, true
		}
	}
	return 0, false
}

// transitionsFrom computes goto(state, X) for every symbol X, allocating and
// recursing into states not seen before. Symbols are visited terminals
// first, then nonterminals, both in index order, so state numbering is a
// function of the grammar alone.
func (b *lrBuilder) transitionsFrom(id int) {
	nextSet := func(sym Symbol) {
		var moved itemSet
		for _, it := range b.states[id] {
			if next, ok := b.g.nextSymbol(it); ok && next == sym {
				moved = moved.insert(item{Prod: it.Prod, Pos: it.Pos + 1, Look: it.Look})
			}
		}
		if len(moved) == 0 {
			return
		}
		state := b.g.closure(moved)
		target, ok := b.stateID(state)
		if !ok {
			target = len(b.states)
			b.states = append(b.states, state)
			b.trans = append(b.trans, make(map[Symbol]int))
			b.transitionsFrom(target)
		}
		b.trans[id][sym] = target
	}

	for k := range b.g.Terms {
		nextSet(T(k))
	}
	for k := range b.g.NonTerms {
		nextSet(N(k))
	}
}

// signature renders a state's item set for conflict reports.
func (b *lrBuilder) signature(id int) string {
	var out strings.Builder
	for _, it := range b.states[id] {
		p := b.g.Prods[it.Prod]
		fmt.Fprintf(&out, "  %s ->", b.g.NonTerms[p.LHS])
		for k, sym := range p.RHS {
			if k == it.Pos {
				out.WriteString(" .")
			}
			if sym.NonTerm {
				out.WriteString(" " + b.g.NonTerms[sym.Index])
			} else {
				out.WriteString(" " + b.g.Terms[sym.Index])
			}
		}
		if it.Pos == len(p.RHS) {
			out.WriteString(" .")
		}
		fmt.Fprintf(&out, " [%s]\n", b.g.Terms[it.Look])
	}
	return out.String()
}

// BuildTable constructs the canonical LR(1) table. Any shift/reduce or
// reduce/reduce collision is fatal: the grammar is rejected with the
// offending state's item signature.
func (g *Grammar) BuildTable() (*Table, error) {
	b := &lrBuilder{g: g}
	start := g.closure(itemSet{{Prod: 0, Pos: 0, Look: 0}})
	b.states = append(b.states, start)
	b.trans = append(b.trans, make(map[Symbol]int))
	b.transitionsFrom(0)

	table := &Table{Rows: make([]TableRow, len(b.states))}
	for id := range b.states {
		row := TableRow{
			Actions: make([]Action, len(g.Terms)),
			Gotos:   make([]int, len(g.NonTerms)),
		}
		for k := range row.Gotos {
			row.Gotos[k] = -1
		}

		for k := range g.Terms {
			if t, ok := b.trans[id][T(k)]; ok {
				row.Actions[k] = Action{Kind: ActionShift, Target: t}
			}
		}
		for k := range g.NonTerms {
			if t, ok := b.trans[id][N(k)]; ok {
				row.Gotos[k] = t
			}
		}

		for _, it := range b.states[id] {
			if it.Pos != len(g.Prods[it.Prod].RHS) {
				continue
			}
			if row.Actions[it.Look].Kind != ActionNone {
				return nil, fmt.Errorf("automata: ambiguous grammar, conflict in state %d on %q:\n%s",
					id, g.Terms[it.Look], b.signature(id))
			}
			row.Actions[it.Look] = Action{Kind: ActionReduce, Target: it.Prod}
		}

		table.Rows[id] = row
	}

	return table, nil
}
