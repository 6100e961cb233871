package automata

import (
	"fmt"
	"strings"
)

// Row is one DFA state: a transition map keyed by character class and the
// accepted token id, or -1 when the state is not accepting. Classes appear
// in the map at most once; resolving a runtime character against the map is
// the driver's job (see step).
type Row struct {
	Trans  map[Character]int
	Accept int
}

// DFA is the compiled automaton. State 0 is the start state.
type DFA struct {
	Rows []Row
}

// stateKey renders a position set into a comparable identity.
func stateKey(s posSet) string {
	var b strings.Builder
	for _, p := range s {
		if p.mark {
			fmt.Fprintf(&b, "#%d;", p.token)
		} else {
			fmt.Fprintf(&b, "%d:%d,%d;", p.class.Kind, p.class.Ch, p.id)
		}
	}
	return b.String()
}

// nextState computes the state reached from s on class c: the union of
// follow(p) over every position of s whose class subsumes c.
func nextState(exp iregex, s posSet, c Character) posSet {
	var out posSet
	for _, p := range s {
		if p.mark {
			continue
		}
		if p.class.Subsumes(c) {
			out = out.union(follow(p, exp))
		}
	}
	return out
}

type dfaBuilder struct {
	exp    iregex
	ids    map[string]int
	states []posSet
	rows   []Row
}

func (b *dfaBuilder) visit(s posSet) int {
	key := stateKey(s)
	if id, ok := b.ids[key]; ok {
		return id
	}

	id := len(b.states)
	b.ids[key] = id
	b.states = append(b.states, s)
	b.rows = append(b.rows, Row{Trans: make(map[Character]int), Accept: -1})

	// Collect the outgoing class symbols and the accept marker. The
	// positions are sorted with markers last, so the first marker seen
	// carries the smallest declared token id.
	accept := -1
	var classes []Character
	for _, p := range s {
		if p.mark {
			if accept < 0 {
				accept = p.token
			}
			continue
		}
		dup := false
		for _, c := range classes {
			if c == p.class {
				dup = true
				break
			}
		}
		if !dup {
			classes = append(classes, p.class)
		}
	}
	b.rows[id].Accept = accept

	for _, c := range classes {
		t := nextState(b.exp, s, c)
		target := b.visit(t)
		b.rows[id].Trans[c] = target
	}

	return id
}

// BuildDFA compiles a prioritised pattern list into a single automaton.
// Pattern k accepts with token id k; when several patterns accept the same
// state, the smallest id wins.
func BuildDFA(patterns []Regex) (*DFA, error) {
	if len(patterns) == 0 {
		return nil, fmt.Errorf("automata: expected at least one pattern")
	}

	exp := indexRegexes(patterns)
	b := &dfaBuilder{exp: exp, ids: make(map[string]int)}
	b.visit(first(exp))

	return &DFA{Rows: b.rows}, nil
}

// step resolves one input character from state q using the fixed fallback
// cascade: the exact character first, then Alpha or Num when applicable,
// then Behaved, finally Any. Returns the target state and whether a
// transition exists.
func (d *DFA) step(q int, c rune) (int, bool) {
	row := d.Rows[q]
	if t, ok := row.Trans[Ch(c)]; ok {
		return t, true
	}
	if isAlpha(c) {
		if t, ok := row.Trans[alphaClass()]; ok {
			return t, true
		}
	}
	if isNum(c) {
		if t, ok := row.Trans[numClass()]; ok {
			return t, true
		}
	}
	if IsBehaved(c) {
		if t, ok := row.Trans[behavedClass()]; ok {
			return t, true
		}
	}
	t, ok := row.Trans[anyClass()]
	return t, ok
}
