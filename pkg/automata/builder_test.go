package automata

import (
	"reflect"
	"strings"
	"testing"
)

// S -> A A ; A -> a A | b, the classic LR(1) exercise grammar.
func exerciseGrammar(t *testing.T) *Grammar {
	t.Helper()
	g, err := NewGrammar(
		[]string{"a", "b"},
		[]string{"S", "A"},
		[]NamedProd{
			{LHS: "S", RHS: []string{"A", "A"}},
			{LHS: "A", RHS: []string{"a", "A"}},
			{LHS: "A", RHS: []string{"b"}},
		},
		"S",
	)
	if err != nil {
		t.Fatalf("NewGrammar: %v", err)
	}
	return g
}

func TestNewGrammarUnknownSymbol(t *testing.T) {
	_, err := NewGrammar(
		[]string{"a"},
		[]string{"S"},
		[]NamedProd{{LHS: "S", RHS: []string{"c"}}},
		"S",
	)
	if err == nil {
		t.Fatal("expected an error for an unknown symbol")
	}
}

func TestBuildTableDeterminism(t *testing.T) {
	g := exerciseGrammar(t)
	a, err := g.BuildTable()
	if err != nil {
		t.Fatalf("BuildTable: %v", err)
	}
	b, err := g.BuildTable()
	if err != nil {
		t.Fatalf("BuildTable: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Fatal("two builds of the same grammar differ")
	}
	// End-of-input always has a defined action or a reachable goto path;
	// spot-check the start state: no reduce/shift on $ from state 0.
	if a.Rows[0].Actions[0].Kind != ActionNone {
		t.Fatal("state 0 should have no action on $")
	}
}

func TestBuildTableAmbiguous(t *testing.T) {
	// E -> E + E | id is the canonical shift/reduce conflict.
	g, err := NewGrammar(
		[]string{"plus", "id"},
		[]string{"E"},
		[]NamedProd{
			{LHS: "E", RHS: []string{"E", "plus", "E"}},
			{LHS: "E", RHS: []string{"id"}},
		},
		"E",
	)
	if err != nil {
		t.Fatalf("NewGrammar: %v", err)
	}
	_, err = g.BuildTable()
	if err == nil {
		t.Fatal("expected an ambiguous-grammar error")
	}
	if !strings.Contains(err.Error(), "ambiguous") {
		t.Fatalf("unexpected error: %v", err)
	}
}

// tinyStream feeds a fixed terminal sequence to the PDA.
func tinyStream(terms []int) func() (Lookahead[string], error) {
	i := 0
	return func() (Lookahead[string], error) {
		if i >= len(terms) {
			return Lookahead[string]{EOF: true}, nil
		}
		term := terms[i]
		i++
		return Lookahead[string]{Term: term, Val: ""}, nil
	}
}

func exerciseReducers(trace *[]string) []Reducer[string] {
	record := func(name string, out string) Reducer[string] {
		return func(span Span, parts []string) (string, error) {
			*trace = append(*trace, name)
			return out, nil
		}
	}
	return []Reducer[string]{
		nil, // augmented production
		record("S->AA", "S"),
		record("A->aA", "A"),
		record("A->b", "A"),
	}
}

func TestPDAParse(t *testing.T) {
	g := exerciseGrammar(t)
	table, err := g.BuildTable()
	if err != nil {
		t.Fatalf("BuildTable: %v", err)
	}
	pda := NewPDA[string](g, table)

	var trace []string
	// "abab" = a b a b, terminals a=1 b=2.
	out, err := pda.Parse(tinyStream([]int{1, 2, 1, 2}),
		func() (string, error) { return "", nil },
		exerciseReducers(&trace))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if out != "S" {
		t.Fatalf("expected payload S, got %q", out)
	}
	want := []string{"A->b", "A->aA", "A->b", "A->aA", "S->AA"}
	if !reflect.DeepEqual(trace, want) {
		t.Fatalf("reduction trace %v, want %v", trace, want)
	}
}

func TestPDAUnexpectedToken(t *testing.T) {
	g := exerciseGrammar(t)
	table, err := g.BuildTable()
	if err != nil {
		t.Fatalf("BuildTable: %v", err)
	}
	pda := NewPDA[string](g, table)

	var trace []string
	// "aba" fails at end of input.
	_, err = pda.Parse(tinyStream([]int{1, 2, 1}),
		func() (string, error) { return "", nil },
		exerciseReducers(&trace))
	if err == nil {
		t.Fatal("expected an unexpected-token error")
	}
	if !strings.Contains(err.Error(), "Unexpected token") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPDAEmptyInput(t *testing.T) {
	g := exerciseGrammar(t)
	table, err := g.BuildTable()
	if err != nil {
		t.Fatalf("BuildTable: %v", err)
	}
	pda := NewPDA[string](g, table)

	out, err := pda.Parse(tinyStream(nil),
		func() (string, error) { return "default", nil },
		exerciseReducers(new([]string)))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if out != "default" {
		t.Fatalf("expected the on-empty payload, got %q", out)
	}
}
