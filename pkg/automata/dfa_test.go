package automata

import (
	"testing"
)

// (a|b)*abb over {a,b}: the textbook position automaton has exactly four
// reachable states.
func abbPattern() Regex {
	return Cat(Rep(Alt(Lit('a'), Lit('b'))), Lit('a'), Lit('b'), Lit('b'))
}

func TestBuildDFAStateCount(t *testing.T) {
	dfa, err := BuildDFA([]Regex{abbPattern()})
	if err != nil {
		t.Fatalf("BuildDFA: %v", err)
	}
	if got := len(dfa.Rows); got != 4 {
		t.Fatalf("expected 4 states, got %d", got)
	}
}

func TestBuildDFAEmpty(t *testing.T) {
	if _, err := BuildDFA(nil); err == nil {
		t.Fatal("expected an error for an empty pattern list")
	}
}

func TestBuildDFADeterminism(t *testing.T) {
	patterns := []Regex{
		Cat(Alt(Alpha(), Lit('_')), Rep(Alt(Alpha(), Lit('_'), Num()))),
		Cat(Num(), Rep(Num())),
		abbPattern(),
	}
	a, err := BuildDFA(patterns)
	if err != nil {
		t.Fatalf("BuildDFA: %v", err)
	}
	b, err := BuildDFA(patterns)
	if err != nil {
		t.Fatalf("BuildDFA: %v", err)
	}
	if len(a.Rows) != len(b.Rows) {
		t.Fatalf("state counts differ: %d vs %d", len(a.Rows), len(b.Rows))
	}
	for i := range a.Rows {
		if a.Rows[i].Accept != b.Rows[i].Accept {
			t.Fatalf("state %d: accept differs", i)
		}
		if len(a.Rows[i].Trans) != len(b.Rows[i].Trans) {
			t.Fatalf("state %d: transition maps differ", i)
		}
		for c, target := range a.Rows[i].Trans {
			if b.Rows[i].Trans[c] != target {
				t.Fatalf("state %d: transition on %s differs", i, c)
			}
		}
	}
}

func TestTokenizerAccepts(t *testing.T) {
	dfa, err := BuildDFA([]Regex{abbPattern()})
	if err != nil {
		t.Fatalf("BuildDFA: %v", err)
	}
	src := NewSource("test", "aabb")
	producers := []Producer[int]{
		func(span Span, text string) (int, error) { return 0, nil },
	}
	tok := NewTokenizer(dfa, producers, src)

	item, err := tok.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if item.EOF || item.Tok != 0 {
		t.Fatalf("expected token 0, got %+v", item)
	}

	item, err = tok.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if !item.EOF {
		t.Fatalf("expected EOF, got %+v", item)
	}
}

func TestTokenizerLongestMatch(t *testing.T) {
	// "=" and "==": the driver must prefer the two-character match.
	dfa, err := BuildDFA([]Regex{Lit('='), Text("==")})
	if err != nil {
		t.Fatalf("BuildDFA: %v", err)
	}
	src := NewSource("test", "===")
	var seen []string
	producers := []Producer[string]{
		func(span Span, text string) (string, error) { return text, nil },
		func(span Span, text string) (string, error) { return text, nil },
	}
	tok := NewTokenizer(dfa, producers, src)
	for {
		item, err := tok.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if item.EOF {
			break
		}
		seen = append(seen, item.Tok)
	}
	if len(seen) != 2 || seen[0] != "==" || seen[1] != "=" {
		t.Fatalf("expected [== =], got %v", seen)
	}
}

func TestTokenizerPriority(t *testing.T) {
	// Both patterns match "if"; the first declared wins.
	dfa, err := BuildDFA([]Regex{
		Text("if"),
		Cat(Alpha(), Rep(Alpha())),
	})
	if err != nil {
		t.Fatalf("BuildDFA: %v", err)
	}
	src := NewSource("test", "if")
	producers := []Producer[int]{
		func(span Span, text string) (int, error) { return 0, nil },
		func(span Span, text string) (int, error) { return 1, nil },
	}
	tok := NewTokenizer(dfa, producers, src)
	item, err := tok.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if item.Tok != 0 {
		t.Fatalf("expected the keyword pattern to win, got token %d", item.Tok)
	}
}

func TestTokenizerFallbackCascade(t *testing.T) {
	// An identifier pattern built from classes plus a concrete 'x' pattern:
	// 'x' must take the concrete transition, 'y' the Alpha one.
	dfa, err := BuildDFA([]Regex{
		Lit('x'),
		Cat(Alpha(), Rep(Alpha())),
	})
	if err != nil {
		t.Fatalf("BuildDFA: %v", err)
	}
	tests := []struct {
		input string
		want  int
	}{
		{"x", 0},
		{"y", 1},
		{"xy", 1}, // longest match beats the one-character pattern
	}
	for _, tt := range tests {
		src := NewSource("test", tt.input)
		producers := []Producer[int]{
			func(span Span, text string) (int, error) { return 0, nil },
			func(span Span, text string) (int, error) { return 1, nil },
		}
		tok := NewTokenizer(dfa, producers, src)
		item, err := tok.Next()
		if err != nil {
			t.Fatalf("%q: Next: %v", tt.input, err)
		}
		if item.Tok != tt.want {
			t.Fatalf("%q: expected token %d, got %d", tt.input, tt.want, item.Tok)
		}
	}
}

func TestTokenizerUnrecognized(t *testing.T) {
	dfa, err := BuildDFA([]Regex{Cat(Num(), Rep(Num()))})
	if err != nil {
		t.Fatalf("BuildDFA: %v", err)
	}
	src := NewSource("test", "12a")
	producers := []Producer[int]{
		func(span Span, text string) (int, error) { return 0, nil },
	}
	tok := NewTokenizer(dfa, producers, src)

	if _, err := tok.Next(); err != nil {
		t.Fatalf("Next: %v", err)
	}
	if _, err := tok.Next(); err == nil {
		t.Fatal("expected an unrecognized-token error")
	}
}

func TestTokenizerLocations(t *testing.T) {
	dfa, err := BuildDFA([]Regex{
		Cat(Alpha(), Rep(Alpha())),
		Lit('\n'),
	})
	if err != nil {
		t.Fatalf("BuildDFA: %v", err)
	}
	src := NewSource("test", "ab\ncd")
	producers := []Producer[string]{
		func(span Span, text string) (string, error) { return text, nil },
		func(span Span, text string) (string, error) { return "", nil },
	}
	tok := NewTokenizer(dfa, producers, src)

	item, _ := tok.Next()
	if item.Span.Start.Line != 1 || item.Span.Start.Col != 1 {
		t.Fatalf("first token span: %v", item.Span)
	}
	tok.Next() // newline
	item, _ = tok.Next()
	if item.Tok != "cd" || item.Span.Start.Line != 2 || item.Span.Start.Col != 1 {
		t.Fatalf("second identifier: %q at %v", item.Tok, item.Span)
	}
}
