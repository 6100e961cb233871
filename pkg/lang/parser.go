package lang

import (
	"pjulia/pkg/automata"
)

// Parse lexes and parses one source file into its declaration list.
func Parse(fileName, contents string) ([]*Decl, error) {
	src := automata.NewSource(fileName, contents)

	stream, err := newTokenStream(src)
	if err != nil {
		return nil, err
	}

	g, t, reds := surfaceGrammar()
	pda := automata.NewPDA[any](g, t)

	next := func() (automata.Lookahead[any], error) {
		span, tok, err := stream.next()
		if err != nil {
			return automata.Lookahead[any]{}, err
		}
		if tok == nil {
			return automata.Lookahead[any]{Span: span, EOF: true}, nil
		}
		return automata.Lookahead[any]{Span: span, Term: termOf(*tok), Val: *tok}, nil
	}

	out, err := pda.Parse(next, func() (any, error) { return []*Decl{}, nil }, reds)
	if err != nil {
		return nil, err
	}
	return out.([]*Decl), nil
}
