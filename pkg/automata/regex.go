package automata

// Regex is the surface regular-expression tree handed to BuildDFA. Leaves
// are character classes; the only operators are union, concatenation and
// Kleene star.
type Regex interface {
	regexNode()
}

type Epsilon struct{}

type Char struct {
	C Character
}

type Union struct {
	L, R Regex
}

type Concat struct {
	L, R Regex
}

type Star struct {
	E Regex
}

func (Epsilon) regexNode() {}
func (Char) regexNode()    {}
func (Union) regexNode()   {}
func (Concat) regexNode()  {}
func (Star) regexNode()    {}

// Convenience constructors. Lexer specifications read much better as
// Cat(Lit('#'), Rep(Behaved()), Lit('\n')) than as nested struct literals.

func Lit(r rune) Regex  { return Char{C: Ch(r)} }
func Alpha() Regex      { return Char{C: alphaClass()} }
func Num() Regex        { return Char{C: numClass()} }
func Behaved() Regex    { return Char{C: behavedClass()} }
func AnyChar() Regex    { return Char{C: anyClass()} }
func Rep(r Regex) Regex { return Star{E: r} }

// Cat concatenates left to right. Cat() is epsilon.
func Cat(rs ...Regex) Regex {
	if len(rs) == 0 {
		return Epsilon{}
	}
	out := rs[0]
	for _, r := range rs[1:] {
		out = Concat{L: out, R: r}
	}
	return out
}

// Alt is the n-ary union, associated to the left like Cat.
func Alt(rs ...Regex) Regex {
	if len(rs) == 0 {
		return Epsilon{}
	}
	out := rs[0]
	for _, r := range rs[1:] {
		out = Union{L: out, R: r}
	}
	return out
}

// Text matches the literal string s character by character.
func Text(s string) Regex {
	parts := make([]Regex, 0, len(s))
	for _, r := range s {
		parts = append(parts, Lit(r))
	}
	return Cat(parts...)
}

// position is one occurrence of a character class in the indexed regex, or a
// terminal marker tagging an accepting position with its token id.
type position struct {
	mark  bool
	class Character // when !mark
	id    int       // unique occurrence id, when !mark
	token int       // token id, when mark
}

// less orders character positions before markers; character positions by
// (class, id), markers by token id.
func (p position) less(q position) bool {
	if p.mark != q.mark {
		return !p.mark
	}
	if p.mark {
		return p.token < q.token
	}
	if p.class != q.class {
		return p.class.less(q.class)
	}
	return p.id < q.id
}

// iregex mirrors Regex with every leaf replaced by its position.
type iregex interface {
	iregexNode()
}

type iEpsilon struct{}

type iChar struct {
	p position
}

type iUnion struct {
	l, r iregex
}

type iConcat struct {
	l, r iregex
}

type iStar struct {
	e iregex
}

func (iEpsilon) iregexNode() {}
func (iChar) iregexNode()    {}
func (iUnion) iregexNode()   {}
func (iConcat) iregexNode()  {}
func (iStar) iregexNode()    {}

// indexRegexes numbers every leaf of every pattern with one monotonic
// counter, appends a #k marker to pattern k, and unions the results.
func indexRegexes(patterns []Regex) iregex {
	next := 0

	var visit func(r Regex) iregex
	visit = func(r Regex) iregex {
		switch r := r.(type) {
		case Epsilon:
			return iEpsilon{}
		case Char:
			e := iChar{p: position{class: r.C, id: next}}
			next++
			return e
		case Union:
			return iUnion{l: visit(r.L), r: visit(r.R)}
		case Concat:
			return iConcat{l: visit(r.L), r: visit(r.R)}
		case Star:
			return iStar{e: visit(r.E)}
		default:
			panic("automata: unknown regex node")
		}
	}

	transform := func(r Regex, token int) iregex {
		return iConcat{l: visit(r), r: iChar{p: position{mark: true, token: token}}}
	}

	out := transform(patterns[0], 0)
	for i, r := range patterns[1:] {
		out = iUnion{l: out, r: transform(r, i+1)}
	}
	return out
}
