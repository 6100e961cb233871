// Package automata provides the two engines the rest of the toolchain is
// built on: a DFA tokenizer compiled from regular expressions over ASCII
// character classes, and a canonical LR(1) shift/reduce parser driven by a
// table built from a context-free grammar.
package automata

// CharKind orders the character classes from most to least specific. The
// order is load-bearing: it is the iteration order of transition maps during
// DFA construction and the probe order of the driver's fallback cascade.
type CharKind int

const (
	KindChar CharKind = iota // one specific ASCII character
	KindAlpha
	KindNum
	KindBehaved
	KindAny
)

// Character is a leaf of a regular expression: either one concrete character
// or one of the four classes. Classes form a lattice under subsumption
// rather than an equality relation; see Subsumes.
type Character struct {
	Kind CharKind
	Ch   rune // only meaningful when Kind == KindChar
}

func Ch(r rune) Character     { return Character{Kind: KindChar, Ch: r} }
func alphaClass() Character   { return Character{Kind: KindAlpha} }
func numClass() Character     { return Character{Kind: KindNum} }
func behavedClass() Character { return Character{Kind: KindBehaved} }
func anyClass() Character     { return Character{Kind: KindAny} }

// IsBehaved reports whether c may appear raw inside a string literal.
func IsBehaved(c rune) bool {
	return c != '\\' && c != '"' && c != '\n'
}

func isAlpha(c rune) bool { return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }
func isNum(c rune) bool   { return c >= '0' && c <= '9' }

// Subsumes reports whether a position holding class c participates in a
// transition taken on class on. A concrete character only ever follows its
// own transition; classes follow themselves, Behaved covers Alpha and Num,
// and Any covers everything. The driver is responsible for mapping a runtime
// character to the most specific class present in a row.
func (c Character) Subsumes(on Character) bool {
	switch {
	case on.Kind == KindChar && c.Kind == KindChar:
		return on.Ch == c.Ch
	case on.Kind == KindChar && c.Kind == KindAlpha:
		return isAlpha(on.Ch)
	case on.Kind == KindChar && c.Kind == KindNum:
		return isNum(on.Ch)
	case on.Kind == KindChar && c.Kind == KindBehaved:
		return IsBehaved(on.Ch)
	case c.Kind == KindAny:
		return true
	case on.Kind == KindAlpha && c.Kind == KindAlpha:
		return true
	case on.Kind == KindNum && c.Kind == KindNum:
		return true
	case on.Kind == KindAlpha && c.Kind == KindBehaved:
		return true
	case on.Kind == KindNum && c.Kind == KindBehaved:
		return true
	case on.Kind == KindBehaved && c.Kind == KindBehaved:
		return true
	}
	return false
}

// less is the total order used to keep states and transition maps canonical.
func (c Character) less(d Character) bool {
	if c.Kind != d.Kind {
		return c.Kind < d.Kind
	}
	return c.Ch < d.Ch
}

func (c Character) String() string {
	switch c.Kind {
	case KindChar:
		return "'" + string(c.Ch) + "'"
	case KindAlpha:
		return "alpha"
	case KindNum:
		return "num"
	case KindBehaved:
		return "behaved"
	default:
		return "_"
	}
}
