package automata

// Producer turns the matched text of one pattern into a token value.
type Producer[U any] func(span Span, text string) (U, error)

// Item is one tokenizer output: either a token value or the end-of-input
// marker carrying the last emitted span.
type Item[U any] struct {
	Span Span
	EOF  bool
	Tok  U
}

// Tokenizer drives a compiled DFA over a source, producing the longest match
// at each step and breaking ties by pattern declaration order. Once the
// input is drained it keeps yielding the EOF item.
type Tokenizer[U any] struct {
	dfa       *DFA
	producers []Producer[U]
	src       *Source
	chars     []charLoc
	pos       int
	nextStart Loc
	lastSpan  Span
}

// NewTokenizer pairs a DFA with one producer per pattern, in the same order
// the patterns were declared.
func NewTokenizer[U any](dfa *DFA, producers []Producer[U], src *Source) *Tokenizer[U] {
	start := src.FirstLoc()
	return &Tokenizer[U]{
		dfa:       dfa,
		producers: producers,
		src:       src,
		chars:     src.scan(),
		nextStart: start,
		lastSpan:  src.Span(start, start),
	}
}

// Next emits the next token. The longest-match loop walks the DFA until no
// transition applies; if the state reached is accepting, the producer for
// its token id runs on the matched slice, otherwise the token is
// unrecognized.
func (t *Tokenizer[U]) Next() (Item[U], error) {
	if t.pos >= len(t.chars) {
		return Item[U]{Span: t.lastSpan, EOF: true}, nil
	}

	start := t.nextStart
	curr := t.nextStart
	state := 0

	for t.pos < len(t.chars) {
		c := t.chars[t.pos]
		next, ok := t.dfa.step(state, c.c)
		if !ok {
			t.nextStart = c.loc
			break
		}
		curr = c.loc
		t.pos++
		state = next
	}

	span := t.src.Span(start, curr)

	id := t.dfa.Rows[state].Accept
	if id < 0 {
		return Item[U]{}, Errorf(span, "Unrecognized token.")
	}

	t.lastSpan = span
	tok, err := t.producers[id](span, t.src.Slice(span))
	if err != nil {
		return Item[U]{}, &ReadError{Span: span, Msg: err.Error()}
	}
	return Item[U]{Span: span, Tok: tok}, nil
}
