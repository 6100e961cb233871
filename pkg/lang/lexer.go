package lang

import (
	"fmt"
	"strconv"
	"strings"

	"pjulia/pkg/automata"
)

// preToken is what the DFA producers emit: discarded whitespace, a newline
// (a semicolon candidate), or a real token.
type preToken struct {
	kind preKind
	tok  Token
}

type preKind int

const (
	preNone preKind = iota
	preNewline
	preTokenReal
)

func parseInt64(text string) (int64, error) {
	v, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("This number does not fit in 64 bits.")
	}
	return v, nil
}

// identOrKeyword classifies an identifier-shaped lexeme.
func identOrKeyword(text string) Token {
	if kw, ok := keywords[text]; ok {
		return Token{Kind: kw}
	}
	return Token{Kind: TkIdent, Str: text}
}

// expectIdent rejects keywords where only a plain identifier is legal (the
// name halves of the juxtaposition tokens).
func expectIdent(text string) (string, error) {
	if _, ok := keywords[text]; ok {
		return "", fmt.Errorf("Expected an identifier, found a keyword.")
	}
	return text, nil
}

// unescape decodes a string literal body, quotes included.
func unescape(text string) (string, error) {
	var out strings.Builder
	body := text[1 : len(text)-1]
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c != '\\' {
			out.WriteByte(c)
			continue
		}
		i++
		switch body[i] {
		case '\\':
			out.WriteByte('\\')
		case '"':
			out.WriteByte('"')
		case 'n':
			out.WriteByte('\n')
		case 't':
			out.WriteByte('\t')
		default:
			return "", fmt.Errorf("Illegal escape sequence '\\%c'.", body[i])
		}
	}
	return out.String(), nil
}

// identBody matches (alpha | '_') (alpha | '_' | num)*.
func identBody() automata.Regex {
	return automata.Cat(
		automata.Alt(automata.Alpha(), automata.Lit('_')),
		automata.Rep(automata.Alt(automata.Alpha(), automata.Lit('_'), automata.Num())),
	)
}

func intBody() automata.Regex {
	return automata.Cat(automata.Num(), automata.Rep(automata.Num()))
}

type lexRule struct {
	pattern automata.Regex
	produce automata.Producer[preToken]
}

func tokenRule(pattern automata.Regex, build func(text string) (Token, error)) lexRule {
	return lexRule{
		pattern: pattern,
		produce: func(span automata.Span, text string) (preToken, error) {
			tok, err := build(text)
			if err != nil {
				return preToken{}, err
			}
			return preToken{kind: preTokenReal, tok: tok}, nil
		},
	}
}

func punct(pattern automata.Regex, kind TokenKind) lexRule {
	return tokenRule(pattern, func(string) (Token, error) {
		return Token{Kind: kind}, nil
	})
}

// lexRules is the prioritised pattern list of the surface language. The
// driver is longest-match with ties broken by declaration order; keywords
// are carved out of the identifier rule by identOrKeyword rather than
// declared as patterns.
func lexRules() []lexRule {
	lit := automata.Lit
	return []lexRule{
		{
			pattern: automata.Cat(
				automata.Alt(lit(' '), lit('\t')),
				automata.Rep(automata.Alt(lit(' '), lit('\t'))),
			),
			produce: func(automata.Span, string) (preToken, error) {
				return preToken{kind: preNone}, nil
			},
		},
		{
			pattern: automata.Cat(
				lit('#'),
				automata.Rep(automata.Alt(automata.Behaved(), lit('\\'), lit('"'))),
				lit('\n'),
			),
			produce: func(automata.Span, string) (preToken, error) {
				return preToken{kind: preNewline}, nil
			},
		},
		{
			pattern: lit('\n'),
			produce: func(automata.Span, string) (preToken, error) {
				return preToken{kind: preNewline}, nil
			},
		},

		tokenRule(identBody(), func(text string) (Token, error) {
			return identOrKeyword(text), nil
		}),
		tokenRule(intBody(), func(text string) (Token, error) {
			v, err := parseInt64(text)
			if err != nil {
				return Token{}, err
			}
			return Token{Kind: TkInt, Int: v}, nil
		}),
		tokenRule(automata.Cat(
			lit('"'),
			automata.Rep(automata.Alt(
				automata.Behaved(),
				automata.Cat(lit('\\'), automata.Alt(lit('\\'), lit('"'), lit('n'), lit('t'))),
			)),
			lit('"'),
		), func(text string) (Token, error) {
			s, err := unescape(text)
			if err != nil {
				return Token{}, err
			}
			return Token{Kind: TkStr, Str: s}, nil
		}),

		// 3x — an integer immediately followed by an identifier.
		tokenRule(automata.Cat(
			intBody(),
			automata.Alpha(),
			automata.Rep(automata.Alt(automata.Alpha(), automata.Num())),
		), func(text string) (Token, error) {
			split := strings.IndexFunc(text, func(r rune) bool { return r < '0' || r > '9' })
			v, err := parseInt64(text[:split])
			if err != nil {
				return Token{}, err
			}
			name, err := expectIdent(text[split:])
			if err != nil {
				return Token{}, err
			}
			return Token{Kind: TkIntIdent, Int: v, Str: name}, nil
		}),
		// f( — an identifier immediately followed by an opening paren.
		tokenRule(automata.Cat(identBody(), lit('(')), func(text string) (Token, error) {
			name, err := expectIdent(text[:len(text)-1])
			if err != nil {
				return Token{}, err
			}
			return Token{Kind: TkIdentLPar, Str: name}, nil
		}),
		// 3( — an integer immediately followed by an opening paren.
		tokenRule(automata.Cat(intBody(), lit('(')), func(text string) (Token, error) {
			v, err := parseInt64(text[:len(text)-1])
			if err != nil {
				return Token{}, err
			}
			return Token{Kind: TkIntLPar, Int: v}, nil
		}),
		// )x — a closing paren immediately followed by an identifier.
		tokenRule(automata.Cat(lit(')'), identBody()), func(text string) (Token, error) {
			name, err := expectIdent(text[1:])
			if err != nil {
				return Token{}, err
			}
			return Token{Kind: TkRParIdent, Str: name}, nil
		}),

		punct(lit('('), TkLPar),
		punct(lit(')'), TkRPar),
		punct(lit(','), TkComma),
		punct(lit(':'), TkColon),
		punct(automata.Text("::"), TkDoubleColon),
		punct(lit(';'), TkSemicolon),

		punct(lit('='), TkEqu),
		punct(automata.Text("=="), TkDoubleEqu),
		punct(automata.Text("!="), TkNeq),
		punct(lit('<'), TkLt),
		punct(automata.Text("<="), TkLeq),
		punct(lit('>'), TkGt),
		punct(automata.Text(">="), TkGeq),

		punct(automata.Text("&&"), TkAnd),
		punct(automata.Text("||"), TkOr),

		punct(lit('+'), TkPlus),
		punct(lit('-'), TkMinus),
		punct(lit('*'), TkTimes),
		punct(lit('%'), TkMod),

		punct(lit('!'), TkNot),

		punct(lit('^'), TkPow),

		punct(lit('.'), TkDot),
	}
}

// canInsertSemi is the closed set of token kinds a virtual semicolon may
// follow.
func canInsertSemi(k TokenKind) bool {
	switch k {
	case TkIdent, TkInt, TkIntIdent, TkRParIdent, TkStr, TkTrue, TkFalse, TkRPar, TkEnd:
		return true
	}
	return false
}

// tokenStream runs the DFA over the source and applies the newline layer:
// whitespace is dropped, newlines become semicolons after the closed set
// above, and a literal `if` directly after `else` is rejected.
type tokenStream struct {
	inner      *automata.Tokenizer[preToken]
	canAddSemi bool
	sawElse    bool
}

func newTokenStream(src *automata.Source) (*tokenStream, error) {
	rules := lexRules()
	patterns := make([]automata.Regex, len(rules))
	producers := make([]automata.Producer[preToken], len(rules))
	for i, r := range rules {
		patterns[i] = r.pattern
		producers[i] = r.produce
	}
	dfa, err := automata.BuildDFA(patterns)
	if err != nil {
		return nil, err
	}
	return &tokenStream{inner: automata.NewTokenizer(dfa, producers, src)}, nil
}

// next yields the next meaningful token; tok is nil at end of input.
func (s *tokenStream) next() (automata.Span, *Token, error) {
	for {
		item, err := s.inner.Next()
		if err != nil {
			return automata.Span{}, nil, err
		}
		if item.EOF {
			return item.Span, nil, nil
		}
		switch item.Tok.kind {
		case preNone:
			continue
		case preNewline:
			if s.canAddSemi {
				s.canAddSemi = false
				return item.Span, &Token{Kind: TkSemicolon, Virtual: true}, nil
			}
			continue
		default:
			tok := item.Tok.tok
			s.canAddSemi = canInsertSemi(tok.Kind)

			if tok.Kind == TkIf && s.sawElse {
				return automata.Span{}, nil, automata.Errorf(item.Span,
					"Illegal \"if\" after \"else\" (please use \"elseif\").")
			}
			s.sawElse = tok.Kind == TkElse

			return item.Span, &tok, nil
		}
	}
}
