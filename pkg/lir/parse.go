package lir

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"pjulia/pkg/automata"
)

type lirToken struct {
	kind lirTokenKind
	num  uint64
	str  string
}

type lirTokenKind int

const (
	lIdent lirTokenKind = iota
	lNum
	lStr

	lGlobals
	lFn
	lVars
	lCall
	lNative
	lReturn
	lJump
	lJumpif
	lNot

	lLBrace
	lRBrace
	lLPar
	lRPar
	lLSquare
	lRSquare
	lComma
	lColon
	lSemicolon

	lArrow

	lEqu
	lNeq
	lLt
	lLeq
	lGt
	lGeq

	lAnd
	lOr

	lAdd
	lSub
	lMul
	lMod

	lBang
)

var lirKeywords = map[string]lirTokenKind{
	"globals": lGlobals,
	"fn":      lFn,
	"vars":    lVars,
	"call":    lCall,
	"native":  lNative,
	"return":  lReturn,
	"jump":    lJump,
	"jumpif":  lJumpif,
	"not":     lNot,
}

var lirTermNames = []string{
	"ident", "uint", "string",
	"GLOBALS", "FN", "VARS", "CALL", "NATIVE", "RETURN", "JUMP", "JUMPIF", "NOT",
	"LBRACE", "RBRACE", "LPAR", "RPAR", "LSQUARE", "RSQUARE",
	"COMMA", "COLON", "SEMICOLON",
	"ARROW",
	"EQU", "NEQ", "LT", "LEQ", "GT", "GEQ",
	"AND", "OR",
	"ADD", "SUB", "MUL", "MOD",
	"BANG",
}

func lirTermOf(t lirToken) int { return int(t.kind) + 1 }

func lirUnescape(text string) string {
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
		case 'n':
			out.WriteByte('\n')
		case 't':
			out.WriteByte('\t')
		default:
			out.WriteByte(body[i])
		}
	}
	return out.String()
}

type lirLexRule struct {
	pattern automata.Regex
	produce automata.Producer[*lirToken]
}

func lirPunct(pattern automata.Regex, kind lirTokenKind) lirLexRule {
	return lirLexRule{pattern: pattern, produce: func(automata.Span, string) (*lirToken, error) {
		return &lirToken{kind: kind}, nil
	}}
}

func lirLexRules() []lirLexRule {
	lit := automata.Lit
	skip := func(automata.Span, string) (*lirToken, error) { return nil, nil }
	return []lirLexRule{
		{pattern: automata.Cat(
			automata.Alt(lit(' '), lit('\t'), lit('\n')),
			automata.Rep(automata.Alt(lit(' '), lit('\t'), lit('\n'))),
		), produce: skip},
		{pattern: automata.Cat(lit('#'), automata.Rep(automata.Behaved()), lit('\n')), produce: skip},

		{pattern: automata.Cat(
			automata.Alt(automata.Alpha(), lit('_')),
			automata.Rep(automata.Alt(automata.Alpha(), lit('_'), automata.Num())),
		), produce: func(span automata.Span, text string) (*lirToken, error) {
			if kw, ok := lirKeywords[text]; ok {
				return &lirToken{kind: kw}, nil
			}
			return &lirToken{kind: lIdent, str: text}, nil
		}},
		{pattern: automata.Cat(automata.Num(), automata.Rep(automata.Num())),
			produce: func(span automata.Span, text string) (*lirToken, error) {
				v, err := strconv.ParseUint(text, 10, 64)
				if err != nil {
					return nil, fmt.Errorf("This number does not fit in 64 bits.")
				}
				return &lirToken{kind: lNum, num: v}, nil
			}},
		{pattern: automata.Cat(
			lit('"'),
			automata.Rep(automata.Alt(
				automata.Behaved(),
				automata.Cat(lit('\\'), automata.Alt(lit('\\'), lit('"'), lit('n'), lit('t'))),
			)),
			lit('"'),
		), produce: func(span automata.Span, text string) (*lirToken, error) {
			return &lirToken{kind: lStr, str: lirUnescape(text)}, nil
		}},

		lirPunct(lit('{'), lLBrace),
		lirPunct(lit('}'), lRBrace),
		lirPunct(lit('('), lLPar),
		lirPunct(lit(')'), lRPar),
		lirPunct(lit('['), lLSquare),
		lirPunct(lit(']'), lRSquare),
		lirPunct(lit(','), lComma),
		lirPunct(lit(':'), lColon),
		lirPunct(lit(';'), lSemicolon),

		lirPunct(automata.Text("<-"), lArrow),

		lirPunct(automata.Text("=="), lEqu),
		lirPunct(automata.Text("!="), lNeq),
		lirPunct(lit('<'), lLt),
		lirPunct(automata.Text("<="), lLeq),
		lirPunct(lit('>'), lGt),
		lirPunct(automata.Text(">="), lGeq),

		lirPunct(automata.Text("&&"), lAnd),
		lirPunct(automata.Text("||"), lOr),

		lirPunct(lit('+'), lAdd),
		lirPunct(lit('-'), lSub),
		lirPunct(lit('*'), lMul),
		lirPunct(lit('%'), lMod),

		lirPunct(lit('!'), lBang),
	}
}

type lirHead struct {
	name string
	args []string
}

var lirNonterms = []string{
	"ident_list", "val_list", "function_head", "vars_list",
	"call_head", "globals", "functions_list",
	"source", "function", "block", "statement", "statement_semi",
	"bin_op", "unary_op", "val",
}

func lirRules() ([]automata.NamedProd, []automata.Reducer[any]) {
	var prods []automata.NamedProd
	var reds []automata.Reducer[any]
	add := func(lhs, rhs string, fn automata.Reducer[any]) {
		prods = append(prods, automata.NamedProd{LHS: lhs, RHS: strings.Fields(rhs)})
		reds = append(reds, fn)
	}
	tok := func(v any) lirToken { return v.(lirToken) }

	add("ident_list", "ident", func(s automata.Span, p []any) (any, error) {
		return []string{tok(p[0]).str}, nil
	})
	add("ident_list", "ident_list COMMA ident", func(s automata.Span, p []any) (any, error) {
		return append(p[0].([]string), tok(p[2]).str), nil
	})

	add("val_list", "val", func(s automata.Span, p []any) (any, error) {
		return []Val{p[0].(Val)}, nil
	})
	add("val_list", "val_list COMMA val", func(s automata.Span, p []any) (any, error) {
		return append(p[0].([]Val), p[2].(Val)), nil
	})

	add("function_head", "FN ident LPAR RPAR", func(s automata.Span, p []any) (any, error) {
		return lirHead{name: tok(p[1]).str}, nil
	})
	add("function_head", "FN ident LPAR ident_list RPAR", func(s automata.Span, p []any) (any, error) {
		return lirHead{name: tok(p[1]).str, args: p[3].([]string)}, nil
	})

	add("vars_list", "VARS COLON SEMICOLON", func(s automata.Span, p []any) (any, error) {
		return []string{}, nil
	})
	add("vars_list", "VARS COLON ident_list SEMICOLON", func(s automata.Span, p []any) (any, error) {
		return p[2], nil
	})

	add("call_head", "CALL", func(s automata.Span, p []any) (any, error) { return false, nil })
	add("call_head", "CALL NATIVE", func(s automata.Span, p []any) (any, error) { return true, nil })

	add("globals", "GLOBALS COLON SEMICOLON", func(s automata.Span, p []any) (any, error) {
		return []string{}, nil
	})
	add("globals", "GLOBALS COLON ident_list SEMICOLON", func(s automata.Span, p []any) (any, error) {
		return p[2], nil
	})

	add("functions_list", "function", func(s automata.Span, p []any) (any, error) {
		return []*Function{p[0].(*Function)}, nil
	})
	add("functions_list", "functions_list function", func(s automata.Span, p []any) (any, error) {
		return append(p[0].([]*Function), p[1].(*Function)), nil
	})

	add("source", "globals", func(s automata.Span, p []any) (any, error) {
		return &Source{Globals: p[0].([]string)}, nil
	})
	add("source", "globals functions_list", func(s automata.Span, p []any) (any, error) {
		return &Source{Globals: p[0].([]string), Funcs: p[1].([]*Function)}, nil
	})

	add("function", "function_head vars_list LBRACE RBRACE", func(s automata.Span, p []any) (any, error) {
		h := p[0].(lirHead)
		return &Function{Name: h.name, Args: h.args, Vars: p[1].([]string)}, nil
	})
	add("function", "function_head vars_list LBRACE block RBRACE", func(s automata.Span, p []any) (any, error) {
		h := p[0].(lirHead)
		return &Function{Name: h.name, Args: h.args, Vars: p[1].([]string), Body: p[3].([]Statement)}, nil
	})

	add("block", "statement", func(s automata.Span, p []any) (any, error) {
		return []Statement{p[0].(Statement)}, nil
	})
	add("block", "block statement", func(s automata.Span, p []any) (any, error) {
		return append(p[0].([]Statement), p[1].(Statement)), nil
	})

	add("statement", "ident COLON", func(s automata.Span, p []any) (any, error) {
		return Label{Name: tok(p[0]).str}, nil
	})
	add("statement", "statement_semi SEMICOLON", func(s automata.Span, p []any) (any, error) {
		return p[0], nil
	})

	add("statement_semi", "ident ARROW val bin_op val", func(s automata.Span, p []any) (any, error) {
		return Bin{Dest: tok(p[0]).str, Op: p[3].(BinOp), A: p[2].(Val), B: p[4].(Val)}, nil
	})
	add("statement_semi", "ident ARROW unary_op val", func(s automata.Span, p []any) (any, error) {
		return Unary{Dest: tok(p[0]).str, Op: p[2].(UnaryOp), A: p[3].(Val)}, nil
	})
	add("statement_semi", "ident ARROW val", func(s automata.Span, p []any) (any, error) {
		return Mov{Dest: tok(p[0]).str, A: p[2].(Val)}, nil
	})
	add("statement_semi", "val LSQUARE uint RSQUARE ARROW val", func(s automata.Span, p []any) (any, error) {
		return AssignArray{Dest: p[0].(Val), Offset: tok(p[2]).num, A: p[5].(Val)}, nil
	})
	add("statement_semi", "ident ARROW val LSQUARE uint RSQUARE", func(s automata.Span, p []any) (any, error) {
		return Access{Dest: tok(p[0]).str, A: p[2].(Val), Offset: tok(p[4]).num}, nil
	})
	add("statement_semi", "JUMP ident", func(s automata.Span, p []any) (any, error) {
		return Jump{Label: tok(p[1]).str}, nil
	})
	add("statement_semi", "JUMPIF val ident", func(s automata.Span, p []any) (any, error) {
		return Jumpif{Cond: p[1].(Val), Label: tok(p[2]).str}, nil
	})
	add("statement_semi", "JUMPIF NOT val ident", func(s automata.Span, p []any) (any, error) {
		return JumpifNot{Cond: p[2].(Val), Label: tok(p[3]).str}, nil
	})
	add("statement_semi", "call_head ident LPAR RPAR", func(s automata.Span, p []any) (any, error) {
		return Call{Native: p[0].(bool), Fn: tok(p[1]).str}, nil
	})
	add("statement_semi", "call_head ident LPAR val_list RPAR", func(s automata.Span, p []any) (any, error) {
		return Call{Native: p[0].(bool), Fn: tok(p[1]).str, Args: p[3].([]Val)}, nil
	})
	add("statement_semi", "LPAR ident COMMA ident RPAR ARROW call_head ident LPAR RPAR",
		func(s automata.Span, p []any) (any, error) {
			return Call{
				HasDest: true, DestTy: tok(p[1]).str, DestVal: tok(p[3]).str,
				Native: p[6].(bool), Fn: tok(p[7]).str,
			}, nil
		})
	add("statement_semi", "LPAR ident COMMA ident RPAR ARROW call_head ident LPAR val_list RPAR",
		func(s automata.Span, p []any) (any, error) {
			return Call{
				HasDest: true, DestTy: tok(p[1]).str, DestVal: tok(p[3]).str,
				Native: p[6].(bool), Fn: tok(p[7]).str, Args: p[9].([]Val),
			}, nil
		})
	add("statement_semi", "RETURN val COMMA val", func(s automata.Span, p []any) (any, error) {
		return Return{Ty: p[1].(Val), V: p[3].(Val)}, nil
	})

	binOps := []struct {
		term string
		op   BinOp
	}{
		{"EQU", OpEqu}, {"NEQ", OpNeq}, {"LT", OpLt}, {"LEQ", OpLeq}, {"GT", OpGt}, {"GEQ", OpGeq},
		{"AND", OpAnd}, {"OR", OpOr},
		{"ADD", OpAdd}, {"SUB", OpSub}, {"MUL", OpMul}, {"MOD", OpMod},
	}
	for _, b := range binOps {
		op := b.op
		add("bin_op", b.term, func(s automata.Span, p []any) (any, error) { return op, nil })
	}
	add("unary_op", "SUB", func(s automata.Span, p []any) (any, error) { return OpNeg, nil })
	add("unary_op", "BANG", func(s automata.Span, p []any) (any, error) { return OpNot, nil })

	add("val", "ident", func(s automata.Span, p []any) (any, error) {
		return Var{Name: tok(p[0]).str}, nil
	})
	add("val", "uint", func(s automata.Span, p []any) (any, error) {
		return Const{V: tok(p[0]).num}, nil
	})
	add("val", "string", func(s automata.Span, p []any) (any, error) {
		return Str{S: tok(p[0]).str}, nil
	})

	return prods, reds
}

var (
	lirParserOnce sync.Once
	lirGrammar    *automata.Grammar
	lirTable      *automata.Table
	lirReducers   []automata.Reducer[any]
	lirDFA        *automata.DFA
	lirProducers  []automata.Producer[*lirToken]
)

func lirParser() {
	lirParserOnce.Do(func() {
		prods, reds := lirRules()
		g, err := automata.NewGrammar(lirTermNames, lirNonterms, prods, "source")
		if err != nil {
			panic("lir: " + err.Error())
		}
		t, err := g.BuildTable()
		if err != nil {
			panic("lir: " + err.Error())
		}
		rules := lirLexRules()
		patterns := make([]automata.Regex, len(rules))
		producers := make([]automata.Producer[*lirToken], len(rules))
		for i, r := range rules {
			patterns[i] = r.pattern
			producers[i] = r.produce
		}
		dfa, err := automata.BuildDFA(patterns)
		if err != nil {
			panic("lir: " + err.Error())
		}
		lirGrammar, lirTable = g, t
		lirReducers = append([]automata.Reducer[any]{nil}, reds...)
		lirDFA, lirProducers = dfa, producers
	})
}

// ParseSource parses the textual LIR format back into a Source.
func ParseSource(fileName, contents string) (*Source, error) {
	lirParser()
	src := automata.NewSource(fileName, contents)
	tok := automata.NewTokenizer(lirDFA, lirProducers, src)

	next := func() (automata.Lookahead[any], error) {
		for {
			item, err := tok.Next()
			if err != nil {
				return automata.Lookahead[any]{}, err
			}
			if item.EOF {
				return automata.Lookahead[any]{Span: item.Span, EOF: true}, nil
			}
			if item.Tok == nil {
				continue
			}
			return automata.Lookahead[any]{
				Span: item.Span,
				Term: lirTermOf(*item.Tok),
				Val:  *item.Tok,
			}, nil
		}
	}

	pda := automata.NewPDA[any](lirGrammar, lirTable)
	out, err := pda.Parse(next, func() (any, error) {
		return nil, fmt.Errorf("Expected a program")
	}, lirReducers)
	if err != nil {
		return nil, err
	}
	return out.(*Source), nil
}
