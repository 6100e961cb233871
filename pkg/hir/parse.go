package hir

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"pjulia/pkg/automata"
)

// Textual-HIR tokens. Keywords are carved out of identifiers, the way the
// surface language does it.
type irToken struct {
	kind irTokenKind
	num  uint64
	str  string
}

type irTokenKind int

const (
	irIdent irTokenKind = iota
	irNum
	irStr

	irGlobals
	irFn
	irVars
	irCall
	irNative
	irReturn
	irIf
	irElse
	irWhile
	irTypeof
	irAlloc
	irInt64
	irBool
	irStrTy
	irStruct

	irLBrace
	irRBrace
	irLPar
	irRPar
	irLSquare
	irRSquare
	irDot
	irComma
	irColon
	irSemicolon

	irArrow

	irEqu
	irNeq
	irLt
	irLeq
	irGt
	irGeq

	irAnd
	irOr

	irAdd
	irSub
	irMul
	irDiv

	irNot
)

var irKeywords = map[string]irTokenKind{
	"globals": irGlobals,
	"fn":      irFn,
	"vars":    irVars,
	"call":    irCall,
	"native":  irNative,
	"return":  irReturn,
	"if":      irIf,
	"else":    irElse,
	"while":   irWhile,
	"typeof":  irTypeof,
	"alloc":   irAlloc,
	"Int64":   irInt64,
	"Bool":    irBool,
	"Str":     irStrTy,
	"struct":  irStruct,
}

var irTermNames = []string{
	"ident", "uint", "string",
	"GLOBALS", "FN", "VARS", "CALL", "NATIVE", "RETURN", "IF", "ELSE", "WHILE",
	"TYPEOF", "ALLOC", "INT64", "BOOL", "STR", "STRUCT",
	"LBRACE", "RBRACE", "LPAR", "RPAR", "LSQUARE", "RSQUARE",
	"DOT", "COMMA", "COLON", "SEMICOLON",
	"ARROW",
	"EQU", "NEQ", "LT", "LEQ", "GT", "GEQ",
	"AND", "OR",
	"ADD", "SUB", "MUL", "DIV",
	"NOT",
}

// termID: terminal 0 is end-of-input, then irTermNames in order; the
// irTokenKind constants are aligned with that numbering.
func irTermOf(t irToken) int { return int(t.kind) + 1 }

func irUnescape(text string) string {
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

type irLexRule struct {
	pattern automata.Regex
	produce automata.Producer[*irToken]
}

func irPunct(pattern automata.Regex, kind irTokenKind) irLexRule {
	return irLexRule{pattern: pattern, produce: func(automata.Span, string) (*irToken, error) {
		return &irToken{kind: kind}, nil
	}}
}

func irLexRules() []irLexRule {
	lit := automata.Lit
	skip := func(automata.Span, string) (*irToken, error) { return nil, nil }
	return []irLexRule{
		{pattern: automata.Cat(
			automata.Alt(lit(' '), lit('\t'), lit('\n')),
			automata.Rep(automata.Alt(lit(' '), lit('\t'), lit('\n'))),
		), produce: skip},
		{pattern: automata.Cat(lit('#'), automata.Rep(automata.Behaved()), lit('\n')), produce: skip},

		{pattern: automata.Cat(
			automata.Alt(automata.Alpha(), lit('_')),
			automata.Rep(automata.Alt(automata.Alpha(), lit('_'), automata.Num())),
		), produce: func(span automata.Span, text string) (*irToken, error) {
			if kw, ok := irKeywords[text]; ok {
				return &irToken{kind: kw}, nil
			}
			return &irToken{kind: irIdent, str: text}, nil
		}},
		{pattern: automata.Cat(automata.Num(), automata.Rep(automata.Num())),
			produce: func(span automata.Span, text string) (*irToken, error) {
				v, err := strconv.ParseUint(text, 10, 64)
				if err != nil {
					return nil, fmt.Errorf("This number does not fit in 64 bits.")
				}
				return &irToken{kind: irNum, num: v}, nil
			}},
		{pattern: automata.Cat(
			lit('"'),
			automata.Rep(automata.Alt(
				automata.Behaved(),
				automata.Cat(lit('\\'), automata.Alt(lit('\\'), lit('"'), lit('n'), lit('t'))),
			)),
			lit('"'),
		), produce: func(span automata.Span, text string) (*irToken, error) {
			return &irToken{kind: irStr, str: irUnescape(text)}, nil
		}},

		irPunct(lit('{'), irLBrace),
		irPunct(lit('}'), irRBrace),
		irPunct(lit('('), irLPar),
		irPunct(lit(')'), irRPar),
		irPunct(lit('['), irLSquare),
		irPunct(lit(']'), irRSquare),
		irPunct(lit('.'), irDot),
		irPunct(lit(','), irComma),
		irPunct(lit(':'), irColon),
		irPunct(lit(';'), irSemicolon),

		irPunct(automata.Text("<-"), irArrow),

		irPunct(automata.Text("=="), irEqu),
		irPunct(automata.Text("!="), irNeq),
		irPunct(lit('<'), irLt),
		irPunct(automata.Text("<="), irLeq),
		irPunct(lit('>'), irGt),
		irPunct(automata.Text(">="), irGeq),

		irPunct(automata.Text("&&"), irAnd),
		irPunct(automata.Text("||"), irOr),

		irPunct(lit('+'), irAdd),
		irPunct(lit('-'), irSub),
		irPunct(lit('*'), irMul),
		irPunct(lit('%'), irDiv),

		irPunct(lit('!'), irNot),
	}
}

type hirHead struct {
	name string
	args []string
}

var hirNonterms = []string{
	"ident_list", "val_list", "function_head", "vars_list", "statements_list",
	"call_head", "globals", "decls_list",
	"source", "decl", "structure", "function", "block",
	"statement", "callable", "bin_op", "unary_op", "val", "ty",
}

func hirRules() ([]automata.NamedProd, []automata.Reducer[any]) {
	var prods []automata.NamedProd
	var reds []automata.Reducer[any]
	add := func(lhs, rhs string, fn automata.Reducer[any]) {
		prods = append(prods, automata.NamedProd{LHS: lhs, RHS: strings.Fields(rhs)})
		reds = append(reds, fn)
	}
	tok := func(v any) irToken { return v.(irToken) }

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
		return hirHead{name: tok(p[1]).str}, nil
	})
	add("function_head", "FN ident LPAR ident_list RPAR", func(s automata.Span, p []any) (any, error) {
		return hirHead{name: tok(p[1]).str, args: p[3].([]string)}, nil
	})

	add("vars_list", "VARS COLON SEMICOLON", func(s automata.Span, p []any) (any, error) {
		return []string{}, nil
	})
	add("vars_list", "VARS COLON ident_list SEMICOLON", func(s automata.Span, p []any) (any, error) {
		return p[2], nil
	})

	add("statements_list", "statement", func(s automata.Span, p []any) (any, error) {
		return []Statement{p[0].(Statement)}, nil
	})
	add("statements_list", "statements_list statement", func(s automata.Span, p []any) (any, error) {
		return append(p[0].([]Statement), p[1].(Statement)), nil
	})

	add("call_head", "CALL", func(s automata.Span, p []any) (any, error) { return false, nil })
	add("call_head", "CALL NATIVE", func(s automata.Span, p []any) (any, error) { return true, nil })

	add("globals", "GLOBALS COLON SEMICOLON", func(s automata.Span, p []any) (any, error) {
		return []string{}, nil
	})
	add("globals", "GLOBALS COLON ident_list SEMICOLON", func(s automata.Span, p []any) (any, error) {
		return p[2], nil
	})

	add("decls_list", "decl", func(s automata.Span, p []any) (any, error) {
		return []Decl{p[0].(Decl)}, nil
	})
	add("decls_list", "decls_list decl", func(s automata.Span, p []any) (any, error) {
		return append(p[0].([]Decl), p[1].(Decl)), nil
	})

	add("source", "globals", func(s automata.Span, p []any) (any, error) {
		return &Source{Globals: p[0].([]string)}, nil
	})
	add("source", "globals decls_list", func(s automata.Span, p []any) (any, error) {
		return &Source{Globals: p[0].([]string), Decls: p[1].([]Decl)}, nil
	})

	add("decl", "structure", passDecl)
	add("decl", "function", passDecl)

	add("structure", "STRUCT ident LBRACE RBRACE", func(s automata.Span, p []any) (any, error) {
		return &StructDecl{Name: tok(p[1]).str}, nil
	})
	add("structure", "STRUCT ident LBRACE ident_list RBRACE", func(s automata.Span, p []any) (any, error) {
		return &StructDecl{Name: tok(p[1]).str, Fields: p[3].([]string)}, nil
	})

	add("function", "function_head vars_list block", func(s automata.Span, p []any) (any, error) {
		h := p[0].(hirHead)
		return &Function{Name: h.name, Args: h.args, Vars: p[1].([]string), Body: p[2].(Block)}, nil
	})

	add("block", "LBRACE RBRACE", func(s automata.Span, p []any) (any, error) {
		return Block{}, nil
	})
	add("block", "LBRACE statements_list RBRACE", func(s automata.Span, p []any) (any, error) {
		return Block{Stmts: p[1].([]Statement)}, nil
	})

	add("statement", "ident ARROW callable SEMICOLON", func(s automata.Span, p []any) (any, error) {
		return CallStmt{Dest: VarLV{Name: tok(p[0]).str}, C: p[2].(Callable)}, nil
	})
	add("statement", "val LSQUARE ident DOT ident RSQUARE ARROW callable SEMICOLON",
		func(s automata.Span, p []any) (any, error) {
			dest := AccessLV{V: p[0].(Val), Struct: tok(p[2]).str, Field: tok(p[4]).str}
			return CallStmt{Dest: dest, C: p[7].(Callable)}, nil
		})
	add("statement", "RETURN val SEMICOLON", func(s automata.Span, p []any) (any, error) {
		return ReturnStmt{V: p[1].(Val)}, nil
	})
	add("statement", "IF val block ELSE block", func(s automata.Span, p []any) (any, error) {
		return IfStmt{Cond: p[1].(Val), Then: p[2].(Block), Else: p[4].(Block)}, nil
	})
	add("statement", "WHILE val block", func(s automata.Span, p []any) (any, error) {
		return WhileStmt{Cond: p[1].(Val), Body: p[2].(Block)}, nil
	})

	add("callable", "call_head ident LPAR RPAR", func(s automata.Span, p []any) (any, error) {
		return Call{Name: tok(p[1]).str, Native: p[0].(bool)}, nil
	})
	add("callable", "call_head ident LPAR val_list RPAR", func(s automata.Span, p []any) (any, error) {
		return Call{Name: tok(p[1]).str, Native: p[0].(bool), Args: p[3].([]Val)}, nil
	})
	add("callable", "val bin_op val", func(s automata.Span, p []any) (any, error) {
		return Bin{Op: p[1].(BinOp), A: p[0].(Val), B: p[2].(Val)}, nil
	})
	add("callable", "unary_op val", func(s automata.Span, p []any) (any, error) {
		return Unary{Op: p[0].(UnaryOp), A: p[1].(Val)}, nil
	})
	add("callable", "val", func(s automata.Span, p []any) (any, error) {
		return Assign{Src: p[0].(Val)}, nil
	})
	add("callable", "TYPEOF val EQU ty", func(s automata.Span, p []any) (any, error) {
		return IsType{V: p[1].(Val), Ty: p[3].(Type)}, nil
	})
	add("callable", "val LSQUARE ident DOT ident RSQUARE", func(s automata.Span, p []any) (any, error) {
		return Access{V: p[0].(Val), Struct: tok(p[2]).str, Field: tok(p[4]).str}, nil
	})
	add("callable", "ALLOC ident", func(s automata.Span, p []any) (any, error) {
		return Alloc{Struct: tok(p[1]).str}, nil
	})

	binOps := []struct {
		term string
		op   BinOp
	}{
		{"EQU", OpEqu}, {"NEQ", OpNeq}, {"LT", OpLt}, {"LEQ", OpLeq}, {"GT", OpGt}, {"GEQ", OpGeq},
		{"AND", OpAnd}, {"OR", OpOr},
		{"ADD", OpAdd}, {"SUB", OpSub}, {"MUL", OpMul}, {"DIV", OpMod},
	}
	for _, b := range binOps {
		op := b.op
		add("bin_op", b.term, func(s automata.Span, p []any) (any, error) { return op, nil })
	}
	add("unary_op", "SUB", func(s automata.Span, p []any) (any, error) { return OpNeg, nil })
	add("unary_op", "NOT", func(s automata.Span, p []any) (any, error) { return OpNot, nil })

	add("val", "ident", func(s automata.Span, p []any) (any, error) {
		return Var{Name: tok(p[0]).str}, nil
	})
	add("val", "LPAR ty COMMA uint RPAR", func(s automata.Span, p []any) (any, error) {
		return Const{Ty: p[1].(Type), V: tok(p[3]).num}, nil
	})
	add("val", "string", func(s automata.Span, p []any) (any, error) {
		return Str{S: tok(p[0]).str}, nil
	})
	add("val", "LPAR RPAR", func(s automata.Span, p []any) (any, error) {
		return Nothing{}, nil
	})

	add("ty", "LPAR RPAR", func(s automata.Span, p []any) (any, error) { return NothingTy(), nil })
	add("ty", "INT64", func(s automata.Span, p []any) (any, error) { return Int64Ty(), nil })
	add("ty", "BOOL", func(s automata.Span, p []any) (any, error) { return BoolTy(), nil })
	add("ty", "STR", func(s automata.Span, p []any) (any, error) { return StrTy(), nil })
	add("ty", "STRUCT ident", func(s automata.Span, p []any) (any, error) {
		return StructTy(tok(p[1]).str), nil
	})

	return prods, reds
}

func passDecl(s automata.Span, p []any) (any, error) { return p[0], nil }

var (
	hirParserOnce sync.Once
	hirGrammar    *automata.Grammar
	hirTable      *automata.Table
	hirReducers   []automata.Reducer[any]
	hirDFA        *automata.DFA
	hirProducers  []automata.Producer[*irToken]
)

func hirParser() {
	hirParserOnce.Do(func() {
		prods, reds := hirRules()
		g, err := automata.NewGrammar(irTermNames, hirNonterms, prods, "source")
		if err != nil {
			panic("hir: " + err.Error())
		}
		t, err := g.BuildTable()
		if err != nil {
			panic("hir: " + err.Error())
		}
		rules := irLexRules()
		patterns := make([]automata.Regex, len(rules))
		producers := make([]automata.Producer[*irToken], len(rules))
		for i, r := range rules {
			patterns[i] = r.pattern
			producers[i] = r.produce
		}
		dfa, err := automata.BuildDFA(patterns)
		if err != nil {
			panic("hir: " + err.Error())
		}
		hirGrammar, hirTable = g, t
		hirReducers = append([]automata.Reducer[any]{nil}, reds...)
		hirDFA, hirProducers = dfa, producers
	})
}

// ParseSource parses the textual HIR format back into a Source. The
// entrypoint is the function named main when present, otherwise the last
// function declared.
func ParseSource(fileName, contents string) (*Source, error) {
	hirParser()
	src := automata.NewSource(fileName, contents)
	tok := automata.NewTokenizer(hirDFA, hirProducers, src)

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
				Term: irTermOf(*item.Tok),
				Val:  *item.Tok,
			}, nil
		}
	}

	pda := automata.NewPDA[any](hirGrammar, hirTable)
	out, err := pda.Parse(next, func() (any, error) {
		return nil, fmt.Errorf("Expected a program")
	}, hirReducers)
	if err != nil {
		return nil, err
	}

	source := out.(*Source)
	for _, d := range source.Decls {
		if f, ok := d.(*Function); ok {
			source.Entrypoint = f.Name
			if f.Name == "main" {
				break
			}
		}
	}
	return source, nil
}
