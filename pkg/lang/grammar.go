package lang

import (
	"strings"
	"sync"

	"pjulia/pkg/automata"
)

// The surface grammar. The "clean" duplicates of the expression tower are
// expressions that do not start with a '-'; they disambiguate the places
// where two expressions can be adjacent (a condition followed by its block).
// Rule shapes follow the language reference; the reducers build the AST.

type funcHead struct {
	name   string
	params []Param
}

type funcSig struct {
	head  funcHead
	retTy *Ident
}

type condBlock struct {
	cond  *Exp
	block *Block
}

type ruleSet struct {
	prods    []automata.NamedProd
	reducers []automata.Reducer[any]
}

func (r *ruleSet) add(lhs, rhs string, fn automata.Reducer[any]) {
	r.prods = append(r.prods, automata.NamedProd{LHS: lhs, RHS: strings.Fields(rhs)})
	r.reducers = append(r.reducers, fn)
}

// Casting helpers for reducer payloads.
func asExp(v any) *Exp        { return v.(*Exp) }
func asBlock(v any) *Block    { return v.(*Block) }
func asLValue(v any) *LValue  { return v.(*LValue) }
func asIdent(v any) Ident     { return v.(Ident) }
func asParam(v any) Param     { return v.(Param) }
func asParams(v any) []Param  { return v.([]Param) }
func asElse(v any) *Else      { return v.(*Else) }
func asBinOp(v any) BinOp     { return v.(BinOp) }
func asDecls(v any) []*Decl   { return v.([]*Decl) }
func asExps(v any) []*Exp     { return v.([]*Exp) }
func asToken(v any) Token     { return v.(Token) }
func asCond(v any) condBlock  { return v.(condBlock) }

var nontermNames = []string{
	"file",
	"located_ident",
	"decl",
	"param",
	"params",
	"fields",
	"struct_head",
	"structure",
	"function_head",
	"function_signature",
	"function",
	"range",
	"comparison_op",
	"sum_op",
	"product_op",
	"exp",
	"clean_exp",
	"exp_return",
	"exp_clean_return",
	"exp_assign",
	"exp_clean_assign",
	"exp_disjunctions",
	"exp_clean_disjunctions",
	"exp_conjunctions",
	"exp_clean_conjunctions",
	"exp_comparisons",
	"exp_clean_comparisons",
	"exp_sums",
	"exp_clean_sums",
	"exp_products",
	"exp_clean_products",
	"exp_unary",
	"exp_clean_unary",
	"exp_powers",
	"exp_atom",
	"cond_and_block",
	"lvalue",
	"else_block",
	"call_args",
	"block_0",
	"clean_block_0",
	"block_1",
	"block_2",
}

func surfaceRules() *ruleSet {
	r := &ruleSet{}

	r.add("file", "decl", func(s automata.Span, p []any) (any, error) {
		return []*Decl{p[0].(*Decl)}, nil
	})
	r.add("file", "file decl", func(s automata.Span, p []any) (any, error) {
		return append(asDecls(p[0]), p[1].(*Decl)), nil
	})

	r.add("decl", "structure SEMICOLON", func(s automata.Span, p []any) (any, error) {
		return &Decl{Span: s, Val: StructureDecl{S: p[0].(*Structure)}}, nil
	})
	r.add("decl", "function SEMICOLON", func(s automata.Span, p []any) (any, error) {
		return &Decl{Span: s, Val: FunctionDecl{F: p[0].(*Function)}}, nil
	})
	r.add("decl", "exp SEMICOLON", func(s automata.Span, p []any) (any, error) {
		return &Decl{Span: s, Val: ExpDecl{E: asExp(p[0])}}, nil
	})

	r.add("located_ident", "ident", func(s automata.Span, p []any) (any, error) {
		return Ident{Span: s, Name: asToken(p[0]).Str}, nil
	})

	r.add("fields", "param", func(s automata.Span, p []any) (any, error) {
		return []Param{asParam(p[0])}, nil
	})
	r.add("fields", "SEMICOLON", func(s automata.Span, p []any) (any, error) {
		return []Param{}, nil
	})
	r.add("fields", "SEMICOLON param", func(s automata.Span, p []any) (any, error) {
		return []Param{asParam(p[1])}, nil
	})
	r.add("fields", "fields SEMICOLON", func(s automata.Span, p []any) (any, error) {
		return p[0], nil
	})
	r.add("fields", "fields SEMICOLON param", func(s automata.Span, p []any) (any, error) {
		return append(asParams(p[0]), asParam(p[2])), nil
	})

	r.add("struct_head", "STRUCT", func(s automata.Span, p []any) (any, error) {
		return false, nil
	})
	r.add("struct_head", "MUTABLE STRUCT", func(s automata.Span, p []any) (any, error) {
		return true, nil
	})
	r.add("structure", "struct_head located_ident END", func(s automata.Span, p []any) (any, error) {
		return &Structure{Span: s, Mutable: p[0].(bool), Name: asIdent(p[1])}, nil
	})
	r.add("structure", "struct_head located_ident fields END", func(s automata.Span, p []any) (any, error) {
		return &Structure{Span: s, Mutable: p[0].(bool), Name: asIdent(p[1]), Fields: asParams(p[2])}, nil
	})

	r.add("param", "located_ident", func(s automata.Span, p []any) (any, error) {
		return Param{Span: s, Name: asIdent(p[0]), Ty: Any()}, nil
	})
	r.add("param", "located_ident DOUBLECOLON located_ident", func(s automata.Span, p []any) (any, error) {
		return Param{Span: s, Name: asIdent(p[0]), Ty: TypeFromName(asIdent(p[2]).Name)}, nil
	})

	r.add("params", "param", func(s automata.Span, p []any) (any, error) {
		return []Param{asParam(p[0])}, nil
	})
	r.add("params", "param COMMA", func(s automata.Span, p []any) (any, error) {
		return []Param{asParam(p[0])}, nil
	})
	r.add("params", "param COMMA params", func(s automata.Span, p []any) (any, error) {
		return append([]Param{asParam(p[0])}, asParams(p[2])...), nil
	})

	r.add("function_head", "FUNCTION identlpar RPAR", func(s automata.Span, p []any) (any, error) {
		return funcHead{name: asToken(p[1]).Str}, nil
	})
	r.add("function_head", "FUNCTION identlpar params RPAR", func(s automata.Span, p []any) (any, error) {
		return funcHead{name: asToken(p[1]).Str, params: asParams(p[2])}, nil
	})
	r.add("function_signature", "function_head", func(s automata.Span, p []any) (any, error) {
		return funcSig{head: p[0].(funcHead)}, nil
	})
	r.add("function_signature", "function_head DOUBLECOLON located_ident", func(s automata.Span, p []any) (any, error) {
		id := asIdent(p[2])
		return funcSig{head: p[0].(funcHead), retTy: &id}, nil
	})
	r.add("function", "function_signature END", func(s automata.Span, p []any) (any, error) {
		return makeFunction(s, p[0].(funcSig), NewBlock(s, nil, false)), nil
	})
	r.add("function", "function_signature block_0 END", func(s automata.Span, p []any) (any, error) {
		return makeFunction(s, p[0].(funcSig), asBlock(p[1])), nil
	})

	r.add("range", "exp COLON exp_assign", func(s automata.Span, p []any) (any, error) {
		return &Range{Span: s, Start: asExp(p[0]), End: asExp(p[2])}, nil
	})

	cmpOps := []struct {
		term string
		op   BinOp
	}{
		{"DOUBLEEQU", OpEqu}, {"NEQ", OpNeq}, {"LT", OpLt}, {"LEQ", OpLeq}, {"GT", OpGt}, {"GEQ", OpGeq},
	}
	for _, c := range cmpOps {
		op := c.op
		r.add("comparison_op", c.term, func(s automata.Span, p []any) (any, error) {
			return op, nil
		})
	}
	r.add("sum_op", "PLUS", func(s automata.Span, p []any) (any, error) { return OpPlus, nil })
	r.add("sum_op", "MINUS", func(s automata.Span, p []any) (any, error) { return OpMinus, nil })
	r.add("product_op", "TIMES", func(s automata.Span, p []any) (any, error) { return OpTimes, nil })
	r.add("product_op", "MOD", func(s automata.Span, p []any) (any, error) { return OpMod, nil })

	r.add("exp", "exp_return", passThrough)
	r.add("clean_exp", "exp_clean_return", passThrough)

	for _, lhs := range []string{"exp_return", "exp_clean_return"} {
		r.add(lhs, "RETURN", func(s automata.Span, p []any) (any, error) {
			return NewExp(s, ReturnExp{}), nil
		})
		r.add(lhs, "RETURN exp_assign", func(s automata.Span, p []any) (any, error) {
			return NewExp(s, ReturnExp{E: asExp(p[1])}), nil
		})
	}
	r.add("exp_return", "exp_assign", passThrough)
	r.add("exp_clean_return", "exp_clean_assign", passThrough)

	r.add("exp_assign", "lvalue EQU exp_assign", func(s automata.Span, p []any) (any, error) {
		return NewExp(s, AssignExp{LV: asLValue(p[0]), E: asExp(p[2])}), nil
	})
	r.add("exp_assign", "exp_disjunctions", passThrough)
	r.add("exp_clean_assign", "lvalue EQU exp_disjunctions", func(s automata.Span, p []any) (any, error) {
		return NewExp(s, AssignExp{LV: asLValue(p[0]), E: asExp(p[2])}), nil
	})
	r.add("exp_clean_assign", "exp_clean_disjunctions", passThrough)

	binRule := func(op BinOp) automata.Reducer[any] {
		return func(s automata.Span, p []any) (any, error) {
			return NewExp(s, BinExp{Op: op, L: asExp(p[0]), R: asExp(p[2])}), nil
		}
	}
	opRule := func(s automata.Span, p []any) (any, error) {
		return NewExp(s, BinExp{Op: asBinOp(p[1]), L: asExp(p[0]), R: asExp(p[2])}), nil
	}

	r.add("exp_disjunctions", "exp_disjunctions OR exp_conjunctions", binRule(OpOr))
	r.add("exp_disjunctions", "exp_conjunctions", passThrough)
	r.add("exp_clean_disjunctions", "exp_clean_disjunctions OR exp_conjunctions", binRule(OpOr))
	r.add("exp_clean_disjunctions", "exp_clean_conjunctions", passThrough)

	r.add("exp_conjunctions", "exp_conjunctions AND exp_comparisons", binRule(OpAnd))
	r.add("exp_conjunctions", "exp_comparisons", passThrough)
	r.add("exp_clean_conjunctions", "exp_clean_conjunctions AND exp_comparisons", binRule(OpAnd))
	r.add("exp_clean_conjunctions", "exp_clean_comparisons", passThrough)

	r.add("exp_comparisons", "exp_comparisons comparison_op exp_sums", opRule)
	r.add("exp_comparisons", "exp_sums", passThrough)
	r.add("exp_clean_comparisons", "exp_clean_comparisons comparison_op exp_sums", opRule)
	r.add("exp_clean_comparisons", "exp_clean_sums", passThrough)

	r.add("exp_sums", "exp_sums sum_op exp_products", opRule)
	r.add("exp_sums", "exp_products", passThrough)
	r.add("exp_clean_sums", "exp_clean_sums sum_op exp_products", opRule)
	r.add("exp_clean_sums", "exp_clean_products", passThrough)

	r.add("exp_products", "exp_products product_op exp_unary", opRule)
	r.add("exp_products", "exp_unary", passThrough)
	r.add("exp_clean_products", "exp_clean_products product_op exp_unary", opRule)
	r.add("exp_clean_products", "exp_clean_unary", passThrough)

	unaryRule := func(op UnaryOp) automata.Reducer[any] {
		return func(s automata.Span, p []any) (any, error) {
			return NewExp(s, UnaryExp{Op: op, E: asExp(p[1])}), nil
		}
	}
	r.add("exp_unary", "MINUS exp_unary", unaryRule(OpNeg))
	r.add("exp_unary", "NOT exp_unary", unaryRule(OpNot))
	r.add("exp_unary", "exp_powers", passThrough)
	r.add("exp_clean_unary", "NOT exp_unary", unaryRule(OpNot))
	r.add("exp_clean_unary", "exp_powers", passThrough)

	r.add("exp_powers", "exp_atom POW exp_powers", binRule(OpPow))
	r.add("exp_powers", "exp_atom", passThrough)

	r.add("exp_atom", "int", func(s automata.Span, p []any) (any, error) {
		return NewExp(s, IntExp{Value: asToken(p[0]).Int}), nil
	})
	r.add("exp_atom", "string", func(s automata.Span, p []any) (any, error) {
		return NewExp(s, StrExp{Value: asToken(p[0]).Str}), nil
	})
	r.add("exp_atom", "TRUE", func(s automata.Span, p []any) (any, error) {
		return NewExp(s, BoolExp{Value: true}), nil
	})
	r.add("exp_atom", "FALSE", func(s automata.Span, p []any) (any, error) {
		return NewExp(s, BoolExp{Value: false}), nil
	})
	r.add("exp_atom", "lvalue", func(s automata.Span, p []any) (any, error) {
		return NewExp(s, LValueExp{LV: asLValue(p[0])}), nil
	})

	r.add("exp_atom", "intident", func(s automata.Span, p []any) (any, error) {
		t := asToken(p[0])
		return NewExp(s, MulExp{Coef: t.Int, Var: t.Str}), nil
	})
	r.add("exp_atom", "intlpar block_1 RPAR", func(s automata.Span, p []any) (any, error) {
		return NewExp(s, LMulExp{Coef: asToken(p[0]).Int, B: asBlock(p[1])}), nil
	})
	r.add("exp_atom", "LPAR exp rparident", func(s automata.Span, p []any) (any, error) {
		return NewExp(s, RMulExp{E: asExp(p[1]), Var: asToken(p[2]).Str}), nil
	})
	r.add("exp_atom", "identlpar RPAR", func(s automata.Span, p []any) (any, error) {
		return NewExp(s, CallExp{Name: asToken(p[0]).Str}), nil
	})
	r.add("exp_atom", "identlpar call_args RPAR", func(s automata.Span, p []any) (any, error) {
		return NewExp(s, CallExp{Name: asToken(p[0]).Str, Args: asExps(p[1])}), nil
	})

	r.add("exp_atom", "LPAR block_1 RPAR", func(s automata.Span, p []any) (any, error) {
		return NewExp(s, BlockExp{B: asBlock(p[1])}), nil
	})

	r.add("cond_and_block", "exp_assign", func(s automata.Span, p []any) (any, error) {
		return condBlock{cond: asExp(p[0]), block: NewBlock(s, nil, false)}, nil
	})
	r.add("cond_and_block", "exp_assign clean_block_0", func(s automata.Span, p []any) (any, error) {
		return condBlock{cond: asExp(p[0]), block: asBlock(p[1])}, nil
	})
	r.add("cond_and_block", "RETURN exp_assign clean_block_0", func(s automata.Span, p []any) (any, error) {
		return condBlock{cond: asExp(p[1]), block: asBlock(p[2])}, nil
	})

	r.add("call_args", "exp", func(s automata.Span, p []any) (any, error) {
		return []*Exp{asExp(p[0])}, nil
	})
	r.add("call_args", "exp COMMA", func(s automata.Span, p []any) (any, error) {
		return []*Exp{asExp(p[0])}, nil
	})
	r.add("call_args", "exp COMMA call_args", func(s automata.Span, p []any) (any, error) {
		return append([]*Exp{asExp(p[0])}, asExps(p[2])...), nil
	})

	r.add("exp", "IF cond_and_block else_block", func(s automata.Span, p []any) (any, error) {
		cb := asCond(p[1])
		return NewExp(s, IfExp{Cond: cb.cond, Then: cb.block, Else: asElse(p[2])}), nil
	})

	r.add("else_block", "END", func(s automata.Span, p []any) (any, error) {
		return &Else{Span: s, Val: ElseEnd{}}, nil
	})
	r.add("else_block", "ELSE END", func(s automata.Span, p []any) (any, error) {
		return &Else{Span: s, Val: ElseBlock{B: NewBlock(s, nil, false)}}, nil
	})
	r.add("else_block", "ELSE block_0 END", func(s automata.Span, p []any) (any, error) {
		return &Else{Span: s, Val: ElseBlock{B: asBlock(p[1])}}, nil
	})
	r.add("else_block", "ELSEIF cond_and_block else_block", func(s automata.Span, p []any) (any, error) {
		cb := asCond(p[1])
		return &Else{Span: s, Val: ElseIf{Cond: cb.cond, Then: cb.block, Else: asElse(p[2])}}, nil
	})

	r.add("exp", "FOR located_ident EQU range END", func(s automata.Span, p []any) (any, error) {
		return NewExp(s, ForExp{Var: asIdent(p[1]), Range: p[3].(*Range), Body: NewBlock(s, nil, false)}), nil
	})
	r.add("exp", "FOR located_ident EQU range clean_block_0 END", func(s automata.Span, p []any) (any, error) {
		return NewExp(s, ForExp{Var: asIdent(p[1]), Range: p[3].(*Range), Body: asBlock(p[4])}), nil
	})

	r.add("exp", "WHILE cond_and_block END", func(s automata.Span, p []any) (any, error) {
		cb := asCond(p[1])
		return NewExp(s, WhileExp{Cond: cb.cond, Body: cb.block}), nil
	})

	r.add("lvalue", "exp_atom DOT ident", func(s automata.Span, p []any) (any, error) {
		return &LValue{Span: s, In: asExp(p[0]), Name: asToken(p[2]).Str}, nil
	})
	r.add("lvalue", "ident", func(s automata.Span, p []any) (any, error) {
		return &LValue{Span: s, Name: asToken(p[0]).Str}, nil
	})

	// Blocks. The trailing-semicolon flag records whether the block ends
	// with a semicolon, which suppresses the block's value.
	r.add("block_0", "exp", func(s automata.Span, p []any) (any, error) {
		return NewBlock(s, []*Exp{asExp(p[0])}, false), nil
	})
	r.add("block_0", "SEMICOLON", func(s automata.Span, p []any) (any, error) {
		return NewBlock(s, nil, true), nil
	})
	r.add("block_0", "SEMICOLON exp", func(s automata.Span, p []any) (any, error) {
		return NewBlock(s, []*Exp{asExp(p[1])}, false), nil
	})
	r.add("block_0", "block_0 SEMICOLON", func(s automata.Span, p []any) (any, error) {
		b := asBlock(p[0])
		return NewBlock(s, b.Exps, b.TrailingSemi || !asToken(p[1]).Virtual), nil
	})
	r.add("block_0", "block_0 SEMICOLON exp", func(s automata.Span, p []any) (any, error) {
		b := asBlock(p[0])
		return NewBlock(s, append(b.Exps, asExp(p[2])), false), nil
	})

	r.add("clean_block_0", "clean_exp", func(s automata.Span, p []any) (any, error) {
		return NewBlock(s, []*Exp{asExp(p[0])}, false), nil
	})
	r.add("clean_block_0", "SEMICOLON", func(s automata.Span, p []any) (any, error) {
		return NewBlock(s, nil, true), nil
	})
	r.add("clean_block_0", "SEMICOLON exp", func(s automata.Span, p []any) (any, error) {
		return NewBlock(s, []*Exp{asExp(p[1])}, false), nil
	})
	r.add("clean_block_0", "clean_block_0 SEMICOLON", func(s automata.Span, p []any) (any, error) {
		b := asBlock(p[0])
		return NewBlock(s, b.Exps, b.TrailingSemi || !asToken(p[1]).Virtual), nil
	})
	r.add("clean_block_0", "clean_block_0 SEMICOLON exp", func(s automata.Span, p []any) (any, error) {
		b := asBlock(p[0])
		return NewBlock(s, append(b.Exps, asExp(p[2])), false), nil
	})

	r.add("block_1", "exp", func(s automata.Span, p []any) (any, error) {
		return NewBlock(s, []*Exp{asExp(p[0])}, false), nil
	})
	r.add("block_1", "exp block_2", func(s automata.Span, p []any) (any, error) {
		b := asBlock(p[1])
		return NewBlock(s, append([]*Exp{asExp(p[0])}, b.Exps...), b.TrailingSemi), nil
	})
	r.add("block_2", "SEMICOLON", func(s automata.Span, p []any) (any, error) {
		return NewBlock(s, nil, true), nil
	})
	r.add("block_2", "SEMICOLON block_2", func(s automata.Span, p []any) (any, error) {
		b := asBlock(p[1])
		return NewBlock(s, b.Exps, b.TrailingSemi), nil
	})
	r.add("block_2", "SEMICOLON exp", func(s automata.Span, p []any) (any, error) {
		return NewBlock(s, []*Exp{asExp(p[1])}, false), nil
	})
	r.add("block_2", "SEMICOLON exp block_2", func(s automata.Span, p []any) (any, error) {
		b := asBlock(p[2])
		return NewBlock(s, append([]*Exp{asExp(p[1])}, b.Exps...), b.TrailingSemi), nil
	})

	return r
}

func passThrough(s automata.Span, p []any) (any, error) {
	return p[0], nil
}

func makeFunction(span automata.Span, sig funcSig, body *Block) *Function {
	ret := Any()
	if sig.retTy != nil {
		ret = TypeFromName(sig.retTy.Name)
	}
	return &Function{
		Span:   span,
		Name:   sig.head.name,
		Params: sig.head.params,
		RetTy:  ret,
		Body:   body,
	}
}

var (
	grammarOnce sync.Once
	grammar     *automata.Grammar
	table       *automata.Table
	reducers    []automata.Reducer[any]
)

// surfaceGrammar builds the LR(1) machine once; the grammar is static, so a
// build failure is a programming error.
func surfaceGrammar() (*automata.Grammar, *automata.Table, []automata.Reducer[any]) {
	grammarOnce.Do(func() {
		rules := surfaceRules()
		g, err := automata.NewGrammar(termNames[1:], nontermNames, rules.prods, "file")
		if err != nil {
			panic("lang: " + err.Error())
		}
		t, err := g.BuildTable()
		if err != nil {
			panic("lang: " + err.Error())
		}
		grammar = g
		table = t
		reducers = append([]automata.Reducer[any]{nil}, rules.reducers...)
	})
	return grammar, table, reducers
}
