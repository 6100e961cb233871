package netlist

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"pjulia/pkg/automata"
)

type nlToken struct {
	kind nlTokenKind
	str  string
}

type nlTokenKind int

const (
	nlIdent nlTokenKind = iota
	nlNum

	nlInput
	nlOutput
	nlVar
	nlIn
	nlNot
	nlOr
	nlXor
	nlAnd
	nlNand
	nlMux
	nlReg
	nlRam
	nlRom
	nlSelect
	nlSlice
	nlConcat

	nlComma
	nlColon
	nlEquals
)

var nlKeywords = map[string]nlTokenKind{
	"INPUT":  nlInput,
	"OUTPUT": nlOutput,
	"VAR":    nlVar,
	"IN":     nlIn,
	"NOT":    nlNot,
	"OR":     nlOr,
	"XOR":    nlXor,
	"AND":    nlAnd,
	"NAND":   nlNand,
	"MUX":    nlMux,
	"REG":    nlReg,
	"RAM":    nlRam,
	"ROM":    nlRom,
	"SELECT": nlSelect,
	"SLICE":  nlSlice,
	"CONCAT": nlConcat,
}

var nlTermNames = []string{
	"ident", "uint",
	"INPUT", "OUTPUT", "VAR", "IN",
	"NOT", "OR", "XOR", "AND", "NAND",
	"MUX", "REG", "RAM", "ROM",
	"SELECT", "SLICE", "CONCAT",
	"COMMA", "COLON", "EQUALS",
}

func nlTermOf(t nlToken) int { return int(t.kind) + 1 }

type nlLexRule struct {
	pattern automata.Regex
	produce automata.Producer[*nlToken]
}

func nlLexRules() []nlLexRule {
	lit := automata.Lit
	skip := func(automata.Span, string) (*nlToken, error) { return nil, nil }
	punct := func(pattern automata.Regex, kind nlTokenKind) nlLexRule {
		return nlLexRule{pattern: pattern, produce: func(automata.Span, string) (*nlToken, error) {
			return &nlToken{kind: kind}, nil
		}}
	}
	return []nlLexRule{
		{pattern: automata.Cat(
			automata.Alt(lit(' '), lit('\t'), lit('\n')),
			automata.Rep(automata.Alt(lit(' '), lit('\t'), lit('\n'))),
		), produce: skip},
		{pattern: automata.Cat(lit('#'), automata.Rep(automata.Behaved()), lit('\n')), produce: skip},

		{pattern: automata.Cat(
			automata.Alt(automata.Alpha(), lit('_')),
			automata.Rep(automata.Alt(automata.Alpha(), lit('_'), automata.Num())),
		), produce: func(span automata.Span, text string) (*nlToken, error) {
			if kw, ok := nlKeywords[text]; ok {
				return &nlToken{kind: kw}, nil
			}
			return &nlToken{kind: nlIdent, str: text}, nil
		}},
		{pattern: automata.Cat(automata.Num(), automata.Rep(automata.Num())),
			produce: func(span automata.Span, text string) (*nlToken, error) {
				return &nlToken{kind: nlNum, str: text}, nil
			}},

		punct(lit(','), nlComma),
		punct(lit(':'), nlColon),
		punct(lit('='), nlEquals),
	}
}

var nlNonterms = []string{
	"netlist",
	"decl", "name_list", "inputs", "outputs", "vars", "decl_list",
	"defs", "def", "op", "bin_op_type", "arg",
}

func parseBits(repr string) (uint32, error) {
	v, err := strconv.ParseUint(repr, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("Number too big.")
	}
	return uint32(v), nil
}

func nlRules() ([]automata.NamedProd, []automata.Reducer[any]) {
	var prods []automata.NamedProd
	var reds []automata.Reducer[any]
	add := func(lhs, rhs string, fn automata.Reducer[any]) {
		prods = append(prods, automata.NamedProd{LHS: lhs, RHS: strings.Fields(rhs)})
		reds = append(reds, fn)
	}
	tok := func(v any) nlToken { return v.(nlToken) }

	add("netlist", "inputs outputs vars IN defs", func(s automata.Span, p []any) (any, error) {
		return &Netlist{
			Inputs:  p[0].([]string),
			Outputs: p[1].([]string),
			Vars:    p[2].([]VarDecl),
			Defs:    p[4].([]NamedDef),
		}, nil
	})
	add("netlist", "inputs outputs vars IN", func(s automata.Span, p []any) (any, error) {
		return &Netlist{
			Inputs:  p[0].([]string),
			Outputs: p[1].([]string),
			Vars:    p[2].([]VarDecl),
		}, nil
	})

	add("inputs", "INPUT name_list", func(s automata.Span, p []any) (any, error) { return p[1], nil })
	add("inputs", "INPUT", func(s automata.Span, p []any) (any, error) { return []string{}, nil })
	add("outputs", "OUTPUT name_list", func(s automata.Span, p []any) (any, error) { return p[1], nil })
	add("outputs", "OUTPUT", func(s automata.Span, p []any) (any, error) { return []string{}, nil })
	add("vars", "VAR decl_list", func(s automata.Span, p []any) (any, error) { return p[1], nil })
	add("vars", "VAR", func(s automata.Span, p []any) (any, error) { return []VarDecl{}, nil })

	add("name_list", "name_list COMMA ident", func(s automata.Span, p []any) (any, error) {
		return append(p[0].([]string), tok(p[2]).str), nil
	})
	add("name_list", "ident", func(s automata.Span, p []any) (any, error) {
		return []string{tok(p[0]).str}, nil
	})
	add("decl_list", "decl_list COMMA decl", func(s automata.Span, p []any) (any, error) {
		return append(p[0].([]VarDecl), p[2].(VarDecl)), nil
	})
	add("decl_list", "decl", func(s automata.Span, p []any) (any, error) {
		return []VarDecl{p[0].(VarDecl)}, nil
	})

	add("decl", "ident", func(s automata.Span, p []any) (any, error) {
		return VarDecl{Name: tok(p[0]).str, Type: ValueType{Bits: 1}}, nil
	})
	add("decl", "ident COLON uint", func(s automata.Span, p []any) (any, error) {
		bits, err := parseBits(tok(p[2]).str)
		if err != nil {
			return nil, err
		}
		if bits == 0 {
			return nil, fmt.Errorf("Illegal length (0) for a bit array.")
		}
		return VarDecl{Name: tok(p[0]).str, Type: ValueType{Bits: bits}}, nil
	})

	add("defs", "defs def", func(s automata.Span, p []any) (any, error) {
		return append(p[0].([]NamedDef), p[1].(NamedDef)), nil
	})
	add("defs", "def", func(s automata.Span, p []any) (any, error) {
		return []NamedDef{p[0].(NamedDef)}, nil
	})

	add("def", "ident EQUALS op", func(s automata.Span, p []any) (any, error) {
		return NamedDef{Name: tok(p[0]).str, Def: p[2].(Def)}, nil
	})

	add("op", "arg", func(s automata.Span, p []any) (any, error) {
		return FwdDef{A: p[0].(Arg)}, nil
	})
	add("op", "NOT arg", func(s automata.Span, p []any) (any, error) {
		return NotDef{A: p[1].(Arg)}, nil
	})
	add("op", "bin_op_type arg arg", func(s automata.Span, p []any) (any, error) {
		return BinDef{Op: p[0].(BinOpType), L: p[1].(Arg), R: p[2].(Arg)}, nil
	})
	add("bin_op_type", "OR", func(s automata.Span, p []any) (any, error) { return BinOr, nil })
	add("bin_op_type", "XOR", func(s automata.Span, p []any) (any, error) { return BinXor, nil })
	add("bin_op_type", "AND", func(s automata.Span, p []any) (any, error) { return BinAnd, nil })
	add("bin_op_type", "NAND", func(s automata.Span, p []any) (any, error) { return BinNand, nil })

	add("op", "MUX arg arg arg", func(s automata.Span, p []any) (any, error) {
		return MuxDef{Sel: p[1].(Arg), L: p[2].(Arg), R: p[3].(Arg)}, nil
	})
	add("op", "REG ident", func(s automata.Span, p []any) (any, error) {
		return RegDef{Source: tok(p[1]).str}, nil
	})
	add("op", "RAM uint uint arg arg arg arg", func(s automata.Span, p []any) (any, error) {
		addrSize, err := parseBits(tok(p[1]).str)
		if err != nil {
			return nil, err
		}
		wordSize, err := parseBits(tok(p[2]).str)
		if err != nil {
			return nil, err
		}
		return RamDef{RamData{
			AddressSize: addrSize,
			WordSize:    wordSize,
			ReadAddress: p[3].(Arg),
			WriteEnable: p[4].(Arg),
			WriteAddr:   p[5].(Arg),
			Data:        p[6].(Arg),
		}}, nil
	})
	add("op", "ROM uint uint arg", func(s automata.Span, p []any) (any, error) {
		addrSize, err := parseBits(tok(p[1]).str)
		if err != nil {
			return nil, err
		}
		wordSize, err := parseBits(tok(p[2]).str)
		if err != nil {
			return nil, err
		}
		return RomDef{RomData{
			AddressSize: addrSize,
			WordSize:    wordSize,
			ReadAddress: p[3].(Arg),
		}}, nil
	})
	add("op", "SELECT uint arg", func(s automata.Span, p []any) (any, error) {
		index, err := parseBits(tok(p[1]).str)
		if err != nil {
			return nil, err
		}
		return SelectDef{Index: index, Bus: p[2].(Arg)}, nil
	})
	add("op", "SLICE uint uint arg", func(s automata.Span, p []any) (any, error) {
		start, err := parseBits(tok(p[1]).str)
		if err != nil {
			return nil, err
		}
		end, err := parseBits(tok(p[2]).str)
		if err != nil {
			return nil, err
		}
		return SliceDef{Start: start, End: end, Bus: p[3].(Arg)}, nil
	})
	add("op", "CONCAT arg arg", func(s automata.Span, p []any) (any, error) {
		return ConcatDef{L: p[1].(Arg), R: p[2].(Arg)}, nil
	})

	add("arg", "ident", func(s automata.Span, p []any) (any, error) {
		return Arg{Var: tok(p[0]).str}, nil
	})
	add("arg", "uint", func(s automata.Span, p []any) (any, error) {
		repr := tok(p[0]).str
		bits := make([]bool, 0, len(repr))
		for _, c := range repr {
			if c != '0' && c != '1' {
				return nil, fmt.Errorf("Expected a list of '1's and '0's")
			}
			bits = append(bits, c == '1')
		}
		return Arg{Const: &Value{Bits: bits}}, nil
	})

	return prods, reds
}

var (
	nlParserOnce sync.Once
	nlGrammar    *automata.Grammar
	nlTable      *automata.Table
	nlReducers   []automata.Reducer[any]
	nlDFA        *automata.DFA
	nlProducers  []automata.Producer[*nlToken]
)

func nlParser() {
	nlParserOnce.Do(func() {
		prods, reds := nlRules()
		g, err := automata.NewGrammar(nlTermNames, nlNonterms, prods, "netlist")
		if err != nil {
			panic("netlist: " + err.Error())
		}
		t, err := g.BuildTable()
		if err != nil {
			panic("netlist: " + err.Error())
		}
		rules := nlLexRules()
		patterns := make([]automata.Regex, len(rules))
		producers := make([]automata.Producer[*nlToken], len(rules))
		for i, r := range rules {
			patterns[i] = r.pattern
			producers[i] = r.produce
		}
		dfa, err := automata.BuildDFA(patterns)
		if err != nil {
			panic("netlist: " + err.Error())
		}
		nlGrammar, nlTable = g, t
		nlReducers = append([]automata.Reducer[any]{nil}, reds...)
		nlDFA, nlProducers = dfa, producers
	})
}

// Parse reads a netlist description.
func Parse(fileName, contents string) (*Netlist, error) {
	nlParser()
	src := automata.NewSource(fileName, contents)
	tok := automata.NewTokenizer(nlDFA, nlProducers, src)

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
				Term: nlTermOf(*item.Tok),
				Val:  *item.Tok,
			}, nil
		}
	}

	pda := automata.NewPDA[any](nlGrammar, nlTable)
	out, err := pda.Parse(next, func() (any, error) {
		return nil, fmt.Errorf("Expected a netlist")
	}, nlReducers)
	if err != nil {
		return nil, err
	}
	return out.(*Netlist), nil
}
