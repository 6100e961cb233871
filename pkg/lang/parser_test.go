package lang

import (
	"strings"
	"testing"
)

func parseOne(t *testing.T, src string) []*Decl {
	t.Helper()
	decls, err := Parse("test.jl", src)
	if err != nil {
		t.Fatalf("Parse(%q): %v", src, err)
	}
	return decls
}

func expDecl(t *testing.T, d *Decl) *Exp {
	t.Helper()
	ed, ok := d.Val.(ExpDecl)
	if !ok {
		t.Fatalf("expected an expression declaration, got %T", d.Val)
	}
	return ed.E
}

func TestParseEmpty(t *testing.T) {
	decls := parseOne(t, "")
	if len(decls) != 0 {
		t.Fatalf("expected no declarations, got %d", len(decls))
	}
}

func TestParseAssignment(t *testing.T) {
	decls := parseOne(t, "x = 1\n")
	if len(decls) != 1 {
		t.Fatalf("expected 1 declaration, got %d", len(decls))
	}
	e := expDecl(t, decls[0])
	a, ok := e.Val.(AssignExp)
	if !ok {
		t.Fatalf("expected an assignment, got %T", e.Val)
	}
	if a.LV.Name != "x" || a.LV.In != nil {
		t.Fatalf("bad lvalue: %+v", a.LV)
	}
	if v, ok := a.E.Val.(IntExp); !ok || v.Value != 1 {
		t.Fatalf("bad rhs: %+v", a.E.Val)
	}
}

func TestParseSemicolonInsertion(t *testing.T) {
	// A newline after an identifier ends the statement; after '=' it does
	// not.
	decls := parseOne(t, "x =\n 1\ny = 2\n")
	if len(decls) != 2 {
		t.Fatalf("expected 2 declarations, got %d", len(decls))
	}
}

func TestParsePrecedence(t *testing.T) {
	decls := parseOne(t, "a = 1 + 2 * 3\n")
	a := expDecl(t, decls[0]).Val.(AssignExp)
	sum, ok := a.E.Val.(BinExp)
	if !ok || sum.Op != OpPlus {
		t.Fatalf("expected the sum at the root, got %+v", a.E.Val)
	}
	prod, ok := sum.R.Val.(BinExp)
	if !ok || prod.Op != OpTimes {
		t.Fatalf("expected the product on the right, got %+v", sum.R.Val)
	}
}

func TestParsePowerRightAssociative(t *testing.T) {
	decls := parseOne(t, "a = 2 ^ 3 ^ 4\n")
	a := expDecl(t, decls[0]).Val.(AssignExp)
	outer := a.E.Val.(BinExp)
	if outer.Op != OpPow {
		t.Fatalf("expected a power, got %v", outer.Op)
	}
	if l, ok := outer.L.Val.(IntExp); !ok || l.Value != 2 {
		t.Fatalf("expected 2 on the left, got %+v", outer.L.Val)
	}
	if _, ok := outer.R.Val.(BinExp); !ok {
		t.Fatal("expected the nested power on the right")
	}
}

func TestParseImplicitMultiplication(t *testing.T) {
	decls := parseOne(t, "a = 3x\nb = 3(x)\nc = (x)y\n")

	m := expDecl(t, decls[0]).Val.(AssignExp).E.Val.(MulExp)
	if m.Coef != 3 || m.Var != "x" {
		t.Fatalf("3x parsed as %+v", m)
	}

	lm := expDecl(t, decls[1]).Val.(AssignExp).E.Val.(LMulExp)
	if lm.Coef != 3 || len(lm.B.Exps) != 1 {
		t.Fatalf("3(x) parsed as %+v", lm)
	}

	rm := expDecl(t, decls[2]).Val.(AssignExp).E.Val.(RMulExp)
	if rm.Var != "y" {
		t.Fatalf("(x)y parsed as %+v", rm)
	}
}

func TestParseStruct(t *testing.T) {
	decls := parseOne(t, "mutable struct Point\n x::Int64\n y::Int64\nend\n")
	sd, ok := decls[0].Val.(StructureDecl)
	if !ok {
		t.Fatalf("expected a structure, got %T", decls[0].Val)
	}
	s := sd.S
	if !s.Mutable || s.Name.Name != "Point" || len(s.Fields) != 2 {
		t.Fatalf("bad structure: %+v", s)
	}
	if s.Fields[0].Name.Name != "x" || s.Fields[0].Ty != Int64() {
		t.Fatalf("bad field: %+v", s.Fields[0])
	}
}

func TestParseFunction(t *testing.T) {
	decls := parseOne(t, "function f(x::Int64, y)::Bool\n x < y\nend\n")
	fd, ok := decls[0].Val.(FunctionDecl)
	if !ok {
		t.Fatalf("expected a function, got %T", decls[0].Val)
	}
	f := fd.F
	if f.Name != "f" || len(f.Params) != 2 {
		t.Fatalf("bad function: %+v", f)
	}
	if f.Params[0].Ty != Int64() || f.Params[1].Ty != Any() {
		t.Fatalf("bad parameter types: %+v", f.Params)
	}
	if f.RetTy != Bool() {
		t.Fatalf("bad return type: %v", f.RetTy)
	}
	if f.Body.TrailingSemi {
		t.Fatal("body should end without a trailing semicolon")
	}
}

func TestParseTrailingSemicolonInBody(t *testing.T) {
	decls := parseOne(t, "function f()\n 1;\nend\n")
	f := decls[0].Val.(FunctionDecl).F
	if !f.Body.TrailingSemi {
		t.Fatal("expected a trailing semicolon")
	}
}

func TestParseIfElseifElse(t *testing.T) {
	decls := parseOne(t, "if a\n 1\nelseif b\n 2\nelse\n 3\nend\n")
	ifx := expDecl(t, decls[0]).Val.(IfExp)
	elif, ok := ifx.Else.Val.(ElseIf)
	if !ok {
		t.Fatalf("expected an elseif, got %T", ifx.Else.Val)
	}
	if _, ok := elif.Else.Val.(ElseBlock); !ok {
		t.Fatalf("expected a terminal else, got %T", elif.Else.Val)
	}
}

func TestParseIfAfterElseRejected(t *testing.T) {
	_, err := Parse("test.jl", "if a\n 1\nelse if b\n 2\nend\nend\n")
	if err == nil {
		t.Fatal("expected the if-after-else rejection")
	}
	if !strings.Contains(err.Error(), "elseif") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestParseForWhile(t *testing.T) {
	decls := parseOne(t, "for i = 1:10\n f(i)\nend\nwhile x < 3\n x = x + 1\nend\n")
	fe := expDecl(t, decls[0]).Val.(ForExp)
	if fe.Var.Name != "i" {
		t.Fatalf("bad loop variable: %+v", fe.Var)
	}
	if _, ok := fe.Range.Start.Val.(IntExp); !ok {
		t.Fatalf("bad range start: %+v", fe.Range.Start.Val)
	}
	we := expDecl(t, decls[1]).Val.(WhileExp)
	if _, ok := we.Cond.Val.(BinExp); !ok {
		t.Fatalf("bad while condition: %+v", we.Cond.Val)
	}
}

func TestParseCallAndFieldAccess(t *testing.T) {
	decls := parseOne(t, "r = f(a, 1)\ns = p.x\n")
	c := expDecl(t, decls[0]).Val.(AssignExp).E.Val.(CallExp)
	if c.Name != "f" || len(c.Args) != 2 {
		t.Fatalf("bad call: %+v", c)
	}
	lv := expDecl(t, decls[1]).Val.(AssignExp).E.Val.(LValueExp).LV
	if lv.Name != "x" || lv.In == nil {
		t.Fatalf("bad field access: %+v", lv)
	}
}

func TestParseStringEscapes(t *testing.T) {
	decls := parseOne(t, "s = \"a\\n\\\"b\\\\\"\n")
	str := expDecl(t, decls[0]).Val.(AssignExp).E.Val.(StrExp)
	if str.Value != "a\n\"b\\" {
		t.Fatalf("bad string value: %q", str.Value)
	}
}

func TestParseComments(t *testing.T) {
	decls := parseOne(t, "# a comment\nx = 1 # trailing\ny = 2\n")
	if len(decls) != 2 {
		t.Fatalf("expected 2 declarations, got %d", len(decls))
	}
}

func TestParseIntOverflow(t *testing.T) {
	_, err := Parse("test.jl", "x = 99999999999999999999\n")
	if err == nil {
		t.Fatal("expected an out-of-range error")
	}
}

func TestParseUnexpectedToken(t *testing.T) {
	_, err := Parse("test.jl", "x = = 1\n")
	if err == nil {
		t.Fatal("expected a syntax error")
	}
	if !strings.Contains(err.Error(), "Unexpected token") {
		t.Fatalf("unexpected error: %v", err)
	}
}
