package typing

import (
	"strings"
	"testing"

	"pjulia/pkg/lang"
)

func check(t *testing.T, src string) (*Program, error) {
	t.Helper()
	decls, err := lang.Parse("test.jl", src)
	if err != nil {
		t.Fatalf("Parse(%q): %v", src, err)
	}
	return Check(decls)
}

func mustCheck(t *testing.T, src string) *Program {
	t.Helper()
	prog, err := check(t, src)
	if err != nil {
		t.Fatalf("Check(%q): %v", src, err)
	}
	return prog
}

func mustFail(t *testing.T, src, fragment string) {
	t.Helper()
	_, err := check(t, src)
	if err == nil {
		t.Fatalf("Check(%q): expected an error", src)
	}
	if !strings.Contains(err.Error(), fragment) {
		t.Fatalf("Check(%q): error %q does not mention %q", src, err, fragment)
	}
}

func TestCheckOverloadsResolve(t *testing.T) {
	prog := mustCheck(t, `struct P
p::Int64
end
function f(x::Int64)
x + 1
end
function f(x::Bool)
0
end
f(3)
`)
	if len(prog.Functions["f"]) != 2 {
		t.Fatalf("expected 2 overloads, got %d", len(prog.Functions["f"]))
	}
	if len(prog.Globals) != 1 {
		t.Fatalf("expected 1 global expression, got %d", len(prog.Globals))
	}
}

func TestCheckIncompatibleOverloadArg(t *testing.T) {
	// P() types as Struct P; f has a single overload, so the argument is
	// checked against its declared Int64 parameter and the check fires.
	mustFail(t, `struct P
p::Int64
end
function f(x::Int64)
x + 1
end
f(P())
`, "Incompatible types")
}

func TestCheckAmbiguousCall(t *testing.T) {
	mustFail(t, `function g(x, y::Int64)
1
end
function g(x::Int64, y)
2
end
g(1, 1)
`, "Ambiguous call")
}

func TestCheckDuplicateOverload(t *testing.T) {
	mustFail(t, `function f(x::Int64)
1
end
function f(y::Int64)
2
end
`, "exact same signature")
}

func TestCheckReservedName(t *testing.T) {
	mustFail(t, `function print(x)
1
end
`, "reserved name")
}

func TestCheckMutableFieldAssign(t *testing.T) {
	mustCheck(t, `mutable struct S
a
end
s = S()
s.a = 3
`)
	mustFail(t, `struct T
a
end
t = T()
t.a = 3
`, "mutable")
}

func TestCheckDuplicateStruct(t *testing.T) {
	mustFail(t, `struct S
end
struct S
end
`, "already taken")
}

func TestCheckDuplicateFieldAcrossStructs(t *testing.T) {
	mustFail(t, `struct A
x
end
struct B
x
end
`, "field name 'x'")
}

func TestCheckUnknownFieldType(t *testing.T) {
	mustFail(t, `struct A
x::Missing
end
`, "malformed")
}

func TestCheckSelfReferentialStruct(t *testing.T) {
	mustCheck(t, `struct List
head::Int64
tail::List
end
`)
}

func TestCheckUnknownVariable(t *testing.T) {
	mustFail(t, "y = x\n", "No variable named 'x'")
}

func TestCheckArithmeticTypes(t *testing.T) {
	mustFail(t, "x = 1 + \"s\"\n", "No such operation")
	mustCheck(t, "x = 1 + 2\nb = x < 3\nc = b && true\n")
	mustFail(t, "b = 1 && 2\n", "No such operation")
}

func TestCheckConditionMustBeBool(t *testing.T) {
	mustFail(t, "if 1\n 2\nend\n", "boolean context")
	mustCheck(t, "if true\n 2\nend\n")
}

func TestCheckFieldNarrowing(t *testing.T) {
	prog := mustCheck(t, `struct P
x::Int64
end
function f(p)
p.x
end
`)
	f := prog.Functions["f"][0]
	access := f.Body.Exps[0].Val.(lang.LValueExp).LV
	if access.In.Ty != lang.Struct("P") {
		t.Fatalf("receiver not narrowed: %v", access.In.Ty)
	}
	if f.Body.Exps[0].Ty != lang.Int64() {
		t.Fatalf("field access type: %v", f.Body.Exps[0].Ty)
	}
}

func TestCheckScopeResolution(t *testing.T) {
	prog := mustCheck(t, `g = 1
function f()
x = 2
y = x + g
y
end
`)
	f := prog.Functions["f"][0]
	// y = x + g : x assigned in the body is local, g is global.
	sum := f.Body.Exps[1].Val.(lang.AssignExp).E.Val.(lang.BinExp)
	xRef := sum.L.Val.(lang.LValueExp).LV
	gRef := sum.R.Val.(lang.LValueExp).LV
	if xRef.Scope != lang.ScopeLocal {
		t.Fatal("x should resolve to the local scope")
	}
	if gRef.Scope != lang.ScopeGlobal {
		t.Fatal("g should resolve to the global scope")
	}
}

func TestCheckImplicitReturn(t *testing.T) {
	mustCheck(t, `function f()::Int64
1 + 2
end
`)
	mustFail(t, `function f()::Int64
true
end
`, "implicit return")
}

func TestCheckExplicitReturn(t *testing.T) {
	mustCheck(t, `function f(x)::Int64
if x
return 1
end
2
end
`)
	mustFail(t, `function f()::Int64
return true
end
`, "Mismatching return types")
}

func TestCheckTypeIdempotence(t *testing.T) {
	src := `struct P
x::Int64
end
function f(p, n::Int64)
p.x + n
end
g = 1
h = f(P(), g)
`
	decls, err := lang.Parse("test.jl", src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, err := Check(decls); err != nil {
		t.Fatalf("first Check: %v", err)
	}
	f := decls[1].Val.(lang.FunctionDecl).F
	firstTy := f.Body.Exps[0].Ty
	if _, err := Check(decls); err != nil {
		t.Fatalf("second Check: %v", err)
	}
	if f.Body.Exps[0].Ty != firstTy {
		t.Fatalf("typing is not idempotent: %v then %v", firstTy, f.Body.Exps[0].Ty)
	}
}

func TestCheckForLoopInduction(t *testing.T) {
	prog := mustCheck(t, `function f()
s = 0
for i = 1:10
s = s + i
end
s
end
`)
	if prog == nil {
		t.Fatal("nil program")
	}
	// The loop body assignment to s refers to the function-level local.
	mustFail(t, `for i = 1:3
end
i
`, "No variable named 'i'")
}

func TestCheckNothingVariable(t *testing.T) {
	mustCheck(t, "x = nothing\n")
}
