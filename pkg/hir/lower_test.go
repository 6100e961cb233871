package hir

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pjulia/pkg/lang"
	"pjulia/pkg/typing"
)

func lower(t *testing.T, src string) *Source {
	t.Helper()
	decls, err := lang.Parse("test.jl", src)
	require.NoError(t, err)
	prog, err := typing.Check(decls)
	require.NoError(t, err)
	out, err := Lower(prog)
	require.NoError(t, err)
	return out
}

func findFn(t *testing.T, s *Source, name string) *Function {
	t.Helper()
	for _, d := range s.Decls {
		if f, ok := d.(*Function); ok && f.Name == name {
			return f
		}
	}
	t.Fatalf("function %q not found", name)
	return nil
}

func TestLowerEntrypoint(t *testing.T) {
	s := lower(t, "x = 1\ny = x + 2\n")
	require.Equal(t, "__start", s.Entrypoint)

	assert.Contains(t, s.Globals, "_gx")
	assert.Contains(t, s.Globals, "_gy")
	assert.Contains(t, s.Globals, "_gnothing")

	entry := findFn(t, s, "__start")
	require.NotEmpty(t, entry.Body.Stmts)
	first := entry.Body.Stmts[0].(CallStmt)
	assert.Equal(t, VarLV{Name: "_gx"}, first.Dest)
	assert.Equal(t, Assign{Src: Const{Ty: Int64Ty(), V: 1}}, first.C)
}

func TestLowerEntrypointNameAvoidsCollision(t *testing.T) {
	s := lower(t, "function __start()\n 1\nend\nx = 2\n")
	assert.Equal(t, "__start0", s.Entrypoint)
}

func TestLowerDeterminism(t *testing.T) {
	src := `struct P
a::Int64
end
function f(x::Int64)
x + 1
end
function f(x::Bool)
0
end
p = P()
q = f(3)
`
	a := lower(t, src)
	b := lower(t, src)
	assert.Equal(t, a.String(), b.String())
}

func TestLowerPowBecomesNative(t *testing.T) {
	s := lower(t, "x = 2 ^ 3\n")
	entry := findFn(t, s, "__start")
	var found bool
	for _, stmt := range entry.Body.Stmts {
		if cs, ok := stmt.(CallStmt); ok {
			if c, ok := cs.C.(Call); ok && c.Name == "pow" && c.Native {
				found = true
			}
		}
	}
	assert.True(t, found, "expected a native pow call")
}

func TestLowerForLoopBootstrap(t *testing.T) {
	s := lower(t, "function f()\ns = 0\nfor i = 1:3\ns = s + i\nend\ns\nend\n")
	f := findFn(t, s, "f")

	// Find the while; the statement immediately before it must set the loop
	// condition, and the statement before that sets i to its start value.
	var whileAt = -1
	for i, stmt := range f.Body.Stmts {
		if _, ok := stmt.(WhileStmt); ok {
			whileAt = i
			break
		}
	}
	require.GreaterOrEqual(t, whileAt, 1, "no while emitted")

	boot := f.Body.Stmts[whileAt-1].(CallStmt)
	cond, ok := boot.C.(Bin)
	require.True(t, ok, "bootstrap must be a comparison, got %T", boot.C)
	assert.Equal(t, OpLeq, cond.Op)
	assert.Equal(t, Var{Name: "i"}, cond.A)

	w := f.Body.Stmts[whileAt].(WhileStmt)
	assert.Equal(t, Var{Name: boot.Dest.(VarLV).Name}, w.Cond)

	// Tail of the body: i <- i + 1 then the condition update.
	n := len(w.Body.Stmts)
	require.GreaterOrEqual(t, n, 2)
	inc := w.Body.Stmts[n-2].(CallStmt)
	assert.Equal(t, VarLV{Name: "i"}, inc.Dest)
	upd := w.Body.Stmts[n-1].(CallStmt)
	assert.Equal(t, boot.Dest, upd.Dest)

	assert.Contains(t, f.Vars, "i")
}

func TestLowerDispatchThunk(t *testing.T) {
	s := lower(t, `function f(x::Int64)
x + 1
end
function f(x)
0
end
y = f(3)
`)
	// Overloads get indexed names, the thunk keeps the plain name.
	f0 := findFn(t, s, "f_0")
	f1 := findFn(t, s, "f_1")
	thunk := findFn(t, s, "f")
	assert.Equal(t, []string{"x"}, f0.Args)
	assert.Equal(t, []string{"x"}, f1.Args)
	assert.Equal(t, []string{"x"}, thunk.Args)

	// The thunk must test the Int64 overload first and fall back to the
	// generic one: the last statement is the return, before it the if.
	n := len(thunk.Body.Stmts)
	ret, ok := thunk.Body.Stmts[n-1].(ReturnStmt)
	require.True(t, ok)
	ifStmt, ok := thunk.Body.Stmts[n-2].(IfStmt)
	require.True(t, ok)

	thenCall := ifStmt.Then.Stmts[0].(CallStmt).C.(Call)
	assert.Equal(t, "f_0", thenCall.Name)
	elseCall := ifStmt.Else.Stmts[0].(CallStmt).C.(Call)
	assert.Equal(t, "f_1", elseCall.Name)

	// The returned variable is the dispatch output.
	assert.Equal(t, ifStmt.Then.Stmts[0].(CallStmt).Dest, VarLV{Name: ret.V.(Var).Name})

	// An IsType test against Int64 must appear in the condition setup.
	var sawIsType bool
	for _, stmt := range thunk.Body.Stmts {
		if cs, ok := stmt.(CallStmt); ok {
			if it, ok := cs.C.(IsType); ok {
				assert.Equal(t, Int64Ty(), it.Ty)
				sawIsType = true
			}
		}
	}
	assert.True(t, sawIsType)
}

func TestLowerDispatchPanicWithoutGenericCase(t *testing.T) {
	s := lower(t, `function f(x::Int64)
1
end
function f(x::Bool)
2
end
`)
	thunk := findFn(t, s, "f")
	assert.True(t, strings.Contains(thunk.String(), "native panic"),
		"expected a dispatch panic fallback:\n%s", thunk.String())
}

func TestLowerStructAlloc(t *testing.T) {
	s := lower(t, "struct V\nx\ny\nend\np = V()\n")
	entry := findFn(t, s, "__start")
	var sawAlloc bool
	for _, stmt := range entry.Body.Stmts {
		if cs, ok := stmt.(CallStmt); ok {
			if a, ok := cs.C.(Alloc); ok {
				assert.Equal(t, "V", a.Struct)
				sawAlloc = true
			}
		}
	}
	assert.True(t, sawAlloc)
}

func TestLowerFieldAssign(t *testing.T) {
	s := lower(t, "mutable struct V\nx\nend\np = V()\np.x = 5\n")
	entry := findFn(t, s, "__start")
	last := entry.Body.Stmts[len(entry.Body.Stmts)-1].(CallStmt)
	dest, ok := last.Dest.(AccessLV)
	require.True(t, ok, "expected a field destination, got %T", last.Dest)
	assert.Equal(t, "V", dest.Struct)
	assert.Equal(t, "x", dest.Field)
	assert.Equal(t, Var{Name: "_gp"}, dest.V)
	assert.Equal(t, Assign{Src: Const{Ty: Int64Ty(), V: 5}}, last.C)
}

func TestLowerWhileRechecksCondition(t *testing.T) {
	s := lower(t, "function f(n::Int64)\nwhile n < 3\nn = n + 1\nend\nn\nend\n")
	f := findFn(t, s, "f")
	var w *WhileStmt
	for _, stmt := range f.Body.Stmts {
		if ws, ok := stmt.(WhileStmt); ok {
			w = &ws
			break
		}
	}
	require.NotNil(t, w)
	// The condition computation is replayed at the end of the body.
	lastInBody := w.Body.Stmts[len(w.Body.Stmts)-1].(CallStmt)
	cmp, ok := lastInBody.C.(Bin)
	require.True(t, ok)
	assert.Equal(t, OpLt, cmp.Op)
}

func TestLowerIfValue(t *testing.T) {
	s := lower(t, "x = (if true\n1\nelse\n2\nend)\n")
	entry := findFn(t, s, "__start")
	// The if writes both arms into the same output variable.
	var ifStmt *IfStmt
	for _, stmt := range entry.Body.Stmts {
		if is, ok := stmt.(IfStmt); ok {
			ifStmt = &is
			break
		}
	}
	require.NotNil(t, ifStmt)
	thenOut := ifStmt.Then.Stmts[len(ifStmt.Then.Stmts)-1].(CallStmt).Dest
	elseOut := ifStmt.Else.Stmts[len(ifStmt.Else.Stmts)-1].(CallStmt).Dest
	assert.Equal(t, thenOut, elseOut)
}

func TestRoundTrip(t *testing.T) {
	s := lower(t, `mutable struct V
x
y
end
function f(v, n::Int64)
v.x = n
v
end
p = f(V(), 3)
print(p.x)
`)
	text := s.String()
	parsed, err := ParseSource("test.hir", text)
	require.NoError(t, err)
	assert.Equal(t, text, parsed.String())
	assert.Equal(t, s.Entrypoint, parsed.Entrypoint)
}

func TestRoundTripAllCallables(t *testing.T) {
	src := &Source{
		Globals: []string{"g_ty"},
		Decls: []Decl{
			&StructDecl{Name: "V", Fields: []string{"x", "y"}},
			&Function{
				Name: "main",
				Args: []string{"a", "b"},
				Vars: []string{"t"},
				Body: Block{Stmts: []Statement{
					CallStmt{Dest: VarLV{Name: "t"}, C: Bin{Op: OpAdd, A: Var{Name: "a"}, B: Const{Ty: Int64Ty(), V: 2}}},
					CallStmt{Dest: VarLV{Name: "t"}, C: Unary{Op: OpNot, A: Var{Name: "t"}}},
					CallStmt{Dest: VarLV{Name: "t"}, C: Assign{Src: Nothing{}}},
					CallStmt{Dest: VarLV{Name: "t"}, C: Call{Name: "f", Args: []Val{Str{S: "s\n"}}}},
					CallStmt{Dest: VarLV{Name: "t"}, C: Call{Name: "print", Native: true}},
					CallStmt{Dest: VarLV{Name: "t"}, C: Alloc{Struct: "V"}},
					CallStmt{Dest: VarLV{Name: "t"}, C: IsType{V: Var{Name: "a"}, Ty: StructTy("V")}},
					CallStmt{Dest: VarLV{Name: "t"}, C: Access{V: Var{Name: "a"}, Struct: "V", Field: "x"}},
					CallStmt{Dest: AccessLV{V: Var{Name: "a"}, Struct: "V", Field: "y"}, C: Assign{Src: Var{Name: "t"}}},
					IfStmt{
						Cond: Var{Name: "t"},
						Then: Block{Stmts: []Statement{ReturnStmt{V: Const{Ty: BoolTy(), V: 1}}}},
						Else: Block{Stmts: []Statement{
							WhileStmt{Cond: Var{Name: "t"}, Body: Block{Stmts: []Statement{
								ReturnStmt{V: Nothing{}},
							}}},
						}},
					},
					ReturnStmt{V: Var{Name: "t"}},
				}},
			},
		},
		Entrypoint: "main",
	}
	text := src.String()
	parsed, err := ParseSource("test.hir", text)
	require.NoError(t, err)
	assert.Equal(t, text, parsed.String())
}
