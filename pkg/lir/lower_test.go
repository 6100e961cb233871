package lir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pjulia/pkg/hir"
)

// twoFieldSource is `struct V {x, y}` plus a main allocating a V and
// writing its first field.
func twoFieldSource() *hir.Source {
	return &hir.Source{
		Globals:    []string{"_gp", "_gnothing"},
		Entrypoint: "main",
		Decls: []hir.Decl{
			&hir.StructDecl{Name: "V", Fields: []string{"x", "y"}},
			&hir.Function{
				Name: "main",
				Vars: []string{"p"},
				Body: hir.Block{Stmts: []hir.Statement{
					hir.CallStmt{Dest: hir.VarLV{Name: "p"}, C: hir.Alloc{Struct: "V"}},
					hir.CallStmt{
						Dest: hir.AccessLV{V: hir.Var{Name: "p"}, Struct: "V", Field: "x"},
						C:    hir.Assign{Src: hir.Const{Ty: hir.Int64Ty(), V: 5}},
					},
					hir.ReturnStmt{V: hir.Nothing{}},
				}},
			},
		},
	}
}

func TestLowerStructAllocAndFieldStore(t *testing.T) {
	out, err := Lower(twoFieldSource())
	require.NoError(t, err)

	// usr_fn_0 plus the synthesized main.
	require.Len(t, out.Funcs, 2)
	f := out.Funcs[0]
	assert.Equal(t, "usr_fn_0", f.Name)

	// The alloc call: tag 4 (first struct) and 16 bytes per field.
	alloc := f.Body[0].(Call)
	assert.True(t, alloc.Native)
	assert.Equal(t, "native_alloc", alloc.Fn)
	require.Len(t, alloc.Args, 2)
	assert.Equal(t, Const{V: 4}, alloc.Args[0])
	assert.Equal(t, Const{V: 32}, alloc.Args[1])

	// The field store goes through a temp pair, then two array stores at
	// offsets 0 and 8.
	var stores []AssignArray
	for _, s := range f.Body {
		if aa, ok := s.(AssignArray); ok {
			stores = append(stores, aa)
		}
	}
	require.Len(t, stores, 2)
	assert.Equal(t, uint64(0), stores[0].Offset)
	assert.Equal(t, uint64(8), stores[1].Offset)
	assert.Equal(t, Var{Name: "var_0_val"}, stores[0].Dest)
}

func TestLowerFieldOffsets(t *testing.T) {
	src := &hir.Source{
		Globals:    nil,
		Entrypoint: "main",
		Decls: []hir.Decl{
			&hir.StructDecl{Name: "V", Fields: []string{"a", "b", "c"}},
			&hir.Function{
				Name: "main",
				Vars: []string{"p", "t"},
				Body: hir.Block{Stmts: []hir.Statement{
					hir.CallStmt{
						Dest: hir.VarLV{Name: "t"},
						C:    hir.Access{V: hir.Var{Name: "p"}, Struct: "V", Field: "c"},
					},
				}},
			},
		},
	}
	out, err := Lower(src)
	require.NoError(t, err)

	f := out.Funcs[0]
	loads := []Access{f.Body[0].(Access), f.Body[1].(Access)}
	// Field 2: tag at 32, value at 40.
	assert.Equal(t, uint64(32), loads[0].Offset)
	assert.Equal(t, uint64(40), loads[1].Offset)
}

func TestLowerVarPairs(t *testing.T) {
	out, err := Lower(twoFieldSource())
	require.NoError(t, err)

	assert.Equal(t, []string{"global_var_0_ty", "global_var_0_val", "global_var_1_ty", "global_var_1_val"},
		out.Globals)
	f := out.Funcs[0]
	assert.Contains(t, f.Vars, "var_0_ty")
	assert.Contains(t, f.Vars, "var_0_val")
}

func TestLowerIsType(t *testing.T) {
	src := &hir.Source{
		Entrypoint: "main",
		Decls: []hir.Decl{
			&hir.Function{
				Name: "main",
				Vars: []string{"a", "t"},
				Body: hir.Block{Stmts: []hir.Statement{
					hir.CallStmt{Dest: hir.VarLV{Name: "t"}, C: hir.IsType{V: hir.Var{Name: "a"}, Ty: hir.Int64Ty()}},
				}},
			},
		},
	}
	out, err := Lower(src)
	require.NoError(t, err)

	f := out.Funcs[0]
	mov := f.Body[0].(Mov)
	assert.Equal(t, Const{V: 2}, mov.A) // Bool tag
	cmp := f.Body[1].(Bin)
	assert.Equal(t, OpEqu, cmp.Op)
	assert.Equal(t, Var{Name: "var_0_ty"}, cmp.A) // a's tag word
	assert.Equal(t, Const{V: 1}, cmp.B)           // Int64 tag
}

func TestLowerControlFlowLabels(t *testing.T) {
	src := &hir.Source{
		Entrypoint: "main",
		Decls: []hir.Decl{
			&hir.Function{
				Name: "main",
				Vars: []string{"c"},
				Body: hir.Block{Stmts: []hir.Statement{
					hir.IfStmt{
						Cond: hir.Var{Name: "c"},
						Then: hir.Block{Stmts: []hir.Statement{hir.ReturnStmt{V: hir.Const{Ty: hir.Int64Ty(), V: 1}}}},
						Else: hir.Block{Stmts: []hir.Statement{hir.ReturnStmt{V: hir.Const{Ty: hir.Int64Ty(), V: 2}}}},
					},
					hir.WhileStmt{
						Cond: hir.Var{Name: "c"},
						Body: hir.Block{Stmts: []hir.Statement{hir.ReturnStmt{V: hir.Nothing{}}}},
					},
				}},
			},
		},
	}
	out, err := Lower(src)
	require.NoError(t, err)
	f := out.Funcs[0]

	// If: jumpif cond true; else; jump end; true: then; end.
	ji := f.Body[0].(Jumpif)
	assert.Equal(t, "lbl_0", ji.Label)
	assert.Equal(t, Jump{Label: "lbl_1"}, f.Body[2])
	assert.Equal(t, Label{Name: "lbl_0"}, f.Body[3])
	assert.Equal(t, Label{Name: "lbl_1"}, f.Body[5])

	// While: body label; jumpif not cond end; body; jump body; end.
	assert.Equal(t, Label{Name: "lbl_2"}, f.Body[6])
	jn := f.Body[7].(JumpifNot)
	assert.Equal(t, "lbl_3", jn.Label)
	assert.Equal(t, Jump{Label: "lbl_2"}, f.Body[9])
	assert.Equal(t, Label{Name: "lbl_3"}, f.Body[10])
}

func TestLowerMainShell(t *testing.T) {
	out, err := Lower(twoFieldSource())
	require.NoError(t, err)

	shell := out.Funcs[len(out.Funcs)-1]
	assert.Equal(t, "main", shell.Name)
	call := shell.Body[0].(Call)
	assert.Equal(t, "usr_fn_0", call.Fn)
	assert.True(t, call.HasDest)
	ret := shell.Body[1].(Return)
	assert.Equal(t, Var{Name: "ret_code_ty"}, ret.Ty)
}

func TestLowerUndeclaredVariable(t *testing.T) {
	src := &hir.Source{
		Entrypoint: "main",
		Decls: []hir.Decl{
			&hir.Function{
				Name: "main",
				Body: hir.Block{Stmts: []hir.Statement{
					hir.ReturnStmt{V: hir.Var{Name: "ghost"}},
				}},
			},
		},
	}
	_, err := Lower(src)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghost")
}

func TestLowerMissingEntrypoint(t *testing.T) {
	src := &hir.Source{Entrypoint: "nope", Decls: []hir.Decl{
		&hir.Function{Name: "main", Body: hir.Block{}},
	}}
	_, err := Lower(src)
	require.Error(t, err)
}

func TestRoundTrip(t *testing.T) {
	out, err := Lower(twoFieldSource())
	require.NoError(t, err)
	text := out.String()

	parsed, err := ParseSource("test.lir", text)
	require.NoError(t, err)
	assert.Equal(t, text, parsed.String())
}

func TestRoundTripAllInstructions(t *testing.T) {
	src := &Source{
		Globals: []string{"global_var_0_ty", "global_var_0_val"},
		Funcs: []*Function{{
			Name: "main",
			Args: []string{"a_ty", "a_val"},
			Vars: []string{"x", "p"},
			Body: []Statement{
				Label{Name: "lbl_0"},
				Bin{Dest: "x", Op: OpAdd, A: Var{Name: "a_val"}, B: Const{V: 3}},
				Unary{Dest: "x", Op: OpNot, A: Var{Name: "x"}},
				Mov{Dest: "x", A: Str{S: "hi\n"}},
				AssignArray{Dest: Var{Name: "p"}, Offset: 8, A: Var{Name: "x"}},
				Access{Dest: "x", A: Var{Name: "p"}, Offset: 16},
				Jump{Label: "lbl_0"},
				Jumpif{Cond: Var{Name: "x"}, Label: "lbl_0"},
				JumpifNot{Cond: Var{Name: "x"}, Label: "lbl_0"},
				Call{HasDest: true, DestTy: "x", DestVal: "p", Native: true, Fn: "native_alloc",
					Args: []Val{Const{V: 5}, Const{V: 16}}},
				Call{Native: true, Fn: "native_println", Args: []Val{Var{Name: "x"}, Var{Name: "p"}}},
				Return{Ty: Var{Name: "a_ty"}, V: Var{Name: "a_val"}},
			},
		}},
	}
	text := src.String()
	parsed, err := ParseSource("test.lir", text)
	require.NoError(t, err)
	assert.Equal(t, text, parsed.String())
}
