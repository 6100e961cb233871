package amd64

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pjulia/pkg/lir"
)

func smallProgram() *lir.Source {
	return &lir.Source{
		Globals: []string{"global_var_0_ty", "global_var_0_val"},
		Funcs: []*lir.Function{
			{
				Name: "usr_fn_0",
				Args: []string{"a_ty", "a_val"},
				Vars: []string{"a_ty", "a_val", "t"},
				Body: []lir.Statement{
					lir.Label{Name: "lbl_0"},
					lir.Bin{Dest: "t", Op: lir.OpAdd, A: lir.Var{Name: "a_val"}, B: lir.Const{V: 1}},
					lir.JumpifNot{Cond: lir.Var{Name: "t"}, Label: "lbl_0"},
					lir.Call{HasDest: true, DestTy: "a_ty", DestVal: "a_val", Native: true,
						Fn: "native_alloc", Args: []lir.Val{lir.Const{V: 4}, lir.Const{V: 32}}},
					lir.Return{Ty: lir.Var{Name: "a_ty"}, V: lir.Var{Name: "a_val"}},
				},
			},
			{
				Name: "main",
				Vars: []string{"r_ty", "r_val"},
				Body: []lir.Statement{
					lir.Call{HasDest: true, DestTy: "r_ty", DestVal: "r_val", Fn: "usr_fn_0",
						Args: []lir.Val{lir.Const{V: 0}, lir.Const{V: 0}}},
					lir.Return{Ty: lir.Var{Name: "r_ty"}, V: lir.Var{Name: "r_val"}},
				},
			},
		},
	}
}

func TestEmitShell(t *testing.T) {
	asm, err := Emit(smallProgram())
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(asm, "\t.text\n\t.globl main\nmain:\n"))
	// The entry symbol calls the LIR main (function index 1).
	assert.Contains(t, asm, "main:\n\tcall fn_1\n")
	assert.Contains(t, asm, "fn_0:\n")
	assert.Contains(t, asm, "fn_1:\n")
	// Function-local labels are namespaced by function id.
	assert.Contains(t, asm, "fn_0_lbl_0:\n")
	assert.Contains(t, asm, "fn_0_exit:\n")
	// Globals become zeroed quads in .data.
	assert.Contains(t, asm, "\t.data\n")
	assert.Contains(t, asm, "global_var_0:\n\t.quad 0\n")
	assert.Contains(t, asm, "global_var_1:\n\t.quad 0\n")
}

func TestEmitNativeCallProtocol(t *testing.T) {
	asm, err := Emit(smallProgram())
	require.NoError(t, err)

	// Native calls reserve two return slots and pass their addresses as the
	// first two arguments, then pull the words back out.
	require.Contains(t, asm, "\tcall native_alloc\n")
	idx := strings.Index(asm, "\tcall native_alloc\n")
	before := asm[:idx]
	after := asm[idx:]
	assert.Contains(t, before, "\tsubq $16, %rsp\n")
	assert.Contains(t, after, "\tmovq 8(%rsp), %rax\n")
	assert.Contains(t, after, "\tmovq 0(%rsp), %rdx\n")
}

func TestEmitFrameAlignment(t *testing.T) {
	asm, err := Emit(smallProgram())
	require.NoError(t, err)
	// usr_fn_0 has 3 variable words; the frame is rounded up to an even
	// count (32 bytes).
	assert.Contains(t, asm, "fn_0:\n\tpushq %rbp\n\tmovq %rsp, %rbp\n\tsubq $32, %rsp\n")
}

func TestEmitStringData(t *testing.T) {
	src := &lir.Source{
		Funcs: []*lir.Function{{
			Name: "main",
			Vars: []string{"t"},
			Body: []lir.Statement{
				lir.Mov{Dest: "t", A: lir.Str{S: "hello\n"}},
				lir.Return{Ty: lir.Const{V: 3}, V: lir.Var{Name: "t"}},
			},
		}},
	}
	asm, err := Emit(src)
	require.NoError(t, err)
	assert.Contains(t, asm, "\tmovq $string_0, %rax\n")
	assert.Contains(t, asm, "string_0:\n\t.string \"hello\\n\"\n")
}

func TestEmitDuplicateFunction(t *testing.T) {
	src := &lir.Source{Funcs: []*lir.Function{
		{Name: "main"}, {Name: "main"},
	}}
	_, err := Emit(src)
	require.Error(t, err)
}

func TestEmitMissingMain(t *testing.T) {
	src := &lir.Source{Funcs: []*lir.Function{{Name: "usr_fn_0"}}}
	_, err := Emit(src)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "main")
}

func TestEmitDeterminism(t *testing.T) {
	a, err := Emit(smallProgram())
	require.NoError(t, err)
	b, err := Emit(smallProgram())
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
