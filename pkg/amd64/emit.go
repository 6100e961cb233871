// Package amd64 translates LIR to x86-64 assembly text in GAS syntax,
// System V calling convention. Every logical variable is two 8-byte stack
// slots; native calls receive two extra leading pointer arguments for their
// two-word return value.
package amd64

import (
	"fmt"
	"strconv"
	"strings"

	"pjulia/pkg/lir"
)

var argRegs = [...]string{"%rdi", "%rsi", "%rdx", "%rcx", "%r8", "%r9"}

type globalRegistry struct {
	order []string
	ids   map[string]int
}

func newGlobalRegistry(vars []string) *globalRegistry {
	g := &globalRegistry{ids: make(map[string]int, len(vars))}
	for i, v := range vars {
		g.ids[v] = i
		g.order = append(g.order, v)
	}
	return g
}

func (g *globalRegistry) varAccess(name string) (string, error) {
	id, ok := g.ids[name]
	if !ok {
		return "", fmt.Errorf("amd64: variable %q was not declared", name)
	}
	return fmt.Sprintf("(global_var_%d)", id), nil
}

func (g *globalRegistry) emitDecls(out *strings.Builder) {
	for i := range g.order {
		fmt.Fprintf(out, "global_var_%d:\n", i)
		out.WriteString("\t.quad 0\n")
	}
}

// stringRegistry gives every string-literal use its own .data label,
// numbered in order of use; equal literals are not merged.
type stringRegistry struct {
	strings []string
}

func (r *stringRegistry) register(s string) int {
	id := len(r.strings)
	r.strings = append(r.strings, s)
	return id
}

type localRegistry struct {
	parent *globalRegistry
	ids    map[string]int
}

func newLocalRegistry(parent *globalRegistry, vars []string) *localRegistry {
	l := &localRegistry{parent: parent, ids: make(map[string]int, len(vars))}
	for i, v := range vars {
		l.ids[v] = i
	}
	return l
}

func (l *localRegistry) varCount() int { return len(l.ids) }

// varAccessWithExtra resolves a variable to an operand, shifting stack
// offsets by the bytes currently pushed for an in-flight call.
func (l *localRegistry) varAccessWithExtra(stackExtra int, name string) (string, error) {
	if i, ok := l.ids[name]; ok {
		return fmt.Sprintf("%d(%%rsp)", 8*i+stackExtra), nil
	}
	return l.parent.varAccess(name)
}

func (l *localRegistry) varAccess(name string) (string, error) {
	return l.varAccessWithExtra(0, name)
}

// extractLabels numbers a function's labels in order of appearance.
func extractLabels(f *lir.Function) map[string]int {
	ids := make(map[string]int)
	for _, stmt := range f.Body {
		if lbl, ok := stmt.(lir.Label); ok {
			if _, seen := ids[lbl.Name]; !seen {
				ids[lbl.Name] = len(ids)
			}
		}
	}
	return ids
}

// loadVal emits the move of one operand into dest.
func loadVal(out *strings.Builder, reg *stringRegistry, local *localRegistry, v lir.Val, dest string) error {
	switch v := v.(type) {
	case lir.Var:
		access, err := local.varAccess(v.Name)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "\tmovq %s, %s\n", access, dest)
	case lir.Const:
		fmt.Fprintf(out, "\tmovq $%d, %s\n", v.V, dest)
	case lir.Str:
		id := reg.register(v.S)
		fmt.Fprintf(out, "\tmovq $string_%d, %s\n", id, dest)
	}
	return nil
}

func emitInst(
	out *strings.Builder,
	reg *stringRegistry,
	fnIDs map[string]int,
	labelIDs map[string]int,
	local *localRegistry,
	fnID int,
	inst lir.Statement,
) error {
	storeRax := func(dest string) error {
		access, err := local.varAccess(dest)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "\tmovq %%rax, %s\n", access)
		return nil
	}

	switch s := inst.(type) {
	case lir.Bin:
		if err := loadVal(out, reg, local, s.A, "%rax"); err != nil {
			return err
		}
		if err := loadVal(out, reg, local, s.B, "%rbx"); err != nil {
			return err
		}
		switch s.Op {
		case lir.OpAnd:
			out.WriteString("\tandq %rbx, %rax\n")
		case lir.OpOr:
			out.WriteString("\torq %rbx, %rax\n")
		case lir.OpEqu, lir.OpNeq, lir.OpLt, lir.OpLeq, lir.OpGt, lir.OpGeq:
			setcc := map[lir.BinOp]string{
				lir.OpEqu: "sete", lir.OpNeq: "setne",
				lir.OpLt: "setl", lir.OpLeq: "setle",
				lir.OpGt: "setg", lir.OpGeq: "setge",
			}[s.Op]
			out.WriteString("\tcmp %rbx, %rax\n")
			out.WriteString("\tmovq $0, %rax\n")
			fmt.Fprintf(out, "\t%s %%al\n", setcc)
		case lir.OpAdd:
			out.WriteString("\taddq %rbx, %rax\n")
		case lir.OpSub:
			out.WriteString("\tsubq %rbx, %rax\n")
		case lir.OpMul:
			out.WriteString("\timulq %rbx, %rax\n")
		case lir.OpMod:
			out.WriteString("\tcqto\n")
			out.WriteString("\tidivq %rbx\n")
			out.WriteString("\tmovq %rdx, %rax\n")
		}
		return storeRax(s.Dest)

	case lir.Unary:
		if err := loadVal(out, reg, local, s.A, "%rax"); err != nil {
			return err
		}
		switch s.Op {
		case lir.OpNeg:
			out.WriteString("\tnegq %rax\n")
		case lir.OpNot:
			out.WriteString("\txorq $1, %rax\n")
		}
		return storeRax(s.Dest)

	case lir.Mov:
		if err := loadVal(out, reg, local, s.A, "%rax"); err != nil {
			return err
		}
		return storeRax(s.Dest)

	case lir.AssignArray:
		if err := loadVal(out, reg, local, s.A, "%rax"); err != nil {
			return err
		}
		if err := loadVal(out, reg, local, s.Dest, "%rbx"); err != nil {
			return err
		}
		fmt.Fprintf(out, "\tmovq %%rax, %d(%%rbx)\n", s.Offset)
		return nil

	case lir.Access:
		if err := loadVal(out, reg, local, s.A, "%rax"); err != nil {
			return err
		}
		fmt.Fprintf(out, "\tmovq %d(%%rax), %%rbx\n", s.Offset)
		access, err := local.varAccess(s.Dest)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "\tmovq %%rbx, %s\n", access)
		return nil

	case lir.Jump:
		id, ok := labelIDs[s.Label]
		if !ok {
			return fmt.Errorf("amd64: no label named %q", s.Label)
		}
		fmt.Fprintf(out, "\tjmp fn_%d_lbl_%d\n", fnID, id)
		return nil

	case lir.Jumpif:
		return emitCondJump(out, reg, local, labelIDs, fnID, s.Cond, s.Label, "jnz")

	case lir.JumpifNot:
		return emitCondJump(out, reg, local, labelIDs, fnID, s.Cond, s.Label, "jz")

	case lir.Call:
		return emitCall(out, reg, fnIDs, local, s)

	case lir.Return:
		if err := loadVal(out, reg, local, s.Ty, "%rax"); err != nil {
			return err
		}
		if err := loadVal(out, reg, local, s.V, "%rdx"); err != nil {
			return err
		}
		fmt.Fprintf(out, "\tjmp fn_%d_exit\n", fnID)
		return nil

	default:
		return fmt.Errorf("amd64: unexpected statement %T", inst)
	}
}

func emitCondJump(
	out *strings.Builder,
	reg *stringRegistry,
	local *localRegistry,
	labelIDs map[string]int,
	fnID int,
	cond lir.Val,
	label, op string,
) error {
	if err := loadVal(out, reg, local, cond, "%rax"); err != nil {
		return err
	}
	out.WriteString("\tmovq $0, %rbx\n")
	out.WriteString("\tcmp %rax, %rbx\n")
	id, ok := labelIDs[label]
	if !ok {
		return fmt.Errorf("amd64: no label named %q", label)
	}
	fmt.Fprintf(out, "\t%s fn_%d_lbl_%d\n", op, fnID, id)
	return nil
}

// emitCall implements the calling convention. Native calls get two hidden
// leading arguments pointing at two reserved stack slots; the callee writes
// its two-word result there and we pull the words into %rax/%rdx.
func emitCall(
	out *strings.Builder,
	reg *stringRegistry,
	fnIDs map[string]int,
	local *localRegistry,
	s lir.Call,
) error {
	type slot struct {
		hidden   bool
		hiTyWord bool // which of the two reserved words this points at
		val      lir.Val
	}

	var args []slot
	if s.Native {
		args = append(args, slot{hidden: true, hiTyWord: true}, slot{hidden: true})
	}
	for _, a := range s.Args {
		args = append(args, slot{val: a})
	}

	stackExtra := 0
	if len(args) > 6 {
		spill := len(args) - 6
		if spill%2 != 0 {
			spill++
		}
		stackExtra = 8 * spill
	}
	if s.Native {
		stackExtra += 16
	}

	if stackExtra != 0 {
		fmt.Fprintf(out, "\tsubq $%d, %%rsp\n", stackExtra)
	}

	for i, arg := range args {
		if arg.hidden {
			out.WriteString("\tmovq %rsp, %rax\n")
			offset := stackExtra - 16
			if arg.hiTyWord {
				offset = stackExtra - 8
			}
			fmt.Fprintf(out, "\taddq $%d, %%rax\n", offset)
		} else {
			switch v := arg.val.(type) {
			case lir.Var:
				access, err := local.varAccessWithExtra(stackExtra, v.Name)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "\tmovq %s, %%rax\n", access)
			case lir.Const:
				fmt.Fprintf(out, "\tmovq $%d, %%rax\n", v.V)
			case lir.Str:
				id := reg.register(v.S)
				fmt.Fprintf(out, "\tmovq $string_%d, %%rax\n", id)
			}
		}
		if i < len(argRegs) {
			fmt.Fprintf(out, "\tmovq %%rax, %s\n", argRegs[i])
		} else {
			fmt.Fprintf(out, "\tmovq %%rax, %d(%%rsp)\n", 8*(i-6))
		}
	}

	if s.Native {
		fmt.Fprintf(out, "\tcall %s\n", s.Fn)
	} else {
		id, ok := fnIDs[s.Fn]
		if !ok {
			return fmt.Errorf("amd64: no function named %q", s.Fn)
		}
		fmt.Fprintf(out, "\tcall fn_%d\n", id)
	}

	if s.Native {
		fmt.Fprintf(out, "\tmovq %d(%%rsp), %%rax\n", stackExtra-8)
		fmt.Fprintf(out, "\tmovq %d(%%rsp), %%rdx\n", stackExtra-16)
	}

	if stackExtra != 0 {
		fmt.Fprintf(out, "\taddq $%d, %%rsp\n", stackExtra)
	}

	if s.HasDest {
		tyAccess, err := local.varAccess(s.DestTy)
		if err != nil {
			return err
		}
		valAccess, err := local.varAccess(s.DestVal)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "\tmovq %%rax, %s\n", tyAccess)
		fmt.Fprintf(out, "\tmovq %%rdx, %s\n", valAccess)
	}
	return nil
}

func emitFn(
	out *strings.Builder,
	reg *stringRegistry,
	fnIDs map[string]int,
	global *globalRegistry,
	f *lir.Function,
	id int,
) error {
	labelIDs := extractLabels(f)
	local := newLocalRegistry(global, f.Vars)
	varCount := local.varCount()
	frameSize := 8 * varCount
	if varCount%2 != 0 {
		frameSize += 8
	}

	fmt.Fprintf(out, "fn_%d:\n", id)
	out.WriteString("\tpushq %rbp\n")
	out.WriteString("\tmovq %rsp, %rbp\n")
	fmt.Fprintf(out, "\tsubq $%d, %%rsp\n", frameSize)

	for i, arg := range f.Args {
		if i < len(argRegs) {
			fmt.Fprintf(out, "\tmovq %s, %%rax\n", argRegs[i])
		} else {
			// Stack arguments start above the saved frame pointer and the
			// return address.
			fmt.Fprintf(out, "\tmovq %d(%%rbp), %%rax\n", 8*(i-4))
		}
		access, err := local.varAccess(arg)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "\tmovq %%rax, %s\n", access)
	}

	for _, stmt := range f.Body {
		if lbl, ok := stmt.(lir.Label); ok {
			fmt.Fprintf(out, "fn_%d_lbl_%d:\n", id, labelIDs[lbl.Name])
			continue
		}
		if err := emitInst(out, reg, fnIDs, labelIDs, local, id, stmt); err != nil {
			return err
		}
	}

	// Fall off the end: return Nothing.
	out.WriteString("\tmovq $0, %rax\n")
	out.WriteString("\tmovq $0, %rdx\n")
	fmt.Fprintf(out, "fn_%d_exit:\n", id)
	fmt.Fprintf(out, "\taddq $%d, %%rsp\n", frameSize)
	out.WriteString("\tpopq %rbp\n")
	out.WriteString("\tret\n")
	return nil
}

// Emit renders a whole LIR source as a GAS x86-64 module. The entry symbol
// main wraps the LIR main function and returns 0 to the OS.
func Emit(source *lir.Source) (string, error) {
	var out strings.Builder

	global := newGlobalRegistry(source.Globals)
	reg := &stringRegistry{}
	fnIDs := make(map[string]int, len(source.Funcs))

	for i, f := range source.Funcs {
		if _, ok := fnIDs[f.Name]; ok {
			return "", fmt.Errorf("amd64: function %q is not uniquely defined", f.Name)
		}
		fnIDs[f.Name] = i
	}

	mainID, ok := fnIDs["main"]
	if !ok {
		return "", fmt.Errorf("amd64: no main function")
	}

	out.WriteString("\t.text\n")
	out.WriteString("\t.globl main\n")
	out.WriteString("main:\n")
	fmt.Fprintf(&out, "\tcall fn_%d\n", mainID)
	out.WriteString("\tmovq $0, %rax\n")
	out.WriteString("\tret\n")

	for i, f := range source.Funcs {
		if err := emitFn(&out, reg, fnIDs, global, f, i); err != nil {
			return "", err
		}
	}

	out.WriteString("\t.data\n")
	for i, s := range reg.strings {
		fmt.Fprintf(&out, "string_%d:\n", i)
		fmt.Fprintf(&out, "\t.string %s\n", strconv.Quote(s))
	}
	global.emitDecls(&out)

	return out.String(), nil
}
