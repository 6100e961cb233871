package hir

import (
	"fmt"
	"sort"

	"pjulia/pkg/lang"
	"pjulia/pkg/typing"
)

// nativeNames are the runtime primitives; calls to them compile to
// native_<name> symbols instead of user functions.
var nativeNames = map[string]bool{
	"div":     true,
	"print":   true,
	"println": true,
	"pow":     true,
	"panic":   true,
}

func fromStaticType(t lang.StaticType) (Type, bool) {
	switch t.Kind {
	case lang.TyNothing:
		return NothingTy(), true
	case lang.TyInt64:
		return Int64Ty(), true
	case lang.TyBool:
		return BoolTy(), true
	case lang.TyStr:
		return StrTy(), true
	case lang.TyStruct:
		return StructTy(t.Name), true
	default: // Any carries no runtime witness.
		return Type{}, false
	}
}

func binOpOf(op lang.BinOp) BinOp {
	switch op {
	case lang.OpAnd:
		return OpAnd
	case lang.OpOr:
		return OpOr
	case lang.OpEqu:
		return OpEqu
	case lang.OpNeq:
		return OpNeq
	case lang.OpLt:
		return OpLt
	case lang.OpLeq:
		return OpLeq
	case lang.OpGt:
		return OpGt
	case lang.OpGeq:
		return OpGeq
	case lang.OpPlus:
		return OpAdd
	case lang.OpMinus:
		return OpSub
	case lang.OpTimes:
		return OpMul
	default:
		return OpMod
	}
}

// orderedSet is a set that remembers insertion order; everything the
// emitter numbers or lists flows through one, so the output is a pure
// function of the input program.
type orderedSet struct {
	names []string
	seen  map[string]bool
}

func newOrderedSet() *orderedSet {
	return &orderedSet{seen: make(map[string]bool)}
}

func (s *orderedSet) add(name string) {
	if !s.seen[name] {
		s.seen[name] = true
		s.names = append(s.names, name)
	}
}

func (s *orderedSet) has(name string) bool { return s.seen[name] }

type emitter struct {
	nextID       int
	locals       *orderedSet
	params       map[string]bool
	oldGlobals   map[string]string // original name -> renamed name
	globals      *orderedSet       // renamed names
	structNames  map[string]bool
	inEntrypoint bool
}

func newEmitter(structNames map[string]bool) *emitter {
	return &emitter{
		locals:      newOrderedSet(),
		params:      make(map[string]bool),
		oldGlobals:  make(map[string]string),
		globals:     newOrderedSet(),
		structNames: structNames,
	}
}

// mkIntermediate mints a fresh local, skipping names taken by renamed
// globals.
func (e *emitter) mkIntermediate() string {
	out := fmt.Sprintf("__intermediate_internal%d", e.nextID)
	for e.globals.has(out) {
		e.nextID++
		out = fmt.Sprintf("__intermediate_internal%d", e.nextID)
	}
	e.locals.add(out)
	e.nextID++
	return out
}

func (e *emitter) uniqueGlobalName(name string) string {
	out := "_g" + name
	for idx := 0; e.globals.has(out); idx++ {
		out = fmt.Sprintf("_g%s%d", name, idx)
	}
	return out
}

// resolveVar maps a bare variable read whose scope is not recorded on the
// node (the implicit-multiplication forms) to its emitted name.
func (e *emitter) resolveVar(name string) string {
	if e.params[name] || e.locals.has(name) {
		return name
	}
	if renamed, ok := e.oldGlobals[name]; ok {
		return renamed
	}
	return name
}

func (e *emitter) emitBlockValue(b *lang.Block) ([]Statement, Val, error) {
	if len(b.Exps) == 0 {
		return nil, Nothing{}, nil
	}
	head, last := b.Exps[:len(b.Exps)-1], b.Exps[len(b.Exps)-1]
	stmts, err := e.emitFlattened(head)
	if err != nil {
		return nil, nil, err
	}
	lastStmts, val, err := e.emitValue(last)
	if err != nil {
		return nil, nil, err
	}
	return append(stmts, lastStmts...), val, nil
}

// emitValue lowers an expression to the statements computing it plus the
// value holding the result. Non-atomic results land in fresh intermediates.
func (e *emitter) emitValue(x *lang.Exp) ([]Statement, Val, error) {
	switch v := x.Val.(type) {
	case lang.BinExp:
		stmtsA, valA, err := e.emitValue(v.L)
		if err != nil {
			return nil, nil, err
		}
		stmtsB, valB, err := e.emitValue(v.R)
		if err != nil {
			return nil, nil, err
		}
		stmts := append(stmtsA, stmtsB...)
		out := e.mkIntermediate()

		var c Callable
		if v.Op == lang.OpPow {
			c = Call{Name: "pow", Native: true, Args: []Val{valA, valB}}
		} else {
			c = Bin{Op: binOpOf(v.Op), A: valA, B: valB}
		}
		stmts = append(stmts, CallStmt{Dest: VarLV{Name: out}, C: c})
		return stmts, Var{Name: out}, nil

	case lang.UnaryExp:
		stmts, val, err := e.emitValue(v.E)
		if err != nil {
			return nil, nil, err
		}
		out := e.mkIntermediate()
		op := OpNeg
		if v.Op == lang.OpNot {
			op = OpNot
		}
		stmts = append(stmts, CallStmt{Dest: VarLV{Name: out}, C: Unary{Op: op, A: val}})
		return stmts, Var{Name: out}, nil

	case lang.IntExp:
		return nil, Const{Ty: Int64Ty(), V: uint64(v.Value)}, nil
	case lang.BoolExp:
		bit := uint64(0)
		if v.Value {
			bit = 1
		}
		return nil, Const{Ty: BoolTy(), V: bit}, nil
	case lang.StrExp:
		return nil, Str{S: v.Value}, nil

	case lang.LValueExp:
		lv := v.LV
		if lv.In == nil {
			if lv.Scope == lang.ScopeLocal {
				return nil, Var{Name: lv.Name}, nil
			}
			renamed, ok := e.oldGlobals[lv.Name]
			if !ok {
				return nil, nil, fmt.Errorf(
					"hir: variable '%s' is scoped globally but no such global exists", lv.Name)
			}
			return nil, Var{Name: renamed}, nil
		}
		if lv.In.Ty.Kind != lang.TyStruct {
			return nil, nil, fmt.Errorf(
				"hir: value of type '%s' has no field '%s'", lv.In.Ty, lv.Name)
		}
		stmts, structVal, err := e.emitValue(lv.In)
		if err != nil {
			return nil, nil, err
		}
		out := e.mkIntermediate()
		stmts = append(stmts, CallStmt{
			Dest: VarLV{Name: out},
			C:    Access{V: structVal, Struct: lv.In.Ty.Name, Field: lv.Name},
		})
		return stmts, Var{Name: out}, nil

	case lang.MulExp:
		out := e.mkIntermediate()
		stmt := CallStmt{
			Dest: VarLV{Name: out},
			C: Bin{Op: OpMul,
				A: Const{Ty: Int64Ty(), V: uint64(v.Coef)},
				B: Var{Name: e.resolveVar(v.Var)}},
		}
		return []Statement{stmt}, Var{Name: out}, nil

	case lang.LMulExp:
		stmts, bVal, err := e.emitBlockValue(v.B)
		if err != nil {
			return nil, nil, err
		}
		out := e.mkIntermediate()
		stmts = append(stmts, CallStmt{
			Dest: VarLV{Name: out},
			C:    Bin{Op: OpMul, A: Const{Ty: Int64Ty(), V: uint64(v.Coef)}, B: bVal},
		})
		return stmts, Var{Name: out}, nil

	case lang.RMulExp:
		stmts, val, err := e.emitValue(v.E)
		if err != nil {
			return nil, nil, err
		}
		out := e.mkIntermediate()
		stmts = append(stmts, CallStmt{
			Dest: VarLV{Name: out},
			C:    Bin{Op: OpMul, A: val, B: Var{Name: e.resolveVar(v.Var)}},
		})
		return stmts, Var{Name: out}, nil

	case lang.BlockExp:
		return e.emitBlockValue(v.B)

	case lang.ReturnExp:
		if v.E == nil {
			return nil, Nothing{}, nil
		}
		return e.emitValue(v.E)

	case lang.CallExp:
		stmts, vals, err := e.emitValues(v.Args)
		if err != nil {
			return nil, nil, err
		}
		out := e.mkIntermediate()
		if e.structNames[v.Name] {
			stmts = append(stmts, CallStmt{Dest: VarLV{Name: out}, C: Alloc{Struct: v.Name}})
		} else {
			stmts = append(stmts, CallStmt{
				Dest: VarLV{Name: out},
				C:    Call{Name: v.Name, Native: nativeNames[v.Name], Args: vals},
			})
		}
		return stmts, Var{Name: out}, nil

	case lang.IfExp:
		out := e.mkIntermediate()
		stmts, condVal, err := e.emitValue(v.Cond)
		if err != nil {
			return nil, nil, err
		}
		thenStmts, thenVal, err := e.emitBlockValue(v.Then)
		if err != nil {
			return nil, nil, err
		}
		elseStmts, elseVal, err := e.emitElseValue(v.Else)
		if err != nil {
			return nil, nil, err
		}
		thenStmts = append(thenStmts, CallStmt{Dest: VarLV{Name: out}, C: Assign{Src: thenVal}})
		elseStmts = append(elseStmts, CallStmt{Dest: VarLV{Name: out}, C: Assign{Src: elseVal}})
		stmts = append(stmts, IfStmt{
			Cond: condVal,
			Then: Block{Stmts: thenStmts},
			Else: Block{Stmts: elseStmts},
		})
		return stmts, Var{Name: out}, nil

	case lang.AssignExp:
		stmts, err := e.emitStatements(x)
		if err != nil {
			return nil, nil, err
		}
		if v.LV.In == nil {
			return stmts, Var{Name: e.resolveVar(v.LV.Name)}, nil
		}
		return stmts, Nothing{}, nil

	default:
		// For and While produce no value.
		stmts, err := e.emitStatements(x)
		if err != nil {
			return nil, nil, err
		}
		return stmts, Nothing{}, nil
	}
}

func (e *emitter) emitValues(exps []*lang.Exp) ([]Statement, []Val, error) {
	var stmts []Statement
	var vals []Val
	for _, x := range exps {
		s, v, err := e.emitValue(x)
		if err != nil {
			return nil, nil, err
		}
		stmts = append(stmts, s...)
		vals = append(vals, v)
	}
	return stmts, vals, nil
}

// emitStatements lowers an expression in statement position.
func (e *emitter) emitStatements(x *lang.Exp) ([]Statement, error) {
	switch v := x.Val.(type) {
	case lang.ReturnExp:
		if v.E == nil {
			return []Statement{ReturnStmt{V: Nothing{}}}, nil
		}
		stmts, val, err := e.emitValue(v.E)
		if err != nil {
			return nil, err
		}
		return append(stmts, ReturnStmt{V: val}), nil

	case lang.IfExp:
		stmts, condVal, err := e.emitValue(v.Cond)
		if err != nil {
			return nil, err
		}
		thenBlock, err := e.emitBlock(v.Then, false)
		if err != nil {
			return nil, err
		}
		elseBlock, err := e.emitElseBlock(v.Else)
		if err != nil {
			return nil, err
		}
		return append(stmts, IfStmt{Cond: condVal, Then: thenBlock, Else: elseBlock}), nil

	case lang.ForExp:
		startStmts, startVal, err := e.emitValue(v.Range.Start)
		if err != nil {
			return nil, err
		}
		endStmts, endVal, err := e.emitValue(v.Range.End)
		if err != nil {
			return nil, err
		}
		stmts := append(startStmts, endStmts...)

		counter := v.Var.Name
		if !e.params[counter] {
			e.locals.add(counter)
		}
		stmts = append(stmts, CallStmt{Dest: VarLV{Name: counter}, C: Assign{Src: startVal}})

		ok := e.mkIntermediate()
		// Bootstrap the loop condition before entering the while.
		stmts = append(stmts, CallStmt{
			Dest: VarLV{Name: ok},
			C:    Bin{Op: OpLeq, A: Var{Name: counter}, B: endVal},
		})

		body, err := e.emitBlock(v.Body, false)
		if err != nil {
			return nil, err
		}
		body.push(CallStmt{
			Dest: VarLV{Name: counter},
			C:    Bin{Op: OpAdd, A: Var{Name: counter}, B: Const{Ty: Int64Ty(), V: 1}},
		})
		body.push(CallStmt{
			Dest: VarLV{Name: ok},
			C:    Bin{Op: OpLeq, A: Var{Name: counter}, B: endVal},
		})

		return append(stmts, WhileStmt{Cond: Var{Name: ok}, Body: body}), nil

	case lang.WhileExp:
		condStmts, condVal, err := e.emitValue(v.Cond)
		if err != nil {
			return nil, err
		}
		body, err := e.emitBlock(v.Body, false)
		if err != nil {
			return nil, err
		}
		// Recompute the condition at the end of each iteration.
		body.Stmts = append(body.Stmts, condStmts...)
		stmts := append([]Statement{}, condStmts...)
		return append(stmts, WhileStmt{Cond: condVal, Body: body}), nil

	case lang.CallExp:
		stmts, vals, err := e.emitValues(v.Args)
		if err != nil {
			return nil, err
		}
		out := e.mkIntermediate()
		if e.structNames[v.Name] {
			return append(stmts, CallStmt{Dest: VarLV{Name: out}, C: Alloc{Struct: v.Name}}), nil
		}
		return append(stmts, CallStmt{
			Dest: VarLV{Name: out},
			C:    Call{Name: v.Name, Native: nativeNames[v.Name], Args: vals},
		}), nil

	case lang.AssignExp:
		if v.LV.In == nil {
			return e.emitAssign(v.LV.Name, v.E)
		}
		return e.emitComplexAssign(v.LV.In, v.LV.Name, v.E)

	case lang.BlockExp:
		b, err := e.emitBlock(v.B, false)
		if err != nil {
			return nil, err
		}
		return b.Stmts, nil

	default:
		// A bare value in statement position is dead code.
		return nil, nil
	}
}

// emitAssign lowers an assignment to a bare name. In the entrypoint, names
// collected as globals write the renamed global; everything else is a local
// of the current function.
func (e *emitter) emitAssign(varName string, rhs *lang.Exp) ([]Statement, error) {
	target := varName
	if renamed, ok := e.oldGlobals[varName]; ok && e.inEntrypoint {
		target = renamed
	} else if !e.params[varName] {
		e.locals.add(varName)
	}

	stmts, val, err := e.emitValue(rhs)
	if err != nil {
		return nil, err
	}
	return append(stmts, CallStmt{Dest: VarLV{Name: target}, C: Assign{Src: val}}), nil
}

func (e *emitter) emitComplexAssign(structExp *lang.Exp, field string, rhs *lang.Exp) ([]Statement, error) {
	stmts, structVal, err := e.emitValue(structExp)
	if err != nil {
		return nil, err
	}
	rhsStmts, rhsVal, err := e.emitValue(rhs)
	if err != nil {
		return nil, err
	}
	stmts = append(stmts, rhsStmts...)

	name, ok := structVal.(Var)
	if !ok {
		return nil, fmt.Errorf("hir: invalid assignment location, left hand is not a variable")
	}
	if !e.params[name.Name] && !e.locals.has(name.Name) && !e.globals.has(name.Name) {
		return nil, fmt.Errorf("hir: unbound structure variable '%s'", name.Name)
	}

	if structExp.Ty.Kind != lang.TyStruct {
		return nil, fmt.Errorf(
			"hir: invalid assignment location, left hand is not a structure but a '%s'", structExp.Ty)
	}
	stmts = append(stmts, CallStmt{
		Dest: AccessLV{V: structVal, Struct: structExp.Ty.Name, Field: field},
		C:    Assign{Src: rhsVal},
	})
	return stmts, nil
}

func (e *emitter) emitFlattened(exps []*lang.Exp) ([]Statement, error) {
	var out []Statement
	for _, x := range exps {
		stmts, err := e.emitStatements(x)
		if err != nil {
			return nil, err
		}
		out = append(out, stmts...)
	}
	return out, nil
}

// emitBlock lowers a block; with allowImplicitReturns, a block without a
// trailing semicolon returns its value.
func (e *emitter) emitBlock(b *lang.Block, allowImplicitReturns bool) (Block, error) {
	if allowImplicitReturns && !b.TrailingSemi {
		stmts, val, err := e.emitBlockValue(b)
		if err != nil {
			return Block{}, err
		}
		return Block{Stmts: append(stmts, ReturnStmt{V: val})}, nil
	}
	stmts, err := e.emitFlattened(b.Exps)
	if err != nil {
		return Block{}, err
	}
	return Block{Stmts: stmts}, nil
}

func (e *emitter) emitElseBlock(el *lang.Else) (Block, error) {
	switch v := el.Val.(type) {
	case lang.ElseEnd:
		return Block{}, nil
	case lang.ElseBlock:
		return e.emitBlock(v.B, false)
	case lang.ElseIf:
		stmts, condVal, err := e.emitValue(v.Cond)
		if err != nil {
			return Block{}, err
		}
		thenBlock, err := e.emitBlock(v.Then, false)
		if err != nil {
			return Block{}, err
		}
		elseBlock, err := e.emitElseBlock(v.Else)
		if err != nil {
			return Block{}, err
		}
		return Block{Stmts: append(stmts, IfStmt{Cond: condVal, Then: thenBlock, Else: elseBlock})}, nil
	default:
		panic("hir: unknown else node")
	}
}

func (e *emitter) emitElseValue(el *lang.Else) ([]Statement, Val, error) {
	switch v := el.Val.(type) {
	case lang.ElseEnd:
		return nil, Nothing{}, nil
	case lang.ElseBlock:
		return e.emitBlockValue(v.B)
	case lang.ElseIf:
		out := e.mkIntermediate()
		stmts, condVal, err := e.emitValue(v.Cond)
		if err != nil {
			return nil, nil, err
		}
		thenStmts, thenVal, err := e.emitBlockValue(v.Then)
		if err != nil {
			return nil, nil, err
		}
		elseStmts, elseVal, err := e.emitElseValue(v.Else)
		if err != nil {
			return nil, nil, err
		}
		thenStmts = append(thenStmts, CallStmt{Dest: VarLV{Name: out}, C: Assign{Src: thenVal}})
		elseStmts = append(elseStmts, CallStmt{Dest: VarLV{Name: out}, C: Assign{Src: elseVal}})
		stmts = append(stmts, IfStmt{
			Cond: condVal,
			Then: Block{Stmts: thenStmts},
			Else: Block{Stmts: elseStmts},
		})
		return stmts, Var{Name: out}, nil
	default:
		panic("hir: unknown else node")
	}
}

// emitFn lowers one function body under a fresh local namespace.
func (e *emitter) emitFn(f *lang.Function, name string) (*Function, error) {
	e.locals = newOrderedSet()
	e.params = make(map[string]bool)
	e.nextID = 0
	e.inEntrypoint = false

	args := make([]string, len(f.Params))
	for i, p := range f.Params {
		args[i] = p.Name.Name
		e.params[p.Name.Name] = true
	}
	for _, assigned := range typing.CollectAssignedExps(f.Body.Exps) {
		if !e.params[assigned] {
			e.locals.add(assigned)
		}
	}

	body, err := e.emitBlock(f.Body, true)
	if err != nil {
		return nil, err
	}
	return &Function{Name: name, Args: args, Vars: e.locals.names, Body: body}, nil
}

// emitDispatch lowers all overloads of one name. With a single overload the
// function keeps its name; otherwise each overload becomes <name>_<i> and a
// thunk named <name> selects among them by runtime type tests, most
// selective first.
func (e *emitter) emitDispatch(name string, fs []*lang.Function) ([]Decl, error) {
	if len(fs) == 1 {
		f, err := e.emitFn(fs[0], name)
		if err != nil {
			return nil, err
		}
		return []Decl{f}, nil
	}

	e.locals = newOrderedSet()
	e.params = make(map[string]bool)
	e.nextID = 0
	e.inEntrypoint = false

	// The thunk's parameters are the first overload's, positionally; every
	// overload is invoked with them.
	argNames := make([]string, len(fs[0].Params))
	args := make([]Val, len(fs[0].Params))
	for i, p := range fs[0].Params {
		argNames[i] = p.Name.Name
		args[i] = Var{Name: p.Name.Name}
	}
	out := e.mkIntermediate()

	type candidate struct {
		weight int
		cond   Val
		fnName string
	}
	var stmts []Statement
	candidates := make([]candidate, 0, len(fs))
	zeroWeights := 0

	for index, f := range fs {
		var conds []string
		for j, p := range f.Params {
			if j >= len(argNames) {
				break
			}
			rt, concrete := fromStaticType(p.Ty)
			if !concrete {
				continue
			}
			t := e.mkIntermediate()
			conds = append(conds, t)
			stmts = append(stmts, CallStmt{
				Dest: VarLV{Name: t},
				C:    IsType{V: Var{Name: argNames[j]}, Ty: rt},
			})
		}

		condOut := e.mkIntermediate()
		stmts = append(stmts, CallStmt{
			Dest: VarLV{Name: condOut},
			C:    Assign{Src: Const{Ty: BoolTy(), V: 1}},
		})
		for _, t := range conds {
			stmts = append(stmts, CallStmt{
				Dest: VarLV{Name: condOut},
				C:    Bin{Op: OpAnd, A: Var{Name: condOut}, B: Var{Name: t}},
			})
		}

		weight := len(conds)
		if weight == 0 {
			zeroWeights++
		}
		candidates = append(candidates, candidate{
			weight: weight,
			cond:   Var{Name: condOut},
			fnName: fmt.Sprintf("%s_%d", name, index),
		})
	}

	if zeroWeights > 1 {
		return nil, fmt.Errorf(
			"hir: more than one fully generic overload of '%s', dynamic dispatch cannot order them", name)
	}

	thunkVars := e.locals.names

	var decls []Decl
	for index, f := range fs {
		fn, err := e.emitFn(f, fmt.Sprintf("%s_%d", name, index))
		if err != nil {
			return nil, err
		}
		decls = append(decls, fn)
	}

	// Fold the candidates, least selective innermost. Without a weight-0
	// overload the innermost case is a dispatch panic.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].weight < candidates[j].weight
	})

	acc := Block{Stmts: []Statement{CallStmt{
		Dest: VarLV{Name: out},
		C: Call{Name: "panic", Native: true, Args: []Val{
			Str{S: fmt.Sprintf("Dynamic dispatch failure for function call '%s'", name)},
		}},
	}}}
	for _, cand := range candidates {
		callBlock := Block{Stmts: []Statement{CallStmt{
			Dest: VarLV{Name: out},
			C:    Call{Name: cand.fnName, Args: args},
		}}}
		if cand.weight == 0 {
			acc = callBlock
		} else {
			acc = Block{Stmts: []Statement{IfStmt{Cond: cand.cond, Then: callBlock, Else: acc}}}
		}
	}

	body := Block{Stmts: append(stmts, acc.Stmts...)}
	body.push(ReturnStmt{V: Var{Name: out}})

	decls = append(decls, &Function{Name: name, Args: argNames, Vars: thunkVars, Body: body})
	return decls, nil
}

// emitEntrypoint synthesizes the function holding all top-level
// expressions, renaming their assigned variables into the global namespace.
func (e *emitter) emitEntrypoint(funNames map[string]bool, prog *typing.Program) (*Function, error) {
	entryName := "__start"
	for idx := 0; funNames[entryName]; idx++ {
		entryName = fmt.Sprintf("__start%d", idx)
	}

	rawGlobals := append([]string{}, prog.GlobalVars...)
	hasNothing := false
	for _, g := range rawGlobals {
		if g == "nothing" {
			hasNothing = true
		}
	}
	if !hasNothing {
		rawGlobals = append(rawGlobals, "nothing")
	}

	for _, gvar := range rawGlobals {
		renamed := e.uniqueGlobalName(gvar)
		e.globals.add(renamed)
		e.oldGlobals[gvar] = renamed
	}

	e.locals = newOrderedSet()
	e.params = make(map[string]bool)
	e.nextID = 0
	e.inEntrypoint = true

	body, err := e.emitFlattened(prog.Globals)
	if err != nil {
		return nil, err
	}
	return &Function{Name: entryName, Vars: e.locals.names, Body: Block{Stmts: body}}, nil
}

// Lower turns the typed program into a HIR source: struct declarations,
// one function (or overload family plus thunk) per user name, and the
// synthesized entrypoint last.
func Lower(prog *typing.Program) (*Source, error) {
	structNames := make(map[string]bool, len(prog.StructOrder))
	var decls []Decl
	for _, name := range prog.StructOrder {
		s := prog.Structures[name]
		fields := make([]string, len(s.Fields))
		for i, f := range s.Fields {
			fields[i] = f.Name.Name
		}
		decls = append(decls, &StructDecl{Name: name, Fields: fields})
		structNames[name] = true
	}

	e := newEmitter(structNames)

	funNames := make(map[string]bool)
	for _, name := range prog.FuncOrder {
		funNames[name] = true
		if len(prog.Functions[name]) > 1 {
			for i := range prog.Functions[name] {
				funNames[fmt.Sprintf("%s_%d", name, i)] = true
			}
		}
	}

	entry, err := e.emitEntrypoint(funNames, prog)
	if err != nil {
		return nil, err
	}

	for _, name := range prog.FuncOrder {
		ds, err := e.emitDispatch(name, prog.Functions[name])
		if err != nil {
			return nil, err
		}
		decls = append(decls, ds...)
	}

	decls = append(decls, entry)

	return &Source{
		Globals:    e.globals.names,
		Entrypoint: entry.Name,
		Decls:      decls,
	}, nil
}
