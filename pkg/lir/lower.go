package lir

import (
	"fmt"

	"pjulia/pkg/hir"
)

// Type tags: Nothing=0, Int64=1, Bool=2, Str=3, Struct(k)=4+k in registry
// order.
const (
	tagNothing = 0
	tagInt64   = 1
	tagBool    = 2
	tagStr     = 3
)

type labelGen struct {
	next int
}

func (g *labelGen) newLabel() string {
	name := fmt.Sprintf("lbl_%d", g.next)
	g.next++
	return name
}

type fieldData struct {
	id uint64
}

func (f fieldData) tyOffset() uint64  { return 16 * f.id }
func (f fieldData) valOffset() uint64 { return 16*f.id + 8 }

type structData struct {
	name   string
	id     uint64
	fields map[string]fieldData
	size   uint64
}

func (s *structData) field(name string) (fieldData, error) {
	data, ok := s.fields[name]
	if !ok {
		return fieldData{}, fmt.Errorf("lir: structure %q has no field named %q", s.name, name)
	}
	return data, nil
}

// varData is the two LIR words of one HIR variable.
type varData struct {
	tyName  string
	valName string
}

func newVarData(id int, global bool) varData {
	prefix := ""
	if global {
		prefix = "global_"
	}
	return varData{
		tyName:  fmt.Sprintf("%svar_%d_ty", prefix, id),
		valName: fmt.Sprintf("%svar_%d_val", prefix, id),
	}
}

// globalRegistry numbers globals, structs and functions; all three orders
// come from the HIR source, so the numbering is reproducible.
type globalRegistry struct {
	globalOrder []string
	globals     map[string]varData
	structs     map[string]*structData
	fnIDs       map[string]int
}

func newGlobalRegistry(src *hir.Source) (*globalRegistry, error) {
	g := &globalRegistry{
		globals: make(map[string]varData),
		structs: make(map[string]*structData),
		fnIDs:   make(map[string]int),
	}
	for i, name := range src.Globals {
		g.globals[name] = newVarData(i, true)
		g.globalOrder = append(g.globalOrder, name)
	}

	structID := uint64(0)
	fnID := 0
	for _, d := range src.Decls {
		switch d := d.(type) {
		case *hir.StructDecl:
			data := &structData{
				name:   d.Name,
				id:     structID,
				fields: make(map[string]fieldData, len(d.Fields)),
				size:   16 * uint64(len(d.Fields)),
			}
			for i, f := range d.Fields {
				data.fields[f] = fieldData{id: uint64(i)}
			}
			g.structs[d.Name] = data
			structID++
		case *hir.Function:
			if _, ok := g.fnIDs[d.Name]; ok {
				return nil, fmt.Errorf("lir: function %q is not uniquely defined", d.Name)
			}
			g.fnIDs[d.Name] = fnID
			fnID++
		}
	}
	return g, nil
}

func (g *globalRegistry) compiledVarNames() []string {
	var out []string
	for _, name := range g.globalOrder {
		data := g.globals[name]
		out = append(out, data.tyName, data.valName)
	}
	return out
}

func (g *globalRegistry) getVar(name string) (varData, error) {
	data, ok := g.globals[name]
	if !ok {
		return varData{}, fmt.Errorf("lir: variable %q was not declared", name)
	}
	return data, nil
}

func (g *globalRegistry) typeID(t hir.Type) (Val, error) {
	switch t.Kind {
	case hir.TyNothing:
		return Const{V: tagNothing}, nil
	case hir.TyInt64:
		return Const{V: tagInt64}, nil
	case hir.TyBool:
		return Const{V: tagBool}, nil
	case hir.TyStr:
		return Const{V: tagStr}, nil
	default:
		data, ok := g.structs[t.Name]
		if !ok {
			return nil, fmt.Errorf("lir: structure %q was not declared", t.Name)
		}
		return Const{V: data.id + 4}, nil
	}
}

func (g *globalRegistry) getStruct(name string) (*structData, error) {
	data, ok := g.structs[name]
	if !ok {
		return nil, fmt.Errorf("lir: structure %q was not declared", name)
	}
	return data, nil
}

func (g *globalRegistry) compiledFnName(name string) (string, error) {
	id, ok := g.fnIDs[name]
	if !ok {
		return "", fmt.Errorf("lir: no user function named %q", name)
	}
	return fmt.Sprintf("usr_fn_%d", id), nil
}

// localRegistry expands one function's locals; it can mint extra pairs for
// field-destination temporaries.
type localRegistry struct {
	parent *globalRegistry
	order  []string
	vars   map[string]varData
	extra  []varData
	nextID int
}

func newLocalRegistry(parent *globalRegistry, vars []string) *localRegistry {
	l := &localRegistry{
		parent: parent,
		vars:   make(map[string]varData, len(vars)),
		nextID: len(vars),
	}
	for i, v := range vars {
		l.vars[v] = newVarData(i, false)
		l.order = append(l.order, v)
	}
	return l
}

func (l *localRegistry) compiledVarNames() []string {
	var out []string
	for _, name := range l.order {
		data := l.vars[name]
		out = append(out, data.tyName, data.valName)
	}
	for _, data := range l.extra {
		out = append(out, data.tyName, data.valName)
	}
	return out
}

func (l *localRegistry) getVar(name string) (varData, error) {
	if data, ok := l.vars[name]; ok {
		return data, nil
	}
	return l.parent.getVar(name)
}

func (l *localRegistry) mkExtraVar() varData {
	data := newVarData(l.nextID, false)
	l.extra = append(l.extra, data)
	l.nextID++
	return data
}

// compiledVal is the (tag word, value word) pair of one HIR value.
type compiledVal struct {
	ty  Val
	val Val
}

func (l *localRegistry) compileVal(v hir.Val) (compiledVal, error) {
	switch v := v.(type) {
	case hir.Nothing:
		return compiledVal{ty: Const{V: tagNothing}, val: Const{V: 0}}, nil
	case hir.Var:
		data, err := l.getVar(v.Name)
		if err != nil {
			return compiledVal{}, err
		}
		return compiledVal{ty: Var{Name: data.tyName}, val: Var{Name: data.valName}}, nil
	case hir.Const:
		ty, err := l.parent.typeID(v.Ty)
		if err != nil {
			return compiledVal{}, err
		}
		return compiledVal{ty: ty, val: Const{V: v.V}}, nil
	case hir.Str:
		return compiledVal{ty: Const{V: tagStr}, val: Str{S: v.S}}, nil
	default:
		return compiledVal{}, fmt.Errorf("lir: unknown HIR value %T", v)
	}
}

func binOpOf(op hir.BinOp) (uint64, BinOp) {
	switch op {
	case hir.OpAnd:
		return tagBool, OpAnd
	case hir.OpOr:
		return tagBool, OpOr
	case hir.OpEqu:
		return tagBool, OpEqu
	case hir.OpNeq:
		return tagBool, OpNeq
	case hir.OpLt:
		return tagBool, OpLt
	case hir.OpLeq:
		return tagBool, OpLeq
	case hir.OpGt:
		return tagBool, OpGt
	case hir.OpGeq:
		return tagBool, OpGeq
	case hir.OpAdd:
		return tagInt64, OpAdd
	case hir.OpSub:
		return tagInt64, OpSub
	case hir.OpMul:
		return tagInt64, OpMul
	default:
		return tagInt64, OpMod
	}
}

// compileCall lowers one HIR call statement. When the destination is a
// field access the result goes through a fresh temporary, then two array
// stores through the struct pointer.
func compileCall(global *globalRegistry, local *localRegistry, dest hir.LValue, call hir.Callable) ([]Statement, error) {
	var out []Statement

	var destVar varData
	switch d := dest.(type) {
	case hir.VarLV:
		data, err := local.getVar(d.Name)
		if err != nil {
			return nil, err
		}
		destVar = data
	case hir.AccessLV:
		destVar = local.mkExtraVar()
	default:
		return nil, fmt.Errorf("lir: unknown HIR lvalue %T", dest)
	}

	switch c := call.(type) {
	case hir.Call:
		var words []Val
		for _, arg := range c.Args {
			a, err := local.compileVal(arg)
			if err != nil {
				return nil, err
			}
			words = append(words, a.ty, a.val)
		}
		fnName := "native_" + c.Name
		if !c.Native {
			var err error
			fnName, err = global.compiledFnName(c.Name)
			if err != nil {
				return nil, err
			}
		}
		out = append(out, Call{
			HasDest: true,
			DestTy:  destVar.tyName,
			DestVal: destVar.valName,
			Native:  c.Native,
			Fn:      fnName,
			Args:    words,
		})

	case hir.Bin:
		tag, op := binOpOf(c.Op)
		a, err := local.compileVal(c.A)
		if err != nil {
			return nil, err
		}
		b, err := local.compileVal(c.B)
		if err != nil {
			return nil, err
		}
		out = append(out,
			Mov{Dest: destVar.tyName, A: Const{V: tag}},
			Bin{Dest: destVar.valName, Op: op, A: a.val, B: b.val})

	case hir.Unary:
		tag := uint64(tagInt64)
		op := OpNeg
		if c.Op == hir.OpNot {
			tag = tagBool
			op = OpNot
		}
		a, err := local.compileVal(c.A)
		if err != nil {
			return nil, err
		}
		out = append(out,
			Mov{Dest: destVar.tyName, A: Const{V: tag}},
			Unary{Dest: destVar.valName, Op: op, A: a.val})

	case hir.Assign:
		a, err := local.compileVal(c.Src)
		if err != nil {
			return nil, err
		}
		out = append(out,
			Mov{Dest: destVar.tyName, A: a.ty},
			Mov{Dest: destVar.valName, A: a.val})

	case hir.Alloc:
		tyID, err := global.typeID(hir.StructTy(c.Struct))
		if err != nil {
			return nil, err
		}
		data, err := global.getStruct(c.Struct)
		if err != nil {
			return nil, err
		}
		out = append(out, Call{
			HasDest: true,
			DestTy:  destVar.tyName,
			DestVal: destVar.valName,
			Native:  true,
			Fn:      "native_alloc",
			Args:    []Val{tyID, Const{V: data.size}},
		})

	case hir.IsType:
		a, err := local.compileVal(c.V)
		if err != nil {
			return nil, err
		}
		tyID, err := global.typeID(c.Ty)
		if err != nil {
			return nil, err
		}
		out = append(out,
			Mov{Dest: destVar.tyName, A: Const{V: tagBool}},
			Bin{Dest: destVar.valName, Op: OpEqu, A: a.ty, B: tyID})

	case hir.Access:
		data, err := global.getStruct(c.Struct)
		if err != nil {
			return nil, err
		}
		field, err := data.field(c.Field)
		if err != nil {
			return nil, err
		}
		a, err := local.compileVal(c.V)
		if err != nil {
			return nil, err
		}
		out = append(out,
			Access{Dest: destVar.tyName, A: a.val, Offset: field.tyOffset()},
			Access{Dest: destVar.valName, A: a.val, Offset: field.valOffset()})

	default:
		return nil, fmt.Errorf("lir: unknown HIR callable %T", call)
	}

	if d, ok := dest.(hir.AccessLV); ok {
		data, err := global.getStruct(d.Struct)
		if err != nil {
			return nil, err
		}
		field, err := data.field(d.Field)
		if err != nil {
			return nil, err
		}
		ptr, err := local.compileVal(d.V)
		if err != nil {
			return nil, err
		}
		out = append(out,
			AssignArray{Dest: ptr.val, Offset: field.tyOffset(), A: Var{Name: destVar.tyName}},
			AssignArray{Dest: ptr.val, Offset: field.valOffset(), A: Var{Name: destVar.valName}})
	}

	return out, nil
}

func compileBlock(gen *labelGen, global *globalRegistry, local *localRegistry, b hir.Block) ([]Statement, error) {
	var out []Statement
	for _, stmt := range b.Stmts {
		switch s := stmt.(type) {
		case hir.CallStmt:
			stmts, err := compileCall(global, local, s.Dest, s.C)
			if err != nil {
				return nil, err
			}
			out = append(out, stmts...)

		case hir.ReturnStmt:
			v, err := local.compileVal(s.V)
			if err != nil {
				return nil, err
			}
			out = append(out, Return{Ty: v.ty, V: v.val})

		case hir.IfStmt:
			cond, err := local.compileVal(s.Cond)
			if err != nil {
				return nil, err
			}
			lblTrue := gen.newLabel()
			lblEnd := gen.newLabel()

			out = append(out, Jumpif{Cond: cond.val, Label: lblTrue})
			elseStmts, err := compileBlock(gen, global, local, s.Else)
			if err != nil {
				return nil, err
			}
			out = append(out, elseStmts...)
			out = append(out, Jump{Label: lblEnd}, Label{Name: lblTrue})
			thenStmts, err := compileBlock(gen, global, local, s.Then)
			if err != nil {
				return nil, err
			}
			out = append(out, thenStmts...)
			out = append(out, Label{Name: lblEnd})

		case hir.WhileStmt:
			cond, err := local.compileVal(s.Cond)
			if err != nil {
				return nil, err
			}
			lblBody := gen.newLabel()
			lblEnd := gen.newLabel()

			out = append(out, Label{Name: lblBody}, JumpifNot{Cond: cond.val, Label: lblEnd})
			bodyStmts, err := compileBlock(gen, global, local, s.Body)
			if err != nil {
				return nil, err
			}
			out = append(out, bodyStmts...)
			out = append(out, Jump{Label: lblBody}, Label{Name: lblEnd})

		default:
			return nil, fmt.Errorf("lir: unknown HIR statement %T", stmt)
		}
	}
	return out, nil
}

func compileFn(global *globalRegistry, f *hir.Function) (*Function, error) {
	local := newLocalRegistry(global, f.Vars)
	gen := &labelGen{}

	// Arguments are locals too; register any not already in vars.
	for _, arg := range f.Args {
		if _, ok := local.vars[arg]; !ok {
			local.vars[arg] = newVarData(local.nextID, false)
			local.order = append(local.order, arg)
			local.nextID++
		}
	}

	body, err := compileBlock(gen, global, local, f.Body)
	if err != nil {
		return nil, err
	}

	var args []string
	for _, arg := range f.Args {
		data, err := local.getVar(arg)
		if err != nil {
			return nil, err
		}
		args = append(args, data.tyName, data.valName)
	}

	name, err := global.compiledFnName(f.Name)
	if err != nil {
		return nil, err
	}
	return &Function{Name: name, Args: args, Vars: local.compiledVarNames(), Body: body}, nil
}

// Lower translates a HIR source to LIR: every function compiled, plus a
// synthesized main calling the entrypoint and returning its two-word value.
func Lower(src *hir.Source) (*Source, error) {
	global, err := newGlobalRegistry(src)
	if err != nil {
		return nil, err
	}

	if src.Entrypoint == "" {
		return nil, fmt.Errorf("lir: no entrypoint function")
	}
	if _, ok := global.fnIDs[src.Entrypoint]; !ok {
		return nil, fmt.Errorf("lir: no function named %q", src.Entrypoint)
	}

	var funcs []*Function
	for _, d := range src.Decls {
		if f, ok := d.(*hir.Function); ok {
			compiled, err := compileFn(global, f)
			if err != nil {
				return nil, err
			}
			funcs = append(funcs, compiled)
		}
	}

	entryName, err := global.compiledFnName(src.Entrypoint)
	if err != nil {
		return nil, err
	}
	funcs = append(funcs, &Function{
		Name: "main",
		Vars: []string{"ret_code_ty", "ret_code_val"},
		Body: []Statement{
			Call{HasDest: true, DestTy: "ret_code_ty", DestVal: "ret_code_val", Fn: entryName},
			Return{Ty: Var{Name: "ret_code_ty"}, V: Var{Name: "ret_code_val"}},
		},
	})

	return &Source{Globals: global.compiledVarNames(), Funcs: funcs}, nil
}
