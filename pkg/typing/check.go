package typing

import (
	"pjulia/pkg/automata"
	"pjulia/pkg/lang"
)

func isAnyOr(e *lang.Exp, t lang.StaticType) bool {
	return e.Ty.Kind == lang.TyAny || e.Ty == t
}

func isOneOfOrAny(e *lang.Exp, ts ...lang.StaticType) bool {
	if e.Ty.Kind == lang.TyAny {
		return true
	}
	for _, t := range ts {
		if e.Ty == t {
			return true
		}
	}
	return false
}

func noSuchOperation(span automata.Span, op string, ts ...lang.StaticType) error {
	return automata.Errorf(span, "No such operation '%s' for signature (%s)", op, formatSignature(ts))
}

// typeBlock types the expressions in order and settles the block's type: a
// block yields its last expression's value unless it is empty or ends with
// a semicolon, in which case it yields Nothing.
func (c *checker) typeBlock(b *lang.Block) error {
	for _, e := range b.Exps {
		if err := c.typeExp(e); err != nil {
			return err
		}
	}
	if len(b.Exps) == 0 || b.TrailingSemi {
		b.Ty = lang.Nothing()
	} else {
		b.Ty = b.Exps[len(b.Exps)-1].Ty
	}
	return nil
}

func (c *checker) typeElse(e *lang.Else) (lang.StaticType, error) {
	switch v := e.Val.(type) {
	case lang.ElseEnd:
		return lang.Nothing(), nil
	case lang.ElseBlock:
		if err := c.typeBlock(v.B); err != nil {
			return lang.Any(), err
		}
		return v.B.Ty, nil
	case lang.ElseIf:
		if err := c.typeExp(v.Cond); err != nil {
			return lang.Any(), err
		}
		if !isAnyOr(v.Cond, lang.Bool()) {
			return lang.Any(), automata.Errorf(v.Cond.Span,
				"Non-boolean (%s) used in boolean context", v.Cond.Ty)
		}
		if err := c.typeBlock(v.Then); err != nil {
			return lang.Any(), err
		}
		rest, err := c.typeElse(v.Else)
		if err != nil {
			return lang.Any(), err
		}
		if rest == v.Then.Ty {
			return v.Then.Ty, nil
		}
		return lang.Any(), nil
	default:
		panic("typing: unknown else node")
	}
}

// fieldExistsIn checks receiver/field consistency: a concrete struct must
// declare the field, Any defers to narrowing, anything else cannot have
// fields.
func (c *checker) fieldExistsIn(t lang.StaticType, field string) bool {
	switch t.Kind {
	case lang.TyAny:
		return true
	case lang.TyStruct:
		s, ok := c.structures[t.Name]
		if !ok {
			return false
		}
		for _, f := range s.Fields {
			if f.Name.Name == field {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// narrowReceiver gives an Any-typed field-access receiver the unique struct
// type owning the field. Field names are globally unique, so the owner is
// unique whenever it exists.
func (c *checker) narrowReceiver(e *lang.Exp, field string, span automata.Span) error {
	if e.Ty.Kind != lang.TyAny {
		return nil
	}
	owner, ok := c.fieldOwner[field]
	if !ok {
		return automata.Errorf(span, "Field '%s' is not declared anywhere in any structure", field)
	}
	e.Ty = lang.Struct(owner)
	return nil
}

func (c *checker) typeSimpleAssign(lv *lang.LValue, e *lang.Exp) error {
	if err := c.typeExp(e); err != nil {
		return err
	}
	entry, ok := c.lookupEnv(lv.Name)
	if !ok {
		return automata.Errorf(lv.Span, "No variable named '%s' is declared in this scope", lv.Name)
	}
	lv.Scope = entry.scope
	if !lang.Compatible(entry.ty, e.Ty) {
		return automata.Errorf(e.Span,
			"Expected on the lhs '%s' type, found: '%s' on the rhs", entry.ty, e.Ty)
	}
	return nil
}

func (c *checker) typeComplexAssign(lv *lang.LValue, e *lang.Exp) error {
	prefix := lv.In
	if err := c.typeExp(prefix); err != nil {
		return err
	}
	if !c.fieldExistsIn(prefix.Ty, lv.Name) {
		return automata.Errorf(lv.Span,
			"Field '%s' does not exist for the type '%s'", lv.Name, prefix.Ty)
	}
	if err := c.narrowReceiver(prefix, lv.Name, lv.Span); err != nil {
		return err
	}
	if !c.mutableFields[lv.Name] {
		return automata.Errorf(lv.Span,
			"Field '%s' is not contained in a mutable structure, it cannot be assigned", lv.Name)
	}
	if err := c.typeExp(e); err != nil {
		return err
	}
	if !lang.Compatible(c.allFields[lv.Name], e.Ty) {
		return automata.Errorf(e.Span,
			"This expression has type '%s' but is incompatible with '%s' (declared in the structure)",
			e.Ty, c.allFields[lv.Name])
	}
	return nil
}

// uniqueReturnType resolves a call target to a definite return type when
// one exists: a constructor returns its structure, a single-overload
// function returns its annotation.
func (c *checker) uniqueReturnType(name string) (lang.StaticType, bool) {
	if _, ok := c.structures[name]; ok {
		return lang.Struct(name), true
	}
	if sigs := c.sigs[name]; len(sigs) == 1 {
		return sigs[0].Ret, true
	}
	return lang.Any(), false
}

func (c *checker) typeUserCall(e *lang.Exp, name string, args []*lang.Exp) (lang.StaticType, error) {
	// Expected parameter types: field types for a constructor, the
	// declared parameters when a single overload exists, Any otherwise.
	var expected []lang.StaticType
	if s, ok := c.structures[name]; ok {
		for _, f := range s.Fields {
			expected = append(expected, f.Ty)
		}
	} else if sigs := c.sigs[name]; len(sigs) == 1 {
		expected = sigs[0].Params
	} else {
		expected = make([]lang.StaticType, len(args))
		for i := range expected {
			expected[i] = lang.Any()
		}
	}

	for i, arg := range args {
		if err := c.typeExp(arg); err != nil {
			return lang.Any(), err
		}
		if i < len(expected) && !lang.Compatible(arg.Ty, expected[i]) {
			return lang.Any(), automata.Errorf(arg.Span,
				"Incompatible types. Expected '%s', found '%s'", expected[i], arg.Ty)
		}
	}

	if ty, ok := c.uniqueReturnType(name); ok {
		return ty, nil
	}

	argTys := make([]lang.StaticType, len(args))
	for i, arg := range args {
		argTys[i] = arg.Ty
	}
	if sigs, ok := c.sigs[name]; ok && isCallAmbiguous(argTys, sigs) {
		desc := "no information on the signature"
		if enriched, ok := ambiguousSignature(argTys, sigs); ok {
			desc = formatSignature(enriched)
		}
		return lang.Any(), automata.Errorf(e.Span,
			"Ambiguous call to function '%s (%s)', cannot be resolved at runtime through dynamic dispatch",
			name, desc)
	}
	return lang.Any(), nil
}

func (c *checker) typeCall(e *lang.Exp, v lang.CallExp) error {
	switch v.Name {
	case "div":
		if len(v.Args) != 2 {
			return automata.Errorf(e.Span, "`div` was called here with less or more than two arguments!")
		}
		for _, arg := range v.Args {
			if err := c.typeExp(arg); err != nil {
				return err
			}
		}
		if !isAnyOr(v.Args[0], lang.Int64()) || !isAnyOr(v.Args[1], lang.Int64()) {
			return noSuchOperation(e.Span, "div", v.Args[0].Ty, v.Args[1].Ty)
		}
		e.Ty = lang.Int64()
	case "print", "println":
		for _, arg := range v.Args {
			if err := c.typeExp(arg); err != nil {
				return err
			}
		}
		e.Ty = lang.Nothing()
	default:
		_, isStruct := c.structures[v.Name]
		_, isFunc := c.functions[v.Name]
		if !isStruct && !isFunc {
			return automata.Errorf(e.Span,
				"There is no such function or structure named '%s'", v.Name)
		}
		ty, err := c.typeUserCall(e, v.Name, v.Args)
		if err != nil {
			return err
		}
		e.Ty = ty
	}
	return nil
}

// typeExp is the bottom-up typing walk. It fills e.Ty and the scope slot of
// every lvalue it visits.
func (c *checker) typeExp(e *lang.Exp) error {
	switch v := e.Val.(type) {
	case lang.ReturnExp:
		if v.E != nil {
			if err := c.typeExp(v.E); err != nil {
				return err
			}
		}
		e.Ty = lang.Any()

	case lang.AssignExp:
		if v.LV.In == nil {
			if err := c.typeSimpleAssign(v.LV, v.E); err != nil {
				return err
			}
		} else {
			if err := c.typeComplexAssign(v.LV, v.E); err != nil {
				return err
			}
		}
		e.Ty = lang.Any()

	case lang.BinExp:
		if err := c.typeExp(v.L); err != nil {
			return err
		}
		if err := c.typeExp(v.R); err != nil {
			return err
		}
		switch v.Op {
		case lang.OpPlus, lang.OpMinus, lang.OpTimes, lang.OpMod, lang.OpPow:
			if !isAnyOr(v.L, lang.Int64()) {
				return noSuchOperation(v.L.Span, v.Op.String(), v.L.Ty, v.R.Ty)
			}
			if !isAnyOr(v.R, lang.Int64()) {
				return noSuchOperation(v.R.Span, v.Op.String(), v.L.Ty, v.R.Ty)
			}
			e.Ty = lang.Int64()
		case lang.OpEqu, lang.OpNeq:
			e.Ty = lang.Bool()
		case lang.OpLt, lang.OpLeq, lang.OpGt, lang.OpGeq:
			if !isOneOfOrAny(v.L, lang.Int64(), lang.Bool()) {
				return noSuchOperation(v.L.Span, v.Op.String(), v.L.Ty, v.R.Ty)
			}
			if !isOneOfOrAny(v.R, lang.Int64(), lang.Bool()) {
				return noSuchOperation(v.R.Span, v.Op.String(), v.L.Ty, v.R.Ty)
			}
			e.Ty = lang.Bool()
		case lang.OpAnd, lang.OpOr:
			if !isAnyOr(v.L, lang.Bool()) {
				return noSuchOperation(v.L.Span, v.Op.String(), v.L.Ty, v.R.Ty)
			}
			if !isAnyOr(v.R, lang.Bool()) {
				return noSuchOperation(v.R.Span, v.Op.String(), v.L.Ty, v.R.Ty)
			}
			e.Ty = lang.Bool()
		}

	case lang.UnaryExp:
		if err := c.typeExp(v.E); err != nil {
			return err
		}
		switch v.Op {
		case lang.OpNeg:
			if !isAnyOr(v.E, lang.Int64()) {
				return noSuchOperation(v.E.Span, v.Op.String(), v.E.Ty)
			}
			e.Ty = lang.Int64()
		case lang.OpNot:
			if !isAnyOr(v.E, lang.Bool()) {
				return noSuchOperation(v.E.Span, v.Op.String(), v.E.Ty)
			}
			e.Ty = lang.Bool()
		}

	case lang.CallExp:
		return c.typeCall(e, v)

	case lang.IntExp:
		e.Ty = lang.Int64()
	case lang.StrExp:
		e.Ty = lang.Str()
	case lang.BoolExp:
		e.Ty = lang.Bool()

	case lang.LValueExp:
		lv := v.LV
		if lv.In == nil {
			entry, ok := c.lookupEnv(lv.Name)
			if !ok {
				return automata.Errorf(lv.Span,
					"No variable named '%s' is declared in this scope", lv.Name)
			}
			lv.Scope = entry.scope
			e.Ty = entry.ty
		} else {
			if err := c.typeExp(lv.In); err != nil {
				return err
			}
			if !c.fieldExistsIn(lv.In.Ty, lv.Name) {
				return automata.Errorf(lv.Span,
					"No field named '%s' in type '%s'", lv.Name, lv.In.Ty)
			}
			if _, ok := c.allFields[lv.Name]; !ok {
				return automata.Errorf(lv.Span,
					"No field named '%s' in any structure", lv.Name)
			}
			if err := c.narrowReceiver(lv.In, lv.Name, lv.Span); err != nil {
				return err
			}
			e.Ty = c.allFields[lv.Name]
			lv.Scope = lang.ScopeLocal
		}

	case lang.BlockExp:
		if err := c.typeBlock(v.B); err != nil {
			return err
		}
		e.Ty = lang.Any()

	case lang.MulExp:
		if _, ok := c.lookupEnv(v.Var); !ok {
			return automata.Errorf(e.Span,
				"No variable named '%s' is declared in this scope", v.Var)
		}
		e.Ty = lang.Int64()

	case lang.LMulExp:
		if err := c.typeBlock(v.B); err != nil {
			return err
		}
		e.Ty = lang.Int64()

	case lang.RMulExp:
		if _, ok := c.lookupEnv(v.Var); !ok {
			return automata.Errorf(e.Span,
				"No variable named '%s' is declared in this scope", v.Var)
		}
		if err := c.typeExp(v.E); err != nil {
			return err
		}
		e.Ty = lang.Int64()

	case lang.IfExp:
		if err := c.typeExp(v.Cond); err != nil {
			return err
		}
		if !isAnyOr(v.Cond, lang.Bool()) {
			return automata.Errorf(v.Cond.Span,
				"Non-boolean (%s) used in boolean context", v.Cond.Ty)
		}
		if err := c.typeBlock(v.Then); err != nil {
			return err
		}
		elseTy, err := c.typeElse(v.Else)
		if err != nil {
			return err
		}
		if v.Then.Ty == elseTy {
			e.Ty = v.Then.Ty
		} else {
			e.Ty = lang.Any()
		}

	case lang.ForExp:
		if err := c.typeExp(v.Range.Start); err != nil {
			return err
		}
		if err := c.typeExp(v.Range.End); err != nil {
			return err
		}
		extra := c.extendLocals(CollectAssignedExps(v.Body.Exps), map[string]bool{v.Var.Name: true})
		c.pushEnv(v.Var.Name, lang.Int64(), lang.ScopeLocal)
		if err := c.typeBlock(v.Body); err != nil {
			return err
		}
		c.popEnv(v.Var.Name)
		c.unextend(extra)
		e.Ty = lang.Nothing()

	case lang.WhileExp:
		if err := c.typeExp(v.Cond); err != nil {
			return err
		}
		if !isAnyOr(v.Cond, lang.Bool()) {
			return automata.Errorf(v.Cond.Span,
				"Non-boolean (%s) used in boolean context", v.Cond.Ty)
		}
		extra := c.extendLocals(CollectAssignedExps(v.Body.Exps), nil)
		if err := c.typeBlock(v.Body); err != nil {
			return err
		}
		c.unextend(extra)
		e.Ty = lang.Nothing()

	default:
		panic("typing: unknown expression node")
	}
	return nil
}
