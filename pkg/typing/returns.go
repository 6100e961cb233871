package typing

import (
	"pjulia/pkg/automata"
	"pjulia/pkg/lang"
)

func verifyReturnType(span automata.Span, found *lang.Exp, expected lang.StaticType) error {
	if found == nil {
		if expected.Kind != lang.TyAny && expected.Kind != lang.TyNothing {
			return automata.Errorf(span,
				"Mismatching return types, found nothing, expected: '%s'", expected)
		}
		return nil
	}
	if !lang.Compatible(found.Ty, expected) {
		return automata.Errorf(found.Span,
			"Mismatching return types, found: '%s', expected: '%s'", found.Ty, expected)
	}
	return nil
}

func visitReturns(e *lang.Exp, expected lang.StaticType) error {
	switch v := e.Val.(type) {
	case lang.ReturnExp:
		return verifyReturnType(e.Span, v.E, expected)
	case lang.AssignExp:
		return visitReturns(v.E, expected)
	case lang.BinExp:
		if err := visitReturns(v.L, expected); err != nil {
			return err
		}
		return visitReturns(v.R, expected)
	case lang.UnaryExp:
		return visitReturns(v.E, expected)
	case lang.CallExp:
		for _, arg := range v.Args {
			if err := visitReturns(arg, expected); err != nil {
				return err
			}
		}
		return nil
	case lang.BlockExp:
		return visitReturnsExps(v.B.Exps, expected)
	case lang.LMulExp:
		return visitReturnsExps(v.B.Exps, expected)
	case lang.RMulExp:
		return visitReturns(v.E, expected)
	case lang.IfExp:
		if err := visitReturns(v.Cond, expected); err != nil {
			return err
		}
		if err := visitReturnsExps(v.Then.Exps, expected); err != nil {
			return err
		}
		return visitElseReturns(v.Else, expected)
	case lang.ForExp:
		return visitReturnsExps(v.Body.Exps, expected)
	case lang.WhileExp:
		if err := visitReturns(v.Cond, expected); err != nil {
			return err
		}
		return visitReturnsExps(v.Body.Exps, expected)
	default:
		return nil
	}
}

func visitReturnsExps(exps []*lang.Exp, expected lang.StaticType) error {
	for _, e := range exps {
		if err := visitReturns(e, expected); err != nil {
			return err
		}
	}
	return nil
}

func visitElseReturns(e *lang.Else, expected lang.StaticType) error {
	switch v := e.Val.(type) {
	case lang.ElseBlock:
		return visitReturnsExps(v.B.Exps, expected)
	case lang.ElseIf:
		if err := visitReturns(v.Cond, expected); err != nil {
			return err
		}
		if err := visitReturnsExps(v.Then.Exps, expected); err != nil {
			return err
		}
		return visitElseReturns(v.Else, expected)
	default:
		return nil
	}
}

// verifyExplicitReturns checks every `return` in the body against the
// declared return type.
func verifyExplicitReturns(b *lang.Block, expected lang.StaticType) error {
	return visitReturnsExps(b.Exps, expected)
}

// verifyImplicitReturn checks the value a body falls off the end with: when
// there is no trailing semicolon, the last expression's type must fit the
// declaration; otherwise the declaration must accept Nothing.
func verifyImplicitReturn(f *lang.Function) error {
	if !f.Body.TrailingSemi {
		if len(f.Body.Exps) == 0 {
			if !lang.Compatible(f.RetTy, lang.Nothing()) {
				return automata.Errorf(f.Span,
					"Empty function '%s' returning `nothing` while '%s' was expected", f.Name, f.RetTy)
			}
			return nil
		}
		last := f.Body.Exps[len(f.Body.Exps)-1]
		if !lang.Compatible(f.RetTy, last.Ty) {
			return automata.Errorf(last.Span,
				"Invalid type for implicit return in function '%s', expected '%s', found: '%s'",
				f.Name, f.RetTy, last.Ty)
		}
		return nil
	}
	if !lang.Compatible(f.RetTy, lang.Nothing()) {
		return automata.Errorf(f.Span,
			"Function '%s' ends with a semicolon and returns `nothing` while '%s' was expected", f.Name, f.RetTy)
	}
	return nil
}
