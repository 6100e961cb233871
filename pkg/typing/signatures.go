package typing

import (
	"strings"

	"pjulia/pkg/lang"
)

// FuncSig is the type skeleton of one overload.
type FuncSig struct {
	Ret    lang.StaticType
	Params []lang.StaticType
}

func buildSig(f *lang.Function) FuncSig {
	sig := FuncSig{Ret: f.RetTy}
	for _, p := range f.Params {
		sig.Params = append(sig.Params, p.Ty)
	}
	return sig
}

// matchScore scores one parameter pair: Any on either side is neutral, an
// exact concrete match counts, an incompatible pair disqualifies.
func matchScore(a, b lang.StaticType) int {
	if a.Kind == lang.TyAny || b.Kind == lang.TyAny {
		return 0
	}
	if a == b {
		return 1
	}
	return -1
}

// callableWith reports element-wise compatibility; arities must agree.
func callableWith(args []lang.StaticType, sig FuncSig) bool {
	if len(args) != len(sig.Params) {
		return false
	}
	for i := range args {
		if !lang.Compatible(args[i], sig.Params[i]) {
			return false
		}
	}
	return true
}

// callableWithExactly reports element-wise equality; it is the duplicate
// criterion at declaration time.
func callableWithExactly(params []lang.StaticType, sig FuncSig) bool {
	if len(params) != len(sig.Params) {
		return false
	}
	for i := range params {
		if params[i] != sig.Params[i] {
			return false
		}
	}
	return true
}

func selectivityWeight(args []lang.StaticType, sig FuncSig) int {
	w := 0
	for i := range args {
		w += matchScore(args[i], sig.Params[i])
	}
	return w
}

// isCallAmbiguous implements the call-site rule: among the overloads
// callable with args, if the best positive weight is attained at least
// twice, no runtime test can separate the candidates.
func isCallAmbiguous(args []lang.StaticType, sigs []FuncSig) bool {
	best := 0
	count := 0
	for _, sig := range sigs {
		if !callableWith(args, sig) {
			continue
		}
		w := selectivityWeight(args, sig)
		switch {
		case count == 0 || w > best:
			best = w
			count = 1
		case w == best:
			count++
		}
	}
	return best > 0 && count > 1
}

// mostPrecise assumes compatibility and keeps the concrete side.
func mostPrecise(a, b lang.StaticType) lang.StaticType {
	if a.Kind == lang.TyAny {
		return b
	}
	return a
}

// ambiguousSignature reconstructs, for the error message, the enriched
// signature a conflicting overload pair shares with the arguments.
func ambiguousSignature(args []lang.StaticType, sigs []FuncSig) ([]lang.StaticType, bool) {
	for i := 0; i < len(sigs); i++ {
		for j := i + 1; j < len(sigs); j++ {
			si, sj := sigs[i], sigs[j]
			if len(si.Params) != len(args) || len(sj.Params) != len(args) {
				continue
			}
			ok := true
			for k := range args {
				if !lang.Compatible(si.Params[k], sj.Params[k]) ||
					!lang.Compatible(args[k], si.Params[k]) ||
					!lang.Compatible(args[k], sj.Params[k]) {
					ok = false
					break
				}
			}
			if ok {
				out := make([]lang.StaticType, len(args))
				for k := range args {
					out[k] = mostPrecise(mostPrecise(args[k], si.Params[k]), sj.Params[k])
				}
				return out, true
			}
		}
	}
	return nil, false
}

func formatSignature(ts []lang.StaticType) string {
	parts := make([]string, len(ts))
	for i, t := range ts {
		parts[i] = "::" + t.String()
	}
	return strings.Join(parts, ", ")
}
