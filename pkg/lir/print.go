package lir

import (
	"fmt"
	"strconv"
	"strings"
)

func valString(v Val) string {
	switch v := v.(type) {
	case Var:
		return v.Name
	case Const:
		return strconv.FormatUint(v.V, 10)
	case Str:
		return strconv.Quote(v.S)
	default:
		panic("lir: unknown value")
	}
}

func valsString(vals []Val) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = valString(v)
	}
	return strings.Join(parts, ", ")
}

func stmtString(s Statement) string {
	switch s := s.(type) {
	case Label:
		return fmt.Sprintf("  %s:", s.Name)
	case Bin:
		return fmt.Sprintf("    %s <- %s %s %s;", s.Dest, valString(s.A), s.Op, valString(s.B))
	case Unary:
		return fmt.Sprintf("    %s <- %s%s;", s.Dest, s.Op, valString(s.A))
	case Mov:
		return fmt.Sprintf("    %s <- %s;", s.Dest, valString(s.A))
	case AssignArray:
		return fmt.Sprintf("    %s[%d] <- %s;", valString(s.Dest), s.Offset, valString(s.A))
	case Access:
		return fmt.Sprintf("    %s <- %s[%d];", s.Dest, valString(s.A), s.Offset)
	case Jump:
		return fmt.Sprintf("    jump %s;", s.Label)
	case Jumpif:
		return fmt.Sprintf("    jumpif %s %s;", valString(s.Cond), s.Label)
	case JumpifNot:
		return fmt.Sprintf("    jumpif not %s %s;", valString(s.Cond), s.Label)
	case Call:
		head := "call "
		if s.Native {
			head = "call native "
		}
		callText := head + s.Fn + "(" + valsString(s.Args) + ")"
		if s.HasDest {
			return fmt.Sprintf("    (%s, %s) <- %s;", s.DestTy, s.DestVal, callText)
		}
		return "    " + callText + ";"
	case Return:
		return fmt.Sprintf("    return %s, %s;", valString(s.Ty), valString(s.V))
	default:
		panic("lir: unknown statement")
	}
}

func (f *Function) String() string {
	var out strings.Builder
	fmt.Fprintf(&out, "fn %s(%s) vars: %s; {\n",
		f.Name, strings.Join(f.Args, ", "), strings.Join(f.Vars, ", "))
	for _, s := range f.Body {
		out.WriteString(stmtString(s))
		out.WriteString("\n")
	}
	out.WriteString("}\n")
	return out.String()
}

// String renders the program in the textual LIR format.
func (s *Source) String() string {
	var out strings.Builder
	fmt.Fprintf(&out, "globals: %s;\n", strings.Join(s.Globals, ", "))
	for _, f := range s.Funcs {
		out.WriteString("\n")
		out.WriteString(f.String())
	}
	return out.String()
}
