package hir

import (
	"fmt"
	"strconv"
	"strings"
)

func (t Type) String() string {
	switch t.Kind {
	case TyNothing:
		return "()"
	case TyInt64:
		return "Int64"
	case TyBool:
		return "Bool"
	case TyStr:
		return "Str"
	default:
		return "struct " + t.Name
	}
}

func valString(v Val) string {
	switch v := v.(type) {
	case Var:
		return v.Name
	case Const:
		return fmt.Sprintf("(%s, %d)", v.Ty, v.V)
	case Str:
		return strconv.Quote(v.S)
	case Nothing:
		return "()"
	default:
		panic("hir: unknown value")
	}
}

func valsString(vals []Val) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = valString(v)
	}
	return strings.Join(parts, ", ")
}

func callableString(c Callable) string {
	switch c := c.(type) {
	case Bin:
		return fmt.Sprintf("%s %s %s", valString(c.A), c.Op, valString(c.B))
	case Unary:
		return fmt.Sprintf("%s%s", c.Op, valString(c.A))
	case Assign:
		return valString(c.Src)
	case Call:
		head := "call "
		if c.Native {
			head = "call native "
		}
		return head + c.Name + "(" + valsString(c.Args) + ")"
	case Alloc:
		return "alloc " + c.Struct
	case IsType:
		return fmt.Sprintf("typeof %s == %s", valString(c.V), c.Ty)
	case Access:
		return fmt.Sprintf("%s[%s.%s]", valString(c.V), c.Struct, c.Field)
	default:
		panic("hir: unknown callable")
	}
}

func lvalueString(lv LValue) string {
	switch lv := lv.(type) {
	case VarLV:
		return lv.Name
	case AccessLV:
		return fmt.Sprintf("%s[%s.%s]", valString(lv.V), lv.Struct, lv.Field)
	default:
		panic("hir: unknown lvalue")
	}
}

func writeBlock(out *strings.Builder, indent int, b Block) {
	pad := strings.Repeat("    ", indent)
	for _, stmt := range b.Stmts {
		switch s := stmt.(type) {
		case CallStmt:
			fmt.Fprintf(out, "%s%s <- %s;\n", pad, lvalueString(s.Dest), callableString(s.C))
		case ReturnStmt:
			fmt.Fprintf(out, "%sreturn %s;\n", pad, valString(s.V))
		case IfStmt:
			fmt.Fprintf(out, "%sif %s {\n", pad, valString(s.Cond))
			writeBlock(out, indent+1, s.Then)
			fmt.Fprintf(out, "%s} else {\n", pad)
			writeBlock(out, indent+1, s.Else)
			fmt.Fprintf(out, "%s}\n", pad)
		case WhileStmt:
			fmt.Fprintf(out, "%swhile %s {\n", pad, valString(s.Cond))
			writeBlock(out, indent+1, s.Body)
			fmt.Fprintf(out, "%s}\n", pad)
		default:
			panic("hir: unknown statement")
		}
	}
}

func (f *Function) String() string {
	var out strings.Builder
	fmt.Fprintf(&out, "fn %s(%s) vars: %s; {\n",
		f.Name, strings.Join(f.Args, ", "), strings.Join(f.Vars, ", "))
	writeBlock(&out, 1, f.Body)
	out.WriteString("}\n")
	return out.String()
}

func (s *StructDecl) String() string {
	return fmt.Sprintf("struct %s { %s }\n", s.Name, strings.Join(s.Fields, ", "))
}

// String renders the program in the textual HIR format; parsing it back
// yields an isomorphic source.
func (s *Source) String() string {
	var out strings.Builder
	fmt.Fprintf(&out, "globals: %s;\n", strings.Join(s.Globals, ", "))
	for _, d := range s.Decls {
		out.WriteString("\n")
		switch d := d.(type) {
		case *StructDecl:
			out.WriteString(d.String())
		case *Function:
			out.WriteString(d.String())
		}
	}
	return out.String()
}
