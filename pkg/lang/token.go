package lang

// TokenKind identifies the category of a lexed token. The compound kinds
// (TkIntIdent and friends) exist because implicit multiplication and call
// syntax are decided by juxtaposition, which only the lexer can see.
type TokenKind int

const (
	TkInt TokenKind = iota
	TkStr
	TkIdent

	TkIntIdent  // 3x
	TkIntLPar   // 3(
	TkIdentLPar // f(
	TkRParIdent // )x

	// Keywords
	TkElse
	TkElseif
	TkEnd
	TkFalse
	TkFor
	TkFunction
	TkIf
	TkMutable
	TkReturn
	TkStruct
	TkTrue
	TkWhile

	// Punctuation
	TkLPar
	TkRPar
	TkComma
	TkColon
	TkDoubleColon
	TkSemicolon

	TkEqu
	TkDoubleEqu
	TkNeq
	TkLt
	TkLeq
	TkGt
	TkGeq

	TkAnd
	TkOr

	TkPlus
	TkMinus
	TkTimes
	TkMod

	TkNot

	TkPow

	TkDot
)

// Token carries the kind plus the payload slots it needs: Int for integer
// literals, Str for identifiers and strings, both for TkIntIdent. Virtual
// marks a semicolon inserted at a newline; those separate statements but do
// not count as a block's trailing semicolon.
type Token struct {
	Kind    TokenKind
	Int     int64
	Str     string
	Virtual bool
}

// keywords maps source text to its keyword kind.
var keywords = map[string]TokenKind{
	"else":     TkElse,
	"elseif":   TkElseif,
	"end":      TkEnd,
	"false":    TkFalse,
	"for":      TkFor,
	"function": TkFunction,
	"if":       TkIf,
	"mutable":  TkMutable,
	"return":   TkReturn,
	"struct":   TkStruct,
	"true":     TkTrue,
	"while":    TkWhile,
}

// Grammar terminal ids. Index 0 is reserved for end-of-input; the constants
// below must stay aligned with termNames.
const (
	termEOF = iota
	termInt
	termString
	termIdent
	termIntIdent
	termIntLPar
	termIdentLPar
	termRParIdent
	termELSE
	termELSEIF
	termEND
	termFALSE
	termFOR
	termFUNCTION
	termIF
	termMUTABLE
	termRETURN
	termSTRUCT
	termTRUE
	termWHILE
	termLPAR
	termRPAR
	termCOMMA
	termCOLON
	termDOUBLECOLON
	termSEMICOLON
	termEQU
	termDOUBLEEQU
	termNEQ
	termLT
	termLEQ
	termGT
	termGEQ
	termAND
	termOR
	termPLUS
	termMINUS
	termTIMES
	termMOD
	termNOT
	termPOW
	termDOT
)

var termNames = [...]string{
	termInt:         "int",
	termString:      "string",
	termIdent:       "ident",
	termIntIdent:    "intident",
	termIntLPar:     "intlpar",
	termIdentLPar:   "identlpar",
	termRParIdent:   "rparident",
	termELSE:        "ELSE",
	termELSEIF:      "ELSEIF",
	termEND:         "END",
	termFALSE:       "FALSE",
	termFOR:         "FOR",
	termFUNCTION:    "FUNCTION",
	termIF:          "IF",
	termMUTABLE:     "MUTABLE",
	termRETURN:      "RETURN",
	termSTRUCT:      "STRUCT",
	termTRUE:        "TRUE",
	termWHILE:       "WHILE",
	termLPAR:        "LPAR",
	termRPAR:        "RPAR",
	termCOMMA:       "COMMA",
	termCOLON:       "COLON",
	termDOUBLECOLON: "DOUBLECOLON",
	termSEMICOLON:   "SEMICOLON",
	termEQU:         "EQU",
	termDOUBLEEQU:   "DOUBLEEQU",
	termNEQ:         "NEQ",
	termLT:          "LT",
	termLEQ:         "LEQ",
	termGT:          "GT",
	termGEQ:         "GEQ",
	termAND:         "AND",
	termOR:          "OR",
	termPLUS:        "PLUS",
	termMINUS:       "MINUS",
	termTIMES:       "TIMES",
	termMOD:         "MOD",
	termNOT:         "NOT",
	termPOW:         "POW",
	termDOT:         "DOT",
}

// termOf maps a token to its grammar terminal id.
func termOf(t Token) int {
	switch t.Kind {
	case TkInt:
		return termInt
	case TkStr:
		return termString
	case TkIdent:
		return termIdent
	case TkIntIdent:
		return termIntIdent
	case TkIntLPar:
		return termIntLPar
	case TkIdentLPar:
		return termIdentLPar
	case TkRParIdent:
		return termRParIdent
	case TkElse:
		return termELSE
	case TkElseif:
		return termELSEIF
	case TkEnd:
		return termEND
	case TkFalse:
		return termFALSE
	case TkFor:
		return termFOR
	case TkFunction:
		return termFUNCTION
	case TkIf:
		return termIF
	case TkMutable:
		return termMUTABLE
	case TkReturn:
		return termRETURN
	case TkStruct:
		return termSTRUCT
	case TkTrue:
		return termTRUE
	case TkWhile:
		return termWHILE
	case TkLPar:
		return termLPAR
	case TkRPar:
		return termRPAR
	case TkComma:
		return termCOMMA
	case TkColon:
		return termCOLON
	case TkDoubleColon:
		return termDOUBLECOLON
	case TkSemicolon:
		return termSEMICOLON
	case TkEqu:
		return termEQU
	case TkDoubleEqu:
		return termDOUBLEEQU
	case TkNeq:
		return termNEQ
	case TkLt:
		return termLT
	case TkLeq:
		return termLEQ
	case TkGt:
		return termGT
	case TkGeq:
		return termGEQ
	case TkAnd:
		return termAND
	case TkOr:
		return termOR
	case TkPlus:
		return termPLUS
	case TkMinus:
		return termMINUS
	case TkTimes:
		return termTIMES
	case TkMod:
		return termMOD
	case TkNot:
		return termNOT
	case TkPow:
		return termPOW
	default:
		return termDOT
	}
}
