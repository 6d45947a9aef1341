package sandbox

// tokenKind enumerates the lexical categories of the guard/template
// expression language (§4.1). The grammar is deliberately tiny: no
// function calls, no assignment, no host callouts — every token maps
// to something a guard or template placeholder could plausibly need.
type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokNumber
	tokString
	tokTrue
	tokFalse
	tokNull
	tokLParen
	tokRParen
	tokDot
	tokComma
	tokNot
	tokAnd
	tokOr
	tokEq
	tokNeq
	tokLt
	tokLte
	tokGt
	tokGte
	tokPlus
	tokMinus
	tokStar
	tokSlash
	tokPercent
)

type token struct {
	kind tokenKind
	text string
	num  float64
}
