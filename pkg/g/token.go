// Package g implements the G softcode language: lexer, parser, and a
// tree-walking interpreter with the standard library that bridges G back
// into the world.
package g

import "fmt"

// TokenKind classifies a lexed token.
type TokenKind int

const (
	TokEOF TokenKind = iota
	TokLBracket
	TokRBracket
	TokComma
	TokAt
	TokDot
	TokQuote // message operator, not a string delimiter
	TokObjRef
	TokString
	TokNumber
	TokSymbol
)

func (k TokenKind) String() string {
	switch k {
	case TokEOF:
		return "EOF"
	case TokLBracket:
		return "'['"
	case TokRBracket:
		return "']'"
	case TokComma:
		return "','"
	case TokAt:
		return "'@'"
	case TokDot:
		return "'.'"
	case TokQuote:
		return "'\"'"
	case TokObjRef:
		return "OBJREF"
	case TokString:
		return "STRING"
	case TokNumber:
		return "NUMBER"
	case TokSymbol:
		return "SYMBOL"
	default:
		return "UNKNOWN"
	}
}

// Token is one lexed unit of G source.
type Token struct {
	Kind TokenKind
	Text string // decoded text (escapes resolved for strings)
	Pos  int    // byte offset into the source
}

func (t Token) String() string {
	if t.Text == "" {
		return t.Kind.String()
	}
	return fmt.Sprintf("%s(%q)", t.Kind, t.Text)
}
