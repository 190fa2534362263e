package g

import (
	"fmt"
	"strings"
)

// Lexer tokenizes G source text.
//
// The '"' character is overloaded: in argument position it opens a string
// literal, but when it immediately follows an object reference or the tail
// of an @-expression (no intervening whitespace) it is the message
// operator. The lexer resolves this with one token of history, an
// adjacency check, and a small state machine that tracks whether the
// previous token completed an @-expression; a bare symbol against a
// quote, as in [concat a"b"], stays an ordinary string literal.
type Lexer struct {
	src string
	pos int

	prevKind TokenKind
	prevEnd  int
	at       atState
	// inMessage is set after an opening message operator whose payload is
	// an @-expression; the closing '"' is then emitted as TokQuote.
	inMessage bool
}

// atState tracks progress through an @-expression across emitted
// tokens.
type atState int

const (
	atNone atState = iota
	atHead // '@' just emitted
	atTail // previous token completed an @-expression
	atDot  // '.' following a completed @-expression
)

// NewLexer creates a lexer over src.
func NewLexer(src string) *Lexer {
	return &Lexer{src: src, prevKind: TokEOF, prevEnd: -1}
}

func isSymbolChar(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	}
	return strings.IndexByte("_+-*/%<>=!?^&", c) >= 0
}

func isRefChar(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	}
	return c == '_' || c == '-'
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// skipBlank consumes whitespace and line comments.
func (l *Lexer) skipBlank() {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		if c == ' ' || c == '\t' || c == '\r' || c == '\n' {
			l.pos++
			continue
		}
		if c == '/' && l.pos+1 < len(l.src) && l.src[l.pos+1] == '/' {
			for l.pos < len(l.src) && l.src[l.pos] != '\n' {
				l.pos++
			}
			continue
		}
		return
	}
}

// Next returns the next token.
func (l *Lexer) Next() (Token, error) {
	l.skipBlank()
	if l.pos >= len(l.src) {
		return l.emit(Token{Kind: TokEOF, Pos: l.pos}), nil
	}

	start := l.pos
	c := l.src[l.pos]

	switch c {
	case '[':
		l.pos++
		return l.emit(Token{Kind: TokLBracket, Pos: start}), nil
	case ']':
		l.pos++
		return l.emit(Token{Kind: TokRBracket, Pos: start}), nil
	case ',':
		l.pos++
		return l.emit(Token{Kind: TokComma, Pos: start}), nil
	case '@':
		l.pos++
		return l.emit(Token{Kind: TokAt, Pos: start}), nil
	case '.':
		l.pos++
		return l.emit(Token{Kind: TokDot, Pos: start}), nil
	case '"':
		return l.lexQuote(start)
	case '#':
		return l.lexObjRef(start)
	}

	if isDigit(c) || ((c == '-' || c == '+') && l.pos+1 < len(l.src) && isDigit(l.src[l.pos+1])) {
		return l.lexNumber(start)
	}
	if isSymbolChar(c) {
		return l.lexSymbol(start)
	}
	return Token{}, &Failure{Kind: FailParse, Reason: fmt.Sprintf("unexpected character %q", c), Span: l.src[start:min(start+12, len(l.src))]}
}

// emit records token history for message-operator adjacency checks.
func (l *Lexer) emit(t Token) Token {
	switch t.Kind {
	case TokAt:
		l.at = atHead
	case TokSymbol, TokObjRef:
		if l.at == atHead || l.at == atDot {
			l.at = atTail
		} else {
			l.at = atNone
		}
	case TokDot:
		if l.at == atTail {
			l.at = atDot
		} else {
			l.at = atNone
		}
	default:
		l.at = atNone
	}
	l.prevKind = t.Kind
	l.prevEnd = l.pos
	return t
}

// messagePosition reports whether a '"' at offset pos is the message
// operator: immediately adjacent to an object reference, or to a
// symbol that completes an @-expression. A plain symbol does not open
// a send.
func (l *Lexer) messagePosition(pos int) bool {
	if l.prevEnd != pos {
		return false
	}
	if l.prevKind == TokObjRef {
		return true
	}
	return l.prevKind == TokSymbol && l.at == atTail
}

func (l *Lexer) lexQuote(start int) (Token, error) {
	if l.inMessage {
		// Closing quote of an @-expression payload.
		l.inMessage = false
		l.pos++
		return l.emit(Token{Kind: TokQuote, Pos: start}), nil
	}
	if l.messagePosition(start) {
		l.pos++ // consume the operator
		// Payload: an @-execution lexes normally up to the closing quote;
		// anything else is a verbatim string payload.
		if l.pos < len(l.src) && l.src[l.pos] == '@' {
			l.inMessage = true
		} else {
			// Rewind so the payload lexes as an ordinary string literal
			// using the quote we just consumed.
			l.pos = start
			return l.emit(Token{Kind: TokQuote, Pos: start}), nil
		}
		return l.emit(Token{Kind: TokQuote, Pos: start}), nil
	}
	return l.lexString(start)
}

func (l *Lexer) lexString(start int) (Token, error) {
	l.pos++ // opening quote
	var b strings.Builder
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		if c == '\\' && l.pos+1 < len(l.src) {
			switch l.src[l.pos+1] {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case '"':
				b.WriteByte('"')
			case '\\':
				b.WriteByte('\\')
			default:
				b.WriteByte(l.src[l.pos+1])
			}
			l.pos += 2
			continue
		}
		if c == '"' {
			l.pos++
			return l.emit(Token{Kind: TokString, Text: b.String(), Pos: start}), nil
		}
		b.WriteByte(c)
		l.pos++
	}
	return Token{}, &Failure{Kind: FailParse, Reason: "unterminated string literal", Span: l.src[start:min(start+12, len(l.src))]}
}

func (l *Lexer) lexObjRef(start int) (Token, error) {
	l.pos++ // '#'
	colons := 0
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		if isRefChar(c) {
			l.pos++
			continue
		}
		if c == ':' && colons == 0 && l.pos+1 < len(l.src) && isRefChar(l.src[l.pos+1]) {
			colons++
			l.pos++
			continue
		}
		break
	}
	if l.pos == start+1 {
		return Token{}, &Failure{Kind: FailParse, Reason: "empty object reference", Span: "#"}
	}
	return l.emit(Token{Kind: TokObjRef, Text: l.src[start:l.pos], Pos: start}), nil
}

func (l *Lexer) lexNumber(start int) (Token, error) {
	if l.src[l.pos] == '-' || l.src[l.pos] == '+' {
		l.pos++
	}
	sawDot := false
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		if isDigit(c) {
			l.pos++
			continue
		}
		if c == '.' && !sawDot && l.pos+1 < len(l.src) && isDigit(l.src[l.pos+1]) {
			sawDot = true
			l.pos++
			continue
		}
		break
	}
	return l.emit(Token{Kind: TokNumber, Text: l.src[start:l.pos], Pos: start}), nil
}

func (l *Lexer) lexSymbol(start int) (Token, error) {
	for l.pos < len(l.src) && isSymbolChar(l.src[l.pos]) {
		l.pos++
	}
	return l.emit(Token{Kind: TokSymbol, Text: l.src[start:l.pos], Pos: start}), nil
}

// Lex tokenizes a whole source fragment. Used by tests and diagnostics.
func Lex(src string) ([]Token, error) {
	l := NewLexer(src)
	var out []Token
	for {
		t, err := l.Next()
		if err != nil {
			return nil, err
		}
		out = append(out, t)
		if t.Kind == TokEOF {
			return out, nil
		}
	}
}
