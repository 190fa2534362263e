package g

import (
	"strconv"
)

// Parser builds expression trees from tokens.
type Parser struct {
	toks []Token
	pos  int
	src  string
}

// Parse parses a single G expression.
func Parse(src string) (Node, error) {
	p, err := newParser(src)
	if err != nil {
		return nil, err
	}
	n, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.peek().Kind != TokEOF {
		return nil, &Failure{Kind: FailParse, Reason: "trailing tokens after expression", Span: src}
	}
	return n, nil
}

// ParseProgram parses a G source fragment as a sequence of expressions.
func ParseProgram(src string) ([]Node, error) {
	p, err := newParser(src)
	if err != nil {
		return nil, err
	}
	var out []Node
	for p.peek().Kind != TokEOF {
		n, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func newParser(src string) (*Parser, error) {
	toks, err := Lex(src)
	if err != nil {
		return nil, err
	}
	return &Parser{toks: toks, src: src}, nil
}

func (p *Parser) peek() Token {
	if p.pos >= len(p.toks) {
		return Token{Kind: TokEOF}
	}
	return p.toks[p.pos]
}

func (p *Parser) next() Token {
	t := p.peek()
	if p.pos < len(p.toks) {
		p.pos++
	}
	return t
}

func (p *Parser) errAt(t Token, reason string) error {
	span := p.src
	if t.Pos < len(p.src) {
		end := t.Pos + 16
		if end > len(p.src) {
			end = len(p.src)
		}
		span = p.src[t.Pos:end]
	}
	return &Failure{Kind: FailParse, Reason: reason, Span: span}
}

// parseExpr parses one expression including attribute-access and send
// postfixes.
func (p *Parser) parseExpr() (Node, error) {
	n, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}

	// Attribute access chains, left-associative.
	for p.peek().Kind == TokDot {
		p.next()
		sym := p.next()
		if sym.Kind != TokSymbol {
			return nil, p.errAt(sym, "expected attribute name after '.'")
		}
		switch t := n.(type) {
		case *ExecNode:
			if t.Attr == "" {
				t.Attr = sym.Text
			} else {
				n = &AttrNode{Target: n, Name: sym.Text}
			}
		default:
			n = &AttrNode{Target: n, Name: sym.Text}
		}
	}

	// Send operator: the lexer only emits TokQuote in message position.
	if p.peek().Kind == TokQuote {
		p.next()
		payload, err := p.parsePayload()
		if err != nil {
			return nil, err
		}
		n = &SendNode{Target: n, Payload: payload}
	}
	return n, nil
}

// parsePayload parses the message payload after the message operator:
// either a string literal or an @-execution (followed by its closing
// quote token).
func (p *Parser) parsePayload() (Node, error) {
	t := p.peek()
	switch t.Kind {
	case TokString:
		p.next()
		return &LiteralNode{Value: t.Text}, nil
	case TokAt:
		exec, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		// @ref.attr payload: the dot is part of the execution form.
		for p.peek().Kind == TokDot {
			p.next()
			sym := p.next()
			if sym.Kind != TokSymbol {
				return nil, p.errAt(sym, "expected attribute name after '.'")
			}
			if ex, ok := exec.(*ExecNode); ok && ex.Attr == "" {
				ex.Attr = sym.Text
			} else {
				exec = &AttrNode{Target: exec, Name: sym.Text}
			}
		}
		closing := p.next()
		if closing.Kind != TokQuote {
			return nil, p.errAt(closing, "expected closing '\"' after message payload")
		}
		return exec, nil
	default:
		return nil, p.errAt(t, "expected message payload")
	}
}

// parsePrimary parses an atom: list, literal, object reference, symbol,
// or execution form.
func (p *Parser) parsePrimary() (Node, error) {
	t := p.next()
	switch t.Kind {
	case TokLBracket:
		return p.parseList()
	case TokString:
		return &LiteralNode{Value: t.Text}, nil
	case TokNumber:
		f, err := strconv.ParseFloat(t.Text, 64)
		if err != nil {
			return nil, p.errAt(t, "bad number "+strconv.Quote(t.Text))
		}
		return &LiteralNode{Value: f}, nil
	case TokObjRef:
		return &RefNode{ID: t.Text}, nil
	case TokSymbol:
		switch t.Text {
		case "true":
			return &LiteralNode{Value: true}, nil
		case "false":
			return &LiteralNode{Value: false}, nil
		case "null", "nil":
			return &LiteralNode{Value: nil}, nil
		}
		return &SymbolNode{Name: t.Text}, nil
	case TokAt:
		target := p.next()
		switch target.Kind {
		case TokObjRef:
			return &ExecNode{Target: &RefNode{ID: target.Text}}, nil
		case TokSymbol:
			return &ExecNode{Target: &SymbolNode{Name: target.Text}}, nil
		default:
			return nil, p.errAt(target, "expected object reference or symbol after '@'")
		}
	default:
		return nil, p.errAt(t, "unexpected "+t.Kind.String())
	}
}

// parseList parses elements up to ']'. Commas separate exactly like
// spaces: runs of them introduce no null elements.
func (p *Parser) parseList() (Node, error) {
	list := &ListNode{}
	for {
		t := p.peek()
		switch t.Kind {
		case TokRBracket:
			p.next()
			return list, nil
		case TokComma:
			p.next()
		case TokEOF:
			return nil, p.errAt(t, "unterminated list")
		default:
			el, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			list.Elems = append(list.Elems, el)
		}
	}
}
