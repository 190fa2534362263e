package g

import (
	"testing"
)

func lexKinds(t *testing.T, src string) []TokenKind {
	t.Helper()
	toks, err := Lex(src)
	if err != nil {
		t.Fatalf("lex %q: %v", src, err)
	}
	kinds := make([]TokenKind, 0, len(toks))
	for _, tok := range toks {
		if tok.Kind == TokEOF {
			break
		}
		kinds = append(kinds, tok.Kind)
	}
	return kinds
}

func kindsEqual(a, b []TokenKind) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestLexBasicTokens(t *testing.T) {
	tests := map[string][]TokenKind{
		`[concat "a" 1.5 #obj sym]`: {TokLBracket, TokSymbol, TokString, TokNumber, TokObjRef, TokSymbol, TokRBracket},
		`#ns:name`:                  {TokObjRef},
		`@#obj.run`:                 {TokAt, TokObjRef, TokDot, TokSymbol},
		`[+ -3 +4]`:                 {TokLBracket, TokSymbol, TokNumber, TokNumber, TokRBracket},
		"[a b] // trailing comment":  {TokLBracket, TokSymbol, TokSymbol, TokRBracket},
	}
	for src, want := range tests {
		got := lexKinds(t, src)
		if !kindsEqual(got, want) {
			t.Errorf("lex %q = %v, want %v", src, got, want)
		}
	}
}

// The '"' after a reference with no space is the message operator; with
// a space it opens an ordinary string literal.
func TestLexMessageOperator(t *testing.T) {
	tests := map[string][]TokenKind{
		`#bob"hello"`:      {TokObjRef, TokQuote, TokString},
		`#bob "hello"`:     {TokObjRef, TokString},
		`#bob"@#gen.run"`:  {TokObjRef, TokQuote, TokAt, TokObjRef, TokDot, TokSymbol, TokQuote},
		`[send #bob "hi"]`: {TokLBracket, TokSymbol, TokObjRef, TokString, TokRBracket},
		`@actor"hi"`:       {TokAt, TokSymbol, TokQuote, TokString},
		`[concat a"b"]`:    {TokLBracket, TokSymbol, TokSymbol, TokString, TokRBracket},
	}
	for src, want := range tests {
		got := lexKinds(t, src)
		if !kindsEqual(got, want) {
			t.Errorf("lex %q = %v, want %v", src, got, want)
		}
	}
}

// Parsing the canonical unparse must reproduce the same tree.
func TestParseIdempotence(t *testing.T) {
	sources := []string{
		`[concat "a" "b"]`,
		`[if [equals x 1] "one" "other"]`,
		`#room.description`,
		`@#gen.run`,
		`@#gen`,
		`[#helper 1 2]`,
		`#bob"hello there"`,
		`#bob"@#gen.run"`,
		`[list 1 2.5 -3 true false null]`,
		`[a [b [c d]] e]`,
		`[define x [+ 1 2]]`,
	}
	for _, src := range sources {
		n1, err := Parse(src)
		if err != nil {
			t.Fatalf("parse %q: %v", src, err)
		}
		out := n1.String()
		n2, err := Parse(out)
		if err != nil {
			t.Fatalf("reparse %q (from %q): %v", out, src, err)
		}
		if n2.String() != out {
			t.Errorf("unparse not stable: %q -> %q -> %q", src, out, n2.String())
		}
	}
}

// Commas separate exactly like spaces; runs of commas add nothing, but
// an explicit "" is a real element.
func TestListCommaEquivalence(t *testing.T) {
	want := "[a b c]"
	for _, src := range []string{`[a b c]`, `[a, b, c]`, `[a,,b,,,c]`, `[ a , b , c ]`} {
		n, err := Parse(src)
		if err != nil {
			t.Fatalf("parse %q: %v", src, err)
		}
		if n.String() != want {
			t.Errorf("parse %q = %s, want %s", src, n.String(), want)
		}
	}

	n, err := Parse(`[a,b,"",c]`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	list := n.(*ListNode)
	if len(list.Elems) != 4 {
		t.Fatalf("got %d elements, want 4", len(list.Elems))
	}
	lit, ok := list.Elems[2].(*LiteralNode)
	if !ok || lit.Value != "" {
		t.Errorf("third element = %s, want empty string literal", list.Elems[2])
	}
}

func TestAttrChains(t *testing.T) {
	tests := map[string]string{
		`#a.b`:      "#a.b",
		`#a.b.c`:    "#a.b.c",
		`@#gen.run`: "@#gen.run",
		`@#gen`:     "@#gen",
		`@fn`:       "@fn",
	}
	for src, want := range tests {
		n, err := Parse(src)
		if err != nil {
			t.Fatalf("parse %q: %v", src, err)
		}
		if n.String() != want {
			t.Errorf("parse %q = %s, want %s", src, n.String(), want)
		}
	}
}

func TestParseSendForms(t *testing.T) {
	n, err := Parse(`#bob"hello"`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	send, ok := n.(*SendNode)
	if !ok {
		t.Fatalf("got %T, want *SendNode", n)
	}
	if lit, ok := send.Payload.(*LiteralNode); !ok || lit.Value != "hello" {
		t.Errorf("payload = %s, want literal hello", send.Payload)
	}

	n, err = Parse(`#bob"@#gen.run"`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	send, ok = n.(*SendNode)
	if !ok {
		t.Fatalf("got %T, want *SendNode", n)
	}
	exec, ok := send.Payload.(*ExecNode)
	if !ok {
		t.Fatalf("payload is %T, want *ExecNode", send.Payload)
	}
	if exec.Attr != "run" {
		t.Errorf("payload attr = %q, want run", exec.Attr)
	}
}

func TestParseErrors(t *testing.T) {
	bad := []string{
		`[a b`,
		`"unterminated`,
		`#`,
		`[a] trailing`,
		`@"x"`,
		`[if]extra.`,
	}
	for _, src := range bad {
		if _, err := Parse(src); err == nil {
			t.Errorf("parse %q: expected error", src)
		} else if f, ok := AsFailure(err); !ok || f.Kind != FailParse {
			t.Errorf("parse %q: error %v is not a parse failure", src, err)
		}
	}
}

func TestParseProgramSequence(t *testing.T) {
	nodes, err := ParseProgram(`[define x 1] [+ x 2]`)
	if err != nil {
		t.Fatalf("parse program: %v", err)
	}
	if len(nodes) != 2 {
		t.Fatalf("got %d expressions, want 2", len(nodes))
	}
}
