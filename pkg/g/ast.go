package g

import (
	"strconv"
	"strings"

	"github.com/gaia-mud/gaia/pkg/world"
)

// Node is a parsed G expression. String() regenerates canonical source;
// parsing that output yields an equal tree.
type Node interface {
	String() string
}

// ListNode is `[head arg ...]`. Whether the head is a callee or the list
// is implicit data is decided at evaluation time from the head's kind.
type ListNode struct {
	Elems []Node
}

func (n *ListNode) String() string {
	parts := make([]string, len(n.Elems))
	for i, el := range n.Elems {
		parts[i] = el.String()
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// LiteralNode is a string, number, boolean or nil literal.
type LiteralNode struct {
	Value world.Value
}

func (n *LiteralNode) String() string {
	switch t := n.Value.(type) {
	case nil:
		return "null"
	case string:
		return strconv.Quote(t)
	case bool:
		if t {
			return "true"
		}
		return "false"
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return world.ToString(t)
	}
}

// RefNode is `#name` or `#ns:name`.
type RefNode struct {
	ID string
}

func (n *RefNode) String() string { return n.ID }

// SymbolNode is a bare symbol: a callee name, a variable, or a word in
// implicit data position.
type SymbolNode struct {
	Name string
}

func (n *SymbolNode) String() string { return n.Name }

// AttrNode is `<target>.<name>`, left-associative.
type AttrNode struct {
	Target Node
	Name   string
}

func (n *AttrNode) String() string { return n.Target.String() + "." + n.Name }

// ExecNode is an execution form: `@obj` (invoke run), `@obj.attr`, or
// `@var` (Target is a SymbolNode).
type ExecNode struct {
	Target Node
	Attr   string // empty for @obj and @var
}

func (n *ExecNode) String() string {
	s := "@" + n.Target.String()
	if n.Attr != "" {
		s += "." + n.Attr
	}
	return s
}

// SendNode is `<target>"payload"`. Payload is a LiteralNode string or an
// ExecNode.
type SendNode struct {
	Target  Node
	Payload Node
}

func (n *SendNode) String() string {
	if lit, ok := n.Payload.(*LiteralNode); ok {
		if s, ok := lit.Value.(string); ok {
			return n.Target.String() + strconv.Quote(s)
		}
	}
	return n.Target.String() + `"` + n.Payload.String() + `"`
}
