package g

import (
	"github.com/gaia-mud/gaia/pkg/world"
)

// specialForm receives the whole call so it can control argument
// evaluation.
type specialForm func(ctx *Context, call *ListNode) (world.Value, error)

// specialForms is populated in init: the handlers call Eval, so a
// composite-literal initializer would form an initialization cycle.
var specialForms map[string]specialForm

func init() {
	specialForms = map[string]specialForm{
		"if":     sfIf,
		"define": sfDefine,
		"return": sfReturn,
		"and":    sfAnd,
		"or":     sfOr,
		"quote":  sfQuote,
	}
}

// sfIf evaluates only the taken branch. A missing else branch yields
// null.
func sfIf(ctx *Context, call *ListNode) (world.Value, error) {
	args := call.Elems[1:]
	if len(args) < 2 || len(args) > 3 {
		return nil, failf(FailParse, call, "if wants [if cond then else?]")
	}
	cond, err := Eval(ctx, args[0])
	if err != nil {
		return nil, err
	}
	if world.Truthy(cond) {
		return Eval(ctx, args[1])
	}
	if len(args) == 3 {
		return Eval(ctx, args[2])
	}
	return nil, nil
}

// sfDefine binds a symbol in the current frame and yields the value.
func sfDefine(ctx *Context, call *ListNode) (world.Value, error) {
	args := call.Elems[1:]
	if len(args) != 2 {
		return nil, failf(FailParse, call, "define wants [define name expr]")
	}
	sym, ok := args[0].(*SymbolNode)
	if !ok {
		return nil, failf(FailParse, call, "define wants a symbol name")
	}
	v, err := Eval(ctx, args[1])
	if err != nil {
		return nil, err
	}
	ctx.Frame.define(sym.Name, v)
	return v, nil
}

// sfReturn unwinds the innermost attribute invocation.
func sfReturn(ctx *Context, call *ListNode) (world.Value, error) {
	args := call.Elems[1:]
	if len(args) > 1 {
		return nil, failf(FailParse, call, "return wants at most one value")
	}
	var v world.Value
	if len(args) == 1 {
		var err error
		v, err = Eval(ctx, args[0])
		if err != nil {
			return nil, err
		}
	}
	return nil, &returnSignal{value: v}
}

// sfAnd short-circuits on the first falsy operand.
func sfAnd(ctx *Context, call *ListNode) (world.Value, error) {
	var v world.Value = true
	for _, el := range call.Elems[1:] {
		var err error
		v, err = Eval(ctx, el)
		if err != nil {
			return nil, err
		}
		if !world.Truthy(v) {
			return v, nil
		}
	}
	return v, nil
}

// sfOr short-circuits on the first truthy operand.
func sfOr(ctx *Context, call *ListNode) (world.Value, error) {
	var v world.Value = false
	for _, el := range call.Elems[1:] {
		var err error
		v, err = Eval(ctx, el)
		if err != nil {
			return nil, err
		}
		if world.Truthy(v) {
			return v, nil
		}
	}
	return v, nil
}

// sfQuote yields its operand as data without evaluating it.
func sfQuote(ctx *Context, call *ListNode) (world.Value, error) {
	args := call.Elems[1:]
	if len(args) != 1 {
		return nil, failf(FailParse, call, "quote wants exactly one form")
	}
	return quoteValue(args[0]), nil
}

// quoteValue converts an unevaluated tree to a plain value: lists become
// Lists, symbols their names, references Refs, everything else its
// canonical source text.
func quoteValue(n Node) world.Value {
	switch t := n.(type) {
	case *LiteralNode:
		return t.Value
	case *SymbolNode:
		return t.Name
	case *RefNode:
		return world.Ref(t.ID)
	case *ListNode:
		out := make(world.List, len(t.Elems))
		for i, el := range t.Elems {
			out[i] = quoteValue(el)
		}
		return out
	default:
		return n.String()
	}
}
