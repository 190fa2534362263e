package g

import (
	"errors"
	"strconv"

	"github.com/gaia-mud/gaia/pkg/world"
)

// EvalSource parses and evaluates a source fragment, returning the value
// of the last expression.
func EvalSource(ctx *Context, src string) (world.Value, error) {
	nodes, err := parseCached(src)
	if err != nil {
		return nil, err
	}
	var out world.Value
	for _, n := range nodes {
		out, err = Eval(ctx, n)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Invoke runs src as an attribute body on the context's executor with
// the given arguments bound as args plus arg0..argN.
func Invoke(ctx *Context, src string, args []world.Value) (world.Value, error) {
	return invokeSource(ctx, ctx.Executor, src, args, nil)
}

// Eval evaluates one expression tree.
func Eval(ctx *Context, n Node) (world.Value, error) {
	if ctx.Inv.expired() {
		return nil, failf(FailTimeout, n, "evaluation budget exhausted")
	}

	switch t := n.(type) {
	case *LiteralNode:
		return t.Value, nil
	case *RefNode:
		return world.Ref(t.ID), nil
	case *SymbolNode:
		return evalSymbol(ctx, t)
	case *AttrNode:
		return evalAttr(ctx, t)
	case *ExecNode:
		return evalExec(ctx, t, nil)
	case *SendNode:
		return evalSend(ctx, t)
	case *ListNode:
		return evalList(ctx, t)
	default:
		return nil, failf(FailProtocol, n, "unknown expression form")
	}
}

// evalSymbol resolves a bare symbol: the reserved names, then the frame
// chain, otherwise the symbol's own name as a string (a word in data
// position).
func evalSymbol(ctx *Context, n *SymbolNode) (world.Value, error) {
	switch n.Name {
	case "this":
		return world.Ref(ctx.This), nil
	case "actor":
		return world.Ref(ctx.Actor), nil
	case "executor":
		return world.Ref(ctx.Executor), nil
	}
	if v, ok := ctx.Frame.lookup(n.Name); ok {
		return v, nil
	}
	return n.Name, nil
}

// evalAttr reads `<target>.<name>`. An absent attribute reads as null.
func evalAttr(ctx *Context, n *AttrNode) (world.Value, error) {
	id, err := evalToRef(ctx, n.Target, n)
	if err != nil {
		return nil, err
	}
	v, ok, err := ctx.World.GetAttribute(id, n.Name)
	if err != nil {
		return nil, wrapWorldErr(err, n)
	}
	if !ok {
		return nil, nil
	}
	return v, nil
}

// evalExec runs an execution form with the given pre-evaluated
// arguments (nil for a bare @form outside a call position).
func evalExec(ctx *Context, n *ExecNode, args []world.Value) (world.Value, error) {
	switch target := n.Target.(type) {
	case *RefNode:
		attr := n.Attr
		if attr == "" {
			attr = "run"
		}
		return InvokeAttr(ctx, target.ID, attr, args, n)
	case *SymbolNode:
		// The contextual names resolve to handles: @actor is the actor's
		// object, @actor.attr invokes an attribute on it.
		switch target.Name {
		case "this", "actor", "executor":
			id := ctx.This
			if target.Name == "actor" {
				id = ctx.Actor
			} else if target.Name == "executor" {
				id = ctx.Executor
			}
			if n.Attr == "" {
				return world.Ref(id), nil
			}
			return InvokeAttr(ctx, id, n.Attr, args, n)
		}
		v, ok := ctx.Frame.lookup(target.Name)
		if !ok {
			return nil, failf(FailUnresolvedCallee, n, "undefined variable %q", target.Name)
		}
		switch tv := v.(type) {
		case world.Ref:
			attr := n.Attr
			if attr == "" {
				attr = "run"
			}
			return InvokeAttr(ctx, string(tv), attr, args, n)
		case string:
			if n.Attr != "" {
				return nil, failf(FailTypeCoercion, n, "cannot select attribute %q on a code string", n.Attr)
			}
			return invokeSource(ctx, ctx.Executor, tv, args, n)
		default:
			return nil, failf(FailTypeCoercion, n, "variable %q is not executable", target.Name)
		}
	default:
		return nil, failf(FailUnresolvedCallee, n, "bad execution target")
	}
}

// evalSend delivers `<target>"payload"`. A string payload goes out
// verbatim; an @-payload evaluates with this and executor rebound to
// the target, sharing the sender's frame so its variables stay
// visible.
func evalSend(ctx *Context, n *SendNode) (world.Value, error) {
	id, err := evalToRef(ctx, n.Target, n)
	if err != nil {
		return nil, err
	}
	payloadCtx := ctx
	if _, isExec := n.Payload.(*ExecNode); isExec {
		payloadCtx = ctx.child(id, ctx.Frame)
	}
	payload, err := Eval(payloadCtx, n.Payload)
	if err != nil {
		return nil, err
	}
	if err := ctx.World.Send(id, payload, ctx.This); err != nil {
		return nil, wrapWorldErr(err, n)
	}
	return nil, nil
}

// evalList dispatches a bracketed form. A symbol head resolves as
// special form, then builtin, then a frame binding holding something
// executable. A reference or execution head invokes code. Any other
// head makes the list implicit data.
func evalList(ctx *Context, n *ListNode) (world.Value, error) {
	if len(n.Elems) == 0 {
		return world.List{}, nil
	}

	switch head := n.Elems[0].(type) {
	case *SymbolNode:
		if fn, ok := specialForms[head.Name]; ok {
			return fn(ctx, n)
		}
		if fn, ok := builtins[head.Name]; ok {
			args, err := evalArgs(ctx, n.Elems[1:])
			if err != nil {
				return nil, err
			}
			return fn(ctx, n, args)
		}
		if v, ok := ctx.Frame.lookup(head.Name); ok {
			args, err := evalArgs(ctx, n.Elems[1:])
			if err != nil {
				return nil, err
			}
			switch tv := v.(type) {
			case world.Ref:
				return InvokeAttr(ctx, string(tv), "run", args, n)
			case string:
				return invokeSource(ctx, ctx.Executor, tv, args, n)
			default:
				return nil, failf(FailUnresolvedCallee, n, "%q is not callable", head.Name)
			}
		}
		return nil, failf(FailUnresolvedCallee, n, "unknown callee %q", head.Name)
	case *RefNode:
		args, err := evalArgs(ctx, n.Elems[1:])
		if err != nil {
			return nil, err
		}
		return InvokeAttr(ctx, head.ID, "run", args, n)
	case *ExecNode:
		args, err := evalArgs(ctx, n.Elems[1:])
		if err != nil {
			return nil, err
		}
		return evalExec(ctx, head, args)
	case *AttrNode:
		args, err := evalArgs(ctx, n.Elems[1:])
		if err != nil {
			return nil, err
		}
		id, err := evalToRef(ctx, head.Target, n)
		if err != nil {
			return nil, err
		}
		return InvokeAttr(ctx, id, head.Name, args, n)
	default:
		return evalArgs(ctx, n.Elems)
	}
}

func evalArgs(ctx *Context, elems []Node) (world.List, error) {
	out := make(world.List, 0, len(elems))
	for _, el := range elems {
		v, err := Eval(ctx, el)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// evalToRef evaluates a node and coerces the result to an object ID.
func evalToRef(ctx *Context, n Node, span Node) (string, error) {
	v, err := Eval(ctx, n)
	if err != nil {
		return "", err
	}
	switch t := v.(type) {
	case world.Ref:
		return string(t), nil
	case string:
		if len(t) > 1 && t[0] == '#' {
			return t, nil
		}
	}
	return "", failf(FailTypeCoercion, span, "expected an object reference, got %s", world.ToString(v))
}

// InvokeAttr runs the named attribute of target as G code. A non-string
// stored value is returned as-is. args binds as `args` plus arg0..argN
// in the new frame.
func InvokeAttr(ctx *Context, targetID, attrName string, args []world.Value, span Node) (world.Value, error) {
	if ctx.depth+1 > ctx.Inv.DepthLimit {
		return nil, failf(FailDepthLimit, span, "invocation depth exceeds %d", ctx.Inv.DepthLimit)
	}
	v, ok, err := ctx.World.GetAttribute(targetID, attrName)
	if err != nil {
		return nil, wrapWorldErr(err, span)
	}
	if !ok {
		return nil, failf(FailNotFound, span, "%s has no attribute %q", targetID, attrName)
	}
	src, isString := v.(string)
	if !isString {
		return v, nil
	}
	return invokeSource(ctx, targetID, src, args, span)
}

// invokeSource parses and runs src as the body of an attribute
// invocation on executor.
func invokeSource(ctx *Context, executor, src string, args []world.Value, span Node) (world.Value, error) {
	if ctx.depth+1 > ctx.Inv.DepthLimit {
		return nil, failf(FailDepthLimit, span, "invocation depth exceeds %d", ctx.Inv.DepthLimit)
	}
	nodes, err := parseCached(src)
	if err != nil {
		return nil, err
	}
	frame := NewFrame(nil)
	bindArgs(frame, args)
	sub := ctx.child(executor, frame)

	var out world.Value
	for _, n := range nodes {
		out, err = Eval(sub, n)
		if err != nil {
			if ret, ok := err.(*returnSignal); ok {
				return ret.value, nil
			}
			return nil, err
		}
	}
	return out, nil
}

func bindArgs(frame *Frame, args []world.Value) {
	list := make(world.List, len(args))
	copy(list, args)
	frame.define("args", list)
	for i, a := range args {
		frame.define("arg"+strconv.Itoa(i), a)
	}
}

// wrapWorldErr converts world-layer errors into G failures.
func wrapWorldErr(err error, span Node) error {
	if f, ok := AsFailure(err); ok {
		return f
	}
	switch {
	case err == nil:
		return nil
	case errors.Is(err, world.ErrNotFound):
		return failf(FailNotFound, span, "%s", err)
	case errors.Is(err, world.ErrConflict):
		return failf(FailStoreConflict, span, "%s", err)
	default:
		return failf(FailProtocol, span, "%s", err)
	}
}
