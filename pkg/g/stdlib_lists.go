package g

import (
	"strings"

	"github.com/gaia-mud/gaia/pkg/world"
)

func init() {
	register("list", fnList)
	register("listlength", fnListlength)
	register("nth", fnNth)
	register("append", fnAppend)
}

// coerceList applies the list-as-string rule: a List is itself; a
// string that parses as a single bracketed form becomes its elements; a
// null is empty; anything else is a one-element list.
func coerceList(v world.Value) world.List {
	switch t := v.(type) {
	case world.List:
		return t
	case nil:
		return world.List{}
	case string:
		trimmed := strings.TrimSpace(t)
		if strings.HasPrefix(trimmed, "[") {
			if nodes, err := ParseProgram(trimmed); err == nil && len(nodes) == 1 {
				if ln, ok := nodes[0].(*ListNode); ok {
					if lv, ok := quoteValue(ln).(world.List); ok {
						return lv
					}
				}
			}
		}
		return world.List{t}
	default:
		return world.List{v}
	}
}

func fnList(ctx *Context, call Node, args world.List) (world.Value, error) {
	out := make(world.List, len(args))
	copy(out, args)
	return out, nil
}

func fnListlength(ctx *Context, call Node, args world.List) (world.Value, error) {
	if err := wantArgs(call, args, 1); err != nil {
		return nil, err
	}
	return float64(len(coerceList(args[0]))), nil
}

// fnNth is zero-based; out of range reads as null.
func fnNth(ctx *Context, call Node, args world.List) (world.Value, error) {
	if err := wantArgs(call, args, 2); err != nil {
		return nil, err
	}
	elems := coerceList(args[0])
	i := int(world.ToNumber(args[1]))
	if i < 0 || i >= len(elems) {
		return nil, nil
	}
	return elems[i], nil
}

func fnAppend(ctx *Context, call Node, args world.List) (world.Value, error) {
	if err := wantArgs(call, args, 2); err != nil {
		return nil, err
	}
	elems := coerceList(args[0])
	out := make(world.List, 0, len(elems)+1)
	out = append(out, elems...)
	out = append(out, args[1])
	return out, nil
}
