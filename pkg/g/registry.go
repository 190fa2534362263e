package g

import (
	"sort"

	"github.com/gaia-mud/gaia/pkg/world"
)

// BuiltinFunc is a standard-library function. Arguments arrive already
// evaluated; call is the whole form, kept for diagnostics.
type BuiltinFunc func(ctx *Context, call Node, args world.List) (world.Value, error)

var builtins = map[string]BuiltinFunc{}

func register(name string, fn BuiltinFunc) {
	builtins[name] = fn
}

// BuiltinNames lists the registered standard library, sorted. Used by
// the COMMANDS listing and the eval tool.
func BuiltinNames() []string {
	names := make([]string, 0, len(builtins)+len(specialForms))
	for n := range builtins {
		names = append(names, n)
	}
	for n := range specialForms {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func wantArgs(call Node, args world.List, n int) error {
	if len(args) != n {
		return failf(FailParse, call, "expected %d arguments, got %d", n, len(args))
	}
	return nil
}

func wantAtLeast(call Node, args world.List, n int) error {
	if len(args) < n {
		return failf(FailParse, call, "expected at least %d arguments, got %d", n, len(args))
	}
	return nil
}

// argRef coerces an argument to an object ID, accepting handles, "#id"
// strings, and the contextual names this/actor/executor.
func argRef(ctx *Context, call Node, v world.Value) (string, error) {
	switch t := v.(type) {
	case world.Ref:
		return string(t), nil
	case string:
		switch t {
		case "this":
			return ctx.This, nil
		case "actor":
			return ctx.Actor, nil
		case "executor":
			return ctx.Executor, nil
		}
		if len(t) > 1 && t[0] == '#' {
			return t, nil
		}
	}
	return "", failf(FailTypeCoercion, call, "expected an object reference, got %s", world.ToString(v))
}
