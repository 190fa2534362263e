package g

import (
	"math"

	"github.com/gaia-mud/gaia/pkg/world"
)

func init() {
	register("+", fnAdd)
	register("-", fnSub)
	register("*", fnMul)
	register("/", fnDiv)
	register("mod", fnMod)
	register("equals", fnEquals)
	register("not", fnNot)
	register("<", cmpFn(func(a, b float64) bool { return a < b }))
	register(">", cmpFn(func(a, b float64) bool { return a > b }))
	register("<=", cmpFn(func(a, b float64) bool { return a <= b }))
	register(">=", cmpFn(func(a, b float64) bool { return a >= b }))
}

func fnAdd(ctx *Context, call Node, args world.List) (world.Value, error) {
	sum := 0.0
	for _, a := range args {
		sum += world.ToNumber(a)
	}
	return sum, nil
}

// fnSub negates with one argument, subtracts left-to-right otherwise.
func fnSub(ctx *Context, call Node, args world.List) (world.Value, error) {
	if err := wantAtLeast(call, args, 1); err != nil {
		return nil, err
	}
	if len(args) == 1 {
		return -world.ToNumber(args[0]), nil
	}
	acc := world.ToNumber(args[0])
	for _, a := range args[1:] {
		acc -= world.ToNumber(a)
	}
	return acc, nil
}

func fnMul(ctx *Context, call Node, args world.List) (world.Value, error) {
	acc := 1.0
	for _, a := range args {
		acc *= world.ToNumber(a)
	}
	return acc, nil
}

func fnDiv(ctx *Context, call Node, args world.List) (world.Value, error) {
	if err := wantAtLeast(call, args, 2); err != nil {
		return nil, err
	}
	acc := world.ToNumber(args[0])
	for _, a := range args[1:] {
		d := world.ToNumber(a)
		if d == 0 {
			return nil, failf(FailTypeCoercion, call, "division by zero")
		}
		acc /= d
	}
	return acc, nil
}

func fnMod(ctx *Context, call Node, args world.List) (world.Value, error) {
	if err := wantArgs(call, args, 2); err != nil {
		return nil, err
	}
	d := world.ToNumber(args[1])
	if d == 0 {
		return nil, failf(FailTypeCoercion, call, "division by zero")
	}
	return math.Mod(world.ToNumber(args[0]), d), nil
}

func fnEquals(ctx *Context, call Node, args world.List) (world.Value, error) {
	if err := wantArgs(call, args, 2); err != nil {
		return nil, err
	}
	return world.Equal(args[0], args[1]), nil
}

func fnNot(ctx *Context, call Node, args world.List) (world.Value, error) {
	if err := wantArgs(call, args, 1); err != nil {
		return nil, err
	}
	return !world.Truthy(args[0]), nil
}

func cmpFn(cmp func(a, b float64) bool) BuiltinFunc {
	return func(ctx *Context, call Node, args world.List) (world.Value, error) {
		if err := wantArgs(call, args, 2); err != nil {
			return nil, err
		}
		return cmp(world.ToNumber(args[0]), world.ToNumber(args[1])), nil
	}
}
