package g

import (
	"strings"

	"github.com/gaia-mud/gaia/pkg/world"
)

func init() {
	register("concat", fnConcat)
	register("strlen", fnStrlen)
	register("substr", fnSubstr)
	register("upper", fnUpper)
	register("lower", fnLower)
	register("split", fnSplit)
	register("join", fnJoin)
}

func fnConcat(ctx *Context, call Node, args world.List) (world.Value, error) {
	var b strings.Builder
	for _, a := range args {
		b.WriteString(world.ToString(a))
	}
	return b.String(), nil
}

func fnStrlen(ctx *Context, call Node, args world.List) (world.Value, error) {
	if err := wantArgs(call, args, 1); err != nil {
		return nil, err
	}
	return float64(len([]rune(world.ToString(args[0])))), nil
}

// fnSubstr is [substr s start length?]; indexes are rune-based and
// clamped.
func fnSubstr(ctx *Context, call Node, args world.List) (world.Value, error) {
	if len(args) != 2 && len(args) != 3 {
		return nil, failf(FailParse, call, "substr wants [substr s start length?]")
	}
	runes := []rune(world.ToString(args[0]))
	start := int(world.ToNumber(args[1]))
	if start < 0 {
		start = 0
	}
	if start > len(runes) {
		start = len(runes)
	}
	end := len(runes)
	if len(args) == 3 {
		end = start + int(world.ToNumber(args[2]))
		if end < start {
			end = start
		}
		if end > len(runes) {
			end = len(runes)
		}
	}
	return string(runes[start:end]), nil
}

func fnUpper(ctx *Context, call Node, args world.List) (world.Value, error) {
	if err := wantArgs(call, args, 1); err != nil {
		return nil, err
	}
	return strings.ToUpper(world.ToString(args[0])), nil
}

func fnLower(ctx *Context, call Node, args world.List) (world.Value, error) {
	if err := wantArgs(call, args, 1); err != nil {
		return nil, err
	}
	return strings.ToLower(world.ToString(args[0])), nil
}

// fnSplit is [split s sep?]; the default separator splits on runs of
// whitespace.
func fnSplit(ctx *Context, call Node, args world.List) (world.Value, error) {
	if len(args) != 1 && len(args) != 2 {
		return nil, failf(FailParse, call, "split wants [split s sep?]")
	}
	s := world.ToString(args[0])
	var parts []string
	if len(args) == 2 {
		parts = strings.Split(s, world.ToString(args[1]))
	} else {
		parts = strings.Fields(s)
	}
	out := make(world.List, len(parts))
	for i, p := range parts {
		out[i] = p
	}
	return out, nil
}

func fnJoin(ctx *Context, call Node, args world.List) (world.Value, error) {
	if len(args) != 1 && len(args) != 2 {
		return nil, failf(FailParse, call, "join wants [join list sep?]")
	}
	sep := " "
	if len(args) == 2 {
		sep = world.ToString(args[1])
	}
	elems := coerceList(args[0])
	parts := make([]string, len(elems))
	for i, el := range elems {
		parts[i] = world.ToString(el)
	}
	return strings.Join(parts, sep), nil
}
