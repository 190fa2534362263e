package g

import (
	"math/rand"
	"strings"
	"time"

	"github.com/gaia-mud/gaia/pkg/world"
)

func init() {
	register("log", fnLog)
	register("random", fnRandom)
	register("time", fnTime)
}

func fnLog(ctx *Context, call Node, args world.List) (world.Value, error) {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = world.ToString(a)
	}
	ctx.World.Logf("g: [%s] %s", ctx.Executor, strings.Join(parts, " "))
	return nil, nil
}

// fnRandom is [random] for [0,1) or [random n] for an integer in [0,n).
func fnRandom(ctx *Context, call Node, args world.List) (world.Value, error) {
	switch len(args) {
	case 0:
		return rand.Float64(), nil
	case 1:
		n := int(world.ToNumber(args[0]))
		if n <= 0 {
			return float64(0), nil
		}
		return float64(rand.Intn(n)), nil
	default:
		return nil, failf(FailParse, call, "random wants at most one argument")
	}
}

// fnTime returns the Unix time in seconds.
func fnTime(ctx *Context, call Node, args world.List) (world.Value, error) {
	if len(args) != 0 {
		return nil, failf(FailParse, call, "time takes no arguments")
	}
	return float64(time.Now().Unix()), nil
}
