package game

import (
	"time"

	"github.com/gaia-mud/gaia/pkg/g"
)

// StartTicker runs the once-per-second scheduler: every cached object
// with an own on_tick attribute gets its handler invoked as itself. A
// failing handler is logged and never stops the tick.
func (gm *Game) StartTicker() {
	go func() {
		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				gm.runTick()
			case <-gm.ShutdownCh:
				return
			}
		}
	}()
}

func (gm *Game) runTick() {
	if gm.Metrics != nil {
		gm.Metrics.TickProcessed()
	}
	for _, id := range gm.Cache.TickSet() {
		v, ok, err := gm.Cache.GetAttribute(id, "on_tick")
		if err != nil || !ok {
			continue
		}
		src, isString := v.(string)
		if !isString {
			continue
		}
		ctx := gm.NewContext(id)
		if _, err := g.Invoke(ctx, src, nil); err != nil {
			gm.Logf("tick: on_tick for %s: %v", id, err)
		}
	}
}
