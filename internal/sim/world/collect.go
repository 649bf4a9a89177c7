package world

import (
	"seadrift.ai/internal/sim/world/logic/mathx"
	"seadrift.ai/internal/sim/world/terrain/gen"
	"seadrift.ai/internal/sim/world/terrain/store"
)

// collect awards every resident island within reach whose cooldown has
// passed. Islands are visited in key order so the item draws are
// reproducible.
func (w *World) collect(now uint64) []CollectEvent {
	var out []CollectEvent
	p := &w.state.Player
	cooldown := w.cfg.secondsToTicks(w.cfg.Collect.CooldownSec)

	w.chunks.Each(func(k store.ChunkKey, ch *gen.Chunk) bool {
		if ch.Island == nil {
			return true
		}
		c := ch.Island.Center
		if mathx.DistXZ(p.Pos.X(), p.Pos.Z(), c.X(), c.Z()) >= w.cfg.Collect.Radius {
			return true
		}
		if last, ok := w.state.Cooldowns[k]; ok && now-last <= cooldown {
			return true
		}

		items := w.cfg.Collect.Items
		item := items[w.rng.IntN(len(items))]
		p.Collectibles++
		p.Score += w.cfg.Collect.Score
		p.Items[item]++
		w.state.Cooldowns[k] = now

		out = append(out, CollectEvent{CX: k.CX, CZ: k.CZ, Item: item, Score: p.Score})
		return true
	})

	// Forget cooldowns that can no longer block anything.
	for k, last := range w.state.Cooldowns {
		if now-last > cooldown {
			delete(w.state.Cooldowns, k)
		}
	}
	return out
}
