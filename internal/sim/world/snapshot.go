package world

import (
	"fmt"
	"sort"

	"github.com/go-gl/mathgl/mgl64"

	"seadrift.ai/internal/persistence/snapshot"
	"seadrift.ai/internal/scene"
	"seadrift.ai/internal/sim/world/logic/ids"
	"seadrift.ai/internal/sim/world/terrain/rng"
	"seadrift.ai/internal/sim/world/terrain/store"
)

func vec3(v mgl64.Vec3) [3]float64 { return [3]float64{v.X(), v.Y(), v.Z()} }

// ExportSnapshot captures the world at the current tick. World goroutine
// only.
func (w *World) ExportSnapshot() snapshot.SnapshotV1 {
	p := w.state.Player
	items := make(map[string]int, len(p.Items))
	for k, v := range p.Items {
		items[k] = v
	}

	snap := snapshot.SnapshotV1{
		Header:     snapshot.Header{Version: snapshot.Version, WorldID: w.cfg.ID, Tick: w.state.Tick},
		Seed:       w.cfg.Seed,
		ChunkSize:  w.cfg.Chunks.ChunkSize,
		Radius:     w.cfg.Chunks.Radius,
		Metric:     string(w.chunks.Config().Metric),
		TickRateHz: w.cfg.TickRateHz,
		RNGState:   w.rng.State(),
		Player: snapshot.PlayerV1{
			Pos:          vec3(p.Pos),
			Rot:          vec3(p.Rot),
			Collectibles: p.Collectibles,
			Score:        p.Score,
			Vehicle:      w.VehicleName(),
			Items:        items,
		},
	}

	for k, last := range w.state.Cooldowns {
		snap.Cooldowns = append(snap.Cooldowns, snapshot.CooldownV1{CX: k.CX, CZ: k.CZ, LastTick: last})
	}
	sort.Slice(snap.Cooldowns, func(i, j int) bool {
		a, b := snap.Cooldowns[i], snap.Cooldowns[j]
		if a.CX != b.CX {
			return a.CX < b.CX
		}
		return a.CZ < b.CZ
	})

	for _, e := range []*Entity{w.state.Shark, w.state.Aurora} {
		if e == nil {
			continue
		}
		snap.Entities = append(snap.Entities, snapshot.EntityV1{
			ID:          e.ID,
			Kind:        e.Kind,
			Anchor:      vec3(e.Anchor),
			Pos:         vec3(e.Pos),
			SpawnTick:   e.SpawnTick,
			ExpiresTick: e.ExpiresTick,
		})
	}

	snap.NextEntity = w.state.nextEntityNum
	snap.Center, snap.Chunks = store.ExportResident(w.chunks)
	return snap
}

// ImportSnapshot resumes from snap. The world must have been built with the
// same seed and chunk grid the snapshot was taken with.
func (w *World) ImportSnapshot(snap snapshot.SnapshotV1) error {
	if snap.Header.Version != snapshot.Version {
		return fmt.Errorf("unsupported snapshot version %d", snap.Header.Version)
	}
	if snap.Seed != w.cfg.Seed {
		return fmt.Errorf("snapshot seed %d does not match world seed %d", snap.Seed, w.cfg.Seed)
	}
	if snap.ChunkSize != w.cfg.Chunks.ChunkSize {
		return fmt.Errorf("snapshot chunk size %v does not match world chunk size %v", snap.ChunkSize, w.cfg.Chunks.ChunkSize)
	}

	st := newState()
	st.Tick = snap.Header.Tick
	st.Player.Pos = mgl64.Vec3(snap.Player.Pos)
	st.Player.Rot = mgl64.Vec3(snap.Player.Rot)
	st.Player.Collectibles = snap.Player.Collectibles
	st.Player.Score = snap.Player.Score
	st.Player.Tier = tierFor(w.cfg.Vehicles, snap.Player.Collectibles)
	for k, v := range snap.Player.Items {
		st.Player.Items[k] = v
	}
	for _, c := range snap.Cooldowns {
		st.Cooldowns[store.ChunkKey{CX: c.CX, CZ: c.CZ}] = c.LastTick
	}
	st.nextEntityNum = snap.NextEntity
	for _, ev := range snap.Entities {
		e := &Entity{
			ID:          ev.ID,
			Kind:        ev.Kind,
			Anchor:      mgl64.Vec3(ev.Anchor),
			Pos:         mgl64.Vec3(ev.Pos),
			SpawnTick:   ev.SpawnTick,
			ExpiresTick: ev.ExpiresTick,
		}
		if n, ok := ids.ParseEntityNum(e.ID); ok {
			st.nextEntityNum = ids.MaxU64(st.nextEntityNum, n)
		}
		switch e.Kind {
		case scene.KindShark:
			st.Shark = e
		case scene.KindAurora:
			st.Aurora = e
		default:
			return fmt.Errorf("snapshot entity %s: unknown kind %q", e.ID, e.Kind)
		}
	}
	if err := w.chunks.Restore(snap.Center, snap.Chunks); err != nil {
		return err
	}

	elapsed := float64(st.Tick) / float64(w.cfg.TickRateHz)
	st.Sky = computeSky(elapsed, w.cfg.DayNight, st.Player.Pos)

	for _, e := range []*Entity{w.state.Shark, w.state.Aurora} {
		if e != nil {
			w.sink.Remove(entityObject(e))
		}
	}
	for _, e := range []*Entity{st.Shark, st.Aurora} {
		if e != nil {
			w.sink.Add(entityObject(e))
		}
	}
	w.state = st
	w.rng = rng.Restore(snap.RNGState)
	w.publishMetrics(0)
	return nil
}
