package world

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"seadrift.ai/internal/scene"
	"seadrift.ai/internal/sim/world/logic/ids"
	"seadrift.ai/internal/sim/world/logic/mathx"
)

const auroraHeight = 100

func (w *World) newEntity(kind string, anchor mgl64.Vec3, now uint64, lifetimeSec float64) *Entity {
	w.state.nextEntityNum++
	return &Entity{
		ID:          ids.EntityID(kind, w.state.nextEntityNum),
		Kind:        kind,
		Anchor:      anchor,
		Pos:         anchor,
		SpawnTick:   now,
		ExpiresTick: now + w.cfg.secondsToTicks(lifetimeSec),
	}
}

func entityObject(e *Entity) scene.Object {
	return scene.Object{ID: e.ID, Kind: e.Kind, Pos: e.Pos}
}

func entityEvent(e *Entity) EntityEvent {
	return EntityEvent{ID: e.ID, Kind: e.Kind, Pos: [3]float64{e.Pos.X(), e.Pos.Y(), e.Pos.Z()}}
}

// expireEntities drops every entity whose lifetime is over.
func (w *World) expireEntities(now uint64) []string {
	var gone []string
	for _, slot := range []**Entity{&w.state.Shark, &w.state.Aurora} {
		e := *slot
		if e == nil || !e.expired(now) {
			continue
		}
		w.sink.Remove(entityObject(e))
		gone = append(gone, e.ID)
		*slot = nil
	}
	return gone
}

// tickAurora may spawn an aurora above the player on eastern night seas.
// The roll happens only while it is night and no aurora is up.
func (w *World) tickAurora(now uint64) *Entity {
	wl := w.cfg.Wildlife
	p := w.state.Player.Pos
	if !w.state.Sky.IsNight || w.state.Aurora != nil {
		return nil
	}
	if !w.rng.Chance(wl.AuroraChance) || p.X() <= wl.AuroraMinX {
		return nil
	}
	e := w.newEntity(scene.KindAurora, mgl64.Vec3{p.X(), auroraHeight, p.Z()}, now, wl.AuroraLifetimeSec)
	w.state.Aurora = e
	w.sink.Add(entityObject(e))
	w.logf("aurora %s spawned at x=%.1f z=%.1f", e.ID, p.X(), p.Z())
	return e
}

// tickShark moves the live shark around its circle, or rolls for a new one.
// A shark close to the player rocks the vehicle.
func (w *World) tickShark(now uint64, elapsed float64) *Entity {
	wl := w.cfg.Wildlife
	p := &w.state.Player

	s := w.state.Shark
	if s == nil {
		if !w.rng.Chance(wl.SharkChance) {
			return nil
		}
		a := w.rng.Angle()
		anchor := mgl64.Vec3{
			p.Pos.X() + math.Cos(a)*wl.SharkSpawnDistance,
			rideHeight,
			p.Pos.Z() + math.Sin(a)*wl.SharkSpawnDistance,
		}
		s = w.newEntity(scene.KindShark, anchor, now, wl.SharkLifetimeSec)
		w.state.Shark = s
		w.sink.Add(entityObject(s))
		w.logf("shark %s spawned at x=%.1f z=%.1f", s.ID, anchor.X(), anchor.Z())
		return s
	}

	age := float64(now-s.SpawnTick) / float64(w.cfg.TickRateHz)
	s.Pos = mgl64.Vec3{
		s.Anchor.X() + math.Cos(age)*wl.SharkCircleRadius,
		s.Anchor.Y(),
		s.Anchor.Z() + math.Sin(age)*wl.SharkCircleRadius,
	}
	s.Yaw = age + math.Pi/2

	if mathx.DistXZ(s.Pos.X(), s.Pos.Z(), p.Pos.X(), p.Pos.Z()) < wl.SharkJostleRadius {
		effect := w.vehicle().SharkEffect
		p.Pos = mgl64.Vec3{p.Pos.X(), rideHeight + math.Sin(elapsed*5)*0.3*effect, p.Pos.Z()}
	}
	return nil
}
