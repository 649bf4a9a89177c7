package world

import (
	"github.com/go-gl/mathgl/mgl64"

	"seadrift.ai/internal/sim/tuning"
)

const (
	// Resting height of the vehicle above the mean sea surface.
	rideHeight = 0.5
	// Sample offset for the wave gradient used for pitch and roll.
	slopeEps = 0.1
)

// CameraOffset is where the follow camera sits relative to the player.
var CameraOffset = mgl64.Vec3{0, 5, 10}

// tierFor returns the highest tier whose threshold is met. Tiers are sorted
// by threshold and the first one starts at zero.
func tierFor(tiers []tuning.VehicleTier, collectibles int) int {
	idx := 0
	for i, t := range tiers {
		if collectibles >= t.Threshold {
			idx = i
		}
	}
	return idx
}

func (w *World) vehicle() tuning.VehicleTier { return w.cfg.Vehicles[w.state.Player.Tier] }

// VehicleName is the current tier name, e.g. "board".
func (w *World) VehicleName() string { return w.vehicle().Name }

// movePlayer applies held keys, then floats the vehicle on the wave field.
// Higher tiers move faster and feel the waves less.
func (w *World) movePlayer(in Input, elapsed float64) {
	p := &w.state.Player
	v := w.vehicle()

	x, z := p.Pos.X(), p.Pos.Z()
	if in.Forward {
		z -= v.Speed
	}
	if in.Back {
		z += v.Speed
	}
	if in.Left {
		x -= v.Speed
	}
	if in.Right {
		x += v.Speed
	}

	h := w.cfg.Waves.Height(x, z, elapsed)
	gx, gz := w.cfg.Waves.Slope(x, z, elapsed, slopeEps)

	p.Pos = mgl64.Vec3{x, rideHeight + h*v.WaveEffect, z}
	p.Rot = mgl64.Vec3{gz * v.WaveEffect, p.Rot.Y(), -gx * v.WaveEffect}

	w.state.Camera = Camera{
		Pos:    mgl64.Vec3{x + CameraOffset.X(), CameraOffset.Y(), z + CameraOffset.Z()},
		Target: p.Pos,
	}
}

// upgradeVehicle re-evaluates the tier after a collect. It returns the new
// tier name when the tier changed.
func (w *World) upgradeVehicle() string {
	p := &w.state.Player
	next := tierFor(w.cfg.Vehicles, p.Collectibles)
	if next == p.Tier {
		return ""
	}
	p.Tier = next
	w.logf("vehicle upgraded to %s (collectibles=%d)", w.cfg.Vehicles[next].Name, p.Collectibles)
	return w.cfg.Vehicles[next].Name
}
