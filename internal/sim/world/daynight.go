package world

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"seadrift.ai/internal/sim/tuning"
)

// SunGlow names the halo node attached to the sun.
const SunGlow = "sun.glow"

type Body struct {
	Pos     mgl64.Vec3
	Opacity float64
	Visible bool
	// Glow is the named child the renderer keeps facing the camera. Empty
	// for bodies without a halo.
	Glow string
}

type Sky struct {
	Time      float64
	Intensity float64
	IsNight   bool
	// Light is the directional light intensity; the light sits on the sun.
	Light float64
	Sun   Body
	Moon  Body
}

// computeSky evaluates the day/night cycle at elapsed seconds. Sun and moon
// follow opposite arcs relative to the player.
func computeSky(elapsed float64, dn tuning.DayNight, player mgl64.Vec3) Sky {
	t := elapsed * dn.TimeScale
	intensity := math.Sin(t)*0.5 + 0.5
	night := intensity < dn.NightThreshold

	sunAngle := t * math.Pi
	moonAngle := sunAngle + math.Pi

	return Sky{
		Time:      t,
		Intensity: intensity,
		IsNight:   night,
		Light:     intensity + 0.2,
		Sun: Body{
			Pos:     mgl64.Vec3{player.X() + math.Cos(sunAngle)*400, math.Sin(sunAngle) * 200, player.Z() - 200},
			Opacity: math.Max(0, intensity*1.5-0.3),
			Visible: true,
			Glow:    SunGlow,
		},
		Moon: Body{
			Pos:     mgl64.Vec3{player.X() + math.Cos(moonAngle)*300, math.Sin(moonAngle) * 150, player.Z() - 200},
			Opacity: 1,
			Visible: night,
		},
	}
}
