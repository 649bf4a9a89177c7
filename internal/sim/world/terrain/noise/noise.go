// Package noise holds the deterministic scalar fields used for ocean waves and
// island relief. Every function here is pure.
package noise

import (
	"math"

	"github.com/aquilax/go-perlin"
)

// WaveParams are the coefficients of the four-term ocean height sum.
// The client shader uses the same terms, so physics and visuals agree.
type WaveParams struct {
	BaseFreq  float64 `yaml:"base_freq" toml:"base_freq" json:"base_freq"`
	BaseAmp   float64 `yaml:"base_amp" toml:"base_amp" json:"base_amp"`
	SwellFreq float64 `yaml:"swell_freq" toml:"swell_freq" json:"swell_freq"`
	SwellAmp  float64 `yaml:"swell_amp" toml:"swell_amp" json:"swell_amp"`
	ChopFreq  float64 `yaml:"chop_freq" toml:"chop_freq" json:"chop_freq"`
	ChopAmp   float64 `yaml:"chop_amp" toml:"chop_amp" json:"chop_amp"`
	TimeScale float64 `yaml:"time_scale" toml:"time_scale" json:"time_scale"`
}

func DefaultWaveParams() WaveParams {
	return WaveParams{
		BaseFreq:  0.01,
		BaseAmp:   0.5,
		SwellFreq: 0.02,
		SwellAmp:  0.3,
		ChopFreq:  0.05,
		ChopAmp:   0.15,
		TimeScale: 1,
	}
}

// Height evaluates the wave field at (x,z) after t seconds.
func (p WaveParams) Height(x, z, t float64) float64 {
	t *= p.TimeScale
	w1 := math.Sin(x*p.BaseFreq+t*0.2) * math.Cos(z*p.BaseFreq+t*0.15) * p.BaseAmp
	w2 := math.Sin(x*p.SwellFreq+t*0.15) * p.SwellAmp
	w3 := math.Cos(z*p.SwellFreq+t*0.2) * p.SwellAmp
	w4 := math.Sin(x*p.ChopFreq+z*p.ChopFreq+t*0.25) * p.ChopAmp
	return w1 + w2 + w3 + w4
}

// Slope returns the central-difference gradient of the wave field.
func (p WaveParams) Slope(x, z, t, eps float64) (dx, dz float64) {
	if eps <= 0 {
		eps = 0.1
	}
	dx = (p.Height(x+eps, z, t) - p.Height(x-eps, z, t)) / (2 * eps)
	dz = (p.Height(x, z+eps, t) - p.Height(x, z-eps, t)) / (2 * eps)
	return dx, dz
}

// Wave is Height with the default coefficients.
func Wave(x, z, t float64) float64 {
	return DefaultWaveParams().Height(x, z, t)
}

// Surface is the cheap static deformation applied to island meshes.
func Surface(x, z float64) float64 {
	return math.Sin(x*2) * math.Cos(z*2) * 0.2
}

// Terrain is a seeded gradient-noise field for island relief.
// Safe for concurrent reads once constructed.
type Terrain struct {
	seed int64
	p    *perlin.Perlin
}

const (
	terrainAlpha  = 2.0
	terrainBeta   = 2.0
	terrainOctave = 3
)

func NewTerrain(seed int64) *Terrain {
	return &Terrain{
		seed: seed,
		p:    perlin.NewPerlin(terrainAlpha, terrainBeta, terrainOctave, seed),
	}
}

func (t *Terrain) Seed() int64 { return t.seed }

// Height returns relief in roughly [-1,1] at world coordinates (x,z).
func (t *Terrain) Height(x, z float64) float64 {
	return t.p.Noise2D(x, z) + Surface(x, z)*0.5
}
