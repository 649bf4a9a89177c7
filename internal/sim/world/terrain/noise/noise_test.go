package noise

import (
	"math"
	"testing"
)

// reference is the original four-term formula, kept verbatim for comparison.
func reference(x, z, t float64) float64 {
	w1 := math.Sin(x*0.01+t*0.2) * math.Cos(z*0.01+t*0.15) * 0.5
	w2 := math.Sin(x*0.02+t*0.15) * 0.3
	w3 := math.Cos(z*0.02+t*0.2) * 0.3
	w4 := math.Sin(x*0.05+z*0.05+t*0.25) * 0.15
	return w1 + w2 + w3 + w4
}

func TestWaveMatchesReference(t *testing.T) {
	pts := [][3]float64{{0, 0, 0}, {10, -4, 1.5}, {-120, 33, 60}, {500, 500, 3600}}
	for _, p := range pts {
		got := Wave(p[0], p[1], p[2])
		want := reference(p[0], p[1], p[2])
		if math.Abs(got-want) > 1e-12 {
			t.Fatalf("Wave(%v)=%v want %v", p, got, want)
		}
	}
}

func TestWaveBounded(t *testing.T) {
	// |w| <= 0.5 + 0.3 + 0.3 + 0.15
	for x := -200.0; x <= 200; x += 7.3 {
		for z := -200.0; z <= 200; z += 5.1 {
			if h := Wave(x, z, 12.5); math.Abs(h) > 1.25+1e-9 {
				t.Fatalf("wave out of bounds at (%v,%v): %v", x, z, h)
			}
		}
	}
}

func TestSlopeOfFlatFieldIsZero(t *testing.T) {
	p := WaveParams{TimeScale: 1}
	dx, dz := p.Slope(3, 4, 5, 0.1)
	if dx != 0 || dz != 0 {
		t.Fatalf("flat field slope: %v,%v", dx, dz)
	}
}

func TestSlopeApproximatesDerivative(t *testing.T) {
	p := WaveParams{SwellFreq: 0.02, SwellAmp: 0.3, TimeScale: 1}
	// Only w2 depends on x: d/dx = 0.3*0.02*cos(0.02x + 0.15t).
	x, z, tm := 10.0, 0.0, 2.0
	dx, _ := p.Slope(x, z, tm, 0.01)
	want := 0.3 * 0.02 * math.Cos(0.02*x+0.15*tm)
	if math.Abs(dx-want) > 1e-6 {
		t.Fatalf("dx=%v want %v", dx, want)
	}
}

func TestTerrainDeterministic(t *testing.T) {
	a := NewTerrain(42)
	b := NewTerrain(42)
	for i := 0; i < 50; i++ {
		x := float64(i)*1.37 - 20
		z := float64(i)*0.91 + 3
		if a.Height(x, z) != b.Height(x, z) {
			t.Fatalf("terrain not deterministic at (%v,%v)", x, z)
		}
	}
	if a.Seed() != 42 {
		t.Fatalf("seed: %d", a.Seed())
	}
}

func TestSurface(t *testing.T) {
	if Surface(0, 0) != 0 {
		t.Fatalf("Surface(0,0)=%v", Surface(0, 0))
	}
	if h := Surface(math.Pi/4, 0); math.Abs(h-0.2) > 1e-12 {
		t.Fatalf("Surface peak: %v", h)
	}
}
