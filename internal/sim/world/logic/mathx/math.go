package mathx

import "math"

func FloorDiv(a, b int) int {
	// b > 0
	q := a / b
	r := a % b
	if r < 0 {
		q--
	}
	return q
}

// FloorDivF maps a continuous coordinate onto the integer cell of width size.
// size > 0
func FloorDivF(v, size float64) int {
	return int(math.Floor(v / size))
}

func AbsInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func MaxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// DistXZ is the horizontal distance between two points, ignoring height.
func DistXZ(ax, az, bx, bz float64) float64 {
	dx := ax - bx
	dz := az - bz
	return math.Sqrt(dx*dx + dz*dz)
}
