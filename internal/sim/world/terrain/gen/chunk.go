package gen

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/cespare/xxhash/v2"
	"github.com/go-gl/mathgl/mgl64"
)

// Chunk is the generated content of one square region. Never mutated after
// Generate returns.
type Chunk struct {
	CX     int        `json:"cx"`
	CZ     int        `json:"cz"`
	Origin mgl64.Vec3 `json:"origin"`
	Size   float64    `json:"size"`

	Island *Island `json:"island,omitempty"`
	Plants []Plant `json:"plants"`
}

type Island struct {
	Center   mgl64.Vec3   `json:"center"`
	Radius   float64      `json:"radius"`
	Height   float64      `json:"height"`
	Relief   []mgl64.Vec3 `json:"relief"`
	Rocks    []Decoration `json:"rocks,omitempty"`
	Trees    []Decoration `json:"trees,omitempty"`
	Material string       `json:"material"`
}

// Decoration positions are relative to the island center.
type Decoration struct {
	Pos      mgl64.Vec3 `json:"pos"`
	Size     float64    `json:"size"`
	Material string     `json:"material"`
}

type Plant struct {
	Pos      mgl64.Vec3 `json:"pos"`
	Height   float64    `json:"height"`
	Material string     `json:"material"`
}

func KeyString(cx, cz int) string { return fmt.Sprintf("%d,%d", cx, cz) }

func (c *Chunk) Key() string { return KeyString(c.CX, c.CZ) }

func (c *Chunk) HasIsland() bool { return c.Island != nil }

// Fingerprint hashes the full content bit-for-bit. Two chunks with equal
// fingerprints were generated from the same seed and coordinate.
func (c *Chunk) Fingerprint() uint64 {
	d := xxhash.New()
	var buf [8]byte
	putInt := func(v int) {
		binary.LittleEndian.PutUint64(buf[:], uint64(int64(v)))
		_, _ = d.Write(buf[:])
	}
	putF := func(v float64) {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
		_, _ = d.Write(buf[:])
	}
	putV := func(v mgl64.Vec3) {
		putF(v.X())
		putF(v.Y())
		putF(v.Z())
	}

	putInt(c.CX)
	putInt(c.CZ)
	putF(c.Size)
	if c.Island != nil {
		is := c.Island
		putInt(1)
		putV(is.Center)
		putF(is.Radius)
		putF(is.Height)
		putInt(len(is.Relief))
		for _, v := range is.Relief {
			putV(v)
		}
		putInt(len(is.Rocks))
		for _, r := range is.Rocks {
			putV(r.Pos)
			putF(r.Size)
		}
		putInt(len(is.Trees))
		for _, t := range is.Trees {
			putV(t.Pos)
			putF(t.Size)
		}
	} else {
		putInt(0)
	}
	putInt(len(c.Plants))
	for _, p := range c.Plants {
		putV(p.Pos)
		putF(p.Height)
	}
	return d.Sum64()
}

// Center is the world-space midpoint of the chunk footprint.
func (c *Chunk) Center() mgl64.Vec3 {
	return c.Origin.Add(mgl64.Vec3{c.Size / 2, 0, c.Size / 2})
}
