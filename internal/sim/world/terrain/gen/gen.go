package gen

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"seadrift.ai/internal/sim/world/logic/mathx"
	"seadrift.ai/internal/sim/world/terrain/noise"
	"seadrift.ai/internal/sim/world/terrain/rng"
)

// Materials are opaque handles supplied by the asset side. They are passed
// through to generated objects and never inspected here.
type Materials struct {
	Island string `yaml:"island" toml:"island" json:"island"`
	Rock   string `yaml:"rock" toml:"rock" json:"rock"`
	Tree   string `yaml:"tree" toml:"tree" json:"tree"`
	Plant  string `yaml:"plant" toml:"plant" json:"plant"`
}

type Config struct {
	Seed      int64
	ChunkSize float64

	IslandChance    float64
	IslandRadiusMin float64
	IslandRadiusMax float64
	IslandHeightMin float64
	IslandHeightMax float64
	ReliefSegments  int
	ReliefAmp       float64

	RocksMax  int
	TreesMin  int
	TreesMax  int
	PlantsMax int

	Materials Materials
}

func DefaultConfig(seed int64, chunkSize float64) Config {
	return Config{
		Seed:            seed,
		ChunkSize:       chunkSize,
		IslandChance:    0.2,
		IslandRadiusMin: 5,
		IslandRadiusMax: 15,
		IslandHeightMin: 2,
		IslandHeightMax: 6,
		ReliefSegments:  16,
		ReliefAmp:       0.2,
		RocksMax:        4,
		TreesMin:        1,
		TreesMax:        5,
		PlantsMax:       9,
		Materials: Materials{
			Island: "island",
			Rock:   "rock",
			Tree:   "tree",
			Plant:  "seaweed",
		},
	}
}

func (c Config) Validate() error {
	if c.ChunkSize <= 0 || math.IsNaN(c.ChunkSize) || math.IsInf(c.ChunkSize, 0) {
		return fmt.Errorf("chunk size must be a positive number, got %v", c.ChunkSize)
	}
	if c.IslandChance < 0 || c.IslandChance > 1 {
		return fmt.Errorf("island chance must be in [0,1], got %v", c.IslandChance)
	}
	if c.IslandRadiusMin <= 0 || c.IslandRadiusMax < c.IslandRadiusMin {
		return fmt.Errorf("island radius range invalid: [%v,%v)", c.IslandRadiusMin, c.IslandRadiusMax)
	}
	if c.IslandHeightMin < 0 || c.IslandHeightMax < c.IslandHeightMin {
		return fmt.Errorf("island height range invalid: [%v,%v)", c.IslandHeightMin, c.IslandHeightMax)
	}
	if c.ReliefSegments < 3 {
		return fmt.Errorf("relief segments must be >= 3, got %d", c.ReliefSegments)
	}
	if c.ReliefAmp < 0 || c.ReliefAmp >= 1 {
		return fmt.Errorf("relief amplitude must be in [0,1), got %v", c.ReliefAmp)
	}
	if c.RocksMax < 0 || c.PlantsMax < 0 {
		return fmt.Errorf("object counts must be >= 0 (rocks=%d plants=%d)", c.RocksMax, c.PlantsMax)
	}
	if c.TreesMin < 0 || c.TreesMax < c.TreesMin {
		return fmt.Errorf("tree count range invalid: [%d,%d]", c.TreesMin, c.TreesMax)
	}
	return nil
}

// Generator produces chunk content. It holds no mutable state, so one
// instance may be shared by concurrent callers.
type Generator struct {
	cfg     Config
	terrain *noise.Terrain
}

func New(cfg Config) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Generator{cfg: cfg, terrain: noise.NewTerrain(cfg.Seed)}, nil
}

func (g *Generator) Config() Config { return g.cfg }

// Generate builds chunk (cx,cz). The draw order below is part of the world
// format: reordering draws changes every generated world.
func (g *Generator) Generate(cx, cz int) *Chunk {
	r := rng.ForChunk(g.cfg.Seed, cx, cz)
	size := g.cfg.ChunkSize
	origin := mgl64.Vec3{float64(cx) * size, 0, float64(cz) * size}

	ch := &Chunk{CX: cx, CZ: cz, Origin: origin, Size: size}

	if r.Chance(g.cfg.IslandChance) {
		ch.Island = g.island(r, origin)
	}

	n := r.IntN(g.cfg.PlantsMax + 1)
	ch.Plants = make([]Plant, 0, n)
	for i := 0; i < n; i++ {
		x := origin.X() + r.Next()*size
		z := origin.Z() + r.Next()*size
		h := r.Range(0.5, 2)
		ch.Plants = append(ch.Plants, Plant{
			Pos:      mgl64.Vec3{x, -h / 2, z},
			Height:   h,
			Material: g.cfg.Materials.Plant,
		})
	}
	return ch
}

func (g *Generator) island(r *rng.Random, origin mgl64.Vec3) *Island {
	size := g.cfg.ChunkSize
	radius := r.Range(g.cfg.IslandRadiusMin, g.cfg.IslandRadiusMax)
	height := r.Range(g.cfg.IslandHeightMin, g.cfg.IslandHeightMax)

	// Keep the footprint inside the chunk when it fits; otherwise center it.
	margin := math.Min(radius, size/2)
	span := size - 2*margin
	cx := origin.X() + margin + r.Next()*span
	cz := origin.Z() + margin + r.Next()*span

	is := &Island{
		Center:   mgl64.Vec3{cx, 0, cz},
		Radius:   radius,
		Height:   height,
		Material: g.cfg.Materials.Island,
	}

	segs := g.cfg.ReliefSegments
	is.Relief = make([]mgl64.Vec3, 0, segs)
	for i := 0; i < segs; i++ {
		a := 2 * math.Pi * float64(i) / float64(segs)
		px := cx + math.Cos(a)*radius
		pz := cz + math.Sin(a)*radius
		d := 1 + g.cfg.ReliefAmp*mathx.Clamp(g.terrain.Height(px*0.1, pz*0.1), -1, 1)
		is.Relief = append(is.Relief, mgl64.Vec3{
			cx + math.Cos(a)*radius*d,
			noise.Surface(px, pz),
			cz + math.Sin(a)*radius*d,
		})
	}

	rocks := r.IntN(g.cfg.RocksMax + 1)
	for i := 0; i < rocks; i++ {
		a := r.Angle()
		dist := r.Range(radius*0.5, radius)
		s := r.Range(0.3, 1)
		is.Rocks = append(is.Rocks, Decoration{
			Pos:      mgl64.Vec3{math.Cos(a) * dist, s / 2, math.Sin(a) * dist},
			Size:     s,
			Material: g.cfg.Materials.Rock,
		})
	}

	trees := r.IntRange(g.cfg.TreesMin, g.cfg.TreesMax)
	for i := 0; i < trees; i++ {
		h := r.Range(0.5, 1.5)
		a := r.Angle()
		dist := r.Range(0, radius*0.75)
		is.Trees = append(is.Trees, Decoration{
			Pos:      mgl64.Vec3{math.Cos(a) * dist, height + h/2, math.Sin(a) * dist},
			Size:     h,
			Material: g.cfg.Materials.Tree,
		})
	}
	return is
}
