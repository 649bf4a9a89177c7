package store

import (
	"fmt"
	"math"
	"strings"

	"seadrift.ai/internal/sim/world/logic/mathx"
	"seadrift.ai/internal/sim/world/terrain/gen"
)

// MaxRadius bounds the visibility radius so a typo in config cannot turn
// into an unbounded generation loop. (2*64+1)^2 chunks is already plenty.
const MaxRadius = 64

type ChunkKey struct {
	CX int
	CZ int
}

func (k ChunkKey) String() string { return gen.KeyString(k.CX, k.CZ) }

// ParseChunkKey is the inverse of ChunkKey.String.
func ParseChunkKey(s string) (ChunkKey, error) {
	var k ChunkKey
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return k, fmt.Errorf("chunk key %q: want \"cx,cz\"", s)
	}
	if _, err := fmt.Sscanf(s, "%d,%d", &k.CX, &k.CZ); err != nil {
		return k, fmt.Errorf("chunk key %q: %w", s, err)
	}
	return k, nil
}

type Metric string

const (
	Chebyshev Metric = "chebyshev"
	Manhattan Metric = "manhattan"
)

// Distance is the chunk-grid distance between a and b under m.
func (m Metric) Distance(a, b ChunkKey) int {
	dx := mathx.AbsInt(a.CX - b.CX)
	dz := mathx.AbsInt(a.CZ - b.CZ)
	if m == Manhattan {
		return dx + dz
	}
	return mathx.MaxInt(dx, dz)
}

type Config struct {
	ChunkSize float64
	Radius    int
	Metric    Metric

	// Lookahead widens the prefetch ring beyond Radius. Only used when a
	// Prefetcher is attached.
	Lookahead int
}

func (c *Config) applyDefaults() {
	if c.Metric == "" {
		c.Metric = Chebyshev
	}
	if c.Lookahead <= 0 {
		c.Lookahead = 2
	}
}

func (c Config) Validate() error {
	if c.ChunkSize <= 0 || math.IsNaN(c.ChunkSize) || math.IsInf(c.ChunkSize, 0) {
		return fmt.Errorf("chunk size must be a positive number, got %v", c.ChunkSize)
	}
	if c.Radius < 0 {
		return fmt.Errorf("visibility radius must be >= 0, got %d", c.Radius)
	}
	if c.Radius > MaxRadius {
		return fmt.Errorf("visibility radius %d exceeds max %d", c.Radius, MaxRadius)
	}
	switch c.Metric {
	case "", Chebyshev, Manhattan:
	default:
		return fmt.Errorf("unknown distance metric %q", c.Metric)
	}
	if c.Lookahead < 0 || c.Radius+c.Lookahead > MaxRadius+2 {
		return fmt.Errorf("prefetch lookahead %d out of range", c.Lookahead)
	}
	return nil
}

// Generator is satisfied by *gen.Generator.
type Generator interface {
	Generate(cx, cz int) *gen.Chunk
}

// UpdateResult lists what a single Update changed, in the order it happened.
type UpdateResult struct {
	Center  ChunkKey
	Created []ChunkKey
	Evicted []ChunkKey
}

func (r UpdateResult) Changed() bool { return len(r.Created) > 0 || len(r.Evicted) > 0 }

type Stats struct {
	Created      uint64
	Evicted      uint64
	PrefetchHits uint64
	Updates      uint64
}
