package world

import (
	"fmt"

	"seadrift.ai/internal/sim/tuning"
	"seadrift.ai/internal/sim/world/terrain/gen"
	"seadrift.ai/internal/sim/world/terrain/noise"
	"seadrift.ai/internal/sim/world/terrain/store"
)

type WorldConfig struct {
	ID                 string
	Seed               int64
	TickRateHz         int
	StreamEveryTicks   int
	SnapshotEveryTicks int

	Chunks   store.Config
	Gen      gen.Config
	Prefetch tuning.Prefetch

	Waves    noise.WaveParams
	Vehicles []tuning.VehicleTier
	Wildlife tuning.Wildlife
	Collect  tuning.Collect
	DayNight tuning.DayNight
}

// ConfigFromTuning maps a loaded tuning file onto a world config.
func ConfigFromTuning(id string, t tuning.Tuning) WorldConfig {
	return WorldConfig{
		ID:                 id,
		Seed:               t.World.Seed,
		TickRateHz:         t.World.TickRateHz,
		StreamEveryTicks:   t.World.StreamEveryTicks,
		SnapshotEveryTicks: t.World.SnapshotEveryTicks,
		Chunks: store.Config{
			ChunkSize: t.World.ChunkSize,
			Radius:    t.World.ChunksVisible,
			Metric:    store.Metric(t.World.Metric),
			Lookahead: t.World.Prefetch.Lookahead,
		},
		Gen:      t.GenConfig(),
		Prefetch: t.World.Prefetch,
		Waves:    t.Waves,
		Vehicles: append([]tuning.VehicleTier(nil), t.Vehicles...),
		Wildlife: t.Wildlife,
		Collect: tuning.Collect{
			Radius:      t.Collect.Radius,
			CooldownSec: t.Collect.CooldownSec,
			Score:       t.Collect.Score,
			Items:       append([]string(nil), t.Collect.Items...),
		},
		DayNight: t.DayNight,
	}
}

// DefaultConfig is the built-in tuning with the given seed.
func DefaultConfig(id string, seed int64) WorldConfig {
	t := tuning.Defaults()
	t.World.Seed = seed
	return ConfigFromTuning(id, t)
}

func (c *WorldConfig) applyDefaults() {
	if c.TickRateHz <= 0 {
		c.TickRateHz = 60
	}
	if c.StreamEveryTicks <= 0 {
		c.StreamEveryTicks = 1
	}
	// The generator and the manager must agree on the grid.
	c.Gen.Seed = c.Seed
	c.Gen.ChunkSize = c.Chunks.ChunkSize
}

func (c WorldConfig) validate() error {
	if len(c.Vehicles) == 0 {
		return fmt.Errorf("world %s: no vehicle tiers", c.ID)
	}
	if len(c.Collect.Items) == 0 {
		return fmt.Errorf("world %s: no collectible items", c.ID)
	}
	if c.DayNight.TimeScale <= 0 {
		return fmt.Errorf("world %s: day/night time scale must be > 0", c.ID)
	}
	return nil
}

// secondsToTicks rounds a duration in seconds to whole ticks, at least one.
func (c WorldConfig) secondsToTicks(sec float64) uint64 {
	n := uint64(sec*float64(c.TickRateHz) + 0.5)
	if n == 0 {
		n = 1
	}
	return n
}
