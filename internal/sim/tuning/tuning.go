package tuning

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml"
	"gopkg.in/yaml.v3"

	"seadrift.ai/internal/sim/world/terrain/gen"
	"seadrift.ai/internal/sim/world/terrain/noise"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version" toml:"protocol_version"`

	World    World            `yaml:"world" toml:"world"`
	Waves    noise.WaveParams `yaml:"waves" toml:"waves"`
	Density  Density          `yaml:"density" toml:"density"`
	Vehicles []VehicleTier    `yaml:"vehicles" toml:"vehicles"`
	Wildlife Wildlife         `yaml:"wildlife" toml:"wildlife"`
	Collect  Collect          `yaml:"collect" toml:"collect"`
	DayNight DayNight         `yaml:"day_night" toml:"day_night"`
}

type World struct {
	Seed               int64    `yaml:"seed" toml:"seed"`
	ChunkSize          float64  `yaml:"chunk_size" toml:"chunk_size"`
	ChunksVisible      int      `yaml:"chunks_visible" toml:"chunks_visible"`
	Metric             string   `yaml:"metric" toml:"metric"`
	TickRateHz         int      `yaml:"tick_rate_hz" toml:"tick_rate_hz"`
	StreamEveryTicks   int      `yaml:"stream_every_ticks" toml:"stream_every_ticks"`
	SnapshotEveryTicks int      `yaml:"snapshot_every_ticks" toml:"snapshot_every_ticks"`
	Prefetch           Prefetch `yaml:"prefetch" toml:"prefetch"`
}

type Prefetch struct {
	Enabled   bool `yaml:"enabled" toml:"enabled"`
	Workers   int  `yaml:"workers" toml:"workers"`
	QueueLen  int  `yaml:"queue_len" toml:"queue_len"`
	Lookahead int  `yaml:"lookahead" toml:"lookahead"`
}

// Density drives procedural content per chunk.
type Density struct {
	IslandChance    float64       `yaml:"island_chance" toml:"island_chance"`
	IslandRadiusMin float64       `yaml:"island_radius_min" toml:"island_radius_min"`
	IslandRadiusMax float64       `yaml:"island_radius_max" toml:"island_radius_max"`
	IslandHeightMin float64       `yaml:"island_height_min" toml:"island_height_min"`
	IslandHeightMax float64       `yaml:"island_height_max" toml:"island_height_max"`
	ReliefSegments  int           `yaml:"relief_segments" toml:"relief_segments"`
	ReliefAmp       float64       `yaml:"relief_amp" toml:"relief_amp"`
	RocksMax        int           `yaml:"rocks_max" toml:"rocks_max"`
	TreesMin        int           `yaml:"trees_min" toml:"trees_min"`
	TreesMax        int           `yaml:"trees_max" toml:"trees_max"`
	PlantsMax       int           `yaml:"plants_max" toml:"plants_max"`
	Materials       gen.Materials `yaml:"materials" toml:"materials"`
}

// VehicleTier is one step of the board -> kayak -> boat progression.
// Threshold is the collectible count at which the tier unlocks.
type VehicleTier struct {
	Name        string    `yaml:"name" toml:"name"`
	Threshold   int       `yaml:"threshold" toml:"threshold"`
	Size        []float64 `yaml:"size" toml:"size"`
	Color       int       `yaml:"color" toml:"color"`
	Speed       float64   `yaml:"speed" toml:"speed"`
	WaveEffect  float64   `yaml:"wave_effect" toml:"wave_effect"`
	SharkEffect float64   `yaml:"shark_effect" toml:"shark_effect"`
}

type Wildlife struct {
	SharkChance        float64 `yaml:"shark_chance" toml:"shark_chance"`
	SharkSpawnDistance float64 `yaml:"shark_spawn_distance" toml:"shark_spawn_distance"`
	SharkCircleRadius  float64 `yaml:"shark_circle_radius" toml:"shark_circle_radius"`
	SharkJostleRadius  float64 `yaml:"shark_jostle_radius" toml:"shark_jostle_radius"`
	SharkLifetimeSec   float64 `yaml:"shark_lifetime_sec" toml:"shark_lifetime_sec"`

	AuroraChance      float64 `yaml:"aurora_chance" toml:"aurora_chance"`
	AuroraMinX        float64 `yaml:"aurora_min_x" toml:"aurora_min_x"`
	AuroraLifetimeSec float64 `yaml:"aurora_lifetime_sec" toml:"aurora_lifetime_sec"`
}

type Collect struct {
	Radius      float64  `yaml:"radius" toml:"radius"`
	CooldownSec float64  `yaml:"cooldown_sec" toml:"cooldown_sec"`
	Score       int      `yaml:"score" toml:"score"`
	Items       []string `yaml:"items" toml:"items"`
}

type DayNight struct {
	TimeScale      float64 `yaml:"time_scale" toml:"time_scale"`
	NightThreshold float64 `yaml:"night_threshold" toml:"night_threshold"`
}

func Defaults() Tuning {
	g := gen.DefaultConfig(0, 50)
	return Tuning{
		ProtocolVersion: "1.0",
		World: World{
			Seed:               1337,
			ChunkSize:          50,
			ChunksVisible:      2,
			Metric:             "chebyshev",
			TickRateHz:         60,
			StreamEveryTicks:   1,
			SnapshotEveryTicks: 3600,
			Prefetch:           Prefetch{Enabled: true, Workers: 2, QueueLen: 256, Lookahead: 2},
		},
		Waves: noise.DefaultWaveParams(),
		Density: Density{
			IslandChance:    g.IslandChance,
			IslandRadiusMin: g.IslandRadiusMin,
			IslandRadiusMax: g.IslandRadiusMax,
			IslandHeightMin: g.IslandHeightMin,
			IslandHeightMax: g.IslandHeightMax,
			ReliefSegments:  g.ReliefSegments,
			ReliefAmp:       g.ReliefAmp,
			RocksMax:        g.RocksMax,
			TreesMin:        g.TreesMin,
			TreesMax:        g.TreesMax,
			PlantsMax:       g.PlantsMax,
			Materials:       g.Materials,
		},
		Vehicles: []VehicleTier{
			{Name: "board", Threshold: 0, Size: []float64{2, 0.2, 1}, Color: 0x8B4513, Speed: 0.1, WaveEffect: 1.0, SharkEffect: 1.0},
			{Name: "kayak", Threshold: 3, Size: []float64{3, 0.5, 1}, Color: 0x404040, Speed: 0.2, WaveEffect: 0.6, SharkEffect: 1.0},
			{Name: "boat", Threshold: 6, Size: []float64{4, 1, 2}, Color: 0x4682B4, Speed: 0.3, WaveEffect: 0.3, SharkEffect: 0.2},
		},
		Wildlife: Wildlife{
			SharkChance:        0.0008,
			SharkSpawnDistance: 25,
			SharkCircleRadius:  10,
			SharkJostleRadius:  5,
			SharkLifetimeSec:   30,
			AuroraChance:       0.001,
			AuroraMinX:         50,
			AuroraLifetimeSec:  30,
		},
		Collect: Collect{
			Radius:      3,
			CooldownSec: 5,
			Score:       100,
			Items:       []string{"shell", "wood", "bottle", "pearl", "net"},
		},
		DayNight: DayNight{TimeScale: 0.1, NightThreshold: 0.3},
	}
}

// Load reads tuning from path. The format follows the extension: .toml is
// parsed as TOML, anything else as YAML. Keys absent from the file keep
// their default values.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	name := filepath.Base(path)
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		tree, err := toml.LoadBytes(raw)
		if err != nil {
			return t, fmt.Errorf("%s: %w", name, err)
		}
		if err := tree.Unmarshal(&t); err != nil {
			return t, fmt.Errorf("%s: %w", name, err)
		}
	} else {
		dec := yaml.NewDecoder(bytes.NewReader(raw))
		dec.KnownFields(true)
		if err := dec.Decode(&t); err != nil {
			return t, fmt.Errorf("%s: %w", name, err)
		}
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("%s: %w", name, err)
	}
	return t, nil
}

// GenConfig translates the density section into generator settings.
func (t Tuning) GenConfig() gen.Config {
	d := t.Density
	return gen.Config{
		Seed:            t.World.Seed,
		ChunkSize:       t.World.ChunkSize,
		IslandChance:    d.IslandChance,
		IslandRadiusMin: d.IslandRadiusMin,
		IslandRadiusMax: d.IslandRadiusMax,
		IslandHeightMin: d.IslandHeightMin,
		IslandHeightMax: d.IslandHeightMax,
		ReliefSegments:  d.ReliefSegments,
		ReliefAmp:       d.ReliefAmp,
		RocksMax:        d.RocksMax,
		TreesMin:        d.TreesMin,
		TreesMax:        d.TreesMax,
		PlantsMax:       d.PlantsMax,
		Materials:       d.Materials,
	}
}

func (t Tuning) Validate() error {
	w := t.World
	if w.ChunkSize <= 0 || math.IsNaN(w.ChunkSize) || math.IsInf(w.ChunkSize, 0) {
		return fmt.Errorf("world.chunk_size must be positive, got %v", w.ChunkSize)
	}
	if w.ChunksVisible < 0 || w.ChunksVisible > 64 {
		return fmt.Errorf("world.chunks_visible must be in [0,64], got %d", w.ChunksVisible)
	}
	switch w.Metric {
	case "", "chebyshev", "manhattan":
	default:
		return fmt.Errorf("world.metric: unknown metric %q", w.Metric)
	}
	if w.TickRateHz <= 0 || w.TickRateHz > 1000 {
		return fmt.Errorf("world.tick_rate_hz must be in (0,1000], got %d", w.TickRateHz)
	}
	if w.StreamEveryTicks <= 0 {
		return fmt.Errorf("world.stream_every_ticks must be > 0, got %d", w.StreamEveryTicks)
	}
	if w.SnapshotEveryTicks < 0 {
		return fmt.Errorf("world.snapshot_every_ticks must be >= 0, got %d", w.SnapshotEveryTicks)
	}
	if w.Prefetch.Workers < 0 || w.Prefetch.QueueLen < 0 || w.Prefetch.Lookahead < 0 {
		return fmt.Errorf("world.prefetch: negative value")
	}
	if err := t.GenConfig().Validate(); err != nil {
		return fmt.Errorf("density: %w", err)
	}

	if len(t.Vehicles) == 0 {
		return fmt.Errorf("vehicles: at least one tier required")
	}
	if t.Vehicles[0].Threshold != 0 {
		return fmt.Errorf("vehicles: first tier must have threshold 0")
	}
	for i, v := range t.Vehicles {
		if strings.TrimSpace(v.Name) == "" {
			return fmt.Errorf("vehicles[%d]: missing name", i)
		}
		if len(v.Size) != 3 {
			return fmt.Errorf("vehicles[%d] %s: size must have 3 components", i, v.Name)
		}
		if v.Speed <= 0 {
			return fmt.Errorf("vehicles[%d] %s: speed must be > 0", i, v.Name)
		}
		if v.WaveEffect < 0 || v.SharkEffect < 0 {
			return fmt.Errorf("vehicles[%d] %s: negative effect", i, v.Name)
		}
		if i > 0 && v.Threshold <= t.Vehicles[i-1].Threshold {
			return fmt.Errorf("vehicles[%d] %s: thresholds must increase", i, v.Name)
		}
	}

	wl := t.Wildlife
	if !isProb(wl.SharkChance) || !isProb(wl.AuroraChance) {
		return fmt.Errorf("wildlife: spawn chances must be in [0,1]")
	}
	if wl.SharkLifetimeSec <= 0 || wl.AuroraLifetimeSec <= 0 {
		return fmt.Errorf("wildlife: lifetimes must be > 0")
	}
	if wl.SharkSpawnDistance < 0 || wl.SharkCircleRadius < 0 || wl.SharkJostleRadius < 0 {
		return fmt.Errorf("wildlife: negative distance")
	}

	c := t.Collect
	if c.Radius < 0 || c.CooldownSec < 0 {
		return fmt.Errorf("collect: radius and cooldown must be >= 0")
	}
	if len(c.Items) == 0 {
		return fmt.Errorf("collect.items: at least one item required")
	}
	if t.DayNight.TimeScale <= 0 || !isProb(t.DayNight.NightThreshold) {
		return fmt.Errorf("day_night: time_scale must be > 0 and night_threshold in [0,1]")
	}
	return nil
}

func isProb(p float64) bool { return p >= 0 && p <= 1 }
