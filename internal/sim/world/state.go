package world

import (
	"github.com/go-gl/mathgl/mgl64"

	"seadrift.ai/internal/sim/world/terrain/store"
)

// Input is the held-key state for one tick. It stays in effect until the
// next Input arrives.
type Input struct {
	Forward bool `json:"forward"`
	Back    bool `json:"back"`
	Left    bool `json:"left"`
	Right   bool `json:"right"`
}

type Player struct {
	Pos mgl64.Vec3
	// Rot is (pitch, yaw, roll) in radians.
	Rot mgl64.Vec3

	Tier         int
	Collectibles int
	Score        int
	Items        map[string]int
}

type Camera struct {
	Pos    mgl64.Vec3
	Target mgl64.Vec3
}

// Entity is a short-lived scene object. The driver removes it on the first
// tick at or after ExpiresTick.
type Entity struct {
	ID   string
	Kind string
	// Anchor is the circle center for sharks and the spawn point for auroras.
	Anchor mgl64.Vec3
	Pos    mgl64.Vec3
	Yaw    float64

	SpawnTick   uint64
	ExpiresTick uint64
}

func (e *Entity) expired(now uint64) bool { return now >= e.ExpiresTick }

// WorldState is everything the simulation mutates, owned by the world
// goroutine. Shark and Aurora are named slots; at most one of each exists.
type WorldState struct {
	Tick   uint64
	Player Player
	Camera Camera
	Sky    Sky

	Shark  *Entity
	Aurora *Entity

	// Tick of the last collect per island chunk.
	Cooldowns map[store.ChunkKey]uint64

	nextEntityNum uint64
}

func newState() WorldState {
	return WorldState{
		Player: Player{
			Pos:   mgl64.Vec3{0, 0.5, 0},
			Items: map[string]int{},
		},
		Cooldowns: map[store.ChunkKey]uint64{},
	}
}

type ChunkEvent struct {
	CX          int    `json:"cx"`
	CZ          int    `json:"cz"`
	HasIsland   bool   `json:"has_island,omitempty"`
	Plants      int    `json:"plants,omitempty"`
	Fingerprint uint64 `json:"fingerprint,omitempty"`
}

type CollectEvent struct {
	CX      int    `json:"cx"`
	CZ      int    `json:"cz"`
	Item    string `json:"item"`
	Score   int    `json:"score"`
	Vehicle string `json:"vehicle"`
}

type EntityEvent struct {
	ID   string     `json:"id"`
	Kind string     `json:"kind"`
	Pos  [3]float64 `json:"pos"`
}

// TickLogEntry is the per-tick history record. Idle ticks (no keys held and
// nothing happened) are not logged, so a log replays from the snapshot it
// follows by stepping missing ticks with no input.
type TickLogEntry struct {
	Tick     uint64         `json:"tick"`
	Input    Input          `json:"input"`
	Center   [2]int         `json:"center"`
	Created  []ChunkEvent   `json:"created,omitempty"`
	Evicted  []ChunkEvent   `json:"evicted,omitempty"`
	Collects []CollectEvent `json:"collects,omitempty"`
	Spawns   []EntityEvent  `json:"spawns,omitempty"`
	Expired  []string       `json:"expired,omitempty"`
	Upgraded string         `json:"upgraded,omitempty"`
}

// Idle reports whether the tick would not be logged.
func (e TickLogEntry) Idle() bool {
	return e.Input == (Input{}) && len(e.Created) == 0 && len(e.Evicted) == 0 && len(e.Collects) == 0 &&
		len(e.Spawns) == 0 && len(e.Expired) == 0 && e.Upgraded == ""
}

type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

// View is the read-only per-tick summary handed to observers.
type View struct {
	Tick         uint64     `json:"tick"`
	Player       [3]float64 `json:"player"`
	Rotation     [3]float64 `json:"rotation"`
	Score        int        `json:"score"`
	Collectibles int        `json:"collectibles"`
	Vehicle      string     `json:"vehicle"`
	IsNight      bool       `json:"is_night"`
	Intensity    float64    `json:"intensity"`
	Shark        bool       `json:"shark"`
	Aurora       bool       `json:"aurora"`
	Center       [2]int     `json:"center"`
	Loaded       int        `json:"loaded"`
}

// Observer receives a View after every tick, on the world goroutine. It
// must not block.
type Observer interface {
	ObserveTick(v View)
}
