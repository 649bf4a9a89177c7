package store

import (
	"fmt"
	"sort"

	"github.com/go-gl/mathgl/mgl64"

	"seadrift.ai/internal/scene"
	"seadrift.ai/internal/sim/world/logic/mathx"
	"seadrift.ai/internal/sim/world/terrain/gen"
)

// Manager owns the resident chunk set around a moving viewpoint.
//
// A Manager is single-writer: Update, Restore and the query methods must be
// called from one goroutine (the world loop). The attached Prefetcher, if
// any, does its own locking.
type Manager struct {
	cfg  Config
	gen  Generator
	sink scene.Sink

	prefetch *Prefetcher

	chunks    map[ChunkKey]*gen.Chunk
	center    ChunkKey
	hasCenter bool

	stats Stats
}

func NewManager(cfg Config, g Generator, sink scene.Sink) (*Manager, error) {
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if g == nil {
		return nil, fmt.Errorf("chunk manager: nil generator")
	}
	if sink == nil {
		sink = scene.Discard
	}
	return &Manager{
		cfg:    cfg,
		gen:    g,
		sink:   sink,
		chunks: map[ChunkKey]*gen.Chunk{},
	}, nil
}

// AttachPrefetcher routes generation through p. Pass nil to detach.
func (m *Manager) AttachPrefetcher(p *Prefetcher) { m.prefetch = p }

func (m *Manager) Config() Config { return m.cfg }

// ChunkOf maps a world position onto its chunk coordinate.
func (m *Manager) ChunkOf(pos mgl64.Vec3) ChunkKey {
	return ChunkKey{
		CX: mathx.FloorDivF(pos.X(), m.cfg.ChunkSize),
		CZ: mathx.FloorDivF(pos.Z(), m.cfg.ChunkSize),
	}
}

func (m *Manager) Len() int { return len(m.chunks) }

func (m *Manager) Has(k ChunkKey) bool {
	_, ok := m.chunks[k]
	return ok
}

func (m *Manager) Get(k ChunkKey) (*gen.Chunk, bool) {
	ch, ok := m.chunks[k]
	return ch, ok
}

// Center returns the chunk the last Update was anchored on.
func (m *Manager) Center() (ChunkKey, bool) { return m.center, m.hasCenter }

func (m *Manager) Stats() Stats { return m.stats }

func (m *Manager) LoadedChunkKeys() []ChunkKey {
	keys := make([]ChunkKey, 0, len(m.chunks))
	for k := range m.chunks {
		keys = append(keys, k)
	}
	sortKeys(keys)
	return keys
}

// Each visits resident chunks in key order.
func (m *Manager) Each(fn func(k ChunkKey, ch *gen.Chunk) bool) {
	for _, k := range m.LoadedChunkKeys() {
		if !fn(k, m.chunks[k]) {
			return
		}
	}
}

// ChunkAt returns the resident chunk containing pos, if any.
func (m *Manager) ChunkAt(pos mgl64.Vec3) (*gen.Chunk, bool) {
	return m.Get(m.ChunkOf(pos))
}

func sortKeys(keys []ChunkKey) {
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].CX != keys[j].CX {
			return keys[i].CX < keys[j].CX
		}
		return keys[i].CZ < keys[j].CZ
	})
}

// ObjectFor is the render-graph node registered for a chunk.
func ObjectFor(ch *gen.Chunk) scene.Object {
	mat := ""
	if ch.Island != nil {
		mat = ch.Island.Material
	}
	return scene.Object{
		ID:       "chunk:" + ch.Key(),
		Kind:     scene.KindChunk,
		Pos:      ch.Origin,
		Material: mat,
		Payload:  ch,
	}
}
