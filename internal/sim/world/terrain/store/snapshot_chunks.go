package store

import (
	"fmt"

	snapv1 "seadrift.ai/internal/persistence/snapshot"
	"seadrift.ai/internal/sim/world/terrain/gen"
)

// ExportResident describes the resident set for a snapshot. Only keys and
// fingerprints are stored; content is regenerated on import.
func ExportResident(m *Manager) (snapv1.ChunkKeyV1, []snapv1.ChunkV1) {
	keys := m.LoadedChunkKeys()
	out := make([]snapv1.ChunkV1, 0, len(keys))
	for _, k := range keys {
		ch := m.chunks[k]
		out = append(out, snapv1.ChunkV1{
			CX:          k.CX,
			CZ:          k.CZ,
			Fingerprint: ch.Fingerprint(),
			HasIsland:   ch.HasIsland(),
			Plants:      len(ch.Plants),
		})
	}
	return snapv1.ChunkKeyV1{CX: m.center.CX, CZ: m.center.CZ}, out
}

// Restore replaces the resident set with the one recorded in a snapshot.
// Recorded chunks beyond Radius+1 of center are skipped; missing chunks
// within Radius are generated. A fingerprint mismatch means the seed or
// generator settings differ from the ones the snapshot was taken with.
func (m *Manager) Restore(center snapv1.ChunkKeyV1, chunks []snapv1.ChunkV1) error {
	c := ChunkKey{CX: center.CX, CZ: center.CZ}
	keep := m.cfg.Radius + 1

	restored := map[ChunkKey]*gen.Chunk{}
	for _, rec := range chunks {
		k := ChunkKey{CX: rec.CX, CZ: rec.CZ}
		if m.cfg.Metric.Distance(k, c) > keep {
			continue
		}
		if _, dup := restored[k]; dup {
			continue
		}
		ch := m.gen.Generate(k.CX, k.CZ)
		if rec.Fingerprint != 0 && ch.Fingerprint() != rec.Fingerprint {
			return fmt.Errorf("snapshot chunk %s fingerprint mismatch: got %x want %x", k, ch.Fingerprint(), rec.Fingerprint)
		}
		restored[k] = ch
	}

	for _, k := range m.LoadedChunkKeys() {
		m.evict(k)
	}
	keys := make([]ChunkKey, 0, len(restored))
	for k := range restored {
		keys = append(keys, k)
	}
	sortKeys(keys)
	for _, k := range keys {
		m.install(k, restored[k])
	}
	m.hasCenter = false
	m.updateCenter(c)
	return nil
}
