package store

import (
	"sort"

	"github.com/go-gl/mathgl/mgl64"

	"seadrift.ai/internal/sim/world/terrain/gen"
)

// Update streams chunks around pos: every coordinate within Radius of the
// viewpoint chunk is made resident, then every resident chunk farther than
// Radius+1 is evicted. Creation runs before eviction, and the one-chunk
// margin means nothing is destroyed in the tick it is needed.
//
// Calling Update again while the viewpoint stays in the same chunk does no
// work.
func (m *Manager) Update(pos mgl64.Vec3) UpdateResult {
	return m.updateCenter(m.ChunkOf(pos))
}

func (m *Manager) updateCenter(center ChunkKey) UpdateResult {
	res := UpdateResult{Center: center}
	if m.hasCenter && center == m.center {
		return res
	}
	m.center = center
	m.hasCenter = true
	m.stats.Updates++

	for _, k := range Wanted(center, m.cfg.Radius, m.cfg.Metric) {
		if _, ok := m.chunks[k]; ok {
			continue
		}
		m.materialize(k)
		res.Created = append(res.Created, k)
	}

	keep := m.cfg.Radius + 1
	for _, k := range m.LoadedChunkKeys() {
		if m.cfg.Metric.Distance(k, center) > keep {
			m.evict(k)
			res.Evicted = append(res.Evicted, k)
		}
	}

	if m.prefetch != nil {
		m.prefetch.Retain(center, m.cfg.Radius+m.cfg.Lookahead, m.cfg.Metric)
		var ahead []ChunkKey
		for _, k := range Wanted(center, m.cfg.Radius+m.cfg.Lookahead, m.cfg.Metric) {
			if _, ok := m.chunks[k]; !ok {
				ahead = append(ahead, k)
			}
		}
		m.prefetch.Request(ahead)
	}
	return res
}

func (m *Manager) materialize(k ChunkKey) {
	if m.prefetch != nil {
		if ch, ok := m.prefetch.Take(k); ok {
			m.stats.PrefetchHits++
			m.install(k, ch)
			return
		}
	}
	m.install(k, m.gen.Generate(k.CX, k.CZ))
}

func (m *Manager) install(k ChunkKey, ch *gen.Chunk) {
	m.chunks[k] = ch
	m.stats.Created++
	m.sink.Add(ObjectFor(ch))
}

// evict drops k. Evicting an absent key is a no-op.
func (m *Manager) evict(k ChunkKey) {
	ch, ok := m.chunks[k]
	if !ok {
		return
	}
	delete(m.chunks, k)
	m.stats.Evicted++
	m.sink.Remove(ObjectFor(ch))
}

// drop removes a single chunk outside the normal streaming cycle. The next
// Update recreates it if it is still within Radius.
func (m *Manager) drop(k ChunkKey) bool {
	if !m.Has(k) {
		return false
	}
	m.evict(k)
	m.hasCenter = false
	return true
}

// Wanted lists every coordinate within radius of center under metric,
// nearest first, ties broken by (CX, CZ).
func Wanted(center ChunkKey, radius int, metric Metric) []ChunkKey {
	if radius < 0 {
		return nil
	}
	type item struct {
		k    ChunkKey
		dist int
	}
	items := make([]item, 0, (2*radius+1)*(2*radius+1))
	for dz := -radius; dz <= radius; dz++ {
		for dx := -radius; dx <= radius; dx++ {
			k := ChunkKey{CX: center.CX + dx, CZ: center.CZ + dz}
			d := metric.Distance(k, center)
			if d > radius {
				continue
			}
			items = append(items, item{k: k, dist: d})
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].dist != items[j].dist {
			return items[i].dist < items[j].dist
		}
		if items[i].k.CX != items[j].k.CX {
			return items[i].k.CX < items[j].k.CX
		}
		return items[i].k.CZ < items[j].k.CZ
	})
	out := make([]ChunkKey, 0, len(items))
	for _, it := range items {
		out = append(out, it.k)
	}
	return out
}
