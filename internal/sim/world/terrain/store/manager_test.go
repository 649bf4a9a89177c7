package store

import (
	"context"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"seadrift.ai/internal/scene"
	"seadrift.ai/internal/sim/world/terrain/gen"
)

func newTestManager(t *testing.T, seed int64, size float64, radius int, sink scene.Sink) *Manager {
	t.Helper()
	g, err := gen.New(gen.DefaultConfig(seed, size))
	if err != nil {
		t.Fatalf("gen: %v", err)
	}
	m, err := NewManager(Config{ChunkSize: size, Radius: radius}, g, sink)
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	return m
}

func keysOf(m *Manager) []ChunkKey { return m.LoadedChunkKeys() }

func equalKeys(a, b []ChunkKey) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestInitialUpdateLoadsSquare(t *testing.T) {
	var rec scene.Recorder
	m := newTestManager(t, 42, 50, 2, &rec)
	res := m.Update(mgl64.Vec3{0, 0, 0})

	if res.Center != (ChunkKey{}) {
		t.Fatalf("center: %+v", res.Center)
	}
	if m.Len() != 25 || len(res.Created) != 25 || len(res.Evicted) != 0 {
		t.Fatalf("expected 25 created, got len=%d created=%d evicted=%d", m.Len(), len(res.Created), len(res.Evicted))
	}
	for cx := -2; cx <= 2; cx++ {
		for cz := -2; cz <= 2; cz++ {
			if !m.Has(ChunkKey{CX: cx, CZ: cz}) {
				t.Fatalf("missing chunk (%d,%d)", cx, cz)
			}
		}
	}
	if res.Created[0] != (ChunkKey{}) {
		t.Fatalf("nearest chunk should be created first, got %v", res.Created[0])
	}
	if len(rec.Live()) != 25 {
		t.Fatalf("scene objects: %d", len(rec.Live()))
	}
}

func TestStepEastKeepsHysteresisColumn(t *testing.T) {
	m := newTestManager(t, 42, 50, 2, nil)
	m.Update(mgl64.Vec3{0, 0, 0})
	res := m.Update(mgl64.Vec3{50, 0, 0})

	if res.Center != (ChunkKey{CX: 1, CZ: 0}) {
		t.Fatalf("center: %+v", res.Center)
	}
	if len(res.Created) != 5 {
		t.Fatalf("expected 5 new chunks (cx=3), got %v", res.Created)
	}
	for _, k := range res.Created {
		if k.CX != 3 {
			t.Fatalf("unexpected created chunk %v", k)
		}
	}
	if len(res.Evicted) != 0 {
		t.Fatalf("cx=-2 is at distance 3 == radius+1 and must be retained, evicted %v", res.Evicted)
	}
	for cx := -1; cx <= 3; cx++ {
		for cz := -2; cz <= 2; cz++ {
			if !m.Has(ChunkKey{CX: cx, CZ: cz}) {
				t.Fatalf("missing chunk (%d,%d)", cx, cz)
			}
		}
	}
	for cz := -2; cz <= 2; cz++ {
		if !m.Has(ChunkKey{CX: -2, CZ: cz}) {
			t.Fatalf("boundary chunk (-2,%d) evicted early", cz)
		}
	}

	// One more step east pushes cx=-2 to distance 4.
	res = m.Update(mgl64.Vec3{100, 0, 0})
	if len(res.Evicted) != 5 {
		t.Fatalf("expected column cx=-2 evicted, got %v", res.Evicted)
	}
	for _, k := range res.Evicted {
		if k.CX != -2 {
			t.Fatalf("unexpected eviction %v", k)
		}
	}
}

func TestUpdateIdempotent(t *testing.T) {
	var rec scene.Recorder
	m := newTestManager(t, 42, 50, 2, &rec)
	m.Update(mgl64.Vec3{10, 0, 10})
	before := len(rec.Ops())
	res := m.Update(mgl64.Vec3{40, 3, 49})
	if res.Changed() {
		t.Fatalf("second update in same chunk changed the set: %+v", res)
	}
	if len(rec.Ops()) != before {
		t.Fatalf("second update emitted scene ops")
	}
}

func TestOscillationNeverCreatesAndDestroysInSameTick(t *testing.T) {
	m := newTestManager(t, 9, 50, 2, nil)
	positions := []mgl64.Vec3{{49, 0, 0}, {51, 0, 0}, {1, 0, 0}, {99, 0, 0}, {-1, 0, 0}, {0, 0, -1}}
	for round := 0; round < 20; round++ {
		for _, p := range positions {
			res := m.Update(p)
			created := map[ChunkKey]bool{}
			for _, k := range res.Created {
				created[k] = true
			}
			for _, k := range res.Evicted {
				if created[k] {
					t.Fatalf("chunk %v created and evicted in one update", k)
				}
			}
		}
	}
}

func TestResidencyInvariantsRandomWalk(t *testing.T) {
	var rec scene.Recorder
	const radius = 2
	m := newTestManager(t, 1234, 32, radius, &rec)
	pos := mgl64.Vec3{}
	steps := []mgl64.Vec3{{7, 0, 0}, {0, 0, 13}, {-21, 0, 0}, {0, 0, -5}, {40, 0, 40}, {-90, 0, 3}}
	for i := 0; i < 300; i++ {
		pos = pos.Add(steps[i%len(steps)])
		m.Update(pos)

		center := m.ChunkOf(pos)
		seen := map[ChunkKey]bool{}
		for _, k := range m.LoadedChunkKeys() {
			if seen[k] {
				t.Fatalf("duplicate key %v", k)
			}
			seen[k] = true
			if d := Chebyshev.Distance(k, center); d > radius+1 {
				t.Fatalf("step %d: chunk %v at distance %d > radius+1", i, k, d)
			}
		}
		for _, k := range Wanted(center, radius, Chebyshev) {
			if !seen[k] {
				t.Fatalf("step %d: chunk %v within radius is missing", i, k)
			}
		}
		if len(rec.Live()) != m.Len() {
			t.Fatalf("step %d: scene has %d, manager %d", i, len(rec.Live()), m.Len())
		}
	}
	st := m.Stats()
	if st.Created-st.Evicted != uint64(m.Len()) {
		t.Fatalf("stats drift: created=%d evicted=%d len=%d", st.Created, st.Evicted, m.Len())
	}
}

func TestManhattanMetric(t *testing.T) {
	g, _ := gen.New(gen.DefaultConfig(1, 10))
	m, err := NewManager(Config{ChunkSize: 10, Radius: 2, Metric: Manhattan}, g, nil)
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	m.Update(mgl64.Vec3{5, 0, 5})
	if m.Len() != 13 {
		t.Fatalf("manhattan radius 2 should load 13 chunks, got %d", m.Len())
	}
	if m.Has(ChunkKey{CX: 2, CZ: 2}) {
		t.Fatalf("corner (2,2) is outside the diamond")
	}
}

func TestRadiusZero(t *testing.T) {
	m := newTestManager(t, 5, 50, 0, nil)
	m.Update(mgl64.Vec3{-1, 0, -1})
	if m.Len() != 1 || !m.Has(ChunkKey{CX: -1, CZ: -1}) {
		t.Fatalf("expected only chunk (-1,-1), got %v", m.LoadedChunkKeys())
	}
}

func TestNewManagerRejectsBadConfig(t *testing.T) {
	g, _ := gen.New(gen.DefaultConfig(1, 50))
	bad := []Config{
		{ChunkSize: 0, Radius: 2},
		{ChunkSize: -3, Radius: 2},
		{ChunkSize: 50, Radius: -1},
		{ChunkSize: 50, Radius: MaxRadius + 1},
		{ChunkSize: 50, Radius: 2, Metric: "euclid"},
	}
	for _, cfg := range bad {
		if _, err := NewManager(cfg, g, nil); err == nil {
			t.Fatalf("expected error for %+v", cfg)
		}
	}
	if _, err := NewManager(Config{ChunkSize: 50, Radius: 2}, nil, nil); err == nil {
		t.Fatalf("expected error for nil generator")
	}
}

func TestDropMissingIsNoop(t *testing.T) {
	m := newTestManager(t, 5, 50, 1, nil)
	if m.drop(ChunkKey{CX: 99, CZ: 99}) {
		t.Fatalf("evicting an absent key reported success")
	}
	m.Update(mgl64.Vec3{})
	if !m.drop(ChunkKey{}) {
		t.Fatalf("evict resident key failed")
	}
	res := m.Update(mgl64.Vec3{})
	if len(res.Created) != 1 || res.Created[0] != (ChunkKey{}) {
		t.Fatalf("evicted in-radius chunk should be recreated, got %+v", res)
	}
}

func TestResidentContentIsDeterministic(t *testing.T) {
	a := newTestManager(t, 7, 50, 1, nil)
	b := newTestManager(t, 7, 50, 1, nil)
	a.Update(mgl64.Vec3{150, 0, -50})
	b.Update(mgl64.Vec3{150, 0, -50})
	a.Each(func(k ChunkKey, ch *gen.Chunk) bool {
		other, ok := b.Get(k)
		if !ok {
			t.Fatalf("missing %v", k)
		}
		if ch.Fingerprint() != other.Fingerprint() {
			t.Fatalf("chunk %v differs", k)
		}
		return true
	})
	ch, ok := a.Get(ChunkKey{CX: 3, CZ: -1})
	if !ok {
		t.Fatalf("chunk (3,-1) should be resident")
	}
	if ch.Key() != "3,-1" {
		t.Fatalf("key tag: %s", ch.Key())
	}
}

func TestParseChunkKey(t *testing.T) {
	k, err := ParseChunkKey("3,-1")
	if err != nil || k != (ChunkKey{CX: 3, CZ: -1}) {
		t.Fatalf("parse: %v %v", k, err)
	}
	if k.String() != "3,-1" {
		t.Fatalf("string: %s", k.String())
	}
	for _, bad := range []string{"", "3", "a,b", "1,2,3"} {
		if _, err := ParseChunkKey(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestPrefetcherFeedsManager(t *testing.T) {
	g, _ := gen.New(gen.DefaultConfig(11, 50))
	m, err := NewManager(Config{ChunkSize: 50, Radius: 1, Lookahead: 2}, g, nil)
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	p := NewPrefetcher(context.Background(), g, PrefetchConfig{Workers: 2, QueueLen: 64})
	defer p.Close()
	m.AttachPrefetcher(p)

	m.Update(mgl64.Vec3{})
	// Ring of radius 3 minus resident 3x3 = 40 chunks requested.
	deadline := time.Now().Add(5 * time.Second)
	for p.Ready() < 40 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if p.Ready() == 0 {
		t.Fatalf("prefetcher produced nothing")
	}

	res := m.Update(mgl64.Vec3{50, 0, 0})
	if len(res.Created) != 3 {
		t.Fatalf("expected 3 created, got %v", res.Created)
	}
	if m.Stats().PrefetchHits == 0 {
		t.Fatalf("expected prefetched chunks to be used")
	}
	// Prefetched content equals inline content.
	for _, k := range res.Created {
		ch, _ := m.Get(k)
		if ch.Fingerprint() != g.Generate(k.CX, k.CZ).Fingerprint() {
			t.Fatalf("prefetched chunk %v differs from inline generation", k)
		}
	}
}

func TestWantedOrdering(t *testing.T) {
	w := Wanted(ChunkKey{CX: 5, CZ: 5}, 1, Chebyshev)
	if len(w) != 9 || w[0] != (ChunkKey{CX: 5, CZ: 5}) {
		t.Fatalf("wanted: %v", w)
	}
	if Wanted(ChunkKey{}, -1, Chebyshev) != nil {
		t.Fatalf("negative radius should yield nil")
	}
}
