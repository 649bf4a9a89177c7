package store

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	snapv1 "seadrift.ai/internal/persistence/snapshot"
	"seadrift.ai/internal/scene"
)

func TestExportAndRestoreRoundTrip(t *testing.T) {
	m := newTestManager(t, 42, 50, 2, nil)
	m.Update(mgl64.Vec3{0, 0, 0})
	m.Update(mgl64.Vec3{50, 0, 0})
	center, chunks := ExportResident(m)
	if center != (snapv1.ChunkKeyV1{CX: 1, CZ: 0}) {
		t.Fatalf("center: %+v", center)
	}
	if len(chunks) != m.Len() {
		t.Fatalf("exported %d chunks, resident %d", len(chunks), m.Len())
	}

	var rec scene.Recorder
	m2 := newTestManager(t, 42, 50, 2, &rec)
	if err := m2.Restore(center, chunks); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if got, want := keysOf(m2), keysOf(m); !equalKeys(got, want) {
		t.Fatalf("restored set differs:\n got %v\nwant %v", got, want)
	}
	// Retained hysteresis chunks come back too.
	if !m2.Has(ChunkKey{CX: -2, CZ: 0}) {
		t.Fatalf("expected retained chunk (-2,0) after restore")
	}
	if len(rec.Live()) != m2.Len() {
		t.Fatalf("scene has %d objects, manager %d", len(rec.Live()), m2.Len())
	}
	// Restore leaves the manager anchored: same-center Update is a no-op.
	if res := m2.Update(mgl64.Vec3{60, 0, 10}); res.Changed() {
		t.Fatalf("update after restore changed set: %+v", res)
	}
}

func TestRestoreRejectsFingerprintMismatch(t *testing.T) {
	m := newTestManager(t, 42, 50, 1, nil)
	m.Update(mgl64.Vec3{0, 0, 0})
	center, chunks := ExportResident(m)

	other := newTestManager(t, 43, 50, 1, nil)
	if err := other.Restore(center, chunks); err == nil {
		t.Fatalf("expected fingerprint mismatch for a different seed")
	}
	if other.Len() != 0 {
		t.Fatalf("failed restore must not touch the resident set, got %d", other.Len())
	}
}

func TestRestoreSkipsFarChunks(t *testing.T) {
	m := newTestManager(t, 42, 50, 1, nil)
	far := []snapv1.ChunkV1{{CX: 10, CZ: 10}}
	if err := m.Restore(snapv1.ChunkKeyV1{}, far); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if m.Has(ChunkKey{CX: 10, CZ: 10}) {
		t.Fatalf("far chunk should be skipped")
	}
	if m.Len() != 9 {
		t.Fatalf("expected 9 chunks around origin, got %d", m.Len())
	}
}
