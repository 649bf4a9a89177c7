package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"seadrift.ai/internal/persistence/indexdb"
	"seadrift.ai/internal/persistence/snapshot"
	"seadrift.ai/internal/sim/tuning"
	"seadrift.ai/internal/sim/world"
	"seadrift.ai/internal/sim/world/terrain/gen"
)

func TestInspectChunkIsDeterministic(t *testing.T) {
	tune := tuning.Defaults()
	tune.World.Seed = 1234

	var a, b bytes.Buffer
	if err := inspectChunk(&a, tune, 3, -2); err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if err := inspectChunk(&b, tune, 3, -2); err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if a.String() != b.String() {
		t.Fatalf("output differs between runs")
	}

	var rep chunkReport
	if err := json.Unmarshal(a.Bytes(), &rep); err != nil {
		t.Fatalf("decode: %v", err)
	}
	g, err := gen.New(tune.GenConfig())
	if err != nil {
		t.Fatal(err)
	}
	ch := g.Generate(3, -2)
	if rep.Key != "3,-2" || rep.Seed != 1234 || rep.HasIsland != ch.HasIsland() || rep.Plants != len(ch.Plants) {
		t.Fatalf("report: %+v", rep)
	}
	if rep.Fingerprint != strconv.FormatUint(ch.Fingerprint(), 16) {
		t.Fatalf("fingerprint=%s", rep.Fingerprint)
	}
}

func TestInspectSnapshotSummary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "7.snap.zst")
	snap := snapshot.SnapshotV1{
		Header:    snapshot.Header{Version: snapshot.Version, WorldID: "ocean_1", Tick: 7},
		Seed:      5,
		ChunkSize: 50,
		Radius:    1,
		Metric:    "chebyshev",
		Center:    snapshot.ChunkKeyV1{CX: 1, CZ: 0},
		Chunks: []snapshot.ChunkV1{
			{CX: 0, CZ: 0, HasIsland: true, Plants: 3},
			{CX: 1, CZ: 0, Plants: 2},
		},
		Player:   snapshot.PlayerV1{Score: 40, Vehicle: "board"},
		Entities: []snapshot.EntityV1{{ID: "shark:1", Kind: "shark"}},
	}
	if err := snapshot.WriteSnapshot(path, snap); err != nil {
		t.Fatalf("write: %v", err)
	}
	var out bytes.Buffer
	if err := inspectSnapshot(&out, path); err != nil {
		t.Fatalf("inspect: %v", err)
	}
	var rep snapshotReport
	if err := json.Unmarshal(out.Bytes(), &rep); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rep.Header.Tick != 7 || rep.Chunks != 2 || rep.Islands != 1 || rep.Plants != 5 {
		t.Fatalf("report: %+v", rep)
	}
	if rep.Center != [2]int{1, 0} || rep.Player.Score != 40 || len(rep.Entities) != 1 {
		t.Fatalf("report: %+v", rep)
	}
}

func TestInspectHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.sqlite")
	idx, err := indexdb.OpenSQLite(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	_ = idx.WriteTick(world.TickLogEntry{Tick: 4, Created: []world.ChunkEvent{{CX: 2, CZ: 2, HasIsland: true, Plants: 1, Fingerprint: 0xabc}}})
	_ = idx.WriteTick(world.TickLogEntry{Tick: 9, Evicted: []world.ChunkEvent{{CX: 2, CZ: 2, HasIsland: true, Plants: 1, Fingerprint: 0xabc}}})
	if err := idx.Sync(context.Background()); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	var out bytes.Buffer
	if err := inspectHistory(&out, path, 2, 2); err != nil {
		t.Fatalf("history: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 || !strings.Contains(lines[0], "tick=4 op=create") || !strings.Contains(lines[1], "tick=9 op=evict") {
		t.Fatalf("history:\n%s", out.String())
	}
	if !strings.Contains(lines[0], "fingerprint=abc") {
		t.Fatalf("line: %s", lines[0])
	}
}

func TestInspectHistoryMissingDB(t *testing.T) {
	if err := inspectHistory(&bytes.Buffer{}, filepath.Join(t.TempDir(), "nope.sqlite"), 0, 0); err == nil {
		t.Fatalf("expected error for missing db")
	}
}
