// Command inspect looks at ocean data offline: a generated chunk, a
// snapshot file, or a chunk's history in the SQLite index.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"seadrift.ai/internal/persistence/indexdb"
	"seadrift.ai/internal/persistence/snapshot"
	"seadrift.ai/internal/sim/tuning"
	"seadrift.ai/internal/sim/world/terrain/gen"
)

func main() {
	var (
		tuningPath = flag.String("tuning", "", "tuning file (default: built-in defaults)")
		seed       = flag.String("seed", "", "world seed (default: from tuning)")
		cx         = flag.Int("cx", 0, "chunk x")
		cz         = flag.Int("cz", 0, "chunk z")
		snapPath   = flag.String("snapshot", "", "summarise a .snap.zst instead of generating")
		dbPath     = flag.String("db", "", "print chunk (cx,cz) history from an index db instead of generating")
	)
	flag.Parse()

	var err error
	switch {
	case *snapPath != "":
		err = inspectSnapshot(os.Stdout, *snapPath)
	case *dbPath != "":
		err = inspectHistory(os.Stdout, *dbPath, *cx, *cz)
	default:
		tune := tuning.Defaults()
		if *tuningPath != "" {
			if tune, err = tuning.Load(*tuningPath); err != nil {
				break
			}
		}
		if *seed != "" {
			s, perr := strconv.ParseInt(*seed, 10, 64)
			if perr != nil {
				err = fmt.Errorf("bad -seed: %w", perr)
				break
			}
			tune.World.Seed = s
		}
		err = inspectChunk(os.Stdout, tune, *cx, *cz)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "inspect:", err)
		os.Exit(1)
	}
}

type chunkReport struct {
	Seed        int64      `json:"seed"`
	Key         string     `json:"key"`
	Fingerprint string     `json:"fingerprint"`
	HasIsland   bool       `json:"has_island"`
	Plants      int        `json:"plants"`
	Chunk       *gen.Chunk `json:"chunk"`
}

func inspectChunk(out io.Writer, tune tuning.Tuning, cx, cz int) error {
	g, err := gen.New(tune.GenConfig())
	if err != nil {
		return err
	}
	ch := g.Generate(cx, cz)
	rep := chunkReport{
		Seed:        tune.World.Seed,
		Key:         ch.Key(),
		Fingerprint: strconv.FormatUint(ch.Fingerprint(), 16),
		HasIsland:   ch.HasIsland(),
		Plants:      len(ch.Plants),
		Chunk:       ch,
	}
	return writeJSON(out, rep)
}

type snapshotReport struct {
	Header    snapshot.Header   `json:"header"`
	Seed      int64             `json:"seed"`
	ChunkSize float64           `json:"chunk_size"`
	Radius    int               `json:"radius"`
	Metric    string            `json:"metric"`
	Center    [2]int            `json:"center"`
	Chunks    int               `json:"chunks"`
	Islands   int               `json:"islands"`
	Plants    int               `json:"plants"`
	Player    snapshot.PlayerV1 `json:"player"`
	Entities  []string          `json:"entities,omitempty"`
	Cooldowns int               `json:"cooldowns"`
}

func inspectSnapshot(out io.Writer, path string) error {
	snap, err := snapshot.ReadSnapshot(path)
	if err != nil {
		return err
	}
	rep := snapshotReport{
		Header:    snap.Header,
		Seed:      snap.Seed,
		ChunkSize: snap.ChunkSize,
		Radius:    snap.Radius,
		Metric:    snap.Metric,
		Center:    [2]int{snap.Center.CX, snap.Center.CZ},
		Chunks:    len(snap.Chunks),
		Player:    snap.Player,
		Cooldowns: len(snap.Cooldowns),
	}
	for _, c := range snap.Chunks {
		if c.HasIsland {
			rep.Islands++
		}
		rep.Plants += c.Plants
	}
	for _, e := range snap.Entities {
		rep.Entities = append(rep.Entities, e.ID)
	}
	return writeJSON(out, rep)
}

func inspectHistory(out io.Writer, dbPath string, cx, cz int) error {
	if _, err := os.Stat(dbPath); err != nil {
		return err
	}
	idx, err := indexdb.OpenSQLite(dbPath)
	if err != nil {
		return err
	}
	defer idx.Close()
	rows, err := idx.ChunkHistory(context.Background(), cx, cz)
	if err != nil {
		return err
	}
	for _, r := range rows {
		fmt.Fprintf(out, "tick=%d op=%s island=%v plants=%d fingerprint=%x\n", r.Tick, r.Op, r.HasIsland, r.Plants, r.Fingerprint)
	}
	return nil
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
