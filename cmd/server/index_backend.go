package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"seadrift.ai/internal/persistence/indexdb"
	"seadrift.ai/internal/persistence/snapshot"
	"seadrift.ai/internal/sim/tuning"
	"seadrift.ai/internal/sim/world"
)

type runtimeIndex interface {
	world.TickLogger
	Close() error
	UpsertTuning(tune tuning.Tuning) (string, error)
	RecordSnapshot(path string, snap snapshot.SnapshotV1)
	RecordSession(peerID, name, event, reason string)
	ChunkHistory(ctx context.Context, cx, cz int) ([]indexdb.ChunkEventRow, error)
	Stats() indexdb.Stats
}

// openRuntimeIndex returns nil (and no error) when indexing is disabled.
func openRuntimeIndex(worldDir string, disableDB bool) (runtimeIndex, error) {
	if disableDB {
		return nil, nil
	}

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("SD_INDEX_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite":
		idx, err := indexdb.OpenSQLite(filepath.Join(worldDir, "index", "world.sqlite"))
		if err != nil {
			return nil, err
		}
		return idx, nil
	default:
		return nil, fmt.Errorf("unsupported SD_INDEX_BACKEND: %s", backend)
	}
}
