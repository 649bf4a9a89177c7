package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"seadrift.ai/internal/persistence/snapshot"
)

func snapshotPath(worldDir string, tick uint64) string {
	return filepath.Join(worldDir, "snapshots", fmt.Sprintf("%d.snap.zst", tick))
}

func latestSnapshot(worldDir string) string {
	dir := filepath.Join(worldDir, "snapshots")
	ents, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var best string
	var bestTick uint64
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".snap.zst") {
			continue
		}
		base := strings.TrimSuffix(name, ".snap.zst")
		tick, err := strconv.ParseUint(base, 10, 64)
		if err != nil {
			continue
		}
		if best == "" || tick > bestTick {
			bestTick = tick
			best = filepath.Join(dir, name)
		}
	}
	return best
}

// persistSnapshot writes snap under worldDir and indexes it.
func persistSnapshot(worldDir string, snap snapshot.SnapshotV1, idx runtimeIndex) (string, error) {
	path := snapshotPath(worldDir, snap.Header.Tick)
	if err := snapshot.WriteSnapshot(path, snap); err != nil {
		return "", err
	}
	if idx != nil {
		idx.RecordSnapshot(path, snap)
	}
	return path, nil
}

// runSnapshotWriter drains periodic snapshots from the world loop until ctx
// is done.
func runSnapshotWriter(ctx context.Context, ch <-chan snapshot.SnapshotV1, worldDir string, idx runtimeIndex, logger *log.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case snap := <-ch:
			path, err := persistSnapshot(worldDir, snap, idx)
			if err != nil {
				logger.Printf("snapshot write: %v", err)
				continue
			}
			logger.Printf("snapshot tick=%d chunks=%d -> %s", snap.Header.Tick, len(snap.Chunks), filepath.Base(path))
		}
	}
}
