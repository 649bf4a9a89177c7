package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	persistlog "seadrift.ai/internal/persistence/log"
	"seadrift.ai/internal/sim/world"
)

func listEventFiles(dir string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(ents))
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, "events-") && strings.HasSuffix(name, ".jsonl.zst") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	out := make([]string, 0, len(names))
	for _, name := range names {
		out = append(out, filepath.Join(dir, name))
	}
	return out, nil
}

// errStop ends a file scan once toTick has been reached.
var errStop = errors.New("stop")

// replayFiles re-simulates every logged tick at or after the world's
// current tick and checks the outcome matches the log. Ticks missing from
// the log were idle and are stepped with no input.
func replayFiles(w *world.World, files []string, toTick uint64) (uint64, error) {
	var checked uint64
	for _, path := range files {
		err := persistlog.ReadJSONL(path, func(entry world.TickLogEntry) error {
			if entry.Tick < w.State().Tick {
				return nil
			}
			if toTick != 0 && entry.Tick > toTick {
				return errStop
			}
			for w.State().Tick < entry.Tick {
				if got := w.Step(world.Input{}); !got.Idle() {
					return fmt.Errorf("tick %d: unlogged activity %s", got.Tick, mustJSON(got))
				}
			}
			got := w.Step(entry.Input)
			want, have := mustJSON(entry), mustJSON(got)
			if !bytes.Equal(want, have) {
				return fmt.Errorf("tick %d mismatch (file=%s):\n log=%s\n sim=%s", entry.Tick, filepath.Base(path), want, have)
			}
			checked++
			return nil
		})
		if err == errStop {
			break
		}
		if err != nil {
			return checked, err
		}
	}
	return checked, nil
}

func mustJSON(e world.TickLogEntry) []byte {
	b, _ := json.Marshal(e)
	return b
}
