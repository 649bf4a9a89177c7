package log

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"seadrift.ai/internal/sim/world"
)

func TestTickLoggerRoundTrip(t *testing.T) {
	dir := t.TempDir()
	l := NewTickLogger(dir)
	clock := time.Date(2026, 3, 1, 10, 15, 0, 0, time.UTC)
	l.w.now = func() time.Time { return clock }

	in := []world.TickLogEntry{
		{Tick: 0, Center: [2]int{0, 0}, Created: []world.ChunkEvent{{CX: 0, CZ: 0, HasIsland: true, Plants: 4, Fingerprint: 99}}},
		{Tick: 7, Collects: []world.CollectEvent{{CX: 1, CZ: -1, Item: "pearl", Score: 100, Vehicle: "board"}}},
	}
	for _, e := range in {
		if err := l.WriteTick(e); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	path := filepath.Join(dir, "events", "events-2026-03-01-10.jsonl.zst")
	var got []world.TickLogEntry
	if err := ReadJSONL(path, func(e world.TickLogEntry) error {
		got = append(got, e)
		return nil
	}); err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 2 || got[0].Created[0].Fingerprint != 99 || got[1].Collects[0].Item != "pearl" {
		t.Fatalf("entries: %+v", got)
	}
}

func TestWriterRotatesHourly(t *testing.T) {
	dir := t.TempDir()
	w := NewJSONLZstdWriter(dir, "x")
	clock := time.Date(2026, 3, 1, 10, 59, 0, 0, time.UTC)
	w.now = func() time.Time { return clock }
	if err := w.Write(map[string]int{"a": 1}); err != nil {
		t.Fatal(err)
	}
	clock = clock.Add(2 * time.Minute)
	if err := w.Write(map[string]int{"a": 2}); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"x-2026-03-01-10.jsonl.zst", "x-2026-03-01-11.jsonl.zst"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatalf("missing %s: %v", name, err)
		}
	}
}

func TestSessionLogger(t *testing.T) {
	dir := t.TempDir()
	l := NewSessionLogger(dir)
	if err := l.WriteSession(SessionEntry{PeerID: "p1", Name: "ana", Event: "join"}); err != nil {
		t.Fatal(err)
	}
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}
	matches, _ := filepath.Glob(filepath.Join(dir, "sessions", "sessions-*.jsonl.zst"))
	if len(matches) != 1 {
		t.Fatalf("session files: %v", matches)
	}
	var n int
	_ = ReadJSONL(matches[0], func(e SessionEntry) error {
		if e.PeerID != "p1" || e.Event != "join" {
			t.Fatalf("entry: %+v", e)
		}
		n++
		return nil
	})
	if n != 1 {
		t.Fatalf("read %d entries", n)
	}
}

type failingLogger struct{ calls int }

func (f *failingLogger) WriteTick(world.TickLogEntry) error {
	f.calls++
	return errors.New("disk full")
}

func TestTeeTriesEveryLogger(t *testing.T) {
	a, b := &failingLogger{}, &failingLogger{}
	tee := TeeTickLogger{a, nil, b}
	if err := tee.WriteTick(world.TickLogEntry{Tick: 1}); err == nil {
		t.Fatalf("expected error")
	}
	if a.calls != 1 || b.calls != 1 {
		t.Fatalf("calls: %d %d", a.calls, b.calls)
	}
}

func TestSessionLoggerRecordSessionStampsTime(t *testing.T) {
	dir := t.TempDir()
	l := NewSessionLogger(dir)
	clock := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	l.w.now = func() time.Time { return clock }
	l.RecordSession("p9", "bo", "leave", "closed")
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "sessions", "sessions-2026-03-02-08.jsonl.zst")
	var got SessionEntry
	if err := ReadJSONL(path, func(e SessionEntry) error { got = e; return nil }); err != nil {
		t.Fatalf("read: %v", err)
	}
	if !got.Time.Equal(clock) || got.Reason != "closed" || got.Name != "bo" {
		t.Fatalf("entry: %+v", got)
	}
}
