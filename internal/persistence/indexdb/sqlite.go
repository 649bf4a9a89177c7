package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"seadrift.ai/internal/persistence/snapshot"
	"seadrift.ai/internal/sim/tuning"
	"seadrift.ai/internal/sim/world"
)

// SQLiteIndex is a queryable secondary index of the tick log. Writes are
// queued and applied by a single goroutine in batched transactions; the
// JSONL logs remain the source of truth.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropTick     atomic.Uint64
	dropSnapshot atomic.Uint64
	dropSession  atomic.Uint64
}

type reqKind int

const (
	reqTick reqKind = iota + 1
	reqSnapshot
	reqSession
	reqSync
)

type req struct {
	kind reqKind

	tick     world.TickLogEntry
	snapshot snapshotRow
	session  sessionRow
	done     chan struct{}
}

type snapshotRow struct {
	Tick         uint64
	Path         string
	Seed         int64
	ChunkSize    float64
	Radius       int
	Chunks       int
	Score        int
	Collectibles int
	Vehicle      string
}

type sessionRow struct {
	Time   string
	PeerID string
	Name   string
	Event  string
	Reason string
}

// Stats reports queue pressure. Drops happen when the writer falls behind.
type Stats struct {
	DropTickTotal     uint64 `json:"drop_tick_total"`
	DropSnapshotTotal uint64 `json:"drop_snapshot_total"`
	DropSessionTotal  uint64 `json:"drop_session_total"`
	QueueDepth        int    `json:"queue_depth"`
	QueueCapacity     int    `json:"queue_capacity"`
}

// ChunkEventRow is one create or evict of a chunk as recorded in the index.
type ChunkEventRow struct {
	Tick        uint64
	Op          string // "create" | "evict"
	HasIsland   bool
	Plants      int
	Fingerprint uint64
}

// SnapshotRow describes an indexed snapshot file.
type SnapshotRow struct {
	Tick   uint64
	Path   string
	Seed   int64
	Chunks int
	Score  int
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		// A streaming burst at 60 Hz is small; this covers minutes of backlog.
		ch: make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS configs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS ticks (
			tick INTEGER PRIMARY KEY,
			center_cx INTEGER NOT NULL,
			center_cz INTEGER NOT NULL,
			created INTEGER NOT NULL,
			evicted INTEGER NOT NULL,
			collects INTEGER NOT NULL,
			raw_json TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS chunk_events (
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			cx INTEGER NOT NULL,
			cz INTEGER NOT NULL,
			op TEXT NOT NULL,
			has_island INTEGER NOT NULL,
			plants INTEGER NOT NULL,
			fingerprint TEXT NOT NULL,
			PRIMARY KEY (tick, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_chunk_events_key_tick ON chunk_events(cx, cz, tick);`,
		`CREATE TABLE IF NOT EXISTS collects (
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			cx INTEGER NOT NULL,
			cz INTEGER NOT NULL,
			item TEXT NOT NULL,
			score INTEGER NOT NULL,
			vehicle TEXT NOT NULL,
			PRIMARY KEY (tick, seq)
		);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			tick INTEGER PRIMARY KEY,
			path TEXT NOT NULL,
			seed INTEGER NOT NULL,
			chunk_size REAL NOT NULL,
			radius INTEGER NOT NULL,
			chunks INTEGER NOT NULL,
			score INTEGER NOT NULL,
			collectibles INTEGER NOT NULL,
			vehicle TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS sessions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			time TEXT NOT NULL,
			peer_id TEXT NOT NULL,
			name TEXT NOT NULL,
			event TEXT NOT NULL,
			reason TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_peer ON sessions(peer_id, id);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		DropTickTotal:     s.dropTick.Load(),
		DropSnapshotTotal: s.dropSnapshot.Load(),
		DropSessionTotal:  s.dropSession.Load(),
		QueueDepth:        len(s.ch),
		QueueCapacity:     cap(s.ch),
	}
}

func (s *SQLiteIndex) enqueue(r req, drops *atomic.Uint64) {
	select {
	case s.ch <- r:
	default:
		drops.Add(1)
	}
}

// WriteTick implements world.TickLogger. It never blocks the world loop.
func (s *SQLiteIndex) WriteTick(entry world.TickLogEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	s.enqueue(req{kind: reqTick, tick: entry}, &s.dropTick)
	return nil
}

func (s *SQLiteIndex) RecordSnapshot(path string, snap snapshot.SnapshotV1) {
	if s == nil || s.closed.Load() {
		return
	}
	r := snapshotRow{
		Tick:         snap.Header.Tick,
		Path:         path,
		Seed:         snap.Seed,
		ChunkSize:    snap.ChunkSize,
		Radius:       snap.Radius,
		Chunks:       len(snap.Chunks),
		Score:        snap.Player.Score,
		Collectibles: snap.Player.Collectibles,
		Vehicle:      snap.Player.Vehicle,
	}
	s.enqueue(req{kind: reqSnapshot, snapshot: r}, &s.dropSnapshot)
}

// RecordSession indexes a peer join or leave.
func (s *SQLiteIndex) RecordSession(peerID, name, event, reason string) {
	if s == nil || s.closed.Load() {
		return
	}
	r := sessionRow{
		Time:   time.Now().UTC().Format(time.RFC3339Nano),
		PeerID: peerID,
		Name:   name,
		Event:  event,
		Reason: reason,
	}
	s.enqueue(req{kind: reqSession, session: r}, &s.dropSession)
}

// Sync blocks until every write queued before it has been committed.
func (s *SQLiteIndex) Sync(ctx context.Context) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	done := make(chan struct{})
	select {
	case s.ch <- req{kind: reqSync, done: done}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// UpsertTuning stores the tuning the server actually runs with, keyed by a
// digest of its canonical JSON, so indexed ticks can be matched to their
// settings.
func (s *SQLiteIndex) UpsertTuning(tune tuning.Tuning) (string, error) {
	if s == nil {
		return "", nil
	}
	b, err := json.Marshal(tune)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	digest := hex.EncodeToString(sum[:])
	now := time.Now().UTC().Format(time.RFC3339Nano)

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return "", err
	}
	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('seed',?)`, fmt.Sprint(tune.World.Seed)); err != nil {
		return "", err
	}
	if _, err := tx.Exec(`INSERT OR REPLACE INTO configs(name,digest,json,updated_at) VALUES('tuning',?,?,?)`, digest, string(b), now); err != nil {
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	return digest, nil
}

// ChunkHistory lists every indexed create and evict of chunk (cx, cz) in
// tick order. Queued writes are committed first.
func (s *SQLiteIndex) ChunkHistory(ctx context.Context, cx, cz int) ([]ChunkEventRow, error) {
	if err := s.Sync(ctx); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT tick,op,has_island,plants,fingerprint FROM chunk_events WHERE cx=? AND cz=? ORDER BY tick,seq`, cx, cz)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ChunkEventRow
	for rows.Next() {
		var (
			r    ChunkEventRow
			tick int64
			isl  int
			fp   string
		)
		if err := rows.Scan(&tick, &r.Op, &isl, &r.Plants, &fp); err != nil {
			return nil, err
		}
		r.Tick = uint64(tick)
		r.HasIsland = isl != 0
		if _, err := fmt.Sscanf(fp, "%x", &r.Fingerprint); err != nil {
			return nil, fmt.Errorf("chunk %d,%d tick %d: fingerprint %q: %w", cx, cz, r.Tick, fp, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// LatestSnapshot returns the newest indexed snapshot, or ok=false when none
// has been recorded.
func (s *SQLiteIndex) LatestSnapshot(ctx context.Context) (SnapshotRow, bool, error) {
	if err := s.Sync(ctx); err != nil {
		return SnapshotRow{}, false, err
	}
	var (
		r    SnapshotRow
		tick int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT tick,path,seed,chunks,score FROM snapshots ORDER BY tick DESC LIMIT 1`).
		Scan(&tick, &r.Path, &r.Seed, &r.Chunks, &r.Score)
	if err == sql.ErrNoRows {
		return SnapshotRow{}, false, nil
	}
	if err != nil {
		return SnapshotRow{}, false, err
	}
	r.Tick = uint64(tick)
	return r, true, nil
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	// Prepared statements (on db; executed within tx).
	insertTick, _ := s.db.Prepare(`INSERT OR REPLACE INTO ticks(tick,center_cx,center_cz,created,evicted,collects,raw_json) VALUES(?,?,?,?,?,?,?)`)
	insertChunk, _ := s.db.Prepare(`INSERT OR REPLACE INTO chunk_events(tick,seq,cx,cz,op,has_island,plants,fingerprint) VALUES(?,?,?,?,?,?,?,?)`)
	insertCollect, _ := s.db.Prepare(`INSERT OR REPLACE INTO collects(tick,seq,cx,cz,item,score,vehicle) VALUES(?,?,?,?,?,?,?)`)
	insertSnapshot, _ := s.db.Prepare(`INSERT OR REPLACE INTO snapshots(tick,path,seed,chunk_size,radius,chunks,score,collectibles,vehicle) VALUES(?,?,?,?,?,?,?,?,?)`)
	insertSession, _ := s.db.Prepare(`INSERT INTO sessions(time,peer_id,name,event,reason) VALUES(?,?,?,?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{insertTick, insertChunk, insertCollect, insertSnapshot, insertSession} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	flushIfNeeded := func() {
		if tx == nil {
			return
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}
	exec := func(st *sql.Stmt, args ...any) bool {
		if st == nil {
			return true
		}
		if _, err := tx.Stmt(st).Exec(args...); err != nil {
			rollback()
			return false
		}
		opCount++
		return true
	}

	// An idle writer must not hold the single connection open in a tx.
	idle := time.NewTicker(commitMaxWait)
	defer idle.Stop()

	for {
		var r req
		select {
		case <-idle.C:
			flushIfNeeded()
			continue
		case rr, ok := <-s.ch:
			if !ok {
				commit()
				return
			}
			r = rr
		}
		if r.kind == reqSync {
			commit()
			close(r.done)
			continue
		}
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqTick:
			e := r.tick
			tick := int64(e.Tick)
			b, _ := json.Marshal(e)
			if !exec(insertTick, tick, e.Center[0], e.Center[1], len(e.Created), len(e.Evicted), len(e.Collects), string(b)) {
				continue
			}
			seq := 0
			ok := true
			for _, c := range e.Created {
				if ok = exec(insertChunk, tick, seq, c.CX, c.CZ, "create", boolInt(c.HasIsland), c.Plants, fmt.Sprintf("%016x", c.Fingerprint)); !ok {
					break
				}
				seq++
			}
			for _, c := range e.Evicted {
				if !ok {
					break
				}
				if ok = exec(insertChunk, tick, seq, c.CX, c.CZ, "evict", 0, 0, fmt.Sprintf("%016x", c.Fingerprint)); !ok {
					break
				}
				seq++
			}
			for i, c := range e.Collects {
				if !ok {
					break
				}
				ok = exec(insertCollect, tick, i, c.CX, c.CZ, c.Item, c.Score, c.Vehicle)
			}
			if !ok {
				continue
			}

		case reqSnapshot:
			sn := r.snapshot
			if !exec(insertSnapshot, int64(sn.Tick), sn.Path, sn.Seed, sn.ChunkSize, sn.Radius, sn.Chunks, sn.Score, sn.Collectibles, sn.Vehicle) {
				continue
			}

		case reqSession:
			se := r.session
			if !exec(insertSession, se.Time, se.PeerID, se.Name, se.Event, se.Reason) {
				continue
			}
		}
		flushIfNeeded()
	}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
