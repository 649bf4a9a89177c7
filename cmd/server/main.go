package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"seadrift.ai/internal/persistence/indexdb"
	persistlog "seadrift.ai/internal/persistence/log"
	"seadrift.ai/internal/persistence/snapshot"
	"seadrift.ai/internal/sim/tuning"
	"seadrift.ai/internal/sim/world"
	"seadrift.ai/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		worldID    = flag.String("world", "ocean_1", "world id")
		seed       = flag.Int64("seed", 0, "world seed override (used only when starting a fresh world)")
		configDir  = flag.String("configs", "./configs", "config directory")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml or tuning.toml (default: <configs>/tuning.yaml)")
		disableDB  = flag.Bool("disable_db", false, "disable the SQLite index (ticks, chunk events, snapshots, sessions)")
		maxPeers   = flag.Int("max_peers", 16, "maximum relay peers")

		snapPath   = flag.String("snapshot", "", "path to snapshot to load (optional)")
		loadLatest = flag.Bool("load_latest_snapshot", true, "load latest snapshot from data dir if present (when -snapshot is empty)")
	)
	flag.Parse()
	seedSet := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "seed" {
			seedSet = true
		}
	})

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	worldDir := filepath.Join(*dataDir, "worlds", *worldID)
	_ = os.MkdirAll(worldDir, 0o755)

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}

	snapshotToLoad := strings.TrimSpace(*snapPath)
	if snapshotToLoad == "" && *loadLatest {
		snapshotToLoad = latestSnapshot(worldDir)
	}

	// Load tuning (required for fresh world; optional for snapshot resumes).
	tune, tuneErr := tuning.Load(tp)
	if tuneErr != nil {
		if snapshotToLoad == "" || !os.IsNotExist(tuneErr) {
			logger.Fatalf("load tuning: %v", tuneErr)
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
		tune = tuning.Defaults()
	}

	var snap *snapshot.SnapshotV1
	if snapshotToLoad != "" {
		s, err := snapshot.ReadSnapshot(snapshotToLoad)
		if err != nil {
			logger.Fatalf("read snapshot: %v", err)
		}
		if s.Header.WorldID != "" && s.Header.WorldID != *worldID {
			logger.Fatalf("snapshot world id mismatch: flag=%s snap=%s", *worldID, s.Header.WorldID)
		}
		// The chunk grid is part of the saved world; the rest of the tuning
		// may change between runs.
		tune.World.Seed = s.Seed
		tune.World.ChunkSize = s.ChunkSize
		tune.World.ChunksVisible = s.Radius
		tune.World.Metric = s.Metric
		tune.World.TickRateHz = s.TickRateHz
		snap = &s
	} else if seedSet {
		tune.World.Seed = *seed
	}
	if err := tune.Validate(); err != nil {
		logger.Fatalf("tuning: %v", err)
	}

	// Optional: read-model index backend (does not affect sim determinism).
	idx, err := openRuntimeIndex(worldDir, *disableDB)
	if err != nil {
		logger.Fatalf("open index backend: %v", err)
	}
	if idx != nil {
		defer idx.Close()
	}
	tuningDigest := ""
	if idx != nil {
		if tuningDigest, err = idx.UpsertTuning(tune); err != nil {
			logger.Printf("index backend: upsert tuning: %v", err)
		}
	}

	hub := ws.NewHub(ws.Config{MaxPeers: *maxPeers}, logger)
	w, err := world.New(world.ConfigFromTuning(*worldID, tune), world.WithSink(hub), world.WithLogger(logger))
	if err != nil {
		logger.Fatalf("world: %v", err)
	}
	defer w.Close()
	if snap != nil {
		if err := w.ImportSnapshot(*snap); err != nil {
			logger.Fatalf("import snapshot: %v", err)
		}
		logger.Printf("resumed from snapshot=%s tick=%d", filepath.Base(snapshotToLoad), snap.Header.Tick)
	} else {
		logger.Printf("fresh world seed=%d chunk_size=%v chunks_visible=%d", tune.World.Seed, tune.World.ChunkSize, tune.World.ChunksVisible)
	}
	hub.Bind(w, tuningDigest)
	w.SetObserver(hub)

	tickLog := persistlog.NewTickLogger(worldDir)
	sessionLog := persistlog.NewSessionLogger(worldDir)
	defer tickLog.Close()
	defer sessionLog.Close()
	tee := persistlog.TeeTickLogger{tickLog}
	hub.AddSessionSink(sessionLog)
	if idx != nil {
		tee = append(tee, idx)
		hub.AddSessionSink(idx)
	}
	w.SetTickLogger(tee)

	snapCh := make(chan snapshot.SnapshotV1, 2)
	w.SetSnapshotSink(snapCh)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		var is *indexdb.Stats
		if idx != nil {
			st := idx.Stats()
			is = &st
		}
		writeMetrics(rw, *worldID, w.Metrics(), hub.Stats(), is)
	})
	if envBool("SD_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP()) {
		// Local-only admin endpoints (do not affect simulation determinism).
		mux.HandleFunc("/admin/v1/state", stateHandler(w))
		mux.HandleFunc("/admin/v1/chunk", chunkHistoryHandler(idx))
	} else {
		logger.Printf("admin endpoints disabled (SD_ENABLE_ADMIN_HTTP=false)")
	}
	if envBool("SD_ENABLE_PPROF_HTTP", false) {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	mux.HandleFunc("/v1/ws", hub.Handler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, cancel := signalContext()
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := w.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		runSnapshotWriter(gctx, snapCh, worldDir, idx, logger)
		return nil
	})
	g.Go(func() error {
		logger.Printf("listening on %s", *addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		return srv.Shutdown(ctx2)
	})

	if err := g.Wait(); err != nil {
		logger.Printf("shutdown: %v", err)
	}

	// The world loop has returned, so its state is safe to read here.
	final := w.ExportSnapshot()
	if path, err := persistSnapshot(worldDir, final, idx); err != nil {
		logger.Printf("final snapshot: %v", err)
	} else {
		logger.Printf("final snapshot tick=%d -> %s", final.Header.Tick, filepath.Base(path))
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
