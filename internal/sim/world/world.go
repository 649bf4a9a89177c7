package world

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"seadrift.ai/internal/persistence/snapshot"
	"seadrift.ai/internal/scene"
	"seadrift.ai/internal/sim/world/terrain/gen"
	"seadrift.ai/internal/sim/world/terrain/rng"
	"seadrift.ai/internal/sim/world/terrain/store"
)

// World is a single-threaded authoritative simulation of one player sailing
// an endless streamed ocean. All state must be accessed only from the world
// loop goroutine; other goroutines talk to it through channels and read
// Metrics.
type World struct {
	cfg WorldConfig

	gen      *gen.Generator
	chunks   *store.Manager
	prefetch *store.Prefetcher
	rng      *rng.Random

	state WorldState

	sink   scene.Sink
	logger *log.Logger

	inputs   chan Input
	stop     chan struct{}
	stopOnce sync.Once

	// Optional (may be nil).
	tickLogger   TickLogger
	observer     Observer
	snapshotSink chan<- snapshot.SnapshotV1

	metrics atomic.Value
}

type Option func(*World)

// WithSink routes scene mutations (chunks and entities) to s.
func WithSink(s scene.Sink) Option {
	return func(w *World) {
		if s != nil {
			w.sink = s
		}
	}
}

func WithLogger(l *log.Logger) Option { return func(w *World) { w.logger = l } }

func New(cfg WorldConfig, opts ...Option) (*World, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	g, err := gen.New(cfg.Gen)
	if err != nil {
		return nil, fmt.Errorf("world %s: generator: %w", cfg.ID, err)
	}

	w := &World{
		cfg:    cfg,
		gen:    g,
		rng:    rng.New(cfg.Seed),
		state:  newState(),
		sink:   scene.Discard,
		inputs: make(chan Input, 64),
		stop:   make(chan struct{}),
	}
	for _, o := range opts {
		o(w)
	}

	w.chunks, err = store.NewManager(cfg.Chunks, g, w.sink)
	if err != nil {
		return nil, fmt.Errorf("world %s: chunks: %w", cfg.ID, err)
	}
	if cfg.Prefetch.Enabled {
		w.prefetch = store.NewPrefetcher(context.Background(), g, store.PrefetchConfig{
			Workers:  cfg.Prefetch.Workers,
			QueueLen: cfg.Prefetch.QueueLen,
		})
		w.chunks.AttachPrefetcher(w.prefetch)
	}
	w.state.Sky = computeSky(0, cfg.DayNight, w.state.Player.Pos)
	w.publishMetrics(0)
	return w, nil
}

func (w *World) SetTickLogger(l TickLogger)                    { w.tickLogger = l }
func (w *World) SetObserver(o Observer)                        { w.observer = o }
func (w *World) SetSnapshotSink(ch chan<- snapshot.SnapshotV1) { w.snapshotSink = ch }

// Inputs accepts held-key state from transports. Only the latest input
// before a tick matters.
func (w *World) Inputs() chan<- Input { return w.inputs }

func (w *World) ID() string          { return w.cfg.ID }
func (w *World) Config() WorldConfig { return w.cfg }

// State exposes the live state. World goroutine only.
func (w *World) State() *WorldState        { return &w.state }
func (w *World) Chunks() *store.Manager    { return w.chunks }
func (w *World) Generator() *gen.Generator { return w.gen }

func (w *World) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(w.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var held Input
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case in := <-w.inputs:
			held = in
		case <-ticker.C:
			w.Step(held)
		}
	}
}

// Stop makes Run return. Safe to call more than once.
func (w *World) Stop() { w.stopOnce.Do(func() { close(w.stop) }) }

// Close releases background prefetch workers. Call after Run returns.
func (w *World) Close() error {
	if w.prefetch == nil {
		return nil
	}
	return w.prefetch.Close()
}

// Step advances the world by one tick and returns what happened. Run calls
// it on every timer tick; tests and replays call it directly.
func (w *World) Step(in Input) TickLogEntry {
	start := time.Now()
	now := w.state.Tick
	elapsed := float64(now) / float64(w.cfg.TickRateHz)
	entry := TickLogEntry{Tick: now, Input: in}

	w.movePlayer(in, elapsed)

	if now%uint64(w.cfg.StreamEveryTicks) == 0 {
		w.stream(&entry)
	}
	if c, ok := w.chunks.Center(); ok {
		entry.Center = [2]int{c.CX, c.CZ}
	}

	entry.Collects = w.collect(now)
	if len(entry.Collects) > 0 {
		entry.Upgraded = w.upgradeVehicle()
		for i := range entry.Collects {
			entry.Collects[i].Vehicle = w.VehicleName()
		}
	}

	entry.Expired = w.expireEntities(now)

	w.state.Sky = computeSky(elapsed, w.cfg.DayNight, w.state.Player.Pos)
	if e := w.tickAurora(now); e != nil {
		entry.Spawns = append(entry.Spawns, entityEvent(e))
	}
	if e := w.tickShark(now, elapsed); e != nil {
		entry.Spawns = append(entry.Spawns, entityEvent(e))
	}

	if w.tickLogger != nil && !entry.Idle() {
		if err := w.tickLogger.WriteTick(entry); err != nil {
			w.logf("tick log: %v", err)
		}
	}

	w.state.Tick++

	// Taken after the increment: a snapshot's tick is the next one to step.
	if w.snapshotSink != nil && w.cfg.SnapshotEveryTicks > 0 && now != 0 && now%uint64(w.cfg.SnapshotEveryTicks) == 0 {
		snap := w.ExportSnapshot()
		select {
		case w.snapshotSink <- snap:
		default:
			// Drop snapshot if sink is backed up.
		}
	}
	if w.observer != nil {
		w.observer.ObserveTick(w.view())
	}
	w.publishMetrics(time.Since(start))
	return entry
}

func (w *World) stream(entry *TickLogEntry) {
	res := w.chunks.Update(w.state.Player.Pos)
	for _, k := range res.Created {
		ch, ok := w.chunks.Get(k)
		if !ok {
			continue
		}
		entry.Created = append(entry.Created, ChunkEvent{
			CX:          k.CX,
			CZ:          k.CZ,
			HasIsland:   ch.HasIsland(),
			Plants:      len(ch.Plants),
			Fingerprint: ch.Fingerprint(),
		})
	}
	for _, k := range res.Evicted {
		entry.Evicted = append(entry.Evicted, ChunkEvent{CX: k.CX, CZ: k.CZ})
	}
}

func (w *World) view() View {
	p := w.state.Player
	v := View{
		Tick:         w.state.Tick,
		Player:       [3]float64{p.Pos.X(), p.Pos.Y(), p.Pos.Z()},
		Rotation:     [3]float64{p.Rot.X(), p.Rot.Y(), p.Rot.Z()},
		Score:        p.Score,
		Collectibles: p.Collectibles,
		Vehicle:      w.VehicleName(),
		IsNight:      w.state.Sky.IsNight,
		Intensity:    w.state.Sky.Intensity,
		Shark:        w.state.Shark != nil,
		Aurora:       w.state.Aurora != nil,
		Loaded:       w.chunks.Len(),
	}
	if c, ok := w.chunks.Center(); ok {
		v.Center = [2]int{c.CX, c.CZ}
	}
	return v
}

func (w *World) logf(format string, args ...any) {
	if w.logger != nil {
		w.logger.Printf("[world %s] "+format, append([]any{w.cfg.ID}, args...)...)
	}
}
