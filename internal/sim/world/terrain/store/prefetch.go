package store

import (
	"context"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"seadrift.ai/internal/sim/world/terrain/gen"
)

// Prefetcher generates chunks ahead of the viewpoint on background workers.
// The Manager takes finished chunks from it and still generates inline on a
// miss, so a slow worker can delay content but never leave a hole.
type Prefetcher struct {
	gen  Generator
	jobs chan ChunkKey

	mu      sync.Mutex
	ready   map[ChunkKey]*gen.Chunk
	pending map[ChunkKey]struct{}

	cancel context.CancelFunc
	group  *errgroup.Group
}

type PrefetchConfig struct {
	Workers  int
	QueueLen int
}

func NewPrefetcher(ctx context.Context, g Generator, cfg PrefetchConfig) *Prefetcher {
	if cfg.Workers <= 0 {
		cfg.Workers = max(runtime.NumCPU()/2, 1)
	}
	if cfg.QueueLen <= 0 {
		cfg.QueueLen = 1024
	}
	ctx, cancel := context.WithCancel(ctx)
	group, ctx := errgroup.WithContext(ctx)
	p := &Prefetcher{
		gen:     g,
		jobs:    make(chan ChunkKey, cfg.QueueLen),
		ready:   map[ChunkKey]*gen.Chunk{},
		pending: map[ChunkKey]struct{}{},
		cancel:  cancel,
		group:   group,
	}
	for i := 0; i < cfg.Workers; i++ {
		group.Go(func() error {
			p.worker(ctx)
			return nil
		})
	}
	return p
}

func (p *Prefetcher) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case k := <-p.jobs:
			ch := p.gen.Generate(k.CX, k.CZ)
			p.mu.Lock()
			if _, still := p.pending[k]; still {
				delete(p.pending, k)
				p.ready[k] = ch
			}
			p.mu.Unlock()
		}
	}
}

// Request queues keys that are neither ready nor pending. When the queue is
// full the remaining keys are dropped; they are requested again next Update.
func (p *Prefetcher) Request(keys []ChunkKey) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, k := range keys {
		if _, ok := p.ready[k]; ok {
			continue
		}
		if _, ok := p.pending[k]; ok {
			continue
		}
		select {
		case p.jobs <- k:
			p.pending[k] = struct{}{}
		default:
			return
		}
	}
}

// Take removes and returns a finished chunk.
func (p *Prefetcher) Take(k ChunkKey) (*gen.Chunk, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ch, ok := p.ready[k]
	if ok {
		delete(p.ready, k)
	}
	return ch, ok
}

// Retain drops ready and pending entries outside radius of center, bounding
// the cache to the look-ahead ring.
func (p *Prefetcher) Retain(center ChunkKey, radius int, metric Metric) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for k := range p.ready {
		if metric.Distance(k, center) > radius {
			delete(p.ready, k)
		}
	}
	for k := range p.pending {
		if metric.Distance(k, center) > radius {
			delete(p.pending, k)
		}
	}
}

// Ready reports how many finished chunks are waiting.
func (p *Prefetcher) Ready() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.ready)
}

// Close stops the workers and waits for them to exit.
func (p *Prefetcher) Close() error {
	p.cancel()
	return p.group.Wait()
}
