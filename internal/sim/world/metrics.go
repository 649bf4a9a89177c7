package world

import "time"

// WorldMetrics is a thread-safe read-only view of key world runtime signals.
// It is updated from the world loop goroutine and read from HTTP handlers/tests.
type WorldMetrics struct {
	Tick uint64 `json:"tick"`

	LoadedChunks  int    `json:"loaded_chunks"`
	ChunksCreated uint64 `json:"chunks_created"`
	ChunksEvicted uint64 `json:"chunks_evicted"`
	PrefetchHits  uint64 `json:"prefetch_hits"`
	PrefetchReady int    `json:"prefetch_ready"`
	InputQueue    int    `json:"input_queue"`

	Score        int    `json:"score"`
	Collectibles int    `json:"collectibles"`
	Vehicle      string `json:"vehicle"`
	IsNight      bool   `json:"is_night"`
	Sharks       int    `json:"sharks"`
	Auroras      int    `json:"auroras"`

	StepMS float64 `json:"step_ms"`
}

func (w *World) Metrics() WorldMetrics {
	if w == nil {
		return WorldMetrics{}
	}
	v := w.metrics.Load()
	if v == nil {
		return WorldMetrics{}
	}
	m, ok := v.(WorldMetrics)
	if !ok {
		return WorldMetrics{}
	}
	return m
}

func (w *World) publishMetrics(step time.Duration) {
	st := w.chunks.Stats()
	m := WorldMetrics{
		Tick:          w.state.Tick,
		LoadedChunks:  w.chunks.Len(),
		ChunksCreated: st.Created,
		ChunksEvicted: st.Evicted,
		PrefetchHits:  st.PrefetchHits,
		InputQueue:    len(w.inputs),
		Score:         w.state.Player.Score,
		Collectibles:  w.state.Player.Collectibles,
		Vehicle:       w.VehicleName(),
		IsNight:       w.state.Sky.IsNight,
		StepMS:        float64(step.Microseconds()) / 1000,
	}
	if w.prefetch != nil {
		m.PrefetchReady = w.prefetch.Ready()
	}
	if w.state.Shark != nil {
		m.Sharks = 1
	}
	if w.state.Aurora != nil {
		m.Auroras = 1
	}
	w.metrics.Store(m)
}
