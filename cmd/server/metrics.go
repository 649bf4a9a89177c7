package main

import (
	"fmt"
	"io"

	"seadrift.ai/internal/persistence/indexdb"
	"seadrift.ai/internal/sim/world"
	"seadrift.ai/internal/transport/ws"
)

func boolGauge(b bool) int {
	if b {
		return 1
	}
	return 0
}

// writeMetrics renders the minimal Prometheus exposition format.
func writeMetrics(rw io.Writer, worldID string, m world.WorldMetrics, hub ws.Stats, idx *indexdb.Stats) {
	fmt.Fprintf(rw, "# HELP seadrift_world_tick Current world tick.\n")
	fmt.Fprintf(rw, "# TYPE seadrift_world_tick gauge\n")
	fmt.Fprintf(rw, "seadrift_world_tick{world=%q} %d\n", worldID, m.Tick)

	fmt.Fprintf(rw, "# HELP seadrift_world_loaded_chunks Resident chunk count.\n")
	fmt.Fprintf(rw, "# TYPE seadrift_world_loaded_chunks gauge\n")
	fmt.Fprintf(rw, "seadrift_world_loaded_chunks{world=%q} %d\n", worldID, m.LoadedChunks)

	fmt.Fprintf(rw, "# HELP seadrift_world_chunks_total Chunks created or evicted since start.\n")
	fmt.Fprintf(rw, "# TYPE seadrift_world_chunks_total counter\n")
	fmt.Fprintf(rw, "seadrift_world_chunks_total{world=%q,op=%q} %d\n", worldID, "created", m.ChunksCreated)
	fmt.Fprintf(rw, "seadrift_world_chunks_total{world=%q,op=%q} %d\n", worldID, "evicted", m.ChunksEvicted)

	fmt.Fprintf(rw, "# HELP seadrift_world_prefetch_hits_total Chunks taken from the prefetch cache.\n")
	fmt.Fprintf(rw, "# TYPE seadrift_world_prefetch_hits_total counter\n")
	fmt.Fprintf(rw, "seadrift_world_prefetch_hits_total{world=%q} %d\n", worldID, m.PrefetchHits)

	fmt.Fprintf(rw, "# HELP seadrift_world_prefetch_ready Prefetched chunks waiting to be used.\n")
	fmt.Fprintf(rw, "# TYPE seadrift_world_prefetch_ready gauge\n")
	fmt.Fprintf(rw, "seadrift_world_prefetch_ready{world=%q} %d\n", worldID, m.PrefetchReady)

	fmt.Fprintf(rw, "# HELP seadrift_world_queue_depth Channel backlog depth.\n")
	fmt.Fprintf(rw, "# TYPE seadrift_world_queue_depth gauge\n")
	fmt.Fprintf(rw, "seadrift_world_queue_depth{world=%q,queue=%q} %d\n", worldID, "input", m.InputQueue)

	fmt.Fprintf(rw, "# HELP seadrift_player_score Player score.\n")
	fmt.Fprintf(rw, "# TYPE seadrift_player_score gauge\n")
	fmt.Fprintf(rw, "seadrift_player_score{world=%q,vehicle=%q} %d\n", worldID, m.Vehicle, m.Score)

	fmt.Fprintf(rw, "# HELP seadrift_player_collectibles Items collected.\n")
	fmt.Fprintf(rw, "# TYPE seadrift_player_collectibles gauge\n")
	fmt.Fprintf(rw, "seadrift_player_collectibles{world=%q} %d\n", worldID, m.Collectibles)

	fmt.Fprintf(rw, "# HELP seadrift_world_night 1 while it is night.\n")
	fmt.Fprintf(rw, "# TYPE seadrift_world_night gauge\n")
	fmt.Fprintf(rw, "seadrift_world_night{world=%q} %d\n", worldID, boolGauge(m.IsNight))

	fmt.Fprintf(rw, "# HELP seadrift_world_entities Live ephemeral entities.\n")
	fmt.Fprintf(rw, "# TYPE seadrift_world_entities gauge\n")
	fmt.Fprintf(rw, "seadrift_world_entities{world=%q,kind=%q} %d\n", worldID, "shark", m.Sharks)
	fmt.Fprintf(rw, "seadrift_world_entities{world=%q,kind=%q} %d\n", worldID, "aurora", m.Auroras)

	fmt.Fprintf(rw, "# HELP seadrift_world_step_ms Last tick step duration in milliseconds.\n")
	fmt.Fprintf(rw, "# TYPE seadrift_world_step_ms gauge\n")
	fmt.Fprintf(rw, "seadrift_world_step_ms{world=%q} %.3f\n", worldID, m.StepMS)

	fmt.Fprintf(rw, "# HELP seadrift_relay_peers Connected relay peers.\n")
	fmt.Fprintf(rw, "# TYPE seadrift_relay_peers gauge\n")
	fmt.Fprintf(rw, "seadrift_relay_peers{world=%q} %d\n", worldID, hub.Peers)

	fmt.Fprintf(rw, "# HELP seadrift_relay_messages_total Relay message counters.\n")
	fmt.Fprintf(rw, "# TYPE seadrift_relay_messages_total counter\n")
	fmt.Fprintf(rw, "seadrift_relay_messages_total{world=%q,kind=%q} %d\n", worldID, "pose_relayed", hub.PosesRelayed)
	fmt.Fprintf(rw, "seadrift_relay_messages_total{world=%q,kind=%q} %d\n", worldID, "pose_limited", hub.PosesLimited)
	fmt.Fprintf(rw, "seadrift_relay_messages_total{world=%q,kind=%q} %d\n", worldID, "input", hub.InputsQueued)
	fmt.Fprintf(rw, "seadrift_relay_messages_total{world=%q,kind=%q} %d\n", worldID, "out_dropped", hub.OutDropped)

	if idx == nil {
		return
	}
	fmt.Fprintf(rw, "# HELP seadrift_index_queue_depth Index writer backlog.\n")
	fmt.Fprintf(rw, "# TYPE seadrift_index_queue_depth gauge\n")
	fmt.Fprintf(rw, "seadrift_index_queue_depth{world=%q} %d\n", worldID, idx.QueueDepth)

	fmt.Fprintf(rw, "# HELP seadrift_index_dropped_total Index writes dropped because the queue was full.\n")
	fmt.Fprintf(rw, "# TYPE seadrift_index_dropped_total counter\n")
	fmt.Fprintf(rw, "seadrift_index_dropped_total{world=%q,kind=%q} %d\n", worldID, "tick", idx.DropTickTotal)
	fmt.Fprintf(rw, "seadrift_index_dropped_total{world=%q,kind=%q} %d\n", worldID, "snapshot", idx.DropSnapshotTotal)
	fmt.Fprintf(rw, "seadrift_index_dropped_total{world=%q,kind=%q} %d\n", worldID, "session", idx.DropSessionTotal)
}
