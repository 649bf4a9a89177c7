package protocol

import "seadrift.ai/internal/scene"

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Name            string `json:"name"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	PeerID          string      `json:"peer_id"`
	WorldID         string      `json:"world_id"`
	WorldParams     WorldParams `json:"world_params"`
	Peers           []string    `json:"peers,omitempty"`
}

type WorldParams struct {
	TickRateHz    int     `json:"tick_rate_hz"`
	ChunkSize     float64 `json:"chunk_size"`
	ChunksVisible int     `json:"chunks_visible"`
	Metric        string  `json:"metric"`
	Seed          int64   `json:"seed"`
	TuningDigest  string  `json:"tuning_digest,omitempty"`
}

// POSE (client -> server -> other clients). The server stamps PeerID and
// forwards it unchanged otherwise; there is no ack or ordering.
type PoseMsg struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version"`
	PeerID          string     `json:"peer_id,omitempty"`
	Position        [3]float64 `json:"position"`
	Rotation        [3]float64 `json:"rotation"`
}

// PEER_LEFT (server -> client)
type PeerLeftMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	PeerID          string `json:"peer_id"`
}

// INPUT (client -> server): held movement keys for the simulated vehicle.
type InputMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Forward         bool   `json:"forward"`
	Back            bool   `json:"back"`
	Left            bool   `json:"left"`
	Right           bool   `json:"right"`
}

// SCENE (server -> client): one render-graph mutation.
type SceneMsg struct {
	Type            string       `json:"type"`
	ProtocolVersion string       `json:"protocol_version"`
	Op              string       `json:"op"`
	Object          scene.Object `json:"object"`
}

// STATE (server -> client), sent every tick.
type StateMsg struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version"`
	Tick            uint64     `json:"tick"`
	Player          [3]float64 `json:"player"`
	Rotation        [3]float64 `json:"rotation"`
	Score           int        `json:"score"`
	Collectibles    int        `json:"collectibles"`
	Vehicle         string     `json:"vehicle"`
	IsNight         bool       `json:"is_night"`
	Intensity       float64    `json:"intensity"`
	Shark           bool       `json:"shark"`
	Aurora          bool       `json:"aurora"`
	Center          [2]int     `json:"center"`
	Loaded          int        `json:"loaded"`
}

type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Code            string `json:"code"`
	Message         string `json:"message,omitempty"`
	// RetryAfterMs is set on E_RATE_LIMIT.
	RetryAfterMs    int64  `json:"retry_after_ms,omitempty"`
}

func NewError(code, msg string) ErrorMsg {
	return ErrorMsg{Type: TypeError, ProtocolVersion: Version, Code: code, Message: msg}
}
