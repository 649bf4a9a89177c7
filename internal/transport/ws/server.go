package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"seadrift.ai/internal/protocol"
	"seadrift.ai/internal/scene"
	"seadrift.ai/internal/sim/world"
	"seadrift.ai/internal/sim/world/terrain/store"
)

// World is the part of the simulation the hub talks to.
type World interface {
	ID() string
	Config() world.WorldConfig
	Inputs() chan<- world.Input
}

// SessionSink records peers joining and leaving.
type SessionSink interface {
	RecordSession(peerID, name, event, reason string)
}

type Config struct {
	MaxPeers int
	// OutQueue bounds each peer's outbound buffer; a slow peer loses
	// messages rather than stalling the world loop.
	OutQueue int
	// At most PoseMax POSE messages per PoseWindow are relayed per peer.
	PoseWindow time.Duration
	PoseMax    int
}

func (c *Config) applyDefaults() {
	if c.MaxPeers <= 0 {
		c.MaxPeers = 16
	}
	if c.OutQueue <= 0 {
		c.OutQueue = 1024
	}
	if c.PoseWindow == 0 {
		c.PoseWindow = time.Second
	}
	if c.PoseMax == 0 {
		c.PoseMax = 120
	}
}

// Stats are cumulative hub counters.
type Stats struct {
	Peers        int    `json:"peers"`
	PosesRelayed uint64 `json:"poses_relayed"`
	PosesLimited uint64 `json:"poses_limited"`
	InputsQueued uint64 `json:"inputs_queued"`
	OutDropped   uint64 `json:"out_dropped"`
}

type peer struct {
	id   string
	name string
	out  chan []byte
}

// Hub is the multiplayer relay. It implements scene.Sink (SCENE broadcast)
// and world.Observer (STATE broadcast), so the world loop pushes into it.
type Hub struct {
	cfg Config
	log *log.Logger

	upgrader websocket.Upgrader

	world   World
	params  protocol.WorldParams
	session []SessionSink

	mu    sync.RWMutex
	peers map[string]*peer
	live  map[string]scene.Object

	posesRelayed atomic.Uint64
	posesLimited atomic.Uint64
	inputsQueued atomic.Uint64
	outDropped   atomic.Uint64
}

func NewHub(cfg Config, logger *log.Logger) *Hub {
	cfg.applyDefaults()
	return &Hub{
		cfg: cfg,
		log: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
		peers: map[string]*peer{},
		live:  map[string]scene.Object{},
	}
}

// Bind attaches the world whose inputs peers steer. Call before serving.
func (h *Hub) Bind(w World, tuningDigest string) {
	cfg := w.Config()
	metric := string(cfg.Chunks.Metric)
	if metric == "" {
		metric = string(store.Chebyshev)
	}
	h.world = w
	h.params = protocol.WorldParams{
		TickRateHz:    cfg.TickRateHz,
		ChunkSize:     cfg.Chunks.ChunkSize,
		ChunksVisible: cfg.Chunks.Radius,
		Metric:        metric,
		Seed:          cfg.Seed,
		TuningDigest:  tuningDigest,
	}
}

func (h *Hub) AddSessionSink(s SessionSink) {
	if s != nil {
		h.session = append(h.session, s)
	}
}

func (h *Hub) Stats() Stats {
	h.mu.RLock()
	n := len(h.peers)
	h.mu.RUnlock()
	return Stats{
		Peers:        n,
		PosesRelayed: h.posesRelayed.Load(),
		PosesLimited: h.posesLimited.Load(),
		InputsQueued: h.inputsQueued.Load(),
		OutDropped:   h.outDropped.Load(),
	}
}

// Add implements scene.Sink.
func (h *Hub) Add(obj scene.Object) {
	b := mustJSON(protocol.SceneMsg{Type: protocol.TypeScene, ProtocolVersion: protocol.Version, Op: scene.OpAdd, Object: obj})
	h.mu.Lock()
	h.live[obj.ID] = obj
	h.broadcastLocked(b, "")
	h.mu.Unlock()
}

// Remove implements scene.Sink.
func (h *Hub) Remove(obj scene.Object) {
	b := mustJSON(protocol.SceneMsg{Type: protocol.TypeScene, ProtocolVersion: protocol.Version, Op: scene.OpRemove, Object: obj})
	h.mu.Lock()
	delete(h.live, obj.ID)
	h.broadcastLocked(b, "")
	h.mu.Unlock()
}

// ObserveTick implements world.Observer.
func (h *Hub) ObserveTick(v world.View) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.peers) == 0 {
		return
	}
	h.broadcastLocked(mustJSON(protocol.StateMsg{
		Type:            protocol.TypeState,
		ProtocolVersion: protocol.Version,
		Tick:            v.Tick,
		Player:          v.Player,
		Rotation:        v.Rotation,
		Score:           v.Score,
		Collectibles:    v.Collectibles,
		Vehicle:         v.Vehicle,
		IsNight:         v.IsNight,
		Intensity:       v.Intensity,
		Shark:           v.Shark,
		Aurora:          v.Aurora,
		Center:          v.Center,
		Loaded:          v.Loaded,
	}), "")
}

// broadcastLocked queues b for every peer except skip. Caller holds mu
// (read or write).
func (h *Hub) broadcastLocked(b []byte, skip string) {
	for id, p := range h.peers {
		if id == skip {
			continue
		}
		h.send(p, b)
	}
}

func (h *Hub) send(p *peer, b []byte) {
	if b == nil {
		return
	}
	select {
	case p.out <- b:
	default:
		h.outDropped.Add(1)
	}
}

func (h *Hub) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := h.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		p := h.handshake(conn)
		if p == nil {
			return
		}
		h.recordSession(p, "join", "")
		h.logf("peer %s (%s) joined", p.id, p.name)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		writeErr := make(chan error, 1)
		go func() {
			for {
				select {
				case <-ctx.Done():
					writeErr <- ctx.Err()
					return
				case b := <-p.out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						writeErr <- err
						cancel()
						return
					}
				}
			}
		}()

		reason := h.readLoop(ctx, conn, p)

		cancel()
		h.leave(p)
		h.recordSession(p, "leave", reason)
		h.logf("peer %s left: %s", p.id, reason)
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))

		// Best-effort wait for the writer to stop so it doesn't outlive conn.
		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
	}
}

func (h *Hub) handshake(conn *websocket.Conn) *peer {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		reject(conn, protocol.ErrProtoBadRequest, "expected HELLO")
		return nil
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		reject(conn, protocol.ErrProtoBadRequest, "bad HELLO")
		return nil
	}
	if hello.ProtocolVersion != protocol.Version {
		reject(conn, protocol.ErrProtoVersion, "bad protocol_version")
		return nil
	}
	name := strings.TrimSpace(hello.Name)
	if name == "" {
		name = "sailor"
	}
	if len(name) > 64 {
		name = name[:64]
	}

	// Register and replay the live scene under one lock so no op is missed
	// or duplicated between the two.
	h.mu.Lock()
	if len(h.peers) >= h.cfg.MaxPeers {
		h.mu.Unlock()
		reject(conn, protocol.ErrServerFull, "server full")
		return nil
	}
	// The queue holds WELCOME and the whole replay on top of OutQueue, so
	// the replay is never dropped however large the resident set is.
	p := &peer{id: uuid.NewString(), name: name, out: make(chan []byte, h.cfg.OutQueue+len(h.live)+1)}
	others := make([]string, 0, len(h.peers))
	for id := range h.peers {
		others = append(others, id)
	}
	sort.Strings(others)

	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		PeerID:          p.id,
		WorldParams:     h.params,
		Peers:           others,
	}
	if h.world != nil {
		welcome.WorldID = h.world.ID()
	}
	h.send(p, mustJSON(welcome))

	ids := make([]string, 0, len(h.live))
	for id := range h.live {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		h.send(p, mustJSON(protocol.SceneMsg{Type: protocol.TypeScene, ProtocolVersion: protocol.Version, Op: scene.OpAdd, Object: h.live[id]}))
	}
	h.peers[p.id] = p
	h.mu.Unlock()
	return p
}

// readLoop handles peer messages until the connection fails and returns
// the reason.
func (h *Hub) readLoop(ctx context.Context, conn *websocket.Conn, p *peer) string {
	poses := window{span: h.cfg.PoseWindow, max: h.cfg.PoseMax}
	var limitedWindow time.Time
	for {
		if ctx.Err() != nil {
			return "write failed"
		}
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return "closed"
			}
			return err.Error()
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			h.send(p, mustJSON(protocol.NewError(protocol.ErrProtoBadRequest, "bad json")))
			continue
		}
		if base.ProtocolVersion != protocol.Version {
			h.send(p, mustJSON(protocol.NewError(protocol.ErrProtoVersion, "bad protocol_version")))
			continue
		}

		switch base.Type {
		case protocol.TypePose:
			var pose protocol.PoseMsg
			if err := json.Unmarshal(msg, &pose); err != nil {
				h.send(p, mustJSON(protocol.NewError(protocol.ErrBadRequest, "bad POSE")))
				continue
			}
			if ok, wait := poses.allow(time.Now()); !ok {
				h.posesLimited.Add(1)
				// One ERROR per window; the rest are dropped silently.
				if !poses.start.Equal(limitedWindow) {
					limitedWindow = poses.start
					e := protocol.NewError(protocol.ErrRateLimit, "too many POSE messages")
					e.RetryAfterMs = int64((wait + time.Millisecond - 1) / time.Millisecond)
					h.send(p, mustJSON(e))
				}
				continue
			}
			pose.PeerID = p.id
			b := mustJSON(pose)
			h.mu.RLock()
			h.broadcastLocked(b, p.id)
			h.mu.RUnlock()
			h.posesRelayed.Add(1)

		case protocol.TypeInput:
			var in protocol.InputMsg
			if err := json.Unmarshal(msg, &in); err != nil {
				h.send(p, mustJSON(protocol.NewError(protocol.ErrBadRequest, "bad INPUT")))
				continue
			}
			if h.world == nil {
				continue
			}
			select {
			case h.world.Inputs() <- world.Input{Forward: in.Forward, Back: in.Back, Left: in.Left, Right: in.Right}:
				h.inputsQueued.Add(1)
			default:
				// World is behind; the next INPUT carries the held keys again.
			}

		default:
			h.send(p, mustJSON(protocol.NewError(protocol.ErrBadRequest, "unexpected "+base.Type)))
		}
	}
}

func (h *Hub) leave(p *peer) {
	h.mu.Lock()
	delete(h.peers, p.id)
	h.broadcastLocked(mustJSON(protocol.PeerLeftMsg{Type: protocol.TypePeerLeft, ProtocolVersion: protocol.Version, PeerID: p.id}), "")
	h.mu.Unlock()
}

func (h *Hub) recordSession(p *peer, event, reason string) {
	for _, s := range h.session {
		s.RecordSession(p.id, p.name, event, reason)
	}
}

func (h *Hub) logf(format string, args ...any) {
	if h.log != nil {
		h.log.Printf(format, args...)
	}
}

func reject(conn *websocket.Conn, code, msg string) {
	_ = conn.SetWriteDeadline(time.Now().Add(time.Second))
	if b := mustJSON(protocol.NewError(code, msg)); b != nil {
		_ = conn.WriteMessage(websocket.TextMessage, b)
	}
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, msg), time.Now().Add(time.Second))
}

// mustJSON marshals a protocol message. Messages hold plain data, so a
// failure (e.g. a NaN position) yields nil, which send drops.
func mustJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}
