package ws

import (
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"seadrift.ai/internal/protocol"
	"seadrift.ai/internal/scene"
	"seadrift.ai/internal/sim/world"
)

type fakeWorld struct {
	cfg    world.WorldConfig
	inputs chan world.Input
}

func newFakeWorld() *fakeWorld {
	return &fakeWorld{cfg: world.DefaultConfig("ocean_test", 42), inputs: make(chan world.Input, 8)}
}

func (f *fakeWorld) ID() string                 { return f.cfg.ID }
func (f *fakeWorld) Config() world.WorldConfig  { return f.cfg }
func (f *fakeWorld) Inputs() chan<- world.Input { return f.inputs }

type memSessions struct {
	mu     sync.Mutex
	events []string
}

func (m *memSessions) RecordSession(peerID, name, event, reason string) {
	m.mu.Lock()
	m.events = append(m.events, name+":"+event)
	m.mu.Unlock()
}

func (m *memSessions) snapshot() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.events...)
}

func startHub(t *testing.T, cfg Config) (*Hub, *fakeWorld, string) {
	t.Helper()
	fw := newFakeWorld()
	h := NewHub(cfg, nil)
	h.Bind(fw, "digest123")
	srv := httptest.NewServer(h.Handler())
	t.Cleanup(srv.Close)
	return h, fw, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func writeMsg(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	b, _ := json.Marshal(v)
	if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
		t.Fatalf("write: %v", err)
	}
}

// readType reads until a message of type typ arrives and decodes it into out.
func readType(t *testing.T, conn *websocket.Conn, typ string, out any) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for %s: %v", typ, err)
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if base.Type == typ {
			if err := json.Unmarshal(msg, out); err != nil {
				t.Fatalf("unmarshal %s: %v", typ, err)
			}
			return
		}
	}
}

func join(t *testing.T, url, name string) (*websocket.Conn, protocol.WelcomeMsg) {
	t.Helper()
	conn := dial(t, url)
	writeMsg(t, conn, protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: protocol.Version, Name: name})
	var w protocol.WelcomeMsg
	readType(t, conn, protocol.TypeWelcome, &w)
	return conn, w
}

func TestHelloWelcome(t *testing.T) {
	_, _, url := startHub(t, Config{})
	_, w := join(t, url, "ana")
	if _, err := uuid.Parse(w.PeerID); err != nil {
		t.Fatalf("peer id %q: %v", w.PeerID, err)
	}
	if w.WorldID != "ocean_test" || w.WorldParams.Seed != 42 || w.WorldParams.ChunkSize != 50 || w.WorldParams.ChunksVisible != 2 {
		t.Fatalf("welcome: %+v", w)
	}
	if w.WorldParams.Metric != "chebyshev" || w.WorldParams.TuningDigest != "digest123" {
		t.Fatalf("params: %+v", w.WorldParams)
	}
}

func TestHelloRejectsBadVersion(t *testing.T) {
	_, _, url := startHub(t, Config{})
	conn := dial(t, url)
	writeMsg(t, conn, protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: "0.1", Name: "old"})
	var e protocol.ErrorMsg
	readType(t, conn, protocol.TypeError, &e)
	if e.Code != protocol.ErrProtoVersion {
		t.Fatalf("code=%q", e.Code)
	}
}

func TestHelloRequired(t *testing.T) {
	_, _, url := startHub(t, Config{})
	conn := dial(t, url)
	writeMsg(t, conn, protocol.InputMsg{Type: protocol.TypeInput, ProtocolVersion: protocol.Version, Forward: true})
	var e protocol.ErrorMsg
	readType(t, conn, protocol.TypeError, &e)
	if e.Code != protocol.ErrProtoBadRequest {
		t.Fatalf("code=%q", e.Code)
	}
}

func TestPoseRelayedToOtherPeers(t *testing.T) {
	_, _, url := startHub(t, Config{})
	a, wa := join(t, url, "a")
	b, _ := join(t, url, "b")

	writeMsg(t, a, protocol.PoseMsg{
		Type:            protocol.TypePose,
		ProtocolVersion: protocol.Version,
		PeerID:          "spoofed",
		Position:        [3]float64{3, 0.7, -12},
		Rotation:        [3]float64{0.05, 0, -0.1},
	})
	var got protocol.PoseMsg
	readType(t, b, protocol.TypePose, &got)
	if got.PeerID != wa.PeerID {
		t.Fatalf("pose peer=%q want %q", got.PeerID, wa.PeerID)
	}
	if got.Position != [3]float64{3, 0.7, -12} || got.Rotation != [3]float64{0.05, 0, -0.1} {
		t.Fatalf("pose: %+v", got)
	}
}

func TestPoseRateLimited(t *testing.T) {
	h, _, url := startHub(t, Config{PoseWindow: time.Hour, PoseMax: 2})
	a, _ := join(t, url, "a")
	b, _ := join(t, url, "b")
	for i := 0; i < 5; i++ {
		writeMsg(t, a, protocol.PoseMsg{Type: protocol.TypePose, ProtocolVersion: protocol.Version, Position: [3]float64{float64(i), 0, 0}})
	}
	// The relayed poses arrive in order; the third and later are dropped.
	for i := 0; i < 2; i++ {
		var got protocol.PoseMsg
		readType(t, b, protocol.TypePose, &got)
		if got.Position[0] != float64(i) {
			t.Fatalf("pose %d: %+v", i, got)
		}
	}
	deadline := time.Now().Add(2 * time.Second)
	for h.Stats().PosesLimited < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("stats: %+v", h.Stats())
		}
		time.Sleep(5 * time.Millisecond)
	}
	if st := h.Stats(); st.PosesRelayed != 2 {
		t.Fatalf("relayed=%d", st.PosesRelayed)
	}
}

func TestPoseRateLimitReportedOncePerWindow(t *testing.T) {
	_, _, url := startHub(t, Config{PoseWindow: time.Hour, PoseMax: 1})
	a, _ := join(t, url, "a")
	for i := 0; i < 4; i++ {
		writeMsg(t, a, protocol.PoseMsg{Type: protocol.TypePose, ProtocolVersion: protocol.Version})
	}
	// A HELLO after the handshake is answered in order, after any
	// rate-limit errors for the poses above.
	writeMsg(t, a, protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: protocol.Version, Name: "again"})

	var codes []string
	_ = a.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		_, msg, err := a.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v (codes so far %v)", err, codes)
		}
		var e protocol.ErrorMsg
		if err := json.Unmarshal(msg, &e); err != nil || e.Type != protocol.TypeError {
			continue
		}
		codes = append(codes, e.Code)
		if e.Code == protocol.ErrRateLimit && (e.RetryAfterMs <= 0 || e.RetryAfterMs > time.Hour.Milliseconds()) {
			t.Fatalf("retry_after_ms=%d", e.RetryAfterMs)
		}
		if e.Code == protocol.ErrBadRequest {
			break
		}
	}
	if len(codes) != 2 || codes[0] != protocol.ErrRateLimit {
		t.Fatalf("codes: %v", codes)
	}
}

func TestInputReachesWorld(t *testing.T) {
	_, fw, url := startHub(t, Config{})
	a, _ := join(t, url, "a")
	writeMsg(t, a, protocol.InputMsg{Type: protocol.TypeInput, ProtocolVersion: protocol.Version, Forward: true, Right: true})
	select {
	case in := <-fw.inputs:
		if in != (world.Input{Forward: true, Right: true}) {
			t.Fatalf("input: %+v", in)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("no input delivered")
	}
}

func TestLateJoinerGetsLiveScene(t *testing.T) {
	h, _, url := startHub(t, Config{})
	h.Add(scene.Object{ID: "chunk:0,0", Kind: scene.KindChunk, Pos: mgl64.Vec3{0, 0, 0}})
	h.Add(scene.Object{ID: "chunk:1,0", Kind: scene.KindChunk, Pos: mgl64.Vec3{50, 0, 0}})
	h.Remove(scene.Object{ID: "chunk:0,0", Kind: scene.KindChunk})

	a, _ := join(t, url, "a")
	var sc protocol.SceneMsg
	readType(t, a, protocol.TypeScene, &sc)
	if sc.Op != scene.OpAdd || sc.Object.ID != "chunk:1,0" {
		t.Fatalf("replayed scene: %+v", sc)
	}

	h.Remove(scene.Object{ID: "chunk:1,0", Kind: scene.KindChunk})
	readType(t, a, protocol.TypeScene, &sc)
	if sc.Op != scene.OpRemove || sc.Object.ID != "chunk:1,0" {
		t.Fatalf("live scene: %+v", sc)
	}
}

func TestLateJoinerReplayExceedsOutQueue(t *testing.T) {
	h, _, url := startHub(t, Config{OutQueue: 8})
	const side = 35
	for cx := 0; cx < side; cx++ {
		for cz := 0; cz < side; cz++ {
			h.Add(scene.Object{ID: fmt.Sprintf("chunk:%d,%d", cx, cz), Kind: scene.KindChunk, Pos: mgl64.Vec3{float64(cx) * 50, 0, float64(cz) * 50}})
		}
	}

	a, _ := join(t, url, "a")
	seen := map[string]bool{}
	for len(seen) < side*side {
		var sc protocol.SceneMsg
		readType(t, a, protocol.TypeScene, &sc)
		if sc.Op != scene.OpAdd || seen[sc.Object.ID] {
			t.Fatalf("replay op %+v (seen %d)", sc, len(seen))
		}
		seen[sc.Object.ID] = true
	}
	if st := h.Stats(); st.OutDropped != 0 {
		t.Fatalf("dropped %d messages during replay", st.OutDropped)
	}
}

func TestStateBroadcast(t *testing.T) {
	h, _, url := startHub(t, Config{})
	a, _ := join(t, url, "a")
	h.ObserveTick(world.View{Tick: 9, Score: 110, Collectibles: 2, Vehicle: "board", Loaded: 25})
	var st protocol.StateMsg
	readType(t, a, protocol.TypeState, &st)
	if st.Tick != 9 || st.Score != 110 || st.Vehicle != "board" || st.Loaded != 25 {
		t.Fatalf("state: %+v", st)
	}
}

func TestPeerLeftAndSessions(t *testing.T) {
	h, _, url := startHub(t, Config{})
	sessions := &memSessions{}
	h.AddSessionSink(sessions)

	a, _ := join(t, url, "a")
	b, wb := join(t, url, "b")
	_ = b.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = b.Close()

	var left protocol.PeerLeftMsg
	readType(t, a, protocol.TypePeerLeft, &left)
	if left.PeerID != wb.PeerID {
		t.Fatalf("left=%q want %q", left.PeerID, wb.PeerID)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		ev := sessions.snapshot()
		if len(ev) == 3 {
			if ev[0] != "a:join" || ev[1] != "b:join" || ev[2] != "b:leave" {
				t.Fatalf("sessions: %v", ev)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("sessions: %v", ev)
		}
		time.Sleep(5 * time.Millisecond)
	}
	if n := h.Stats().Peers; n != 1 {
		t.Fatalf("peers=%d", n)
	}
}

func TestServerFull(t *testing.T) {
	_, _, url := startHub(t, Config{MaxPeers: 1})
	join(t, url, "a")
	conn := dial(t, url)
	writeMsg(t, conn, protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: protocol.Version, Name: "b"})
	var e protocol.ErrorMsg
	readType(t, conn, protocol.TypeError, &e)
	if e.Code != protocol.ErrServerFull {
		t.Fatalf("code=%q", e.Code)
	}
}
