// Package scene describes the render-graph mutations the simulation emits.
// Clients own the actual graph; this side only says what to add and remove.
package scene

import (
	"sync"

	"github.com/go-gl/mathgl/mgl64"
)

// Object kinds.
const (
	KindChunk  = "CHUNK"
	KindShark  = "SHARK"
	KindAurora = "AURORA"
)

// Ops.
const (
	OpAdd    = "ADD"
	OpRemove = "REMOVE"
)

// Object is one node of the render graph, addressed by a stable ID.
type Object struct {
	ID       string     `json:"id"`
	Kind     string     `json:"kind"`
	Pos      mgl64.Vec3 `json:"pos"`
	Material string     `json:"material,omitempty"`

	// Payload is the kind-specific content (e.g. generated chunk data).
	Payload any `json:"payload,omitempty"`
}

type Sink interface {
	Add(obj Object)
	Remove(obj Object)
}

type Op struct {
	Op     string `json:"op"`
	Object Object `json:"object"`
}

// Recorder keeps every op in order. Safe for concurrent use.
type Recorder struct {
	mu  sync.Mutex
	ops []Op
}

func (r *Recorder) Add(obj Object)    { r.push(OpAdd, obj) }
func (r *Recorder) Remove(obj Object) { r.push(OpRemove, obj) }

func (r *Recorder) push(op string, obj Object) {
	r.mu.Lock()
	r.ops = append(r.ops, Op{Op: op, Object: obj})
	r.mu.Unlock()
}

// Ops returns a copy of the recorded ops.
func (r *Recorder) Ops() []Op {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Op, len(r.ops))
	copy(out, r.ops)
	return out
}

// Drain returns the recorded ops and clears the buffer.
func (r *Recorder) Drain() []Op {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.ops
	r.ops = nil
	return out
}

// Live replays the recorded ops and returns the IDs still present.
func (r *Recorder) Live() map[string]Object {
	live := map[string]Object{}
	for _, op := range r.Ops() {
		switch op.Op {
		case OpAdd:
			live[op.Object.ID] = op.Object
		case OpRemove:
			delete(live, op.Object.ID)
		}
	}
	return live
}

// Fanout forwards every op to each non-nil sink in order.
type Fanout []Sink

func (f Fanout) Add(obj Object) {
	for _, s := range f {
		if s != nil {
			s.Add(obj)
		}
	}
}

func (f Fanout) Remove(obj Object) {
	for _, s := range f {
		if s != nil {
			s.Remove(obj)
		}
	}
}

type discard struct{}

func (discard) Add(Object)    {}
func (discard) Remove(Object) {}

// Discard drops every op.
var Discard Sink = discard{}
