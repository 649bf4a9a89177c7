package ws

import (
	"testing"
	"time"
)

func TestWindowAllow(t *testing.T) {
	w := window{span: time.Second, max: 2}
	t0 := time.Unix(100, 0)

	if ok, _ := w.allow(t0); !ok {
		t.Fatalf("first event rejected")
	}
	if ok, _ := w.allow(t0.Add(100 * time.Millisecond)); !ok {
		t.Fatalf("second event rejected")
	}
	ok, wait := w.allow(t0.Add(400 * time.Millisecond))
	if ok || wait != 600*time.Millisecond {
		t.Fatalf("third event: ok=%v wait=%v", ok, wait)
	}
	if ok, _ := w.allow(t0.Add(time.Second)); !ok {
		t.Fatalf("event after reset rejected")
	}
}

func TestWindowDisabled(t *testing.T) {
	var w window
	for i := 0; i < 1000; i++ {
		if ok, _ := w.allow(time.Unix(0, 0)); !ok {
			t.Fatalf("disabled window rejected event %d", i)
		}
	}
}
