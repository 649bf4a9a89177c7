package ids

import "testing"

func TestEntityIDRoundTrip(t *testing.T) {
	id := EntityID("SHARK", 12)
	if id != "SHARK_12" {
		t.Fatalf("unexpected id %q", id)
	}
	n, ok := ParseEntityNum(id)
	if !ok || n != 12 {
		t.Fatalf("ParseEntityNum(%q) = %d,%v", id, n, ok)
	}
}

func TestParseEntityNumRejectsInvalid(t *testing.T) {
	for _, tc := range []string{"", "SHARK", "SHARK_", "SHARK_x", "_-1"} {
		if _, ok := ParseEntityNum(tc); ok {
			t.Fatalf("expected parse failure for %q", tc)
		}
	}
}

func TestMaxU64(t *testing.T) {
	if MaxU64(3, 9) != 9 || MaxU64(9, 3) != 9 {
		t.Fatalf("MaxU64 wrong")
	}
}
