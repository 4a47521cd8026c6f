package signing

import (
	"testing"
	"time"
)

type payload struct {
	ID    string   `json:"id"`
	Codes []string `json:"codes"`
	At    string   `json:"at"`
}

func TestDigest_Deterministic(t *testing.T) {
	p := payload{ID: "c-1", Codes: []string{"F32.1"}, At: "2026-01-01T00:00:00Z"}
	a, err := Digest(p)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := Digest(p)
	if a != b {
		t.Error("digest must be deterministic")
	}
	if len(a) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(a))
	}

	p.Codes = []string{"F32.2"}
	c, _ := Digest(p)
	if c == a {
		t.Error("changing a field must change the digest")
	}
}

func TestTimestamp_TruncatesToStorePrecision(t *testing.T) {
	at := time.Date(2026, 5, 4, 10, 0, 0, 123456789, time.FixedZone("BRT", -3*3600))
	want := "2026-05-04T13:00:00.123456Z"
	if got := Timestamp(at); got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestMatches(t *testing.T) {
	if !Matches("abc", "abc") || Matches("abc", "abd") || Matches("abc", "ab") {
		t.Error("unexpected Matches result")
	}
}
