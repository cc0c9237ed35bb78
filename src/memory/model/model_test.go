package model

import (
	"encoding/json"
	"math"
	"testing"
)

func TestCosineSimilarity(t *testing.T) {
	cases := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 1}, []float32{-1, -1}, -1},
		{"length mismatch", []float32{1}, []float32{1, 2}, 0},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0},
		{"empty", nil, nil, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CosineSimilarity(tc.a, tc.b); math.Abs(got-tc.want) > 1e-9 {
				t.Fatalf("CosineSimilarity = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestMetadataRoundTrip(t *testing.T) {
	meta := map[string]any{"source": "notes.txt", "chunk_index": 2}
	decoded := DecodeMetadata(EncodeMetadata(meta))
	if decoded["source"] != "notes.txt" || decoded["chunk_index"].(float64) != 2 {
		t.Fatalf("unexpected metadata %v", decoded)
	}
	if len(DecodeMetadata("not json")) != 0 {
		t.Fatalf("invalid metadata should decode to an empty map")
	}
	if EncodeMetadata(nil) != "{}" {
		t.Fatalf("nil metadata should encode to {}")
	}
}

func TestCloneMetadataReturnsCopy(t *testing.T) {
	original := map[string]any{"foo": "bar"}
	cloned := CloneMetadata(original)
	cloned["foo"] = "baz"
	if original["foo"].(string) != "bar" {
		t.Fatal("expected original to remain unchanged")
	}
	if CloneMetadata(nil) != nil {
		t.Fatal("expected nil clone of nil map")
	}
}

func TestStringFromAny(t *testing.T) {
	if StringFromAny(json.Number("12")) != "12" || StringFromAny(3.5) != "3.5" || StringFromAny(nil) != "" {
		t.Fatalf("unexpected conversions")
	}
}
