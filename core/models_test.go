package core

import (
	"math"
	"testing"
)

func TestIDFromContent(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		wantSame bool
	}{
		{
			name:     "same content produces same ID",
			content:  "test content",
			wantSame: true,
		},
		{
			name:     "empty string",
			content:  "",
			wantSame: true,
		},
		{
			name:     "long content",
			content:  "This is a much longer piece of content that should still hash consistently",
			wantSame: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id1 := IDFromContent(tt.content)
			id2 := IDFromContent(tt.content)

			if tt.wantSame && id1 != id2 {
				t.Errorf("IDFromContent() produced different IDs for same content: %d vs %d", id1, id2)
			}
		})
	}
}

func TestIDFromContent_Different(t *testing.T) {
	id1 := IDFromContent("content1")
	id2 := IDFromContent("content2")

	if id1 == id2 {
		t.Errorf("IDFromContent() produced same ID for different content")
	}
}

func TestChunk_Clone(t *testing.T) {
	orig := &Chunk{Id: 1, DocumentId: 2, Content: "text", Score: 0.4}
	cp := orig.Clone()
	cp.Score = 0.9

	if orig.Score != 0.4 {
		t.Errorf("Clone() shares transient score, original now %v", orig.Score)
	}
	if cp.Id != orig.Id || cp.Content != orig.Content {
		t.Errorf("Clone() = %+v, want copy of %+v", cp, orig)
	}
}

func TestSelection(t *testing.T) {
	var empty Selection
	if empty.Active() || !empty.Allows(42) {
		t.Errorf("nil selection must admit everything")
	}
	if NewSelection() != nil {
		t.Errorf("NewSelection() with no ids should be nil")
	}

	sel := NewSelection(3, 1, 3)
	if !sel.Active() {
		t.Errorf("selection should be active")
	}
	if !sel.Allows(1) || sel.Allows(2) {
		t.Errorf("Allows() mismatch for %v", sel.IDs())
	}
	ids := sel.IDs()
	if len(ids) != 2 || ids[0] != 1 || ids[1] != 3 {
		t.Errorf("IDs() = %v, want [1 3]", ids)
	}
}

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0},
		{"length mismatch pads", []float32{1, 0, 0}, []float32{1, 0}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Cosine(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-6 {
				t.Errorf("Cosine() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNormalizeAndFit(t *testing.T) {
	n := Normalize([]float32{3, 4})
	if math.Abs(Norm(n)-1) > 1e-6 {
		t.Errorf("Normalize() norm = %v, want 1", Norm(n))
	}
	zero := Normalize([]float32{0, 0})
	if zero[0] != 0 || zero[1] != 0 {
		t.Errorf("Normalize() of zero vector = %v", zero)
	}

	if got := Fit([]float32{1, 2, 3}, 2); len(got) != 2 || got[1] != 2 {
		t.Errorf("Fit() truncate = %v", got)
	}
	if got := Fit([]float32{1}, 3); len(got) != 3 || got[2] != 0 {
		t.Errorf("Fit() pad = %v", got)
	}
}

func TestClamp01(t *testing.T) {
	for in, want := range map[float64]float64{-1: 0, 0.5: 0.5, 2: 1, math.NaN(): 0} {
		if got := Clamp01(in); got != want {
			t.Errorf("Clamp01(%v) = %v, want %v", in, got, want)
		}
	}
}
