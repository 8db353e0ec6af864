package matching

import (
	"errors"
	"math"
	"testing"

	"github.com/kalambet/tastetwin/internal/vectors"
)

func TestTopK_DescendingOrder(t *testing.T) {
	subject := []float32{1, 0}
	candidates := []Candidate{
		{ID: "aligned", Embedding: []float32{1, 0}},
		{ID: "orthogonal", Embedding: []float32{0, 1}},
		{ID: "close", Embedding: []float32{0.9, 0.1}},
	}

	result, err := TopK(subject, candidates, 2)
	if err != nil {
		t.Fatalf("TopK: %v", err)
	}
	if len(result.Matches) != 2 {
		t.Fatalf("got %d matches, want 2", len(result.Matches))
	}
	// sim(aligned) = 1 beats sim(close) ≈ 0.994; orthogonal (sim 0) is cut.
	if result.Matches[0].ID != "aligned" {
		t.Errorf("first match = %q, want %q", result.Matches[0].ID, "aligned")
	}
	if result.Matches[1].ID != "close" {
		t.Errorf("second match = %q, want %q", result.Matches[1].ID, "close")
	}
	if math.Abs(float64(result.Matches[0].Similarity)-1) > 1e-5 {
		t.Errorf("first similarity = %f, want 1", result.Matches[0].Similarity)
	}
	if math.Abs(float64(result.Matches[1].Similarity)-0.9939) > 1e-3 {
		t.Errorf("second similarity = %f, want ≈0.994", result.Matches[1].Similarity)
	}
	if result.Truncated() {
		t.Error("Truncated() = true with 3 available and k=2")
	}
}

func TestTopK_FewerAvailableThanRequested(t *testing.T) {
	result, err := TopK([]float32{1, 0}, []Candidate{
		{ID: "a", Embedding: []float32{0.5, 0.5}},
	}, 5)
	if err != nil {
		t.Fatalf("TopK: %v", err)
	}
	if len(result.Matches) != 1 {
		t.Fatalf("got %d matches, want 1", len(result.Matches))
	}
	if !result.Truncated() {
		t.Error("Truncated() = false, want true")
	}
	if result.Requested != 5 || result.Available != 1 {
		t.Errorf("Requested/Available = %d/%d, want 5/1", result.Requested, result.Available)
	}
}

func TestTopK_SkipsUnrankableCandidates(t *testing.T) {
	result, err := TopK([]float32{1, 0}, []Candidate{
		{ID: "empty"},
		{ID: "wrong-dim", Embedding: []float32{1, 0, 0}},
		{ID: "zero", Embedding: []float32{0, 0}},
		{ID: "ok", Embedding: []float32{1, 1}},
	}, 10)
	if err != nil {
		t.Fatalf("TopK: %v", err)
	}
	if len(result.Matches) != 1 || result.Matches[0].ID != "ok" {
		t.Fatalf("matches = %+v, want only %q", result.Matches, "ok")
	}
	if result.Available != 1 {
		t.Errorf("Available = %d, want 1", result.Available)
	}
}

func TestTopK_TiesKeepInputOrder(t *testing.T) {
	// Same direction, different magnitudes: identical similarity.
	result, err := TopK([]float32{1, 1}, []Candidate{
		{ID: "first", Embedding: []float32{2, 2}},
		{ID: "second", Embedding: []float32{5, 5}},
		{ID: "third", Embedding: []float32{1, 1}},
	}, 3)
	if err != nil {
		t.Fatalf("TopK: %v", err)
	}
	want := []string{"first", "second", "third"}
	for i, id := range want {
		if result.Matches[i].ID != id {
			t.Errorf("match %d = %q, want %q", i, result.Matches[i].ID, id)
		}
	}
}

func TestTopK_InvalidK(t *testing.T) {
	for _, k := range []int{0, -3} {
		if _, err := TopK([]float32{1}, nil, k); !errors.Is(err, ErrInvalidK) {
			t.Errorf("k=%d: got %v, want ErrInvalidK", k, err)
		}
	}
}

func TestTopK_ZeroSubject(t *testing.T) {
	_, err := TopK([]float32{0, 0}, []Candidate{{ID: "a", Embedding: []float32{1, 0}}}, 1)
	if !errors.Is(err, vectors.ErrZeroMagnitude) {
		t.Errorf("got %v, want ErrZeroMagnitude", err)
	}
}

func TestTopK_EmptyCandidates(t *testing.T) {
	result, err := TopK([]float32{1, 0}, nil, 3)
	if err != nil {
		t.Fatalf("TopK: %v", err)
	}
	if len(result.Matches) != 0 || result.Available != 0 {
		t.Errorf("got %d matches, Available %d; want 0/0", len(result.Matches), result.Available)
	}
}

func TestPairwise(t *testing.T) {
	sim, err := Pairwise([]float32{1, 0}, []float32{1, 0})
	if err != nil {
		t.Fatalf("Pairwise: %v", err)
	}
	if math.Abs(float64(sim)-1) > 1e-5 {
		t.Errorf("Pairwise = %f, want 1", sim)
	}

	if _, err := Pairwise([]float32{1}, []float32{1, 0}); !errors.Is(err, vectors.ErrDimensionMismatch) {
		t.Errorf("got %v, want ErrDimensionMismatch", err)
	}
}
