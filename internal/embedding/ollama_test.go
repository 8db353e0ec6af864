package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestOllama_EmbedTitles(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path != "/api/embed" {
			t.Errorf("path = %q, want /api/embed", r.URL.Path)
		}

		var req embedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		if req.Model != "nomic-embed-text" {
			t.Errorf("model = %q", req.Model)
		}

		// Echo a vector derived from the input so order is verifiable.
		var v float32
		if req.Input == "second" {
			v = 2
		} else {
			v = 1
		}
		json.NewEncoder(w).Encode(embedResponse{Embeddings: [][]float32{{v, 0}}})
	}))
	defer srv.Close()

	c := NewOllama(srv.URL, "")
	vecs, err := c.EmbedTitles(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("EmbedTitles: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("server saw %d calls, want 2", calls.Load())
	}
	if len(vecs) != 2 {
		t.Fatalf("got %d vectors, want 2", len(vecs))
	}
	if vecs[0][0] != 1 || vecs[1][0] != 2 {
		t.Errorf("vectors out of order: %v", vecs)
	}
}

func TestOllama_EmbedTitles_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewOllama(srv.URL, "missing-model")
	if _, err := c.EmbedTitles(context.Background(), []string{"a"}); err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestOllama_EmbedTitles_Empty(t *testing.T) {
	c := NewOllama("http://unused", "")
	vecs, err := c.EmbedTitles(context.Background(), nil)
	if err != nil {
		t.Fatalf("EmbedTitles: %v", err)
	}
	if vecs != nil {
		t.Errorf("got %v, want nil", vecs)
	}
}
