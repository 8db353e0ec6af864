// Package matching ranks candidate profiles by cosine similarity to a
// subject embedding.
package matching

import (
	"errors"
	"fmt"

	"github.com/kalambet/tastetwin/internal/vectors"
)

// ErrInvalidK is returned by TopK when k is not a positive integer.
var ErrInvalidK = errors.New("k must be a positive integer")

// Candidate is a profile eligible for ranking.
type Candidate struct {
	ID          string
	Email       string
	DisplayName string
	Embedding   []float32
}

// Match is a ranked candidate with its similarity to the subject.
type Match struct {
	ID          string  `json:"userId"`
	Email       string  `json:"email"`
	DisplayName string  `json:"displayName"`
	Similarity  float32 `json:"similarity"`
}

// RankResult is a descending-similarity ranking truncated to the requested
// size. Available counts the candidates that were actually rankable, so the
// caller can tell the user when fewer than Requested existed.
type RankResult struct {
	Matches   []Match
	Requested int
	Available int
}

// Truncated reports whether fewer candidates were available than requested.
func (r RankResult) Truncated() bool {
	return r.Available < r.Requested
}

// TopK ranks candidates against the subject embedding and returns the top k
// by cosine similarity, ties broken by input order. Candidates without an
// embedding, with a mismatched dimensionality, or with zero magnitude are
// skipped rather than scored as zero.
func TopK(subject []float32, candidates []Candidate, k int) (RankResult, error) {
	if k < 1 {
		return RankResult{}, fmt.Errorf("got %d: %w", k, ErrInvalidK)
	}
	if vectors.Norm(subject) == 0 {
		return RankResult{}, fmt.Errorf("subject embedding: %w", vectors.ErrZeroMagnitude)
	}

	matches := make([]Match, 0, min(k, len(candidates)))
	available := 0
	for _, c := range candidates {
		if len(c.Embedding) == 0 {
			continue
		}
		sim, err := vectors.Cosine(subject, c.Embedding)
		if err != nil {
			// Mismatched or degenerate candidate; not comparable.
			continue
		}
		available++
		matches = append(matches, Match{
			ID:          c.ID,
			Email:       c.Email,
			DisplayName: c.DisplayName,
			Similarity:  sim,
		})
	}

	sortBySimilarity(matches)
	if len(matches) > k {
		matches = matches[:k]
	}

	return RankResult{Matches: matches, Requested: k, Available: available}, nil
}

// sortBySimilarity sorts matches by similarity descending. Insertion sort
// with a strict comparison keeps equal scores in input order; the slices
// involved are top-K sized.
func sortBySimilarity(matches []Match) {
	for i := 1; i < len(matches); i++ {
		for j := i; j > 0 && matches[j].Similarity > matches[j-1].Similarity; j-- {
			matches[j], matches[j-1] = matches[j-1], matches[j]
		}
	}
}

// Pairwise returns the cosine similarity of two profile embeddings. Both
// must be present and of equal dimensionality; lookups and missing-profile
// handling are the caller's concern.
func Pairwise(a, b []float32) (float32, error) {
	return vectors.Cosine(a, b)
}
