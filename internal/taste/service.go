// Package taste implements the matching service's use-cases: absorbing title
// submissions into profiles, ranking similar users, and pairwise similarity.
package taste

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/tastetwin/internal/embedding"
	"github.com/kalambet/tastetwin/internal/matching"
	"github.com/kalambet/tastetwin/internal/profile"
	"github.com/kalambet/tastetwin/internal/storage"
	"github.com/kalambet/tastetwin/internal/vectors"
)

var (
	// ErrInvalidInput marks requests rejected before any external call:
	// empty titles, unrecognized service types, non-positive k, corrupt
	// embedding dimensions.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUpstream marks embedding-provider failures. They propagate with
	// their original message; retry policy belongs to the caller.
	ErrUpstream = errors.New("embedding provider error")

	// ErrNoOtherProfiles is returned when ranking has nobody to compare
	// against.
	ErrNoOtherProfiles = errors.New("no other profiles to compare")
)

// Identity is the authenticated principal acting on a request. The API layer
// verifies it; the service never authenticates.
type Identity struct {
	ID    string
	Email string
}

// Store is the persistence surface the service needs. Implemented by
// storage.Store.
type Store interface {
	GetProfile(id string) (profile.Profile, error)
	SaveSubmission(p profile.Profile, sub storage.Submission) error
	ListProfilesExcept(id string) ([]profile.Profile, error)
	ListSubmissions(profileID string, limit int) ([]storage.Submission, error)
}

// Service wires the embedding provider, profile merge rules, and ranking
// over a profile store. All methods are safe for concurrent use; the
// documented lost-update race on simultaneous submissions for one id is the
// store's find-then-save semantics, not shared state here.
type Service struct {
	store    Store
	provider embedding.Provider
	sources  []string
	now      func() time.Time
}

// NewService creates a Service. sources lists the recognized service type
// names (exactly two in practice; the service only compares for equality).
func NewService(store Store, provider embedding.Provider, sources []string) *Service {
	return &Service{
		store:    store,
		provider: provider,
		sources:  sources,
		now:      time.Now,
	}
}

// SubmitResult reports what a submission did to the caller's profile.
type SubmitResult struct {
	Outcome profile.Outcome
	Profile profile.Profile
}

// SubmitTitles embeds a title batch for one service type and merges the
// combined vector into the caller's profile. The merge-then-save is
// all-or-nothing: a failed save leaves the stored profile untouched.
func (s *Service) SubmitTitles(ctx context.Context, ident Identity, source string, titles []string, displayName string) (SubmitResult, error) {
	if len(titles) == 0 {
		return SubmitResult{}, fmt.Errorf("titles must not be empty: %w", ErrInvalidInput)
	}
	if !s.recognized(source) {
		return SubmitResult{}, fmt.Errorf("unrecognized service type %q (recognized: %v): %w", source, s.sources, ErrInvalidInput)
	}

	titleVecs, err := s.provider.EmbedTitles(ctx, titles)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("%w: %w", ErrUpstream, err)
	}

	combined, err := vectors.Combine(titleVecs)
	if err != nil {
		// The provider returned malformed output for a valid request.
		return SubmitResult{}, fmt.Errorf("combining title embeddings: %w: %w", ErrInvalidInput, err)
	}

	var existing *profile.Profile
	stored, err := s.store.GetProfile(ident.ID)
	switch {
	case err == nil:
		existing = &stored
	case errors.Is(err, storage.ErrNotFound):
		// First submission for this id.
	default:
		return SubmitResult{}, fmt.Errorf("loading profile %s: %w", ident.ID, err)
	}

	merged, outcome, err := profile.Merge(existing, combined, source)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("merging submission: %w: %w", ErrInvalidInput, err)
	}

	if outcome == profile.OutcomeAlreadyComplete {
		// Accepted but nothing to persist; the profile is final.
		slog.Info("submission ignored, profile complete", "profile", ident.ID, "source", source)
		return SubmitResult{Outcome: outcome, Profile: merged}, nil
	}

	now := s.now().UTC()
	merged.ID = ident.ID
	merged.Email = ident.Email
	merged.UpdatedAt = now
	if outcome == profile.OutcomeCreated {
		merged.CreatedAt = now
	}
	if displayName != "" {
		merged.DisplayName = displayName
	}

	sub := storage.Submission{
		ID:         uuid.New().String(),
		ProfileID:  ident.ID,
		Source:     source,
		TitleCount: len(titles),
		Outcome:    string(outcome),
		CreatedAt:  now,
	}
	if err := s.store.SaveSubmission(merged, sub); err != nil {
		return SubmitResult{}, fmt.Errorf("saving profile %s: %w", ident.ID, err)
	}

	slog.Info("profile submission saved",
		"profile", ident.ID,
		"source", source,
		"titles", len(titles),
		"outcome", outcome,
	)
	return SubmitResult{Outcome: outcome, Profile: merged}, nil
}

// SimilarUsers ranks every other profile against the subject and returns the
// top k. A subject without a stored embedding is reported as not found, the
// same as a missing profile.
func (s *Service) SimilarUsers(_ context.Context, id string, k int) (matching.RankResult, error) {
	if k < 1 {
		return matching.RankResult{}, fmt.Errorf("%w: %w", ErrInvalidInput, matching.ErrInvalidK)
	}

	subject, err := s.store.GetProfile(id)
	if err != nil {
		return matching.RankResult{}, fmt.Errorf("loading profile %s: %w", id, err)
	}
	if !subject.HasEmbedding() {
		return matching.RankResult{}, fmt.Errorf("profile %s has no embedding yet: %w", id, storage.ErrNotFound)
	}

	others, err := s.store.ListProfilesExcept(id)
	if err != nil {
		return matching.RankResult{}, fmt.Errorf("listing candidate profiles: %w", err)
	}
	if len(others) == 0 {
		return matching.RankResult{}, ErrNoOtherProfiles
	}

	candidates := make([]matching.Candidate, len(others))
	for i, p := range others {
		candidates[i] = matching.Candidate{
			ID:          p.ID,
			Email:       p.Email,
			DisplayName: p.DisplayName,
			Embedding:   p.Embedding,
		}
	}

	result, err := matching.TopK(subject.Embedding, candidates, k)
	if err != nil {
		// A degenerate subject embedding (zero magnitude) is the caller's
		// data problem, the same class as in SimilarityBetween.
		return matching.RankResult{}, fmt.Errorf("ranking against profile %s: %w: %w", id, ErrInvalidInput, err)
	}
	return result, nil
}

// SimilarityBetween returns the cosine similarity of two profiles. Either
// side missing a profile or an embedding is a not-found condition naming the
// offending id.
func (s *Service) SimilarityBetween(_ context.Context, idA, idB string) (float32, error) {
	a, err := s.loadRankable(idA)
	if err != nil {
		return 0, err
	}
	b, err := s.loadRankable(idB)
	if err != nil {
		return 0, err
	}

	sim, err := matching.Pairwise(a.Embedding, b.Embedding)
	if err != nil {
		return 0, fmt.Errorf("comparing %s and %s: %w: %w", idA, idB, ErrInvalidInput, err)
	}
	return sim, nil
}

// Submissions returns the audit trail for a profile, most recent first.
func (s *Service) Submissions(_ context.Context, id string, limit int) ([]storage.Submission, error) {
	if limit < 1 {
		limit = 20
	}
	return s.store.ListSubmissions(id, limit)
}

// GetProfile returns a stored profile, or storage.ErrNotFound.
func (s *Service) GetProfile(_ context.Context, id string) (profile.Profile, error) {
	return s.store.GetProfile(id)
}

func (s *Service) loadRankable(id string) (profile.Profile, error) {
	p, err := s.store.GetProfile(id)
	if err != nil {
		return profile.Profile{}, fmt.Errorf("loading profile %s: %w", id, err)
	}
	if !p.HasEmbedding() {
		return profile.Profile{}, fmt.Errorf("profile %s has no embedding yet: %w", id, storage.ErrNotFound)
	}
	return p, nil
}

func (s *Service) recognized(source string) bool {
	for _, known := range s.sources {
		if source == known {
			return true
		}
	}
	return false
}
