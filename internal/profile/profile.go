// Package profile defines the per-user taste profile and the rules for how a
// profile evolves as title batches arrive from the two streaming sources.
package profile

import (
	"fmt"
	"time"

	"github.com/kalambet/tastetwin/internal/vectors"
)

// Profile is one user's stored taste record. ID is the authenticated
// principal id supplied by the API layer and never changes once created.
type Profile struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName"`
	Embedding   []float32 `json:"-"`

	// PrimarySource is the service type of the first submission. Once
	// BothSourcesObtained is true the embedding blends both sources and the
	// profile no longer accepts merges.
	PrimarySource       string    `json:"primarySource"`
	BothSourcesObtained bool      `json:"bothSourcesObtained"`
	CreatedAt           time.Time `json:"createdAt"`
	UpdatedAt           time.Time `json:"updatedAt"`
}

// HasEmbedding reports whether the profile has absorbed at least one
// submission.
func (p Profile) HasEmbedding() bool {
	return len(p.Embedding) > 0
}

// Outcome reports how a submission changed a profile.
type Outcome string

const (
	// OutcomeCreated: first submission for this id.
	OutcomeCreated Outcome = "created"
	// OutcomeUpdated: re-submission of the primary source before completion;
	// the new embedding supersedes the old one outright.
	OutcomeUpdated Outcome = "updated"
	// OutcomeCompleted: second distinct source arrived; embeddings are
	// mean-combined and the profile is final.
	OutcomeCompleted Outcome = "completed"
	// OutcomeAlreadyComplete: profile already holds both sources; the
	// submission is accepted but nothing changes.
	OutcomeAlreadyComplete Outcome = "already_complete"
)

// Merge applies one submission to a profile, returning the resulting state.
// existing is nil on first submission. incoming is the already-combined
// profile-level embedding for this batch; source is its service type.
//
// The decision is pure: identity fields and timestamps are the caller's
// concern, and nothing is persisted here.
//
//	existing  both  source == primary  action
//	none      -     -                  create, primary = source
//	present   yes   -                  no-op, already complete
//	present   no    yes                overwrite embedding
//	present   no    no                 mean-combine, mark complete
//
// Re-submission of the same source overwrites rather than accumulates, so
// repeated single-source submissions cannot drift the profile.
func Merge(existing *Profile, incoming []float32, source string) (Profile, Outcome, error) {
	if existing == nil {
		return Profile{
			Embedding:     incoming,
			PrimarySource: source,
		}, OutcomeCreated, nil
	}

	p := *existing
	if p.BothSourcesObtained {
		return p, OutcomeAlreadyComplete, nil
	}

	if p.HasEmbedding() && len(incoming) != len(p.Embedding) {
		return Profile{}, "", fmt.Errorf(
			"incoming embedding has dimension %d, stored profile has %d: %w",
			len(incoming), len(p.Embedding), vectors.ErrDimensionMismatch)
	}

	if p.PrimarySource == source {
		p.Embedding = incoming
		return p, OutcomeUpdated, nil
	}

	combined, err := vectors.Combine([][]float32{p.Embedding, incoming})
	if err != nil {
		return Profile{}, "", fmt.Errorf("combining source embeddings: %w", err)
	}
	p.Embedding = combined
	p.BothSourcesObtained = true
	return p, OutcomeCompleted, nil
}
