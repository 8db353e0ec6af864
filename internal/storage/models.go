package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Submission is one audit record of a title batch applied to a profile.
type Submission struct {
	ID         string    `json:"id"`
	ProfileID  string    `json:"profileId"`
	Source     string    `json:"source"`
	TitleCount int       `json:"titleCount"`
	Outcome    string    `json:"outcome"`
	CreatedAt  time.Time `json:"createdAt"`
}
