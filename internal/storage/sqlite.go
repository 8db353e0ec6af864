// Package storage persists taste profiles and submission audit records in
// SQLite.
package storage

import (
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kalambet/tastetwin/internal/profile"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps a SQLite database with methods for profiles and submissions.
//
// Writes use find-then-save semantics per invocation; concurrent submissions
// for the same profile id can lose an update (last write wins). The single
// connection serializes writes within one process but is not a fix for that
// race.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database in dataDir and runs pending
// migrations. Pass ":memory:" as dataDir for an in-memory database (tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "tastetwin.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Single connection avoids "database is locked" errors.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate applies embedded SQL migrations that haven't been run yet.
func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		var version int
		if _, err := fmt.Sscanf(entry.Name(), "%d_", &version); err != nil {
			return fmt.Errorf("parsing migration version from %q: %w", entry.Name(), err)
		}

		var applied int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&applied); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if applied > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}
	return nil
}

const profileColumns = "id, email, display_name, embedding, primary_source, both_sources, created_at, updated_at"

// GetProfile returns the profile with the given id, or ErrNotFound.
func (s *Store) GetProfile(id string) (profile.Profile, error) {
	row := s.db.QueryRow("SELECT "+profileColumns+" FROM profiles WHERE id = ?", id)
	p, err := scanProfile(row)
	if err == sql.ErrNoRows {
		return profile.Profile{}, ErrNotFound
	}
	return p, err
}

// UpsertProfile inserts the profile or replaces all mutable fields of an
// existing row with the same id.
func (s *Store) UpsertProfile(p profile.Profile) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning upsert transaction: %w", err)
	}
	if err := upsertProfileTx(tx, p); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// SaveSubmission persists the merged profile and its submission audit record
// in one transaction, so a failed save leaves no partial mutation behind.
func (s *Store) SaveSubmission(p profile.Profile, sub Submission) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning submission transaction: %w", err)
	}
	if err := upsertProfileTx(tx, p); err != nil {
		tx.Rollback()
		return err
	}
	_, err = tx.Exec(`
		INSERT INTO submissions (id, profile_id, source, title_count, outcome, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		sub.ID, sub.ProfileID, sub.Source, sub.TitleCount, sub.Outcome,
		sub.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("inserting submission %s: %w", sub.ID, err)
	}
	return tx.Commit()
}

func upsertProfileTx(tx *sql.Tx, p profile.Profile) error {
	_, err := tx.Exec(`
		INSERT INTO profiles (`+profileColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			email = excluded.email,
			display_name = excluded.display_name,
			embedding = excluded.embedding,
			primary_source = excluded.primary_source,
			both_sources = excluded.both_sources,
			updated_at = excluded.updated_at`,
		p.ID, p.Email, p.DisplayName, encodeFloat32s(p.Embedding),
		p.PrimarySource, p.BothSourcesObtained,
		p.CreatedAt.UTC().Format(time.RFC3339), p.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("upserting profile %s: %w", p.ID, err)
	}
	return nil
}

// ListProfilesExcept returns all profiles other than the given id, in
// creation order. Creation order makes ranking ties deterministic.
func (s *Store) ListProfilesExcept(id string) ([]profile.Profile, error) {
	rows, err := s.db.Query(
		"SELECT "+profileColumns+" FROM profiles WHERE id != ? ORDER BY created_at ASC, id ASC", id)
	if err != nil {
		return nil, fmt.Errorf("querying profiles: %w", err)
	}
	defer rows.Close()

	var profiles []profile.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

// CountProfiles returns the total number of stored profiles.
func (s *Store) CountProfiles() (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM profiles").Scan(&count)
	return count, err
}

// ListSubmissions returns the most recent submission records for a profile.
func (s *Store) ListSubmissions(profileID string, limit int) ([]Submission, error) {
	rows, err := s.db.Query(`
		SELECT id, profile_id, source, title_count, outcome, created_at
		FROM submissions WHERE profile_id = ?
		ORDER BY created_at DESC, id DESC LIMIT ?`, profileID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying submissions: %w", err)
	}
	defer rows.Close()

	var subs []Submission
	for rows.Next() {
		var sub Submission
		var createdAt string
		if err := rows.Scan(&sub.ID, &sub.ProfileID, &sub.Source, &sub.TitleCount, &sub.Outcome, &createdAt); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at for submission %s: %w", sub.ID, err)
		}
		sub.CreatedAt = t
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanProfile(row scanner) (profile.Profile, error) {
	var p profile.Profile
	var blob []byte
	var createdAt, updatedAt string
	err := row.Scan(&p.ID, &p.Email, &p.DisplayName, &blob, &p.PrimarySource,
		&p.BothSourcesObtained, &createdAt, &updatedAt)
	if err != nil {
		return profile.Profile{}, err
	}

	if p.Embedding, err = decodeFloat32s(blob); err != nil {
		return profile.Profile{}, fmt.Errorf("decoding embedding for %s: %w", p.ID, err)
	}
	if p.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return profile.Profile{}, fmt.Errorf("parsing created_at for %s: %w", p.ID, err)
	}
	if p.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return profile.Profile{}, fmt.Errorf("parsing updated_at for %s: %w", p.ID, err)
	}
	return p, nil
}

// AppliedMigrations returns applied migration versions in ascending order.
func (s *Store) AppliedMigrations() ([]int, error) {
	rows, err := s.db.Query("SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}
