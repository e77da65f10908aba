// Package feature reads and writes per-user feature visibility toggles.
package feature

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"

	"homie/internal/database"
)

// Names of the toggleable application areas.
const (
	Shopping = "shopping"
	Chores   = "chores"
	Tracker  = "tracker"
	Bills    = "bills"
	Budget   = "budget"
)

// Known lists every valid feature name.
var Known = []string{Shopping, Chores, Tracker, Bills, Budget}

// ErrUnknownFeature is returned when writing a toggle for a name that is
// not a known feature.
var ErrUnknownFeature = errors.New("unknown feature")

// Defaults returns the all-visible fallback map, used when the store is
// unreachable.
func Defaults() map[string]bool {
	visibility := make(map[string]bool, len(Known))
	for _, name := range Known {
		visibility[name] = true
	}
	return visibility
}

// Store handles database operations for feature visibility.
type Store struct {
	db database.DBTX
}

// NewStore creates a new feature store.
func NewStore(db database.DBTX) *Store {
	return &Store{db: db}
}

// Visibility returns the visibility map for a user. Features without an
// explicit row default to visible, so introducing a new feature never hides
// it from existing users.
func (s *Store) Visibility(ctx context.Context, userID int64) (map[string]bool, error) {
	visibility := make(map[string]bool, len(Known))
	for _, name := range Known {
		visibility[name] = true
	}

	query := `SELECT feature_name, visible FROM user_features WHERE user_id = ?`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load feature visibility: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		var visible bool
		if err := rows.Scan(&name, &visible); err != nil {
			return nil, fmt.Errorf("failed to scan feature row: %w", err)
		}
		visibility[name] = visible
	}
	return visibility, rows.Err()
}

// IsVisible reports whether the named feature is visible to the user.
//
// The toggle is a soft gate: on store failure it fails open and logs the
// fault, favoring availability over strict denial. Unknown names also
// default to visible.
func (s *Store) IsVisible(ctx context.Context, userID int64, name string) bool {
	query := `SELECT visible FROM user_features WHERE user_id = ? AND feature_name = ?`

	var visible bool
	err := s.db.QueryRowContext(ctx, query, userID, name).Scan(&visible)
	switch {
	case err == nil:
		return visible
	case errors.Is(err, sql.ErrNoRows):
		// No explicit row for this (user, feature): default visible.
		return true
	default:
		log.Printf("feature visibility lookup failed for user %d, feature %s: %v", userID, name, err)
		return true
	}
}

// Set upserts a visibility toggle. Only known feature names are accepted.
func (s *Store) Set(ctx context.Context, userID int64, name string, visible bool) error {
	if !isKnown(name) {
		return fmt.Errorf("%w: %s", ErrUnknownFeature, name)
	}

	query := `
		INSERT INTO user_features (user_id, feature_name, visible)
		VALUES (?, ?, ?)
		ON CONFLICT (user_id, feature_name) DO UPDATE SET visible = excluded.visible`

	if _, err := s.db.ExecContext(ctx, query, userID, name, visible); err != nil {
		return fmt.Errorf("failed to set feature visibility: %w", err)
	}
	return nil
}

func isKnown(name string) bool {
	for _, known := range Known {
		if name == known {
			return true
		}
	}
	return false
}
