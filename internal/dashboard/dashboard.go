// Package dashboard aggregates counts shown on the landing page.
package dashboard

import (
	"context"
	"fmt"

	"homie/internal/database"
)

// Stats holds the landing-page counters.
type Stats struct {
	ShoppingCount int     `json:"shopping_count"`
	ChoresCount   int     `json:"chores_count"`
	ExpiringCount int     `json:"expiring_count"`
	BillsTotal    float64 `json:"bills_total"`
}

// Store reads dashboard statistics.
type Store struct {
	db database.DBTX
}

// NewStore creates a new dashboard store.
func NewStore(db database.DBTX) *Store {
	return &Store{db: db}
}

// Stats returns the current counters: open shopping items, open chores,
// items expiring within 30 days, and the monthly bills total.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM shopping_items WHERE completed = 0 OR completed IS NULL`,
	).Scan(&stats.ShoppingCount)
	if err != nil {
		return nil, fmt.Errorf("failed to count shopping items: %w", err)
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM chores WHERE completed = 0 OR completed IS NULL`,
	).Scan(&stats.ChoresCount)
	if err != nil {
		return nil, fmt.Errorf("failed to count chores: %w", err)
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM expiry_items
		 WHERE expiry_date BETWEEN date('now') AND date('now', '+30 days')`,
	).Scan(&stats.ExpiringCount)
	if err != nil {
		return nil, fmt.Errorf("failed to count expiring items: %w", err)
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM bills`,
	).Scan(&stats.BillsTotal)
	if err != nil {
		return nil, fmt.Errorf("failed to total bills: %w", err)
	}

	return stats, nil
}
