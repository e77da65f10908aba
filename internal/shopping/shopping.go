// Package shopping is the shared shopping list, an exemplar consumer of
// the identity core: every row references local user IDs, never provider
// identity.
package shopping

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"homie/internal/database"
)

// Item is one shopping list entry.
type Item struct {
	ID          int64         `json:"id"`
	Name        string        `json:"name"`
	Completed   bool          `json:"completed"`
	AddedBy     int64         `json:"added_by"`
	CompletedBy sql.NullInt64 `json:"completed_by"`
	CreatedAt   time.Time     `json:"created_at"`
	CompletedAt sql.NullTime  `json:"completed_at"`
}

// Datastore handles database operations for shopping items.
type Datastore struct {
	db database.DBTX
}

// NewDatastore creates a new shopping datastore.
func NewDatastore(db database.DBTX) *Datastore {
	return &Datastore{db: db}
}

// List returns all items, open ones first, newest first within each group.
func (ds *Datastore) List(ctx context.Context) ([]*Item, error) {
	query := `
		SELECT id, item_name, completed, added_by, completed_by, created_at, completed_at
		FROM shopping_items
		ORDER BY completed, id DESC`

	rows, err := ds.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list shopping items: %w", err)
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		item := &Item{}
		var completed sql.NullBool
		if err := rows.Scan(
			&item.ID, &item.Name, &completed, &item.AddedBy,
			&item.CompletedBy, &item.CreatedAt, &item.CompletedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan shopping item: %w", err)
		}
		item.Completed = completed.Valid && completed.Bool
		items = append(items, item)
	}
	return items, rows.Err()
}

// Add inserts a new open item on behalf of the given user.
func (ds *Datastore) Add(ctx context.Context, name string, addedBy int64) (*Item, error) {
	query := `INSERT INTO shopping_items (item_name, added_by, created_at) VALUES (?, ?, ?)`

	now := time.Now()
	result, err := ds.db.ExecContext(ctx, query, name, addedBy, now)
	if err != nil {
		return nil, fmt.Errorf("failed to add shopping item: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &Item{ID: id, Name: name, AddedBy: addedBy, CreatedAt: now}, nil
}

// Complete marks an item done, recording who completed it and when.
func (ds *Datastore) Complete(ctx context.Context, id, completedBy int64) error {
	query := `
		UPDATE shopping_items
		SET completed = TRUE, completed_by = ?, completed_at = ?
		WHERE id = ?`

	result, err := ds.db.ExecContext(ctx, query, completedBy, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to complete shopping item: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// OpenCount returns the number of uncompleted items.
func (ds *Datastore) OpenCount(ctx context.Context) (int, error) {
	query := `SELECT COUNT(*) FROM shopping_items WHERE completed = 0 OR completed IS NULL`

	var count int
	if err := ds.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count open shopping items: %w", err)
	}
	return count, nil
}
