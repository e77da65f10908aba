package user

import (
	"context"
	"database/sql"
	"time"

	"homie/internal/database"
)

// Datastore handles database operations for users.
type Datastore struct {
	db database.DBTX
}

// NewDatastore creates a new user datastore.
func NewDatastore(db database.DBTX) *Datastore {
	return &Datastore{db: db}
}

const userColumns = `id, username, email, full_name, is_admin, supabase_id, last_login, created_at, last_activity`

func scanUser(row *sql.Row) (*User, error) {
	u := &User{}
	var username, fullName, supabaseID sql.NullString
	err := row.Scan(
		&u.ID, &username, &u.Email, &fullName, &u.IsAdmin,
		&supabaseID, &u.LastLogin, &u.CreatedAt, &u.LastActivity,
	)
	if err != nil {
		return nil, err
	}
	// Legacy rows created before the supabase_id migration can hold NULL in
	// username, full_name and supabase_id; reconciliation fills them in.
	u.Username = username.String
	u.FullName = fullName.String
	u.SupabaseID = supabaseID.String
	return u, nil
}

// GetBySupabaseID retrieves a user by external identity reference.
func (ds *Datastore) GetBySupabaseID(ctx context.Context, supabaseID string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE supabase_id = ?`
	return scanUser(ds.db.QueryRowContext(ctx, query, supabaseID))
}

// GetByEmail retrieves a user by email.
func (ds *Datastore) GetByEmail(ctx context.Context, email string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = ?`
	return scanUser(ds.db.QueryRowContext(ctx, query, email))
}

// GetByID retrieves a user by local ID.
func (ds *Datastore) GetByID(ctx context.Context, id int64) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`
	return scanUser(ds.db.QueryRowContext(ctx, query, id))
}

// Insert creates a new user row and fills in the generated ID.
// A uniqueness violation on email or supabase_id is returned as-is for the
// caller to classify with database.IsUniqueViolation.
func (ds *Datastore) Insert(ctx context.Context, u *User) error {
	query := `
		INSERT INTO users (username, email, full_name, supabase_id, is_admin, last_login, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	result, err := ds.db.ExecContext(ctx, query,
		u.Username, u.Email, u.FullName, u.SupabaseID, u.IsAdmin,
		u.LastLogin.Time, u.CreatedAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	u.ID = id
	return nil
}

// LinkSupabaseID backfills the external identity reference on a row that
// predates the provider migration. One-time: subsequent reconciliations
// find the row by supabase_id directly.
func (ds *Datastore) LinkSupabaseID(ctx context.Context, id int64, supabaseID string) error {
	query := `UPDATE users SET supabase_id = ? WHERE id = ?`
	_, err := ds.db.ExecContext(ctx, query, supabaseID, id)
	return err
}

// UpdateLoginInfo refreshes the fields recomputed on every login.
func (ds *Datastore) UpdateLoginInfo(ctx context.Context, id int64, fullName string, isAdmin bool, lastLogin time.Time) error {
	query := `UPDATE users SET last_login = ?, full_name = ?, is_admin = ? WHERE id = ?`
	_, err := ds.db.ExecContext(ctx, query, lastLogin, fullName, isAdmin, id)
	return err
}

// TouchActivity updates the last-activity timestamp.
func (ds *Datastore) TouchActivity(ctx context.Context, id int64, at time.Time) error {
	query := `UPDATE users SET last_activity = ? WHERE id = ?`
	_, err := ds.db.ExecContext(ctx, query, at, id)
	return err
}

// List retrieves all users ordered by creation.
func (ds *Datastore) List(ctx context.Context) ([]*User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY id`

	rows, err := ds.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		u := &User{}
		var username, fullName, supabaseID sql.NullString
		if err := rows.Scan(
			&u.ID, &username, &u.Email, &fullName, &u.IsAdmin,
			&supabaseID, &u.LastLogin, &u.CreatedAt, &u.LastActivity,
		); err != nil {
			return nil, err
		}
		u.Username = username.String
		u.FullName = fullName.String
		u.SupabaseID = supabaseID.String
		users = append(users, u)
	}
	return users, rows.Err()
}
