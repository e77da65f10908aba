package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"homie/internal/database"
	"homie/internal/policy"
	"homie/internal/supabase"
)

// Domain errors
var (
	ErrNotFound          = errors.New("user not found")
	ErrInvalidEmail      = errors.New("invalid email")
	ErrInvalidIdentity   = errors.New("invalid external identity")
	ErrReconcileConflict = errors.New("conflicting user records during reconciliation")
)

// Manager handles business logic for users, foremost the reconciliation of
// provider identities with local rows.
type Manager struct {
	ds *Datastore
}

// NewManager creates a new user manager.
func NewManager(ds *Datastore) *Manager {
	return &Manager{ds: ds}
}

// Reconcile maps a provider-asserted identity to exactly one local user,
// creating or updating it. Called on every successful provider login, after
// the access policy has allowed the email.
//
// Lookup order is supabase_id first, then email: an email hit is a
// pre-provider row whose supabase_id gets backfilled once. The admin flag
// is recomputed from policy on every call, never sticky.
//
// Reconciliation is idempotent per external identity. If a concurrent
// first-time login wins the insert race, the uniqueness violation is
// recovered by re-reading and returning the winner's row.
func (m *Manager) Reconcile(ctx context.Context, identity *supabase.Identity, ac *policy.AccessControl) (*User, error) {
	if identity == nil || identity.ID == "" {
		return nil, ErrInvalidIdentity
	}
	email := strings.TrimSpace(identity.Email)
	if email == "" {
		return nil, ErrInvalidEmail
	}

	fullName := metaString(identity.Metadata, "full_name")
	if fullName == "" {
		fullName = metaString(identity.Metadata, "name")
	}
	if fullName == "" {
		fullName = emailLocalPart(email)
	}
	username := metaString(identity.Metadata, "username")
	if username == "" {
		username = emailLocalPart(email)
	}

	isAdmin := ac.IsAdmin(email)
	now := time.Now()

	existing, err := m.lookup(ctx, identity.ID, email)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		if err := m.ds.UpdateLoginInfo(ctx, existing.ID, fullName, isAdmin, now); err != nil {
			return nil, fmt.Errorf("failed to update login info: %w", err)
		}
		existing.FullName = fullName
		existing.IsAdmin = isAdmin
		existing.LastLogin = sql.NullTime{Time: now, Valid: true}
		return existing, nil
	}

	created := &User{
		Username:   username,
		Email:      email,
		FullName:   fullName,
		IsAdmin:    isAdmin,
		SupabaseID: identity.ID,
		LastLogin:  sql.NullTime{Time: now, Valid: true},
		CreatedAt:  now,
	}

	if err := m.ds.Insert(ctx, created); err != nil {
		if database.IsUniqueViolation(err) {
			// Lost a concurrent first-time registration race. The other
			// login created the row; resolve to it instead of failing.
			winner, lookupErr := m.lookup(ctx, identity.ID, email)
			if lookupErr != nil {
				return nil, lookupErr
			}
			if winner == nil {
				return nil, ErrReconcileConflict
			}
			return winner, nil
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return created, nil
}

// lookup finds a user by supabase_id, falling back to email for rows that
// predate the provider migration. The email hit is linked to the external
// identity before being returned.
func (m *Manager) lookup(ctx context.Context, supabaseID, email string) (*User, error) {
	u, err := m.ds.GetBySupabaseID(ctx, supabaseID)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to look up user by supabase id: %w", err)
	}

	u, err = m.ds.GetByEmail(ctx, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up user by email: %w", err)
	}

	if err := m.ds.LinkSupabaseID(ctx, u.ID, supabaseID); err != nil {
		return nil, fmt.Errorf("failed to link supabase id: %w", err)
	}
	u.SupabaseID = supabaseID
	return u, nil
}

// GetByID retrieves a user by local ID.
func (m *Manager) GetByID(ctx context.Context, id int64) (*User, error) {
	u, err := m.ds.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// TouchActivity records protected-route traffic against the user.
func (m *Manager) TouchActivity(ctx context.Context, id int64) error {
	return m.ds.TouchActivity(ctx, id, time.Now())
}

// List retrieves all local users.
func (m *Manager) List(ctx context.Context) ([]*User, error) {
	return m.ds.List(ctx)
}

func metaString(meta map[string]any, key string) string {
	if meta == nil {
		return ""
	}
	s, _ := meta[key].(string)
	return s
}

func emailLocalPart(email string) string {
	if i := strings.Index(email, "@"); i > 0 {
		return email[:i]
	}
	return email
}
