package user

import (
	"database/sql"
	"time"
)

// User is the durable local record for one household member. Its ID is the
// foreign-key anchor for all application data; rows are never deleted.
type User struct {
	ID           int64        `json:"id"`
	Username     string       `json:"username"`
	Email        string       `json:"email"`
	FullName     string       `json:"full_name"`
	IsAdmin      bool         `json:"is_admin"`
	SupabaseID   string       `json:"supabase_id"`
	LastLogin    sql.NullTime `json:"last_login"`
	CreatedAt    time.Time    `json:"created_at"`
	LastActivity sql.NullTime `json:"last_activity"`
}
