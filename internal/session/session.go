// Package session mints and reads the signed cookie that proves a login.
//
// The artifact is entirely transport-held: no session table exists
// server-side, so logout is client-state clearing and an artifact stays
// valid until its absolute expiry.
package session

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// CookieName is the session cookie set at login.
const CookieName = "homie_session"

var (
	ErrNoSession      = errors.New("no session")
	ErrInvalidSession = errors.New("invalid session")
)

// Artifact carries the resolved local identity and its privileges.
// Created at login, reconstructed from the cookie on every request.
type Artifact struct {
	UserID      int64  `json:"user_id"`
	SupabaseID  string `json:"supabase_id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	FullName    string `json:"full_name"`
	IsAdmin     bool   `json:"is_admin"`
	AccessToken string `json:"access_token"`
}

type claims struct {
	jwt.RegisteredClaims
	Artifact
}

// Manager signs and verifies session cookies.
type Manager struct {
	secret   []byte
	lifetime time.Duration
	secure   bool
}

// NewManager creates a session manager. lifetime is the absolute cookie
// lifetime; secure controls the cookie's Secure flag.
func NewManager(secret []byte, lifetime time.Duration, secure bool) *Manager {
	return &Manager{secret: secret, lifetime: lifetime, secure: secure}
}

// Issue signs the artifact and sets it as the session cookie.
func (m *Manager) Issue(w http.ResponseWriter, artifact *Artifact) error {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.lifetime)),
		},
		Artifact: *artifact,
	})

	signed, err := token.SignedString(m.secret)
	if err != nil {
		return fmt.Errorf("failed to sign session: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    signed,
		Path:     "/",
		MaxAge:   int(m.lifetime.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Read reconstructs the artifact from the request's session cookie.
// Returns ErrNoSession when the cookie is absent and ErrInvalidSession when
// it fails verification (tampered, expired, wrong key).
func (m *Manager) Read(r *http.Request) (*Artifact, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return nil, ErrNoSession
	}

	parsed, err := jwt.ParseWithClaims(cookie.Value, &claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}

	c, ok := parsed.Claims.(*claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidSession
	}
	return &c.Artifact, nil
}

// Clear expires the session cookie.
func (m *Manager) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
