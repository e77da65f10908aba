package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"

	"homie/internal/policy"
	"homie/internal/session"
	"homie/internal/supabase"
	"homie/internal/user"
)

// AuthProvider is the narrow contract against the hosted identity provider.
// This abstraction allows a mock implementation in tests.
type AuthProvider interface {
	SignInWithPassword(ctx context.Context, email, password string) (*supabase.Identity, error)
	SignOut(ctx context.Context, accessToken string) error
}

// Generic user-facing login failure messages. Denials never disclose
// whether an email exists, locally or at the provider.
const (
	msgServiceUnavailable = "Authentication service unavailable"
	msgInvalidCredentials = "Invalid email or password"
	msgAccessDenied       = "Access denied. You are not authorized."
	msgLoginFailed        = "Login failed. Please try again."
)

// AuthHandler handles login, logout, and the access-denied page.
type AuthHandler struct {
	provider AuthProvider
	users    *user.Manager
	sessions *session.Manager
	policy   *policy.AccessControl
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(provider AuthProvider, users *user.Manager, sessions *session.Manager, ac *policy.AccessControl) *AuthHandler {
	return &AuthHandler{provider: provider, users: users, sessions: sessions, policy: ac}
}

type loginPage struct {
	Error string
}

// LoginPage handles GET /login.
func (h *AuthHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	if _, err := h.sessions.Read(r); err == nil {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}
	render(w, http.StatusOK, "login.html", loginPage{})
}

// Login handles POST /login: provider authentication, policy evaluation,
// reconciliation, and session issuance, in that order. Nothing is persisted
// and no session exists until every step has passed.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if _, err := h.sessions.Read(r); err == nil {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}

	if err := r.ParseForm(); err != nil {
		render(w, http.StatusBadRequest, "login.html", loginPage{Error: msgInvalidCredentials})
		return
	}

	email := strings.TrimSpace(r.PostFormValue("email"))
	password := r.PostFormValue("password")
	if email == "" || password == "" {
		render(w, http.StatusBadRequest, "login.html", loginPage{Error: msgInvalidCredentials})
		return
	}

	identity, err := h.provider.SignInWithPassword(r.Context(), email, password)
	if err != nil {
		switch {
		case errors.Is(err, supabase.ErrUnavailable):
			log.Printf("login failed for %s: provider unavailable: %v", email, err)
			render(w, http.StatusServiceUnavailable, "login.html", loginPage{Error: msgServiceUnavailable})
		case errors.Is(err, supabase.ErrInvalidCredentials):
			log.Printf("login failed for %s: invalid credentials", email)
			render(w, http.StatusUnauthorized, "login.html", loginPage{Error: msgInvalidCredentials})
		default:
			log.Printf("login failed for %s: %v", email, err)
			render(w, http.StatusInternalServerError, "login.html", loginPage{Error: msgLoginFailed})
		}
		return
	}

	if !h.policy.Authorize(identity.Email) {
		// The provider session is live at this point. Revoke it before
		// reporting the denial so nothing stale survives the gate.
		if err := h.provider.SignOut(r.Context(), identity.AccessToken); err != nil {
			log.Printf("provider sign-out after denial failed for %s: %v", identity.Email, err)
		}
		log.Printf("login denied for %s: not in allowed list", identity.Email)
		render(w, http.StatusForbidden, "login.html", loginPage{Error: msgAccessDenied})
		return
	}

	localUser, err := h.users.Reconcile(r.Context(), identity, h.policy)
	if err != nil {
		log.Printf("reconciliation failed for %s: %v", identity.Email, err)
		render(w, http.StatusInternalServerError, "login.html", loginPage{Error: msgLoginFailed})
		return
	}

	artifact := &session.Artifact{
		UserID:      localUser.ID,
		SupabaseID:  localUser.SupabaseID,
		Username:    localUser.Username,
		Email:       localUser.Email,
		FullName:    localUser.FullName,
		IsAdmin:     localUser.IsAdmin,
		AccessToken: identity.AccessToken,
	}
	if err := h.sessions.Issue(w, artifact); err != nil {
		log.Printf("failed to issue session for %s: %v", identity.Email, err)
		render(w, http.StatusInternalServerError, "login.html", loginPage{Error: msgLoginFailed})
		return
	}

	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

// Logout handles GET /logout: best-effort provider sign-out, then client
// state clearing. There is no server-side session to revoke.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if artifact, err := h.sessions.Read(r); err == nil && artifact.AccessToken != "" {
		if err := h.provider.SignOut(r.Context(), artifact.AccessToken); err != nil {
			log.Printf("provider sign-out warning for %s: %v", artifact.Email, err)
		}
	}

	h.sessions.Clear(w)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// Index handles GET /.
func (h *AuthHandler) Index(w http.ResponseWriter, r *http.Request) {
	if _, err := h.sessions.Read(r); err == nil {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// Unauthorized handles GET /unauthorized.
func (h *AuthHandler) Unauthorized(w http.ResponseWriter, r *http.Request) {
	render(w, http.StatusOK, "unauthorized.html", nil)
}
