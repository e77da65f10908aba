// Package middleware provides the per-request authorization guards.
package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"homie/internal/feature"
	"homie/internal/session"
	"homie/internal/user"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

// SessionContextKey is the context key for the authenticated session artifact.
const SessionContextKey contextKey = "session"

// GetSession retrieves the session artifact attached by a guard.
// Returns the artifact and true if found, nil and false otherwise.
func GetSession(ctx context.Context) (*session.Artifact, bool) {
	artifact, ok := ctx.Value(SessionContextKey).(*session.Artifact)
	return artifact, ok
}

// WithSession returns a context with the artifact attached, as the guards
// do after authentication.
func WithSession(ctx context.Context, artifact *session.Artifact) context.Context {
	return context.WithValue(ctx, SessionContextKey, artifact)
}

// Guard builds the request guards. Each guard authenticates from the
// session cookie alone; only the feature guard performs a live store
// lookup on top.
type Guard struct {
	sessions *session.Manager
	features *feature.Store
	users    *user.Manager
}

// NewGuard creates a guard set.
func NewGuard(sessions *session.Manager, features *feature.Store, users *user.Manager) *Guard {
	return &Guard{sessions: sessions, features: features, users: users}
}

// authenticate reads and verifies the session cookie. On failure the
// cookie (if any) is cleared so a stale artifact does not loop the client
// through repeated failed verifications.
func (g *Guard) authenticate(w http.ResponseWriter, r *http.Request) (*session.Artifact, bool) {
	artifact, err := g.sessions.Read(r)
	if err != nil {
		if !errors.Is(err, session.ErrNoSession) {
			g.sessions.Clear(w)
		}
		return nil, false
	}
	return artifact, true
}

// withSession attaches the artifact to the request context and records the
// traffic as user activity. The touch is best-effort: a failure must not
// block the request.
func (g *Guard) withSession(r *http.Request, artifact *session.Artifact) *http.Request {
	if g.users != nil {
		if err := g.users.TouchActivity(r.Context(), artifact.UserID); err != nil {
			log.Printf("failed to update last activity for user %d: %v", artifact.UserID, err)
		}
	}
	return r.WithContext(WithSession(r.Context(), artifact))
}

// RequireLogin admits authenticated requests and redirects the rest to the
// login page.
func (g *Guard) RequireLogin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		artifact, ok := g.authenticate(w, r)
		if !ok {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, g.withSession(r, artifact))
	})
}

// RequireAdmin admits authenticated admins. A known non-admin identity goes
// to the unauthorized page, not back to login.
func (g *Guard) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		artifact, ok := g.authenticate(w, r)
		if !ok {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		if !artifact.IsAdmin {
			http.Redirect(w, r, "/unauthorized", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, g.withSession(r, artifact))
	})
}

// RequireFeature admits authenticated users for whom the named feature is
// visible. The visibility lookup is live against the store; store failures
// fail open inside the store, so only an explicit "hidden" denies.
func (g *Guard) RequireFeature(name string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			artifact, ok := g.authenticate(w, r)
			if !ok {
				http.Redirect(w, r, "/login", http.StatusSeeOther)
				return
			}
			if !g.features.IsVisible(r.Context(), artifact.UserID, name) {
				log.Printf("user %d attempted to access disabled feature: %s", artifact.UserID, name)
				http.Redirect(w, r, "/unauthorized", http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, g.withSession(r, artifact))
		})
	}
}

// RequireAPIAuth is the machine-facing variant of RequireLogin: failure is
// a structured 401, never a redirect.
func (g *Guard) RequireAPIAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		artifact, ok := g.authenticate(w, r)
		if !ok {
			WriteJSONError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next.ServeHTTP(w, g.withSession(r, artifact))
	})
}

// WriteJSONError writes a structured error payload.
// Response format: {"error": "<message>"}
func WriteJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": message}); err != nil {
		log.Printf("failed to write JSON error response: %v", err)
	}
}
