package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"homie/internal/database"
	"homie/internal/policy"
	"homie/internal/session"
	"homie/internal/supabase"
	"homie/internal/user"
)

// mockProvider implements AuthProvider for testing.
type mockProvider struct {
	signInFunc  func(ctx context.Context, email, password string) (*supabase.Identity, error)
	signOutFunc func(ctx context.Context, accessToken string) error

	signOutCalls []string
}

func (m *mockProvider) SignInWithPassword(ctx context.Context, email, password string) (*supabase.Identity, error) {
	if m.signInFunc != nil {
		return m.signInFunc(ctx, email, password)
	}
	return nil, supabase.ErrInvalidCredentials
}

func (m *mockProvider) SignOut(ctx context.Context, accessToken string) error {
	m.signOutCalls = append(m.signOutCalls, accessToken)
	if m.signOutFunc != nil {
		return m.signOutFunc(ctx, accessToken)
	}
	return nil
}

func acceptAll(email string) func(ctx context.Context, e, p string) (*supabase.Identity, error) {
	return func(ctx context.Context, e, p string) (*supabase.Identity, error) {
		return &supabase.Identity{
			ID:          "sb-" + email,
			Email:       email,
			AccessToken: "provider-token",
		}, nil
	}
}

func newAuthFixture(t *testing.T, provider *mockProvider, ac *policy.AccessControl) (*AuthHandler, *database.DB, *session.Manager) {
	t.Helper()
	db, err := database.OpenInMemory()
	if err != nil {
		t.Fatalf("failed to open in-memory database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.InitSchema(context.Background()); err != nil {
		t.Fatalf("failed to init schema: %v", err)
	}

	sessions := session.NewManager([]byte("test-secret"), time.Hour, false)
	users := user.NewManager(user.NewDatastore(db))
	return NewAuthHandler(provider, users, sessions, ac), db, sessions
}

func postLogin(h *AuthHandler, email, password string) *httptest.ResponseRecorder {
	form := url.Values{"email": {email}, "password": {password}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.Login(rec, req)
	return rec
}

func sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == session.CookieName && c.Value != "" {
			return c
		}
	}
	return nil
}

func TestLogin_Success(t *testing.T) {
	provider := &mockProvider{signInFunc: acceptAll("alice@x.com")}
	h, db, sessions := newAuthFixture(t, provider, policy.New(nil, nil))

	rec := postLogin(h, "alice@x.com", "secret")

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	if loc := rec.Header().Get("Location"); loc != "/dashboard" {
		t.Errorf("expected redirect to /dashboard, got %q", loc)
	}

	cookie := sessionCookie(rec)
	if cookie == nil {
		t.Fatal("expected a session cookie to be issued")
	}

	// The artifact carries the resolved local identity.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	artifact, err := sessions.Read(req)
	if err != nil {
		t.Fatalf("failed to read issued session: %v", err)
	}
	if artifact.Email != "alice@x.com" {
		t.Errorf("expected artifact email alice@x.com, got %q", artifact.Email)
	}
	if artifact.IsAdmin {
		t.Error("expected non-admin artifact")
	}
	if artifact.AccessToken != "provider-token" {
		t.Errorf("expected provider token in artifact, got %q", artifact.AccessToken)
	}

	// And a local row exists for foreign keys.
	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM users WHERE email = 'alice@x.com'`).Scan(&count); err != nil {
		t.Fatalf("failed to count users: %v", err)
	}
	if count != 1 {
		t.Errorf("expected one local user, got %d", count)
	}
}

func TestLogin_AdminImplicitlyAllowed(t *testing.T) {
	// Allowlist configured without the admin's email: the admin still gets
	// in, and elevated.
	ac := policy.New([]string{"b@x.com"}, []string{"a@x.com"})
	provider := &mockProvider{signInFunc: acceptAll("b@x.com")}
	h, _, sessions := newAuthFixture(t, provider, ac)

	rec := postLogin(h, "b@x.com", "secret")

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", rec.Code)
	}

	cookie := sessionCookie(rec)
	if cookie == nil {
		t.Fatal("expected a session cookie")
	}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	artifact, err := sessions.Read(req)
	if err != nil {
		t.Fatalf("failed to read session: %v", err)
	}
	if !artifact.IsAdmin {
		t.Error("expected admin artifact for admin-listed email")
	}
	if len(provider.signOutCalls) != 0 {
		t.Error("provider sign-out must not be called on success")
	}
}

func TestLogin_PolicyDenied(t *testing.T) {
	ac := policy.New([]string{"b@x.com"}, []string{"a@x.com"})
	provider := &mockProvider{signInFunc: acceptAll("c@x.com")}
	h, db, _ := newAuthFixture(t, provider, ac)

	rec := postLogin(h, "c@x.com", "secret")

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), msgAccessDenied) {
		t.Error("expected the generic access-denied message")
	}
	if sessionCookie(rec) != nil {
		t.Error("no session may be issued on denial")
	}

	// The partially-established provider session must be revoked.
	if len(provider.signOutCalls) != 1 || provider.signOutCalls[0] != "provider-token" {
		t.Errorf("expected one provider sign-out with the denied token, got %v", provider.signOutCalls)
	}

	// Denial leaves no local record behind.
	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		t.Fatalf("failed to count users: %v", err)
	}
	if count != 0 {
		t.Errorf("expected no local users after denial, got %d", count)
	}
}

func TestLogin_ProviderUnavailable(t *testing.T) {
	provider := &mockProvider{
		signInFunc: func(ctx context.Context, email, password string) (*supabase.Identity, error) {
			return nil, supabase.ErrUnavailable
		},
	}
	h, _, _ := newAuthFixture(t, provider, policy.New(nil, nil))

	rec := postLogin(h, "alice@x.com", "secret")

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), msgServiceUnavailable) {
		t.Error("expected the service-unavailable message")
	}
	if sessionCookie(rec) != nil {
		t.Error("no session may be issued when the provider is unavailable")
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	provider := &mockProvider{}
	h, _, _ := newAuthFixture(t, provider, policy.New(nil, nil))

	rec := postLogin(h, "alice@x.com", "wrong")

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), msgInvalidCredentials) {
		t.Error("expected the generic invalid-credentials message")
	}
}

func TestLogin_MissingFields(t *testing.T) {
	provider := &mockProvider{signInFunc: acceptAll("alice@x.com")}
	h, _, _ := newAuthFixture(t, provider, policy.New(nil, nil))

	rec := postLogin(h, "", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestLogin_ReconcileFailure(t *testing.T) {
	// A provider identity with no external id cannot be reconciled; the
	// user sees a generic failure and gets no session.
	provider := &mockProvider{
		signInFunc: func(ctx context.Context, email, password string) (*supabase.Identity, error) {
			return &supabase.Identity{Email: email, AccessToken: "tok"}, nil
		},
	}
	h, _, _ := newAuthFixture(t, provider, policy.New(nil, nil))

	rec := postLogin(h, "alice@x.com", "secret")

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), msgLoginFailed) {
		t.Error("expected the generic login-failed message")
	}
	if sessionCookie(rec) != nil {
		t.Error("no session may be issued on reconciliation failure")
	}
}

func TestLoginPage_RedirectsAuthenticated(t *testing.T) {
	provider := &mockProvider{}
	h, _, sessions := newAuthFixture(t, provider, policy.New(nil, nil))

	rec := httptest.NewRecorder()
	if err := sessions.Issue(rec, &session.Artifact{UserID: 1}); err != nil {
		t.Fatalf("failed to issue session: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/login", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	rec2 := httptest.NewRecorder()
	h.LoginPage(rec2, req)

	if rec2.Code != http.StatusSeeOther || rec2.Header().Get("Location") != "/dashboard" {
		t.Errorf("expected redirect to /dashboard, got %d -> %q", rec2.Code, rec2.Header().Get("Location"))
	}
}

func TestLogout(t *testing.T) {
	provider := &mockProvider{}
	h, _, sessions := newAuthFixture(t, provider, policy.New(nil, nil))

	rec := httptest.NewRecorder()
	if err := sessions.Issue(rec, &session.Artifact{UserID: 1, Email: "a@x.com", AccessToken: "tok-1"}); err != nil {
		t.Fatalf("failed to issue session: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/logout", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	rec2 := httptest.NewRecorder()
	h.Logout(rec2, req)

	if rec2.Code != http.StatusSeeOther || rec2.Header().Get("Location") != "/login" {
		t.Errorf("expected redirect to /login, got %d -> %q", rec2.Code, rec2.Header().Get("Location"))
	}

	// Best-effort provider sign-out with the artifact's token.
	if len(provider.signOutCalls) != 1 || provider.signOutCalls[0] != "tok-1" {
		t.Errorf("expected provider sign-out with tok-1, got %v", provider.signOutCalls)
	}

	// Cookie cleared.
	cleared := false
	for _, c := range rec2.Result().Cookies() {
		if c.Name == session.CookieName && c.MaxAge == -1 {
			cleared = true
		}
	}
	if !cleared {
		t.Error("expected the session cookie to be cleared")
	}
}

func TestLogout_ProviderFailureStillClears(t *testing.T) {
	provider := &mockProvider{
		signOutFunc: func(ctx context.Context, accessToken string) error {
			return errors.New("provider down")
		},
	}
	h, _, sessions := newAuthFixture(t, provider, policy.New(nil, nil))

	rec := httptest.NewRecorder()
	if err := sessions.Issue(rec, &session.Artifact{UserID: 1, AccessToken: "tok"}); err != nil {
		t.Fatalf("failed to issue session: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/logout", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}

	rec2 := httptest.NewRecorder()
	h.Logout(rec2, req)

	if rec2.Code != http.StatusSeeOther {
		t.Errorf("logout must succeed despite provider failure, got %d", rec2.Code)
	}
}

func TestIndex(t *testing.T) {
	provider := &mockProvider{}
	h, _, sessions := newAuthFixture(t, provider, policy.New(nil, nil))

	t.Run("unauthenticated", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.Index(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Header().Get("Location") != "/login" {
			t.Errorf("expected redirect to /login, got %q", rec.Header().Get("Location"))
		}
	})

	t.Run("authenticated", func(t *testing.T) {
		issued := httptest.NewRecorder()
		if err := sessions.Issue(issued, &session.Artifact{UserID: 1}); err != nil {
			t.Fatalf("failed to issue session: %v", err)
		}
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		for _, c := range issued.Result().Cookies() {
			req.AddCookie(c)
		}
		rec := httptest.NewRecorder()
		h.Index(rec, req)
		if rec.Header().Get("Location") != "/dashboard" {
			t.Errorf("expected redirect to /dashboard, got %q", rec.Header().Get("Location"))
		}
	})
}
