package handler

import (
	"net/http"

	"homie/internal/config"
	"homie/internal/dashboard"
	"homie/internal/database"
	"homie/internal/feature"
	"homie/internal/middleware"
	"homie/internal/policy"
	"homie/internal/session"
	"homie/internal/shopping"
	"homie/internal/user"
)

// Deps carries the wired dependencies into route registration.
type Deps struct {
	Config   *config.Config
	DB       *database.DB
	Users    *user.Manager
	Sessions *session.Manager
	Features *feature.Store
	Policy   *policy.AccessControl
	Provider AuthProvider
}

// RegisterRoutes registers all HTTP routes with the provided mux.
func RegisterRoutes(mux *http.ServeMux, deps *Deps) {
	guard := middleware.NewGuard(deps.Sessions, deps.Features, deps.Users)

	authHandler := NewAuthHandler(deps.Provider, deps.Users, deps.Sessions, deps.Policy)
	dashboardHandler := NewDashboardHandler(dashboard.NewStore(deps.DB), deps.Features, deps.Config.Currency)
	shoppingHandler := NewShoppingHandler(shopping.NewDatastore(deps.DB))
	adminHandler := NewAdminHandler(deps.Users, deps.Features)
	apiHandler := NewAPIHandler(deps.Features)

	// Public surface
	mux.HandleFunc("GET /health", HealthCheck)
	mux.HandleFunc("GET /{$}", authHandler.Index)
	mux.HandleFunc("GET /login", authHandler.LoginPage)
	mux.HandleFunc("POST /login", authHandler.Login)
	mux.HandleFunc("GET /logout", authHandler.Logout)
	mux.HandleFunc("GET /unauthorized", authHandler.Unauthorized)

	// Authenticated pages
	mux.Handle("GET /dashboard", guard.RequireLogin(http.HandlerFunc(dashboardHandler.Show)))

	requireShopping := guard.RequireFeature(feature.Shopping)
	mux.Handle("GET /shopping", requireShopping(http.HandlerFunc(shoppingHandler.List)))
	mux.Handle("POST /shopping/items", requireShopping(http.HandlerFunc(shoppingHandler.Add)))
	mux.Handle("POST /shopping/items/{id}/complete", requireShopping(http.HandlerFunc(shoppingHandler.Complete)))

	// Admin surface
	mux.Handle("GET /admin/users", guard.RequireAdmin(http.HandlerFunc(adminHandler.ListUsers)))
	mux.Handle("PUT /admin/users/{id}/features/{feature}", guard.RequireAdmin(http.HandlerFunc(adminHandler.SetFeature)))

	// Machine surface
	mux.Handle("GET /api/v1/me", guard.RequireAPIAuth(http.HandlerFunc(apiHandler.Me)))
	mux.Handle("GET /api/v1/features", guard.RequireAPIAuth(http.HandlerFunc(apiHandler.Features)))
}
