package handler

import (
	"log"
	"net/http"

	"homie/internal/dashboard"
	"homie/internal/feature"
	"homie/internal/middleware"
	"homie/internal/session"
)

// DashboardHandler renders the landing page.
type DashboardHandler struct {
	stats    *dashboard.Store
	features *feature.Store
	currency string
}

// NewDashboardHandler creates a new dashboard handler.
func NewDashboardHandler(stats *dashboard.Store, features *feature.Store, currency string) *DashboardHandler {
	return &DashboardHandler{stats: stats, features: features, currency: currency}
}

type dashboardPage struct {
	User     *session.Artifact
	Stats    *dashboard.Stats
	Features map[string]bool
	Currency string
}

// Show handles GET /dashboard.
func (h *DashboardHandler) Show(w http.ResponseWriter, r *http.Request) {
	artifact, ok := middleware.GetSession(r.Context())
	if !ok {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	stats, err := h.stats.Stats(r.Context())
	if err != nil {
		// Degrade to zeros rather than failing the page.
		log.Printf("failed to load dashboard stats: %v", err)
		stats = &dashboard.Stats{}
	}

	visibility, err := h.features.Visibility(r.Context(), artifact.UserID)
	if err != nil {
		log.Printf("failed to load feature visibility for user %d: %v", artifact.UserID, err)
		visibility = feature.Defaults()
	}

	render(w, http.StatusOK, "dashboard.html", dashboardPage{
		User:     artifact,
		Stats:    stats,
		Features: visibility,
		Currency: h.currency,
	})
}
