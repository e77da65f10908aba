package handler

import (
	"log"
	"net/http"

	"homie/internal/feature"
	"homie/internal/middleware"
)

// APIHandler serves the machine-consumable endpoints.
type APIHandler struct {
	features *feature.Store
}

// NewAPIHandler creates a new API handler.
func NewAPIHandler(features *feature.Store) *APIHandler {
	return &APIHandler{features: features}
}

// Me handles GET /api/v1/me. The provider access token is deliberately
// omitted from the response.
func (h *APIHandler) Me(w http.ResponseWriter, r *http.Request) {
	artifact, ok := middleware.GetSession(r.Context())
	if !ok {
		middleware.WriteJSONError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"id":        artifact.UserID,
		"username":  artifact.Username,
		"email":     artifact.Email,
		"full_name": artifact.FullName,
		"is_admin":  artifact.IsAdmin,
	})
}

// Features handles GET /api/v1/features.
func (h *APIHandler) Features(w http.ResponseWriter, r *http.Request) {
	artifact, ok := middleware.GetSession(r.Context())
	if !ok {
		middleware.WriteJSONError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	visibility, err := h.features.Visibility(r.Context(), artifact.UserID)
	if err != nil {
		// The toggles are a soft gate; serve the permissive defaults.
		log.Printf("failed to load feature visibility for user %d: %v", artifact.UserID, err)
		visibility = feature.Defaults()
	}

	writeJSON(w, http.StatusOK, map[string]any{"features": visibility})
}
