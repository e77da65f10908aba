package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"homie/internal/feature"
	"homie/internal/user"
)

// AdminHandler exposes the admin JSON surface: the local user roster and
// per-user feature toggles.
type AdminHandler struct {
	users    *user.Manager
	features *feature.Store
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(users *user.Manager, features *feature.Store) *AdminHandler {
	return &AdminHandler{users: users, features: features}
}

// userResponse is the JSON shape for a local user.
type userResponse struct {
	ID           int64   `json:"id"`
	Username     string  `json:"username"`
	Email        string  `json:"email"`
	FullName     string  `json:"full_name"`
	IsAdmin      bool    `json:"is_admin"`
	SupabaseID   string  `json:"supabase_id"`
	LastLogin    *string `json:"last_login"`
	CreatedAt    string  `json:"created_at"`
	LastActivity *string `json:"last_activity"`
}

func toUserResponse(u *user.User) userResponse {
	resp := userResponse{
		ID:         u.ID,
		Username:   u.Username,
		Email:      u.Email,
		FullName:   u.FullName,
		IsAdmin:    u.IsAdmin,
		SupabaseID: u.SupabaseID,
		CreatedAt:  u.CreatedAt.Format(time.RFC3339),
	}
	if u.LastLogin.Valid {
		s := u.LastLogin.Time.Format(time.RFC3339)
		resp.LastLogin = &s
	}
	if u.LastActivity.Valid {
		s := u.LastActivity.Time.Format(time.RFC3339)
		resp.LastActivity = &s
	}
	return resp
}

// ListUsers handles GET /admin/users.
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		log.Printf("failed to list users: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list users")
		return
	}

	response := make([]userResponse, len(users))
	for i, u := range users {
		response[i] = toUserResponse(u)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"users": response,
		"count": len(response),
	})
}

type setFeatureRequest struct {
	Visible bool `json:"visible"`
}

// SetFeature handles PUT /admin/users/{id}/features/{feature}.
func (h *AdminHandler) SetFeature(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user ID")
		return
	}

	if _, err := h.users.GetByID(r.Context(), id); err != nil {
		if errors.Is(err, user.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		log.Printf("failed to get user %d: %v", id, err)
		writeError(w, http.StatusInternalServerError, "failed to get user")
		return
	}

	var req setFeatureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	name := r.PathValue("feature")
	if err := h.features.Set(r.Context(), id, name, req.Visible); err != nil {
		if errors.Is(err, feature.ErrUnknownFeature) {
			writeError(w, http.StatusBadRequest, "unknown feature")
			return
		}
		log.Printf("failed to set feature %s for user %d: %v", name, id, err)
		writeError(w, http.StatusInternalServerError, "failed to set feature")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user_id": id,
		"feature": name,
		"visible": req.Visible,
	})
}
