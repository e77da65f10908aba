package handler

import (
	"database/sql"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"homie/internal/middleware"
	"homie/internal/session"
	"homie/internal/shopping"
)

// ShoppingHandler serves the shared shopping list.
type ShoppingHandler struct {
	items *shopping.Datastore
}

// NewShoppingHandler creates a new shopping handler.
func NewShoppingHandler(items *shopping.Datastore) *ShoppingHandler {
	return &ShoppingHandler{items: items}
}

type shoppingPage struct {
	User  *session.Artifact
	Items []*shopping.Item
}

// List handles GET /shopping.
func (h *ShoppingHandler) List(w http.ResponseWriter, r *http.Request) {
	artifact, _ := middleware.GetSession(r.Context())

	items, err := h.items.List(r.Context())
	if err != nil {
		log.Printf("failed to load shopping list: %v", err)
	}

	render(w, http.StatusOK, "shopping.html", shoppingPage{User: artifact, Items: items})
}

// Add handles POST /shopping/items.
func (h *ShoppingHandler) Add(w http.ResponseWriter, r *http.Request) {
	artifact, ok := middleware.GetSession(r.Context())
	if !ok {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Redirect(w, r, "/shopping", http.StatusSeeOther)
		return
	}

	name := strings.TrimSpace(r.PostFormValue("name"))
	if name != "" {
		if _, err := h.items.Add(r.Context(), name, artifact.UserID); err != nil {
			log.Printf("failed to add shopping item for user %d: %v", artifact.UserID, err)
		}
	}

	http.Redirect(w, r, "/shopping", http.StatusSeeOther)
}

// Complete handles POST /shopping/items/{id}/complete.
func (h *ShoppingHandler) Complete(w http.ResponseWriter, r *http.Request) {
	artifact, ok := middleware.GetSession(r.Context())
	if !ok {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	if err := h.items.Complete(r.Context(), id, artifact.UserID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			http.NotFound(w, r)
			return
		}
		log.Printf("failed to complete shopping item %d: %v", id, err)
	}

	http.Redirect(w, r, "/shopping", http.StatusSeeOther)
}
