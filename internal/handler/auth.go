package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/jmfrees/photovault/internal/config"
	"github.com/jmfrees/photovault/internal/service"
)

type AuthHandler struct {
	authService *service.AuthService
	cfg         *config.Config
}

func NewAuthHandler(authService *service.AuthService, cfg *config.Config) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		cfg:         cfg,
	}
}

// CreateSession mints an auth cookie for an owner id. Development only: in
// production the cookie comes from the identity frontend sharing the JWT
// secret, and this endpoint answers 404.
func (h *AuthHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	if !h.cfg.IsDevelopment() {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}

	var body struct {
		OwnerID string `json:"ownerId"`
	}
	err := json.NewDecoder(r.Body).Decode(&body)
	if err != nil || body.OwnerID == "" {
		writeError(w, http.StatusBadRequest, "Body must carry ownerId")
		return
	}

	token, expiry, err := h.authService.GenerateJWT(body.OwnerID)
	if err != nil {
		slog.Error("failed to generate token", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to create session")
		return
	}

	h.authService.SetJWTCookie(w, token, expiry)
	writeJSON(w, http.StatusOK, map[string]string{"ownerId": body.OwnerID})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.authService.ClearJWTCookie(w)
	w.WriteHeader(http.StatusNoContent)
}
