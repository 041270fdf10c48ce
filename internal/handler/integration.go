package handler

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/jmfrees/photovault/internal/ctxkeys"
	"github.com/jmfrees/photovault/internal/repository"
	"github.com/jmfrees/photovault/internal/service"
)

type IntegrationHandler struct {
	tokenService    *service.TokenService
	integrationRepo repository.IntegrationRepository
	providerName    string
}

func NewIntegrationHandler(tokenService *service.TokenService, integrationRepo repository.IntegrationRepository, providerName string) *IntegrationHandler {
	return &IntegrationHandler{
		tokenService:    tokenService,
		integrationRepo: integrationRepo,
		providerName:    providerName,
	}
}

// Connect redirects to the provider's consent screen. The random state is
// pinned in a short-lived cookie and checked on callback.
func (h *IntegrationHandler) Connect(w http.ResponseWriter, r *http.Request) {
	state, err := randomState()
	if err != nil {
		slog.Error("failed to generate oauth state", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to start provider connection")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "oauth_state",
		Value:    state,
		Expires:  time.Now().Add(10 * time.Minute),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.tokenService.AuthCodeURL(state), http.StatusSeeOther)
}

// Callback completes the consent flow and stores the integration tokens.
func (h *IntegrationHandler) Callback(w http.ResponseWriter, r *http.Request) {
	ownerID := ctxkeys.OwnerID(r.Context())

	cookie, err := r.Cookie("oauth_state")
	if err != nil || cookie.Value == "" || cookie.Value != r.URL.Query().Get("state") {
		writeError(w, http.StatusBadRequest, "OAuth state mismatch")
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		writeError(w, http.StatusBadRequest, "Missing authorization code")
		return
	}

	err = h.tokenService.Exchange(r.Context(), ownerID, code)
	if err != nil {
		slog.Error("provider token exchange failed", "owner_id", ownerID, "error", err)
		writeError(w, http.StatusBadGateway, "Failed to connect provider")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"provider": h.providerName, "status": "connected"})
}

// Status reports whether the owner has a provider connection.
func (h *IntegrationHandler) Status(w http.ResponseWriter, r *http.Request) {
	ownerID := ctxkeys.OwnerID(r.Context())

	_, err := h.integrationRepo.ByOwnerAndProvider(r.Context(), ownerID, h.providerName)
	if errors.Is(err, repository.ErrIntegrationNotFound) {
		writeJSON(w, http.StatusOK, map[string]any{"provider": h.providerName, "connected": false})
		return
	}
	if err != nil {
		slog.Error("failed to read integration", "owner_id", ownerID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to read integration")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"provider": h.providerName, "connected": true})
}

// Disconnect removes the stored integration. Already-exported photos keep
// their provider ids.
func (h *IntegrationHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	ownerID := ctxkeys.OwnerID(r.Context())

	err := h.integrationRepo.Delete(r.Context(), ownerID, h.providerName)
	if err != nil {
		slog.Error("failed to disconnect provider", "owner_id", ownerID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to disconnect provider")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func randomState() (string, error) {
	b := make([]byte, 16)
	_, err := rand.Read(b)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
