package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/jmfrees/photovault/internal/ctxkeys"
	"github.com/jmfrees/photovault/internal/repository"
)

type SettingsHandler struct {
	settingRepo repository.SettingRepository
}

func NewSettingsHandler(settingRepo repository.SettingRepository) *SettingsHandler {
	return &SettingsHandler{settingRepo: settingRepo}
}

func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	ownerID := ctxkeys.OwnerID(r.Context())
	key := r.PathValue("key")

	setting, err := h.settingRepo.Get(r.Context(), ownerID, key)
	if errors.Is(err, repository.ErrSettingNotFound) {
		writeError(w, http.StatusNotFound, "Setting not found")
		return
	}
	if err != nil {
		slog.Error("failed to read setting", "owner_id", ownerID, "key", key, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to read setting")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"key":   setting.Key,
		"value": setting.Value,
	})
}

func (h *SettingsHandler) Put(w http.ResponseWriter, r *http.Request) {
	ownerID := ctxkeys.OwnerID(r.Context())
	key := r.PathValue("key")

	var body struct {
		Value string `json:"value"`
	}
	err := json.NewDecoder(r.Body).Decode(&body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid body")
		return
	}

	err = h.settingRepo.Set(r.Context(), ownerID, key, body.Value)
	if err != nil {
		slog.Error("failed to write setting", "owner_id", ownerID, "key", key, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to write setting")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"key":   key,
		"value": body.Value,
	})
}
