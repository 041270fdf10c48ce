package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/jmfrees/photovault/internal/ctxkeys"
	"github.com/jmfrees/photovault/internal/model"
	"github.com/jmfrees/photovault/internal/repository"
	"github.com/jmfrees/photovault/internal/service"
	"github.com/jmfrees/photovault/internal/validation"
)

type PhotoHandler struct {
	ingestService   *service.IngestService
	photoService    *service.PhotoService
	deletionService *service.DeletionService
	maxFileSize     int64
}

func NewPhotoHandler(
	ingestService *service.IngestService,
	photoService *service.PhotoService,
	deletionService *service.DeletionService,
	maxFileSize int64,
) *PhotoHandler {
	return &PhotoHandler{
		ingestService:   ingestService,
		photoService:    photoService,
		deletionService: deletionService,
		maxFileSize:     maxFileSize,
	}
}

type photoJSON struct {
	ID                 string     `json:"id"`
	Filename           string     `json:"filename"`
	Size               int64      `json:"size"`
	MediaType          string     `json:"mediaType"`
	CapturedAt         *time.Time `json:"capturedAt,omitempty"`
	UploadedAt         time.Time  `json:"uploadedAt"`
	LastAccessedAt     *time.Time `json:"lastAccessedAt,omitempty"`
	ExternalProviderID *string    `json:"externalProviderId,omitempty"`
	Location           *string    `json:"location,omitempty"`
	URL                string     `json:"url,omitempty"`
	ThumbnailURL       string     `json:"thumbnailUrl,omitempty"`
}

func toPhotoJSON(photo *model.Photo, url, thumbnailURL string) photoJSON {
	return photoJSON{
		ID:                 photo.ID,
		Filename:           photo.Filename,
		Size:               photo.Size,
		MediaType:          photo.MediaType,
		CapturedAt:         photo.CapturedAt,
		UploadedAt:         photo.UploadedAt,
		LastAccessedAt:     photo.LastAccessedAt,
		ExternalProviderID: photo.ExternalProviderID,
		Location:           photo.Location,
		URL:                url,
		ThumbnailURL:       thumbnailURL,
	}
}

type rejectedJSON struct {
	Filename string `json:"filename"`
	Error    string `json:"error"`
}

// uploadMeta is the optional per-file metadata sent alongside the files in
// the "meta" form field, keyed by filename.
type uploadMeta struct {
	CapturedAt     *time.Time `json:"capturedAt"`
	FileModifiedAt *time.Time `json:"fileModifiedAt"`
	Location       *string    `json:"location"`
}

// Upload ingests a multipart batch from the "photos" field.
func (h *PhotoHandler) Upload(w http.ResponseWriter, r *http.Request) {
	ownerID := ctxkeys.OwnerID(r.Context())

	err := r.ParseMultipartForm(32 << 20)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to parse multipart form")
		return
	}

	files := r.MultipartForm.File["photos"]
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, "No files uploaded")
		return
	}

	meta := map[string]uploadMeta{}
	if raw := r.FormValue("meta"); raw != "" {
		err = json.Unmarshal([]byte(raw), &meta)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid meta field")
			return
		}
	}

	items := make([]service.UploadItem, 0, len(files))
	rejected := make([]rejectedJSON, 0)

	for _, header := range files {
		err = validation.ValidatePhoto(header, h.maxFileSize)
		if err != nil {
			rejected = append(rejected, rejectedJSON{Filename: header.Filename, Error: err.Error()})
			continue
		}

		data, err := readUpload(header)
		if err != nil {
			slog.Error("failed to read upload", "filename", header.Filename, "error", err)
			rejected = append(rejected, rejectedJSON{Filename: header.Filename, Error: "failed to read file"})
			continue
		}

		item := service.UploadItem{
			Data:      data,
			Filename:  header.Filename,
			MediaType: header.Header.Get("Content-Type"),
		}
		if m, ok := meta[header.Filename]; ok {
			item.CapturedAt = m.CapturedAt
			item.FileModifiedAt = m.FileModifiedAt
			item.Location = m.Location
		}
		items = append(items, item)
	}

	if len(items) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":    "no valid files in batch",
			"rejected": rejected,
		})
		return
	}

	result, err := h.ingestService.Ingest(r.Context(), ownerID, items)
	if errors.Is(err, service.ErrInvalidInput) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		slog.Error("ingest failed", "owner_id", ownerID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to ingest photos")
		return
	}

	photos := make([]photoJSON, len(result.Photos))
	for i, photo := range result.Photos {
		photos[i] = toPhotoJSON(photo, "", "")
	}
	for _, item := range result.Rejected {
		rejected = append(rejected, rejectedJSON{Filename: item.Filename, Error: item.Err.Error()})
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"photos":   photos,
		"rejected": rejected,
	})
}

func readUpload(header *multipart.FileHeader) ([]byte, error) {
	file, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()
	return io.ReadAll(file)
}

// List returns the owner's photos, optionally filtered by media type and
// captured-at range (RFC 3339 query params).
func (h *PhotoHandler) List(w http.ResponseWriter, r *http.Request) {
	ownerID := ctxkeys.OwnerID(r.Context())

	filter := repository.PhotoFilter{MediaType: r.URL.Query().Get("media_type")}

	if v := r.URL.Query().Get("captured_after"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid captured_after")
			return
		}
		filter.CapturedAfter = &t
	}
	if v := r.URL.Query().Get("captured_before"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid captured_before")
			return
		}
		filter.CapturedBefore = &t
	}

	views, err := h.photoService.List(r.Context(), ownerID, filter)
	if err != nil {
		slog.Error("failed to list photos", "owner_id", ownerID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to list photos")
		return
	}

	photos := make([]photoJSON, len(views))
	for i, view := range views {
		photos[i] = toPhotoJSON(view.Photo, view.URL, view.ThumbnailURL)
	}

	writeJSON(w, http.StatusOK, map[string]any{"photos": photos})
}

func (h *PhotoHandler) Get(w http.ResponseWriter, r *http.Request) {
	ownerID := ctxkeys.OwnerID(r.Context())
	id := r.PathValue("id")

	view, err := h.photoService.Get(r.Context(), id, ownerID)
	if errors.Is(err, repository.ErrPhotoNotFound) {
		writeError(w, http.StatusNotFound, "Photo not found")
		return
	}
	if err != nil {
		slog.Error("failed to get photo", "owner_id", ownerID, "photo_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to get photo")
		return
	}

	writeJSON(w, http.StatusOK, toPhotoJSON(view.Photo, view.URL, view.ThumbnailURL))
}

func (h *PhotoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ownerID := ctxkeys.OwnerID(r.Context())
	id := r.PathValue("id")

	err := h.deletionService.DeleteOne(r.Context(), id, ownerID)
	if errors.Is(err, repository.ErrPhotoNotFound) {
		writeError(w, http.StatusNotFound, "Photo not found")
		return
	}
	if err != nil {
		slog.Error("failed to delete photo", "owner_id", ownerID, "photo_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to delete photo")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// BulkDelete deletes a list of ids, reporting an outcome per id.
func (h *PhotoHandler) BulkDelete(w http.ResponseWriter, r *http.Request) {
	ownerID := ctxkeys.OwnerID(r.Context())

	var body struct {
		IDs []string `json:"ids"`
	}
	err := json.NewDecoder(r.Body).Decode(&body)
	if err != nil || len(body.IDs) == 0 {
		writeError(w, http.StatusBadRequest, "Body must carry a non-empty ids array")
		return
	}

	outcomes := h.deletionService.DeleteMany(r.Context(), body.IDs, ownerID)

	type outcomeJSON struct {
		ID      string `json:"id"`
		Deleted bool   `json:"deleted"`
		Error   string `json:"error,omitempty"`
	}
	results := make([]outcomeJSON, len(outcomes))
	for i, outcome := range outcomes {
		results[i] = outcomeJSON{ID: outcome.ID, Deleted: outcome.Err == nil}
		if outcome.Err != nil {
			results[i].Error = outcome.Err.Error()
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

// DeleteAll wipes the owner's entire library, blobs first.
func (h *PhotoHandler) DeleteAll(w http.ResponseWriter, r *http.Request) {
	ownerID := ctxkeys.OwnerID(r.Context())

	count, err := h.deletionService.DeleteAllForOwner(r.Context(), ownerID)
	if err != nil {
		slog.Error("failed to delete library", "owner_id", ownerID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to delete photos")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"deleted": count})
}
