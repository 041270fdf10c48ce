package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmfrees/photovault/internal/model"
	"github.com/jmfrees/photovault/internal/repository"
	"github.com/jmfrees/photovault/internal/storage"
)

// PhotoView is a photo row plus short-lived signed URLs for its blobs.
type PhotoView struct {
	Photo        *model.Photo
	URL          string
	ThumbnailURL string
}

// PhotoService answers library queries: listing, detail with signed blob
// URLs, and access-time bookkeeping.
type PhotoService struct {
	photoRepo     repository.PhotoRepository
	storage       storage.Storage
	presignExpiry time.Duration
}

func NewPhotoService(photoRepo repository.PhotoRepository, st storage.Storage, presignExpiry time.Duration) *PhotoService {
	if presignExpiry <= 0 {
		presignExpiry = time.Hour
	}
	return &PhotoService{
		photoRepo:     photoRepo,
		storage:       st,
		presignExpiry: presignExpiry,
	}
}

func (s *PhotoService) List(ctx context.Context, ownerID string, filter repository.PhotoFilter) ([]*PhotoView, error) {
	photos, err := s.photoRepo.AllForOwner(ctx, ownerID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list photos: %w", err)
	}

	views := make([]*PhotoView, len(photos))
	for i, photo := range photos {
		views[i] = s.view(photo)
	}
	return views, nil
}

// Get returns one photo with signed URLs and records the access.
func (s *PhotoService) Get(ctx context.Context, id, ownerID string) (*PhotoView, error) {
	photo, err := s.photoRepo.ByID(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}

	err = s.photoRepo.TouchLastAccessed(ctx, id, ownerID)
	if err != nil {
		slog.Warn("failed to record photo access", "photo_id", id, "error", err)
	}

	return s.view(photo), nil
}

func (s *PhotoService) view(photo *model.Photo) *PhotoView {
	view := &PhotoView{Photo: photo}

	url, err := s.storage.PresignedURL(photo.StoragePath(), s.presignExpiry)
	if err != nil {
		slog.Warn("failed to presign original", "photo_id", photo.ID, "error", err)
	} else {
		view.URL = url
	}

	thumbURL, err := s.storage.PresignedURL(photo.ThumbnailPath(), s.presignExpiry)
	if err != nil {
		slog.Warn("failed to presign thumbnail", "photo_id", photo.ID, "error", err)
	} else {
		view.ThumbnailURL = thumbURL
	}

	return view
}
