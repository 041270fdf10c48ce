package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jmfrees/photovault/internal/metrics"
	"github.com/jmfrees/photovault/internal/model"
	"github.com/jmfrees/photovault/internal/repository"
	"github.com/jmfrees/photovault/internal/storage"
	"github.com/jmfrees/photovault/internal/thumbnail"
)

var (
	// ErrInvalidInput rejects a malformed batch before any side effect.
	ErrInvalidInput = errors.New("invalid ingestion input")

	errDuplicateFilename = errors.New("duplicate filename in batch")
)

// UploadItem is one file of an ingestion batch: raw bytes plus the
// client-supplied proto-metadata.
type UploadItem struct {
	Data           []byte
	Filename       string
	MediaType      string
	CapturedAt     *time.Time // embedded metadata, wins over FileModifiedAt
	FileModifiedAt *time.Time // filesystem timestamp, fallback
	Location       *string
}

// ItemError reports a per-file failure inside a batch operation.
type ItemError struct {
	Filename string
	Err      error
}

// IngestResult is the structured partial result of one batch: the photos
// whose row and both blobs are confirmed, plus per-file failures. A failed
// file's row is left in place for offline reconciliation, never deleted
// inline.
type IngestResult struct {
	Photos   []*model.Photo
	Rejected []ItemError
}

type IngestService struct {
	photoRepo     repository.PhotoRepository
	storage       storage.Storage
	deriver       *thumbnail.Deriver
	gate          *ExportGate
	exporter      *ExportService
	metrics       metrics.Collector
	writeParallel int
}

func NewIngestService(
	photoRepo repository.PhotoRepository,
	st storage.Storage,
	deriver *thumbnail.Deriver,
	gate *ExportGate,
	exporter *ExportService,
	collector metrics.Collector,
	writeParallel int,
) *IngestService {
	if writeParallel <= 0 {
		writeParallel = 4
	}
	return &IngestService{
		photoRepo:     photoRepo,
		storage:       st,
		deriver:       deriver,
		gate:          gate,
		exporter:      exporter,
		metrics:       collector,
		writeParallel: writeParallel,
	}
}

// Ingest persists a batch of uploaded photos. Metadata rows for the whole
// batch are inserted in one transaction before any blob write, so a crash
// mid-write can only leave rows without blobs (the recoverable mode), never
// blobs without rows. Blob writes for distinct files run concurrently and
// fail independently.
func (s *IngestService) Ingest(ctx context.Context, ownerID string, items []UploadItem) (*IngestResult, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: empty batch", ErrInvalidInput)
	}
	for _, item := range items {
		if item.Filename == "" || item.MediaType == "" {
			return nil, fmt.Errorf("%w: every item requires filename and media type", ErrInvalidInput)
		}
	}

	result := &IngestResult{}

	// In-batch filename collisions: first wins, later duplicates are
	// rejected individually.
	seen := make(map[string]bool, len(items))
	accepted := make([]UploadItem, 0, len(items))
	for _, item := range items {
		if seen[item.Filename] {
			result.Rejected = append(result.Rejected, ItemError{Filename: item.Filename, Err: errDuplicateFilename})
			continue
		}
		seen[item.Filename] = true
		accepted = append(accepted, item)
	}

	now := time.Now()
	photos := make([]*model.Photo, len(accepted))
	for i, item := range accepted {
		photos[i] = &model.Photo{
			ID:         uuid.New().String(),
			OwnerID:    ownerID,
			Filename:   item.Filename,
			Size:       int64(len(item.Data)),
			MediaType:  item.MediaType,
			CapturedAt: capturedAt(item),
			UploadedAt: now,
			Location:   item.Location,
		}
	}

	// Metadata step happens-before every blob write for the batch.
	err := s.photoRepo.InsertMany(ctx, photos)
	if err != nil {
		return nil, fmt.Errorf("failed to insert photo rows: %w", err)
	}

	outcomes := s.writeBlobs(ctx, photos, accepted)

	for i, photo := range photos {
		if outcomes[i] == nil {
			result.Photos = append(result.Photos, photo)
			continue
		}
		slog.Warn("photo blob write failed, row left for reconciliation",
			"owner_id", ownerID,
			"photo_id", photo.ID,
			"filename", photo.Filename,
			"error", outcomes[i],
		)
		result.Rejected = append(result.Rejected, ItemError{Filename: photo.Filename, Err: outcomes[i]})
	}

	s.metrics.RecordIngested(len(result.Photos))
	s.metrics.RecordIngestFailure(len(result.Rejected))

	// One export decision per batch, evaluated after all writes settle.
	if len(result.Photos) > 0 {
		decision, err := s.gate.Evaluate(ctx, ownerID)
		if err != nil {
			slog.Error("auto-export evaluation failed", "owner_id", ownerID, "error", err)
		} else if decision.ShouldExport {
			s.exporter.ExportAsync(ownerID, result.Photos)
		}
	}

	return result, nil
}

// writeBlobs derives thumbnails and writes both blobs per file, bounded by
// writeParallel. Returns one outcome slot per photo; nil means both blobs
// are confirmed.
func (s *IngestService) writeBlobs(ctx context.Context, photos []*model.Photo, items []UploadItem) []error {
	outcomes := make([]error, len(photos))

	sem := make(chan struct{}, s.writeParallel)
	var wg sync.WaitGroup

	for i := range photos {
		wg.Add(1)
		sem <- struct{}{}

		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()

			outcomes[i] = s.writeOne(ctx, photos[i], items[i])
		}(i)
	}

	wg.Wait()
	return outcomes
}

func (s *IngestService) writeOne(ctx context.Context, photo *model.Photo, item UploadItem) error {
	thumb, err := s.deriver.Derive(item.Data)
	if err != nil {
		return fmt.Errorf("thumbnail derivation failed: %w", err)
	}

	err = s.storage.Save(ctx, photo.StoragePath(), bytes.NewReader(item.Data))
	if err != nil {
		return fmt.Errorf("original write failed: %w", err)
	}

	err = s.storage.Save(ctx, photo.ThumbnailPath(), bytes.NewReader(thumb))
	if err != nil {
		return fmt.Errorf("thumbnail write failed: %w", err)
	}

	return nil
}

// capturedAt resolves the capture timestamp: embedded metadata wins, file
// modification time is the fallback.
func capturedAt(item UploadItem) *time.Time {
	if item.CapturedAt != nil {
		return item.CapturedAt
	}
	return item.FileModifiedAt
}
