package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jmfrees/photovault/internal/metrics"
	"github.com/jmfrees/photovault/internal/model"
	"github.com/jmfrees/photovault/internal/repository"
	"github.com/jmfrees/photovault/internal/storage"
)

// IDOutcome reports the result of deleting one photo in a bulk request.
type IDOutcome struct {
	ID  string
	Err error
}

// DeletionService removes a photo's blobs and metadata row as one logical
// unit. Blob deletes always happen before the row delete: a row must never
// disappear while its blobs still exist, or the storage leaks with no way
// to discover it through the database.
type DeletionService struct {
	photoRepo    repository.PhotoRepository
	storage      storage.Storage
	metrics      metrics.Collector
	listPageSize int32
}

func NewDeletionService(photoRepo repository.PhotoRepository, st storage.Storage, collector metrics.Collector, listPageSize int32) *DeletionService {
	if listPageSize <= 0 {
		listPageSize = 500
	}
	return &DeletionService{
		photoRepo:    photoRepo,
		storage:      st,
		metrics:      collector,
		listPageSize: listPageSize,
	}
}

// DeleteOne removes original blob, thumbnail blob, then the row. A blob
// delete failure retains the row and reports the failure.
func (s *DeletionService) DeleteOne(ctx context.Context, id, ownerID string) error {
	photo, err := s.photoRepo.ByID(ctx, id, ownerID)
	if err != nil {
		return err
	}

	err = s.storage.Delete(ctx, photo.StoragePath())
	if err != nil {
		return fmt.Errorf("failed to delete original blob: %w", err)
	}

	err = s.storage.Delete(ctx, photo.ThumbnailPath())
	if err != nil {
		return fmt.Errorf("failed to delete thumbnail blob: %w", err)
	}

	err = s.photoRepo.Delete(ctx, id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete photo row: %w", err)
	}

	s.metrics.RecordDeleted(1)
	return nil
}

// DeleteMany processes ids independently and concurrently; one id's failure
// never blocks the others. The returned slice holds one outcome per id, in
// input order.
func (s *DeletionService) DeleteMany(ctx context.Context, ids []string, ownerID string) []IDOutcome {
	outcomes := make([]IDOutcome, len(ids))

	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			outcomes[i] = IDOutcome{ID: id, Err: s.DeleteOne(ctx, id, ownerID)}
		}(i, id)
	}
	wg.Wait()

	return outcomes
}

// DeleteAllForOwner removes every blob under the owner's storage prefix via
// paginated listing, then purges the owner's rows. Returns the number of
// rows deleted.
func (s *DeletionService) DeleteAllForOwner(ctx context.Context, ownerID string) (int64, error) {
	prefix := model.OwnerPrefix(ownerID)

	pageToken := ""
	for {
		keys, next, err := s.storage.List(ctx, prefix, s.listPageSize, pageToken)
		if err != nil {
			return 0, fmt.Errorf("failed to list owner blobs: %w", err)
		}

		for _, key := range keys {
			err = s.storage.Delete(ctx, key)
			if err != nil {
				return 0, fmt.Errorf("failed to delete blob %s: %w", key, err)
			}
		}

		if next == "" {
			break
		}
		pageToken = next
	}

	count, err := s.photoRepo.DeleteAllForOwner(ctx, ownerID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete photo rows: %w", err)
	}

	s.metrics.RecordDeleted(int(count))
	slog.Info("deleted all photos for owner", "owner_id", ownerID, "rows", count)
	return count, nil
}
