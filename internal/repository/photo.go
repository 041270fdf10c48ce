package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jmfrees/photovault/internal/model"
)

var (
	ErrPhotoNotFound = errors.New("photo not found")
)

// PhotoFilter narrows AllForOwner results. Zero values mean "no filter".
type PhotoFilter struct {
	MediaType      string
	CapturedAfter  *time.Time
	CapturedBefore *time.Time
}

type PhotoRepository interface {
	// InsertMany persists a batch of photo rows in a single transaction.
	// IDs must be assigned by the caller before the call. The metadata step
	// is all-or-nothing; blob writes happen afterwards.
	InsertMany(ctx context.Context, photos []*model.Photo) error
	ByID(ctx context.Context, id, ownerID string) (*model.Photo, error)
	AllForOwner(ctx context.Context, ownerID string, filter PhotoFilter) ([]*model.Photo, error)
	Update(ctx context.Context, photo *model.Photo) error
	Delete(ctx context.Context, id, ownerID string) error
	DeleteAllForOwner(ctx context.Context, ownerID string) (int64, error)
	TouchLastAccessed(ctx context.Context, id, ownerID string) error
}

type photoRepository struct {
	db *sqlx.DB
}

func NewPhotoRepository(db *sqlx.DB) PhotoRepository {
	return &photoRepository{db: db}
}

func (r *photoRepository) InsertMany(ctx context.Context, photos []*model.Photo) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `INSERT INTO photos (id, owner_id, filename, size, media_type, captured_at, uploaded_at, last_accessed_at, external_provider_id, location, compressed)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	for _, p := range photos {
		_, err = tx.ExecContext(ctx, query,
			p.ID,
			p.OwnerID,
			p.Filename,
			p.Size,
			p.MediaType,
			p.CapturedAt,
			p.UploadedAt,
			p.LastAccessedAt,
			p.ExternalProviderID,
			p.Location,
			p.Compressed,
		)
		if err != nil {
			return fmt.Errorf("failed to insert photo %s: %w", p.Filename, err)
		}
	}

	return tx.Commit()
}

func (r *photoRepository) ByID(ctx context.Context, id, ownerID string) (*model.Photo, error) {
	photo := &model.Photo{}
	query := `SELECT * FROM photos WHERE id = $1 AND owner_id = $2`

	err := r.db.GetContext(ctx, photo, query, id, ownerID)
	if err == sql.ErrNoRows {
		return nil, ErrPhotoNotFound
	}

	return photo, err
}

func (r *photoRepository) AllForOwner(ctx context.Context, ownerID string, filter PhotoFilter) ([]*model.Photo, error) {
	query := `SELECT * FROM photos WHERE owner_id = $1`
	args := []any{ownerID}

	if filter.MediaType != "" {
		args = append(args, filter.MediaType)
		query += ` AND media_type = $` + strconv.Itoa(len(args))
	}
	if filter.CapturedAfter != nil {
		args = append(args, *filter.CapturedAfter)
		query += ` AND captured_at >= $` + strconv.Itoa(len(args))
	}
	if filter.CapturedBefore != nil {
		args = append(args, *filter.CapturedBefore)
		query += ` AND captured_at < $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY uploaded_at DESC`

	var photos []*model.Photo
	err := r.db.SelectContext(ctx, &photos, query, args...)
	if err != nil {
		return nil, err
	}

	return photos, nil
}

func (r *photoRepository) Update(ctx context.Context, photo *model.Photo) error {
	query := `UPDATE photos SET captured_at = $1, last_accessed_at = $2, external_provider_id = $3, location = $4, compressed = $5
	          WHERE id = $6 AND owner_id = $7`

	res, err := r.db.ExecContext(ctx, query,
		photo.CapturedAt,
		photo.LastAccessedAt,
		photo.ExternalProviderID,
		photo.Location,
		photo.Compressed,
		photo.ID,
		photo.OwnerID,
	)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrPhotoNotFound
	}

	return nil
}

func (r *photoRepository) Delete(ctx context.Context, id, ownerID string) error {
	query := `DELETE FROM photos WHERE id = $1 AND owner_id = $2`

	res, err := r.db.ExecContext(ctx, query, id, ownerID)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrPhotoNotFound
	}

	return nil
}

func (r *photoRepository) DeleteAllForOwner(ctx context.Context, ownerID string) (int64, error) {
	query := `DELETE FROM photos WHERE owner_id = $1`

	res, err := r.db.ExecContext(ctx, query, ownerID)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}

func (r *photoRepository) TouchLastAccessed(ctx context.Context, id, ownerID string) error {
	query := `UPDATE photos SET last_accessed_at = $1 WHERE id = $2 AND owner_id = $3`

	_, err := r.db.ExecContext(ctx, query, time.Now(), id, ownerID)
	return err
}
