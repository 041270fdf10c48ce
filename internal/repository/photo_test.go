package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/jmfrees/photovault/internal/db"
	"github.com/jmfrees/photovault/internal/model"
)

func newTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	conn, err := sqlx.Connect("sqlite", ":memory:")
	require.NoError(t, err)
	// one connection so every query sees the same in-memory database
	conn.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = conn.Close() })

	require.NoError(t, db.RunMigrations(conn.DB, "sqlite"))
	return conn
}

func testPhoto(ownerID, filename string, uploadedAt time.Time) *model.Photo {
	return &model.Photo{
		ID:         uuid.New().String(),
		OwnerID:    ownerID,
		Filename:   filename,
		Size:       1024,
		MediaType:  "image/jpeg",
		UploadedAt: uploadedAt,
	}
}

func TestPhotoInsertManyAndByID(t *testing.T) {
	repo := NewPhotoRepository(newTestDB(t))
	ctx := context.Background()

	now := time.Now().UTC()
	a := testPhoto("1", "a.jpg", now)
	b := testPhoto("1", "b.jpg", now)
	require.NoError(t, repo.InsertMany(ctx, []*model.Photo{a, b}))

	got, err := repo.ByID(ctx, a.ID, "1")
	require.NoError(t, err)
	assert.Equal(t, a.Filename, got.Filename)
	assert.Equal(t, a.Size, got.Size)
	assert.WithinDuration(t, now, got.UploadedAt, time.Second)

	// ownership is part of the key
	_, err = repo.ByID(ctx, a.ID, "2")
	assert.ErrorIs(t, err, ErrPhotoNotFound)
}

func TestPhotoInsertManyAllOrNothing(t *testing.T) {
	repo := NewPhotoRepository(newTestDB(t))
	ctx := context.Background()

	now := time.Now().UTC()
	a := testPhoto("1", "a.jpg", now)
	dup := testPhoto("1", "b.jpg", now)
	dup.ID = a.ID // primary key collision fails the batch

	err := repo.InsertMany(ctx, []*model.Photo{a, dup})
	require.Error(t, err)

	photos, err := repo.AllForOwner(ctx, "1", PhotoFilter{})
	require.NoError(t, err)
	assert.Empty(t, photos)
}

func TestPhotoAllForOwnerFilters(t *testing.T) {
	repo := NewPhotoRepository(newTestDB(t))
	ctx := context.Background()

	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	jan := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	jun := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)

	old := testPhoto("1", "old.jpg", base)
	old.CapturedAt = &jan
	recent := testPhoto("1", "recent.jpg", base.Add(time.Hour))
	recent.CapturedAt = &jun
	gif := testPhoto("1", "anim.gif", base.Add(2*time.Hour))
	gif.MediaType = "image/gif"
	other := testPhoto("2", "other.jpg", base)

	require.NoError(t, repo.InsertMany(ctx, []*model.Photo{old, recent, gif, other}))

	all, err := repo.AllForOwner(ctx, "1", PhotoFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	// newest upload first
	assert.Equal(t, "anim.gif", all[0].Filename)

	gifs, err := repo.AllForOwner(ctx, "1", PhotoFilter{MediaType: "image/gif"})
	require.NoError(t, err)
	require.Len(t, gifs, 1)
	assert.Equal(t, "anim.gif", gifs[0].Filename)

	cutoff := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	after, err := repo.AllForOwner(ctx, "1", PhotoFilter{CapturedAfter: &cutoff})
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.Equal(t, "recent.jpg", after[0].Filename)

	before, err := repo.AllForOwner(ctx, "1", PhotoFilter{CapturedBefore: &cutoff})
	require.NoError(t, err)
	require.Len(t, before, 1)
	assert.Equal(t, "old.jpg", before[0].Filename)
}

func TestPhotoUpdate(t *testing.T) {
	repo := NewPhotoRepository(newTestDB(t))
	ctx := context.Background()

	photo := testPhoto("1", "a.jpg", time.Now().UTC())
	require.NoError(t, repo.InsertMany(ctx, []*model.Photo{photo}))

	ext := "ext-123"
	photo.ExternalProviderID = &ext
	require.NoError(t, repo.Update(ctx, photo))

	got, err := repo.ByID(ctx, photo.ID, "1")
	require.NoError(t, err)
	require.NotNil(t, got.ExternalProviderID)
	assert.Equal(t, "ext-123", *got.ExternalProviderID)

	missing := testPhoto("1", "ghost.jpg", time.Now().UTC())
	assert.ErrorIs(t, repo.Update(ctx, missing), ErrPhotoNotFound)
}

func TestPhotoDelete(t *testing.T) {
	repo := NewPhotoRepository(newTestDB(t))
	ctx := context.Background()

	photo := testPhoto("1", "a.jpg", time.Now().UTC())
	require.NoError(t, repo.InsertMany(ctx, []*model.Photo{photo}))

	require.NoError(t, repo.Delete(ctx, photo.ID, "1"))
	assert.ErrorIs(t, repo.Delete(ctx, photo.ID, "1"), ErrPhotoNotFound)
}

func TestPhotoDeleteAllForOwner(t *testing.T) {
	repo := NewPhotoRepository(newTestDB(t))
	ctx := context.Background()

	now := time.Now().UTC()
	mine := []*model.Photo{
		testPhoto("1", "a.jpg", now),
		testPhoto("1", "b.jpg", now),
		testPhoto("1", "c.jpg", now),
	}
	theirs := testPhoto("2", "keep.jpg", now)
	require.NoError(t, repo.InsertMany(ctx, append(mine, theirs)))

	count, err := repo.DeleteAllForOwner(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	left, err := repo.AllForOwner(ctx, "2", PhotoFilter{})
	require.NoError(t, err)
	assert.Len(t, left, 1)
}

func TestPhotoTouchLastAccessed(t *testing.T) {
	repo := NewPhotoRepository(newTestDB(t))
	ctx := context.Background()

	photo := testPhoto("1", "a.jpg", time.Now().UTC())
	require.NoError(t, repo.InsertMany(ctx, []*model.Photo{photo}))

	require.NoError(t, repo.TouchLastAccessed(ctx, photo.ID, "1"))

	got, err := repo.ByID(ctx, photo.ID, "1")
	require.NoError(t, err)
	require.NotNil(t, got.LastAccessedAt)
	assert.WithinDuration(t, time.Now(), *got.LastAccessedAt, 5*time.Second)
}

func TestIntegrationUpsertRoundTrip(t *testing.T) {
	repo := NewIntegrationRepository(newTestDB(t))
	ctx := context.Background()

	integration := &model.Integration{
		OwnerID:      "1",
		Provider:     model.ProviderGooglePhotos,
		AccessToken:  "tok-1",
		RefreshToken: "refresh-1",
	}
	require.NoError(t, repo.Upsert(ctx, integration))

	integration.AccessToken = "tok-2"
	require.NoError(t, repo.Upsert(ctx, integration))

	got, err := repo.ByOwnerAndProvider(ctx, "1", model.ProviderGooglePhotos)
	require.NoError(t, err)
	assert.Equal(t, "tok-2", got.AccessToken)
	assert.Equal(t, "refresh-1", got.RefreshToken)

	require.NoError(t, repo.Delete(ctx, "1", model.ProviderGooglePhotos))
	_, err = repo.ByOwnerAndProvider(ctx, "1", model.ProviderGooglePhotos)
	assert.ErrorIs(t, err, ErrIntegrationNotFound)
}

func TestSettingGetSet(t *testing.T) {
	repo := NewSettingRepository(newTestDB(t))
	ctx := context.Background()

	_, err := repo.Get(ctx, "1", model.SettingAutoExport)
	assert.ErrorIs(t, err, ErrSettingNotFound)

	require.NoError(t, repo.Set(ctx, "1", model.SettingAutoExport, "true"))
	setting, err := repo.Get(ctx, "1", model.SettingAutoExport)
	require.NoError(t, err)
	assert.True(t, setting.Enabled())

	require.NoError(t, repo.Set(ctx, "1", model.SettingAutoExport, "false"))
	setting, err = repo.Get(ctx, "1", model.SettingAutoExport)
	require.NoError(t, err)
	assert.False(t, setting.Enabled())
}
