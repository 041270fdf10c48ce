package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmfrees/photovault/internal/metrics"
	"github.com/jmfrees/photovault/internal/model"
	"github.com/jmfrees/photovault/internal/repository"
)

func newDeletionEnv(t *testing.T, files ...string) (*testEnv, *DeletionService, map[string]string) {
	t.Helper()
	env := newTestEnv()

	items := make([]UploadItem, len(files))
	for i, name := range files {
		items[i] = UploadItem{Data: testJPEG(t, 200, 200), Filename: name, MediaType: "image/jpeg"}
	}

	ids := map[string]string{}
	if len(items) > 0 {
		result, err := env.ingest.Ingest(context.Background(), "1", items)
		require.NoError(t, err)
		require.Len(t, result.Photos, len(files))
		for _, p := range result.Photos {
			ids[p.Filename] = p.ID
		}
	}

	del := NewDeletionService(env.photos, env.storage, metrics.Noop{}, 100)
	return env, del, ids
}

func TestDeleteOneRemovesBlobsAndRow(t *testing.T) {
	env, del, ids := newDeletionEnv(t, "a.jpg")

	err := del.DeleteOne(context.Background(), ids["a.jpg"], "1")
	require.NoError(t, err)

	assert.False(t, env.storage.has("owner/1/a.jpg"))
	assert.False(t, env.storage.has("owner/1/thumbnails/a.jpg"))
	assert.Equal(t, 0, env.photos.rowCount())
}

func TestDeleteOneNotFound(t *testing.T) {
	_, del, _ := newDeletionEnv(t)

	err := del.DeleteOne(context.Background(), "missing", "1")
	assert.ErrorIs(t, err, repository.ErrPhotoNotFound)
}

func TestDeleteOneWrongOwner(t *testing.T) {
	_, del, ids := newDeletionEnv(t, "a.jpg")

	err := del.DeleteOne(context.Background(), ids["a.jpg"], "2")
	assert.ErrorIs(t, err, repository.ErrPhotoNotFound)
}

func TestDeleteOneBlobFailureRetainsRow(t *testing.T) {
	env, del, ids := newDeletionEnv(t, "a.jpg")
	env.storage.failDelete["owner/1/a.jpg"] = errors.New("storage unavailable")

	err := del.DeleteOne(context.Background(), ids["a.jpg"], "1")
	require.Error(t, err)

	// row must survive while a blob still exists
	assert.Equal(t, 1, env.photos.rowCount())
	assert.True(t, env.storage.has("owner/1/a.jpg"))
}

func TestDeleteManyIndependentOutcomes(t *testing.T) {
	env, del, ids := newDeletionEnv(t, "a.jpg", "b.jpg", "c.jpg")
	env.storage.failDelete["owner/1/b.jpg"] = errors.New("storage unavailable")

	outcomes := del.DeleteMany(context.Background(), []string{ids["a.jpg"], ids["b.jpg"], ids["c.jpg"]}, "1")
	require.Len(t, outcomes, 3)

	assert.NoError(t, outcomes[0].Err)
	assert.Error(t, outcomes[1].Err)
	assert.NoError(t, outcomes[2].Err)

	assert.Equal(t, 1, env.photos.rowCount())
	assert.True(t, env.storage.has("owner/1/b.jpg"))
	assert.False(t, env.storage.has("owner/1/a.jpg"))
	assert.False(t, env.storage.has("owner/1/c.jpg"))
}

func TestDeleteAllForOwnerPaginates(t *testing.T) {
	env := newTestEnv()

	// 600 photos x 2 blobs = 1200 objects under owner/1/, plus a bystander
	// belonging to another owner
	rows := make([]*model.Photo, 0, 600)
	now := time.Now()
	for i := 0; i < 600; i++ {
		name := fmt.Sprintf("p%04d.jpg", i)
		env.storage.objects["owner/1/"+name] = []byte("orig")
		env.storage.objects["owner/1/thumbnails/"+name] = []byte("thumb")
		rows = append(rows, &model.Photo{
			ID:         fmt.Sprintf("id-%04d", i),
			OwnerID:    "1",
			Filename:   name,
			MediaType:  "image/jpeg",
			UploadedAt: now,
		})
	}
	env.storage.objects["owner/2/keep.jpg"] = []byte("other owner")
	require.NoError(t, env.photos.InsertMany(context.Background(), rows))

	del := NewDeletionService(env.photos, env.storage, metrics.Noop{}, 100)

	count, err := del.DeleteAllForOwner(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, int64(600), count)

	// 1200 keys at a page size of 100 forces multiple list calls
	assert.GreaterOrEqual(t, env.storage.listCalls, 12)
	assert.Equal(t, 1, env.storage.count())
	assert.True(t, env.storage.has("owner/2/keep.jpg"))
	assert.Equal(t, 0, env.photos.rowCount())
}
