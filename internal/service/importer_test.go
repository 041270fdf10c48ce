package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmfrees/photovault/internal/metrics"
	"github.com/jmfrees/photovault/internal/service/provider"
)

func newImportCoordinator(env *testEnv, maxPolls int) *ImportCoordinator {
	return NewImportCoordinator(
		env.integrations,
		env.photos,
		env.ingest,
		env.prov,
		env.tokens,
		metrics.Noop{},
		time.Millisecond,
		maxPolls,
		2,
	)
}

func waitForJob(t *testing.T, job *ImportJob) {
	t.Helper()
	select {
	case <-job.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("import job did not finish")
	}
}

func TestImportMissingIntegration(t *testing.T) {
	env := newTestEnv()
	coord := newImportCoordinator(env, 3)

	_, err := coord.Start(context.Background(), "1")
	assert.ErrorIs(t, err, ErrIntegrationMissing)
}

func TestImportStartRefreshesExpiredToken(t *testing.T) {
	env := newTestEnv()
	enableIntegration(env, "1")
	env.prov.createErrs = []error{provider.ErrTokenExpired}
	env.prov.readyAfter = -1

	coord := newImportCoordinator(env, 1)

	job, err := coord.Start(context.Background(), "1")
	require.NoError(t, err)
	waitForJob(t, job)

	assert.Equal(t, 1, env.tokens.refreshCount())
	require.Len(t, env.prov.createToks, 2)
	assert.Equal(t, "tok-live", env.prov.createToks[0])
	assert.Equal(t, "fresh-token", env.prov.createToks[1])
}

func TestImportExpiresAtPollCap(t *testing.T) {
	env := newTestEnv()
	enableIntegration(env, "1")
	env.prov.readyAfter = -1 // user never finishes picking

	coord := newImportCoordinator(env, 3)

	job, err := coord.Start(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, "https://photos.example.com/pick/sess-1", job.PickerURI)

	waitForJob(t, job)

	state, result, jobErr := job.Status()
	assert.Equal(t, StateExpired, state)
	require.NotNil(t, result)
	assert.Equal(t, OutcomeExpired, result.Outcome)
	assert.NoError(t, jobErr)

	// exactly the cap, and exactly one session teardown
	assert.Equal(t, 3, env.prov.polls())
	assert.Equal(t, 1, env.prov.deletes())
}

func TestImportCompletes(t *testing.T) {
	env := newTestEnv()
	enableIntegration(env, "1")
	env.prov.readyAfter = 2
	created := time.Date(2024, 3, 10, 9, 30, 0, 0, time.UTC)
	env.prov.media = []provider.MediaItem{
		{ID: "gp-1", Filename: "beach.jpg", MimeType: "image/jpeg", CreateTime: &created},
		{ID: "gp-2", Filename: "hike.jpg", MimeType: "image/jpeg"},
	}
	env.prov.mediaBytes["gp-1"] = testJPEG(t, 300, 200)
	env.prov.mediaBytes["gp-2"] = testJPEG(t, 200, 300)

	coord := newImportCoordinator(env, 10)

	job, err := coord.Start(context.Background(), "1")
	require.NoError(t, err)
	waitForJob(t, job)

	state, result, jobErr := job.Status()
	require.NoError(t, jobErr)
	assert.Equal(t, StateCompleted, state)
	require.NotNil(t, result)
	assert.Equal(t, OutcomeCompleted, result.Outcome)
	require.Len(t, result.Photos, 2)
	assert.Empty(t, result.Rejected)

	for _, p := range result.Photos {
		assert.True(t, env.storage.has(p.StoragePath()), p.Filename)
		assert.True(t, env.storage.has(p.ThumbnailPath()), p.Filename)
	}

	beach := env.photos.byFilename("beach.jpg")
	require.NotNil(t, beach)
	require.NotNil(t, beach.ExternalProviderID)
	assert.Equal(t, "gp-1", *beach.ExternalProviderID)
	require.NotNil(t, beach.CapturedAt)
	assert.Equal(t, created, *beach.CapturedAt)

	hike := env.photos.byFilename("hike.jpg")
	require.NotNil(t, hike)
	require.NotNil(t, hike.ExternalProviderID)
	assert.Equal(t, "gp-2", *hike.ExternalProviderID)

	assert.Equal(t, 1, env.prov.deletes())
}

func TestImportTransportErrorsConsumeAttempts(t *testing.T) {
	env := newTestEnv()
	enableIntegration(env, "1")
	env.prov.readyAfter = 2
	env.prov.pollErrs[1] = provider.ErrTransport
	env.prov.pollErrs[2] = provider.ErrTransport

	coord := newImportCoordinator(env, 5)

	job, err := coord.Start(context.Background(), "1")
	require.NoError(t, err)
	waitForJob(t, job)

	state, _, jobErr := job.Status()
	assert.Equal(t, StateCompleted, state)
	assert.NoError(t, jobErr)
	assert.Equal(t, 3, env.prov.polls())
}

func TestImportCancelStillCleansUp(t *testing.T) {
	env := newTestEnv()
	enableIntegration(env, "1")
	env.prov.readyAfter = -1

	coord := newImportCoordinator(env, 10000)

	job, err := coord.Start(context.Background(), "1")
	require.NoError(t, err)

	job.Cancel()
	waitForJob(t, job)

	_, result, jobErr := job.Status()
	require.NotNil(t, result)
	assert.Equal(t, OutcomeCancelled, result.Outcome)
	assert.NoError(t, jobErr)
	assert.Equal(t, 1, env.prov.deletes())
	assert.Equal(t, 0, env.photos.rowCount())
}

func TestImportFetchFailure(t *testing.T) {
	env := newTestEnv()
	enableIntegration(env, "1")
	env.prov.readyAfter = 0
	env.prov.fetchErr = errors.New("listing broke")

	coord := newImportCoordinator(env, 5)

	job, err := coord.Start(context.Background(), "1")
	require.NoError(t, err)
	waitForJob(t, job)

	state, result, jobErr := job.Status()
	assert.Equal(t, StateFailed, state)
	require.NotNil(t, result)
	assert.Equal(t, OutcomeFailed, result.Outcome)
	assert.Error(t, jobErr)
	assert.Equal(t, 1, env.prov.deletes())
}

func TestImportDownloadFailureRejectsOnlyThatItem(t *testing.T) {
	env := newTestEnv()
	enableIntegration(env, "1")
	env.prov.readyAfter = 0
	env.prov.media = []provider.MediaItem{
		{ID: "gp-1", Filename: "ok.jpg", MimeType: "image/jpeg"},
		{ID: "gp-2", Filename: "gone.jpg", MimeType: "image/jpeg"},
	}
	env.prov.mediaBytes["gp-1"] = testJPEG(t, 120, 90)
	// no bytes for gp-2: its download fails

	coord := newImportCoordinator(env, 5)

	job, err := coord.Start(context.Background(), "1")
	require.NoError(t, err)
	waitForJob(t, job)

	state, result, jobErr := job.Status()
	require.NoError(t, jobErr)
	assert.Equal(t, StateCompleted, state)
	require.Len(t, result.Photos, 1)
	assert.Equal(t, "ok.jpg", result.Photos[0].Filename)
	require.Len(t, result.Rejected, 1)
	assert.Equal(t, "gone.jpg", result.Rejected[0].Filename)
}

func TestImportJobLookup(t *testing.T) {
	env := newTestEnv()
	enableIntegration(env, "1")
	env.prov.readyAfter = 0

	coord := newImportCoordinator(env, 5)

	job, err := coord.Start(context.Background(), "1")
	require.NoError(t, err)

	found, ok := coord.Job(job.ID)
	require.True(t, ok)
	assert.Same(t, job, found)

	_, ok = coord.Job("nope")
	assert.False(t, ok)

	waitForJob(t, job)
}
