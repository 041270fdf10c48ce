package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/jmfrees/photovault/internal/metrics"
	"github.com/jmfrees/photovault/internal/model"
	"github.com/jmfrees/photovault/internal/repository"
	"github.com/jmfrees/photovault/internal/service/provider"
)

var (
	// ErrIntegrationMissing means the owner has no active provider
	// integration; import and export both require one.
	ErrIntegrationMissing = errors.New("provider integration missing")

	errSessionNotReady = errors.New("picker session not ready")
)

// ImportState tracks one import attempt through its lifecycle:
// created → polling → {ready, expired} → fetching → completed | failed.
type ImportState string

const (
	StateCreated   ImportState = "created"
	StatePolling   ImportState = "polling"
	StateReady     ImportState = "ready"
	StateExpired   ImportState = "expired"
	StateFetching  ImportState = "fetching"
	StateCompleted ImportState = "completed"
	StateFailed    ImportState = "failed"
)

// Import outcomes reported to the caller and to metrics.
const (
	OutcomeCompleted = "completed"
	OutcomeExpired   = "expired"
	OutcomeCancelled = "cancelled"
	OutcomeFailed    = "failed"
)

// ImportResult is the terminal report of one import attempt.
type ImportResult struct {
	Outcome  string
	Photos   []*model.Photo
	Rejected []ItemError
}

// ImportJob is the caller's handle on a running import. The session state
// is owned exclusively by the goroutine driving the attempt; the job only
// exposes snapshots.
type ImportJob struct {
	ID        string
	OwnerID   string
	PickerURI string

	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.Mutex
	state  ImportState
	result *ImportResult
	err    error
}

// Done is closed when the attempt reaches a terminal state.
func (j *ImportJob) Done() <-chan struct{} {
	return j.done
}

// Cancel stops the poll loop. Session cleanup on the provider still runs.
func (j *ImportJob) Cancel() {
	j.cancel()
}

// Status returns a snapshot of the job's state and, once terminal, its
// result and error.
func (j *ImportJob) Status() (ImportState, *ImportResult, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state, j.result, j.err
}

func (j *ImportJob) setState(s ImportState) {
	j.mu.Lock()
	j.state = s
	j.mu.Unlock()
}

func (j *ImportJob) finish(s ImportState, result *ImportResult, err error) {
	j.mu.Lock()
	j.state = s
	j.result = result
	j.err = err
	j.mu.Unlock()
}

// ImportCoordinator drives provider import sessions: create, poll with a
// hard attempt cap, fetch on readiness, and tear the session down no matter
// how the attempt ends.
type ImportCoordinator struct {
	integrationRepo  repository.IntegrationRepository
	photoRepo        repository.PhotoRepository
	ingest           *IngestService
	provider         provider.Client
	tokens           TokenRefresher
	metrics          metrics.Collector
	pollInterval     time.Duration
	maxPollAttempts  int
	downloadParallel int
	jobRetention     time.Duration

	mu   sync.Mutex
	jobs map[string]*ImportJob
}

func NewImportCoordinator(
	integrationRepo repository.IntegrationRepository,
	photoRepo repository.PhotoRepository,
	ingest *IngestService,
	client provider.Client,
	tokens TokenRefresher,
	collector metrics.Collector,
	pollInterval time.Duration,
	maxPollAttempts int,
	downloadParallel int,
) *ImportCoordinator {
	if maxPollAttempts <= 0 {
		maxPollAttempts = 60
	}
	if downloadParallel <= 0 {
		downloadParallel = 4
	}
	return &ImportCoordinator{
		integrationRepo:  integrationRepo,
		photoRepo:        photoRepo,
		ingest:           ingest,
		provider:         client,
		tokens:           tokens,
		metrics:          collector,
		pollInterval:     pollInterval,
		maxPollAttempts:  maxPollAttempts,
		downloadParallel: downloadParallel,
		jobRetention:     time.Hour,
		jobs:             make(map[string]*ImportJob),
	}
}

// Start opens a picker session and launches the background poll loop. The
// returned job carries the picker URI the caller must surface to the user.
// An expired access token is refreshed once before giving up.
func (c *ImportCoordinator) Start(ctx context.Context, ownerID string) (*ImportJob, error) {
	integration, err := c.integrationRepo.ByOwnerAndProvider(ctx, ownerID, c.provider.Name())
	if err != nil {
		if errors.Is(err, repository.ErrIntegrationNotFound) {
			return nil, ErrIntegrationMissing
		}
		return nil, fmt.Errorf("failed to read integration: %w", err)
	}
	token := integration.AccessToken

	session, err := c.provider.CreateSession(ctx, token)
	if errors.Is(err, provider.ErrTokenExpired) {
		token, err = c.tokens.Refresh(ctx, integration)
		if err != nil {
			return nil, fmt.Errorf("token refresh failed: %w", err)
		}
		session, err = c.provider.CreateSession(ctx, token)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create provider session: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	job := &ImportJob{
		ID:        uuid.New().String(),
		OwnerID:   ownerID,
		PickerURI: session.PickerURI,
		cancel:    cancel,
		done:      make(chan struct{}),
		state:     StateCreated,
	}

	c.mu.Lock()
	c.jobs[job.ID] = job
	c.mu.Unlock()

	go c.run(runCtx, job, token, session.ID)

	slog.Info("import session started",
		"owner_id", ownerID,
		"job_id", job.ID,
		"session_id", session.ID,
	)
	return job, nil
}

// Job looks up a running or recently finished import by id.
func (c *ImportCoordinator) Job(id string) (*ImportJob, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	job, ok := c.jobs[id]
	return job, ok
}

func (c *ImportCoordinator) run(ctx context.Context, job *ImportJob, token, sessionID string) {
	defer close(job.done)

	// Session cleanup must run on every path: completion, expiry, fetch
	// failure, and cancellation. A fresh context because ctx may already be
	// cancelled.
	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		err := c.provider.DeleteSession(cleanupCtx, token, sessionID)
		if err != nil {
			slog.Warn("provider session cleanup failed", "job_id", job.ID, "session_id", sessionID, "error", err)
		}

		c.scheduleRemoval(job.ID)
	}()

	job.setState(StatePolling)

	err := c.poll(ctx, token, sessionID)
	switch {
	case err == nil:
		// ready, continue below
	case errors.Is(err, context.Canceled):
		job.finish(StateFailed, &ImportResult{Outcome: OutcomeCancelled}, nil)
		c.metrics.RecordImportOutcome(OutcomeCancelled)
		return
	case errors.Is(err, errSessionNotReady) || errors.Is(err, provider.ErrTransport):
		// Attempt cap reached without readiness: a normal, reportable
		// outcome. The user simply never finished picking.
		job.finish(StateExpired, &ImportResult{Outcome: OutcomeExpired}, nil)
		c.metrics.RecordImportOutcome(OutcomeExpired)
		slog.Info("import session expired", "job_id", job.ID, "session_id", sessionID)
		return
	default:
		job.finish(StateFailed, &ImportResult{Outcome: OutcomeFailed}, err)
		c.metrics.RecordImportOutcome(OutcomeFailed)
		slog.Error("import session failed", "job_id", job.ID, "error", err)
		return
	}

	job.setState(StateReady)
	job.setState(StateFetching)

	result, err := c.fetchAndIngest(ctx, job.OwnerID, token, sessionID)
	if err != nil {
		job.finish(StateFailed, &ImportResult{Outcome: OutcomeFailed}, err)
		c.metrics.RecordImportOutcome(OutcomeFailed)
		slog.Error("import fetch failed", "job_id", job.ID, "error", err)
		return
	}

	job.finish(StateCompleted, result, nil)
	c.metrics.RecordImportOutcome(OutcomeCompleted)
	slog.Info("import completed",
		"job_id", job.ID,
		"photos", len(result.Photos),
		"rejected", len(result.Rejected),
	)
}

// poll issues GetSession on a fixed interval, bounded by the attempt cap.
// Transport failures are retryable and consume attempts; a token expiry or
// vanished session aborts the loop.
func (c *ImportCoordinator) poll(ctx context.Context, token, sessionID string) error {
	backoff := retry.WithMaxRetries(uint64(c.maxPollAttempts-1), retry.NewConstant(c.pollInterval))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		c.metrics.RecordPollAttempt()

		status, err := c.provider.GetSession(ctx, token, sessionID)
		if err != nil {
			if errors.Is(err, provider.ErrTransport) {
				return retry.RetryableError(err)
			}
			return err
		}

		if !status.MediaItemsSet {
			return retry.RetryableError(errSessionNotReady)
		}
		return nil
	})
}

// fetchAndIngest lists the selected media, downloads originals with bounded
// concurrency, and reuses the ingestion pipeline's write path.
func (c *ImportCoordinator) fetchAndIngest(ctx context.Context, ownerID, token, sessionID string) (*ImportResult, error) {
	items, err := c.provider.FetchMedia(ctx, token, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch selected media: %w", err)
	}
	if len(items) == 0 {
		return &ImportResult{Outcome: OutcomeCompleted}, nil
	}

	uploads := make([]UploadItem, len(items))
	downloadErrs := make([]error, len(items))

	sem := make(chan struct{}, c.downloadParallel)
	var wg sync.WaitGroup

	for i, item := range items {
		wg.Add(1)
		sem <- struct{}{}

		go func(i int, item provider.MediaItem) {
			defer wg.Done()
			defer func() { <-sem }()

			data, err := c.provider.DownloadMedia(ctx, token, item)
			if err != nil {
				downloadErrs[i] = err
				return
			}
			uploads[i] = UploadItem{
				Data:       data,
				Filename:   item.Filename,
				MediaType:  item.MimeType,
				CapturedAt: item.CreateTime,
			}
		}(i, item)
	}
	wg.Wait()

	result := &ImportResult{Outcome: OutcomeCompleted}
	batch := make([]UploadItem, 0, len(items))
	externalIDs := make(map[string]string, len(items))

	for i, item := range items {
		if downloadErrs[i] != nil {
			result.Rejected = append(result.Rejected, ItemError{Filename: item.Filename, Err: downloadErrs[i]})
			continue
		}
		batch = append(batch, uploads[i])
		externalIDs[item.Filename] = item.ID
	}

	if len(batch) == 0 {
		return result, nil
	}

	ingested, err := c.ingest.Ingest(ctx, ownerID, batch)
	if err != nil {
		return nil, fmt.Errorf("failed to ingest imported media: %w", err)
	}

	// Imported photos keep their provider identity so auto-export never
	// echoes them back.
	for _, photo := range ingested.Photos {
		externalID, ok := externalIDs[photo.Filename]
		if !ok {
			continue
		}
		photo.ExternalProviderID = &externalID
		err = c.photoRepo.Update(ctx, photo)
		if err != nil {
			slog.Warn("failed to record provider id on imported photo", "photo_id", photo.ID, "error", err)
		}
	}

	result.Photos = ingested.Photos
	result.Rejected = append(result.Rejected, ingested.Rejected...)
	return result, nil
}

// scheduleRemoval drops a finished job from the registry after the
// retention window so status queries work for a while without the map
// growing forever.
func (c *ImportCoordinator) scheduleRemoval(jobID string) {
	time.AfterFunc(c.jobRetention, func() {
		c.mu.Lock()
		delete(c.jobs, jobID)
		c.mu.Unlock()
	})
}
