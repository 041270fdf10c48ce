package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jmfrees/photovault/internal/metrics"
	"github.com/jmfrees/photovault/internal/model"
	"github.com/jmfrees/photovault/internal/repository"
	"github.com/jmfrees/photovault/internal/service/provider"
	"github.com/jmfrees/photovault/internal/storage"
)

// ExportDecision is the outcome of the auto-export gate.
type ExportDecision struct {
	ShouldExport bool
}

// ExportGate decides whether freshly ingested photos must be pushed to the
// external provider. It re-reads the setting and the integration on every
// call; settings may change between ingestions, so nothing is cached.
type ExportGate struct {
	settingRepo     repository.SettingRepository
	integrationRepo repository.IntegrationRepository
	providerName    string
}

func NewExportGate(settingRepo repository.SettingRepository, integrationRepo repository.IntegrationRepository, providerName string) *ExportGate {
	return &ExportGate{
		settingRepo:     settingRepo,
		integrationRepo: integrationRepo,
		providerName:    providerName,
	}
}

// Evaluate returns true only when the auto-export setting is enabled AND a
// live provider integration exists. A missing integration or setting is a
// false decision, not an error.
func (g *ExportGate) Evaluate(ctx context.Context, ownerID string) (ExportDecision, error) {
	setting, err := g.settingRepo.Get(ctx, ownerID, model.SettingAutoExport)
	if err != nil {
		if errors.Is(err, repository.ErrSettingNotFound) {
			return ExportDecision{ShouldExport: false}, nil
		}
		return ExportDecision{}, fmt.Errorf("failed to read auto-export setting: %w", err)
	}
	if !setting.Enabled() {
		return ExportDecision{ShouldExport: false}, nil
	}

	_, err = g.integrationRepo.ByOwnerAndProvider(ctx, ownerID, g.providerName)
	if err != nil {
		if errors.Is(err, repository.ErrIntegrationNotFound) {
			return ExportDecision{ShouldExport: false}, nil
		}
		return ExportDecision{}, fmt.Errorf("failed to read integration: %w", err)
	}

	return ExportDecision{ShouldExport: true}, nil
}

// ExportService pushes ingested photos back to the external provider.
type ExportService struct {
	photoRepo       repository.PhotoRepository
	integrationRepo repository.IntegrationRepository
	storage         storage.Storage
	provider        provider.Client
	tokens          TokenRefresher
	metrics         metrics.Collector
	timeout         time.Duration
}

func NewExportService(
	photoRepo repository.PhotoRepository,
	integrationRepo repository.IntegrationRepository,
	st storage.Storage,
	client provider.Client,
	tokens TokenRefresher,
	collector metrics.Collector,
) *ExportService {
	return &ExportService{
		photoRepo:       photoRepo,
		integrationRepo: integrationRepo,
		storage:         st,
		provider:        client,
		tokens:          tokens,
		metrics:         collector,
		timeout:         5 * time.Minute,
	}
}

// ExportAsync hands the photos to a background push. Ingestion does not
// wait for the provider; failures are logged and the photos stay local.
func (s *ExportService) ExportAsync(ownerID string, photos []*model.Photo) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		err := s.Export(ctx, ownerID, photos)
		if err != nil {
			slog.Error("auto-export failed", "owner_id", ownerID, "photos", len(photos), "error", err)
		}
	}()
}

// Export uploads each photo's original bytes to the provider and records
// the returned media id. A token expiry is refreshed once, then the export
// is surfaced as failed; no refresh loops.
func (s *ExportService) Export(ctx context.Context, ownerID string, photos []*model.Photo) error {
	integration, err := s.integrationRepo.ByOwnerAndProvider(ctx, ownerID, s.provider.Name())
	if err != nil {
		if errors.Is(err, repository.ErrIntegrationNotFound) {
			return ErrIntegrationMissing
		}
		return fmt.Errorf("failed to read integration: %w", err)
	}
	token := integration.AccessToken

	exported := 0
	for _, photo := range photos {
		// Photos that already came from the provider are not echoed back.
		if photo.ExternalProviderID != nil {
			continue
		}

		data, err := s.readOriginal(ctx, photo)
		if err != nil {
			slog.Warn("export skipped, original unreadable", "photo_id", photo.ID, "error", err)
			continue
		}

		externalID, err := s.provider.Upload(ctx, token, photo.Filename, photo.MediaType, data)
		if errors.Is(err, provider.ErrTokenExpired) {
			token, err = s.tokens.Refresh(ctx, integration)
			if err != nil {
				return fmt.Errorf("token refresh failed: %w", err)
			}
			externalID, err = s.provider.Upload(ctx, token, photo.Filename, photo.MediaType, data)
		}
		if err != nil {
			return fmt.Errorf("provider upload of %s failed: %w", photo.Filename, err)
		}

		photo.ExternalProviderID = &externalID
		err = s.photoRepo.Update(ctx, photo)
		if err != nil {
			return fmt.Errorf("failed to record external id for %s: %w", photo.Filename, err)
		}
		exported++
	}

	s.metrics.RecordExported(exported)
	slog.Info("auto-export completed", "owner_id", ownerID, "exported", exported)
	return nil
}

func (s *ExportService) readOriginal(ctx context.Context, photo *model.Photo) ([]byte, error) {
	rc, err := s.storage.Get(ctx, photo.StoragePath())
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	return io.ReadAll(rc)
}
