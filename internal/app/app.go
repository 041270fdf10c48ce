package app

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jmfrees/photovault/internal/config"
	"github.com/jmfrees/photovault/internal/db"
	"github.com/jmfrees/photovault/internal/metrics"
	"github.com/jmfrees/photovault/internal/repository"
	"github.com/jmfrees/photovault/internal/service"
	"github.com/jmfrees/photovault/internal/service/provider"
	"github.com/jmfrees/photovault/internal/storage"
	"github.com/jmfrees/photovault/internal/thumbnail"
)

type App struct {
	Cfg               *config.Config
	DB                *sqlx.DB
	MetricsRegistry   *prometheus.Registry
	IntegrationRepo   repository.IntegrationRepository
	SettingRepo       repository.SettingRepository
	AuthService       *service.AuthService
	PhotoService      *service.PhotoService
	IngestService     *service.IngestService
	DeletionService   *service.DeletionService
	TokenService      *service.TokenService
	ImportCoordinator *service.ImportCoordinator
	Provider          provider.Client
}

func New(cfg *config.Config) (*App, error) {
	// Initialize database
	database, err := db.Init(cfg.DBDriver, cfg.DBConnection)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %v", err)
	}

	// Run database migrations
	err = db.RunMigrations(database.DB, cfg.DBDriver)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %v", err)
	}

	// Repositories
	photoRepository := repository.NewPhotoRepository(database)
	integrationRepository := repository.NewIntegrationRepository(database)
	settingRepository := repository.NewSettingRepository(database)

	// Storage
	blobStorage, err := storage.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %v", err)
	}

	// Metrics
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// Photo provider selected by config
	photoProvider, err := provider.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize photo provider: %v", err)
	}

	// Services
	authService := service.NewAuthService(cfg.JWTSecret, cfg.JWTExpiry, cfg.IsProduction())
	tokenService := service.NewTokenService(
		integrationRepository,
		cfg.GoogleClientID,
		cfg.GoogleClientSecret,
		cfg.AppURL+"/api/integrations/callback",
	)
	exportGate := service.NewExportGate(settingRepository, integrationRepository, photoProvider.Name())
	exportService := service.NewExportService(
		photoRepository,
		integrationRepository,
		blobStorage,
		photoProvider,
		tokenService,
		collector,
	)
	ingestService := service.NewIngestService(
		photoRepository,
		blobStorage,
		thumbnail.NewDeriver(),
		exportGate,
		exportService,
		collector,
		cfg.IngestWriteParallel,
	)
	photoService := service.NewPhotoService(photoRepository, blobStorage, cfg.S3PresignExpiry)
	deletionService := service.NewDeletionService(photoRepository, blobStorage, collector, cfg.DeleteListPageSize)
	importCoordinator := service.NewImportCoordinator(
		integrationRepository,
		photoRepository,
		ingestService,
		photoProvider,
		tokenService,
		collector,
		cfg.ImportPollInterval,
		cfg.ImportPollMaxAttempts,
		cfg.ImportDownloadConcurrent,
	)

	return &App{
		Cfg:               cfg,
		DB:                database,
		MetricsRegistry:   registry,
		IntegrationRepo:   integrationRepository,
		SettingRepo:       settingRepository,
		AuthService:       authService,
		PhotoService:      photoService,
		IngestService:     ingestService,
		DeletionService:   deletionService,
		TokenService:      tokenService,
		ImportCoordinator: importCoordinator,
		Provider:          photoProvider,
	}, nil
}

func (a *App) Close() error {
	if a.DB != nil {
		return a.DB.Close()
	}
	return nil
}
