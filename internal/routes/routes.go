package routes

import (
	"net/http"

	"github.com/jmfrees/photovault/internal/app"
	"github.com/jmfrees/photovault/internal/handler"
	"github.com/jmfrees/photovault/internal/metrics"
	"github.com/jmfrees/photovault/internal/middleware"
)

func SetupRoutes(app *app.App) http.Handler {
	// Handlers
	auth := handler.NewAuthHandler(app.AuthService, app.Cfg)
	photo := handler.NewPhotoHandler(app.IngestService, app.PhotoService, app.DeletionService, app.Cfg.UploadMaxFileSize)
	imports := handler.NewImportHandler(app.ImportCoordinator)
	settings := handler.NewSettingsHandler(app.SettingRepo)
	integration := handler.NewIntegrationHandler(app.TokenService, app.IntegrationRepo, app.Provider.Name())

	mux := http.NewServeMux()

	// Health and metrics
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", metrics.Handler(app.MetricsRegistry))

	// Auth
	mux.HandleFunc("POST /api/auth/session", auth.CreateSession)
	mux.HandleFunc("POST /api/auth/logout", auth.Logout)

	// Photos
	mux.HandleFunc("POST /api/photos", middleware.RequireAuth(photo.Upload))
	mux.HandleFunc("GET /api/photos", middleware.RequireAuth(photo.List))
	mux.HandleFunc("GET /api/photos/{id}", middleware.RequireAuth(photo.Get))
	mux.HandleFunc("DELETE /api/photos/{id}", middleware.RequireAuth(photo.Delete))
	mux.HandleFunc("POST /api/photos/delete", middleware.RequireAuth(photo.BulkDelete))
	mux.HandleFunc("DELETE /api/photos", middleware.RequireAuth(photo.DeleteAll))

	// Provider import sessions (rate limited: each start spawns a poll loop)
	importLimiter := middleware.RateLimitImport()
	mux.HandleFunc("POST /api/import", importLimiter(middleware.RequireAuth(imports.Start)))
	mux.HandleFunc("GET /api/import/{id}", middleware.RequireAuth(imports.Status))
	mux.HandleFunc("DELETE /api/import/{id}", middleware.RequireAuth(imports.Cancel))

	// Provider integration (OAuth connect flow)
	mux.HandleFunc("GET /api/integrations", middleware.RequireAuth(integration.Status))
	mux.HandleFunc("GET /api/integrations/connect", middleware.RequireAuth(integration.Connect))
	mux.HandleFunc("GET /api/integrations/callback", middleware.RequireAuth(integration.Callback))
	mux.HandleFunc("DELETE /api/integrations", middleware.RequireAuth(integration.Disconnect))

	// Settings
	mux.HandleFunc("GET /api/settings/{key}", middleware.RequireAuth(settings.Get))
	mux.HandleFunc("PUT /api/settings/{key}", middleware.RequireAuth(settings.Put))

	// Global middleware - executed in order (top to bottom)
	return middleware.Chain(
		mux,
		middleware.Recovery,
		middleware.Config(app.Cfg),
		middleware.RequestLogging,
		middleware.AuthMiddleware(app.AuthService),
	)
}
