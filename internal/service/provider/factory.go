package provider

import (
	"fmt"
	"log/slog"

	"github.com/jmfrees/photovault/internal/config"
	"github.com/jmfrees/photovault/internal/model"
)

// Factory builds a Client from app config.
type Factory func(cfg *config.Config) Client

// registry maps provider names to constructors. Adding a provider means
// adding one entry here plus its Client implementation.
var registry = map[string]Factory{
	model.ProviderGooglePhotos: func(cfg *config.Config) Client {
		return NewGooglePhotos(cfg.GooglePickerBaseURL, cfg.GoogleLibraryBaseURL)
	},
}

// New creates the photo provider selected by configuration.
func New(cfg *config.Config) (Client, error) {
	name := cfg.PhotoProvider

	slog.Info("initializing photo provider", "provider", name)

	factory, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown photo provider: %s (supported: %s)", name, model.ProviderGooglePhotos)
	}

	return factory(cfg), nil
}
