package ctxkeys

import (
	"context"

	"github.com/jmfrees/photovault/internal/config"
)

// contextKey is a type for context keys to avoid collisions
type contextKey string

const (
	OwnerIDKey contextKey = "owner_id"
	ConfigKey  contextKey = "config"
)

func OwnerID(ctx context.Context) string {
	ownerID, _ := ctx.Value(OwnerIDKey).(string)
	return ownerID
}

func WithOwnerID(ctx context.Context, ownerID string) context.Context {
	return context.WithValue(ctx, OwnerIDKey, ownerID)
}

func Config(ctx context.Context) *config.Config {
	cfg, _ := ctx.Value(ConfigKey).(*config.Config)
	return cfg
}

func WithConfig(ctx context.Context, cfg *config.Config) context.Context {
	return context.WithValue(ctx, ConfigKey, cfg)
}
