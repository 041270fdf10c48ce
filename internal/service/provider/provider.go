// Package provider abstracts external photo services behind an explicit
// capability interface. Each provider is registered by name and dispatched
// through a registry, never through runtime shape-checking.
package provider

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrTokenExpired signals a provider-reported authorization failure.
	// Callers own the refresh-and-retry-once policy.
	ErrTokenExpired = errors.New("provider token expired")

	// ErrTransport marks recoverable transport or non-2xx failures. Poll
	// loops may continue past these until their attempt cap.
	ErrTransport = errors.New("provider transport error")

	// ErrSessionNotFound signals an unknown or already-deleted session id.
	ErrSessionNotFound = errors.New("provider session not found")
)

// Session is a provider-hosted picker session. It lives only in the memory
// of the import attempt that created it.
type Session struct {
	ID        string
	PickerURI string
	CreatedAt time.Time
}

// SessionStatus reports poll results for a picker session.
type SessionStatus struct {
	// MediaItemsSet is true once the user finished selecting media.
	MediaItemsSet bool
}

// MediaItem describes one selected photo on the provider side.
type MediaItem struct {
	ID         string
	Filename   string
	MimeType   string
	BaseURL    string
	CreateTime *time.Time
}

// Client is the narrow interface every photo provider implements. All calls
// consume the caller-supplied access token; implementations never refresh
// tokens themselves.
type Client interface {
	// Name returns the provider name (e.g. "googlephotos")
	Name() string

	// CreateSession opens a picker session the user completes out-of-band
	CreateSession(ctx context.Context, token string) (*Session, error)

	// GetSession polls session readiness
	GetSession(ctx context.Context, token, sessionID string) (*SessionStatus, error)

	// FetchMedia lists the media items the user selected
	FetchMedia(ctx context.Context, token, sessionID string) ([]MediaItem, error)

	// DownloadMedia retrieves the original bytes for one media item
	DownloadMedia(ctx context.Context, token string, item MediaItem) ([]byte, error)

	// DeleteSession tears down a picker session on the provider
	DeleteSession(ctx context.Context, token, sessionID string) error

	// Upload pushes photo bytes to the provider and returns its media id
	Upload(ctx context.Context, token, filename, mediaType string, data []byte) (string, error)
}
