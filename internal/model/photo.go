package model

import (
	"time"
)

type Photo struct {
	ID                 string     `db:"id"`
	OwnerID            string     `db:"owner_id"`
	Filename           string     `db:"filename"` // storage key component, unique per batch only
	Size               int64      `db:"size"`
	MediaType          string     `db:"media_type"`
	CapturedAt         *time.Time `db:"captured_at"` // embedded metadata wins, file timestamp is fallback
	UploadedAt         time.Time  `db:"uploaded_at"` // set once, immutable
	LastAccessedAt     *time.Time `db:"last_accessed_at"`
	ExternalProviderID *string    `db:"external_provider_id"` // set when imported from or exported to the provider
	Location           *string    `db:"location"`             // "lat/lon"
	Compressed         bool       `db:"compressed"`           // whether a reduced-quality variant was produced
}

// StoragePath returns the canonical object key for the original bytes.
// DeletionService and IngestService both rely on this layout.
func (p *Photo) StoragePath() string {
	return "owner/" + p.OwnerID + "/" + p.Filename
}

// ThumbnailPath returns the canonical object key for the derived thumbnail.
func (p *Photo) ThumbnailPath() string {
	return "owner/" + p.OwnerID + "/thumbnails/" + p.Filename
}

// OwnerPrefix returns the storage prefix holding every blob for an owner,
// thumbnails included.
func OwnerPrefix(ownerID string) string {
	return "owner/" + ownerID + "/"
}
