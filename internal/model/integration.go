package model

import (
	"time"
)

const (
	ProviderGooglePhotos = "googlephotos"
)

// Integration holds a user's connection to an external photo provider.
// Tokens are issued by the provider's OAuth flow (handled outside this core).
type Integration struct {
	OwnerID           string    `db:"owner_id"`
	Provider          string    `db:"provider"`
	AccessToken       string    `db:"access_token"`
	RefreshToken      string    `db:"refresh_token"`
	ExternalAccountID string    `db:"external_account_id"`
	CreatedAt         time.Time `db:"created_at"`
	UpdatedAt         time.Time `db:"updated_at"`
}
