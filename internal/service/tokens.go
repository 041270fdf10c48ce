package service

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/jmfrees/photovault/internal/model"
	"github.com/jmfrees/photovault/internal/repository"
)

// TokenRefresher rotates an integration's expired access token. Provider
// calls never refresh on their own; callers invoke Refresh at most once per
// expiry and retry the failed call once.
type TokenRefresher interface {
	Refresh(ctx context.Context, integration *model.Integration) (string, error)
}

// Scopes for the picker (read selected items) and library (append uploads).
var googlePhotosScopes = []string{
	"https://www.googleapis.com/auth/photospicker.mediaitems.readonly",
	"https://www.googleapis.com/auth/photoslibrary.appendonly",
}

// TokenService owns the provider's OAuth credentials: the connect flow that
// creates an integration and the refresh path that rotates its tokens.
type TokenService struct {
	integrationRepo repository.IntegrationRepository
	oauthConfig     *oauth2.Config
}

func NewTokenService(integrationRepo repository.IntegrationRepository, clientID, clientSecret, redirectURL string) *TokenService {
	return &TokenService{
		integrationRepo: integrationRepo,
		oauthConfig: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       googlePhotosScopes,
			Endpoint:     google.Endpoint,
		},
	}
}

// AuthCodeURL builds the provider consent URL. Offline access and forced
// consent so the exchange always yields a refresh token.
func (s *TokenService) AuthCodeURL(state string) string {
	return s.oauthConfig.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	)
}

// Exchange trades the callback code for tokens and stores the integration.
func (s *TokenService) Exchange(ctx context.Context, ownerID, code string) error {
	token, err := s.oauthConfig.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("failed to exchange authorization code: %w", err)
	}

	integration := &model.Integration{
		OwnerID:      ownerID,
		Provider:     model.ProviderGooglePhotos,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
	}

	err = s.integrationRepo.Upsert(ctx, integration)
	if err != nil {
		return fmt.Errorf("failed to store integration: %w", err)
	}

	return nil
}

// Refresh exchanges the integration's refresh token for a new access token
// and persists the rotated credentials. Returns the new access token.
func (s *TokenService) Refresh(ctx context.Context, integration *model.Integration) (string, error) {
	if integration.RefreshToken == "" {
		return "", fmt.Errorf("integration for %s has no refresh token", integration.OwnerID)
	}

	source := s.oauthConfig.TokenSource(ctx, &oauth2.Token{
		RefreshToken: integration.RefreshToken,
	})

	token, err := source.Token()
	if err != nil {
		return "", fmt.Errorf("failed to refresh provider token: %w", err)
	}

	integration.AccessToken = token.AccessToken
	if token.RefreshToken != "" {
		integration.RefreshToken = token.RefreshToken
	}

	err = s.integrationRepo.Upsert(ctx, integration)
	if err != nil {
		return "", fmt.Errorf("failed to persist rotated token: %w", err)
	}

	return token.AccessToken, nil
}
