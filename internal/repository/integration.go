package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jmfrees/photovault/internal/model"
)

var (
	ErrIntegrationNotFound = errors.New("integration not found")
)

type IntegrationRepository interface {
	ByOwnerAndProvider(ctx context.Context, ownerID, provider string) (*model.Integration, error)
	Upsert(ctx context.Context, integration *model.Integration) error
	Delete(ctx context.Context, ownerID, provider string) error
}

type integrationRepository struct {
	db *sqlx.DB
}

func NewIntegrationRepository(db *sqlx.DB) IntegrationRepository {
	return &integrationRepository{db: db}
}

func (r *integrationRepository) ByOwnerAndProvider(ctx context.Context, ownerID, provider string) (*model.Integration, error) {
	integration := &model.Integration{}
	query := `SELECT * FROM integrations WHERE owner_id = $1 AND provider = $2`

	err := r.db.GetContext(ctx, integration, query, ownerID, provider)
	if err == sql.ErrNoRows {
		return nil, ErrIntegrationNotFound
	}

	return integration, err
}

func (r *integrationRepository) Upsert(ctx context.Context, integration *model.Integration) error {
	now := time.Now()
	if integration.CreatedAt.IsZero() {
		integration.CreatedAt = now
	}
	integration.UpdatedAt = now

	query := `INSERT INTO integrations (owner_id, provider, access_token, refresh_token, external_account_id, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)
	          ON CONFLICT (owner_id, provider) DO UPDATE SET
	              access_token = excluded.access_token,
	              refresh_token = excluded.refresh_token,
	              external_account_id = excluded.external_account_id,
	              updated_at = excluded.updated_at`

	_, err := r.db.ExecContext(ctx, query,
		integration.OwnerID,
		integration.Provider,
		integration.AccessToken,
		integration.RefreshToken,
		integration.ExternalAccountID,
		integration.CreatedAt,
		integration.UpdatedAt,
	)
	return err
}

func (r *integrationRepository) Delete(ctx context.Context, ownerID, provider string) error {
	query := `DELETE FROM integrations WHERE owner_id = $1 AND provider = $2`
	_, err := r.db.ExecContext(ctx, query, ownerID, provider)
	return err
}
