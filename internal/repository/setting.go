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
	ErrSettingNotFound = errors.New("setting not found")
)

type SettingRepository interface {
	Get(ctx context.Context, ownerID, key string) (*model.Setting, error)
	Set(ctx context.Context, ownerID, key, value string) error
}

type settingRepository struct {
	db *sqlx.DB
}

func NewSettingRepository(db *sqlx.DB) SettingRepository {
	return &settingRepository{db: db}
}

func (r *settingRepository) Get(ctx context.Context, ownerID, key string) (*model.Setting, error) {
	setting := &model.Setting{}
	query := `SELECT * FROM settings WHERE owner_id = $1 AND key = $2`

	err := r.db.GetContext(ctx, setting, query, ownerID, key)
	if err == sql.ErrNoRows {
		return nil, ErrSettingNotFound
	}

	return setting, err
}

func (r *settingRepository) Set(ctx context.Context, ownerID, key, value string) error {
	query := `INSERT INTO settings (owner_id, key, value, updated_at)
	          VALUES ($1, $2, $3, $4)
	          ON CONFLICT (owner_id, key) DO UPDATE SET
	              value = excluded.value,
	              updated_at = excluded.updated_at`

	_, err := r.db.ExecContext(ctx, query, ownerID, key, value, time.Now())
	return err
}
