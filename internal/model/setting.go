package model

import (
	"time"
)

const (
	// SettingAutoExport gates re-uploading newly ingested photos to the
	// external provider. Value is the string "true" when enabled.
	SettingAutoExport = "auto_export"
)

type Setting struct {
	OwnerID   string    `db:"owner_id"`
	Key       string    `db:"key"`
	Value     string    `db:"value"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (s *Setting) Enabled() bool {
	return s.Value == "true"
}
