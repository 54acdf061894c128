package repositories

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/rail-service/ledger_service/internal/domain/entities"
)

// SettingsRepository reads the flat key/value settings table
type SettingsRepository struct {
	db sqlx.QueryerContext
}

// NewSettingsRepository creates a new settings repository
func NewSettingsRepository(db sqlx.QueryerContext) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// GetAll returns every setting keyed by name
func (r *SettingsRepository) GetAll(ctx context.Context) (map[string]string, error) {
	var rows []entities.Setting
	if err := sqlx.SelectContext(ctx, r.db, &rows, `SELECT key, value FROM settings`); err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	out := make(map[string]string, len(rows))
	for _, s := range rows {
		out[s.Key] = s.Value
	}
	return out, nil
}
