package repositories

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/rail-service/ledger_service/internal/domain/entities"
)

type currencyRow struct {
	entities.Currency
	NetworksJSON []byte `db:"networks"`
}

// CurrencyRepository reads the currency catalog
type CurrencyRepository struct {
	db sqlx.QueryerContext
}

// NewCurrencyRepository creates a new currency repository
func NewCurrencyRepository(db sqlx.QueryerContext) *CurrencyRepository {
	return &CurrencyRepository{db: db}
}

// GetCurrency returns the catalog entry for (code, walletType)
func (r *CurrencyRepository) GetCurrency(ctx context.Context, code string, walletType entities.WalletType) (*entities.Currency, error) {
	var row currencyRow
	err := sqlx.GetContext(ctx, r.db, &row, `
		SELECT code, wallet_type, name, precision, price, fee_percentage,
		       min_withdraw, max_withdraw, active, networks, updated_at
		FROM currencies
		WHERE code = $1 AND wallet_type = $2`,
		entities.NormalizeCurrency(code), string(walletType))
	if err != nil {
		return nil, mapError(err, "CURRENCY")
	}

	cur := row.Currency
	if len(row.NetworksJSON) > 0 && string(row.NetworksJSON) != "null" {
		if err := json.Unmarshal(row.NetworksJSON, &cur.Networks); err != nil {
			return nil, fmt.Errorf("decode currency networks: %w", err)
		}
	}
	return &cur, nil
}
