package ledger

import (
	"context"
	"fmt"

	"github.com/rail-service/ledger_service/internal/domain/entities"
	apperrors "github.com/rail-service/ledger_service/internal/domain/errors"
	"github.com/rail-service/ledger_service/internal/domain/repositories"
)

// ActiveCurrency loads a catalog entry and rejects missing or inactive currencies
func ActiveCurrency(ctx context.Context, currencies repositories.CurrencyRepository, code string, walletType entities.WalletType) (*entities.Currency, error) {
	c, err := currencies.GetCurrency(ctx, code, walletType)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.ValidationError("currency", fmt.Sprintf("%s is not supported for %s wallets", code, walletType))
		}
		return nil, fmt.Errorf("get currency %s: %w", code, err)
	}
	if !c.Active {
		return nil, apperrors.ValidationError("currency", fmt.Sprintf("%s is disabled for %s wallets", code, walletType))
	}
	return c, nil
}
