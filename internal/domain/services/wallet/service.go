package wallet

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rail-service/ledger_service/internal/adapters/exchange"
	"github.com/rail-service/ledger_service/internal/domain/entities"
	apperrors "github.com/rail-service/ledger_service/internal/domain/errors"
	"github.com/rail-service/ledger_service/internal/domain/repositories"
	"github.com/rail-service/ledger_service/internal/domain/services/ledger"
)

// ProviderRegistry resolves exchange providers by id
type ProviderRegistry interface {
	Get(id exchange.ProviderID) (exchange.Provider, error)
}

// Config captures runtime configuration for the wallet service
type Config struct {
	DepositProvider exchange.ProviderID
}

// Service handles read-side wallet operations: listings, transaction lookup,
// deposit addresses and deactivation.
type Service struct {
	store      repositories.Store
	currencies repositories.CurrencyRepository
	providers  ProviderRegistry
	logger     *zap.Logger
	config     Config
}

// NewService creates a new wallet service
func NewService(
	store repositories.Store,
	currencies repositories.CurrencyRepository,
	providers ProviderRegistry,
	config Config,
	logger *zap.Logger,
) *Service {
	return &Service{
		store:      store,
		currencies: currencies,
		providers:  providers,
		logger:     logger,
		config:     config,
	}
}

// ListWallets returns every wallet owned by userID
func (s *Service) ListWallets(ctx context.Context, userID uuid.UUID) ([]*entities.Wallet, error) {
	wallets, err := s.store.Repositories().Wallets.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list wallets: %w", err)
	}
	return wallets, nil
}

// GetTransaction returns a transaction owned by userID. Another user's
// transaction is reported as not found.
func (s *Service) GetTransaction(ctx context.Context, userID, txID uuid.UUID) (*entities.Transaction, error) {
	tx, err := s.store.Repositories().Transactions.GetByID(ctx, txID)
	if err != nil {
		return nil, err
	}
	if tx.UserID != userID {
		return nil, apperrors.NotFoundError("TRANSACTION")
	}
	return tx, nil
}

// DepositAddress returns where userID can deposit currency on chain. ECO
// wallets answer from their own chain addresses; SPOT deposits go to the
// exchange provider's address.
func (s *Service) DepositAddress(ctx context.Context, userID uuid.UUID, walletType entities.WalletType, currency, chain string) (*entities.DepositAddress, error) {
	currency = entities.NormalizeCurrency(currency)
	if chain == "" {
		return nil, apperrors.ValidationError("chain", "chain is required")
	}

	switch walletType {
	case entities.WalletTypeEco:
		return s.ecoDepositAddress(ctx, userID, currency, chain)
	case entities.WalletTypeSpot:
	default:
		return nil, apperrors.ValidationError("wallet_type", fmt.Sprintf("%s wallets have no deposit address", walletType))
	}

	cur, err := ledger.ActiveCurrency(ctx, s.currencies, currency, walletType)
	if err != nil {
		return nil, err
	}
	if network, ok := cur.Network(chain); ok && (!network.Active || !network.Deposit) {
		return nil, apperrors.ValidationError("chain", fmt.Sprintf("deposits of %s on %s are disabled", currency, chain))
	}

	provider, err := s.providers.Get(s.config.DepositProvider)
	if err != nil {
		return nil, apperrors.ServiceUnavailableError("exchange", err)
	}
	addr, err := provider.DepositAddress(ctx, currency, chain)
	if err != nil {
		s.logger.Warn("Deposit address lookup failed",
			zap.String("provider", string(provider.ID())),
			zap.String("currency", currency),
			zap.String("chain", chain),
			zap.String("error", apperrors.Sanitize(err.Error())))
		return nil, apperrors.ServiceUnavailableError(string(provider.ID()), nil)
	}

	return &entities.DepositAddress{
		Currency: currency,
		Chain:    chain,
		Network:  addr.Network,
		Address:  addr.Address,
		Tag:      addr.Tag,
	}, nil
}

func (s *Service) ecoDepositAddress(ctx context.Context, userID uuid.UUID, currency, chain string) (*entities.DepositAddress, error) {
	w, err := s.store.Repositories().Wallets.GetByKey(ctx, entities.WalletKey{UserID: userID, Currency: currency, Type: entities.WalletTypeEco})
	if err != nil {
		return nil, err
	}
	cb, ok := w.Addresses[chain]
	if !ok || cb.Address == nil {
		return nil, apperrors.NotFoundError("DEPOSIT_ADDRESS")
	}
	out := &entities.DepositAddress{Currency: currency, Chain: chain, Address: *cb.Address}
	if cb.Network != nil {
		out.Network = *cb.Network
	}
	return out, nil
}

// Deactivate disables a wallet. Wallets are never deleted.
func (s *Service) Deactivate(ctx context.Context, walletID uuid.UUID) error {
	if err := s.store.Repositories().Wallets.Deactivate(ctx, walletID); err != nil {
		return err
	}
	s.logger.Info("Wallet deactivated", zap.String("wallet_id", walletID.String()))
	return nil
}
