package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rail-service/ledger_service/internal/domain/entities"
	apperrors "github.com/rail-service/ledger_service/internal/domain/errors"
	"github.com/rail-service/ledger_service/internal/domain/repositories"
	"github.com/rail-service/ledger_service/pkg/logger"
)

// ChainMove is the part of a transfer taken from one chain
type ChainMove struct {
	Chain  string          `json:"chain"`
	Amount decimal.Decimal `json:"amount"`
}

// PrivateLedger tracks how ECO wallet value is spread over chains
type PrivateLedger struct {
	chainNetworks map[string]string
	logger        *logger.Logger
}

// NewPrivateLedger creates a private ledger using chain → network configuration
func NewPrivateLedger(chainNetworks map[string]string, logger *logger.Logger) *PrivateLedger {
	networks := make(map[string]string, len(chainNetworks))
	for chain, network := range chainNetworks {
		networks[strings.ToUpper(chain)] = network
	}
	return &PrivateLedger{chainNetworks: networks, logger: logger}
}

// Network returns the configured network for chain
func (l *PrivateLedger) Network(chain string) (string, error) {
	network, ok := l.chainNetworks[strings.ToUpper(chain)]
	if !ok || network == "" {
		return "", apperrors.NetworkNotConfiguredError(chain)
	}
	return network, nil
}

// RecordDelta adds a signed amount to the offchain difference of one
// (wallet, index, currency, chain) entry, creating it when missing.
func (l *PrivateLedger) RecordDelta(ctx context.Context, repos repositories.Repositories, walletID uuid.UUID, index int, currency, chain string, amount decimal.Decimal) error {
	network, err := l.Network(chain)
	if err != nil {
		return err
	}
	key := entities.PrivateLedgerKey{
		WalletID: walletID,
		Index:    index,
		Currency: currency,
		Chain:    chain,
		Network:  network,
	}
	if _, err := repos.PrivateLedger.AddDifference(ctx, key, amount); err != nil {
		return fmt.Errorf("record private ledger delta: %w", err)
	}
	return nil
}

// TransferAcrossChains moves amount of from's chain balances to to, largest
// chain first. When to is nil the value leaves the ECO domain and only the
// source side is recorded. The whole amount must be covered or nothing is
// written.
func (l *PrivateLedger) TransferAcrossChains(ctx context.Context, repos repositories.Repositories, from, to *entities.Wallet, amount decimal.Decimal) ([]ChainMove, error) {
	if !amount.IsPositive() {
		return nil, apperrors.ValidationError("amount", "chain transfer amount must be positive")
	}

	moves, err := planChainMoves(from.Addresses, amount)
	if err != nil {
		return nil, apperrors.InsufficientChainBalanceError(from.ID.String(), err.Error())
	}

	source := from.Addresses.Clone()
	var dest entities.ChainBalances
	if to != nil {
		dest = to.Addresses.Clone()
		if dest == nil {
			dest = make(entities.ChainBalances)
		}
	}

	for _, m := range moves {
		cb := source[m.Chain]
		cb.Balance = cb.Balance.Sub(m.Amount)
		source[m.Chain] = cb

		if err := l.RecordDelta(ctx, repos, from.ID, 0, from.Currency, m.Chain, m.Amount.Neg()); err != nil {
			return nil, err
		}

		if to == nil {
			continue
		}
		dcb, ok := dest[m.Chain]
		if !ok {
			dcb = entities.ChainBalance{Balance: decimal.Zero}
		}
		dcb.Balance = dcb.Balance.Add(m.Amount)
		dest[m.Chain] = dcb

		if err := l.RecordDelta(ctx, repos, to.ID, 0, to.Currency, m.Chain, m.Amount); err != nil {
			return nil, err
		}
	}

	if err := repos.Wallets.UpdateAddresses(ctx, from.ID, source); err != nil {
		return nil, fmt.Errorf("update source addresses: %w", err)
	}
	from.Addresses = source

	if to != nil {
		if err := repos.Wallets.UpdateAddresses(ctx, to.ID, dest); err != nil {
			return nil, fmt.Errorf("update destination addresses: %w", err)
		}
		to.Addresses = dest
	}

	l.logger.Debug("Moved value across chains",
		"from_wallet", from.ID,
		"amount", amount.String(),
		"chains", len(moves))
	return moves, nil
}

// DebitAcrossChains removes amount from from's chain balances without a destination
func (l *PrivateLedger) DebitAcrossChains(ctx context.Context, repos repositories.Repositories, from *entities.Wallet, amount decimal.Decimal) ([]ChainMove, error) {
	return l.TransferAcrossChains(ctx, repos, from, nil, amount)
}

// planChainMoves walks chains by descending balance, taking min(balance, remaining)
// from each. It fails when the chains cannot cover amount.
func planChainMoves(addresses entities.ChainBalances, amount decimal.Decimal) ([]ChainMove, error) {
	remaining := amount
	var moves []ChainMove
	for _, chain := range addresses.ChainsByBalance() {
		if !remaining.IsPositive() {
			break
		}
		available := addresses[chain].Balance
		if !available.IsPositive() {
			continue
		}
		take := decimal.Min(available, remaining)
		moves = append(moves, ChainMove{Chain: chain, Amount: take})
		remaining = remaining.Sub(take)
	}
	if remaining.IsPositive() {
		return nil, fmt.Errorf("%s", remaining.String())
	}
	return moves, nil
}
