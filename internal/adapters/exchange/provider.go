package exchange

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rail-service/ledger_service/internal/domain/entities"
)

// ProviderID names an exchange provider
type ProviderID string

const (
	ProviderBinance ProviderID = "binance"
	ProviderKucoin  ProviderID = "kucoin"
	ProviderXT      ProviderID = "xt"
	ProviderKraken  ProviderID = "kraken"
)

// ParseProviderID normalises a configured provider name
func ParseProviderID(s string) (ProviderID, error) {
	id := ProviderID(strings.ToLower(strings.TrimSpace(s)))
	switch id {
	case ProviderBinance, ProviderKucoin, ProviderXT, ProviderKraken:
		return id, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownProvider, s)
	}
}

// WithdrawalOrder is what the withdrawal engine asks a provider to send
type WithdrawalOrder struct {
	Currency string
	Amount   decimal.Decimal
	Address  string
	Memo     string
	Chain    string
}

// WithdrawalReceipt is the provider's answer to a submitted withdrawal
type WithdrawalReceipt struct {
	ProviderRef  string
	Network      string
	Fee          *decimal.Decimal
	NativeStatus string
	Status       entities.TransactionStatus
}

// Provider hides the per-exchange steps needed to withdraw and receive funds
type Provider interface {
	ID() ProviderID
	ResolveNetwork(ctx context.Context, currency, chain string) (string, error)
	AvailableBalance(ctx context.Context, currency string) (decimal.Decimal, error)
	SubmitWithdrawal(ctx context.Context, order WithdrawalOrder) (*WithdrawalReceipt, error)
	WithdrawalStatus(ctx context.Context, currency, providerRef string) (*WithdrawalReceipt, error)
	DepositAddress(ctx context.Context, currency, chain string) (*DepositAddress, error)
	MapStatus(native string) entities.TransactionStatus
}

// baseProvider implements the flow shared by all exchanges; each provider
// supplies its status vocabulary, network overrides and optional pre-withdraw hook.
type baseProvider struct {
	id               ProviderID
	client           Client
	statuses         map[string]entities.TransactionStatus
	networkOverrides map[string][]string
	beforeWithdraw   func(ctx context.Context, order WithdrawalOrder) error
	logger           *zap.Logger
}

func (p *baseProvider) ID() ProviderID {
	return p.id
}

func (p *baseProvider) MapStatus(native string) entities.TransactionStatus {
	if status, ok := p.statuses[strings.ToLower(strings.TrimSpace(native))]; ok {
		return status
	}
	return entities.TransactionStatusPending
}

func (p *baseProvider) ResolveNetwork(ctx context.Context, currency, chain string) (string, error) {
	currencies, err := p.client.FetchCurrencies(ctx)
	if err != nil {
		return "", err
	}
	info, ok := currencies[currency]
	if !ok {
		return "", fmt.Errorf("currency %s not listed on %s", currency, p.id)
	}
	network, ok := ResolveNetwork(chain, info.NetworkIDs(), p.networkOverrides)
	if !ok {
		return "", fmt.Errorf("chain %s not offered for %s on %s", chain, currency, p.id)
	}
	return network, nil
}

func (p *baseProvider) AvailableBalance(ctx context.Context, currency string) (decimal.Decimal, error) {
	balance, err := p.client.FetchBalance(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return balance.FreeFor(currency), nil
}

func (p *baseProvider) SubmitWithdrawal(ctx context.Context, order WithdrawalOrder) (*WithdrawalReceipt, error) {
	network, err := p.ResolveNetwork(ctx, order.Currency, order.Chain)
	if err != nil {
		return nil, err
	}

	if p.beforeWithdraw != nil {
		if err := p.beforeWithdraw(ctx, order); err != nil {
			return nil, err
		}
	}

	record, err := p.client.Withdraw(ctx, WithdrawParams{
		Code:    order.Currency,
		Amount:  order.Amount,
		Address: order.Address,
		Tag:     order.Memo,
		Network: network,
	})
	if err != nil {
		return nil, err
	}
	if record.ID == "" {
		return nil, fmt.Errorf("%s returned a withdrawal without id", p.id)
	}

	receipt := &WithdrawalReceipt{
		ProviderRef:  record.ID,
		Network:      network,
		Fee:          record.Fee,
		NativeStatus: record.Status,
	}

	// Not every exchange reports a status on submit; look it up in the history.
	if receipt.NativeStatus == "" {
		if found, err := p.findWithdrawal(ctx, order.Currency, record.ID); err == nil && found != nil {
			receipt.NativeStatus = found.Status
			if receipt.Fee == nil {
				receipt.Fee = found.Fee
			}
		} else if err != nil {
			p.logger.Warn("Could not look up submitted withdrawal",
				zap.String("provider", string(p.id)),
				zap.String("provider_ref", record.ID),
				zap.Error(err))
		}
	}
	receipt.Status = p.MapStatus(receipt.NativeStatus)
	return receipt, nil
}

func (p *baseProvider) WithdrawalStatus(ctx context.Context, currency, providerRef string) (*WithdrawalReceipt, error) {
	found, err := p.findWithdrawal(ctx, currency, providerRef)
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, fmt.Errorf("withdrawal %s not found on %s", providerRef, p.id)
	}
	return &WithdrawalReceipt{
		ProviderRef:  found.ID,
		Fee:          found.Fee,
		NativeStatus: found.Status,
		Status:       p.MapStatus(found.Status),
	}, nil
}

func (p *baseProvider) findWithdrawal(ctx context.Context, currency, ref string) (*WithdrawalRecord, error) {
	records, err := p.client.FetchWithdrawals(ctx, currency)
	if err != nil {
		return nil, err
	}
	for i := range records {
		if records[i].ID == ref {
			return &records[i], nil
		}
	}
	return nil, nil
}

func (p *baseProvider) DepositAddress(ctx context.Context, currency, chain string) (*DepositAddress, error) {
	network, err := p.ResolveNetwork(ctx, currency, chain)
	if err != nil {
		return nil, err
	}
	addr, err := p.client.FetchDepositAddress(ctx, currency, network)
	if err != nil {
		return nil, err
	}
	if addr.Network == "" {
		addr.Network = network
	}
	if addr.Currency == "" {
		addr.Currency = currency
	}
	return addr, nil
}
