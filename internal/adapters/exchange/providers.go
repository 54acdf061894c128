package exchange

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/rail-service/ledger_service/internal/domain/entities"
)

// Binance reports ccxt-style statuses in lower case.
var binanceStatuses = map[string]entities.TransactionStatus{
	"ok":                entities.TransactionStatusCompleted,
	"success":           entities.TransactionStatusCompleted,
	"completed":         entities.TransactionStatusCompleted,
	"pending":           entities.TransactionStatusPending,
	"awaiting approval": entities.TransactionStatusPending,
	"processing":        entities.TransactionStatusProcessing,
	"failed":            entities.TransactionStatusFailed,
	"failure":           entities.TransactionStatusFailed,
	"canceled":          entities.TransactionStatusCancelled,
	"cancelled":         entities.TransactionStatusCancelled,
	"rejected":          entities.TransactionStatusRejected,
}

var kucoinStatuses = map[string]entities.TransactionStatus{
	"success":           entities.TransactionStatusCompleted,
	"ok":                entities.TransactionStatusCompleted,
	"processing":        entities.TransactionStatusProcessing,
	"wallet_processing": entities.TransactionStatusProcessing,
	"pending":           entities.TransactionStatusPending,
	"failure":           entities.TransactionStatusFailed,
	"failed":            entities.TransactionStatusFailed,
	"canceled":          entities.TransactionStatusCancelled,
}

var xtStatuses = map[string]entities.TransactionStatus{
	"success":  entities.TransactionStatusCompleted,
	"ok":       entities.TransactionStatusCompleted,
	"submit":   entities.TransactionStatusPending,
	"review":   entities.TransactionStatusPending,
	"pending":  entities.TransactionStatusPending,
	"send":     entities.TransactionStatusProcessing,
	"fail":     entities.TransactionStatusFailed,
	"failed":   entities.TransactionStatusFailed,
	"cancel":   entities.TransactionStatusCancelled,
	"canceled": entities.TransactionStatusCancelled,
}

var krakenStatuses = map[string]entities.TransactionStatus{
	"success":  entities.TransactionStatusCompleted,
	"ok":       entities.TransactionStatusCompleted,
	"initial":  entities.TransactionStatusProcessing,
	"pending":  entities.TransactionStatusProcessing,
	"settled":  entities.TransactionStatusProcessing,
	"on hold":  entities.TransactionStatusPending,
	"failure":  entities.TransactionStatusFailed,
	"failed":   entities.TransactionStatusFailed,
	"canceled": entities.TransactionStatusCancelled,
}

// KuCoin account names used by the inner transfer
const (
	KucoinTradeAccount = "trade"
	KucoinMainAccount  = "main"
)

// NewBinanceProvider creates the Binance provider
func NewBinanceProvider(client Client, logger *zap.Logger) Provider {
	return &baseProvider{
		id:       ProviderBinance,
		client:   client,
		statuses: binanceStatuses,
		logger:   nopIfNil(logger),
	}
}

// NewKucoinProvider creates the KuCoin provider. KuCoin only withdraws from
// the main account, so funds are moved there from trade first.
func NewKucoinProvider(client Client, logger *zap.Logger) Provider {
	logger = nopIfNil(logger)
	return &baseProvider{
		id:       ProviderKucoin,
		client:   client,
		statuses: kucoinStatuses,
		beforeWithdraw: func(ctx context.Context, order WithdrawalOrder) error {
			record, err := client.Transfer(ctx, order.Currency, order.Amount, KucoinTradeAccount, KucoinMainAccount)
			if err != nil {
				return fmt.Errorf("kucoin inner transfer: %w", err)
			}
			logger.Info("KuCoin inner transfer completed",
				zap.String("currency", order.Currency),
				zap.String("transfer_id", record.ID))
			return nil
		},
		logger: logger,
	}
}

// NewXTProvider creates the XT provider
func NewXTProvider(client Client, logger *zap.Logger) Provider {
	return &baseProvider{
		id:       ProviderXT,
		client:   client,
		statuses: xtStatuses,
		networkOverrides: map[string][]string{
			"ETH": {"ERC20", "ETHEREUM", "ETH"},
			"BSC": {"BEP20", "BNB SMART CHAIN", "BSC"},
			"TRX": {"TRC20", "TRON", "TRX"},
		},
		logger: nopIfNil(logger),
	}
}

// NewKrakenProvider creates the Kraken provider
func NewKrakenProvider(client Client, logger *zap.Logger) Provider {
	return &baseProvider{
		id:       ProviderKraken,
		client:   client,
		statuses: krakenStatuses,
		networkOverrides: map[string][]string{
			"ETH": {"ERC20", "ETHEREUM", "ETH"},
			"TRX": {"TRC20", "TRON", "TRX"},
			"SOL": {"SOLANA", "SOL"},
		},
		logger: nopIfNil(logger),
	}
}

// NewProvider builds the provider registered under id
func NewProvider(id ProviderID, client Client, logger *zap.Logger) (Provider, error) {
	switch id {
	case ProviderBinance:
		return NewBinanceProvider(client, logger), nil
	case ProviderKucoin:
		return NewKucoinProvider(client, logger), nil
	case ProviderXT:
		return NewXTProvider(client, logger), nil
	case ProviderKraken:
		return NewKrakenProvider(client, logger), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, id)
	}
}

func nopIfNil(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}
