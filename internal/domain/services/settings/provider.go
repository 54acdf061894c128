// Package settings keeps an immutable snapshot of the finance settings that is
// handed to the engines on every call and refreshed on a schedule.
package settings

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/rail-service/ledger_service/internal/domain/entities"
	"github.com/rail-service/ledger_service/internal/domain/repositories"
	"github.com/rail-service/ledger_service/pkg/logger"
)

// Provider serves the latest successfully loaded FinanceSettings
type Provider struct {
	repo    repositories.SettingsRepository
	current atomic.Pointer[entities.FinanceSettings]
	logger  *logger.Logger
}

// NewProvider creates a provider starting from zero-value settings
func NewProvider(repo repositories.SettingsRepository, logger *logger.Logger) *Provider {
	p := &Provider{repo: repo, logger: logger}
	p.current.Store(&entities.FinanceSettings{})
	return p
}

// Current returns the latest snapshot
func (p *Provider) Current() entities.FinanceSettings {
	return *p.current.Load()
}

// Refresh reloads the settings table. On failure the previous snapshot stays.
func (p *Provider) Refresh(ctx context.Context) error {
	raw, err := p.repo.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	next := entities.ParseFinanceSettings(raw)
	prev := p.current.Swap(&next)
	if !prev.Equal(next) {
		p.logger.Info("Finance settings updated",
			"wallet_transfer_fee_percentage", next.WalletTransferFeePercentage.String(),
			"withdraw_approval", next.WithdrawApproval,
			"withdraw_chain_fee", next.WithdrawChainFee,
			"spot_withdraw_fee", next.SpotWithdrawFee.String())
	}
	return nil
}
