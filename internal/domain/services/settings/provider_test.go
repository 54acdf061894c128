package settings

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rail-service/ledger_service/internal/domain/entities"
	"github.com/rail-service/ledger_service/pkg/logger"
)

type MockSettingsRepository struct {
	mock.Mock
}

func (m *MockSettingsRepository) GetAll(ctx context.Context) (map[string]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]string), args.Error(1)
}

func TestProvider_Refresh(t *testing.T) {
	ctx := context.Background()
	repo := &MockSettingsRepository{}
	repo.On("GetAll", ctx).Return(map[string]string{
		entities.SettingWalletTransferFeePercentage: "2",
		entities.SettingWithdrawApproval:            "true",
		entities.SettingWithdrawChainFee:            "false",
		entities.SettingSpotWithdrawFee:             "not-a-number",
	}, nil).Once()
	repo.On("GetAll", ctx).Return(nil, errors.New("db down")).Once()

	p := NewProvider(repo, logger.NewNop())
	assert.True(t, p.Current().WalletTransferFeePercentage.IsZero())

	require.NoError(t, p.Refresh(ctx))
	current := p.Current()
	assert.True(t, current.WalletTransferFeePercentage.Equal(decimal.NewFromInt(2)))
	assert.True(t, current.WithdrawApproval)
	assert.False(t, current.WithdrawChainFee)
	assert.True(t, current.SpotWithdrawFee.IsZero())

	assert.Error(t, p.Refresh(ctx))
	assert.True(t, p.Current().Equal(current), "failed refresh keeps the previous snapshot")
}
