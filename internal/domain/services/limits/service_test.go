package limits

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rail-service/crosschain_transfer/internal/domain/entities"
	"github.com/rail-service/crosschain_transfer/pkg/logger"
)

const holder = "0x71C7656EC7ab88b098defB751B7401B5f6d8976F"

func request(amount string) entities.TransferRequest {
	return entities.TransferRequest{
		FromNetwork: entities.NetworkSepolia,
		ToNetwork:   entities.NetworkFuji,
		Amount:      amount,
		Recipient:   holder,
	}
}

func newService(maxPer, daily string) *Service {
	return NewService(Config{
		MaxPerTransfer: decimal.RequireFromString(maxPer),
		DailyLimit:     decimal.RequireFromString(daily),
	}, nil, logger.NewNop())
}

func TestBeforeTransfer_PerTransferLimit(t *testing.T) {
	s := newService("100", "0")
	ctx := context.Background()

	assert.NoError(t, s.BeforeTransfer(ctx, request("100"), holder))
	assert.ErrorIs(t, s.BeforeTransfer(ctx, request("100.01"), holder), ErrPerTransferLimitExceeded)
}

func TestBeforeTransfer_DailyLimit(t *testing.T) {
	s := newService("0", "250")
	ctx := context.Background()
	day := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return day }

	require.NoError(t, s.BeforeTransfer(ctx, request("200"), holder))
	err := s.BeforeTransfer(ctx, request("60"), holder)
	assert.ErrorIs(t, err, ErrDailyLimitExceeded)
	assert.Contains(t, err.Error(), "50 USDC remaining")

	// holder addresses are case-insensitive
	remaining, err := s.Remaining(ctx, "0x71c7656ec7ab88b098defb751b7401b5f6d8976f")
	require.NoError(t, err)
	assert.True(t, remaining.Equal(decimal.NewFromInt(50)))

	s.now = func() time.Time { return day.Add(24 * time.Hour) }
	assert.NoError(t, s.BeforeTransfer(ctx, request("250"), holder))
}

func TestBeforeTransfer_IgnoresUnparsableAmount(t *testing.T) {
	s := newService("1", "1")
	assert.NoError(t, s.BeforeTransfer(context.Background(), request("abc"), holder))
}
