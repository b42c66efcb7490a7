package handlers

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/rail-service/crosschain_transfer/internal/domain/entities"
	"github.com/rail-service/crosschain_transfer/internal/domain/services/balance"
	"github.com/rail-service/crosschain_transfer/internal/domain/services/transfer"
)

type MockController struct {
	mock.Mock
}

func (m *MockController) HolderAddress() string {
	return m.Called().String(0)
}

func (m *MockController) Validate(ctx context.Context, req entities.TransferRequest) entities.ValidationResult {
	return m.Called(ctx, req).Get(0).(entities.ValidationResult)
}

func (m *MockController) Initialize(ctx context.Context, req entities.TransferRequest) (*entities.TransferSession, error) {
	args := m.Called(ctx, req)
	return session(args.Get(0)), args.Error(1)
}

func (m *MockController) RetryBurn(ctx context.Context, id uuid.UUID) (*entities.TransferSession, error) {
	args := m.Called(ctx, id)
	return session(args.Get(0)), args.Error(1)
}

func (m *MockController) CheckStatus(ctx context.Context, id uuid.UUID) (*entities.TransferSession, error) {
	args := m.Called(ctx, id)
	return session(args.Get(0)), args.Error(1)
}

func (m *MockController) CompleteMint(ctx context.Context, id uuid.UUID) (*entities.TransferSession, error) {
	args := m.Called(ctx, id)
	return session(args.Get(0)), args.Error(1)
}

func (m *MockController) Resume(ctx context.Context, from, to entities.Network, messageHash, messageBytes string) (*entities.TransferSession, error) {
	args := m.Called(ctx, from, to, messageHash, messageBytes)
	return session(args.Get(0)), args.Error(1)
}

func (m *MockController) ClearTransfer(ctx context.Context, id uuid.UUID) (*transfer.ClearResult, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*transfer.ClearResult), args.Error(1)
}

func (m *MockController) RefreshBalances(ctx context.Context, address string) []balance.Result {
	return m.Called(ctx, address).Get(0).([]balance.Result)
}

func (m *MockController) Balances(address string) []entities.NetworkBalanceSnapshot {
	return m.Called(address).Get(0).([]entities.NetworkBalanceSnapshot)
}

func (m *MockController) Session(id uuid.UUID) (*entities.TransferSession, error) {
	args := m.Called(id)
	return session(args.Get(0)), args.Error(1)
}

func (m *MockController) Sessions() []*entities.TransferSession {
	return m.Called().Get(0).([]*entities.TransferSession)
}

func session(v interface{}) *entities.TransferSession {
	if v == nil {
		return nil
	}
	return v.(*entities.TransferSession)
}
