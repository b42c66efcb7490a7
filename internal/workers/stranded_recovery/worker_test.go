package stranded_recovery

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rail-service/crosschain_transfer/internal/domain/entities"
	domainerrors "github.com/rail-service/crosschain_transfer/internal/domain/errors"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) ListStranded(ctx context.Context) ([]*entities.TransferSession, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.TransferSession), args.Error(1)
}

type MockMinter struct {
	mock.Mock
}

func (m *MockMinter) Session(id uuid.UUID) (*entities.TransferSession, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.TransferSession), args.Error(1)
}

func (m *MockMinter) CompleteMint(ctx context.Context, id uuid.UUID) (*entities.TransferSession, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.TransferSession), args.Error(1)
}

func session(t *testing.T, mintFailed bool) *entities.TransferSession {
	t.Helper()
	steps := entities.NewTransferSteps(entities.NetworkSepolia, entities.NetworkFuji)
	moves := []struct {
		id     entities.StepID
		status entities.StepStatus
	}{
		{entities.StepApprove, entities.StepStatusProcessing},
		{entities.StepApprove, entities.StepStatusCompleted},
		{entities.StepBurn, entities.StepStatusProcessing},
		{entities.StepBurn, entities.StepStatusCompleted},
		{entities.StepAttestation, entities.StepStatusProcessing},
	}
	if mintFailed {
		moves = append(moves, []struct {
			id     entities.StepID
			status entities.StepStatus
		}{
			{entities.StepAttestation, entities.StepStatusCompleted},
			{entities.StepMint, entities.StepStatusProcessing},
			{entities.StepMint, entities.StepStatusFailed},
		}...)
	}
	var err error
	for _, m := range moves {
		steps, err = entities.AdvanceStep(steps, m.id, m.status, "")
		require.NoError(t, err)
	}
	return &entities.TransferSession{
		ID:     uuid.New(),
		Params: entities.TransferRequest{FromNetwork: entities.NetworkSepolia, ToNetwork: entities.NetworkFuji},
		Steps:  steps,
		Result: entities.TransferResult{MessageHash: "0xhash", SourceTxHash: "0xburn"},
		Phase:  entities.PhaseFromSteps(steps),
	}
}

func TestSweep_ReportsWithoutRetrying(t *testing.T) {
	store := &MockStore{}
	minter := &MockMinter{}
	awaiting, failed := session(t, false), session(t, true)
	store.On("ListStranded", mock.Anything).Return([]*entities.TransferSession{awaiting, failed}, nil)

	w := NewWorker(store, minter, Config{}, zap.NewNop())
	report, err := w.Sweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, report.Stranded)
	assert.Equal(t, 1, report.AwaitingAttestation)
	assert.Zero(t, report.MintsRetried)
	minter.AssertNotCalled(t, "CompleteMint", mock.Anything, mock.Anything)
}

func TestSweep_CountsUnconfirmedBurns(t *testing.T) {
	store := &MockStore{}
	minter := &MockMinter{}

	steps := entities.NewTransferSteps(entities.NetworkSepolia, entities.NetworkFuji)
	var err error
	for _, m := range []struct {
		id     entities.StepID
		status entities.StepStatus
	}{
		{entities.StepApprove, entities.StepStatusProcessing},
		{entities.StepApprove, entities.StepStatusCompleted},
		{entities.StepBurn, entities.StepStatusProcessing},
	} {
		steps, err = entities.AdvanceStep(steps, m.id, m.status, "")
		require.NoError(t, err)
	}
	pending := &entities.TransferSession{
		ID:     uuid.New(),
		Params: entities.TransferRequest{FromNetwork: entities.NetworkSepolia, ToNetwork: entities.NetworkFuji},
		Steps:  entities.WithTxHash(steps, entities.StepBurn, "0xburn"),
		Result: entities.TransferResult{UnconfirmedBurnTx: "0xburn"},
		Phase:  entities.PhaseBurning,
	}
	store.On("ListStranded", mock.Anything).Return([]*entities.TransferSession{pending, session(t, false)}, nil)

	w := NewWorker(store, minter, Config{AutoRetryMint: true}, zap.NewNop())
	report, err := w.Sweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, report.Stranded)
	assert.Equal(t, 1, report.AwaitingBurn)
	assert.Equal(t, 1, report.AwaitingAttestation)
	minter.AssertNotCalled(t, "Session", mock.Anything)
}

func TestSweep_AutoRetryMint(t *testing.T) {
	store := &MockStore{}
	minter := &MockMinter{}
	failed := session(t, true)
	store.On("ListStranded", mock.Anything).Return([]*entities.TransferSession{failed}, nil)
	minter.On("Session", failed.ID).Return(failed, nil)
	minter.On("CompleteMint", mock.Anything, failed.ID).Return(&entities.TransferSession{}, nil)

	w := NewWorker(store, minter, Config{AutoRetryMint: true}, zap.NewNop())
	report, err := w.Sweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.MintsRetried)
	assert.Equal(t, 1, report.MintsRecovered)
	minter.AssertExpectations(t)
}

func TestSweep_BoundsAttempts(t *testing.T) {
	store := &MockStore{}
	minter := &MockMinter{}
	failed := session(t, true)
	store.On("ListStranded", mock.Anything).Return([]*entities.TransferSession{failed}, nil)
	minter.On("Session", failed.ID).Return(failed, nil)
	minter.On("CompleteMint", mock.Anything, failed.ID).
		Return(nil, domainerrors.NewRevertError("fuji", "receiveMessage", "0xmint"))

	w := NewWorker(store, minter, Config{AutoRetryMint: true, MaxAttempts: 2}, zap.NewNop())
	for i := 0; i < 4; i++ {
		_, err := w.Sweep(context.Background())
		require.NoError(t, err)
	}

	minter.AssertNumberOfCalls(t, "CompleteMint", 2)
}

func TestSweep_SkipsUntrackedSessions(t *testing.T) {
	store := &MockStore{}
	minter := &MockMinter{}
	failed := session(t, true)
	store.On("ListStranded", mock.Anything).Return([]*entities.TransferSession{failed}, nil)
	minter.On("Session", failed.ID).Return(nil, domainerrors.ErrNoActiveSession)

	w := NewWorker(store, minter, Config{AutoRetryMint: true}, zap.NewNop())
	report, err := w.Sweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.NotTracked)
	minter.AssertNotCalled(t, "CompleteMint", mock.Anything, mock.Anything)
}

func TestSweep_StoreError(t *testing.T) {
	store := &MockStore{}
	store.On("ListStranded", mock.Anything).Return(nil, errors.New("connection refused"))

	w := NewWorker(store, &MockMinter{}, Config{}, zap.NewNop())
	_, err := w.Sweep(context.Background())
	assert.Error(t, err)
}

func TestWorker_StartRejectsBadSchedule(t *testing.T) {
	w := NewWorker(&MockStore{}, &MockMinter{}, Config{Schedule: "every now and then"}, zap.NewNop())
	assert.Error(t, w.Start())
}
