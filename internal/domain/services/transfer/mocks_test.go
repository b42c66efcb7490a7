package transfer

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/rail-service/crosschain_transfer/internal/domain/entities"
	domainerrors "github.com/rail-service/crosschain_transfer/internal/domain/errors"
)

const (
	holderAddress  = "0x8ba1f109551bD432803012645Ac136ddd64DBA72"
	recipient      = "0x71C7656EC7ab88b098defB751B7401B5f6d8976F"
	messageBytes   = "0x0000000000000000000000010000000000000001"
	attestationSig = "0xdeadbeef"
	burnTx         = "0x1111111111111111111111111111111111111111111111111111111111111111"
	mintTx         = "0x2222222222222222222222222222222222222222222222222222222222222222"
)

var messageHash = crypto.Keccak256Hash(hexutil.MustDecode(messageBytes)).Hex()

// MockNetworkAdapter is a mock implementation of NetworkAdapter
type MockNetworkAdapter struct {
	mock.Mock
	network entities.Network
	domain  uint32
}

func newMockAdapter(network entities.Network, domain uint32) *MockNetworkAdapter {
	return &MockNetworkAdapter{network: network, domain: domain}
}

func (m *MockNetworkAdapter) Network() entities.Network { return m.network }
func (m *MockNetworkAdapter) Domain() uint32            { return m.domain }

func (m *MockNetworkAdapter) Connect(signer Signer) error {
	return m.Called(signer).Error(0)
}

func (m *MockNetworkAdapter) GetBalance(ctx context.Context, address string) (string, error) {
	args := m.Called(ctx, address)
	return args.String(0), args.Error(1)
}

func (m *MockNetworkAdapter) InitiateBurn(ctx context.Context, req entities.BurnRequest) (*entities.BurnResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.BurnResult), args.Error(1)
}

func (m *MockNetworkAdapter) CompleteMint(ctx context.Context, msg, attestation string, signer Signer) (string, error) {
	args := m.Called(ctx, msg, attestation, signer)
	return args.String(0), args.Error(1)
}

func (m *MockNetworkAdapter) BurnReceipt(ctx context.Context, txHash string) (*entities.BurnResult, error) {
	args := m.Called(ctx, txHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.BurnResult), args.Error(1)
}

func (m *MockNetworkAdapter) LookupMint(ctx context.Context, msg, priorTxHash string) (string, error) {
	args := m.Called(ctx, msg, priorTxHash)
	return args.String(0), args.Error(1)
}

// MockAttestationClient is a mock implementation of AttestationClient
type MockAttestationClient struct {
	mock.Mock
}

func (m *MockAttestationClient) FetchAttestation(ctx context.Context, messageHash string) (string, bool, error) {
	args := m.Called(ctx, messageHash)
	return args.String(0), args.Bool(1), args.Error(2)
}

// MockEventPublisher is a mock implementation of EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) PublishCompleted(ctx context.Context, s *entities.TransferSession) error {
	return m.Called(ctx, s).Error(0)
}

func (m *MockEventPublisher) PublishBurnFailed(ctx context.Context, s *entities.TransferSession) error {
	return m.Called(ctx, s).Error(0)
}

func (m *MockEventPublisher) PublishMintFailed(ctx context.Context, s *entities.TransferSession) error {
	return m.Called(ctx, s).Error(0)
}

type fakeSigner struct {
	addr common.Address
}

func (s fakeSigner) Address() common.Address { return s.addr }

func (s fakeSigner) SignTx(_ context.Context, _ *big.Int, tx *types.Transaction) (*types.Transaction, error) {
	return tx, nil
}

func testSigner() Signer {
	return fakeSigner{addr: common.HexToAddress(holderAddress)}
}

// memoryRepo is a minimal SessionRepository for controller tests
type memoryRepo struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*entities.TransferSession
	saves    int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{sessions: map[uuid.UUID]*entities.TransferSession{}}
}

func (r *memoryRepo) Save(_ context.Context, s *entities.TransferSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = s.Clone()
	r.saves++
	return nil
}

func (r *memoryRepo) GetByID(_ context.Context, id uuid.UUID) (*entities.TransferSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, domainerrors.NotFoundError("TRANSFER")
	}
	return s.Clone(), nil
}

func (r *memoryRepo) GetByMessageHash(_ context.Context, hash string) (*entities.TransferSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.Result.MessageHash == hash {
			return s.Clone(), nil
		}
	}
	return nil, domainerrors.NotFoundError("TRANSFER")
}

func (r *memoryRepo) ListStranded(context.Context) ([]*entities.TransferSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entities.TransferSession
	for _, s := range r.sessions {
		if s.IsStranded() {
			out = append(out, s.Clone())
		}
	}
	return out, nil
}

func (r *memoryRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	return nil
}

func burnResult() *entities.BurnResult {
	return &entities.BurnResult{
		ApproveTxHash: "0xaaaa",
		MessageHash:   messageHash,
		MessageBytes:  messageBytes,
		SourceTxHash:  burnTx,
		BurnedAmount:  "100000000",
	}
}

func (r *memoryRepo) get(id uuid.UUID) (*entities.TransferSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}
