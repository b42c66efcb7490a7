package transfer

import (
	"context"

	"github.com/google/uuid"

	"github.com/rail-service/crosschain_transfer/internal/domain/entities"
	"github.com/rail-service/crosschain_transfer/internal/infrastructure/adapters/evm"
)

// Signer signs transactions on behalf of the holder
type Signer = evm.Signer

// NetworkAdapter is the per-chain binding used by the coordinator
type NetworkAdapter interface {
	Network() entities.Network
	Domain() uint32
	Connect(signer Signer) error
	GetBalance(ctx context.Context, address string) (string, error)
	InitiateBurn(ctx context.Context, req entities.BurnRequest) (*entities.BurnResult, error)
	// BurnReceipt resolves a burn whose receipt was not seen at submission
	BurnReceipt(ctx context.Context, txHash string) (*entities.BurnResult, error)
	CompleteMint(ctx context.Context, messageBytes, attestation string, signer Signer) (string, error)
	// LookupMint returns the tx that already received messageBytes, or ""
	LookupMint(ctx context.Context, messageBytes, priorTxHash string) (string, error)
}

// AttestationClient reads attestation state by message hash
type AttestationClient interface {
	FetchAttestation(ctx context.Context, messageHash string) (signature string, pending bool, err error)
}

// SessionRepository checkpoints sessions so burned-but-unminted transfers survive restarts
type SessionRepository interface {
	Save(ctx context.Context, session *entities.TransferSession) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.TransferSession, error)
	GetByMessageHash(ctx context.Context, messageHash string) (*entities.TransferSession, error)
	ListStranded(ctx context.Context) ([]*entities.TransferSession, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// EventPublisher records lifecycle outcomes for downstream collaborators
type EventPublisher interface {
	PublishCompleted(ctx context.Context, session *entities.TransferSession) error
	PublishBurnFailed(ctx context.Context, session *entities.TransferSession) error
	PublishMintFailed(ctx context.Context, session *entities.TransferSession) error
}

// PreTransferHook runs before any chain write, e.g. to enforce limits.
// Returning an error aborts the transfer before the burn.
type PreTransferHook interface {
	BeforeTransfer(ctx context.Context, req entities.TransferRequest, holder string) error
}
