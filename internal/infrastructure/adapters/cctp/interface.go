package cctp

import "context"

// CCTPClient defines the interface for CCTP Iris API operations
type CCTPClient interface {
	// FetchAttestation returns the signature, or pending=true when Iris has not signed yet
	FetchAttestation(ctx context.Context, messageHash string) (signature string, pending bool, err error)

	// TransferStatus reports pending or attested for a message hash
	TransferStatus(ctx context.Context, messageHash string) (Status, error)

	// GetMessages looks up the messages emitted by a burn transaction
	GetMessages(ctx context.Context, sourceDomain uint32, txHash string) (*MessagesResponse, error)
}

// Ensure Client implements CCTPClient interface
var _ CCTPClient = (*Client)(nil)
