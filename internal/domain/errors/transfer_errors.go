package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Transfer lifecycle errors
var (
	// ErrValidationFailed indicates a transfer request was rejected before reaching any chain
	ErrValidationFailed = errors.New("transfer validation failed")

	// ErrChainWrite indicates a burn or mint transaction reverted or could not be submitted
	ErrChainWrite = errors.New("chain write failed")

	// ErrAttestationPending is a normal poll outcome, never a session failure
	ErrAttestationPending = errors.New("attestation pending")

	// ErrFundsStranded indicates the burn executed but the mint has not completed
	ErrFundsStranded = errors.New("funds burned on source chain, mint not completed")

	// ErrSignerRequired indicates a write was attempted without a bound signer
	ErrSignerRequired = errors.New("signer required")

	// ErrUnsupportedNetwork indicates a network outside the supported set
	ErrUnsupportedNetwork = errors.New("unsupported network")

	// ErrNoActiveSession indicates the controller holds no live session
	ErrNoActiveSession = errors.New("no active transfer session")

	// ErrBurnArtifactsMissing indicates a mined burn whose MessageSent event could not be read
	ErrBurnArtifactsMissing = errors.New("burn mined but message artifacts missing")

	// ErrStepOutOfOrder indicates a phase was requested before its predecessor completed
	ErrStepOutOfOrder = errors.New("transfer step out of order")

	// ErrTransferRejected indicates a pre-transfer hook refused the request
	ErrTransferRejected = errors.New("pre-transfer check rejected transfer")

	// ErrBurnUnconfirmed indicates a burn was submitted but its receipt has not been seen.
	// Funds may already have left the source chain, so the burn must not be submitted again.
	ErrBurnUnconfirmed = errors.New("burn submitted, receipt not yet seen")

	// ErrMessageAlreadyReceived indicates the destination already consumed the message
	// and the receiving transaction could not be located
	ErrMessageAlreadyReceived = errors.New("message already received on destination")
)

// TransferValidationError carries every violation found by the validator
type TransferValidationError struct {
	Violations []string
}

func (e *TransferValidationError) Error() string {
	return fmt.Sprintf("transfer validation failed: %s", strings.Join(e.Violations, "; "))
}

// Is matches both the transfer and the generic invalid-input category
func (e *TransferValidationError) Is(target error) bool {
	return target == ErrValidationFailed || target == ErrInvalidInput
}

// ChainWriteError describes a failed burn or mint submission
type ChainWriteError struct {
	Network   string
	Operation string
	TxHash    string
	// Reverted is true when the transaction was mined with a failure status.
	// Unreachable RPCs and submission errors leave it false.
	Reverted bool
	Err      error
}

// NewChainWriteError wraps err as a chain write failure on network
func NewChainWriteError(network, operation string, err error) *ChainWriteError {
	return &ChainWriteError{Network: network, Operation: operation, Err: err}
}

// NewRevertError records a mined transaction whose status was failure
func NewRevertError(network, operation, txHash string) *ChainWriteError {
	return &ChainWriteError{
		Network:   network,
		Operation: operation,
		TxHash:    txHash,
		Reverted:  true,
		Err:       fmt.Errorf("transaction %s reverted", txHash),
	}
}

func (e *ChainWriteError) Error() string {
	if e.TxHash != "" {
		return fmt.Sprintf("%s on %s failed (tx %s): %v", e.Operation, e.Network, e.TxHash, e.Err)
	}
	return fmt.Sprintf("%s on %s failed: %v", e.Operation, e.Network, e.Err)
}

func (e *ChainWriteError) Unwrap() error {
	return e.Err
}

func (e *ChainWriteError) Is(target error) bool {
	return target == ErrChainWrite
}

// StrandedFundsError is returned when a mint fails after the burn executed.
// The message and attestation stay valid, so the mint can be retried with them.
type StrandedFundsError struct {
	SessionID    string
	MessageHash  string
	MessageBytes string
	Attestation  string
	BurnTxHash   string
	Cause        error
}

func (e *StrandedFundsError) Error() string {
	return fmt.Sprintf("burn %s is irreversible and mint has not completed (message %s), retry the mint: %v",
		e.BurnTxHash, e.MessageHash, e.Cause)
}

func (e *StrandedFundsError) Unwrap() error {
	return e.Cause
}

func (e *StrandedFundsError) Is(target error) bool {
	return target == ErrFundsStranded
}

// IsChainWrite reports whether err is a burn or mint submission failure
func IsChainWrite(err error) bool {
	return errors.Is(err, ErrChainWrite)
}

// IsStranded reports whether err signals burned-but-not-minted funds
func IsStranded(err error) bool {
	return errors.Is(err, ErrFundsStranded)
}

// ShouldRetry classifies an error for automatic retry.
// Reverted transactions are not retried automatically; an unreachable RPC is.
// An unconfirmed burn is never re-submitted.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrBurnUnconfirmed) || errors.Is(err, ErrMessageAlreadyReceived) {
		return false
	}

	var cwe *ChainWriteError
	if errors.As(err, &cwe) {
		return !cwe.Reverted
	}

	var de *DomainError
	if errors.As(err, &de) {
		return de.Retryable
	}

	return errors.Is(err, ErrServiceUnavailable)
}
