package entities

import (
	"time"

	"github.com/google/uuid"
)

// Network identifies a supported CCTP chain
type Network string

const (
	NetworkSepolia         Network = "sepolia"
	NetworkFuji            Network = "fuji"
	NetworkArbitrumSepolia Network = "arbitrumSepolia"
	NetworkBaseSepolia     Network = "baseSepolia"
	NetworkPolygonAmoy     Network = "polygonAmoy"
)

// SupportedNetworks is the closed set of networks, in display order
var SupportedNetworks = []Network{
	NetworkSepolia,
	NetworkFuji,
	NetworkArbitrumSepolia,
	NetworkBaseSepolia,
	NetworkPolygonAmoy,
}

// IsSupported checks membership in SupportedNetworks
func (n Network) IsSupported() bool {
	for _, s := range SupportedNetworks {
		if s == n {
			return true
		}
	}
	return false
}

// AddressFormat is the recipient address encoding a network expects
type AddressFormat string

const (
	AddressFormatEVM AddressFormat = "evm"
)

// AddressFormatFor returns the address format of a network.
// Every supported testnet, Avalanche C-chain included, uses EVM addresses.
func AddressFormatFor(n Network) AddressFormat {
	return AddressFormatEVM
}

// TransferRequest is the caller's immutable intent
type TransferRequest struct {
	FromNetwork Network `json:"fromNetwork"`
	ToNetwork   Network `json:"toNetwork"`
	// Amount is a decimal count of whole USDC, e.g. "100.5" for 100500000
	// base units. At most six decimal places.
	Amount      string  `json:"amount"`
	Recipient   string  `json:"recipient"`
}

// ValidationResult is the outcome of a pre-flight check
type ValidationResult struct {
	IsValid  bool     `json:"isValid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// SessionPhase is the coarse state of a session
type SessionPhase string

const (
	PhaseCreated             SessionPhase = "created"
	PhaseBurning             SessionPhase = "burning"
	PhaseBurnFailed          SessionPhase = "burn_failed"
	PhaseAwaitingAttestation SessionPhase = "awaiting_attestation"
	PhaseMinting             SessionPhase = "minting"
	PhaseMintFailed          SessionPhase = "mint_failed"
	PhaseCompleted           SessionPhase = "completed"
)

// ResultStatus is the terminal status recorded on a transfer result
type ResultStatus string

const (
	ResultStatusPending   ResultStatus = "pending"
	ResultStatusCompleted ResultStatus = "completed"
	ResultStatusFailed    ResultStatus = "failed"
)

// RecoveryHint tells the caller which step, if any, can be retried
type RecoveryHint string

const (
	RecoveryNone RecoveryHint = ""
	// RecoveryRetryBurn means nothing left the source chain
	RecoveryRetryBurn RecoveryHint = "retry_burn"
	// RecoveryRetryMint means the burn is irreversible and only the mint needs retrying
	RecoveryRetryMint RecoveryHint = "retry_mint"
	// RecoveryAwaitAttestation means the burn is irreversible and the attestation is still pending
	RecoveryAwaitAttestation RecoveryHint = "await_attestation"
	// RecoveryAwaitBurn means a burn was submitted and its receipt has not been seen yet.
	// The burn must not be submitted again until the receipt resolves.
	RecoveryAwaitBurn RecoveryHint = "await_burn_confirmation"
)

// TransferResult accumulates the artifacts of a transfer
type TransferResult struct {
	MessageHash       string       `json:"messageHash,omitempty"`
	MessageBytes      string       `json:"messageBytes,omitempty"`
	SourceTxHash      string       `json:"sourceTxHash,omitempty"`
	DestinationTxHash string       `json:"destinationTxHash,omitempty"`
	BurnedAmount      string       `json:"burnedAmount,omitempty"` // base units
	// UnconfirmedBurnTx is a submitted burn whose receipt is still unknown
	UnconfirmedBurnTx string       `json:"unconfirmedBurnTx,omitempty"`
	Status            ResultStatus `json:"status"`
	Error             string       `json:"error,omitempty"`
}

// TransferSession is the aggregate root for one transfer attempt
type TransferSession struct {
	ID                   uuid.UUID       `json:"id"`
	Params               TransferRequest `json:"params"`
	Steps                []TransferStep  `json:"steps"`
	Result               TransferResult  `json:"result"`
	AttestationSignature string          `json:"attestationSignature,omitempty"`
	Phase                SessionPhase    `json:"phase"`
	CreatedAt            time.Time       `json:"createdAt"`
	UpdatedAt            time.Time       `json:"updatedAt"`
}

// BurnSucceeded reports whether funds already left the source chain
func (s *TransferSession) BurnSucceeded() bool {
	burn, ok := FindStep(s.Steps, StepBurn)
	return ok && burn.Status == StepStatusCompleted
}

// BurnUnconfirmed reports a burn that was submitted but whose outcome is unknown
func (s *TransferSession) BurnUnconfirmed() bool {
	return s.Result.UnconfirmedBurnTx != ""
}

// IsStranded reports funds that left, or may have left, the source chain
// without a completed mint
func (s *TransferSession) IsStranded() bool {
	if s.BurnUnconfirmed() {
		return true
	}
	if !s.BurnSucceeded() {
		return false
	}
	mint, ok := FindStep(s.Steps, StepMint)
	return ok && mint.Status != StepStatusCompleted
}

// Recovery derives what the caller can do next from the step states
func (s *TransferSession) Recovery() RecoveryHint {
	burn, _ := FindStep(s.Steps, StepBurn)
	attestation, _ := FindStep(s.Steps, StepAttestation)
	mint, _ := FindStep(s.Steps, StepMint)

	switch {
	case s.BurnUnconfirmed():
		return RecoveryAwaitBurn
	case burn.Status == StepStatusFailed && !burn.Retrying:
		return RecoveryRetryBurn
	case mint.Status == StepStatusCompleted:
		return RecoveryNone
	case burn.Status == StepStatusCompleted && attestation.Status != StepStatusCompleted:
		return RecoveryAwaitAttestation
	case attestation.Status == StepStatusCompleted:
		return RecoveryRetryMint
	}
	return RecoveryNone
}

// Clone returns a deep copy safe to hand to callers
func (s *TransferSession) Clone() *TransferSession {
	if s == nil {
		return nil
	}
	c := *s
	c.Steps = CloneSteps(s.Steps)
	return &c
}

// NetworkBalanceSnapshot is the last known holder balance on one network
type NetworkBalanceSnapshot struct {
	Network       Network   `json:"network"`
	HolderAddress string    `json:"holderAddress"`
	Balance       string    `json:"balance"`
	FetchedAt     time.Time `json:"fetchedAt"`
	Stale         bool      `json:"stale,omitempty"`
	Error         string    `json:"error,omitempty"`
}

// BurnResult holds the artifacts emitted by a source-chain burn
type BurnResult struct {
	ApproveTxHash string // empty when the existing allowance sufficed
	MessageHash   string
	MessageBytes  string
	SourceTxHash  string
	BurnedAmount  string // base units
}

// BurnRequest is what the source adapter needs to submit a burn
type BurnRequest struct {
	Amount            string // whole USDC
	Recipient         string
	DestinationDomain uint32
}
