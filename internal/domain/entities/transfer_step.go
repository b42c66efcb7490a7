package entities

import "fmt"

// StepID names one phase of the transfer lifecycle
type StepID string

const (
	StepApprove     StepID = "approve"
	StepBurn        StepID = "burn"
	StepAttestation StepID = "attestation"
	StepMint        StepID = "mint"
)

// StepOrder is the fixed execution order
var StepOrder = []StepID{StepApprove, StepBurn, StepAttestation, StepMint}

// StepStatus represents the status of a transfer step
type StepStatus string

const (
	StepStatusPending    StepStatus = "pending"
	StepStatusProcessing StepStatus = "processing"
	StepStatusCompleted  StepStatus = "completed"
	StepStatusFailed     StepStatus = "failed"
)

// ValidStepTransitions defines allowed status transitions. A status never
// moves back to pending or processing; a failed step leaves failed only
// through a retry started with BeginRetry.
var ValidStepTransitions = map[StepStatus][]StepStatus{
	StepStatusPending:    {StepStatusProcessing},
	StepStatusProcessing: {StepStatusCompleted, StepStatusFailed},
	StepStatusFailed:     {StepStatusCompleted, StepStatusFailed},
	StepStatusCompleted:  {}, // Terminal state
}

// CanTransitionTo checks if transition to new status is allowed
func (s StepStatus) CanTransitionTo(newStatus StepStatus) bool {
	for _, status := range ValidStepTransitions[s] {
		if status == newStatus {
			return true
		}
	}
	return false
}

// ValidateTransition validates and returns error if transition is invalid
func (s StepStatus) ValidateTransition(newStatus StepStatus) error {
	if !s.CanTransitionTo(newStatus) {
		return fmt.Errorf("invalid step transition from %s to %s", s, newStatus)
	}
	return nil
}

// TransferStep is one phase of a session
type TransferStep struct {
	ID            StepID     `json:"id"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	Status        StepStatus `json:"status"`
	TxHash        string     `json:"txHash,omitempty"`
	EstimatedTime string     `json:"estimatedTime,omitempty"`
	// Attempts counts submissions of this step, retries included
	Attempts      int        `json:"attempts,omitempty"`
	// Retrying marks a failed step whose retry has been started and not resolved
	Retrying      bool       `json:"retrying,omitempty"`
}

// InFlight reports a step that is running, either first time or as a retry
func (s TransferStep) InFlight() bool {
	return s.Status == StepStatusProcessing || s.Retrying
}

// NewTransferSteps builds the four steps in execution order, all pending
func NewTransferSteps(from, to Network) []TransferStep {
	return []TransferStep{
		{
			ID:            StepApprove,
			Title:         "Approve USDC",
			Description:   fmt.Sprintf("Allow the token messenger on %s to burn USDC", from),
			Status:        StepStatusPending,
			EstimatedTime: "~30 seconds",
		},
		{
			ID:            StepBurn,
			Title:         "Burn USDC",
			Description:   fmt.Sprintf("Burn USDC on %s", from),
			Status:        StepStatusPending,
			EstimatedTime: "~1 minute",
		},
		{
			ID:            StepAttestation,
			Title:         "Wait for attestation",
			Description:   "Wait for the attestation service to sign the burn message",
			Status:        StepStatusPending,
			EstimatedTime: "~15-20 minutes",
		},
		{
			ID:            StepMint,
			Title:         "Mint USDC",
			Description:   fmt.Sprintf("Mint USDC on %s", to),
			Status:        StepStatusPending,
			EstimatedTime: "~1 minute",
		},
	}
}

// CloneSteps copies a step slice so callers never share backing arrays
func CloneSteps(steps []TransferStep) []TransferStep {
	if steps == nil {
		return nil
	}
	out := make([]TransferStep, len(steps))
	copy(out, steps)
	return out
}

// FindStep returns the step with the given id
func FindStep(steps []TransferStep, id StepID) (TransferStep, bool) {
	for _, s := range steps {
		if s.ID == id {
			return s, true
		}
	}
	return TransferStep{}, false
}

func stepIndex(steps []TransferStep, id StepID) int {
	for i, s := range steps {
		if s.ID == id {
			return i
		}
	}
	return -1
}

// AdvanceStep returns a copy of steps with id moved to status.
// Entering processing requires every earlier step to be completed;
// every transition must be allowed by ValidStepTransitions. A failed step
// only moves once BeginRetry marked it as retrying.
func AdvanceStep(steps []TransferStep, id StepID, status StepStatus, txHash string) ([]TransferStep, error) {
	idx := stepIndex(steps, id)
	if idx < 0 {
		return nil, fmt.Errorf("unknown step %s", id)
	}

	current := steps[idx]
	if err := current.Status.ValidateTransition(status); err != nil {
		return nil, fmt.Errorf("step %s: %w", id, err)
	}
	if current.Status == StepStatusFailed && !current.Retrying {
		return nil, fmt.Errorf("step %s: failed step has no retry in progress", id)
	}

	if status == StepStatusProcessing {
		if err := requirePredecessors(steps, idx); err != nil {
			return nil, err
		}
	}

	out := CloneSteps(steps)
	out[idx].Status = status
	out[idx].Retrying = false
	if status == StepStatusProcessing {
		out[idx].Attempts++
	}
	if txHash != "" {
		out[idx].TxHash = txHash
	}
	return out, nil
}

// BeginRetry starts another attempt of a failed step. The status stays
// failed until the attempt resolves through AdvanceStep.
func BeginRetry(steps []TransferStep, id StepID) ([]TransferStep, error) {
	idx := stepIndex(steps, id)
	if idx < 0 {
		return nil, fmt.Errorf("unknown step %s", id)
	}

	current := steps[idx]
	if current.Status != StepStatusFailed {
		return nil, fmt.Errorf("step %s is %s, only a failed step can be retried", id, current.Status)
	}
	if current.Retrying {
		return nil, fmt.Errorf("step %s: retry already in progress", id)
	}
	if err := requirePredecessors(steps, idx); err != nil {
		return nil, err
	}

	out := CloneSteps(steps)
	out[idx].Retrying = true
	out[idx].Attempts++
	return out, nil
}

// WithTxHash records a submitted transaction on a step without moving it
func WithTxHash(steps []TransferStep, id StepID, txHash string) []TransferStep {
	out := CloneSteps(steps)
	if idx := stepIndex(out, id); idx >= 0 && txHash != "" {
		out[idx].TxHash = txHash
	}
	return out
}

func requirePredecessors(steps []TransferStep, idx int) error {
	for _, prev := range steps[:idx] {
		if prev.Status != StepStatusCompleted {
			return fmt.Errorf("step %s cannot start before %s is completed", steps[idx].ID, prev.ID)
		}
	}
	return nil
}

// PhaseFromSteps derives the session state machine position from its steps
func PhaseFromSteps(steps []TransferStep) SessionPhase {
	burn, _ := FindStep(steps, StepBurn)
	mint, _ := FindStep(steps, StepMint)

	switch {
	case mint.Status == StepStatusCompleted:
		return PhaseCompleted
	case mint.InFlight():
		return PhaseMinting
	case mint.Status == StepStatusFailed:
		return PhaseMintFailed
	}

	switch {
	case burn.InFlight():
		return PhaseBurning
	case burn.Status == StepStatusFailed:
		return PhaseBurnFailed
	case burn.Status == StepStatusCompleted:
		return PhaseAwaitingAttestation
	}
	return PhaseCreated
}
