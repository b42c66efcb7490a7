package transfer

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/rail-service/crosschain_transfer/internal/domain/entities"
	domainerrors "github.com/rail-service/crosschain_transfer/internal/domain/errors"
	"github.com/rail-service/crosschain_transfer/pkg/metrics"
)

const tracerName = "crosschain_transfer/transfer"

// InitResult is the outcome of InitializeTransfer or RetryBurn
type InitResult struct {
	SessionID uuid.UUID
	Steps     []entities.TransferStep
	Result    entities.TransferResult
}

// StatusResult is the outcome of one attestation check
type StatusResult struct {
	AttestationSignature string
	UpdatedSteps         []entities.TransferStep
	IsReadyForMint       bool
}

// MintResult is the outcome of CompleteMint
type MintResult struct {
	DestinationTxHash string
	UpdatedSteps      []entities.TransferStep
}

// Coordinator drives approve, burn, attestation and mint over the network adapters.
// It holds no session state: each phase takes the previous phase's output.
type Coordinator struct {
	adapters    map[entities.Network]NetworkAdapter
	attestation AttestationClient
	tracer      trace.Tracer
	logger      *zap.Logger
}

func NewCoordinator(adapters map[entities.Network]NetworkAdapter, attestation AttestationClient, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		adapters:    adapters,
		attestation: attestation,
		tracer:      otel.Tracer(tracerName),
		logger:      logger,
	}
}

func (c *Coordinator) adapter(n entities.Network) (NetworkAdapter, error) {
	a, ok := c.adapters[n]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domainerrors.ErrUnsupportedNetwork, n)
	}
	return a, nil
}

// InitializeTransfer creates the four steps and burns on the source network.
// On a burn failure the returned InitResult is still populated: burn is failed,
// later steps are pending and no funds left the source chain. A burn that was
// submitted but not confirmed in time comes back in flight with
// ErrBurnUnconfirmed; ResolveBurn settles it.
func (c *Coordinator) InitializeTransfer(ctx context.Context, req entities.TransferRequest, signer Signer) (*InitResult, error) {
	ctx, span := c.tracer.Start(ctx, "transfer.InitializeTransfer", trace.WithAttributes(
		attribute.String("transfer.from", string(req.FromNetwork)),
		attribute.String("transfer.to", string(req.ToNetwork)),
		attribute.String("transfer.amount", req.Amount),
	))
	defer span.End()

	if _, err := c.adapter(req.FromNetwork); err != nil {
		return nil, err
	}
	if _, err := c.adapter(req.ToNetwork); err != nil {
		return nil, err
	}

	steps := entities.NewTransferSteps(req.FromNetwork, req.ToNetwork)

	// allowance is handled inside the burn call
	steps, err := entities.AdvanceStep(steps, entities.StepApprove, entities.StepStatusProcessing, "")
	if err != nil {
		return nil, err
	}
	steps, err = entities.AdvanceStep(steps, entities.StepApprove, entities.StepStatusCompleted, "")
	if err != nil {
		return nil, err
	}
	steps, err = entities.AdvanceStep(steps, entities.StepBurn, entities.StepStatusProcessing, "")
	if err != nil {
		return nil, err
	}

	res := &InitResult{
		SessionID: uuid.New(),
		Steps:     steps,
		Result:    entities.TransferResult{Status: entities.ResultStatusPending},
	}

	c.logger.Info("Transfer initialized",
		zap.String("session_id", res.SessionID.String()),
		zap.String("from", string(req.FromNetwork)),
		zap.String("to", string(req.ToNetwork)),
		zap.String("amount", req.Amount))

	err = c.burn(ctx, req, signer, res)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "burn failed")
	}
	return res, err
}

// RetryBurn re-enters the burn step of a session whose burn failed.
// A burn that completed, or one still awaiting its receipt, is never re-submitted.
func (c *Coordinator) RetryBurn(ctx context.Context, sessionID uuid.UUID, req entities.TransferRequest, signer Signer, steps []entities.TransferStep) (*InitResult, error) {
	ctx, span := c.tracer.Start(ctx, "transfer.RetryBurn", trace.WithAttributes(
		attribute.String("transfer.session_id", sessionID.String()),
	))
	defer span.End()

	burn, ok := entities.FindStep(steps, entities.StepBurn)
	if !ok || burn.Status != entities.StepStatusFailed {
		return nil, fmt.Errorf("%w: burn is %s, only a failed burn can be retried", domainerrors.ErrStepOutOfOrder, burn.Status)
	}
	if burn.Retrying {
		return nil, fmt.Errorf("%w: burn retry %s is still unconfirmed", domainerrors.ErrStepOutOfOrder, burn.TxHash)
	}

	retrying, err := entities.BeginRetry(steps, entities.StepBurn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domainerrors.ErrStepOutOfOrder, err)
	}

	res := &InitResult{
		SessionID: sessionID,
		Steps:     retrying,
		Result:    entities.TransferResult{Status: entities.ResultStatusPending},
	}

	c.logger.Info("Retrying burn",
		zap.String("session_id", sessionID.String()),
		zap.Int("attempt", burn.Attempts+1))

	err = c.burn(ctx, req, signer, res)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "burn failed")
	}
	return res, err
}

// ResolveBurn looks up the receipt of a burn recorded as unconfirmed. While the
// receipt is still missing the session comes back unchanged with
// ErrBurnUnconfirmed. A mined burn completes exactly as a confirmed one would;
// a reverted burn fails and can be retried.
func (c *Coordinator) ResolveBurn(ctx context.Context, sessionID uuid.UUID, req entities.TransferRequest, steps []entities.TransferStep, result entities.TransferResult) (*InitResult, error) {
	ctx, span := c.tracer.Start(ctx, "transfer.ResolveBurn", trace.WithAttributes(
		attribute.String("transfer.session_id", sessionID.String()),
		attribute.String("transfer.burn_tx", result.UnconfirmedBurnTx),
	))
	defer span.End()

	txHash := result.UnconfirmedBurnTx
	burn, _ := entities.FindStep(steps, entities.StepBurn)
	if txHash == "" || !burn.InFlight() {
		return nil, fmt.Errorf("%w: no unconfirmed burn to resolve", domainerrors.ErrStepOutOfOrder)
	}
	source, err := c.adapter(req.FromNetwork)
	if err != nil {
		return nil, err
	}

	res := &InitResult{
		SessionID: sessionID,
		Steps:     entities.CloneSteps(steps),
		Result:    result,
	}

	burnResult, err := source.BurnReceipt(ctx, txHash)
	var cwe *domainerrors.ChainWriteError
	switch {
	case err == nil, errors.Is(err, domainerrors.ErrBurnArtifactsMissing):
		if burnResult == nil {
			burnResult = &entities.BurnResult{}
		}
		burnResult.SourceTxHash = txHash
		if burnResult.BurnedAmount == "" {
			burnResult.BurnedAmount = result.BurnedAmount
		}
		return res, c.settleBurn(req, res, burnResult, err)
	case errors.As(err, &cwe) && cwe.Reverted:
		span.RecordError(err)
		return res, c.settleBurn(req, res, nil, err)
	case errors.Is(err, domainerrors.ErrBurnUnconfirmed):
		return res, err
	}
	return res, fmt.Errorf("%w: %w", domainerrors.ErrBurnUnconfirmed, err)
}

// burn submits the burn for a step already in flight
func (c *Coordinator) burn(ctx context.Context, req entities.TransferRequest, signer Signer, res *InitResult) error {
	source, err := c.adapter(req.FromNetwork)
	if err != nil {
		return err
	}
	dest, err := c.adapter(req.ToNetwork)
	if err != nil {
		return err
	}

	// once submitted, the receipt wait must not end with the caller's request
	writeCtx := context.WithoutCancel(ctx)

	var burnResult *entities.BurnResult
	if err = source.Connect(signer); err != nil {
		err = domainerrors.NewChainWriteError(string(req.FromNetwork), "burn", err)
	} else {
		burnResult, err = source.InitiateBurn(writeCtx, entities.BurnRequest{
			Amount:            req.Amount,
			Recipient:         req.Recipient,
			DestinationDomain: dest.Domain(),
		})
	}
	return c.settleBurn(req, res, burnResult, err)
}

// settleBurn records the outcome of a burn submission or receipt lookup
func (c *Coordinator) settleBurn(req entities.TransferRequest, res *InitResult, burnResult *entities.BurnResult, err error) error {
	submitted := burnResult != nil && burnResult.SourceTxHash != ""
	switch {
	case err == nil:
		return c.burnConfirmed(req, res, burnResult)
	case submitted && errors.Is(err, domainerrors.ErrBurnArtifactsMissing):
		return c.burnMinedWithoutMessage(req, res, burnResult, err)
	case submitted && errors.Is(err, domainerrors.ErrBurnUnconfirmed):
		return c.burnUnconfirmed(req, res, burnResult, err)
	}

	res.Steps, _ = entities.AdvanceStep(res.Steps, entities.StepBurn, entities.StepStatusFailed, "")
	res.Result.UnconfirmedBurnTx = ""
	res.Result.Status = entities.ResultStatusFailed
	res.Result.Error = err.Error()

	metrics.TransfersInitialized.WithLabelValues(string(req.FromNetwork), string(req.ToNetwork), "burn_failed").Inc()
	c.logger.Error("Burn failed, no funds left the source chain",
		zap.String("session_id", res.SessionID.String()),
		zap.String("network", string(req.FromNetwork)),
		zap.Error(err))
	return err
}

func (c *Coordinator) burnConfirmed(req entities.TransferRequest, res *InitResult, burnResult *entities.BurnResult) error {
	res.Steps, _ = entities.AdvanceStep(res.Steps, entities.StepBurn, entities.StepStatusCompleted, burnResult.SourceTxHash)
	res.Steps = entities.WithTxHash(res.Steps, entities.StepApprove, burnResult.ApproveTxHash)
	res.Steps, _ = entities.AdvanceStep(res.Steps, entities.StepAttestation, entities.StepStatusProcessing, "")

	res.Result.MessageHash = burnResult.MessageHash
	res.Result.MessageBytes = burnResult.MessageBytes
	res.Result.SourceTxHash = burnResult.SourceTxHash
	res.Result.BurnedAmount = burnResult.BurnedAmount
	res.Result.UnconfirmedBurnTx = ""
	res.Result.Status = entities.ResultStatusPending
	res.Result.Error = ""

	metrics.TransfersInitialized.WithLabelValues(string(req.FromNetwork), string(req.ToNetwork), "burned").Inc()
	c.logger.Info("Burn completed, awaiting attestation",
		zap.String("session_id", res.SessionID.String()),
		zap.String("source_tx", burnResult.SourceTxHash),
		zap.String("message_hash", burnResult.MessageHash),
		zap.String("burned_amount", burnResult.BurnedAmount))

	return nil
}

// burnUnconfirmed keeps the burn in flight with the submitted tx recorded.
// The funds may already be gone, so the step is neither failed nor retryable.
func (c *Coordinator) burnUnconfirmed(req entities.TransferRequest, res *InitResult, burnResult *entities.BurnResult, cause error) error {
	res.Steps = entities.WithTxHash(res.Steps, entities.StepBurn, burnResult.SourceTxHash)
	res.Steps = entities.WithTxHash(res.Steps, entities.StepApprove, burnResult.ApproveTxHash)
	res.Result.SourceTxHash = burnResult.SourceTxHash
	res.Result.UnconfirmedBurnTx = burnResult.SourceTxHash
	res.Result.BurnedAmount = burnResult.BurnedAmount
	res.Result.Status = entities.ResultStatusPending
	res.Result.Error = cause.Error()

	metrics.TransfersInitialized.WithLabelValues(string(req.FromNetwork), string(req.ToNetwork), "burn_unconfirmed").Inc()
	c.logger.Warn("Burn submitted but not confirmed, awaiting receipt",
		zap.String("session_id", res.SessionID.String()),
		zap.String("source_tx", burnResult.SourceTxHash),
		zap.Error(cause))
	return cause
}

// burnMinedWithoutMessage records a burn that executed but whose message could
// not be read from the receipt. The burn is irreversible, so it is reported as
// stranded; the message can be recovered from the attestation service by tx hash.
func (c *Coordinator) burnMinedWithoutMessage(req entities.TransferRequest, res *InitResult, burnResult *entities.BurnResult, cause error) error {
	res.Steps, _ = entities.AdvanceStep(res.Steps, entities.StepBurn, entities.StepStatusCompleted, burnResult.SourceTxHash)
	res.Result.SourceTxHash = burnResult.SourceTxHash
	res.Result.BurnedAmount = burnResult.BurnedAmount
	res.Result.UnconfirmedBurnTx = ""
	res.Result.Error = cause.Error()

	metrics.TransfersInitialized.WithLabelValues(string(req.FromNetwork), string(req.ToNetwork), "burned_no_message").Inc()
	c.logger.Error("Burn mined but message artifacts missing, resume by tx hash",
		zap.String("session_id", res.SessionID.String()),
		zap.String("source_tx", burnResult.SourceTxHash),
		zap.Error(cause))

	return &domainerrors.StrandedFundsError{
		SessionID:  res.SessionID.String(),
		BurnTxHash: burnResult.SourceTxHash,
		Cause:      cause,
	}
}

// CheckTransferStatus asks the attestation service about messageHash.
// Pending is not an error: the steps come back unchanged. Calling it again
// after the attestation completed returns the same steps and signature.
func (c *Coordinator) CheckTransferStatus(ctx context.Context, messageHash string, steps []entities.TransferStep) (*StatusResult, error) {
	ctx, span := c.tracer.Start(ctx, "transfer.CheckTransferStatus", trace.WithAttributes(
		attribute.String("transfer.message_hash", messageHash),
	))
	defer span.End()

	attestationStep, ok := entities.FindStep(steps, entities.StepAttestation)
	if !ok || attestationStep.Status == entities.StepStatusPending || attestationStep.Status == entities.StepStatusFailed {
		return nil, fmt.Errorf("%w: attestation step is %s", domainerrors.ErrStepOutOfOrder, attestationStep.Status)
	}
	if messageHash == "" {
		return nil, fmt.Errorf("%w: no message hash", domainerrors.ErrStepOutOfOrder)
	}

	signature, pending, err := c.attestation.FetchAttestation(ctx, messageHash)
	if err != nil {
		metrics.AttestationPolls.WithLabelValues("error").Inc()
		span.RecordError(err)
		return nil, fmt.Errorf("check attestation: %w", err)
	}

	if pending {
		metrics.AttestationPolls.WithLabelValues("pending").Inc()
		return &StatusResult{UpdatedSteps: entities.CloneSteps(steps)}, nil
	}

	metrics.AttestationPolls.WithLabelValues("attested").Inc()

	updated := entities.CloneSteps(steps)
	if attestationStep.Status == entities.StepStatusProcessing {
		updated, err = entities.AdvanceStep(steps, entities.StepAttestation, entities.StepStatusCompleted, "")
		if err != nil {
			return nil, err
		}
		c.logger.Info("Attestation received", zap.String("message_hash", messageHash))
	}

	return &StatusResult{
		AttestationSignature: signature,
		UpdatedSteps:         updated,
		IsReadyForMint:       true,
	}, nil
}

// CompleteMint submits the attested message on the destination network.
// A message the destination already received completes the mint with the
// receiving tx instead of submitting again. A failed mint leaves the mint
// step failed, with any submitted tx recorded, and returns a
// StrandedFundsError: the burn is irreversible and the same arguments can be
// retried.
func (c *Coordinator) CompleteMint(ctx context.Context, messageBytes, attestation string, toNetwork entities.Network, signer Signer, steps []entities.TransferStep) (*MintResult, error) {
	ctx, span := c.tracer.Start(ctx, "transfer.CompleteMint", trace.WithAttributes(
		attribute.String("transfer.to", string(toNetwork)),
	))
	defer span.End()

	dest, err := c.adapter(toNetwork)
	if err != nil {
		return nil, err
	}

	mint, _ := entities.FindStep(steps, entities.StepMint)
	var updated []entities.TransferStep
	if mint.Status == entities.StepStatusFailed {
		updated, err = entities.BeginRetry(steps, entities.StepMint)
	} else {
		updated, err = entities.AdvanceStep(steps, entities.StepMint, entities.StepStatusProcessing, "")
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domainerrors.ErrStepOutOfOrder, err)
	}

	writeCtx := context.WithoutCancel(ctx)

	received, err := dest.LookupMint(writeCtx, messageBytes, mint.TxHash)
	if err != nil {
		return c.mintFailed(span, toNetwork, messageBytes, attestation, steps, updated, "", err)
	}
	if received != "" {
		c.logger.Info("Message already received on destination",
			zap.String("network", string(toNetwork)),
			zap.String("destination_tx", received))
		return c.mintCompleted(toNetwork, updated, received, "already_received")
	}

	txHash, err := dest.CompleteMint(writeCtx, messageBytes, attestation, signer)
	if err != nil {
		var submitted string
		var cwe *domainerrors.ChainWriteError
		if errors.As(err, &cwe) {
			submitted = cwe.TxHash
		}
		return c.mintFailed(span, toNetwork, messageBytes, attestation, steps, updated, submitted, err)
	}
	return c.mintCompleted(toNetwork, updated, txHash, "completed")
}

func (c *Coordinator) mintCompleted(toNetwork entities.Network, updated []entities.TransferStep, txHash, outcome string) (*MintResult, error) {
	updated, err := entities.AdvanceStep(updated, entities.StepMint, entities.StepStatusCompleted, txHash)
	if err != nil {
		return nil, err
	}
	metrics.MintsCompleted.WithLabelValues(string(toNetwork), outcome).Inc()
	c.logger.Info("Mint completed",
		zap.String("network", string(toNetwork)),
		zap.String("destination_tx", txHash))

	return &MintResult{DestinationTxHash: txHash, UpdatedSteps: updated}, nil
}

// mintFailed marks the mint failed. submitted is a tx that reached the chain,
// kept on the step so the next attempt can check whether it landed.
func (c *Coordinator) mintFailed(span trace.Span, toNetwork entities.Network, messageBytes, attestation string, steps, updated []entities.TransferStep, submitted string, cause error) (*MintResult, error) {
	updated, _ = entities.AdvanceStep(updated, entities.StepMint, entities.StepStatusFailed, submitted)
	metrics.MintsCompleted.WithLabelValues(string(toNetwork), "failed").Inc()
	span.RecordError(cause)
	span.SetStatus(codes.Error, "mint failed")

	if errors.Is(cause, domainerrors.ErrMessageAlreadyReceived) {
		c.logger.Error("Message consumed on destination by an unknown tx",
			zap.String("network", string(toNetwork)),
			zap.Error(cause))
		return &MintResult{UpdatedSteps: updated}, cause
	}

	burn, _ := entities.FindStep(steps, entities.StepBurn)
	stranded := &domainerrors.StrandedFundsError{
		MessageHash:  messageHashOf(messageBytes),
		MessageBytes: messageBytes,
		Attestation:  attestation,
		BurnTxHash:   burn.TxHash,
		Cause:        cause,
	}
	c.logger.Error("Mint failed after irreversible burn",
		zap.String("network", string(toNetwork)),
		zap.String("message_hash", stranded.MessageHash),
		zap.String("burn_tx", burn.TxHash),
		zap.String("mint_tx", submitted),
		zap.Error(cause))
	return &MintResult{UpdatedSteps: updated}, stranded
}

// messageHashOf is keccak256 of the raw message, or empty for malformed input
func messageHashOf(messageBytes string) string {
	raw, err := hexutil.Decode(messageBytes)
	if err != nil || len(raw) == 0 {
		return ""
	}
	return crypto.Keccak256Hash(raw).Hex()
}
