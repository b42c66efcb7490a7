package transfer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"

	"github.com/rail-service/crosschain_transfer/internal/domain/entities"
	domainerrors "github.com/rail-service/crosschain_transfer/internal/domain/errors"
	"github.com/rail-service/crosschain_transfer/internal/domain/services/balance"
	"github.com/rail-service/crosschain_transfer/internal/workers/attestation_poller"
	"github.com/rail-service/crosschain_transfer/pkg/logger"
)

// FundsBurnedWarning is returned when a session is cleared after its burn executed
const FundsBurnedWarning = "funds were burned on the source network and are not reclaimed by clearing; " +
	"resume with the message hash and bytes to complete the mint"

// UnconfirmedBurnWarning is returned when a session is cleared while its burn awaits a receipt
const UnconfirmedBurnWarning = "a burn was submitted on the source network and may have executed; " +
	"once it confirms, resume by its tx hash to complete the mint"

// ControllerOptions configures a Controller. Repository, Events and Hooks are optional.
type ControllerOptions struct {
	Signer       Signer
	Repository   SessionRepository
	Events       EventPublisher
	Hooks        []PreTransferHook
	PollInterval time.Duration
	// AutoMint submits the mint as soon as the attestation arrives
	AutoMint bool
}

// ClearResult tells the caller what clearing a session left behind
type ClearResult struct {
	SessionID   uuid.UUID `json:"sessionId"`
	FundsBurned bool      `json:"fundsBurned"`
	MessageHash string    `json:"messageHash,omitempty"`
	BurnTxHash  string    `json:"burnTxHash,omitempty"`
	Warning     string    `json:"warning,omitempty"`
}

type sessionEntry struct {
	// check serializes attestation checks; op serializes burn retries and mints
	check sync.Mutex
	op    sync.Mutex

	mu      sync.Mutex
	session *entities.TransferSession
}

func (e *sessionEntry) snapshot() *entities.TransferSession {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.Clone()
}

func (e *sessionEntry) update(fn func(s *entities.TransferSession)) *entities.TransferSession {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e.session)
	e.session.Phase = entities.PhaseFromSteps(e.session.Steps)
	e.session.UpdatedAt = time.Now().UTC()
	return e.session.Clone()
}

// Controller owns live transfer sessions and their attestation polls.
// Callers only ever receive copies of a session.
type Controller struct {
	validator   *Validator
	coordinator *Coordinator
	balances    *balance.Aggregator
	pollers     *attestation_poller.Registry
	signer      Signer
	repo        SessionRepository
	events      EventPublisher
	hooks       []PreTransferHook
	autoMint    bool
	logger      *logger.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.RWMutex
	sessions map[uuid.UUID]*sessionEntry
}

func NewController(validator *Validator, coordinator *Coordinator, balances *balance.Aggregator, opts ControllerOptions, log *logger.Logger) *Controller {
	interval := opts.PollInterval
	if interval <= 0 {
		interval = attestation_poller.DefaultInterval
	}
	events := opts.Events
	if events == nil {
		events = NopEventPublisher{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		validator:   validator,
		coordinator: coordinator,
		balances:    balances,
		pollers:     attestation_poller.NewRegistry(interval, log),
		signer:      opts.Signer,
		repo:        opts.Repository,
		events:      events,
		hooks:       opts.Hooks,
		autoMint:    opts.AutoMint,
		logger:      log,
		ctx:         ctx,
		cancel:      cancel,
		sessions:    make(map[uuid.UUID]*sessionEntry),
	}
}

// HolderAddress is the address of the bound signer, or empty
func (c *Controller) HolderAddress() string {
	if c.signer == nil {
		return ""
	}
	return c.signer.Address().Hex()
}

// Validate runs the pre-flight checks against the bound signer's balance
func (c *Controller) Validate(ctx context.Context, req entities.TransferRequest) entities.ValidationResult {
	return c.validator.Validate(ctx, req, c.HolderAddress())
}

// Initialize validates req, burns on the source network and starts polling for
// the attestation. A failed burn still returns the session with burn failed.
func (c *Controller) Initialize(ctx context.Context, req entities.TransferRequest) (*entities.TransferSession, error) {
	if c.signer == nil {
		return nil, domainerrors.ErrSignerRequired
	}

	validation := c.Validate(ctx, req)
	if !validation.IsValid {
		return nil, &domainerrors.TransferValidationError{Violations: validation.Errors}
	}
	for _, w := range validation.Warnings {
		c.logger.Warn("Transfer validation warning", "warning", w, "from", req.FromNetwork, "to", req.ToNetwork)
	}

	for _, hook := range c.hooks {
		if err := hook.BeforeTransfer(ctx, req, c.HolderAddress()); err != nil {
			return nil, fmt.Errorf("%w: %w", domainerrors.ErrTransferRejected, err)
		}
	}

	res, err := c.coordinator.InitializeTransfer(ctx, req, c.signer)
	if res == nil {
		return nil, err
	}

	now := time.Now().UTC()
	session := &entities.TransferSession{
		ID:        res.SessionID,
		Params:    req,
		Steps:     res.Steps,
		Result:    res.Result,
		Phase:     entities.PhaseFromSteps(res.Steps),
		CreatedAt: now,
		UpdatedAt: now,
	}
	entry := c.register(session)
	snap := entry.snapshot()
	c.checkpoint(snap)

	return c.afterBurn(entry, snap, err)
}

// afterBurn publishes a burn failure or starts the next poll. An unconfirmed
// burn is in progress, not a failure.
func (c *Controller) afterBurn(entry *sessionEntry, snap *entities.TransferSession, err error) (*entities.TransferSession, error) {
	if errors.Is(err, domainerrors.ErrBurnUnconfirmed) {
		c.logger.Warn("Burn awaiting receipt", "session_id", snap.ID.String(), "burn_tx", snap.Result.UnconfirmedBurnTx)
		c.startPolling(entry)
		return snap, nil
	}
	if err != nil {
		if !domainerrors.IsStranded(err) {
			c.publish(snap, c.events.PublishBurnFailed)
		}
		return snap, err
	}

	c.startPolling(entry)
	return snap, nil
}

// RetryBurn re-submits the burn of a session whose burn failed
func (c *Controller) RetryBurn(ctx context.Context, id uuid.UUID) (*entities.TransferSession, error) {
	if c.signer == nil {
		return nil, domainerrors.ErrSignerRequired
	}
	entry, err := c.entry(id)
	if err != nil {
		return nil, err
	}
	if !entry.op.TryLock() {
		return nil, domainerrors.ConflictError("transfer", "another operation is in progress")
	}
	defer entry.op.Unlock()

	current := entry.snapshot()
	res, err := c.coordinator.RetryBurn(ctx, current.ID, current.Params, c.signer, current.Steps)
	if res == nil {
		return current, err
	}

	snap := entry.update(func(s *entities.TransferSession) {
		s.Steps = res.Steps
		s.Result = res.Result
	})
	c.checkpoint(snap)

	return c.afterBurn(entry, snap, err)
}

// CheckStatus polls the attestation once, or the burn receipt while the burn
// is unconfirmed. While another check for the same session is in flight it
// returns the current snapshot without a second call.
func (c *Controller) CheckStatus(ctx context.Context, id uuid.UUID) (*entities.TransferSession, error) {
	entry, err := c.entry(id)
	if err != nil {
		return nil, err
	}
	if !entry.check.TryLock() {
		return entry.snapshot(), nil
	}
	defer entry.check.Unlock()

	current := entry.snapshot()
	if current.BurnUnconfirmed() {
		return c.resolveBurn(ctx, entry, current)
	}
	if current.AttestationSignature != "" {
		return current, nil
	}

	status, err := c.coordinator.CheckTransferStatus(ctx, current.Result.MessageHash, current.Steps)
	if err != nil {
		return current, err
	}
	if !status.IsReadyForMint {
		return current, nil
	}

	snap := entry.update(func(s *entities.TransferSession) {
		s.Steps = status.UpdatedSteps
		s.AttestationSignature = status.AttestationSignature
	})
	c.checkpoint(snap)
	c.logger.Info("Session ready for mint", "session_id", snap.ID.String(), "message_hash", snap.Result.MessageHash)
	return snap, nil
}

// resolveBurn settles an unconfirmed burn once its receipt is available.
// Until then the snapshot comes back unchanged with no error.
func (c *Controller) resolveBurn(ctx context.Context, entry *sessionEntry, current *entities.TransferSession) (*entities.TransferSession, error) {
	res, err := c.coordinator.ResolveBurn(ctx, current.ID, current.Params, current.Steps, current.Result)
	if res == nil {
		return current, err
	}
	if errors.Is(err, domainerrors.ErrBurnUnconfirmed) {
		c.logger.Debug("Burn still unconfirmed", "session_id", current.ID.String(), "burn_tx", current.Result.UnconfirmedBurnTx, "error", err)
		return current, nil
	}

	snap := entry.update(func(s *entities.TransferSession) {
		s.Steps = res.Steps
		s.Result = res.Result
	})
	c.checkpoint(snap)
	c.logger.Info("Unconfirmed burn resolved", "session_id", snap.ID.String(), "phase", snap.Phase)

	if err != nil {
		if !domainerrors.IsStranded(err) {
			c.publish(snap, c.events.PublishBurnFailed)
		}
		return snap, err
	}
	c.startPolling(entry)
	return snap, nil
}

// CompleteMint submits the attested message on the destination network.
// It can be called again after a failed mint with the same artifacts.
func (c *Controller) CompleteMint(ctx context.Context, id uuid.UUID) (*entities.TransferSession, error) {
	entry, err := c.entry(id)
	if err != nil {
		return nil, err
	}
	if !entry.op.TryLock() {
		return nil, domainerrors.ConflictError("transfer", "another operation is in progress")
	}
	defer entry.op.Unlock()

	current := entry.snapshot()
	if current.AttestationSignature == "" {
		return current, domainerrors.ErrAttestationPending
	}
	if current.Phase == entities.PhaseCompleted {
		return current, nil
	}

	mint, err := c.coordinator.CompleteMint(ctx, current.Result.MessageBytes, current.AttestationSignature,
		current.Params.ToNetwork, c.signer, current.Steps)
	if mint == nil {
		return current, err
	}

	snap := entry.update(func(s *entities.TransferSession) {
		s.Steps = mint.UpdatedSteps
		if err != nil {
			s.Result.Status = entities.ResultStatusFailed
			s.Result.Error = err.Error()
			return
		}
		s.Result.DestinationTxHash = mint.DestinationTxHash
		s.Result.Status = entities.ResultStatusCompleted
		s.Result.Error = ""
	})
	c.checkpoint(snap)

	if err != nil {
		var stranded *domainerrors.StrandedFundsError
		if errors.As(err, &stranded) {
			stranded.SessionID = snap.ID.String()
		}
		c.publish(snap, c.events.PublishMintFailed)
		return snap, err
	}

	c.publish(snap, c.events.PublishCompleted)
	return snap, nil
}

// Resume rebuilds a session for a burn whose message is known, e.g. after the
// original session was cleared or the process restarted, and polls as usual.
func (c *Controller) Resume(ctx context.Context, from, to entities.Network, messageHash, messageBytes string) (*entities.TransferSession, error) {
	if _, err := c.coordinator.adapter(from); err != nil {
		return nil, err
	}
	if _, err := c.coordinator.adapter(to); err != nil {
		return nil, err
	}

	raw, err := hexutil.Decode(messageBytes)
	if err != nil || len(raw) == 0 {
		return nil, domainerrors.ValidationError("messageBytes", "message bytes must be 0x-prefixed hex")
	}
	computed := crypto.Keccak256Hash(raw).Hex()
	if messageHash == "" {
		messageHash = computed
	}
	if !strings.EqualFold(computed, messageHash) {
		return nil, domainerrors.ValidationError("messageHash", fmt.Sprintf("message hash does not match message bytes (expected %s)", computed))
	}

	if existing := c.findByMessageHash(computed); existing != nil {
		return existing.snapshot(), nil
	}

	if c.repo != nil {
		stored, err := c.repo.GetByMessageHash(ctx, computed)
		if err != nil && !domainerrors.IsNotFound(err) {
			return nil, fmt.Errorf("load session for message %s: %w", computed, err)
		}
		if stored != nil {
			entry := c.register(stored)
			c.startPolling(entry)
			c.logger.Info("Session restored", "session_id", stored.ID.String(), "message_hash", computed)
			return entry.snapshot(), nil
		}
	}

	steps := entities.NewTransferSteps(from, to)
	for _, tr := range []struct {
		id     entities.StepID
		status entities.StepStatus
	}{
		{entities.StepApprove, entities.StepStatusProcessing},
		{entities.StepApprove, entities.StepStatusCompleted},
		{entities.StepBurn, entities.StepStatusProcessing},
		{entities.StepBurn, entities.StepStatusCompleted},
		{entities.StepAttestation, entities.StepStatusProcessing},
	} {
		if steps, err = entities.AdvanceStep(steps, tr.id, tr.status, ""); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	session := &entities.TransferSession{
		ID:     uuid.New(),
		Params: entities.TransferRequest{FromNetwork: from, ToNetwork: to},
		Steps:  steps,
		Result: entities.TransferResult{
			MessageHash:  computed,
			MessageBytes: messageBytes,
			Status:       entities.ResultStatusPending,
		},
		Phase:     entities.PhaseFromSteps(steps),
		CreatedAt: now,
		UpdatedAt: now,
	}
	entry := c.register(session)
	snap := entry.snapshot()
	c.checkpoint(snap)
	c.startPolling(entry)

	c.logger.Info("Session resumed from message", "session_id", snap.ID.String(), "message_hash", computed)
	return snap, nil
}

// Restore loads stranded sessions from the repository and resumes polling
// for those still waiting on an attestation.
func (c *Controller) Restore(ctx context.Context) (int, error) {
	if c.repo == nil {
		return 0, nil
	}
	stranded, err := c.repo.ListStranded(ctx)
	if err != nil {
		return 0, fmt.Errorf("list stranded sessions: %w", err)
	}

	restored := 0
	for _, s := range stranded {
		if _, err := c.entry(s.ID); err == nil {
			continue
		}
		entry := c.register(s)
		c.startPolling(entry)
		restored++
	}
	if restored > 0 {
		c.logger.Info("Restored stranded sessions", "count", restored)
	}
	return restored, nil
}

// ClearTransfer drops client-side tracking of a session and stops its poll.
// On-chain state is untouched; a stranded session stays in the repository.
func (c *Controller) ClearTransfer(ctx context.Context, id uuid.UUID) (*ClearResult, error) {
	c.mu.Lock()
	entry, ok := c.sessions[id]
	if ok {
		delete(c.sessions, id)
	}
	c.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", domainerrors.ErrNoActiveSession, id)
	}

	snap := entry.snapshot()
	for _, key := range []string{snap.Result.MessageHash, snap.Result.UnconfirmedBurnTx} {
		if key != "" {
			c.pollers.Stop(key)
		}
	}

	out := &ClearResult{SessionID: id}
	if snap.BurnUnconfirmed() {
		out.FundsBurned = true
		out.BurnTxHash = snap.Result.UnconfirmedBurnTx
		out.Warning = UnconfirmedBurnWarning
		c.logger.Warn("Cleared session with unconfirmed burn", "session_id", id.String(), "burn_tx", out.BurnTxHash)
		return out, nil
	}
	if snap.IsStranded() {
		out.FundsBurned = true
		out.MessageHash = snap.Result.MessageHash
		out.Warning = FundsBurnedWarning
		c.logger.Warn("Cleared session with burned funds", "session_id", id.String(), "message_hash", snap.Result.MessageHash)
		return out, nil
	}

	if c.repo != nil {
		if err := c.repo.Delete(ctx, id); err != nil && !domainerrors.IsNotFound(err) {
			c.logger.Warn("Failed to delete cleared session", "session_id", id.String(), "error", err)
		}
	}
	return out, nil
}

// RefreshBalances queries every network for address, or for the bound signer when empty
func (c *Controller) RefreshBalances(ctx context.Context, address string) []balance.Result {
	if address == "" {
		address = c.HolderAddress()
	}
	return c.balances.RefreshAllBalances(ctx, address)
}

// Balances returns the last known balances without querying any network
func (c *Controller) Balances(address string) []entities.NetworkBalanceSnapshot {
	if address == "" {
		address = c.HolderAddress()
	}
	return c.balances.Snapshots(address)
}

// Session returns a copy of the session
func (c *Controller) Session(id uuid.UUID) (*entities.TransferSession, error) {
	entry, err := c.entry(id)
	if err != nil {
		return nil, err
	}
	return entry.snapshot(), nil
}

// Sessions returns copies of all live sessions, oldest first
func (c *Controller) Sessions() []*entities.TransferSession {
	c.mu.RLock()
	entries := make([]*sessionEntry, 0, len(c.sessions))
	for _, e := range c.sessions {
		entries = append(entries, e)
	}
	c.mu.RUnlock()

	out := make([]*entities.TransferSession, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.snapshot())
	}
	sortByCreated(out)
	return out
}

// Polling reports whether a receipt or attestation poll is running for the session
func (c *Controller) Polling(id uuid.UUID) bool {
	s, err := c.Session(id)
	if err != nil {
		return false
	}
	for _, key := range []string{s.Result.UnconfirmedBurnTx, s.Result.MessageHash} {
		if key != "" && c.pollers.Active(key) {
			return true
		}
	}
	return false
}

// Shutdown stops every poll. Sessions stay in the repository.
func (c *Controller) Shutdown() {
	c.cancel()
	c.pollers.StopAll()
}

func sortByCreated(sessions []*entities.TransferSession) {
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})
}

func (c *Controller) register(s *entities.TransferSession) *sessionEntry {
	entry := &sessionEntry{session: s.Clone()}
	c.mu.Lock()
	c.sessions[s.ID] = entry
	c.mu.Unlock()
	return entry
}

func (c *Controller) entry(id uuid.UUID) (*sessionEntry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domainerrors.ErrNoActiveSession, id)
	}
	return entry, nil
}

func (c *Controller) findByMessageHash(hash string) *sessionEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, e := range c.sessions {
		e.mu.Lock()
		match := strings.EqualFold(e.session.Result.MessageHash, hash)
		e.mu.Unlock()
		if match {
			return e
		}
	}
	return nil
}

// startPolling checks the attestation on a timer until it arrives or the
// session is cleared. With AutoMint the mint follows immediately. A session
// whose burn is unconfirmed first polls the burn receipt, keyed by tx hash.
func (c *Controller) startPolling(entry *sessionEntry) {
	snap := entry.snapshot()
	if snap.BurnUnconfirmed() {
		c.pollBurnReceipt(snap)
		return
	}
	attestation, _ := entities.FindStep(snap.Steps, entities.StepAttestation)
	if snap.Result.MessageHash == "" || attestation.Status != entities.StepStatusProcessing {
		return
	}

	id := snap.ID
	c.pollers.Start(c.ctx, snap.Result.MessageHash, func(ctx context.Context) (bool, error) {
		s, err := c.CheckStatus(ctx, id)
		if errors.Is(err, domainerrors.ErrNoActiveSession) {
			return true, nil
		}
		if err != nil {
			return false, err
		}
		if s.AttestationSignature == "" {
			return false, nil
		}

		if c.autoMint && c.signer != nil {
			if _, err := c.CompleteMint(ctx, id); err != nil {
				c.logger.Error("Automatic mint failed", "session_id", id.String(), "error", err)
			}
		}
		return true, nil
	})
}

func (c *Controller) pollBurnReceipt(snap *entities.TransferSession) {
	id := snap.ID
	c.pollers.Start(c.ctx, snap.Result.UnconfirmedBurnTx, func(ctx context.Context) (bool, error) {
		s, err := c.CheckStatus(ctx, id)
		if errors.Is(err, domainerrors.ErrNoActiveSession) {
			return true, nil
		}
		if s == nil || s.BurnUnconfirmed() {
			return false, err
		}
		return true, nil
	})
}

func (c *Controller) checkpoint(s *entities.TransferSession) {
	if c.repo == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.ctx), 10*time.Second)
	defer cancel()
	if err := c.repo.Save(ctx, s); err != nil {
		c.logger.Error("Failed to checkpoint session", "session_id", s.ID.String(), "phase", s.Phase, "error", err)
	}
}

func (c *Controller) publish(s *entities.TransferSession, fn func(context.Context, *entities.TransferSession) error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.ctx), 5*time.Second)
	defer cancel()
	if err := fn(ctx, s); err != nil {
		c.logger.Warn("Failed to publish transfer event", "session_id", s.ID.String(), "phase", s.Phase, "error", err)
	}
}
