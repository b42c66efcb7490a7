package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rail-service/crosschain_transfer/internal/domain/entities"
	domainerrors "github.com/rail-service/crosschain_transfer/internal/domain/errors"
	"github.com/rail-service/crosschain_transfer/pkg/logger"
)

// TransferHandlers exposes the transfer lifecycle to the UI
type TransferHandlers struct {
	controller TransferController
	logger     *logger.Logger
}

// NewTransferHandlers creates a new TransferHandlers instance
func NewTransferHandlers(controller TransferController, logger *logger.Logger) *TransferHandlers {
	return &TransferHandlers{controller: controller, logger: logger}
}

// ValidateTransfer handles POST /api/v1/transfers/validate.
// Validation problems are part of a 200 response, not an error.
func (h *TransferHandlers) ValidateTransfer(c *gin.Context) {
	var req entities.TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		SendBadRequest(c, ErrCodeInvalidRequest, MsgInvalidRequest)
		return
	}

	SendSuccess(c, h.controller.Validate(c.Request.Context(), req))
}

// InitiateTransfer handles POST /api/v1/transfers.
// The body's amount is whole USDC ("100.5"), never base units, with at most six
// decimal places. The session reports burnedAmount in base units.
func (h *TransferHandlers) InitiateTransfer(c *gin.Context) {
	var req entities.TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		SendBadRequest(c, ErrCodeInvalidRequest, MsgInvalidRequest)
		return
	}

	session, err := h.controller.Initialize(c.Request.Context(), req)
	if err != nil {
		h.logFailure(c, "Transfer initialization failed", session, err)
		sendTransferError(c, session, err)
		return
	}

	requestLogger(c, h.logger).Info("Transfer initialized",
		"session_id", session.ID.String(),
		"from", req.FromNetwork,
		"to", req.ToNetwork,
		"message_hash", session.Result.MessageHash)
	SendCreated(c, entities.NewTransferResponse(session))
}

// ListTransfers handles GET /api/v1/transfers
func (h *TransferHandlers) ListTransfers(c *gin.Context) {
	sessions := h.controller.Sessions()
	out := make([]entities.TransferResponse, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, entities.NewTransferResponse(s))
	}
	SendSuccess(c, gin.H{"transfers": out})
}

// GetTransfer handles GET /api/v1/transfers/:id
func (h *TransferHandlers) GetTransfer(c *gin.Context) {
	id, ok := parseSessionID(c)
	if !ok {
		return
	}

	session, err := h.controller.Session(id)
	if err != nil {
		sendTransferError(c, nil, err)
		return
	}
	SendSuccess(c, entities.NewTransferResponse(session))
}

// CheckStatus handles POST /api/v1/transfers/:id/status
func (h *TransferHandlers) CheckStatus(c *gin.Context) {
	id, ok := parseSessionID(c)
	if !ok {
		return
	}

	session, err := h.controller.CheckStatus(c.Request.Context(), id)
	if err != nil {
		h.logFailure(c, "Attestation check failed", session, err)
		sendTransferError(c, session, err)
		return
	}
	SendSuccess(c, entities.NewTransferResponse(session))
}

// CompleteMint handles POST /api/v1/transfers/:id/mint
func (h *TransferHandlers) CompleteMint(c *gin.Context) {
	id, ok := parseSessionID(c)
	if !ok {
		return
	}

	session, err := h.controller.CompleteMint(c.Request.Context(), id)
	if err != nil {
		h.logFailure(c, "Mint failed", session, err)
		sendTransferError(c, session, err)
		return
	}
	SendSuccess(c, entities.NewTransferResponse(session))
}

// RetryBurn handles POST /api/v1/transfers/:id/burn/retry
func (h *TransferHandlers) RetryBurn(c *gin.Context) {
	id, ok := parseSessionID(c)
	if !ok {
		return
	}

	session, err := h.controller.RetryBurn(c.Request.Context(), id)
	if err != nil {
		h.logFailure(c, "Burn retry failed", session, err)
		sendTransferError(c, session, err)
		return
	}
	SendSuccess(c, entities.NewTransferResponse(session))
}

// ClearTransfer handles DELETE /api/v1/transfers/:id.
// Clearing a session whose burn executed still succeeds but carries a warning.
func (h *TransferHandlers) ClearTransfer(c *gin.Context) {
	id, ok := parseSessionID(c)
	if !ok {
		return
	}

	result, err := h.controller.ClearTransfer(c.Request.Context(), id)
	if err != nil {
		sendTransferError(c, nil, err)
		return
	}
	if result.FundsBurned {
		requestLogger(c, h.logger).Warn("Cleared session with burned funds",
			"session_id", result.SessionID,
			"message_hash", result.MessageHash)
	}
	SendSuccess(c, result)
}

// ResumeTransfer handles POST /api/v1/transfers/resume
func (h *TransferHandlers) ResumeTransfer(c *gin.Context) {
	var req entities.ResumeTransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		NewError(http.StatusBadRequest, ErrCodeInvalidRequest).
			Message(MsgInvalidRequest).
			Detail("error", err.Error()).
			Send(c)
		return
	}

	session, err := h.controller.Resume(c.Request.Context(), req.FromNetwork, req.ToNetwork, req.MessageHash, req.MessageBytes)
	if err != nil {
		sendTransferError(c, session, err)
		return
	}

	requestLogger(c, h.logger).Info("Transfer resumed",
		"session_id", session.ID.String(),
		"message_hash", session.Result.MessageHash)
	SendSuccess(c, entities.NewTransferResponse(session))
}

func (h *TransferHandlers) logFailure(c *gin.Context, msg string, session *entities.TransferSession, err error) {
	fields := []interface{}{"error", err}
	if session != nil {
		fields = append(fields,
			"session_id", session.ID.String(),
			"phase", session.Phase,
			"recovery", session.Recovery())
	}

	l := requestLogger(c, h.logger)
	switch {
	case domainerrors.IsStranded(err):
		l.Error(msg, fields...)
	case domainerrors.IsInvalidInput(err), domainerrors.IsConflict(err):
		l.Debug(msg, fields...)
	default:
		l.Warn(msg, fields...)
	}
}
