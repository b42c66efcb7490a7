package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rail-service/crosschain_transfer/internal/domain/entities"
	domainerrors "github.com/rail-service/crosschain_transfer/internal/domain/errors"
)

// Error codes as constants for consistent error responses across handlers
const (
	// Validation errors
	ErrCodeInvalidRequest   = "INVALID_REQUEST"
	ErrCodeValidationError  = "VALIDATION_ERROR"
	ErrCodeInvalidID        = "INVALID_ID"
	ErrCodeInvalidAddress   = "INVALID_ADDRESS"
	ErrCodeInvalidChain     = "INVALID_CHAIN"
	ErrCodeTransferRejected = "TRANSFER_REJECTED"

	// Resource errors
	ErrCodeNotFound = "NOT_FOUND"
	ErrCodeConflict = "CONFLICT"

	// Transfer lifecycle errors
	ErrCodeBurnFailed         = "BURN_FAILED_RETRYABLE"
	ErrCodeMintFailed         = "MINT_FAILED_FUNDS_BURNED"
	ErrCodeAttestationPending = "ATTESTATION_PENDING"
	ErrCodeStepOutOfOrder     = "STEP_OUT_OF_ORDER"
	ErrCodeSignerRequired     = "SIGNER_REQUIRED"
	ErrCodeMessageReceived    = "MESSAGE_ALREADY_RECEIVED"

	// Operation errors
	ErrCodeInternalError      = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
)

// Error messages as constants for consistency
const (
	MsgInvalidRequest     = "Invalid request payload"
	MsgInternalError      = "Internal server error"
	MsgServiceUnavailable = "Service temporarily unavailable"
	MsgSessionNotFound    = "Transfer session not found"
)

// ErrorResponseBuilder provides a fluent interface for building error responses
type ErrorResponseBuilder struct {
	status  int
	code    string
	message string
	details map[string]interface{}
}

// NewError creates a new ErrorResponseBuilder
func NewError(status int, code string) *ErrorResponseBuilder {
	return &ErrorResponseBuilder{
		status: status,
		code:   code,
	}
}

// Message sets the error message
func (e *ErrorResponseBuilder) Message(msg string) *ErrorResponseBuilder {
	e.message = msg
	return e
}

// Detail adds a single detail to the error response
func (e *ErrorResponseBuilder) Detail(key string, value interface{}) *ErrorResponseBuilder {
	if e.details == nil {
		e.details = make(map[string]interface{})
	}
	e.details[key] = value
	return e
}

// Send sends the error response
func (e *ErrorResponseBuilder) Send(c *gin.Context) {
	c.JSON(e.status, entities.ErrorResponse{
		Code:    e.code,
		Message: e.message,
		Details: e.details,
	})
}

// SendBadRequest sends a 400 Bad Request error
func SendBadRequest(c *gin.Context, code, message string) {
	NewError(http.StatusBadRequest, code).Message(message).Send(c)
}

// SendNotFound sends a 404 Not Found error
func SendNotFound(c *gin.Context, message string) {
	NewError(http.StatusNotFound, ErrCodeNotFound).Message(message).Send(c)
}

// SendInternalError sends a 500 Internal Server Error
func SendInternalError(c *gin.Context, message string) {
	NewError(http.StatusInternalServerError, ErrCodeInternalError).Message(message).Send(c)
}

// SendSuccess sends a 200 OK response with data
func SendSuccess(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// SendCreated sends a 201 Created response with data
func SendCreated(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, data)
}

// sendTransferError maps a controller error to a response. session is the
// snapshot the controller returned alongside err and may be nil.
func sendTransferError(c *gin.Context, session *entities.TransferSession, err error) {
	_ = c.Error(err)

	var violations *domainerrors.TransferValidationError
	var stranded *domainerrors.StrandedFundsError

	switch {
	case errors.As(err, &violations):
		NewError(http.StatusBadRequest, ErrCodeValidationError).
			Message("Transfer request is invalid").
			Detail("errors", violations.Violations).
			Send(c)

	case errors.As(err, &stranded):
		b := NewError(http.StatusUnprocessableEntity, ErrCodeMintFailed).
			Message("Funds were burned on the source network but not minted; retry the mint").
			Detail("messageHash", stranded.MessageHash).
			Detail("sourceTxHash", stranded.BurnTxHash).
			Detail("cause", errorCause(stranded.Cause))
		withSession(b, session).Send(c)

	case errors.Is(err, domainerrors.ErrMessageAlreadyReceived):
		b := NewError(http.StatusConflict, ErrCodeMessageReceived).
			Message("The destination already received this message; the minting transaction was not found").
			Detail("cause", err.Error())
		withSession(b, session).Send(c)

	case domainerrors.IsChainWrite(err):
		b := NewError(http.StatusUnprocessableEntity, ErrCodeBurnFailed).
			Message("Burn failed, no funds left the source network").
			Detail("cause", err.Error())
		withSession(b, session).Send(c)

	case errors.Is(err, domainerrors.ErrNoActiveSession), domainerrors.IsNotFound(err):
		SendNotFound(c, MsgSessionNotFound)

	case errors.Is(err, domainerrors.ErrAttestationPending):
		b := NewError(http.StatusConflict, ErrCodeAttestationPending).
			Message("Attestation is not complete yet")
		withSession(b, session).Send(c)

	case errors.Is(err, domainerrors.ErrStepOutOfOrder):
		withSession(NewError(http.StatusConflict, ErrCodeStepOutOfOrder).Message(err.Error()), session).Send(c)

	case domainerrors.IsConflict(err):
		NewError(http.StatusConflict, ErrCodeConflict).Message(err.Error()).Send(c)

	case errors.Is(err, domainerrors.ErrUnsupportedNetwork):
		SendBadRequest(c, ErrCodeInvalidChain, err.Error())

	case domainerrors.IsInvalidInput(err):
		NewError(http.StatusBadRequest, ErrCodeValidationError).
			Message(err.Error()).
			Detail("field", domainerrors.GetErrorDetails(err)["field"]).
			Send(c)

	case errors.Is(err, domainerrors.ErrSignerRequired):
		NewError(http.StatusServiceUnavailable, ErrCodeSignerRequired).
			Message("No signer is configured for chain writes").
			Send(c)

	case errors.Is(err, domainerrors.ErrTransferRejected):
		NewError(http.StatusForbidden, ErrCodeTransferRejected).Message(err.Error()).Send(c)

	case domainerrors.IsServiceUnavailable(err):
		NewError(http.StatusServiceUnavailable, ErrCodeServiceUnavailable).Message(MsgServiceUnavailable).Send(c)

	default:
		SendInternalError(c, MsgInternalError)
	}
}

func withSession(b *ErrorResponseBuilder, session *entities.TransferSession) *ErrorResponseBuilder {
	if session == nil {
		return b
	}
	return b.Detail("sessionId", session.ID.String()).
		Detail("phase", session.Phase).
		Detail("recovery", session.Recovery())
}

func errorCause(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
