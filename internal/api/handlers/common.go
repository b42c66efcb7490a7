package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/rail-service/crosschain_transfer/internal/domain/entities"
	"github.com/rail-service/crosschain_transfer/internal/domain/services/balance"
	"github.com/rail-service/crosschain_transfer/internal/domain/services/transfer"
	"github.com/rail-service/crosschain_transfer/pkg/logger"
)

// TransferController is the part of *transfer.Controller the API drives
type TransferController interface {
	HolderAddress() string
	Validate(ctx context.Context, req entities.TransferRequest) entities.ValidationResult
	Initialize(ctx context.Context, req entities.TransferRequest) (*entities.TransferSession, error)
	RetryBurn(ctx context.Context, id uuid.UUID) (*entities.TransferSession, error)
	CheckStatus(ctx context.Context, id uuid.UUID) (*entities.TransferSession, error)
	CompleteMint(ctx context.Context, id uuid.UUID) (*entities.TransferSession, error)
	Resume(ctx context.Context, from, to entities.Network, messageHash, messageBytes string) (*entities.TransferSession, error)
	ClearTransfer(ctx context.Context, id uuid.UUID) (*transfer.ClearResult, error)
	RefreshBalances(ctx context.Context, address string) []balance.Result
	Balances(address string) []entities.NetworkBalanceSnapshot
	Session(id uuid.UUID) (*entities.TransferSession, error)
	Sessions() []*entities.TransferSession
}

var _ TransferController = (*transfer.Controller)(nil)

// getRequestID extracts request ID from context
func getRequestID(c *gin.Context) string {
	if reqID, exists := c.Get("request_id"); exists {
		if id, ok := reqID.(string); ok {
			return id
		}
	}
	return ""
}

// requestLogger returns the per-request logger set by middleware, or fallback
func requestLogger(c *gin.Context, fallback *logger.Logger) *logger.Logger {
	if v, ok := c.Get("logger"); ok {
		if l, ok := v.(*logger.Logger); ok {
			return l
		}
	}
	return fallback.With("request_id", getRequestID(c))
}

// parseSessionID reads the :id path parameter, responding 400 when malformed
func parseSessionID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		NewError(http.StatusBadRequest, ErrCodeInvalidID).
			Message("Transfer id must be a UUID").
			Detail("id", c.Param("id")).
			Send(c)
		return uuid.Nil, false
	}
	return id, true
}
