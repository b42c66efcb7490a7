package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/rail-service/crosschain_transfer/internal/domain/entities"
	"github.com/rail-service/crosschain_transfer/pkg/logger"
)

// BalanceHandlers serves per-network USDC balances
type BalanceHandlers struct {
	controller TransferController
	validator  *validator.Validate
	logger     *logger.Logger
}

// NewBalanceHandlers creates a new BalanceHandlers instance
func NewBalanceHandlers(controller TransferController, logger *logger.Logger) *BalanceHandlers {
	return &BalanceHandlers{
		controller: controller,
		validator:  validator.New(),
		logger:     logger,
	}
}

// GetBalances handles GET /api/v1/balances and GET /api/v1/balances/:address.
// It returns last known snapshots and never queries a network.
func (h *BalanceHandlers) GetBalances(c *gin.Context) {
	address, ok := h.address(c)
	if !ok {
		return
	}

	SendSuccess(c, entities.BalancesResponse{
		HolderAddress: address,
		Balances:      h.controller.Balances(address),
	})
}

// RefreshBalances handles POST /api/v1/balances/refresh and POST /api/v1/balances/:address/refresh.
// Networks that fail keep their previous snapshot, flagged stale.
func (h *BalanceHandlers) RefreshBalances(c *gin.Context) {
	address, ok := h.address(c)
	if !ok {
		return
	}

	results := h.controller.RefreshBalances(c.Request.Context(), address)
	snapshots := make([]entities.NetworkBalanceSnapshot, 0, len(results))
	failed := 0
	for _, r := range results {
		snapshots = append(snapshots, r.Snapshot)
		if r.Err != nil {
			failed++
		}
	}
	if failed > 0 {
		requestLogger(c, h.logger).Warn("Balance refresh incomplete",
			"address", address,
			"failed_networks", failed)
	}

	SendSuccess(c, entities.BalancesResponse{
		HolderAddress: address,
		Balances:      snapshots,
	})
}

// address resolves the :address param, defaulting to the signer's address
func (h *BalanceHandlers) address(c *gin.Context) (string, bool) {
	address := c.Param("address")
	if address == "" {
		address = h.controller.HolderAddress()
		if address == "" {
			NewError(http.StatusBadRequest, ErrCodeInvalidAddress).
				Message("No signer is bound; pass an address").
				Send(c)
			return "", false
		}
		return address, true
	}

	if err := h.validator.Var(address, "required,eth_addr"); err != nil {
		NewError(http.StatusBadRequest, ErrCodeInvalidAddress).
			Message("Address must be a 0x-prefixed 20-byte hex address").
			Detail("address", address).
			Send(c)
		return "", false
	}
	return address, true
}
