package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rail-service/crosschain_transfer/internal/domain/entities"
	"github.com/rail-service/crosschain_transfer/internal/domain/services/balance"
)

func TestGetBalances(t *testing.T) {
	t.Run("defaults to the signer", func(t *testing.T) {
		ctrl := &MockController{}
		ctrl.On("HolderAddress").Return(recipient)
		ctrl.On("Balances", recipient).Return([]entities.NetworkBalanceSnapshot{
			{Network: entities.NetworkSepolia, HolderAddress: recipient, Balance: "12.5"},
		})

		w := doJSON(t, newTestRouter(ctrl), http.MethodGet, "/api/v1/balances", nil)

		require.Equal(t, http.StatusOK, w.Code)
		var got entities.BalancesResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Equal(t, recipient, got.HolderAddress)
		require.Len(t, got.Balances, 1)
		assert.Equal(t, "12.5", got.Balances[0].Balance)
	})

	t.Run("no signer and no address", func(t *testing.T) {
		ctrl := &MockController{}
		ctrl.On("HolderAddress").Return("")

		w := doJSON(t, newTestRouter(ctrl), http.MethodGet, "/api/v1/balances", nil)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, ErrCodeInvalidAddress, decodeError(t, w).Code)
	})

	t.Run("invalid address", func(t *testing.T) {
		ctrl := &MockController{}

		w := doJSON(t, newTestRouter(ctrl), http.MethodGet, "/api/v1/balances/0x1234", nil)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		ctrl.AssertNotCalled(t, "Balances", mock.Anything)
	})
}

func TestRefreshBalances_ReportsStaleNetworks(t *testing.T) {
	ctrl := &MockController{}
	now := time.Now().UTC()
	ctrl.On("RefreshBalances", mock.Anything, recipient).Return([]balance.Result{
		{
			Network:  entities.NetworkSepolia,
			Snapshot: entities.NetworkBalanceSnapshot{Network: entities.NetworkSepolia, Balance: "5", FetchedAt: now},
		},
		{
			Network: entities.NetworkFuji,
			Snapshot: entities.NetworkBalanceSnapshot{
				Network: entities.NetworkFuji,
				Balance: "7",
				Stale:   true,
				Error:   "rpc timeout",
			},
			Err: errors.New("rpc timeout"),
		},
	})

	w := doJSON(t, newTestRouter(ctrl), http.MethodPost, "/api/v1/balances/"+recipient+"/refresh", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var got entities.BalancesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Len(t, got.Balances, 2)
	assert.False(t, got.Balances[0].Stale)
	assert.True(t, got.Balances[1].Stale)
	assert.Equal(t, "7", got.Balances[1].Balance)
}
