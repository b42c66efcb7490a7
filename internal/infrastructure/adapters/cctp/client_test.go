package cctp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	domainerrors "github.com/rail-service/crosschain_transfer/internal/domain/errors"
)

const testHash = "0x5f2a6e2d6f0c8b4f0e0b5f1a9b3c2d1e0f9a8b7c6d5e4f3a2b1c0d9e8f7a6b5c"

func TestNewClient(t *testing.T) {
	logger := zap.NewNop()

	t.Run("defaults to sandbox URL", func(t *testing.T) {
		client := NewClient(Config{Environment: "sandbox"}, logger)
		assert.Equal(t, IrisSandboxURL, client.config.BaseURL)
	})

	t.Run("uses production URL", func(t *testing.T) {
		client := NewClient(Config{Environment: "production"}, logger)
		assert.Equal(t, IrisMainnetURL, client.config.BaseURL)
	})

	t.Run("respects custom base URL", func(t *testing.T) {
		client := NewClient(Config{BaseURL: "https://custom.api/"}, logger)
		assert.Equal(t, "https://custom.api", client.config.BaseURL)
	})
}

func TestFetchAttestation(t *testing.T) {
	logger := zap.NewNop()

	t.Run("returns signature when complete", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/attestations/"+testHash, r.URL.Path)
			json.NewEncoder(w).Encode(AttestationResponse{
				Attestation: "0xdeadbeef",
				Status:      AttestationStatusComplete,
			})
		}))
		defer server.Close()

		client := NewClient(Config{BaseURL: server.URL}, logger)
		sig, pending, err := client.FetchAttestation(context.Background(), testHash)

		require.NoError(t, err)
		assert.False(t, pending)
		assert.Equal(t, "0xdeadbeef", sig)
	})

	t.Run("pending confirmations is pending", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(AttestationResponse{
				Attestation: "PENDING",
				Status:      AttestationStatusPendingConfirmations,
			})
		}))
		defer server.Close()

		client := NewClient(Config{BaseURL: server.URL}, logger)
		sig, pending, err := client.FetchAttestation(context.Background(), testHash)

		require.NoError(t, err)
		assert.True(t, pending)
		assert.Empty(t, sig)
	})

	t.Run("404 is pending", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":"Message hash not found"}`))
		}))
		defer server.Close()

		client := NewClient(Config{BaseURL: server.URL}, logger)
		_, pending, err := client.FetchAttestation(context.Background(), testHash)

		require.NoError(t, err)
		assert.True(t, pending)
	})

	t.Run("server error is surfaced without retry", func(t *testing.T) {
		var calls int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		client := NewClient(Config{BaseURL: server.URL}, logger)
		_, pending, err := client.FetchAttestation(context.Background(), testHash)

		require.Error(t, err)
		assert.False(t, pending)
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

		var apiErr *ErrorResponse
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
	})

	t.Run("empty hash rejected", func(t *testing.T) {
		client := NewClient(Config{BaseURL: "http://unused"}, logger)
		_, _, err := client.FetchAttestation(context.Background(), "")
		assert.Error(t, err)
	})
}

func TestTransferStatus(t *testing.T) {
	logger := zap.NewNop()
	var complete atomic.Bool

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !complete.Load() {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(AttestationResponse{Attestation: "0x01", Status: AttestationStatusComplete})
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL}, logger)

	status, err := client.TransferStatus(context.Background(), testHash)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, status)

	complete.Store(true)
	status, err = client.TransferStatus(context.Background(), testHash)
	require.NoError(t, err)
	assert.Equal(t, StatusAttested, status)
}

func TestNotFoundDoesNotTripBreaker(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, RateLimit: 1000}, zap.NewNop())
	for i := 0; i < 10; i++ {
		_, pending, err := client.FetchAttestation(context.Background(), testHash)
		require.NoError(t, err)
		assert.True(t, pending)
	}
	assert.Equal(t, "closed", client.circuitBreaker.State().String())
}

func TestOpenBreakerIsServiceUnavailable(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, RateLimit: 1000}, zap.NewNop())
	for i := 0; i < 6; i++ {
		_, _, err := client.FetchAttestation(context.Background(), testHash)
		require.Error(t, err)
	}

	_, _, err := client.FetchAttestation(context.Background(), testHash)
	require.Error(t, err)
	assert.True(t, domainerrors.IsServiceUnavailable(err))
	assert.True(t, domainerrors.ShouldRetry(err))
	assert.Equal(t, int32(6), atomic.LoadInt32(&calls))
}

func TestGetMessages(t *testing.T) {
	logger := zap.NewNop()

	t.Run("returns messages for a burn tx", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v2/messages/0", r.URL.Path)
			assert.Equal(t, "0xabc123", r.URL.Query().Get("transactionHash"))
			json.NewEncoder(w).Encode(MessagesResponse{
				Messages: []CCTPMessage{{Message: "0x0000", Attestation: "PENDING", Status: "pending_confirmations"}},
			})
		}))
		defer server.Close()

		client := NewClient(Config{BaseURL: server.URL}, logger)
		resp, err := client.GetMessages(context.Background(), DomainEthereumSepolia, "0xabc123")

		require.NoError(t, err)
		require.Len(t, resp.Messages, 1)
		assert.Equal(t, "0x0000", resp.Messages[0].Message)
	})

	t.Run("returns error when no messages", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(MessagesResponse{Messages: []CCTPMessage{}})
		}))
		defer server.Close()

		client := NewClient(Config{BaseURL: server.URL}, logger)
		_, err := client.GetMessages(context.Background(), DomainAvalancheFuji, "0xabc123")

		assert.ErrorIs(t, err, ErrNoMessages)
	})
}

func TestDomainConstants(t *testing.T) {
	assert.Equal(t, uint32(0), DomainEthereumSepolia)
	assert.Equal(t, uint32(1), DomainAvalancheFuji)
	assert.Equal(t, uint32(3), DomainArbitrumSepolia)
	assert.Equal(t, uint32(6), DomainBaseSepolia)
	assert.Equal(t, uint32(7), DomainPolygonAmoy)

	assert.Equal(t, "Avalanche Fuji", DomainNames[DomainAvalancheFuji])
}
