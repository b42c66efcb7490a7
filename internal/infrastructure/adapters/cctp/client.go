package cctp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	domainerrors "github.com/rail-service/crosschain_transfer/internal/domain/errors"
)

const defaultTimeout = 30 * time.Second

// Config represents CCTP client configuration
type Config struct {
	BaseURL     string
	Environment string // "sandbox" or "production"
	Timeout     time.Duration
	RateLimit   int
}

// Client is a stateless read-through facade over the Iris API.
// Failures are returned to the caller; polling cadence belongs to the poller.
type Client struct {
	config         Config
	httpClient     *http.Client
	circuitBreaker *gobreaker.CircuitBreaker
	rateLimiter    *rate.Limiter
	logger         *zap.Logger
}

// NewClient creates a new CCTP Iris API client
func NewClient(config Config, logger *zap.Logger) *Client {
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}
	if config.RateLimit <= 0 {
		config.RateLimit = MaxRequestsPerSecond
	}
	if config.BaseURL == "" {
		if config.Environment == "production" || config.Environment == "mainnet" {
			config.BaseURL = IrisMainnetURL
		} else {
			config.BaseURL = IrisSandboxURL
		}
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	cbSettings := gobreaker.Settings{
		Name:        "CCTPAPI",
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		// a 404 for an unindexed hash is a normal answer, not an outage
		IsSuccessful: func(err error) bool {
			return err == nil || isClientError(err)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Info("CCTP circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}

	return &Client{
		config:         config,
		httpClient:     &http.Client{Timeout: config.Timeout},
		circuitBreaker: gobreaker.NewCircuitBreaker(cbSettings),
		rateLimiter:    rate.NewLimiter(rate.Limit(config.RateLimit), 1),
		logger:         logger,
	}
}

// FetchAttestation fetches the attestation for a message hash.
// A 404 or a pending_confirmations status is reported as pending with no error.
func (c *Client) FetchAttestation(ctx context.Context, messageHash string) (string, bool, error) {
	if messageHash == "" {
		return "", false, fmt.Errorf("message hash is required")
	}

	endpoint := fmt.Sprintf("/v1/attestations/%s", messageHash)
	var resp AttestationResponse
	if err := c.doRequest(ctx, endpoint, &resp); err != nil {
		var apiErr *ErrorResponse
		if errors.As(err, &apiErr) && apiErr.IsNotFound() {
			c.logger.Debug("attestation not indexed yet", zap.String("message_hash", messageHash))
			return "", true, nil
		}
		return "", false, fmt.Errorf("fetch attestation failed: %w", err)
	}

	if resp.Status != AttestationStatusComplete || resp.Attestation == "" || strings.EqualFold(resp.Attestation, "PENDING") {
		c.logger.Debug("attestation pending",
			zap.String("message_hash", messageHash),
			zap.String("status", resp.Status))
		return "", true, nil
	}

	return resp.Attestation, false, nil
}

// TransferStatus reports whether a message hash has been attested
func (c *Client) TransferStatus(ctx context.Context, messageHash string) (Status, error) {
	_, pending, err := c.FetchAttestation(ctx, messageHash)
	if err != nil {
		return "", err
	}
	if pending {
		return StatusPending, nil
	}
	return StatusAttested, nil
}

// GetMessages looks up the CCTP messages emitted by a burn transaction
func (c *Client) GetMessages(ctx context.Context, sourceDomain uint32, txHash string) (*MessagesResponse, error) {
	endpoint := fmt.Sprintf("/v2/messages/%d?transactionHash=%s", sourceDomain, txHash)
	var resp MessagesResponse
	if err := c.doRequest(ctx, endpoint, &resp); err != nil {
		var apiErr *ErrorResponse
		if errors.As(err, &apiErr) && apiErr.IsNotFound() {
			return nil, ErrNoMessages
		}
		return nil, fmt.Errorf("get messages failed: %w", err)
	}
	if len(resp.Messages) == 0 {
		return nil, ErrNoMessages
	}
	return &resp, nil
}

func (c *Client) doRequest(ctx context.Context, endpoint string, response interface{}) error {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	_, err := c.circuitBreaker.Execute(func() (interface{}, error) {
		return nil, c.doRequestInternal(ctx, endpoint, response)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return domainerrors.ServiceUnavailableError("attestation", err)
	}
	return err
}

func (c *Client) doRequestInternal(ctx context.Context, endpoint string, response interface{}) error {
	fullURL := c.config.BaseURL + endpoint

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode >= 400 {
		errResp := &ErrorResponse{StatusCode: resp.StatusCode}
		if json.Unmarshal(body, errResp) != nil || (errResp.Message == "" && errResp.ErrorText == "") {
			errResp.Message = strings.TrimSpace(string(body))
		}
		return errResp
	}

	if response != nil && len(body) > 0 {
		if err := json.Unmarshal(body, response); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}
