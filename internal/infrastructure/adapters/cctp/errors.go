package cctp

import (
	"errors"
	"fmt"
)

// ErrorResponse represents a CCTP API error response
type ErrorResponse struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	// Iris v1 reports failures as {"error": "..."}
	ErrorText string `json:"error"`
}

func (e *ErrorResponse) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.ErrorText
	}
	return fmt.Sprintf("CCTP API error [%d]: %s (code: %s)", e.StatusCode, msg, e.Code)
}

func (e *ErrorResponse) IsNotFound() bool {
	return e.StatusCode == 404
}

func (e *ErrorResponse) IsRateLimited() bool {
	return e.StatusCode == 429
}

// isClientError reports 4xx responses, which say nothing about upstream health
func isClientError(err error) bool {
	var apiErr *ErrorResponse
	return errors.As(err, &apiErr) && apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 && !apiErr.IsRateLimited()
}

// ErrNoMessages indicates no messages found for the transaction
var ErrNoMessages = errors.New("no messages found for transaction")
