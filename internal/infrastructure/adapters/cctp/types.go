package cctp

// AttestationResponse is the body of GET /v1/attestations/{messageHash}
type AttestationResponse struct {
	Attestation string `json:"attestation"`
	Status      string `json:"status"`
}

// Status is the coarse attestation state exposed to callers
type Status string

const (
	StatusPending  Status = "pending"
	StatusAttested Status = "attested"
)

// MessagesResponse is the body of GET /v2/messages/{sourceDomain}
type MessagesResponse struct {
	Messages []CCTPMessage `json:"messages"`
}

// CCTPMessage represents a single CCTP message with attestation
type CCTPMessage struct {
	Attestation string `json:"attestation"`
	Message     string `json:"message"`
	EventNonce  string `json:"eventNonce"`
	Status      string `json:"status"`
}
