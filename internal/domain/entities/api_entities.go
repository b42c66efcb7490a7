package entities

// ErrorResponse is the body of every non-2xx API response
type ErrorResponse struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// TransferResponse is a session snapshot plus what the caller can do next
type TransferResponse struct {
	*TransferSession
	Recovery RecoveryHint `json:"recovery,omitempty"`
	Stranded bool         `json:"stranded"`
}

// NewTransferResponse wraps a session snapshot for the API
func NewTransferResponse(s *TransferSession) TransferResponse {
	return TransferResponse{
		TransferSession: s,
		Recovery:        s.Recovery(),
		Stranded:        s.IsStranded(),
	}
}

// ResumeTransferRequest reconstructs a session from a known burn message
type ResumeTransferRequest struct {
	FromNetwork  Network `json:"fromNetwork" binding:"required"`
	ToNetwork    Network `json:"toNetwork" binding:"required"`
	MessageHash  string  `json:"messageHash"`
	MessageBytes string  `json:"messageBytes" binding:"required,startswith=0x"`
}

// BalancesResponse lists the last known balance of one address per network
type BalancesResponse struct {
	HolderAddress string                   `json:"holderAddress"`
	Balances      []NetworkBalanceSnapshot `json:"balances"`
}
