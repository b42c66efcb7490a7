package cctp

const (
	// API Hosts
	IrisMainnetURL = "https://iris-api.circle.com"
	IrisSandboxURL = "https://iris-api-sandbox.circle.com"

	// Testnet domain IDs
	DomainEthereumSepolia uint32 = 0
	DomainAvalancheFuji   uint32 = 1
	DomainArbitrumSepolia uint32 = 3
	DomainBaseSepolia     uint32 = 6
	DomainPolygonAmoy     uint32 = 7

	// Rate limiting
	MaxRequestsPerSecond = 35

	// Attestation statuses reported by Iris
	AttestationStatusPendingConfirmations = "pending_confirmations"
	AttestationStatusComplete             = "complete"
)

// DomainNames maps domain IDs to human-readable names
var DomainNames = map[uint32]string{
	DomainEthereumSepolia: "Ethereum Sepolia",
	DomainAvalancheFuji:   "Avalanche Fuji",
	DomainArbitrumSepolia: "Arbitrum Sepolia",
	DomainBaseSepolia:     "Base Sepolia",
	DomainPolygonAmoy:     "Polygon Amoy",
}
