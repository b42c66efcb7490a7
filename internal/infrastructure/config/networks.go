package config

// DefaultNetworks returns the CCTP testnet bindings.
// Addresses are the published Circle testnet deployments.
func DefaultNetworks() NetworksConfig {
	return NetworksConfig{
		"sepolia": {
			RPCURL:             "https://ethereum-sepolia-rpc.publicnode.com",
			ChainID:            11155111,
			Domain:             0,
			USDC:               "0x1c7D4B196Cb0C7B01d743Fbc6116a902379C7238",
			TokenMessenger:     "0x9f3B8679c73C2Fef8b59B4f3444d4e156fb70AA5",
			MessageTransmitter: "0x7865fAfC2db2093669d92c0F33AeEF291086BEFD",
			GasLimit:           300000,
			GasPriceMultiplier: 1.2,
			Explorer:           "https://sepolia.etherscan.io",
		},
		"fuji": {
			RPCURL:             "https://api.avax-test.network/ext/bc/C/rpc",
			ChainID:            43113,
			Domain:             1,
			USDC:               "0x5425890298aed601595a70AB815c96711a31Bc65",
			TokenMessenger:     "0xeb08f243E5d3FCFF26A9E38Ae5520A669f08985c",
			MessageTransmitter: "0xa9fB1b3009DCb79E2fe346c16a604B8Fa8aE0a79",
			GasLimit:           300000,
			GasPriceMultiplier: 1.2,
			Explorer:           "https://testnet.snowtrace.io",
		},
		"arbitrumSepolia": {
			RPCURL:             "https://sepolia-rollup.arbitrum.io/rpc",
			ChainID:            421614,
			Domain:             3,
			USDC:               "0x75faf114eafb1BDbe2F0316DF893fd58CE46AA4d",
			TokenMessenger:     "0x9f3B8679c73C2Fef8b59B4f3444d4e156fb70AA5",
			MessageTransmitter: "0xaCF1ceeF35caAc005e15888dDb8A3515C41B4872",
			GasLimit:           1000000,
			GasPriceMultiplier: 1.2,
			Explorer:           "https://sepolia.arbiscan.io",
		},
		"baseSepolia": {
			RPCURL:             "https://sepolia.base.org",
			ChainID:            84532,
			Domain:             6,
			USDC:               "0x036CbD53842c5426634e7929541eC2318f3dCF7e",
			TokenMessenger:     "0x9f3B8679c73C2Fef8b59B4f3444d4e156fb70AA5",
			MessageTransmitter: "0x7865fAfC2db2093669d92c0F33AeEF291086BEFD",
			GasLimit:           300000,
			GasPriceMultiplier: 1.2,
			Explorer:           "https://sepolia.basescan.org",
		},
		"polygonAmoy": {
			RPCURL:             "https://rpc-amoy.polygon.technology",
			ChainID:            80002,
			Domain:             7,
			USDC:               "0x41E94Eb019C0762f9Bfcf9Fb1E58725BfB0e7582",
			TokenMessenger:     "0x9f3B8679c73C2Fef8b59B4f3444d4e156fb70AA5",
			MessageTransmitter: "0x7865fAfC2db2093669d92c0F33AeEF291086BEFD",
			GasLimit:           300000,
			GasPriceMultiplier: 1.3,
			Explorer:           "https://amoy.polygonscan.com",
		},
	}
}
