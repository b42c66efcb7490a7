package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeNetworkDefaults_FillsMissingNetworks(t *testing.T) {
	merged := mergeNetworkDefaults(nil)

	require.Len(t, merged, 5)
	assert.Equal(t, uint32(1), merged["fuji"].Domain)
	assert.Equal(t, uint32(6), merged["baseSepolia"].Domain)
	assert.Equal(t, int64(11155111), merged["sepolia"].ChainID)
}

func TestMergeNetworkDefaults_KeepsOverrides(t *testing.T) {
	// viper lowercases nested keys
	merged := mergeNetworkDefaults(NetworksConfig{
		"arbitrumsepolia": {RPCURL: "http://localhost:8545", GasLimit: 42},
	})

	arb := merged["arbitrumSepolia"]
	assert.Equal(t, "http://localhost:8545", arb.RPCURL)
	assert.Equal(t, uint64(42), arb.GasLimit)
	assert.Equal(t, uint32(3), arb.Domain)
	assert.NotEmpty(t, arb.MessageTransmitter)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Attestation: AttestationConfig{Environment: "sandbox"},
			Networks:    DefaultNetworks(),
			Transfer:    TransferConfig{PollInterval: 20, BalanceDelayMs: 200},
			Recovery:    RecoveryConfig{Enabled: true, Schedule: "@every 5m", MaxAttempts: 3},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{
			name:    "unknown attestation environment",
			mutate:  func(c *Config) { c.Attestation.Environment = "staging" },
			wantErr: "attestation environment",
		},
		{
			name:   "custom base url skips environment check",
			mutate: func(c *Config) { c.Attestation.Environment = "local"; c.Attestation.BaseURL = "http://iris" },
		},
		{
			name:    "zero poll interval",
			mutate:  func(c *Config) { c.Transfer.PollInterval = 0 },
			wantErr: "poll interval",
		},
		{
			name: "missing rpc url",
			mutate: func(c *Config) {
				nc := c.Networks["fuji"]
				nc.RPCURL = ""
				c.Networks["fuji"] = nc
			},
			wantErr: "network fuji: rpc_url",
		},
		{
			name:    "recovery without schedule",
			mutate:  func(c *Config) { c.Recovery.Schedule = "" },
			wantErr: "recovery schedule",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := validate(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestTransferConfigDurations(t *testing.T) {
	tc := TransferConfig{PollInterval: 20, BalanceDelayMs: 250, ReceiptTimeout: 90}

	assert.Equal(t, "20s", tc.PollIntervalDuration().String())
	assert.Equal(t, "250ms", tc.BalanceDelay().String())
	assert.Equal(t, "1m30s", tc.ReceiptTimeoutDuration().String())
}

func TestNetworksConfig_Lookup(t *testing.T) {
	networks := mergeNetworkDefaults(nil)

	nc, ok := networks.Lookup("ARBITRUMSEPOLIA")
	require.True(t, ok)
	assert.Equal(t, uint32(3), nc.Domain)

	_, ok = networks.Lookup("mainnet")
	assert.False(t, ok)
}
