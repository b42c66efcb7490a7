package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rail-service/crosschain_transfer/internal/domain/entities"
	"github.com/rail-service/crosschain_transfer/internal/infrastructure/config"
	"github.com/rail-service/crosschain_transfer/pkg/logger"
)

var (
	logLevel string
	timeout  time.Duration

	cfg *config.Config
	log *logger.Logger
)

var rootCmd = &cobra.Command{
	Use:   "transferctl",
	Short: "Operator tool for CCTP transfers",
	Long: `transferctl inspects and recovers cross-chain USDC transfers.

It reads the same configuration as the server (configs/config.yaml and
environment) and talks to the attestation service, the chains and the
session store directly.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load()
		if err != nil {
			return err
		}
		cfg = loaded
		log = logger.New(logLevel, "development")
		return nil
	},
}

// Execute runs the root command and exits non-zero on failure
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Minute, "give up after this long")

	rootCmd.AddCommand(lookupCmd)
	rootCmd.AddCommand(attestationCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(strandedCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(mintCmd)
}

// parseNetwork accepts a network id in any case
func parseNetwork(raw string) (entities.Network, error) {
	for _, n := range entities.SupportedNetworks {
		if strings.EqualFold(string(n), raw) {
			return n, nil
		}
	}
	names := make([]string, len(entities.SupportedNetworks))
	for i, n := range entities.SupportedNetworks {
		names[i] = string(n)
	}
	return "", fmt.Errorf("unknown network %q, expected one of %s", raw, strings.Join(names, ", "))
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
