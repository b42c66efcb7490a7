package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"

	"github.com/rail-service/crosschain_transfer/internal/infrastructure/adapters/cctp"
	"github.com/rail-service/crosschain_transfer/internal/infrastructure/config"
)

var (
	lookupFrom string
	lookupTx   string
)

var lookupCmd = &cobra.Command{
	Use:   "lookup",
	Short: "Find the CCTP message emitted by a burn transaction",
	Long: `Looks up the messages a burn transaction emitted and prints the message
hash and bytes needed by "transferctl resume".`,
	Example: "  transferctl lookup --from sepolia --tx 0xabc...",
	RunE:    runLookup,
}

var attestationCmd = &cobra.Command{
	Use:   "attestation <message-hash>",
	Short: "Check whether a message hash has been attested",
	Args:  cobra.ExactArgs(1),
	RunE:  runAttestation,
}

func init() {
	lookupCmd.Flags().StringVar(&lookupFrom, "from", "", "source network of the burn")
	lookupCmd.Flags().StringVar(&lookupTx, "tx", "", "burn transaction hash")
	_ = lookupCmd.MarkFlagRequired("from")
	_ = lookupCmd.MarkFlagRequired("tx")
}

// MessageInfo is one burn message with the hash derived from its bytes
type MessageInfo struct {
	MessageHash    string `json:"messageHash"`
	MessageBytes   string `json:"messageBytes"`
	EventNonce     string `json:"eventNonce,omitempty"`
	Status         string `json:"status"`
	HasAttestation bool   `json:"hasAttestation"`
}

func describeMessages(resp *cctp.MessagesResponse) ([]MessageInfo, error) {
	out := make([]MessageInfo, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		raw, err := hexutil.Decode(m.Message)
		if err != nil {
			return nil, fmt.Errorf("message %s: invalid bytes: %w", m.EventNonce, err)
		}
		out = append(out, MessageInfo{
			MessageHash:    crypto.Keccak256Hash(raw).Hex(),
			MessageBytes:   m.Message,
			EventNonce:     m.EventNonce,
			Status:         m.Status,
			HasAttestation: m.Attestation != "" && !strings.EqualFold(m.Attestation, "PENDING"),
		})
	}
	return out, nil
}

func newAttestationClient(c *config.Config) *cctp.Client {
	return cctp.NewClient(cctp.Config{
		BaseURL:     c.Attestation.BaseURL,
		Environment: c.Attestation.Environment,
		Timeout:     time.Duration(c.Attestation.Timeout) * time.Second,
		RateLimit:   c.Attestation.RateLimit,
	}, log.Zap())
}

func runLookup(cmd *cobra.Command, args []string) error {
	from, err := parseNetwork(lookupFrom)
	if err != nil {
		return err
	}
	nc, ok := cfg.Networks.Lookup(string(from))
	if !ok {
		return fmt.Errorf("network %s is not configured", from)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
	defer cancel()

	resp, err := newAttestationClient(cfg).GetMessages(ctx, nc.Domain, lookupTx)
	if err != nil {
		return err
	}
	messages, err := describeMessages(resp)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), messages)
}

func runAttestation(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
	defer cancel()

	status, err := newAttestationClient(cfg).TransferStatus(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", args[0], status)
	return nil
}
