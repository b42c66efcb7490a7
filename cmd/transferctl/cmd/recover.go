package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/rail-service/crosschain_transfer/internal/domain/entities"
	domainerrors "github.com/rail-service/crosschain_transfer/internal/domain/errors"
	"github.com/rail-service/crosschain_transfer/internal/infrastructure/di"
	"github.com/rail-service/crosschain_transfer/pkg/logger"
)

var resumeFlags struct {
	from         string
	to           string
	messageHash  string
	messageBytes string
	tx           string
	noMint       bool
}

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Finish a transfer from its burn message",
	Long: `Rebuilds a session for a burn that already happened, waits for the
attestation and submits the mint on the destination network.

Pass either --message-bytes or --tx; with --tx the message is looked up from
the attestation service.`,
	Example: `  transferctl resume --from sepolia --to fuji --tx 0xabc...
  transferctl resume --from sepolia --to fuji --message-bytes 0x0000...`,
	RunE: runResume,
}

var mintCmd = &cobra.Command{
	Use:   "mint <session-id>",
	Short: "Retry the mint of a stored stranded session",
	Args:  cobra.ExactArgs(1),
	RunE:  runMint,
}

func init() {
	f := resumeCmd.Flags()
	f.StringVar(&resumeFlags.from, "from", "", "source network of the burn")
	f.StringVar(&resumeFlags.to, "to", "", "destination network")
	f.StringVar(&resumeFlags.messageHash, "message-hash", "", "expected message hash (checked against the bytes)")
	f.StringVar(&resumeFlags.messageBytes, "message-bytes", "", "0x-prefixed message bytes from the MessageSent event")
	f.StringVar(&resumeFlags.tx, "tx", "", "burn transaction hash, used to look up the message")
	f.BoolVar(&resumeFlags.noMint, "no-mint", false, "stop once the attestation is available")
	_ = resumeCmd.MarkFlagRequired("from")
	_ = resumeCmd.MarkFlagRequired("to")
	resumeCmd.MarkFlagsOneRequired("message-bytes", "tx")
}

// sessionDriver is the part of the controller the recovery commands drive
type sessionDriver interface {
	CheckStatus(ctx context.Context, id uuid.UUID) (*entities.TransferSession, error)
	CompleteMint(ctx context.Context, id uuid.UUID) (*entities.TransferSession, error)
}

// newOperatorContainer builds a container that never mints or sweeps on its
// own, so the command is the only caller of CompleteMint.
func newOperatorContainer(ctx context.Context) (*di.Container, error) {
	opCfg := *cfg
	opCfg.Transfer.AutoMint = false
	opCfg.Transfer.PublishEvents = false
	opCfg.Recovery.Enabled = false
	return di.NewContainer(ctx, &opCfg, log)
}

func runResume(cmd *cobra.Command, args []string) error {
	from, err := parseNetwork(resumeFlags.from)
	if err != nil {
		return err
	}
	to, err := parseNetwork(resumeFlags.to)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	messageBytes := resumeFlags.messageBytes
	if messageBytes == "" {
		if messageBytes, err = lookupMessageBytes(ctx, from, resumeFlags.tx); err != nil {
			return err
		}
	}

	container, err := newOperatorContainer(ctx)
	if err != nil {
		return err
	}
	defer container.Close()

	session, err := container.Controller.Resume(ctx, from, to, resumeFlags.messageHash, messageBytes)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "session %s tracking %s\n", session.ID, session.Result.MessageHash)

	final, err := driveToMint(ctx, container.Controller, session.ID, cfg.Transfer.PollIntervalDuration(), !resumeFlags.noMint, out, log)
	if final != nil {
		if perr := printJSON(out, entities.NewTransferResponse(final)); perr != nil {
			return perr
		}
	}
	return err
}

func runMint(cmd *cobra.Command, args []string) error {
	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid session id: %w", err)
	}
	if !cfg.Database.Enabled() {
		return fmt.Errorf("database.url (or DATABASE_URL) is required to load stored sessions; use resume instead")
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	container, err := newOperatorContainer(ctx)
	if err != nil {
		return err
	}
	defer container.Close()

	if _, err := container.Controller.Restore(ctx); err != nil {
		return err
	}
	if _, err := container.Controller.Session(id); err != nil {
		return fmt.Errorf("session %s is not stranded or does not exist: %w", id, err)
	}

	out := cmd.OutOrStdout()
	final, err := driveToMint(ctx, container.Controller, id, cfg.Transfer.PollIntervalDuration(), true, out, log)
	if final != nil {
		if perr := printJSON(out, entities.NewTransferResponse(final)); perr != nil {
			return perr
		}
	}
	return err
}

func lookupMessageBytes(ctx context.Context, from entities.Network, tx string) (string, error) {
	nc, ok := cfg.Networks.Lookup(string(from))
	if !ok {
		return "", fmt.Errorf("network %s is not configured", from)
	}
	resp, err := newAttestationClient(cfg).GetMessages(ctx, nc.Domain, tx)
	if err != nil {
		return "", err
	}
	if len(resp.Messages) > 1 {
		return "", fmt.Errorf("transaction %s emitted %d messages, pass --message-bytes", tx, len(resp.Messages))
	}
	return resp.Messages[0].Message, nil
}

// driveToMint checks the attestation every interval until it is available,
// then submits the mint when mint is set. Failed checks are retried until ctx
// expires; a failed mint is returned with the session snapshot.
func driveToMint(ctx context.Context, d sessionDriver, id uuid.UUID, interval time.Duration, mint bool, out io.Writer, log *logger.Logger) (*entities.TransferSession, error) {
	if interval <= 0 {
		interval = 20 * time.Second
	}

	var last *entities.TransferSession
	for {
		s, err := d.CheckStatus(ctx, id)
		if s != nil {
			last = s
		}
		switch {
		case err != nil:
			log.Warn("Attestation check failed", "session_id", id.String(), "error", err)
		case s.AttestationSignature != "":
			fmt.Fprintln(out, "attestation available")
			if !mint {
				return s, nil
			}
			return mintOnce(ctx, d, id, s, out)
		default:
			fmt.Fprintf(out, "attestation pending, next check in %s\n", interval)
		}

		select {
		case <-ctx.Done():
			return last, fmt.Errorf("gave up waiting for attestation: %w", ctx.Err())
		case <-time.After(interval):
		}
	}
}

func mintOnce(ctx context.Context, d sessionDriver, id uuid.UUID, current *entities.TransferSession, out io.Writer) (*entities.TransferSession, error) {
	if current.Phase == entities.PhaseCompleted {
		fmt.Fprintln(out, "already minted")
		return current, nil
	}
	fmt.Fprintf(out, "minting on %s\n", current.Params.ToNetwork)

	s, err := d.CompleteMint(ctx, id)
	if err != nil {
		if domainerrors.IsStranded(err) {
			fmt.Fprintln(out, "mint failed; funds stay burned and the mint can be retried with the same session")
		}
		if s == nil {
			s = current
		}
		return s, err
	}
	fmt.Fprintf(out, "minted in %s\n", s.Result.DestinationTxHash)
	return s, nil
}
