package cmd

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/rail-service/crosschain_transfer/internal/domain/entities"
	"github.com/rail-service/crosschain_transfer/internal/domain/services/transfer"
	"github.com/rail-service/crosschain_transfer/internal/infrastructure/database"
	"github.com/rail-service/crosschain_transfer/internal/infrastructure/repositories"
)

var statusCmd = &cobra.Command{
	Use:   "status <session-id>",
	Short: "Print a stored transfer session",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

var strandedCmd = &cobra.Command{
	Use:   "stranded",
	Short: "List sessions whose burn completed without a completed mint",
	RunE:  runStranded,
}

// openRepository connects to the durable session store. The in-memory store
// is useless across processes, so both commands require a database.
func openRepository() (transfer.SessionRepository, func(), error) {
	if !cfg.Database.Enabled() {
		return nil, nil, fmt.Errorf("database.url (or DATABASE_URL) is required to read stored sessions")
	}
	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	return repositories.NewTransferRepository(db), func() { db.Close() }, nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid session id: %w", err)
	}

	repo, closeRepo, err := openRepository()
	if err != nil {
		return err
	}
	defer closeRepo()

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	session, err := repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), entities.NewTransferResponse(session))
}

func runStranded(cmd *cobra.Command, args []string) error {
	repo, closeRepo, err := openRepository()
	if err != nil {
		return err
	}
	defer closeRepo()

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	sessions, err := repo.ListStranded(ctx)
	if err != nil {
		return err
	}
	writeStranded(cmd.OutOrStdout(), sessions)
	return nil
}

func writeStranded(w io.Writer, sessions []*entities.TransferSession) {
	if len(sessions) == 0 {
		fmt.Fprintln(w, "no stranded sessions")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SESSION\tROUTE\tPHASE\tRECOVERY\tMESSAGE HASH\tAGE")
	for _, s := range sessions {
		fmt.Fprintf(tw, "%s\t%s -> %s\t%s\t%s\t%s\t%s\n",
			s.ID,
			s.Params.FromNetwork, s.Params.ToNetwork,
			s.Phase,
			s.Recovery(),
			s.Result.MessageHash,
			time.Since(s.CreatedAt).Round(time.Minute),
		)
	}
	tw.Flush()
}
