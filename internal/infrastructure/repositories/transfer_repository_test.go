package repositories

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rail-service/crosschain_transfer/internal/domain/entities"
	domainerrors "github.com/rail-service/crosschain_transfer/internal/domain/errors"
	"github.com/rail-service/crosschain_transfer/internal/domain/services/transfer"
	"github.com/rail-service/crosschain_transfer/internal/infrastructure/config"
	"github.com/rail-service/crosschain_transfer/internal/infrastructure/database"
)

var (
	_ transfer.SessionRepository = (*TransferRepository)(nil)
	_ transfer.SessionRepository = (*MemoryTransferRepository)(nil)
)

func sessionAt(t *testing.T, phase entities.SessionPhase, created time.Time) *entities.TransferSession {
	t.Helper()
	steps := entities.NewTransferSteps(entities.NetworkSepolia, entities.NetworkFuji)
	advance := func(id entities.StepID, status entities.StepStatus) {
		var err error
		steps, err = entities.AdvanceStep(steps, id, status, "")
		require.NoError(t, err)
	}

	advance(entities.StepApprove, entities.StepStatusProcessing)
	advance(entities.StepApprove, entities.StepStatusCompleted)
	advance(entities.StepBurn, entities.StepStatusProcessing)

	id := uuid.New()
	result := entities.TransferResult{Status: entities.ResultStatusPending}
	switch phase {
	case entities.PhaseBurnFailed:
		advance(entities.StepBurn, entities.StepStatusFailed)
		result.Status = entities.ResultStatusFailed
	case entities.PhaseBurning:
		result.SourceTxHash = "0xpending"
		result.UnconfirmedBurnTx = "0xpending"
		result.BurnedAmount = "5000000"
	case entities.PhaseAwaitingAttestation, entities.PhaseMintFailed, entities.PhaseCompleted:
		advance(entities.StepBurn, entities.StepStatusCompleted)
		advance(entities.StepAttestation, entities.StepStatusProcessing)
		result.MessageHash = "0x" + id.String()
		result.MessageBytes = "0x0102"
		result.SourceTxHash = "0xburn"
		result.BurnedAmount = "5000000"
	}
	if phase == entities.PhaseMintFailed || phase == entities.PhaseCompleted {
		advance(entities.StepAttestation, entities.StepStatusCompleted)
		advance(entities.StepMint, entities.StepStatusProcessing)
	}
	switch phase {
	case entities.PhaseMintFailed:
		advance(entities.StepMint, entities.StepStatusFailed)
	case entities.PhaseCompleted:
		advance(entities.StepMint, entities.StepStatusCompleted)
		result.Status = entities.ResultStatusCompleted
		result.DestinationTxHash = "0xmint"
	}

	return &entities.TransferSession{
		ID: id,
		Params: entities.TransferRequest{
			FromNetwork: entities.NetworkSepolia,
			ToNetwork:   entities.NetworkFuji,
			Amount:      "5",
			Recipient:   "0x71C7656EC7ab88b098defB751B7401B5f6d8976F",
		},
		Steps:     steps,
		Result:    result,
		Phase:     entities.PhaseFromSteps(steps),
		CreatedAt: created.UTC().Truncate(time.Microsecond),
		UpdatedAt: created.UTC().Truncate(time.Microsecond),
	}
}

func runRepositorySuite(t *testing.T, repo transfer.SessionRepository) {
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	burnFailed := sessionAt(t, entities.PhaseBurnFailed, base)
	awaiting := sessionAt(t, entities.PhaseAwaitingAttestation, base.Add(time.Minute))
	mintFailed := sessionAt(t, entities.PhaseMintFailed, base.Add(2*time.Minute))
	completed := sessionAt(t, entities.PhaseCompleted, base.Add(3*time.Minute))
	unconfirmed := sessionAt(t, entities.PhaseBurning, base.Add(4*time.Minute))

	for _, s := range []*entities.TransferSession{burnFailed, awaiting, mintFailed, completed, unconfirmed} {
		require.NoError(t, repo.Save(ctx, s))
	}
	t.Cleanup(func() {
		for _, s := range []*entities.TransferSession{burnFailed, awaiting, mintFailed, completed, unconfirmed} {
			_ = repo.Delete(context.Background(), s.ID)
		}
	})

	t.Run("get by id", func(t *testing.T) {
		got, err := repo.GetByID(ctx, mintFailed.ID)
		require.NoError(t, err)
		assert.Equal(t, mintFailed.Steps, got.Steps)
		assert.Equal(t, mintFailed.Result, got.Result)
		assert.Equal(t, mintFailed.Params, got.Params)
		assert.Equal(t, entities.PhaseMintFailed, got.Phase)
	})

	t.Run("get by message hash", func(t *testing.T) {
		got, err := repo.GetByMessageHash(ctx, awaiting.Result.MessageHash)
		require.NoError(t, err)
		assert.Equal(t, awaiting.ID, got.ID)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := repo.GetByID(ctx, uuid.New())
		assert.True(t, domainerrors.IsNotFound(err))
		_, err = repo.GetByMessageHash(ctx, "0xmissing")
		assert.True(t, domainerrors.IsNotFound(err))
	})

	t.Run("save overwrites", func(t *testing.T) {
		updated := awaiting.Clone()
		updated.AttestationSignature = "0xsig"
		updated.UpdatedAt = updated.UpdatedAt.Add(time.Second)
		require.NoError(t, repo.Save(ctx, updated))

		got, err := repo.GetByID(ctx, awaiting.ID)
		require.NoError(t, err)
		assert.Equal(t, "0xsig", got.AttestationSignature)
	})

	t.Run("list stranded", func(t *testing.T) {
		stranded, err := repo.ListStranded(ctx)
		require.NoError(t, err)

		var ids []uuid.UUID
		for _, s := range stranded {
			switch s.ID {
			case awaiting.ID, mintFailed.ID, burnFailed.ID, completed.ID, unconfirmed.ID:
				ids = append(ids, s.ID)
			}
		}
		assert.Equal(t, []uuid.UUID{awaiting.ID, mintFailed.ID, unconfirmed.ID}, ids)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, repo.Delete(ctx, completed.ID))
		_, err := repo.GetByID(ctx, completed.ID)
		assert.True(t, domainerrors.IsNotFound(err))
		assert.True(t, domainerrors.IsNotFound(repo.Delete(ctx, completed.ID)))
	})
}

func TestMemoryTransferRepository(t *testing.T) {
	runRepositorySuite(t, NewMemoryTransferRepository())
}

func TestTransferRepository_Postgres(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL required for postgres repository tests")
	}

	db, err := database.NewConnection(config.DatabaseConfig{URL: url})
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, database.RunMigrations(db, "../../../migrations"))

	runRepositorySuite(t, NewTransferRepository(db))
}
