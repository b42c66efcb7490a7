package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/rail-service/crosschain_transfer/internal/domain/entities"
	domainerrors "github.com/rail-service/crosschain_transfer/internal/domain/errors"
)

// strandedPhases are the phases where the burn executed, or may have executed,
// and the mint has not. A persisted burning session holds an unconfirmed burn.
var strandedPhases = []entities.SessionPhase{
	entities.PhaseBurning,
	entities.PhaseAwaitingAttestation,
	entities.PhaseMinting,
	entities.PhaseMintFailed,
}

type transferSessionRow struct {
	ID                   uuid.UUID      `db:"id"`
	FromNetwork          string         `db:"from_network"`
	ToNetwork            string         `db:"to_network"`
	Amount               string         `db:"amount"`
	Recipient            string         `db:"recipient"`
	Phase                string         `db:"phase"`
	MessageHash          sql.NullString `db:"message_hash"`
	SourceTxHash         sql.NullString `db:"source_tx_hash"`
	DestinationTxHash    sql.NullString `db:"destination_tx_hash"`
	AttestationSignature sql.NullString `db:"attestation_signature"`
	Steps                []byte         `db:"steps"`
	Result               []byte         `db:"result"`
	CreatedAt            time.Time      `db:"created_at"`
	UpdatedAt            time.Time      `db:"updated_at"`
}

func (r transferSessionRow) toEntity() (*entities.TransferSession, error) {
	s := &entities.TransferSession{
		ID: r.ID,
		Params: entities.TransferRequest{
			FromNetwork: entities.Network(r.FromNetwork),
			ToNetwork:   entities.Network(r.ToNetwork),
			Amount:      r.Amount,
			Recipient:   r.Recipient,
		},
		AttestationSignature: r.AttestationSignature.String,
		Phase:                entities.SessionPhase(r.Phase),
		CreatedAt:            r.CreatedAt,
		UpdatedAt:            r.UpdatedAt,
	}
	if err := json.Unmarshal(r.Steps, &s.Steps); err != nil {
		return nil, fmt.Errorf("decode steps of session %s: %w", r.ID, err)
	}
	if err := json.Unmarshal(r.Result, &s.Result); err != nil {
		return nil, fmt.Errorf("decode result of session %s: %w", r.ID, err)
	}
	return s, nil
}

// TransferRepository persists transfer sessions in postgres
type TransferRepository struct {
	db *sqlx.DB
}

func NewTransferRepository(db *sqlx.DB) *TransferRepository {
	return &TransferRepository{db: db}
}

// Save inserts the session or overwrites the stored copy
func (r *TransferRepository) Save(ctx context.Context, s *entities.TransferSession) error {
	steps, err := json.Marshal(s.Steps)
	if err != nil {
		return fmt.Errorf("encode steps: %w", err)
	}
	result, err := json.Marshal(s.Result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}

	query := `
		INSERT INTO transfer_sessions (
			id, from_network, to_network, amount, recipient, phase,
			message_hash, source_tx_hash, destination_tx_hash, attestation_signature,
			steps, result, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE SET
			phase = EXCLUDED.phase,
			message_hash = EXCLUDED.message_hash,
			source_tx_hash = EXCLUDED.source_tx_hash,
			destination_tx_hash = EXCLUDED.destination_tx_hash,
			attestation_signature = EXCLUDED.attestation_signature,
			steps = EXCLUDED.steps,
			result = EXCLUDED.result,
			updated_at = EXCLUDED.updated_at`

	_, err = r.db.ExecContext(ctx, query,
		s.ID, s.Params.FromNetwork, s.Params.ToNetwork, s.Params.Amount, s.Params.Recipient, s.Phase,
		nullString(s.Result.MessageHash), nullString(s.Result.SourceTxHash),
		nullString(s.Result.DestinationTxHash), nullString(s.AttestationSignature),
		steps, result, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save transfer session %s: %w", s.ID, err)
	}
	return nil
}

func (r *TransferRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.TransferSession, error) {
	return r.getOne(ctx, `SELECT * FROM transfer_sessions WHERE id = $1`, id)
}

func (r *TransferRepository) GetByMessageHash(ctx context.Context, messageHash string) (*entities.TransferSession, error) {
	return r.getOne(ctx, `SELECT * FROM transfer_sessions WHERE lower(message_hash) = lower($1)`, messageHash)
}

// ListStranded returns burned-but-not-minted sessions, oldest first
func (r *TransferRepository) ListStranded(ctx context.Context) ([]*entities.TransferSession, error) {
	query, args, err := sqlx.In(`SELECT * FROM transfer_sessions WHERE phase IN (?) ORDER BY created_at ASC`, phaseStrings(strandedPhases))
	if err != nil {
		return nil, err
	}

	var rows []transferSessionRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list stranded sessions: %w", err)
	}

	out := make([]*entities.TransferSession, 0, len(rows))
	for _, row := range rows {
		s, err := row.toEntity()
		if err != nil {
			return nil, err
		}
		if s.IsStranded() {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *TransferRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transfer_sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete transfer session %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domainerrors.NotFoundError("TRANSFER")
	}
	return nil
}

func (r *TransferRepository) getOne(ctx context.Context, query string, arg interface{}) (*entities.TransferSession, error) {
	var row transferSessionRow
	if err := r.db.GetContext(ctx, &row, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domainerrors.NotFoundError("TRANSFER")
		}
		return nil, err
	}
	return row.toEntity()
}

func phaseStrings(phases []entities.SessionPhase) []string {
	out := make([]string, len(phases))
	for i, p := range phases {
		out[i] = string(p)
	}
	return out
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
