package repositories

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/rail-service/crosschain_transfer/internal/domain/entities"
	domainerrors "github.com/rail-service/crosschain_transfer/internal/domain/errors"
)

// MemoryTransferRepository keeps sessions in process memory.
// Used when no database is configured and by the operator CLI.
type MemoryTransferRepository struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*entities.TransferSession
}

func NewMemoryTransferRepository() *MemoryTransferRepository {
	return &MemoryTransferRepository{sessions: make(map[uuid.UUID]*entities.TransferSession)}
}

func (r *MemoryTransferRepository) Save(_ context.Context, s *entities.TransferSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = s.Clone()
	return nil
}

func (r *MemoryTransferRepository) GetByID(_ context.Context, id uuid.UUID) (*entities.TransferSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, domainerrors.NotFoundError("TRANSFER")
	}
	return s.Clone(), nil
}

func (r *MemoryTransferRepository) GetByMessageHash(_ context.Context, messageHash string) (*entities.TransferSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.sessions {
		if s.Result.MessageHash != "" && strings.EqualFold(s.Result.MessageHash, messageHash) {
			return s.Clone(), nil
		}
	}
	return nil, domainerrors.NotFoundError("TRANSFER")
}

func (r *MemoryTransferRepository) ListStranded(_ context.Context) ([]*entities.TransferSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*entities.TransferSession
	for _, s := range r.sessions {
		if s.IsStranded() {
			out = append(out, s.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryTransferRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return domainerrors.NotFoundError("TRANSFER")
	}
	delete(r.sessions, id)
	return nil
}
