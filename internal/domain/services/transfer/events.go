package transfer

import (
	"context"

	"github.com/rail-service/crosschain_transfer/internal/domain/entities"
)

// NopEventPublisher discards lifecycle events
type NopEventPublisher struct{}

func (NopEventPublisher) PublishCompleted(context.Context, *entities.TransferSession) error  { return nil }
func (NopEventPublisher) PublishBurnFailed(context.Context, *entities.TransferSession) error { return nil }
func (NopEventPublisher) PublishMintFailed(context.Context, *entities.TransferSession) error { return nil }
