package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/rail-service/crosschain_transfer/internal/domain/entities"
	"github.com/rail-service/crosschain_transfer/internal/infrastructure/config"
)

// Event types, also the subject suffixes
const (
	EventCompleted  = "completed"
	EventBurnFailed = "burn_failed"
	EventMintFailed = "mint_failed"
)

const defaultSubjectPrefix = "transfer"

// TransferEvent is the payload published for every lifecycle outcome
type TransferEvent struct {
	Type              string                `json:"type"`
	SessionID         string                `json:"sessionId"`
	FromNetwork       entities.Network      `json:"fromNetwork"`
	ToNetwork         entities.Network      `json:"toNetwork"`
	Amount            string                `json:"amount"`
	Recipient         string                `json:"recipient"`
	Phase             entities.SessionPhase `json:"phase"`
	Recovery          entities.RecoveryHint `json:"recovery,omitempty"`
	MessageHash       string                `json:"messageHash,omitempty"`
	SourceTxHash      string                `json:"sourceTxHash,omitempty"`
	DestinationTxHash string                `json:"destinationTxHash,omitempty"`
	BurnedAmount      string                `json:"burnedAmount,omitempty"`
	Error             string                `json:"error,omitempty"`
	OccurredAt        time.Time             `json:"occurredAt"`
}

func newTransferEvent(eventType string, s *entities.TransferSession) TransferEvent {
	return TransferEvent{
		Type:              eventType,
		SessionID:         s.ID.String(),
		FromNetwork:       s.Params.FromNetwork,
		ToNetwork:         s.Params.ToNetwork,
		Amount:            s.Params.Amount,
		Recipient:         s.Params.Recipient,
		Phase:             s.Phase,
		Recovery:          s.Recovery(),
		MessageHash:       s.Result.MessageHash,
		SourceTxHash:      s.Result.SourceTxHash,
		DestinationTxHash: s.Result.DestinationTxHash,
		BurnedAmount:      s.Result.BurnedAmount,
		Error:             s.Result.Error,
		OccurredAt:        time.Now().UTC(),
	}
}

// Conn is the part of *nats.Conn the publisher uses
type Conn interface {
	Publish(subject string, data []byte) error
}

// NATSPublisher publishes transfer lifecycle events to <prefix>.<type>
type NATSPublisher struct {
	conn   Conn
	prefix string
	logger *zap.Logger
}

func NewNATSPublisher(conn Conn, prefix string, logger *zap.Logger) *NATSPublisher {
	if prefix == "" {
		prefix = defaultSubjectPrefix
	}
	return &NATSPublisher{conn: conn, prefix: prefix, logger: logger}
}

// Connect dials NATS with reconnects enabled
func Connect(cfg config.NATSConfig, logger *zap.Logger) (*nats.Conn, error) {
	conn, err := nats.Connect(cfg.URL,
		nats.Name("crosschain-transfer"),
		nats.Timeout(10*time.Second),
		nats.ReconnectWait(5*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return conn, nil
}

func (p *NATSPublisher) PublishCompleted(ctx context.Context, s *entities.TransferSession) error {
	return p.publish(ctx, EventCompleted, s)
}

func (p *NATSPublisher) PublishBurnFailed(ctx context.Context, s *entities.TransferSession) error {
	return p.publish(ctx, EventBurnFailed, s)
}

func (p *NATSPublisher) PublishMintFailed(ctx context.Context, s *entities.TransferSession) error {
	return p.publish(ctx, EventMintFailed, s)
}

// Subject returns the subject an event type is published on
func (p *NATSPublisher) Subject(eventType string) string {
	return p.prefix + "." + eventType
}

func (p *NATSPublisher) publish(ctx context.Context, eventType string, s *entities.TransferSession) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(newTransferEvent(eventType, s))
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", eventType, err)
	}

	subject := p.Subject(eventType)
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}

	p.logger.Debug("Published transfer event",
		zap.String("subject", subject),
		zap.String("session_id", s.ID.String()))
	return nil
}
