package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rail-service/crosschain_transfer/internal/domain/entities"
	"github.com/rail-service/crosschain_transfer/internal/domain/services/transfer"
)

var _ transfer.EventPublisher = (*NATSPublisher)(nil)

type published struct {
	subject string
	data    []byte
}

type recordingConn struct {
	msgs []published
	err  error
}

func (c *recordingConn) Publish(subject string, data []byte) error {
	if c.err != nil {
		return c.err
	}
	c.msgs = append(c.msgs, published{subject, data})
	return nil
}

func testSession() *entities.TransferSession {
	return &entities.TransferSession{
		ID: uuid.New(),
		Params: entities.TransferRequest{
			FromNetwork: entities.NetworkSepolia,
			ToNetwork:   entities.NetworkBaseSepolia,
			Amount:      "25",
			Recipient:   "0x71C7656EC7ab88b098defB751B7401B5f6d8976F",
		},
		Steps: entities.NewTransferSteps(entities.NetworkSepolia, entities.NetworkBaseSepolia),
		Result: entities.TransferResult{
			MessageHash:       "0xhash",
			DestinationTxHash: "0xmint",
			Status:            entities.ResultStatusCompleted,
		},
		Phase: entities.PhaseCompleted,
	}
}

func TestNATSPublisher_Subjects(t *testing.T) {
	conn := &recordingConn{}
	p := NewNATSPublisher(conn, "", zap.NewNop())
	ctx := context.Background()
	s := testSession()

	require.NoError(t, p.PublishCompleted(ctx, s))
	require.NoError(t, p.PublishBurnFailed(ctx, s))
	require.NoError(t, p.PublishMintFailed(ctx, s))

	require.Len(t, conn.msgs, 3)
	assert.Equal(t, "transfer.completed", conn.msgs[0].subject)
	assert.Equal(t, "transfer.burn_failed", conn.msgs[1].subject)
	assert.Equal(t, "transfer.mint_failed", conn.msgs[2].subject)

	var evt TransferEvent
	require.NoError(t, json.Unmarshal(conn.msgs[0].data, &evt))
	assert.Equal(t, EventCompleted, evt.Type)
	assert.Equal(t, s.ID.String(), evt.SessionID)
	assert.Equal(t, "0xmint", evt.DestinationTxHash)
	assert.Equal(t, entities.NetworkBaseSepolia, evt.ToNetwork)
}

func TestNATSPublisher_CustomPrefixAndErrors(t *testing.T) {
	conn := &recordingConn{err: errors.New("nats: connection closed")}
	p := NewNATSPublisher(conn, "staging.transfer", zap.NewNop())

	assert.Equal(t, "staging.transfer.mint_failed", p.Subject(EventMintFailed))
	assert.Error(t, p.PublishMintFailed(context.Background(), testSession()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	conn.err = nil
	assert.ErrorIs(t, p.PublishCompleted(ctx, testSession()), context.Canceled)
	assert.Empty(t, conn.msgs)
}
