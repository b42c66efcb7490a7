package evm

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/rail-service/crosschain_transfer/internal/domain/entities"
	domainerrors "github.com/rail-service/crosschain_transfer/internal/domain/errors"
)

const (
	// receivedLookbackBlocks bounds the MessageReceived search on the destination
	receivedLookbackBlocks = 50000
	logQueryWindow         = 2000
)

// BurnReceipt resolves a burn submitted earlier. Without a receipt yet it
// returns ErrBurnUnconfirmed; a mined burn returns the same artifacts
// InitiateBurn does.
func (a *Adapter) BurnReceipt(ctx context.Context, txHash string) (*entities.BurnResult, error) {
	if len(common.FromHex(txHash)) != common.HashLength {
		return nil, fmt.Errorf("invalid burn tx hash %q", txHash)
	}
	result := &entities.BurnResult{SourceTxHash: txHash}

	receipt, err := a.client.TransactionReceipt(ctx, common.HexToHash(txHash))
	if errors.Is(err, ethereum.NotFound) {
		return result, fmt.Errorf("%w: %s", domainerrors.ErrBurnUnconfirmed, txHash)
	}
	if err != nil {
		cwe := domainerrors.NewChainWriteError(string(a.network), opBurn, fmt.Errorf("read receipt: %w", err))
		cwe.TxHash = txHash
		return result, cwe
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, domainerrors.NewRevertError(string(a.network), opBurn, txHash)
	}
	if receipt.TxHash == (common.Hash{}) {
		receipt.TxHash = common.HexToHash(txHash)
	}
	return a.burnArtifacts(receipt, result)
}

// LookupMint reports the transaction that received messageBytes on this
// network, or an empty hash when the message has not been received.
// priorTxHash is a mint submitted earlier whose outcome is unknown.
func (a *Adapter) LookupMint(ctx context.Context, messageBytes, priorTxHash string) (string, error) {
	message, err := hexutil.Decode(messageBytes)
	if err != nil {
		return "", fmt.Errorf("invalid message bytes: %w", err)
	}
	sourceDomain, nonce, err := MessageNonce(message)
	if err != nil {
		return "", err
	}

	if priorTxHash != "" {
		prior := common.HexToHash(priorTxHash)
		receipt, err := a.client.TransactionReceipt(ctx, prior)
		switch {
		case err == nil && receipt.Status == types.ReceiptStatusSuccessful:
			a.logger.Info("Earlier mint confirmed", zap.String("tx_hash", prior.Hex()))
			return prior.Hex(), nil
		case err != nil && !errors.Is(err, ethereum.NotFound):
			return "", fmt.Errorf("read mint receipt %s: %w", prior.Hex(), err)
		}
	}

	used, err := a.nonceUsed(ctx, sourceDomain, nonce)
	if err != nil {
		return "", err
	}
	if !used {
		return "", nil
	}
	return a.findMessageReceived(ctx, sourceDomain, nonce)
}

func (a *Adapter) nonceUsed(ctx context.Context, sourceDomain uint32, nonce uint64) (bool, error) {
	data, err := messageTransmitterABI.Pack("usedNonces", NonceKey(sourceDomain, nonce))
	if err != nil {
		return false, fmt.Errorf("pack usedNonces: %w", err)
	}
	out, err := a.client.CallContract(ctx, ethereum.CallMsg{To: &a.messageTransmitter, Data: data}, nil)
	if err != nil {
		return false, fmt.Errorf("usedNonces on %s: %w", a.network, err)
	}
	values, err := messageTransmitterABI.Unpack("usedNonces", out)
	if err != nil || len(values) != 1 {
		return false, fmt.Errorf("unpack usedNonces: %v", err)
	}
	v, ok := values[0].(*big.Int)
	if !ok {
		return false, fmt.Errorf("unpack usedNonces: unexpected type %T", values[0])
	}
	return v.Sign() != 0, nil
}

// findMessageReceived walks back from the head in windows until it finds the
// MessageReceived event for the nonce or runs out of lookback
func (a *Adapter) findMessageReceived(ctx context.Context, sourceDomain uint32, nonce uint64) (string, error) {
	head, err := a.client.BlockNumber(ctx)
	if err != nil {
		return "", fmt.Errorf("block number on %s: %w", a.network, err)
	}
	var floor uint64
	if head > receivedLookbackBlocks {
		floor = head - receivedLookbackBlocks
	}

	nonceTopic := common.BigToHash(new(big.Int).SetUint64(nonce))
	for to := head; ; {
		from := floor
		if to-floor >= logQueryWindow {
			from = to - logQueryWindow + 1
		}

		logs, err := a.client.FilterLogs(ctx, ethereum.FilterQuery{
			FromBlock: new(big.Int).SetUint64(from),
			ToBlock:   new(big.Int).SetUint64(to),
			Addresses: []common.Address{a.messageTransmitter},
			Topics:    [][]common.Hash{{MessageReceivedSig.GetTopic()}, nil, {nonceTopic}},
		})
		if err != nil {
			return "", fmt.Errorf("filter MessageReceived on %s: %w", a.network, err)
		}
		for _, l := range logs {
			values, err := messageTransmitterABI.Unpack("MessageReceived", l.Data)
			if err != nil || len(values) == 0 {
				continue
			}
			if domain, ok := values[0].(uint32); ok && domain == sourceDomain {
				a.logger.Info("Message already received",
					zap.Uint32("source_domain", sourceDomain),
					zap.Uint64("nonce", nonce),
					zap.String("tx_hash", l.TxHash.Hex()))
				return l.TxHash.Hex(), nil
			}
		}

		if from == floor {
			break
		}
		to = from - 1
	}

	return "", fmt.Errorf("%w: nonce %d from domain %d, no MessageReceived on %s in the last %d blocks",
		domainerrors.ErrMessageAlreadyReceived, nonce, sourceDomain, a.network, receivedLookbackBlocks)
}
