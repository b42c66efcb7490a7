package evm

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

type EventSig string

func (es EventSig) GetTopic() common.Hash {
	return crypto.Keccak256Hash([]byte(es))
}

const (
	MessageSentSig     EventSig = "MessageSent(bytes)"
	DepositForBurnSig  EventSig = "DepositForBurn(uint64,address,uint256,address,bytes32,uint32,bytes32,bytes32)"
	MessageReceivedSig EventSig = "MessageReceived(address,uint32,uint64,bytes32,bytes)"
)

// ExtractMessageSent finds the MessageSent log emitted by transmitter and
// returns the raw message with its keccak256 hash
func ExtractMessageSent(logs []*types.Log, transmitter common.Address) ([]byte, common.Hash, error) {
	topic := MessageSentSig.GetTopic()
	for _, l := range logs {
		if l == nil || len(l.Topics) == 0 || l.Topics[0] != topic {
			continue
		}
		if l.Address != transmitter {
			continue
		}

		values, err := messageTransmitterABI.Unpack("MessageSent", l.Data)
		if err != nil {
			return nil, common.Hash{}, fmt.Errorf("decode MessageSent: %w", err)
		}
		if len(values) != 1 {
			return nil, common.Hash{}, fmt.Errorf("decode MessageSent: unexpected field count %d", len(values))
		}
		message, ok := values[0].([]byte)
		if !ok || len(message) == 0 {
			return nil, common.Hash{}, fmt.Errorf("decode MessageSent: empty message")
		}
		return message, crypto.Keccak256Hash(message), nil
	}
	return nil, common.Hash{}, fmt.Errorf("no MessageSent event from %s in receipt", transmitter.Hex())
}
