package evm

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// CCTP v1 message layout
const (
	msgSourceDomainOffset = 4
	msgNonceOffset        = 12
	msgHeaderLen          = 116
	// body: version(4) burnToken(32) mintRecipient(32) amount(32) messageSender(32)
	burnAmountOffset = msgHeaderLen + 4 + 32 + 32
)

// MessageNonce returns the source domain and nonce from a message header
func MessageNonce(message []byte) (uint32, uint64, error) {
	if len(message) < msgNonceOffset+8 {
		return 0, 0, fmt.Errorf("message of %d bytes has no nonce", len(message))
	}
	return binary.BigEndian.Uint32(message[msgSourceDomainOffset:]),
		binary.BigEndian.Uint64(message[msgNonceOffset:]),
		nil
}

// NonceKey is the MessageTransmitter usedNonces key, keccak256(sourceDomain ++ nonce)
func NonceKey(sourceDomain uint32, nonce uint64) common.Hash {
	var buf [12]byte
	binary.BigEndian.PutUint32(buf[:4], sourceDomain)
	binary.BigEndian.PutUint64(buf[4:], nonce)
	return crypto.Keccak256Hash(buf[:])
}

// BurnAmount reads the burned amount in base units from a burn message body
func BurnAmount(message []byte) (*big.Int, bool) {
	if len(message) < burnAmountOffset+32 {
		return nil, false
	}
	return new(big.Int).SetBytes(message[burnAmountOffset : burnAmountOffset+32]), true
}
