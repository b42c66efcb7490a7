package evm

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const erc20ABIJSON = `[
	{"constant":true,"inputs":[{"name":"account","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"type":"function","stateMutability":"view"},
	{"constant":true,"inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"name":"allowance","outputs":[{"name":"","type":"uint256"}],"type":"function","stateMutability":"view"},
	{"constant":false,"inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"name":"approve","outputs":[{"name":"","type":"bool"}],"type":"function","stateMutability":"nonpayable"}
]`

const tokenMessengerABIJSON = `[
	{"inputs":[{"name":"amount","type":"uint256"},{"name":"destinationDomain","type":"uint32"},{"name":"mintRecipient","type":"bytes32"},{"name":"burnToken","type":"address"}],"name":"depositForBurn","outputs":[{"name":"_nonce","type":"uint64"}],"type":"function","stateMutability":"nonpayable"}
]`

const messageTransmitterABIJSON = `[
	{"inputs":[{"name":"message","type":"bytes"},{"name":"attestation","type":"bytes"}],"name":"receiveMessage","outputs":[{"name":"success","type":"bool"}],"type":"function","stateMutability":"nonpayable"},
	{"inputs":[{"name":"","type":"bytes32"}],"name":"usedNonces","outputs":[{"name":"","type":"uint256"}],"type":"function","stateMutability":"view"},
	{"anonymous":false,"inputs":[{"indexed":false,"name":"message","type":"bytes"}],"name":"MessageSent","type":"event"},
	{"anonymous":false,"inputs":[{"indexed":true,"name":"caller","type":"address"},{"indexed":false,"name":"sourceDomain","type":"uint32"},{"indexed":true,"name":"nonce","type":"uint64"},{"indexed":false,"name":"sender","type":"bytes32"},{"indexed":false,"name":"messageBody","type":"bytes"}],"name":"MessageReceived","type":"event"}
]`

var (
	erc20ABI              = mustParseABI(erc20ABIJSON)
	tokenMessengerABI     = mustParseABI(tokenMessengerABIJSON)
	messageTransmitterABI = mustParseABI(messageTransmitterABIJSON)
)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return parsed
}
