package evm

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// USDCDecimals is the token precision on every supported chain
const USDCDecimals = 6

// ToBaseUnits converts a whole-USDC decimal string to 6-decimal base units
func ToBaseUnits(amount string) (*big.Int, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	if !d.IsPositive() {
		return nil, fmt.Errorf("amount must be positive, got %s", amount)
	}
	shifted := d.Shift(USDCDecimals)
	if !shifted.Equal(shifted.Truncate(0)) {
		return nil, fmt.Errorf("amount %s has more than %d decimal places", amount, USDCDecimals)
	}
	return shifted.BigInt(), nil
}

// FromBaseUnits renders base units as a whole-USDC decimal string
func FromBaseUnits(units *big.Int) string {
	if units == nil {
		return "0"
	}
	return decimal.NewFromBigInt(units, -USDCDecimals).String()
}

// AddressToBytes32 left-pads an EVM address into the CCTP mintRecipient format
func AddressToBytes32(addr common.Address) [32]byte {
	var out [32]byte
	copy(out[:], common.LeftPadBytes(addr.Bytes(), 32))
	return out
}
