package transfer

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rail-service/crosschain_transfer/internal/domain/entities"
)

const usdcDecimals = 6

// Thresholds bound the amounts that pass with a warning
type Thresholds struct {
	MinAmount decimal.Decimal
	MaxAmount decimal.Decimal
}

// DefaultThresholds warns below 1 USDC and above 10000 USDC
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinAmount: decimal.NewFromInt(1),
		MaxAmount: decimal.NewFromInt(10000),
	}
}

// Validator runs the pre-flight checks on a transfer request.
// It never writes to a chain.
type Validator struct {
	adapters   map[entities.Network]NetworkAdapter
	thresholds Thresholds
	validate   *validator.Validate
	logger     *zap.Logger
}

func NewValidator(adapters map[entities.Network]NetworkAdapter, thresholds Thresholds, logger *zap.Logger) *Validator {
	return &Validator{
		adapters:   adapters,
		thresholds: thresholds,
		validate:   validator.New(),
		logger:     logger,
	}
}

// Validate accumulates every violation instead of stopping at the first.
// A failed balance query is downgraded to a warning.
func (v *Validator) Validate(ctx context.Context, req entities.TransferRequest, holderAddress string) entities.ValidationResult {
	result := entities.ValidationResult{Errors: []string{}, Warnings: []string{}}

	fromOK := v.supported(req.FromNetwork)
	if !fromOK {
		result.Errors = append(result.Errors, fmt.Sprintf("unsupported source network: %q", req.FromNetwork))
	}
	toOK := v.supported(req.ToNetwork)
	if !toOK {
		result.Errors = append(result.Errors, fmt.Sprintf("unsupported destination network: %q", req.ToNetwork))
	}

	if req.FromNetwork == req.ToNetwork {
		result.Errors = append(result.Errors, "source and destination must be different networks")
	}

	amount, amountOK := v.checkAmount(req.Amount, &result)

	if toOK {
		if err := v.checkRecipient(req.ToNetwork, req.Recipient); err != nil {
			result.Errors = append(result.Errors, err.Error())
		}
	}

	if fromOK && amountOK && holderAddress != "" {
		v.checkBalance(ctx, req.FromNetwork, holderAddress, amount, &result)
	}

	result.IsValid = len(result.Errors) == 0
	return result
}

func (v *Validator) supported(n entities.Network) bool {
	if !n.IsSupported() {
		return false
	}
	_, ok := v.adapters[n]
	return ok
}

func (v *Validator) checkAmount(raw string, result *entities.ValidationResult) (decimal.Decimal, bool) {
	amount, err := decimal.NewFromString(raw)
	if err != nil || !amount.IsPositive() {
		result.Errors = append(result.Errors, fmt.Sprintf("amount must be a positive decimal, got %q", raw))
		return decimal.Zero, false
	}
	if shifted := amount.Shift(usdcDecimals); !shifted.Equal(shifted.Truncate(0)) {
		result.Errors = append(result.Errors, fmt.Sprintf("amount %s has more than %d decimal places", raw, usdcDecimals))
		return decimal.Zero, false
	}

	if amount.LessThan(v.thresholds.MinAmount) {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("amount below %s USDC: network fees may be a large share of the transfer", v.thresholds.MinAmount))
	}
	if amount.GreaterThan(v.thresholds.MaxAmount) {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("amount above %s USDC: the transfer may take longer to process", v.thresholds.MaxAmount))
	}
	return amount, true
}

func (v *Validator) checkRecipient(to entities.Network, recipient string) error {
	switch entities.AddressFormatFor(to) {
	case entities.AddressFormatEVM:
		if err := v.validate.Var(recipient, "required,eth_addr"); err != nil {
			return fmt.Errorf("recipient %q is not a valid address on %s", recipient, to)
		}
	}
	return nil
}

func (v *Validator) checkBalance(ctx context.Context, from entities.Network, holder string, amount decimal.Decimal, result *entities.ValidationResult) {
	raw, err := v.adapters[from].GetBalance(ctx, holder)
	if err != nil {
		v.logger.Warn("Balance check skipped",
			zap.String("network", string(from)),
			zap.String("holder", holder),
			zap.Error(err))
		result.Warnings = append(result.Warnings, fmt.Sprintf("could not verify balance on %s", from))
		return
	}

	balance, err := decimal.NewFromString(raw)
	if err != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("could not verify balance on %s", from))
		return
	}

	if balance.LessThan(amount) {
		result.Errors = append(result.Errors,
			fmt.Sprintf("insufficient balance on %s: have %s USDC, need %s USDC", from, balance, amount))
	}
}
