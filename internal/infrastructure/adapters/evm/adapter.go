package evm

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/rail-service/crosschain_transfer/internal/domain/entities"
	domainerrors "github.com/rail-service/crosschain_transfer/internal/domain/errors"
	"github.com/rail-service/crosschain_transfer/internal/infrastructure/config"
	"github.com/rail-service/crosschain_transfer/pkg/metrics"
)

const (
	defaultReceiptTimeout = 3 * time.Minute
	defaultGasLimit       = 300000
	fallbackGasPrice      = 5000000000 // 5 gwei

	opApprove = "approve"
	opBurn    = "burn"
	opMint    = "mint"
)

// ChainClient is the subset of ethclient.Client the adapter uses
type ChainClient interface {
	ChainID(ctx context.Context) (*big.Int, error)
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
	BlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
}

// Config binds an adapter to one network
type Config struct {
	Network        entities.Network
	Chain          config.NetworkConfig
	ReceiptTimeout time.Duration
}

// Adapter exposes USDC balance, CCTP burn and CCTP mint for one EVM chain.
// Everything except the bound signer is fixed at construction.
type Adapter struct {
	network            entities.Network
	chain              config.NetworkConfig
	chainID            *big.Int
	usdc               common.Address
	tokenMessenger     common.Address
	messageTransmitter common.Address
	receiptTimeout     time.Duration

	client ChainClient
	logger *zap.Logger

	mu     sync.RWMutex
	signer Signer
}

// NewAdapter creates an adapter over an existing client
func NewAdapter(cfg Config, client ChainClient, logger *zap.Logger) *Adapter {
	if cfg.ReceiptTimeout == 0 {
		cfg.ReceiptTimeout = defaultReceiptTimeout
	}
	if cfg.Chain.GasLimit == 0 {
		cfg.Chain.GasLimit = defaultGasLimit
	}
	return &Adapter{
		network:            cfg.Network,
		chain:              cfg.Chain,
		chainID:            big.NewInt(cfg.Chain.ChainID),
		usdc:               common.HexToAddress(cfg.Chain.USDC),
		tokenMessenger:     common.HexToAddress(cfg.Chain.TokenMessenger),
		messageTransmitter: common.HexToAddress(cfg.Chain.MessageTransmitter),
		receiptTimeout:     cfg.ReceiptTimeout,
		client:             client,
		logger:             logger.With(zap.String("network", string(cfg.Network))),
	}
}

// Dial connects to the network RPC and checks the reported chain id
func Dial(ctx context.Context, cfg Config, logger *zap.Logger) (*Adapter, *ethclient.Client, error) {
	client, err := ethclient.DialContext(ctx, cfg.Chain.RPCURL)
	if err != nil {
		return nil, nil, fmt.Errorf("dial %s rpc: %w", cfg.Network, err)
	}

	adapter := NewAdapter(cfg, client, logger)
	chainID, err := client.ChainID(ctx)
	if err != nil {
		// reads may still work later; writes will fail loudly
		adapter.logger.Warn("Failed to query chain id", zap.Error(err))
	} else if chainID.Cmp(adapter.chainID) != 0 {
		client.Close()
		return nil, nil, fmt.Errorf("network %s: rpc reports chain id %s, configured %s", cfg.Network, chainID, adapter.chainID)
	}

	return adapter, client, nil
}

func (a *Adapter) Network() entities.Network { return a.network }

// Domain is the CCTP domain of this network
func (a *Adapter) Domain() uint32 { return a.chain.Domain }

// Connect binds the signer used by InitiateBurn. Rebinding the same signer is a no-op.
func (a *Adapter) Connect(signer Signer) error {
	if signer == nil {
		return domainerrors.ErrSignerRequired
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.signer != nil && a.signer.Address() == signer.Address() {
		return nil
	}
	a.signer = signer
	a.logger.Info("Signer connected", zap.String("address", signer.Address().Hex()))
	return nil
}

func (a *Adapter) boundSigner() Signer {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.signer
}

// GetBalance returns the USDC balance of address as a whole-USDC decimal string
func (a *Adapter) GetBalance(ctx context.Context, address string) (string, error) {
	if !common.IsHexAddress(address) {
		return "", fmt.Errorf("invalid address %q", address)
	}
	balance, err := a.callUint256(ctx, "balanceOf", common.HexToAddress(address))
	if err != nil {
		return "", fmt.Errorf("balanceOf on %s: %w", a.network, err)
	}
	return FromBaseUnits(balance), nil
}

// InitiateBurn approves the token messenger when the allowance is short,
// submits depositForBurn and extracts the MessageSent artifacts. A burn that
// was sent but whose receipt did not arrive in time returns the partial
// result with ErrBurnUnconfirmed; BurnReceipt resolves it later.
func (a *Adapter) InitiateBurn(ctx context.Context, req entities.BurnRequest) (*entities.BurnResult, error) {
	signer := a.boundSigner()
	if signer == nil {
		return nil, domainerrors.NewChainWriteError(string(a.network), opBurn, domainerrors.ErrSignerRequired)
	}
	if !common.IsHexAddress(req.Recipient) {
		return nil, domainerrors.NewChainWriteError(string(a.network), opBurn, fmt.Errorf("invalid recipient %q", req.Recipient))
	}

	amount, err := ToBaseUnits(req.Amount)
	if err != nil {
		return nil, domainerrors.NewChainWriteError(string(a.network), opBurn, err)
	}

	result := &entities.BurnResult{BurnedAmount: amount.String()}

	approveHash, err := a.ensureAllowance(ctx, signer, amount)
	if err != nil {
		return nil, err
	}
	result.ApproveTxHash = approveHash

	data, err := tokenMessengerABI.Pack("depositForBurn",
		amount,
		req.DestinationDomain,
		AddressToBytes32(common.HexToAddress(req.Recipient)),
		a.usdc,
	)
	if err != nil {
		return nil, domainerrors.NewChainWriteError(string(a.network), opBurn, fmt.Errorf("pack depositForBurn: %w", err))
	}

	receipt, err := a.sendAndWait(ctx, signer, a.tokenMessenger, data, opBurn)
	if err != nil {
		var cwe *domainerrors.ChainWriteError
		if errors.As(err, &cwe) && cwe.TxHash != "" && !cwe.Reverted {
			result.SourceTxHash = cwe.TxHash
			a.logger.Warn("Burn submitted but receipt not seen",
				zap.String("tx_hash", cwe.TxHash),
				zap.Error(err))
			return result, fmt.Errorf("%w: %w", domainerrors.ErrBurnUnconfirmed, err)
		}
		return nil, err
	}

	return a.burnArtifacts(receipt, result)
}

// burnArtifacts reads the MessageSent event from a successful burn receipt.
// The burn is mined either way, so the partial result comes back with
// ErrBurnArtifactsMissing when the event cannot be read.
func (a *Adapter) burnArtifacts(receipt *types.Receipt, result *entities.BurnResult) (*entities.BurnResult, error) {
	result.SourceTxHash = receipt.TxHash.Hex()

	message, hash, err := ExtractMessageSent(receipt.Logs, a.messageTransmitter)
	if err != nil {
		a.logger.Error("Burn mined but message extraction failed",
			zap.String("tx_hash", result.SourceTxHash),
			zap.Error(err))
		return result, fmt.Errorf("%w: %v", domainerrors.ErrBurnArtifactsMissing, err)
	}
	result.MessageBytes = hexutil.Encode(message)
	result.MessageHash = hash.Hex()
	if result.BurnedAmount == "" {
		if amount, ok := BurnAmount(message); ok {
			result.BurnedAmount = amount.String()
		}
	}

	a.logger.Info("Burn confirmed",
		zap.String("tx_hash", result.SourceTxHash),
		zap.String("message_hash", result.MessageHash),
		zap.String("amount", result.BurnedAmount))

	return result, nil
}

// CompleteMint submits receiveMessage on this network's MessageTransmitter.
// A nil signer falls back to the bound one.
func (a *Adapter) CompleteMint(ctx context.Context, messageBytes, attestation string, signer Signer) (string, error) {
	if signer == nil {
		signer = a.boundSigner()
	}
	if signer == nil {
		return "", domainerrors.NewChainWriteError(string(a.network), opMint, domainerrors.ErrSignerRequired)
	}

	message, err := hexutil.Decode(messageBytes)
	if err != nil || len(message) == 0 {
		return "", domainerrors.NewChainWriteError(string(a.network), opMint, fmt.Errorf("invalid message bytes: %v", err))
	}
	sig, err := hexutil.Decode(attestation)
	if err != nil || len(sig) == 0 {
		return "", domainerrors.NewChainWriteError(string(a.network), opMint, fmt.Errorf("invalid attestation: %v", err))
	}

	data, err := messageTransmitterABI.Pack("receiveMessage", message, sig)
	if err != nil {
		return "", domainerrors.NewChainWriteError(string(a.network), opMint, fmt.Errorf("pack receiveMessage: %w", err))
	}

	receipt, err := a.sendAndWait(ctx, signer, a.messageTransmitter, data, opMint)
	if err != nil {
		return "", err
	}

	a.logger.Info("Mint confirmed", zap.String("tx_hash", receipt.TxHash.Hex()))
	return receipt.TxHash.Hex(), nil
}

func (a *Adapter) ensureAllowance(ctx context.Context, signer Signer, amount *big.Int) (string, error) {
	allowance, err := a.callUint256(ctx, "allowance", signer.Address(), a.tokenMessenger)
	if err != nil {
		return "", domainerrors.NewChainWriteError(string(a.network), opApprove, fmt.Errorf("read allowance: %w", err))
	}
	if allowance.Cmp(amount) >= 0 {
		a.logger.Debug("Allowance sufficient", zap.String("allowance", allowance.String()))
		return "", nil
	}

	data, err := erc20ABI.Pack("approve", a.tokenMessenger, amount)
	if err != nil {
		return "", domainerrors.NewChainWriteError(string(a.network), opApprove, fmt.Errorf("pack approve: %w", err))
	}
	receipt, err := a.sendAndWait(ctx, signer, a.usdc, data, opApprove)
	if err != nil {
		return "", err
	}
	return receipt.TxHash.Hex(), nil
}

func (a *Adapter) callUint256(ctx context.Context, method string, args ...interface{}) (*big.Int, error) {
	data, err := erc20ABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	out, err := a.client.CallContract(ctx, ethereum.CallMsg{To: &a.usdc, Data: data}, nil)
	if err != nil {
		return nil, err
	}
	values, err := erc20ABI.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("unpack %s: unexpected output count %d", method, len(values))
	}
	v, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unpack %s: unexpected type %T", method, values[0])
	}
	return v, nil
}

func (a *Adapter) gasPrice(ctx context.Context) *big.Int {
	suggested, err := a.client.SuggestGasPrice(ctx)
	if err != nil {
		a.logger.Warn("SuggestGasPrice failed, using fallback", zap.Error(err))
		return big.NewInt(fallbackGasPrice)
	}
	mult := a.chain.GasPriceMultiplier
	if mult <= 0 {
		mult = 1
	}
	pct := big.NewInt(int64(mult * 100))
	price := new(big.Int).Mul(suggested, pct)
	return price.Div(price, big.NewInt(100))
}

// sendAndWait builds, signs and submits a legacy EIP-155 transaction and
// waits for its receipt. A failed status is a revert.
func (a *Adapter) sendAndWait(ctx context.Context, signer Signer, to common.Address, data []byte, op string) (*types.Receipt, error) {
	start := time.Now()
	defer func() {
		metrics.ChainCallDuration.WithLabelValues(string(a.network), op).Observe(time.Since(start).Seconds())
	}()

	nonce, err := a.client.PendingNonceAt(ctx, signer.Address())
	if err != nil {
		return nil, domainerrors.NewChainWriteError(string(a.network), op, fmt.Errorf("get nonce: %w", err))
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    big.NewInt(0),
		Gas:      a.chain.GasLimit,
		GasPrice: a.gasPrice(ctx),
		Data:     data,
	})

	signed, err := signer.SignTx(ctx, a.chainID, tx)
	if err != nil {
		return nil, domainerrors.NewChainWriteError(string(a.network), op, err)
	}

	if err := a.client.SendTransaction(ctx, signed); err != nil {
		return nil, domainerrors.NewChainWriteError(string(a.network), op, fmt.Errorf("send transaction: %w", err))
	}

	txHash := signed.Hash().Hex()
	a.logger.Info("Transaction submitted",
		zap.String("operation", op),
		zap.String("tx_hash", txHash),
		zap.Uint64("nonce", nonce))

	waitCtx, cancel := context.WithTimeout(ctx, a.receiptTimeout)
	defer cancel()

	receipt, err := bind.WaitMined(waitCtx, a.client, signed)
	if err != nil {
		cwe := domainerrors.NewChainWriteError(string(a.network), op, fmt.Errorf("wait for receipt: %w", err))
		cwe.TxHash = txHash
		return nil, cwe
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		a.logger.Error("Transaction reverted",
			zap.String("operation", op),
			zap.String("tx_hash", txHash),
			zap.Stringer("block", receipt.BlockNumber))
		return nil, domainerrors.NewRevertError(string(a.network), op, txHash)
	}

	return receipt, nil
}
