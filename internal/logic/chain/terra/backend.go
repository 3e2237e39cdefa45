package terra

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	sdkmath "cosmossdk.io/math"
	wasmtypes "github.com/CosmWasm/wasmd/x/wasm/types"
	"github.com/cosmos/cosmos-sdk/codec"
	codectypes "github.com/cosmos/cosmos-sdk/codec/types"
	cryptocodec "github.com/cosmos/cosmos-sdk/crypto/codec"
	sdk "github.com/cosmos/cosmos-sdk/types"
	banktypes "github.com/cosmos/cosmos-sdk/x/bank/types"

	"multisend/internal/consts"
	"multisend/internal/logic/chain"
	"multisend/internal/logic/instruction"
	"multisend/pkg/logger"
)

const defaultRequestTimeout = 15 * time.Second

// Options Terra 后端配置，构造后不可变
type Options struct {
	Network        string  // devnet / mainnet，其它值回退到 devnet
	Endpoint       string  // 覆盖默认 LCD 地址
	ChainID        string  // 覆盖默认 chain id
	GasPrice       string  // 形如 0.015uluna，仅提交时需要
	GasAdjustment  float64 // 模拟 gas 的放大系数，0 取默认值
	Memo           string
	DefaultDenom   string // coin 为空时使用的 denom
	RequestTimeout time.Duration
	DerivationPath string
}

// Backend 单交易多消息的 Terra 后端
type Backend struct {
	opts     Options
	gasPrice *sdk.DecCoin
	lcd      LCD
	cdc      codec.Codec
}

var _ chain.Backend = (*Backend)(nil)

// New 按网络表解析 LCD 地址与 chain id 并创建后端
func New(opts Options) (*Backend, error) {
	opts = opts.withDefaults()
	return NewWithLCD(opts, NewLCD(opts.Endpoint, &http.Client{}))
}

// NewWithLCD 使用外部提供的 LCD 实现，gas 参数在此处校验
func NewWithLCD(opts Options, lcd LCD) (*Backend, error) {
	opts = opts.withDefaults()
	if opts.GasAdjustment <= 0 {
		return nil, fmt.Errorf("terra: gas adjustment must be > 0, got %v", opts.GasAdjustment)
	}
	if err := sdk.ValidateDenom(opts.DefaultDenom); err != nil {
		return nil, fmt.Errorf("terra: default denom: %w", err)
	}

	b := &Backend{opts: opts, lcd: lcd, cdc: newCodec()}
	if opts.GasPrice != "" {
		price, err := sdk.ParseDecCoin(opts.GasPrice)
		if err != nil {
			return nil, fmt.Errorf("terra: invalid gas price %q: %w", opts.GasPrice, err)
		}
		if !price.Amount.IsPositive() {
			return nil, fmt.Errorf("terra: gas price must be positive, got %s", opts.GasPrice)
		}
		b.gasPrice = &price
	}
	return b, nil
}

func newCodec() codec.Codec {
	ir := codectypes.NewInterfaceRegistry()
	cryptocodec.RegisterInterfaces(ir)
	banktypes.RegisterInterfaces(ir)
	wasmtypes.RegisterInterfaces(ir)
	return codec.NewProtoCodec(ir)
}

func (o Options) withDefaults() Options {
	o.Network = consts.ResolveNetwork(o.Network)
	endpoint, chainID := EndpointFor(o.Network)
	if o.Endpoint == "" {
		o.Endpoint = endpoint
	}
	if o.ChainID == "" {
		o.ChainID = chainID
	}
	if o.GasAdjustment == 0 {
		o.GasAdjustment = consts.TerraDefaultGasAdj
	}
	if o.DefaultDenom == "" {
		o.DefaultDenom = consts.TerraDefaultDenom
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = defaultRequestTimeout
	}
	return o
}

// EndpointFor 固定网络表，返回 LCD 地址与 chain id
func EndpointFor(network string) (string, string) {
	switch consts.ResolveNetwork(network) {
	case consts.NetworkMainnet:
		return consts.TerraMainnetLCD, consts.TerraMainnetChainID
	default:
		return consts.TerraDevnetLCD, consts.TerraDevnetChainID
	}
}

func (b *Backend) Name() string    { return consts.ChainTerra }
func (b *Backend) Decimals() int32 { return consts.TerraDecimals }

// Endpoint 实际使用的 LCD 地址
func (b *Backend) Endpoint() string { return b.opts.Endpoint }

// ChainID 签名使用的 chain id
func (b *Backend) ChainID() string { return b.opts.ChainID }

func (b *Backend) DeriveIdentity(phrase []byte, derivationPath string) (chain.Identity, error) {
	if derivationPath == "" {
		derivationPath = b.opts.DerivationPath
	}
	return deriveIdentity(phrase, derivationPath)
}

// ValidateAddresses 校验 terra 前缀的 bech32 地址，先接收者后发送者
func (b *Backend) ValidateAddresses(instr *instruction.MultisendInstruction) error {
	for _, p := range instr.Parties() {
		if err := validateAddress(p.Address); err != nil {
			return &chain.InvalidAddressError{Address: p.Address, Role: p.Role, Cause: err}
		}
	}
	return nil
}

func validateAddress(addr string) error {
	bz, err := sdk.GetFromBech32(addr, consts.TerraBech32Prefix)
	if err != nil {
		return err
	}
	return sdk.VerifyAddressFormat(bz)
}

type assetKind int

const (
	assetBank assetKind = iota
	assetCW20
)

// asset coin 字段解析结果
type asset struct {
	kind  assetKind
	denom string // assetBank
	token string // assetCW20 合约地址
}

func (a asset) String() string {
	if a.kind == assetCW20 {
		return a.token
	}
	return a.denom
}

// resolveAsset 空值取默认 denom；合法 terra 地址视为 CW20 合约；其余按 bank denom 处理
func (b *Backend) resolveAsset(tag string) (asset, error) {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return asset{kind: assetBank, denom: b.opts.DefaultDenom}, nil
	}
	if strings.HasPrefix(tag, consts.TerraBech32Prefix+"1") && validateAddress(tag) == nil {
		return asset{kind: assetCW20, token: tag}, nil
	}
	if err := sdk.ValidateDenom(tag); err != nil {
		return asset{}, &instruction.MalformedInputError{Reason: fmt.Sprintf("coin %q is neither a denom nor a terra contract address", tag), Cause: err}
	}
	return asset{kind: assetBank, denom: tag}, nil
}

// ValidateBalances 查询每个 (发送地址, 资产) 的余额，重复的发送者累加后比较
func (b *Backend) ValidateBalances(ctx context.Context, instr *instruction.MultisendInstruction) error {
	for _, s := range instr.SenderTotals() {
		if err := validateAddress(s.Address); err != nil {
			return &chain.InvalidAddressError{Address: s.Address, Role: instruction.RoleSender, Cause: err}
		}
		a, err := b.resolveAsset(s.Coin)
		if err != nil {
			return err
		}
		required, err := instruction.ToBaseUnits(s.Amount, consts.TerraDecimals)
		if err != nil {
			return err
		}

		callCtx, cancel := context.WithTimeout(ctx, b.opts.RequestTimeout)
		var balance sdkmath.Int
		switch a.kind {
		case assetCW20:
			balance, err = b.lcd.CW20Balance(callCtx, a.token, s.Address)
		default:
			balance, err = b.lcd.BankBalance(callCtx, s.Address, a.denom)
		}
		cancel()
		if err != nil {
			return &chain.NetworkError{Op: fmt.Sprintf("terra balance %s %s", s.Address, a), Cause: err}
		}

		available := clampUint64(balance)
		logger.Infof("[terra] balance for %s is %s %s, required %d", s.Address, balance, a, required)
		if available < required {
			return &chain.InsufficientBalanceError{
				Address:   s.Address,
				Asset:     a.String(),
				Required:  required,
				Available: available,
			}
		}
	}
	return nil
}

func (b *Backend) String() string {
	return fmt.Sprintf("terra(%s %s %s)", b.opts.Network, b.opts.ChainID, b.opts.Endpoint)
}
