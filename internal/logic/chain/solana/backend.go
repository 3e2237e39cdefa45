package solana

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/program/system"

	"multisend/internal/consts"
	"multisend/internal/logic/chain"
	"multisend/internal/logic/instruction"
	"multisend/internal/types"
	"multisend/pkg/logger"
)

const (
	defaultRequestTimeout = 10 * time.Second
	defaultConfirmTimeout = 60 * time.Second
	defaultPollInterval   = 500 * time.Millisecond
)

// Options Solana 后端配置，构造后不可变
type Options struct {
	Network        string        // devnet / mainnet，其它值回退到 devnet
	Endpoint       string        // 覆盖默认 RPC 地址
	ChunkSize      int           // 每笔交易的转账条数，<=0 或超过上限时取上限
	RequestTimeout time.Duration // 单次 RPC 超时
	ConfirmTimeout time.Duration // 单个分块等待确认的超时
	PollInterval   time.Duration // 签名状态轮询间隔
	DerivationPath string        // 默认派生路径
}

// Backend 同步分批提交的 Solana 后端
type Backend struct {
	opts Options
	rpc  RPC
}

var _ chain.Backend = (*Backend)(nil)

// New 按网络表解析 RPC 地址并创建后端
func New(opts Options) *Backend {
	opts = opts.withDefaults()
	return NewWithRPC(opts, NewRPC(opts.Endpoint))
}

// NewWithRPC 使用外部提供的 RPC 实现
func NewWithRPC(opts Options, rpc RPC) *Backend {
	return &Backend{opts: opts.withDefaults(), rpc: rpc}
}

func (o Options) withDefaults() Options {
	o.Network = consts.ResolveNetwork(o.Network)
	if o.Endpoint == "" {
		o.Endpoint = EndpointFor(o.Network)
	}
	if o.ChunkSize <= 0 || o.ChunkSize > consts.SolanaMaxTransfersPerTx {
		o.ChunkSize = consts.SolanaMaxTransfersPerTx
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = defaultRequestTimeout
	}
	if o.ConfirmTimeout <= 0 {
		o.ConfirmTimeout = defaultConfirmTimeout
	}
	if o.PollInterval <= 0 {
		o.PollInterval = defaultPollInterval
	}
	return o
}

// EndpointFor 固定网络表
func EndpointFor(network string) string {
	switch consts.ResolveNetwork(network) {
	case consts.NetworkMainnet:
		return consts.SolanaMainnetRPC
	default:
		return consts.SolanaDevnetRPC
	}
}

func (b *Backend) Name() string    { return consts.ChainSolana }
func (b *Backend) Decimals() int32 { return consts.SolanaDecimals }

// Endpoint 实际使用的 RPC 地址
func (b *Backend) Endpoint() string { return b.opts.Endpoint }

func (b *Backend) DeriveIdentity(phrase []byte, derivationPath string) (chain.Identity, error) {
	if derivationPath == "" {
		derivationPath = b.opts.DerivationPath
	}
	account, err := deriveAccount(phrase, derivationPath)
	if err != nil {
		return nil, err
	}
	return &Identity{account: account}, nil
}

// ValidateAddresses 先接收者后发送者，遇到第一个非法地址即返回
func (b *Backend) ValidateAddresses(instr *instruction.MultisendInstruction) error {
	for _, p := range instr.Parties() {
		if _, err := types.TryPubkeyFromBase58(p.Address); err != nil {
			return &chain.InvalidAddressError{Address: p.Address, Role: p.Role, Cause: err}
		}
	}
	return nil
}

// ValidateBalances 查询每个发送地址的 SOL 余额，asset 标识被忽略
func (b *Backend) ValidateBalances(ctx context.Context, instr *instruction.MultisendInstruction) error {
	for _, s := range instr.SenderTotals() {
		if _, err := types.TryPubkeyFromBase58(s.Address); err != nil {
			return &chain.InvalidAddressError{Address: s.Address, Role: instruction.RoleSender, Cause: err}
		}
		required, err := instruction.ToBaseUnits(s.Amount, consts.SolanaDecimals)
		if err != nil {
			return err
		}

		callCtx, cancel := context.WithTimeout(ctx, b.opts.RequestTimeout)
		balance, err := b.rpc.GetBalance(callCtx, s.Address)
		cancel()
		if err != nil {
			return &chain.NetworkError{Op: "solana getBalance " + s.Address, Cause: err}
		}
		logger.Infof("[solana] balance for %s is %d lamports, required %d", s.Address, balance, required)

		if balance < required {
			return &chain.InsufficientBalanceError{
				Address:   s.Address,
				Asset:     "SOL",
				Required:  required,
				Available: balance,
			}
		}
	}
	return nil
}

// BuildTransfers 每个接收者一条 system transfer，付款方为签名身份
func (b *Backend) BuildTransfers(id chain.Identity, instr *instruction.MultisendInstruction) (iter.Seq[chain.TransferOp], error) {
	ident, ok := id.(*Identity)
	if !ok {
		return nil, chain.ErrIdentityMismatch
	}
	if err := chain.RequireSigner(instr, ident.Address(), sameAddress); err != nil {
		return nil, err
	}
	from := ident.account.PublicKey

	type target struct {
		to     common.PublicKey
		amount uint64
	}
	targets := make([]target, len(instr.Recipients))
	for i, r := range instr.Recipients {
		pk, err := types.TryPubkeyFromBase58(r.Address)
		if err != nil {
			return nil, &chain.InvalidAddressError{Address: r.Address, Role: instruction.RoleRecipient, Cause: err}
		}
		amount, err := instruction.ToBaseUnits(r.DecimalAmount(), consts.SolanaDecimals)
		if err != nil {
			return nil, err
		}
		targets[i] = target{to: common.PublicKey(pk), amount: amount}
	}
	recipients := instr.Recipients

	return func(yield func(chain.TransferOp) bool) {
		for i, t := range targets {
			op := chain.TransferOp{
				Index:     i,
				Recipient: recipients[i].Address,
				Amount:    t.amount,
				Asset:     recipients[i].Coin,
				Native: system.Transfer(system.TransferParam{
					From:   from,
					To:     t.to,
					Amount: t.amount,
				}),
			}
			if !yield(op) {
				return
			}
		}
	}, nil
}

// sameAddress base58 区分大小写，按解码后的公钥比较
func sameAddress(a, b string) bool {
	pa, err := types.TryPubkeyFromBase58(a)
	if err != nil {
		return false
	}
	pb, err := types.TryPubkeyFromBase58(b)
	return err == nil && pa == pb
}

func (b *Backend) String() string {
	return fmt.Sprintf("solana(%s %s chunk=%d)", b.opts.Network, b.opts.Endpoint, b.opts.ChunkSize)
}
