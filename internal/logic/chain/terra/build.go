package terra

import (
	"encoding/json"
	"fmt"
	"iter"
	stdmath "math"
	"strconv"
	"strings"

	sdkmath "cosmossdk.io/math"
	wasmtypes "github.com/CosmWasm/wasmd/x/wasm/types"
	sdk "github.com/cosmos/cosmos-sdk/types"
	banktypes "github.com/cosmos/cosmos-sdk/x/bank/types"

	"multisend/internal/consts"
	"multisend/internal/logic/chain"
	"multisend/internal/logic/instruction"
)

// cw20Transfer CW20 合约 transfer 执行消息
type cw20Transfer struct {
	Transfer struct {
		Recipient string `json:"recipient"`
		Amount    string `json:"amount"`
	} `json:"transfer"`
}

// BuildTransfers 每个接收者一条消息：bank denom 用 MsgSend，CW20 合约用 MsgExecuteContract。
// 消息在返回前全部构造完成，序列本身不会中途失败。
func (b *Backend) BuildTransfers(id chain.Identity, instr *instruction.MultisendInstruction) (iter.Seq[chain.TransferOp], error) {
	ident, ok := id.(*Identity)
	if !ok {
		return nil, chain.ErrIdentityMismatch
	}
	from := ident.Address()
	if err := chain.RequireSigner(instr, from, strings.EqualFold); err != nil {
		return nil, err
	}

	ops := make([]chain.TransferOp, len(instr.Recipients))
	for i, r := range instr.Recipients {
		if err := validateAddress(r.Address); err != nil {
			return nil, &chain.InvalidAddressError{Address: r.Address, Role: instruction.RoleRecipient, Cause: err}
		}
		a, err := b.resolveAsset(r.Coin)
		if err != nil {
			return nil, err
		}
		amount, err := instruction.ToBaseUnits(r.DecimalAmount(), consts.TerraDecimals)
		if err != nil {
			return nil, err
		}
		msg, err := transferMsg(from, r.Address, a, amount)
		if err != nil {
			return nil, fmt.Errorf("terra: build transfer %d: %w", i, err)
		}
		ops[i] = chain.TransferOp{
			Index:     i,
			Recipient: r.Address,
			Amount:    amount,
			Asset:     a.String(),
			Native:    msg,
		}
	}

	return func(yield func(chain.TransferOp) bool) {
		for _, op := range ops {
			if !yield(op) {
				return
			}
		}
	}, nil
}

func transferMsg(from, to string, a asset, amount uint64) (sdk.Msg, error) {
	if a.kind == assetCW20 {
		var exec cw20Transfer
		exec.Transfer.Recipient = to
		exec.Transfer.Amount = strconv.FormatUint(amount, 10)
		raw, err := json.Marshal(exec)
		if err != nil {
			return nil, err
		}
		return &wasmtypes.MsgExecuteContract{
			Sender:   from,
			Contract: a.token,
			Msg:      wasmtypes.RawContractMessage(raw),
		}, nil
	}
	// 直接填字符串地址，不依赖全局 bech32 前缀配置
	return &banktypes.MsgSend{
		FromAddress: from,
		ToAddress:   to,
		Amount:      sdk.Coins{sdk.NewCoin(a.denom, sdkmath.NewIntFromUint64(amount))},
	}, nil
}

func clampUint64(v sdkmath.Int) uint64 {
	if v.IsNil() || v.IsNegative() {
		return 0
	}
	if !v.IsUint64() {
		return stdmath.MaxUint64
	}
	return v.Uint64()
}
