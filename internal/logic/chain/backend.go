package chain

import (
	"context"
	"fmt"
	"iter"

	"multisend/internal/logic/instruction"
)

// Identity 签名身份，仅在单次执行期间存在，调用方负责在结束时 Zero
type Identity interface {
	Address() string // 链原生格式的地址
	Zero()           // 清零私钥材料，可重复调用
}

// TransferOp 后端原生的单笔转账操作，每个接收者一条
type TransferOp struct {
	Index     int    // 在 recipients 中的序号
	Recipient string // 目标地址（原始字符串）
	Amount    uint64 // 最小单位
	Asset     string // 资产标识（denom / 合约地址 / 空）
	Native    any    // 后端原生对象：solana types.Instruction / terra sdk.Msg
}

// Receipt 提交成功后的回执
type Receipt struct {
	Signatures []string // 每个已确认交易的签名或哈希，按提交顺序
	Transfers  int      // 实际提交的转账条数
}

// Backend 一条链的统一能力：地址校验、余额校验、构造转账、提交
type Backend interface {
	Name() string
	// Decimals 展示单位到最小单位的小数位数
	Decimals() int32

	// DeriveIdentity 由助记词与可选派生路径得到签名身份
	DeriveIdentity(phrase []byte, derivationPath string) (Identity, error)

	// ValidateAddresses 本地解析所有地址，不访问网络
	ValidateAddresses(instr *instruction.MultisendInstruction) error
	// ValidateBalances 只读查询每个发送者的链上余额
	ValidateBalances(ctx context.Context, instr *instruction.MultisendInstruction) error
	// BuildTransfers 纯函数，返回可重复遍历的惰性序列
	BuildTransfers(id Identity, instr *instruction.MultisendInstruction) (iter.Seq[TransferOp], error)
	// Submit 唯一会改变链上状态的操作
	Submit(ctx context.Context, id Identity, ops iter.Seq[TransferOp]) (*Receipt, error)
}

// RequireSigner 交易只有一个付款方：每个发送者都必须是签名身份，
// 否则余额校验的账户与实际扣款的账户不一致。same 为链原生的地址比较。
func RequireSigner(instr *instruction.MultisendInstruction, signer string, same func(a, b string) bool) error {
	if len(instr.Senders) == 0 {
		return &InvalidAddressError{Address: signer, Role: instruction.RoleSender, Cause: fmt.Errorf("%w: no senders declared", ErrSignerNotSender)}
	}
	for _, s := range instr.Senders {
		if !same(s.Address, signer) {
			return &InvalidAddressError{
				Address: s.Address,
				Role:    instruction.RoleSender,
				Cause:   fmt.Errorf("%w (signer %s)", ErrSignerNotSender, signer),
			}
		}
	}
	return nil
}
