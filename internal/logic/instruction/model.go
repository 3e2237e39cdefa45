package instruction

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// TransferInstruction 表示一次分发中的一方（发送者或接收者）。
// Address 在后端校验之前不做任何格式检查。
type TransferInstruction struct {
	Address string  `json:"address" yaml:"address"` // 链原生地址字符串
	Amount  float64 `json:"amount" yaml:"amount"`   // 展示单位数量（例如 SOL，而非 lamports）
	Coin    string  `json:"coin" yaml:"coin"`       // 资产标识，含义由后端决定
}

// DecimalAmount 以精确十进制返回 Amount，避免浮点累加误差
func (t TransferInstruction) DecimalAmount() decimal.Decimal {
	return decimal.NewFromFloat(t.Amount)
}

// MultisendInstruction 表示完整的分发请求。
// 发送总额与接收总额相等是业务约束，只在 pipeline 校验时检查，类型本身允许不平衡。
type MultisendInstruction struct {
	Recipients []TransferInstruction `json:"recipients" yaml:"recipients"`
	Senders    []TransferInstruction `json:"senders" yaml:"senders"`
}

// Role 标识地址在指令中的角色
type Role string

const (
	RoleSender    Role = "sender"
	RoleRecipient Role = "recipient"
)

// Party 带角色的一方，供按固定顺序遍历所有地址使用
type Party struct {
	Role  Role
	Index int
	TransferInstruction
}

// Parties 先接收者、后发送者，与地址校验顺序一致
func (m *MultisendInstruction) Parties() []Party {
	out := make([]Party, 0, len(m.Recipients)+len(m.Senders))
	for i, r := range m.Recipients {
		out = append(out, Party{Role: RoleRecipient, Index: i, TransferInstruction: r})
	}
	for i, s := range m.Senders {
		out = append(out, Party{Role: RoleSender, Index: i, TransferInstruction: s})
	}
	return out
}

// SenderTotal 同一地址出现多次时的合计发送额
type SenderTotal struct {
	Address string
	Coin    string
	Amount  decimal.Decimal
}

// SenderTotals 按 (address, coin) 合并发送额，保持首次出现的顺序
func (m *MultisendInstruction) SenderTotals() []SenderTotal {
	type key struct{ addr, coin string }
	idx := make(map[key]int, len(m.Senders))
	out := make([]SenderTotal, 0, len(m.Senders))
	for _, s := range m.Senders {
		k := key{s.Address, s.Coin}
		if i, ok := idx[k]; ok {
			out[i].Amount = out[i].Amount.Add(s.DecimalAmount())
			continue
		}
		idx[k] = len(out)
		out = append(out, SenderTotal{Address: s.Address, Coin: s.Coin, Amount: s.DecimalAmount()})
	}
	return out
}

// ToBaseUnits 将展示单位转换为链的最小单位，向零截断。
// 结果为负或超出 uint64 时返回 *MalformedInputError。
func ToBaseUnits(amount decimal.Decimal, decimals int32) (uint64, error) {
	units := amount.Shift(decimals).Truncate(0).BigInt()
	if !units.IsUint64() {
		return 0, &MalformedInputError{Reason: fmt.Sprintf("amount %s does not fit in base units (10^%d)", amount, decimals)}
	}
	return units.Uint64(), nil
}
