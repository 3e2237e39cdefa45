package instruction

import "github.com/shopspring/decimal"

// AmountTolerance 展示单位下允许的总额误差
var AmountTolerance = decimal.RequireFromString("0.01")

// ValidateAmountConservation 分别累加接收额与发送额，差值超过 AmountTolerance 时返回 *AmountMismatchError。
// 纯计算，不依赖任何后端，必须在任何网络调用之前执行。
func ValidateAmountConservation(m *MultisendInstruction) error {
	recipients := decimal.Zero
	for _, r := range m.Recipients {
		recipients = recipients.Add(r.DecimalAmount())
	}
	senders := decimal.Zero
	for _, s := range m.Senders {
		senders = senders.Add(s.DecimalAmount())
	}

	if recipients.Sub(senders).Abs().GreaterThan(AmountTolerance) {
		return &AmountMismatchError{
			RecipientTotal: recipients,
			SenderTotal:    senders,
			Tolerance:      AmountTolerance,
		}
	}
	return nil
}
