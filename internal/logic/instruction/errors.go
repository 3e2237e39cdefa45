package instruction

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// MalformedInputError 指令文档无法解码为预期结构
type MalformedInputError struct {
	Reason string
	Cause  error
}

func (e *MalformedInputError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("malformed instruction: %s: %v", e.Reason, e.Cause)
	}
	return "malformed instruction: " + e.Reason
}

func (e *MalformedInputError) Unwrap() error { return e.Cause }

// AmountMismatchError 发送总额与接收总额之差超过容差
type AmountMismatchError struct {
	RecipientTotal decimal.Decimal
	SenderTotal    decimal.Decimal
	Tolerance      decimal.Decimal
}

func (e *AmountMismatchError) Error() string {
	return fmt.Sprintf("sender & recipient amount mismatch: recipients=%s senders=%s (tolerance %s)",
		e.RecipientTotal, e.SenderTotal, e.Tolerance)
}
