package chain

import (
	"errors"
	"fmt"
	"strings"

	"multisend/internal/logic/instruction"
)

var (
	ErrUnknownChain     = errors.New("unknown chain")
	ErrIdentityMismatch = errors.New("identity does not belong to this backend")
	ErrSignerNotSender  = errors.New("sender is not the signing identity")
)

// InvalidAddressError 地址无法按链原生格式解析
type InvalidAddressError struct {
	Address string
	Role    instruction.Role
	Cause   error
}

func (e *InvalidAddressError) Error() string {
	return fmt.Sprintf("%s address %q is not a valid address: %v", e.Role, e.Address, e.Cause)
}

func (e *InvalidAddressError) Unwrap() error { return e.Cause }

// InsufficientBalanceError 链上余额低于请求发送额（最小单位）
type InsufficientBalanceError struct {
	Address   string
	Asset     string
	Required  uint64
	Available uint64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("address %s has a lower balance than send amount: required=%d available=%d asset=%q",
		e.Address, e.Required, e.Available, e.Asset)
}

// NetworkError RPC/LCD 调用失败或超时
type NetworkError struct {
	Op    string
	Cause error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error during %s: %v", e.Op, e.Cause)
}

func (e *NetworkError) Unwrap() error { return e.Cause }

// SubmissionError 交易被拒绝或只部分完成。
// 已确认的分块不可撤销，Confirmed 记录这些分块的签名。
type SubmissionError struct {
	ChunkIndex  int      // 失败分块序号，从 0 开始
	TotalChunks int      // 计划提交的分块数，未知时为 0
	Confirmed   []string // 失败前已上链的交易签名
	Pending     string   // 失败分块已发出但未确认时的签名，结果未知
	Cause       error
}

// Partial 是否已有分块上链
func (e *SubmissionError) Partial() bool { return len(e.Confirmed) > 0 }

func (e *SubmissionError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "submission failed at chunk %d", e.ChunkIndex+1)
	if e.TotalChunks > 0 {
		fmt.Fprintf(&b, "/%d", e.TotalChunks)
	}
	fmt.Fprintf(&b, ": %v", e.Cause)
	if e.Partial() {
		fmt.Fprintf(&b, "; PARTIAL COMPLETION: %d chunk(s) already confirmed on-chain (%s), later chunks were not submitted",
			len(e.Confirmed), strings.Join(e.Confirmed, ", "))
	} else {
		b.WriteString("; no earlier chunk was confirmed on-chain")
	}
	if e.Pending != "" {
		fmt.Fprintf(&b, "; chunk %d was sent as %s but not confirmed, check its status before retrying", e.ChunkIndex+1, e.Pending)
	}
	return b.String()
}

func (e *SubmissionError) Unwrap() error { return e.Cause }
