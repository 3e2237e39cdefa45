package core

import (
	"crypto/sha256"
	"time"
)

// EventKind 发放生命周期事件类别
type EventKind uint32

const (
	EventValidated          EventKind = 1 // 校验全部通过
	EventBroadcastSucceeded EventKind = 2 // 全部分块已上链
	EventBroadcastFailed    EventKind = 3 // 提交失败，可能部分完成
)

func (k EventKind) String() string {
	switch k {
	case EventValidated:
		return "validated"
	case EventBroadcastSucceeded:
		return "broadcast_succeeded"
	case EventBroadcastFailed:
		return "broadcast_failed"
	default:
		return "unknown"
	}
}

// Event 一次发放的生命周期事件，字段顺序即 borsh 编码顺序
type Event struct {
	Kind        uint32
	Chain       string
	Network     string
	Address     string   // 签名身份地址，仅提交事件有值
	Stage       string   // 事件产生时的流水线阶段
	Recipients  uint32   // 接收者数量
	Transfers   uint32   // 已上链的转账条数
	Signatures  []string // 已确认交易签名
	Partial     bool     // 是否部分完成
	Error       string
	TimestampMs int64
}

// NewEvent 填充公共字段
func NewEvent(kind EventKind, chain, network string) *Event {
	return &Event{
		Kind:        uint32(kind),
		Chain:       chain,
		Network:     network,
		TimestampMs: time.Now().UnixMilli(),
	}
}

// PartitionKey Kafka 分区 key：同一链同一身份的事件落在同一分区，保证顺序
func (e *Event) PartitionKey() []byte {
	sum := sha256.Sum256([]byte(e.Chain + "|" + e.Address))
	return sum[:]
}
