package utils

import (
	"encoding/binary"
	"fmt"

	"github.com/near/borsh-go"
)

// EncodeEvent 将事件编码为带类型前缀的二进制数据：
// - 前 4 字节为事件类型（uint32，小端序）
// - 后续为 borsh 序列化数据
func EncodeEvent(eventType uint32, v any) ([]byte, error) {
	body, err := borsh.Serialize(v)
	if err != nil {
		return nil, fmt.Errorf("EncodeEvent: serialize %T: %w", v, err)
	}
	buf := make([]byte, 4, 4+len(body))
	binary.LittleEndian.PutUint32(buf[:4], eventType)
	return append(buf, body...), nil
}

// DecodeEvent EncodeEvent 的逆操作，out 必须为指针
func DecodeEvent(data []byte, out any) (uint32, error) {
	if len(data) < 4 {
		return 0, fmt.Errorf("DecodeEvent: short buffer (%d bytes)", len(data))
	}
	eventType := binary.LittleEndian.Uint32(data[:4])
	if err := borsh.Deserialize(out, data[4:]); err != nil {
		return eventType, fmt.Errorf("DecodeEvent: deserialize %T: %w", out, err)
	}
	return eventType, nil
}
