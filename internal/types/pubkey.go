package types

import (
	"fmt"

	"github.com/mr-tron/base58"
)

type Pubkey [32]byte

func (p Pubkey) String() string {
	return base58.Encode(p[:])
}

func (p Pubkey) IsZero() bool {
	return p == Pubkey{}
}

// TryPubkeyFromBase58 解析 base58 字符串为 Pubkey，失败时返回 error（用于不信任输入路径）
func TryPubkeyFromBase58(s string) (Pubkey, error) {
	var p Pubkey
	if err := decode32(s, p[:]); err != nil {
		return Pubkey{}, fmt.Errorf("invalid pubkey: %w", err)
	}
	return p, nil
}

type Hash [32]byte

func (h Hash) String() string {
	return base58.Encode(h[:])
}

// HashFromBase58 解析 RPC 返回的 blockhash
func HashFromBase58(s string) (Hash, error) {
	var h Hash
	if err := decode32(s, h[:]); err != nil {
		return Hash{}, fmt.Errorf("invalid hash: %w", err)
	}
	return h, nil
}

func decode32(s string, dst []byte) error {
	if s == "" {
		return fmt.Errorf("empty base58 string")
	}
	data, err := base58.Decode(s)
	if err != nil {
		return fmt.Errorf("failed to decode base58 %q: %w", s, err)
	}
	if len(data) != 32 {
		return fmt.Errorf("invalid length: got %d, want 32, input=%q", len(data), s)
	}
	copy(dst, data)
	return nil
}
