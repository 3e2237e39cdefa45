package solana

import (
	"fmt"
	"strings"

	"github.com/blocto/solana-go-sdk/pkg/hdwallet"
	"github.com/blocto/solana-go-sdk/types"
	"github.com/cosmos/go-bip39"

	"multisend/internal/consts"
)

// Identity ed25519 签名账户
type Identity struct {
	account types.Account
}

func (i *Identity) Address() string {
	return i.account.PublicKey.ToBase58()
}

func (i *Identity) Zero() {
	for k := range i.account.PrivateKey {
		i.account.PrivateKey[k] = 0
	}
}

// NewIdentity 直接由账户构造，测试与离线签名使用
func NewIdentity(account types.Account) *Identity {
	return &Identity{account: account}
}

// deriveAccount BIP-39 助记词 + SLIP-10 路径
func deriveAccount(phrase []byte, path string) (types.Account, error) {
	mnemonic := strings.Join(strings.Fields(string(phrase)), " ")
	seed, err := bip39.NewSeedWithErrorChecking(mnemonic, "")
	if err != nil {
		return types.Account{}, fmt.Errorf("solana: invalid seed phrase: %w", err)
	}
	defer zeroBytes(seed)

	fullPath, err := normalizePath(path)
	if err != nil {
		return types.Account{}, err
	}
	key, err := hdwallet.Derived(fullPath, seed)
	if err != nil {
		return types.Account{}, fmt.Errorf("solana: derive %s: %w", fullPath, err)
	}
	defer zeroBytes(key.PrivateKey)

	account, err := types.AccountFromSeed(key.PrivateKey)
	if err != nil {
		return types.Account{}, fmt.Errorf("solana: account from seed: %w", err)
	}
	return account, nil
}

// normalizePath 支持完整路径 "m/44'/501'/..." 与 solana-keygen 风格的 "account/change"
func normalizePath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return consts.SolanaDefaultKeyPath, nil
	}
	if strings.HasPrefix(path, "m/") {
		return path, nil
	}
	parts := strings.Split(path, "/")
	if len(parts) > 2 {
		return "", fmt.Errorf("solana: invalid derivation path %q", path)
	}
	full := "m/44'/501'"
	for _, p := range parts {
		p = strings.TrimSuffix(p, "'")
		if p == "" {
			return "", fmt.Errorf("solana: invalid derivation path %q", path)
		}
		for _, r := range p {
			if r < '0' || r > '9' {
				return "", fmt.Errorf("solana: invalid derivation path %q", path)
			}
		}
		full += "/" + p + "'"
	}
	return full, nil
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
