package terra

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cosmos/cosmos-sdk/crypto/hd"
	"github.com/cosmos/cosmos-sdk/crypto/keys/secp256k1"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"multisend/internal/consts"
)

// Identity secp256k1 签名密钥及其 terra bech32 地址
type Identity struct {
	priv    *secp256k1.PrivKey
	address string
}

func (i *Identity) Address() string { return i.address }

func (i *Identity) Zero() {
	if i.priv == nil {
		return
	}
	for k := range i.priv.Key {
		i.priv.Key[k] = 0
	}
}

// NewIdentity 由原始私钥构造
func NewIdentity(priv *secp256k1.PrivKey) (*Identity, error) {
	address, err := sdk.Bech32ifyAddressBytes(consts.TerraBech32Prefix, priv.PubKey().Address())
	if err != nil {
		return nil, fmt.Errorf("terra: encode address: %w", err)
	}
	return &Identity{priv: priv, address: address}, nil
}

func deriveIdentity(phrase []byte, path string) (*Identity, error) {
	fullPath, err := normalizePath(path)
	if err != nil {
		return nil, err
	}
	mnemonic := strings.Join(strings.Fields(string(phrase)), " ")
	derived, err := hd.Secp256k1.Derive()(mnemonic, "", fullPath)
	if err != nil {
		return nil, fmt.Errorf("terra: invalid seed phrase or path %s: %w", fullPath, err)
	}
	return NewIdentity(&secp256k1.PrivKey{Key: derived})
}

// normalizePath 完整路径原样使用，"account/index" 展开为 m/44'/330'/account'/0/index
func normalizePath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return consts.TerraDefaultKeyPath, nil
	}
	if strings.HasPrefix(path, "m/") {
		return path, nil
	}
	parts := strings.Split(path, "/")
	if len(parts) != 2 {
		return "", fmt.Errorf("terra: invalid derivation path %q", path)
	}
	account, err1 := strconv.ParseUint(parts[0], 10, 31)
	index, err2 := strconv.ParseUint(parts[1], 10, 31)
	if err1 != nil || err2 != nil {
		return "", fmt.Errorf("terra: invalid derivation path %q", path)
	}
	return fmt.Sprintf("m/44'/330'/%d'/0/%d", account, index), nil
}
