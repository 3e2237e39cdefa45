package consts

// 支持的链
const (
	ChainSolana = "solana"
	ChainTerra  = "terra"

	// DefaultChain 未指定链时使用 terra，与早期版本的命令行行为保持一致
	DefaultChain = ChainTerra
)

// 网络名，无法识别时回退到 devnet
const (
	NetworkDevnet  = "devnet"
	NetworkMainnet = "mainnet"
)

// 最小单位精度
const (
	SolanaDecimals int32 = 9 // lamports
	TerraDecimals  int32 = 6 // micro units
)

// SolanaMaxTransfersPerTx 单笔交易可容纳的 system transfer 上限（受交易包大小限制）
const SolanaMaxTransfersPerTx = 20

// ResolveNetwork 规范化网络名
func ResolveNetwork(name string) string {
	switch name {
	case NetworkMainnet:
		return NetworkMainnet
	default:
		return NetworkDevnet
	}
}
