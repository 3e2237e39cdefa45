package consts

// Solana RPC 默认节点
const (
	SolanaDevnetRPC  = "https://api.devnet.solana.com"
	SolanaMainnetRPC = "https://api.mainnet-beta.solana.com"
)

// Terra LCD 默认节点与 chain id
const (
	TerraDevnetLCD      = "https://pisco-lcd.terra.dev"
	TerraDevnetChainID  = "pisco-1"
	TerraMainnetLCD     = "https://phoenix-lcd.terra.dev"
	TerraMainnetChainID = "phoenix-1"
)

const (
	// SolanaDefaultKeyPath 对应 solana-keygen 的 "0/0" 派生路径
	SolanaDefaultKeyPath = "m/44'/501'/0'/0'"
	// TerraDefaultKeyPath coin type 330
	TerraDefaultKeyPath  = "m/44'/330'/0'/0/0"

	TerraBech32Prefix  = "terra"
	TerraDefaultDenom  = "uluna"
	TerraDefaultGasAdj = 1.4
)
