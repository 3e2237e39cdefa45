package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/zeromicro/go-zero/core/conf"

	"multisend/internal/consts"
	"multisend/internal/logic/chain/solana"
	"multisend/internal/logic/chain/terra"
	"multisend/internal/logic/guard"
	"multisend/internal/mq"
	"multisend/pkg/logger"
)

type LogConfig struct {
	Format   string `json:"format,default=console,options=console|json"` // 日志格式
	LogDir   string `json:"log_dir,optional"`                             // 日志目录，为空时只输出到 stderr
	Level    string `json:"level,default=info"`                           // debug / info / warn / error
	Compress bool   `json:"compress,optional"`                            // 是否压缩旧日志文件
}

func (c *LogConfig) ToLogOption() logger.LogOption {
	return logger.LogOption{
		Format:   c.Format,
		LogDir:   c.LogDir,
		Level:    c.Level,
		Compress: c.Compress,
	}
}

// SolanaConfig Solana 后端配置
type SolanaConfig struct {
	DevnetRPC         string `json:"devnet_rpc,default=https://api.devnet.solana.com"`        // devnet RPC 地址
	MainnetRPC        string `json:"mainnet_rpc,default=https://api.mainnet-beta.solana.com"` // mainnet RPC 地址
	ChunkSize         int    `json:"chunk_size,default=20"`                                   // 每笔交易转账条数，上限 20
	ConfirmTimeoutSec int    `json:"confirm_timeout_sec,default=60"`                          // 单个分块确认超时（秒）
	PollIntervalMs    int    `json:"poll_interval_ms,default=500"`                            // 签名状态轮询间隔（毫秒）
	DerivationPath    string `json:"derivation_path,optional"`                                // 默认派生路径
}

func (c *SolanaConfig) ToOptions(network string, t TimeConfig) solana.Options {
	endpoint := c.DevnetRPC
	if consts.ResolveNetwork(network) == consts.NetworkMainnet {
		endpoint = c.MainnetRPC
	}
	return solana.Options{
		Network:        network,
		Endpoint:       endpoint,
		ChunkSize:      c.ChunkSize,
		RequestTimeout: t.RequestTimeout(),
		ConfirmTimeout: time.Duration(c.ConfirmTimeoutSec) * time.Second,
		PollInterval:   time.Duration(c.PollIntervalMs) * time.Millisecond,
		DerivationPath: c.DerivationPath,
	}
}

// TerraConfig Terra 后端配置
type TerraConfig struct {
	DevnetLCD      string `json:"devnet_lcd,default=https://pisco-lcd.terra.dev"`    // devnet LCD 地址
	DevnetChainID  string `json:"devnet_chain_id,default=pisco-1"`                   // devnet chain id
	MainnetLCD     string `json:"mainnet_lcd,default=https://phoenix-lcd.terra.dev"` // mainnet LCD 地址
	MainnetChainID string `json:"mainnet_chain_id,default=phoenix-1"`                // mainnet chain id
	DefaultDenom   string `json:"default_denom,default=uluna"`                       // coin 为空时的 denom
	DerivationPath string `json:"derivation_path,optional"`                          // 默认派生路径
}

// TerraTxParams 每次提交的交易参数，来自命令行
type TerraTxParams struct {
	GasPrice      string
	GasAdjustment float64
	Memo          string
}

func (c *TerraConfig) ToOptions(network string, t TimeConfig, tx TerraTxParams) terra.Options {
	endpoint, chainID := c.DevnetLCD, c.DevnetChainID
	if consts.ResolveNetwork(network) == consts.NetworkMainnet {
		endpoint, chainID = c.MainnetLCD, c.MainnetChainID
	}
	return terra.Options{
		Network:        network,
		Endpoint:       endpoint,
		ChainID:        chainID,
		GasPrice:       tx.GasPrice,
		GasAdjustment:  tx.GasAdjustment,
		Memo:           tx.Memo,
		DefaultDenom:   c.DefaultDenom,
		RequestTimeout: t.RequestTimeout(),
		DerivationPath: c.DerivationPath,
	}
}

// KafkaConfig 生命周期事件投递，Brokers 为空时不启用
type KafkaConfig struct {
	Brokers       string `json:"brokers,optional"`               // Kafka broker 地址，多个用英文逗号分隔
	Topic         string `json:"topic,default=multisend-events"` // 事件 topic
	Partitions    int    `json:"partitions,default=3"`           // topic 分区数
	BatchSize     int    `json:"batch_size,optional"`            // 批处理大小（字节）
	LingerMs      int    `json:"linger_ms,default=5"`            // 批处理最大延迟（毫秒）
	SendTimeoutMs int    `json:"send_timeout_ms,default=5000"`   // 单条事件等待 ack 的超时
	CreateTopic   bool   `json:"create_topic,default=true"`      // 启动时自动建 topic
}

func (c *KafkaConfig) Enabled() bool { return c.Brokers != "" }

func (c *KafkaConfig) ToKafkaOption() mq.KafkaOption {
	return mq.KafkaOption{
		Brokers:     c.Brokers,
		Topic:       c.Topic,
		Partitions:  c.Partitions,
		BatchSize:   c.BatchSize,
		LingerMs:    c.LingerMs,
		CreateTopic: c.CreateTopic,
		SendTimeout: time.Duration(c.SendTimeoutMs) * time.Millisecond,
	}
}

// RedisConfig 提交锁，Addr 为空时不启用
type RedisConfig struct {
	Addr       string `json:"addr,optional"`                // Redis 地址
	Password   string `json:"password,optional"`            // 密码
	DB         int    `json:"db,optional"`                  // 库号
	LockTTLSec int    `json:"lock_ttl_sec,default=600"`     // 锁过期时间（秒），需覆盖整个提交过程
	KeyPrefix  string `json:"key_prefix,default=multisend"` // key 前缀
}

func (c *RedisConfig) Enabled() bool { return c.Addr != "" }

func (c *RedisConfig) ToLockOption() guard.Option {
	return guard.Option{
		KeyPrefix: c.KeyPrefix,
		TTL:       time.Duration(c.LockTTLSec) * time.Second,
	}
}

// TimeConfig 超时配置
type TimeConfig struct {
	RequestTimeoutSec int `json:"request_timeout_sec,default=15"` // 单次 RPC/LCD 调用超时（秒）
}

func (c TimeConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSec) * time.Second
}

// Config 主配置
type Config struct {
	LogConf    LogConfig    `json:"logger"`
	SolanaConf SolanaConfig `json:"solana"`
	TerraConf  TerraConfig  `json:"terra"`
	TimeConf   TimeConfig   `json:"time_conf"`
	KafkaConf  KafkaConfig  `json:"kafka,optional"`
	RedisConf  RedisConfig  `json:"redis,optional"`
}

// Load 读取配置文件；文件不存在时只填充默认值
func Load(path string) (*Config, error) {
	var c Config
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := conf.Load(path, &c); err != nil {
				return nil, fmt.Errorf("load config %s: %w", path, err)
			}
			return &c, nil
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("stat config %s: %w", path, err)
		}
	}
	if err := conf.FillDefault(&c); err != nil {
		return nil, fmt.Errorf("fill default config: %w", err)
	}
	return &c, nil
}
