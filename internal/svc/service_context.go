package svc

import (
	"context"
	"fmt"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/redis/go-redis/v9"

	"multisend/internal/config"
	"multisend/internal/consts"
	"multisend/internal/logic/chain"
	"multisend/internal/logic/chain/solana"
	"multisend/internal/logic/chain/terra"
	"multisend/internal/logic/guard"
	"multisend/internal/logic/pipeline"
	"multisend/internal/mq"
	"multisend/pkg/logger"
)

// Params 单次调用的命令行选择
type Params struct {
	Chain   string
	Network string
	Terra   config.TerraTxParams
}

// ServiceContext 持有一次调用所需的后端与可选基础设施
type ServiceContext struct {
	Config  config.Config
	Network string
	Backend chain.Backend

	Producer  *kafka.Producer
	EventSink *mq.KafkaEventSink
	Redis     *redis.Client
	Locker    *guard.RedisLocker
}

// NewServiceContext 创建服务上下文，失败时已创建的资源会被释放
func NewServiceContext(c config.Config, p Params) (*ServiceContext, error) {
	network := consts.ResolveNetwork(p.Network)
	if network != p.Network {
		logger.Warnf("unknown network %q, falling back to %s", p.Network, network)
	}

	// 1. 链后端
	backend, err := NewBackend(c, p.Chain, network, p.Terra)
	if err != nil {
		return nil, err
	}
	ctx := &ServiceContext{Config: c, Network: network, Backend: backend}

	// 2. 可选：Kafka 事件投递
	if c.KafkaConf.Enabled() {
		producer, err := mq.NewKafkaProducer(c.KafkaConf.ToKafkaOption())
		if err != nil {
			logger.Errorf("Kafka producer 初始化失败: %v", err)
			return nil, err
		}
		ctx.Producer = producer
		ctx.EventSink = mq.NewKafkaEventSink(producer, c.KafkaConf.ToKafkaOption())
	}

	// 3. 可选：Redis 提交锁
	if c.RedisConf.Enabled() {
		rdb := redis.NewClient(&redis.Options{
			Addr:     c.RedisConf.Addr,
			Password: c.RedisConf.Password,
			DB:       c.RedisConf.DB,
		})
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			_ = rdb.Close()
			ctx.Close()
			logger.Errorf("Redis 连接失败: %v", err)
			return nil, fmt.Errorf("redis ping %s: %w", c.RedisConf.Addr, err)
		}
		ctx.Redis = rdb
		ctx.Locker = guard.NewRedisLocker(rdb, c.RedisConf.ToLockOption())
	}

	logger.Debugf("service context ready: %s", backend)
	return ctx, nil
}

// NewBackend 按链名创建后端
func NewBackend(c config.Config, chainName, network string, tx config.TerraTxParams) (chain.Backend, error) {
	switch chainName {
	case consts.ChainSolana:
		return solana.New(c.SolanaConf.ToOptions(network, c.TimeConf)), nil
	case consts.ChainTerra:
		return terra.New(c.TerraConf.ToOptions(network, c.TimeConf, tx))
	default:
		return nil, fmt.Errorf("%w: %q (supported: %s, %s)", chain.ErrUnknownChain, chainName, consts.ChainSolana, consts.ChainTerra)
	}
}

// PipelineOptions 将已启用的基础设施接入流水线
func (ctx *ServiceContext) PipelineOptions() []pipeline.Option {
	opts := []pipeline.Option{pipeline.WithNetwork(ctx.Network)}
	if ctx.EventSink != nil {
		opts = append(opts, pipeline.WithEventSink(ctx.EventSink))
	}
	if ctx.Locker != nil {
		opts = append(opts, pipeline.WithLocker(ctx.Locker))
	}
	return opts
}

// Close 关闭服务上下文中的资源
func (ctx *ServiceContext) Close() {
	if ctx.Producer != nil {
		ctx.Producer.Flush(5000)
		ctx.Producer.Close()
	}
	if ctx.Redis != nil {
		_ = ctx.Redis.Close()
	}
}
