package mq

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"multisend/pkg/logger"
)

const (
	defaultBatchSize   = 32 * 1024
	defaultLingerMs    = 5
	defaultPartitions  = 3
	defaultSendTimeout = 5 * time.Second
)

// KafkaOption Kafka 事件投递配置
type KafkaOption struct {
	Brokers     string // 多个用英文逗号分隔
	Topic       string
	Partitions  int
	BatchSize   int
	LingerMs    int
	CreateTopic bool // topic 不存在时创建
	SendTimeout time.Duration
}

func (o KafkaOption) withDefaults() KafkaOption {
	if o.Partitions <= 0 {
		o.Partitions = defaultPartitions
	}
	if o.BatchSize <= 0 {
		o.BatchSize = defaultBatchSize
	}
	if o.LingerMs < 0 {
		o.LingerMs = defaultLingerMs
	}
	if o.SendTimeout <= 0 {
		o.SendTimeout = defaultSendTimeout
	}
	return o
}

// NewKafkaProducer 创建 Kafka 生产者，必要时先创建事件 topic
func NewKafkaProducer(opt KafkaOption) (*kafka.Producer, error) {
	opt = opt.withDefaults()
	if opt.Brokers == "" {
		return nil, fmt.Errorf("kafka brokers not configured")
	}
	if opt.CreateTopic {
		if err := ensureTopic(opt); err != nil {
			return nil, err
		}
	}

	host, _ := os.Hostname()
	producer, err := kafka.NewProducer(&kafka.ConfigMap{
		// 基础连接
		"bootstrap.servers": opt.Brokers,
		"client.id":         fmt.Sprintf("multisend-%s", host),

		// 可靠性保障
		"acks":                                  "all",
		"enable.idempotence":                    true,
		"max.in.flight.requests.per.connection": 5, // 幂等场景下最大值为 5

		// 超时与重试
		"delivery.timeout.ms": 30000,
		"request.timeout.ms":  30000,
		"retries":             5,
		"retry.backoff.ms":    100,

		// 事件量很小，批处理只影响延迟
		"batch.size":       opt.BatchSize,
		"linger.ms":        opt.LingerMs,
		"compression.type": "none",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create producer: %w", err)
	}
	return producer, nil
}

func ensureTopic(opt KafkaOption) error {
	adminClient, err := kafka.NewAdminClient(&kafka.ConfigMap{
		"bootstrap.servers": opt.Brokers,
	})
	if err != nil {
		return fmt.Errorf("failed to create admin client: %w", err)
	}
	defer adminClient.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	meta, err := adminClient.GetMetadata(&opt.Topic, false, 10000)
	if err != nil {
		return fmt.Errorf("failed to get metadata: %w", err)
	}
	if t, ok := meta.Topics[opt.Topic]; ok && t.Error.Code() == kafka.ErrNoError {
		return nil
	}

	replicationFactor := 1
	if len(meta.Brokers) > 1 {
		replicationFactor = 2
	}
	logger.Infof("[mq] creating topic %s partitions=%d replication=%d", opt.Topic, opt.Partitions, replicationFactor)

	results, err := adminClient.CreateTopics(ctx, []kafka.TopicSpecification{{
		Topic:             opt.Topic,
		NumPartitions:     opt.Partitions,
		ReplicationFactor: replicationFactor,
	}})
	if err != nil {
		return fmt.Errorf("failed to create topics: %w", err)
	}
	for _, result := range results {
		code := result.Error.Code()
		if code != kafka.ErrNoError && code != kafka.ErrTopicAlreadyExists {
			return fmt.Errorf("failed to create topic %s: %w", result.Topic, result.Error)
		}
	}
	return nil
}
