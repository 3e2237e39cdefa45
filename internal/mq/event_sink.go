package mq

import (
	"context"
	"fmt"
	"time"

	"multisend/internal/logic/core"
	"multisend/internal/utils"
)

// KafkaEventSink 将生命周期事件 borsh 编码后投递到单个 topic
type KafkaEventSink struct {
	producer   Producer
	topic      string
	partitions int
	timeout    time.Duration
}

// NewKafkaEventSink producer 由调用方持有并负责关闭
func NewKafkaEventSink(producer Producer, opt KafkaOption) *KafkaEventSink {
	opt = opt.withDefaults()
	return &KafkaEventSink{
		producer:   producer,
		topic:      opt.Topic,
		partitions: opt.Partitions,
		timeout:    opt.SendTimeout,
	}
}

// BuildJob 编码事件并按 (chain, address) 选择分区
func (s *KafkaEventSink) BuildJob(ev *core.Event) (*KafkaJob, error) {
	value, err := utils.EncodeEvent(ev.Kind, ev)
	if err != nil {
		return nil, err
	}
	key := ev.PartitionKey()
	return &KafkaJob{
		Topic:     s.topic,
		Partition: utils.PartitionFor(key, s.partitions),
		Key:       key,
		Value:     value,
	}, nil
}

// Publish 同步等待 ack
func (s *KafkaEventSink) Publish(ctx context.Context, ev *core.Event) error {
	job, err := s.BuildJob(ev)
	if err != nil {
		return err
	}
	_, failed := SendKafkaJobs(ctx, s.producer, []*KafkaJob{job}, s.timeout)
	if len(failed) > 0 {
		return fmt.Errorf("publish %s event to %s: %w", core.EventKind(ev.Kind), s.topic, failed[0].Err)
	}
	return nil
}
