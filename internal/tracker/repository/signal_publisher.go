package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"prism-insight/internal/tracker/dto"
	"prism-insight/pkg/logger"

	"github.com/IBM/sarama"
	goRedis "github.com/redis/go-redis/v9"
)

const defaultSignalStreamMaxLen = 10000

type redisSignalPublisher struct {
	client *goRedis.Client
	stream string
	maxLen int64
	log    *logger.Logger
}

// NewRedisSignalPublisher appends signals to a Redis stream trimmed to about
// maxLen entries. A non-positive maxLen uses the default.
func NewRedisSignalPublisher(client *goRedis.Client, stream string, maxLen int64, log *logger.Logger) SignalPublisher {
	if maxLen <= 0 {
		maxLen = defaultSignalStreamMaxLen
	}
	return &redisSignalPublisher{client: client, stream: stream, maxLen: maxLen, log: log}
}

func (p *redisSignalPublisher) Publish(ctx context.Context, signal dto.TradingSignal) error {
	payload, err := json.Marshal(signal)
	if err != nil {
		return fmt.Errorf("failed to marshal signal: %w", err)
	}

	id, err := p.client.XAdd(ctx, &goRedis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]interface{}{"data": string(payload)},
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to add signal to stream %s: %w", p.stream, err)
	}

	p.log.DebugContext(ctx, "Trading signal published",
		logger.StringField("stream", p.stream), logger.StringField("message_id", id),
		logger.StringField("type", string(signal.Type)), logger.StringField("ticker", signal.Ticker))
	return nil
}

// Close is a no-op; the Redis client is owned by the caller.
func (p *redisSignalPublisher) Close() error {
	return nil
}

type kafkaSignalPublisher struct {
	producer sarama.SyncProducer
	topic    string
	log      *logger.Logger
}

// NewKafkaSignalPublisher connects a synchronous producer to brokers.
func NewKafkaSignalPublisher(brokers []string, topic string, log *logger.Logger) (SignalPublisher, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka publisher needs at least one broker")
	}
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 3
	cfg.Version = sarama.V2_8_0_0

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	return NewKafkaSignalPublisherWithProducer(producer, topic, log), nil
}

// NewKafkaSignalPublisherWithProducer wraps an existing producer.
func NewKafkaSignalPublisherWithProducer(producer sarama.SyncProducer, topic string, log *logger.Logger) SignalPublisher {
	return &kafkaSignalPublisher{producer: producer, topic: topic, log: log}
}

func (p *kafkaSignalPublisher) Publish(ctx context.Context, signal dto.TradingSignal) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(signal)
	if err != nil {
		return fmt.Errorf("failed to marshal signal: %w", err)
	}

	partition, offset, err := p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(signal.Ticker),
		Value: sarama.ByteEncoder(payload),
		Headers: []sarama.RecordHeader{
			{Key: []byte("type"), Value: []byte(signal.Type)},
			{Key: []byte("source"), Value: []byte(signal.Source)},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to send signal to topic %s: %w", p.topic, err)
	}

	p.log.DebugContext(ctx, "Trading signal published",
		logger.StringField("topic", p.topic), logger.IntField("partition", int(partition)),
		logger.Field("offset", offset), logger.StringField("ticker", signal.Ticker))
	return nil
}

func (p *kafkaSignalPublisher) Close() error {
	return p.producer.Close()
}

type noopSignalPublisher struct{}

// NewNoopSignalPublisher returns a publisher that drops every signal.
func NewNoopSignalPublisher() SignalPublisher {
	return noopSignalPublisher{}
}

func (noopSignalPublisher) Publish(context.Context, dto.TradingSignal) error { return nil }

func (noopSignalPublisher) Close() error { return nil }
