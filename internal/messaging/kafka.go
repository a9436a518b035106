// Package messaging publishes simulation output over Kafka and ZeroMQ.
package messaging

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"google.golang.org/protobuf/proto"

	"github.com/bardlex/poolsim/internal/simulator"
	"github.com/bardlex/poolsim/pkg/circuit"
	"github.com/bardlex/poolsim/pkg/errors"
	"github.com/bardlex/poolsim/pkg/log"
	"github.com/bardlex/poolsim/pkg/retry"
)

// KafkaClient wraps kafka-go producers with protobuf support and connection pooling
type KafkaClient struct {
	brokers        []string
	logger         *log.Logger
	writers        map[string]*kafka.Writer
	writersMu      sync.RWMutex
	circuitBreaker *circuit.Breaker
	retryConfig    *retry.Config
}

// NewKafkaClient creates a new Kafka client
func NewKafkaClient(brokers []string, logger *log.Logger) *KafkaClient {
	cbConfig := &circuit.Config{
		MaxFailures:     5,
		SuccessRequired: 3,
		Timeout:         15 * time.Second,
		ResetTimeout:    60 * time.Second,
	}

	return &KafkaClient{
		brokers:        brokers,
		logger:         logger.WithComponent("kafka"),
		writers:        make(map[string]*kafka.Writer),
		circuitBreaker: circuit.New("kafka", cbConfig),
		retryConfig:    retry.ExportConfig(),
	}
}

// GetProducer gets or creates a Kafka producer for a topic (with connection pooling)
func (k *KafkaClient) GetProducer(topic string) *kafka.Writer {
	k.writersMu.RLock()
	if writer, exists := k.writers[topic]; exists {
		k.writersMu.RUnlock()
		return writer
	}
	k.writersMu.RUnlock()

	k.writersMu.Lock()
	defer k.writersMu.Unlock()

	// Double-check after acquiring write lock
	if writer, exists := k.writers[topic]; exists {
		return writer
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(k.brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        false,
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		Compression:  kafka.Snappy,
	}

	k.writers[topic] = writer
	k.logger.Info("created Kafka producer", "topic", topic)
	return writer
}

// PublishProto publishes a protobuf message to Kafka
func (k *KafkaClient) PublishProto(ctx context.Context, topic, key string, msg proto.Message) error {
	data, err := proto.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "protobuf_marshal",
			"failed to marshal protobuf message").
			WithContext("topic", topic).
			WithContext("key", key)
	}

	return k.publish(ctx, "publish_message", topic, key, data)
}

// PublishJSON publishes a JSON message to Kafka
func (k *KafkaClient) PublishJSON(ctx context.Context, topic, key string, data []byte) error {
	return k.publish(ctx, "publish_json", topic, key, data)
}

func (k *KafkaClient) publish(ctx context.Context, operation, topic, key string, data []byte) error {
	return k.circuitBreaker.Execute(ctx, func() error {
		return retry.Do(ctx, k.retryConfig, func() error {
			writer := k.GetProducer(topic)
			kafkaMsg := kafka.Message{
				Key:   []byte(key),
				Value: data,
				Time:  time.Now(),
			}

			if err := writer.WriteMessages(ctx, kafkaMsg); err != nil {
				return errors.Wrap(err, errors.ErrorTypeKafka, operation,
					"failed to publish message to Kafka").
					WithContext("topic", topic).
					WithContext("key", key).
					WithContext("message_size", len(data))
			}

			k.logger.Debug("published message", "topic", topic, "key", key, "size", len(data))
			return nil
		})
	})
}

// Close closes all producers
func (k *KafkaClient) Close() error {
	k.writersMu.Lock()
	defer k.writersMu.Unlock()

	var lastErr error

	for topic, writer := range k.writers {
		if err := writer.Close(); err != nil {
			k.logger.Error("failed to close producer", "topic", topic, "error", err)
			lastErr = err
		}
	}

	k.writers = make(map[string]*kafka.Writer)
	return lastErr
}

// Publisher streams a run to Kafka. Block events go to TopicBlocks as JSON
// keyed by pool; the result goes to TopicResults as a protobuf Struct
// keyed by experiment.
type Publisher struct {
	client *KafkaClient
}

// NewPublisher creates a Kafka recorder over client.
func NewPublisher(client *KafkaClient) *Publisher {
	return &Publisher{client: client}
}

// Name implements simulator.Recorder.
func (p *Publisher) Name() string { return "kafka" }

// RecordBlock implements simulator.Recorder.
func (p *Publisher) RecordBlock(ctx context.Context, ev simulator.BlockEvent) error {
	data, err := json.Marshal(NewBlockMessage(ev))
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "marshal_block", "failed to encode block event")
	}
	return p.client.PublishJSON(ctx, TopicBlocks, ev.Pool, data)
}

// RecordResult implements simulator.Recorder.
func (p *Publisher) RecordResult(ctx context.Context, result *simulator.Result) error {
	msg, err := ResultStruct(result)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "marshal_result", "failed to encode result")
	}
	return p.client.PublishProto(ctx, TopicResults, result.ExperimentID, msg)
}

// Close implements simulator.Recorder.
func (p *Publisher) Close() error {
	return p.client.Close()
}
