package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	zmq "github.com/pebbe/zmq4"

	"github.com/bardlex/poolsim/internal/simulator"
	"github.com/bardlex/poolsim/pkg/errors"
	"github.com/bardlex/poolsim/pkg/log"
)

// ZMQPublisher broadcasts block events and results on a PUB socket as
// two-frame messages: topic, then JSON.
type ZMQPublisher struct {
	mu       sync.Mutex
	socket   *zmq.Socket
	endpoint string
	logger   *log.Logger
}

// NewZMQPublisher binds a PUB socket to endpoint.
func NewZMQPublisher(endpoint string, logger *log.Logger) (*ZMQPublisher, error) {
	socket, err := zmq.NewSocket(zmq.PUB)
	if err != nil {
		return nil, fmt.Errorf("failed to create ZMQ socket: %w", err)
	}

	if err := socket.Bind(endpoint); err != nil {
		_ = socket.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeNetwork, "zmq_bind",
			"failed to bind ZMQ endpoint").
			WithContext("endpoint", endpoint)
	}

	logger = logger.WithComponent("zmq")
	logger.Info("bound ZMQ publisher", "endpoint", endpoint)

	return &ZMQPublisher{
		socket:   socket,
		endpoint: endpoint,
		logger:   logger,
	}, nil
}

// Publish sends one message on topic.
func (z *ZMQPublisher) Publish(topic string, data []byte) error {
	z.mu.Lock()
	defer z.mu.Unlock()

	if z.socket == nil {
		return errors.New(errors.ErrorTypeNetwork, "zmq_send", "publisher is closed")
	}
	if _, err := z.socket.SendMessage(topic, data); err != nil {
		return errors.Wrap(err, errors.ErrorTypeNetwork, "zmq_send",
			"failed to send ZMQ message").
			WithContext("topic", topic)
	}

	z.logger.Debug("published ZMQ message", "topic", topic, "size", len(data))
	return nil
}

// Name implements simulator.Recorder.
func (z *ZMQPublisher) Name() string { return "zmq" }

// RecordBlock implements simulator.Recorder.
func (z *ZMQPublisher) RecordBlock(_ context.Context, ev simulator.BlockEvent) error {
	data, err := json.Marshal(NewBlockMessage(ev))
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "marshal_block", "failed to encode block event")
	}
	return z.Publish(ZMQTopicBlock, data)
}

// RecordResult implements simulator.Recorder.
func (z *ZMQPublisher) RecordResult(_ context.Context, result *simulator.Result) error {
	data, err := json.Marshal(result)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "marshal_result", "failed to encode result")
	}
	return z.Publish(ZMQTopicResult, data)
}

// Close closes the ZMQ socket
func (z *ZMQPublisher) Close() error {
	z.mu.Lock()
	defer z.mu.Unlock()

	if z.socket == nil {
		return nil
	}
	err := z.socket.Close()
	z.socket = nil
	return err
}

// ZMQSubscriber receives what a ZMQPublisher sends.
type ZMQSubscriber struct {
	socket   *zmq.Socket
	endpoint string
	logger   *log.Logger
}

// NewZMQSubscriber creates a SUB socket for endpoint.
func NewZMQSubscriber(endpoint string, logger *log.Logger) (*ZMQSubscriber, error) {
	socket, err := zmq.NewSocket(zmq.SUB)
	if err != nil {
		return nil, fmt.Errorf("failed to create ZMQ socket: %w", err)
	}

	return &ZMQSubscriber{
		socket:   socket,
		endpoint: endpoint,
		logger:   logger.WithComponent("zmq"),
	}, nil
}

// Subscribe subscribes to a specific topic; the empty topic matches all.
func (z *ZMQSubscriber) Subscribe(topic string) error {
	if err := z.socket.SetSubscribe(topic); err != nil {
		return fmt.Errorf("failed to subscribe to topic %s: %w", topic, err)
	}
	z.logger.Info("subscribed to ZMQ topic", "topic", topic)
	return nil
}

// Connect connects to the ZMQ endpoint
func (z *ZMQSubscriber) Connect() error {
	if err := z.socket.Connect(z.endpoint); err != nil {
		return fmt.Errorf("failed to connect to ZMQ endpoint %s: %w", z.endpoint, err)
	}
	z.logger.Info("connected to ZMQ endpoint", "endpoint", z.endpoint)
	return nil
}

// Listen delivers messages to handler until ctx is done.
func (z *ZMQSubscriber) Listen(ctx context.Context, handler func(topic string, data []byte) error) error {
	poller := zmq.NewPoller()
	poller.Add(z.socket, zmq.POLLIN)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		polled, err := poller.Poll(50 * time.Millisecond)
		if err != nil {
			return fmt.Errorf("failed to poll ZMQ socket: %w", err)
		}
		if len(polled) == 0 {
			continue
		}

		msg, err := z.socket.RecvMessageBytes(0)
		if err != nil {
			z.logger.Error("failed to receive ZMQ message", "error", err)
			continue
		}
		if len(msg) < 2 {
			z.logger.Warn("received malformed ZMQ message", "parts", len(msg))
			continue
		}

		topic := string(msg[0])
		if err := handler(topic, msg[1]); err != nil {
			z.logger.Error("failed to handle ZMQ message", "topic", topic, "error", err)
		}
	}
}

// Close closes the ZMQ socket
func (z *ZMQSubscriber) Close() error {
	if z.socket == nil {
		return nil
	}
	err := z.socket.Close()
	z.socket = nil
	return err
}
