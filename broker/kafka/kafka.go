// Package kafka connects chat sessions through a Kafka cluster.
package kafka

import (
	"chat-relay/contract"
	"chat-relay/errors"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

var _ contract.Broker = (*Broker)(nil)

// DefaultDeliveryTimeout matches the message timeout of librdkafka based
// clients: a record not acknowledged by then is reported as failed.
const DefaultDeliveryTimeout = 5 * time.Minute

type Broker struct {
	log             *slog.Logger
	seeds           []string
	deliveryTimeout time.Duration
}

// NewBroker does not connect: clients are created by NewPublisher and
// Subscribe. A zero deliveryTimeout waits forever for acknowledgements.
func NewBroker(log *slog.Logger, deliveryTimeout time.Duration, seeds ...string) *Broker {
	return &Broker{log: log, seeds: seeds, deliveryTimeout: deliveryTimeout}
}

func (b *Broker) Name() string { return "Kafka" }

func (b *Broker) NewPublisher(ctx context.Context, topic string) (contract.Publisher, error) {
	opts := []kgo.Opt{
		kgo.SeedBrokers(b.seeds...),
		kgo.DefaultProduceTopic(topic),
		// Chat lines go out one by one, never wait for a batch to fill.
		kgo.ProducerLinger(0),
		kgo.WithLogger(newLogger(b.log)),
	}
	if b.deliveryTimeout > 0 {
		opts = append(opts, kgo.RecordDeliveryTimeout(b.deliveryTimeout))
	}
	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, errors.Wrap(errors.ErrStartup, fmt.Errorf("failed to create producer: %w", err))
	}
	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, errors.Wrap(errors.ErrStartup, fmt.Errorf("no broker reachable at %v: %w", b.seeds, err))
	}
	return &Publisher{client: client, log: b.log}, nil
}

// Subscribe joins a consumer group that starts at the end of the topic.
// With a fresh group id the session reads every record produced from now
// on and nothing from before. ctx bounds the first contact with the cluster.
func (b *Broker) Subscribe(ctx context.Context, topic, group string) (contract.Subscriber, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(b.seeds...),
		kgo.ConsumerGroup(group),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtEnd()),
		kgo.WithLogger(newLogger(b.log)),
	)
	if err != nil {
		return nil, errors.Wrap(errors.ErrStartup, fmt.Errorf("failed to create consumer: %w", err))
	}
	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, errors.Wrap(errors.ErrStartup, fmt.Errorf("no broker reachable at %v: %w", b.seeds, err))
	}
	b.log.Debug("Subscribed", "topic", topic, "group", group)
	return &Subscriber{client: client, log: b.log.With("group", group)}, nil
}
