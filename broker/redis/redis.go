// Package redis connects chat sessions through Redis pub/sub.
//
// Redis channels deliver every message to every connected subscriber, so a
// group id needs no server side state: it only names the connection.
// Records travel as a msgpack envelope since a pub/sub message has no key.
package redis

import (
	"chat-relay/contract"
	"chat-relay/errors"
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
)

var (
	_ contract.Broker     = (*Broker)(nil)
	_ contract.Publisher  = (*Publisher)(nil)
	_ contract.Subscriber = (*Subscriber)(nil)
)

// envelope keeps absent and empty fields apart.
type envelope struct {
	Key   *string `msgpack:"k"`
	Value *[]byte `msgpack:"v"`
}

func encode(key string, value []byte) ([]byte, error) {
	if value == nil {
		value = []byte{}
	}
	return msgpack.Marshal(envelope{Key: &key, Value: &value})
}

func decode(payload string) (contract.Record, error) {
	var env envelope
	if err := msgpack.Unmarshal([]byte(payload), &env); err != nil {
		return contract.Record{}, fmt.Errorf("%w: %w", errors.ErrMalformedMessage, err)
	}
	var record contract.Record
	if env.Key != nil {
		record.Key = []byte(*env.Key)
	}
	if env.Value != nil {
		record.Value = *env.Value
		if record.Value == nil {
			record.Value = []byte{}
		}
	}
	return record, nil
}

type Broker struct {
	log  *slog.Logger
	addr string
}

func NewBroker(log *slog.Logger, addr string) *Broker {
	return &Broker{log: log, addr: addr}
}

func (b *Broker) Name() string { return "Redis" }

// options leave socket reads and writes without deadline: a publish waits
// for the server as long as it takes and only ctx can bound a call.
func (b *Broker) options(name string) *redis.Options {
	return &redis.Options{
		Addr:                  b.addr,
		ClientName:            name,
		ReadTimeout:           -1,
		WriteTimeout:          -1,
		ContextTimeoutEnabled: true,
	}
}

func (b *Broker) connect(ctx context.Context, name string) (*redis.Client, error) {
	client := redis.NewClient(b.options(name))
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(errors.ErrStartup, fmt.Errorf("redis at %s: %w", b.addr, err))
	}
	return client, nil
}

func (b *Broker) NewPublisher(ctx context.Context, topic string) (contract.Publisher, error) {
	client, err := b.connect(ctx, "")
	if err != nil {
		return nil, err
	}
	return &Publisher{client: client, topic: topic}, nil
}

// Subscribe waits for the subscription to be confirmed so that nothing
// published after it returns is missed.
func (b *Broker) Subscribe(ctx context.Context, topic, group string) (contract.Subscriber, error) {
	client, err := b.connect(ctx, group)
	if err != nil {
		return nil, err
	}
	pubsub := client.Subscribe(ctx, topic)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		_ = client.Close()
		return nil, errors.Wrap(errors.ErrStartup, fmt.Errorf("subscribe to %s: %w", topic, err))
	}
	b.log.Debug("Subscribed", "topic", topic, "group", group)
	return &Subscriber{client: client, pubsub: pubsub}, nil
}

type Publisher struct {
	client *redis.Client
	topic  string
}

// Publish returns once Redis accepted the message. Redis reports how many
// subscribers got it; zero is not an error.
func (p *Publisher) Publish(ctx context.Context, key string, value []byte) error {
	if key == "" {
		return errors.ErrEmptySender
	}
	payload, err := encode(key, value)
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, p.topic, payload).Err()
}

func (p *Publisher) Close() error {
	return p.client.Close()
}

type Subscriber struct {
	client *redis.Client
	pubsub *redis.PubSub
}

func (s *Subscriber) Recv(ctx context.Context) (contract.Record, error) {
	msg, err := s.pubsub.ReceiveMessage(ctx)
	if err != nil {
		if err == redis.ErrClosed {
			return contract.Record{}, errors.ErrClosed
		}
		return contract.Record{}, err
	}
	return decode(msg.Payload)
}

func (s *Subscriber) Close() error {
	err := s.pubsub.Close()
	if cerr := s.client.Close(); err == nil {
		err = cerr
	}
	return err
}
