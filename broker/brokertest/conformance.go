// Package brokertest checks that a contract.Broker gives every session the
// whole stream. It is shared by the broker adapters' tests.
package brokertest

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kelseyhightower/envconfig"
	"github.com/stretchr/testify/require"
)

const warmUpInterval = 200 * time.Millisecond

// Config points integration tests at real brokers. Empty addresses skip them.
type Config struct {
	KafkaAddr string        `envconfig:"CHAT_IT_KAFKA_ADDR"`
	RedisAddr string        `envconfig:"CHAT_IT_REDIS_ADDR"`
	Topic     string        `envconfig:"CHAT_IT_TOPIC" default:"chat-it"`
	Timeout   time.Duration `envconfig:"CHAT_IT_TIMEOUT" default:"30s"`
}

func LoadConfig(t *testing.T) Config {
	t.Helper()
	var cfg Config
	require.NoError(t, envconfig.Process("", &cfg))
	return cfg
}

// Conformance subscribes two sessions with their own group, waits until
// both receive traffic, then checks a single record reaches both of them.
func Conformance(t *testing.T, broker contract.Broker, topic string, timeout time.Duration) {
	req := require.New(t)
	ctx, cancel := context.WithTimeout(context.Background(), timeout)

	publisher, err := broker.NewPublisher(ctx, topic)
	req.NoError(err)

	var subs []contract.Subscriber
	for range 2 {
		sub, err := broker.Subscribe(ctx, topic, domain.NewGroupID().String())
		req.NoError(err)
		subs = append(subs, sub)
	}

	var wg sync.WaitGroup
	streams := make([]chan contract.Record, len(subs))
	for i, sub := range subs {
		streams[i] = make(chan contract.Record)
		wg.Add(1)
		go func(sub contract.Subscriber, out chan<- contract.Record) {
			defer wg.Done()
			for {
				record, err := sub.Recv(ctx)
				if err != nil {
					return
				}
				select {
				case out <- record:
				case <-ctx.Done():
					return
				}
			}
		}(sub, streams[i])
	}
	defer func() {
		cancel()
		wg.Wait()
		for _, sub := range subs {
			_ = sub.Close()
		}
		_ = publisher.Close()
	}()

	// Given both subscriptions are live (a fresh group may need a moment
	// before it is assigned its partitions)
	ticker := time.NewTicker(warmUpInterval)
	defer ticker.Stop()
	ready := make([]bool, len(subs))
	for !ready[0] || !ready[1] {
		select {
		case <-ctx.Done():
			req.FailNow("subscriptions never became ready")
		case <-ticker.C:
			req.NoError(publisher.Publish(ctx, "warm-up", []byte("ping")))
		case <-streams[0]:
			ready[0] = true
		case <-streams[1]:
			ready[1] = true
		}
	}

	// When one record is published
	marker := uuid.NewString()
	req.NoError(publisher.Publish(ctx, "alice", []byte(marker)))

	// Then every subscription receives it
	for i := range subs {
		for {
			var record contract.Record
			select {
			case <-ctx.Done():
				req.FailNow("record not delivered", "subscription %d", i)
			case record = <-streams[i]:
			}
			if string(record.Key) == "alice" && string(record.Value) == marker {
				break
			}
		}
	}
}
