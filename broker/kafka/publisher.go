package kafka

import (
	"chat-relay/contract"
	"chat-relay/errors"
	"context"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"
)

var _ contract.Publisher = (*Publisher)(nil)

type Publisher struct {
	client *kgo.Client
	log    *slog.Logger
}

// Publish produces one record keyed by sender and waits for the broker
// acknowledgement. ctx is the only bound on the wait besides the
// client's own delivery timeout.
func (p *Publisher) Publish(ctx context.Context, key string, value []byte) error {
	if key == "" {
		return errors.ErrEmptySender
	}
	if value == nil {
		value = []byte{}
	}
	record := &kgo.Record{Key: []byte(key), Value: value}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		p.log.Debug("Produce failed", "error", err)
		return err
	}
	return nil
}

func (p *Publisher) Close() error {
	p.client.Close()
	return nil
}
