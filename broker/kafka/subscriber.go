package kafka

import (
	"chat-relay/contract"
	"chat-relay/errors"
	"context"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

var _ contract.Subscriber = (*Subscriber)(nil)

// fetcher is the part of *kgo.Client the subscriber polls.
type fetcher interface {
	PollFetches(ctx context.Context) kgo.Fetches
	Close()
}

type Subscriber struct {
	client  fetcher
	log     *slog.Logger
	pending []*kgo.Record
}

// Recv hands out buffered records one at a time and polls when the buffer
// is empty. Retriable fetch errors (e.g. the topic is not created yet) are
// logged and polling goes on, anything else is returned.
func (s *Subscriber) Recv(ctx context.Context) (contract.Record, error) {
	for len(s.pending) == 0 {
		fetches := s.client.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return contract.Record{}, errors.ErrClosed
		}
		if err := ctx.Err(); err != nil {
			return contract.Record{}, err
		}
		for _, fetchErr := range fetches.Errors() {
			if kerr.IsRetriable(fetchErr.Err) {
				s.log.Warn("Retriable fetch error",
					"topic", fetchErr.Topic,
					"partition", fetchErr.Partition,
					"error", fetchErr.Err)
				continue
			}
			return contract.Record{}, fetchErr.Err
		}
		s.pending = append(s.pending, fetches.Records()...)
	}

	record := s.pending[0]
	s.pending[0] = nil
	s.pending = s.pending[1:]
	return contract.Record{Key: record.Key, Value: record.Value}, nil
}

func (s *Subscriber) Close() error {
	s.client.Close()
	return nil
}
