//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"
)

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// It is only used for logging when a worker stops.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// Record is a raw key/value pair as handed over by a broker.
// A nil Key or Value means the field was absent on the wire.
type Record struct {
	Key   []byte
	Value []byte
}

// Publisher sends keyed records to a single topic.
// Publish blocks until the broker acknowledged the record or failed.
type Publisher interface {
	Publish(ctx context.Context, key string, value []byte) error
	Close() error
}

// Subscriber is a live subscription bound to one delivery group.
// Recv blocks until the next record arrives.
type Subscriber interface {
	Recv(ctx context.Context) (Record, error)
	Close() error
}

// Broker opens publishers and subscriptions on a pub/sub service.
// Two subscriptions with different groups both receive every record.
type Broker interface {
	NewPublisher(ctx context.Context, topic string) (Publisher, error)
	Subscribe(ctx context.Context, topic, group string) (Subscriber, error)
	Name() string
}

// LineReader returns one line at a time without its line terminator.
// It returns io.EOF once the input is exhausted.
type LineReader interface {
	ReadLine() (string, error)
}
