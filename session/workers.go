package session

import (
	"chat-relay/contract"
	"context"
	"log/slog"
)

var (
	_ contract.Worker = (*InputWorker)(nil)
	_ contract.Worker = (*InboundWorker)(nil)
)

type inputEvent struct {
	line string
	err  error
}

type inboundEvent struct {
	record contract.Record
	err    error
}

// InputWorker turns blocking line reads into events for the session loop.
// The send is unbuffered: while the loop is busy (e.g. waiting on a publish)
// the worker does not read further and keystrokes stay in the terminal.
type InputWorker struct {
	reader contract.LineReader
	events chan<- inputEvent
}

func NewInputWorker(reader contract.LineReader, events chan<- inputEvent) *InputWorker {
	return &InputWorker{reader: reader, events: events}
}

func (w *InputWorker) Run(ctx context.Context) error {
	for {
		line, err := w.reader.ReadLine()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case w.events <- inputEvent{line: line, err: err}:
		}
		if err != nil {
			return nil
		}
	}
}

// InboundWorker pulls records from the subscription, one at a time.
type InboundWorker struct {
	subscriber contract.Subscriber
	events     chan<- inboundEvent
}

func NewInboundWorker(subscriber contract.Subscriber, events chan<- inboundEvent) *InboundWorker {
	return &InboundWorker{subscriber: subscriber, events: events}
}

func (w *InboundWorker) Run(ctx context.Context) error {
	for {
		record, err := w.subscriber.Recv(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case w.events <- inboundEvent{record: record, err: err}:
		}
		if err != nil {
			return nil
		}
	}
}

// start runs a worker in its own goroutine. There is no restart: a worker
// ends by handing its last error to the loop, which then terminates.
func start(ctx context.Context, log *slog.Logger, worker contract.Worker) {
	name := contract.GetWorkerName(worker)
	go func() {
		if err := worker.Run(ctx); err != nil && ctx.Err() == nil {
			log.Warn("Worker stopped", "name", name, "error", err)
			return
		}
		log.Debug("Worker finished", "name", name)
	}()
}
