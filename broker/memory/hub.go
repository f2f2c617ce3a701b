// Package memory is an in-process pub/sub broker.
//
// It follows consumer group semantics: every group receives every record
// published after it subscribed, and inside a group records are spread
// round-robin over its members. Queues are unbounded.
package memory

import (
	"chat-relay/contract"
	"chat-relay/errors"
	"context"
	"sync"

	"github.com/samber/lo"
)

var (
	_ contract.Broker     = (*Hub)(nil)
	_ contract.Publisher  = (*Publisher)(nil)
	_ contract.Subscriber = (*Subscription)(nil)
)

type group struct {
	members []*Subscription
	next    int
}

type Hub struct {
	mu     sync.Mutex
	topics map[string]map[string]*group // topic -> group id -> members
	closed bool
}

func NewHub() *Hub {
	return &Hub{topics: make(map[string]map[string]*group)}
}

func (h *Hub) Name() string { return "Memory" }

func (h *Hub) NewPublisher(_ context.Context, topic string) (contract.Publisher, error) {
	return &Publisher{hub: h, topic: topic}, nil
}

func (h *Hub) Subscribe(_ context.Context, topic, groupID string) (contract.Subscriber, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, errors.ErrClosed
	}

	groups, ok := h.topics[topic]
	if !ok {
		groups = make(map[string]*group)
		h.topics[topic] = groups
	}
	g, ok := groups[groupID]
	if !ok {
		g = &group{}
		groups[groupID] = g
	}
	sub := &Subscription{hub: h, topic: topic, group: groupID, notify: make(chan struct{}, 1)}
	g.members = append(g.members, sub)
	return sub, nil
}

// Close makes every further publish fail and ends all subscriptions,
// the way an unreachable broker would.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for _, groups := range h.topics {
		for _, g := range groups {
			for _, sub := range g.members {
				sub.wake()
			}
		}
	}
}

func (h *Hub) publish(topic string, record contract.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return errors.ErrClosed
	}
	for _, g := range h.topics[topic] {
		if len(g.members) == 0 {
			continue
		}
		sub := g.members[g.next%len(g.members)]
		g.next++
		sub.queue = append(sub.queue, record)
		sub.wake()
	}
	return nil
}

func (h *Hub) unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	groups := h.topics[sub.topic]
	g, ok := groups[sub.group]
	if !ok {
		return
	}
	g.members = lo.Without(g.members, sub)
	if len(g.members) == 0 {
		delete(groups, sub.group)
	}
}

type Publisher struct {
	hub   *Hub
	topic string
}

// Publish copies key and value so later changes by the caller are not seen
// by subscribers.
func (p *Publisher) Publish(_ context.Context, key string, value []byte) error {
	if key == "" {
		return errors.ErrEmptySender
	}
	record := contract.Record{Key: []byte(key), Value: append([]byte{}, value...)}
	return p.hub.publish(p.topic, record)
}

func (p *Publisher) Close() error { return nil }

type Subscription struct {
	hub    *Hub
	topic  string
	group  string
	queue  []contract.Record // guarded by hub.mu
	notify chan struct{}
	closed bool // guarded by hub.mu
}

func (s *Subscription) wake() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *Subscription) Recv(ctx context.Context) (contract.Record, error) {
	for {
		s.hub.mu.Lock()
		if len(s.queue) > 0 {
			record := s.queue[0]
			s.queue = s.queue[1:]
			s.hub.mu.Unlock()
			return record, nil
		}
		closed := s.closed || s.hub.closed
		s.hub.mu.Unlock()
		if closed {
			return contract.Record{}, errors.ErrClosed
		}

		select {
		case <-ctx.Done():
			return contract.Record{}, ctx.Err()
		case <-s.notify:
		}
	}
}

func (s *Subscription) Close() error {
	s.hub.unsubscribe(s)
	s.hub.mu.Lock()
	s.closed = true
	s.hub.mu.Unlock()
	s.wake()
	return nil
}
