// Package pubsub holds an in-process ports.Notifier for single-instance runs
// and tests.
package pubsub

import (
	"context"
	"sync"
)

// Memory delivers published payloads to the subscribers of a topic inside
// this process. Publishing blocks until every live subscriber accepted the
// payload or went away.
type Memory struct {
	mu     sync.Mutex
	topics map[string]map[*subscriber]struct{}
}

type subscriber struct {
	ch   chan []byte
	done <-chan struct{}
}

func NewMemory() *Memory {
	return &Memory{topics: make(map[string]map[*subscriber]struct{})}
}

func (m *Memory) Publish(ctx context.Context, topic string, payload []byte) error {
	m.mu.Lock()
	subs := make([]*subscriber, 0, len(m.topics[topic]))
	for s := range m.topics[topic] {
		subs = append(subs, s)
	}
	m.mu.Unlock()

	for _, s := range subs {
		select {
		case s.ch <- payload:
		case <-s.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (m *Memory) Subscribe(ctx context.Context, topic string) (<-chan []byte, error) {
	s := &subscriber{ch: make(chan []byte, 16), done: ctx.Done()}

	m.mu.Lock()
	if m.topics[topic] == nil {
		m.topics[topic] = make(map[*subscriber]struct{})
	}
	m.topics[topic][s] = struct{}{}
	m.mu.Unlock()

	out := make(chan []byte)
	go func() {
		defer close(out)
		defer func() {
			m.mu.Lock()
			delete(m.topics[topic], s)
			if len(m.topics[topic]) == 0 {
				delete(m.topics, topic)
			}
			m.mu.Unlock()
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case p := <-s.ch:
				select {
				case out <- p:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Subscribers returns the number of live subscriptions on topic.
func (m *Memory) Subscribers(topic string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.topics[topic])
}
