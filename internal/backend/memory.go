package backend

import (
	"context"
	"errors"
	"sync"
)

var errClosed = errors.New("backend closed")

// Memory is an in-process Backend for tests and single-process development.
type Memory struct {
	mu     sync.Mutex
	data   map[string][]byte
	subs   map[string]map[*memorySubscription]struct{}
	closed bool
}

// NewMemory creates an empty Memory backend.
func NewMemory() *Memory {
	return &Memory{
		data: make(map[string][]byte),
		subs: make(map[string]map[*memorySubscription]struct{}),
	}
}

func (m *Memory) Put(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	stored := make([]byte, len(value))
	copy(stored, value)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errClosed
	}
	m.data[key] = stored
	return nil
}

func (m *Memory) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, errClosed
	}
	v, ok := m.data[key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

// Publish hands payload to every subscriber of channel. A subscriber whose
// buffer is full already has a signal pending, so the new one is dropped
// but still counted, as Redis counts receivers regardless of their backlog.
func (m *Memory) Publish(ctx context.Context, channel, payload string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, errClosed
	}
	var n int64
	for sub := range m.subs[channel] {
		select {
		case sub.ch <- payload:
		default:
		}
		n++
	}
	return n, nil
}

func (m *Memory) Subscribe(ctx context.Context, channel string) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, errClosed
	}
	sub := &memorySubscription{m: m, channel: channel, ch: make(chan string, 16)}
	if m.subs[channel] == nil {
		m.subs[channel] = make(map[*memorySubscription]struct{})
	}
	m.subs[channel][sub] = struct{}{}
	return sub, nil
}

func (m *Memory) Ping(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errClosed
	}
	return ctx.Err()
}

// Close ends every subscription.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	for _, subs := range m.subs {
		for sub := range subs {
			close(sub.ch)
		}
	}
	m.subs = nil
	return nil
}

type memorySubscription struct {
	m       *Memory
	channel string
	ch      chan string
}

func (s *memorySubscription) Messages() <-chan string { return s.ch }

func (s *memorySubscription) Close() error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	subs, ok := s.m.subs[s.channel]
	if !ok {
		return nil
	}
	if _, ok := subs[s]; ok {
		delete(subs, s)
		close(s.ch)
	}
	return nil
}
