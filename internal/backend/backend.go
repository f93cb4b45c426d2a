// Package backend provides the durable key-value store and publish/subscribe
// channel the control plane publishes manifests through.
package backend

import (
	"context"
	"errors"
)

// ErrKeyNotFound is returned by Get when nothing is stored under a key.
var ErrKeyNotFound = errors.New("key not found")

// Backend is durable storage plus a reload channel.
//
// Put must be all-or-nothing: a reader sees either the previous value or the
// new one. Publish returns the number of subscribers the message was handed
// to, which is not an acknowledgement that any of them processed it.
type Backend interface {
	Put(ctx context.Context, key string, value []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Publish(ctx context.Context, channel, payload string) (int64, error)
	Subscribe(ctx context.Context, channel string) (Subscription, error)
	Ping(ctx context.Context) error
	Close() error
}

// Subscription delivers payloads published on one channel. Messages is
// closed after Close or when the backend connection ends.
type Subscription interface {
	Messages() <-chan string
	Close() error
}
