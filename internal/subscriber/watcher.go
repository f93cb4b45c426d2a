// Package subscriber is the agent side of the reload protocol: it listens for
// reload signals and re-fetches the manifest from durable storage.
package subscriber

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sashu2310/streamgate/internal/backend"
	"github.com/sashu2310/streamgate/internal/manifest"
	"github.com/sashu2310/streamgate/internal/metrics"
)

// ErrSubscriptionClosed is returned by Run when the backend ends the subscription.
var ErrSubscriptionClosed = errors.New("subscription closed")

// Options name the storage key and reload channel to follow.
type Options struct {
	Key          string
	Channel      string
	FetchTimeout time.Duration
}

// Watcher keeps the latest manifest from storage. Signal payloads are
// ignored: any message means "fetch again".
type Watcher struct {
	backend backend.Backend
	opts    Options

	mu          sync.RWMutex
	current     *manifest.Manifest
	fingerprint string
	onChange    []func(*manifest.Manifest)
}

// NewWatcher creates a Watcher. Call Run to start following the channel.
func NewWatcher(b backend.Backend, opts Options) *Watcher {
	return &Watcher{backend: b, opts: opts}
}

// OnChange registers a callback invoked with every manifest whose content
// differs from the previous one.
func (w *Watcher) OnChange(fn func(*manifest.Manifest)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = append(w.onChange, fn)
}

// Current returns the last applied manifest, or nil before the first one.
func (w *Watcher) Current() *manifest.Manifest {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Run subscribes, performs the initial load, then reloads on every signal
// until ctx is done. Subscribing first means a publish racing with startup
// is either loaded initially or signalled afterwards.
func (w *Watcher) Run(ctx context.Context) error {
	sub, err := w.backend.Subscribe(ctx, w.opts.Channel)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", w.opts.Channel, err)
	}
	defer sub.Close()
	slog.Info("watching for manifest updates", "channel", w.opts.Channel, "key", w.opts.Key)

	w.reload(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case payload, ok := <-sub.Messages():
			if !ok {
				return ErrSubscriptionClosed
			}
			slog.Debug("reload signal received", "payload", payload)
			w.reload(ctx)
		}
	}
}

// Reload fetches and applies the stored manifest now. A missing key returns
// backend.ErrKeyNotFound and keeps the current manifest. A manifest older
// than the current one is ignored and the current one is returned.
func (w *Watcher) Reload(ctx context.Context) (*manifest.Manifest, error) {
	if w.opts.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.opts.FetchTimeout)
		defer cancel()
	}
	data, err := w.backend.Get(ctx, w.opts.Key)
	if err != nil {
		return nil, err
	}
	m, err := manifest.Decode(data)
	if err != nil {
		return nil, err
	}
	fp, err := manifest.Fingerprint(m)
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	// A slower concurrent reload must not roll back a newer manifest.
	if cur := w.current; cur != nil && m.Timestamp < cur.Timestamp {
		w.mu.Unlock()
		metrics.ManifestReloads.WithLabelValues("stale").Inc()
		slog.Debug("older manifest ignored", "fetched", m.Timestamp, "current", cur.Timestamp)
		return cur, nil
	}
	if fp == w.fingerprint {
		w.current = m
		w.mu.Unlock()
		metrics.ManifestReloads.WithLabelValues("unchanged").Inc()
		return m, nil
	}
	w.current = m
	w.fingerprint = fp
	callbacks := make([]func(*manifest.Manifest), len(w.onChange))
	copy(callbacks, w.onChange)
	w.mu.Unlock()

	metrics.ManifestReloads.WithLabelValues("applied").Inc()
	for _, fn := range callbacks {
		fn(m)
	}
	return m, nil
}

func (w *Watcher) reload(ctx context.Context) {
	m, err := w.Reload(ctx)
	switch {
	case errors.Is(err, backend.ErrKeyNotFound):
		metrics.ManifestReloads.WithLabelValues("missing").Inc()
		slog.Info("no manifest published yet; keeping current state", "key", w.opts.Key)
	case err != nil:
		metrics.ManifestReloads.WithLabelValues("rejected").Inc()
		slog.Warn("manifest reload failed; keeping current state", "key", w.opts.Key, "err", err)
	default:
		slog.Info("manifest loaded", "version", m.Version, "timestamp", m.Timestamp, "pipelines", len(m.Pipelines))
	}
}
