package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/sashu2310/streamgate/internal/backend"
	"github.com/sashu2310/streamgate/internal/manifest"
	"github.com/sashu2310/streamgate/internal/metrics"
	"github.com/sashu2310/streamgate/internal/store"
)

// Status tags a Result.
type Status string

const (
	// StatusPublished: stored and the reload signal was sent.
	StatusPublished Status = "published"
	// StatusDegraded: stored, but the reload signal failed. Subscribers
	// pick the manifest up on their next poll or manual reload.
	StatusDegraded Status = "degraded"
)

// Result is the outcome of a publish that reached durable storage.
type Result struct {
	ID                  string             `json:"id"`
	Status              Status             `json:"status"`
	Manifest            *manifest.Manifest `json:"manifest"`
	SubscribersNotified int64              `json:"subscribers_notified"`
	Fingerprint         string             `json:"fingerprint"`
	Changed             bool               `json:"changed"`
	NotifyError         string             `json:"notify_error,omitempty"`
	PublishedAt         time.Time          `json:"published_at"`
}

// Snapshotter provides a consistent copy of the stores.
type Snapshotter interface {
	Snapshot() store.Snapshot
}

// Options configure where and how manifests are published.
type Options struct {
	Key           string
	Channel       string
	ReloadToken   string
	StoreTimeout  time.Duration
	NotifyTimeout time.Duration
	// Now is used for manifest timestamps; defaults to time.Now.
	Now func() time.Time
}

// Service compiles, persists and announces manifests. Publishes are
// serialized; at most one is in flight at any time.
type Service struct {
	state   Snapshotter
	backend backend.Backend
	opts    Options

	mu   sync.Mutex
	last atomic.Pointer[Result]
}

// New creates a Service. Zero timeouts mean no deadline beyond ctx.
func New(state Snapshotter, b backend.Backend, opts Options) *Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{state: state, backend: b, opts: opts}
}

// Publish snapshots the stores, compiles a manifest, writes it under the
// configured key and only then sends the reload token.
//
// A *PersistenceError comes with a nil Result. A *NotificationError comes
// with a degraded Result: the manifest is stored even though nobody was told.
func (s *Service) Publish(ctx context.Context) (*Result, error) {
	// Once started, a publish runs to completion even if the caller goes
	// away; StoreTimeout and NotifyTimeout are its only deadlines.
	ctx = context.WithoutCancel(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	defer func() {
		metrics.PublishDuration.Observe(float64(time.Since(start).Milliseconds()))
	}()

	snap := s.state.Snapshot()
	m := manifest.CompileAt(snap.Rules, snap.Outputs, snap.BatchSize, s.opts.Now())
	if err := m.Validate(); err != nil {
		metrics.Publishes.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("compile: %w", err)
	}
	data, err := manifest.Encode(m)
	if err != nil {
		metrics.Publishes.WithLabelValues("failed").Inc()
		return nil, err
	}
	fp, err := manifest.Fingerprint(m)
	if err != nil {
		metrics.Publishes.WithLabelValues("failed").Inc()
		return nil, err
	}

	id := uuid.New().String()
	if err := s.put(ctx, data); err != nil {
		metrics.Publishes.WithLabelValues("failed").Inc()
		slog.Error("publish failed: manifest not persisted", "publication_id", id, "key", s.opts.Key, "err", err)
		return nil, &PersistenceError{Key: s.opts.Key, Err: err}
	}

	res := &Result{
		ID:          id,
		Status:      StatusPublished,
		Manifest:    m,
		Fingerprint: fp,
		PublishedAt: time.Now().UTC(),
	}
	if prev := s.last.Load(); prev == nil || prev.Fingerprint != fp {
		res.Changed = true
	}

	n, err := s.notify(ctx)
	if err != nil {
		res.Status = StatusDegraded
		res.NotifyError = err.Error()
		s.last.Store(res)
		metrics.Publishes.WithLabelValues(string(StatusDegraded)).Inc()
		metrics.SubscribersNotified.Set(0)
		slog.Warn("publish degraded: manifest persisted, reload signal failed",
			"publication_id", id, "fingerprint", fp, "channel", s.opts.Channel, "err", err)
		return res, &NotificationError{Channel: s.opts.Channel, Err: err}
	}

	res.SubscribersNotified = n
	s.last.Store(res)
	metrics.Publishes.WithLabelValues(string(StatusPublished)).Inc()
	metrics.SubscribersNotified.Set(float64(n))
	slog.Info("manifest published",
		"publication_id", id,
		"fingerprint", fp,
		"changed", res.Changed,
		"processors", len(snap.Rules),
		"outputs", len(snap.Outputs),
		"batch_size", snap.BatchSize,
		"subscribers_notified", n,
	)
	return res, nil
}

// Last returns the most recent publish that reached storage, or nil.
func (s *Service) Last() *Result {
	return s.last.Load()
}

// Current reads the manifest agents would fetch right now.
func (s *Service) Current(ctx context.Context) (*manifest.Manifest, error) {
	ctx, cancel := withTimeout(ctx, s.opts.StoreTimeout)
	defer cancel()
	data, err := s.backend.Get(ctx, s.opts.Key)
	if errors.Is(err, backend.ErrKeyNotFound) {
		return nil, ErrNotPublished
	}
	if err != nil {
		return nil, &PersistenceError{Key: s.opts.Key, Err: err}
	}
	return manifest.Decode(data)
}

func (s *Service) put(ctx context.Context, data []byte) error {
	ctx, cancel := withTimeout(ctx, s.opts.StoreTimeout)
	defer cancel()
	return s.backend.Put(ctx, s.opts.Key, data)
}

func (s *Service) notify(ctx context.Context) (int64, error) {
	ctx, cancel := withTimeout(ctx, s.opts.NotifyTimeout)
	defer cancel()
	return s.backend.Publish(ctx, s.opts.Channel, s.opts.ReloadToken)
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
