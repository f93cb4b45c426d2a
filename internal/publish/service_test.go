package publish_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sashu2310/streamgate/internal/backend"
	"github.com/sashu2310/streamgate/internal/manifest"
	"github.com/sashu2310/streamgate/internal/publish"
	"github.com/sashu2310/streamgate/internal/store"
)

const (
	testKey     = "streamgate_config"
	testChannel = "streamgate_updates"
)

// faultyBackend fails Put or Publish on demand and records call order.
type faultyBackend struct {
	backend.Backend
	mu         sync.Mutex
	putErr     error
	publishErr error
	calls      []string
}

func (f *faultyBackend) Put(ctx context.Context, key string, value []byte) error {
	f.mu.Lock()
	f.calls = append(f.calls, "put")
	err := f.putErr
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.Backend.Put(ctx, key, value)
}

func (f *faultyBackend) Publish(ctx context.Context, channel, payload string) (int64, error) {
	f.mu.Lock()
	f.calls = append(f.calls, "publish")
	err := f.publishErr
	f.mu.Unlock()
	if err != nil {
		return 0, err
	}
	return f.Backend.Publish(ctx, channel, payload)
}

// blockingBackend never completes Put until ctx is done.
type blockingBackend struct {
	backend.Backend
}

func (b *blockingBackend) Put(ctx context.Context, _ string, _ []byte) error {
	<-ctx.Done()
	return ctx.Err()
}

// hangupBackend cancels the caller's context as soon as a Put succeeds and
// refuses to Publish on a done context, like a network client would.
type hangupBackend struct {
	backend.Backend
	cancel context.CancelFunc
}

func (h *hangupBackend) Put(ctx context.Context, key string, value []byte) error {
	if err := h.Backend.Put(ctx, key, value); err != nil {
		return err
	}
	h.cancel()
	return nil
}

func (h *hangupBackend) Publish(ctx context.Context, channel, payload string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return h.Backend.Publish(ctx, channel, payload)
}

func options() publish.Options {
	return publish.Options{
		Key:           testKey,
		Channel:       testChannel,
		ReloadToken:   "RELOAD",
		StoreTimeout:  time.Second,
		NotifyTimeout: time.Second,
	}
}

func seededState(t *testing.T) *store.State {
	t.Helper()
	st := store.NewState(100)
	_, err := st.AddRule(manifest.ProcessorRule{
		ID:     "r1",
		Type:   manifest.RuleFilter,
		Params: map[string]string{"key": "level", "value": "DEBUG"},
	})
	require.NoError(t, err)
	_, err = st.AddOutput(manifest.OutputTarget{Type: manifest.OutputHTTP, URL: "http://localhost:9000"})
	require.NoError(t, err)
	require.NoError(t, st.SetBatchSize(50))
	return st
}

func stored(t *testing.T, b backend.Backend) *manifest.Manifest {
	t.Helper()
	data, err := b.Get(context.Background(), testKey)
	require.NoError(t, err)
	m, err := manifest.Decode(data)
	require.NoError(t, err)
	return m
}

func TestPublishEndToEndRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	b := backend.NewRedis(backend.RedisOptions{Addr: mr.Addr()})
	defer b.Close()

	svc := publish.New(seededState(t), b, options())
	res, err := svc.Publish(context.Background())
	require.NoError(t, err)

	assert.Equal(t, publish.StatusPublished, res.Status)
	assert.Equal(t, int64(0), res.SubscribersNotified)
	assert.NotEmpty(t, res.ID)
	assert.True(t, res.Changed)

	m := res.Manifest
	assert.Equal(t, "1.0", m.Version)
	require.Len(t, m.Pipelines, 1)
	p := m.Pipelines[0]
	assert.Equal(t, "default_pipeline", p.Name)
	require.Len(t, p.Processors, 1)
	assert.Equal(t, "r1", p.Processors[0].ID)
	assert.Len(t, p.Outputs, 1)
	assert.Equal(t, 50, p.BatchSize)

	assert.Equal(t, m, stored(t, b))
}

func TestPublishCountsSubscribers(t *testing.T) {
	mr := miniredis.RunT(t)
	b := backend.NewRedis(backend.RedisOptions{Addr: mr.Addr()})
	defer b.Close()

	ctx := context.Background()
	subs := make([]backend.Subscription, 3)
	for i := range subs {
		sub, err := b.Subscribe(ctx, testChannel)
		require.NoError(t, err)
		defer sub.Close()
		subs[i] = sub
	}

	svc := publish.New(seededState(t), b, options())
	res, err := svc.Publish(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.SubscribersNotified)

	for _, sub := range subs {
		select {
		case msg := <-sub.Messages():
			assert.Equal(t, "RELOAD", msg)
		case <-time.After(2 * time.Second):
			t.Fatal("reload signal not delivered")
		}
	}
}

func TestPublishSnapshotSurvivesLaterMutation(t *testing.T) {
	b := backend.NewMemory()
	st := seededState(t)
	svc := publish.New(st, b, options())

	res, err := svc.Publish(context.Background())
	require.NoError(t, err)

	_, err = st.AddRule(manifest.ProcessorRule{ID: "r2", Type: manifest.RuleRedact, Params: map[string]string{}})
	require.NoError(t, err)
	st.ClearOutputs()
	require.NoError(t, st.SetBatchSize(9))

	for _, m := range []*manifest.Manifest{res.Manifest, stored(t, b)} {
		p := m.Pipelines[0]
		assert.Len(t, p.Processors, 1)
		assert.Len(t, p.Outputs, 1)
		assert.Equal(t, 50, p.BatchSize)
	}
}

func TestPublishPersistenceFailureKeepsPreviousAndSkipsNotify(t *testing.T) {
	mem := backend.NewMemory()
	fb := &faultyBackend{Backend: mem}
	st := seededState(t)
	svc := publish.New(st, fb, options())

	first, err := svc.Publish(context.Background())
	require.NoError(t, err)

	sub, err := mem.Subscribe(context.Background(), testChannel)
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, st.SetBatchSize(75))
	fb.putErr = errors.New("disk on fire")
	fb.calls = nil

	res, err := svc.Publish(context.Background())
	assert.Nil(t, res)
	var pe *publish.PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, testKey, pe.Key)
	assert.Equal(t, []string{"put"}, fb.calls, "no notification after failed write")

	assert.Equal(t, first.Manifest, stored(t, mem))
	select {
	case msg := <-sub.Messages():
		t.Fatalf("unexpected signal %q", msg)
	default:
	}
	assert.Equal(t, first, svc.Last())
}

func TestPublishPersistenceTimeout(t *testing.T) {
	opts := options()
	opts.StoreTimeout = 20 * time.Millisecond
	svc := publish.New(seededState(t), &blockingBackend{Backend: backend.NewMemory()}, opts)

	_, err := svc.Publish(context.Background())
	var pe *publish.PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPublishNotificationFailureIsDegraded(t *testing.T) {
	mem := backend.NewMemory()
	fb := &faultyBackend{Backend: mem, publishErr: errors.New("connection reset")}
	svc := publish.New(seededState(t), fb, options())

	res, err := svc.Publish(context.Background())
	var ne *publish.NotificationError
	require.ErrorAs(t, err, &ne)
	assert.Equal(t, testChannel, ne.Channel)

	require.NotNil(t, res)
	assert.Equal(t, publish.StatusDegraded, res.Status)
	assert.Zero(t, res.SubscribersNotified)
	assert.Contains(t, res.NotifyError, "connection reset")
	assert.Equal(t, []string{"put", "publish"}, fb.calls)

	assert.Equal(t, res.Manifest, stored(t, mem))
	assert.Equal(t, res, svc.Last())
}

func TestPublishCompletesAfterCallerCancels(t *testing.T) {
	mem := backend.NewMemory()
	defer mem.Close()
	sub, err := mem.Subscribe(context.Background(), testChannel)
	require.NoError(t, err)
	defer sub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc := publish.New(seededState(t), &hangupBackend{Backend: mem, cancel: cancel}, options())

	res, err := svc.Publish(ctx)
	require.NoError(t, err)
	assert.Equal(t, publish.StatusPublished, res.Status)
	assert.Equal(t, int64(1), res.SubscribersNotified)
	assert.Equal(t, "RELOAD", <-sub.Messages())
	assert.Equal(t, res.Manifest, stored(t, mem))
}

func TestPublishRetryIsIdempotent(t *testing.T) {
	clock := time.Unix(1000, 0)
	opts := options()
	opts.Now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	svc := publish.New(seededState(t), backend.NewMemory(), opts)

	a, err := svc.Publish(context.Background())
	require.NoError(t, err)
	b, err := svc.Publish(context.Background())
	require.NoError(t, err)

	assert.True(t, a.Changed)
	assert.False(t, b.Changed)
	assert.Equal(t, a.Fingerprint, b.Fingerprint)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, a.Manifest.Timestamp+1, b.Manifest.Timestamp)
	assert.Equal(t, a.Manifest.Pipelines, b.Manifest.Pipelines)
}

func TestCurrent(t *testing.T) {
	svc := publish.New(seededState(t), backend.NewMemory(), options())

	_, err := svc.Current(context.Background())
	assert.ErrorIs(t, err, publish.ErrNotPublished)

	res, err := svc.Publish(context.Background())
	require.NoError(t, err)
	m, err := svc.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, res.Manifest, m)
}

func TestConcurrentPublishesSeeConsistentSnapshots(t *testing.T) {
	st := store.NewState(1)
	require.NoError(t, st.Replace(store.Snapshot{
		Rules:     []manifest.ProcessorRule{{ID: "seed", Type: manifest.RuleFilter, Params: map[string]string{}}},
		BatchSize: 1,
	}))
	svc := publish.New(st, backend.NewMemory(), options())

	// Every mutation keeps rule count equal to batch size, so any consistent
	// snapshot has len(processors) == batch_size.
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i <= 40; i++ {
			rules := make([]manifest.ProcessorRule, i)
			for j := range rules {
				rules[j] = manifest.ProcessorRule{ID: string(rune('a'+j%26)) + string(rune('A'+j/26)), Type: manifest.RuleFilter, Params: map[string]string{}}
			}
			assert.NoError(t, st.Replace(store.Snapshot{Rules: rules, BatchSize: i}))
		}
	}()
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				res, err := svc.Publish(context.Background())
				if !assert.NoError(t, err) {
					return
				}
				p := res.Manifest.Pipelines[0]
				assert.Equal(t, p.BatchSize, len(p.Processors))
			}
		}()
	}
	wg.Wait()
}
