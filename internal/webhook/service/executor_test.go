package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/1212falcon1212/shopfiy-saas-sub001/internal/clock"
	"github.com/1212falcon1212/shopfiy-saas-sub001/internal/config"
	"github.com/1212falcon1212/shopfiy-saas-sub001/internal/observability/metrics"
	webhookdomain "github.com/1212falcon1212/shopfiy-saas-sub001/internal/webhook/domain"
	"github.com/1212falcon1212/shopfiy-saas-sub001/internal/webhook/queue"
	"github.com/1212falcon1212/shopfiy-saas-sub001/internal/webhook/repository"
	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// stubHandler replays a scripted sequence of errors, one per call.
// Calls beyond the script succeed.
type stubHandler struct {
	mu     sync.Mutex
	topic  string
	script []error
	calls  int
}

func (h *stubHandler) Topic() string { return h.topic }

func (h *stubHandler) Handle(ctx context.Context, d webhookdomain.Delivery) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls++
	if h.calls <= len(h.script) {
		return h.script[h.calls-1]
	}
	return nil
}

func (h *stubHandler) Calls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls
}

type executorFixture struct {
	db       *gorm.DB
	exec     *Executor
	queue    *queue.MemoryQueue
	handler  *stubHandler
	repo     webhookdomain.Repository
	clock    *clock.FakeClock
	registry *webhookdomain.Registry
}

func newExecutorFixture(t *testing.T, script ...error) *executorFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&webhookdomain.ProcessedDelivery{},
		&webhookdomain.DeliveryClaim{},
		&webhookdomain.DeadLetter{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	handler := &stubHandler{topic: "orders/create", script: script}
	registry, err := webhookdomain.NewRegistry(handler)
	require.NoError(t, err)

	q := queue.NewMemoryQueue(64)
	t.Cleanup(q.Close)

	fakeClock := clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	repo := repository.Provide()

	exec := NewExecutor(ExecutorParam{
		DB:       db,
		Log:      zap.NewNop(),
		GenID:    node,
		Clock:    fakeClock,
		Config:   testConfig(),
		Repo:     repo,
		Registry: registry,
		Queue:    q,
		Metrics:  metrics.NewWith(prometheus.NewRegistry()),
	})

	return &executorFixture{
		db:       db,
		exec:     exec,
		queue:    q,
		handler:  handler,
		repo:     repo,
		clock:    fakeClock,
		registry: registry,
	}
}

func testConfig() config.Config {
	return config.Config{
		WebhookWorkers:     1,
		WebhookMaxAttempts: 3,
		WebhookRetryBase:   time.Millisecond,
		WebhookRetryCap:    5 * time.Millisecond,
		HandlerTimeout:     time.Second,
	}
}

func testJob(deliveryID string) webhookdomain.Job {
	return webhookdomain.Job{
		Delivery: webhookdomain.Delivery{
			Topic:      "orders/create",
			DeliveryID: deliveryID,
			ShopDomain: "demo.myshopify.com",
			Payload:    json.RawMessage(`{"id":1001}`),
			ReceivedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		},
		Attempt: 1,
	}
}

// dequeueWithin pulls the next job off the queue, failing the test if
// nothing shows up in time. Used to follow retry requeues.
func dequeueWithin(t *testing.T, q *queue.MemoryQueue, d time.Duration) webhookdomain.Job {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	job, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, job)
	return *job
}

func TestExecutorProcessRunsHandlerOnce(t *testing.T) {
	f := newExecutorFixture(t)
	ctx := context.Background()

	f.exec.Process(ctx, testJob("wh-1"))
	require.Equal(t, 1, f.handler.Calls())

	done, err := f.repo.IsProcessed(ctx, f.db, "orders/create", "wh-1")
	require.NoError(t, err)
	require.True(t, done)

	// Redelivery of the same delivery id is acknowledged without
	// running the handler again.
	f.exec.Process(ctx, testJob("wh-1"))
	require.Equal(t, 1, f.handler.Calls())
}

func TestExecutorRetriesTransientFailure(t *testing.T) {
	f := newExecutorFixture(t, errors.New("upstream timeout"))
	ctx := context.Background()

	f.exec.Process(ctx, testJob("wh-2"))
	require.Equal(t, 1, f.handler.Calls())

	// The failure lands back on the queue with an incremented attempt.
	retry := dequeueWithin(t, f.queue, time.Second)
	require.Equal(t, 2, retry.Attempt)
	require.Equal(t, "wh-2", retry.Delivery.DeliveryID)

	f.exec.Process(ctx, retry)
	require.Equal(t, 2, f.handler.Calls())

	done, err := f.repo.IsProcessed(ctx, f.db, "orders/create", "wh-2")
	require.NoError(t, err)
	require.True(t, done)
}

func TestExecutorPermanentFailureDeadLetters(t *testing.T) {
	f := newExecutorFixture(t, webhookdomain.Permanent(errors.New("malformed payload")))
	ctx := context.Background()

	f.exec.Process(ctx, testJob("wh-3"))
	require.Equal(t, 1, f.handler.Calls())

	letters, err := f.repo.ListDeadLetters(ctx, f.db, "orders/create", 10)
	require.NoError(t, err)
	require.Len(t, letters, 1)
	require.Equal(t, "wh-3", letters[0].DeliveryID)
	require.Equal(t, 1, letters[0].Attempts)
	require.Contains(t, letters[0].Reason, "malformed payload")

	done, err := f.repo.IsProcessed(ctx, f.db, "orders/create", "wh-3")
	require.NoError(t, err)
	require.False(t, done)
}

func TestExecutorExhaustsAttemptsThenDeadLetters(t *testing.T) {
	f := newExecutorFixture(t,
		errors.New("down"), errors.New("down"), errors.New("down"), errors.New("down"),
	)
	ctx := context.Background()

	job := testJob("wh-4")
	f.exec.Process(ctx, job)
	for {
		letters, err := f.repo.ListDeadLetters(ctx, f.db, "", 10)
		require.NoError(t, err)
		if len(letters) > 0 {
			require.Equal(t, 3, letters[0].Attempts)
			break
		}
		job = dequeueWithin(t, f.queue, time.Second)
		f.exec.Process(ctx, job)
	}
	require.Equal(t, 3, f.handler.Calls())
}

func TestExecutorSkipsDeliveryClaimedElsewhere(t *testing.T) {
	f := newExecutorFixture(t)
	ctx := context.Background()

	node, err := snowflake.NewNode(2)
	require.NoError(t, err)
	require.NoError(t, f.repo.Claim(ctx, f.db, &webhookdomain.DeliveryClaim{
		ID:         node.Generate(),
		Topic:      "orders/create",
		DeliveryID: "wh-5",
		ClaimedAt:  f.clock.Now(),
	}))

	f.exec.Process(ctx, testJob("wh-5"))
	require.Equal(t, 0, f.handler.Calls())

	done, err := f.repo.IsProcessed(ctx, f.db, "orders/create", "wh-5")
	require.NoError(t, err)
	require.False(t, done)
}

func TestExecutorReleasesClaimAfterProcessing(t *testing.T) {
	f := newExecutorFixture(t)
	ctx := context.Background()

	f.exec.Process(ctx, testJob("wh-6"))

	var count int64
	require.NoError(t, f.db.Model(&webhookdomain.DeliveryClaim{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestDispatcherUnknownTopicIsNoop(t *testing.T) {
	f := newExecutorFixture(t)

	d := NewDispatcher(DispatcherParam{
		Log:      zap.NewNop(),
		Registry: f.registry,
		Queue:    f.queue,
		Metrics:  metrics.NewWith(prometheus.NewRegistry()),
	})

	err := d.Dispatch(context.Background(), webhookdomain.Delivery{
		Topic:      "customers/update",
		DeliveryID: "wh-7",
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = f.queue.Dequeue(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDispatcherRejectsMissingDeliveryID(t *testing.T) {
	f := newExecutorFixture(t)

	d := NewDispatcher(DispatcherParam{
		Log:      zap.NewNop(),
		Registry: f.registry,
		Queue:    f.queue,
		Metrics:  metrics.NewWith(prometheus.NewRegistry()),
	})

	err := d.Dispatch(context.Background(), webhookdomain.Delivery{Topic: "orders/create"})
	require.ErrorIs(t, err, webhookdomain.ErrMissingDeliveryID)
}

func TestDispatcherEnqueuesRegisteredTopic(t *testing.T) {
	f := newExecutorFixture(t)

	d := NewDispatcher(DispatcherParam{
		Log:      zap.NewNop(),
		Registry: f.registry,
		Queue:    f.queue,
		Metrics:  metrics.NewWith(prometheus.NewRegistry()),
	})

	require.NoError(t, d.Dispatch(context.Background(), testJob("wh-8").Delivery))

	job := dequeueWithin(t, f.queue, time.Second)
	require.Equal(t, 1, job.Attempt)
	require.Equal(t, "wh-8", job.Delivery.DeliveryID)
}
