package queue

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	webhookdomain "github.com/1212falcon1212/shopfiy-saas-sub001/internal/webhook/domain"
	"github.com/redis/go-redis/v9"
)

const (
	pendingKey    = "webhooks:jobs"
	processingKey = "webhooks:jobs:processing"
	delayedKey    = "webhooks:jobs:delayed"

	dequeueBlock = time.Second
	promoteBatch = 100
)

// RedisQueue is a list-backed queue. Dequeue moves the job onto a
// processing list so a crashed worker leaves a trace the stuck sweeper
// can recover, instead of losing the delivery. Delayed retries park on
// a sorted set scored by ready-time, so a restart during the backoff
// window loses nothing either.
type RedisQueue struct {
	client *redis.Client
}

func NewRedisQueue(client *redis.Client) *RedisQueue {
	return &RedisQueue{client: client}
}

func (q *RedisQueue) Enqueue(ctx context.Context, job webhookdomain.Job) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return q.client.LPush(ctx, pendingKey, raw).Err()
}

func (q *RedisQueue) Dequeue(ctx context.Context) (*webhookdomain.Job, error) {
	// Promote any retries whose backoff has elapsed before blocking.
	if _, err := q.promoteDue(ctx); err != nil {
		return nil, err
	}

	raw, err := q.client.BRPopLPush(ctx, pendingKey, processingKey, dequeueBlock).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var job webhookdomain.Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		// Undecodable entry; drop it from processing so it does not
		// cycle forever.
		_ = q.client.LRem(ctx, processingKey, 1, raw).Err()
		return nil, err
	}
	return &job, nil
}

func (q *RedisQueue) Ack(ctx context.Context, job webhookdomain.Job) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return q.client.LRem(ctx, processingKey, 1, raw).Err()
}

// Requeue schedules job for a later attempt. The caller still holds
// the original entry on the processing list and acks it separately;
// the scheduled copy lands in redis before the original is removed,
// so a crash in between duplicates the delivery instead of losing it.
func (q *RedisQueue) Requeue(ctx context.Context, job webhookdomain.Job, delay time.Duration) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if delay <= 0 {
		return q.client.LPush(ctx, pendingKey, raw).Err()
	}
	return q.client.ZAdd(ctx, delayedKey, redis.Z{
		Score:  float64(time.Now().Add(delay).UnixMilli()),
		Member: raw,
	}).Err()
}

// promoteDue moves delayed jobs whose ready-time has passed onto the
// pending list. ZRem before LPush: only the winner of a concurrent
// promotion race enqueues the job.
func (q *RedisQueue) promoteDue(ctx context.Context) (int, error) {
	now := strconv.FormatInt(time.Now().UnixMilli(), 10)
	due, err := q.client.ZRangeByScore(ctx, delayedKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   now,
		Count: promoteBatch,
	}).Result()
	if err != nil {
		return 0, err
	}

	moved := 0
	for _, raw := range due {
		removed, err := q.client.ZRem(ctx, delayedKey, raw).Result()
		if err != nil {
			return moved, err
		}
		if removed == 0 {
			continue
		}
		if err := q.client.LPush(ctx, pendingKey, raw).Err(); err != nil {
			return moved, err
		}
		moved++
	}
	return moved, nil
}

// RequeueStuck promotes due delayed retries and moves every job parked
// on the processing list back to the pending list, recovering
// deliveries a crashed worker never acked. Requeueing a job a live
// worker still holds only costs a dedup hit downstream.
func (q *RedisQueue) RequeueStuck(ctx context.Context) (int, error) {
	moved, err := q.promoteDue(ctx)
	if err != nil {
		return moved, err
	}
	for {
		_, err := q.client.RPopLPush(ctx, processingKey, pendingKey).Result()
		if err == redis.Nil {
			return moved, nil
		}
		if err != nil {
			return moved, err
		}
		moved++
	}
}
