// Package queue provides the Redis-backed dispatch boundary between the
// submission service and the search workers. Jobs cross it as JSON-encoded
// tasks on a single list: the submitter LPUSHes, workers BRPOP.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nexus-vision/facesearch-go/internal/domain/model"
)

// RedisDispatcher enqueues search tasks for asynchronous processing.
type RedisDispatcher struct {
	client  redis.UniversalClient
	queue   string
	timeout time.Duration
}

// DispatcherOptions configures a RedisDispatcher.
type DispatcherOptions struct {
	Client  redis.UniversalClient
	Queue   string
	Timeout time.Duration
}

// NewRedisDispatcher creates a dispatcher that pushes tasks onto the given list.
func NewRedisDispatcher(opts DispatcherOptions) (*RedisDispatcher, error) {
	if opts.Client == nil {
		return nil, errors.New("redis client is required")
	}
	if opts.Queue == "" {
		return nil, errors.New("queue name is required")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &RedisDispatcher{
		client:  opts.Client,
		queue:   opts.Queue,
		timeout: timeout,
	}, nil
}

// Dispatch hands the task off to the worker boundary. The task payload is
// the only state that crosses; correlation happens through the job store.
func (d *RedisDispatcher) Dispatch(ctx context.Context, task *model.SearchTask) error {
	if task == nil {
		return errors.New("task is required")
	}
	if task.CorrelationID == "" {
		return errors.New("task correlation id is required")
	}

	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	if err := d.client.LPush(ctx, d.queue, data).Err(); err != nil {
		return fmt.Errorf("enqueue task: %w", err)
	}
	return nil
}

// RedisConsumer is the worker-side counterpart: a blocking pull of the next
// task from the same list.
type RedisConsumer struct {
	client      redis.UniversalClient
	queue       string
	pollTimeout time.Duration
}

// ConsumerOptions configures a RedisConsumer.
type ConsumerOptions struct {
	Client      redis.UniversalClient
	Queue       string
	PollTimeout time.Duration
}

// NewRedisConsumer creates a consumer that pops tasks from the given list.
func NewRedisConsumer(opts ConsumerOptions) (*RedisConsumer, error) {
	if opts.Client == nil {
		return nil, errors.New("redis client is required")
	}
	if opts.Queue == "" {
		return nil, errors.New("queue name is required")
	}
	pollTimeout := opts.PollTimeout
	if pollTimeout <= 0 {
		pollTimeout = 5 * time.Second
	}
	return &RedisConsumer{
		client:      opts.Client,
		queue:       opts.Queue,
		pollTimeout: pollTimeout,
	}, nil
}

// Next blocks up to the poll timeout waiting for a task. A nil task with nil
// error means the timeout elapsed with nothing queued; callers loop.
func (c *RedisConsumer) Next(ctx context.Context) (*model.SearchTask, error) {
	res, err := c.client.BRPop(ctx, c.pollTimeout, c.queue).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("dequeue task: %w", err)
	}

	// BRPop returns [key, value].
	if len(res) != 2 {
		return nil, fmt.Errorf("unexpected brpop reply length: %d", len(res))
	}

	var task model.SearchTask
	if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
		return nil, fmt.Errorf("unmarshal task: %w", err)
	}
	if task.CorrelationID == "" {
		return nil, errors.New("task missing correlation id")
	}
	return &task, nil
}
