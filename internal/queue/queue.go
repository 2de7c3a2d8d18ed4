// Package queue relays ML tasks from the API to the worker over a Redis
// stream. Delivery is at-least-once: the consumer group redelivers
// unacknowledged tasks, failed tasks are re-enqueued a bounded number of
// times and then parked on a dead-letter stream. Consumers must therefore
// tolerate duplicates; the prediction lifecycle's guarded transitions make
// the terminal writes idempotent.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"nutriadvisor/internal/models"
)

const taskField = "task"

// Task is one queued ML request. PredictionID is the handle everything else
// hangs off; the rest rides along so the worker can log without a lookup.
type Task struct {
	TaskID              string            `json:"task_id"`
	PredictionID        string            `json:"prediction_id"`
	AccountID           string            `json:"account_id"`
	ModelID             string            `json:"model_id"`
	Message             string            `json:"message"`
	ConversationHistory []models.ChatTurn `json:"conversation_history,omitempty"`
	Attempt             int               `json:"attempt"`
	EnqueuedAt          time.Time         `json:"enqueued_at"`
}

// Publisher appends tasks to the stream.
type Publisher struct {
	client *redis.Client
	stream string
}

// NewPublisher returns a stream publisher.
func NewPublisher(client *redis.Client, stream string) *Publisher {
	return &Publisher{client: client, stream: stream}
}

// Publish appends one task to the stream.
func (p *Publisher) Publish(ctx context.Context, task Task) error {
	if task.TaskID == "" {
		task.TaskID = uuid.NewString()
	}
	if task.EnqueuedAt.IsZero() {
		task.EnqueuedAt = time.Now().UTC()
	}
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("queue: encode task: %w", err)
	}
	err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{taskField: string(data)},
	}).Err()
	if err != nil {
		return fmt.Errorf("queue: publish: %w", err)
	}
	return nil
}

// Delivery is one claimed task plus the stream bookkeeping needed to settle
// it.
type Delivery struct {
	MessageID string
	Task      Task
}

// ConsumerConfig holds queue consumer settings.
type ConsumerConfig struct {
	Stream           string
	Group            string
	DeadLetterStream string
	Block            time.Duration
	MaxAttempts      int
}

// Consumer reads tasks through a consumer group.
type Consumer struct {
	client   *redis.Client
	config   ConsumerConfig
	consumer string
}

// NewConsumer returns a consumer with a unique per-process consumer name.
func NewConsumer(client *redis.Client, cfg ConsumerConfig) *Consumer {
	if cfg.Group == "" {
		cfg.Group = "ml-workers"
	}
	if cfg.Block <= 0 {
		cfg.Block = 5 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.DeadLetterStream == "" {
		cfg.DeadLetterStream = cfg.Stream + ":dead"
	}
	return &Consumer{
		client:   client,
		config:   cfg,
		consumer: fmt.Sprintf("worker-%s", uuid.NewString()[:8]),
	}
}

// EnsureGroup creates the consumer group, tolerating an existing one.
func (c *Consumer) EnsureGroup(ctx context.Context) error {
	err := c.client.XGroupCreateMkStream(ctx, c.config.Stream, c.config.Group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("queue: create group: %w", err)
	}
	return nil
}

// Next blocks until a task is available or the block timeout elapses.
// Returns (nil, nil) when no task arrived in time.
func (c *Consumer) Next(ctx context.Context) (*Delivery, error) {
	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.config.Group,
		Consumer: c.consumer,
		Streams:  []string{c.config.Stream, ">"},
		Count:    1,
		Block:    c.config.Block,
	}).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("queue: read: %w", err)
	}
	if len(streams) == 0 || len(streams[0].Messages) == 0 {
		return nil, nil
	}

	msg := streams[0].Messages[0]
	raw, ok := msg.Values[taskField].(string)
	if !ok {
		// Malformed entry, nothing to retry.
		c.parkRaw(ctx, msg.ID, msg.Values, "missing task field")
		return nil, nil
	}
	var task Task
	if err := json.Unmarshal([]byte(raw), &task); err != nil {
		c.parkRaw(ctx, msg.ID, msg.Values, fmt.Sprintf("decode: %v", err))
		return nil, nil
	}
	return &Delivery{MessageID: msg.ID, Task: task}, nil
}

// Ack acknowledges a settled delivery.
func (c *Consumer) Ack(ctx context.Context, d *Delivery) error {
	return c.client.XAck(ctx, c.config.Stream, c.config.Group, d.MessageID).Err()
}

// Nack settles a failed delivery: the task is re-enqueued with an
// incremented attempt counter, or parked on the dead-letter stream once the
// attempt budget is spent. The retry/park write happens before the ack, so
// a crash in between duplicates the task instead of losing it.
func (c *Consumer) Nack(ctx context.Context, d *Delivery, cause error) error {
	d.Task.Attempt++
	if d.Task.Attempt >= c.config.MaxAttempts {
		if err := c.park(ctx, d.Task, cause); err != nil {
			return err
		}
		return c.Ack(ctx, d)
	}
	data, err := json.Marshal(d.Task)
	if err != nil {
		return fmt.Errorf("queue: encode retry: %w", err)
	}
	err = c.client.XAdd(ctx, &redis.XAddArgs{
		Stream: c.config.Stream,
		Values: map[string]interface{}{taskField: string(data)},
	}).Err()
	if err != nil {
		return fmt.Errorf("queue: requeue: %w", err)
	}
	return c.Ack(ctx, d)
}

func (c *Consumer) park(ctx context.Context, task Task, cause error) error {
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("queue: encode dead letter: %w", err)
	}
	reason := "max attempts exceeded"
	if cause != nil {
		reason = cause.Error()
	}
	err = c.client.XAdd(ctx, &redis.XAddArgs{
		Stream: c.config.DeadLetterStream,
		Values: map[string]interface{}{
			taskField: string(data),
			"reason":  reason,
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("queue: dead letter: %w", err)
	}
	return nil
}

func (c *Consumer) parkRaw(ctx context.Context, messageID string, values map[string]interface{}, reason string) {
	values["reason"] = reason
	_ = c.client.XAdd(ctx, &redis.XAddArgs{
		Stream: c.config.DeadLetterStream,
		Values: values,
	}).Err()
	_ = c.client.XAck(ctx, c.config.Stream, c.config.Group, messageID).Err()
}
