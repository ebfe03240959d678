// Package queue wraps asynq for AI jobs: one task type per job type, task id
// equal to job id, and one asynq queue per queued priority.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/hirewise/api/internal/model"
)

const taskPrefix = "ai:"

// Queue names. High priority work never enters the queue.
const (
	QueueMedium = "medium"
	QueueLow    = "low"
)

// TaskType returns the asynq task type for a job type.
func TaskType(t model.JobType) string {
	return taskPrefix + string(t)
}

// QueueFor maps a priority onto an asynq queue.
func QueueFor(p model.Priority) string {
	if p == model.PriorityLow {
		return QueueLow
	}
	return QueueMedium
}

// Weights returns the queue weights for asynq.Config.Queues.
func Weights(medium, low int) map[string]int {
	if medium <= 0 {
		medium = 6
	}
	if low <= 0 {
		low = 3
	}
	return map[string]int{QueueMedium: medium, QueueLow: low}
}

type taskPayload struct {
	JobID string `json:"jobId"`
}

// NewTask builds the task for a job. Only the id travels; the worker loads
// everything else from the job store.
func NewTask(job *model.Job) (*asynq.Task, error) {
	data, err := json.Marshal(taskPayload{JobID: job.ID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskType(job.Type), data), nil
}

// ParseTask returns the job id carried by a task.
func ParseTask(t *asynq.Task) (string, error) {
	var p taskPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return "", fmt.Errorf("failed to unmarshal task payload: %w", err)
	}
	if p.JobID == "" {
		return "", errors.New("task payload without job id")
	}
	return p.JobID, nil
}

// Enqueuer is the subset of *asynq.Client used here.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Inspector is the subset of *asynq.Inspector used here.
type Inspector interface {
	DeleteTask(queue, id string) error
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
}

// Client enqueues jobs and removes queued ones.
type Client struct {
	client    Enqueuer
	inspector Inspector
	timeout   time.Duration
}

func NewClient(client Enqueuer, inspector Inspector, timeout time.Duration) *Client {
	return &Client{client: client, inspector: inspector, timeout: timeout}
}

func (c *Client) Enqueue(ctx context.Context, job *model.Job) error {
	task, err := NewTask(job)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}

	opts := []asynq.Option{
		asynq.TaskID(job.ID),
		asynq.Queue(QueueFor(job.Priority)),
		asynq.MaxRetry(0),
		asynq.Retention(time.Hour),
	}
	if c.timeout > 0 {
		opts = append(opts, asynq.Timeout(c.timeout))
	}

	if _, err := c.client.EnqueueContext(ctx, task, opts...); err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}
	return nil
}

// Remove deletes a still-pending task. A task that is already running or gone
// is not an error; the worker notices the cancellation at its next checkpoint.
func (c *Client) Remove(_ context.Context, job *model.Job) error {
	if c.inspector == nil {
		return nil
	}
	err := c.inspector.DeleteTask(QueueFor(job.Priority), job.ID)
	if err == nil || errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
		return nil
	}
	return fmt.Errorf("failed to remove task: %w", err)
}

// Backlog returns the number of pending tasks across the job queues.
func (c *Client) Backlog(_ context.Context) (int, error) {
	if c.inspector == nil {
		return 0, nil
	}
	total := 0
	for _, q := range []string{QueueMedium, QueueLow} {
		info, err := c.inspector.GetQueueInfo(q)
		if errors.Is(err, asynq.ErrQueueNotFound) {
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("queue %s: %w", q, err)
		}
		total += info.Pending + info.Scheduled
	}
	return total, nil
}
