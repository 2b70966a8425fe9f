// Package jobs contains background task definitions and the Asynq worker
// runtime.
package jobs

import (
	"context"
	"encoding/json"

	"github.com/hibiken/asynq"

	"github.com/stockpulse/stockpulse/internal/inventory"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskReorderDraft is enqueued whenever a product drops below its
	// reorder level.
	TaskReorderDraft = "inventory:reorder_draft"
)

// ReorderDraftPayload captures the product snapshot at the moment the
// low-stock event fired.
type ReorderDraftPayload struct {
	ProductID    int64  `json:"productId"`
	Name         string `json:"name"`
	SKU          string `json:"sku"`
	Quantity     int64  `json:"quantity"`
	ReorderLevel int64  `json:"reorderLevel"`
}

// NewReorderDraftTask constructs an Asynq task.
func NewReorderDraftTask(payload ReorderDraftPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReorderDraft, data), nil
}

// Client submits jobs to the queue.
type Client struct {
	client *asynq.Client
}

// NewClient constructs an Asynq client.
func NewClient(redisOpts asynq.RedisClientOpt) *Client {
	return &Client{client: asynq.NewClient(redisOpts)}
}

// EnqueueReorderDraft enqueues a reorder-draft task for product. It
// satisfies inventory.ReorderEnqueuer.
func (c *Client) EnqueueReorderDraft(ctx context.Context, product inventory.Product) error {
	task, err := NewReorderDraftTask(ReorderDraftPayload{
		ProductID:    product.ID,
		Name:         product.Name,
		SKU:          product.SKU,
		Quantity:     product.Quantity,
		ReorderLevel: product.ReorderLevel,
	})
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault))
	return err
}

// Close releases client resources.
func (c *Client) Close() error {
	return c.client.Close()
}
