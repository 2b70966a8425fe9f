package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hibiken/asynq"
)

// ReorderJob turns reorder-draft tasks into supplier notices recorded
// back through the server's activities endpoint. The worker runs in its
// own process, so the write-back goes over HTTP rather than into the
// in-memory store directly.
type ReorderJob struct {
	apiBase string
	client  *http.Client
	logger  *slog.Logger
}

// NewReorderJob constructs the reorder-draft handler. A nil client falls
// back to http.DefaultClient.
func NewReorderJob(apiBase string, client *http.Client, logger *slog.Logger) *ReorderJob {
	if client == nil {
		client = http.DefaultClient
	}
	return &ReorderJob{apiBase: apiBase, client: client, logger: logger}
}

// Handle processes one TaskReorderDraft task.
func (j *ReorderJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload ReorderDraftPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		j.logger.Error("malformed reorder payload", slog.Any("error", err))
		return asynq.SkipRetry
	}

	notice := map[string]any{
		"type": "SUPPLIER_NOTICE",
		"description": fmt.Sprintf("Reorder draft created for %s (%s): %d units on hand, reorder level %d",
			payload.Name, payload.SKU, payload.Quantity, payload.ReorderLevel),
		"productId": payload.ProductID,
	}
	body, err := json.Marshal(notice)
	if err != nil {
		return asynq.SkipRetry
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, j.apiBase+"/api/activities", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := j.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("jobs: record supplier notice: %s", resp.Status)
	}
	j.logger.Info("supplier notice recorded",
		slog.Int64("product", payload.ProductID), slog.String("sku", payload.SKU))
	return nil
}
