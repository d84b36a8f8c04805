// Package queue defines the asynq task types shared by the enqueuing CLI
// and the worker process.
package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

const (
	// DisseminateWorkTask carries one work/platform pair to attempt.
	DisseminateWorkTask = "dissemination:work"
)

// DisseminatePayload is serialized into the task so the worker knows which
// work to deliver where.
type DisseminatePayload struct {
	WorkID   string `json:"work_id"`
	Platform string `json:"platform"`
}

// EnqueueDisseminate schedules one dissemination attempt. Queue-level
// retries cover worker crashes; transient transport errors are already
// retried inside the attempt itself.
func EnqueueDisseminate(ctx context.Context, client *asynq.Client, payload DisseminatePayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	task := asynq.NewTask(DisseminateWorkTask, data)
	if _, err := client.EnqueueContext(ctx, task, asynq.MaxRetry(3)); err != nil {
		return fmt.Errorf("enqueue dissemination task: %w", err)
	}
	return nil
}
