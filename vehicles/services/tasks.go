package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"logistics-backend/config"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

const (
	TypeVehicleBulkUpload = "vehicle:bulk_upload"
	BulkUploadQueue       = "bulk_uploads"

	// DefaultBulkUploadTimeout replaces asynq's 30 minute default, which large
	// workbooks can outlive.
	DefaultBulkUploadTimeout = 24 * time.Hour
)

// TaskEnqueuer is satisfied by *asynq.Client.
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// NewVehicleBulkUploadTask builds the task for a batch. The batch id doubles as the
// task id so a batch cannot be queued twice, and orchestration is never retried.
func NewVehicleBulkUploadTask(job BulkUploadJob, timeout time.Duration) (*asynq.Task, error) {
	payload, err := json.Marshal(job)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeVehicleBulkUpload, payload, bulkUploadTaskOptions(job, timeout)...), nil
}

func bulkUploadTaskOptions(job BulkUploadJob, timeout time.Duration) []asynq.Option {
	if timeout <= 0 {
		timeout = DefaultBulkUploadTimeout
	}
	return []asynq.Option{
		asynq.TaskID(job.BatchID),
		asynq.MaxRetry(0),
		asynq.Queue(BulkUploadQueue),
		asynq.Timeout(timeout),
	}
}

func EnqueueVehicleBulkUpload(ctx context.Context, client TaskEnqueuer, job BulkUploadJob, timeout time.Duration) error {
	task, err := NewVehicleBulkUploadTask(job, timeout)
	if err != nil {
		return fmt.Errorf("failed to build bulk upload task: %w", err)
	}
	info, err := client.EnqueueContext(ctx, task)
	if err != nil {
		return fmt.Errorf("failed to enqueue bulk upload task: %w", err)
	}
	config.Logger.Info("Bulk upload task enqueued",
		zap.String("batchID", job.BatchID),
		zap.String("taskID", info.ID),
		zap.String("queue", info.Queue),
		zap.Duration("timeout", info.Timeout))
	return nil
}

type BulkUploadRunner interface {
	Run(ctx context.Context, job BulkUploadJob) error
}

// BulkUploadTaskHandler consumes vehicle:bulk_upload tasks on the asynq worker.
type BulkUploadTaskHandler struct {
	runner BulkUploadRunner
}

func NewBulkUploadTaskHandler(runner BulkUploadRunner) *BulkUploadTaskHandler {
	return &BulkUploadTaskHandler{runner: runner}
}

func (h *BulkUploadTaskHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var job BulkUploadJob
	if err := json.Unmarshal(t.Payload(), &job); err != nil {
		return fmt.Errorf("invalid bulk upload payload: %v: %w", err, asynq.SkipRetry)
	}
	if job.BatchID == "" || job.FilePath == "" {
		return fmt.Errorf("bulk upload payload is missing batch id or file path: %w", asynq.SkipRetry)
	}
	if err := h.runner.Run(ctx, job); err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	return nil
}
