package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"logistics-backend/config"
	"logistics-backend/db/models"
	"logistics-backend/vehicles/repositories"

	"go.uber.org/zap"
)

type StaleBatchStore interface {
	ListStaleBatches(ctx context.Context, updatedBefore time.Time) ([]string, error)
	UpdateBatchStatus(ctx context.Context, batchID string, status models.BulkUploadStatus, stage models.BulkUploadStage, errorMessage *string) error
}

// StaleBatchSweeper fails batches left in processing by a worker that died. maxAge
// must exceed the task timeout so a live task is never swept.
type StaleBatchSweeper struct {
	store    StaleBatchStore
	notifier ProgressNotifier
	maxAge   time.Duration
	now      func() time.Time
}

func NewStaleBatchSweeper(store StaleBatchStore, notifier ProgressNotifier, maxAge time.Duration) *StaleBatchSweeper {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &StaleBatchSweeper{
		store:    store,
		notifier: notifier,
		maxAge:   maxAge,
		now:      time.Now,
	}
}

// Sweep marks every stale batch failed and returns how many it closed.
func (s *StaleBatchSweeper) Sweep(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.maxAge)
	ids, err := s.store.ListStaleBatches(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	msg := fmt.Sprintf("processing abandoned: no progress since %s", cutoff.Format(time.RFC3339))
	closed := 0
	var errs []error
	for _, id := range ids {
		err := s.store.UpdateBatchStatus(ctx, id, models.BulkUploadFailed, models.StageFailed, &msg)
		if errors.Is(err, repositories.ErrBatchFinalized) {
			continue
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("batch %s: %w", id, err))
			continue
		}
		closed++
		config.Logger.Warn("Stale bulk upload batch failed", zap.String("batchID", id))
		s.notifier.PublishProgress(id, BulkUploadProgress{
			BatchID: id,
			Status:  models.BulkUploadFailed,
			Stage:   models.StageFailed,
			Message: msg,
		})
	}
	return closed, errors.Join(errs...)
}
