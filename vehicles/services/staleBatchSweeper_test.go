package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"logistics-backend/db/models"
	"logistics-backend/vehicles/repositories"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStaleStore struct {
	ids      []string
	listErr  error
	cutoff   time.Time
	failed   []string
	messages []string
	updateFn func(batchID string) error
}

func (f *fakeStaleStore) ListStaleBatches(_ context.Context, updatedBefore time.Time) ([]string, error) {
	f.cutoff = updatedBefore
	return f.ids, f.listErr
}

func (f *fakeStaleStore) UpdateBatchStatus(_ context.Context, batchID string, status models.BulkUploadStatus, stage models.BulkUploadStage, errorMessage *string) error {
	if f.updateFn != nil {
		if err := f.updateFn(batchID); err != nil {
			return err
		}
	}
	if status == models.BulkUploadFailed && stage == models.StageFailed && errorMessage != nil {
		f.failed = append(f.failed, batchID)
		f.messages = append(f.messages, *errorMessage)
	}
	return nil
}

func TestStaleBatchSweeper_FailsAbandonedBatches(t *testing.T) {
	now := time.Date(2026, 10, 16, 3, 0, 0, 0, time.UTC)
	store := &fakeStaleStore{
		ids: []string{"b1", "b2", "b3"},
		updateFn: func(id string) error {
			if id == "b2" {
				return repositories.ErrBatchFinalized
			}
			return nil
		},
	}
	notifier := &fakeNotifier{}
	sweeper := NewStaleBatchSweeper(store, notifier, 25*time.Hour)
	sweeper.now = func() time.Time { return now }

	closed, err := sweeper.Sweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, closed)
	assert.Equal(t, now.Add(-25*time.Hour), store.cutoff)
	assert.Equal(t, []string{"b1", "b3"}, store.failed)
	assert.Contains(t, store.messages[0], "processing abandoned")
	require.Len(t, notifier.published, 2)
	assert.Equal(t, models.BulkUploadFailed, notifier.last().Status)
	assert.Equal(t, "b3", notifier.last().BatchID)
}

func TestStaleBatchSweeper_ContinuesPastUpdateErrors(t *testing.T) {
	dbErr := errors.New("connection refused")
	store := &fakeStaleStore{
		ids: []string{"b1", "b2"},
		updateFn: func(id string) error {
			if id == "b1" {
				return dbErr
			}
			return nil
		},
	}

	closed, err := NewStaleBatchSweeper(store, nil, time.Hour).Sweep(context.Background())
	assert.Equal(t, 1, closed)
	assert.ErrorIs(t, err, dbErr)
	assert.Contains(t, err.Error(), "batch b1")
	assert.Equal(t, []string{"b2"}, store.failed)
}

func TestStaleBatchSweeper_ListError(t *testing.T) {
	listErr := errors.New("timeout")
	closed, err := NewStaleBatchSweeper(&fakeStaleStore{listErr: listErr}, nil, time.Hour).Sweep(context.Background())
	assert.Zero(t, closed)
	assert.ErrorIs(t, err, listErr)
}
