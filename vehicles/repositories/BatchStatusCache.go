package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"logistics-backend/db/models"

	"github.com/redis/go-redis/v9"
)

const batchStatusKeyPrefix = "bulk_upload_batch"

// BatchStatusCache holds batches that reached a terminal status. Batches still
// processing are always read from the database.
type BatchStatusCache interface {
	Get(ctx context.Context, batchID string) (*models.VehicleBulkUploadBatch, bool, error)
	Set(ctx context.Context, batch *models.VehicleBulkUploadBatch) error
}

type redisBatchStatusCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewBatchStatusCache(client *redis.Client, ttl time.Duration) BatchStatusCache {
	return &redisBatchStatusCache{
		client: client,
		ttl:    ttl,
	}
}

func BatchStatusCacheKey(batchID string) string {
	return fmt.Sprintf("%s:%s", batchStatusKeyPrefix, batchID)
}

func (c *redisBatchStatusCache) Get(ctx context.Context, batchID string) (*models.VehicleBulkUploadBatch, bool, error) {
	raw, err := c.client.Get(ctx, BatchStatusCacheKey(batchID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var batch models.VehicleBulkUploadBatch
	if err := json.Unmarshal(raw, &batch); err != nil {
		return nil, false, fmt.Errorf("corrupt cached batch %s: %w", batchID, err)
	}
	return &batch, true, nil
}

// Set is a no-op for batches that are still processing.
func (c *redisBatchStatusCache) Set(ctx context.Context, batch *models.VehicleBulkUploadBatch) error {
	if batch == nil || !batch.Status.IsTerminal() {
		return nil
	}
	raw, err := json.Marshal(batch)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, BatchStatusCacheKey(batch.BatchID), raw, c.ttl).Err()
}
