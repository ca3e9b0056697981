package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"logistics-backend/db/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrBatchNotFound = errors.New("bulk upload batch not found")
	// ErrBatchFinalized is returned when a status change targets a batch that already
	// left the processing state.
	ErrBatchFinalized = errors.New("bulk upload batch is no longer processing")
)

const recordInsertBatchSize = 500

// BatchCounts updates only the counters that are set.
type BatchCounts struct {
	TotalRows           *int
	ValidCount          *int
	InvalidCount        *int
	CreatedCount        *int
	CreationFailedCount *int
}

func (c BatchCounts) columns() map[string]interface{} {
	cols := make(map[string]interface{})
	if c.TotalRows != nil {
		cols["total_rows"] = *c.TotalRows
	}
	if c.ValidCount != nil {
		cols["valid_count"] = *c.ValidCount
	}
	if c.InvalidCount != nil {
		cols["invalid_count"] = *c.InvalidCount
	}
	if c.CreatedCount != nil {
		cols["created_count"] = *c.CreatedCount
	}
	if c.CreationFailedCount != nil {
		cols["creation_failed_count"] = *c.CreationFailedCount
	}
	return cols
}

// CreatedRecord links an upload record to the vehicle created from it.
type CreatedRecord struct {
	RecordID             uuid.UUID
	VehicleID            string
	PendingDocumentCount int
	CreationNote         *string
}

// BatchErrorFilter selects which records GetBatchErrors returns.
type BatchErrorFilter struct {
	IncludeCreationFailures bool
	Limit                   int
	Offset                  int
}

type BulkUploadRepository interface {
	CreateBatch(ctx context.Context, batch *models.VehicleBulkUploadBatch) error
	GetBatch(ctx context.Context, batchID string) (*models.VehicleBulkUploadBatch, error)
	RecordValidationOutcomes(ctx context.Context, batchID string, valid, invalid []models.VehicleBulkUploadRecord, counts BatchCounts) error
	UpdateBatchCounts(ctx context.Context, batchID string, counts BatchCounts) error
	UpdateBatchStage(ctx context.Context, batchID string, stage models.BulkUploadStage) error
	UpdateBatchStatus(ctx context.Context, batchID string, status models.BulkUploadStatus, stage models.BulkUploadStage, errorMessage *string) error
	SetErrorReport(ctx context.Context, batchID, path string) error
	MarkRecordsCreated(ctx context.Context, created []CreatedRecord) error
	MarkRecordsCreationFailed(ctx context.Context, recordIDs []uuid.UUID, message string) error
	GetBatchErrors(ctx context.Context, batchID string, filter BatchErrorFilter) ([]models.VehicleBulkUploadRecord, int64, error)
	ListStaleBatches(ctx context.Context, updatedBefore time.Time) ([]string, error)
}

type bulkUploadRepository struct {
	db *gorm.DB
}

func NewBulkUploadRepository(db *gorm.DB) BulkUploadRepository {
	return &bulkUploadRepository{
		db: db,
	}
}

func (r *bulkUploadRepository) CreateBatch(ctx context.Context, batch *models.VehicleBulkUploadBatch) error {
	if err := r.db.WithContext(ctx).Create(batch).Error; err != nil {
		return fmt.Errorf("failed to create bulk upload batch: %w", err)
	}
	return nil
}

func (r *bulkUploadRepository) GetBatch(ctx context.Context, batchID string) (*models.VehicleBulkUploadBatch, error) {
	var batch models.VehicleBulkUploadBatch
	err := r.db.WithContext(ctx).First(&batch, "batch_id = ?", batchID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBatchNotFound
		}
		return nil, err
	}
	return &batch, nil
}

// RecordValidationOutcomes stores every record of a batch and its counters together:
// one bulk insert for valid records, one for invalid records. Inserts are split every
// recordInsertBatchSize rows to stay under the postgres bind parameter limit.
func (r *bulkUploadRepository) RecordValidationOutcomes(ctx context.Context, batchID string, valid, invalid []models.VehicleBulkUploadRecord, counts BatchCounts) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(valid) > 0 {
			if err := tx.CreateInBatches(&valid, recordInsertBatchSize).Error; err != nil {
				return fmt.Errorf("failed to insert valid records: %w", err)
			}
		}
		if len(invalid) > 0 {
			if err := tx.CreateInBatches(&invalid, recordInsertBatchSize).Error; err != nil {
				return fmt.Errorf("failed to insert invalid records: %w", err)
			}
		}
		if cols := counts.columns(); len(cols) > 0 {
			if err := tx.Model(&models.VehicleBulkUploadBatch{}).Where("batch_id = ?", batchID).Updates(cols).Error; err != nil {
				return fmt.Errorf("failed to update batch counts: %w", err)
			}
		}
		return nil
	})
}

func (r *bulkUploadRepository) UpdateBatchCounts(ctx context.Context, batchID string, counts BatchCounts) error {
	cols := counts.columns()
	if len(cols) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&models.VehicleBulkUploadBatch{}).
		Where("batch_id = ?", batchID).
		Updates(cols).Error
}

// UpdateBatchStage records progress of a processing batch. ErrBatchFinalized is
// returned when the batch has already been closed.
func (r *bulkUploadRepository) UpdateBatchStage(ctx context.Context, batchID string, stage models.BulkUploadStage) error {
	res := r.db.WithContext(ctx).Model(&models.VehicleBulkUploadBatch{}).
		Where("batch_id = ? AND status = ?", batchID, models.BulkUploadProcessing).
		Update("stage", stage)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrBatchFinalized
	}
	return nil
}

// UpdateBatchStatus moves a batch out of processing. A batch that already reached
// a terminal status is left untouched and ErrBatchFinalized is returned.
func (r *bulkUploadRepository) UpdateBatchStatus(ctx context.Context, batchID string, status models.BulkUploadStatus, stage models.BulkUploadStage, errorMessage *string) error {
	cols := map[string]interface{}{
		"status":       status,
		"stage":        stage,
		"processed_at": time.Now(),
	}
	if errorMessage != nil {
		cols["error_message"] = *errorMessage
	}

	res := r.db.WithContext(ctx).Model(&models.VehicleBulkUploadBatch{}).
		Where("batch_id = ? AND status = ?", batchID, models.BulkUploadProcessing).
		Updates(cols)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrBatchFinalized
	}
	return nil
}

func (r *bulkUploadRepository) SetErrorReport(ctx context.Context, batchID, path string) error {
	return r.db.WithContext(ctx).Model(&models.VehicleBulkUploadBatch{}).
		Where("batch_id = ?", batchID).
		Update("error_report_path", path).Error
}

func (r *bulkUploadRepository) MarkRecordsCreated(ctx context.Context, created []CreatedRecord) error {
	if len(created) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, c := range created {
			cols := map[string]interface{}{
				"creation_status":        models.CreationSucceeded,
				"created_vehicle_id":     c.VehicleID,
				"pending_document_count": c.PendingDocumentCount,
				"creation_note":          c.CreationNote,
			}
			if err := tx.Model(&models.VehicleBulkUploadRecord{}).Where("id = ?", c.RecordID).Updates(cols).Error; err != nil {
				return fmt.Errorf("failed to mark record %s created: %w", c.RecordID, err)
			}
		}
		return nil
	})
}

func (r *bulkUploadRepository) MarkRecordsCreationFailed(ctx context.Context, recordIDs []uuid.UUID, message string) error {
	if len(recordIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&models.VehicleBulkUploadRecord{}).
		Where("id IN ?", recordIDs).
		Updates(map[string]interface{}{
			"creation_status": models.CreationFailed,
			"creation_error":  message,
		}).Error
}

// GetBatchErrors pages through the invalid records of a batch in row order,
// optionally together with valid records whose creation failed.
func (r *bulkUploadRepository) GetBatchErrors(ctx context.Context, batchID string, filter BatchErrorFilter) ([]models.VehicleBulkUploadRecord, int64, error) {
	var records []models.VehicleBulkUploadRecord
	var total int64

	query := func() *gorm.DB {
		db := r.db.WithContext(ctx).Model(&models.VehicleBulkUploadRecord{}).Where("batch_id = ?", batchID)
		if filter.IncludeCreationFailures {
			return db.Where("validation_status = ? OR creation_status = ?", models.RecordInvalid, models.CreationFailed)
		}
		return db.Where("validation_status = ?", models.RecordInvalid)
	}

	if err := query().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	db := query().Order("row_number ASC").Order("vehicle_ref_id ASC")
	if filter.Limit > 0 {
		db = db.Limit(filter.Limit).Offset(filter.Offset)
	}
	if err := db.Find(&records).Error; err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

// ListStaleBatches returns processing batches that have not moved since updatedBefore.
func (r *bulkUploadRepository) ListStaleBatches(ctx context.Context, updatedBefore time.Time) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&models.VehicleBulkUploadBatch{}).
		Where("status = ? AND updated_at < ?", models.BulkUploadProcessing, updatedBefore).
		Order("updated_at ASC").
		Pluck("batch_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list stale batches: %w", err)
	}
	return ids, nil
}
