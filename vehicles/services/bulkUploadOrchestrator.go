package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"

	"logistics-backend/config"
	"logistics-backend/db/models"
	"logistics-backend/vehicles/repositories"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gorm.io/datatypes"
)

// BatchStore is the persistence the orchestrator drives a batch through.
type BatchStore interface {
	CreationRecorder
	UpdateBatchStage(ctx context.Context, batchID string, stage models.BulkUploadStage) error
	UpdateBatchStatus(ctx context.Context, batchID string, status models.BulkUploadStatus, stage models.BulkUploadStage, errorMessage *string) error
	RecordValidationOutcomes(ctx context.Context, batchID string, valid, invalid []models.VehicleBulkUploadRecord, counts repositories.BatchCounts) error
	UpdateBatchCounts(ctx context.Context, batchID string, counts repositories.BatchCounts) error
	SetErrorReport(ctx context.Context, batchID, path string) error
}

type WorkbookValidator interface {
	ValidateAll(ctx context.Context, wb *ParsedWorkbook) (*ValidationResult, error)
}

type ErrorReporter interface {
	Generate(batchID string, invalid []VehicleEntry) (string, error)
}

type VehicleCreator interface {
	CreateValidVehicles(ctx context.Context, candidates []CreationCandidate, batchID, actor string, progress func(ChunkProgress)) (*CreationResult, error)
}

// ProgressNotifier delivers fire-and-forget progress updates to whoever watches a batch.
type ProgressNotifier interface {
	PublishProgress(batchID string, payload interface{})
}

type noopNotifier struct{}

func (noopNotifier) PublishProgress(string, interface{}) {}

// BulkUploadJob identifies one accepted upload.
type BulkUploadJob struct {
	BatchID  string `json:"batch_id"`
	FilePath string `json:"file_path"`
	FileName string `json:"file_name"`
	ActorID  string `json:"actor_id"`
}

// BulkUploadProgress is the notification payload published at every stage.
type BulkUploadProgress struct {
	BatchID      string                  `json:"batch_id"`
	Status       models.BulkUploadStatus `json:"status"`
	Stage        models.BulkUploadStage  `json:"stage"`
	Message      string                  `json:"message,omitempty"`
	Summary      *ValidationSummary      `json:"summary,omitempty"`
	Chunk        *ChunkProgress          `json:"chunk,omitempty"`
	CreatedCount *int                    `json:"created_count,omitempty"`
	FailedCount  *int                    `json:"creation_failed_count,omitempty"`
}

// BulkUploadOrchestrator runs one batch from parsing to a terminal status.
type BulkUploadOrchestrator struct {
	store     BatchStore
	parse     func(path string) (*ParsedWorkbook, error)
	validator WorkbookValidator
	reporter  ErrorReporter
	creator   VehicleCreator
	notifier  ProgressNotifier

	// Chunk notifications per second; stage changes are never throttled.
	chunkRate rate.Limit
}

func NewBulkUploadOrchestrator(store BatchStore, validator WorkbookValidator, reporter ErrorReporter, creator VehicleCreator, notifier ProgressNotifier) *BulkUploadOrchestrator {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &BulkUploadOrchestrator{
		store:     store,
		parse:     ParseWorkbookFile,
		validator: validator,
		reporter:  reporter,
		creator:   creator,
		notifier:  notifier,
		chunkRate: rate.Limit(2),
	}
}

// Run processes the batch. Any error it returns has already been recorded as
// the batch's failure; data problems in rows are not errors.
func (o *BulkUploadOrchestrator) Run(ctx context.Context, job BulkUploadJob) (err error) {
	defer func() {
		if r := recover(); r != nil {
			config.Logger.Error("Bulk upload panicked",
				zap.String("batchID", job.BatchID),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
			err = fmt.Errorf("unexpected failure while processing batch: %v", r)
			o.fail(ctx, job.BatchID, err)
		}
	}()

	if err := o.run(ctx, job); err != nil {
		o.fail(ctx, job.BatchID, err)
		return err
	}
	return nil
}

func (o *BulkUploadOrchestrator) run(ctx context.Context, job BulkUploadJob) error {
	batchID := job.BatchID
	log := config.Logger.With(zap.String("batchID", batchID))

	if err := o.enterStage(ctx, batchID, models.StageParsing); errors.Is(err, repositories.ErrBatchFinalized) {
		log.Warn("Batch was closed before processing started, skipping")
		return nil
	}
	wb, err := o.parse(job.FilePath)
	if err != nil {
		return fmt.Errorf("%s: %w", FailureParse, err)
	}
	log.Info("Workbook parsed",
		zap.Int("basicRows", len(wb.BasicInformation)),
		zap.Int("documentRows", len(wb.Documents)))

	o.enterStage(ctx, batchID, models.StageValidating)
	result, err := o.validator.ValidateAll(ctx, wb)
	if err != nil {
		return fmt.Errorf("validation could not complete: %w", err)
	}

	o.enterStage(ctx, batchID, models.StagePersistingOutcomes)
	candidates, err := o.persistOutcomes(ctx, batchID, result)
	if err != nil {
		return err
	}
	summary := result.Summary
	o.notifier.PublishProgress(batchID, BulkUploadProgress{
		BatchID: batchID,
		Status:  models.BulkUploadProcessing,
		Stage:   models.StagePersistingOutcomes,
		Summary: &summary,
	})
	log.Info("Validation outcomes stored",
		zap.Int("total", summary.TotalRows),
		zap.Int("valid", summary.ValidCount),
		zap.Int("invalid", summary.InvalidCount))

	if len(result.Invalid) > 0 {
		o.enterStage(ctx, batchID, models.StageReportingErrors)
		o.reportErrors(ctx, batchID, result.Invalid)
	}

	o.enterStage(ctx, batchID, models.StageCreating)
	created, failed := 0, 0
	if len(candidates) > 0 {
		limiter := rate.NewLimiter(o.chunkRate, 1)
		creation, err := o.creator.CreateValidVehicles(ctx, candidates, batchID, job.ActorID, func(p ChunkProgress) {
			if p.Chunk != p.TotalChunks && !limiter.Allow() {
				return
			}
			o.notifier.PublishProgress(batchID, BulkUploadProgress{
				BatchID: batchID,
				Status:  models.BulkUploadProcessing,
				Stage:   models.StageCreating,
				Chunk:   &p,
			})
		})
		if err != nil {
			return fmt.Errorf("%s: %w", FailureCreation, err)
		}
		created, failed = len(creation.Created), len(creation.Failed)
	}
	if err := o.store.UpdateBatchCounts(ctx, batchID, repositories.BatchCounts{
		CreatedCount:        &created,
		CreationFailedCount: &failed,
	}); err != nil {
		return fmt.Errorf("failed to store creation counts: %w", err)
	}

	if err := o.store.UpdateBatchStatus(ctx, batchID, models.BulkUploadCompleted, models.StageCompleted, nil); err != nil {
		if errors.Is(err, repositories.ErrBatchFinalized) {
			log.Warn("Batch was finalized elsewhere before completion")
			return nil
		}
		return fmt.Errorf("failed to complete batch: %w", err)
	}

	o.notifier.PublishProgress(batchID, BulkUploadProgress{
		BatchID:      batchID,
		Status:       models.BulkUploadCompleted,
		Stage:        models.StageCompleted,
		Summary:      &summary,
		CreatedCount: &created,
		FailedCount:  &failed,
	})
	log.Info("Bulk upload completed",
		zap.Int("created", created),
		zap.Int("creationFailed", failed))
	return nil
}

// persistOutcomes stores one record per entry and returns the valid entries keyed
// by their new record ids.
func (o *BulkUploadOrchestrator) persistOutcomes(ctx context.Context, batchID string, result *ValidationResult) ([]CreationCandidate, error) {
	valid := make([]models.VehicleBulkUploadRecord, 0, len(result.Valid))
	candidates := make([]CreationCandidate, 0, len(result.Valid))
	for _, e := range result.Valid {
		rec, err := newUploadRecord(batchID, e, models.RecordValid, models.CreationPending)
		if err != nil {
			return nil, err
		}
		valid = append(valid, rec)
		candidates = append(candidates, CreationCandidate{RecordID: rec.ID, Entry: e})
	}

	invalid := make([]models.VehicleBulkUploadRecord, 0, len(result.Invalid))
	for _, e := range result.Invalid {
		rec, err := newUploadRecord(batchID, e, models.RecordInvalid, models.CreationNotApplicable)
		if err != nil {
			return nil, err
		}
		invalid = append(invalid, rec)
	}

	total, validCount, invalidCount := result.Summary.TotalRows, result.Summary.ValidCount, result.Summary.InvalidCount
	err := o.store.RecordValidationOutcomes(ctx, batchID, valid, invalid, repositories.BatchCounts{
		TotalRows:    &total,
		ValidCount:   &validCount,
		InvalidCount: &invalidCount,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store validation outcomes: %w", err)
	}
	return candidates, nil
}

func newUploadRecord(batchID string, e VehicleEntry, status models.RecordValidationStatus, creation models.RecordCreationStatus) (models.VehicleBulkUploadRecord, error) {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return models.VehicleBulkUploadRecord{}, fmt.Errorf("failed to encode vehicle %q: %w", e.VehicleRefID, err)
	}
	errs := e.Errors
	if errs == nil {
		errs = []ValidationError{}
	}
	encodedErrs, err := json.Marshal(errs)
	if err != nil {
		return models.VehicleBulkUploadRecord{}, fmt.Errorf("failed to encode errors for %q: %w", e.VehicleRefID, err)
	}
	return models.VehicleBulkUploadRecord{
		ID:               uuid.New(),
		BatchID:          batchID,
		VehicleRefID:     e.VehicleRefID,
		RowNumber:        e.RowNumber,
		ValidationStatus: status,
		ValidationErrors: datatypes.JSON(encodedErrs),
		VehicleData:      datatypes.JSON(payload),
		CreationStatus:   creation,
	}, nil
}

// reportErrors is best effort: a missing report never fails the batch.
func (o *BulkUploadOrchestrator) reportErrors(ctx context.Context, batchID string, invalid []VehicleEntry) {
	path, err := o.reporter.Generate(batchID, invalid)
	if err != nil {
		config.Logger.Error("Error report generation failed",
			zap.String("batchID", batchID),
			zap.String("failure", FailureReportGeneration),
			zap.Error(err))
		return
	}
	if err := o.store.SetErrorReport(ctx, batchID, path); err != nil {
		config.Logger.Error("Failed to store error report path",
			zap.String("batchID", batchID),
			zap.String("failure", FailureReportGeneration),
			zap.Error(err))
	}
}

func (o *BulkUploadOrchestrator) enterStage(ctx context.Context, batchID string, stage models.BulkUploadStage) error {
	err := o.store.UpdateBatchStage(ctx, batchID, stage)
	if err != nil {
		config.Logger.Warn("Failed to record batch stage",
			zap.String("batchID", batchID),
			zap.String("stage", string(stage)),
			zap.Error(err))
		if errors.Is(err, repositories.ErrBatchFinalized) {
			return err
		}
	}
	o.notifier.PublishProgress(batchID, BulkUploadProgress{
		BatchID: batchID,
		Status:  models.BulkUploadProcessing,
		Stage:   stage,
	})
	return err
}

func (o *BulkUploadOrchestrator) fail(ctx context.Context, batchID string, cause error) {
	msg := cause.Error()
	config.Logger.Error("Bulk upload failed", zap.String("batchID", batchID), zap.Error(cause))

	// The batch must be closed even when the task context is already done.
	err := o.store.UpdateBatchStatus(context.WithoutCancel(ctx), batchID, models.BulkUploadFailed, models.StageFailed, &msg)
	if err != nil && !errors.Is(err, repositories.ErrBatchFinalized) {
		config.Logger.Error("Failed to mark batch failed", zap.String("batchID", batchID), zap.Error(err))
	}
	o.notifier.PublishProgress(batchID, BulkUploadProgress{
		BatchID: batchID,
		Status:  models.BulkUploadFailed,
		Stage:   models.StageFailed,
		Message: msg,
	})
}
