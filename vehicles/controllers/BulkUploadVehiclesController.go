package controllers

import (
	"encoding/json"
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"logistics-backend/config"
	"logistics-backend/db/models"
	"logistics-backend/middleware"
	"logistics-backend/utils"
	"logistics-backend/utils/pagination"
	"logistics-backend/vehicles/repositories"
	"logistics-backend/vehicles/services"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type VehicleController struct {
	BatchRepo   repositories.BulkUploadRepository
	StatusCache repositories.BatchStatusCache
	Uploads     utils.FileStorage
	Reports     utils.FileStorage
	Enqueuer    services.TaskEnqueuer
	// TaskTimeout bounds one batch on the worker; zero means services.DefaultBulkUploadTimeout.
	TaskTimeout time.Duration
}

// BatchErrorItem is one invalid vehicle in the error listing.
type BatchErrorItem struct {
	VehicleRefID           string                     `json:"vehicleRefId"`
	RowNumber              int                        `json:"rowNumber"`
	ValidationStatus       string                     `json:"validationStatus"`
	CreationStatus         string                     `json:"creationStatus"`
	CreationError          *string                    `json:"creationError,omitempty"`
	Errors                 []services.ValidationError `json:"errors"`
	BasicIdentifyingFields map[string]string          `json:"basicIdentifyingFields"`
}

// BulkUploadVehicles accepts a workbook, records the batch and queues it for processing.
func (vc *VehicleController) BulkUploadVehicles(c *fiber.Ctx) error {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"message": "Unauthorized",
			"error":   "Authentication required",
		})
	}

	file, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Failed to get file",
			"error":   "multipart field 'file' is required",
		})
	}
	if !strings.EqualFold(filepath.Ext(file.Filename), ".xlsx") {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid file type",
			"error":   "only .xlsx workbooks are accepted",
		})
	}

	batchID := uuid.New().String()

	src, err := file.Open()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Failed to read file",
			"error":   err.Error(),
		})
	}
	defer src.Close()

	storedName := batchID + ".xlsx"
	filePath, err := vc.Uploads.UploadFileFromReader(src, storedName)
	if err != nil {
		config.Logger.Error("Failed to save bulk upload file", zap.String("batchID", batchID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Failed to save file",
			"error":   err.Error(),
		})
	}

	batch := &models.VehicleBulkUploadBatch{
		BatchID:    batchID,
		UploadedBy: actor,
		FileName:   file.Filename,
		Status:     models.BulkUploadProcessing,
		Stage:      models.StageAccepted,
	}
	if err := vc.BatchRepo.CreateBatch(c.UserContext(), batch); err != nil {
		config.Logger.Error("Failed to create bulk upload batch", zap.String("batchID", batchID), zap.Error(err))
		_ = vc.Uploads.DeleteFile(storedName)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Failed to create upload batch",
			"error":   err.Error(),
		})
	}

	job := services.BulkUploadJob{
		BatchID:  batchID,
		FilePath: filePath,
		FileName: file.Filename,
		ActorID:  actor,
	}
	if err := services.EnqueueVehicleBulkUpload(c.UserContext(), vc.Enqueuer, job, vc.TaskTimeout); err != nil {
		config.Logger.Error("Failed to enqueue bulk upload", zap.String("batchID", batchID), zap.Error(err))
		msg := err.Error()
		if updateErr := vc.BatchRepo.UpdateBatchStatus(c.UserContext(), batchID, models.BulkUploadFailed, models.StageFailed, &msg); updateErr != nil {
			config.Logger.Error("Failed to mark unqueued batch failed", zap.String("batchID", batchID), zap.Error(updateErr))
		}
		_ = vc.Uploads.DeleteFile(storedName)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Failed to queue upload for processing",
			"error":   msg,
		})
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"message": "Upload accepted for processing",
		"data": fiber.Map{
			"batch_id": batchID,
			"status":   models.BulkUploadProcessing,
		},
		"error": nil,
	})
}

// GetBulkUploadStatus reports the progress counters of a batch.
func (vc *VehicleController) GetBulkUploadStatus(c *fiber.Ctx) error {
	batch, err := vc.loadBatch(c, c.Params("batchId"))
	if err != nil {
		return vc.batchLookupError(c, err)
	}

	return c.JSON(fiber.Map{
		"message": "Bulk upload status retrieved successfully",
		"data": fiber.Map{
			"batchId":              batch.BatchID,
			"fileName":             batch.FileName,
			"status":               batch.Status,
			"stage":                batch.Stage,
			"totalRows":            batch.TotalRows,
			"validCount":           batch.ValidCount,
			"invalidCount":         batch.InvalidCount,
			"createdCount":         batch.CreatedCount,
			"creationFailedCount":  batch.CreationFailedCount,
			"errorReportAvailable": batch.ErrorReportPath != nil,
			"errorMessage":         batch.ErrorMessage,
			"createdAt":            batch.CreatedAt,
			"processedAt":          batch.ProcessedAt,
		},
		"error": nil,
	})
}

// GetBulkUploadErrors lists invalid vehicles of a batch, page by page.
func (vc *VehicleController) GetBulkUploadErrors(c *fiber.Ctx) error {
	batchID := c.Params("batchId")
	if _, err := vc.loadBatch(c, batchID); err != nil {
		return vc.batchLookupError(c, err)
	}

	params := pagination.ParsePaginationParams(c)
	if err := pagination.ValidatePaginationParams(params); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid pagination parameters",
			"error":   err.Error(),
		})
	}

	records, total, err := vc.BatchRepo.GetBatchErrors(c.UserContext(), batchID, repositories.BatchErrorFilter{
		IncludeCreationFailures: c.QueryBool("include_creation_failures", false),
		Limit:                   params.PageSize,
		Offset:                  (params.Page - 1) * params.PageSize,
	})
	if err != nil {
		config.Logger.Error("Failed to fetch bulk upload errors", zap.String("batchID", batchID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Failed to fetch bulk upload errors",
			"error":   err.Error(),
		})
	}

	items := make([]BatchErrorItem, 0, len(records))
	for _, rec := range records {
		items = append(items, toBatchErrorItem(rec))
	}

	return c.JSON(fiber.Map{
		"message": "Bulk upload errors retrieved successfully",
		"data":    pagination.NewPaginatedResponse(c, items, total, params),
		"error":   nil,
	})
}

// DownloadErrorReport streams the error workbook once it has been generated.
func (vc *VehicleController) DownloadErrorReport(c *fiber.Ctx) error {
	batch, err := vc.loadBatch(c, c.Params("batchId"))
	if err != nil {
		return vc.batchLookupError(c, err)
	}
	if batch.ErrorReportPath == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"message": "Error report not available",
			"error":   "no error report has been generated for this batch",
		})
	}

	name := filepath.Base(*batch.ErrorReportPath)
	report, err := vc.Reports.DownloadFile(name)
	if err != nil {
		config.Logger.Warn("Error report file unavailable",
			zap.String("batchID", batch.BatchID),
			zap.String("path", *batch.ErrorReportPath),
			zap.Error(err))
		if errors.Is(err, fs.ErrNotExist) {
			return c.Status(fiber.StatusGone).JSON(fiber.Map{
				"message": "Error report no longer available",
				"error":   "the report file has expired",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Failed to read error report",
			"error":   err.Error(),
		})
	}

	c.Attachment(name)
	c.Set(fiber.HeaderContentType, xlsxContentType)
	// fasthttp closes the stream once the body is written.
	return c.SendStream(report)
}

func (vc *VehicleController) loadBatch(c *fiber.Ctx, batchID string) (*models.VehicleBulkUploadBatch, error) {
	if _, err := uuid.Parse(batchID); err != nil {
		return nil, repositories.ErrBatchNotFound
	}

	if vc.StatusCache != nil {
		cached, ok, err := vc.StatusCache.Get(c.UserContext(), batchID)
		if err != nil {
			config.Logger.Warn("Batch status cache read failed", zap.String("batchID", batchID), zap.Error(err))
		} else if ok {
			return cached, nil
		}
	}

	batch, err := vc.BatchRepo.GetBatch(c.UserContext(), batchID)
	if err != nil {
		return nil, err
	}
	if vc.StatusCache != nil && batch.Status.IsTerminal() {
		if err := vc.StatusCache.Set(c.UserContext(), batch); err != nil {
			config.Logger.Warn("Batch status cache write failed", zap.String("batchID", batchID), zap.Error(err))
		}
	}
	return batch, nil
}

func (vc *VehicleController) batchLookupError(c *fiber.Ctx, err error) error {
	if errors.Is(err, repositories.ErrBatchNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"message": "Bulk upload batch not found",
			"error":   err.Error(),
		})
	}
	config.Logger.Error("Failed to load bulk upload batch", zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"message": "Failed to load bulk upload batch",
		"error":   err.Error(),
	})
}

func toBatchErrorItem(rec models.VehicleBulkUploadRecord) BatchErrorItem {
	item := BatchErrorItem{
		VehicleRefID:           rec.VehicleRefID,
		RowNumber:              rec.RowNumber,
		ValidationStatus:       string(rec.ValidationStatus),
		CreationStatus:         string(rec.CreationStatus),
		CreationError:          rec.CreationError,
		Errors:                 []services.ValidationError{},
		BasicIdentifyingFields: map[string]string{},
	}

	if len(rec.ValidationErrors) > 0 {
		if err := json.Unmarshal(rec.ValidationErrors, &item.Errors); err != nil {
			config.Logger.Warn("Corrupt validation errors on record", zap.String("recordID", rec.ID.String()), zap.Error(err))
		}
	}

	var payload services.VehiclePayload
	if len(rec.VehicleData) > 0 && json.Unmarshal(rec.VehicleData, &payload) == nil && payload.BasicInformation != nil {
		b := payload.BasicInformation
		item.BasicIdentifyingFields = map[string]string{
			"make":               b.Make,
			"model":              b.Model,
			"vinChassisNo":       b.VINChassisNo,
			"gpsImeiNo":          b.GPSIMEINo,
			"registrationNumber": b.RegistrationNumber,
		}
	}
	return item
}
