package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type BulkUploadStatus string

const (
	BulkUploadProcessing BulkUploadStatus = "processing"
	BulkUploadCompleted  BulkUploadStatus = "completed"
	BulkUploadFailed     BulkUploadStatus = "failed"
)

// IsTerminal reports whether a batch can no longer change status.
func (s BulkUploadStatus) IsTerminal() bool {
	return s == BulkUploadCompleted || s == BulkUploadFailed
}

// BulkUploadStage is the last pipeline state a batch reached.
type BulkUploadStage string

const (
	StageAccepted           BulkUploadStage = "accepted"
	StageParsing            BulkUploadStage = "parsing"
	StageValidating         BulkUploadStage = "validating"
	StagePersistingOutcomes BulkUploadStage = "persisting_outcomes"
	StageReportingErrors    BulkUploadStage = "reporting_errors"
	StageCreating           BulkUploadStage = "creating"
	StageCompleted          BulkUploadStage = "completed"
	StageFailed             BulkUploadStage = "failed"
)

type RecordValidationStatus string

const (
	RecordValid   RecordValidationStatus = "valid"
	RecordInvalid RecordValidationStatus = "invalid"
)

type RecordCreationStatus string

const (
	CreationPending       RecordCreationStatus = "pending"
	CreationSucceeded     RecordCreationStatus = "created"
	CreationFailed        RecordCreationStatus = "failed"
	CreationNotApplicable RecordCreationStatus = "not_applicable"
)

// VehicleBulkUploadBatch tracks one upload attempt from acceptance to a terminal status.
type VehicleBulkUploadBatch struct {
	ID                  uuid.UUID        `gorm:"type:uuid;primary_key;" json:"id"`
	BatchID             string           `gorm:"type:varchar(64);uniqueIndex;not null" json:"batch_id"`
	UploadedBy          string           `gorm:"not null;index" json:"uploaded_by"`
	FileName            string           `gorm:"not null" json:"file_name"`
	TotalRows           int              `gorm:"default:0" json:"total_rows"`
	ValidCount          int              `gorm:"default:0" json:"valid_count"`
	InvalidCount        int              `gorm:"default:0" json:"invalid_count"`
	CreatedCount        int              `gorm:"default:0" json:"created_count"`
	CreationFailedCount int              `gorm:"default:0" json:"creation_failed_count"`
	Status              BulkUploadStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	Stage               BulkUploadStage  `gorm:"type:varchar(30);not null" json:"stage"`
	ErrorReportPath     *string          `json:"error_report_path"`
	ErrorMessage        *string          `gorm:"type:text" json:"error_message"`
	CreatedAt           time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
	ProcessedAt         *time.Time       `json:"processed_at"`
}

// VehicleBulkUploadRecord is the validation (and later creation) outcome for one
// vehicle reference within a batch.
type VehicleBulkUploadRecord struct {
	ID                   uuid.UUID              `gorm:"type:uuid;primary_key;" json:"id"`
	BatchID              string                 `gorm:"type:varchar(64);not null;index" json:"batch_id"`
	VehicleRefID         string                 `gorm:"type:varchar(100);index" json:"vehicle_ref_id"`
	RowNumber            int                    `json:"row_number"`
	ValidationStatus     RecordValidationStatus `gorm:"type:varchar(10);not null;index" json:"validation_status"`
	ValidationErrors     datatypes.JSON         `gorm:"type:jsonb" json:"validation_errors"`
	VehicleData          datatypes.JSON         `gorm:"type:jsonb" json:"vehicle_data"`
	CreatedVehicleID     *string                `gorm:"type:varchar(20)" json:"created_vehicle_id"`
	CreationStatus       RecordCreationStatus   `gorm:"type:varchar(20);not null;default:'pending'" json:"creation_status"`
	CreationError        *string                `gorm:"type:text" json:"creation_error"`
	PendingDocumentCount int                    `gorm:"default:0" json:"pending_document_count"`
	CreationNote         *string                `json:"creation_note"`
	CreatedAt            time.Time              `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time              `gorm:"autoUpdateTime" json:"updated_at"`

	Batch *VehicleBulkUploadBatch `gorm:"foreignKey:BatchID;references:BatchID" json:"-"`
}

func (b *VehicleBulkUploadBatch) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

func (r *VehicleBulkUploadRecord) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
