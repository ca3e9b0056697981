package services

import (
	"context"
	"fmt"
	"time"

	"logistics-backend/config"
	"logistics-backend/db/models"
	"logistics-backend/vehicles/repositories"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	DefaultChunkSize = 50
	// DocumentsFollowUpNote is stored on created records that came with document rows.
	DocumentsFollowUpNote = "documents require manual follow-up"
)

// VehicleWriter inserts one chunk of vehicles atomically and returns their ids.
type VehicleWriter interface {
	CreateVehicleChunk(ctx context.Context, bundles []repositories.VehicleBundle) ([]string, error)
}

// CreationRecorder stores per-record creation outcomes.
type CreationRecorder interface {
	MarkRecordsCreated(ctx context.Context, created []repositories.CreatedRecord) error
	MarkRecordsCreationFailed(ctx context.Context, recordIDs []uuid.UUID, message string) error
}

// CreationCandidate is a valid entry together with the upload record it was stored as.
type CreationCandidate struct {
	RecordID uuid.UUID
	Entry    VehicleEntry
}

type CreatedVehicle struct {
	RecordID     uuid.UUID
	VehicleRefID string
	VehicleID    string
}

type FailedCreation struct {
	RecordID     uuid.UUID
	VehicleRefID string
	Message      string
}

type CreationResult struct {
	Created []CreatedVehicle
	Failed  []FailedCreation
	Chunks  int
}

// ChunkProgress is reported after every chunk.
type ChunkProgress struct {
	Chunk       int `json:"chunk"`
	TotalChunks int `json:"total_chunks"`
	Processed   int `json:"processed"`
	Total       int `json:"total"`
	Created     int `json:"created"`
	Failed      int `json:"failed"`
}

// Creator turns validated entries into operational vehicle rows, one transaction per chunk.
type Creator struct {
	writer    VehicleWriter
	recorder  CreationRecorder
	chunkSize int
}

func NewCreator(writer VehicleWriter, recorder CreationRecorder, chunkSize int) *Creator {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Creator{
		writer:    writer,
		recorder:  recorder,
		chunkSize: chunkSize,
	}
}

func (c *Creator) ChunkSize() int {
	return c.chunkSize
}

// CreateValidVehicles creates the candidates chunk by chunk. A failed chunk marks
// each of its records failed with the chunk's error and the next chunk still runs.
// The returned error is reserved for failures to record outcomes.
func (c *Creator) CreateValidVehicles(ctx context.Context, candidates []CreationCandidate, batchID, actor string, progress func(ChunkProgress)) (*CreationResult, error) {
	result := &CreationResult{}
	if len(candidates) == 0 {
		return result, nil
	}

	totalChunks := (len(candidates) + c.chunkSize - 1) / c.chunkSize
	for start := 0; start < len(candidates); start += c.chunkSize {
		end := start + c.chunkSize
		if end > len(candidates) {
			end = len(candidates)
		}
		chunk := candidates[start:end]
		result.Chunks++

		bundles := make([]repositories.VehicleBundle, 0, len(chunk))
		ready := make([]CreationCandidate, 0, len(chunk))
		for _, cand := range chunk {
			bundle, err := buildVehicleBundle(cand.Entry, batchID, actor)
			if err != nil {
				result.Failed = append(result.Failed, FailedCreation{
					RecordID:     cand.RecordID,
					VehicleRefID: cand.Entry.VehicleRefID,
					Message:      err.Error(),
				})
				continue
			}
			bundles = append(bundles, bundle)
			ready = append(ready, cand)
		}

		if len(bundles) > 0 {
			ids, err := c.writer.CreateVehicleChunk(ctx, bundles)
			if err == nil && len(ids) != len(ready) {
				err = fmt.Errorf("expected %d vehicle ids, got %d", len(ready), len(ids))
			}
			if err != nil {
				config.Logger.Error("Vehicle chunk creation failed",
					zap.String("batchID", batchID),
					zap.Int("chunk", result.Chunks),
					zap.Int("records", len(ready)),
					zap.Error(err))
				for _, cand := range ready {
					result.Failed = append(result.Failed, FailedCreation{
						RecordID:     cand.RecordID,
						VehicleRefID: cand.Entry.VehicleRefID,
						Message:      err.Error(),
					})
				}
			} else {
				for i, cand := range ready {
					result.Created = append(result.Created, CreatedVehicle{
						RecordID:     cand.RecordID,
						VehicleRefID: cand.Entry.VehicleRefID,
						VehicleID:    ids[i],
					})
				}
			}
		}

		if progress != nil {
			progress(ChunkProgress{
				Chunk:       result.Chunks,
				TotalChunks: totalChunks,
				Processed:   end,
				Total:       len(candidates),
				Created:     len(result.Created),
				Failed:      len(result.Failed),
			})
		}
	}

	if err := c.recordOutcomes(ctx, candidates, result); err != nil {
		return result, err
	}
	return result, nil
}

func (c *Creator) recordOutcomes(ctx context.Context, candidates []CreationCandidate, result *CreationResult) error {
	docs := make(map[uuid.UUID]int, len(candidates))
	for _, cand := range candidates {
		docs[cand.RecordID] = len(cand.Entry.Payload.Documents)
	}

	created := make([]repositories.CreatedRecord, 0, len(result.Created))
	for _, v := range result.Created {
		rec := repositories.CreatedRecord{
			RecordID:             v.RecordID,
			VehicleID:            v.VehicleID,
			PendingDocumentCount: docs[v.RecordID],
		}
		if rec.PendingDocumentCount > 0 {
			note := DocumentsFollowUpNote
			rec.CreationNote = &note
		}
		created = append(created, rec)
	}
	if err := c.recorder.MarkRecordsCreated(ctx, created); err != nil {
		return fmt.Errorf("failed to record created vehicles: %w", err)
	}

	// One update per distinct message; a failed chunk shares a single message.
	byMessage := make(map[string][]uuid.UUID)
	var order []string
	for _, f := range result.Failed {
		if _, ok := byMessage[f.Message]; !ok {
			order = append(order, f.Message)
		}
		byMessage[f.Message] = append(byMessage[f.Message], f.RecordID)
	}
	for _, msg := range order {
		if err := c.recorder.MarkRecordsCreationFailed(ctx, byMessage[msg], msg); err != nil {
			return fmt.Errorf("failed to record creation failures: %w", err)
		}
	}
	return nil
}

func buildVehicleBundle(e VehicleEntry, batchID, actor string) (repositories.VehicleBundle, error) {
	b := e.Payload.BasicInformation
	if b == nil {
		return repositories.VehicleBundle{}, fmt.Errorf("vehicle %q has no basic information", e.VehicleRefID)
	}

	var conv converter
	basic := models.VehicleBasicInformation{
		VehicleRefID:         b.VehicleRefID,
		Make:                 b.Make,
		Model:                b.Model,
		VINChassisNo:         NormalizeVIN(b.VINChassisNo),
		GPSIMEINo:            NormalizeGPSIMEI(b.GPSIMEINo),
		RegistrationNumber:   optionalString(NormalizeRegistration(b.RegistrationNumber)),
		VehicleTypeID:        optionalString(b.VehicleTypeID),
		ManufacturingDate:    conv.date(ColManufacturingDate, b.ManufacturingDate),
		UsageType:            optionalString(b.UsageType),
		GPSTrackerActive:     conv.flag(ColGPSTrackerActiveFlag, b.GPSTrackerActiveFlag),
		Blacklisted:          conv.flag(ColBlacklistStatus, b.BlacklistStatus),
		SafetyInspectionDone: conv.flag(ColSafetyInspectionDone, b.SafetyInspectionDone),
		TaxesAmount:          conv.number(ColTaxesAmount, b.TaxesAmount),
		RoadTax:              conv.number(ColRoadTax, b.RoadTax),
		MaxSpeedKMPH:         conv.number(ColMaxSpeedKMPH, b.MaxSpeedKMPH),
		AvgSpeedKMPH:         conv.number(ColAvgSpeedKMPH, b.AvgSpeedKMPH),
		IsActive:             true,
		UploadBatchID:        &batchID,
		CreatedBy:            actor,
	}
	bundle := repositories.VehicleBundle{Basic: basic}

	if s := e.Payload.Specifications; s != nil {
		bundle.Specification = &models.VehicleSpecification{
			EngineTypeID:     s.EngineTypeID,
			EngineNumber:     s.EngineNumber,
			FuelTypeID:       s.FuelTypeID,
			TransmissionType: NormalizeEnum(s.TransmissionType),
			Financer:         s.Financer,
			SuspensionType:   NormalizeEnum(s.SuspensionType),
			EmissionStandard: optionalString(s.EmissionStandard),
			CreatedBy:        actor,
		}
	}

	if cp := e.Payload.CapacityDetails; cp != nil {
		var condition *string
		if cp.VehicleCondition != "" {
			condition = optionalString(NormalizeEnum(cp.VehicleCondition))
		}
		bundle.Capacity = &models.VehicleCapacityDetail{
			UnloadingWeightKG:    conv.number(ColUnloadingWeightKG, cp.UnloadingWeightKG),
			GrossVehicleWeightKG: conv.number(ColGrossVehicleWeightKG, cp.GrossVehicleWeightKG),
			LengthMM:             conv.number(ColLengthMM, cp.LengthMM),
			WidthMM:              conv.number(ColWidthMM, cp.WidthMM),
			HeightMM:             conv.number(ColHeightMM, cp.HeightMM),
			TowingCapacityKG:     conv.number(ColTowingCapacityKG, cp.TowingCapacityKG),
			FuelTankCapacityL:    conv.number(ColFuelTankCapacityL, cp.FuelTankCapacityL),
			SeatingCapacity:      conv.number(ColSeatingCapacity, cp.SeatingCapacity),
			LoadCapacityKG:       conv.number(ColLoadCapacityKG, cp.LoadCapacityKG),
			VehicleCondition:     condition,
			CreatedBy:            actor,
		}
	}

	if o := e.Payload.OwnershipDetails; o != nil {
		bundle.Ownership = &models.VehicleOwnershipDetail{
			OwnershipName:    optionalString(o.OwnershipName),
			ValidFrom:        conv.date(ColValidFrom, o.ValidFrom),
			ValidTo:          conv.date(ColValidTo, o.ValidTo),
			RegistrationDate: conv.date(ColRegistrationDate, o.RegistrationDate),
			RegistrationUpto: conv.date(ColRegistrationUpto, o.RegistrationUpto),
			PurchaseDate:     conv.date(ColPurchaseDate, o.PurchaseDate),
			OwnerSrNumber:    optionalString(o.OwnerSrNumber),
			StateCode:        optionalString(o.StateCode),
			RTOCode:          optionalString(o.RTOCode),
			SaleAmount:       conv.number(ColSaleAmount, o.SaleAmount),
			CreatedBy:        actor,
		}
	}

	if conv.err != nil {
		return repositories.VehicleBundle{}, conv.err
	}
	return bundle, nil
}

// converter keeps the first conversion error so a bundle can be assembled in one pass.
type converter struct {
	err error
}

func (c *converter) fail(field, value string) {
	if c.err == nil {
		c.err = fmt.Errorf("cannot convert %s value %q", field, value)
	}
}

func (c *converter) number(field, value string) *decimal.Decimal {
	if value == "" {
		return nil
	}
	d, err := ParseSheetNumber(value)
	if err != nil {
		c.fail(field, value)
		return nil
	}
	return &d
}

func (c *converter) date(field, value string) *time.Time {
	if value == "" {
		return nil
	}
	t, err := ParseSheetDate(value)
	if err != nil {
		c.fail(field, value)
		return nil
	}
	return &t
}

func (c *converter) flag(field, value string) bool {
	if value == "" {
		return false
	}
	v, err := ParseYesNo(value)
	if err != nil {
		c.fail(field, value)
	}
	return v
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
