package repositories

import (
	"context"
	"fmt"

	"logistics-backend/db/models"

	"gorm.io/gorm"
)

// IdentifierField names a uniquely indexed identifying column of vehicle_basic_information.
type IdentifierField string

const (
	IdentifierVIN          IdentifierField = "vin_chassis_no"
	IdentifierGPSIMEI      IdentifierField = "gps_imei_no"
	IdentifierRegistration IdentifierField = "registration_number"
)

const (
	vehicleIDPrefix = "VEH"
	// Key for pg_advisory_xact_lock around vehicle id allocation.
	vehicleIDLockKey int64 = 7_340_001
	// Postgres caps bind parameters at 65535; stay well below it.
	lookupBatchSize = 1000
)

// FormatVehicleID renders a sequence number as a vehicle id, e.g. 42 -> VEH0000042.
func FormatVehicleID(n int64) string {
	return fmt.Sprintf("%s%07d", vehicleIDPrefix, n)
}

// VehicleBundle is every row written for one new vehicle. VehicleID fields are
// filled in by CreateVehicleChunk.
type VehicleBundle struct {
	Basic         models.VehicleBasicInformation
	Specification *models.VehicleSpecification
	Capacity      *models.VehicleCapacityDetail
	Ownership     *models.VehicleOwnershipDetail
}

type VehicleRepository interface {
	FindExistingIdentifiers(ctx context.Context, field IdentifierField, values []string) (map[string]string, error)
	CreateVehicleChunk(ctx context.Context, bundles []VehicleBundle) ([]string, error)
}

type vehicleRepository struct {
	db *gorm.DB
}

func NewVehicleRepository(db *gorm.DB) VehicleRepository {
	return &vehicleRepository{
		db: db,
	}
}

// FindExistingIdentifiers returns the stored vehicle id for every value already present
// in the given column. VIN and GPS uniqueness covers soft-deleted vehicles too, so
// those lookups are unscoped; the registration index only covers live rows.
func (r *vehicleRepository) FindExistingIdentifiers(ctx context.Context, field IdentifierField, values []string) (map[string]string, error) {
	switch field {
	case IdentifierVIN, IdentifierGPSIMEI, IdentifierRegistration:
	default:
		return nil, fmt.Errorf("unsupported identifier field %q", field)
	}

	found := make(map[string]string)
	for start := 0; start < len(values); start += lookupBatchSize {
		end := start + lookupBatchSize
		if end > len(values) {
			end = len(values)
		}

		var rows []struct {
			Value     string
			VehicleID string
		}
		q := r.db.WithContext(ctx).Model(&models.VehicleBasicInformation{})
		if field != IdentifierRegistration {
			q = q.Unscoped()
		}
		err := q.Select(fmt.Sprintf("%s AS value, vehicle_id", field)).
			Where(fmt.Sprintf("%s IN ?", field), values[start:end]).
			Scan(&rows).Error
		if err != nil {
			return nil, fmt.Errorf("failed to query existing %s: %w", field, err)
		}
		for _, row := range rows {
			found[row.Value] = row.VehicleID
		}
	}
	return found, nil
}

// CreateVehicleChunk writes a chunk of vehicles in one transaction and returns the
// allocated vehicle ids in bundle order. Allocation is serialised with a transaction
// scoped advisory lock; the unique index on vehicle_id is the final guard.
func (r *vehicleRepository) CreateVehicleChunk(ctx context.Context, bundles []VehicleBundle) ([]string, error) {
	if len(bundles) == 0 {
		return nil, nil
	}

	ids := make([]string, len(bundles))
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("SELECT pg_advisory_xact_lock(?)", vehicleIDLockKey).Error; err != nil {
			return fmt.Errorf("failed to lock vehicle id allocation: %w", err)
		}

		var last int64
		err := tx.Raw(`SELECT COALESCE(MAX(CAST(SUBSTRING(vehicle_id FROM 4) AS BIGINT)), 0)
			FROM vehicle_basic_information WHERE vehicle_id ~ '^VEH[0-9]+$'`).Scan(&last).Error
		if err != nil {
			return fmt.Errorf("failed to read last vehicle id: %w", err)
		}

		basics := make([]models.VehicleBasicInformation, 0, len(bundles))
		var specs []models.VehicleSpecification
		var capacities []models.VehicleCapacityDetail
		var ownerships []models.VehicleOwnershipDetail

		for i := range bundles {
			id := FormatVehicleID(last + int64(i) + 1)
			ids[i] = id

			basic := bundles[i].Basic
			basic.VehicleID = id
			basics = append(basics, basic)

			if s := bundles[i].Specification; s != nil {
				spec := *s
				spec.VehicleID = id
				specs = append(specs, spec)
			}
			if c := bundles[i].Capacity; c != nil {
				capacity := *c
				capacity.VehicleID = id
				capacities = append(capacities, capacity)
			}
			if o := bundles[i].Ownership; o != nil {
				ownership := *o
				ownership.VehicleID = id
				ownerships = append(ownerships, ownership)
			}
		}

		if err := tx.Create(&basics).Error; err != nil {
			return fmt.Errorf("failed to insert basic information: %w", err)
		}
		if len(specs) > 0 {
			if err := tx.Create(&specs).Error; err != nil {
				return fmt.Errorf("failed to insert specifications: %w", err)
			}
		}
		if len(capacities) > 0 {
			if err := tx.Create(&capacities).Error; err != nil {
				return fmt.Errorf("failed to insert capacity details: %w", err)
			}
		}
		if len(ownerships) > 0 {
			if err := tx.Create(&ownerships).Error; err != nil {
				return fmt.Errorf("failed to insert ownership details: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}
