package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// VehicleBasicInformation is the root operational vehicle record. VehicleID is the
// human-facing generated identifier (VEH0000001); its unique index is what keeps
// concurrent bulk uploads from allocating the same identifier twice.
type VehicleBasicInformation struct {
	ID                   uuid.UUID        `gorm:"type:uuid;primary_key;" json:"id"`
	VehicleID            string           `gorm:"type:varchar(20);uniqueIndex;not null" json:"vehicle_id"`
	VehicleRefID         string           `gorm:"type:varchar(100);index" json:"vehicle_ref_id"`
	Make                 string           `gorm:"type:varchar(100);not null" json:"make"`
	Model                string           `gorm:"type:varchar(100);not null" json:"model"`
	VINChassisNo         string           `gorm:"column:vin_chassis_no;type:varchar(50);uniqueIndex;not null" json:"vin_chassis_no"`
	GPSIMEINo            string           `gorm:"column:gps_imei_no;type:varchar(15);uniqueIndex;not null" json:"gps_imei_no"`
	RegistrationNumber   *string          `gorm:"type:varchar(50)" json:"registration_number"`
	VehicleTypeID        *string          `gorm:"type:varchar(50)" json:"vehicle_type_id"`
	ManufacturingDate    *time.Time       `json:"manufacturing_date"`
	UsageType            *string          `gorm:"type:varchar(50)" json:"usage_type"`
	GPSTrackerActive     bool             `gorm:"column:gps_tracker_active;default:false" json:"gps_tracker_active"`
	Blacklisted          bool             `gorm:"default:false" json:"blacklisted"`
	SafetyInspectionDone bool             `gorm:"default:false" json:"safety_inspection_done"`
	TaxesAmount          *decimal.Decimal `gorm:"type:decimal(15,2)" json:"taxes_amount"`
	RoadTax              *decimal.Decimal `gorm:"type:decimal(15,2)" json:"road_tax"`
	MaxSpeedKMPH         *decimal.Decimal `gorm:"column:max_speed_kmph;type:decimal(8,2)" json:"max_speed_kmph"`
	AvgSpeedKMPH         *decimal.Decimal `gorm:"column:avg_speed_kmph;type:decimal(8,2)" json:"avg_speed_kmph"`
	IsActive             bool             `gorm:"default:true" json:"is_active"`

	// Set when the vehicle was created by a bulk upload batch
	UploadBatchID *string `gorm:"type:varchar(64);index" json:"upload_batch_id"`

	// Audit fields
	CreatedBy string         `gorm:"not null" json:"created_by"`
	UpdatedBy *string        `json:"updated_by"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (VehicleBasicInformation) TableName() string {
	return "vehicle_basic_information"
}

type VehicleSpecification struct {
	ID               uuid.UUID `gorm:"type:uuid;primary_key;" json:"id"`
	VehicleID        string    `gorm:"type:varchar(20);uniqueIndex;not null" json:"vehicle_id"`
	EngineTypeID     string    `gorm:"type:varchar(50);not null" json:"engine_type_id"`
	EngineNumber     string    `gorm:"type:varchar(50);not null" json:"engine_number"`
	FuelTypeID       string    `gorm:"type:varchar(50);not null" json:"fuel_type_id"`
	TransmissionType string    `gorm:"type:varchar(20);not null" json:"transmission_type"`
	Financer         string    `gorm:"type:varchar(100);not null" json:"financer"`
	SuspensionType   string    `gorm:"type:varchar(30);not null" json:"suspension_type"`
	EmissionStandard *string   `gorm:"type:varchar(30)" json:"emission_standard"`

	CreatedBy string    `gorm:"not null" json:"created_by"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type VehicleCapacityDetail struct {
	ID                   uuid.UUID        `gorm:"type:uuid;primary_key;" json:"id"`
	VehicleID            string           `gorm:"type:varchar(20);uniqueIndex;not null" json:"vehicle_id"`
	UnloadingWeightKG    *decimal.Decimal `gorm:"column:unloading_weight_kg;type:decimal(12,2)" json:"unloading_weight_kg"`
	GrossVehicleWeightKG *decimal.Decimal `gorm:"column:gross_vehicle_weight_kg;type:decimal(12,2)" json:"gross_vehicle_weight_kg"`
	LengthMM             *decimal.Decimal `gorm:"column:length_mm;type:decimal(10,2)" json:"length_mm"`
	WidthMM              *decimal.Decimal `gorm:"column:width_mm;type:decimal(10,2)" json:"width_mm"`
	HeightMM             *decimal.Decimal `gorm:"column:height_mm;type:decimal(10,2)" json:"height_mm"`
	TowingCapacityKG     *decimal.Decimal `gorm:"column:towing_capacity_kg;type:decimal(12,2)" json:"towing_capacity_kg"`
	FuelTankCapacityL    *decimal.Decimal `gorm:"column:fuel_tank_capacity_l;type:decimal(10,2)" json:"fuel_tank_capacity_l"`
	SeatingCapacity      *decimal.Decimal `gorm:"type:decimal(6,0)" json:"seating_capacity"`
	LoadCapacityKG       *decimal.Decimal `gorm:"column:load_capacity_kg;type:decimal(12,2)" json:"load_capacity_kg"`
	VehicleCondition     *string          `gorm:"type:varchar(20)" json:"vehicle_condition"`

	CreatedBy string    `gorm:"not null" json:"created_by"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type VehicleOwnershipDetail struct {
	ID               uuid.UUID        `gorm:"type:uuid;primary_key;" json:"id"`
	VehicleID        string           `gorm:"type:varchar(20);index;not null" json:"vehicle_id"`
	OwnershipName    *string          `gorm:"type:varchar(150)" json:"ownership_name"`
	ValidFrom        *time.Time       `json:"valid_from"`
	ValidTo          *time.Time       `json:"valid_to"`
	RegistrationDate *time.Time       `json:"registration_date"`
	RegistrationUpto *time.Time       `json:"registration_upto"`
	PurchaseDate     *time.Time       `json:"purchase_date"`
	OwnerSrNumber    *string          `gorm:"type:varchar(20)" json:"owner_sr_number"`
	StateCode        *string          `gorm:"type:varchar(10)" json:"state_code"`
	RTOCode          *string          `gorm:"column:rto_code;type:varchar(20)" json:"rto_code"`
	SaleAmount       *decimal.Decimal `gorm:"type:decimal(15,2)" json:"sale_amount"`

	CreatedBy string    `gorm:"not null" json:"created_by"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// VehicleDocument rows are uploaded separately together with their files; the
// bulk upload pipeline validates document rows but never writes this table.
type VehicleDocument struct {
	ID               uuid.UUID        `gorm:"type:uuid;primary_key;" json:"id"`
	VehicleID        string           `gorm:"type:varchar(20);index;not null" json:"vehicle_id"`
	DocumentTypeID   string           `gorm:"type:varchar(50);not null" json:"document_type_id"`
	DocumentTypeName string           `gorm:"type:varchar(100);not null" json:"document_type_name"`
	ReferenceNumber  string           `gorm:"type:varchar(100);not null" json:"reference_number"`
	DocumentProvider *string          `gorm:"type:varchar(150)" json:"document_provider"`
	PremiumAmount    *decimal.Decimal `gorm:"type:decimal(15,2)" json:"premium_amount"`
	ValidFrom        *time.Time       `json:"valid_from"`
	ValidTo          *time.Time       `json:"valid_to"`
	Remarks          *string          `gorm:"type:varchar(500)" json:"remarks"`
	FilePath         *string          `json:"file_path"`

	CreatedBy string         `gorm:"not null" json:"created_by"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// BeforeCreate hooks
func (v *VehicleBasicInformation) BeforeCreate(tx *gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}

func (s *VehicleSpecification) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

func (c *VehicleCapacityDetail) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

func (o *VehicleOwnershipDetail) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

func (d *VehicleDocument) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}
