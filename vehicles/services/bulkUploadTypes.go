package services

// Sheet names as they appear in the upload template.
const (
	SheetBasicInformation = "Basic Information"
	SheetSpecifications   = "Specifications"
	SheetCapacityDetails  = "Capacity Details"
	SheetOwnershipDetails = "Ownership Details"
	SheetDocuments        = "Documents"
)

// SheetOrder is the order sheets appear in the workbook and in error reports.
var SheetOrder = []string{
	SheetBasicInformation,
	SheetSpecifications,
	SheetCapacityDetails,
	SheetOwnershipDetails,
	SheetDocuments,
}

// Pipeline failure categories. Only PARSE_FAILURE and unexpected errors fail a batch.
const (
	FailureParse            = "PARSE_FAILURE"
	FailureValidation       = "VALIDATION_ERROR"
	FailureCreation         = "CREATION_FAILURE"
	FailureReportGeneration = "REPORT_GENERATION_FAILURE"
)

type ErrorType string

const (
	ErrRequiredField         ErrorType = "REQUIRED_FIELD"
	ErrInvalidValue          ErrorType = "INVALID_VALUE"
	ErrInvalidFormat         ErrorType = "INVALID_FORMAT"
	ErrInvalidDate           ErrorType = "INVALID_DATE"
	ErrInvalidNumber         ErrorType = "INVALID_NUMBER"
	ErrInvalidLength         ErrorType = "INVALID_LENGTH"
	ErrRelationalIntegrity   ErrorType = "RELATIONAL_INTEGRITY"
	ErrDuplicateInBatch      ErrorType = "DUPLICATE_IN_BATCH"
	ErrDuplicateInDatabase   ErrorType = "DUPLICATE_IN_DATABASE"
	ErrBusinessRuleViolation ErrorType = "BUSINESS_RULE_VIOLATION"
)

// ValidationError is one structured problem found in an uploaded row.
type ValidationError struct {
	Sheet             string    `json:"sheet"`
	Row               int       `json:"row"`
	Field             string    `json:"field"`
	ErrorType         ErrorType `json:"error_type"`
	Message           string    `json:"message"`
	Value             string    `json:"value,omitempty"`
	ExpectedFormat    string    `json:"expected_format,omitempty"`
	RelatedRow        int       `json:"related_row,omitempty"`
	ExistingVehicleID string    `json:"existing_vehicle_id,omitempty"`
}

// Column headers per sheet.
const (
	ColVehicleRefID = "Vehicle_Ref_ID"

	ColMake                 = "Make"
	ColModel                = "Model"
	ColVINChassisNo         = "VIN_Chassis_No"
	ColGPSIMEINo            = "GPS_IMEI_No"
	ColRegistrationNumber   = "Registration_Number"
	ColVehicleTypeID        = "Vehicle_Type_ID"
	ColManufacturingDate    = "Manufacturing_Date"
	ColUsageType            = "Usage_Type"
	ColGPSTrackerActiveFlag = "GPS_Tracker_Active_Flag"
	ColBlacklistStatus      = "Blacklist_Status"
	ColSafetyInspectionDone = "Safety_Inspection_Done"
	ColTaxesAmount          = "Taxes_Amount"
	ColRoadTax              = "Road_Tax"
	ColMaxSpeedKMPH         = "Max_Speed_KMPH"
	ColAvgSpeedKMPH         = "Avg_Speed_KMPH"

	ColEngineTypeID     = "Engine_Type_ID"
	ColEngineNumber     = "Engine_Number"
	ColFuelTypeID       = "Fuel_Type_ID"
	ColTransmissionType = "Transmission_Type"
	ColFinancer         = "Financer"
	ColSuspensionType   = "Suspension_Type"
	ColEmissionStandard = "Emission_Standard"

	ColUnloadingWeightKG    = "Unloading_Weight_KG"
	ColGrossVehicleWeightKG = "Gross_Vehicle_Weight_KG"
	ColLengthMM             = "Length_MM"
	ColWidthMM              = "Width_MM"
	ColHeightMM             = "Height_MM"
	ColTowingCapacityKG     = "Towing_Capacity_KG"
	ColFuelTankCapacityL    = "Fuel_Tank_Capacity_L"
	ColSeatingCapacity      = "Seating_Capacity"
	ColLoadCapacityKG       = "Load_Capacity_KG"
	ColVehicleCondition     = "Vehicle_Condition"

	ColOwnershipName    = "Ownership_Name"
	ColValidFrom        = "Valid_From"
	ColValidTo          = "Valid_To"
	ColRegistrationDate = "Registration_Date"
	ColRegistrationUpto = "Registration_Upto"
	ColPurchaseDate     = "Purchase_Date"
	ColOwnerSrNumber    = "Owner_Sr_Number"
	ColStateCode        = "State_Code"
	ColRTOCode          = "RTO_Code"
	ColSaleAmount       = "Sale_Amount"

	ColDocumentTypeID   = "Document_Type_ID"
	ColDocumentTypeName = "Document_Type_Name"
	ColReferenceNumber  = "Reference_Number"
	ColDocumentProvider = "Document_Provider"
	ColPremiumAmount    = "Premium_Amount"
	ColRemarks          = "Remarks"
)

// BasicInformationRow holds the raw cell text of one Basic Information row.
type BasicInformationRow struct {
	RowNumber            int    `json:"row_number"`
	VehicleRefID         string `json:"vehicle_ref_id"`
	Make                 string `json:"make"`
	Model                string `json:"model"`
	VINChassisNo         string `json:"vin_chassis_no"`
	GPSIMEINo            string `json:"gps_imei_no"`
	RegistrationNumber   string `json:"registration_number,omitempty"`
	VehicleTypeID        string `json:"vehicle_type_id,omitempty"`
	ManufacturingDate    string `json:"manufacturing_date,omitempty"`
	UsageType            string `json:"usage_type,omitempty"`
	GPSTrackerActiveFlag string `json:"gps_tracker_active_flag,omitempty"`
	BlacklistStatus      string `json:"blacklist_status,omitempty"`
	SafetyInspectionDone string `json:"safety_inspection_done,omitempty"`
	TaxesAmount          string `json:"taxes_amount,omitempty"`
	RoadTax              string `json:"road_tax,omitempty"`
	MaxSpeedKMPH         string `json:"max_speed_kmph,omitempty"`
	AvgSpeedKMPH         string `json:"avg_speed_kmph,omitempty"`
}

type SpecificationRow struct {
	RowNumber        int    `json:"row_number"`
	VehicleRefID     string `json:"vehicle_ref_id"`
	EngineTypeID     string `json:"engine_type_id"`
	EngineNumber     string `json:"engine_number"`
	FuelTypeID       string `json:"fuel_type_id"`
	TransmissionType string `json:"transmission_type"`
	Financer         string `json:"financer"`
	SuspensionType   string `json:"suspension_type"`
	EmissionStandard string `json:"emission_standard,omitempty"`
}

type CapacityDetailRow struct {
	RowNumber            int    `json:"row_number"`
	VehicleRefID         string `json:"vehicle_ref_id"`
	UnloadingWeightKG    string `json:"unloading_weight_kg,omitempty"`
	GrossVehicleWeightKG string `json:"gross_vehicle_weight_kg,omitempty"`
	LengthMM             string `json:"length_mm,omitempty"`
	WidthMM              string `json:"width_mm,omitempty"`
	HeightMM             string `json:"height_mm,omitempty"`
	TowingCapacityKG     string `json:"towing_capacity_kg,omitempty"`
	FuelTankCapacityL    string `json:"fuel_tank_capacity_l,omitempty"`
	SeatingCapacity      string `json:"seating_capacity,omitempty"`
	LoadCapacityKG       string `json:"load_capacity_kg,omitempty"`
	VehicleCondition     string `json:"vehicle_condition,omitempty"`
}

type OwnershipDetailRow struct {
	RowNumber        int    `json:"row_number"`
	VehicleRefID     string `json:"vehicle_ref_id"`
	OwnershipName    string `json:"ownership_name,omitempty"`
	ValidFrom        string `json:"valid_from,omitempty"`
	ValidTo          string `json:"valid_to,omitempty"`
	RegistrationDate string `json:"registration_date,omitempty"`
	RegistrationUpto string `json:"registration_upto,omitempty"`
	PurchaseDate     string `json:"purchase_date,omitempty"`
	OwnerSrNumber    string `json:"owner_sr_number,omitempty"`
	StateCode        string `json:"state_code,omitempty"`
	RTOCode          string `json:"rto_code,omitempty"`
	SaleAmount       string `json:"sale_amount,omitempty"`
}

type DocumentRow struct {
	RowNumber        int    `json:"row_number"`
	VehicleRefID     string `json:"vehicle_ref_id"`
	DocumentTypeID   string `json:"document_type_id"`
	DocumentTypeName string `json:"document_type_name"`
	ReferenceNumber  string `json:"reference_number"`
	DocumentProvider string `json:"document_provider,omitempty"`
	PremiumAmount    string `json:"premium_amount,omitempty"`
	ValidFrom        string `json:"valid_from,omitempty"`
	ValidTo          string `json:"valid_to,omitempty"`
	Remarks          string `json:"remarks,omitempty"`
}

// ParsedWorkbook is the Sheet Parser output: one typed collection per sheet.
type ParsedWorkbook struct {
	BasicInformation []BasicInformationRow
	Specifications   []SpecificationRow
	CapacityDetails  []CapacityDetailRow
	OwnershipDetails []OwnershipDetailRow
	Documents        []DocumentRow
}

// VehiclePayload joins every sheet's rows for one vehicle reference.
type VehiclePayload struct {
	BasicInformation *BasicInformationRow `json:"basic_information,omitempty"`
	Specifications   *SpecificationRow    `json:"specifications,omitempty"`
	CapacityDetails  *CapacityDetailRow   `json:"capacity_details,omitempty"`
	OwnershipDetails *OwnershipDetailRow  `json:"ownership_details,omitempty"`
	Documents        []DocumentRow        `json:"documents,omitempty"`
}

// VehicleEntry is the validation outcome for one vehicle reference. Entries with
// no BasicInformation are orphan groups: auxiliary rows whose reference id did not
// match any Basic Information row.
type VehicleEntry struct {
	VehicleRefID string            `json:"vehicle_ref_id"`
	RowNumber    int               `json:"row_number"`
	Payload      VehiclePayload    `json:"payload"`
	Errors       []ValidationError `json:"errors"`
}

// IsOrphan reports whether the entry has no Basic Information row.
func (e VehicleEntry) IsOrphan() bool {
	return e.Payload.BasicInformation == nil
}

type ValidationSummary struct {
	TotalRows        int               `json:"total_rows"`
	ValidCount       int               `json:"valid_count"`
	InvalidCount     int               `json:"invalid_count"`
	ErrorTypeCounts  map[ErrorType]int `json:"error_type_counts"`
	SheetErrorCounts map[string]int    `json:"sheet_error_counts"`
}

type ValidationResult struct {
	Valid   []VehicleEntry
	Invalid []VehicleEntry
	Summary ValidationSummary
}
