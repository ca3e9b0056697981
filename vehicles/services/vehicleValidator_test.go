package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"logistics-backend/vehicles/repositories"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLookup struct {
	mu     sync.Mutex
	calls  map[repositories.IdentifierField][]string
	findFn func(field repositories.IdentifierField, values []string) (map[string]string, error)
}

func (f *fakeLookup) FindExistingIdentifiers(_ context.Context, field repositories.IdentifierField, values []string) (map[string]string, error) {
	f.mu.Lock()
	if f.calls == nil {
		f.calls = make(map[repositories.IdentifierField][]string)
	}
	f.calls[field] = values
	f.mu.Unlock()

	if f.findFn != nil {
		return f.findFn(field, values)
	}
	return map[string]string{}, nil
}

func basicRow(row int, ref, vin, gps string) BasicInformationRow {
	return BasicInformationRow{
		RowNumber:    row,
		VehicleRefID: ref,
		Make:         "Tata",
		Model:        "Prima",
		VINChassisNo: vin,
		GPSIMEINo:    gps,
	}
}

func specRow(row int, ref string) SpecificationRow {
	return SpecificationRow{
		RowNumber:        row,
		VehicleRefID:     ref,
		EngineTypeID:     "DIESEL_6CYL",
		EngineNumber:     "ENG12345",
		FuelTypeID:       "DIESEL",
		TransmissionType: "manual",
		Financer:         "HDFC",
		SuspensionType:   "leaf_spring",
	}
}

func errorsOfType(errs []ValidationError, t ErrorType) []ValidationError {
	var out []ValidationError
	for _, e := range errs {
		if e.ErrorType == t {
			out = append(out, e)
		}
	}
	return out
}

func TestValidateAll_CleanVehicleIsValid(t *testing.T) {
	wb := &ParsedWorkbook{
		BasicInformation: []BasicInformationRow{basicRow(2, "V1", "MAT111", "123456789012345")},
		Specifications:   []SpecificationRow{specRow(2, "V1")},
		CapacityDetails: []CapacityDetailRow{{
			RowNumber: 2, VehicleRefID: "V1", UnloadingWeightKG: "7000", GrossVehicleWeightKG: "16000", VehicleCondition: "good",
		}},
		OwnershipDetails: []OwnershipDetailRow{{
			RowNumber: 2, VehicleRefID: "V1", ValidFrom: "2023-01-01", ValidTo: "31/12/2025",
		}},
		Documents: []DocumentRow{
			{RowNumber: 2, VehicleRefID: "V1", DocumentTypeID: "INS", DocumentTypeName: "Insurance", ReferenceNumber: "POL-1"},
			{RowNumber: 3, VehicleRefID: "V1", DocumentTypeID: "PUC", DocumentTypeName: "Pollution", ReferenceNumber: "PUC-1"},
		},
	}

	result, err := NewValidator(&fakeLookup{}).ValidateAll(context.Background(), wb)
	require.NoError(t, err)

	require.Len(t, result.Valid, 1)
	assert.Empty(t, result.Invalid)
	v := result.Valid[0]
	assert.Equal(t, "V1", v.VehicleRefID)
	assert.Equal(t, 2, v.RowNumber)
	assert.NotNil(t, v.Payload.Specifications)
	assert.NotNil(t, v.Payload.CapacityDetails)
	assert.NotNil(t, v.Payload.OwnershipDetails)
	assert.Len(t, v.Payload.Documents, 2)
	assert.Equal(t, ValidationSummary{
		TotalRows:        1,
		ValidCount:       1,
		ErrorTypeCounts:  map[ErrorType]int{},
		SheetErrorCounts: map[string]int{},
	}, result.Summary)
}

func TestValidateAll_DuplicateVINFlagsOnlyLaterRow(t *testing.T) {
	wb := &ParsedWorkbook{
		BasicInformation: []BasicInformationRow{
			basicRow(2, "V1", "MAT123", "123456789012345"),
			basicRow(3, "V2", " mat123", "123456789012346"),
		},
	}

	result, err := NewValidator(&fakeLookup{}).ValidateAll(context.Background(), wb)
	require.NoError(t, err)

	require.Len(t, result.Valid, 1)
	assert.Equal(t, "V1", result.Valid[0].VehicleRefID)

	require.Len(t, result.Invalid, 1)
	errs := result.Invalid[0].Errors
	require.Len(t, errs, 1)
	assert.Equal(t, ErrDuplicateInBatch, errs[0].ErrorType)
	assert.Equal(t, ColVINChassisNo, errs[0].Field)
	assert.Equal(t, 3, errs[0].Row)
	assert.Equal(t, 2, errs[0].RelatedRow)
	assert.Equal(t, "MAT123", errs[0].Value)
}

func TestValidateAll_DuplicateRefIDAndRegistration(t *testing.T) {
	first := basicRow(2, "V1", "MAT111", "123456789012345")
	first.RegistrationNumber = "MH 12 AB 1234"
	second := basicRow(3, "V1", "MAT222", "123456789012346")
	second.RegistrationNumber = "mh12-ab1234"

	result, err := NewValidator(&fakeLookup{}).ValidateAll(context.Background(), &ParsedWorkbook{
		BasicInformation: []BasicInformationRow{first, second},
	})
	require.NoError(t, err)

	require.Len(t, result.Invalid, 1)
	dups := errorsOfType(result.Invalid[0].Errors, ErrDuplicateInBatch)
	require.Len(t, dups, 2)
	fields := []string{dups[0].Field, dups[1].Field}
	assert.ElementsMatch(t, []string{ColVehicleRefID, ColRegistrationNumber}, fields)
}

func TestValidateAll_OrphanRowsBecomeRelationalErrors(t *testing.T) {
	wb := &ParsedWorkbook{
		BasicInformation: []BasicInformationRow{basicRow(2, "V1", "MAT111", "123456789012345")},
		Specifications:   []SpecificationRow{specRow(2, "V1"), specRow(3, "V9")},
		Documents: []DocumentRow{
			{RowNumber: 2, VehicleRefID: "V9", DocumentTypeID: "INS", DocumentTypeName: "Insurance", ReferenceNumber: "POL-1"},
			{RowNumber: 3, VehicleRefID: "", DocumentTypeID: "PUC", DocumentTypeName: "Pollution", ReferenceNumber: "PUC-1"},
		},
	}

	result, err := NewValidator(&fakeLookup{}).ValidateAll(context.Background(), wb)
	require.NoError(t, err)

	require.Len(t, result.Valid, 1)
	require.Len(t, result.Invalid, 2)

	v9 := result.Invalid[0]
	assert.Equal(t, "V9", v9.VehicleRefID)
	assert.True(t, v9.IsOrphan())
	require.Len(t, v9.Errors, 2)
	assert.Equal(t, SheetSpecifications, v9.Errors[0].Sheet)
	assert.Equal(t, 3, v9.Errors[0].Row)
	assert.Equal(t, ErrRelationalIntegrity, v9.Errors[0].ErrorType)
	assert.Equal(t, ColVehicleRefID, v9.Errors[0].Field)
	assert.Equal(t, SheetDocuments, v9.Errors[1].Sheet)

	missing := result.Invalid[1]
	assert.Empty(t, missing.VehicleRefID)
	require.Len(t, missing.Errors, 1)
	assert.Contains(t, missing.Errors[0].Message, "is missing")

	assert.Equal(t, 3, result.Summary.TotalRows)
	assert.Equal(t, result.Summary.TotalRows, result.Summary.ValidCount+result.Summary.InvalidCount)
	assert.Equal(t, 3, result.Summary.ErrorTypeCounts[ErrRelationalIntegrity])
	assert.Equal(t, 1, result.Summary.SheetErrorCounts[SheetSpecifications])
	assert.Equal(t, 2, result.Summary.SheetErrorCounts[SheetDocuments])
}

func TestValidateAll_SecondAuxiliaryRowIsDuplicate(t *testing.T) {
	wb := &ParsedWorkbook{
		BasicInformation: []BasicInformationRow{basicRow(2, "V1", "MAT111", "123456789012345")},
		Specifications:   []SpecificationRow{specRow(2, "V1"), specRow(5, "V1")},
	}

	result, err := NewValidator(&fakeLookup{}).ValidateAll(context.Background(), wb)
	require.NoError(t, err)

	require.Len(t, result.Invalid, 1)
	errs := result.Invalid[0].Errors
	require.Len(t, errs, 1)
	assert.Equal(t, ErrDuplicateInBatch, errs[0].ErrorType)
	assert.Equal(t, SheetSpecifications, errs[0].Sheet)
	assert.Equal(t, 5, errs[0].Row)
	assert.Equal(t, 2, errs[0].RelatedRow)
}

func TestValidateAll_MissingVINIsNeverValid(t *testing.T) {
	result, err := NewValidator(&fakeLookup{}).ValidateAll(context.Background(), &ParsedWorkbook{
		BasicInformation: []BasicInformationRow{basicRow(2, "V1", "", "123456789012345")},
	})
	require.NoError(t, err)

	assert.Empty(t, result.Valid)
	require.Len(t, result.Invalid, 1)
	required := errorsOfType(result.Invalid[0].Errors, ErrRequiredField)
	require.Len(t, required, 1)
	assert.Equal(t, ColVINChassisNo, required[0].Field)
}

func TestValidateAll_FieldRules(t *testing.T) {
	basic := basicRow(2, "V1", "MAT111", "12345")
	basic.Make = "T"
	basic.GPSTrackerActiveFlag = "maybe"
	basic.ManufacturingDate = "someday"
	basic.TaxesAmount = "-10"

	spec := specRow(2, "V1")
	spec.TransmissionType = "hydraulic"
	spec.EngineNumber = "E1"

	wb := &ParsedWorkbook{
		BasicInformation: []BasicInformationRow{basic},
		Specifications:   []SpecificationRow{spec},
		CapacityDetails: []CapacityDetailRow{{
			RowNumber: 4, VehicleRefID: "V1", UnloadingWeightKG: "9000", GrossVehicleWeightKG: "8000",
		}},
		OwnershipDetails: []OwnershipDetailRow{{
			RowNumber: 2, VehicleRefID: "V1", ValidFrom: "2025-01-01", ValidTo: "2025-01-01",
		}},
	}

	result, err := NewValidator(&fakeLookup{}).ValidateAll(context.Background(), wb)
	require.NoError(t, err)
	require.Len(t, result.Invalid, 1)

	byField := make(map[string]ErrorType)
	for _, e := range result.Invalid[0].Errors {
		byField[e.Sheet+"/"+e.Field] = e.ErrorType
	}
	assert.Equal(t, ErrInvalidLength, byField[SheetBasicInformation+"/"+ColMake])
	assert.Equal(t, ErrInvalidFormat, byField[SheetBasicInformation+"/"+ColGPSIMEINo])
	assert.Equal(t, ErrInvalidValue, byField[SheetBasicInformation+"/"+ColGPSTrackerActiveFlag])
	assert.Equal(t, ErrInvalidDate, byField[SheetBasicInformation+"/"+ColManufacturingDate])
	assert.Equal(t, ErrInvalidNumber, byField[SheetBasicInformation+"/"+ColTaxesAmount])
	assert.Equal(t, ErrInvalidValue, byField[SheetSpecifications+"/"+ColTransmissionType])
	assert.Equal(t, ErrInvalidLength, byField[SheetSpecifications+"/"+ColEngineNumber])
	assert.Equal(t, ErrBusinessRuleViolation, byField[SheetCapacityDetails+"/"+ColGrossVehicleWeightKG])
	assert.Equal(t, ErrBusinessRuleViolation, byField[SheetOwnershipDetails+"/"+ColValidTo])

	// Errors come back in workbook order.
	errs := result.Invalid[0].Errors
	for i := 1; i < len(errs); i++ {
		assert.LessOrEqual(t, sheetRank(errs[i-1].Sheet), sheetRank(errs[i].Sheet))
	}
}

func TestValidateAll_DocumentRules(t *testing.T) {
	wb := &ParsedWorkbook{
		BasicInformation: []BasicInformationRow{basicRow(2, "V1", "MAT111", "123456789012345")},
		Documents: []DocumentRow{{
			RowNumber: 2, VehicleRefID: "V1", DocumentTypeID: "INS", DocumentTypeName: "Insurance",
			ValidFrom: "2024-02-30", PremiumAmount: "abc",
		}},
	}

	result, err := NewValidator(&fakeLookup{}).ValidateAll(context.Background(), wb)
	require.NoError(t, err)
	require.Len(t, result.Invalid, 1)

	types := make(map[string]ErrorType)
	for _, e := range result.Invalid[0].Errors {
		assert.Equal(t, SheetDocuments, e.Sheet)
		types[e.Field] = e.ErrorType
	}
	assert.Equal(t, ErrRequiredField, types[ColReferenceNumber])
	assert.Equal(t, ErrInvalidDate, types[ColValidFrom])
	assert.Equal(t, ErrInvalidNumber, types[ColPremiumAmount])
}

func TestValidateAll_DatabaseDuplicateCarriesExistingVehicleID(t *testing.T) {
	lookup := &fakeLookup{
		findFn: func(field repositories.IdentifierField, values []string) (map[string]string, error) {
			if field == repositories.IdentifierVIN {
				return map[string]string{"MAT123": "VEH0000007"}, nil
			}
			return map[string]string{}, nil
		},
	}
	wb := &ParsedWorkbook{
		BasicInformation: []BasicInformationRow{
			basicRow(2, "V1", "mat123", "123456789012345"),
			basicRow(3, "V2", "MAT999", "123456789012346"),
		},
	}

	result, err := NewValidator(lookup).ValidateAll(context.Background(), wb)
	require.NoError(t, err)

	require.Len(t, result.Valid, 1)
	require.Len(t, result.Invalid, 1)
	errs := result.Invalid[0].Errors
	require.Len(t, errs, 1)
	assert.Equal(t, ErrDuplicateInDatabase, errs[0].ErrorType)
	assert.Equal(t, "VEH0000007", errs[0].ExistingVehicleID)
	assert.Equal(t, ColVINChassisNo, errs[0].Field)

	// Lookups get normalized, de-duplicated values; blank registrations are not queried.
	assert.Equal(t, []string{"MAT123", "MAT999"}, lookup.calls[repositories.IdentifierVIN])
	assert.NotContains(t, lookup.calls, repositories.IdentifierRegistration)
}

func TestValidateAll_LookupErrorIsReturned(t *testing.T) {
	lookupErr := errors.New("connection refused")
	lookup := &fakeLookup{
		findFn: func(repositories.IdentifierField, []string) (map[string]string, error) {
			return nil, lookupErr
		},
	}

	result, err := NewValidator(lookup).ValidateAll(context.Background(), &ParsedWorkbook{
		BasicInformation: []BasicInformationRow{basicRow(2, "V1", "MAT111", "123456789012345")},
	})
	assert.Nil(t, result)
	assert.ErrorIs(t, err, lookupErr)
}

func TestValidateAll_IsIdempotent(t *testing.T) {
	wb := &ParsedWorkbook{
		BasicInformation: []BasicInformationRow{
			basicRow(2, "V1", "MAT123", "123456789012345"),
			basicRow(3, "V2", "MAT123", "1234"),
			basicRow(4, "V3", "", "123456789012347"),
		},
		Specifications: []SpecificationRow{specRow(2, "V1"), specRow(3, "V7")},
	}
	v := NewValidator(&fakeLookup{})

	first, err := v.ValidateAll(context.Background(), wb)
	require.NoError(t, err)
	second, err := v.ValidateAll(context.Background(), wb)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestValidateAll_ThreeRowScenario(t *testing.T) {
	wb := &ParsedWorkbook{
		BasicInformation: []BasicInformationRow{
			basicRow(2, "V1", "MAT111", "123456789012345"),
			basicRow(3, "V2", "", "123456789012346"),
			basicRow(4, "V3", "MAT111", "123456789012347"),
		},
	}

	result, err := NewValidator(&fakeLookup{}).ValidateAll(context.Background(), wb)
	require.NoError(t, err)

	assert.Equal(t, 3, result.Summary.TotalRows)
	assert.Equal(t, 1, result.Summary.ValidCount)
	assert.Equal(t, 2, result.Summary.InvalidCount)
	assert.Equal(t, 1, result.Summary.ErrorTypeCounts[ErrRequiredField])
	assert.Equal(t, 1, result.Summary.ErrorTypeCounts[ErrDuplicateInBatch])
	assert.Equal(t, 2, result.Summary.SheetErrorCounts[SheetBasicInformation])
	assert.Equal(t, "V2", result.Invalid[0].VehicleRefID)
	assert.Equal(t, "V3", result.Invalid[1].VehicleRefID)
}
