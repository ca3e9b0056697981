package services

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestGenerate_WritesSummaryAndErrorSheets(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	v2 := basicRow(3, "V2", "", "123456789012346")
	v3 := basicRow(4, "V3", "MAT111", "123456789012347")

	invalid := []VehicleEntry{
		{
			VehicleRefID: "V2",
			RowNumber:    3,
			Payload:      VehiclePayload{BasicInformation: &v2},
			Errors: []ValidationError{
				{Sheet: SheetSpecifications, Row: 7, Field: ColEngineNumber, ErrorType: ErrInvalidLength, Message: "Engine_Number must be at least 5 characters", Value: "E1"},
				{Sheet: SheetBasicInformation, Row: 3, Field: ColVINChassisNo, ErrorType: ErrRequiredField, Message: "VIN_Chassis_No is required"},
			},
		},
		{
			VehicleRefID: "V3",
			RowNumber:    4,
			Payload:      VehiclePayload{BasicInformation: &v3},
			Errors: []ValidationError{
				{Sheet: SheetBasicInformation, Row: 4, Field: ColVINChassisNo, ErrorType: ErrDuplicateInBatch, Message: "duplicate", Value: "MAT111", RelatedRow: 2},
			},
		},
		{
			VehicleRefID: "V9",
			RowNumber:    5,
			Errors: []ValidationError{
				{Sheet: SheetDocuments, Row: 5, Field: ColVehicleRefID, ErrorType: ErrRelationalIntegrity, Message: "no match", Value: "V9"},
			},
		},
	}

	path, err := NewReportGenerator(dir).Generate("batch-1", invalid)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "vehicle_bulk_upload_errors_batch-1.xlsx"), path)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{ReportSummarySheet, ReportErrorsSheet}, f.GetSheetList())

	summary, err := f.GetRows(ReportSummarySheet)
	require.NoError(t, err)
	require.Len(t, summary, 4)
	assert.Equal(t, reportSummaryHeaders, summary[0])
	assert.Equal(t, []string{"V2", "3", "Tata", "Prima", "", "2"}, summary[1])
	assert.Equal(t, []string{"V3", "4", "Tata", "Prima", "MAT111", "1"}, summary[2])
	assert.Equal(t, "V9", summary[3][0])

	rows, err := f.GetRows(ReportErrorsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, reportErrorHeaders, rows[0])

	// Basic Information first, then by row, then later sheets.
	assert.Equal(t, []string{SheetBasicInformation, "3", "V2", ColVINChassisNo, string(ErrRequiredField)}, rows[1][:5])
	assert.Equal(t, []string{SheetBasicInformation, "4", "V3"}, rows[2][:3])
	assert.Equal(t, "2", rows[2][8])
	assert.Equal(t, SheetSpecifications, rows[3][0])
	assert.Equal(t, "E1", rows[3][6])
	assert.Equal(t, SheetDocuments, rows[4][0])
}
