package services

import (
	"fmt"
	"path/filepath"
	"sort"

	"logistics-backend/config"
	"logistics-backend/utils"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const (
	ReportSummarySheet = "Summary"
	ReportErrorsSheet  = "Errors"
)

var (
	reportSummaryHeaders = []string{ColVehicleRefID, "Row", ColMake, ColModel, ColVINChassisNo, "Error_Count"}
	reportErrorHeaders   = []string{"Sheet", "Row", ColVehicleRefID, "Field", "Error_Type", "Message", "Value", "Expected_Format", "Related_Row", "Existing_Vehicle_ID"}
)

// ReportGenerator writes the downloadable error workbook for a batch.
type ReportGenerator struct {
	dir string
}

func NewReportGenerator(dir string) *ReportGenerator {
	return &ReportGenerator{dir: dir}
}

// ReportFileName is the name of the error workbook for a batch.
func ReportFileName(batchID string) string {
	return fmt.Sprintf("vehicle_bulk_upload_errors_%s.xlsx", batchID)
}

// Generate writes a Summary sheet (one row per invalid vehicle) and an Errors sheet
// (one row per error, grouped by sheet in workbook order) and returns the file path.
func (g *ReportGenerator) Generate(batchID string, invalid []VehicleEntry) (string, error) {
	path := filepath.Join(g.dir, ReportFileName(batchID))
	if err := utils.EnsureDirectoryExists(path); err != nil {
		return "", err
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := utils.WriteSheetRows(f, ReportSummarySheet, reportSummaryHeaders, summaryRows(invalid)); err != nil {
		return "", fmt.Errorf("failed to write summary sheet: %w", err)
	}
	if err := utils.WriteSheetRows(f, ReportErrorsSheet, reportErrorHeaders, errorRows(invalid)); err != nil {
		return "", fmt.Errorf("failed to write errors sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return "", err
	}
	if idx, err := f.GetSheetIndex(ReportSummarySheet); err == nil && idx >= 0 {
		f.SetActiveSheet(idx)
	}

	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("failed to save error report: %w", err)
	}

	config.Logger.Info("Bulk upload error report written",
		zap.String("batchID", batchID),
		zap.String("path", path),
		zap.Int("invalidVehicles", len(invalid)))
	return path, nil
}

func summaryRows(invalid []VehicleEntry) [][]interface{} {
	rows := make([][]interface{}, 0, len(invalid))
	for _, e := range invalid {
		var vehicleMake, model, vin string
		if b := e.Payload.BasicInformation; b != nil {
			vehicleMake, model, vin = b.Make, b.Model, b.VINChassisNo
		}
		rows = append(rows, []interface{}{e.VehicleRefID, e.RowNumber, vehicleMake, model, vin, len(e.Errors)})
	}
	return rows
}

type reportError struct {
	ref string
	ValidationError
}

func errorRows(invalid []VehicleEntry) [][]interface{} {
	var all []reportError
	for _, e := range invalid {
		for _, ve := range e.Errors {
			all = append(all, reportError{ref: e.VehicleRefID, ValidationError: ve})
		}
	}
	sort.SliceStable(all, func(i, j int) bool {
		if ri, rj := sheetRank(all[i].Sheet), sheetRank(all[j].Sheet); ri != rj {
			return ri < rj
		}
		return all[i].Row < all[j].Row
	})

	rows := make([][]interface{}, 0, len(all))
	for _, re := range all {
		var related interface{} = ""
		if re.RelatedRow > 0 {
			related = re.RelatedRow
		}
		rows = append(rows, []interface{}{
			re.Sheet,
			re.Row,
			re.ref,
			re.Field,
			string(re.ErrorType),
			re.Message,
			re.Value,
			re.ExpectedFormat,
			related,
			re.ExistingVehicleID,
		})
	}
	return rows
}
