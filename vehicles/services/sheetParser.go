package services

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ParseError means the workbook could not be turned into sheet rows at all.
// It aborts the pipeline before any upload records are written.
type ParseError struct {
	Sheet  string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	msg := e.Reason
	if e.Sheet != "" {
		msg = fmt.Sprintf("sheet %q: %s", e.Sheet, e.Reason)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ParseWorkbookFile opens an uploaded workbook from disk and parses it.
func ParseWorkbookFile(path string) (*ParsedWorkbook, error) {
	f, err := excelize.OpenFile(path, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, &ParseError{Reason: "unable to open workbook", Err: err}
	}
	defer f.Close()
	return ParseWorkbook(f)
}

// ParseWorkbookReader parses a workbook from an in-memory stream.
func ParseWorkbookReader(r io.Reader) (*ParsedWorkbook, error) {
	f, err := excelize.OpenReader(r, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, &ParseError{Reason: "unable to read workbook", Err: err}
	}
	defer f.Close()
	return ParseWorkbook(f)
}

// ParseWorkbook reads the five template sheets into typed rows. Every row keeps
// its spreadsheet row number; completely blank rows are skipped. Cell contents
// are not validated here.
func ParseWorkbook(f *excelize.File) (*ParsedWorkbook, error) {
	tables := make(map[string]*sheetTable, len(SheetOrder))
	for _, name := range SheetOrder {
		table, err := readSheet(f, name)
		if err != nil {
			return nil, err
		}
		tables[name] = table
	}

	wb := &ParsedWorkbook{}

	basic := tables[SheetBasicInformation]
	for _, r := range basic.rows {
		wb.BasicInformation = append(wb.BasicInformation, BasicInformationRow{
			RowNumber:            r.number,
			VehicleRefID:         basic.value(r, ColVehicleRefID),
			Make:                 basic.value(r, ColMake),
			Model:                basic.value(r, ColModel),
			VINChassisNo:         basic.value(r, ColVINChassisNo),
			GPSIMEINo:            basic.value(r, ColGPSIMEINo),
			RegistrationNumber:   basic.value(r, ColRegistrationNumber),
			VehicleTypeID:        basic.value(r, ColVehicleTypeID),
			ManufacturingDate:    basic.value(r, ColManufacturingDate),
			UsageType:            basic.value(r, ColUsageType),
			GPSTrackerActiveFlag: basic.value(r, ColGPSTrackerActiveFlag),
			BlacklistStatus:      basic.value(r, ColBlacklistStatus),
			SafetyInspectionDone: basic.value(r, ColSafetyInspectionDone),
			TaxesAmount:          basic.value(r, ColTaxesAmount),
			RoadTax:              basic.value(r, ColRoadTax),
			MaxSpeedKMPH:         basic.value(r, ColMaxSpeedKMPH),
			AvgSpeedKMPH:         basic.value(r, ColAvgSpeedKMPH),
		})
	}

	specs := tables[SheetSpecifications]
	for _, r := range specs.rows {
		wb.Specifications = append(wb.Specifications, SpecificationRow{
			RowNumber:        r.number,
			VehicleRefID:     specs.value(r, ColVehicleRefID),
			EngineTypeID:     specs.value(r, ColEngineTypeID),
			EngineNumber:     specs.value(r, ColEngineNumber),
			FuelTypeID:       specs.value(r, ColFuelTypeID),
			TransmissionType: specs.value(r, ColTransmissionType),
			Financer:         specs.value(r, ColFinancer),
			SuspensionType:   specs.value(r, ColSuspensionType),
			EmissionStandard: specs.value(r, ColEmissionStandard),
		})
	}

	capacity := tables[SheetCapacityDetails]
	for _, r := range capacity.rows {
		wb.CapacityDetails = append(wb.CapacityDetails, CapacityDetailRow{
			RowNumber:            r.number,
			VehicleRefID:         capacity.value(r, ColVehicleRefID),
			UnloadingWeightKG:    capacity.value(r, ColUnloadingWeightKG),
			GrossVehicleWeightKG: capacity.value(r, ColGrossVehicleWeightKG),
			LengthMM:             capacity.value(r, ColLengthMM),
			WidthMM:              capacity.value(r, ColWidthMM),
			HeightMM:             capacity.value(r, ColHeightMM),
			TowingCapacityKG:     capacity.value(r, ColTowingCapacityKG),
			FuelTankCapacityL:    capacity.value(r, ColFuelTankCapacityL),
			SeatingCapacity:      capacity.value(r, ColSeatingCapacity),
			LoadCapacityKG:       capacity.value(r, ColLoadCapacityKG),
			VehicleCondition:     capacity.value(r, ColVehicleCondition),
		})
	}

	ownership := tables[SheetOwnershipDetails]
	for _, r := range ownership.rows {
		wb.OwnershipDetails = append(wb.OwnershipDetails, OwnershipDetailRow{
			RowNumber:        r.number,
			VehicleRefID:     ownership.value(r, ColVehicleRefID),
			OwnershipName:    ownership.value(r, ColOwnershipName),
			ValidFrom:        ownership.value(r, ColValidFrom),
			ValidTo:          ownership.value(r, ColValidTo),
			RegistrationDate: ownership.value(r, ColRegistrationDate),
			RegistrationUpto: ownership.value(r, ColRegistrationUpto),
			PurchaseDate:     ownership.value(r, ColPurchaseDate),
			OwnerSrNumber:    ownership.value(r, ColOwnerSrNumber),
			StateCode:        ownership.value(r, ColStateCode),
			RTOCode:          ownership.value(r, ColRTOCode),
			SaleAmount:       ownership.value(r, ColSaleAmount),
		})
	}

	docs := tables[SheetDocuments]
	for _, r := range docs.rows {
		wb.Documents = append(wb.Documents, DocumentRow{
			RowNumber:        r.number,
			VehicleRefID:     docs.value(r, ColVehicleRefID),
			DocumentTypeID:   docs.value(r, ColDocumentTypeID),
			DocumentTypeName: docs.value(r, ColDocumentTypeName),
			ReferenceNumber:  docs.value(r, ColReferenceNumber),
			DocumentProvider: docs.value(r, ColDocumentProvider),
			PremiumAmount:    docs.value(r, ColPremiumAmount),
			ValidFrom:        docs.value(r, ColValidFrom),
			ValidTo:          docs.value(r, ColValidTo),
			Remarks:          docs.value(r, ColRemarks),
		})
	}

	return wb, nil
}

type sheetRow struct {
	number int
	cells  []string
}

// sheetTable is one sheet's data rows plus a header lookup.
type sheetTable struct {
	columns map[string]int
	rows    []sheetRow
}

func headerKey(h string) string {
	return strings.ToLower(strings.TrimSpace(h))
}

func (t *sheetTable) value(r sheetRow, column string) string {
	idx, ok := t.columns[headerKey(column)]
	if !ok || idx >= len(r.cells) {
		return ""
	}
	return strings.TrimSpace(r.cells[idx])
}

func readSheet(f *excelize.File, name string) (*sheetTable, error) {
	actual := ""
	for _, s := range f.GetSheetList() {
		if headerKey(s) == headerKey(name) {
			actual = s
			break
		}
	}
	if actual == "" {
		return nil, &ParseError{Sheet: name, Reason: "sheet is missing from the workbook"}
	}

	rows, err := f.GetRows(actual)
	if err != nil {
		return nil, &ParseError{Sheet: name, Reason: "unable to read rows", Err: err}
	}

	table := &sheetTable{columns: make(map[string]int)}
	if len(rows) == 0 {
		return table, nil
	}

	for i, h := range rows[0] {
		key := headerKey(h)
		if key == "" {
			continue
		}
		if _, dup := table.columns[key]; !dup {
			table.columns[key] = i
		}
	}
	if _, ok := table.columns[headerKey(ColVehicleRefID)]; !ok {
		return nil, &ParseError{Sheet: name, Reason: fmt.Sprintf("header row has no %s column", ColVehicleRefID)}
	}

	for i := 1; i < len(rows); i++ {
		if isBlankRow(rows[i]) {
			continue
		}
		table.rows = append(table.rows, sheetRow{number: i + 1, cells: rows[i]})
	}
	return table, nil
}

func isBlankRow(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
