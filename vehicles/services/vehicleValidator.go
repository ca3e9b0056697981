package services

import (
	"context"
	"fmt"
	"sort"

	"logistics-backend/vehicles/repositories"

	"golang.org/x/sync/errgroup"
)

// ExistingVehicleLookup answers "which of these identifiers are already stored"
// with one query per identifying field. The result maps value -> stored vehicle id.
type ExistingVehicleLookup interface {
	FindExistingIdentifiers(ctx context.Context, field repositories.IdentifierField, values []string) (map[string]string, error)
}

// Validator runs the four validation layers over a parsed workbook.
type Validator struct {
	lookup ExistingVehicleLookup
}

func NewValidator(lookup ExistingVehicleLookup) *Validator {
	return &Validator{lookup: lookup}
}

type identifierCheck struct {
	column string
	field  repositories.IdentifierField
	value  func(BasicInformationRow) string
}

// Identifying fields that must be unique within the upload and against storage.
var identifierChecks = []identifierCheck{
	{ColVINChassisNo, repositories.IdentifierVIN, func(r BasicInformationRow) string { return NormalizeVIN(r.VINChassisNo) }},
	{ColGPSIMEINo, repositories.IdentifierGPSIMEI, func(r BasicInformationRow) string { return NormalizeGPSIMEI(r.GPSIMEINo) }},
	{ColRegistrationNumber, repositories.IdentifierRegistration, func(r BasicInformationRow) string { return NormalizeRegistration(r.RegistrationNumber) }},
}

// ValidateAll partitions the workbook's vehicles into valid and invalid entries.
// Every Basic Information row yields exactly one entry; auxiliary rows that do not
// reference a Basic Information row are grouped into extra invalid entries per
// reference id. A returned error means storage could not be consulted, not that
// the data was bad.
func (v *Validator) ValidateAll(ctx context.Context, wb *ParsedWorkbook) (*ValidationResult, error) {
	entries := make([]*VehicleEntry, 0, len(wb.BasicInformation))
	byRef := make(map[string]*VehicleEntry, len(wb.BasicInformation))
	for i := range wb.BasicInformation {
		row := wb.BasicInformation[i]
		e := &VehicleEntry{
			VehicleRefID: row.VehicleRefID,
			RowNumber:    row.RowNumber,
			Payload:      VehiclePayload{BasicInformation: &row},
		}
		entries = append(entries, e)
		if row.VehicleRefID == "" {
			continue
		}
		if _, seen := byRef[row.VehicleRefID]; !seen {
			byRef[row.VehicleRefID] = e
		}
	}

	orphans := &orphanGroups{byRef: make(map[string]*VehicleEntry)}

	// Layer 1: relational integrity. Attaches auxiliary rows to their vehicle.
	attachAuxiliaryRows(wb, byRef, orphans)

	// Layer 2: duplicates inside this upload.
	checkBatchDuplicates(entries)

	// Layer 3: duplicates against stored vehicles.
	if err := v.checkExistingDuplicates(ctx, entries); err != nil {
		return nil, err
	}

	// Layer 4: field rules per sheet.
	for _, e := range entries {
		e.Errors = append(e.Errors, checkBasicInformation(*e.Payload.BasicInformation)...)
		if e.Payload.Specifications != nil {
			e.Errors = append(e.Errors, checkSpecification(*e.Payload.Specifications)...)
		}
		if e.Payload.CapacityDetails != nil {
			e.Errors = append(e.Errors, checkCapacityDetail(*e.Payload.CapacityDetails)...)
		}
		if e.Payload.OwnershipDetails != nil {
			e.Errors = append(e.Errors, checkOwnershipDetail(*e.Payload.OwnershipDetails)...)
		}
		for _, d := range e.Payload.Documents {
			e.Errors = append(e.Errors, checkDocument(d)...)
		}
	}

	result := &ValidationResult{
		Summary: ValidationSummary{
			ErrorTypeCounts:  make(map[ErrorType]int),
			SheetErrorCounts: make(map[string]int),
		},
	}
	for _, e := range append(entries, orphans.ordered...) {
		sortValidationErrors(e.Errors)
		if len(e.Errors) == 0 {
			result.Valid = append(result.Valid, *e)
			continue
		}
		result.Invalid = append(result.Invalid, *e)
		for _, ve := range e.Errors {
			result.Summary.ErrorTypeCounts[ve.ErrorType]++
			result.Summary.SheetErrorCounts[ve.Sheet]++
		}
	}
	result.Summary.ValidCount = len(result.Valid)
	result.Summary.InvalidCount = len(result.Invalid)
	result.Summary.TotalRows = result.Summary.ValidCount + result.Summary.InvalidCount

	return result, nil
}

// orphanGroups collects auxiliary rows that could not be linked, in first-seen order.
type orphanGroups struct {
	byRef   map[string]*VehicleEntry
	ordered []*VehicleEntry
}

func (o *orphanGroups) add(sheet string, row int, ref string, attach func(*VehiclePayload)) {
	g, ok := o.byRef[ref]
	if !ok {
		g = &VehicleEntry{VehicleRefID: ref, RowNumber: row}
		o.byRef[ref] = g
		o.ordered = append(o.ordered, g)
	}
	attach(&g.Payload)

	msg := fmt.Sprintf("%s %q does not match any row in %s", ColVehicleRefID, ref, SheetBasicInformation)
	if ref == "" {
		msg = fmt.Sprintf("%s is missing, row cannot be linked to %s", ColVehicleRefID, SheetBasicInformation)
	}
	g.Errors = append(g.Errors, ValidationError{
		Sheet:     sheet,
		Row:       row,
		Field:     ColVehicleRefID,
		ErrorType: ErrRelationalIntegrity,
		Message:   msg,
		Value:     ref,
	})
}

func duplicateSheetRow(sheet string, row, firstRow int, ref string) ValidationError {
	return ValidationError{
		Sheet:      sheet,
		Row:        row,
		Field:      ColVehicleRefID,
		ErrorType:  ErrDuplicateInBatch,
		Message:    fmt.Sprintf("%s already has a %s row (row %d)", ref, sheet, firstRow),
		Value:      ref,
		RelatedRow: firstRow,
	}
}

func attachAuxiliaryRows(wb *ParsedWorkbook, byRef map[string]*VehicleEntry, orphans *orphanGroups) {
	for i := range wb.Specifications {
		r := wb.Specifications[i]
		e, ok := byRef[r.VehicleRefID]
		switch {
		case !ok:
			orphans.add(SheetSpecifications, r.RowNumber, r.VehicleRefID, func(p *VehiclePayload) {
				if p.Specifications == nil {
					p.Specifications = &r
				}
			})
		case e.Payload.Specifications != nil:
			e.Errors = append(e.Errors, duplicateSheetRow(SheetSpecifications, r.RowNumber, e.Payload.Specifications.RowNumber, r.VehicleRefID))
		default:
			e.Payload.Specifications = &r
		}
	}

	for i := range wb.CapacityDetails {
		r := wb.CapacityDetails[i]
		e, ok := byRef[r.VehicleRefID]
		switch {
		case !ok:
			orphans.add(SheetCapacityDetails, r.RowNumber, r.VehicleRefID, func(p *VehiclePayload) {
				if p.CapacityDetails == nil {
					p.CapacityDetails = &r
				}
			})
		case e.Payload.CapacityDetails != nil:
			e.Errors = append(e.Errors, duplicateSheetRow(SheetCapacityDetails, r.RowNumber, e.Payload.CapacityDetails.RowNumber, r.VehicleRefID))
		default:
			e.Payload.CapacityDetails = &r
		}
	}

	for i := range wb.OwnershipDetails {
		r := wb.OwnershipDetails[i]
		e, ok := byRef[r.VehicleRefID]
		switch {
		case !ok:
			orphans.add(SheetOwnershipDetails, r.RowNumber, r.VehicleRefID, func(p *VehiclePayload) {
				if p.OwnershipDetails == nil {
					p.OwnershipDetails = &r
				}
			})
		case e.Payload.OwnershipDetails != nil:
			e.Errors = append(e.Errors, duplicateSheetRow(SheetOwnershipDetails, r.RowNumber, e.Payload.OwnershipDetails.RowNumber, r.VehicleRefID))
		default:
			e.Payload.OwnershipDetails = &r
		}
	}

	for i := range wb.Documents {
		r := wb.Documents[i]
		e, ok := byRef[r.VehicleRefID]
		if !ok {
			orphans.add(SheetDocuments, r.RowNumber, r.VehicleRefID, func(p *VehiclePayload) {
				p.Documents = append(p.Documents, r)
			})
			continue
		}
		e.Payload.Documents = append(e.Payload.Documents, r)
	}
}

// checkBatchDuplicates flags the second and later occurrences of each identifying
// value. The first occurrence is left alone.
func checkBatchDuplicates(entries []*VehicleEntry) {
	checks := append([]identifierCheck{
		{column: ColVehicleRefID, value: func(r BasicInformationRow) string { return r.VehicleRefID }},
	}, identifierChecks...)

	for _, chk := range checks {
		firstRow := make(map[string]int, len(entries))
		for _, e := range entries {
			basic := *e.Payload.BasicInformation
			val := chk.value(basic)
			if val == "" {
				continue
			}
			if row, seen := firstRow[val]; seen {
				e.Errors = append(e.Errors, ValidationError{
					Sheet:      SheetBasicInformation,
					Row:        e.RowNumber,
					Field:      chk.column,
					ErrorType:  ErrDuplicateInBatch,
					Message:    fmt.Sprintf("%s %q duplicates row %d of this upload", chk.column, val, row),
					Value:      val,
					RelatedRow: row,
				})
				continue
			}
			firstRow[val] = e.RowNumber
		}
	}
}

func (v *Validator) checkExistingDuplicates(ctx context.Context, entries []*VehicleEntry) error {
	if v.lookup == nil || len(entries) == 0 {
		return nil
	}

	found := make([]map[string]string, len(identifierChecks))
	g, gctx := errgroup.WithContext(ctx)
	for i, chk := range identifierChecks {
		values := distinctValues(entries, chk.value)
		if len(values) == 0 {
			continue
		}
		g.Go(func() error {
			existing, err := v.lookup.FindExistingIdentifiers(gctx, chk.field, values)
			if err != nil {
				return fmt.Errorf("failed to look up existing %s values: %w", chk.column, err)
			}
			found[i] = existing
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, chk := range identifierChecks {
		if len(found[i]) == 0 {
			continue
		}
		for _, e := range entries {
			val := chk.value(*e.Payload.BasicInformation)
			if val == "" {
				continue
			}
			if vehicleID, ok := found[i][val]; ok {
				e.Errors = append(e.Errors, ValidationError{
					Sheet:             SheetBasicInformation,
					Row:               e.RowNumber,
					Field:             chk.column,
					ErrorType:         ErrDuplicateInDatabase,
					Message:           fmt.Sprintf("%s %q is already registered to vehicle %s", chk.column, val, vehicleID),
					Value:             val,
					ExistingVehicleID: vehicleID,
				})
			}
		}
	}
	return nil
}

func distinctValues(entries []*VehicleEntry, value func(BasicInformationRow) string) []string {
	seen := make(map[string]struct{}, len(entries))
	var out []string
	for _, e := range entries {
		val := value(*e.Payload.BasicInformation)
		if val == "" {
			continue
		}
		if _, ok := seen[val]; ok {
			continue
		}
		seen[val] = struct{}{}
		out = append(out, val)
	}
	sort.Strings(out)
	return out
}

func sheetRank(sheet string) int {
	for i, s := range SheetOrder {
		if s == sheet {
			return i
		}
	}
	return len(SheetOrder)
}

func sortValidationErrors(errs []ValidationError) {
	sort.SliceStable(errs, func(i, j int) bool {
		a, b := errs[i], errs[j]
		if ra, rb := sheetRank(a.Sheet), sheetRank(b.Sheet); ra != rb {
			return ra < rb
		}
		if a.Row != b.Row {
			return a.Row < b.Row
		}
		if a.Field != b.Field {
			return a.Field < b.Field
		}
		if a.ErrorType != b.ErrorType {
			return a.ErrorType < b.ErrorType
		}
		return a.Message < b.Message
	})
}
