package services

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

var (
	TransmissionTypes = []string{"MANUAL", "AUTOMATIC", "AMT", "CVT", "DCT"}
	SuspensionTypes   = []string{"LEAF_SPRING", "AIR_SUSPENSION", "COIL_SPRING", "TORSION_BAR"}
	VehicleConditions = []string{"EXCELLENT", "GOOD", "FAIR", "POOR"}
	yesNoValues       = []string{"Y", "N"}
)

const (
	gpsIMEILength     = 15
	maxRemarksLength  = 500
	minEngineNumber   = 5
	minNameLength     = 2
	nonNegativeFormat = "non-negative number"
)

// rowChecker accumulates field errors for one spreadsheet row.
type rowChecker struct {
	sheet string
	row   int
	errs  []ValidationError
}

func newRowChecker(sheet string, row int) *rowChecker {
	return &rowChecker{sheet: sheet, row: row}
}

func (c *rowChecker) add(field string, t ErrorType, message, value, expected string) {
	c.errs = append(c.errs, ValidationError{
		Sheet:          c.sheet,
		Row:            c.row,
		Field:          field,
		ErrorType:      t,
		Message:        message,
		Value:          value,
		ExpectedFormat: expected,
	})
}

func (c *rowChecker) required(field, value string) bool {
	if value == "" {
		c.add(field, ErrRequiredField, fmt.Sprintf("%s is required", field), "", "")
		return false
	}
	return true
}

func (c *rowChecker) minLength(field, value string, n int) {
	if value != "" && utf8.RuneCountInString(value) < n {
		c.add(field, ErrInvalidLength, fmt.Sprintf("%s must be at least %d characters", field, n), value, fmt.Sprintf("min %d characters", n))
	}
}

func (c *rowChecker) maxLength(field, value string, n int) {
	if utf8.RuneCountInString(value) > n {
		c.add(field, ErrInvalidLength, fmt.Sprintf("%s must not exceed %d characters", field, n), "", fmt.Sprintf("max %d characters", n))
	}
}

func (c *rowChecker) oneOf(field, value string, allowed []string) {
	if value == "" {
		return
	}
	norm := NormalizeEnum(value)
	for _, a := range allowed {
		if norm == a {
			return
		}
	}
	c.add(field, ErrInvalidValue, fmt.Sprintf("%s must be one of %s", field, strings.Join(allowed, ", ")), value, strings.Join(allowed, "|"))
}

func (c *rowChecker) yesNo(field, value string) {
	if value == "" {
		return
	}
	if _, err := ParseYesNo(value); err != nil {
		c.add(field, ErrInvalidValue, fmt.Sprintf("%s must be Y or N", field), value, strings.Join(yesNoValues, "|"))
	}
}

func (c *rowChecker) digits(field, value string, n int) {
	if value == "" {
		return
	}
	ok := len(value) == n
	for _, r := range value {
		if r < '0' || r > '9' {
			ok = false
			break
		}
	}
	if !ok {
		c.add(field, ErrInvalidFormat, fmt.Sprintf("%s must be exactly %d digits", field, n), value, fmt.Sprintf("%d digits", n))
	}
}

// number checks an optional non-negative number and returns it when it parsed.
func (c *rowChecker) number(field, value string) *decimal.Decimal {
	if value == "" {
		return nil
	}
	d, err := ParseSheetNumber(value)
	if err != nil {
		c.add(field, ErrInvalidNumber, fmt.Sprintf("%s must be a non-negative number", field), value, nonNegativeFormat)
		return nil
	}
	return &d
}

// date checks an optional calendar date and returns it when it parsed.
func (c *rowChecker) date(field, value string) *time.Time {
	if value == "" {
		return nil
	}
	t, err := ParseSheetDate(value)
	if err != nil {
		c.add(field, ErrInvalidDate, fmt.Sprintf("%s is not a valid date", field), value, DateFormatHint)
		return nil
	}
	return &t
}

// before reports a violation on laterField when the two dates are not strictly ordered.
func (c *rowChecker) before(earlierField string, earlier *time.Time, laterField string, later *time.Time, laterValue string) {
	if earlier == nil || later == nil {
		return
	}
	if !earlier.Before(*later) {
		c.add(laterField, ErrBusinessRuleViolation, fmt.Sprintf("%s must be before %s", earlierField, laterField), laterValue, "")
	}
}

func checkBasicInformation(r BasicInformationRow) []ValidationError {
	c := newRowChecker(SheetBasicInformation, r.RowNumber)

	c.required(ColVehicleRefID, r.VehicleRefID)
	if c.required(ColMake, r.Make) {
		c.minLength(ColMake, r.Make, minNameLength)
	}
	if c.required(ColModel, r.Model) {
		c.minLength(ColModel, r.Model, minNameLength)
	}
	c.required(ColVINChassisNo, r.VINChassisNo)
	if c.required(ColGPSIMEINo, r.GPSIMEINo) {
		c.digits(ColGPSIMEINo, r.GPSIMEINo, gpsIMEILength)
	}
	c.date(ColManufacturingDate, r.ManufacturingDate)

	c.yesNo(ColGPSTrackerActiveFlag, r.GPSTrackerActiveFlag)
	c.yesNo(ColBlacklistStatus, r.BlacklistStatus)
	c.yesNo(ColSafetyInspectionDone, r.SafetyInspectionDone)

	c.number(ColTaxesAmount, r.TaxesAmount)
	c.number(ColRoadTax, r.RoadTax)
	c.number(ColMaxSpeedKMPH, r.MaxSpeedKMPH)
	c.number(ColAvgSpeedKMPH, r.AvgSpeedKMPH)

	return c.errs
}

func checkSpecification(r SpecificationRow) []ValidationError {
	c := newRowChecker(SheetSpecifications, r.RowNumber)

	c.required(ColEngineTypeID, r.EngineTypeID)
	if c.required(ColEngineNumber, r.EngineNumber) {
		c.minLength(ColEngineNumber, r.EngineNumber, minEngineNumber)
	}
	c.required(ColFuelTypeID, r.FuelTypeID)
	if c.required(ColTransmissionType, r.TransmissionType) {
		c.oneOf(ColTransmissionType, r.TransmissionType, TransmissionTypes)
	}
	if c.required(ColFinancer, r.Financer) {
		c.minLength(ColFinancer, r.Financer, minNameLength)
	}
	if c.required(ColSuspensionType, r.SuspensionType) {
		c.oneOf(ColSuspensionType, r.SuspensionType, SuspensionTypes)
	}

	return c.errs
}

func checkCapacityDetail(r CapacityDetailRow) []ValidationError {
	c := newRowChecker(SheetCapacityDetails, r.RowNumber)

	unloading := c.number(ColUnloadingWeightKG, r.UnloadingWeightKG)
	gross := c.number(ColGrossVehicleWeightKG, r.GrossVehicleWeightKG)
	c.number(ColLengthMM, r.LengthMM)
	c.number(ColWidthMM, r.WidthMM)
	c.number(ColHeightMM, r.HeightMM)
	c.number(ColTowingCapacityKG, r.TowingCapacityKG)
	c.number(ColFuelTankCapacityL, r.FuelTankCapacityL)
	c.number(ColSeatingCapacity, r.SeatingCapacity)
	c.number(ColLoadCapacityKG, r.LoadCapacityKG)
	c.oneOf(ColVehicleCondition, r.VehicleCondition, VehicleConditions)

	if unloading != nil && gross != nil && gross.LessThan(*unloading) {
		c.add(ColGrossVehicleWeightKG, ErrBusinessRuleViolation,
			fmt.Sprintf("%s must not be less than %s (%s)", ColGrossVehicleWeightKG, ColUnloadingWeightKG, unloading.String()),
			r.GrossVehicleWeightKG, "")
	}

	return c.errs
}

func checkOwnershipDetail(r OwnershipDetailRow) []ValidationError {
	c := newRowChecker(SheetOwnershipDetails, r.RowNumber)

	validFrom := c.date(ColValidFrom, r.ValidFrom)
	validTo := c.date(ColValidTo, r.ValidTo)
	regDate := c.date(ColRegistrationDate, r.RegistrationDate)
	regUpto := c.date(ColRegistrationUpto, r.RegistrationUpto)
	c.date(ColPurchaseDate, r.PurchaseDate)

	c.before(ColValidFrom, validFrom, ColValidTo, validTo, r.ValidTo)
	c.before(ColRegistrationDate, regDate, ColRegistrationUpto, regUpto, r.RegistrationUpto)

	c.number(ColSaleAmount, r.SaleAmount)

	return c.errs
}

func checkDocument(r DocumentRow) []ValidationError {
	c := newRowChecker(SheetDocuments, r.RowNumber)

	c.required(ColDocumentTypeID, r.DocumentTypeID)
	c.required(ColDocumentTypeName, r.DocumentTypeName)
	c.required(ColReferenceNumber, r.ReferenceNumber)

	validFrom := c.date(ColValidFrom, r.ValidFrom)
	validTo := c.date(ColValidTo, r.ValidTo)
	c.before(ColValidFrom, validFrom, ColValidTo, validTo, r.ValidTo)

	c.number(ColPremiumAmount, r.PremiumAmount)
	c.maxLength(ColRemarks, r.Remarks, maxRemarksLength)

	return c.errs
}
