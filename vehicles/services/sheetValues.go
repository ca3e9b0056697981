package services

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DateFormatHint is echoed back to users on date errors.
const DateFormatHint = "YYYY-MM-DD, DD-MM-YYYY, DD/MM/YYYY, YYYY/MM/DD or DD-Mon-YYYY"

var sheetDateLayouts = []string{
	"2006-01-02",
	"02-01-2006",
	"02/01/2006",
	"2006/01/02",
	"02-Jan-2006",
	"2006-01-02 15:04:05",
}

// Excel stores dates as days since 1899-12-30; anything past 9999-12-31 is not a date.
const maxExcelSerial = 2958465

// ParseSheetDate accepts the template's text layouts and raw Excel date serials.
func ParseSheetDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range sheetDateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	if serial, err := strconv.ParseFloat(value, 64); err == nil && serial >= 1 && serial <= maxExcelSerial {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err == nil {
			y, m, d := t.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", value)
}

// ParseSheetNumber parses a non-negative decimal. Thousands separators are tolerated.
func ParseSheetNumber(value string) (decimal.Decimal, error) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(value), ",", "")
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid number %q", value)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("negative number %q", value)
	}
	return d, nil
}

// ParseYesNo maps Y/N (any case) to a bool.
func ParseYesNo(value string) (bool, error) {
	switch NormalizeEnum(value) {
	case "Y":
		return true, nil
	case "N":
		return false, nil
	}
	return false, fmt.Errorf("invalid flag %q", value)
}

// NormalizeEnum upper-cases and trims an enumeration cell so "manual " matches MANUAL.
func NormalizeEnum(value string) string {
	return toUpper(strings.TrimSpace(value))
}

// NormalizeVIN is the comparison form used for VIN duplicate checks and storage.
func NormalizeVIN(value string) string {
	return toUpper(strings.TrimSpace(value))
}

// NormalizeGPSIMEI is the comparison form used for GPS device duplicate checks and storage.
func NormalizeGPSIMEI(value string) string {
	return strings.TrimSpace(value)
}

// NormalizeRegistration strips spaces and dashes so "MH 12-AB 1234" matches "MH12AB1234".
func NormalizeRegistration(value string) string {
	r := strings.NewReplacer(" ", "", "-", "")
	return toUpper(r.Replace(strings.TrimSpace(value)))
}

// A cases.Caser carries state, so each call gets its own.
func toUpper(value string) string {
	return cases.Upper(language.Und).String(value)
}
