package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSheetDate(t *testing.T) {
	want := time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC)

	for _, value := range []string{"2024-01-15", "15-01-2024", "15/01/2024", "2024/01/15", "15-Jan-2024", " 2024-01-15 "} {
		got, err := ParseSheetDate(value)
		require.NoError(t, err, value)
		assert.True(t, want.Equal(got), "%q parsed as %s", value, got)
	}

	serial, err := ParseSheetDate("45292")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC), serial)

	for _, value := range []string{"", "tomorrow", "2024-13-01", "31/02/2024", "0", "-4"} {
		_, err := ParseSheetDate(value)
		assert.Error(t, err, value)
	}
}

func TestParseSheetNumber(t *testing.T) {
	d, err := ParseSheetNumber("1,250.50")
	require.NoError(t, err)
	assert.Equal(t, "1250.5", d.String())

	d, err = ParseSheetNumber(" 0 ")
	require.NoError(t, err)
	assert.True(t, d.IsZero())

	_, err = ParseSheetNumber("-5")
	assert.Error(t, err)
	_, err = ParseSheetNumber("12kg")
	assert.Error(t, err)
}

func TestParseYesNo(t *testing.T) {
	v, err := ParseYesNo("y")
	require.NoError(t, err)
	assert.True(t, v)

	v, err = ParseYesNo(" N ")
	require.NoError(t, err)
	assert.False(t, v)

	_, err = ParseYesNo("yes")
	assert.Error(t, err)
}

func TestNormalizers(t *testing.T) {
	assert.Equal(t, "MAT123ABC", NormalizeVIN(" mat123abc "))
	assert.Equal(t, "123456789012345", NormalizeGPSIMEI(" 123456789012345"))
	assert.Equal(t, "MH12AB1234", NormalizeRegistration("mh 12-ab 1234"))
	assert.Equal(t, "AIR_SUSPENSION", NormalizeEnum("air_suspension "))
}
