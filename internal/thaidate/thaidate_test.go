package thaidate_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoicer/internal/thaidate"
)

var now = time.Date(2025, time.November, 20, 12, 0, 0, 0, time.UTC)

func TestNormalize_KnownDates(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"2568-11-28", "2025-11-28"},
		{"2567-03-15", "2024-03-15"},
		{"2025-11-10", "2025-11-10"},
		{"2566-02-28", "2023-02-28"},
		{"2567-02-29", "2024-02-29"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			res, err := thaidate.Normalize(tt.in, now)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Date)
		})
	}
}

func TestNormalize_BuddhistEraRange(t *testing.T) {
	for y := 2501; y <= 2568; y++ {
		res, err := thaidate.Normalize(fmt.Sprintf("%d-06-15", y), now)
		require.NoError(t, err, "year %d", y)
		assert.Equal(t, y-543, res.Year)
		assert.True(t, res.Converted)
		assert.Equal(t, thaidate.WarningNone, res.Warning)
	}
}

func TestNormalize_CommonEraIsIdentity(t *testing.T) {
	for y := 2020; y <= now.Year(); y++ {
		in := fmt.Sprintf("%d-01-31", y)
		res, err := thaidate.Normalize(in, now)
		require.NoError(t, err)
		assert.Equal(t, in, res.Date)
		assert.False(t, res.Converted)
	}
}

func TestNormalize_InvalidCalendarDate(t *testing.T) {
	for _, in := range []string{"2568-02-30", "2025-02-29", "2025-13-01", "2025-00-10", "2025-04-31", "2025-01-00"} {
		_, err := thaidate.Normalize(in, now)
		assert.ErrorIs(t, err, thaidate.ErrInvalidCalendarDate, in)
	}
}

func TestNormalize_InvalidFormat(t *testing.T) {
	for _, in := range []string{"", "15/11/2568", "2025-1-01", "2025-01-01T00:00:00", "25-01-01", " 2025-01-01"} {
		_, err := thaidate.Normalize(in, now)
		assert.ErrorIs(t, err, thaidate.ErrInvalidFormat, in)
	}
}

func TestNormalize_AmbiguousYearConverted(t *testing.T) {
	// 2450 is past currentYear+20 and 2450-543=1907 is plausible.
	res, err := thaidate.Normalize("2450-05-01", now)
	require.NoError(t, err)
	assert.Equal(t, "1907-05-01", res.Date)
	assert.Equal(t, thaidate.WarningAmbiguousYear, res.Warning)
	assert.Equal(t, 2450, res.OriginalYear)
}

func TestNormalize_SuspiciousYearOutOfRange(t *testing.T) {
	// 2100-543 is before 1900, so the year is kept and then rejected.
	_, err := thaidate.Normalize("2100-05-01", now)
	assert.ErrorIs(t, err, thaidate.ErrYearOutOfRange)
}

func TestNormalize_YearBounds(t *testing.T) {
	_, err := thaidate.Normalize("1899-12-31", now)
	assert.ErrorIs(t, err, thaidate.ErrYearOutOfRange)

	res, err := thaidate.Normalize("1900-01-01", now)
	require.NoError(t, err)
	assert.Equal(t, "1900-01-01", res.Date)

	res, err = thaidate.Normalize("2045-12-31", now)
	require.NoError(t, err)
	assert.Equal(t, "2045-12-31", res.Date)
}

func TestToCEAndIsBuddhistEra(t *testing.T) {
	assert.Equal(t, 2025, thaidate.ToCE(2568))
	assert.Equal(t, 2024, thaidate.ToCE(2024))
	assert.Equal(t, 2500, thaidate.ToCE(2500))
	assert.True(t, thaidate.IsBuddhistEra(2501))
	assert.False(t, thaidate.IsBuddhistEra(2500))
}

func TestYearOf(t *testing.T) {
	y, err := thaidate.YearOf("2568-11-28")
	require.NoError(t, err)
	assert.Equal(t, 2568, y)

	_, err = thaidate.YearOf("nope")
	assert.ErrorIs(t, err, thaidate.ErrInvalidFormat)
}
