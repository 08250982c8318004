// Package thaidate normalizes invoice dates that may carry a Thai Buddhist
// Era year into validated Common Era calendar dates.
//
// Buddhist Era years run 543 ahead of Common Era: 2568 BE is 2025 CE.
package thaidate

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// Offset is the number of years the Buddhist Era runs ahead of Common Era.
const Offset = 543

// beThreshold is the year above which a value is always read as Buddhist Era.
const beThreshold = 2500

const minYear = 1900

var (
	// ErrInvalidFormat indicates the input is not a strict YYYY-MM-DD string.
	ErrInvalidFormat = errors.New("invalid date format")

	// ErrYearOutOfRange indicates the converted year is outside [1900, currentYear+20].
	ErrYearOutOfRange = errors.New("year out of range")

	// ErrInvalidCalendarDate indicates the month or day does not exist (e.g. February 30).
	ErrInvalidCalendarDate = errors.New("invalid calendar date")
)

var datePattern = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})$`)

// Warning is a non-fatal signal raised while resolving an ambiguous year.
type Warning string

const (
	WarningNone Warning = ""
	// WarningAmbiguousYear means a future-looking year was read as Buddhist Era.
	WarningAmbiguousYear Warning = "ambiguous_year_converted"
	// WarningSuspiciousYear means a future-looking year was kept unchanged.
	WarningSuspiciousYear Warning = "suspicious_year"
)

// Result is the outcome of a successful normalization.
type Result struct {
	Date         string
	Year         int
	OriginalYear int
	Converted    bool
	Warning      Warning
}

// Normalize validates dateStr and converts a Buddhist Era year to Common Era.
// now supplies the current year for the range checks.
func Normalize(dateStr string, now time.Time) (Result, error) {
	m := datePattern.FindStringSubmatch(dateStr)
	if m == nil {
		return Result{}, fmt.Errorf("%w: %s", ErrInvalidFormat, dateStr)
	}
	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])

	currentYear := now.Year()
	res := Result{OriginalYear: year}

	ceYear := year
	switch {
	case year > beThreshold:
		ceYear = year - Offset
	case year > currentYear+20:
		possible := year - Offset
		if possible >= minYear && possible <= currentYear+5 {
			ceYear = possible
			res.Warning = WarningAmbiguousYear
		} else {
			res.Warning = WarningSuspiciousYear
		}
	}
	res.Converted = ceYear != year

	if ceYear < minYear || ceYear > currentYear+20 {
		return Result{}, fmt.Errorf("%w: year %d (original: %d, date: %s)",
			ErrYearOutOfRange, ceYear, year, dateStr)
	}

	t := time.Date(ceYear, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Year() != ceYear || int(t.Month()) != month || t.Day() != day {
		return Result{}, fmt.Errorf("%w: %04d-%s-%s (month or day does not exist)",
			ErrInvalidCalendarDate, ceYear, m[2], m[3])
	}

	res.Year = ceYear
	res.Date = fmt.Sprintf("%04d-%02d-%02d", ceYear, month, day)
	return res, nil
}

// NormalizeNow is Normalize against the wall clock.
func NormalizeNow(dateStr string) (Result, error) {
	return Normalize(dateStr, time.Now())
}

// ToCE converts a year to Common Era when it is clearly Buddhist Era.
func ToCE(year int) int {
	if IsBuddhistEra(year) {
		return year - Offset
	}
	return year
}

// IsBuddhistEra reports whether year is unambiguously a Buddhist Era year.
func IsBuddhistEra(year int) bool {
	return year > beThreshold
}

// YearOf returns the year component of a YYYY-MM-DD string.
func YearOf(dateStr string) (int, error) {
	m := datePattern.FindStringSubmatch(dateStr)
	if m == nil {
		return 0, fmt.Errorf("%w: %s", ErrInvalidFormat, dateStr)
	}
	return strconv.Atoi(m[1])
}

// IsISODate reports whether s is a strict YYYY-MM-DD string.
func IsISODate(s string) bool {
	return datePattern.MatchString(s)
}
