package provider

import (
	"errors"
	"fmt"

	"invoicer/internal/domain"
	"invoicer/internal/thaidate"
)

var (
	ErrDuplicateName         = errors.New("provider already registered")
	ErrProviderNotRegistered = errors.New("provider not registered")
	ErrUnknownKind           = errors.New("unknown provider kind")
	ErrMissingCredential     = errors.New("missing credential")
	ErrNotInitialized        = errors.New("provider not initialized")
)

// ExtractionError is returned by every provider operation that fails.
// Kind drives retry and categorization; Reason is the human-readable cause.
type ExtractionError struct {
	Provider string
	Kind     domain.ErrorKind
	Reason   string
	Err      error
}

func (e *ExtractionError) Error() string {
	msg := "Failed to extract invoice data: " + e.Reason
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Provider != "" {
		msg = e.Provider + ": " + msg
	}
	return msg
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// NewExtractionError creates an ExtractionError.
func NewExtractionError(provider string, kind domain.ErrorKind, reason string, err error) *ExtractionError {
	return &ExtractionError{Provider: provider, Kind: kind, Reason: reason, Err: err}
}

// KindOf returns the error kind carried by err, falling back to the
// date normalizer's sentinels and then to ErrorKindUnknown.
func KindOf(err error) domain.ErrorKind {
	if err == nil {
		return ""
	}
	var extErr *ExtractionError
	if errors.As(err, &extErr) {
		return extErr.Kind
	}
	switch {
	case errors.Is(err, thaidate.ErrInvalidFormat):
		return domain.ErrorKindFormat
	case errors.Is(err, thaidate.ErrYearOutOfRange), errors.Is(err, thaidate.ErrInvalidCalendarDate):
		return domain.ErrorKindValidation
	case errors.Is(err, ErrMissingCredential), errors.Is(err, ErrNotInitialized),
		errors.Is(err, ErrProviderNotRegistered), errors.Is(err, ErrUnknownKind):
		return domain.ErrorKindConfiguration
	}
	return domain.ErrorKindUnknown
}
