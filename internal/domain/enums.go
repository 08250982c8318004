package domain

import "strings"

// SessionStatus represents the lifecycle of a batch session.
type SessionStatus string

const (
	SessionStatusUploading  SessionStatus = "uploading"
	SessionStatusProcessing SessionStatus = "processing"
	SessionStatusCompleted  SessionStatus = "completed"
	SessionStatusError      SessionStatus = "error"
	SessionStatusCancelled  SessionStatus = "cancelled"
)

// IsTerminal reports whether no further transitions are allowed.
func (s SessionStatus) IsTerminal() bool {
	switch s {
	case SessionStatusCompleted, SessionStatusError, SessionStatusCancelled:
		return true
	}
	return false
}

// ErrorKind classifies processing failures. It drives retry decisions and
// the display category; message text is never parsed for control flow.
type ErrorKind string

const (
	ErrorKindFormat        ErrorKind = "format"
	ErrorKindValidation    ErrorKind = "validation"
	ErrorKindTransient     ErrorKind = "transient"
	ErrorKindFatalInput    ErrorKind = "fatal_input"
	ErrorKindConfiguration ErrorKind = "configuration"
	ErrorKindUnknown       ErrorKind = "unknown"
)

// ErrorCategory is the human-facing label shown next to a failed file.
type ErrorCategory string

const (
	CategoryPDF      ErrorCategory = "PDF Processing"
	CategoryAPI      ErrorCategory = "API Error"
	CategoryDate     ErrorCategory = "Date Parsing"
	CategorySupplier ErrorCategory = "Supplier Extraction"
	CategoryJSON     ErrorCategory = "JSON Parsing"
	CategoryConfig   ErrorCategory = "Configuration"
	CategoryUnknown  ErrorCategory = "Unknown"
)

// CategoryFor derives the display category of a failure. The structured kind
// wins; the message is only consulted to split validation and format errors
// into date, supplier and JSON labels.
func CategoryFor(kind ErrorKind, msg string) ErrorCategory {
	switch kind {
	case ErrorKindTransient:
		return CategoryAPI
	case ErrorKindFatalInput:
		return CategoryPDF
	case ErrorKindConfiguration:
		return CategoryConfig
	case ErrorKindFormat, ErrorKindValidation:
		return categoryFromMessage(msg, CategoryDate)
	}
	return categoryFromMessage(msg, CategoryUnknown)
}

func categoryFromMessage(msg string, fallback ErrorCategory) ErrorCategory {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(msg, "PDF"):
		return CategoryPDF
	case strings.Contains(msg, "API") || strings.Contains(lower, "fetch"):
		return CategoryAPI
	case strings.Contains(lower, "json"):
		return CategoryJSON
	case strings.Contains(lower, "supplier"):
		return CategorySupplier
	case strings.Contains(lower, "date") || strings.Contains(lower, "year"):
		return CategoryDate
	}
	return fallback
}

// Provider selection preferences.
const (
	PreferAuto       = "auto"
	PreferOpenRouter = "openrouter"
	PreferLMStudio   = "lmstudio"
)

// ReportFormat selects the session report encoding.
type ReportFormat string

const (
	ReportFormatCSV  ReportFormat = "csv"
	ReportFormatXLSX ReportFormat = "xlsx"
)
