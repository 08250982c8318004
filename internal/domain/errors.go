package domain

import "errors"

var (
	ErrSessionNotFound     = errors.New("session not found")
	ErrSessionTerminal     = errors.New("session already finished")
	ErrSessionBusy         = errors.New("session is still processing")
	ErrArchiveNotReady     = errors.New("processing not completed")
	ErrArchiveNotFound     = errors.New("result archive not found")
	ErrNoFailedFiles       = errors.New("no failed files to retry")
	ErrNoProviderAvailable = errors.New("no provider available")
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrFileTooLarge        = errors.New("file exceeds maximum allowed size")
	ErrInvalidSettings     = errors.New("invalid settings")
	ErrUnsupportedReport   = errors.New("unsupported report format")
)

// Messages matched by the retry loop. Fatal input errors carry one of these
// phrases so that they are never retried.
const (
	MsgFileNotFound     = "File not found"
	MsgPermissionDenied = "Permission denied"
	MsgNotAPDF          = "Not a PDF"
)
