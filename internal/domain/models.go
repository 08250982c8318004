package domain

import (
	"time"
)

// InvoiceData is the structured result of one extraction call. Date is a
// normalized Common Era YYYY-MM-DD string by the time it leaves a provider.
type InvoiceData struct {
	Date             string  `json:"date"`
	Supplier         string  `json:"supplier"`
	OriginalSupplier string  `json:"originalSupplier,omitempty"`
	Confidence       float64 `json:"confidence,omitempty"`
}

// ProviderConfig holds the settings a provider is initialized with.
type ProviderConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	MaxRetries int
	Timeout    time.Duration
}

// ProcessingResult is the terminal outcome of processing a single file.
type ProcessingResult struct {
	Success      bool         `json:"success"`
	OriginalPath string       `json:"originalPath"`
	NewPath      string       `json:"newPath,omitempty"`
	InvoiceData  *InvoiceData `json:"invoiceData,omitempty"`
	Error        string       `json:"error,omitempty"`
	ErrorKind    ErrorKind    `json:"errorKind,omitempty"`
	Attempts     int          `json:"attempts"`
}

// FailedFile records a file that could not be processed within a session.
type FailedFile struct {
	Name     string        `json:"originalName"`
	Path     string        `json:"path"`
	Error    string        `json:"error"`
	Category ErrorCategory `json:"category"`
}

// Session tracks one accepted batch from upload until it is reaped.
// It is mutated only by the worker that runs the batch.
type Session struct {
	ID           string             `json:"sessionId"`
	ParentID     string             `json:"parentId,omitempty"`
	Status       SessionStatus      `json:"status"`
	Total        int                `json:"total"`
	Processed    int                `json:"processed"`
	Successful   int                `json:"successful"`
	Failed       int                `json:"failed"`
	FileNames    []string           `json:"files"`
	FailedFiles  []FailedFile       `json:"failedFiles"`
	Results      []ProcessingResult `json:"-"`
	Cancelled    bool               `json:"cancelled"`
	ArchivePath  string             `json:"-"`
	ArchiveKey   string             `json:"archiveKey,omitempty"`
	ErrorMessage string             `json:"error,omitempty"`
	Provider     string             `json:"provider,omitempty"`
	Model        string             `json:"model,omitempty"`
	WorkDir      string             `json:"-"`
	UploadPath   string             `json:"-"`
	CreatedAt    time.Time          `json:"createdAt"`
	FinishedAt   *time.Time         `json:"finishedAt,omitempty"`
}

// Clone returns a deep copy that is safe to hand to concurrent readers.
func (s *Session) Clone() *Session {
	cp := *s
	cp.FileNames = append([]string(nil), s.FileNames...)
	cp.FailedFiles = append([]FailedFile(nil), s.FailedFiles...)
	cp.Results = append([]ProcessingResult(nil), s.Results...)
	if s.FinishedAt != nil {
		t := *s.FinishedAt
		cp.FinishedAt = &t
	}
	return &cp
}

// Settings holds the user-adjustable provider preferences.
type Settings struct {
	PreferredProvider string `json:"preferredProvider"`
	OpenRouterModel   string `json:"openrouterModel"`
	LMStudioModel     string `json:"lmstudioModel"`
}

// ModelInfo describes one selectable model of a provider.
type ModelInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Recommended bool   `json:"recommended,omitempty"`
}

// ProviderInfo describes a registered provider for the settings UI.
type ProviderInfo struct {
	Name        string      `json:"name"`
	DisplayName string      `json:"displayName"`
	Description string      `json:"description"`
	Available   bool        `json:"available"`
	Models      []ModelInfo `json:"models"`
}
