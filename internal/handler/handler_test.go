package handler_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"invoicer/internal/domain"
	"invoicer/internal/handler"
	"invoicer/internal/service"
	"invoicer/mocks"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newContext(method, target string, body io.Reader) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(method, target, body)
	return c, w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) handler.APIResponse {
	t.Helper()
	var resp handler.APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func multipartBody(t *testing.T, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, _ = part.Write([]byte(content))
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func TestSessionHandler_Process_Success(t *testing.T) {
	mockSvc := new(mocks.MockBatchService)
	h := handler.NewSessionHandler(mockSvc)

	mockSvc.On("StartUpload", mock.Anything, mock.MatchedBy(func(in service.UploadInput) bool {
		return in.Filename == "invoice.pdf" && in.Size == int64(len("%PDF-1.4 test"))
	})).Return(&service.StartResult{SessionID: "session-1", Total: 1}, nil)

	body, contentType := multipartBody(t, "invoice.pdf", "%PDF-1.4 test")
	c, w := newContext(http.MethodPost, "/api/process", body)
	c.Request.Header.Set("Content-Type", contentType)

	h.Process(c)

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	assert.True(t, resp.Success)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "session-1", data["sessionId"])
	assert.Equal(t, float64(1), data["total"])
	mockSvc.AssertExpectations(t)
}

func TestSessionHandler_Process_MissingFile(t *testing.T) {
	mockSvc := new(mocks.MockBatchService)
	h := handler.NewSessionHandler(mockSvc)

	c, w := newContext(http.MethodPost, "/api/process", http.NoBody)
	h.Process(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decode(t, w)
	assert.False(t, resp.Success)
	assert.Equal(t, "MISSING_FILE", resp.Error.Code)
	mockSvc.AssertNotCalled(t, "StartUpload", mock.Anything, mock.Anything)
}

func TestSessionHandler_Process_Errors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"unsupported type", domain.ErrUnsupportedFileType, http.StatusBadRequest, "UNSUPPORTED_FILE_TYPE"},
		{"too large", domain.ErrFileTooLarge, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE"},
		{"no provider", domain.ErrNoProviderAvailable, http.StatusServiceUnavailable, "NO_PROVIDER_AVAILABLE"},
		{"unexpected", errors.New("disk full"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockSvc := new(mocks.MockBatchService)
			h := handler.NewSessionHandler(mockSvc)
			mockSvc.On("StartUpload", mock.Anything, mock.Anything).Return(nil, tt.err)

			body, contentType := multipartBody(t, "notes.txt", "hello")
			c, w := newContext(http.MethodPost, "/api/process", body)
			c.Request.Header.Set("Content-Type", contentType)
			h.Process(c)

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, decode(t, w).Error.Code)
		})
	}
}

func TestSessionHandler_Progress(t *testing.T) {
	mockSvc := new(mocks.MockBatchService)
	h := handler.NewSessionHandler(mockSvc)

	sess := &domain.Session{
		ID:         "session-1",
		Status:     domain.SessionStatusProcessing,
		Total:      4,
		Processed:  2,
		Successful: 1,
		Failed:     1,
		FileNames:  []string{"2024-03-15-Acme.pdf"},
		FailedFiles: []domain.FailedFile{
			{Name: "bad.pdf", Error: "Failed after 3 attempts: timeout", Category: domain.CategoryAPI},
		},
	}
	mockSvc.On("Status", mock.Anything, "session-1").Return(sess, nil)

	c, w := newContext(http.MethodGet, "/api/progress/session-1", http.NoBody)
	c.Params = gin.Params{{Key: "sessionId", Value: "session-1"}}
	h.Progress(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w).Data.(map[string]interface{})
	assert.Equal(t, "processing", data["status"])
	assert.Equal(t, float64(2), data["processed"])
	assert.Len(t, data["failedFiles"], 1)
}

func TestSessionHandler_Progress_NotFound(t *testing.T) {
	mockSvc := new(mocks.MockBatchService)
	h := handler.NewSessionHandler(mockSvc)
	mockSvc.On("Status", mock.Anything, "nope").Return(nil, domain.ErrSessionNotFound)

	c, w := newContext(http.MethodGet, "/api/progress/nope", http.NoBody)
	c.Params = gin.Params{{Key: "sessionId", Value: "nope"}}
	h.Progress(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "SESSION_NOT_FOUND", decode(t, w).Error.Code)
}

func TestSessionHandler_Download(t *testing.T) {
	archivePath := filepath.Join(t.TempDir(), "processed-invoices.zip")
	require.NoError(t, os.WriteFile(archivePath, []byte("PK-zip"), 0o644))

	mockSvc := new(mocks.MockBatchService)
	h := handler.NewSessionHandler(mockSvc)
	mockSvc.On("Archive", mock.Anything, "session-1").Return(archivePath, nil)

	c, w := newContext(http.MethodGet, "/api/download/session-1", http.NoBody)
	c.Params = gin.Params{{Key: "sessionId", Value: "session-1"}}
	h.Download(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "processed-invoices.zip")
	assert.Equal(t, "PK-zip", w.Body.String())
}

func TestSessionHandler_Download_NotReady(t *testing.T) {
	mockSvc := new(mocks.MockBatchService)
	h := handler.NewSessionHandler(mockSvc)
	mockSvc.On("Archive", mock.Anything, "session-1").Return("", domain.ErrArchiveNotReady)

	c, w := newContext(http.MethodGet, "/api/download/session-1", http.NoBody)
	c.Params = gin.Params{{Key: "sessionId", Value: "session-1"}}
	h.Download(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "ARCHIVE_NOT_READY", decode(t, w).Error.Code)
}

func TestSessionHandler_Cancel(t *testing.T) {
	mockSvc := new(mocks.MockBatchService)
	h := handler.NewSessionHandler(mockSvc)
	mockSvc.On("Cancel", mock.Anything, "session-1").
		Return(&domain.Session{ID: "session-1", Status: domain.SessionStatusCancelled, Cancelled: true}, nil)

	c, w := newContext(http.MethodPost, "/api/cancel/session-1", http.NoBody)
	c.Params = gin.Params{{Key: "sessionId", Value: "session-1"}}
	h.Cancel(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w).Data.(map[string]interface{})
	assert.Equal(t, "cancelled", data["status"])
}

func TestSessionHandler_Cancel_Terminal(t *testing.T) {
	mockSvc := new(mocks.MockBatchService)
	h := handler.NewSessionHandler(mockSvc)
	mockSvc.On("Cancel", mock.Anything, "session-1").Return(nil, domain.ErrSessionTerminal)

	c, w := newContext(http.MethodPost, "/api/cancel/session-1", http.NoBody)
	c.Params = gin.Params{{Key: "sessionId", Value: "session-1"}}
	h.Cancel(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "SESSION_TERMINAL", decode(t, w).Error.Code)
}

func TestSessionHandler_Retry(t *testing.T) {
	mockSvc := new(mocks.MockBatchService)
	h := handler.NewSessionHandler(mockSvc)
	mockSvc.On("Retry", mock.Anything, "session-1").
		Return(&service.StartResult{SessionID: "session-1-retry-5", Total: 2}, nil)

	c, w := newContext(http.MethodPost, "/api/retry/session-1", http.NoBody)
	c.Params = gin.Params{{Key: "sessionId", Value: "session-1"}}
	h.Retry(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w).Data.(map[string]interface{})
	assert.Equal(t, "session-1-retry-5", data["sessionId"])
}

func TestSessionHandler_Retry_Errors(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{domain.ErrNoFailedFiles, http.StatusBadRequest, "NO_FAILED_FILES"},
		{domain.ErrSessionBusy, http.StatusConflict, "SESSION_BUSY"},
		{domain.ErrSessionNotFound, http.StatusNotFound, "SESSION_NOT_FOUND"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			mockSvc := new(mocks.MockBatchService)
			h := handler.NewSessionHandler(mockSvc)
			mockSvc.On("Retry", mock.Anything, "session-1").Return(nil, tt.err)

			c, w := newContext(http.MethodPost, "/api/retry/session-1", http.NoBody)
			c.Params = gin.Params{{Key: "sessionId", Value: "session-1"}}
			h.Retry(c)

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, decode(t, w).Error.Code)
		})
	}
}

func TestSessionHandler_Report_CSV(t *testing.T) {
	mockSvc := new(mocks.MockBatchService)
	h := handler.NewSessionHandler(mockSvc)
	mockSvc.On("Report", mock.Anything, "session-1", domain.ReportFormatCSV, mock.Anything).
		Run(func(args mock.Arguments) {
			_, _ = args.Get(3).(io.Writer).Write([]byte("Original File,Status\n"))
		}).Return(nil)

	c, w := newContext(http.MethodGet, "/api/report/session-1", http.NoBody)
	c.Params = gin.Params{{Key: "sessionId", Value: "session-1"}}
	h.Report(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "text/csv"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "session-1_")
	assert.Contains(t, w.Header().Get("Content-Disposition"), ".csv")
	assert.Equal(t, "Original File,Status\n", w.Body.String())
}

func TestSessionHandler_Report_XLSX(t *testing.T) {
	mockSvc := new(mocks.MockBatchService)
	h := handler.NewSessionHandler(mockSvc)
	mockSvc.On("Report", mock.Anything, "session-1", domain.ReportFormatXLSX, mock.Anything).Return(nil)

	c, w := newContext(http.MethodGet, "/api/report/session-1?format=xlsx", http.NoBody)
	c.Params = gin.Params{{Key: "sessionId", Value: "session-1"}}
	h.Report(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "spreadsheetml")
	assert.Contains(t, w.Header().Get("Content-Disposition"), ".xlsx")
}

func TestSessionHandler_Report_UnsupportedFormat(t *testing.T) {
	mockSvc := new(mocks.MockBatchService)
	h := handler.NewSessionHandler(mockSvc)

	c, w := newContext(http.MethodGet, "/api/report/session-1?format=pdf", http.NoBody)
	c.Params = gin.Params{{Key: "sessionId", Value: "session-1"}}
	h.Report(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "UNSUPPORTED_REPORT_FORMAT", decode(t, w).Error.Code)
	mockSvc.AssertNotCalled(t, "Report", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSettingsHandler_Get(t *testing.T) {
	mockSvc := new(mocks.MockBatchService)
	h := handler.NewSettingsHandler(mockSvc)
	mockSvc.On("Settings", mock.Anything).Return(domain.Settings{
		PreferredProvider: "auto",
		OpenRouterModel:   "google/gemini-2.5-flash",
		LMStudioModel:     "qwen2.5-vl-7b",
	})

	c, w := newContext(http.MethodGet, "/api/settings", http.NoBody)
	h.Get(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w).Data.(map[string]interface{})
	assert.Equal(t, "auto", data["preferredProvider"])
	assert.Equal(t, "google/gemini-2.5-flash", data["openrouterModel"])
}

func TestSettingsHandler_Update(t *testing.T) {
	mockSvc := new(mocks.MockBatchService)
	h := handler.NewSettingsHandler(mockSvc)
	mockSvc.On("UpdateSettings", mock.Anything, service.SettingsUpdate{PreferredProvider: "lmstudio"}).
		Return(domain.Settings{PreferredProvider: "lmstudio"}, nil)

	c, w := newContext(http.MethodPost, "/api/settings", strings.NewReader(`{"preferredProvider":"lmstudio"}`))
	c.Request.Header.Set("Content-Type", "application/json")
	h.Update(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "lmstudio", decode(t, w).Data.(map[string]interface{})["preferredProvider"])
	mockSvc.AssertExpectations(t)
}

func TestSettingsHandler_Update_Invalid(t *testing.T) {
	mockSvc := new(mocks.MockBatchService)
	h := handler.NewSettingsHandler(mockSvc)
	mockSvc.On("UpdateSettings", mock.Anything, mock.Anything).
		Return(domain.Settings{}, errors.Join(domain.ErrInvalidSettings, errors.New("invalid provider \"x\"")))

	c, w := newContext(http.MethodPost, "/api/settings", strings.NewReader(`{"preferredProvider":"x"}`))
	c.Request.Header.Set("Content-Type", "application/json")
	h.Update(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_SETTINGS", decode(t, w).Error.Code)
}

func TestSettingsHandler_Update_BadJSON(t *testing.T) {
	mockSvc := new(mocks.MockBatchService)
	h := handler.NewSettingsHandler(mockSvc)

	c, w := newContext(http.MethodPost, "/api/settings", strings.NewReader(`{`))
	c.Request.Header.Set("Content-Type", "application/json")
	h.Update(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_REQUEST", decode(t, w).Error.Code)
}

func TestProviderHandler_List(t *testing.T) {
	mockSvc := new(mocks.MockBatchService)
	h := handler.NewProviderHandler(mockSvc)
	mockSvc.On("Providers", mock.Anything).Return(service.ProvidersView{
		Providers: []domain.ProviderInfo{{Name: "openrouter", DisplayName: "OpenRouter", Available: true}},
		ProviderOptions: []service.ProviderOption{
			{Value: "auto", Name: "Auto"},
		},
	})

	c, w := newContext(http.MethodGet, "/api/providers", http.NoBody)
	h.List(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w).Data.(map[string]interface{})
	assert.Len(t, data["providers"], 1)
	assert.Len(t, data["providerOptions"], 1)
}

func TestHealthHandler_Liveness(t *testing.T) {
	h := handler.NewHealthHandler(new(mocks.MockBatchService))

	c, w := newContext(http.MethodGet, "/healthz", http.NoBody)
	h.Liveness(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestHealthHandler_Health(t *testing.T) {
	mockSvc := new(mocks.MockBatchService)
	h := handler.NewHealthHandler(mockSvc)
	mockSvc.On("Health", mock.Anything).
		Return(&service.HealthStatus{Status: "ok", Provider: "openrouter", Model: "Gemini 2.5 Flash"}, nil)

	c, w := newContext(http.MethodGet, "/api/health", http.NoBody)
	h.Health(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w).Data.(map[string]interface{})
	assert.Equal(t, "openrouter", data["provider"])
}

func TestHealthHandler_Health_NoProvider(t *testing.T) {
	mockSvc := new(mocks.MockBatchService)
	h := handler.NewHealthHandler(mockSvc)
	mockSvc.On("Health", mock.Anything).
		Return(&service.HealthStatus{Status: "error"}, domain.ErrNoProviderAvailable)

	c, w := newContext(http.MethodGet, "/api/health", http.NoBody)
	h.Health(c)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	resp := decode(t, w)
	assert.False(t, resp.Success)
	assert.Equal(t, "error", resp.Data.(map[string]interface{})["status"])
}

func TestMapDomainError_WrappedErrors(t *testing.T) {
	status, code, _ := handler.MapDomainError(errors.Join(errors.New("ctx"), domain.ErrArchiveNotFound))
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "ARCHIVE_NOT_FOUND", code)
}
