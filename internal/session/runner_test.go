package session_test

import (
	"archive/zip"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"invoicer/internal/domain"
	"invoicer/internal/port"
	"invoicer/internal/processor"
	"invoicer/internal/provider"
	mockprovider "invoicer/internal/provider/mock"
	"invoicer/internal/session"
	"invoicer/mocks"
)

var noWait = processor.SleeperFunc(func(context.Context, time.Duration) error { return nil })

// scriptedProvider returns a distinct supplier per call and runs onCall
// before answering.
type scriptedProvider struct {
	calls  int
	fail   map[string]error
	onCall func(n int)
}

func (p *scriptedProvider) Name() string                           { return "scripted" }
func (p *scriptedProvider) Initialize(domain.ProviderConfig) error { return nil }
func (p *scriptedProvider) IsAvailable(context.Context) bool       { return true }

func (p *scriptedProvider) ExtractInvoiceData(_ context.Context, path string) (*domain.InvoiceData, error) {
	p.calls++
	if p.onCall != nil {
		p.onCall(p.calls)
	}
	if err, ok := p.fail[filepath.Base(path)]; ok {
		return nil, err
	}
	return &domain.InvoiceData{Date: "2024-03-15", Supplier: fmt.Sprintf("Supplier %d", p.calls)}, nil
}

func makeFiles(t *testing.T, dir string, n int) []string {
	t.Helper()
	in := filepath.Join(dir, "in")
	require.NoError(t, os.MkdirAll(in, 0o755))
	files := make([]string, n)
	for i := range files {
		files[i] = filepath.Join(in, fmt.Sprintf("scan-%02d.pdf", i+1))
		require.NoError(t, os.WriteFile(files[i], []byte("%PDF-1.4"), 0o600))
	}
	return files
}

func newSession(t *testing.T, store *session.Store, workDir string) *domain.Session {
	t.Helper()
	sess, err := store.Create(&domain.Session{WorkDir: workDir})
	require.NoError(t, err)
	return sess
}

func archiveEntries(t *testing.T, path string) []string {
	t.Helper()
	r, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer r.Close()
	var names []string
	for _, f := range r.File {
		names = append(names, f.Name)
	}
	return names
}

func TestRunner_CompletesAndArchives(t *testing.T) {
	dir := t.TempDir()
	files := makeFiles(t, dir, 3)
	store := session.NewStore(time.Hour)
	sess := newSession(t, store, dir)

	prov := mockprovider.New()
	require.NoError(t, prov.Initialize(domain.ProviderConfig{}))

	runner := session.NewRunner(store, session.WithSleeper(noWait))
	require.NoError(t, runner.Run(context.Background(), sess.ID, files, filepath.Join(dir, "processed"), prov))

	got, err := store.Get(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionStatusCompleted, got.Status)
	assert.Equal(t, 3, got.Total)
	assert.Equal(t, 3, got.Processed)
	assert.Equal(t, 3, got.Successful)
	assert.Zero(t, got.Failed)
	assert.Equal(t, []string{
		"2024-03-15-Mock-Supplier.pdf",
		"2024-03-15-Mock-Supplier-1.pdf",
		"2024-03-15-Mock-Supplier-2.pdf",
	}, got.FileNames)
	require.NotNil(t, got.FinishedAt)
	assert.Len(t, got.Results, 3)
	assert.Equal(t, filepath.Join(dir, session.ArchiveName), got.ArchivePath)
	assert.ElementsMatch(t, got.FileNames, archiveEntries(t, got.ArchivePath))
}

func TestRunner_CancelStopsAtFileBoundary(t *testing.T) {
	dir := t.TempDir()
	files := makeFiles(t, dir, 10)
	store := session.NewStore(time.Hour)
	sess := newSession(t, store, dir)

	prov := &scriptedProvider{onCall: func(n int) {
		if n == 3 {
			_, err := store.RequestCancel(sess.ID)
			require.NoError(t, err)
		}
	}}

	runner := session.NewRunner(store, session.WithSleeper(noWait))
	require.NoError(t, runner.Run(context.Background(), sess.ID, files, filepath.Join(dir, "processed"), prov))

	got, err := store.Get(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionStatusCancelled, got.Status)
	assert.True(t, got.Cancelled)
	assert.Equal(t, 10, got.Total)
	assert.Equal(t, 3, got.Processed)
	assert.Equal(t, 3, got.Successful)
	assert.Equal(t, 3, prov.calls)
	require.NotNil(t, got.FinishedAt)
	assert.Len(t, archiveEntries(t, got.ArchivePath), 3)
	for _, f := range files[3:] {
		assert.FileExists(t, f)
	}
}

func TestRunner_FailedFilesAreCategorized(t *testing.T) {
	dir := t.TempDir()
	files := makeFiles(t, dir, 2)
	missing := filepath.Join(dir, "in", "gone.pdf")
	files = append(files, missing)
	store := session.NewStore(time.Hour)
	sess := newSession(t, store, dir)

	prov := &scriptedProvider{fail: map[string]error{
		"scan-02.pdf": provider.NewExtractionError("scripted", domain.ErrorKindTransient, "API error: 502 - bad gateway", nil),
	}}

	runner := session.NewRunner(store, session.WithSleeper(noWait))
	require.NoError(t, runner.Run(context.Background(), sess.ID, files, filepath.Join(dir, "processed"), prov))

	got, err := store.Get(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionStatusCompleted, got.Status)
	assert.Equal(t, 1, got.Successful)
	assert.Equal(t, 2, got.Failed)
	require.Len(t, got.FailedFiles, 2)

	assert.Equal(t, "scan-02.pdf", got.FailedFiles[0].Name)
	assert.Equal(t, files[1], got.FailedFiles[0].Path)
	assert.Equal(t, domain.CategoryAPI, got.FailedFiles[0].Category)
	assert.True(t, strings.HasPrefix(got.FailedFiles[0].Error, "Failed after 3 attempts: "))

	assert.Equal(t, "gone.pdf", got.FailedFiles[1].Name)
	assert.Equal(t, domain.CategoryPDF, got.FailedFiles[1].Category)
	assert.Contains(t, got.FailedFiles[1].Error, domain.MsgFileNotFound)

	// 1 call for scan-01, 3 for scan-02, none for the missing file
	assert.Equal(t, 4, prov.calls)
}

func TestRunner_OutputDirFailureMarksError(t *testing.T) {
	dir := t.TempDir()
	files := makeFiles(t, dir, 1)
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))
	store := session.NewStore(time.Hour)
	sess := newSession(t, store, dir)

	runner := session.NewRunner(store, session.WithSleeper(noWait))
	err := runner.Run(context.Background(), sess.ID, files, filepath.Join(blocker, "processed"), &scriptedProvider{})
	require.Error(t, err)

	got, gerr := store.Get(sess.ID)
	require.NoError(t, gerr)
	assert.Equal(t, domain.SessionStatusError, got.Status)
	assert.Contains(t, got.ErrorMessage, "creating output dir")
	assert.NotNil(t, got.FinishedAt)
	assert.Zero(t, got.Processed)
}

func TestRunner_MirrorsArchiveAndNotifies(t *testing.T) {
	dir := t.TempDir()
	files := makeFiles(t, dir, 1)
	store := session.NewStore(time.Hour)
	sess := newSession(t, store, dir)
	key := "archives/" + sess.ID + "/" + session.ArchiveName

	storage := new(mocks.MockObjectStorage)
	storage.On("Upload", mock.Anything, mock.MatchedBy(func(in port.UploadInput) bool {
		return in.Bucket == "results" && in.Key == key && in.ContentType == "application/zip"
	})).Return(&port.UploadOutput{Location: "s3://results/" + key}, nil)
	storage.On("GetPresignedURL", mock.Anything, "results", key, int64(600)).Return("https://signed.example/x", nil)

	notifier := new(mocks.MockNotifier)
	notifier.On("SessionFinished", mock.Anything, mock.MatchedBy(func(s *domain.Session) bool {
		return s.ID == sess.ID && s.Status == domain.SessionStatusCompleted && s.ArchiveKey == key
	}), "https://signed.example/x").Return(nil)

	runner := session.NewRunner(store,
		session.WithSleeper(noWait),
		session.WithMirror(&session.Mirror{Storage: storage, Bucket: "results", Prefix: "archives", PresignExpiry: 600}),
		session.WithNotifier(notifier),
	)
	require.NoError(t, runner.Run(context.Background(), sess.ID, files, filepath.Join(dir, "processed"), &scriptedProvider{}))

	got, err := store.Get(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, key, got.ArchiveKey)
	storage.AssertExpectations(t)
	notifier.AssertExpectations(t)
}

func TestRunner_NotifierFailureKeepsResult(t *testing.T) {
	dir := t.TempDir()
	files := makeFiles(t, dir, 1)
	store := session.NewStore(time.Hour)
	sess := newSession(t, store, dir)

	notifier := new(mocks.MockNotifier)
	notifier.On("SessionFinished", mock.Anything, mock.Anything, "").Return(assert.AnError)

	runner := session.NewRunner(store, session.WithSleeper(noWait), session.WithNotifier(notifier))
	require.NoError(t, runner.Run(context.Background(), sess.ID, files, filepath.Join(dir, "processed"), &scriptedProvider{}))

	got, err := store.Get(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionStatusCompleted, got.Status)
	notifier.AssertExpectations(t)
}

func TestRunner_UnknownSession(t *testing.T) {
	store := session.NewStore(time.Hour)
	runner := session.NewRunner(store)
	err := runner.Run(context.Background(), "nope", nil, t.TempDir(), &scriptedProvider{})
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}
