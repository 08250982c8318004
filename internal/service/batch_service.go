package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"invoicer/internal/archive"
	"invoicer/internal/config"
	"invoicer/internal/domain"
	"invoicer/internal/filenamer"
	"invoicer/internal/logger"
	"invoicer/internal/port"
	"invoicer/internal/provider"
	"invoicer/internal/provider/builtin"
	"invoicer/internal/report"
	"invoicer/internal/session"
)

// UploadInput is the DTO for a batch upload.
type UploadInput struct {
	Filename string
	Size     int64
	Body     io.Reader
}

// StartResult identifies an accepted batch.
type StartResult struct {
	SessionID string `json:"sessionId"`
	Total     int    `json:"total"`
}

// SettingsUpdate carries the settings to change. Empty fields are kept.
type SettingsUpdate struct {
	PreferredProvider string `json:"preferredProvider"`
	OpenRouterModel   string `json:"openrouterModel"`
	LMStudioModel     string `json:"lmstudioModel"`
}

// ProviderOption describes one value of the preferred provider setting.
type ProviderOption struct {
	Value       string `json:"value"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ProvidersView lists the registered providers and the selectable preferences.
type ProvidersView struct {
	Providers       []domain.ProviderInfo `json:"providers"`
	ProviderOptions []ProviderOption      `json:"providerOptions"`
}

// HealthStatus reports the provider a new batch would use.
type HealthStatus struct {
	Status   string `json:"status"`
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`
	Sessions int    `json:"sessions"`
}

// BatchService accepts uploads and drives batch sessions.
type BatchService interface {
	StartUpload(ctx context.Context, input UploadInput) (*StartResult, error)
	Status(ctx context.Context, sessionID string) (*domain.Session, error)
	Cancel(ctx context.Context, sessionID string) (*domain.Session, error)
	Retry(ctx context.Context, sessionID string) (*StartResult, error)
	Archive(ctx context.Context, sessionID string) (string, error)
	Report(ctx context.Context, sessionID string, format domain.ReportFormat, w io.Writer) error
	Settings(ctx context.Context) domain.Settings
	UpdateSettings(ctx context.Context, input SettingsUpdate) (domain.Settings, error)
	Providers(ctx context.Context) ProvidersView
	Health(ctx context.Context) (*HealthStatus, error)
	Shutdown(ctx context.Context) error
}

// BatchConfig holds the filesystem layout and limits of the service.
type BatchConfig struct {
	UploadDir      string
	SessionsDir    string
	MaxUploadBytes int64
}

const msgNoProvider = "No provider available. Please check settings or start required provider."

type batchService struct {
	registry  *provider.Registry
	store     *session.Store
	runner    *session.Runner
	splitter  port.DocumentSplitter
	providers *config.ProvidersConfig
	cfg       BatchConfig
	log       zerolog.Logger

	mu       sync.RWMutex
	settings domain.Settings

	bgCtx context.Context
	stop  context.CancelFunc
	wg    sync.WaitGroup
}

// NewBatchService creates a new BatchService implementation.
func NewBatchService(
	registry *provider.Registry,
	store *session.Store,
	runner *session.Runner,
	splitter port.DocumentSplitter,
	providers *config.ProvidersConfig,
	cfg BatchConfig,
) BatchService {
	bgCtx, stop := context.WithCancel(context.Background())
	return &batchService{
		registry:  registry,
		store:     store,
		runner:    runner,
		splitter:  splitter,
		providers: providers,
		cfg:       cfg,
		log:       *logger.Named("service.Batch"),
		settings:  defaultSettings(providers),
		bgCtx:     bgCtx,
		stop:      stop,
	}
}

func defaultSettings(cfg *config.ProvidersConfig) domain.Settings {
	s := domain.Settings{
		PreferredProvider: domain.PreferAuto,
		OpenRouterModel:   cfg.OpenRouter.Model,
		LMStudioModel:     cfg.LMStudio.Model,
	}
	if cfg.Preferred != "" {
		s.PreferredProvider = cfg.Preferred
	}
	if s.OpenRouterModel == "" {
		p, _ := provider.PresetFor(provider.KindOpenRouter)
		s.OpenRouterModel = p.Model
	}
	if s.LMStudioModel == "" {
		p, _ := provider.PresetFor(provider.KindLMStudio)
		s.LMStudioModel = p.Model
	}
	return s
}

func (s *batchService) StartUpload(ctx context.Context, input UploadInput) (*StartResult, error) {
	ext := filenamer.Extension(input.Filename)
	if !filenamer.IsPDF(input.Filename) && !filenamer.IsZip(input.Filename) {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedFileType, ext)
	}
	if s.cfg.MaxUploadBytes > 0 && input.Size > s.cfg.MaxUploadBytes {
		return nil, domain.ErrFileTooLarge
	}

	sess, err := s.createSession(&domain.Session{Status: domain.SessionStatusUploading})
	if err != nil {
		return nil, err
	}
	id := sess.ID
	log := s.log.With().Str("session_id", id).Logger()

	uploadPath, err := s.saveUpload(input, ext)
	if uploadPath != "" {
		_, _ = s.store.Update(id, func(x *domain.Session) { x.UploadPath = uploadPath })
	}
	if err != nil {
		s.markError(id, err.Error())
		return nil, err
	}

	name, prov, err := s.selectProvider(ctx)
	if err != nil {
		s.markError(id, msgNoProvider)
		return nil, err
	}

	files, err := s.expand(ctx, uploadPath, sess.WorkDir)
	if err != nil {
		s.markError(id, err.Error())
		return nil, err
	}

	model := s.modelFor(name)
	if _, err := s.store.Update(id, func(x *domain.Session) {
		x.Total = len(files)
		x.Status = domain.SessionStatusProcessing
		x.Provider = name
		x.Model = model
	}); err != nil {
		return nil, err
	}

	log.Info().Str("file", input.Filename).Int64("size", input.Size).Int("files", len(files)).
		Str("provider", name).Str("model", model).Msg("batchService.StartUpload: accepted")
	s.launch(id, files, filepath.Join(sess.WorkDir, "processed"), prov)
	return &StartResult{SessionID: id, Total: len(files)}, nil
}

// saveUpload copies the upload under the upload dir, enforcing the size
// limit on the bytes actually read.
func (s *batchService) saveUpload(input UploadInput, ext string) (string, error) {
	if err := filenamer.EnsureDir(s.cfg.UploadDir); err != nil {
		return "", fmt.Errorf("creating upload dir: %w", err)
	}
	path := filepath.Join(s.cfg.UploadDir, fmt.Sprintf("file-%d-%s%s", s.store.Now().UnixMilli(), uuid.New().String(), ext))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("saving upload: %w", err)
	}
	defer f.Close()

	body := input.Body
	if s.cfg.MaxUploadBytes > 0 {
		body = io.LimitReader(input.Body, s.cfg.MaxUploadBytes+1)
	}
	n, err := io.Copy(f, body)
	if err != nil {
		return path, fmt.Errorf("saving upload: %w", err)
	}
	if s.cfg.MaxUploadBytes > 0 && n > s.cfg.MaxUploadBytes {
		return path, domain.ErrFileTooLarge
	}
	return path, nil
}

// expand turns an upload into the list of single-page PDFs to process.
func (s *batchService) expand(ctx context.Context, uploadPath, workDir string) ([]string, error) {
	inputs := []string{uploadPath}
	if filenamer.IsZip(uploadPath) {
		extracted, err := archive.ExtractPDFs(uploadPath, filepath.Join(workDir, "extracted"))
		if err != nil {
			return nil, fmt.Errorf("extracting zip: %w", err)
		}
		inputs = extracted
	}

	splitDir := filepath.Join(workDir, "split")
	files := make([]string, 0, len(inputs))
	for _, in := range inputs {
		pages, err := s.splitter.Split(ctx, in, splitDir)
		if err != nil {
			// unreadable PDFs are passed through and fail per file
			s.log.Warn().Err(err).Str("file", filepath.Base(in)).Msg("batchService.expand: split failed")
			files = append(files, in)
			continue
		}
		files = append(files, pages...)
	}
	return files, nil
}

func (s *batchService) launch(id string, files []string, outputDir string, prov port.ExtractionProvider) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx := logger.WithSessionID(s.bgCtx, id)
		if err := s.runner.Run(ctx, id, files, outputDir, prov); err != nil {
			s.log.Error().Err(err).Str("session_id", id).Msg("batchService: batch failed")
		}
	}()
}

// createSession stores sess under a generated id and points its work dir
// at <sessions>/<id>.
func (s *batchService) createSession(sess *domain.Session) (*domain.Session, error) {
	created, err := s.store.Create(sess)
	if err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}
	return s.store.Update(created.ID, func(x *domain.Session) {
		x.WorkDir = filepath.Join(s.cfg.SessionsDir, x.ID)
	})
}

func (s *batchService) markError(id, msg string) {
	_, _ = s.store.Update(id, func(x *domain.Session) {
		x.Status = domain.SessionStatusError
		x.ErrorMessage = msg
		now := s.store.Now()
		x.FinishedAt = &now
	})
	s.log.Warn().Str("error", msg).Str("session_id", id).Msg("batchService: session rejected")
}

// selectProvider applies the preferred provider setting.
func (s *batchService) selectProvider(ctx context.Context) (string, port.ExtractionProvider, error) {
	return s.registry.Select(ctx, s.Settings(ctx).PreferredProvider)
}

func (s *batchService) modelFor(name string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch name {
	case domain.PreferOpenRouter:
		return s.settings.OpenRouterModel
	case domain.PreferLMStudio:
		return s.settings.LMStudioModel
	}
	if p, ok := provider.PresetFor(provider.Kind(name)); ok {
		return p.Model
	}
	return ""
}

func (s *batchService) Status(_ context.Context, sessionID string) (*domain.Session, error) {
	return s.store.Get(sessionID)
}

func (s *batchService) Cancel(_ context.Context, sessionID string) (*domain.Session, error) {
	sess, err := s.store.RequestCancel(sessionID)
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("session_id", sessionID).Int("processed", sess.Processed).Int("total", sess.Total).
		Msg("batchService.Cancel: cancellation requested")
	return sess, nil
}

func (s *batchService) Retry(ctx context.Context, sessionID string) (*StartResult, error) {
	src, err := s.store.Get(sessionID)
	if err != nil {
		return nil, err
	}
	if len(src.FailedFiles) == 0 {
		return nil, domain.ErrNoFailedFiles
	}
	if src.Status == domain.SessionStatusProcessing || src.FinishedAt == nil {
		return nil, domain.ErrSessionBusy
	}

	name, prov, err := s.selectProvider(ctx)
	if err != nil {
		return nil, err
	}

	files := make([]string, len(src.FailedFiles))
	for i, f := range src.FailedFiles {
		files[i] = f.Path
	}

	sess, err := s.createSession(&domain.Session{
		ParentID: sessionID,
		Status:   domain.SessionStatusProcessing,
		Total:    len(files),
		Provider: name,
		Model:    s.modelFor(name),
	})
	if err != nil {
		return nil, err
	}
	id := sess.ID

	// the failed inputs live in the source work dir; keep it past the retry
	_, _ = s.store.Update(sessionID, func(x *domain.Session) {
		now := s.store.Now()
		x.FinishedAt = &now
	})

	s.log.Info().Str("session_id", id).Str("parent_id", sessionID).Int("files", len(files)).
		Msg("batchService.Retry: accepted")
	s.launch(id, files, filepath.Join(sess.WorkDir, "processed"), prov)
	return &StartResult{SessionID: id, Total: len(files)}, nil
}

func (s *batchService) Archive(_ context.Context, sessionID string) (string, error) {
	sess, err := s.store.Get(sessionID)
	if err != nil {
		return "", err
	}
	if sess.Status != domain.SessionStatusCompleted && sess.Status != domain.SessionStatusCancelled {
		return "", domain.ErrArchiveNotReady
	}
	if sess.FinishedAt == nil {
		return "", domain.ErrArchiveNotReady
	}
	if sess.ArchivePath == "" || !filenamer.Exists(sess.ArchivePath) {
		return "", domain.ErrArchiveNotFound
	}
	return sess.ArchivePath, nil
}

func (s *batchService) Report(_ context.Context, sessionID string, format domain.ReportFormat, w io.Writer) error {
	sess, err := s.store.Get(sessionID)
	if err != nil {
		return err
	}
	return report.Write(w, format, sess)
}

func (s *batchService) Settings(_ context.Context) domain.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

func (s *batchService) UpdateSettings(_ context.Context, input SettingsUpdate) (domain.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.settings
	if input.PreferredProvider != "" {
		if !s.validPreference(input.PreferredProvider) {
			return s.settings, fmt.Errorf("%w: invalid provider %q", domain.ErrInvalidSettings, input.PreferredProvider)
		}
		next.PreferredProvider = input.PreferredProvider
	}
	if input.OpenRouterModel != "" {
		next.OpenRouterModel = input.OpenRouterModel
	}
	if input.LMStudioModel != "" {
		next.LMStudioModel = input.LMStudioModel
	}

	if next.OpenRouterModel != s.settings.OpenRouterModel {
		if err := s.reinitialize(provider.KindOpenRouter, next.OpenRouterModel); err != nil {
			return s.settings, err
		}
	}
	if next.LMStudioModel != s.settings.LMStudioModel {
		if err := s.reinitialize(provider.KindLMStudio, next.LMStudioModel); err != nil {
			return s.settings, err
		}
	}

	s.settings = next
	s.log.Info().Str("preferred", next.PreferredProvider).Str("openrouter_model", next.OpenRouterModel).
		Str("lmstudio_model", next.LMStudioModel).Msg("batchService.UpdateSettings: updated")
	return next, nil
}

func (s *batchService) validPreference(pref string) bool {
	switch pref {
	case domain.PreferAuto, domain.PreferOpenRouter, domain.PreferLMStudio:
		return true
	}
	return pref == string(provider.KindMock) && s.registry.Has(pref)
}

// reinitialize applies a new model to a registered provider. A provider
// that lacks its credential keeps the setting for when it is configured.
func (s *batchService) reinitialize(kind provider.Kind, model string) error {
	name := string(kind)
	if !s.registry.Has(name) {
		return nil
	}
	err := s.registry.InitializeProvider(name, builtin.ProviderConfig(kind, s.providers, model))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, provider.ErrMissingCredential):
		s.log.Warn().Str("provider", name).Msg("batchService.UpdateSettings: provider not configured, model stored only")
		return nil
	}
	return fmt.Errorf("%w: %v", domain.ErrInvalidSettings, err)
}

func (s *batchService) Providers(ctx context.Context) ProvidersView {
	view := ProvidersView{
		Providers: []domain.ProviderInfo{},
		ProviderOptions: []ProviderOption{
			{Value: domain.PreferAuto, Name: "Auto", Description: "Try OpenRouter first, fallback to LM Studio"},
		},
	}
	for _, name := range s.registry.Names() {
		preset, ok := provider.PresetFor(provider.Kind(name))
		if !ok {
			continue
		}
		view.Providers = append(view.Providers, domain.ProviderInfo{
			Name:        name,
			DisplayName: preset.DisplayName,
			Description: preset.Description,
			Available:   s.registry.IsAvailable(ctx, name),
			Models:      append([]domain.ModelInfo(nil), preset.Models...),
		})
	}
	return view
}

func (s *batchService) Health(ctx context.Context) (*HealthStatus, error) {
	for _, name := range []string{domain.PreferOpenRouter, domain.PreferLMStudio, string(provider.KindMock)} {
		if !s.registry.Has(name) || !s.registry.IsAvailable(ctx, name) {
			continue
		}
		preset, _ := provider.PresetFor(provider.Kind(name))
		return &HealthStatus{
			Status:   "ok",
			Provider: name,
			Model:    preset.ModelDisplayName(s.modelFor(name)),
			Sessions: s.store.Len(),
		}, nil
	}
	return &HealthStatus{Status: "error", Sessions: s.store.Len()}, domain.ErrNoProviderAvailable
}

// Shutdown stops accepting progress on running batches and waits for their
// workers. Running sessions end as cancelled with their partial archive.
func (s *batchService) Shutdown(ctx context.Context) error {
	s.stop()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
