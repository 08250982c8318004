package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"invoicer/internal/config"
	"invoicer/internal/domain"
	"invoicer/internal/handler"
	"invoicer/internal/logger"
	"invoicer/internal/notify/noop"
	sesnotify "invoicer/internal/notify/ses"
	"invoicer/internal/pdf"
	"invoicer/internal/port"
	"invoicer/internal/provider"
	"invoicer/internal/provider/builtin"
	"invoicer/internal/router"
	"invoicer/internal/service"
	"invoicer/internal/session"
	s3storage "invoicer/internal/storage/s3"
)

func main() {
	if err := run(); err != nil {
		logger.Get().Fatal().Err(err).Msg("server exited")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger.Init(logger.Options{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Service: "invoice-renamer",
	})
	log := logger.Named("server")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize providers
	registry := provider.NewRegistry()
	if err := builtin.Setup(registry, &cfg.Providers, pdf.NewRasterizer(pdf.DefaultDPI)); err != nil {
		return fmt.Errorf("failed to initialize providers: %w", err)
	}

	// Initialize storage
	var (
		storage port.ObjectStorage
		mirror  *session.Mirror
	)
	if cfg.S3.Enabled {
		storage, err = s3storage.NewS3Client(ctx, &cfg.S3)
		if err != nil {
			return fmt.Errorf("failed to initialize S3 client: %w", err)
		}
		mirror = &session.Mirror{
			Storage:       storage,
			Bucket:        cfg.S3.Bucket,
			Prefix:        cfg.S3.Prefix,
			PresignExpiry: cfg.S3.PresignExpiry,
		}
	}

	notifier, err := newNotifier(ctx, &cfg.Email)
	if err != nil {
		return fmt.Errorf("failed to initialize notifier: %w", err)
	}

	// Initialize sessions
	store := session.NewStore(cfg.Session.Retention, session.WithReapHook(func(sess *domain.Session) {
		if storage == nil || sess.ArchiveKey == "" {
			return
		}
		if err := storage.Delete(context.Background(), cfg.S3.Bucket, sess.ArchiveKey); err != nil {
			log.Warn().Err(err).Str("session_id", sess.ID).Msg("server: failed to delete mirrored archive")
		}
	}))
	runnerOpts := []session.RunnerOption{
		session.WithMaxRetries(cfg.Processing.MaxRetries),
		session.WithNotifier(notifier),
	}
	if mirror != nil {
		runnerOpts = append(runnerOpts, session.WithMirror(mirror))
	}
	runner := session.NewRunner(store, runnerOpts...)

	// Initialize services
	batchSvc := service.NewBatchService(registry, store, runner, pdf.NewSplitter(), &cfg.Providers, service.BatchConfig{
		UploadDir:      cfg.Storage.UploadDir(),
		SessionsDir:    cfg.Storage.SessionsDir(),
		MaxUploadBytes: cfg.Server.MaxUploadBytes(),
	})
	go store.StartReaper(ctx, cfg.Session.ReapInterval)

	// Initialize handlers
	sessionH := handler.NewSessionHandler(batchSvc)
	settingsH := handler.NewSettingsHandler(batchSvc)
	providerH := handler.NewProviderHandler(batchSvc)
	healthH := handler.NewHealthHandler(batchSvc)

	// Setup router
	r := router.Setup(router.Options{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		MaxUploadBytes: cfg.Server.MaxUploadBytes(),
		PublicDir:      cfg.Server.PublicDir,
	}, sessionH, settingsH, providerH, healthH)

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Server.Port).Strs("providers", registry.Names()).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info().Msg("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownPeriod)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server: http shutdown failed")
	}
	if err := batchSvc.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("waiting for running batches: %w", err)
	}
	return nil
}

func newNotifier(ctx context.Context, cfg *config.EmailConfig) (port.Notifier, error) {
	switch cfg.Provider {
	case "ses":
		return sesnotify.NewSESNotifier(ctx, cfg.Region, cfg.FromAddress, cfg.FromName, cfg.To)
	case "", "noop":
		return noop.NewNoopNotifier(), nil
	}
	return nil, fmt.Errorf("unknown email provider %q", cfg.Provider)
}
