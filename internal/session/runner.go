package session

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"invoicer/internal/archive"
	"invoicer/internal/domain"
	"invoicer/internal/filenamer"
	"invoicer/internal/logger"
	"invoicer/internal/port"
	"invoicer/internal/processor"
)

// ArchiveName is the file name of the result archive inside a work dir.
const ArchiveName = "processed-invoices.zip"

// DefaultMaxRetries is the per-file retry budget of a batch.
const DefaultMaxRetries = 2

// Mirror uploads finished archives to object storage.
type Mirror struct {
	Storage       port.ObjectStorage
	Bucket        string
	Prefix        string
	PresignExpiry int64
}

// Key returns the object key of a session archive.
func (m *Mirror) Key(sessionID string) string {
	return path.Join(m.Prefix, sessionID, ArchiveName)
}

// Runner processes the files of one session at a time, sequentially.
type Runner struct {
	store      *Store
	maxRetries int
	sleeper    processor.Sleeper
	mirror     *Mirror
	notifier   port.Notifier
	log        zerolog.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithMaxRetries overrides the per-file retry budget.
func WithMaxRetries(n int) RunnerOption {
	return func(r *Runner) { r.maxRetries = n }
}

// WithSleeper replaces the backoff sleeper of the processor.
func WithSleeper(s processor.Sleeper) RunnerOption {
	return func(r *Runner) { r.sleeper = s }
}

// WithMirror uploads each finished archive to object storage.
func WithMirror(m *Mirror) RunnerOption {
	return func(r *Runner) { r.mirror = m }
}

// WithNotifier announces each finished session.
func WithNotifier(n port.Notifier) RunnerOption {
	return func(r *Runner) { r.notifier = n }
}

// NewRunner creates a Runner writing progress into store.
func NewRunner(store *Store, opts ...RunnerOption) *Runner {
	r := &Runner{
		store:      store,
		maxRetries: DefaultMaxRetries,
		sleeper:    processor.TimerSleeper,
		log:        *logger.Named("session.Runner"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run processes files into outputDir with prov and records every outcome on
// the session. Cancellation is checked before each file. The archive of the
// successful files is written even when the session was cancelled.
func (r *Runner) Run(ctx context.Context, sessionID string, files []string, outputDir string, prov port.ExtractionProvider) error {
	log := r.log.With().Str("session_id", sessionID).Str("provider", prov.Name()).Logger()

	snap, err := r.store.Update(sessionID, func(s *domain.Session) {
		if !s.Cancelled {
			s.Status = domain.SessionStatusProcessing
		}
		s.Total = len(files)
	})
	if err != nil {
		return err
	}

	if err := filenamer.EnsureDir(outputDir); err != nil {
		return r.fail(ctx, sessionID, fmt.Errorf("creating output dir: %w", err))
	}

	proc := processor.New(prov, processor.WithSleeper(r.sleeper))
	writer, archivePath, err := r.createArchive(snap, outputDir)
	if err != nil {
		return r.fail(ctx, sessionID, err)
	}

	log.Info().Int("files", len(files)).Msg("session.Runner: started")
	cancelled := false
	for _, file := range files {
		cur, err := r.store.Get(sessionID)
		if err != nil {
			_ = writer.Close()
			return err
		}
		if cur.Cancelled || ctx.Err() != nil {
			cancelled = true
			log.Info().Int("processed", cur.Processed).Int("total", cur.Total).
				Msg("session.Runner: cancelled")
			break
		}

		start := time.Now()
		res := proc.Process(ctx, file, processor.Options{
			MaxRetries: r.maxRetries,
			OutputDir:  outputDir,
			Verbose:    true,
		})

		var addErr error
		if res.Success {
			addErr = writer.AddFile(res.NewPath)
		}
		cur, err = r.store.Update(sessionID, func(s *domain.Session) { record(s, file, res) })
		if err != nil {
			_ = writer.Close()
			return err
		}
		if addErr != nil {
			_ = writer.Close()
			return r.fail(ctx, sessionID, fmt.Errorf("adding %s to archive: %w", filepath.Base(res.NewPath), addErr))
		}

		ev := log.Info()
		if !res.Success {
			ev = log.Warn().Str("error", res.Error).Str("category", string(domain.CategoryFor(res.ErrorKind, res.Error)))
		}
		ev.Int("processed", cur.Processed).Int("total", cur.Total).
			Str("file", filepath.Base(file)).Str("new_name", filepath.Base(res.NewPath)).
			Dur("elapsed", time.Since(start)).Msg("session.Runner: file done")
	}

	if err := writer.Close(); err != nil {
		return r.fail(ctx, sessionID, fmt.Errorf("writing archive: %w", err))
	}

	final, err := r.store.Update(sessionID, func(s *domain.Session) {
		s.ArchivePath = archivePath
		if cancelled || s.Cancelled {
			s.Cancelled = true
			s.Status = domain.SessionStatusCancelled
		} else {
			s.Status = domain.SessionStatusCompleted
		}
		now := r.store.Now()
		s.FinishedAt = &now
	})
	if err != nil {
		return err
	}
	log.Info().Str("status", string(final.Status)).Int("successful", final.Successful).
		Int("failed", final.Failed).Msg("session.Runner: finished")

	r.afterFinish(context.WithoutCancel(ctx), final)
	return nil
}

func (r *Runner) createArchive(snap *domain.Session, outputDir string) (*archive.Writer, string, error) {
	dir := snap.WorkDir
	if dir == "" {
		dir = filepath.Dir(outputDir)
	}
	archivePath := filepath.Join(dir, ArchiveName)
	w, err := archive.Create(archivePath)
	if err != nil {
		return nil, "", fmt.Errorf("creating archive: %w", err)
	}
	return w, archivePath, nil
}

// record applies one file outcome to the session counters.
func record(s *domain.Session, file string, res domain.ProcessingResult) {
	s.Processed++
	s.Results = append(s.Results, res)
	if res.Success {
		s.Successful++
		s.FileNames = append(s.FileNames, filepath.Base(res.NewPath))
		return
	}
	s.Failed++
	msg := res.Error
	if msg == "" {
		msg = "Processing failed"
	}
	s.FailedFiles = append(s.FailedFiles, domain.FailedFile{
		Name:     filepath.Base(file),
		Path:     file,
		Error:    msg,
		Category: domain.CategoryFor(res.ErrorKind, msg),
	})
}

// fail moves the session to the error status.
func (r *Runner) fail(ctx context.Context, sessionID string, cause error) error {
	r.log.Error().Err(cause).Str("session_id", sessionID).Msg("session.Runner: batch failed")
	final, err := r.store.Update(sessionID, func(s *domain.Session) {
		s.Status = domain.SessionStatusError
		s.ErrorMessage = cause.Error()
		now := r.store.Now()
		s.FinishedAt = &now
	})
	if err == nil {
		r.afterFinish(context.WithoutCancel(ctx), final)
	}
	return cause
}

// afterFinish mirrors the archive and sends the completion notice. Failures
// are logged; the session result stands.
func (r *Runner) afterFinish(ctx context.Context, sess *domain.Session) {
	var archiveURL string
	if r.mirror != nil && sess.ArchivePath != "" {
		key, url, err := r.upload(ctx, sess)
		if err != nil {
			r.log.Warn().Err(err).Str("session_id", sess.ID).Msg("session.Runner: archive mirror failed")
		} else {
			archiveURL = url
			if updated, err := r.store.Update(sess.ID, func(s *domain.Session) { s.ArchiveKey = key }); err == nil {
				sess = updated
			}
		}
	}

	if r.notifier != nil {
		if err := r.notifier.SessionFinished(ctx, sess, archiveURL); err != nil {
			r.log.Warn().Err(err).Str("session_id", sess.ID).Msg("session.Runner: notification failed")
		}
	}
}

func (r *Runner) upload(ctx context.Context, sess *domain.Session) (string, string, error) {
	f, err := os.Open(sess.ArchivePath)
	if err != nil {
		return "", "", err
	}
	defer f.Close()

	key := r.mirror.Key(sess.ID)
	if _, err := r.mirror.Storage.Upload(ctx, port.UploadInput{
		Bucket:      r.mirror.Bucket,
		Key:         key,
		Body:        f,
		ContentType: "application/zip",
	}); err != nil {
		return "", "", fmt.Errorf("uploading archive: %w", err)
	}

	url, err := r.mirror.Storage.GetPresignedURL(ctx, r.mirror.Bucket, key, r.mirror.PresignExpiry)
	if err != nil {
		r.log.Warn().Err(err).Str("session_id", sess.ID).Msg("session.Runner: presigning archive")
		return key, "", nil
	}
	return key, url, nil
}
