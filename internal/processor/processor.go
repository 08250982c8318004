// Package processor runs the extract, name and rename pipeline for single
// files with bounded retries and exponential backoff.
package processor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"invoicer/internal/domain"
	"invoicer/internal/filenamer"
	"invoicer/internal/logger"
	"invoicer/internal/port"
	"invoicer/internal/provider"
)

// DefaultMaxRetries is used when Options.MaxRetries is not positive.
const DefaultMaxRetries = 2

// baseDelay is the wait before the first retry; it doubles on each retry.
const baseDelay = time.Second

// maxRateLimitWait caps how long a provider's Retry-After hint can stretch a backoff.
const maxRateLimitWait = 30 * time.Second

// nonRetryable lists message fragments that stop the retry loop.
var nonRetryable = []string{
	domain.MsgFileNotFound,
	domain.MsgPermissionDenied,
	domain.MsgNotAPDF,
}

// Options controls how a file is processed.
type Options struct {
	// MaxRetries is the number of retries after the first attempt.
	// Zero or negative selects DefaultMaxRetries.
	MaxRetries int
	// OutputDir receives renamed files. Empty keeps each file in its own directory.
	OutputDir string
	// DryRun computes the new name without renaming.
	DryRun  bool
	Verbose bool
	// Progress, if set, is called once per finished file.
	Progress func(domain.ProcessingResult)
}

func (o Options) maxRetries() int {
	if o.MaxRetries <= 0 {
		return DefaultMaxRetries
	}
	return o.MaxRetries
}

// Sleeper waits between attempts. It returns early with ctx's error when
// ctx is done.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// SleeperFunc adapts a function to Sleeper.
type SleeperFunc func(ctx context.Context, d time.Duration) error

func (f SleeperFunc) Sleep(ctx context.Context, d time.Duration) error {
	return f(ctx, d)
}

// TimerSleeper sleeps on a real timer.
var TimerSleeper = SleeperFunc(func(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
})

// FatalInputError reports an input file that can never be processed.
type FatalInputError struct {
	Path   string
	Reason string
	Err    error
}

func (e *FatalInputError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Reason, e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Path)
}

func (e *FatalInputError) Unwrap() error {
	return e.Err
}

// Processor turns one invoice file into a renamed file.
type Processor struct {
	provider port.ExtractionProvider
	sleeper  Sleeper
	log      zerolog.Logger

	// renameMu serializes choosing a free name and renaming into it.
	renameMu sync.Mutex
}

// Option configures a Processor.
type Option func(*Processor)

// WithSleeper replaces the backoff sleeper.
func WithSleeper(s Sleeper) Option {
	return func(p *Processor) { p.sleeper = s }
}

// New creates a Processor that extracts with prov.
func New(prov port.ExtractionProvider, opts ...Option) *Processor {
	p := &Processor{
		provider: prov,
		sleeper:  TimerSleeper,
		log:      *logger.Named("processor"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process extracts invoice data from path and renames the file after it.
// Failures are reported in the result, never as a panic or error return.
func (p *Processor) Process(ctx context.Context, path string, opts Options) domain.ProcessingResult {
	maxRetries := opts.maxRetries()
	log := p.log.With().Str("file", filepath.Base(path)).Logger()
	info := log.Debug
	if opts.Verbose {
		info = log.Info
	}

	if err := checkInput(path); err != nil {
		log.Warn().Err(err).Msg("processor.Process: non-retryable input error")
		return failure(path, maxRetries, 0, err)
	}

	var (
		lastErr  error
		attempts int
	)
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			wait := backoff(attempt, lastErr)
			info().Int("attempt", attempt).Int("max_retries", maxRetries).Dur("wait", wait).
				Msg("processor.Process: retrying")
			if err := p.sleeper.Sleep(ctx, wait); err != nil {
				lastErr = err
				break
			}
		}
		attempts++

		result, err := p.attempt(ctx, path, opts)
		if err == nil {
			result.Attempts = attempts
			info().Str("new_name", filepath.Base(result.NewPath)).Int("attempts", attempts).
				Str("original_supplier", result.InvoiceData.OriginalSupplier).
				Msg("processor.Process: processed")
			return result
		}

		lastErr = err
		if !shouldRetry(err) {
			log.Warn().Err(err).Msg("processor.Process: non-retryable error, skipping retries")
			break
		}
		if attempt < maxRetries {
			info().Err(err).Int("attempt", attempt+1).Msg("processor.Process: attempt failed")
		}
		if ctx.Err() != nil {
			break
		}
	}

	log.Warn().Err(lastErr).Int("attempts", attempts).Msg("processor.Process: failed")
	return failure(path, maxRetries, attempts, lastErr)
}

func (p *Processor) attempt(ctx context.Context, path string, opts Options) (domain.ProcessingResult, error) {
	data, err := p.provider.ExtractInvoiceData(ctx, path)
	if err != nil {
		return domain.ProcessingResult{}, err
	}

	outputDir := opts.OutputDir
	if outputDir == "" {
		outputDir = filepath.Dir(path)
	}
	if err := filenamer.EnsureDir(outputDir); err != nil {
		return domain.ProcessingResult{}, err
	}

	p.renameMu.Lock()
	defer p.renameMu.Unlock()

	name, err := filenamer.UniqueNameFor(*data, filenamer.Extension(path), outputDir)
	if err != nil {
		return domain.ProcessingResult{}, err
	}
	newPath := filepath.Join(outputDir, name)

	if !opts.DryRun {
		if err := moveFile(path, newPath); err != nil {
			return domain.ProcessingResult{}, fmt.Errorf("renaming %s: %w", filepath.Base(path), err)
		}
	}

	return domain.ProcessingResult{
		Success:      true,
		OriginalPath: path,
		NewPath:      newPath,
		InvoiceData:  data,
	}, nil
}

// ProcessAll processes paths one after another and returns the results in
// input order.
func (p *Processor) ProcessAll(ctx context.Context, paths []string, opts Options) []domain.ProcessingResult {
	results := make([]domain.ProcessingResult, 0, len(paths))
	for _, path := range paths {
		r := p.Process(ctx, path, opts)
		results = append(results, r)
		if opts.Progress != nil {
			opts.Progress(r)
		}
	}
	return results
}

// backoff returns the wait before retry number attempt. A rate-limited
// provider's hint wins when it asks for longer.
func backoff(attempt int, lastErr error) time.Duration {
	wait := baseDelay << (attempt - 1)
	if hint := provider.RetryAfterOf(lastErr); hint > wait {
		wait = min(hint, maxRateLimitWait)
	}
	return wait
}

// shouldRetry applies the phrase rule: failures whose message
// contains a non-retryable phrase stop the loop, everything else is retried,
// including deterministic validation failures. Fatal input and
// configuration kinds also stop the loop.
func shouldRetry(err error) bool {
	var fatal *FatalInputError
	if errors.As(err, &fatal) || errors.Is(err, context.Canceled) {
		return false
	}
	switch provider.KindOf(err) {
	case domain.ErrorKindFatalInput, domain.ErrorKindConfiguration:
		return false
	}
	msg := err.Error()
	for _, phrase := range nonRetryable {
		if strings.Contains(msg, phrase) {
			return false
		}
	}
	return true
}

// checkInput rejects files that no attempt could process.
func checkInput(path string) error {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return &FatalInputError{Path: path, Reason: domain.MsgFileNotFound}
	case errors.Is(err, os.ErrPermission):
		return &FatalInputError{Path: path, Reason: domain.MsgPermissionDenied, Err: err}
	case err != nil:
		return &FatalInputError{Path: path, Reason: domain.MsgFileNotFound, Err: err}
	case !info.Mode().IsRegular():
		return &FatalInputError{Path: path, Reason: domain.MsgNotAPDF + " (not a regular file)"}
	case !filenamer.IsPDF(path) && !filenamer.IsImage(path):
		return &FatalInputError{Path: path, Reason: domain.MsgNotAPDF}
	}
	return nil
}

func failure(path string, maxRetries, attempts int, err error) domain.ProcessingResult {
	msg := "Unknown error"
	if err != nil {
		msg = err.Error()
	}
	kind := provider.KindOf(err)
	var fatal *FatalInputError
	if errors.As(err, &fatal) {
		kind = domain.ErrorKindFatalInput
	}
	return domain.ProcessingResult{
		Success:      false,
		OriginalPath: path,
		Error:        fmt.Sprintf("Failed after %d attempts: %s", maxRetries+1, msg),
		ErrorKind:    kind,
		Attempts:     attempts,
	}
}

// moveFile renames src to dst, copying across filesystems when needed.
func moveFile(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil || !errors.Is(err, syscall.EXDEV) {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}
