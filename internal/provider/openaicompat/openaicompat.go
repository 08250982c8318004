// Package openaicompat implements extraction providers for backends that
// speak the OpenAI chat completions API, such as OpenRouter and LM Studio.
package openaicompat

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"invoicer/internal/domain"
	"invoicer/internal/filenamer"
	"invoicer/internal/logger"
	"invoicer/internal/port"
	"invoicer/internal/provider"
)

const (
	maxTokens   = 500
	temperature = 0.1
	// maxErrorBody caps how much of a failed response body ends up in an error.
	maxErrorBody = 1000
)

// Provider extracts invoice data through an OpenAI-compatible endpoint.
type Provider struct {
	preset     provider.Preset
	rasterizer port.Rasterizer
	transport  http.RoundTripper
	now        func() time.Time
	log        zerolog.Logger

	mu          sync.RWMutex
	cfg         domain.ProviderConfig
	client      *openai.Client
	initialized bool
}

// Option configures a Provider.
type Option func(*Provider)

// WithTransport sets the base HTTP transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(p *Provider) { p.transport = rt }
}

// WithClock sets the time source used for date plausibility checks.
func WithClock(now func() time.Time) Option {
	return func(p *Provider) { p.now = now }
}

// New creates a provider of the given kind. PDF inputs are rasterized to
// their first page with r before being sent.
func New(kind provider.Kind, r port.Rasterizer, opts ...Option) (*Provider, error) {
	preset, ok := provider.PresetFor(kind)
	if !ok || kind == provider.KindMock {
		return nil, fmt.Errorf("%w: %s is not an OpenAI-compatible kind", provider.ErrUnknownKind, kind)
	}
	p := &Provider{
		preset:     preset,
		rasterizer: r,
		transport:  http.DefaultTransport,
		now:        time.Now,
		log:        logger.Named("openaicompat").With().Str("provider", string(kind)).Logger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

func (p *Provider) Name() string {
	return string(p.preset.Kind)
}

// Initialize validates cfg, fills defaults from the kind's preset and
// replaces any previous configuration.
func (p *Provider) Initialize(cfg domain.ProviderConfig) error {
	if p.preset.RequiresKey && cfg.APIKey == "" {
		return fmt.Errorf("%w: %s API key is required", provider.ErrMissingCredential, p.preset.DisplayName)
	}
	cfg = p.preset.WithDefaults(cfg)

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = cfg.BaseURL
	clientCfg.HTTPClient = &http.Client{
		Transport: &headerTransport{
			name:     p.Name(),
			base:     p.transport,
			headers:  p.preset.Headers,
			dropAuth: !p.preset.RequiresKey,
		},
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.cfg = cfg
	p.client = openai.NewClientWithConfig(clientCfg)
	p.initialized = true
	return nil
}

// Config returns the active configuration.
func (p *Provider) Config() domain.ProviderConfig {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cfg
}

// IsAvailable lists the backend's models within provider.ProbeTimeout.
func (p *Provider) IsAvailable(ctx context.Context) bool {
	client, _, ok := p.snapshot()
	if !ok {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, provider.ProbeTimeout)
	defer cancel()
	if _, err := client.ListModels(ctx); err != nil {
		p.log.Debug().Err(err).Msg("openaicompat.IsAvailable: probe failed")
		return false
	}
	return true
}

func (p *Provider) snapshot() (*openai.Client, domain.ProviderConfig, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.client, p.cfg, p.initialized
}

// ExtractInvoiceData sends the first page of the document at path to the
// model and validates the JSON it returns.
func (p *Provider) ExtractInvoiceData(ctx context.Context, path string) (*domain.InvoiceData, error) {
	client, cfg, ok := p.snapshot()
	if !ok {
		return nil, provider.NewExtractionError(p.Name(), domain.ErrorKindConfiguration,
			"provider not initialized", provider.ErrNotInitialized)
	}

	dataURL, err := p.imageDataURL(ctx, path)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	start := time.Now()
	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: provider.BuildThaiInvoicePrompt(p.now())},
					{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{URL: dataURL}},
				},
			},
		},
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return nil, p.classify(err)
	}
	p.log.Debug().
		Str("model", cfg.Model).
		Dur("elapsed", time.Since(start)).
		Int("choices", len(resp.Choices)).
		Msg("openaicompat.ExtractInvoiceData: response received")

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return nil, provider.NewExtractionError(p.Name(), domain.ErrorKindTransient,
			"No response from "+p.preset.DisplayName, nil)
	}
	return provider.ParseInvoiceResponse(p.Name(), resp.Choices[0].Message.Content, p.now())
}

func (p *Provider) imageDataURL(ctx context.Context, path string) (string, error) {
	var (
		data []byte
		mime string
		err  error
	)
	switch {
	case filenamer.IsImage(path):
		data, err = os.ReadFile(path)
		mime = "image/png"
		if ext := filenamer.Extension(path); ext == ".jpg" || ext == ".jpeg" {
			mime = "image/jpeg"
		}
	default:
		if p.rasterizer == nil {
			return "", provider.NewExtractionError(p.Name(), domain.ErrorKindConfiguration,
				"no PDF rasterizer configured", nil)
		}
		data, err = p.rasterizer.FirstPagePNG(ctx, path)
		mime = "image/png"
	}
	if err != nil {
		kind := domain.ErrorKindFatalInput
		reason := "PDF conversion failed"
		switch {
		case errors.Is(err, os.ErrNotExist):
			reason = domain.MsgFileNotFound
		case errors.Is(err, os.ErrPermission):
			reason = domain.MsgPermissionDenied
		}
		return "", provider.NewExtractionError(p.Name(), kind, reason, err)
	}
	return fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(data)), nil
}

// classify maps a transport or API error to an ExtractionError. Every
// failure of the remote call is transient.
func (p *Provider) classify(err error) error {
	var (
		apiErr *openai.APIError
		reqErr *openai.RequestError
		rlErr  *provider.RateLimitError
	)
	reason := p.preset.DisplayName + " API request failed"
	switch {
	case errors.As(err, &rlErr):
		reason = fmt.Sprintf("%s API error: %d - rate limited, retry after %s",
			p.preset.DisplayName, http.StatusTooManyRequests, rlErr.RetryAfter)
	case errors.As(err, &apiErr):
		reason = fmt.Sprintf("%s API error: %d - %s", p.preset.DisplayName, apiErr.HTTPStatusCode, truncate(apiErr.Message))
	case errors.As(err, &reqErr):
		reason = fmt.Sprintf("%s API error: %d - %s", p.preset.DisplayName, reqErr.HTTPStatusCode, truncate(string(reqErr.Body)))
	case errors.Is(err, context.DeadlineExceeded):
		reason = p.preset.DisplayName + " API request timed out"
	}
	p.log.Warn().Err(err).Msg("openaicompat.ExtractInvoiceData: request failed")
	return provider.NewExtractionError(p.Name(), domain.ErrorKindTransient, reason, err)
}

func truncate(s string) string {
	if len(s) <= maxErrorBody {
		return s
	}
	return s[:maxErrorBody] + "..."
}

// headerTransport adds the preset's extra headers to every request and
// turns a 429 carrying Retry-After into a RateLimitError.
type headerTransport struct {
	name     string
	base     http.RoundTripper
	headers  map[string]string
	dropAuth bool
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}
	if t.dropAuth {
		req.Header.Del("Authorization")
	}
	resp, err := t.base.RoundTrip(req)
	if err != nil || resp.StatusCode != http.StatusTooManyRequests {
		return resp, err
	}
	secs := provider.ParseRetryAfterHeader(resp.Header.Get("Retry-After"))
	if secs == 0 {
		return resp, nil
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	_ = resp.Body.Close()
	return nil, provider.NewRateLimitError(t.name, nil, secs)
}
