// Package builtin constructs the provider kinds shipped with the
// application and registers them from configuration.
package builtin

import (
	"fmt"

	"invoicer/internal/config"
	"invoicer/internal/domain"
	"invoicer/internal/logger"
	"invoicer/internal/port"
	"invoicer/internal/provider"
	"invoicer/internal/provider/mock"
	"invoicer/internal/provider/openaicompat"
)

// New returns an uninitialized provider of the given kind.
func New(kind provider.Kind, r port.Rasterizer, opts ...openaicompat.Option) (port.ExtractionProvider, error) {
	switch kind {
	case provider.KindMock:
		return mock.New(), nil
	case provider.KindLMStudio, provider.KindOpenRouter:
		return openaicompat.New(kind, r, opts...)
	}
	return nil, fmt.Errorf("%w: %q", provider.ErrUnknownKind, kind)
}

// Setup registers OpenRouter and LM Studio, plus the mock provider when
// enabled, and initializes each from cfg. OpenRouter stays registered but
// uninitialized without an API key, which makes it report unavailable.
func Setup(reg *provider.Registry, cfg *config.ProvidersConfig, r port.Rasterizer, opts ...openaicompat.Option) error {
	log := logger.Named("provider.builtin")

	kinds := []provider.Kind{provider.KindOpenRouter, provider.KindLMStudio}
	if cfg.EnableMock {
		kinds = append(kinds, provider.KindMock)
	}

	for _, kind := range kinds {
		p, err := New(kind, r, opts...)
		if err != nil {
			return err
		}
		if err := reg.Register(p); err != nil {
			return err
		}

		pc := ProviderConfig(kind, cfg, "")
		if kind == provider.KindOpenRouter && pc.APIKey == "" {
			log.Warn().Msg("provider.Setup: OpenRouter API key not set, provider disabled")
			continue
		}
		if err := reg.InitializeProvider(p.Name(), pc); err != nil {
			return err
		}
	}
	return nil
}

// ProviderConfig builds the initialization config for kind. A non-empty
// model overrides the configured one.
func ProviderConfig(kind provider.Kind, cfg *config.ProvidersConfig, model string) domain.ProviderConfig {
	var src config.ProviderConfig
	switch kind {
	case provider.KindOpenRouter:
		src = cfg.OpenRouter
	case provider.KindLMStudio:
		src = cfg.LMStudio
	}
	pc := domain.ProviderConfig{
		APIKey:  src.APIKey,
		BaseURL: src.BaseURL,
		Model:   src.Model,
		Timeout: src.Timeout(),
	}
	if model != "" {
		pc.Model = model
	}
	return pc
}
