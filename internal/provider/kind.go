package provider

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"invoicer/internal/domain"
)

// Kind identifies a built-in provider variant.
type Kind string

const (
	KindMock       Kind = "mock"
	KindLMStudio   Kind = "lmstudio"
	KindOpenRouter Kind = "openrouter"
)

// DefaultTimeout bounds a single extraction request.
const DefaultTimeout = 60 * time.Second

// ProbeTimeout bounds an availability probe.
const ProbeTimeout = 5 * time.Second

// Preset holds the defaults that distinguish one provider kind from another.
type Preset struct {
	Kind        Kind
	DisplayName string
	Description string
	BaseURL     string
	Model       string
	// RequiresKey makes Initialize fail without an API key and sends it as a
	// bearer token. Kinds without a key send no Authorization header.
	RequiresKey bool
	Headers     map[string]string
	Models      []domain.ModelInfo
}

var presets = map[Kind]Preset{
	KindMock: {
		Kind:        KindMock,
		DisplayName: "Mock",
		Description: "Returns fixed invoice data for testing",
		Model:       "mock",
		Models:      []domain.ModelInfo{{ID: "mock", Name: "Mock"}},
	},
	KindLMStudio: {
		Kind:        KindLMStudio,
		DisplayName: "LM Studio (Local)",
		Description: "Local inference",
		BaseURL:     "http://localhost:1234/v1",
		Model:       "local-model",
		Models:      []domain.ModelInfo{{ID: "local-model", Name: "Local Model", Recommended: true}},
	},
	KindOpenRouter: {
		Kind:        KindOpenRouter,
		DisplayName: "OpenRouter",
		Description: "Cloud-based, multiple models",
		BaseURL:     "https://openrouter.ai/api/v1",
		Model:       "qwen/qwen3-vl-235b-a22b-instruct",
		RequiresKey: true,
		Headers: map[string]string{
			"HTTP-Referer": "https://github.com/invoice-renamer",
			"X-Title":      "Invoice Renamer CLI",
		},
		Models: []domain.ModelInfo{
			{ID: "qwen/qwen3-vl-235b-a22b-instruct", Name: "Qwen3-VL-235B (Best OCR)", Recommended: true},
			{ID: "qwen/qwen3-vl-30b-a3b-instruct", Name: "Qwen3-VL-30B (Fast & Accurate)"},
			{ID: "qwen/qwen-2.5-vl-72b-instruct", Name: "Qwen2.5-VL-72B (Proven for Thai)"},
			{ID: "qwen/qwen-2.5-vl-32b-instruct", Name: "Qwen2.5-VL-32B (Good Balance)"},
			{ID: "google/gemini-2.5-flash-preview-09-2025", Name: "Gemini 2.5 Flash (Fast & Smart)"},
			{ID: "google/gemini-3-pro-preview", Name: "Gemini 3 Pro (Latest)"},
			{ID: "anthropic/claude-sonnet-4.5", Name: "Claude Sonnet 4.5 (High Quality)"},
			{ID: "anthropic/claude-haiku-4.5", Name: "Claude Haiku 4.5 (Fast)"},
			{ID: "openai/gpt-5.1", Name: "GPT-5.1 (Latest OpenAI)"},
			{ID: "openai/gpt-4o", Name: "GPT-4o (Proven Quality)"},
		},
	},
}

// Kinds returns the built-in kinds in preference order.
func Kinds() []Kind {
	return []Kind{KindOpenRouter, KindLMStudio, KindMock}
}

// ParseKind converts a name to a Kind.
func ParseKind(name string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := presets[k]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, name)
	}
	return k, nil
}

// PresetFor returns the defaults of kind.
func PresetFor(kind Kind) (Preset, bool) {
	p, ok := presets[kind]
	return p, ok
}

// HasModel reports whether model is in the catalogue of kind. Unlisted
// models are still accepted by the backends; this only drives the UI.
func (p Preset) HasModel(model string) bool {
	for _, m := range p.Models {
		if m.ID == model {
			return true
		}
	}
	return false
}

// ModelDisplayName returns the catalogue name of model without its
// parenthesized note, or model itself when it is not listed.
func (p Preset) ModelDisplayName(model string) string {
	for _, m := range p.Models {
		if m.ID == model {
			return strings.TrimSpace(parenNote.ReplaceAllString(m.Name, ""))
		}
	}
	return model
}

var parenNote = regexp.MustCompile(` \(.*?\)`)

// WithDefaults fills empty fields of cfg from the preset.
func (p Preset) WithDefaults(cfg domain.ProviderConfig) domain.ProviderConfig {
	if cfg.BaseURL == "" {
		cfg.BaseURL = p.BaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = p.Model
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return cfg
}
