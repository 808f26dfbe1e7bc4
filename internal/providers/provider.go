// Package providers contains the scoring backends that judge claims
// against collected evidence.
package providers

import (
	"context"
	"fmt"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/mwhelan/claimcheck/internal/models"
)

type Kind string

const (
	KindOpenAI    Kind = "openai"
	KindAnthropic Kind = "anthropic"
	KindDeepSeek  Kind = "deepseek"
	KindGLM       Kind = "glm"
	KindGoogle    Kind = "google"

	// KindMock scores deterministically without network access. Used in
	// tests and for dry runs.
	KindMock Kind = "mock"
)

// ScoreRequest carries everything a provider needs to judge one claim.
type ScoreRequest struct {
	Claim    *models.Claim
	Evidence []models.Evidence

	// EvidenceStrength is the strength score for Evidence in [0, 1],
	// surfaced in the prompt so providers can weigh weak evidence.
	EvidenceStrength float64

	// PromptOverride replaces the built-in validation prompt when set.
	// It has already been through template resolution.
	PromptOverride string
}

// Provider is the interface for all claim-scoring backends.
type Provider interface {
	// Name returns the configured provider name
	Name() string

	// Kind returns the provider kind
	Kind() Kind

	// Score judges the claim against the evidence and returns a verdict.
	// The returned verdict's Weight field is left zero; the caller owns
	// weighting.
	Score(ctx context.Context, req *ScoreRequest) (*models.ProviderVerdict, error)
}

// Create builds a provider from its spec configuration.
func Create(cfg *models.ProviderConfig, apiKey string) (Provider, error) {
	switch Kind(cfg.Kind) {
	case KindOpenAI, KindDeepSeek, KindGLM:
		var v *struct {
			BaseURL     string  `mapstructure:"base_url"`
			Temperature float32 `mapstructure:"temperature"`
			MaxTokens   int     `mapstructure:"max_tokens"`
		}

		if err := mapstructure.Decode(cfg.Parameters, &v); err != nil {
			return nil, err
		}

		args := OpenAIProviderArgs{Model: cfg.Model}
		if v != nil {
			args.BaseURL = v.BaseURL
			args.Temperature = v.Temperature
			args.MaxTokens = v.MaxTokens
		}

		return NewOpenAIProvider(cfg.Name(), Kind(cfg.Kind), apiKey, args)
	case KindAnthropic:
		var v *struct {
			BaseURL    string `mapstructure:"base_url"`
			APIVersion string `mapstructure:"api_version"`
			MaxTokens  int    `mapstructure:"max_tokens"`
		}

		if err := mapstructure.Decode(cfg.Parameters, &v); err != nil {
			return nil, err
		}

		args := AnthropicProviderArgs{Model: cfg.Model}
		if v != nil {
			args.BaseURL = v.BaseURL
			args.APIVersion = v.APIVersion
			args.MaxTokens = v.MaxTokens
		}

		return NewAnthropicProvider(cfg.Name(), apiKey, args)
	case KindGoogle:
		var v *struct {
			Temperature float32 `mapstructure:"temperature"`
		}

		if err := mapstructure.Decode(cfg.Parameters, &v); err != nil {
			return nil, err
		}

		args := GoogleProviderArgs{Model: cfg.Model}
		if v != nil {
			args.Temperature = v.Temperature
		}

		return NewGoogleProvider(cfg.Name(), apiKey, args)
	case KindMock:
		var v *struct {
			Verdict    string  `mapstructure:"verdict"`
			Confidence float64 `mapstructure:"confidence"`
			Fail       bool    `mapstructure:"fail"`
			DelayMs    int     `mapstructure:"delay_ms"`
		}

		if err := mapstructure.Decode(cfg.Parameters, &v); err != nil {
			return nil, err
		}

		args := MockProviderArgs{}
		if v != nil {
			args.Verdict = models.Verdict(v.Verdict)
			args.Confidence = v.Confidence
			args.Fail = v.Fail
			args.DelayMs = v.DelayMs
		}

		return NewMockProvider(cfg.Name(), args)
	default:
		return nil, fmt.Errorf("'%s' is not a valid provider kind", cfg.Kind)
	}
}

// measureTime stamps the verdict with the call duration
func measureTime(fn func() (*models.ProviderVerdict, error)) (*models.ProviderVerdict, error) {
	start := time.Now()
	verdict, err := fn()

	if verdict != nil {
		verdict.DurationMs = time.Since(start).Milliseconds()
	}

	return verdict, err
}
