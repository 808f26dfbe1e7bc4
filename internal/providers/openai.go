package providers

import (
	"context"
	"errors"
	"fmt"

	"github.com/mwhelan/claimcheck/internal/models"
	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

// Base URLs for the OpenAI-compatible providers.
const (
	deepSeekBaseURL = "https://api.deepseek.com/v1"
	glmBaseURL      = "https://open.bigmodel.cn/api/paas/v4"
)

// Default models per kind when the spec leaves the model unset.
var defaultOpenAIModels = map[Kind]string{
	KindOpenAI:   "gpt-4o-mini",
	KindDeepSeek: "deepseek-chat",
	KindGLM:      "glm-4-flash",
}

type OpenAIProviderArgs struct {
	Model       string
	BaseURL     string
	Temperature float32
	MaxTokens   int
}

// openAIProvider scores claims through any OpenAI-compatible chat API.
// DeepSeek and GLM expose the same wire protocol, so the three kinds share
// this implementation and differ only in base URL and default model.
type openAIProvider struct {
	name    string
	kind    Kind
	model   string
	client  *openai.Client
	limiter *rate.Limiter
	args    OpenAIProviderArgs
}

func NewOpenAIProvider(name string, kind Kind, apiKey string, args OpenAIProviderArgs) (*openAIProvider, error) {
	if name == "" {
		return nil, errors.New("missing name")
	}

	if apiKey == "" {
		return nil, fmt.Errorf("provider %s: missing API key", name)
	}

	cfg := openai.DefaultConfig(apiKey)

	switch {
	case args.BaseURL != "":
		cfg.BaseURL = args.BaseURL
	case kind == KindDeepSeek:
		cfg.BaseURL = deepSeekBaseURL
	case kind == KindGLM:
		cfg.BaseURL = glmBaseURL
	}

	model := args.Model
	if model == "" {
		model = defaultOpenAIModels[kind]
	}

	return &openAIProvider{
		name:    name,
		kind:    kind,
		model:   model,
		client:  openai.NewClientWithConfig(cfg),
		limiter: newLimiter(),
		args:    args,
	}, nil
}

// Name implements [Provider].
func (p *openAIProvider) Name() string { return p.name }

// Kind implements [Provider].
func (p *openAIProvider) Kind() Kind { return p.kind }

// Score implements [Provider].
func (p *openAIProvider) Score(ctx context.Context, req *ScoreRequest) (*models.ProviderVerdict, error) {
	return measureTime(func() (*models.ProviderVerdict, error) {
		prompt := req.PromptOverride
		if prompt == "" {
			prompt = buildValidationPrompt(req.Claim, req.Evidence, req.EvidenceStrength)
		}

		maxTokens := p.args.MaxTokens
		if maxTokens == 0 {
			maxTokens = 1024
		}

		var resp openai.ChatCompletionResponse

		err := callWithRetry(ctx, p.limiter, func(ctx context.Context) error {
			var err error
			resp, err = p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
				Model: p.model,
				Messages: []openai.ChatCompletionMessage{
					{Role: openai.ChatMessageRoleSystem, Content: validationSystemPrompt},
					{Role: openai.ChatMessageRoleUser, Content: prompt},
				},
				Temperature: p.args.Temperature,
				MaxTokens:   maxTokens,
			})

			var apiErr *openai.APIError
			if errors.As(err, &apiErr) {
				return &statusError{status: apiErr.HTTPStatusCode, err: err}
			}
			return err
		})

		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", p.name, err)
		}

		if len(resp.Choices) == 0 {
			return nil, fmt.Errorf("provider %s: empty response", p.name)
		}

		verdict, confidence, rationale, err := parseVerdict(resp.Choices[0].Message.Content)
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", p.name, err)
		}

		return &models.ProviderVerdict{
			Provider:   p.name,
			Model:      p.model,
			Verdict:    verdict,
			Confidence: confidence,
			Rationale:  rationale,
			TokensIn:   resp.Usage.PromptTokens,
			TokensOut:  resp.Usage.CompletionTokens,
		}, nil
	})
}
