package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mwhelan/claimcheck/internal/models"
	"golang.org/x/time/rate"
)

const (
	anthropicBaseURL        = "https://api.anthropic.com"
	anthropicAPIVersion     = "2023-06-01"
	defaultAnthropicModel   = "claude-3-5-haiku-latest"
	anthropicRequestTimeout = 120 * time.Second
)

type AnthropicProviderArgs struct {
	Model      string
	BaseURL    string
	APIVersion string
	MaxTokens  int
}

// anthropicProvider calls the Anthropic Messages API directly over HTTP.
type anthropicProvider struct {
	name    string
	model   string
	apiKey  string
	baseURL string
	version string
	maxTok  int
	client  *http.Client
	limiter *rate.Limiter
}

func NewAnthropicProvider(name, apiKey string, args AnthropicProviderArgs) (*anthropicProvider, error) {
	if name == "" {
		return nil, errors.New("missing name")
	}

	if apiKey == "" {
		return nil, fmt.Errorf("provider %s: missing API key", name)
	}

	model := args.Model
	if model == "" {
		model = defaultAnthropicModel
	}

	baseURL := args.BaseURL
	if baseURL == "" {
		baseURL = anthropicBaseURL
	}

	version := args.APIVersion
	if version == "" {
		version = anthropicAPIVersion
	}

	maxTok := args.MaxTokens
	if maxTok == 0 {
		maxTok = 1024
	}

	return &anthropicProvider{
		name:    name,
		model:   model,
		apiKey:  apiKey,
		baseURL: baseURL,
		version: version,
		maxTok:  maxTok,
		client:  &http.Client{Timeout: anthropicRequestTimeout},
		limiter: newLimiter(),
	}, nil
}

// Name implements [Provider].
func (p *anthropicProvider) Name() string { return p.name }

// Kind implements [Provider].
func (p *anthropicProvider) Kind() Kind { return KindAnthropic }

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Score implements [Provider].
func (p *anthropicProvider) Score(ctx context.Context, req *ScoreRequest) (*models.ProviderVerdict, error) {
	return measureTime(func() (*models.ProviderVerdict, error) {
		prompt := req.PromptOverride
		if prompt == "" {
			prompt = buildValidationPrompt(req.Claim, req.Evidence, req.EvidenceStrength)
		}

		body, err := json.Marshal(anthropicRequest{
			Model:     p.model,
			MaxTokens: p.maxTok,
			System:    validationSystemPrompt,
			Messages:  []anthropicMessage{{Role: "user", Content: prompt}},
		})
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", p.name, err)
		}

		var parsed anthropicResponse

		err = callWithRetry(ctx, p.limiter, func(ctx context.Context) error {
			return p.doRequest(ctx, body, &parsed)
		})
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", p.name, err)
		}

		var text string
		for _, block := range parsed.Content {
			if block.Type == "text" {
				text += block.Text
			}
		}
		if text == "" {
			return nil, fmt.Errorf("provider %s: empty response", p.name)
		}

		verdict, confidence, rationale, err := parseVerdict(text)
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", p.name, err)
		}

		return &models.ProviderVerdict{
			Provider:   p.name,
			Model:      p.model,
			Verdict:    verdict,
			Confidence: confidence,
			Rationale:  rationale,
			TokensIn:   parsed.Usage.InputTokens,
			TokensOut:  parsed.Usage.OutputTokens,
		}, nil
	})
}

func (p *anthropicProvider) doRequest(ctx context.Context, body []byte, out *anthropicResponse) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return err
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Api-Key", p.apiKey)
	httpReq.Header.Set("Anthropic-Version", p.version)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		msg := fmt.Errorf("messages API returned %d", resp.StatusCode)

		var apiResp anthropicResponse
		if json.Unmarshal(respBody, &apiResp) == nil && apiResp.Error != nil {
			msg = fmt.Errorf("messages API returned %d: %s", resp.StatusCode, apiResp.Error.Message)
		}
		return &statusError{status: resp.StatusCode, err: msg}
	}

	return json.Unmarshal(respBody, out)
}
